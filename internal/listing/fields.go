package listing

import (
	"github.com/ubuntu/societyhub/internal/models"
	"github.com/ubuntu/societyhub/internal/temporal"
)

// Tickets lists help-desk tickets by number, subject, category and description, newest first
// when sorted descending.
var Tickets = Fields[models.Ticket]{
	Text: func(t models.Ticket) []string {
		return []string{t.Number, t.Subject, t.Category, t.Description}
	},
	Status: func(t models.Ticket) string { return t.Status },
	Date:   func(t models.Ticket) temporal.Instant { return t.RaisedOn },
}

// Members lists owners, tenants and occupants by name, mobile and email.
var Members = Fields[models.Member]{
	Text: func(m models.Member) []string {
		return []string{m.FullName(), m.Mobile, m.Email, m.Relation}
	},
	Date: func(m models.Member) temporal.Instant { return m.Since },
}

// Announcements lists notices by title and message.
var Announcements = Fields[models.Announcement]{
	Text: func(a models.Announcement) []string {
		return []string{a.Title, a.Message, a.PostedBy}
	},
	Date: func(a models.Announcement) temporal.Instant { return a.PublishedOn },
}

// Visitors lists the visitor log by name, mobile and purpose.
var Visitors = Fields[models.Visitor]{
	Text: func(v models.Visitor) []string {
		return []string{v.Name, v.Mobile, v.Purpose}
	},
	Status: func(v models.Visitor) string { return v.Status },
	Date:   func(v models.Visitor) temporal.Instant { return v.Entry },
}

// Units lists units by label and society.
var Units = Fields[models.Unit]{
	Text: func(u models.Unit) []string {
		return []string{u.Label(), u.SocietyName}
	},
}
