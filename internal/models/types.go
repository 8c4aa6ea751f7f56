package models

import (
	"strings"

	"github.com/ubuntu/societyhub/internal/normalize"
	"github.com/ubuntu/societyhub/internal/temporal"
)

// Unit is a residential unit the signed in user is attached to.
type Unit struct {
	ID          string `mapstructure:"UnitID" alias:"ID" yaml:"id" json:"id"`
	Name        string `mapstructure:"UnitName" alias:"UnitNo,UnitNumber,FlatNo" yaml:"name" json:"name"`
	Block       string `mapstructure:"Block" alias:"BlockName,Wing,Tower" yaml:"block,omitempty" json:"block,omitempty"`
	Floor       int    `mapstructure:"Floor" alias:"FloorNo" yaml:"floor,omitempty" json:"floor,omitempty"`
	SocietyID   string `mapstructure:"SocietyID" yaml:"societyId,omitempty" json:"societyId,omitempty"`
	SocietyName string `mapstructure:"SocietyName" yaml:"societyName,omitempty" json:"societyName,omitempty"`
	Role        string `mapstructure:"UserRole" alias:"Role,RelationType" yaml:"role,omitempty" json:"role,omitempty"`
}

// Label is the human readable name of the unit, prefixed by its block when known.
func (u Unit) Label() string {
	switch {
	case u.Block == "":
		return u.Name
	case u.Name == "":
		return u.Block
	default:
		return u.Block + "-" + u.Name
	}
}

// UnitDetail is the full description of a single unit.
type UnitDetail struct {
	UnitID      string           `mapstructure:"UnitID" alias:"ID" yaml:"unitId" json:"unitId"`
	Name        string           `mapstructure:"UnitName" alias:"UnitNo,UnitNumber,FlatNo" yaml:"name" json:"name"`
	Block       string           `mapstructure:"Block" alias:"BlockName,Wing,Tower" yaml:"block,omitempty" json:"block,omitempty"`
	Floor       int              `mapstructure:"Floor" alias:"FloorNo" yaml:"floor,omitempty" json:"floor,omitempty"`
	Type        string           `mapstructure:"UnitType" alias:"Type,Configuration" yaml:"type,omitempty" json:"type,omitempty"`
	Area        float64          `mapstructure:"Area" alias:"CarpetArea,SuperArea,AreaSqft" yaml:"area,omitempty" json:"area,omitempty"`
	Status      string           `mapstructure:"OccupancyStatus" alias:"Status,UnitStatus" yaml:"status,omitempty" json:"status,omitempty"`
	OwnerName   string           `mapstructure:"OwnerName" yaml:"ownerName,omitempty" json:"ownerName,omitempty"`
	Parking     string           `mapstructure:"ParkingSlot" alias:"Parking,ParkingNo" yaml:"parking,omitempty" json:"parking,omitempty"`
	PossessedOn temporal.Instant `mapstructure:"PossessionDate" alias:"HandoverDate" yaml:"possessedOn" json:"possessedOn"`
}

// Visitor is an entry of the visitor log of a unit.
type Visitor struct {
	ID      string           `mapstructure:"VisitorID" alias:"ID,VisitID" yaml:"id" json:"id"`
	Name    string           `mapstructure:"VisitorName" alias:"Name" yaml:"name" json:"name"`
	Mobile  string           `mapstructure:"Mobile" alias:"MobileNo,Phone,ContactNo" yaml:"mobile,omitempty" json:"mobile,omitempty"`
	Purpose string           `mapstructure:"Purpose" alias:"VisitPurpose" yaml:"purpose,omitempty" json:"purpose,omitempty"`
	Status  string           `mapstructure:"Status" alias:"VisitStatus" yaml:"status,omitempty" json:"status,omitempty"`
	Entry   temporal.Instant `mapstructure:"EntryDate" alias:"VisitDate,InDate,CheckInDate" yaml:"entry" json:"entry"`
	Exit    temporal.Instant `mapstructure:"ExitDate" alias:"OutDate,CheckOutDate" yaml:"exit" json:"exit"`
}

// finish merges the separate time of day columns into the entry and exit instants.
func (v *Visitor) finish(r normalize.Record, c temporal.Coercer) {
	v.Entry = mergeClock(v.Entry, r, c,
		[]string{"EntryDate", "VisitDate", "InDate", "CheckInDate"},
		[]string{"EntryTime", "VisitTime", "InTime", "CheckInTime"})
	v.Exit = mergeClock(v.Exit, r, c,
		[]string{"ExitDate", "OutDate", "CheckOutDate"},
		[]string{"ExitTime", "OutTime", "CheckOutTime"})
}

// Ticket is a help-desk ticket.
type Ticket struct {
	ID          string           `mapstructure:"TicketID" alias:"ID" yaml:"id" json:"id"`
	Number      string           `mapstructure:"TicketNo" alias:"TicketNumber,RefNo" yaml:"number,omitempty" json:"number,omitempty"`
	Category    string           `mapstructure:"Category" alias:"CategoryName" yaml:"category,omitempty" json:"category,omitempty"`
	Subject     string           `mapstructure:"Subject" alias:"Title" yaml:"subject" json:"subject"`
	Description string           `mapstructure:"Description" alias:"Details,Remarks" yaml:"description,omitempty" json:"description,omitempty"`
	Status      string           `mapstructure:"Status" alias:"TicketStatus" yaml:"status" json:"status"`
	Priority    string           `mapstructure:"Priority" yaml:"priority,omitempty" json:"priority,omitempty"`
	AssignedTo  string           `mapstructure:"AssignedTo" alias:"AssigneeName" yaml:"assignedTo,omitempty" json:"assignedTo,omitempty"`
	RaisedOn    temporal.Instant `mapstructure:"CreatedDate" alias:"RaisedOn,CreatedOn,TicketDate" yaml:"raisedOn" json:"raisedOn"`
	ClosedOn    temporal.Instant `mapstructure:"ClosedDate" alias:"ResolvedDate,ClosedOn" yaml:"closedOn" json:"closedOn"`
}

// Announcement is a notice published by the society management.
type Announcement struct {
	ID          string           `mapstructure:"AnnouncementID" alias:"ID,NoticeID" yaml:"id" json:"id"`
	Title       string           `mapstructure:"Title" alias:"Subject,Heading" yaml:"title" json:"title"`
	Message     string           `mapstructure:"Message" alias:"Description,Body,Content" yaml:"message,omitempty" json:"message,omitempty"`
	PostedBy    string           `mapstructure:"PostedBy" alias:"CreatedByName,Author" yaml:"postedBy,omitempty" json:"postedBy,omitempty"`
	PublishedOn temporal.Instant `mapstructure:"PublishDate" alias:"PublishedOn,CreatedDate,AnnouncementDate" yaml:"publishedOn" json:"publishedOn"`
	ExpiresOn   temporal.Instant `mapstructure:"ExpiryDate" alias:"ValidTill,EndDate" yaml:"expiresOn" json:"expiresOn"`
}

// Role is the relation of a member to a unit.
type Role string

const (
	// RoleOwner owns the unit.
	RoleOwner Role = "owner"
	// RoleTenant rents the unit.
	RoleTenant Role = "tenant"
	// RoleOccupant lives in the unit without owning or renting it, like family members.
	RoleOccupant Role = "occupant"
)

// Member is an owner, tenant or occupant of a unit.
type Member struct {
	ID         string           `mapstructure:"MemberID" alias:"OwnerID,TenantID,OccupantID,ID" yaml:"id" json:"id"`
	Role       Role             `mapstructure:"-" yaml:"role" json:"role"`
	FirstName  string           `mapstructure:"FirstName" alias:"FName" yaml:"firstName" json:"firstName"`
	LastName   string           `mapstructure:"LastName" alias:"LName,Surname" yaml:"lastName,omitempty" json:"lastName,omitempty"`
	Name       string           `mapstructure:"Name" alias:"FullName,MemberName,OwnerName,TenantName,OccupantName" yaml:"-" json:"-"`
	Mobile     string           `mapstructure:"Mobile" alias:"MobileNo,Phone,ContactNo" yaml:"mobile,omitempty" json:"mobile,omitempty"`
	Email      string           `mapstructure:"Email" alias:"EmailID,EmailAddress" yaml:"email,omitempty" json:"email,omitempty"`
	Relation   string           `mapstructure:"Relation" alias:"RelationWithOwner" yaml:"relation,omitempty" json:"relation,omitempty"`
	IsResiding bool             `mapstructure:"IsResiding" alias:"Residing" yaml:"isResiding" json:"isResiding"`
	Since      temporal.Instant `mapstructure:"Since" alias:"OwnershipDate,LeaseStart,LeaseStartDate,MoveInDate" yaml:"since" json:"since"`
	Until      temporal.Instant `mapstructure:"Until" alias:"LeaseEnd,LeaseEndDate,MoveOutDate" yaml:"until" json:"until"`
}

// FullName is the display name of the member.
func (m Member) FullName() string {
	if n := strings.TrimSpace(strings.Join([]string{m.FirstName, m.LastName}, " ")); n != "" {
		return n
	}
	return strings.TrimSpace(m.Name)
}

// DecodeMembers maps records to members of the given role.
func DecodeMembers(records normalize.Records, role Role, args ...Option) ([]Member, error) {
	members, err := Decode[Member](records, args...)
	for i := range members {
		members[i].Role = role
	}
	return members, err
}

// mergeClock re-parses the date column of r with the first non empty time column, when in
// has no clock of its own.
func mergeClock(in temporal.Instant, r normalize.Record, c temporal.Coercer, dateCols, timeCols []string) temporal.Instant {
	if in.Absent() || in.HasClock {
		return in
	}
	clock := r.Text(timeCols...)
	if clock == "" {
		return in
	}
	if merged, ok := c.Parse(r.Text(dateCols...), clock); ok {
		return merged
	}
	return in
}
