package onboarding

import (
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/ubuntu/societyhub/internal/gateway"
	"github.com/ubuntu/societyhub/internal/temporal"
)

// Person holds the fields shared by every resident form.
type Person struct {
	UnitID    string
	FirstName string
	LastName  string
	Mobile    string
	Email     string
}

// OwnerRequest is the "add owner" form.
type OwnerRequest struct {
	Person
	OwnershipDate string
	IsResiding    bool
}

// TenantRequest is the "add tenant" form.
type TenantRequest struct {
	Person
	LeaseStart  string
	LeaseEnd    string
	MonthlyRent float64
}

// OccupantRequest is the "add occupant" form. Occupants may have no phone of their own.
type OccupantRequest struct {
	Person
	Relation    string
	DateOfBirth string
}

// TicketRequest is the "raise ticket" form.
type TicketRequest struct {
	UnitID      string
	Category    string
	Subject     string
	Description string
	// Priority is Low, Medium or High. Defaults to Medium.
	Priority string
}

// FieldError is the rejection of a single form field. It matches ErrValidation.
type FieldError struct {
	Field  string
	Reason string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

// Is makes FieldError match ErrValidation.
func (e *FieldError) Is(target error) bool {
	return target == ErrValidation
}

// Priorities accepted by the help-desk.
var priorities = []string{"Low", "Medium", "High"}

type validator struct {
	errs []error
}

func (v *validator) fail(field, format string, a ...any) {
	v.errs = append(v.errs, &FieldError{Field: field, Reason: fmt.Sprintf(format, a...)})
}

func (v *validator) required(field, value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		v.fail(field, "is required")
	}
	return value
}

// mobile returns the digits of a phone number, accepting spaces, dashes, dots, parentheses and
// a leading +.
func (v *validator) mobile(field, value string, required bool) string {
	value = strings.TrimSpace(value)
	if value == "" {
		if required {
			v.fail(field, "is required")
		}
		return ""
	}

	var digits strings.Builder
	for i, r := range value {
		switch {
		case r >= '0' && r <= '9':
			digits.WriteRune(r)
		case r == '+' && i == 0:
		case r == ' ' || r == '-' || r == '.' || r == '(' || r == ')':
		default:
			v.fail(field, "%q is not a phone number", value)
			return ""
		}
	}
	if n := digits.Len(); n < 10 || n > 15 {
		v.fail(field, "must have between 10 and 15 digits, got %d", n)
		return ""
	}
	return digits.String()
}

func (v *validator) email(field, value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return ""
	}
	addr, err := mail.ParseAddress(value)
	if err != nil || addr.Address != value || !strings.Contains(value[strings.LastIndex(value, "@"):], ".") {
		v.fail(field, "%q is not an email address", value)
		return ""
	}
	return value
}

// date coerces an optional date. The zero time means no date.
func (v *validator) date(c temporal.Coercer, field, value string, required bool) time.Time {
	value = strings.TrimSpace(value)
	if value == "" {
		if required {
			v.fail(field, "is required")
		}
		return time.Time{}
	}
	in, ok := c.Parse(value)
	if !ok {
		v.fail(field, "%q is not a date", value)
		return time.Time{}
	}
	return in.Time
}

func (v *validator) err() error {
	if len(v.errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrValidation, errors.Join(v.errs...))
}

func (p Person) validate(v *validator, mobileRequired bool) gateway.Args {
	return gateway.Args{
		"UnitID":    v.required("unit", p.UnitID),
		"FirstName": v.required("first name", p.FirstName),
		"LastName":  nullable(p.LastName),
		"Mobile":    nullable(v.mobile("mobile", p.Mobile, mobileRequired)),
		"Email":     nullable(v.email("email", p.Email)),
	}
}

func (r OwnerRequest) args(c temporal.Coercer) (gateway.Args, error) {
	var v validator
	args := r.Person.validate(&v, true)
	args["OwnershipDate"] = v.date(c, "ownership date", r.OwnershipDate, false)
	args["IsResiding"] = r.IsResiding
	return args, v.err()
}

func (r TenantRequest) args(c temporal.Coercer) (gateway.Args, error) {
	var v validator
	args := r.Person.validate(&v, true)

	start := v.date(c, "lease start", r.LeaseStart, true)
	end := v.date(c, "lease end", r.LeaseEnd, false)
	if !start.IsZero() && !end.IsZero() && end.Before(start) {
		v.fail("lease end", "must not be before the lease start")
	}
	if r.MonthlyRent < 0 {
		v.fail("monthly rent", "must not be negative")
	}

	args["LeaseStart"] = start
	args["LeaseEnd"] = end
	if r.MonthlyRent > 0 {
		args["MonthlyRent"] = r.MonthlyRent
	}
	return args, v.err()
}

func (r OccupantRequest) args(c temporal.Coercer) (gateway.Args, error) {
	var v validator
	args := r.Person.validate(&v, false)

	dob := v.date(c, "date of birth", r.DateOfBirth, false)
	if !dob.IsZero() && dob.After(time.Now()) {
		v.fail("date of birth", "must not be in the future")
	}

	args["Relation"] = nullable(r.Relation)
	args["DateOfBirth"] = dob
	return args, v.err()
}

func (r TicketRequest) args() (gateway.Args, error) {
	var v validator
	args := gateway.Args{
		"UnitID":      v.required("unit", r.UnitID),
		"Category":    v.required("category", r.Category),
		"Subject":     v.required("subject", r.Subject),
		"Description": nullable(r.Description),
	}

	priority := "Medium"
	if p := strings.TrimSpace(r.Priority); p != "" {
		priority = ""
		for _, known := range priorities {
			if strings.EqualFold(p, known) {
				priority = known
			}
		}
		if priority == "" {
			v.fail("priority", "%q is not one of %s", p, strings.Join(priorities, ", "))
		}
	}
	args["Priority"] = priority
	return args, v.err()
}

// nullable maps blank optional fields to NULL.
func nullable(s string) any {
	if s = strings.TrimSpace(s); s == "" {
		return nil
	}
	return s
}
