// Package onboarding validates and submits the forms adding residents to a unit and raising
// help-desk tickets.
package onboarding

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/ubuntu/decorate"
	"github.com/ubuntu/societyhub/internal/gateway"
	"github.com/ubuntu/societyhub/internal/normalize"
	"github.com/ubuntu/societyhub/internal/temporal"
)

// ErrValidation is returned when a form is rejected before reaching the gateway.
var ErrValidation = errors.New("invalid form")

// Caller calls a stored procedure.
type Caller interface {
	Call(ctx context.Context, p gateway.Procedure, args gateway.Args) (normalize.Records, error)
}

// Result is the gateway answer to an insert.
type Result struct {
	// ID is the identifier of the created row, when the gateway returns it.
	ID string `yaml:"id,omitempty" json:"id,omitempty"`
	// Message is the confirmation message of the gateway, if any.
	Message string `yaml:"message,omitempty" json:"message,omitempty"`
}

// Submitter submits the forms of a signed in user.
type Submitter struct {
	caller    Caller
	createdBy string
	coercer   temporal.Coercer
}

type options struct {
	coercer temporal.Coercer
}

// Option overrides a Submitter default.
type Option func(*options)

// WithCoercer sets the coercer reading the dates typed in forms.
func WithCoercer(c temporal.Coercer) Option {
	return func(o *options) {
		o.coercer = c
	}
}

// New returns a Submitter recording createdBy as the author of the rows it inserts.
func New(caller Caller, createdBy string, args ...Option) Submitter {
	opts := options{coercer: temporal.New()}
	for _, opt := range args {
		opt(&opts)
	}

	return Submitter{caller: caller, createdBy: createdBy, coercer: opts.coercer}
}

// AddOwner validates and submits an owner form.
func (s Submitter) AddOwner(ctx context.Context, r OwnerRequest) (res Result, err error) {
	defer decorate.OnError(&err, "could not add owner")

	args, err := r.args(s.coercer)
	if err != nil {
		return Result{}, err
	}
	return s.submit(ctx, gateway.OwnerInsert, args)
}

// AddTenant validates and submits a tenant form.
func (s Submitter) AddTenant(ctx context.Context, r TenantRequest) (res Result, err error) {
	defer decorate.OnError(&err, "could not add tenant")

	args, err := r.args(s.coercer)
	if err != nil {
		return Result{}, err
	}
	return s.submit(ctx, gateway.TenantInsert, args)
}

// AddOccupant validates and submits an occupant form.
func (s Submitter) AddOccupant(ctx context.Context, r OccupantRequest) (res Result, err error) {
	defer decorate.OnError(&err, "could not add occupant")

	args, err := r.args(s.coercer)
	if err != nil {
		return Result{}, err
	}
	return s.submit(ctx, gateway.OccupantInsert, args)
}

// RaiseTicket validates and submits a help-desk ticket.
func (s Submitter) RaiseTicket(ctx context.Context, r TicketRequest) (res Result, err error) {
	defer decorate.OnError(&err, "could not raise ticket")

	args, err := r.args()
	if err != nil {
		return Result{}, err
	}
	return s.submit(ctx, gateway.TicketInsert, args)
}

func (s Submitter) submit(ctx context.Context, p gateway.Procedure, args gateway.Args) (Result, error) {
	if s.createdBy == "" {
		return Result{}, fmt.Errorf("%w: no signed in user", ErrValidation)
	}
	args["CreatedBy"] = s.createdBy

	records, err := s.caller.Call(ctx, p, args)
	if err != nil {
		return Result{}, err
	}

	var res Result
	if objs := records.Objects(); len(objs) > 0 {
		res.ID = objs[0].Text("NewID", "InsertedID", "ID", "OwnerID", "TenantID", "OccupantID", "TicketID")
		res.Message = objs[0].Text("Message", "Msg", "Result")
	}
	slog.Info("Form submitted", "procedure", p.Name, "id", res.ID)
	return res, nil
}
