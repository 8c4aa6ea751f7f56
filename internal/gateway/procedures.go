package gateway

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/ubuntu/societyhub/internal/normalize"
)

// ErrUnknownParam is returned when binding a parameter a procedure does not take.
var ErrUnknownParam = errors.New("unknown stored procedure parameter")

// Procedure is a stored procedure and the fixed order of its parameters.
type Procedure struct {
	Name   string
	Params []string
}

// Stored procedures used by the application.
var (
	UnitGet         = Procedure{Name: "UNM_SP_Unit_Get", Params: []string{"@UserID", "@UnitID"}}
	UnitDetailGet   = Procedure{Name: "UNM_SP_UnitDetail_Get", Params: []string{"@UnitID"}}
	VisitorGet      = Procedure{Name: "VMS_SP_Visitor_Get", Params: []string{"@UnitID", "@FromDate", "@ToDate"}}
	TicketGet       = Procedure{Name: "HDM_SP_Ticket_Get", Params: []string{"@UnitID", "@Status", "@TicketID"}}
	AnnouncementGet = Procedure{Name: "ANM_SP_Announcement_Get", Params: []string{"@SocietyID", "@UnitID"}}
	OwnerGet        = Procedure{Name: "UNM_SP_Owner_Get", Params: []string{"@UnitID", "@OwnerID"}}
	TenantGet       = Procedure{Name: "UNM_SP_Tenant_Get", Params: []string{"@UnitID", "@TenantID"}}
	OccupantGet     = Procedure{Name: "UNM_SP_Occupant_Get", Params: []string{"@UnitID", "@OccupantID"}}

	OwnerInsert = Procedure{Name: "UNM_SP_Owner_Insert", Params: []string{
		"@UnitID", "@FirstName", "@LastName", "@Mobile", "@Email", "@OwnershipDate", "@IsResiding", "@CreatedBy"}}
	TenantInsert = Procedure{Name: "UNM_SP_Tenant_Insert", Params: []string{
		"@UnitID", "@FirstName", "@LastName", "@Mobile", "@Email", "@LeaseStart", "@LeaseEnd", "@MonthlyRent", "@CreatedBy"}}
	OccupantInsert = Procedure{Name: "UNM_SP_Occupant_Insert", Params: []string{
		"@UnitID", "@FirstName", "@LastName", "@Mobile", "@Email", "@Relation", "@DateOfBirth", "@CreatedBy"}}
	TicketInsert = Procedure{Name: "HDM_SP_Ticket_Insert", Params: []string{
		"@UnitID", "@Category", "@Subject", "@Description", "@Priority", "@CreatedBy"}}
)

// Args are the parameters of a procedure call, by name. Names may omit the leading @.
//
// Values are rendered as: string as is, integers in base 10, bool as 1 or 0, time.Time as
// a 2006-01-02 date, nil and zero times as NULL.
type Args map[string]any

// Bind returns the Values of a call, with every parameter of the procedure in its fixed
// order. Parameters missing from args are NULL.
func (p Procedure) Bind(args Args) (*Values, error) {
	known := make(map[string]struct{}, len(p.Params))
	for _, name := range p.Params {
		known[paramName(name)] = struct{}{}
	}

	var unknown []error
	byName := make(map[string]any, len(args))
	for name, v := range args {
		n := paramName(name)
		if _, ok := known[n]; !ok {
			unknown = append(unknown, fmt.Errorf("%w: %s does not take %s", ErrUnknownParam, p.Name, n))
			continue
		}
		byName[n] = v
	}
	if len(unknown) > 0 {
		return nil, errors.Join(unknown...)
	}

	values := &Values{}
	for _, name := range p.Params {
		n := paramName(name)
		switch v := byName[n].(type) {
		case nil:
			values.Null(n)
		case string:
			values.Set(n, v)
		case int:
			values.SetInt(n, int64(v))
		case int64:
			values.SetInt(n, v)
		case float64:
			values.Set(n, strconv.FormatFloat(v, 'f', -1, 64))
		case bool:
			values.SetBool(n, v)
		case time.Time:
			values.SetDate(n, v)
		case *time.Time:
			if v == nil {
				values.Null(n)
			} else {
				values.SetDate(n, *v)
			}
		case fmt.Stringer:
			values.Set(n, v.String())
		default:
			return nil, fmt.Errorf("unsupported value type %T for %s", v, n)
		}
	}
	return values, nil
}

// Call binds args and invokes the procedure.
func (c *Client) Call(ctx context.Context, p Procedure, args Args) (normalize.Records, error) {
	values, err := p.Bind(args)
	if err != nil {
		return nil, err
	}
	return c.Invoke(ctx, p.Name, values)
}
