package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"
	"github.com/ubuntu/societyhub/internal/gateway"
	"github.com/ubuntu/societyhub/internal/listing"
	"github.com/ubuntu/societyhub/internal/models"
	"github.com/ubuntu/societyhub/internal/temporal"
)

// listFlags are the flags shared by the list commands.
type listFlags struct {
	unit     string
	search   string
	status   string
	sort     string
	page     int
	pageSize int
}

func (f *listFlags) install(cmd *cobra.Command, withStatus bool) {
	cmd.Flags().StringVarP(&f.unit, "unit", "u", "", "unit to list for, defaults to the first unit of the user")
	cmd.Flags().StringVarP(&f.search, "search", "s", "", "only keep entries containing this text")
	cmd.Flags().StringVar(&f.sort, "sort", "", "sort by date, asc or desc, absent dates last")
	cmd.Flags().IntVar(&f.page, "page", 1, "page to show, starting at 1")
	cmd.Flags().IntVar(&f.pageSize, "page-size", listing.DefaultPageSize, "number of entries per page")
	if withStatus {
		cmd.Flags().StringVar(&f.status, "status", "", "only keep entries with this status")
	}
}

func (f listFlags) query() (listing.Query, error) {
	q := listing.Query{Search: f.search, Status: f.status, Page: f.page, PageSize: f.pageSize}

	switch strings.ToLower(f.sort) {
	case "":
	case "asc":
		o := temporal.Ascending
		q.Sort = &o
	case "desc":
		o := temporal.Descending
		q.Sort = &o
	default:
		return q, fmt.Errorf("invalid sort order %q, expected asc or desc", f.sort)
	}
	return q, nil
}

// checkQuery returns a PreRunE validating the list flags.
func checkQuery(app *App, f *listFlags) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		if _, err := f.query(); err != nil {
			app.cmd.SilenceUsage = false
			return err
		}
		return nil
	}
}

func installListCmds(app *App) {
	installUnitsCmd(app)
	installMembersCmd(app)
	installTicketsCmd(app)
	installAnnouncementsCmd(app)
}

func installUnitsCmd(app *App) {
	var f listFlags

	cmd := &cobra.Command{
		Use:     "units",
		Short:   "List the units of the signed in user",
		Args:    cobra.NoArgs,
		PreRunE: checkQuery(app, &f),
		RunE: func(cmd *cobra.Command, args []string) error {
			q, _ := f.query()
			c, p, err := app.client()
			if err != nil {
				return err
			}
			units, err := app.units(cmd.Context(), c, p.UserID)
			if err != nil {
				return err
			}
			return app.print(listing.Apply(units, listing.Units, q))
		},
	}
	f.install(cmd, false)
	if err := cmd.Flags().MarkHidden("unit"); err != nil {
		slog.Error("Failed to hide unit flag", "error", err)
	}

	app.cmd.AddCommand(cmd)
}

var memberProcedures = map[string]struct {
	procedure gateway.Procedure
	role      models.Role
}{
	"owners":    {gateway.OwnerGet, models.RoleOwner},
	"tenants":   {gateway.TenantGet, models.RoleTenant},
	"occupants": {gateway.OccupantGet, models.RoleOccupant},
}

func installMembersCmd(app *App) {
	var f listFlags

	cmd := &cobra.Command{
		Use:       "members {owners|tenants|occupants}",
		Short:     "List the owners, tenants or occupants of a unit",
		Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{"owners", "tenants", "occupants"},
		PreRunE:   checkQuery(app, &f),
		RunE: func(cmd *cobra.Command, args []string) error {
			q, _ := f.query()
			kind := memberProcedures[args[0]]

			c, unit, err := app.unitClient(cmd.Context(), f.unit)
			if err != nil {
				return err
			}
			records, err := c.Call(cmd.Context(), kind.procedure, gateway.Args{"UnitID": unit})
			if err != nil {
				return err
			}
			members, err := models.DecodeMembers(records, kind.role, models.WithCoercer(app.coercer()))
			if err != nil {
				slog.Warn("Some members could not be read", "error", err)
			}
			return app.print(listing.Apply(members, listing.Members, q))
		},
	}
	f.install(cmd, false)

	app.cmd.AddCommand(cmd)
}

func installTicketsCmd(app *App) {
	var f listFlags

	cmd := &cobra.Command{
		Use:     "tickets",
		Short:   "List the help-desk tickets of a unit",
		Args:    cobra.NoArgs,
		PreRunE: checkQuery(app, &f),
		RunE: func(cmd *cobra.Command, args []string) error {
			q, _ := f.query()
			c, unit, err := app.unitClient(cmd.Context(), f.unit)
			if err != nil {
				return err
			}
			// The status is filtered locally: the gateway matches it exactly.
			records, err := c.Call(cmd.Context(), gateway.TicketGet, gateway.Args{"UnitID": unit})
			if err != nil {
				return err
			}
			tickets, err := models.Decode[models.Ticket](records, models.WithCoercer(app.coercer()))
			if err != nil {
				slog.Warn("Some tickets could not be read", "error", err)
			}
			return app.print(listing.Apply(tickets, listing.Tickets, q))
		},
	}
	f.install(cmd, true)

	app.cmd.AddCommand(cmd)
}

func installAnnouncementsCmd(app *App) {
	var f listFlags

	cmd := &cobra.Command{
		Use:     "announcements",
		Short:   "List the announcements of the society",
		Args:    cobra.NoArgs,
		PreRunE: checkQuery(app, &f),
		RunE: func(cmd *cobra.Command, args []string) error {
			q, _ := f.query()
			c, p, err := app.client()
			if err != nil {
				return err
			}
			if p.SocietyID == "" && f.unit == "" {
				return errors.New("no society: set --society-id, a profile with a society, or --unit")
			}

			records, err := c.Call(cmd.Context(), gateway.AnnouncementGet, gateway.Args{"SocietyID": p.SocietyID, "UnitID": f.unit})
			if err != nil {
				return err
			}
			announcements, err := models.Decode[models.Announcement](records, models.WithCoercer(app.coercer()))
			if err != nil {
				slog.Warn("Some announcements could not be read", "error", err)
			}
			return app.print(listing.Apply(announcements, listing.Announcements, q))
		},
	}
	f.install(cmd, false)

	app.cmd.AddCommand(cmd)
}

// units fetches the units of user.
func (a *App) units(ctx context.Context, c *gateway.Client, user string) ([]models.Unit, error) {
	if user == "" {
		return nil, errNoUser
	}
	records, err := c.Call(ctx, gateway.UnitGet, gateway.Args{"UserID": user})
	if err != nil {
		return nil, err
	}
	units, err := models.Decode[models.Unit](records, models.WithCoercer(a.coercer()))
	if err != nil {
		slog.Warn("Some units could not be read", "error", err)
	}
	return units, nil
}

// unitClient returns a gateway client and the unit to work on: unit if set, or the first unit of the user.
func (a *App) unitClient(ctx context.Context, unit string) (*gateway.Client, string, error) {
	c, p, err := a.client()
	if err != nil {
		return nil, "", err
	}
	if unit != "" {
		return c, unit, nil
	}

	units, err := a.units(ctx, c, p.UserID)
	if err != nil {
		return nil, "", err
	}
	if len(units) == 0 {
		return nil, "", errors.New("no unit attached to the user")
	}
	slog.Debug("Using first unit of the user", "unit", units[0].ID)
	return c, units[0].ID, nil
}
