package commands

import (
	"context"
	"errors"

	"github.com/spf13/cobra"
	"github.com/ubuntu/societyhub/internal/onboarding"
)

func (a *App) submitter() (onboarding.Submitter, error) {
	c, p, err := a.client()
	if err != nil {
		return onboarding.Submitter{}, err
	}
	if err := requireUser(p); err != nil {
		return onboarding.Submitter{}, err
	}
	return onboarding.New(c, p.UserID, onboarding.WithCoercer(a.coercer())), nil
}

// submit runs f with a submitter and prints its result. Rejected forms are usage errors.
func (a *App) submit(ctx context.Context, f func(context.Context, onboarding.Submitter) (onboarding.Result, error)) error {
	s, err := a.submitter()
	if err != nil {
		return err
	}
	res, err := f(ctx, s)
	if errors.Is(err, onboarding.ErrValidation) {
		a.cmd.SilenceUsage = false
	}
	if err != nil {
		return err
	}
	return a.print(res)
}

func installPersonFlags(cmd *cobra.Command, p *onboarding.Person) {
	cmd.Flags().StringVarP(&p.UnitID, "unit", "u", "", "unit of the new resident (required)")
	cmd.Flags().StringVar(&p.FirstName, "first-name", "", "first name (required)")
	cmd.Flags().StringVar(&p.LastName, "last-name", "", "last name")
	cmd.Flags().StringVar(&p.Mobile, "mobile", "", "mobile phone number, 10 to 15 digits")
	cmd.Flags().StringVar(&p.Email, "email", "", "email address")
}

func installOnboardCmd(app *App) {
	cmd := &cobra.Command{
		Use:   "onboard",
		Short: "Add an owner, tenant or occupant to a unit",
		Args:  cobra.NoArgs,
	}

	var owner onboarding.OwnerRequest
	ownerCmd := &cobra.Command{
		Use:   "owner",
		Short: "Add an owner to a unit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.submit(cmd.Context(), func(ctx context.Context, s onboarding.Submitter) (onboarding.Result, error) {
				return s.AddOwner(ctx, owner)
			})
		},
	}
	installPersonFlags(ownerCmd, &owner.Person)
	ownerCmd.Flags().StringVar(&owner.OwnershipDate, "ownership-date", "", "date the unit was acquired")
	ownerCmd.Flags().BoolVar(&owner.IsResiding, "residing", false, "the owner lives in the unit")

	var tenant onboarding.TenantRequest
	tenantCmd := &cobra.Command{
		Use:   "tenant",
		Short: "Add a tenant to a unit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.submit(cmd.Context(), func(ctx context.Context, s onboarding.Submitter) (onboarding.Result, error) {
				return s.AddTenant(ctx, tenant)
			})
		},
	}
	installPersonFlags(tenantCmd, &tenant.Person)
	tenantCmd.Flags().StringVar(&tenant.LeaseStart, "lease-start", "", "first day of the lease (required)")
	tenantCmd.Flags().StringVar(&tenant.LeaseEnd, "lease-end", "", "last day of the lease")
	tenantCmd.Flags().Float64Var(&tenant.MonthlyRent, "rent", 0, "monthly rent")

	var occupant onboarding.OccupantRequest
	occupantCmd := &cobra.Command{
		Use:   "occupant",
		Short: "Add an occupant, like a family member, to a unit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.submit(cmd.Context(), func(ctx context.Context, s onboarding.Submitter) (onboarding.Result, error) {
				return s.AddOccupant(ctx, occupant)
			})
		},
	}
	installPersonFlags(occupantCmd, &occupant.Person)
	occupantCmd.Flags().StringVar(&occupant.Relation, "relation", "", "relation to the owner or tenant")
	occupantCmd.Flags().StringVar(&occupant.DateOfBirth, "dob", "", "date of birth")

	cmd.AddCommand(ownerCmd, tenantCmd, occupantCmd)
	app.cmd.AddCommand(cmd)
}

func installTicketCmd(app *App) {
	cmd := &cobra.Command{
		Use:   "ticket",
		Short: "Manage help-desk tickets",
		Args:  cobra.NoArgs,
	}

	var req onboarding.TicketRequest
	raiseCmd := &cobra.Command{
		Use:   "raise",
		Short: "Raise a help-desk ticket",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.submit(cmd.Context(), func(ctx context.Context, s onboarding.Submitter) (onboarding.Result, error) {
				return s.RaiseTicket(ctx, req)
			})
		},
	}
	raiseCmd.Flags().StringVarP(&req.UnitID, "unit", "u", "", "unit the ticket is about (required)")
	raiseCmd.Flags().StringVarP(&req.Category, "category", "c", "", "ticket category, like Plumbing or Electrical (required)")
	raiseCmd.Flags().StringVarP(&req.Subject, "subject", "s", "", "short summary of the issue (required)")
	raiseCmd.Flags().StringVarP(&req.Description, "description", "d", "", "details of the issue")
	raiseCmd.Flags().StringVar(&req.Priority, "priority", "", "Low, Medium or High (default Medium)")

	cmd.AddCommand(raiseCmd)
	app.cmd.AddCommand(cmd)
}
