package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

func installProfileCmd(app *App) {
	cmd := &cobra.Command{
		Use:   "profile",
		Short: "Manage gateway profiles",
		Long: `Manage gateway profiles.

A profile saves the gateway address and keys of a society together with the signed in user, so
that they do not have to be given on each call. Select a profile with --profile.`,
		Args: cobra.NoArgs,
	}

	setCmd := &cobra.Command{
		Use:   "set [NAME]",
		Short: "Save the current gateway settings as a profile",
		Long: `Save the current gateway settings as a profile, replacing it if it exists.

The settings are the ones of the selected profile, overridden by the configuration file, the
environment and the flags. NAME defaults to the selected profile.`,
		Example: `  societyhub profile set greenpark --gateway-url https://gw.example.com/api/rest/Invoke \
    --auth-key KEY --host-key GREENPARK --user-id 5 --society-id 3`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := app.config.Profile
			if len(args) > 0 {
				name = args[0]
			}
			p, err := app.resolve()
			if err != nil {
				return err
			}
			if err := app.profiles().Set(name, p); err != nil {
				return err
			}
			_, err = fmt.Fprintf(app.out(), "Profile %q saved\n", name)
			return err
		},
	}

	var showSecrets bool
	getCmd := &cobra.Command{
		Use:   "get [NAME]",
		Short: "Show a profile",
		Long:  "Show a profile. NAME defaults to the selected profile. Keys are masked unless --show-secrets is set.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := app.config.Profile
			if len(args) > 0 {
				name = args[0]
			}
			p, err := app.profiles().Get(name)
			if err != nil {
				return err
			}
			if !showSecrets {
				p = p.Redacted()
			}
			return app.print(p)
		},
	}
	getCmd.Flags().BoolVar(&showSecrets, "show-secrets", false, "show the gateway keys")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List the saved profiles",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			names, err := app.profiles().List()
			if err != nil {
				return err
			}
			if names == nil {
				names = []string{}
			}
			return app.print(names)
		},
	}

	cmd.AddCommand(setCmd, getCmd, listCmd)
	app.cmd.AddCommand(cmd)
}
