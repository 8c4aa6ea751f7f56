package commands

import (
	"github.com/spf13/cobra"
	"github.com/ubuntu/societyhub/internal/gateway"
)

func installInvokeCmd(app *App) {
	var params []string
	var raw bool

	cmd := &cobra.Command{
		Use:   "invoke OBJECT",
		Short: "Call a stored procedure",
		Long: `Call a stored procedure of the gateway and print the rows of its answer.

Parameters are given in order with --param name=value. The leading @ of the name is optional,
an empty value is sent as NULL.`,
		Example: `  societyhub invoke UNM_SP_Unit_Get --param UserID=5 --param UnitID=`,
		Args:    cobra.ExactArgs(1),
		PreRunE: func(cmd *cobra.Command, args []string) error {
			if _, err := gateway.ParseValues(params); err != nil {
				app.cmd.SilenceUsage = false
				return err
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			values, err := gateway.ParseValues(params)
			if err != nil {
				return err
			}
			c, _, err := app.client()
			if err != nil {
				return err
			}

			if raw {
				body, err := c.InvokeRaw(cmd.Context(), args[0], values)
				if err != nil {
					return err
				}
				_, err = app.out().Write(append(body, '\n'))
				return err
			}

			records, err := c.Invoke(cmd.Context(), args[0], values)
			if err != nil {
				return err
			}
			return app.print(records)
		},
	}

	cmd.Flags().StringArrayVarP(&params, "param", "p", nil, "stored procedure parameter as name=value, repeatable")
	cmd.Flags().BoolVar(&raw, "raw", false, "print the answer of the gateway as is")

	app.cmd.AddCommand(cmd)
}
