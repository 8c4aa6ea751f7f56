package commands

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"
	"github.com/ubuntu/societyhub/internal/temporal"
)

// dateReport is the result of coercing a date.
type dateReport struct {
	Input     string           `yaml:"input" json:"input"`
	TimeOfDay string           `yaml:"timeOfDay,omitempty" json:"timeOfDay,omitempty"`
	Absent    bool             `yaml:"absent" json:"absent"`
	Instant   temporal.Instant `yaml:"instant" json:"instant"`
	HasClock  bool             `yaml:"hasClock" json:"hasClock"`
	Display   string           `yaml:"display" json:"display"`
}

func installDateCmd(app *App) {
	var location string

	cmd := &cobra.Command{
		Use:   "date DATE [TIME]",
		Short: "Show how a gateway date is read",
		Long: `Show how a date returned by the gateway is read and displayed.

The optional TIME (HH:MM or HH:MM:SS) is merged into the date, like separate date and time
columns are. Use -vv to see which reading strategy matched.`,
		Example: `  societyhub date 15/01/2024
  societyhub date 2024-01-15T00:00:00.000Z
  societyhub date 2024-01-15 14:30 --location Asia/Kolkata`,
		Args: cobra.RangeArgs(1, 2),
		PreRunE: func(cmd *cobra.Command, args []string) error {
			if _, err := time.LoadLocation(location); err != nil {
				app.cmd.SilenceUsage = false
				return fmt.Errorf("invalid location %q: %v", location, err)
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			loc, err := time.LoadLocation(location)
			if err != nil {
				return err
			}
			c := temporal.New(temporal.WithLocation(loc), temporal.WithLogger(slog.Default()))

			r := dateReport{Input: args[0]}
			if len(args) > 1 {
				r.TimeOfDay = args[1]
			}
			in, ok := c.Parse(r.Input, args[1:]...)
			r.Absent = !ok
			r.Instant = in
			r.HasClock = in.HasClock
			r.Display = c.Display(in)

			return app.print(r)
		},
	}
	cmd.Flags().StringVar(&location, "location", "Local", "time zone of dates without one, as an IANA name")

	app.cmd.AddCommand(cmd)
}
