package commands

import (
	"io"

	"github.com/spf13/cobra"
)

type (
	AppConfig = appConfig
)

// WithConfigDir sets the folder holding the profiles.
func WithConfigDir(dir string) Options {
	return func(o *options) {
		o.configDir = dir
	}
}

// SetArgs sets the arguments for the command.
func (a *App) SetArgs(args ...string) {
	a.cmd.SetArgs(args)
}

// Config returns the configuration of the app.
func (a *App) Config() AppConfig {
	return a.config
}

// SetOutput redirects the output of the commands.
func (a *App) SetOutput(w io.Writer) {
	a.cmd.SetOut(w)
	a.cmd.SetErr(io.Discard)
}

// Command returns the command found at path, the root command for an empty path.
func (a *App) Command(path ...string) *cobra.Command {
	cmd, _, err := a.cmd.Find(path)
	if err != nil {
		return nil
	}
	return cmd
}
