// Package commands implements the societyhub command line.
package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/ubuntu/societyhub/internal/cli"
	"github.com/ubuntu/societyhub/internal/constants"
	"github.com/ubuntu/societyhub/internal/dashboard"
	"github.com/ubuntu/societyhub/internal/gateway"
	"github.com/ubuntu/societyhub/internal/profile"
	"github.com/ubuntu/societyhub/internal/temporal"
)

// App represents the application.
type App struct {
	cmd    *cobra.Command
	viper  *viper.Viper
	config appConfig

	configDir string

	ctx    context.Context
	cancel context.CancelFunc

	// registry is set when the gateway calls are instrumented.
	registry *prometheus.Registry
}

// appConfig holds the configuration for the application.
type appConfig struct {
	Verbosity int    `mapstructure:"verbose"`
	JSONLogs  bool   `mapstructure:"json-logs"`
	Profile   string `mapstructure:"profile"`
	Format    string `mapstructure:"format"`

	Gateway   gateway.Config `mapstructure:"gateway"`
	SocietyID string         `mapstructure:"societyid"`
	UserID    string         `mapstructure:"userid"`
}

type options struct {
	configDir string
}

// Options overrides an App default.
type Options func(*options)

// New creates a new App instance with default values.
func New(args ...Options) (*App, error) {
	opts := options{configDir: constants.GetDefaultConfigPath()}
	for _, opt := range args {
		opt(&opts)
	}

	a := App{configDir: opts.configDir}
	a.ctx, a.cancel = context.WithCancel(context.Background())

	a.cmd = &cobra.Command{
		Use:   constants.CmdName,
		Short: "Residential society companion",
		Long: `Residential society companion for residents and owners.

It talks to the society management gateway to show the dashboard of a unit, list its members,
tickets and announcements, onboard new residents and raise help-desk tickets.`,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// Command parsing has been successful. Returns to not print usage anymore.
			a.cmd.SilenceUsage = true
			cli.SetSlog(a.config.Verbosity, a.config.JSONLogs) // Set verbosity before loading config
			if err := cli.InitViperConfig(constants.CmdName, a.cmd, a.viper); err != nil {
				return err
			}
			if err := a.viper.Unmarshal(&a.config); err != nil {
				return fmt.Errorf("unable to decode configuration into struct: %w", err)
			}
			cli.SetSlog(a.config.Verbosity, a.config.JSONLogs) // Update logging after loading config if necessary

			if err := checkFormat(a.config.Format); err != nil {
				a.cmd.SilenceUsage = false
				return err
			}
			slog.Debug("Got app config", "profile", a.config.Profile, "url", a.config.Gateway.URL, "format", a.config.Format)
			return nil
		},
	}
	a.viper = viper.New()
	a.cmd.CompletionOptions.HiddenDefaultCmd = true

	if err := installRootFlags(&a); err != nil {
		return nil, err
	}
	cli.InstallConfigFlag(a.cmd)

	installInvokeCmd(&a)
	installDashboardCmd(&a)
	installListCmds(&a)
	installOnboardCmd(&a)
	installTicketCmd(&a)
	installProfileCmd(&a)
	installDateCmd(&a)
	a.installVersion()

	return &a, nil
}

func installRootFlags(app *App) error {
	flags := app.cmd.PersistentFlags()

	flags.CountVarP(&app.config.Verbosity, "verbose", "v", "issue INFO (-v), DEBUG (-vv)")
	flags.BoolVar(&app.config.JSONLogs, "json-logs", false, "enable JSON formatted logs")
	flags.StringVar(&app.config.Profile, "profile", constants.DefaultProfile, "gateway profile to use")
	flags.StringVarP(&app.config.Format, "format", "f", formatYAML, "output format (yaml or json)")

	flags.String("gateway-url", "", "address of the gateway Invoke endpoint, overrides the profile")
	flags.String("auth-key", "", "gateway application key, overrides the profile")
	flags.String("host-key", "", "gateway society key, overrides the profile")
	flags.Duration("timeout", 0, "time allowed for each gateway call (default 15s)")
	flags.Float64("rate-limit", 0, "maximum gateway calls per second, 0 for unlimited")
	flags.String("society-id", "", "society of the signed in user, overrides the profile")
	flags.String("user-id", "", "signed in user, overrides the profile")

	if err := app.viper.BindPFlags(flags); err != nil {
		return err
	}
	for key, flag := range map[string]string{
		"gateway.url":       "gateway-url",
		"gateway.authkey":   "auth-key",
		"gateway.hostkey":   "host-key",
		"gateway.timeout":   "timeout",
		"gateway.ratelimit": "rate-limit",
		"societyid":         "society-id",
		"userid":            "user-id",
	} {
		if err := app.viper.BindPFlag(key, flags.Lookup(flag)); err != nil {
			return err
		}
	}
	return nil
}

// Run executes the command and associated process, returning an error if any.
// A command interrupted by Quit is not an error.
func (a *App) Run() error {
	err := a.cmd.ExecuteContext(a.ctx)
	if err != nil && a.ctx.Err() != nil && canceled(err) {
		slog.Info("Command canceled", "error", err)
		return nil
	}
	return err
}

func canceled(err error) bool {
	return errors.Is(err, gateway.ErrCanceled) || errors.Is(err, dashboard.ErrSuperseded) || errors.Is(err, context.Canceled)
}

// UsageError returns if the error is a command parsing or runtime one.
func (a *App) UsageError() bool {
	return !a.cmd.SilenceUsage
}

// Quit stops the running command.
func (a *App) Quit() {
	a.cancel()
}

// profiles returns the profile store of the application.
func (a *App) profiles() *profile.Store {
	return profile.New(filepath.Join(a.configDir, "profiles"))
}

// resolve merges the selected profile with the configuration: any gateway setting given in a
// configuration file, the environment or a flag wins over the profile.
func (a *App) resolve() (profile.Profile, error) {
	p, err := a.profiles().Get(a.config.Profile)
	if errors.Is(err, profile.ErrNotFound) && a.config.Profile == constants.DefaultProfile {
		slog.Debug("No default profile, using configuration only")
		err = nil
	}
	if err != nil {
		return profile.Profile{}, err
	}

	c := a.config
	overrides := []struct {
		dst *string
		src string
	}{
		{&p.Gateway.URL, c.Gateway.URL},
		{&p.Gateway.AuthKey, c.Gateway.AuthKey},
		{&p.Gateway.HostKey, c.Gateway.HostKey},
		{&p.SocietyID, c.SocietyID},
		{&p.UserID, c.UserID},
	}
	for _, o := range overrides {
		if o.src != "" {
			*o.dst = o.src
		}
	}
	if c.Gateway.Timeout != 0 {
		p.Gateway.Timeout = c.Gateway.Timeout
	}
	if c.Gateway.RateLimit != 0 {
		p.Gateway.RateLimit = c.Gateway.RateLimit
	}

	return p, nil
}

// client returns a gateway client for the resolved profile.
func (a *App) client() (*gateway.Client, profile.Profile, error) {
	p, err := a.resolve()
	if err != nil {
		return nil, profile.Profile{}, err
	}

	var opts []gateway.Option
	if a.registry != nil {
		opts = append(opts, gateway.WithRegisterer(a.registry))
	}

	c, err := gateway.New(p.Gateway, opts...)
	if err != nil {
		return nil, profile.Profile{}, fmt.Errorf("%w: set it with flags, the environment or a profile (see %s profile set)", err, constants.CmdName)
	}
	return c, p, nil
}

var errNoUser = errors.New("no signed in user: set --user-id or a profile with a user")

// requireUser returns an error when no user is configured.
func requireUser(p profile.Profile) error {
	if p.UserID == "" {
		return errNoUser
	}
	return nil
}

// coercer returns the date coercer of the application, working in the local time zone.
func (a *App) coercer() temporal.Coercer {
	return temporal.New(temporal.WithLogger(slog.Default()))
}

func (a *App) out() io.Writer {
	return a.cmd.OutOrStdout()
}
