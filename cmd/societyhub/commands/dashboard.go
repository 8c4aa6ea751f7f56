package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/ubuntu/societyhub/internal/cli"
	"github.com/ubuntu/societyhub/internal/dashboard"
	"github.com/ubuntu/societyhub/internal/metrics"
)

type dashboardConfig struct {
	unit        string
	watch       time.Duration
	metricsHost string
	metricsPort int
}

func installDashboardCmd(app *App) {
	var cfg dashboardConfig

	cmd := &cobra.Command{
		Use:   "dashboard",
		Short: "Show the dashboard of a unit",
		Long: `Show the dashboard of a unit: its details, recent visitors, help-desk tickets and the
society announcements.

Sections failing to load are reported in place and do not fail the command. With --watch, the
dashboard is reloaded periodically and whenever the configuration file changes.`,
		Args: cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, args []string) error {
			if cfg.watch < 0 {
				app.cmd.SilenceUsage = false
				return fmt.Errorf("watch interval cannot be negative")
			}
			if cfg.metricsPort != 0 && cfg.watch == 0 {
				app.cmd.SilenceUsage = false
				return fmt.Errorf("--metrics-port requires --watch")
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			if cfg.watch > 0 {
				return app.watchDashboard(cmd.Context(), cfg)
			}

			l, err := app.loader()
			if err != nil {
				return err
			}
			d, err := l.Load(cmd.Context(), cfg.unit)
			if err != nil {
				return err
			}
			return app.print(d)
		},
	}

	cmd.Flags().StringVarP(&cfg.unit, "unit", "u", "", "unit to show, defaults to the first unit of the user")
	cmd.Flags().DurationVarP(&cfg.watch, "watch", "w", 0, "reload the dashboard at this interval")
	cmd.Flags().StringVar(&cfg.metricsHost, "metrics-host", "", "host for the metrics endpoint in watch mode")
	cmd.Flags().IntVar(&cfg.metricsPort, "metrics-port", 0, "port for the metrics endpoint in watch mode, disabled when 0")

	app.cmd.AddCommand(cmd)
}

func (a *App) loader() (*dashboard.Loader, error) {
	c, p, err := a.client()
	if err != nil {
		return nil, err
	}
	if err := requireUser(p); err != nil {
		return nil, err
	}
	return dashboard.New(c, dashboard.Session{UserID: p.UserID, SocietyID: p.SocietyID}, dashboard.WithCoercer(a.coercer())), nil
}

// watchDashboard reloads and prints the dashboard every interval until ctx is done.
func (a *App) watchDashboard(ctx context.Context, cfg dashboardConfig) (err error) {
	var recorder *metrics.LoadRecorder
	if cfg.metricsPort != 0 {
		a.registry = metrics.NewRegistry()
		if recorder, err = metrics.NewLoadRecorder(a.registry); err != nil {
			return err
		}
		s := metrics.NewServer(metrics.Config{Host: cfg.metricsHost, Port: cfg.metricsPort}, a.registry)
		if err := s.Start(); err != nil {
			return err
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if e := s.Shutdown(shutdownCtx); e != nil {
				slog.Warn("Could not stop metrics server", "error", e)
			}
		}()
	}

	l, err := a.loader()
	if err != nil {
		return err
	}

	reload := watchConfig(a.viper)

	ticker := time.NewTicker(cfg.watch)
	defer ticker.Stop()

	unit := cfg.unit
	for {
		start := time.Now()
		d, err := l.Load(ctx, unit)
		if recorder != nil {
			recorder.Observe(d, err, time.Since(start))
		}
		switch {
		case ctx.Err() != nil:
			slog.Info("Stopped watching dashboard")
			return nil
		case errors.Is(err, dashboard.ErrUnknownUnit):
			return err
		case err != nil:
			slog.Error("Could not load dashboard, will retry", "error", err)
		default:
			if d.Selected != nil {
				// Keep the unit stable if the order of the units changes.
				unit = d.Selected.ID
			}
			if a.config.Format == formatYAML {
				if _, err := fmt.Fprintln(a.out(), "---"); err != nil {
					return err
				}
			}
			if err := a.print(d); err != nil {
				return err
			}
		}

		select {
		case <-ctx.Done():
			l.Cancel()
			slog.Info("Stopped watching dashboard")
			return nil
		case <-ticker.C:
		case next := <-reload:
			prev := a.config
			a.config = next
			nl, err := a.loader()
			if err != nil {
				a.config = prev
				slog.Error("Could not apply new configuration, keeping the previous one", "error", err)
				continue
			}
			slog.Info("Applied new configuration")
			l.Cancel()
			l = nl
		}
	}
}

// watchConfig returns the configurations read each time the configuration file changes.
// Only the latest one is kept until received. The configuration is decoded on the viper
// watcher goroutine, the only one using vip after this call.
func watchConfig(vip *viper.Viper) <-chan appConfig {
	reload := make(chan appConfig, 1)
	cli.WatchConfig(vip, func() {
		var cfg appConfig
		if err := vip.Unmarshal(&cfg); err != nil {
			slog.Error("Could not reload configuration, keeping the previous one", "error", err)
			return
		}
		select {
		case <-reload:
		default:
		}
		reload <- cfg
	})
	return reload
}
