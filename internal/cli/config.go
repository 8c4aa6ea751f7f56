// Package cli provides the logging and configuration plumbing shared by the societyhub commands.
package cli

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// InitViperConfig loads the configuration file, if any, and binds the prefixed environment variables for a command.
//
// The configuration file is either the one given by --config, or cmdName.{yaml,toml,json} found in the
// working directory, the system configuration directories or next to the binary.
func InitViperConfig(cmdName string, cmd *cobra.Command, vip *viper.Viper) error {
	if v, err := cmd.Flags().GetString("config"); err == nil && v != "" {
		vip.SetConfigFile(v)
	} else {
		vip.SetConfigName(cmdName)
		vip.AddConfigPath(".")

		if runtime.GOOS == "windows" {
			vip.AddConfigPath("C:\\ProgramData\\" + cmdName)
		} else {
			vip.AddConfigPath("/etc/" + cmdName)
			vip.AddConfigPath("/usr/local/etc/" + cmdName)
		}

		if binPath, err := os.Executable(); err != nil {
			slog.Warn("Failed to get current executable path, not adding it as a config dir", "error", err)
		} else {
			vip.AddConfigPath(filepath.Dir(binPath))
		}
	}
	if err := vip.ReadInConfig(); err != nil {
		var e viper.ConfigFileNotFoundError
		if !errors.As(err, &e) {
			return fmt.Errorf("invalid configuration file: %w", err)
		}
		slog.Info("No configuration file, using defaults, environment variables and flags only")
	} else {
		slog.Info("Using configuration file", "file", vip.ConfigFileUsed())
	}

	vip.SetEnvPrefix(cmdName)
	vip.AutomaticEnv()

	// AutomaticEnv only applies to keys viper already knows about. Bind every prefixed
	// variable explicitly so nested keys can be unmarshalled into structs too.
	prefix := strings.ToUpper(strings.ReplaceAll(cmdName, "-", "_")) + "_"
	for _, e := range os.Environ() {
		if !strings.HasPrefix(e, prefix) {
			continue
		}

		s := strings.SplitN(e, "=", 2)
		k := strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s[0], prefix)), "_", ".")
		if err := vip.BindEnv(k, s[0]); err != nil {
			return fmt.Errorf("could not bind environment variable: %w", err)
		}
	}

	return nil
}

// WatchConfig calls onChange each time the configuration file in use is written.
// It is a no-op when no configuration file was loaded.
func WatchConfig(vip *viper.Viper, onChange func()) {
	if vip.ConfigFileUsed() == "" {
		slog.Debug("No configuration file to watch")
		return
	}

	vip.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}
		slog.Info("Configuration file changed", "file", e.Name, "op", e.Op.String())
		onChange()
	})
	vip.WatchConfig()
}

// InstallConfigFlag adds a config flag to the command.
func InstallConfigFlag(cmd *cobra.Command) *string {
	return cmd.PersistentFlags().String("config", "", "use a specific configuration file")
}
