// Package constants is responsible for defining the constants used in the application.
// It also provides utility functions to get the default configuration path.
package constants

import (
	"log/slog"
	"os"
	"path/filepath"
	"time"
)

const (
	// CmdName is the name of the command line tool.
	CmdName = "societyhub"

	// DefaultAppFolder is the name of the default root folder.
	DefaultAppFolder = "societyhub"

	// DefaultLogLevel is the default log level selected without any verbosity flags.
	DefaultLogLevel = slog.LevelWarn

	// DefaultProfile is the name of the gateway profile used when none is selected.
	DefaultProfile = "default"

	// ProfileExtension is the extension of the gateway profile files.
	ProfileExtension = ".toml"

	// DefaultTimeout is the time allowed for a single gateway round trip.
	DefaultTimeout = 15 * time.Second

	// NullValue is how the gateway spells an absent parameter or field.
	NullValue = "NULL"
)

var (
	// Version is the version of the application, set at build time.
	Version = "Dev"
)

type options struct {
	baseDir func() (string, error)
}

type option func(*options)

// GetDefaultConfigPath is the default path to the configuration folder, holding the gateway profiles.
func GetDefaultConfigPath(opts ...option) string {
	o := options{baseDir: os.UserConfigDir}
	for _, opt := range opts {
		opt(&o)
	}

	return filepath.Join(getBaseDir(o.baseDir), DefaultAppFolder)
}

// getBaseDir is a helper function to handle the case where the baseDir function returns an error, and instead return an empty string.
func getBaseDir(baseDirFunc func() (string, error)) string {
	dir, err := baseDirFunc()
	if err != nil {
		return ""
	}
	return dir
}
