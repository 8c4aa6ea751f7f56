// Package testutils provides helper functions for testing
package testutils

import (
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"
)

// FlagCase describes a flag expected on a command.
type FlagCase struct {
	Name       string
	Short      string
	Default    string
	Persistent bool
	Hidden     bool
}

// RequireFlag checks that cmd carries the flag described by want.
func RequireFlag(t *testing.T, cmd *cobra.Command, want FlagCase) {
	t.Helper()

	flags := cmd.Flags()
	if want.Persistent {
		flags = cmd.PersistentFlags()
	}
	flag := flags.Lookup(want.Name)
	require.NotNil(t, flag, "Flag %q should be installed", want.Name)
	require.Equal(t, want.Short, flag.Shorthand, "Unexpected shorthand for %q", want.Name)
	require.Equal(t, want.Default, flag.DefValue, "Unexpected default for %q", want.Name)
	require.Equal(t, want.Hidden, flag.Hidden, "Unexpected visibility for %q", want.Name)
}
