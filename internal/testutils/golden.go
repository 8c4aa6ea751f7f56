package testutils

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

// UpdateGoldenEnv is the environment variable which, when set, rewrites the golden files from the
// current results instead of comparing against them.
const UpdateGoldenEnv = "TESTS_UPDATE_GOLDEN"

type goldenOptions struct {
	path string
}

// GoldenOption overrides the golden file lookup.
type GoldenOption func(*goldenOptions)

// WithGoldenPath uses a specific golden file instead of the one derived from the test name.
func WithGoldenPath(path string) GoldenOption {
	return func(o *goldenOptions) {
		o.path = path
	}
}

// GoldenPath returns the golden file of the test: testdata/golden/<test name>, each subtest
// being a nested path element.
func GoldenPath(t *testing.T) string {
	t.Helper()

	parts := strings.Split(t.Name(), "/")
	for i, p := range parts {
		parts[i] = normalizeName(p)
	}
	return filepath.Join(append([]string{"testdata", "golden"}, parts...)...)
}

// LoadWithUpdateFromGolden returns the content of the golden file of the test.
// With TESTS_UPDATE_GOLDEN set, got is written to the golden file first.
func LoadWithUpdateFromGolden(t *testing.T, got string, opts ...GoldenOption) string {
	t.Helper()

	o := goldenOptions{path: GoldenPath(t)}
	for _, opt := range opts {
		opt(&o)
	}

	if os.Getenv(UpdateGoldenEnv) != "" {
		t.Logf("Updating golden file %s", o.path)
		require.NoError(t, os.MkdirAll(filepath.Dir(o.path), 0750), "Cannot create golden directory")
		require.NoError(t, os.WriteFile(o.path, []byte(got), 0600), "Cannot write golden file")
	}

	want, err := os.ReadFile(o.path)
	require.NoError(t, err, "Cannot load golden file %s", o.path)

	return strings.ReplaceAll(string(want), "\r\n", "\n")
}

// LoadWithUpdateFromGoldenYAML is LoadWithUpdateFromGolden for structured values. got is
// serialized to YAML, and the golden file is deserialized into a value of the same type, so
// that comparisons do not depend on the YAML layout.
func LoadWithUpdateFromGoldenYAML[T any](t *testing.T, got T, opts ...GoldenOption) T {
	t.Helper()

	data, err := yaml.Marshal(got)
	require.NoError(t, err, "Cannot serialize provided object")

	var want T
	require.NoError(t, yaml.Unmarshal([]byte(LoadWithUpdateFromGolden(t, string(data), opts...)), &want), "Cannot deserialize golden file")

	return want
}

// normalizeName replaces characters which are awkward in file names.
func normalizeName(name string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case ' ', ':', '\\', '*', '?', '"', '<', '>', '|', '\'':
			return '_'
		}
		return r
	}, name)
}
