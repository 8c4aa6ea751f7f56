package profile_test

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/ubuntu/societyhub/internal/gateway"
	"github.com/ubuntu/societyhub/internal/profile"
)

var greenPark = profile.Profile{
	Gateway: gateway.Config{
		URL:       "https://greenpark.example.com/api/rest/Invoke",
		AuthKey:   "auth-secret",
		HostKey:   "GREENPARK",
		Timeout:   20 * time.Second,
		RateLimit: 2.5,
	},
	SocietyID: "3",
	UserID:    "5",
}

func TestSetGet(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		name    string
		profile profile.Profile
		exists  bool

		wantSetErr error
	}{
		"New profile":        {name: "default", profile: greenPark},
		"Replace profile":    {name: "default", profile: greenPark, exists: true},
		"Dotted name":        {name: "green.park-2", profile: greenPark},
		"Without identity":   {name: "guest", profile: profile.Profile{Gateway: greenPark.Gateway}},
		"Path in name":       {name: "../escape", profile: greenPark, wantSetErr: profile.ErrInvalidName},
		"Empty name":         {name: "", profile: greenPark, wantSetErr: profile.ErrInvalidName},
		"Hidden name":        {name: ".hidden", profile: greenPark, wantSetErr: profile.ErrInvalidName},
		"Incomplete gateway": {name: "default", profile: profile.Profile{UserID: "5"}, wantSetErr: gateway.ErrInvalidConfig},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			dir := filepath.Join(t.TempDir(), "profiles")
			s := profile.New(dir)
			if tc.exists {
				old := greenPark
				old.UserID = "old"
				require.NoError(t, s.Set(tc.name, old), "Setup: could not write existing profile")
			}

			err := s.Set(tc.name, tc.profile)
			if tc.wantSetErr != nil {
				require.ErrorIs(t, err, tc.wantSetErr)
				_, err = s.Get(tc.name)
				require.Error(t, err, "Get should fail after a failed Set")
				return
			}
			require.NoError(t, err)

			got, err := s.Get(tc.name)
			require.NoError(t, err)
			require.Equal(t, tc.profile, got, "Get should return what was set")

			if runtime.GOOS == "windows" {
				return
			}
			info, err := os.Stat(filepath.Join(dir, tc.name+".toml"))
			require.NoError(t, err)
			require.Equal(t, os.FileMode(0o600), info.Mode().Perm(), "Profiles should only be readable by their owner")
		})
	}
}

func TestGet(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		content string

		want       profile.Profile
		wantErr    error
		wantAnyErr bool
	}{
		"Hand written profile": {
			content: `society_id = "3"
user_id = "5"
unknown = true

[gateway]
url = "https://greenpark.example.com/api/rest/Invoke"
auth_key = "auth-secret"
host_key = "GREENPARK"
`,
			want: profile.Profile{
				Gateway:   gateway.Config{URL: "https://greenpark.example.com/api/rest/Invoke", AuthKey: "auth-secret", HostKey: "GREENPARK"},
				SocietyID: "3",
				UserID:    "5",
			},
		},

		"Missing profile": {wantErr: profile.ErrNotFound},
		"Invalid TOML":    {content: "[gateway\nurl=", wantAnyErr: true},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			dir := t.TempDir()
			if tc.content != "" {
				require.NoError(t, os.WriteFile(filepath.Join(dir, "default.toml"), []byte(tc.content), 0o600), "Setup: could not write profile")
			}

			got, err := profile.New(dir).Get("default")
			if tc.wantErr != nil {
				require.ErrorIs(t, err, tc.wantErr)
				return
			}
			if tc.wantAnyErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tc.want, got)
		})
	}
}

func TestList(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		files   []string
		dirs    []string
		missing bool

		want []string
	}{
		"Profiles are sorted":       {files: []string{"work.toml", "default.toml", "Annex.toml"}, want: []string{"Annex", "default", "work"}},
		"Other files are ignored":   {files: []string{"default.toml", "notes.txt", ".default.toml-123.tmp", ".hidden.toml"}, want: []string{"default"}},
		"Directories are ignored":   {files: []string{"default.toml"}, dirs: []string{"old.toml"}, want: []string{"default"}},
		"Empty folder":              {want: nil},
		"Missing folder is no list": {missing: true, want: nil},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			dir := t.TempDir()
			if tc.missing {
				dir = filepath.Join(dir, "missing")
			}
			for _, f := range tc.files {
				require.NoError(t, os.WriteFile(filepath.Join(dir, f), nil, 0o600), "Setup: could not write file")
			}
			for _, d := range tc.dirs {
				require.NoError(t, os.Mkdir(filepath.Join(dir, d), 0o700), "Setup: could not create dir")
			}

			got, err := profile.New(dir).List()
			require.NoError(t, err)
			require.Equal(t, tc.want, got)
		})
	}
}

func TestRedacted(t *testing.T) {
	t.Parallel()

	got := greenPark.Redacted()
	require.Equal(t, "au*******et", got.Gateway.AuthKey)
	require.Equal(t, "GR*****RK", got.Gateway.HostKey)
	require.Equal(t, greenPark.Gateway.URL, got.Gateway.URL)
	require.Equal(t, "auth-secret", greenPark.Gateway.AuthKey, "Original profile should be untouched")

	short := profile.Profile{Gateway: gateway.Config{AuthKey: "abc"}}.Redacted()
	require.Equal(t, "***", short.Gateway.AuthKey)
}
