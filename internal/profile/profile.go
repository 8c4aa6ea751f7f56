// Package profile stores the named connection profiles of the application.
//
// A profile holds the gateway configuration of a society and the identity of the signed in
// user. Each profile is a TOML file in the profiles folder, named after the profile.
package profile

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/ubuntu/decorate"
	"github.com/ubuntu/societyhub/internal/constants"
	"github.com/ubuntu/societyhub/internal/fileutils"
	"github.com/ubuntu/societyhub/internal/gateway"
)

var (
	// ErrNotFound is returned when reading a profile which was never set.
	ErrNotFound = errors.New("profile not found")
	// ErrInvalidName is returned for profile names which cannot be file names.
	ErrInvalidName = errors.New("invalid profile name")
)

var validName = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]*$`)

// Profile is a saved connection to a society.
type Profile struct {
	Gateway   gateway.Config `toml:"gateway" yaml:"gateway" json:"gateway"`
	SocietyID string         `toml:"society_id,omitempty" yaml:"societyId,omitempty" json:"societyId,omitempty"`
	UserID    string         `toml:"user_id,omitempty" yaml:"userId,omitempty" json:"userId,omitempty"`
}

// Redacted returns a copy of p with its credentials masked, for display.
func (p Profile) Redacted() Profile {
	p.Gateway.AuthKey = redact(p.Gateway.AuthKey)
	p.Gateway.HostKey = redact(p.Gateway.HostKey)
	return p
}

func redact(s string) string {
	if len(s) <= 4 {
		return strings.Repeat("*", len(s))
	}
	return s[:2] + strings.Repeat("*", len(s)-4) + s[len(s)-2:]
}

// Store manages the profile files of a folder.
type Store struct {
	path string
}

// New returns a Store of the profiles in path.
func New(path string) *Store {
	return &Store{path: path}
}

// Get reads the profile name.
func (s Store) Get(name string) (p Profile, err error) {
	defer decorate.OnError(&err, "could not read profile %q", name)

	path, err := s.file(name)
	if err != nil {
		return Profile{}, err
	}

	md, err := toml.DecodeFile(path, &p)
	if errors.Is(err, fs.ErrNotExist) {
		return Profile{}, ErrNotFound
	}
	if err != nil {
		return Profile{}, err
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		slog.Warn("Ignoring unknown profile keys", "profile", name, "keys", undecoded)
	}
	slog.Debug("Read profile", "profile", name, "url", p.Gateway.URL)

	return p, nil
}

// Set writes the profile name, replacing it if it exists.
// Profiles hold credentials: files are only readable by their owner.
func (s Store) Set(name string, p Profile) (err error) {
	defer decorate.OnError(&err, "could not set profile %q", name)

	path, err := s.file(name)
	if err != nil {
		return err
	}
	if err := p.Gateway.Validate(); err != nil {
		return err
	}

	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(p); err != nil {
		return fmt.Errorf("could not encode profile: %v", err)
	}
	if err := fileutils.AtomicWrite(path, buf.Bytes(), 0o600); err != nil {
		return err
	}
	slog.Info("Saved profile", "profile", name, "file", path)

	return nil
}

// List returns the names of the stored profiles, sorted.
// A missing profiles folder has no profile.
func (s Store) List() (names []string, err error) {
	defer decorate.OnError(&err, "could not list profiles")

	entries, err := os.ReadDir(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name, ok := strings.CutSuffix(entry.Name(), constants.ProfileExtension)
		if !ok || !validName.MatchString(name) {
			continue
		}
		names = append(names, name)
	}
	slices.Sort(names)

	return names, nil
}

// file returns the path of the profile name. It does not check whether the file exists.
func (s Store) file(name string) (string, error) {
	if !validName.MatchString(name) {
		return "", fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return filepath.Join(s.path, name+constants.ProfileExtension), nil
}
