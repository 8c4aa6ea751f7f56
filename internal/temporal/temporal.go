// Package temporal coerces the date and time strings returned by the gateway.
//
// The gateway is not consistent: the same column may come back as 2024-01-15, 15/01/2024,
// 20240115 or 2024-01-15T00:00:00.000Z depending on the stored procedure, and "no date" is
// spelled NULL, 0000-00-00, 1900-01-01 or 0001-01-01. The coercion never fails: anything it
// cannot read is absent.
package temporal

import (
	"log/slog"
	"strings"
	"time"
)

const (
	// minYear and maxYear bound the years accepted from any strategy.
	minYear = 1900
	maxYear = 2100

	dateLayout     = "Jan 2, 2006"
	dateTimeLayout = "Jan 2, 2006, 3:04 PM"
)

// sentinels are the gateway spellings of "no date", compared case-insensitively.
var sentinels = map[string]struct{}{
	"":           {},
	"null":       {},
	"0000-00-00": {},
	"1900-01-01": {},
	"0001-01-01": {},
}

// Instant is a coerced point in time. The zero Instant is absent.
type Instant struct {
	Time time.Time

	// HasClock is set when a time of day was read from the input or merged from a time string.
	HasClock bool
}

// Absent reports whether no date could be derived.
func (in Instant) Absent() bool {
	return in.Time.IsZero()
}

// MarshalText renders the Instant as an ISO 8601 date, or an RFC 3339 timestamp when a
// time of day is known. Absent instants render empty.
func (in Instant) MarshalText() ([]byte, error) {
	switch {
	case in.Absent():
		return []byte{}, nil
	case in.HasClock:
		return []byte(in.Time.Format(time.RFC3339)), nil
	default:
		return []byte(in.Time.Format(time.DateOnly)), nil
	}
}

// Coercer parses and formats gateway dates in a given location.
type Coercer struct {
	loc    *time.Location
	logger *slog.Logger
}

type options struct {
	loc    *time.Location
	logger *slog.Logger
}

// Option overrides a Coercer default.
type Option func(*options)

// WithLocation sets the location of date-only values and of displayed values. Defaults to time.Local.
func WithLocation(loc *time.Location) Option {
	return func(o *options) {
		o.loc = loc
	}
}

// WithLogger sets the logger receiving parse diagnostics. Defaults to slog.Default at call time.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// New returns a Coercer.
func New(args ...Option) Coercer {
	opts := options{loc: time.Local}
	for _, opt := range args {
		opt(&opts)
	}
	if opts.loc == nil {
		opts.loc = time.Local
	}

	return Coercer{loc: opts.loc, logger: opts.logger}
}

// ParseInstant coerces date, and the optional time of day, with a Coercer in the local time zone.
func ParseInstant(date string, timeOfDay ...string) (Instant, bool) {
	return New().Parse(date, timeOfDay...)
}

// FormatForDisplay coerces date, and the optional time of day, and renders it in the local time zone.
func FormatForDisplay(date string, timeOfDay ...string) string {
	return New().Format(date, timeOfDay...)
}

// Location returns the location the Coercer works in.
func (c Coercer) Location() *time.Location {
	return c.loc
}

// Parse coerces date into an Instant. The second value is false when the date is absent:
// a null-like sentinel, an unreadable value, or a year not after 1900.
//
// A valid time of day (HH:MM or HH:MM:SS) is merged into the date. An invalid one is
// ignored and the date keeps its own clock, midnight for date-only values.
func (c Coercer) Parse(date string, timeOfDay ...string) (Instant, bool) {
	raw := date
	date = strings.TrimSpace(date)
	if isSentinel(date) {
		c.log().Debug("Date is a null sentinel", "value", raw)
		return Instant{}, false
	}

	date = stripNoise(date)
	if isSentinel(date) {
		c.log().Debug("Date is a null sentinel", "value", raw)
		return Instant{}, false
	}

	in, strategy, ok := c.parseDate(date)
	if !ok {
		c.log().Warn("Could not parse date", "value", raw)
		return Instant{}, false
	}

	if len(timeOfDay) > 0 && strings.TrimSpace(timeOfDay[0]) != "" {
		if h, m, s, ok := parseClock(timeOfDay[0]); ok {
			y, mo, d := in.Time.Date()
			in = Instant{Time: time.Date(y, mo, d, h, m, s, 0, in.Time.Location()), HasClock: true}
		} else {
			c.log().Debug("Ignoring invalid time of day", "value", timeOfDay[0], "date", raw)
		}
	}

	if in.Time.Year() <= minYear {
		c.log().Warn("Date is too old to be meaningful", "value", raw, "year", in.Time.Year())
		return Instant{}, false
	}

	c.log().Debug("Parsed date", "value", raw, "strategy", strategy, "instant", in.Time)
	return in, true
}

// Format coerces date and renders it as "Jan 2, 2006", or "Jan 2, 2006, 3:04 PM" when a
// time of day is known. Absent dates render as an empty string.
func (c Coercer) Format(date string, timeOfDay ...string) string {
	in, ok := c.Parse(date, timeOfDay...)
	if !ok {
		return ""
	}
	return c.Display(in)
}

// Display renders an Instant in the Coercer location. Absent instants render as an empty string.
func (c Coercer) Display(in Instant) string {
	if in.Absent() {
		return ""
	}
	if in.HasClock {
		return in.Time.In(c.loc).Format(dateTimeLayout)
	}
	return in.Time.In(c.loc).Format(dateLayout)
}

func (c Coercer) log() *slog.Logger {
	if c.logger != nil {
		return c.logger
	}
	return slog.Default()
}

func isSentinel(s string) bool {
	l := strings.ToLower(s)
	if _, ok := sentinels[l]; ok {
		return true
	}
	// A sentinel date with a clock, as in 0001-01-01T00:00:00 or 1900-01-01 10:00:00.
	if len(l) > 10 && (l[10] == 't' || l[10] == ' ') {
		if _, ok := sentinels[l[:10]]; ok {
			return true
		}
	}
	return false
}

// noiseSuffixes are removed from the end of a date, repeatedly, before parsing.
var noiseSuffixes = []string{"T00:00:00.000Z", "T00:00:00Z", "00:00:00", "Z", "+00:00", "+0000"}

func stripNoise(s string) string {
	for {
		prev := s
		for _, suffix := range noiseSuffixes {
			if !strings.HasSuffix(s, suffix) {
				continue
			}
			trimmed := strings.TrimSuffix(s, suffix)
			if suffix == "00:00:00" {
				// Only a whole midnight clock is noise, not the tail of 10:00:00.
				if !strings.HasSuffix(trimmed, " ") && !strings.HasSuffix(trimmed, "T") {
					continue
				}
				trimmed = strings.TrimRight(trimmed, " T")
			}
			s = strings.TrimSpace(trimmed)
		}
		if s == prev {
			return s
		}
	}
}
