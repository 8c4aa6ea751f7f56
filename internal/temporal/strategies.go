package temporal

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

var (
	isoDateTimeRe = regexp.MustCompile(`^(\d{4})-(\d{1,2})-(\d{1,2})[T ](\d{1,2}):(\d{2})(?::(\d{2})(?:\.(\d{1,9}))?)?\s*(Z|[+-]\d{2}:?\d{2})?$`)
	isoDateRe     = regexp.MustCompile(`^(\d{4})-(\d{1,2})-(\d{1,2})$`)
	slashDateRe   = regexp.MustCompile(`^(\d{1,2})/(\d{1,2})/(\d{4})$`)
	dashDateRe    = regexp.MustCompile(`^(\d{1,2})-(\d{1,2})-(\d{4})$`)
	compactDateRe = regexp.MustCompile(`^(\d{4})(\d{2})(\d{2})$`)
	clockRe       = regexp.MustCompile(`^(\d{1,2}):(\d{1,2})(?::(\d{1,2}))?$`)
)

// genericLayouts are tried last. They include the display layouts, so that a displayed
// value reads back as the same day.
var genericLayouts = []struct {
	layout   string
	hasClock bool
}{
	{dateTimeLayout, true},
	{"Jan 2, 2006 3:04 PM", true},
	{dateLayout, false},
	{"January 2, 2006", false},
	{"January 2, 2006 3:04 PM", true},
	{"2 Jan 2006", false},
	{"2-Jan-2006", false},
	{"2 January 2006", false},
	{"Mon Jan 2 2006", false},
	{"Mon, 2 Jan 2006", false},
	{"2006/01/02", false},
	{"2006/01/02 15:04:05", true},
	{"2006-01-02 15:04", true},
	{"02.01.2006", false},
	{"1/2/2006, 3:04:05 PM", true},
	{"1/2/2006 3:04:05 PM", true},
	{"02/01/2006 15:04:05", true},
	{"02/01/2006 15:04", true},
	{time.RFC1123, true},
	{time.RFC1123Z, true},
	{time.RFC3339Nano, true},
}

// parseDate runs the strategy ladder. The first candidate that is structurally valid, round
// trips and has an accepted year wins.
func (c Coercer) parseDate(s string) (in Instant, strategy string, ok bool) {
	if m := isoDateTimeRe.FindStringSubmatch(s); m != nil {
		if in, ok := isoDateTime(m); ok {
			return in, "iso-datetime", true
		}
	}

	if m := isoDateRe.FindStringSubmatch(s); m != nil {
		if t, ok := c.civilDate(m[1], m[2], m[3]); ok {
			return Instant{Time: t}, "iso-date", true
		}
	}

	if m := slashDateRe.FindStringSubmatch(s); m != nil {
		if t, ok := c.civilDate(m[3], m[2], m[1]); ok {
			return Instant{Time: t}, "day-month-year", true
		}
		if t, ok := c.civilDate(m[3], m[1], m[2]); ok {
			return Instant{Time: t}, "month-day-year", true
		}
	}

	if m := dashDateRe.FindStringSubmatch(s); m != nil {
		if t, ok := c.civilDate(m[3], m[2], m[1]); ok {
			return Instant{Time: t}, "day-month-year-dashed", true
		}
	}

	if m := compactDateRe.FindStringSubmatch(s); m != nil {
		if t, ok := c.civilDate(m[1], m[2], m[3]); ok {
			return Instant{Time: t}, "compact", true
		}
	}

	for _, g := range genericLayouts {
		t, err := time.ParseInLocation(g.layout, s, c.loc)
		if err != nil {
			continue
		}
		if t.Year() <= minYear || t.Year() > maxYear {
			continue
		}
		return Instant{Time: t, HasClock: g.hasClock}, "generic", true
	}

	return Instant{}, "", false
}

// civilDate builds midnight of the given day in the Coercer location.
// It rejects out of range years and any day the calendar would roll over, like 31/04.
func (c Coercer) civilDate(year, month, day string) (time.Time, bool) {
	y, m, d := atoi(year), atoi(month), atoi(day)
	if !yearInRange(y) || m < 1 || m > 12 || d < 1 || d > 31 {
		return time.Time{}, false
	}

	t := time.Date(y, time.Month(m), d, 0, 0, 0, 0, c.loc)
	if !sameDay(t, y, m, d) {
		return time.Time{}, false
	}
	return t, true
}

// isoDateTime reads a matched ISO 8601 date-time. Without an explicit zone, it is UTC.
func isoDateTime(m []string) (Instant, bool) {
	y, mo, d := atoi(m[1]), atoi(m[2]), atoi(m[3])
	h, mi, s := atoi(m[4]), atoi(m[5]), atoi(m[6])
	if !yearInRange(y) || h > 23 || mi > 59 || s > 59 {
		return Instant{}, false
	}

	var nsec int
	if m[7] != "" {
		frac := m[7] + strings.Repeat("0", 9-len(m[7]))
		nsec = atoi(frac)
	}

	loc := time.UTC
	if z := m[8]; z != "" && z != "Z" {
		offset, ok := parseOffset(z)
		if !ok {
			return Instant{}, false
		}
		loc = time.FixedZone("", offset)
	}

	t := time.Date(y, time.Month(mo), d, h, mi, s, nsec, loc)
	if !sameDay(t, y, mo, d) || t.Hour() != h || t.Minute() != mi {
		return Instant{}, false
	}
	return Instant{Time: t, HasClock: true}, true
}

// parseClock reads HH:MM or HH:MM:SS.
func parseClock(s string) (h, m, sec int, ok bool) {
	match := clockRe.FindStringSubmatch(strings.TrimSpace(s))
	if match == nil {
		return 0, 0, 0, false
	}
	h, m, sec = atoi(match[1]), atoi(match[2]), atoi(match[3])
	if h > 23 || m > 59 || sec > 59 {
		return 0, 0, 0, false
	}
	return h, m, sec, true
}

// parseOffset reads +HH:MM, +HHMM, -HH:MM or -HHMM as seconds east of UTC.
func parseOffset(z string) (int, bool) {
	sign := 1
	if z[0] == '-' {
		sign = -1
	}
	digits := strings.ReplaceAll(z[1:], ":", "")
	if len(digits) != 4 {
		return 0, false
	}
	h, m := atoi(digits[:2]), atoi(digits[2:])
	if h > 14 || m > 59 {
		return 0, false
	}
	return sign * (h*3600 + m*60), true
}

func sameDay(t time.Time, y, m, d int) bool {
	ty, tm, td := t.Date()
	return ty == y && int(tm) == m && td == d
}

func yearInRange(y int) bool {
	return y >= minYear && y <= maxYear
}

// atoi converts regexp captured digits. An empty capture is 0.
func atoi(s string) int {
	if s == "" {
		return 0
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return -1
	}
	return n
}
