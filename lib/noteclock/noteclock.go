// Package noteclock normalizes the human-facing timestamp labels the notes
// UI renders ("now", "yesterday", "5 minutes ago", "3/15 14:30", absolute
// dates) into time.Time, and holds the timestamp formats the exporter
// writes.
package noteclock

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var (
	// ErrUnsupportedTimeUnit means a relative label used a unit outside the
	// known set, e.g. "5 fortnights ago".
	ErrUnsupportedTimeUnit = errors.New("unsupported time unit")
	// ErrUnparsableRelativeTime means a label contained "ago" but did not
	// match the "N unit ago" shape.
	ErrUnparsableRelativeTime = errors.New("unparsable relative time")
	// ErrUnparsableAbsoluteTime means no known absolute layout matched.
	ErrUnparsableAbsoluteTime = errors.New("unparsable absolute time")
)

var unitDurations = map[string]time.Duration{
	"second": time.Second,
	"minute": time.Minute,
	"hour":   time.Hour,
	"day":    time.Hour * 24,
	"week":   time.Hour * 24 * 7,
	"month":  time.Hour * 24 * 30,
	"year":   time.Hour * 24 * 365,
}

var relativeRegex = regexp.MustCompile(`(\d+)\s+(\w+)\s+ago`)

// compactRegex matches the year-less "M/D HH:mm" shape the UI uses for
// notes from the current year.
var compactRegex = regexp.MustCompile(`^(\d{1,2})/(\d{1,2})\s+(\d{1,2}):(\d{2})$`)

var absoluteLayouts = []string{
	time.RFC3339,
	"02/01/2006 15:04",
	"01/02/2006 15:04",
	"2006/01/02 15:04",
	"02/01/2006 03:04 PM",
	"01/02/2006 03:04 PM",
}

// Normalize resolves a raw timestamp label against now. The rules are
// checked in order: "now", "yesterday" (start of the previous day),
// "N unit ago", the compact year-less form, then absolute layouts. Labels
// the relative rules claim but cannot parse fail with a typed error and
// never fall through to the absolute layouts.
func Normalize(raw string, now time.Time) (time.Time, error) {
	label := strings.TrimSpace(raw)
	lower := strings.ToLower(label)

	if strings.Contains(lower, "now") {
		return now, nil
	}

	if strings.Contains(lower, "yesterday") {
		y := now.AddDate(0, 0, -1)
		return time.Date(y.Year(), y.Month(), y.Day(), 0, 0, 0, 0, now.Location()), nil
	}

	if strings.Contains(lower, "ago") {
		return relativeToTime(lower, now)
	}

	if m := compactRegex.FindStringSubmatch(label); m != nil {
		if t, ok := compactToTime(m, now); ok {
			return t, nil
		}
		// not a real calendar date this year, try the absolute layouts
	}

	t, err := ParseAbsolute(label)
	if err != nil {
		return time.Time{}, err
	}
	return t, nil
}

func relativeToTime(lower string, now time.Time) (time.Time, error) {
	m := relativeRegex.FindStringSubmatch(lower)
	if m == nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrUnparsableRelativeTime, lower)
	}

	count, err := strconv.Atoi(m[1])
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrUnparsableRelativeTime, lower)
	}

	unit := strings.TrimSuffix(m[2], "s")
	duration, ok := unitDurations[unit]
	if !ok {
		return time.Time{}, fmt.Errorf("%w: %q", ErrUnsupportedTimeUnit, m[2])
	}

	return now.Add(-time.Duration(count) * duration), nil
}

func compactToTime(m []string, now time.Time) (time.Time, bool) {
	month, _ := strconv.Atoi(m[1])
	day, _ := strconv.Atoi(m[2])
	hour, _ := strconv.Atoi(m[3])
	minute, _ := strconv.Atoi(m[4])

	if hour > 23 || minute > 59 {
		return time.Time{}, false
	}

	t := time.Date(now.Year(), time.Month(month), day, hour, minute, 0, 0, now.Location())
	// time.Date normalizes overflow (2/31 becomes 3/2), which would accept
	// dates the UI never renders
	if int(t.Month()) != month || t.Day() != day {
		return time.Time{}, false
	}
	return t, true
}

// ParseAbsolute parses an absolute timestamp against the known layouts.
func ParseAbsolute(raw string) (time.Time, error) {
	label := strings.TrimSpace(raw)
	for _, layout := range absoluteLayouts {
		if t, err := time.Parse(layout, label); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: %q", ErrUnparsableAbsoluteTime, raw)
}
