package command

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// MaxDuration bounds timed actions and warn rules.
const MaxDuration = 3650 * 24 * time.Hour

var errDurationTooLong = errors.New("duration is longer than 3650d")

// ParseDuration accepts Go durations plus a day suffix, e.g. "30m", "2h", "7d".
func ParseDuration(value string) (time.Duration, error) {
	value = strings.TrimSpace(strings.ToLower(value))
	if days, ok := strings.CutSuffix(value, "d"); ok {
		n, err := strconv.Atoi(days)
		if err != nil || n <= 0 {
			return 0, fmt.Errorf("invalid duration %q", value)
		}
		if n > int(MaxDuration/(24*time.Hour)) {
			return 0, fmt.Errorf("%q: %w", value, errDurationTooLong)
		}
		return time.Duration(n) * 24 * time.Hour, nil
	}

	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q", value)
	}
	if d < time.Second {
		return 0, fmt.Errorf("duration %q is shorter than a second", value)
	}
	if d > MaxDuration {
		return 0, fmt.Errorf("%q: %w", value, errDurationTooLong)
	}
	return d, nil
}

// FormatDuration prints whole days as "Nd" and everything else as Go does.
func FormatDuration(d time.Duration) string {
	if d >= 24*time.Hour && d%(24*time.Hour) == 0 {
		return fmt.Sprintf("%dd", d/(24*time.Hour))
	}
	return d.String()
}
