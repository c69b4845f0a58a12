package util

import (
	"fmt"
	"regexp"
	"strconv"
	"time"
)

var durationPart = regexp.MustCompile(`(\d+)([DHMS])`)

// ParseDuration parses the ISO 8601 durations TaskWarrior stores in duration
// UDAs, e.g. PT1H30M or P1DT2H. Years, months and weeks are not supported.
func ParseDuration(s string) (time.Duration, error) {
	if s == "" {
		return 0, nil
	}
	if len(s) < 2 || s[0] != 'P' {
		return 0, fmt.Errorf("invalid ISO 8601 duration format: %s", s)
	}

	var total time.Duration
	inTime := false
	rest := s[1:]
	for len(rest) > 0 {
		if rest[0] == 'T' {
			if inTime {
				return 0, fmt.Errorf("invalid ISO 8601 duration: %s", s)
			}
			inTime = true
			rest = rest[1:]
			continue
		}
		loc := durationPart.FindStringSubmatchIndex(rest)
		if loc == nil || loc[0] != 0 {
			return 0, fmt.Errorf("invalid ISO 8601 duration: %s", s)
		}
		value, err := strconv.Atoi(rest[loc[2]:loc[3]])
		if err != nil {
			return 0, fmt.Errorf("invalid ISO 8601 duration: %s: %w", s, err)
		}
		unit := rest[loc[4]:loc[5]]
		switch {
		case unit == "D" && !inTime:
			total += time.Duration(value) * 24 * time.Hour
		case unit == "H" && inTime:
			total += time.Duration(value) * time.Hour
		case unit == "M" && inTime:
			total += time.Duration(value) * time.Minute
		case unit == "S" && inTime:
			total += time.Duration(value) * time.Second
		default:
			return 0, fmt.Errorf("invalid ISO 8601 duration: %s", s)
		}
		rest = rest[loc[1]:]
	}

	if total == 0 {
		return 0, fmt.Errorf("invalid ISO 8601 duration: %s", s)
	}
	return total, nil
}
