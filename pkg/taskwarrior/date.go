package taskwarrior

import (
	"fmt"
	"time"
)

// DateLayout is the timestamp format used by task export and taskd: YYYYMMDDTHHMMSSZ, always UTC.
const DateLayout = "20060102T150405Z"

// ParseDate decodes a TaskWarrior timestamp. No other formats are tried.
func ParseDate(s string) (time.Time, error) {
	if len(s) != len(DateLayout) {
		return time.Time{}, &DateFormatError{Text: s}
	}
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, &DateFormatError{Text: s, Err: err}
	}
	return t.UTC(), nil
}

// FormatDate is the inverse of ParseDate.
func FormatDate(t time.Time) string {
	return t.UTC().Format(DateLayout)
}

// DateFormatError reports a timestamp that does not match DateLayout.
type DateFormatError struct {
	Text string
	Err  error
}

func (e *DateFormatError) Error() string {
	return fmt.Sprintf("date %q does not match %s", e.Text, DateLayout)
}

func (e *DateFormatError) Unwrap() error { return e.Err }
