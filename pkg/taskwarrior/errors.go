package taskwarrior

import (
	"errors"
	"fmt"
)

// ErrReservedKey is returned when a UDA would shadow a known field.
var ErrReservedKey = errors.New("key is a known task field")

// MissingFieldError reports one of uuid, status, entry or description being absent or not a string.
type MissingFieldError struct {
	Key    string
	Actual Kind
}

func (e *MissingFieldError) Error() string {
	if e.Actual == KindMissing {
		return fmt.Sprintf("required field %s is missing", e.Key)
	}
	return fmt.Sprintf("required field %s is %s, want string", e.Key, e.Actual)
}

// FieldError reports a known field whose value has the wrong shape or content.
type FieldError struct {
	Key      string
	Expected string
	Actual   Kind
	Err      error
}

func (e *FieldError) Error() string {
	msg := fmt.Sprintf("%s: expected %s, got %s", e.Key, e.Expected, e.Actual)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *FieldError) Unwrap() error { return e.Err }

// AnnotationError reports an annotations element that is not an object with
// string description and entry.
type AnnotationError struct {
	Index  int
	Reason string
	Err    error
}

func (e *AnnotationError) Error() string {
	msg := fmt.Sprintf("annotation %d: %s", e.Index, e.Reason)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *AnnotationError) Unwrap() error { return e.Err }
