package errext

import (
	"errors"
	"fmt"
)

// HasHint is a wrapper around an error with an attached user hint. Hints tell
// the user how to fix a bad invocation, e.g. which flag values are accepted.
type HasHint interface {
	error
	Hint() string
}

// WithHint attaches a hint to the given error. A nil error stays nil. If the
// error already had a hint, the result reads "new hint (old hint)".
func WithHint(err error, hint string) error {
	if err == nil {
		return nil
	}
	return withHint{err, hint}
}

// WithHintf is WithHint with a formatted hint.
func WithHintf(err error, format string, args ...interface{}) error {
	return WithHint(err, fmt.Sprintf(format, args...))
}

type withHint struct {
	error
	hint string
}

func (wh withHint) Unwrap() error {
	return wh.error
}

func (wh withHint) Hint() string {
	hint := wh.hint
	var oldhint HasHint
	if errors.As(wh.error, &oldhint) {
		hint = hint + " (" + oldhint.Hint() + ")"
	}

	return hint
}

var _ HasHint = withHint{}
