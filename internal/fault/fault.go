// Package fault classifies engine failures so boundaries can turn them into
// user notifications without inspecting error strings.
package fault

import (
	"errors"
	"fmt"
)

// Kind is the failure category of an operation.
type Kind int

const (
	// Unknown covers errors that were never classified.
	Unknown Kind = iota
	// Network covers rejected or unreachable remote calls.
	Network
	// Validation covers malformed input: bad cache imports, non-image file
	// selections, unknown marker identifiers.
	Validation
	// UserAbort covers declined confirmation dialogs.
	UserAbort
)

// String returns the category name.
func (k Kind) String() string {
	switch k {
	case Network:
		return "network"
	case Validation:
		return "validation"
	case UserAbort:
		return "user-abort"
	default:
		return "unknown"
	}
}

// Fault wraps an error with its category.
type Fault struct {
	Kind Kind
	Err  error
}

func (f *Fault) Error() string {
	if f.Err == nil {
		return f.Kind.String()
	}
	return fmt.Sprintf("%s: %s", f.Kind, f.Err)
}

func (f *Fault) Unwrap() error {
	return f.Err
}

// New creates a classified error from a format string.
func New(kind Kind, format string, args ...any) error {
	return &Fault{Kind: kind, Err: fmt.Errorf(format, args...)}
}

// Wrap classifies an existing error. A nil error stays nil.
func Wrap(kind Kind, err error) error {
	if err == nil {
		return nil
	}
	return &Fault{Kind: kind, Err: err}
}

// KindOf returns the category of err, or Unknown if it carries none.
func KindOf(err error) Kind {
	var f *Fault
	if errors.As(err, &f) {
		return f.Kind
	}
	return Unknown
}
