package analysis

import (
	"context"
	"errors"
	"fmt"

	"github.com/RyanBlaney/sonido-vocal/audio"
)

// Kind tags why an analysis failed.
type Kind string

const (
	KindEmptyInput   Kind = "empty_input"
	KindInvalidFrame Kind = "invalid_frame"
	KindCanceled     Kind = "canceled"
	KindInternal     Kind = "internal"
)

// Error is the tagged failure returned by Analyze. No partial features
// accompany it.
type Error struct {
	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("analysis failed (%s): %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf returns the Kind carried by err, or "" when err is not an *Error.
func KindOf(err error) Kind {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return ""
}

// classify wraps err in an *Error with the matching Kind.
func classify(err error) error {
	if err == nil {
		return nil
	}

	var (
		ae      *Error
		empty   *audio.EmptyInputError
		invalid *audio.InvalidFrameError
	)
	switch {
	case errors.As(err, &ae):
		return ae
	case errors.As(err, &empty):
		return &Error{Kind: KindEmptyInput, Err: err}
	case errors.As(err, &invalid):
		return &Error{Kind: KindInvalidFrame, Err: err}
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return &Error{Kind: KindCanceled, Err: err}
	default:
		return &Error{Kind: KindInternal, Err: err}
	}
}
