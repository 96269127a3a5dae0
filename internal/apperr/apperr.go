// Package apperr defines the error taxonomy shared by every pipeline
// component. Components normalize library and transport errors into an
// *Error with a Kind before returning them across their boundary, so the
// tool layer can report a stable {kind, message} object to callers.
package apperr

import (
	"context"
	"errors"
	"fmt"
)

// Kind classifies a failure.
type Kind string

const (
	InvalidInput        Kind = "InvalidInput"
	EmptyInput          Kind = "EmptyInput"
	MalformedQuery      Kind = "MalformedQuery"
	UpstreamUnavailable Kind = "UpstreamUnavailable"
	DimensionMismatch   Kind = "DimensionMismatch"
	NotReady            Kind = "NotReady"
	TicketNotFound      Kind = "TicketNotFound"
	GenerationFailed    Kind = "GenerationFailed"
	Cancelled           Kind = "Cancelled"
	Unknown             Kind = "Unknown"
)

// Error is a classified failure. Stage is set for GenerationFailed errors
// and names the pipeline step that failed (embed, retrieve, generate, parse).
type Error struct {
	Kind    Kind
	Stage   string
	Message string
	Err     error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if e.Stage != "" {
		return fmt.Sprintf("%s (%s): %s", e.Kind, e.Stage, msg)
	}
	return fmt.Sprintf("%s: %s", e.Kind, msg)
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches another *Error by Kind so callers can write
// errors.Is(err, apperr.New(apperr.NotReady, "")).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// New creates an *Error with the given kind and message.
func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap classifies err under kind. The message defaults to err's text.
func Wrap(kind Kind, err error, format string, args ...any) *Error {
	msg := fmt.Sprintf(format, args...)
	if err != nil {
		if msg == "" {
			msg = err.Error()
		} else {
			msg = msg + ": " + err.Error()
		}
	}
	return &Error{Kind: kind, Message: msg, Err: err}
}

// Stage wraps err as a GenerationFailed error raised at the named stage.
// Context cancellation is reported as Cancelled instead.
func Stage(stage string, err error) *Error {
	if isContextErr(err) {
		return &Error{Kind: Cancelled, Stage: stage, Message: err.Error(), Err: err}
	}
	return &Error{Kind: GenerationFailed, Stage: stage, Message: messageOf(err), Err: err}
}

// FromContext returns a Cancelled error if ctx is done, nil otherwise.
func FromContext(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return &Error{Kind: Cancelled, Message: err.Error(), Err: err}
	}
	return nil
}

// KindOf reports the kind of err. Context errors map to Cancelled and
// unclassified errors to Unknown.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	if isContextErr(err) {
		return Cancelled
	}
	return Unknown
}

// Is reports whether err is classified as kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// Normalize returns err as an *Error, classifying context errors as
// Cancelled and anything else unclassified as Unknown.
func Normalize(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return &Error{Kind: KindOf(err), Message: err.Error(), Err: err}
}

// ToolError is the structured error object reported at the tool boundary.
type ToolError struct {
	Kind    Kind   `json:"kind"`
	Stage   string `json:"stage,omitempty"`
	Message string `json:"message"`
}

// ToToolError converts err into its boundary representation.
func ToToolError(err error) ToolError {
	e := Normalize(err)
	if e == nil {
		return ToolError{}
	}
	return ToolError{Kind: e.Kind, Stage: e.Stage, Message: messageOf(e)}
}

func messageOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		if e.Message != "" {
			return e.Message
		}
		if e.Err != nil {
			return e.Err.Error()
		}
		return string(e.Kind)
	}
	if err == nil {
		return ""
	}
	return err.Error()
}

func isContextErr(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var e *Error
	return errors.As(err, &e) && e.Kind == Cancelled
}
