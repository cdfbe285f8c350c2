package ipc

import (
	"errors"
	"fmt"
)

// Kind classifies protocol-boundary failures.
type Kind int

const (
	KindAuthorization Kind = iota + 1
	KindRouting
	KindSerialization
	KindHandler
)

// String returns a human-readable name for the kind.
func (k Kind) String() string {
	switch k {
	case KindAuthorization:
		return "authorization"
	case KindRouting:
		return "routing"
	case KindSerialization:
		return "serialization"
	case KindHandler:
		return "handler"
	default:
		return "unknown"
	}
}

// Error is a failure reported back to the originating page-side call.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Unauthorized is the only failure a rejected call ever sees.
func Unauthorized() *Error {
	return &Error{Kind: KindAuthorization, Message: "unauthorized"}
}

// CommandNotFound reports a module, plugin or command nobody handles.
func CommandNotFound(what, name string) *Error {
	return &Error{Kind: KindRouting, Message: fmt.Sprintf("%s %q not found", what, name)}
}

// SerializationFailure wraps a JSON conversion failure.
func SerializationFailure(cause error) *Error {
	return &Error{Kind: KindSerialization, Message: "serialization error", Cause: cause}
}

// HandlerFailure wraps an error returned by a command handler.
func HandlerFailure(cause error) *Error {
	return &Error{Kind: KindHandler, Message: "handler error", Cause: cause}
}

// KindOf returns the protocol kind of err, or 0.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}

// Public returns the message shown to page script for err. Authorization
// failures never carry detail.
func Public(err error) string {
	var e *Error
	if !errors.As(err, &e) {
		return err.Error()
	}
	switch e.Kind {
	case KindAuthorization:
		return "unauthorized"
	case KindHandler:
		if e.Cause != nil {
			return e.Cause.Error()
		}
		return e.Message
	default:
		return e.Error()
	}
}
