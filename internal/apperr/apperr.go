// Package apperr classifies errors crossing service boundaries so transports can map them to responses.
package apperr

import (
	"errors"
	"fmt"
)

type Kind int

const (
	Unhandled Kind = iota
	InvalidArgument
	NotFound
	Conflict
	ProviderFailure
	StoreFailure
	Unavailable
)

func (k Kind) String() string {
	switch k {
	case InvalidArgument:
		return "invalid_argument"
	case NotFound:
		return "not_found"
	case Conflict:
		return "conflict"
	case ProviderFailure:
		return "provider_failure"
	case StoreFailure:
		return "store_failure"
	case Unavailable:
		return "unavailable"
	default:
		return "unhandled"
	}
}

// Error is a classified error. Message is safe to show to clients; Err keeps the cause for logs.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Message
	}
	if e.Message == "" {
		return e.Err.Error()
	}
	return fmt.Sprintf("%s: %v", e.Message, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error of the same kind, so errors.Is(err, apperr.ErrNotFound) works.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Message == "" && t.Err == nil && t.Kind == e.Kind
}

var (
	ErrInvalidArgument = &Error{Kind: InvalidArgument}
	ErrNotFound        = &Error{Kind: NotFound}
	ErrConflict        = &Error{Kind: Conflict}
	ErrProvider        = &Error{Kind: ProviderFailure}
	ErrStore           = &Error{Kind: StoreFailure}
	ErrUnavailable     = &Error{Kind: Unavailable}
)

func New(kind Kind, msg string) error { return &Error{Kind: kind, Message: msg} }

func Wrap(kind Kind, msg string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Message: msg, Err: err}
}

func Invalid(msg string) error { return New(InvalidArgument, msg) }

func NotFoundf(format string, args ...any) error {
	return New(NotFound, fmt.Sprintf(format, args...))
}

func Store(msg string, err error) error { return Wrap(StoreFailure, msg, err) }

// KindOf returns the kind of the outermost classified error in the chain, Unhandled otherwise.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Unhandled
}

// PublicMessage is what a client may see. Store and unhandled failures never leak detail.
func PublicMessage(err error) string {
	var e *Error
	if !errors.As(err, &e) {
		return "internal error"
	}
	switch e.Kind {
	case StoreFailure, Unhandled:
		return "internal error"
	case ProviderFailure:
		if e.Err != nil {
			return e.Err.Error()
		}
	}
	if e.Message != "" {
		return e.Message
	}
	return e.Kind.String()
}
