// internal/domain/fault/fault.go

// Package fault defines the typed, recoverable errors the core operations
// return. Every fault carries a kind plus the offending values, so the API
// layer can render a precise message and pick the right HTTP status without
// string matching. None of these are process-fatal.
package fault

import (
	"errors"
	"fmt"

	"github.com/dalemusser/pickuphub/internal/domain/status"
)

// Kind classifies a business-rule failure.
type Kind int

const (
	// NotFound: entity absent or soft-deleted.
	NotFound Kind = iota + 1
	// Unauthorized: institution or ownership mismatch.
	Unauthorized
	// InvalidTransition: state-machine legality violation.
	InvalidTransition
	// InvalidState: operation precondition violated (e.g. pickup from NOT_ARRIVED).
	InvalidState
	// CapReached: the two-active-guardians binding limit.
	CapReached
	// Conflict: idempotence boundary violated in a non-idempotent path
	// (e.g. activating an already-active account).
	Conflict
	// Unavailable: transient persistence failure after retries; retry later.
	Unavailable
)

func (k Kind) String() string {
	switch k {
	case NotFound:
		return "not_found"
	case Unauthorized:
		return "unauthorized"
	case InvalidTransition:
		return "invalid_transition"
	case InvalidState:
		return "invalid_state"
	case CapReached:
		return "cap_reached"
	case Conflict:
		return "conflict"
	case Unavailable:
		return "unavailable"
	}
	return "unknown"
}

// Error is a classified business-rule failure.
type Error struct {
	Kind Kind
	Msg  string

	// From/To are set for InvalidTransition faults.
	From status.Status
	To   status.Status

	// Err is an optional underlying cause (e.g. the store error behind an
	// Unavailable fault).
	Err error
}

func (e *Error) Error() string {
	if e.Msg != "" {
		return e.Kind.String() + ": " + e.Msg
	}
	return e.Kind.String()
}

func (e *Error) Unwrap() error { return e.Err }

// New builds a fault with a formatted message.
func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// Wrap builds a fault that preserves its underlying cause.
func Wrap(kind Kind, err error, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...), Err: err}
}

// Transition builds the InvalidTransition fault for a rejected (from, to) pair.
func Transition(from, to status.Status) *Error {
	return &Error{
		Kind: InvalidTransition,
		Msg:  fmt.Sprintf("cannot move from %s to %s", from, to),
		From: from,
		To:   to,
	}
}

// KindOf extracts the fault kind from err, or 0 if err is not a fault.
func KindOf(err error) Kind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return 0
}

// Is reports whether err is a fault of the given kind.
func Is(err error, kind Kind) bool {
	return KindOf(err) == kind
}
