// Package apperr defines the error kinds shared by every module.
//
// Callers branch on the kind with errors.Is against the Err* sentinels and
// recover the human-readable reason with Reason.
package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies an error by how the caller is expected to recover.
type Kind int

const (
	KindUnknown Kind = iota
	// KindValidation is malformed input. Nothing was mutated.
	KindValidation
	// KindPermission is a rejected actor (self vote, under-ranked voter). Nothing was mutated.
	KindPermission
	// KindConflict is a lost race or a closed target. The loser no-ops.
	KindConflict
	// KindCollaborator is an I/O failure in the store, Discord or the bus.
	KindCollaborator
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindPermission:
		return "permission"
	case KindConflict:
		return "conflict"
	case KindCollaborator:
		return "collaborator"
	default:
		return "unknown"
	}
}

// Sentinels for errors.Is matching on kind.
var (
	ErrValidation   = &Error{Kind: KindValidation}
	ErrPermission   = &Error{Kind: KindPermission}
	ErrConflict     = &Error{Kind: KindConflict}
	ErrCollaborator = &Error{Kind: KindCollaborator}
)

// GenericFailureMessage is shown to users when a collaborator fails.
const GenericFailureMessage = "Something went wrong on our side, please try again later."

// Error carries a kind, the failing operation and a user-facing reason.
type Error struct {
	Kind   Kind
	Op     string
	Reason string
	Err    error
}

func (e *Error) Error() string {
	msg := e.Kind.String()
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports a match when target is a bare kind sentinel of the same kind,
// or the very same *Error.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t == e {
		return true
	}
	return t.Op == "" && t.Reason == "" && t.Err == nil && t.Kind == e.Kind
}

// Validation builds a KindValidation error.
func Validation(op, reason string) error {
	return &Error{Kind: KindValidation, Op: op, Reason: reason}
}

// Validationf builds a KindValidation error with a formatted reason.
func Validationf(op, format string, args ...any) error {
	return &Error{Kind: KindValidation, Op: op, Reason: fmt.Sprintf(format, args...)}
}

// Permission builds a KindPermission error.
func Permission(op, reason string) error {
	return &Error{Kind: KindPermission, Op: op, Reason: reason}
}

// Conflict builds a KindConflict error.
func Conflict(op, reason string) error {
	return &Error{Kind: KindConflict, Op: op, Reason: reason}
}

// Collaborator wraps an I/O failure. A nil err returns nil.
func Collaborator(op string, err error) error {
	if err == nil {
		return nil
	}
	var ae *Error
	if errors.As(err, &ae) && ae.Kind != KindUnknown {
		return err
	}
	return &Error{Kind: KindCollaborator, Op: op, Err: err}
}

// KindOf returns the kind of the first *Error in err's chain.
// Unclassified non-nil errors are treated as collaborator failures.
func KindOf(err error) Kind {
	if err == nil {
		return KindUnknown
	}
	var ae *Error
	if errors.As(err, &ae) && ae.Kind != KindUnknown {
		return ae.Kind
	}
	return KindCollaborator
}

// Reason returns the message a user should see for err.
func Reason(err error) string {
	var ae *Error
	if errors.As(err, &ae) {
		switch ae.Kind {
		case KindValidation, KindPermission, KindConflict:
			if ae.Reason != "" {
				return ae.Reason
			}
		}
	}
	return GenericFailureMessage
}

// IsUserFacing reports whether err should be shown to the user rather than retried.
func IsUserFacing(err error) bool {
	switch KindOf(err) {
	case KindValidation, KindPermission:
		return true
	default:
		return false
	}
}
