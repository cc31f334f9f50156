// Package apperr defines the error taxonomy used across reflectcall (spec §7).
//
// Every adapter and store call returns either a typed success or a typed
// failure; callers use errors.As to branch on category rather than matching
// error strings.
package apperr

import (
	"errors"
	"fmt"
)

// Category classifies an error so callers can decide whether to retry,
// surface, or treat it as a no-op.
type Category string

const (
	// Precondition means the caller asked for something the domain forbids
	// outright (bad phone format, session not IN_PROGRESS). Never retried.
	Precondition Category = "precondition_violation"
	// Uniqueness means a uniqueness invariant was hit (duplicate JournalEntry
	// for a date). Idempotent if the existing row matches, else reported.
	Uniqueness Category = "uniqueness_violation"
	// Transient means the external system failed in a way that may succeed
	// on retry (5xx, disconnect, rate limit, write conflict).
	Transient Category = "transient_external"
	// Permanent means the external system rejected the request outright
	// (bad credentials, 400). Surfaced immediately, never retried.
	Permanent Category = "permanent_external"
	// Hangup is not an error in the conventional sense: the user ended the
	// call. It carries retry eligibility information for the scheduler.
	Hangup Category = "user_hangup"
	// Fault means something in our own code broke unexpectedly mid-task.
	Fault Category = "system_fault"
)

// Error is the typed error carried across component boundaries.
type Error struct {
	Category Category
	Op       string // the operation that failed, e.g. "dispatch.placeCall"
	Err      error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Category)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Category, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Is lets errors.Is(err, &apperr.Error{Category: apperr.Transient}) match
// by category equality: the target is a bare *Error with only Category set.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Category == "" {
		return false
	}
	return e.Category == t.Category
}

func new(cat Category, op string, err error) *Error {
	return &Error{Category: cat, Op: op, Err: err}
}

// Preconditionf builds a PreconditionViolation error.
func Preconditionf(op, format string, args ...any) error {
	return new(Precondition, op, fmt.Errorf(format, args...))
}

// Uniquenessf builds a UniquenessViolation error.
func Uniquenessf(op string, err error) error {
	return new(Uniqueness, op, err)
}

// Transientf builds a TransientExternal error.
func Transientf(op string, err error) error {
	return new(Transient, op, err)
}

// Permanentf builds a PermanentExternal error.
func Permanentf(op string, err error) error {
	return new(Permanent, op, err)
}

// Hangupf builds a UserHangup pseudo-error.
func Hangupf(op string, err error) error {
	return new(Hangup, op, err)
}

// Faultf builds a SystemFault error, used at task boundaries to wrap a
// recovered panic or unexpected internal error.
func Faultf(op string, err error) error {
	return new(Fault, op, err)
}

// Of reports the category of err, if it (or something it wraps) is an
// *Error. ok is false for plain errors.
func Of(err error) (cat Category, ok bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Category, true
	}
	return "", false
}
