package domain

import (
	"errors"
	"fmt"
	"strings"
)

// ValidationError reports malformed input. It is never retried.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return "invalid input: " + e.Reason
}

// NotFoundError reports a missing document of the named kind.
type NotFoundError struct {
	Kind string
}

func (e *NotFoundError) Error() string {
	return e.Kind + " not found"
}

// ConflictError reports a semantic booking conflict. Slots, when set, lists
// every offending slot key for aggregate failures.
type ConflictError struct {
	Reason string
	Slots  []string
}

func (e *ConflictError) Error() string {
	if len(e.Slots) == 0 {
		return "conflict: " + e.Reason
	}
	return fmt.Sprintf("conflict: %s: %s", e.Reason, strings.Join(e.Slots, ", "))
}

// PersistenceError reports a store-level failure: network errors, timeouts,
// or an exhausted optimistic-retry budget. Callers may retry with backoff.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence failure in %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// Conflict reasons surfaced by the booking engine.
const (
	ReasonOwnerFreetimeNotSet  = "owner freetime not set"
	ReasonOwnerSlotUnavailable = "owner slot unavailable"
	ReasonDoubleBooking        = "double booking"
	ReasonAlreadyChallenged    = "event already challenged"
	ReasonNoExistingRecord     = "no existing record"
	ReasonSlotNotOffered       = "slot not offered"
	ReasonSlotBooked           = "slot already booked"
)

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// IsNotFound reports whether err is a NotFoundError.
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

// IsConflict reports whether err is a ConflictError.
func IsConflict(err error) bool {
	var ce *ConflictError
	return errors.As(err, &ce)
}

// IsPersistence reports whether err is a PersistenceError.
func IsPersistence(err error) bool {
	var pe *PersistenceError
	return errors.As(err, &pe)
}
