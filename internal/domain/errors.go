package domain

import "errors"

// Error taxonomy of the reservation engine. Business-rule violations are
// recoverable and carry enough context for the caller to act; only
// storage failures are treated as server errors.
var (
	// ErrValidation marks malformed or illogical input (start after end,
	// past start date, unknown enum values).
	ErrValidation = errors.New("validation failed")

	// ErrNotFound marks a missing reservation, room, guest or service.
	ErrNotFound = errors.New("not found")

	// ErrConflict marks a date-interval overlap on a requested room.
	ErrConflict = errors.New("booking conflict")

	// ErrInvalidState marks a transition attempted from the wrong status.
	ErrInvalidState = errors.New("invalid reservation state")

	// ErrDateNotReached marks a check-in before the arrival date or a
	// check-out before the departure date.
	ErrDateNotReached = errors.New("date not reached")

	// ErrForbidden marks an actor who is neither the owner of the
	// reservation nor privileged staff.
	ErrForbidden = errors.New("forbidden")

	// ErrPolicyDenied marks a cancellation rejected by the cancellation
	// policy.
	ErrPolicyDenied = errors.New("cancellation denied by policy")

	// ErrInvalidService marks an unknown or deleted service id in an
	// attach request. The whole batch is rejected.
	ErrInvalidService = errors.New("invalid service")

	// ErrNoChange marks an attach request whose every service id was
	// already on the invoice.
	ErrNoChange = errors.New("no change")

	// ErrBusy marks a serialization failure or lock timeout. The
	// operation did not apply and may be retried.
	ErrBusy = errors.New("store busy")
)
