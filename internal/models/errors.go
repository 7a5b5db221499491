package models

import "errors"

// Domain errors. Services wrap these with context via fmt.Errorf and %w;
// handlers map them to HTTP statuses with errors.Is.
var (
	// ErrNotFound marks a missing profile, badge, store item or
	// inventory entry. Maps to 404.
	ErrNotFound = errors.New("not found")

	// ErrValidation marks malformed input (non-positive amounts,
	// unknown difficulty, bad date strings). Maps to 400.
	ErrValidation = errors.New("validation failed")

	// ErrInsufficientBalance is returned when a spend exceeds the
	// user's coin balance. The balance is left untouched.
	ErrInsufficientBalance = errors.New("insufficient coin balance")

	// ErrAlreadyOwned is returned when purchasing a permanent item
	// the user already holds.
	ErrAlreadyOwned = errors.New("item already owned")

	// ErrInsufficientQuantity is returned when consuming more of an
	// item than the inventory holds.
	ErrInsufficientQuantity = errors.New("insufficient item quantity")

	// ErrInvalidDate is returned for time-travel targets that are
	// today, in the future, or outside the current month.
	ErrInvalidDate = errors.New("invalid target date")

	// ErrDateAlreadyFilled is returned when the time-travel target
	// date already has an activity entry.
	ErrDateAlreadyFilled = errors.New("date already has activity")
)
