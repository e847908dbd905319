package errors

import "errors"

var (
	ErrNotFound = errors.New("appointment not found")

	ErrInvalidID = errors.New("invalid appointment ID format")

	// ErrStatusChanged is returned when a conditional status update finds another status.
	ErrStatusChanged = errors.New("appointment status changed concurrently")

	ErrLockHeld = errors.New("slot lock held by another request")
)
