package pin

import "errors"

// Domain-specific errors for virtual pin handling.
// Use errors.Is() to check for these errors in calling code.
var (
	// ErrInvalidPin is returned for virtual pin numbers outside 0-255.
	ErrInvalidPin = errors.New("pin: virtual pin must be between 0 and 255")

	// ErrRegistryFull is returned when the handler table has no free slots.
	ErrRegistryFull = errors.New("pin: handler registry full")

	// ErrNilHandler is returned when registering a nil handler.
	ErrNilHandler = errors.New("pin: handler cannot be nil")
)
