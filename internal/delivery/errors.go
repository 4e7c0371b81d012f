package delivery

import "errors"

// Domain-specific errors for reliable delivery.
// Use errors.Is() to check for these errors in calling code.
var (
	// ErrQueueFull is returned when the pending table has no free slots.
	// The message is not queued and will not be retried.
	ErrQueueFull = errors.New("delivery: pending queue full")

	// ErrInvalidAck is returned when an ACK payload cannot be parsed.
	ErrInvalidAck = errors.New("delivery: invalid ack payload")

	// ErrInvalidPin is returned for virtual pin numbers outside 0-255.
	ErrInvalidPin = errors.New("delivery: virtual pin must be between 0 and 255")
)
