package gpio

import "errors"

// Domain-specific errors for GPIO pin management.
// Use errors.Is() to check for these errors in calling code.
var (
	// ErrTableFull is returned when the pin table has no free slots.
	ErrTableFull = errors.New("gpio: pin table full")

	// ErrInvalidName is returned for names that are empty, too long, or
	// not of the form D<n>/A<n>.
	ErrInvalidName = errors.New("gpio: invalid pin name")

	// ErrUnresolvable is returned when a name cannot be mapped to a
	// hardware pin number on the configured board.
	ErrUnresolvable = errors.New("gpio: pin name not resolvable on this board")

	// ErrUnknownMode is returned for unrecognised pin mode strings.
	ErrUnknownMode = errors.New("gpio: unknown pin mode")

	// ErrUnknownPin is returned when an operation references a name that
	// is not in the table.
	ErrUnknownPin = errors.New("gpio: pin not found")

	// ErrNotWritable is returned when a write command targets a pin whose
	// mode is not OUTPUT or PWM.
	ErrNotWritable = errors.New("gpio: pin mode does not accept writes")

	// ErrInvalidConfig is returned when a pin configuration payload cannot
	// be parsed.
	ErrInvalidConfig = errors.New("gpio: invalid pin configuration")
)
