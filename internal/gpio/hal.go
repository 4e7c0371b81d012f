package gpio

import "strings"

// Mode is a pin's configured role.
type Mode int

// Pin modes accepted in configuration payloads.
const (
	ModeOutput Mode = iota
	ModeInput
	ModeInputPullup
	ModePWM
	ModeAnalogInput
)

// ParseMode converts a mode string to a Mode. Matching is case-insensitive.
//
// Returns:
//   - Mode: Parsed mode
//   - error: ErrUnknownMode for unrecognised strings
func ParseMode(s string) (Mode, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "OUTPUT":
		return ModeOutput, nil
	case "INPUT":
		return ModeInput, nil
	case "INPUT_PULLUP":
		return ModeInputPullup, nil
	case "PWM":
		return ModePWM, nil
	case "ANALOG_INPUT":
		return ModeAnalogInput, nil
	default:
		return 0, ErrUnknownMode
	}
}

// String returns the canonical configuration spelling of the mode.
func (m Mode) String() string {
	switch m {
	case ModeOutput:
		return "OUTPUT"
	case ModeInput:
		return "INPUT"
	case ModeInputPullup:
		return "INPUT_PULLUP"
	case ModePWM:
		return "PWM"
	case ModeAnalogInput:
		return "ANALOG_INPUT"
	default:
		return "UNKNOWN"
	}
}

// readsDigital reports whether the mode is polled with a digital read.
func (m Mode) readsDigital() bool {
	return m == ModeInput || m == ModeInputPullup
}

// writable reports whether the mode accepts write commands.
func (m Mode) writable() bool {
	return m == ModeOutput || m == ModePWM
}

// Hardware is the capability surface the pin table needs from a board.
// Implementations exist per board family; tests substitute a fake.
//
// Pin numbers are the board's native GPIO numbers, produced by ResolvePin
// from symbolic names like "D4" or "A0".
type Hardware interface {
	// ResolvePin maps a normalized (uppercase) symbolic name to a
	// hardware pin number. ok is false when the board has no such pin.
	ResolvePin(name string) (pin uint8, ok bool)

	// PinMode configures the electrical role of a pin.
	PinMode(pin uint8, mode Mode) error

	// ReadDigital samples a digital input. true is high.
	ReadDigital(pin uint8) (bool, error)

	// ReadAnalog samples an analog input.
	ReadAnalog(pin uint8) (int, error)

	// WriteDigital drives a digital output. true is high.
	WriteDigital(pin uint8, high bool) error

	// WritePWM drives a PWM output with an 8-bit duty cycle.
	// Implementations perform channel setup lazily on first use.
	WritePWM(pin uint8, duty uint8) error

	// DetachPWM releases a pin's PWM channel so it can be driven as a
	// plain digital output again.
	DetachPWM(pin uint8) error
}
