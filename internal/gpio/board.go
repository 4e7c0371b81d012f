package gpio

import (
	"strconv"
	"sync"
)

// nodemcuDigital maps NodeMCU silkscreen labels to ESP8266 GPIO numbers.
// The labels do not match GPIO numbers on this family, which is the whole
// reason symbolic resolution exists.
var nodemcuDigital = map[int]uint8{
	0:  16,
	1:  5,
	2:  4,
	3:  0,
	4:  2,
	5:  14,
	6:  12,
	7:  13,
	8:  15,
	9:  3,
	10: 1,
}

// nodemcuAnalog is the single ADC pin on the ESP8266.
const nodemcuAnalog uint8 = 17

// resolveNodeMCU maps a normalized pin name to an ESP8266 GPIO number.
func resolveNodeMCU(name string) (uint8, bool) {
	prefix, n, ok := splitPinName(name)
	if !ok {
		return 0, false
	}
	switch prefix {
	case 'D':
		pin, ok := nodemcuDigital[n]
		return pin, ok
	case 'A':
		if n == 0 {
			return nodemcuAnalog, true
		}
	}
	return 0, false
}

// resolveGeneric maps pin names directly to their numeric suffix.
// Used for boards whose labels match GPIO numbers.
func resolveGeneric(name string) (uint8, bool) {
	_, n, ok := splitPinName(name)
	if !ok || n > 255 {
		return 0, false
	}
	return uint8(n), true
}

// splitPinName separates a normalized name like "D4" into prefix and number.
func splitPinName(name string) (prefix byte, n int, ok bool) {
	if len(name) < 2 {
		return 0, 0, false
	}
	prefix = name[0]
	if prefix != 'D' && prefix != 'A' {
		return 0, 0, false
	}
	n, err := strconv.Atoi(name[1:])
	if err != nil || n < 0 {
		return 0, 0, false
	}
	return prefix, n, true
}

// Simulated is an in-memory Hardware implementation. It backs the agent on
// hosts without GPIO headers and doubles as the seam for feeding input
// values in tests and demos.
//
// Thread Safety:
//   - All methods are safe for concurrent use from multiple goroutines.
type Simulated struct {
	resolve func(string) (uint8, bool)

	mu      sync.Mutex
	digital map[uint8]bool
	analog  map[uint8]int
	pwm     map[uint8]uint8
	modes   map[uint8]Mode
}

// NewHardware returns the Hardware for the named board family.
// Unknown names fall back to the generic identity mapping.
func NewHardware(board string) *Simulated {
	resolve := resolveGeneric
	if board == "nodemcu" {
		resolve = resolveNodeMCU
	}
	return &Simulated{
		resolve: resolve,
		digital: make(map[uint8]bool),
		analog:  make(map[uint8]int),
		pwm:     make(map[uint8]uint8),
		modes:   make(map[uint8]Mode),
	}
}

// ResolvePin maps a symbolic name to a pin number per the board family.
func (s *Simulated) ResolvePin(name string) (uint8, bool) {
	return s.resolve(name)
}

// PinMode records the pin's configured role.
func (s *Simulated) PinMode(pin uint8, mode Mode) error {
	s.mu.Lock()
	s.modes[pin] = mode
	s.mu.Unlock()
	return nil
}

// ReadDigital returns the last digital level set on the pin.
func (s *Simulated) ReadDigital(pin uint8) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.digital[pin], nil
}

// ReadAnalog returns the last analog value set on the pin.
func (s *Simulated) ReadAnalog(pin uint8) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.analog[pin], nil
}

// WriteDigital sets the pin's digital level.
func (s *Simulated) WriteDigital(pin uint8, high bool) error {
	s.mu.Lock()
	s.digital[pin] = high
	s.mu.Unlock()
	return nil
}

// WritePWM sets the pin's duty cycle.
func (s *Simulated) WritePWM(pin uint8, duty uint8) error {
	s.mu.Lock()
	s.pwm[pin] = duty
	s.mu.Unlock()
	return nil
}

// DetachPWM clears any duty cycle recorded for the pin.
func (s *Simulated) DetachPWM(pin uint8) error {
	s.mu.Lock()
	delete(s.pwm, pin)
	s.mu.Unlock()
	return nil
}

// SetDigital feeds a digital input level, as if the pin changed externally.
func (s *Simulated) SetDigital(pin uint8, high bool) {
	s.mu.Lock()
	s.digital[pin] = high
	s.mu.Unlock()
}

// SetAnalog feeds an analog input value, as if the pin changed externally.
func (s *Simulated) SetAnalog(pin uint8, value int) {
	s.mu.Lock()
	s.analog[pin] = value
	s.mu.Unlock()
}

// PWMDuty returns the duty cycle last written to the pin, and whether a
// PWM channel is attached.
func (s *Simulated) PWMDuty(pin uint8) (uint8, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	duty, ok := s.pwm[pin]
	return duty, ok
}
