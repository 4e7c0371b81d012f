package gpio

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/vwire-io/vwire-device/internal/timer"
)

// Pin table constants.
const (
	// DefaultMaxPins is the default pin table size.
	DefaultMaxPins = 16

	// maxNameLen bounds symbolic pin names ("D10" fits, junk does not).
	maxNameLen = 5

	// DefaultReadIntervalMS is used when a pin is configured with
	// interval zero.
	DefaultReadIntervalMS = 1000

	// MinReadIntervalMS floors the poll cadence to keep chatty sensors
	// from flooding the broker.
	MinReadIntervalMS = 100

	// MaxReadIntervalMS caps the poll cadence.
	MaxReadIntervalMS = 60000

	// unreadValue marks a pin that has never been sampled, so the first
	// real reading always publishes.
	unreadValue = -32768
)

// Logger interface for optional logging support.
// Compatible with logging.Logger and slog.Logger.
type Logger interface {
	Error(msg string, args ...any)
	Warn(msg string, args ...any)
}

// noopLogger discards all log output. Used when no logger is configured.
type noopLogger struct{}

func (noopLogger) Error(string, ...any) {}
func (noopLogger) Warn(string, ...any)  {}

// PinConfig is one pin's declarative configuration, as pushed by the
// server and as persisted locally.
type PinConfig struct {
	Pin      string `json:"pin"`
	Mode     string `json:"mode"`
	Interval uint32 `json:"interval"`
}

// configPayload is the wire form of a server pin configuration push.
type configPayload struct {
	Pins []PinConfig `json:"pins"`
}

// entry is one slot in the fixed pin table.
type entry struct {
	name        string
	pin         uint8
	mode        Mode
	interval    uint32
	lastRead    uint32
	lastValue   int
	pwmAttached bool
	inUse       bool
}

// PublishFunc receives change notifications from Poll.
type PublishFunc func(name string, value int)

// Table manages a fixed set of hardware pins: declarative configuration,
// cadenced change-only polling of inputs, and guarded writes to outputs.
//
// All hardware access goes through the Hardware capability interface, so
// the table itself is board-agnostic.
//
// Thread Safety:
//   - All methods are safe for concurrent use from multiple goroutines.
type Table struct {
	mu      sync.Mutex
	entries []entry
	hw      Hardware
	clock   timer.Clock
	logger  Logger
}

// NewTable creates a pin table with the default capacity and clock.
func NewTable(hw Hardware) *Table {
	return NewTableWithOptions(hw, DefaultMaxPins, nil)
}

// NewTableWithOptions creates a pin table with a custom capacity and clock.
//
// Parameters:
//   - hw: Board hardware access
//   - maxPins: Table size; values < 1 fall back to DefaultMaxPins
//   - clock: Millisecond clock for poll cadence; nil selects a wall-clock
//     default
func NewTableWithOptions(hw Hardware, maxPins int, clock timer.Clock) *Table {
	if maxPins < 1 {
		maxPins = DefaultMaxPins
	}
	if clock == nil {
		start := time.Now()
		clock = func() uint32 {
			return uint32(time.Since(start).Milliseconds())
		}
	}
	return &Table{
		entries: make([]entry, maxPins),
		hw:      hw,
		clock:   clock,
		logger:  noopLogger{},
	}
}

// SetLogger sets a logger for configuration warnings.
func (t *Table) SetLogger(logger Logger) {
	t.mu.Lock()
	if logger != nil {
		t.logger = logger
	}
	t.mu.Unlock()
}

// AddPin registers a pin by symbolic name.
//
// Names are case-insensitive and stored uppercase. Re-adding an existing
// name updates its mode and interval in place without consuming a slot.
// The read interval is clamped: zero selects DefaultReadIntervalMS, other
// values are held to [MinReadIntervalMS, MaxReadIntervalMS].
//
// Parameters:
//   - name: Symbolic name, e.g. "D4" or "a0"
//   - mode: Pin mode string, e.g. "OUTPUT" (case-insensitive)
//   - intervalMS: Poll cadence for input modes
//
// Returns:
//   - error: ErrInvalidName, ErrUnknownMode, ErrUnresolvable,
//     ErrTableFull, or a hardware error
func (t *Table) AddPin(name, mode string, intervalMS uint32) error {
	normalized, err := normalizeName(name)
	if err != nil {
		return err
	}

	pinNum, ok := t.hw.ResolvePin(normalized)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnresolvable, normalized)
	}

	return t.addResolved(normalized, pinNum, mode, intervalMS)
}

// AddPinGPIO registers a pin with an explicit hardware pin number,
// bypassing board name resolution. The symbolic name is still used as the
// table key and in publications.
func (t *Table) AddPinGPIO(name string, pinNum uint8, mode string, intervalMS uint32) error {
	normalized, err := normalizeName(name)
	if err != nil {
		return err
	}
	return t.addResolved(normalized, pinNum, mode, intervalMS)
}

// addResolved inserts or updates a table entry for an already-resolved pin.
func (t *Table) addResolved(name string, pinNum uint8, mode string, intervalMS uint32) error {
	m, err := ParseMode(mode)
	if err != nil {
		return fmt.Errorf("%w: %q", ErrUnknownMode, mode)
	}

	intervalMS = clampInterval(intervalMS)

	t.mu.Lock()
	defer t.mu.Unlock()

	idx := t.findLocked(name)
	if idx < 0 {
		idx = t.freeSlotLocked()
		if idx < 0 {
			return ErrTableFull
		}
	}

	t.entries[idx] = entry{
		name:      name,
		pin:       pinNum,
		mode:      m,
		interval:  intervalMS,
		lastRead:  t.clock(),
		lastValue: unreadValue,
		inUse:     true,
	}

	if err := t.hw.PinMode(pinNum, m); err != nil {
		t.entries[idx] = entry{}
		return fmt.Errorf("configuring pin %s: %w", name, err)
	}
	return nil
}

// RemovePin frees the slot registered under name.
//
// Returns:
//   - bool: false if the name is not in the table
func (t *Table) RemovePin(name string) bool {
	normalized, err := normalizeName(name)
	if err != nil {
		return false
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	idx := t.findLocked(normalized)
	if idx < 0 {
		return false
	}
	t.entries[idx] = entry{}
	return true
}

// ClearAll frees every slot.
func (t *Table) ClearAll() {
	t.mu.Lock()
	defer t.mu.Unlock()
	for i := range t.entries {
		t.entries[i] = entry{}
	}
}

// ApplyConfig replaces pins from a server configuration payload:
//
//	{"pins":[{"pin":"D4","mode":"OUTPUT","interval":1000}, ...]}
//
// Entries that fail validation are skipped with a warning; valid entries
// are still applied.
//
// Returns:
//   - int: Number of pins applied
//   - error: ErrInvalidConfig if the payload does not parse
func (t *Table) ApplyConfig(payload []byte) (int, error) {
	var cfg configPayload
	if err := json.Unmarshal(payload, &cfg); err != nil {
		return 0, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	applied := 0
	for _, pc := range cfg.Pins {
		if err := t.AddPin(pc.Pin, pc.Mode, pc.Interval); err != nil {
			t.logger.Warn("skipping pin config entry",
				"pin", pc.Pin,
				"mode", pc.Mode,
				"error", err,
			)
			continue
		}
		applied++
	}
	return applied, nil
}

// Poll samples every input pin whose cadence has elapsed and reports
// changed values through publish. Unchanged readings are suppressed, so
// broker traffic is proportional to activity, not to poll rate.
func (t *Table) Poll(publish PublishFunc) {
	now := t.clock()

	type change struct {
		name  string
		value int
	}
	var changes []change

	t.mu.Lock()
	for i := range t.entries {
		e := &t.entries[i]
		if !e.inUse || e.mode.writable() {
			continue
		}
		if now-e.lastRead < e.interval {
			continue
		}
		e.lastRead = now

		var value int
		switch {
		case e.mode.readsDigital():
			high, err := t.hw.ReadDigital(e.pin)
			if err != nil {
				t.logger.Warn("digital read failed", "pin", e.name, "error", err)
				continue
			}
			if high {
				value = 1
			}
		case e.mode == ModeAnalogInput:
			v, err := t.hw.ReadAnalog(e.pin)
			if err != nil {
				t.logger.Warn("analog read failed", "pin", e.name, "error", err)
				continue
			}
			value = v
		default:
			continue
		}

		if value == e.lastValue {
			continue
		}
		e.lastValue = value
		changes = append(changes, change{name: e.name, value: value})
	}
	t.mu.Unlock()

	// Publish outside the lock; publish may call back into the table.
	if publish != nil {
		for _, c := range changes {
			publish(c.name, c.value)
		}
	}
}

// HandleCommand writes a value to an OUTPUT or PWM pin.
//
// The value is clamped to [0, 255] and dispatched by magnitude:
//   - 0 or 1 drives a plain digital level. If the pin previously ran PWM,
//     its channel is detached first so the level actually sticks.
//   - 2 through 255 drives PWM duty. The channel is attached lazily on
//     first PWM write and remembered in the entry.
//
// Parameters:
//   - name: Symbolic pin name (case-insensitive)
//   - value: Requested value, clamped to [0, 255]
//
// Returns:
//   - error: ErrUnknownPin, ErrNotWritable, or a hardware error
func (t *Table) HandleCommand(name string, value int) error {
	normalized, err := normalizeName(name)
	if err != nil {
		return err
	}

	if value < 0 {
		value = 0
	}
	if value > 255 {
		value = 255
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	idx := t.findLocked(normalized)
	if idx < 0 {
		return fmt.Errorf("%w: %s", ErrUnknownPin, normalized)
	}
	e := &t.entries[idx]

	if !e.mode.writable() {
		return fmt.Errorf("%w: %s is %s", ErrNotWritable, e.name, e.mode)
	}

	if value <= 1 {
		if e.pwmAttached {
			if err := t.hw.DetachPWM(e.pin); err != nil {
				return fmt.Errorf("detaching pwm on %s: %w", e.name, err)
			}
			e.pwmAttached = false
		}
		if err := t.hw.WriteDigital(e.pin, value == 1); err != nil {
			return fmt.Errorf("writing %s: %w", e.name, err)
		}
	} else {
		if err := t.hw.WritePWM(e.pin, uint8(value)); err != nil {
			return fmt.Errorf("writing pwm on %s: %w", e.name, err)
		}
		e.pwmAttached = true
	}

	e.lastValue = value
	return nil
}

// PinCount returns the number of registered pins.
func (t *Table) PinCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	n := 0
	for i := range t.entries {
		if t.entries[i].inUse {
			n++
		}
	}
	return n
}

// HasPin reports whether name is registered (case-insensitive).
func (t *Table) HasPin(name string) bool {
	normalized, err := normalizeName(name)
	if err != nil {
		return false
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	return t.findLocked(normalized) >= 0
}

// PinValue returns the last known value for name. ok is false when the
// pin is unknown or has never been sampled or written.
func (t *Table) PinValue(name string) (value int, ok bool) {
	normalized, err := normalizeName(name)
	if err != nil {
		return 0, false
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	idx := t.findLocked(normalized)
	if idx < 0 || t.entries[idx].lastValue == unreadValue {
		return 0, false
	}
	return t.entries[idx].lastValue, true
}

// Configs returns a snapshot of the current pin configuration, suitable
// for local persistence and restore.
func (t *Table) Configs() []PinConfig {
	t.mu.Lock()
	defer t.mu.Unlock()

	var out []PinConfig
	for i := range t.entries {
		e := &t.entries[i]
		if !e.inUse {
			continue
		}
		out = append(out, PinConfig{
			Pin:      e.name,
			Mode:     e.mode.String(),
			Interval: e.interval,
		})
	}
	return out
}

// findLocked returns the slot index for name, or -1. Caller must hold t.mu.
func (t *Table) findLocked(name string) int {
	for i := range t.entries {
		if t.entries[i].inUse && t.entries[i].name == name {
			return i
		}
	}
	return -1
}

// freeSlotLocked returns the lowest free slot index, or -1. Caller must hold t.mu.
func (t *Table) freeSlotLocked() int {
	for i := range t.entries {
		if !t.entries[i].inUse {
			return i
		}
	}
	return -1
}

// normalizeName uppercases and validates a symbolic pin name.
func normalizeName(name string) (string, error) {
	name = strings.ToUpper(strings.TrimSpace(name))
	if len(name) < 2 || len(name) > maxNameLen {
		return "", fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	if _, _, ok := splitPinName(name); !ok {
		return "", fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return name, nil
}

// clampInterval applies the default and bounds to a poll interval.
func clampInterval(ms uint32) uint32 {
	if ms == 0 {
		return DefaultReadIntervalMS
	}
	if ms < MinReadIntervalMS {
		return MinReadIntervalMS
	}
	if ms > MaxReadIntervalMS {
		return MaxReadIntervalMS
	}
	return ms
}
