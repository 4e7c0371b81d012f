package gpio

import (
	"errors"
	"testing"
)

// fakeClock is a manual millisecond clock for cadence tests.
type fakeClock struct {
	now uint32
}

func (c *fakeClock) clock() uint32 { return c.now }

// fakeHardware records every call so tests can assert exact dispatch.
type fakeHardware struct {
	resolve func(string) (uint8, bool)

	modes    map[uint8]Mode
	digital  map[uint8]bool
	analog   map[uint8]int
	pwm      map[uint8]uint8
	detached []uint8
}

func newFakeHardware() *fakeHardware {
	return &fakeHardware{
		resolve: resolveGeneric,
		modes:   make(map[uint8]Mode),
		digital: make(map[uint8]bool),
		analog:  make(map[uint8]int),
		pwm:     make(map[uint8]uint8),
	}
}

func (f *fakeHardware) ResolvePin(name string) (uint8, bool) { return f.resolve(name) }

func (f *fakeHardware) PinMode(pin uint8, mode Mode) error {
	f.modes[pin] = mode
	return nil
}

func (f *fakeHardware) ReadDigital(pin uint8) (bool, error) { return f.digital[pin], nil }
func (f *fakeHardware) ReadAnalog(pin uint8) (int, error)   { return f.analog[pin], nil }

func (f *fakeHardware) WriteDigital(pin uint8, high bool) error {
	f.digital[pin] = high
	return nil
}

func (f *fakeHardware) WritePWM(pin uint8, duty uint8) error {
	f.pwm[pin] = duty
	return nil
}

func (f *fakeHardware) DetachPWM(pin uint8) error {
	f.detached = append(f.detached, pin)
	delete(f.pwm, pin)
	return nil
}

func newTestTable() (*Table, *fakeHardware, *fakeClock) {
	hw := newFakeHardware()
	clk := &fakeClock{}
	return NewTableWithOptions(hw, DefaultMaxPins, clk.clock), hw, clk
}

// =============================================================================
// Registration Tests
// =============================================================================

func TestAddPin(t *testing.T) {
	table, hw, _ := newTestTable()

	if err := table.AddPin("D4", "OUTPUT", 0); err != nil {
		t.Fatalf("AddPin() error = %v", err)
	}

	if !table.HasPin("D4") {
		t.Error("HasPin(D4) = false after AddPin")
	}
	if table.PinCount() != 1 {
		t.Errorf("PinCount() = %d, want 1", table.PinCount())
	}
	if hw.modes[4] != ModeOutput {
		t.Errorf("hardware mode = %v, want OUTPUT", hw.modes[4])
	}
}

func TestAddPin_CaseInsensitiveIdempotent(t *testing.T) {
	table, _, _ := newTestTable()

	if err := table.AddPin("d4", "OUTPUT", 0); err != nil {
		t.Fatalf("AddPin(d4) error = %v", err)
	}
	if err := table.AddPin("D4", "output", 0); err != nil {
		t.Fatalf("AddPin(D4) error = %v", err)
	}

	if table.PinCount() != 1 {
		t.Errorf("PinCount() = %d after re-add, want 1", table.PinCount())
	}

	// Lookup works in any case; storage is uppercase.
	if !table.HasPin("d4") || !table.HasPin("D4") {
		t.Error("HasPin should be case-insensitive")
	}

	configs := table.Configs()
	if len(configs) != 1 || configs[0].Pin != "D4" {
		t.Errorf("Configs() = %+v, want single uppercase D4", configs)
	}
}

func TestAddPin_ReAddUpdatesConfig(t *testing.T) {
	table, hw, _ := newTestTable()

	table.AddPin("D2", "OUTPUT", 0)
	if err := table.AddPin("D2", "PWM", 250); err != nil {
		t.Fatalf("re-add error = %v", err)
	}

	configs := table.Configs()
	if len(configs) != 1 {
		t.Fatalf("Configs() len = %d, want 1", len(configs))
	}
	if configs[0].Mode != "PWM" || configs[0].Interval != 250 {
		t.Errorf("Configs()[0] = %+v, want PWM/250", configs[0])
	}
	if hw.modes[2] != ModePWM {
		t.Errorf("hardware mode = %v, want PWM", hw.modes[2])
	}
}

func TestAddPin_IntervalClamping(t *testing.T) {
	tests := []struct {
		name     string
		interval uint32
		want     uint32
	}{
		{"zero selects default", 0, DefaultReadIntervalMS},
		{"below minimum", 10, MinReadIntervalMS},
		{"at minimum", 100, 100},
		{"in range", 5000, 5000},
		{"above maximum", 120000, MaxReadIntervalMS},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			table, _, _ := newTestTable()
			if err := table.AddPin("D1", "INPUT", tt.interval); err != nil {
				t.Fatalf("AddPin() error = %v", err)
			}
			configs := table.Configs()
			if configs[0].Interval != tt.want {
				t.Errorf("interval = %d, want %d", configs[0].Interval, tt.want)
			}
		})
	}
}

func TestAddPin_InvalidNames(t *testing.T) {
	table, _, _ := newTestTable()

	for _, name := range []string{"", "D", "X4", "4D", "D12345", "GPIO2"} {
		err := table.AddPin(name, "OUTPUT", 0)
		if !errors.Is(err, ErrInvalidName) {
			t.Errorf("AddPin(%q) error = %v, want ErrInvalidName", name, err)
		}
	}
}

func TestAddPin_UnknownMode(t *testing.T) {
	table, _, _ := newTestTable()

	err := table.AddPin("D1", "WIBBLE", 0)
	if !errors.Is(err, ErrUnknownMode) {
		t.Errorf("AddPin() error = %v, want ErrUnknownMode", err)
	}
	if table.HasPin("D1") {
		t.Error("pin registered despite unknown mode")
	}
}

func TestAddPin_TableFull(t *testing.T) {
	hw := newFakeHardware()
	table := NewTableWithOptions(hw, 2, (&fakeClock{}).clock)

	table.AddPin("D1", "OUTPUT", 0)
	table.AddPin("D2", "OUTPUT", 0)

	err := table.AddPin("D3", "OUTPUT", 0)
	if !errors.Is(err, ErrTableFull) {
		t.Errorf("AddPin() error = %v, want ErrTableFull", err)
	}
}

func TestAddPinGPIO(t *testing.T) {
	table, hw, _ := newTestTable()

	// Explicit pin number bypasses board resolution.
	if err := table.AddPinGPIO("D9", 42, "OUTPUT", 0); err != nil {
		t.Fatalf("AddPinGPIO() error = %v", err)
	}
	if hw.modes[42] != ModeOutput {
		t.Error("explicit pin number not used")
	}
}

func TestRemovePin(t *testing.T) {
	table, _, _ := newTestTable()

	table.AddPin("D5", "INPUT", 0)

	if !table.RemovePin("d5") {
		t.Error("RemovePin(d5) = false, want true")
	}
	if table.HasPin("D5") {
		t.Error("pin still present after RemovePin")
	}
	if table.RemovePin("D5") {
		t.Error("RemovePin() = true for absent pin")
	}
}

func TestClearAll(t *testing.T) {
	table, _, _ := newTestTable()

	table.AddPin("D1", "INPUT", 0)
	table.AddPin("D2", "OUTPUT", 0)
	table.ClearAll()

	if table.PinCount() != 0 {
		t.Errorf("PinCount() = %d after ClearAll, want 0", table.PinCount())
	}
}

// =============================================================================
// Name Resolution Tests
// =============================================================================

func TestResolveNodeMCU(t *testing.T) {
	tests := []struct {
		name string
		pin  uint8
		ok   bool
	}{
		{"D0", 16, true},
		{"D1", 5, true},
		{"D2", 4, true},
		{"D3", 0, true},
		{"D4", 2, true},
		{"D5", 14, true},
		{"D6", 12, true},
		{"D7", 13, true},
		{"D8", 15, true},
		{"D9", 3, true},
		{"D10", 1, true},
		{"D11", 0, false},
		{"A0", 17, true},
		{"A1", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pin, ok := resolveNodeMCU(tt.name)
			if ok != tt.ok || (ok && pin != tt.pin) {
				t.Errorf("resolveNodeMCU(%q) = (%d, %v), want (%d, %v)",
					tt.name, pin, ok, tt.pin, tt.ok)
			}
		})
	}
}

func TestResolveGeneric(t *testing.T) {
	if pin, ok := resolveGeneric("D13"); !ok || pin != 13 {
		t.Errorf("resolveGeneric(D13) = (%d, %v), want (13, true)", pin, ok)
	}
	if pin, ok := resolveGeneric("A2"); !ok || pin != 2 {
		t.Errorf("resolveGeneric(A2) = (%d, %v), want (2, true)", pin, ok)
	}
	if _, ok := resolveGeneric("D999"); ok {
		t.Error("resolveGeneric(D999) should not resolve")
	}
}

func TestAddPin_UnresolvableOnBoard(t *testing.T) {
	hw := newFakeHardware()
	hw.resolve = resolveNodeMCU
	table := NewTableWithOptions(hw, DefaultMaxPins, (&fakeClock{}).clock)

	err := table.AddPin("D11", "OUTPUT", 0)
	if !errors.Is(err, ErrUnresolvable) {
		t.Errorf("AddPin(D11) error = %v, want ErrUnresolvable", err)
	}
}

// =============================================================================
// Polling Tests
// =============================================================================

func TestPoll_ChangeOnlyPublication(t *testing.T) {
	table, hw, clk := newTestTable()

	table.AddPin("D3", "INPUT", 100)

	var published []int
	publish := func(name string, value int) {
		if name != "D3" {
			t.Errorf("published name = %q, want D3", name)
		}
		published = append(published, value)
	}

	// First elapsed poll publishes even for a low reading, because the
	// pin has never been sampled.
	clk.now += 100
	table.Poll(publish)
	if len(published) != 1 || published[0] != 0 {
		t.Fatalf("published = %v, want [0]", published)
	}

	// Unchanged reading publishes nothing.
	clk.now += 100
	table.Poll(publish)
	if len(published) != 1 {
		t.Errorf("unchanged value was published: %v", published)
	}

	// Changed reading publishes.
	hw.digital[3] = true
	clk.now += 100
	table.Poll(publish)
	if len(published) != 2 || published[1] != 1 {
		t.Errorf("published = %v, want [0 1]", published)
	}
}

func TestPoll_PerPinCadence(t *testing.T) {
	table, hw, clk := newTestTable()

	table.AddPin("D1", "INPUT", 100)
	table.AddPin("A0", "ANALOG_INPUT", 300)
	hw.digital[1] = true
	hw.analog[0] = 512

	counts := map[string]int{}
	publish := func(name string, _ int) { counts[name]++ }

	// Only D1's interval has elapsed.
	clk.now += 100
	table.Poll(publish)
	if counts["D1"] != 1 || counts["A0"] != 0 {
		t.Errorf("counts = %v after 100ms, want D1 only", counts)
	}

	// At 300ms both are due; D1 has not changed so publishes nothing new.
	clk.now += 200
	table.Poll(publish)
	if counts["A0"] != 1 {
		t.Errorf("A0 count = %d after 300ms, want 1", counts["A0"])
	}
	if counts["D1"] != 1 {
		t.Errorf("D1 republished unchanged value: %d", counts["D1"])
	}
}

func TestPoll_NotDueBeforeInterval(t *testing.T) {
	table, _, clk := newTestTable()

	table.AddPin("D1", "INPUT", 100)

	fired := 0
	clk.now += 99
	table.Poll(func(string, int) { fired++ })
	if fired != 0 {
		t.Errorf("poll fired %d times before interval elapsed", fired)
	}
}

func TestPoll_SkipsOutputPins(t *testing.T) {
	table, _, clk := newTestTable()

	table.AddPin("D1", "OUTPUT", 100)
	table.AddPin("D2", "PWM", 100)

	fired := 0
	clk.now += 1000
	table.Poll(func(string, int) { fired++ })
	if fired != 0 {
		t.Errorf("output pins were polled: %d publications", fired)
	}
}

// =============================================================================
// Write Dispatch Tests
// =============================================================================

func TestHandleCommand_SmartWriteThresholds(t *testing.T) {
	tests := []struct {
		name      string
		value     int
		wantPWM   bool
		wantDuty  uint8
		wantLevel bool
	}{
		{"zero is digital low", 0, false, 0, false},
		{"one is digital high", 1, false, 0, true},
		{"two is PWM", 2, true, 2, false},
		{"mid-range PWM", 128, true, 128, false},
		{"max PWM", 255, true, 255, false},
		{"negative clamps to digital low", -10, false, 0, false},
		{"overflow clamps to max PWM", 999, true, 255, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			table, hw, _ := newTestTable()
			table.AddPin("D2", "OUTPUT", 0)

			if err := table.HandleCommand("D2", tt.value); err != nil {
				t.Fatalf("HandleCommand() error = %v", err)
			}

			duty, attached := hw.pwm[2]
			if attached != tt.wantPWM {
				t.Errorf("pwm attached = %v, want %v", attached, tt.wantPWM)
			}
			if tt.wantPWM && duty != tt.wantDuty {
				t.Errorf("duty = %d, want %d", duty, tt.wantDuty)
			}
			if !tt.wantPWM && hw.digital[2] != tt.wantLevel {
				t.Errorf("level = %v, want %v", hw.digital[2], tt.wantLevel)
			}
		})
	}
}

func TestHandleCommand_DetachesPWMBeforeDigital(t *testing.T) {
	table, hw, _ := newTestTable()
	table.AddPin("D2", "PWM", 0)

	// Attach PWM, then drop to a digital level.
	table.HandleCommand("D2", 200)
	if _, ok := hw.pwm[2]; !ok {
		t.Fatal("PWM not attached after PWM write")
	}

	table.HandleCommand("D2", 0)
	if len(hw.detached) != 1 || hw.detached[0] != 2 {
		t.Errorf("detached = %v, want [2]", hw.detached)
	}
	if _, ok := hw.pwm[2]; ok {
		t.Error("PWM still attached after digital write")
	}

	// A second digital write must not detach again.
	table.HandleCommand("D2", 1)
	if len(hw.detached) != 1 {
		t.Errorf("detach called %d times, want 1", len(hw.detached))
	}
}

func TestHandleCommand_RejectsNonWritable(t *testing.T) {
	table, _, _ := newTestTable()
	table.AddPin("D1", "INPUT", 0)
	table.AddPin("A0", "ANALOG_INPUT", 0)

	for _, name := range []string{"D1", "A0"} {
		err := table.HandleCommand(name, 1)
		if !errors.Is(err, ErrNotWritable) {
			t.Errorf("HandleCommand(%s) error = %v, want ErrNotWritable", name, err)
		}
	}
}

func TestHandleCommand_UnknownPin(t *testing.T) {
	table, _, _ := newTestTable()

	err := table.HandleCommand("D7", 1)
	if !errors.Is(err, ErrUnknownPin) {
		t.Errorf("HandleCommand() error = %v, want ErrUnknownPin", err)
	}
}

func TestPinValue(t *testing.T) {
	table, _, _ := newTestTable()
	table.AddPin("D2", "OUTPUT", 0)

	if _, ok := table.PinValue("D2"); ok {
		t.Error("PinValue() ok = true before any write")
	}

	table.HandleCommand("D2", 128)
	v, ok := table.PinValue("d2")
	if !ok || v != 128 {
		t.Errorf("PinValue() = (%d, %v), want (128, true)", v, ok)
	}
}

// =============================================================================
// Configuration Payload Tests
// =============================================================================

func TestApplyConfig(t *testing.T) {
	table, _, _ := newTestTable()

	payload := []byte(`{"pins":[
		{"pin":"D4","mode":"OUTPUT","interval":0},
		{"pin":"A0","mode":"ANALOG_INPUT","interval":500},
		{"pin":"D5","mode":"INPUT_PULLUP","interval":1000}
	]}`)

	applied, err := table.ApplyConfig(payload)
	if err != nil {
		t.Fatalf("ApplyConfig() error = %v", err)
	}
	if applied != 3 {
		t.Errorf("applied = %d, want 3", applied)
	}
	if table.PinCount() != 3 {
		t.Errorf("PinCount() = %d, want 3", table.PinCount())
	}
}

func TestApplyConfig_SkipsInvalidEntries(t *testing.T) {
	table, _, _ := newTestTable()

	payload := []byte(`{"pins":[
		{"pin":"D4","mode":"OUTPUT","interval":0},
		{"pin":"bogus","mode":"OUTPUT","interval":0},
		{"pin":"D5","mode":"NOT_A_MODE","interval":0}
	]}`)

	applied, err := table.ApplyConfig(payload)
	if err != nil {
		t.Fatalf("ApplyConfig() error = %v", err)
	}
	if applied != 1 {
		t.Errorf("applied = %d, want 1 (invalid entries skipped)", applied)
	}
}

func TestApplyConfig_MalformedJSON(t *testing.T) {
	table, _, _ := newTestTable()

	_, err := table.ApplyConfig([]byte(`{"pins":[`))
	if !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("ApplyConfig() error = %v, want ErrInvalidConfig", err)
	}
}

// =============================================================================
// Mode Parsing Tests
// =============================================================================

func TestParseMode(t *testing.T) {
	tests := []struct {
		input   string
		want    Mode
		wantErr bool
	}{
		{"OUTPUT", ModeOutput, false},
		{"output", ModeOutput, false},
		{"Input", ModeInput, false},
		{"INPUT_PULLUP", ModeInputPullup, false},
		{"pwm", ModePWM, false},
		{"analog_input", ModeAnalogInput, false},
		{" OUTPUT ", ModeOutput, false},
		{"SERVO", 0, true},
		{"", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseMode(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseMode(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if err == nil && got != tt.want {
				t.Errorf("ParseMode(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}
