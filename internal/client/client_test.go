package client

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/vwire-io/vwire-device/internal/delivery"
	"github.com/vwire-io/vwire-device/internal/infrastructure/config"
	"github.com/vwire-io/vwire-device/internal/infrastructure/telemetry"
	"github.com/vwire-io/vwire-device/internal/pin"
)

// =============================================================================
// Test Fixtures
// =============================================================================

type pubMsg struct {
	topic    string
	payload  string
	qos      byte
	retained bool
}

// fakePublisher records outbound messages in place of the broker session.
type fakePublisher struct {
	mu        sync.Mutex
	connected bool
	err       error
	messages  []pubMsg
}

func (f *fakePublisher) Publish(topic string, payload []byte, qos byte, retained bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.messages = append(f.messages, pubMsg{topic, string(payload), qos, retained})
	return nil
}

func (f *fakePublisher) IsConnected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connected
}

func (f *fakePublisher) last(t *testing.T) pubMsg {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.messages) == 0 {
		t.Fatal("no messages published")
	}
	return f.messages[len(f.messages)-1]
}

func (f *fakePublisher) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.messages)
}

func testConfig() *config.Config {
	return &config.Config{
		Device: config.DeviceConfig{
			AuthToken:           "token123",
			Firmware:            "1.0.0",
			HeartbeatIntervalMS: 30000,
		},
		MQTT: config.MQTTConfig{
			QoS: 1,
		},
		Delivery: config.DeliveryConfig{
			Enabled:      false,
			AckTimeoutMS: 5000,
			MaxRetries:   3,
		},
		GPIO: config.GPIOConfig{
			Board: "nodemcu",
		},
	}
}

// newTestClient assembles an agent with a fake broker session attached.
func newTestClient(t *testing.T, mutate func(*config.Config)) (*Client, *fakePublisher) {
	t.Helper()

	cfg := testConfig()
	if mutate != nil {
		mutate(cfg)
	}

	c, err := New(cfg, nil)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	fake := &fakePublisher{connected: true}
	c.pub = fake
	return c, fake
}

// =============================================================================
// Construction Tests
// =============================================================================

func TestNew_Defaults(t *testing.T) {
	c, err := New(testConfig(), nil)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	if c.State() != StateIdle {
		t.Errorf("State() = %v, want StateIdle", c.State())
	}
	if c.DeviceID() != "token123" {
		t.Errorf("DeviceID() = %q, want auth token fallback", c.DeviceID())
	}
	if c.Firmware() != "1.0.0" {
		t.Errorf("Firmware() = %q", c.Firmware())
	}
	if c.Scheduler() == nil || c.GPIO() == nil || c.Delivery() == nil {
		t.Error("component accessors returned nil")
	}
}

func TestClose_NeverConnected(t *testing.T) {
	c, _ := newTestClient(t, nil)
	if err := c.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
	if c.State() != StateIdle {
		t.Errorf("State() after Close = %v, want StateIdle", c.State())
	}
}

// =============================================================================
// Message Routing Tests
// =============================================================================

func TestRoute_VirtualCommand(t *testing.T) {
	c, _ := newTestClient(t, nil)

	var got pin.Value
	if err := c.OnVirtualReceive(5, func(v pin.Value) { got = v }); err != nil {
		t.Fatalf("OnVirtualReceive() error = %v", err)
	}

	if err := c.route("vwire/token123/cmd/V5", []byte("42")); err != nil {
		t.Fatalf("route() error = %v", err)
	}
	if got.Int() != 42 {
		t.Errorf("handler value = %q, want 42", string(got))
	}
}

func TestRoute_BareNumberCommand(t *testing.T) {
	c, _ := newTestClient(t, nil)

	called := false
	c.OnVirtualReceive(7, func(v pin.Value) { called = true })

	c.route("vwire/token123/cmd/7", []byte("on"))
	if !called {
		t.Error("handler not called for bare pin number topic")
	}
}

func TestRoute_GPIOCommand(t *testing.T) {
	c, _ := newTestClient(t, nil)

	if err := c.GPIO().AddPin("D4", "OUTPUT", 1000); err != nil {
		t.Fatalf("AddPin() error = %v", err)
	}

	if err := c.route("vwire/token123/cmd/D4", []byte("1")); err != nil {
		t.Fatalf("route() error = %v", err)
	}

	if v, ok := c.GPIO().PinValue("D4"); !ok || v != 1 {
		t.Errorf("PinValue(D4) = (%d, %v), want (1, true)", v, ok)
	}
}

func TestRoute_GPIOCommandBadPayload(t *testing.T) {
	c, _ := newTestClient(t, nil)
	c.GPIO().AddPin("D4", "OUTPUT", 1000)

	if err := c.route("vwire/token123/cmd/D4", []byte("banana")); err == nil {
		t.Error("route() should reject non-numeric GPIO command payload")
	}
}

func TestRoute_PinConfig(t *testing.T) {
	c, _ := newTestClient(t, nil)

	payload := []byte(`{"pins":[
		{"pin":"A0","mode":"ANALOG_INPUT","interval":500},
		{"pin":"D4","mode":"OUTPUT","interval":1000}
	]}`)

	if err := c.route("vwire/token123/pinconfig", payload); err != nil {
		t.Fatalf("route() error = %v", err)
	}
	if c.GPIO().PinCount() != 2 {
		t.Errorf("PinCount() = %d after config push, want 2", c.GPIO().PinCount())
	}
}

func TestRoute_PinConfigMalformed(t *testing.T) {
	c, _ := newTestClient(t, nil)

	if err := c.route("vwire/token123/pinconfig", []byte("{not json")); err == nil {
		t.Error("route() should propagate pin config parse errors")
	}
}

func TestRoute_AckSettlesPending(t *testing.T) {
	c, fake := newTestClient(t, func(cfg *config.Config) {
		cfg.Delivery.Enabled = true
	})

	id, err := c.VirtualSend(5, "21.5")
	if err != nil {
		t.Fatalf("VirtualSend() error = %v", err)
	}
	if c.Delivery().PendingCount() != 1 {
		t.Fatalf("PendingCount() = %d after send, want 1", c.Delivery().PendingCount())
	}

	ack := fmt.Sprintf(`{"msgId":%q,"ok":true}`, id)
	if err := c.route("vwire/token123/ack", []byte(ack)); err != nil {
		t.Fatalf("route() error = %v", err)
	}
	if c.Delivery().PendingCount() != 0 {
		t.Errorf("PendingCount() = %d after ACK, want 0", c.Delivery().PendingCount())
	}
	if c.IsDeliveryPending() {
		t.Error("IsDeliveryPending() = true after ACK settled everything")
	}

	// Reliable sends go out on the data topic.
	if got := fake.last(t).topic; got != "vwire/token123/data" {
		t.Errorf("published topic = %q, want data topic", got)
	}
}

func TestRoute_UnrelatedTopic(t *testing.T) {
	c, _ := newTestClient(t, nil)

	called := false
	c.OnVirtualReceive(1, func(pin.Value) { called = true })

	if err := c.route("vwire/other-device/cmd/V1", []byte("1")); err != nil {
		t.Errorf("route() error = %v for foreign topic", err)
	}
	if called {
		t.Error("handler dispatched for another device's topic")
	}
}

func TestRoute_RawMessageTap(t *testing.T) {
	c, _ := newTestClient(t, nil)

	var topics []string
	c.OnMessage(func(topic string, payload []byte) {
		topics = append(topics, topic)
	})

	c.route("vwire/token123/cmd/V1", []byte("1"))
	c.route("vwire/token123/pinconfig", []byte(`{"pins":[]}`))

	if len(topics) != 2 {
		t.Errorf("raw tap saw %d messages, want 2", len(topics))
	}
}

// =============================================================================
// Virtual Send Tests
// =============================================================================

func TestVirtualSend_Disconnected(t *testing.T) {
	c, fake := newTestClient(t, nil)
	fake.connected = false

	if _, err := c.VirtualSend(5, "1"); !errors.Is(err, ErrNotConnected) {
		t.Errorf("VirtualSend() error = %v, want ErrNotConnected", err)
	}
}

func TestVirtualSend_FireAndForget(t *testing.T) {
	c, fake := newTestClient(t, nil)

	id, err := c.VirtualSend(5, "21.5")
	if err != nil {
		t.Fatalf("VirtualSend() error = %v", err)
	}
	if id != "" {
		t.Errorf("VirtualSend() id = %q for fire-and-forget, want empty", id)
	}

	msg := fake.last(t)
	if msg.topic != "vwire/token123/pin/V5" {
		t.Errorf("topic = %q, want pin topic", msg.topic)
	}
	if msg.payload != "21.5" {
		t.Errorf("payload = %q, want raw value", msg.payload)
	}
}

func TestVirtualSend_Reliable(t *testing.T) {
	c, fake := newTestClient(t, func(cfg *config.Config) {
		cfg.Delivery.Enabled = true
	})

	id, err := c.VirtualSend(5, "21.5")
	if err != nil {
		t.Fatalf("VirtualSend() error = %v", err)
	}
	if id == "" {
		t.Error("VirtualSend() id empty for reliable send")
	}

	msg := fake.last(t)
	var data struct {
		MsgID string `json:"msgId"`
		Pin   string `json:"pin"`
		Value string `json:"value"`
	}
	if err := json.Unmarshal([]byte(msg.payload), &data); err != nil {
		t.Fatalf("data payload not JSON: %v", err)
	}
	if data.MsgID != id || data.Pin != "V5" || data.Value != "21.5" {
		t.Errorf("data payload = %+v", data)
	}
	if msg.qos != 1 {
		t.Errorf("data qos = %d, want 1", msg.qos)
	}
}

func TestVirtualSend_QueueFull(t *testing.T) {
	c, _ := newTestClient(t, func(cfg *config.Config) {
		cfg.Delivery.Enabled = true
	})

	for i := 0; i < delivery.DefaultMaxPending; i++ {
		if _, err := c.VirtualSend(i, "x"); err != nil {
			t.Fatalf("VirtualSend(%d) error = %v", i, err)
		}
	}

	if _, err := c.VirtualSend(99, "x"); !errors.Is(err, delivery.ErrQueueFull) {
		t.Errorf("VirtualSend() error = %v with full table, want ErrQueueFull", err)
	}
}

func TestVirtualSendf(t *testing.T) {
	c, fake := newTestClient(t, nil)

	c.VirtualSendf(3, "%.1fC", 21.57)
	if got := fake.last(t).payload; got != "21.6C" {
		t.Errorf("payload = %q, want formatted value", got)
	}
}

func TestVirtualSendArray(t *testing.T) {
	c, fake := newTestClient(t, nil)

	c.VirtualSendArray(3, []float64{1.5, 2.25, 3})
	if got := fake.last(t).payload; got != "1.50,2.25,3.00" {
		t.Errorf("payload = %q, want two-decimal CSV", got)
	}

	c.VirtualSendIntArray(3, []int{1, 2, 3})
	if got := fake.last(t).payload; got != "1,2,3" {
		t.Errorf("payload = %q, want integer CSV", got)
	}
}

// =============================================================================
// Sync and Event Tests
// =============================================================================

func TestSyncVirtual(t *testing.T) {
	c, fake := newTestClient(t, nil)

	if err := c.SyncVirtual(5); err != nil {
		t.Fatalf("SyncVirtual() error = %v", err)
	}
	msg := fake.last(t)
	if msg.topic != "vwire/token123/sync/V5" {
		t.Errorf("topic = %q", msg.topic)
	}
	if msg.payload != "" {
		t.Errorf("payload = %q, want empty", msg.payload)
	}
}

func TestSync_Multiple(t *testing.T) {
	c, fake := newTestClient(t, nil)

	if err := c.Sync(1, 2, 3); err != nil {
		t.Fatalf("Sync() error = %v", err)
	}
	if fake.count() != 3 {
		t.Errorf("published %d sync requests, want 3", fake.count())
	}
}

func TestSyncAll(t *testing.T) {
	c, fake := newTestClient(t, nil)

	if err := c.SyncAll(); err != nil {
		t.Fatalf("SyncAll() error = %v", err)
	}
	msg := fake.last(t)
	if msg.topic != "vwire/token123/sync" || msg.payload != "all" {
		t.Errorf("sync all = %+v", msg)
	}
}

func TestNotifyAndLog(t *testing.T) {
	c, fake := newTestClient(t, nil)

	c.Notify("door open")
	if msg := fake.last(t); msg.topic != "vwire/token123/notify" || msg.payload != "door open" {
		t.Errorf("notify = %+v", msg)
	}

	c.Log("boot complete")
	if msg := fake.last(t); msg.topic != "vwire/token123/log" || msg.payload != "boot complete" {
		t.Errorf("log = %+v", msg)
	}
}

func TestEmail(t *testing.T) {
	c, fake := newTestClient(t, nil)

	if err := c.Email("Alert", "Garage door left open"); err != nil {
		t.Fatalf("Email() error = %v", err)
	}

	msg := fake.last(t)
	var body struct {
		Subject string `json:"subject"`
		Body    string `json:"body"`
	}
	if err := json.Unmarshal([]byte(msg.payload), &body); err != nil {
		t.Fatalf("email payload not JSON: %v", err)
	}
	if body.Subject != "Alert" || body.Body != "Garage door left open" {
		t.Errorf("email payload = %+v", body)
	}
}

func TestAlarm(t *testing.T) {
	c, fake := newTestClient(t, nil)

	if err := c.AlarmWith("intrusion", "siren", 2); err != nil {
		t.Fatalf("AlarmWith() error = %v", err)
	}

	msg := fake.last(t)
	var alarm struct {
		Type     string `json:"type"`
		Message  string `json:"message"`
		AlarmID  string `json:"alarmId"`
		Sound    string `json:"sound"`
		Priority int    `json:"priority"`
	}
	if err := json.Unmarshal([]byte(msg.payload), &alarm); err != nil {
		t.Fatalf("alarm payload not JSON: %v", err)
	}
	if alarm.Type != "alarm" || alarm.Message != "intrusion" || alarm.Sound != "siren" || alarm.Priority != 2 {
		t.Errorf("alarm payload = %+v", alarm)
	}
	if !strings.HasPrefix(alarm.AlarmID, "alarm_") {
		t.Errorf("alarm id = %q, want alarm_ prefix", alarm.AlarmID)
	}
}

func TestAlarm_UniqueIDs(t *testing.T) {
	c, fake := newTestClient(t, nil)

	c.Alarm("first")
	first := fake.last(t).payload
	c.Alarm("second")
	second := fake.last(t).payload

	var a, b struct {
		AlarmID string `json:"alarmId"`
	}
	json.Unmarshal([]byte(first), &a)
	json.Unmarshal([]byte(second), &b)
	if a.AlarmID == b.AlarmID {
		t.Errorf("consecutive alarm ids identical: %q", a.AlarmID)
	}
}

func TestEvents_Disconnected(t *testing.T) {
	c, fake := newTestClient(t, nil)
	fake.connected = false

	checks := []struct {
		name string
		call func() error
	}{
		{"Notify", func() error { return c.Notify("x") }},
		{"Email", func() error { return c.Email("s", "b") }},
		{"Log", func() error { return c.Log("x") }},
		{"Alarm", func() error { return c.Alarm("x") }},
		{"SyncVirtual", func() error { return c.SyncVirtual(1) }},
		{"SyncAll", func() error { return c.SyncAll() }},
	}
	for _, tc := range checks {
		if err := tc.call(); !errors.Is(err, ErrNotConnected) {
			t.Errorf("%s error = %v when disconnected, want ErrNotConnected", tc.name, err)
		}
	}
}

// =============================================================================
// Tick Tests
// =============================================================================

func TestTick_Disconnected(t *testing.T) {
	c, fake := newTestClient(t, nil)
	fake.connected = false

	c.Tick()
	if fake.count() != 0 {
		t.Errorf("Tick() published %d messages while disconnected", fake.count())
	}
}

func TestTick_SendsHeartbeatWhenDue(t *testing.T) {
	c, fake := newTestClient(t, func(cfg *config.Config) {
		cfg.Device.HeartbeatIntervalMS = 1
	})

	// lastHeartbeat is the zero time, so the first tick is always due.
	c.Tick()

	found := false
	fake.mu.Lock()
	for _, msg := range fake.messages {
		if msg.topic == "vwire/token123/heartbeat" {
			found = true
			var hb struct {
				FW string `json:"fw"`
			}
			if err := json.Unmarshal([]byte(msg.payload), &hb); err != nil {
				t.Errorf("heartbeat payload not JSON: %v", err)
			} else if hb.FW != "1.0.0" {
				t.Errorf("heartbeat fw = %q", hb.FW)
			}
		}
	}
	fake.mu.Unlock()
	if !found {
		t.Error("Tick() did not publish a due heartbeat")
	}
}

func TestTick_HeartbeatDisabledByZeroInterval(t *testing.T) {
	c, fake := newTestClient(t, func(cfg *config.Config) {
		cfg.Device.HeartbeatIntervalMS = 0
	})

	c.Tick()
	c.Tick()
	c.Tick()

	fake.mu.Lock()
	defer fake.mu.Unlock()
	for _, msg := range fake.messages {
		if msg.topic == "vwire/token123/heartbeat" {
			t.Fatal("heartbeat published with interval 0, want none")
		}
	}
}

func TestTick_HeartbeatRespectsInterval(t *testing.T) {
	c, fake := newTestClient(t, nil) // 30s interval

	c.Tick() // first heartbeat, lastHeartbeat was zero
	before := fake.count()
	c.Tick() // immediately after, not due
	if fake.count() != before {
		t.Error("heartbeat sent again before interval elapsed")
	}
}

func TestSetTelemetry_ConcurrentWithTick(t *testing.T) {
	c, _ := newTestClient(t, func(cfg *config.Config) {
		cfg.Device.HeartbeatIntervalMS = 1
	})

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 100; i++ {
			c.SetTelemetry(&telemetry.Client{})
			c.SetTelemetry(nil)
		}
	}()

	for i := 0; i < 100; i++ {
		c.Tick()
		c.VirtualSend(1, "x")
	}
	<-done
}

// =============================================================================
// Heartbeat Payload Tests
// =============================================================================

func TestBuildHeartbeat(t *testing.T) {
	c, _ := newTestClient(t, nil)

	payload, err := c.buildHeartbeat()
	if err != nil {
		t.Fatalf("buildHeartbeat() error = %v", err)
	}

	var hb map[string]any
	if err := json.Unmarshal(payload, &hb); err != nil {
		t.Fatalf("heartbeat not JSON: %v", err)
	}
	for _, key := range []string{"uptime", "heap", "rssi", "ip", "fw"} {
		if _, ok := hb[key]; !ok {
			t.Errorf("heartbeat missing %q field", key)
		}
	}
	if hb["fw"] != "1.0.0" {
		t.Errorf("heartbeat fw = %v", hb["fw"])
	}
}

func TestHeartbeat_RSSIProvider(t *testing.T) {
	c, _ := newTestClient(t, nil)

	if got := c.rssi(); got != 0 {
		t.Errorf("rssi() = %d without provider, want 0", got)
	}

	c.SetRSSIFunc(func() int { return -67 })
	if got := c.rssi(); got != -67 {
		t.Errorf("rssi() = %d, want provider value", got)
	}
}

// =============================================================================
// State Tests
// =============================================================================

func TestState_String(t *testing.T) {
	tests := []struct {
		state State
		want  string
	}{
		{StateIdle, "idle"},
		{StateConnecting, "connecting"},
		{StateConnected, "connected"},
		{StateDisconnected, "disconnected"},
		{StateError, "error"},
		{State(99), "unknown"},
	}
	for _, tc := range tests {
		if got := tc.state.String(); got != tc.want {
			t.Errorf("State(%d).String() = %q, want %q", tc.state, got, tc.want)
		}
	}
}
