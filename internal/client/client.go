package client

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/vwire-io/vwire-device/internal/delivery"
	"github.com/vwire-io/vwire-device/internal/gpio"
	"github.com/vwire-io/vwire-device/internal/infrastructure/config"
	"github.com/vwire-io/vwire-device/internal/infrastructure/logging"
	"github.com/vwire-io/vwire-device/internal/infrastructure/mqtt"
	"github.com/vwire-io/vwire-device/internal/infrastructure/telemetry"
	"github.com/vwire-io/vwire-device/internal/pin"
	"github.com/vwire-io/vwire-device/internal/store"
	"github.com/vwire-io/vwire-device/internal/timer"
)

// Agent timing constants.
const (
	// tickInterval paces the Run loop: timer callbacks, GPIO polling,
	// delivery retries, heartbeat.
	tickInterval = 20 * time.Millisecond

	// commandQoS is used for everything the server must not lose:
	// command subscriptions, ACK subscriptions, reliable data.
	commandQoS = 1

	// eventQoS is used for fire-and-forget outbound events
	// (heartbeat, notify, log, alarm, sync requests).
	eventQoS = 0
)

// publisher is the outbound messaging surface the agent needs.
// *mqtt.Client satisfies it; tests substitute a fake.
type publisher interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
	IsConnected() bool
}

// Client is the Vwire device agent. It ties the broker connection, the
// virtual pin registry, the GPIO table, the timer scheduler, and the
// reliable delivery queue into one run loop.
//
// Lifecycle: New → Connect → Run (until context cancel) → Close.
//
// Thread Safety:
//   - All exported methods are safe for concurrent use.
//   - Handler callbacks run on the MQTT receive goroutines; keep them short.
type Client struct {
	cfg    *config.Config
	log    *logging.Logger
	topics mqtt.Topics

	scheduler *timer.Scheduler
	gpioTable *gpio.Table
	queue     *delivery.Queue
	registry  *pin.Registry
	store     *store.Store      // nil when persistence is disabled
	telemetry *telemetry.Client // nil when telemetry is disabled

	mqttClient *mqtt.Client
	pub        publisher
	pubMu      sync.RWMutex

	state   State
	stateMu sync.RWMutex

	rssiFunc func() int

	startTime     time.Time
	lastHeartbeat time.Time
	hbMu          sync.Mutex

	lastAlarmID uint32
	alarmMu     sync.Mutex
}

// queueTransport adapts the client's publish path to the delivery queue.
type queueTransport struct {
	c *Client
}

func (t queueTransport) PublishData(payload []byte) error {
	return t.c.publish(t.c.topics.Data(), payload, commandQoS, false)
}

func (t queueTransport) PublishPin(pinNum int, value string) error {
	topic := t.c.topics.Pin(fmt.Sprintf("V%d", pinNum))
	return t.c.publish(topic, []byte(value), byte(t.c.cfg.MQTT.QoS), false)
}

// New assembles an agent from configuration without touching the network.
//
// It performs the following setup:
//  1. Creates the timer scheduler, GPIO table, delivery queue, and registry
//  2. Opens the local store when enabled
//  3. Restores the persisted GPIO configuration so hardware is driven
//     correctly before the broker is reachable
//
// Parameters:
//   - cfg: Validated configuration
//   - logger: Structured logger; nil falls back to the default
//
// Returns:
//   - *Client: Assembled agent in StateIdle
//   - error: If the local store cannot be opened
func New(cfg *config.Config, logger *logging.Logger) (*Client, error) {
	if logger == nil {
		logger = logging.Default()
	}

	c := &Client{
		cfg:       cfg,
		log:       logger,
		topics:    mqtt.Topics{DeviceID: cfg.DeviceID()},
		scheduler: timer.New(),
		registry:  pin.NewRegistry(),
		state:     StateIdle,
		startTime: time.Now(),
	}

	c.gpioTable = gpio.NewTable(gpio.NewHardware(cfg.GPIO.Board))
	c.gpioTable.SetLogger(logger)

	c.queue = delivery.NewQueue(delivery.Config{
		Enabled:      cfg.Delivery.Enabled,
		AckTimeoutMS: uint32(cfg.Delivery.AckTimeoutMS),
		MaxRetries:   cfg.Delivery.MaxRetries,
	}, queueTransport{c}, nil)
	c.queue.SetLogger(logger)

	if cfg.Store.Enabled {
		st, err := store.Open(cfg.Store)
		if err != nil {
			return nil, fmt.Errorf("opening local store: %w", err)
		}
		c.store = st
		c.restorePins()
	}

	return c, nil
}

// restorePins reapplies the persisted GPIO configuration at boot.
func (c *Client) restorePins() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	configs, err := c.store.LoadPinConfigs(ctx)
	if err != nil {
		c.log.Warn("loading persisted pin configs", "error", err)
		return
	}

	for _, pc := range configs {
		if err := c.gpioTable.AddPin(pc.Pin, pc.Mode, pc.Interval); err != nil {
			c.log.Warn("restoring pin", "pin", pc.Pin, "error", err)
		}
	}
	if len(configs) > 0 {
		c.log.Info("restored pin configuration", "pins", c.gpioTable.PinCount())
	}
}

// Connect establishes the broker session and subscribes to the device's
// inbound topics: commands (always), ACKs (when reliable delivery is on),
// and server-pushed pin configuration.
//
// Returns:
//   - error: ErrAlreadyConnected on a live client, or a wrapped
//     ErrConnectFailed when the broker is unreachable
func (c *Client) Connect() error {
	c.pubMu.RLock()
	already := c.mqttClient != nil
	c.pubMu.RUnlock()
	if already {
		return ErrAlreadyConnected
	}

	c.setState(StateConnecting)

	mc, err := mqtt.Connect(c.cfg.MQTT, mqtt.Identity{
		DeviceID:  c.cfg.DeviceID(),
		AuthToken: c.cfg.Device.AuthToken,
		Firmware:  c.cfg.Device.Firmware,
	})
	if err != nil {
		c.setState(StateError)
		return fmt.Errorf("%w: %w", ErrConnectFailed, err)
	}

	mc.SetLogger(c.log)
	mc.SetOnConnect(func() {
		c.setState(StateConnected)
		c.registry.NotifyConnect()
	})
	mc.SetOnDisconnect(func(err error) {
		c.setState(StateDisconnected)
		c.log.Warn("broker connection lost", "error", err)
		c.registry.NotifyDisconnect()
	})

	c.pubMu.Lock()
	c.mqttClient = mc
	c.pub = mc
	c.pubMu.Unlock()

	if err := c.subscribeAll(mc); err != nil {
		mc.Close()
		c.pubMu.Lock()
		c.mqttClient = nil
		c.pub = nil
		c.pubMu.Unlock()
		c.setState(StateError)
		return err
	}

	c.setState(StateConnected)
	c.log.Info("connected to broker",
		"device_id", c.cfg.DeviceID(),
		"host", c.cfg.MQTT.Broker.Host,
	)
	return nil
}

// subscribeAll registers the inbound topic handlers. Subscriptions are
// tracked by the MQTT wrapper and restored automatically on reconnect.
func (c *Client) subscribeAll(mc *mqtt.Client) error {
	if err := mc.Subscribe(c.topics.AllCommands(), commandQoS, c.route); err != nil {
		return fmt.Errorf("subscribing to commands: %w", err)
	}
	if c.queue.Enabled() {
		if err := mc.Subscribe(c.topics.Ack(), commandQoS, c.route); err != nil {
			return fmt.Errorf("subscribing to acks: %w", err)
		}
	}
	if err := mc.Subscribe(c.topics.PinConfig(), commandQoS, c.route); err != nil {
		return fmt.Errorf("subscribing to pin config: %w", err)
	}
	return nil
}

// route dispatches one inbound message to the right component.
//
// Topic layout under vwire/{deviceId}/:
//   - ack        → delivery queue
//   - pinconfig  → GPIO table (then persisted)
//   - cmd/V<n>   → virtual pin handler registry
//   - cmd/D*|A*  → GPIO smart write
//   - cmd/<n>    → registry (bare pin number, legacy form)
func (c *Client) route(topic string, payload []byte) error {
	c.registry.NotifyMessage(topic, payload)

	switch topic {
	case c.topics.Ack():
		return c.queue.HandleAckPayload(payload)
	case c.topics.PinConfig():
		return c.applyPinConfig(payload)
	}

	prefix := c.topics.Command("")
	if !strings.HasPrefix(topic, prefix) {
		return nil
	}
	name := topic[len(prefix):]
	if name == "" {
		return nil
	}

	switch name[0] {
	case 'V', 'v':
		n, err := strconv.Atoi(name[1:])
		if err != nil {
			return nil // malformed pin in topic, ignore
		}
		c.registry.Dispatch(n, pin.Value(payload))
	case 'D', 'd', 'A', 'a':
		v, err := strconv.Atoi(strings.TrimSpace(string(payload)))
		if err != nil {
			return fmt.Errorf("command payload for %s: %w", name, err)
		}
		return c.gpioTable.HandleCommand(name, v)
	default:
		if n, err := strconv.Atoi(name); err == nil {
			c.registry.Dispatch(n, pin.Value(payload))
		}
	}
	return nil
}

// applyPinConfig applies a server configuration push and persists the
// resulting table so a restart restores it.
func (c *Client) applyPinConfig(payload []byte) error {
	applied, err := c.gpioTable.ApplyConfig(payload)
	if err != nil {
		return fmt.Errorf("applying pin config: %w", err)
	}
	c.log.Info("applied pin configuration", "pins", applied)

	if c.store != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := c.store.SavePinConfigs(ctx, c.gpioTable.Configs()); err != nil {
			c.log.Warn("persisting pin configs", "error", err)
		}
	}
	return nil
}

// Run drives the agent until the context is cancelled.
//
// Each tick fires due timers, and, while connected, polls GPIO inputs,
// processes delivery retries, and sends the heartbeat when due.
func (c *Client) Run(ctx context.Context) error {
	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			c.Tick()
		}
	}
}

// Tick performs one scheduling pass. Exposed for hosts that drive the
// agent from their own loop instead of Run.
func (c *Client) Tick() {
	c.scheduler.Run()

	if !c.isBrokerConnected() {
		return
	}

	c.queue.ProcessRetries()
	c.gpioTable.Poll(c.publishPinSample)

	// A zero or negative interval disables heartbeats entirely.
	interval := c.cfg.GetHeartbeatInterval()
	c.hbMu.Lock()
	due := interval > 0 && time.Since(c.lastHeartbeat) >= interval
	if due {
		c.lastHeartbeat = time.Now()
	}
	c.hbMu.Unlock()
	if due {
		c.sendHeartbeat()
	}
}

// publishPinSample publishes a changed GPIO reading on its pin topic.
func (c *Client) publishPinSample(name string, value int) {
	topic := c.topics.Pin(name)
	if err := c.publish(topic, []byte(strconv.Itoa(value)), byte(c.cfg.MQTT.QoS), false); err != nil {
		c.log.Warn("publishing pin sample", "pin", name, "error", err)
		return
	}
	if tc := c.telemetryClient(); tc != nil {
		tc.WritePinSample(name, value)
	}
}

// VirtualSend publishes a virtual pin value to the server.
//
// With reliable delivery enabled the value is ACK-tracked and retried;
// the returned message id identifies it in the delivery callbacks. With
// reliable delivery disabled the send is fire-and-forget and the id is
// empty.
//
// Parameters:
//   - pinNum: Virtual pin number (0-255)
//   - value: Value in wire form; truncated to the platform limit
//
// Returns:
//   - string: Message id ("" when fire-and-forget)
//   - error: ErrNotConnected, delivery.ErrQueueFull, or a publish error
func (c *Client) VirtualSend(pinNum int, value string) (string, error) {
	if !c.isBrokerConnected() {
		return "", ErrNotConnected
	}

	id, err := c.queue.Send(pinNum, value)
	if err != nil {
		return id, err
	}

	if tc := c.telemetryClient(); tc != nil {
		tc.WriteVirtualSample(pinNum, value)
	}
	return id, nil
}

// VirtualSendf formats and sends a virtual pin value.
func (c *Client) VirtualSendf(pinNum int, format string, args ...any) (string, error) {
	return c.VirtualSend(pinNum, fmt.Sprintf(format, args...))
}

// VirtualSendArray sends float values as a comma-separated list with
// two decimal places, matching the platform's array wire form.
func (c *Client) VirtualSendArray(pinNum int, values []float64) (string, error) {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = strconv.FormatFloat(v, 'f', 2, 64)
	}
	return c.VirtualSend(pinNum, strings.Join(parts, ","))
}

// VirtualSendIntArray sends integer values as a comma-separated list.
func (c *Client) VirtualSendIntArray(pinNum int, values []int) (string, error) {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = strconv.Itoa(v)
	}
	return c.VirtualSend(pinNum, strings.Join(parts, ","))
}

// SyncVirtual asks the server to replay the last known value of one
// virtual pin. The value arrives through the normal command path.
func (c *Client) SyncVirtual(pinNum int) error {
	if !c.isBrokerConnected() {
		return ErrNotConnected
	}
	return c.publish(c.topics.SyncPin(pinNum), nil, eventQoS, false)
}

// Sync requests replay for several virtual pins.
func (c *Client) Sync(pins ...int) error {
	for _, p := range pins {
		if err := c.SyncVirtual(p); err != nil {
			return err
		}
	}
	return nil
}

// SyncAll asks the server to replay every virtual pin it knows for this
// device.
func (c *Client) SyncAll() error {
	if !c.isBrokerConnected() {
		return ErrNotConnected
	}
	return c.publish(c.topics.Sync(), []byte("all"), eventQoS, false)
}

// Notify sends a push notification through the platform.
func (c *Client) Notify(message string) error {
	if !c.isBrokerConnected() {
		return ErrNotConnected
	}
	return c.publish(c.topics.Notify(), []byte(message), eventQoS, false)
}

// Email asks the platform to send an email on the device's behalf.
func (c *Client) Email(subject, body string) error {
	if !c.isBrokerConnected() {
		return ErrNotConnected
	}
	payload, err := json.Marshal(struct {
		Subject string `json:"subject"`
		Body    string `json:"body"`
	}{subject, body})
	if err != nil {
		return fmt.Errorf("building email payload: %w", err)
	}
	return c.publish(c.topics.Email(), payload, eventQoS, false)
}

// Log ships a log line to the platform's device log.
func (c *Client) Log(message string) error {
	if !c.isBrokerConnected() {
		return ErrNotConnected
	}
	return c.publish(c.topics.Log(), []byte(message), eventQoS, false)
}

// Alarm raises an alarm with the default sound and priority.
func (c *Client) Alarm(message string) error {
	return c.AlarmWith(message, "default", 1)
}

// AlarmWith raises an alarm with an explicit sound and priority.
// Each alarm carries a unique id so the server can deduplicate.
func (c *Client) AlarmWith(message, sound string, priority int) error {
	if !c.isBrokerConnected() {
		return ErrNotConnected
	}

	c.alarmMu.Lock()
	id := c.uptimeMillis()
	if id == c.lastAlarmID {
		id++
	}
	c.lastAlarmID = id
	c.alarmMu.Unlock()

	payload, err := json.Marshal(struct {
		Type      string `json:"type"`
		Message   string `json:"message"`
		AlarmID   string `json:"alarmId"`
		Sound     string `json:"sound"`
		Priority  int    `json:"priority"`
		Timestamp uint32 `json:"timestamp"`
	}{"alarm", message, fmt.Sprintf("alarm_%d", id), sound, priority, c.uptimeMillis()})
	if err != nil {
		return fmt.Errorf("building alarm payload: %w", err)
	}
	return c.publish(c.topics.Alarm(), payload, eventQoS, false)
}

// OnVirtualReceive registers a handler for commands on a virtual pin.
func (c *Client) OnVirtualReceive(pinNum int, handler pin.Handler) error {
	return c.registry.OnReceive(pinNum, handler)
}

// OnConnect registers a callback for broker connection establishment.
func (c *Client) OnConnect(fn func()) {
	c.registry.OnConnect(fn)
}

// OnDisconnect registers a callback for broker connection loss.
func (c *Client) OnDisconnect(fn func()) {
	c.registry.OnDisconnect(fn)
}

// OnMessage registers a raw tap on every inbound message.
func (c *Client) OnMessage(fn func(topic string, payload []byte)) {
	c.registry.OnMessage(fn)
}

// DeviceID returns the identifier scoping this device's topics.
func (c *Client) DeviceID() string {
	return c.cfg.DeviceID()
}

// Firmware returns the agent version string reported in heartbeats.
func (c *Client) Firmware() string {
	return c.cfg.Device.Firmware
}

// Uptime returns time elapsed since the agent was assembled.
func (c *Client) Uptime() time.Duration {
	return time.Since(c.startTime)
}

// GPIO returns the pin table for direct registration and inspection.
func (c *Client) GPIO() *gpio.Table {
	return c.gpioTable
}

// Scheduler returns the software timer scheduler.
func (c *Client) Scheduler() *timer.Scheduler {
	return c.scheduler
}

// Delivery returns the reliable delivery queue for callback registration
// and pending inspection.
func (c *Client) Delivery() *delivery.Queue {
	return c.queue
}

// IsDeliveryPending reports whether any reliable send awaits an ACK.
func (c *Client) IsDeliveryPending() bool {
	return c.queue.HasPending()
}

// SetTelemetry attaches an optional local telemetry mirror. Pin samples,
// virtual sends, and heartbeats are copied to it while attached.
func (c *Client) SetTelemetry(t *telemetry.Client) {
	c.stateMu.Lock()
	c.telemetry = t
	c.stateMu.Unlock()
}

// telemetryClient returns the attached mirror, or nil.
func (c *Client) telemetryClient() *telemetry.Client {
	c.stateMu.RLock()
	defer c.stateMu.RUnlock()
	return c.telemetry
}

// Close shuts the agent down: graceful broker disconnect (retained
// offline status), then telemetry flush, then the local store.
func (c *Client) Close() error {
	var firstErr error

	c.pubMu.Lock()
	mc := c.mqttClient
	c.mqttClient = nil
	c.pub = nil
	c.pubMu.Unlock()

	if mc != nil {
		if err := mc.Close(); err != nil {
			firstErr = err
		}
	}
	if tc := c.telemetryClient(); tc != nil {
		if err := tc.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if c.store != nil {
		if err := c.store.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	c.setState(StateIdle)
	return firstErr
}

// publish sends through the current broker session.
func (c *Client) publish(topic string, payload []byte, qos byte, retained bool) error {
	c.pubMu.RLock()
	pub := c.pub
	c.pubMu.RUnlock()

	if pub == nil {
		return ErrNotConnected
	}
	return pub.Publish(topic, payload, qos, retained)
}

// isBrokerConnected reports whether the broker session is live.
func (c *Client) isBrokerConnected() bool {
	c.pubMu.RLock()
	pub := c.pub
	c.pubMu.RUnlock()
	return pub != nil && pub.IsConnected()
}

// uptimeMillis returns milliseconds since start as a wrapping counter.
func (c *Client) uptimeMillis() uint32 {
	return uint32(time.Since(c.startTime).Milliseconds())
}

// uptimeSeconds returns whole seconds since start.
func (c *Client) uptimeSeconds() uint32 {
	return uint32(time.Since(c.startTime).Seconds())
}
