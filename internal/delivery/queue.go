package delivery

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/vwire-io/vwire-device/internal/timer"
)

// Queue constants.
const (
	// DefaultMaxPending is the default pending table size.
	DefaultMaxPending = 10

	// DefaultAckTimeoutMS is the default wait before a resend.
	DefaultAckTimeoutMS = 5000

	// DefaultMaxRetries is the default resend budget. A message is
	// transmitted at most 1 + DefaultMaxRetries times.
	DefaultMaxRetries = 3

	// maxValueLen truncates values to keep payloads bounded.
	maxValueLen = 64

	// QueueFullID is the message ID reported to the failure callback when
	// a send is rejected because the pending table is full. No message
	// with this ID is ever queued.
	QueueFullID = "queue_full"
)

// Transport is the outbound surface the queue needs.
// The client implements it on top of the MQTT wrapper.
type Transport interface {
	// PublishData sends an ACK-tracked payload on the data topic.
	PublishData(payload []byte) error

	// PublishPin sends a plain fire-and-forget pin state update.
	PublishPin(pin int, value string) error
}

// Logger interface for optional logging support.
// Compatible with logging.Logger and slog.Logger.
type Logger interface {
	Debug(msg string, args ...any)
	Warn(msg string, args ...any)
}

// noopLogger discards all log output. Used when no logger is configured.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Warn(string, ...any)  {}

// Config tunes the queue's delivery behaviour.
type Config struct {
	// Enabled switches ACK tracking on. When false, Send degrades to a
	// plain fire-and-forget pin publish.
	Enabled bool

	// AckTimeoutMS is the wait before a resend; zero selects the default.
	AckTimeoutMS uint32

	// MaxRetries is the resend budget. Zero disables resends entirely;
	// the platform default is DefaultMaxRetries.
	MaxRetries int

	// MaxPending is the pending table size; values < 1 select the default.
	MaxPending int
}

// DeliveredFunc is invoked once when the server acknowledges a message.
type DeliveredFunc func(msgID string)

// FailedFunc is invoked when a message is abandoned: retry budget
// exhausted, a negative ACK, or (with QueueFullID) a rejected send.
type FailedFunc func(msgID string)

// dataMessage is the wire form published on the data topic.
type dataMessage struct {
	MsgID string `json:"msgId"`
	Pin   string `json:"pin"`
	Value string `json:"value"`
}

// ackMessage is the wire form received on the ack topic.
type ackMessage struct {
	MsgID string `json:"msgId"`
	OK    bool   `json:"ok"`
}

// pending is one slot in the fixed pending table.
type pending struct {
	msgID   string
	payload []byte
	sentAt  uint32
	retries int
	inUse   bool
}

// Queue provides at-least-once delivery of virtual pin updates on top of
// fire-and-forget MQTT publishes. Each tracked message is retransmitted
// until the server ACKs it or the retry budget runs out.
//
// The pending table is fixed-size. When it is full, new sends fail fast
// (ErrQueueFull) instead of queueing unboundedly; slow or absent servers
// cost memory, not correctness.
//
// Thread Safety:
//   - All methods are safe for concurrent use from multiple goroutines.
//   - Callbacks are invoked without holding internal locks.
type Queue struct {
	mu        sync.Mutex
	slots     []pending
	counter   uint16
	transport Transport
	clock     timer.Clock
	logger    Logger

	enabled    bool
	ackTimeout uint32
	maxRetries int

	onDelivered DeliveredFunc
	onFailed    FailedFunc
}

// NewQueue creates a delivery queue.
//
// Parameters:
//   - cfg: Delivery tuning; zero values select defaults
//   - transport: Outbound publish surface
//   - clock: Millisecond clock; nil selects a wall-clock default
//
// Returns:
//   - *Queue: Ready to use, no messages pending
func NewQueue(cfg Config, transport Transport, clock timer.Clock) *Queue {
	if cfg.AckTimeoutMS == 0 {
		cfg.AckTimeoutMS = DefaultAckTimeoutMS
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.MaxPending < 1 {
		cfg.MaxPending = DefaultMaxPending
	}
	if clock == nil {
		start := time.Now()
		clock = func() uint32 {
			return uint32(time.Since(start).Milliseconds())
		}
	}
	return &Queue{
		slots:      make([]pending, cfg.MaxPending),
		transport:  transport,
		clock:      clock,
		logger:     noopLogger{},
		enabled:    cfg.Enabled,
		ackTimeout: cfg.AckTimeoutMS,
		maxRetries: cfg.MaxRetries,
	}
}

// SetLogger sets a logger for diagnostics.
func (q *Queue) SetLogger(logger Logger) {
	q.mu.Lock()
	if logger != nil {
		q.logger = logger
	}
	q.mu.Unlock()
}

// OnDelivered sets the success callback.
func (q *Queue) OnDelivered(fn DeliveredFunc) {
	q.mu.Lock()
	q.onDelivered = fn
	q.mu.Unlock()
}

// OnFailed sets the failure callback.
func (q *Queue) OnFailed(fn FailedFunc) {
	q.mu.Lock()
	q.onFailed = fn
	q.mu.Unlock()
}

// Enabled reports whether ACK tracking is on.
func (q *Queue) Enabled() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.enabled
}

// Send transmits a virtual pin update.
//
// With delivery disabled this is a plain fire-and-forget pin publish.
// With delivery enabled the message gets a unique ID, is published on the
// data topic, and is tracked until ACKed or abandoned. Values longer than
// 64 bytes are truncated.
//
// Returns:
//   - string: Message ID of the tracked message, empty when disabled
//   - error: ErrInvalidPin, ErrQueueFull, or a transport error
func (q *Queue) Send(pin int, value string) (string, error) {
	if pin < 0 || pin > 255 {
		return "", ErrInvalidPin
	}
	if len(value) > maxValueLen {
		value = value[:maxValueLen]
	}

	q.mu.Lock()
	if !q.enabled {
		q.mu.Unlock()
		return "", q.transport.PublishPin(pin, value)
	}

	idx := q.freeSlotLocked()
	if idx < 0 {
		onFailed := q.onFailed
		q.mu.Unlock()
		if onFailed != nil {
			onFailed(QueueFullID)
		}
		return "", ErrQueueFull
	}

	q.counter++
	msgID := fmt.Sprintf("%04X_%d", q.counter&0xFFFF, q.clock()%10000)

	payload, err := json.Marshal(dataMessage{
		MsgID: msgID,
		Pin:   fmt.Sprintf("V%d", pin),
		Value: value,
	})
	if err != nil {
		q.mu.Unlock()
		return "", fmt.Errorf("encoding data message: %w", err)
	}

	q.slots[idx] = pending{
		msgID:   msgID,
		payload: payload,
		sentAt:  q.clock(),
		inUse:   true,
	}
	q.mu.Unlock()

	if err := q.transport.PublishData(payload); err != nil {
		// Keep the slot: ProcessRetries will retransmit once the
		// connection recovers.
		q.logger.Warn("initial transmit failed, will retry",
			"msg_id", msgID,
			"error", err,
		)
	}
	return msgID, nil
}

// ProcessRetries retransmits timed-out messages and abandons those whose
// retry budget is exhausted. Call it once per tick while connected;
// calling it while disconnected just burns the retry budget.
func (q *Queue) ProcessRetries() {
	now := q.clock()

	type failure struct{ msgID string }
	var failures []failure
	var resends [][]byte

	q.mu.Lock()
	onFailed := q.onFailed
	for i := range q.slots {
		s := &q.slots[i]
		if !s.inUse || now-s.sentAt < q.ackTimeout {
			continue
		}
		if s.retries < q.maxRetries {
			s.retries++
			s.sentAt = now
			resends = append(resends, s.payload)
			q.logger.Debug("retrying message",
				"msg_id", s.msgID,
				"attempt", s.retries,
			)
			continue
		}
		failures = append(failures, failure{msgID: s.msgID})
		q.slots[i] = pending{}
	}
	q.mu.Unlock()

	for _, payload := range resends {
		if err := q.transport.PublishData(payload); err != nil {
			q.logger.Warn("retry transmit failed", "error", err)
		}
	}
	if onFailed != nil {
		for _, f := range failures {
			onFailed(f.msgID)
		}
	}
}

// HandleAck settles a pending message by ID. Positive ACKs fire the
// delivered callback, negative ACKs the failure callback; either way the
// slot is freed and later ACKs for the same ID are ignored.
//
// Unknown IDs are logged at debug level and otherwise ignored: they are
// expected after a retry races an in-flight ACK.
func (q *Queue) HandleAck(msgID string, ok bool) {
	q.mu.Lock()
	idx := -1
	for i := range q.slots {
		if q.slots[i].inUse && q.slots[i].msgID == msgID {
			idx = i
			break
		}
	}
	if idx < 0 {
		q.mu.Unlock()
		q.logger.Debug("ack for unknown message", "msg_id", msgID)
		return
	}
	q.slots[idx] = pending{}
	onDelivered := q.onDelivered
	onFailed := q.onFailed
	q.mu.Unlock()

	if ok {
		if onDelivered != nil {
			onDelivered(msgID)
		}
		return
	}
	if onFailed != nil {
		onFailed(msgID)
	}
}

// HandleAckPayload parses a server ACK payload and settles the message:
//
//	{"msgId":"0001_1234","ok":true}
//
// Returns:
//   - error: ErrInvalidAck if the payload does not parse
func (q *Queue) HandleAckPayload(payload []byte) error {
	var ack ackMessage
	if err := json.Unmarshal(payload, &ack); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidAck, err)
	}
	if ack.MsgID == "" {
		return fmt.Errorf("%w: missing msgId", ErrInvalidAck)
	}
	q.HandleAck(ack.MsgID, ack.OK)
	return nil
}

// PendingCount returns the number of messages awaiting ACK.
func (q *Queue) PendingCount() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	n := 0
	for i := range q.slots {
		if q.slots[i].inUse {
			n++
		}
	}
	return n
}

// HasPending reports whether any message is awaiting ACK.
func (q *Queue) HasPending() bool {
	return q.PendingCount() > 0
}

// IsPending reports whether a message ID is awaiting ACK.
func (q *Queue) IsPending(msgID string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	for i := range q.slots {
		if q.slots[i].inUse && q.slots[i].msgID == msgID {
			return true
		}
	}
	return false
}

// freeSlotLocked returns the lowest free slot index, or -1. Caller must hold q.mu.
func (q *Queue) freeSlotLocked() int {
	for i := range q.slots {
		if !q.slots[i].inUse {
			return i
		}
	}
	return -1
}
