package pin

import "sync"

// MaxHandlers is the virtual pin handler table capacity.
const MaxHandlers = 32

// Handler is invoked when the server writes to a virtual pin.
type Handler func(value Value)

// Registry dispatches incoming virtual pin writes to explicitly registered
// handlers. Registration is explicit so a reader can see every hook point
// at the call site; nothing is wired up implicitly at init time.
//
// Thread Safety:
//   - All methods are safe for concurrent use from multiple goroutines.
type Registry struct {
	mu       sync.RWMutex
	handlers map[int]Handler

	onConnect    func()
	onDisconnect func()
	onMessage    func(topic string, payload []byte)
}

// NewRegistry creates an empty handler registry.
func NewRegistry() *Registry {
	return &Registry{
		handlers: make(map[int]Handler, MaxHandlers),
	}
}

// OnReceive registers a handler for writes to virtual pin number pin.
// Registering a pin twice replaces the previous handler without consuming
// an extra slot.
//
// Parameters:
//   - pin: Virtual pin number (0-255)
//   - handler: Invoked with the written value
//
// Returns:
//   - error: ErrInvalidPin, ErrNilHandler, or ErrRegistryFull
func (r *Registry) OnReceive(pin int, handler Handler) error {
	if pin < 0 || pin > 255 {
		return ErrInvalidPin
	}
	if handler == nil {
		return ErrNilHandler
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.handlers[pin]; !exists && len(r.handlers) >= MaxHandlers {
		return ErrRegistryFull
	}
	r.handlers[pin] = handler
	return nil
}

// OnConnect registers a callback invoked after the broker connection is
// established (initial connect and every reconnect).
func (r *Registry) OnConnect(fn func()) {
	r.mu.Lock()
	r.onConnect = fn
	r.mu.Unlock()
}

// OnDisconnect registers a callback invoked when the broker connection
// is lost.
func (r *Registry) OnDisconnect(fn func()) {
	r.mu.Lock()
	r.onDisconnect = fn
	r.mu.Unlock()
}

// OnMessage registers a catch-all callback invoked for every incoming
// message before pin-level dispatch. Useful for debugging and custom
// topic handling.
func (r *Registry) OnMessage(fn func(topic string, payload []byte)) {
	r.mu.Lock()
	r.onMessage = fn
	r.mu.Unlock()
}

// Dispatch invokes the handler registered for pin, if any.
//
// Returns:
//   - bool: true if a handler was invoked
func (r *Registry) Dispatch(pin int, value Value) bool {
	r.mu.RLock()
	handler := r.handlers[pin]
	r.mu.RUnlock()

	if handler == nil {
		return false
	}
	handler(value)
	return true
}

// NotifyConnect invokes the OnConnect callback, if registered.
func (r *Registry) NotifyConnect() {
	r.mu.RLock()
	fn := r.onConnect
	r.mu.RUnlock()
	if fn != nil {
		fn()
	}
}

// NotifyDisconnect invokes the OnDisconnect callback, if registered.
func (r *Registry) NotifyDisconnect() {
	r.mu.RLock()
	fn := r.onDisconnect
	r.mu.RUnlock()
	if fn != nil {
		fn()
	}
}

// NotifyMessage invokes the OnMessage callback, if registered.
func (r *Registry) NotifyMessage(topic string, payload []byte) {
	r.mu.RLock()
	fn := r.onMessage
	r.mu.RUnlock()
	if fn != nil {
		fn(topic, payload)
	}
}

// HasHandler reports whether a handler is registered for pin.
func (r *Registry) HasHandler(pin int) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.handlers[pin]
	return ok
}

// HandlerCount returns the number of registered pin handlers.
func (r *Registry) HandlerCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.handlers)
}
