package client

// State describes the agent's connection lifecycle.
//
// Transitions:
//
//	Idle → Connecting → Connected ⇄ Disconnected
//	Connecting → Error (broker rejected or unreachable)
type State int

const (
	// StateIdle is the initial state before Connect is called.
	StateIdle State = iota

	// StateConnecting means a broker connection attempt is in progress.
	StateConnecting

	// StateConnected means the broker session is live.
	StateConnected

	// StateDisconnected means a live session was lost; the underlying
	// client reconnects with backoff and the state returns to Connected
	// on success.
	StateDisconnected

	// StateError means the connection attempt failed outright.
	StateError
)

// String returns the lowercase state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateDisconnected:
		return "disconnected"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}

// State returns the current connection state.
func (c *Client) State() State {
	c.stateMu.RLock()
	defer c.stateMu.RUnlock()
	return c.state
}

// setState records a state transition.
func (c *Client) setState(s State) {
	c.stateMu.Lock()
	c.state = s
	c.stateMu.Unlock()
}
