package mqtt

import (
	"fmt"
)

// Maximum payload size for a single publish (1MB). Pin values and event
// payloads are tiny; anything near this limit is a caller bug.
const maxPayloadSize = 1 << 20 // 1MB

// Publish sends a message to a device topic.
//
// QoS selection on this platform: reliable data and anything the server
// must not lose goes out at QoS 1; heartbeats and other periodic events
// at QoS 0. Only the status topic is published retained, so a dashboard
// subscribing late still sees the device's online/offline state.
//
// Parameters:
//   - topic: Destination topic (e.g., "vwire/garage-01/data")
//   - payload: Message payload, usually JSON or a bare value
//   - qos: Quality of Service level (0, 1, or 2)
//   - retained: Whether the broker keeps the message for new subscribers
//
// Returns:
//   - error: nil on success, or wrapped error describing the failure
//
// Example:
//
//	topic := client.Topics().Pin("V5")
//	err := client.Publish(topic, []byte("42"), 1, false)
func (c *Client) Publish(topic string, payload []byte, qos byte, retained bool) error {
	// Validate inputs
	if topic == "" {
		return ErrInvalidTopic
	}
	if qos > maxQoS {
		return ErrInvalidQoS
	}
	if len(payload) > maxPayloadSize {
		return fmt.Errorf("%w: payload size %d exceeds maximum %d bytes", ErrPublishFailed, len(payload), maxPayloadSize)
	}

	// Check connection state
	if !c.IsConnected() {
		return ErrNotConnected
	}

	// Publish with timeout
	token := c.client.Publish(topic, qos, retained, payload)
	if !token.WaitTimeout(defaultPublishTimeout) {
		return timeoutError(ErrPublishFailed, defaultPublishTimeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("%w: %w", ErrPublishFailed, err)
	}

	return nil
}

// PublishString publishes a string payload. Most pin values travel as
// plain strings, so this is the common form.
func (c *Client) PublishString(topic string, payload string, qos byte, retained bool) error {
	return c.Publish(topic, []byte(payload), qos, retained)
}

// PublishRetained publishes a retained message at the configured default
// QoS. Used for the device status topic.
func (c *Client) PublishRetained(topic string, payload []byte) error {
	return c.Publish(topic, payload, byte(c.cfg.QoS), true)
}
