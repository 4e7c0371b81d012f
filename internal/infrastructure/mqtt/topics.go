package mqtt

import "fmt"

// TopicPrefix is the base for all Vwire platform topics.
// Every topic is scoped to a single device:
//
//	vwire/{deviceId}/{suffix}
const TopicPrefix = "vwire"

// Topics provides builders for the Vwire MQTT topic hierarchy.
// Using these helpers ensures consistent topic naming across the codebase.
//
//	topics := mqtt.Topics{DeviceID: "garage-01"}
//	dataTopic := topics.Data()
//	// Returns: "vwire/garage-01/data"
type Topics struct {
	DeviceID string
}

// base returns the device-scoped topic root.
func (t Topics) base() string {
	return fmt.Sprintf("%s/%s", TopicPrefix, t.DeviceID)
}

// Status returns the device online/offline status topic.
// Published retained so the dashboard always sees the last known state.
//
// Example: vwire/garage-01/status
func (t Topics) Status() string {
	return t.base() + "/status"
}

// Pin returns the state topic for a named pin (virtual or hardware).
//
// Example: vwire/garage-01/pin/V5
func (t Topics) Pin(pin string) string {
	return fmt.Sprintf("%s/pin/%s", t.base(), pin)
}

// Data returns the reliable delivery data topic.
// ACK-tracked virtual pin updates are published here.
//
// Example: vwire/garage-01/data
func (t Topics) Data() string {
	return t.base() + "/data"
}

// Ack returns the topic where the server acknowledges reliable messages.
//
// Example: vwire/garage-01/ack
func (t Topics) Ack() string {
	return t.base() + "/ack"
}

// Command returns the command topic for a named pin.
//
// Example: vwire/garage-01/cmd/V5
func (t Topics) Command(pin string) string {
	return fmt.Sprintf("%s/cmd/%s", t.base(), pin)
}

// AllCommands returns a pattern matching all incoming commands.
//
// Pattern: vwire/garage-01/cmd/#
func (t Topics) AllCommands() string {
	return t.base() + "/cmd/#"
}

// Sync returns the state sync request topic.
//
// Example: vwire/garage-01/sync
func (t Topics) Sync() string {
	return t.base() + "/sync"
}

// SyncPin returns the sync request topic for a single virtual pin.
//
// Example: vwire/garage-01/sync/V5
func (t Topics) SyncPin(pin int) string {
	return fmt.Sprintf("%s/sync/V%d", t.base(), pin)
}

// Heartbeat returns the periodic device metrics topic.
//
// Example: vwire/garage-01/heartbeat
func (t Topics) Heartbeat() string {
	return t.base() + "/heartbeat"
}

// Notify returns the push notification topic.
//
// Example: vwire/garage-01/notify
func (t Topics) Notify() string {
	return t.base() + "/notify"
}

// Email returns the email request topic.
//
// Example: vwire/garage-01/email
func (t Topics) Email() string {
	return t.base() + "/email"
}

// Log returns the remote log line topic.
//
// Example: vwire/garage-01/log
func (t Topics) Log() string {
	return t.base() + "/log"
}

// Alarm returns the alarm event topic.
//
// Example: vwire/garage-01/alarm
func (t Topics) Alarm() string {
	return t.base() + "/alarm"
}

// PinConfig returns the topic the server uses to push GPIO pin configuration.
//
// Example: vwire/garage-01/pinconfig
func (t Topics) PinConfig() string {
	return t.base() + "/pinconfig"
}

// ClientID returns the MQTT client identifier for this device.
//
// Example: vwire-garage-01
func (t Topics) ClientID() string {
	return fmt.Sprintf("%s-%s", TopicPrefix, t.DeviceID)
}
