package telemetry

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// WritePinSample records a single pin reading.
//
// This is the primary method for mirroring GPIO samples locally.
// The write is non-blocking; data is batched and sent asynchronously.
//
// Parameters:
//   - pin: Symbolic pin name (e.g., "A0", "D4")
//   - value: The sampled value
//
// Example:
//
//	client.WritePinSample("A0", 512)
//	client.WritePinSample("D4", 1)
func (c *Client) WritePinSample(pin string, value int) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"pin_samples",
		map[string]string{
			"device_id": c.deviceID,
			"pin":       pin,
		},
		map[string]interface{}{
			"value": value,
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WriteVirtualSample records an application value sent on a virtual pin.
//
// Parameters:
//   - pin: Virtual pin number
//   - value: The value as published, before any truncation
func (c *Client) WriteVirtualSample(pin int, value string) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"virtual_samples",
		map[string]string{
			"device_id": c.deviceID,
		},
		map[string]interface{}{
			"pin":   pin,
			"value": value,
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WriteHeartbeat records device health indicators alongside each heartbeat.
//
// Parameters:
//   - uptimeSeconds: Seconds since the agent started
//   - rssi: Wireless signal strength in dBm, 0 when unknown
//   - pendingMessages: Messages currently awaiting acknowledgement
func (c *Client) WriteHeartbeat(uptimeSeconds int64, rssi int, pendingMessages int) {
	if !c.IsConnected() {
		return
	}

	fields := map[string]interface{}{
		"uptime_seconds":   uptimeSeconds,
		"pending_messages": pendingMessages,
	}
	if rssi != 0 {
		fields["rssi"] = rssi
	}

	point := write.NewPoint(
		"heartbeat",
		map[string]string{
			"device_id": c.deviceID,
		},
		fields,
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WritePoint writes a custom point with full control over tags and fields.
//
// Use this for measurements that don't fit the helper methods. The
// device_id tag is added automatically.
//
// Parameters:
//   - measurement: The measurement name (table)
//   - tags: Key-value pairs for indexing (low cardinality)
//   - fields: Key-value pairs for the actual data
func (c *Client) WritePoint(measurement string, tags map[string]string, fields map[string]interface{}) {
	if !c.IsConnected() {
		return
	}

	merged := map[string]string{"device_id": c.deviceID}
	for k, v := range tags {
		merged[k] = v
	}

	point := write.NewPoint(measurement, merged, fields, time.Now())
	c.writeAPI.WritePoint(point)
}
