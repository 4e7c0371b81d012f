package client

import (
	"encoding/json"
	"net"
	"runtime"
)

// heartbeatPayload is the periodic device metrics message.
//
// Field names match what the platform dashboard expects. Uptime is in
// seconds, heap is free heap in bytes, rssi is wireless signal strength
// in dBm (0 when the device has no radio).
type heartbeatPayload struct {
	Uptime uint32 `json:"uptime"`
	Heap   uint64 `json:"heap"`
	RSSI   int    `json:"rssi"`
	IP     string `json:"ip"`
	FW     string `json:"fw"`
}

// buildHeartbeat assembles the heartbeat JSON for this device.
func (c *Client) buildHeartbeat() ([]byte, error) {
	return json.Marshal(heartbeatPayload{
		Uptime: c.uptimeSeconds(),
		Heap:   freeHeap(),
		RSSI:   c.rssi(),
		IP:     localIP(),
		FW:     c.cfg.Device.Firmware,
	})
}

// sendHeartbeat publishes the heartbeat and mirrors it to telemetry.
// Publish failures are logged and retried at the next interval.
func (c *Client) sendHeartbeat() {
	payload, err := c.buildHeartbeat()
	if err != nil {
		c.log.Error("building heartbeat", "error", err)
		return
	}

	if err := c.publish(c.topics.Heartbeat(), payload, 0, false); err != nil {
		c.log.Warn("publishing heartbeat", "error", err)
		return
	}

	if tc := c.telemetryClient(); tc != nil {
		tc.WriteHeartbeat(int64(c.uptimeSeconds()), c.rssi(), c.queue.PendingCount())
	}
}

// rssi returns the wireless signal strength, or 0 when no provider is set.
// Gateways on wired links have no meaningful RSSI.
func (c *Client) rssi() int {
	c.stateMu.RLock()
	fn := c.rssiFunc
	c.stateMu.RUnlock()
	if fn == nil {
		return 0
	}
	return fn()
}

// SetRSSIFunc installs a signal strength provider for the heartbeat.
// Use this on hosts with a wireless interface that exposes link quality.
func (c *Client) SetRSSIFunc(fn func() int) {
	c.stateMu.Lock()
	c.rssiFunc = fn
	c.stateMu.Unlock()
}

// freeHeap reports heap bytes held by the runtime but not in use.
func freeHeap() uint64 {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	return m.HeapIdle
}

// localIP returns the first global unicast IPv4 address, or "" when the
// host has none. Best effort; the heartbeat still goes out without it.
func localIP() string {
	addrs, err := net.InterfaceAddrs()
	if err != nil {
		return ""
	}
	for _, addr := range addrs {
		ipNet, ok := addr.(*net.IPNet)
		if !ok {
			continue
		}
		ip := ipNet.IP
		if ip.IsLoopback() || ip.To4() == nil {
			continue
		}
		return ip.String()
	}
	return ""
}
