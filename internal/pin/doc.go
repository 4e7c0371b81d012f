// Package pin models virtual pins: the typed channels between a device
// and the Vwire dashboard.
//
// A virtual pin carries an application value rather than a hardware
// signal. Widget writes arrive as string payloads; Value wraps that wire
// form with integer, float, boolean, and comma-separated array accessors.
//
// Registry maps virtual pin numbers to handlers. Handlers are registered
// explicitly (no init-time magic), bounded by a fixed table size, and
// dispatched by the client when a command arrives.
package pin
