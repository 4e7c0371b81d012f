// Package telemetry mirrors device samples into a local InfluxDB v2 bucket.
//
// Every pin reading and heartbeat already travels to the server over MQTT;
// this package is an optional local copy for installations that want on-site
// history without depending on the platform. It is disabled by default.
//
// Writes are non-blocking and batched by the underlying client. Losing the
// InfluxDB connection never affects device operation: writers silently drop
// points when disconnected and errors surface through an async callback.
package telemetry
