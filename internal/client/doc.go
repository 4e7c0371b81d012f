// Package client implements the Vwire device agent.
//
// It assembles the broker connection, the virtual pin handler registry,
// the GPIO pin table, the software timer scheduler, and the reliable
// delivery queue behind one API, and drives them from a single run loop.
//
// Typical use:
//
//	cfg, _ := config.Load("config.yaml")
//	agent, _ := client.New(cfg, logger)
//	agent.OnVirtualReceive(1, func(v pin.Value) {
//	    relay.Set(v.Bool())
//	})
//	agent.Connect()
//	agent.Run(ctx)
//
// Inbound messages arrive on vwire/{deviceId}/cmd/#, ack, and pinconfig;
// outbound state goes to the pin, data, heartbeat, and event topics.
// All routing stays inside this package so the components it glues
// together never see MQTT.
package client
