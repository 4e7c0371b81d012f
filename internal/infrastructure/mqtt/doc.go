// Package mqtt provides MQTT client connectivity for the Vwire device agent.
//
// This package manages:
//   - Connection to the Vwire broker with auto-reconnect
//   - Token authentication (auth token as username and password)
//   - Message publishing with QoS guarantees
//   - Topic subscriptions with wildcard support
//   - Last Will and Testament (LWT) for offline detection
//   - Connection health monitoring
//
// # Architecture
//
// Every topic is scoped to a single device:
//
//	vwire/{deviceId}/{status|pin/...|data|ack|cmd/...|sync|heartbeat|...}
//
// The agent publishes state and telemetry, and subscribes to the command
// subtree plus the ACK topic when reliable delivery is enabled.
//
// # Security Considerations
//
//   - TLS is the default for the hosted broker (port 8883)
//   - The auth token is the only credential; never log it in full
//   - Message payloads are not encrypted beyond TLS transport
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT, mqtt.Identity{
//	    DeviceID:  cfg.DeviceID(),
//	    AuthToken: cfg.Device.AuthToken,
//	    Firmware:  cfg.Device.Firmware,
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	// Subscribe to all incoming commands
//	err = client.Subscribe(client.Topics().AllCommands(), 1,
//	    func(topic string, payload []byte) error {
//	        log.Printf("Received: %s = %s", topic, payload)
//	        return nil
//	    })
package mqtt
