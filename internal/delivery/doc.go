// Package delivery adds application-level acknowledgements on top of
// MQTT publishes.
//
// MQTT QoS guarantees delivery to the broker, not to the application on
// the other side. For updates that must reach the platform (billing
// events, alarm triggers), the queue assigns each message an ID, tracks
// it in a fixed-size pending table, retransmits on timeout, and settles
// it when the server's ACK arrives on the ack topic.
//
// The state machine per message is: sent, resent up to the retry budget,
// then delivered (positive ACK) or failed (negative ACK or budget
// exhausted). A full pending table rejects new sends immediately rather
// than queueing them.
//
// # Usage
//
//	q := delivery.NewQueue(delivery.Config{Enabled: true}, transport, nil)
//	q.OnDelivered(func(id string) { log.Println("delivered", id) })
//	q.OnFailed(func(id string) { log.Println("failed", id) })
//
//	q.Send(5, "42")
//
//	// from the main loop, while connected:
//	q.ProcessRetries()
package delivery
