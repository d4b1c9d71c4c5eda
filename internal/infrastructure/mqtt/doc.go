// Package mqtt provides the broker connection used by each device session.
//
// This package manages:
//   - One paho connection per Client, opened explicitly with Connect
//   - TLS to the vendor proxy, optionally without certificate verification
//   - Recorded subscriptions re-applied on every connect
//   - Fire-and-forget publishing
//   - Duux topic builders (sensor/{id}/in, sensor/{id}/command)
//
// # Architecture
//
// Each Duux device talks to a cloud proxy broker. duuxlink opens one
// connection per device because the proxy authenticates per device.
//
//	device ↔ vendor broker ↔ mqtt.Client ↔ session.Session
//
// There is no automatic reconnect. A lost connection is reported through
// SetOnDisconnect and the session stays disconnected until the owner calls
// Connect again.
//
// # Usage
//
//	client := mqtt.New(cfg.Broker, "")
//	_ = client.Subscribe(mqtt.Topics{}.State(id), 1, handler)
//	if err := client.Connect(ctx); err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	client.Publish(mqtt.Topics{}.Command(id), []byte("tune set power 1"), 0, false)
package mqtt
