// Package session owns the broker connection for one Duux device.
//
// A Session subscribes to the device's state topic, decodes every frame
// with the payload package and hands the resulting snapshot to its
// dispatcher. Outbound commands go to the command topic as plain
// "tune set <key> <value>" strings.
//
// # Lifecycle
//
//	Disconnected -> Connecting -> Connected -> Disconnected
//
// Connect is a single attempt. A lost connection is logged and reported
// through telemetry; nothing reconnects automatically.
//
// # Usage
//
//	client := mqtt.New(entry.Config.Broker(cfg.Broker), "")
//	s := session.New("AA:BB:CC", client, dispatch.New(loop))
//	s.SetLogger(log)
//
//	if err := s.Connect(ctx); err != nil {
//	    log.Error("device unreachable", "error", err)
//	}
//	defer s.Close()
//
//	s.Publish("tune set power 1")
//
// # Thread Safety
//
// All methods are safe for concurrent use. Inbound messages arrive on the
// transport's delivery goroutine; listeners run wherever the dispatcher's
// scheduler runs them.
package session
