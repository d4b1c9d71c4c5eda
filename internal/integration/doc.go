// Package integration sets up and tears down configured devices.
//
// For each device entry the Manager looks up the model profile, creates a
// broker session, builds the capability bindings and registers them with
// the session's dispatcher. The connection attempt runs in the background;
// Setup returns as soon as the bindings exist.
//
// At most one live session exists per device id.
//
// # Usage
//
//	m := integration.NewManager(profiles, cfg.Broker, loop, integration.MQTTClientFactory)
//	m.SetLogger(log)
//	defer m.Close()
//
//	dev, err := m.Setup(ctx, entry)
//	if errors.Is(err, integration.ErrUnknownModel) {
//	    ...
//	}
package integration
