// Package api implements the HTTP REST API and WebSocket server for duuxlink.
//
// This package provides:
//   - REST endpoints for device entries, model profiles and entity actions
//   - a WebSocket hub publishing entity state after every device frame
//   - middleware for request IDs, logging, panic recovery and body limits
//
// # Architecture
//
// The API sits in front of the device registry and the integration
// manager. Creating a device stores its entry and sets it up; actions are
// applied to live bindings, which publish commands through the device's
// session. State flows back through each session's dispatcher, where the
// hub has a listener registered after the entity bindings.
//
// # Endpoints
//
//	GET    /api/v1/health
//	GET    /api/v1/metrics
//	GET    /api/v1/models
//	GET    /api/v1/devices
//	POST   /api/v1/devices[?probe=true]
//	GET    /api/v1/devices/{id}
//	DELETE /api/v1/devices/{id}
//	GET    /api/v1/devices/{id}/entities
//	POST   /api/v1/devices/{id}/entities/{key}/actions
//	GET    /api/v1/ws
//
// # WebSocket
//
// Clients choose channels and, optionally, devices:
//
//	{"op":"subscribe","id":"1","channels":["device.state_changed"],"devices":["aa:bb:cc:dd:ee:ff"]}
//	{"op":"unsubscribe","id":"2","devices":["aa:bb:cc:dd:ee:ff"]}
//
// Each request is answered by an "ack" frame listing the resulting filter
// or an "error" frame. Events arrive as
//
//	{"kind":"event","channel":"device.state_changed","device_id":"...","time":"...","data":{...}}
//
// A client whose queue fills up is disconnected and should resync over
// REST after reconnecting. Keep-alive uses WebSocket ping/pong frames.
//
// The server has no authentication and binds to loopback by default.
package api
