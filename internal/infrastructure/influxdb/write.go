package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// Measurement names.
const (
	MeasurementSessionEvents   = "session_events"
	MeasurementSessionMessages = "session_messages"
	MeasurementSessionCommands = "session_commands"
	MeasurementRuntime         = "duuxlink_runtime"
)

// WriteSessionEvent records a connection lifecycle event for a device,
// such as "connected" or "connection_lost".
//
// The write is non-blocking; points are batched and sent asynchronously.
func (c *Client) WriteSessionEvent(deviceID, event string) {
	if !c.open.Load() {
		return
	}
	c.writeAPI.WritePoint(sessionEventPoint(deviceID, event, time.Now()))
}

// WriteMessage records one inbound state frame and what became of it.
//
// Parameters:
//   - deviceID: lowercase device id
//   - outcome: "accepted", "malformed", "no_envelope" or "empty"
//   - attributes: number of attributes in an accepted frame, else 0
func (c *Client) WriteMessage(deviceID, outcome string, attributes int) {
	if !c.open.Load() {
		return
	}
	c.writeAPI.WritePoint(messagePoint(deviceID, outcome, attributes, time.Now()))
}

// WriteCommand records one command handed to the broker.
func (c *Client) WriteCommand(deviceID string) {
	if !c.open.Load() {
		return
	}
	c.writeAPI.WritePoint(commandPoint(deviceID, time.Now()))
}

// ReportSessions records how many device sessions exist and how many of
// them are connected.
func (c *Client) ReportSessions(total, connected int) {
	if !c.open.Load() {
		return
	}
	c.writeAPI.WritePoint(runtimePoint(total, connected, time.Now()))
}

func sessionEventPoint(deviceID, event string, ts time.Time) *write.Point {
	return write.NewPoint(
		MeasurementSessionEvents,
		map[string]string{
			"device_id": deviceID,
			"event":     event,
		},
		map[string]any{
			"count": 1,
		},
		ts,
	)
}

func messagePoint(deviceID, outcome string, attributes int, ts time.Time) *write.Point {
	fields := map[string]any{
		"count": 1,
	}
	if attributes > 0 {
		fields["attributes"] = attributes
	}
	return write.NewPoint(
		MeasurementSessionMessages,
		map[string]string{
			"device_id": deviceID,
			"outcome":   outcome,
		},
		fields,
		ts,
	)
}

func commandPoint(deviceID string, ts time.Time) *write.Point {
	return write.NewPoint(
		MeasurementSessionCommands,
		map[string]string{
			"device_id": deviceID,
		},
		map[string]any{
			"count": 1,
		},
		ts,
	)
}

func runtimePoint(total, connected int, ts time.Time) *write.Point {
	return write.NewPoint(
		MeasurementRuntime,
		nil,
		map[string]any{
			"sessions":  total,
			"connected": connected,
		},
		ts,
	)
}
