package session

// Session event names written to telemetry.
const (
	EventConnected      = "connected"
	EventConnectFailed  = "connect_failed"
	EventConnectionLost = "connection_lost"
	EventDisconnected   = "disconnected"
)

// Message outcomes written to telemetry.
const (
	OutcomeAccepted   = "accepted"
	OutcomeMalformed  = "malformed"
	OutcomeNoEnvelope = "no_envelope"
	OutcomeEmpty      = "empty"
)

// Telemetry receives session counters. *influxdb.Client satisfies it.
//
// Implementations must not block; they are called from the transport's
// delivery goroutine.
type Telemetry interface {
	WriteSessionEvent(deviceID, event string)
	WriteMessage(deviceID, outcome string, attributes int)
	WriteCommand(deviceID string)
}

type noopTelemetry struct{}

func (noopTelemetry) WriteSessionEvent(string, string) {}
func (noopTelemetry) WriteMessage(string, string, int) {}
func (noopTelemetry) WriteCommand(string)              {}
