package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/nerrad567/duuxlink/internal/dispatch"
	"github.com/nerrad567/duuxlink/internal/infrastructure/mqtt"
	"github.com/nerrad567/duuxlink/internal/payload"
)

// QoS levels used on the device topics.
const (
	stateQoS   byte = 1
	commandQoS byte = 0
)

// Client is the transport a Session drives. *mqtt.Client satisfies it.
type Client interface {
	Connect(ctx context.Context) error
	Close() error
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
	Publish(topic string, payload []byte, qos byte, retained bool) error
	IsConnected() bool
	SetOnConnect(callback func())
	SetOnDisconnect(callback func(err error))
}

// Logger is the logging interface used by Session.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// State is the connection state of a session.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	default:
		return "disconnected"
	}
}

// Session connects one device to the broker.
type Session struct {
	deviceID     string
	stateTopic   string
	commandTopic string

	client     Client
	dispatcher *dispatch.Dispatcher

	state  State
	closed bool
	mu     sync.RWMutex

	logger    Logger
	telemetry Telemetry
}

// New creates a disconnected session for deviceID. The id may be given in
// any letter case; topics always use the lowercase form.
func New(deviceID string, client Client, dispatcher *dispatch.Dispatcher) *Session {
	id := strings.ToLower(strings.TrimSpace(deviceID))
	topics := mqtt.Topics{}
	s := &Session{
		deviceID:     id,
		stateTopic:   topics.State(id),
		commandTopic: topics.Command(id),
		client:       client,
		dispatcher:   dispatcher,
		logger:       noopLogger{},
		telemetry:    noopTelemetry{},
	}
	client.SetOnConnect(s.handleConnect)
	client.SetOnDisconnect(s.handleDisconnect)
	return s
}

// SetLogger sets the logger for the session.
func (s *Session) SetLogger(logger Logger) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logger = logger
}

// SetTelemetry sets the sink for connection and message counters.
func (s *Session) SetTelemetry(t Telemetry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.telemetry = t
}

func (s *Session) log() Logger {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.logger
}

func (s *Session) tel() Telemetry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.telemetry
}

// DeviceID returns the normalised device id.
func (s *Session) DeviceID() string { return s.deviceID }

// StateTopic returns the topic the device publishes state on.
func (s *Session) StateTopic() string { return s.stateTopic }

// CommandTopic returns the topic commands are published to.
func (s *Session) CommandTopic() string { return s.commandTopic }

// Dispatcher returns the dispatcher fed by this session.
func (s *Session) Dispatcher() *dispatch.Dispatcher { return s.dispatcher }

// State returns the current connection state.
func (s *Session) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

func (s *Session) setState(st State) {
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
}

// Connect makes one attempt to reach the broker. The state topic
// subscription is recorded first so it is applied as part of the connect.
//
// On failure the session is left Disconnected and the error wraps
// mqtt.ErrConnectionFailed.
func (s *Session) Connect(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	if s.state != StateDisconnected {
		s.mu.Unlock()
		return nil
	}
	s.state = StateConnecting
	s.mu.Unlock()

	if err := s.client.Subscribe(s.stateTopic, stateQoS, s.handleMessage); err != nil {
		s.setState(StateDisconnected)
		return fmt.Errorf("subscribing to %s: %w", s.stateTopic, err)
	}

	if err := s.client.Connect(ctx); err != nil {
		s.setState(StateDisconnected)
		s.log().Error("device connection failed", "device_id", s.deviceID, "error", err)
		s.tel().WriteSessionEvent(s.deviceID, EventConnectFailed)
		return err
	}

	// Disconnect or Close may have run while the attempt was in flight.
	s.mu.Lock()
	if s.closed || s.state == StateDisconnected {
		closed := s.closed
		s.state = StateDisconnected
		s.mu.Unlock()
		_ = s.client.Close() //nolint:errcheck // abandoning the connection
		if closed {
			return ErrClosed
		}
		return fmt.Errorf("%w: disconnected while connecting", mqtt.ErrConnectionFailed)
	}
	s.state = StateConnected
	s.mu.Unlock()

	s.log().Info("device connected", "device_id", s.deviceID, "topic", s.stateTopic)
	s.tel().WriteSessionEvent(s.deviceID, EventConnected)
	return nil
}

// Disconnect closes the broker connection. Calling it on a session that is
// already disconnected does nothing.
func (s *Session) Disconnect() error {
	s.mu.Lock()
	if s.state == StateDisconnected {
		s.mu.Unlock()
		return nil
	}
	s.state = StateDisconnected
	s.mu.Unlock()

	err := s.client.Close()
	s.log().Info("device disconnected", "device_id", s.deviceID)
	s.tel().WriteSessionEvent(s.deviceID, EventDisconnected)
	return err
}

// Close disconnects and removes every listener from the dispatcher. A
// closed session cannot be connected again.
func (s *Session) Close() error {
	err := s.Disconnect()

	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()

	s.dispatcher.Clear()
	return err
}

// Publish sends a command to the device without waiting for delivery.
//
// Only malformed commands are rejected. Transport failures, including
// publishing while disconnected, are logged at debug level and swallowed.
func (s *Session) Publish(command string) error {
	if command == "" || strings.ContainsAny(command, "\r\n") {
		return fmt.Errorf("%w: %q", ErrInvalidCommand, command)
	}

	if err := s.client.Publish(s.commandTopic, []byte(command), commandQoS, false); err != nil {
		s.log().Debug("command not sent", "device_id", s.deviceID, "command", command, "error", err)
		return nil
	}

	s.log().Debug("command sent", "device_id", s.deviceID, "command", command)
	s.tel().WriteCommand(s.deviceID)
	return nil
}

// HealthCheck reports whether the broker connection is up.
func (s *Session) HealthCheck(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("session health check: %w", ctx.Err())
	default:
	}
	if s.State() != StateConnected || !s.client.IsConnected() {
		return fmt.Errorf("device %s: %w", s.deviceID, mqtt.ErrNotConnected)
	}
	return nil
}

// handleMessage decodes a state frame and notifies the dispatcher.
// Undecodable frames are dropped here; the error is never returned to the
// transport.
func (s *Session) handleMessage(_ string, raw []byte) error {
	snapshot, err := payload.Decode(raw)
	switch {
	case err == nil:
	case errors.Is(err, payload.ErrEmptyAttributes):
		s.log().Debug("empty state frame dropped", "device_id", s.deviceID)
		s.tel().WriteMessage(s.deviceID, OutcomeEmpty, 0)
		return nil
	case errors.Is(err, payload.ErrMissingEnvelope):
		// Valid JSON from the device that is not a state frame.
		s.log().Debug("state frame without envelope dropped", "device_id", s.deviceID, "error", err)
		s.tel().WriteMessage(s.deviceID, OutcomeNoEnvelope, 0)
		return nil
	default:
		s.log().Warn("malformed state frame dropped", "device_id", s.deviceID, "error", err)
		s.tel().WriteMessage(s.deviceID, OutcomeMalformed, 0)
		return nil
	}

	n := s.dispatcher.Notify(snapshot)
	s.log().Debug("state frame received", "device_id", s.deviceID, "attributes", len(snapshot), "listeners", n)
	s.tel().WriteMessage(s.deviceID, OutcomeAccepted, len(snapshot))
	return nil
}

// handleConnect marks an in-flight attempt connected as soon as the
// transport reports it.
func (s *Session) handleConnect() {
	s.mu.Lock()
	if !s.closed && s.state == StateConnecting {
		s.state = StateConnected
	}
	s.mu.Unlock()
}

func (s *Session) handleDisconnect(err error) {
	s.setState(StateDisconnected)
	s.log().Warn("device connection lost", "device_id", s.deviceID, "error", err)
	s.tel().WriteSessionEvent(s.deviceID, EventConnectionLost)
}
