package session

import (
	"context"
	"errors"
	"sync"

	"github.com/nerrad567/duuxlink/internal/infrastructure/mqtt"
)

// MockClient implements Client for testing without a broker.
type MockClient struct {
	mu sync.Mutex

	connected  bool
	handlers   map[string]mqtt.MessageHandler
	qos        map[string]byte
	published  []publishedMessage
	connects   int
	closes     int
	connectErr error
	publishErr error

	onConnect    func()
	onDisconnect func(err error)
}

type publishedMessage struct {
	topic    string
	payload  string
	qos      byte
	retained bool
}

func NewMockClient() *MockClient {
	return &MockClient{
		handlers: make(map[string]mqtt.MessageHandler),
		qos:      make(map[string]byte),
	}
}

func (m *MockClient) Connect(ctx context.Context) error {
	m.mu.Lock()
	m.connects++
	if m.connectErr != nil {
		err := m.connectErr
		m.mu.Unlock()
		return err
	}
	if err := ctx.Err(); err != nil {
		m.mu.Unlock()
		return errors.Join(mqtt.ErrConnectionFailed, err)
	}
	m.connected = true
	cb := m.onConnect
	m.mu.Unlock()

	if cb != nil {
		cb()
	}
	return nil
}

func (m *MockClient) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closes++
	m.connected = false
	return nil
}

func (m *MockClient) Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[topic] = handler
	m.qos[topic] = qos
	return nil
}

func (m *MockClient) Publish(topic string, payload []byte, qos byte, retained bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.publishErr != nil {
		return m.publishErr
	}
	m.published = append(m.published, publishedMessage{topic, string(payload), qos, retained})
	return nil
}

func (m *MockClient) IsConnected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connected
}

func (m *MockClient) SetOnConnect(callback func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onConnect = callback
}

func (m *MockClient) SetOnDisconnect(callback func(err error)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onDisconnect = callback
}

// SimulateMessage delivers payload to the handler subscribed on topic.
// It returns false if nothing is subscribed there.
func (m *MockClient) SimulateMessage(topic string, payload []byte) bool {
	m.mu.Lock()
	handler, ok := m.handlers[topic]
	m.mu.Unlock()
	if !ok {
		return false
	}
	_ = handler(topic, payload) //nolint:errcheck // handler errors are logged by the transport
	return true
}

// SimulateConnectionLost drops the connection as the broker would.
func (m *MockClient) SimulateConnectionLost(err error) {
	m.mu.Lock()
	m.connected = false
	cb := m.onDisconnect
	m.mu.Unlock()
	if cb != nil {
		cb(err)
	}
}

func (m *MockClient) Published() []publishedMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]publishedMessage(nil), m.published...)
}

// recordingTelemetry captures telemetry calls.
type recordingTelemetry struct {
	mu       sync.Mutex
	events   []string
	outcomes []string
	commands int
}

func (r *recordingTelemetry) WriteSessionEvent(_, event string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

func (r *recordingTelemetry) WriteMessage(_, outcome string, _ int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outcomes = append(r.outcomes, outcome)
}

func (r *recordingTelemetry) WriteCommand(string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.commands++
}

// mockLogger records messages by level.
type mockLogger struct {
	mu     sync.Mutex
	debugs []string
	warns  []string
	errors []string
}

func (l *mockLogger) Debug(msg string, _ ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.debugs = append(l.debugs, msg)
}

func (l *mockLogger) Info(string, ...any) {}

func (l *mockLogger) Warn(msg string, _ ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.warns = append(l.warns, msg)
}

func (l *mockLogger) Error(msg string, _ ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.errors = append(l.errors, msg)
}
