package mqtt

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/duuxlink/internal/infrastructure/config"
)

// testConfig returns broker settings pointing at a local plain-TCP broker.
func testConfig() config.BrokerConfig {
	return config.BrokerConfig{
		Host:           "127.0.0.1",
		Port:           1883,
		KeepAlive:      30,
		ClientIDPrefix: "duuxlink-test",
	}
}

// mockLogger implements Logger for testing.
type mockLogger struct {
	mu     sync.Mutex
	debugs []string
	warns  []string
	errors []string
}

func (l *mockLogger) Debug(msg string, _ ...any) {
	l.mu.Lock()
	l.debugs = append(l.debugs, msg)
	l.mu.Unlock()
}

func (l *mockLogger) Info(string, ...any) {}

func (l *mockLogger) Warn(msg string, _ ...any) {
	l.mu.Lock()
	l.warns = append(l.warns, msg)
	l.mu.Unlock()
}

func (l *mockLogger) Error(msg string, _ ...any) {
	l.mu.Lock()
	l.errors = append(l.errors, msg)
	l.mu.Unlock()
}

// fakeMessage implements pahomqtt.Message.
type fakeMessage struct {
	topic   string
	payload []byte
}

func (m fakeMessage) Duplicate() bool   { return false }
func (m fakeMessage) Qos() byte         { return 1 }
func (m fakeMessage) Retained() bool    { return false }
func (m fakeMessage) Topic() string     { return m.topic }
func (m fakeMessage) MessageID() uint16 { return 1 }
func (m fakeMessage) Payload() []byte   { return m.payload }
func (m fakeMessage) Ack()              {}

// =============================================================================
// Options Tests
// =============================================================================

func TestBuildClientOptions_TLSWithoutVerification(t *testing.T) {
	cfg := testConfig()
	cfg.Host = "collector3.cloudgarden.nl"
	cfg.Port = 443
	cfg.TLS = true
	cfg.InsecureSkipVerify = true
	cfg.Username = "user"
	cfg.Password = "pass"

	opts := buildClientOptions(cfg, "duuxlink-abc")

	if len(opts.Servers) != 1 || opts.Servers[0].String() != "ssl://collector3.cloudgarden.nl:443" {
		t.Errorf("Servers = %v, want ssl://collector3.cloudgarden.nl:443", opts.Servers)
	}
	if opts.TLSConfig == nil || !opts.TLSConfig.InsecureSkipVerify {
		t.Error("TLSConfig.InsecureSkipVerify = false, want true")
	}
	if opts.Username != "user" || opts.Password != "pass" {
		t.Errorf("credentials = %q/%q, want user/pass", opts.Username, opts.Password)
	}
	if opts.ClientID != "duuxlink-abc" {
		t.Errorf("ClientID = %q, want duuxlink-abc", opts.ClientID)
	}
}

func TestBuildClientOptions_NoReconnect(t *testing.T) {
	opts := buildClientOptions(testConfig(), "id")

	if opts.AutoReconnect {
		t.Error("AutoReconnect = true, want false")
	}
	if opts.ConnectRetry {
		t.Error("ConnectRetry = true, want false")
	}
	if !opts.Order {
		t.Error("Order = false, want in-order delivery")
	}
	if opts.KeepAlive != 30 {
		t.Errorf("KeepAlive = %d, want 30", opts.KeepAlive)
	}
	if opts.TLSConfig != nil && opts.TLSConfig.InsecureSkipVerify {
		t.Error("plain TCP config should not disable verification")
	}
}

func TestBuildClientOptions_DefaultKeepAlive(t *testing.T) {
	cfg := testConfig()
	cfg.KeepAlive = 0

	opts := buildClientOptions(cfg, "id")

	if opts.KeepAlive != 60 {
		t.Errorf("KeepAlive = %d, want 60", opts.KeepAlive)
	}
}

func TestNewClientID(t *testing.T) {
	a := NewClientID("duuxlink")
	b := NewClientID("duuxlink")

	if a == b {
		t.Errorf("NewClientID returned duplicate ids %q", a)
	}
	if !strings.HasPrefix(a, "duuxlink-") {
		t.Errorf("NewClientID() = %q, want duuxlink- prefix", a)
	}
	if len(a) > 23 {
		t.Errorf("len(NewClientID()) = %d, want <= 23", len(a))
	}
	if got := NewClientID(""); !strings.HasPrefix(got, "duuxlink-") {
		t.Errorf("NewClientID(\"\") = %q, want default prefix", got)
	}
}

func TestNew_GeneratesClientID(t *testing.T) {
	c := New(testConfig(), "")
	if !strings.HasPrefix(c.clientID, "duuxlink-test-") {
		t.Errorf("clientID = %q, want configured prefix", c.clientID)
	}
	if got := brokerURL(c.cfg); got != "tcp://127.0.0.1:1883" {
		t.Errorf("brokerURL() = %q, want tcp://127.0.0.1:1883", got)
	}
}

// =============================================================================
// Topic Tests
// =============================================================================

func TestTopicBuilders(t *testing.T) {
	topics := Topics{}

	tests := []struct {
		name string
		got  string
		want string
	}{
		{"state lowercases id", topics.State("AA:BB:CC"), "sensor/aa:bb:cc/in"},
		{"command lowercases id", topics.Command("AA:BB:CC"), "sensor/aa:bb:cc/command"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("got %q, want %q", tt.got, tt.want)
			}
		})
	}
}

// =============================================================================
// Lifecycle Tests (no broker)
// =============================================================================

func TestCloseNeverConnected(t *testing.T) {
	c := New(testConfig(), "id")
	if err := c.Close(); err != nil {
		t.Errorf("Close() error = %v, want nil", err)
	}
	if err := c.Close(); err != nil {
		t.Errorf("second Close() error = %v, want nil", err)
	}
}

func TestIsConnected_InitialState(t *testing.T) {
	c := New(testConfig(), "id")
	if c.IsConnected() {
		t.Error("IsConnected() = true before Connect")
	}
}

func TestConnect_BrokerRefused(t *testing.T) {
	cfg := testConfig()
	cfg.Port = 1 // nothing listens here

	c := New(cfg, "id")
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	err := c.Connect(ctx)
	if !errors.Is(err, ErrConnectionFailed) {
		t.Fatalf("Connect() error = %v, want ErrConnectionFailed", err)
	}
	if !strings.Contains(err.Error(), "tcp://127.0.0.1:1") {
		t.Errorf("Connect() error = %q, want the broker URL", err)
	}
	if c.IsConnected() {
		t.Error("IsConnected() = true after failed Connect")
	}
	_ = c.Close()
}

// =============================================================================
// Publish / Subscribe validation
// =============================================================================

func TestPublishValidation(t *testing.T) {
	c := New(testConfig(), "id")

	tests := []struct {
		name    string
		topic   string
		payload []byte
		qos     byte
		want    error
	}{
		{"empty topic", "", []byte("x"), 0, ErrInvalidTopic},
		{"bad qos", "sensor/a/command", []byte("x"), 3, ErrInvalidQoS},
		{"too large", "sensor/a/command", make([]byte, maxPayloadSize+1), 0, ErrPublishFailed},
		{"never connected", "sensor/a/command", []byte("tune set power 1"), 0, ErrNotConnected},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := c.Publish(tt.topic, tt.payload, tt.qos, false)
			if !errors.Is(err, tt.want) {
				t.Errorf("Publish() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestSubscribeRecordedBeforeConnect(t *testing.T) {
	c := New(testConfig(), "id")
	topic := Topics{}.State("aa:bb")

	if err := c.Subscribe(topic, 1, func(string, []byte) error { return nil }); err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}
	c.subMu.RLock()
	sub, ok := c.subscriptions[topic]
	c.subMu.RUnlock()
	if !ok || sub.qos != 1 {
		t.Errorf("subscriptions[%q] = %+v, %t; want qos 1 recorded", topic, sub, ok)
	}
}

func TestSubscribeValidation(t *testing.T) {
	c := New(testConfig(), "id")
	noop := func(string, []byte) error { return nil }

	if err := c.Subscribe("", 1, noop); !errors.Is(err, ErrInvalidTopic) {
		t.Errorf("empty topic: error = %v, want ErrInvalidTopic", err)
	}
	if err := c.Subscribe("t", 3, noop); !errors.Is(err, ErrInvalidQoS) {
		t.Errorf("bad qos: error = %v, want ErrInvalidQoS", err)
	}
	if err := c.Subscribe("t", 1, nil); !errors.Is(err, ErrSubscribeFailed) {
		t.Errorf("nil handler: error = %v, want ErrSubscribeFailed", err)
	}
	if len(c.subscriptions) != 0 {
		t.Errorf("recorded %d subscriptions, want 0", len(c.subscriptions))
	}
}

// =============================================================================
// Handler wrapping
// =============================================================================

func TestWrapHandler_RecoversPanic(t *testing.T) {
	c := New(testConfig(), "id")
	logger := &mockLogger{}
	c.SetLogger(logger)

	wrapped := c.wrapHandler(func(string, []byte) error {
		panic("boom")
	})
	wrapped(nil, fakeMessage{topic: "sensor/a/in"})

	if len(logger.errors) != 1 {
		t.Errorf("logged %d errors, want 1", len(logger.errors))
	}
}

func TestWrapHandler_LogsError(t *testing.T) {
	c := New(testConfig(), "id")
	logger := &mockLogger{}
	c.SetLogger(logger)

	var gotTopic string
	var gotPayload []byte
	wrapped := c.wrapHandler(func(topic string, payload []byte) error {
		gotTopic, gotPayload = topic, payload
		return errors.New("bad frame")
	})
	wrapped(nil, fakeMessage{topic: "sensor/a/in", payload: []byte("{}")})

	if gotTopic != "sensor/a/in" || string(gotPayload) != "{}" {
		t.Errorf("handler got (%q, %q)", gotTopic, gotPayload)
	}
	if len(logger.warns) != 1 {
		t.Errorf("logged %d warnings, want 1", len(logger.warns))
	}
}

func TestWrapHandler_NoLogger(t *testing.T) {
	c := New(testConfig(), "id")
	wrapped := c.wrapHandler(func(string, []byte) error { panic("boom") })

	// Must not propagate the panic.
	wrapped(nil, fakeMessage{topic: "t"})
}

func TestCallbacks(t *testing.T) {
	c := New(testConfig(), "id")

	var connects, disconnects int
	var lostErr error
	c.SetOnConnect(func() { connects++ })
	c.SetOnDisconnect(func(err error) { disconnects++; lostErr = err })

	c.handleConnect()
	c.handleDisconnect(errors.New("eof"))

	if connects != 1 || disconnects != 1 {
		t.Errorf("connects=%d disconnects=%d, want 1/1", connects, disconnects)
	}
	if lostErr == nil || lostErr.Error() != "eof" {
		t.Errorf("lost error = %v, want eof", lostErr)
	}
	if c.IsConnected() {
		t.Error("IsConnected() = true after connection lost")
	}
}
