package probe

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/duuxlink/internal/infrastructure/config"
	"github.com/nerrad567/duuxlink/internal/infrastructure/mqtt"
)

// fakeClient delivers a message to its subscription right after connect
// when sendOnConnect is set.
type fakeClient struct {
	mu            sync.Mutex
	connectErr    error
	sendOnConnect bool
	topic         string
	handler       mqtt.MessageHandler
	closed        bool
}

func (f *fakeClient) Connect(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.connectErr != nil {
		return f.connectErr
	}
	if f.sendOnConnect && f.handler != nil {
		go f.handler(f.topic, []byte(`{"sub":{"Tune":[{"power":1}]}}`)) //nolint:errcheck // test
	}
	return nil
}

func (f *fakeClient) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeClient) Subscribe(topic string, _ byte, handler mqtt.MessageHandler) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.topic = topic
	f.handler = handler
	return nil
}

func dialerFor(c *fakeClient) Dialer {
	return func(config.BrokerConfig, string) Client { return c }
}

func TestBroker(t *testing.T) {
	ok := &fakeClient{}
	if err := New(dialerFor(ok), 0).Broker(context.Background(), config.BrokerConfig{Host: "h", Port: 1}); err != nil {
		t.Errorf("Broker() error = %v", err)
	}
	if !ok.closed {
		t.Error("client not closed after probe")
	}

	bad := &fakeClient{connectErr: mqtt.ErrConnectionFailed}
	err := New(dialerFor(bad), 0).Broker(context.Background(), config.BrokerConfig{})
	if !errors.Is(err, ErrBrokerUnreachable) || !errors.Is(err, mqtt.ErrConnectionFailed) {
		t.Errorf("Broker() error = %v, want ErrBrokerUnreachable wrapping the cause", err)
	}
}

func TestDevice_ReceivesMessage(t *testing.T) {
	c := &fakeClient{sendOnConnect: true}
	p := New(dialerFor(c), time.Second)

	if err := p.Device(context.Background(), config.BrokerConfig{}, "AA:BB:CC"); err != nil {
		t.Fatalf("Device() error = %v", err)
	}
	if c.topic != "sensor/aa:bb:cc/in" {
		t.Errorf("subscribed to %q", c.topic)
	}
	if !c.closed {
		t.Error("client not closed after probe")
	}
}

func TestDevice_Timeout(t *testing.T) {
	p := New(dialerFor(&fakeClient{}), 20*time.Millisecond)

	err := p.Device(context.Background(), config.BrokerConfig{}, "aa")
	if !errors.Is(err, ErrNoMessage) {
		t.Errorf("Device() error = %v, want ErrNoMessage", err)
	}
}

func TestDevice_ConnectFailure(t *testing.T) {
	p := New(dialerFor(&fakeClient{connectErr: errors.New("refused")}), time.Second)

	if err := p.Device(context.Background(), config.BrokerConfig{}, "aa"); !errors.Is(err, ErrBrokerUnreachable) {
		t.Errorf("Device() error = %v, want ErrBrokerUnreachable", err)
	}
}

func TestDevice_Cancelled(t *testing.T) {
	p := New(dialerFor(&fakeClient{}), time.Minute)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if err := p.Device(ctx, config.BrokerConfig{}, "aa"); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Device() error = %v, want deadline exceeded", err)
	}
}

func TestNew_DefaultTimeout(t *testing.T) {
	if p := New(MQTTDialer, -1); p.timeout != DefaultTimeout {
		t.Errorf("timeout = %v, want %v", p.timeout, DefaultTimeout)
	}
}
