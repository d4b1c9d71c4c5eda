//go:build integration

package mqtt

import (
	"context"
	"sync"
	"testing"
	"time"
)

// Integration tests against a live broker at 127.0.0.1:1883.
//
// Run with:
//   go test -tags=integration -v ./internal/infrastructure/mqtt/...

func connectTest(t *testing.T) *Client {
	t.Helper()
	c := New(testConfig(), "")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := c.Connect(ctx); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestIntegration_ConnectAndClose(t *testing.T) {
	c := connectTest(t)

	if !c.IsConnected() {
		t.Fatal("IsConnected() = false after Connect")
	}
	_ = c.Close()
	if c.IsConnected() {
		t.Error("IsConnected() = true after Close")
	}
}

func TestIntegration_SubscriptionAppliedOnConnect(t *testing.T) {
	pub := connectTest(t)

	sub := New(testConfig(), "")
	received := make(chan string, 1)
	var once sync.Once
	topic := Topics{}.State("int:test:01")

	if err := sub.Subscribe(topic, 1, func(_ string, p []byte) error {
		once.Do(func() { received <- string(p) })
		return nil
	}); err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := sub.Connect(ctx); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer sub.Close()

	time.Sleep(200 * time.Millisecond)

	if err := pub.Publish(topic, []byte(`{"sub":{"Tune":[{"power":1}]}}`), 0, false); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}

	select {
	case msg := <-received:
		if msg != `{"sub":{"Tune":[{"power":1}]}}` {
			t.Errorf("received %q", msg)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timeout waiting for message")
	}
}

func TestIntegration_Reconnect(t *testing.T) {
	c := connectTest(t)
	_ = c.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := c.Connect(ctx); err != nil {
		t.Fatalf("second Connect() error = %v", err)
	}
	if !c.IsConnected() {
		t.Error("IsConnected() = false after reconnect")
	}
}
