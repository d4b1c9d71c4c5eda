// Package probe checks broker credentials and device reachability before a
// device entry is stored.
package probe

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nerrad567/duuxlink/internal/infrastructure/config"
	"github.com/nerrad567/duuxlink/internal/infrastructure/mqtt"
)

// DefaultTimeout is how long Device waits for a state frame.
const DefaultTimeout = 10 * time.Second

var (
	// ErrBrokerUnreachable is returned when the broker refuses or cannot be
	// reached with the given settings.
	ErrBrokerUnreachable = errors.New("probe: broker unreachable")

	// ErrNoMessage is returned when the device published nothing within the
	// timeout.
	ErrNoMessage = errors.New("probe: no message from device")
)

// Client is the part of the transport a probe uses.
type Client interface {
	Connect(ctx context.Context) error
	Close() error
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
}

// Dialer creates an unconnected transport for a probe.
type Dialer func(cfg config.BrokerConfig, clientID string) Client

// MQTTDialer creates paho-backed clients with generated client ids.
func MQTTDialer(cfg config.BrokerConfig, clientID string) Client {
	return mqtt.New(cfg, clientID)
}

// Logger is the logging interface used by Prober.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}

// Prober runs setup-time connection checks.
type Prober struct {
	dial    Dialer
	timeout time.Duration
	logger  Logger
}

// New creates a Prober. A non-positive timeout means DefaultTimeout.
func New(dial Dialer, timeout time.Duration) *Prober {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Prober{dial: dial, timeout: timeout, logger: noopLogger{}}
}

// SetLogger sets the logger for the prober.
func (p *Prober) SetLogger(logger Logger) {
	p.logger = logger
}

// Broker connects to the broker and disconnects again.
func (p *Prober) Broker(ctx context.Context, cfg config.BrokerConfig) error {
	client := p.dial(cfg, "")
	defer client.Close() //nolint:errcheck // probe teardown

	if err := client.Connect(ctx); err != nil {
		p.logger.Debug("broker probe failed", "broker", cfg.String(), "error", err)
		return fmt.Errorf("%w: %w", ErrBrokerUnreachable, err)
	}

	p.logger.Info("broker probe succeeded", "host", cfg.Host, "port", cfg.Port)
	return nil
}

// Device connects, subscribes to the device's state topic and waits for
// one frame. Any message counts; its content is not decoded.
func (p *Prober) Device(ctx context.Context, cfg config.BrokerConfig, deviceID string) error {
	topic := mqtt.Topics{}.State(deviceID)
	received := make(chan struct{}, 1)

	client := p.dial(cfg, "")
	defer client.Close() //nolint:errcheck // probe teardown

	err := client.Subscribe(topic, 1, func(string, []byte) error {
		select {
		case received <- struct{}{}:
		default:
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("subscribing to %s: %w", topic, err)
	}

	if err := client.Connect(ctx); err != nil {
		p.logger.Debug("device probe failed", "device_id", deviceID, "error", err)
		return fmt.Errorf("%w: %w", ErrBrokerUnreachable, err)
	}

	timer := time.NewTimer(p.timeout)
	defer timer.Stop()

	select {
	case <-received:
		p.logger.Info("device probe succeeded", "device_id", deviceID)
		return nil
	case <-timer.C:
		return fmt.Errorf("%w: %s after %v", ErrNoMessage, topic, p.timeout)
	case <-ctx.Done():
		return ctx.Err()
	}
}
