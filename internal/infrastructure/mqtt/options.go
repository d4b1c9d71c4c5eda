package mqtt

import (
	"crypto/tls"
	"fmt"
	"strings"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	"github.com/nerrad567/duuxlink/internal/infrastructure/config"
)

// Connection constants.
const (
	// defaultConnectTimeout is the maximum time paho waits for CONNACK.
	defaultConnectTimeout = 10 * time.Second

	// defaultTokenTimeout bounds background waits on publish/subscribe tokens.
	defaultTokenTimeout = 5 * time.Second

	// defaultDisconnectQuiesce is the time to wait for pending operations on disconnect.
	defaultDisconnectQuiesce = 250 // milliseconds

	// defaultKeepAlive is used when the configured keepalive is zero.
	defaultKeepAlive = 60 * time.Second

	// maxQoS is the maximum QoS level supported.
	maxQoS = 2

	// tlsMinVersion is the minimum TLS version for secure connections.
	tlsMinVersion = tls.VersionTLS12

	// clientIDSuffixLen keeps generated ids within the 23 byte MQTT 3.1 limit.
	clientIDSuffixLen = 8
)

// NewClientID returns a client identifier of the form "<prefix>-<random>".
func NewClientID(prefix string) string {
	if prefix == "" {
		prefix = "duuxlink"
	}
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:clientIDSuffixLen]
	return prefix + "-" + suffix
}

// brokerURL renders ssl://host:port or tcp://host:port.
func brokerURL(cfg config.BrokerConfig) string {
	scheme := "tcp"
	if cfg.TLS {
		scheme = "ssl"
	}
	return fmt.Sprintf("%s://%s:%d", scheme, cfg.Host, cfg.Port)
}

// buildClientOptions creates paho options for one device session.
//
// This configures:
//   - Broker URL (tcp:// or ssl:// based on TLS setting)
//   - Client ID and credentials (if provided)
//   - TLS, optionally without certificate verification
//   - Keepalive
//   - No automatic reconnect or connect retry
//   - In-order delivery to handlers
func buildClientOptions(cfg config.BrokerConfig, clientID string) *pahomqtt.ClientOptions {
	opts := pahomqtt.NewClientOptions()

	opts.AddBroker(brokerURL(cfg))
	opts.SetClientID(clientID)

	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}

	opts.SetCleanSession(true)

	// Reconnection is the owner's decision.
	opts.SetAutoReconnect(false)
	opts.SetConnectRetry(false)

	// Handlers run sequentially so state frames are applied in broker order.
	opts.SetOrderMatters(true)

	opts.SetConnectTimeout(defaultConnectTimeout)

	keepAlive := defaultKeepAlive
	if cfg.KeepAlive > 0 {
		keepAlive = time.Duration(cfg.KeepAlive) * time.Second
	}
	opts.SetKeepAlive(keepAlive)

	if cfg.TLS {
		opts.SetTLSConfig(&tls.Config{
			MinVersion: tlsMinVersion,
			// The vendor proxy presents a certificate that does not verify.
			InsecureSkipVerify: cfg.InsecureSkipVerify, //nolint:gosec // opt-in via config
		})
	}

	return opts
}
