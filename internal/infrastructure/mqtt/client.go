package mqtt

import (
	"context"
	"fmt"
	"sync"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/nerrad567/duuxlink/internal/infrastructure/config"
)

// Client wraps paho.mqtt.golang for a single device session.
//
// Unlike a long-lived bus connection it never reconnects on its own: a lost
// connection is reported through the OnDisconnect callback and the owner
// decides whether to call Connect again.
//
// Thread Safety:
//   - All methods are safe for concurrent use from multiple goroutines.
//   - Subscriptions are recorded and re-applied on every successful connect.
type Client struct {
	cfg      config.BrokerConfig
	clientID string

	// client is rebuilt on every Connect so a closed session can be reopened.
	client  pahomqtt.Client
	options *pahomqtt.ClientOptions
	clMu    sync.RWMutex

	subscriptions map[string]subscription
	subMu         sync.RWMutex

	connected bool
	connMu    sync.RWMutex

	onConnect    func()
	onDisconnect func(err error)
	callbackMu   sync.RWMutex

	logger   Logger
	loggerMu sync.RWMutex
}

// Logger interface for optional logging support.
// Compatible with logging.Logger and slog.Logger.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// subscription holds subscription details for re-subscription on connect.
type subscription struct {
	topic   string
	qos     byte
	handler MessageHandler
}

// MessageHandler is the callback signature for received messages.
//
// Handlers are invoked on paho's delivery goroutine, one message at a time
// and in arrival order. They should hand work off rather than block.
//
// A returned error is logged and otherwise ignored.
type MessageHandler func(topic string, payload []byte) error

// New creates a disconnected Client for the given broker settings.
// An empty clientID is replaced with a generated one.
func New(cfg config.BrokerConfig, clientID string) *Client {
	if clientID == "" {
		clientID = NewClientID(cfg.ClientIDPrefix)
	}
	return &Client{
		cfg:           cfg,
		clientID:      clientID,
		subscriptions: make(map[string]subscription),
	}
}

// Connect opens the connection to the broker.
//
// It blocks until the broker acknowledges the connection, the connect
// timeout elapses or ctx is cancelled. On success every recorded
// subscription is applied by the on-connect handler.
//
// Returns:
//   - error: wrapped ErrConnectionFailed on failure; the client stays disconnected
func (c *Client) Connect(ctx context.Context) error {
	broker := brokerURL(c.cfg)
	opts := buildClientOptions(c.cfg, c.clientID)

	opts.SetOnConnectHandler(func(_ pahomqtt.Client) {
		c.handleConnect()
	})

	opts.SetConnectionLostHandler(func(_ pahomqtt.Client, err error) {
		c.handleDisconnect(err)
	})

	cl := pahomqtt.NewClient(opts)

	c.clMu.Lock()
	old := c.client
	c.client = cl
	c.options = opts
	c.clMu.Unlock()

	if old != nil {
		old.Disconnect(0)
	}

	token := cl.Connect()
	select {
	case <-token.Done():
	case <-ctx.Done():
		cl.Disconnect(0)
		return fmt.Errorf("%w: %s: %w", ErrConnectionFailed, broker, ctx.Err())
	case <-time.After(defaultConnectTimeout + time.Second):
		cl.Disconnect(0)
		return fmt.Errorf("%w: %s: timeout after %v", ErrConnectionFailed, broker, defaultConnectTimeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrConnectionFailed, broker, err)
	}

	// The on-connect handler runs asynchronously; mark connected here so
	// IsConnected is accurate as soon as Connect returns.
	c.setConnected(true)

	return nil
}

// handleConnect is called by paho when the connection is established.
func (c *Client) handleConnect() {
	c.setConnected(true)

	c.restoreSubscriptions()

	c.callbackMu.RLock()
	callback := c.onConnect
	c.callbackMu.RUnlock()
	if callback != nil {
		callback()
	}
}

// handleDisconnect is called by paho when the connection is lost.
func (c *Client) handleDisconnect(err error) {
	c.setConnected(false)

	c.callbackMu.RLock()
	callback := c.onDisconnect
	c.callbackMu.RUnlock()
	if callback != nil {
		callback(err)
	}
}

// restoreSubscriptions applies every recorded subscription.
// Subscribe acknowledgements are checked off the callback goroutine.
func (c *Client) restoreSubscriptions() {
	cl := c.pahoClient()
	if cl == nil {
		return
	}

	c.subMu.RLock()
	defer c.subMu.RUnlock()

	for _, sub := range c.subscriptions {
		token := cl.Subscribe(sub.topic, sub.qos, c.wrapHandler(sub.handler))
		go c.watchToken(token, "subscribe", sub.topic)
	}
}

// watchToken waits for an acknowledgement and logs a failure at debug level.
func (c *Client) watchToken(token pahomqtt.Token, op, topic string) {
	if !token.WaitTimeout(defaultTokenTimeout) {
		if logger := c.getLogger(); logger != nil {
			logger.Debug("MQTT acknowledgement not received", "op", op, "topic", topic)
		}
		return
	}
	if err := token.Error(); err != nil {
		if logger := c.getLogger(); logger != nil {
			logger.Debug("MQTT operation failed", "op", op, "topic", topic, "error", err)
		}
	}
}

// Close disconnects from the broker. It is safe to call on a client that
// never connected and safe to call more than once.
func (c *Client) Close() error {
	c.clMu.Lock()
	cl := c.client
	c.client = nil
	c.clMu.Unlock()

	if cl == nil {
		return nil
	}

	cl.Disconnect(defaultDisconnectQuiesce)
	c.setConnected(false)

	return nil
}

// IsConnected returns the current connection state.
func (c *Client) IsConnected() bool {
	cl := c.pahoClient()
	if cl == nil {
		return false
	}
	c.connMu.RLock()
	defer c.connMu.RUnlock()
	return c.connected && cl.IsConnected()
}

func (c *Client) setConnected(v bool) {
	c.connMu.Lock()
	c.connected = v
	c.connMu.Unlock()
}

func (c *Client) pahoClient() pahomqtt.Client {
	c.clMu.RLock()
	defer c.clMu.RUnlock()
	return c.client
}

// SetOnConnect sets a callback invoked after each successful connect.
func (c *Client) SetOnConnect(callback func()) {
	c.callbackMu.Lock()
	c.onConnect = callback
	c.callbackMu.Unlock()
}

// SetOnDisconnect sets a callback invoked when the connection is lost
// unexpectedly. It is not called for Close.
func (c *Client) SetOnDisconnect(callback func(err error)) {
	c.callbackMu.Lock()
	c.onDisconnect = callback
	c.callbackMu.Unlock()
}

// SetLogger sets a logger for handler errors, panics and failed
// acknowledgements. If not set, they are silently ignored.
func (c *Client) SetLogger(logger Logger) {
	c.loggerMu.Lock()
	c.logger = logger
	c.loggerMu.Unlock()
}

func (c *Client) getLogger() Logger {
	c.loggerMu.RLock()
	defer c.loggerMu.RUnlock()
	return c.logger
}

// wrapHandler wraps a MessageHandler with panic recovery and optional logging.
func (c *Client) wrapHandler(handler MessageHandler) pahomqtt.MessageHandler {
	return func(_ pahomqtt.Client, msg pahomqtt.Message) {
		defer func() {
			if r := recover(); r != nil {
				if logger := c.getLogger(); logger != nil {
					logger.Error("MQTT handler panic recovered",
						"topic", msg.Topic(),
						"panic", r,
					)
				}
			}
		}()

		if err := handler(msg.Topic(), msg.Payload()); err != nil {
			if logger := c.getLogger(); logger != nil {
				logger.Warn("MQTT handler returned error",
					"topic", msg.Topic(),
					"error", err,
				)
			}
		}
	}
}
