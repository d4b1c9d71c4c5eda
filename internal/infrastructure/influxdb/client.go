package influxdb

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"

	"github.com/nerrad567/duuxlink/internal/infrastructure/config"
)

const (
	connectTimeout = 10 * time.Second
	pingTimeout    = 5 * time.Second

	defaultBatchSize     = 100
	defaultFlushInterval = 10 // seconds
)

// Client writes session telemetry to InfluxDB v2. It satisfies
// session.Telemetry and is safe for concurrent use.
//
// Only connection events and counters are recorded. Device state values
// never leave the process through this client.
type Client struct {
	client   influxdb2.Client
	writeAPI api.WriteAPI

	// open is cleared by Close; writes after that are dropped.
	open atomic.Bool

	// drained is closed once the write error channel has been emptied.
	drained chan struct{}
}

// Connect pings the server and returns a client with a batching,
// non-blocking write API for cfg.Org and cfg.Bucket.
//
// onError receives asynchronous write failures; with a nil onError they are
// left to the library's own logging. Returns ErrDisabled when cfg.Enabled is
// false and a wrapped ErrConnectionFailed when the server does not answer.
func Connect(ctx context.Context, cfg config.InfluxDBConfig, onError func(error)) (*Client, error) {
	if !cfg.Enabled {
		return nil, ErrDisabled
	}

	client := influxdb2.NewClientWithOptions(cfg.URL, cfg.Token, writeOptions(cfg))

	pingCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()
	healthy, err := client.Ping(pingCtx)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("%w: %s: %w", ErrConnectionFailed, cfg.URL, err)
	}
	if !healthy {
		client.Close()
		return nil, fmt.Errorf("%w: %s: server not ready", ErrConnectionFailed, cfg.URL)
	}

	c := &Client{
		client:   client,
		writeAPI: client.WriteAPI(cfg.Org, cfg.Bucket),
		drained:  make(chan struct{}),
	}
	c.open.Store(true)

	if onError == nil {
		close(c.drained)
		return c, nil
	}
	// Asking for Errors() obliges us to drain it until the client closes.
	go func(errs <-chan error) {
		defer close(c.drained)
		for err := range errs {
			onError(err)
		}
	}(c.writeAPI.Errors())

	return c, nil
}

// writeOptions maps the config section onto library options. Batch size
// and flush interval fall back to their defaults when not positive.
func writeOptions(cfg config.InfluxDBConfig) *influxdb2.Options {
	batch := cfg.BatchSize
	if batch <= 0 {
		batch = defaultBatchSize
	}
	flush := cfg.FlushInterval
	if flush <= 0 {
		flush = defaultFlushInterval
	}
	// #nosec G115 -- both values are positive here
	return influxdb2.DefaultOptions().
		SetBatchSize(uint(batch)).
		SetFlushInterval(uint(flush) * uint(time.Second/time.Millisecond))
}

// HealthCheck pings the server. It fails fast once the client is closed.
func (c *Client) HealthCheck(ctx context.Context) error {
	if !c.open.Load() {
		return ErrNotConnected
	}

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	healthy, err := c.client.Ping(pingCtx)
	if err != nil {
		return fmt.Errorf("influxdb ping: %w", err)
	}
	if !healthy {
		return fmt.Errorf("influxdb ping: server not ready")
	}
	return nil
}

// Close flushes buffered points and closes the connection. Closing a nil
// or already closed client does nothing.
func (c *Client) Close() error {
	if c == nil || !c.open.CompareAndSwap(true, false) {
		return nil
	}
	c.writeAPI.Flush()
	c.client.Close()
	select {
	case <-c.drained:
	case <-time.After(time.Second):
	}
	return nil
}
