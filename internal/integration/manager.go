package integration

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/nerrad567/duuxlink/internal/binding"
	"github.com/nerrad567/duuxlink/internal/device"
	"github.com/nerrad567/duuxlink/internal/dispatch"
	"github.com/nerrad567/duuxlink/internal/infrastructure/config"
	"github.com/nerrad567/duuxlink/internal/infrastructure/mqtt"
	"github.com/nerrad567/duuxlink/internal/profile"
	"github.com/nerrad567/duuxlink/internal/session"
)

// Logger is the logging interface used by Manager and passed on to the
// sessions it creates.
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

// ClientFactory creates the transport for one device session.
type ClientFactory func(cfg config.BrokerConfig, clientID string) session.Client

// MQTTClientFactory creates paho-backed clients with generated client ids.
func MQTTClientFactory(cfg config.BrokerConfig, clientID string) session.Client {
	return mqtt.New(cfg, clientID)
}

// Hook is told about devices as they come and go. The API's live update
// hub implements it to attach a listener after the entity bindings.
type Hook interface {
	DeviceSetUp(d *Device)
	DeviceUnloaded(deviceID string)
}

// Device is a set-up device: its entry, profile, session and entities.
type Device struct {
	Entry    device.Entry
	Profile  *profile.Profile
	Session  *session.Session
	Entities []binding.Entity
}

// ID returns the normalised device id.
func (d *Device) ID() string { return d.Entry.DeviceID() }

// Entity returns the entity with the given key.
func (d *Device) Entity(key string) (binding.Entity, error) {
	return binding.Find(d.Entities, key)
}

// Manager owns the live sessions.
//
// Thread Safety: all methods are safe for concurrent use.
type Manager struct {
	profiles  *profile.Registry
	broker    config.BrokerConfig
	scheduler dispatch.Scheduler
	newClient ClientFactory

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.RWMutex
	devices map[string]*Device
	closed  bool

	logger    Logger
	telemetry session.Telemetry
	hooks     []Hook
}

// NewManager creates a Manager. Listener callbacks for every device run on
// scheduler.
func NewManager(profiles *profile.Registry, broker config.BrokerConfig, scheduler dispatch.Scheduler, newClient ClientFactory) *Manager {
	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		profiles:  profiles,
		broker:    broker,
		scheduler: scheduler,
		newClient: newClient,
		ctx:       ctx,
		cancel:    cancel,
		devices:   make(map[string]*Device),
		logger:    noopLogger{},
	}
}

// SetLogger sets the logger. Call before Setup.
func (m *Manager) SetLogger(logger Logger) {
	m.logger = logger
}

// SetTelemetry sets the telemetry sink given to new sessions. Call before
// Setup.
func (m *Manager) SetTelemetry(t session.Telemetry) {
	m.telemetry = t
}

// AddHook registers h for device setup and unload events. Call before
// Setup.
func (m *Manager) AddHook(h Hook) {
	m.hooks = append(m.hooks, h)
}

// Setup creates the session and bindings for entry and starts connecting
// in the background. ctx only bounds the setup itself; the connection
// attempt is tied to the Manager's lifetime.
//
// Returns ErrUnknownModel when the model has no valid profile and
// ErrAlreadySetUp when the device already has a live session.
func (m *Manager) Setup(ctx context.Context, entry device.Entry) (*Device, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	entry.Config = entry.Config.Normalize()
	id := entry.DeviceID()

	p, err := m.lookupProfile(entry.Config.Model)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil, ErrClosed
	}
	if _, exists := m.devices[id]; exists {
		m.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrAlreadySetUp, id)
	}

	client := m.newClient(entry.Config.Broker(m.broker), "")
	if lc, ok := client.(interface{ SetLogger(mqtt.Logger) }); ok {
		lc.SetLogger(m.logger)
	}

	disp := dispatch.New(m.scheduler)
	disp.SetLogger(m.logger)

	sess := session.New(id, client, disp)
	sess.SetLogger(m.logger)
	if m.telemetry != nil {
		sess.SetTelemetry(m.telemetry)
	}

	info := binding.NewDeviceInfo(id, entry.Config.Name, p.Name)
	entities := binding.Build(p, info, sess)
	for _, e := range entities {
		disp.Register(e)
	}

	d := &Device{
		Entry:    entry,
		Profile:  p,
		Session:  sess,
		Entities: entities,
	}
	m.devices[id] = d
	m.mu.Unlock()

	for _, h := range m.hooks {
		h.DeviceSetUp(d)
	}

	m.logger.Info("device set up", "device_id", id, "model", p.Model, "entities", len(entities))

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		// Failures are logged by the session.
		_ = sess.Connect(m.ctx) //nolint:errcheck // no retry
	}()

	return d, nil
}

// SetupAll sets up every entry, continuing past failures. The returned
// error joins every failure.
func (m *Manager) SetupAll(ctx context.Context, entries []device.Entry) error {
	var errs []error
	for _, e := range entries {
		if _, err := m.Setup(ctx, e); err != nil {
			m.logger.Error("device setup failed", "device_id", e.DeviceID(), "error", err)
			errs = append(errs, fmt.Errorf("%s: %w", e.DeviceID(), err))
		}
	}
	return errors.Join(errs...)
}

func (m *Manager) lookupProfile(model string) (*profile.Profile, error) {
	if p, ok := m.profiles.Get(model); ok {
		return p, nil
	}
	if reason, rejected := m.profiles.Rejected()[model]; rejected {
		return nil, fmt.Errorf("%w: %q: %w", ErrUnknownModel, model, reason)
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownModel, model)
}

// Unload closes the device's session and forgets it.
func (m *Manager) Unload(deviceID string) error {
	id := device.NormalizeID(deviceID)

	m.mu.Lock()
	d, ok := m.devices[id]
	if ok {
		delete(m.devices, id)
	}
	m.mu.Unlock()

	if !ok {
		return fmt.Errorf("%w: %s", ErrNotSetUp, id)
	}

	for _, h := range m.hooks {
		h.DeviceUnloaded(id)
	}

	err := d.Session.Close()
	m.logger.Info("device unloaded", "device_id", id)
	return err
}

// Get returns the set-up device with the given id, in any letter case.
func (m *Manager) Get(deviceID string) (*Device, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	d, ok := m.devices[device.NormalizeID(deviceID)]
	return d, ok
}

// Devices returns every set-up device ordered by id.
func (m *Manager) Devices() []*Device {
	m.mu.RLock()
	out := make([]*Device, 0, len(m.devices))
	for _, d := range m.devices {
		out = append(out, d)
	}
	m.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ID() < out[j].ID() })
	return out
}

// Close aborts pending connection attempts, unloads every device and
// waits for background work to finish.
func (m *Manager) Close() error {
	m.mu.Lock()
	m.closed = true
	ids := make([]string, 0, len(m.devices))
	for id := range m.devices {
		ids = append(ids, id)
	}
	m.mu.Unlock()

	m.cancel()

	var errs []error
	for _, id := range ids {
		if err := m.Unload(id); err != nil && !errors.Is(err, ErrNotSetUp) {
			errs = append(errs, err)
		}
	}
	m.wg.Wait()
	return errors.Join(errs...)
}
