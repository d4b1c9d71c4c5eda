package device

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/nerrad567/duuxlink/internal/infrastructure/config"
)

// Logger defines the logging interface used by the Registry.
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

// Registry wraps a Repository with an in-memory cache keyed by device id.
//
// The cache is populated by RefreshCache and kept in sync by the write
// methods. Entries are plain values, so callers always get their own copy.
//
// All public methods are thread-safe.
type Registry struct {
	repo    Repository
	cache   map[string]Entry
	cacheMu sync.RWMutex
	logger  Logger
}

// NewRegistry creates a registry over repo.
func NewRegistry(repo Repository) *Registry {
	return &Registry{
		repo:   repo,
		cache:  make(map[string]Entry),
		logger: noopLogger{},
	}
}

// SetLogger sets the logger for the registry.
func (r *Registry) SetLogger(logger Logger) {
	r.logger = logger
}

// RefreshCache reloads every entry from the repository.
func (r *Registry) RefreshCache(ctx context.Context) error {
	entries, err := r.repo.List(ctx)
	if err != nil {
		return fmt.Errorf("loading device entries: %w", err)
	}

	r.cacheMu.Lock()
	r.cache = make(map[string]Entry, len(entries))
	for _, e := range entries {
		r.cache[e.Config.DeviceID] = e
	}
	r.cacheMu.Unlock()

	r.logger.Info("device cache refreshed", "count", len(entries))
	return nil
}

// Get returns the entry for a device id, in any letter case.
func (r *Registry) Get(ctx context.Context, deviceID string) (*Entry, error) {
	id := NormalizeID(deviceID)

	r.cacheMu.RLock()
	cached, ok := r.cache[id]
	r.cacheMu.RUnlock()
	if ok {
		return &cached, nil
	}

	e, err := r.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	r.cacheMu.Lock()
	r.cache[id] = *e
	r.cacheMu.Unlock()

	return e, nil
}

// List returns every cached entry ordered by name then device id.
func (r *Registry) List() []Entry {
	r.cacheMu.RLock()
	entries := make([]Entry, 0, len(r.cache))
	for _, e := range r.cache {
		entries = append(entries, e)
	}
	r.cacheMu.RUnlock()

	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Config.Name != entries[j].Config.Name {
			return entries[i].Config.Name < entries[j].Config.Name
		}
		return entries[i].Config.DeviceID < entries[j].Config.DeviceID
	})
	return entries
}

// Create normalises and validates c, then stores a new entry.
// Returns ErrInvalidConfig or ErrEntryExists.
func (r *Registry) Create(ctx context.Context, c Config, source Source) (*Entry, error) {
	e := NewEntry(c, source)
	if err := ValidateConfig(e.Config); err != nil {
		return nil, err
	}

	if err := r.repo.Create(ctx, e); err != nil {
		return nil, err
	}

	r.cacheMu.Lock()
	r.cache[e.Config.DeviceID] = *e
	r.cacheMu.Unlock()

	r.logger.Info("device entry created", "device_id", e.Config.DeviceID, "model", e.Config.Model, "source", e.Source)
	return e, nil
}

// Update replaces the config of an existing entry.
func (r *Registry) Update(ctx context.Context, c Config) (*Entry, error) {
	c = c.Normalize()
	if err := ValidateConfig(c); err != nil {
		return nil, err
	}

	existing, err := r.Get(ctx, c.DeviceID)
	if err != nil {
		return nil, err
	}
	existing.Config = c
	existing.Version = VersionCurrent

	if err := r.repo.Update(ctx, existing); err != nil {
		return nil, err
	}

	r.cacheMu.Lock()
	r.cache[c.DeviceID] = *existing
	r.cacheMu.Unlock()

	r.logger.Info("device entry updated", "device_id", c.DeviceID)
	return existing, nil
}

// Delete removes the entry for a device id.
func (r *Registry) Delete(ctx context.Context, deviceID string) error {
	id := NormalizeID(deviceID)
	if err := r.repo.Delete(ctx, id); err != nil {
		return err
	}

	r.cacheMu.Lock()
	delete(r.cache, id)
	r.cacheMu.Unlock()

	r.logger.Info("device entry deleted", "device_id", id)
	return nil
}

// SyncConfigFile makes sure every device listed in the config file has an
// entry. Missing entries are created; entries whose config differs are
// updated. Entries not in the file are left alone.
func (r *Registry) SyncConfigFile(ctx context.Context, devices []config.DeviceConfig) (created, updated int, err error) {
	for _, d := range devices {
		c := FromConfigFile(d).Normalize()

		existing, getErr := r.Get(ctx, c.DeviceID)
		switch {
		case getErr == nil:
			if existing.Config == c {
				continue
			}
			if _, err := r.Update(ctx, c); err != nil {
				return created, updated, fmt.Errorf("updating %s: %w", c.DeviceID, err)
			}
			updated++
		case errors.Is(getErr, ErrEntryNotFound):
			if _, err := r.Create(ctx, c, SourceConfig); err != nil {
				return created, updated, fmt.Errorf("creating %s: %w", c.DeviceID, err)
			}
			created++
		default:
			return created, updated, getErr
		}
	}
	return created, updated, nil
}

// Count returns the number of cached entries.
func (r *Registry) Count() int {
	r.cacheMu.RLock()
	defer r.cacheMu.RUnlock()
	return len(r.cache)
}
