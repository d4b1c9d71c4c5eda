package binding

import (
	"sync"

	"github.com/nerrad567/duuxlink/internal/payload"
	"github.com/nerrad567/duuxlink/internal/profile"
)

// Sensor is a read-only numeric entry.
type Sensor struct {
	meta Meta
	spec profile.SensorSpec

	mu    sync.RWMutex
	value *float64
}

// NewSensor creates a sensor entity.
func NewSensor(spec profile.SensorSpec, dev DeviceInfo) *Sensor {
	meta := newMeta(PlatformSensor, spec.Key, spec.Name, dev)
	meta.StateKey = spec.StateKey
	meta.Icon = spec.Icon
	meta.DeviceClass = spec.DeviceClass
	meta.StateClass = spec.StateClass
	meta.Unit = spec.Unit
	if spec.Multiplier == 0 {
		spec.Multiplier = 1
	}
	return &Sensor{meta: meta, spec: spec}
}

// Meta implements Entity.
func (s *Sensor) Meta() Meta { return s.meta }

// HandleSnapshot implements dispatch.Listener.
func (s *Sensor) HandleSnapshot(snap payload.Snapshot) {
	v, ok := snap.Number(s.spec.StateKey)
	if !ok {
		return
	}
	scaled := v * s.spec.Multiplier
	s.mu.Lock()
	s.value = &scaled
	s.mu.Unlock()
}

// Value returns the scaled value; ok is false until the first report.
func (s *Sensor) Value() (float64, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.value == nil {
		return 0, false
	}
	return *s.value, true
}

// State implements Entity.
func (s *Sensor) State() map[string]any {
	v, ok := s.Value()
	if !ok {
		return map[string]any{"value": nil}
	}
	return map[string]any{"value": v}
}

// BinarySensor is a read-only on/off entry. It is on only when the
// attribute equals 1.
type BinarySensor struct {
	meta Meta
	spec profile.BinarySensorSpec

	mu sync.RWMutex
	on bool
}

// NewBinarySensor creates a binary sensor entity.
func NewBinarySensor(spec profile.BinarySensorSpec, dev DeviceInfo) *BinarySensor {
	meta := newMeta(PlatformBinarySensor, spec.Key, spec.Name, dev)
	meta.StateKey = spec.StateKey
	meta.Icon = spec.Icon
	meta.DeviceClass = spec.DeviceClass
	return &BinarySensor{meta: meta, spec: spec}
}

// Meta implements Entity.
func (b *BinarySensor) Meta() Meta { return b.meta }

// HandleSnapshot implements dispatch.Listener.
func (b *BinarySensor) HandleSnapshot(snap payload.Snapshot) {
	v, ok := snap.Number(b.spec.StateKey)
	if !ok {
		return
	}
	b.mu.Lock()
	b.on = v == 1
	b.mu.Unlock()
}

// IsOn reports the last known state.
func (b *BinarySensor) IsOn() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.on
}

// State implements Entity.
func (b *BinarySensor) State() map[string]any {
	return map[string]any{"is_on": b.IsOn()}
}
