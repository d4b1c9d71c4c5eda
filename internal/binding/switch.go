package binding

import (
	"sync"

	"github.com/nerrad567/duuxlink/internal/payload"
	"github.com/nerrad567/duuxlink/internal/profile"
)

// Switch is an on/off entry with fixed on and off commands.
type Switch struct {
	meta Meta
	spec profile.SwitchSpec
	cmd  Commander

	mu sync.RWMutex
	on bool
}

// NewSwitch creates a switch entity.
func NewSwitch(spec profile.SwitchSpec, dev DeviceInfo, cmd Commander) *Switch {
	meta := newMeta(PlatformSwitch, spec.Key, spec.Name, dev)
	meta.StateKey = spec.StateKey
	meta.Icon = spec.Icon
	meta.EntityCategory = spec.EntityCategory
	return &Switch{meta: meta, spec: spec, cmd: cmd}
}

// Meta implements Entity.
func (s *Switch) Meta() Meta { return s.meta }

// HandleSnapshot implements dispatch.Listener. Any positive value is on.
func (s *Switch) HandleSnapshot(snap payload.Snapshot) {
	v, ok := snap.Number(s.spec.StateKey)
	if !ok {
		return
	}
	s.mu.Lock()
	s.on = v > 0
	s.mu.Unlock()
}

// IsOn reports the last known state.
func (s *Switch) IsOn() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.on
}

// State implements Entity.
func (s *Switch) State() map[string]any {
	return map[string]any{"is_on": s.IsOn()}
}

// TurnOn publishes the entry's on command.
func (s *Switch) TurnOn() error {
	return s.cmd.Publish(s.spec.CommandOn)
}

// TurnOff publishes the entry's off command.
func (s *Switch) TurnOff() error {
	return s.cmd.Publish(s.spec.CommandOff)
}
