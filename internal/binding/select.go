package binding

import (
	"fmt"
	"sync"

	"github.com/nerrad567/duuxlink/internal/payload"
	"github.com/nerrad567/duuxlink/internal/profile"
)

// Select is an enumerated entry. It stores the raw integer the device
// reports and resolves the label on read.
type Select struct {
	meta Meta
	spec profile.SelectSpec
	cmd  Commander

	mu  sync.RWMutex
	raw *int
}

// NewSelect creates a select entity.
func NewSelect(spec profile.SelectSpec, dev DeviceInfo, cmd Commander) *Select {
	meta := newMeta(PlatformSelect, spec.Key, spec.Name, dev)
	meta.StateKey = spec.StateKey
	meta.Icon = spec.Icon
	return &Select{meta: meta, spec: spec, cmd: cmd}
}

// Meta implements Entity.
func (s *Select) Meta() Meta { return s.meta }

// Options returns the labels in profile order.
func (s *Select) Options() []string { return s.spec.Labels() }

// HandleSnapshot implements dispatch.Listener.
func (s *Select) HandleSnapshot(snap payload.Snapshot) {
	v, ok := snap.Int(s.spec.StateKey)
	if !ok {
		return
	}
	s.mu.Lock()
	s.raw = &v
	s.mu.Unlock()
}

// Raw returns the last reported integer; ok is false until the first report.
func (s *Select) Raw() (int, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.raw == nil {
		return 0, false
	}
	return *s.raw, true
}

// Current returns the label for the last reported value. ok is false when
// nothing was reported yet or no label has that value.
func (s *Select) Current() (string, bool) {
	v, ok := s.Raw()
	if !ok {
		return "", false
	}
	return s.spec.LabelOf(v)
}

// State implements Entity.
func (s *Select) State() map[string]any {
	state := map[string]any{"option": nil, "options": s.Options()}
	if label, ok := s.Current(); ok {
		state["option"] = label
	}
	if v, ok := s.Raw(); ok {
		state["raw"] = v
	}
	return state
}

// SelectOption publishes the entry command with the value behind label.
func (s *Select) SelectOption(label string) error {
	v, ok := s.spec.ValueOf(label)
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownOption, label)
	}
	return s.cmd.Publish(profile.FormatCommand(s.spec.Command, v))
}
