package binding

import (
	"fmt"
	"math"
	"sync"

	"github.com/nerrad567/duuxlink/internal/payload"
	"github.com/nerrad567/duuxlink/internal/profile"
)

// Number is a bounded numeric entry.
type Number struct {
	meta Meta
	spec profile.NumberSpec
	cmd  Commander

	mu    sync.RWMutex
	value float64
}

// NewNumber creates a number entity. Its value starts at the entry minimum.
func NewNumber(spec profile.NumberSpec, dev DeviceInfo, cmd Commander) *Number {
	meta := newMeta(PlatformNumber, spec.Key, spec.Name, dev)
	meta.StateKey = spec.StateKey
	meta.Icon = spec.Icon
	meta.Unit = spec.Unit
	return &Number{meta: meta, spec: spec, cmd: cmd, value: spec.Min}
}

// Meta implements Entity.
func (n *Number) Meta() Meta { return n.meta }

// Bounds returns min, max and step.
func (n *Number) Bounds() (lo, hi, step float64) {
	return n.spec.Min, n.spec.Max, n.spec.Step
}

// HandleSnapshot implements dispatch.Listener.
func (n *Number) HandleSnapshot(snap payload.Snapshot) {
	v, ok := snap.Number(n.spec.StateKey)
	if !ok {
		return
	}
	n.mu.Lock()
	n.value = v
	n.mu.Unlock()
}

// Value returns the last known value.
func (n *Number) Value() float64 {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.value
}

// State implements Entity.
func (n *Number) State() map[string]any {
	return map[string]any{
		"value": n.Value(),
		"min":   n.spec.Min,
		"max":   n.spec.Max,
		"step":  n.spec.Step,
	}
}

// SetValue rounds v half to even and publishes the entry command with it.
func (n *Number) SetValue(v float64) error {
	if math.IsNaN(v) || v < n.spec.Min || v > n.spec.Max {
		return fmt.Errorf("%w: %v not in [%v, %v]", ErrOutOfRange, v, n.spec.Min, n.spec.Max)
	}
	return n.cmd.Publish(profile.FormatCommand(n.spec.Command, int(math.RoundToEven(v))))
}
