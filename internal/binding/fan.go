package binding

import (
	"fmt"
	"math"
	"sync"

	"github.com/nerrad567/duuxlink/internal/payload"
	"github.com/nerrad567/duuxlink/internal/profile"
)

// Direction is the fan's airflow direction, derived from the tilt attribute.
type Direction string

// Fan directions.
const (
	DirectionForward Direction = "forward"
	DirectionReverse Direction = "reverse"
)

// Fan is the built-in fan capability of a profile.
type Fan struct {
	meta Meta
	spec profile.FanSpec
	cmd  Commander

	mu          sync.RWMutex
	on          bool
	speed       int
	oscillating bool
	direction   Direction
}

// NewFan creates the fan entity for a device.
func NewFan(spec profile.FanSpec, dev DeviceInfo, cmd Commander) *Fan {
	return &Fan{
		meta: Meta{
			Key:      fanKey,
			Platform: PlatformFan,
			UniqueID: UniqueID(dev.ID, fanKey),
			EntityID: EntityID(PlatformFan, dev.Name),
			Name:     dev.Name,
			StateKey: spec.PowerKey,
			Device:   dev,
		},
		spec:      spec,
		cmd:       cmd,
		direction: DirectionForward,
	}
}

// Meta implements Entity.
func (f *Fan) Meta() Meta { return f.meta }

// Features returns the advertised fan features.
func (f *Fan) Features() []profile.Feature {
	out := make([]profile.Feature, len(f.spec.Features))
	copy(out, f.spec.Features)
	return out
}

// MaxSpeed returns the top of the native speed range.
func (f *Fan) MaxSpeed() int { return f.spec.MaxSpeed }

// HandleSnapshot implements dispatch.Listener.
func (f *Fan) HandleSnapshot(s payload.Snapshot) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if v, ok := s.Number(f.spec.PowerKey); ok {
		f.on = v == 1
	}
	if v, ok := s.Int(f.spec.SpeedKey); ok {
		f.speed = v
	}
	if f.spec.Supports(profile.FeatureOscillate) {
		if v, ok := s.Number(profile.AttrSwing); ok {
			f.oscillating = v == 1
		}
	}
	if f.spec.Supports(profile.FeatureDirection) {
		if v, ok := s.Number(profile.AttrTilt); ok {
			if v == 1 {
				f.direction = DirectionReverse
			} else {
				f.direction = DirectionForward
			}
		}
	}
}

// IsOn reports the last known power state.
func (f *Fan) IsOn() bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.on
}

// Speed returns the last known native speed.
func (f *Fan) Speed() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.speed
}

// Percentage returns the speed as a percentage of max_speed.
func (f *Fan) Percentage() int {
	return SpeedToPercentage(f.Speed(), f.spec.MaxSpeed)
}

// Oscillating reports the last known swing state.
func (f *Fan) Oscillating() bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.oscillating
}

// Direction returns the last known airflow direction.
func (f *Fan) Direction() Direction {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.direction
}

// State implements Entity.
func (f *Fan) State() map[string]any {
	f.mu.RLock()
	defer f.mu.RUnlock()

	state := map[string]any{
		"is_on":      f.on,
		"speed":      f.speed,
		"percentage": SpeedToPercentage(f.speed, f.spec.MaxSpeed),
	}
	if f.spec.Supports(profile.FeatureOscillate) {
		state["oscillating"] = f.oscillating
	}
	if f.spec.Supports(profile.FeatureDirection) {
		state["direction"] = string(f.direction)
	}
	return state
}

// TurnOn sends power on.
func (f *Fan) TurnOn() error {
	return f.set(f.spec.PowerKey, 1)
}

// TurnOff sends power off.
func (f *Fan) TurnOff() error {
	return f.set(f.spec.PowerKey, 0)
}

// SetPercentage sets the fan speed.
//
// 0 turns the fan off. Any other value is mapped onto 1..max_speed, with a
// power-on command sent first when the fan is currently off.
func (f *Fan) SetPercentage(pct int) error {
	if pct < 0 || pct > 100 {
		return fmt.Errorf("%w: percentage %d", ErrOutOfRange, pct)
	}
	if pct == 0 {
		return f.TurnOff()
	}
	if !f.IsOn() {
		if err := f.TurnOn(); err != nil {
			return err
		}
	}
	return f.set(f.spec.SpeedKey, PercentageToSpeed(pct, f.spec.MaxSpeed))
}

// Oscillate turns swing on or off.
func (f *Fan) Oscillate(on bool) error {
	if !f.spec.Supports(profile.FeatureOscillate) {
		return fmt.Errorf("%w: oscillate", ErrUnsupported)
	}
	return f.set(profile.AttrSwing, boolInt(on))
}

// SetDirection sets the airflow direction through the tilt attribute.
func (f *Fan) SetDirection(d Direction) error {
	if !f.spec.Supports(profile.FeatureDirection) {
		return fmt.Errorf("%w: direction", ErrUnsupported)
	}
	switch d {
	case DirectionForward, DirectionReverse:
	default:
		return fmt.Errorf("%w: direction %q", ErrOutOfRange, d)
	}
	return f.set(profile.AttrTilt, boolInt(d == DirectionReverse))
}

func (f *Fan) set(key string, value int) error {
	return f.cmd.Publish(fmt.Sprintf("tune set %s %d", key, value))
}

// PercentageToSpeed maps 1..100 onto 1..maxSpeed, rounding half to even.
func PercentageToSpeed(pct, maxSpeed int) int {
	speed := int(math.RoundToEven(float64(maxSpeed) * float64(pct) / 100))
	if speed < 1 {
		return 1
	}
	if speed > maxSpeed {
		return maxSpeed
	}
	return speed
}

// SpeedToPercentage maps a native speed back to a whole percentage.
func SpeedToPercentage(speed, maxSpeed int) int {
	if speed <= 0 || maxSpeed <= 0 {
		return 0
	}
	return speed * 100 / maxSpeed
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
