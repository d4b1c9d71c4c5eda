package profile

import (
	"strconv"
	"strings"
)

// Feature is a fan capability tag.
type Feature string

// Fan features.
const (
	FeatureTurnOn    Feature = "turn_on"
	FeatureTurnOff   Feature = "turn_off"
	FeatureSetSpeed  Feature = "set_speed"
	FeatureOscillate Feature = "oscillate"
	FeatureDirection Feature = "direction"
)

// AllFeatures returns every recognised fan feature.
func AllFeatures() []Feature {
	return []Feature{
		FeatureTurnOn,
		FeatureTurnOff,
		FeatureSetSpeed,
		FeatureOscillate,
		FeatureDirection,
	}
}

// Fan attribute keys used when the profile leaves them out.
const (
	DefaultPowerKey = "power"
	DefaultSpeedKey = "speed"
)

// Number defaults applied when the profile leaves them out.
const (
	DefaultNumberMin  = 1.0
	DefaultNumberMax  = 100.0
	DefaultNumberStep = 1.0
)

// valuePlaceholder in a command template is replaced by the value.
const valuePlaceholder = "{value}"

// Profile describes one device model. Profiles are immutable after load.
type Profile struct {
	// Model is the registry key, e.g. "whisper_flex_2".
	Model string
	// Name is the display name, e.g. "Whisper Flex 2".
	Name string

	// Fan is nil for models without a fan capability.
	Fan *FanSpec

	// Entry groups keep the order they were declared in.
	Switches      []SwitchSpec
	Sensors       []SensorSpec
	Numbers       []NumberSpec
	Selects       []SelectSpec
	BinarySensors []BinarySensorSpec
}

// StateKeys returns every attribute key the profile reads, without duplicates.
func (p *Profile) StateKeys() []string {
	seen := make(map[string]struct{})
	var keys []string
	add := func(k string) {
		if _, ok := seen[k]; ok {
			return
		}
		seen[k] = struct{}{}
		keys = append(keys, k)
	}

	if p.Fan != nil {
		add(p.Fan.PowerKey)
		add(p.Fan.SpeedKey)
		if p.Fan.Supports(FeatureOscillate) {
			add(AttrSwing)
		}
		if p.Fan.Supports(FeatureDirection) {
			add(AttrTilt)
		}
	}
	for _, s := range p.Switches {
		add(s.StateKey)
	}
	for _, s := range p.Sensors {
		add(s.StateKey)
	}
	for _, n := range p.Numbers {
		add(n.StateKey)
	}
	for _, s := range p.Selects {
		add(s.StateKey)
	}
	for _, b := range p.BinarySensors {
		add(b.StateKey)
	}
	return keys
}

// Attribute keys the fan binding reads for oscillation and direction.
const (
	AttrSwing = "swing"
	AttrTilt  = "tilt"
)

// FanSpec is the built-in fan capability.
type FanSpec struct {
	Features []Feature
	MaxSpeed int
	PowerKey string
	SpeedKey string
}

// Supports reports whether f is among the advertised features.
func (f *FanSpec) Supports(feature Feature) bool {
	for _, have := range f.Features {
		if have == feature {
			return true
		}
	}
	return false
}

// SwitchSpec is an on/off entry with fixed command strings.
type SwitchSpec struct {
	Key            string
	Name           string
	CommandOn      string
	CommandOff     string
	StateKey       string
	Icon           string
	EntityCategory string
}

// SensorSpec is a read-only numeric entry.
type SensorSpec struct {
	Key         string
	Name        string
	StateKey    string
	DeviceClass string
	StateClass  string
	Unit        string
	Icon        string
	// Multiplier scales the raw value; 1 when unset.
	Multiplier float64
}

// NumberSpec is a bounded numeric entry with a command template.
type NumberSpec struct {
	Key      string
	Name     string
	Command  string
	StateKey string
	Min      float64
	Max      float64
	Step     float64
	Unit     string
	Icon     string
}

// SelectSpec is an enumerated entry with a command template.
type SelectSpec struct {
	Key      string
	Name     string
	Command  string
	StateKey string
	Options  []Option
	Icon     string
}

// Option is one label/value pair of a select entry.
type Option struct {
	Label string
	Value int
}

// Labels returns the option labels in declaration order.
func (s *SelectSpec) Labels() []string {
	labels := make([]string, len(s.Options))
	for i, o := range s.Options {
		labels[i] = o.Label
	}
	return labels
}

// ValueOf returns the integer value for label.
func (s *SelectSpec) ValueOf(label string) (int, bool) {
	for _, o := range s.Options {
		if o.Label == label {
			return o.Value, true
		}
	}
	return 0, false
}

// LabelOf returns the first label whose value is v.
func (s *SelectSpec) LabelOf(v int) (string, bool) {
	for _, o := range s.Options {
		if o.Value == v {
			return o.Label, true
		}
	}
	return "", false
}

// BinarySensorSpec is a read-only on/off entry.
type BinarySensorSpec struct {
	Key         string
	Name        string
	StateKey    string
	DeviceClass string
	Icon        string
}

// FormatCommand renders a command template with an integer value.
//
// "{value}" in the template is replaced; otherwise the value is appended
// after a space: FormatCommand("tune set timer", 3) == "tune set timer 3".
func FormatCommand(template string, value int) string {
	v := strconv.Itoa(value)
	if strings.Contains(template, valuePlaceholder) {
		return strings.ReplaceAll(template, valuePlaceholder, v)
	}
	return template + " " + v
}
