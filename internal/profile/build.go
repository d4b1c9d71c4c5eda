package profile

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// build validates node and converts it into a Profile.
func build(model string, node *yaml.Node) (*Profile, error) {
	if err := validate(node); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrInvalidProfile, model, err)
	}

	fields := mappingFields(node)
	p := &Profile{
		Model: model,
		Name:  str(fields["name"]),
	}

	if fan, ok := fields["fan"]; ok {
		p.Fan = buildFan(fan)
	}

	eachEntry(fields[groupSwitches], func(key string, f map[string]*yaml.Node) {
		p.Switches = append(p.Switches, SwitchSpec{
			Key:            key,
			Name:           str(f["name"]),
			CommandOn:      str(f["command_on"]),
			CommandOff:     str(f["command_off"]),
			StateKey:       str(f["state_key"]),
			Icon:           str(f["icon"]),
			EntityCategory: str(f["entity_category"]),
		})
	})

	eachEntry(fields[groupSensors], func(key string, f map[string]*yaml.Node) {
		p.Sensors = append(p.Sensors, SensorSpec{
			Key:         key,
			Name:        str(f["name"]),
			StateKey:    str(f["state_key"]),
			DeviceClass: str(f["device_class"]),
			StateClass:  str(f["state_class"]),
			Unit:        str(f["unit"]),
			Icon:        str(f["icon"]),
			Multiplier:  num(f["multiplier"], 1),
		})
	})

	eachEntry(fields[groupNumbers], func(key string, f map[string]*yaml.Node) {
		p.Numbers = append(p.Numbers, NumberSpec{
			Key:      key,
			Name:     str(f["name"]),
			Command:  str(f["command"]),
			StateKey: str(f["state_key"]),
			Min:      num(f["min"], DefaultNumberMin),
			Max:      num(f["max"], DefaultNumberMax),
			Step:     num(f["step"], DefaultNumberStep),
			Unit:     str(f["unit"]),
			Icon:     str(f["icon"]),
		})
	})

	eachEntry(fields[groupSelect], func(key string, f map[string]*yaml.Node) {
		p.Selects = append(p.Selects, SelectSpec{
			Key:      key,
			Name:     str(f["name"]),
			Command:  str(f["command"]),
			StateKey: str(f["state_key"]),
			Options:  options(f["options"]),
			Icon:     str(f["icon"]),
		})
	})

	eachEntry(fields[groupBinarySensors], func(key string, f map[string]*yaml.Node) {
		p.BinarySensors = append(p.BinarySensors, BinarySensorSpec{
			Key:         key,
			Name:        str(f["name"]),
			StateKey:    str(f["state_key"]),
			DeviceClass: str(f["device_class"]),
			Icon:        str(f["icon"]),
		})
	})

	return p, nil
}

func buildFan(node *yaml.Node) *FanSpec {
	f := mappingFields(node)
	spec := &FanSpec{
		PowerKey: DefaultPowerKey,
		SpeedKey: DefaultSpeedKey,
	}
	if n, ok := f["supported_features"]; ok {
		for _, item := range n.Content {
			spec.Features = append(spec.Features, Feature(item.Value))
		}
	}
	if n, ok := f["max_speed"]; ok {
		_ = n.Decode(&spec.MaxSpeed)
	}
	if n, ok := f["power_key"]; ok {
		spec.PowerKey = n.Value
	}
	if n, ok := f["speed_key"]; ok {
		spec.SpeedKey = n.Value
	}
	return spec
}

// eachEntry calls fn for every entry of a group mapping in document order.
func eachEntry(group *yaml.Node, fn func(key string, fields map[string]*yaml.Node)) {
	if group == nil || group.Kind != yaml.MappingNode {
		return
	}
	for i := 0; i+1 < len(group.Content); i += 2 {
		fn(group.Content[i].Value, mappingFields(group.Content[i+1]))
	}
}

func str(n *yaml.Node) string {
	if n == nil || n.Tag == tagNull {
		return ""
	}
	return n.Value
}

func num(n *yaml.Node, def float64) float64 {
	if n == nil {
		return def
	}
	var v float64
	if err := n.Decode(&v); err != nil {
		return def
	}
	return v
}

func options(n *yaml.Node) []Option {
	if n == nil {
		return nil
	}
	opts := make([]Option, 0, len(n.Content)/2)
	for i := 0; i+1 < len(n.Content); i += 2 {
		var v int
		_ = n.Content[i+1].Decode(&v)
		opts = append(opts, Option{Label: n.Content[i].Value, Value: v})
	}
	return opts
}
