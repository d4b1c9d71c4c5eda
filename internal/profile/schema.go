package profile

import (
	"errors"
	"fmt"
	"regexp"

	"gopkg.in/yaml.v3"
)

// YAML node tags checked by the schema.
const (
	tagStr   = "!!str"
	tagInt   = "!!int"
	tagFloat = "!!float"
	tagNull  = "!!null"
)

// stateKeyPattern matches attribute names as devices emit them (power, AQ, TVOC).
var stateKeyPattern = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_]*$`)

type valueKind int

const (
	kindString valueKind = iota
	kindOptString
	kindStateKey
	kindInt
	kindNumber
	kindFeatures
	kindOptions
)

type field struct {
	name     string
	kind     valueKind
	required bool
}

var (
	profileFields = []field{
		{"name", kindString, true},
		{"fan", kindString, false}, // checked separately
		{groupSwitches, kindString, false},
		{groupSensors, kindString, false},
		{groupNumbers, kindString, false},
		{groupSelect, kindString, false},
		{groupBinarySensors, kindString, false},
	}

	fanFields = []field{
		{"supported_features", kindFeatures, true},
		{"max_speed", kindInt, true},
		{"power_key", kindStateKey, false},
		{"speed_key", kindStateKey, false},
	}

	switchFields = []field{
		{"name", kindString, true},
		{"command_on", kindString, true},
		{"command_off", kindString, true},
		{"state_key", kindStateKey, true},
		{"icon", kindOptString, false},
		{"entity_category", kindOptString, false},
	}

	sensorFields = []field{
		{"name", kindString, true},
		{"state_key", kindStateKey, true},
		{"device_class", kindOptString, false},
		{"state_class", kindOptString, false},
		{"unit", kindOptString, false},
		{"icon", kindOptString, false},
		{"multiplier", kindNumber, false},
	}

	numberFields = []field{
		{"name", kindString, true},
		{"command", kindString, true},
		{"state_key", kindStateKey, true},
		{"min", kindNumber, false},
		{"max", kindNumber, false},
		{"step", kindNumber, false},
		{"unit", kindOptString, false},
		{"icon", kindOptString, false},
	}

	selectFields = []field{
		{"name", kindString, true},
		{"command", kindString, true},
		{"state_key", kindStateKey, true},
		{"options", kindOptions, true},
		{"icon", kindOptString, false},
	}

	binarySensorFields = []field{
		{"name", kindString, true},
		{"state_key", kindStateKey, true},
		{"device_class", kindOptString, false},
		{"icon", kindOptString, false},
	}
)

// Capability group keys.
const (
	groupSwitches      = "switches"
	groupSensors       = "sensors"
	groupNumbers       = "numbers"
	groupSelect        = "select"
	groupBinarySensors = "binary_sensors"
)

var groupOrder = []string{groupSwitches, groupSensors, groupNumbers, groupSelect, groupBinarySensors}

var groupFields = map[string][]field{
	groupSwitches:      switchFields,
	groupSensors:       sensorFields,
	groupNumbers:       numberFields,
	groupSelect:        selectFields,
	groupBinarySensors: binarySensorFields,
}

var validFeatures map[Feature]struct{}

func init() {
	validFeatures = make(map[Feature]struct{}, len(AllFeatures()))
	for _, f := range AllFeatures() {
		validFeatures[f] = struct{}{}
	}
}

// validate checks one profile node and returns every problem found.
func validate(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: profile must be a mapping", node.Line)
	}

	errs := checkFields(node, "", profileFields, map[string]bool{
		"fan":              true,
		groupSwitches:      true,
		groupSensors:       true,
		groupNumbers:       true,
		groupSelect:        true,
		groupBinarySensors: true,
	})

	fields := mappingFields(node)

	if fan, ok := fields["fan"]; ok {
		if fan.Kind != yaml.MappingNode {
			errs = append(errs, fmt.Errorf("fan: line %d: must be a mapping", fan.Line))
		} else {
			errs = append(errs, checkFields(fan, "fan.", fanFields, nil)...)
			if ms, ok := mappingFields(fan)["max_speed"]; ok && ms.Tag == tagInt {
				var v int
				if err := ms.Decode(&v); err == nil && v < 1 {
					errs = append(errs, fmt.Errorf("fan.max_speed: line %d: must be at least 1", ms.Line))
				}
			}
		}
	}

	for _, group := range groupOrder {
		groupSpec := groupFields[group]
		g, ok := fields[group]
		if !ok || g.Tag == tagNull {
			continue
		}
		if g.Kind != yaml.MappingNode {
			errs = append(errs, fmt.Errorf("%s: line %d: must be a mapping", group, g.Line))
			continue
		}
		for i := 0; i+1 < len(g.Content); i += 2 {
			key, entry := g.Content[i], g.Content[i+1]
			path := group + "." + key.Value + "."
			if entry.Kind != yaml.MappingNode {
				errs = append(errs, fmt.Errorf("%s: line %d: entry must be a mapping", group+"."+key.Value, entry.Line))
				continue
			}
			errs = append(errs, checkFields(entry, path, groupSpec, nil)...)
			if group == groupNumbers {
				errs = append(errs, checkBounds(entry, path)...)
			}
		}
	}

	return errors.Join(errs...)
}

// checkFields validates the keys of a mapping against fields. Keys listed in
// skip are allowed but their values are not checked here.
func checkFields(node *yaml.Node, path string, fields []field, skip map[string]bool) []error {
	var errs []error
	known := make(map[string]field, len(fields))
	for _, f := range fields {
		known[f.name] = f
	}

	present := make(map[string]bool)
	for i := 0; i+1 < len(node.Content); i += 2 {
		key, value := node.Content[i], node.Content[i+1]
		f, ok := known[key.Value]
		if !ok {
			errs = append(errs, fmt.Errorf("%s%s: line %d: unknown field", path, key.Value, key.Line))
			continue
		}
		if present[key.Value] {
			errs = append(errs, fmt.Errorf("%s%s: line %d: duplicate field", path, key.Value, key.Line))
			continue
		}
		present[key.Value] = true
		if skip[key.Value] {
			continue
		}
		if err := checkValue(value, f.kind); err != nil {
			errs = append(errs, fmt.Errorf("%s%s: line %d: %w", path, key.Value, value.Line, err))
		}
	}

	for _, f := range fields {
		if f.required && !present[f.name] {
			errs = append(errs, fmt.Errorf("%s%s: required field missing", path, f.name))
		}
	}

	return errs
}

func checkValue(n *yaml.Node, kind valueKind) error {
	switch kind {
	case kindString:
		if n.Kind != yaml.ScalarNode || n.Tag != tagStr {
			return errors.New("must be a string")
		}
	case kindOptString:
		if n.Kind != yaml.ScalarNode || (n.Tag != tagStr && n.Tag != tagNull) {
			return errors.New("must be a string or null")
		}
	case kindStateKey:
		if n.Kind != yaml.ScalarNode || n.Tag != tagStr {
			return errors.New("must be a string")
		}
		if !stateKeyPattern.MatchString(n.Value) {
			return fmt.Errorf("%q is not a valid attribute key", n.Value)
		}
	case kindInt:
		if n.Kind != yaml.ScalarNode || n.Tag != tagInt {
			return errors.New("must be an integer")
		}
	case kindNumber:
		if n.Kind != yaml.ScalarNode || (n.Tag != tagInt && n.Tag != tagFloat) {
			return errors.New("must be a number")
		}
	case kindFeatures:
		if n.Kind != yaml.SequenceNode {
			return errors.New("must be a list")
		}
		for _, item := range n.Content {
			if item.Kind != yaml.ScalarNode || item.Tag != tagStr {
				return errors.New("features must be strings")
			}
			if _, ok := validFeatures[Feature(item.Value)]; !ok {
				return fmt.Errorf("unknown feature %q", item.Value)
			}
		}
	case kindOptions:
		if n.Kind != yaml.MappingNode || len(n.Content) == 0 {
			return errors.New("must be a non-empty mapping")
		}
		seen := make(map[string]bool)
		for i := 0; i+1 < len(n.Content); i += 2 {
			label, value := n.Content[i], n.Content[i+1]
			if label.Kind != yaml.ScalarNode || label.Value == "" {
				return errors.New("option labels must be non-empty scalars")
			}
			if seen[label.Value] {
				return fmt.Errorf("duplicate option %q", label.Value)
			}
			seen[label.Value] = true
			if value.Kind != yaml.ScalarNode || value.Tag != tagInt {
				return fmt.Errorf("option %q must map to an integer", label.Value)
			}
		}
	}
	return nil
}

// checkBounds verifies min <= max and step > 0 for a number entry.
func checkBounds(entry *yaml.Node, path string) []error {
	fields := mappingFields(entry)
	lo, hi, step := DefaultNumberMin, DefaultNumberMax, DefaultNumberStep
	for name, dst := range map[string]*float64{"min": &lo, "max": &hi, "step": &step} {
		if n, present := fields[name]; present {
			if checkValue(n, kindNumber) != nil || n.Decode(dst) != nil {
				return nil // already reported as a type error
			}
		}
	}

	var errs []error
	if lo > hi {
		errs = append(errs, fmt.Errorf("%smin: %v is greater than max %v", path, lo, hi))
	}
	if step <= 0 {
		errs = append(errs, fmt.Errorf("%sstep: must be positive", path))
	}
	return errs
}

// mappingFields indexes a mapping node's values by key.
func mappingFields(node *yaml.Node) map[string]*yaml.Node {
	out := make(map[string]*yaml.Node, len(node.Content)/2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		out[node.Content[i].Value] = node.Content[i+1]
	}
	return out
}
