package binding

import "fmt"

// Action names accepted by Apply.
const (
	ActionTurnOn        = "turn_on"
	ActionTurnOff       = "turn_off"
	ActionSetPercentage = "set_percentage"
	ActionOscillate     = "oscillate"
	ActionSetDirection  = "set_direction"
	ActionSetValue      = "set_value"
	ActionSelectOption  = "select_option"
)

// Action is a user request against one entity, as received by the API.
type Action struct {
	Name        string   `json:"action"`
	Percentage  *int     `json:"percentage,omitempty"`
	Oscillating *bool    `json:"oscillating,omitempty"`
	Direction   string   `json:"direction,omitempty"`
	Value       *float64 `json:"value,omitempty"`
	Option      string   `json:"option,omitempty"`
}

// Apply performs a on e.
//
// Returns ErrUnsupported when the entity has no such action and
// ErrOutOfRange when a required argument is missing or invalid.
func Apply(e Entity, a Action) error {
	switch ent := e.(type) {
	case *Fan:
		return applyFan(ent, a)
	case *Switch:
		switch a.Name {
		case ActionTurnOn:
			return ent.TurnOn()
		case ActionTurnOff:
			return ent.TurnOff()
		}
	case *Number:
		if a.Name == ActionSetValue {
			if a.Value == nil {
				return fmt.Errorf("%w: value is required", ErrOutOfRange)
			}
			return ent.SetValue(*a.Value)
		}
	case *Select:
		if a.Name == ActionSelectOption {
			return ent.SelectOption(a.Option)
		}
	}
	return fmt.Errorf("%w: %s on %s", ErrUnsupported, a.Name, e.Meta().Platform)
}

func applyFan(f *Fan, a Action) error {
	switch a.Name {
	case ActionTurnOn:
		if a.Percentage != nil {
			return f.SetPercentage(*a.Percentage)
		}
		return f.TurnOn()
	case ActionTurnOff:
		return f.TurnOff()
	case ActionSetPercentage:
		if a.Percentage == nil {
			return fmt.Errorf("%w: percentage is required", ErrOutOfRange)
		}
		return f.SetPercentage(*a.Percentage)
	case ActionOscillate:
		if a.Oscillating == nil {
			return fmt.Errorf("%w: oscillating is required", ErrOutOfRange)
		}
		return f.Oscillate(*a.Oscillating)
	case ActionSetDirection:
		return f.SetDirection(Direction(a.Direction))
	}
	return fmt.Errorf("%w: %s on %s", ErrUnsupported, a.Name, PlatformFan)
}
