package device

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
)

// Validation limits.
const (
	maxDeviceIDLength = 64
	maxNameLength     = 100
	maxPort           = 65535
)

// topicReserved are characters that cannot appear in a topic level.
const topicReserved = "/+#"

// ValidateConfig checks a normalised config and reports every problem.
// Model validity against the profile catalogue is checked by the caller.
func ValidateConfig(c Config) error {
	var errs []error

	if err := ValidateDeviceID(c.DeviceID); err != nil {
		errs = append(errs, err)
	}

	switch {
	case c.Name == "":
		errs = append(errs, errors.New("name is required"))
	case len(c.Name) > maxNameLength:
		errs = append(errs, fmt.Errorf("name exceeds %d characters", maxNameLength))
	}

	if c.Model == "" {
		errs = append(errs, errors.New("model is required"))
	}

	if c.MQTTPort < 0 || c.MQTTPort > maxPort {
		errs = append(errs, fmt.Errorf("mqtt_port %d out of range", c.MQTTPort))
	}

	if c.Password != "" && c.Username == "" {
		errs = append(errs, errors.New("password given without username"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
	}
	return nil
}

// ValidateDeviceID checks that id can be used as a topic level.
func ValidateDeviceID(id string) error {
	if id == "" {
		return errors.New("device_id is required")
	}
	if len(id) > maxDeviceIDLength {
		return fmt.Errorf("device_id exceeds %d characters", maxDeviceIDLength)
	}
	if strings.ContainsAny(id, topicReserved) {
		return fmt.Errorf("device_id %q contains one of %q", id, topicReserved)
	}
	for _, r := range id {
		if unicode.IsSpace(r) || unicode.IsControl(r) {
			return fmt.Errorf("device_id %q contains whitespace", id)
		}
	}
	return nil
}
