package device

import "errors"

// Domain errors for the device package.
//
// These errors can be checked using errors.Is():
//
//	if errors.Is(err, device.ErrEntryNotFound) {
//	    // handle not found case
//	}
var (
	// ErrEntryNotFound is returned when no entry exists for a device id.
	ErrEntryNotFound = errors.New("device: entry not found")

	// ErrEntryExists is returned when creating an entry for a device id
	// that is already configured.
	ErrEntryExists = errors.New("device: entry already exists")

	// ErrInvalidConfig is returned when a device config fails validation.
	ErrInvalidConfig = errors.New("device: invalid config")
)
