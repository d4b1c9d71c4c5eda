package profile

import "errors"

var (
	// ErrInvalidProfile is returned when a profile fails schema validation.
	ErrInvalidProfile = errors.New("profile: invalid profile")

	// ErrInvalidCatalogue is returned when the profile document itself
	// cannot be parsed.
	ErrInvalidCatalogue = errors.New("profile: invalid catalogue")
)
