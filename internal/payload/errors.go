package payload

import "errors"

// Decode errors. All of them mean "drop this message".
var (
	// ErrMalformed is returned when the body is not valid JSON or is too large.
	ErrMalformed = errors.New("payload: malformed json")

	// ErrMissingEnvelope is returned when the sub/Tune envelope is absent.
	ErrMissingEnvelope = errors.New("payload: missing sub.Tune envelope")

	// ErrEmptyAttributes is returned when the resolved attribute map is
	// empty or not an object.
	ErrEmptyAttributes = errors.New("payload: empty attribute map")
)
