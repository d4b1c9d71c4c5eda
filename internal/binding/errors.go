package binding

import "errors"

var (
	// ErrOutOfRange is returned when a value is outside an entity's bounds.
	ErrOutOfRange = errors.New("binding: value out of range")

	// ErrUnsupported is returned for an action the entity does not offer.
	ErrUnsupported = errors.New("binding: action not supported")

	// ErrUnknownOption is returned when a select label is not defined.
	ErrUnknownOption = errors.New("binding: unknown option")

	// ErrUnknownEntity is returned when no entity has the requested key.
	ErrUnknownEntity = errors.New("binding: unknown entity")
)
