package integration

import "errors"

var (
	// ErrUnknownModel is returned by Setup when the entry's model has no
	// valid profile.
	ErrUnknownModel = errors.New("integration: unknown model")

	// ErrAlreadySetUp is returned by Setup when the device has a live session.
	ErrAlreadySetUp = errors.New("integration: device already set up")

	// ErrNotSetUp is returned for a device with no live session.
	ErrNotSetUp = errors.New("integration: device not set up")

	// ErrClosed is returned by Setup after Close.
	ErrClosed = errors.New("integration: manager closed")
)
