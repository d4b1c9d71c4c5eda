package session

import "errors"

var (
	// ErrInvalidCommand is returned by Publish for an empty or multi-line
	// command.
	ErrInvalidCommand = errors.New("session: invalid command")

	// ErrClosed is returned by Connect after Close.
	ErrClosed = errors.New("session: closed")
)
