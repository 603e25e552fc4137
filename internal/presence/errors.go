package presence

import "errors"

var (
	// ErrInvalidInput is returned when a name or room name is blank after trimming.
	ErrInvalidInput = errors.New("invalid input")

	// ErrNotFound is returned when a connection or room id is not registered.
	ErrNotFound = errors.New("not found")
)
