package interfaces

import "errors"

// Sentinel errors shared by all repository backends
var (
	// ErrNotFound is returned when the requested record does not exist
	ErrNotFound = errors.New("record not found")

	// ErrSessionEnded is returned when appending to, or re-ending, a
	// chat session that has already been ended
	ErrSessionEnded = errors.New("chat session already ended")
)
