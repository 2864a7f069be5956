package usecase

import "errors"

// Sentinel errors for use case layer
var (
	// ErrInvalidArgument is returned for missing or malformed input fields
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrAccessDenied is returned when the principal may not use the
	// requested course or record
	ErrAccessDenied = errors.New("access denied")

	// ErrGenerationFailure marks a generation backend error or timeout.
	// It never reaches the transport; the conversation engine converts
	// it into the fallback chunk and a terminal end event.
	ErrGenerationFailure = errors.New("generation backend failure")
)
