package crawler

import "errors"

var (
	// ErrAlreadyRunning is returned by Engine.Start while a run is active.
	// Runs share the engine's session, so they are never interleaved.
	ErrAlreadyRunning = errors.New("crawl already running")

	// ErrInvalidSeed is returned when the seed is not an absolute http or https URL.
	ErrInvalidSeed = errors.New("invalid seed address: expected an absolute http or https URL")

	// errUnexpected wraps a panic recovered from the traversal loop.
	errUnexpected = errors.New("crawl failed unexpectedly")
)
