package engine

import "errors"

// Domain errors for the engine.
var (
	// ErrUnknownDisplay is returned for ids that are not registered.
	ErrUnknownDisplay = errors.New("engine: unknown display")

	// ErrLaneClosed is returned for requests queued on a display that was
	// removed before they ran.
	ErrLaneClosed = errors.New("engine: display removed")

	// ErrInvalidBrightness is returned for NaN brightness values.
	ErrInvalidBrightness = errors.New("engine: invalid brightness value")

	// ErrNoDisplays is returned by aggregate operations with nothing to act on.
	ErrNoDisplays = errors.New("engine: no displays matched")

	// ErrAllFailed is returned when an aggregate operation failed on every
	// display.
	ErrAllFailed = errors.New("engine: operation failed on every display")
)
