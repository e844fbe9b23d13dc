package inventory

import "errors"

var (
	// ErrDisplayNotFound is returned when a display has never been seen.
	ErrDisplayNotFound = errors.New("inventory: display not found")
)
