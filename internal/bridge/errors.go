package bridge

import "errors"

var (
	// ErrInvalidPayload is returned for a command payload that is neither a
	// number nor a valid command object.
	ErrInvalidPayload = errors.New("bridge: invalid payload")

	// ErrUnknownTopic is returned for a message on a topic the bridge does
	// not handle.
	ErrUnknownTopic = errors.New("bridge: unknown topic")
)
