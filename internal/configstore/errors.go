package configstore

import (
	"errors"
	"strings"
)

// Domain errors for the config store.
var (
	// ErrInvalidConfig is matched by every validation failure.
	ErrInvalidConfig = errors.New("configstore: invalid configuration")

	// ErrUnsupportedFormat is returned for files with an unknown extension.
	ErrUnsupportedFormat = errors.New("configstore: unsupported file format")

	// ErrParse is returned when a configuration file cannot be decoded.
	ErrParse = errors.New("configstore: parse error")
)

// ValidationError lists every problem found in a candidate configuration.
type ValidationError struct {
	Problems []error
}

func (e *ValidationError) Error() string {
	msgs := make([]string, 0, len(e.Problems))
	for _, p := range e.Problems {
		msgs = append(msgs, p.Error())
	}
	return "configuration errors: " + strings.Join(msgs, "; ")
}

// Unwrap exposes the individual problems to errors.Is and errors.As.
func (e *ValidationError) Unwrap() []error {
	return e.Problems
}

// Is reports whether target is ErrInvalidConfig.
func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalidConfig
}
