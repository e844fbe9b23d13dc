package device

import (
	"context"

	"github.com/nerrad567/calibright/internal/link"
)

// ID is a stable, human-meaningful display identifier such as "ddcci6" or
// "intel_backlight".
type ID string

// Kind is the device variant.
type Kind string

// Device kinds.
const (
	KindDDCCI     Kind = "ddcci"
	KindBacklight Kind = "backlight"
)

// Reading is a raw brightness reading in hardware units.
type Reading struct {
	Raw uint32
	Max uint32
}

// Device is a controllable display.
//
// Implementations are not safe for concurrent use by multiple operations;
// the engine serialises every call for a given device.
type Device interface {
	ID() ID
	Kind() Kind

	// Read returns the current raw brightness and the hardware maximum.
	Read(ctx context.Context, p link.Params) (Reading, error)

	// Write sets the raw brightness.
	Write(ctx context.Context, p link.Params, raw uint32) error

	Close() error

	sealed()
}

// Logger defines the logging interface used by this package.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}
