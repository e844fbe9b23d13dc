package device

import (
	"context"
	"fmt"
	"time"

	"github.com/nerrad567/calibright/internal/link"
)

// minBacklightRaw keeps the panel from being switched fully off.
const minBacklightRaw = 1

// BacklightBus reads and writes backlight levels by device name.
// Implementations wrap failures with ErrBusFailure.
type BacklightBus interface {
	Brightness(ctx context.Context, name string) (current, maxValue uint32, err error)
	SetBrightness(ctx context.Context, name string, v uint32) error
}

// Backlight is a built-in panel controlled through a BacklightBus.
type Backlight struct {
	id   ID
	name string
	bus  BacklightBus
}

var _ Device = (*Backlight)(nil)

// NewBacklight returns a backlight device. The bus is shared and is not
// closed with the device.
func NewBacklight(id ID, name string, bus BacklightBus) *Backlight {
	return &Backlight{id: id, name: name, bus: bus}
}

func (b *Backlight) ID() ID     { return b.id }
func (b *Backlight) Kind() Kind { return KindBacklight }
func (b *Backlight) sealed()    {}

// Name returns the kernel backlight name.
func (b *Backlight) Name() string { return b.name }

// Read returns the current level. Reads are retried with the same tries
// and delay as DDC/CI since sysfs can briefly fail while the driver
// updates the level.
func (b *Backlight) Read(ctx context.Context, p link.Params) (Reading, error) {
	tries := max(p.MaxTries, 1)
	delay := time.Duration(float64(link.BaseDelay) * p.SleepMultiplier)

	var lastErr error
	for i := 0; i < tries; i++ {
		if err := ctx.Err(); err != nil {
			return Reading{}, fmt.Errorf("%w: %w", link.ErrCancelled, err)
		}
		cur, maxValue, err := b.bus.Brightness(ctx, b.name)
		if err == nil {
			return Reading{Raw: cur, Max: maxValue}, nil
		}
		lastErr = err
		if i+1 < tries && delay > 0 {
			select {
			case <-ctx.Done():
				return Reading{}, fmt.Errorf("%w: %w", link.ErrCancelled, ctx.Err())
			case <-time.After(delay):
			}
		}
	}
	return Reading{}, lastErr
}

// Write sets the level, never below 1.
func (b *Backlight) Write(ctx context.Context, _ link.Params, raw uint32) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %w", link.ErrCancelled, err)
	}
	return b.bus.SetBrightness(ctx, b.name, max(raw, minBacklightRaw))
}

// Close is a no-op; the bus outlives individual devices.
func (b *Backlight) Close() error { return nil }
