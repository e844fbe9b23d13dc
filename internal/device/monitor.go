package device

import (
	"context"
	"math"

	"github.com/nerrad567/calibright/internal/link"
)

// Monitor is an external display controlled over DDC/CI.
type Monitor struct {
	id     ID
	bus    string
	driver *link.Driver
}

var _ Device = (*Monitor)(nil)

// NewMonitor wraps a link driver as a device. The monitor owns the driver.
func NewMonitor(id ID, bus string, driver *link.Driver) *Monitor {
	return &Monitor{id: id, bus: bus, driver: driver}
}

func (m *Monitor) ID() ID     { return m.id }
func (m *Monitor) Kind() Kind { return KindDDCCI }
func (m *Monitor) sealed()    {}

// Bus returns the I2C bus the monitor sits on.
func (m *Monitor) Bus() string { return m.bus }

// Read performs a DDC/CI brightness get.
func (m *Monitor) Read(ctx context.Context, p link.Params) (Reading, error) {
	cur, maxValue, err := m.driver.GetBrightness(ctx, p)
	if err != nil {
		return Reading{}, err
	}
	return Reading{Raw: uint32(cur), Max: uint32(maxValue)}, nil
}

// Write performs a verified DDC/CI brightness set.
func (m *Monitor) Write(ctx context.Context, p link.Params, raw uint32) error {
	return m.driver.SetBrightness(ctx, p, uint16(min(raw, math.MaxUint16)))
}

// LinkStats returns the driver counters.
func (m *Monitor) LinkStats() link.Stats {
	return m.driver.Stats()
}

// Close closes the underlying I2C handle.
func (m *Monitor) Close() error {
	return m.driver.Close()
}
