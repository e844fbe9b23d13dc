package link

import (
	"fmt"
	"sync"

	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/host/v3"

	"github.com/nerrad567/calibright/internal/ddcci"
)

var (
	hostOnce sync.Once
	hostErr  error
)

// I2CHandle is a Handle on a Linux I2C adapter, addressed at the DDC/CI
// slave address.
type I2CHandle struct {
	name string
	bus  i2c.BusCloser
	dev  *i2c.Dev
}

var _ Handle = (*I2CHandle)(nil)

// OpenI2C opens an I2C bus by periph.io name or number (e.g. "6" for
// /dev/i2c-6).
//
// Parameters:
//   - bus: Bus name or number as understood by i2creg
//
// Returns:
//   - *I2CHandle: Handle ready for DDC/CI transactions
//   - error: ErrHostInit or the bus open error
func OpenI2C(bus string) (*I2CHandle, error) {
	hostOnce.Do(func() {
		_, hostErr = host.Init()
	})
	if hostErr != nil {
		return nil, fmt.Errorf("%w: %w", ErrHostInit, hostErr)
	}

	b, err := i2creg.Open(bus)
	if err != nil {
		return nil, fmt.Errorf("opening i2c bus %q: %w", bus, err)
	}

	return &I2CHandle{
		name: bus,
		bus:  b,
		dev:  &i2c.Dev{Bus: b, Addr: ddcci.Address},
	}, nil
}

// Write sends p as a single I2C write transaction.
func (h *I2CHandle) Write(p []byte) error {
	if err := h.dev.Tx(p, nil); err != nil {
		return fmt.Errorf("i2c %s write: %w", h.name, err)
	}
	return nil
}

// Read reads n bytes in a single I2C read transaction.
func (h *I2CHandle) Read(n int) ([]byte, error) {
	buf := make([]byte, n)
	if err := h.dev.Tx(nil, buf); err != nil {
		return nil, fmt.Errorf("i2c %s read: %w", h.name, err)
	}
	return buf, nil
}

// Close releases the bus.
func (h *I2CHandle) Close() error {
	return h.bus.Close()
}

// String returns the bus name.
func (h *I2CHandle) String() string {
	return "i2c:" + h.name
}
