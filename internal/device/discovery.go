package device

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/nerrad567/calibright/internal/calibration"
	"github.com/nerrad567/calibright/internal/link"
)

// Discovery defaults.
const (
	// DefaultI2CGlob matches Linux i2c-dev nodes.
	DefaultI2CGlob = "/dev/i2c-*"

	// ddcIDPrefix names monitors after their bus, e.g. "ddcci6".
	ddcIDPrefix = "ddcci"

	// defaultProbeRetry is how long a bus that failed its probe is left
	// alone before being probed again.
	defaultProbeRetry = 30 * time.Second
)

// Candidate is a device that may be opened.
//
// Present, when set, is asked about an already registered device on every
// discovery pass. Returning false drops the device even though its
// candidate is still listed.
type Candidate struct {
	ID      ID
	Open    func(ctx context.Context) (Device, error)
	Present func(ctx context.Context, dev Device) bool
}

// Discoverer enumerates candidate devices. Listing must be cheap and free
// of side effects; all hardware access happens in Candidate.Open.
type Discoverer interface {
	Name() string
	Candidates(ctx context.Context) ([]Candidate, error)
}

// BacklightDiscoverer lists entries in the sysfs backlight class.
type BacklightDiscoverer struct {
	Bus *LogindBus
}

var _ Discoverer = (*BacklightDiscoverer)(nil)

// Name identifies the discoverer in logs.
func (d *BacklightDiscoverer) Name() string { return "backlight" }

// Candidates returns one candidate per backlight directory.
func (d *BacklightDiscoverer) Candidates(_ context.Context) ([]Candidate, error) {
	entries, err := os.ReadDir(d.Bus.Root())
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", d.Bus.Root(), err)
	}

	out := make([]Candidate, 0, len(entries))
	for _, e := range entries {
		name := e.Name()
		out = append(out, Candidate{
			ID: ID(name),
			Open: func(context.Context) (Device, error) {
				return NewBacklight(ID(name), name, d.Bus), nil
			},
		})
	}
	return out, nil
}

// OpenFunc opens a DDC/CI handle for a bus number.
type OpenFunc func(bus string) (link.Handle, error)

// DDCDiscoverer finds monitors answering DDC/CI on I2C buses.
//
// Every bus is a candidate; opening one probes it with a brightness read.
// Registered monitors are probed again on each pass, since an i2c-dev node
// outlives the monitor behind it. Buses that fail the probe are not probed
// again until ProbeRetry passes.
type DDCDiscoverer struct {
	// Buses lists bus numbers to use. Empty scans Glob.
	Buses []string

	// Glob selects i2c-dev nodes when Buses is empty.
	Glob string

	// Open opens a handle on a bus. Defaults to link.OpenI2C.
	Open OpenFunc

	// ProbeParams returns the link settings for probing a display,
	// normally taken from its effective configuration. Nil uses the
	// built-in defaults.
	ProbeParams func(id ID) link.Params

	// ProbeRetry delays re-probing a bus that had no display.
	ProbeRetry time.Duration

	mu     sync.Mutex
	failed map[string]time.Time
}

var _ Discoverer = (*DDCDiscoverer)(nil)

// Name identifies the discoverer in logs.
func (d *DDCDiscoverer) Name() string { return "ddcci" }

// Candidates returns one candidate per bus.
func (d *DDCDiscoverer) Candidates(_ context.Context) ([]Candidate, error) {
	buses, err := d.buses()
	if err != nil {
		return nil, err
	}

	out := make([]Candidate, 0, len(buses))
	for _, bus := range buses {
		out = append(out, Candidate{
			ID: ID(ddcIDPrefix + bus),
			Open: func(ctx context.Context) (Device, error) {
				return d.open(ctx, bus)
			},
			Present: func(ctx context.Context, dev Device) bool {
				return d.responding(ctx, bus, dev)
			},
		})
	}
	return out, nil
}

func (d *DDCDiscoverer) buses() ([]string, error) {
	if len(d.Buses) > 0 {
		return d.Buses, nil
	}

	pattern := d.Glob
	if pattern == "" {
		pattern = DefaultI2CGlob
	}
	matches, err := filepath.Glob(pattern)
	if err != nil {
		return nil, fmt.Errorf("scanning %s: %w", pattern, err)
	}

	buses := make([]string, 0, len(matches))
	for _, m := range matches {
		if _, n, ok := strings.Cut(filepath.Base(m), "i2c-"); ok && n != "" {
			buses = append(buses, n)
		}
	}
	sort.Strings(buses)
	return buses, nil
}

func (d *DDCDiscoverer) open(ctx context.Context, bus string) (Device, error) {
	if d.recentlyFailed(bus) {
		return nil, ErrNoDevice
	}

	openFn := d.Open
	if openFn == nil {
		openFn = func(bus string) (link.Handle, error) { return link.OpenI2C(bus) }
	}
	h, err := openFn(bus)
	if err != nil {
		d.markFailed(bus)
		return nil, err
	}

	id := ID(ddcIDPrefix + bus)
	drv := link.NewDriver(h)
	if _, _, err := drv.GetBrightness(ctx, d.params(id)); err != nil {
		_ = drv.Close() //nolint:errcheck // probe failed, handle is discarded
		if !errors.Is(err, link.ErrCancelled) {
			d.markFailed(bus)
		}
		return nil, fmt.Errorf("%w: bus %s: %w", ErrNoDevice, bus, err)
	}

	d.clearFailed(bus)
	return NewMonitor(id, bus, drv), nil
}

// responding re-probes a registered monitor. A cancelled probe counts as
// present so shutdown never drops displays.
func (d *DDCDiscoverer) responding(ctx context.Context, bus string, dev Device) bool {
	m, ok := dev.(*Monitor)
	if !ok {
		return true
	}
	_, _, err := m.driver.GetBrightness(ctx, d.params(m.ID()))
	if err == nil {
		return true
	}
	if errors.Is(err, link.ErrCancelled) || ctx.Err() != nil {
		return true
	}
	d.markFailed(bus)
	return false
}

func (d *DDCDiscoverer) params(id ID) link.Params {
	if d.ProbeParams == nil {
		return link.ParamsFrom(calibration.Default())
	}
	return d.ProbeParams(id)
}

func (d *DDCDiscoverer) recentlyFailed(bus string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	at, ok := d.failed[bus]
	if !ok {
		return false
	}
	retry := d.ProbeRetry
	if retry == 0 {
		retry = defaultProbeRetry
	}
	return time.Since(at) < retry
}

func (d *DDCDiscoverer) markFailed(bus string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.failed == nil {
		d.failed = make(map[string]time.Time)
	}
	d.failed[bus] = time.Now()
}

func (d *DDCDiscoverer) clearFailed(bus string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.failed, bus)
}

// StaticDiscoverer offers a fixed set of devices. Used for simulated
// displays.
type StaticDiscoverer struct {
	Label   string
	Devices []Device
}

var _ Discoverer = (*StaticDiscoverer)(nil)

// Name identifies the discoverer in logs.
func (d *StaticDiscoverer) Name() string { return d.Label }

// Candidates returns the fixed devices.
func (d *StaticDiscoverer) Candidates(context.Context) ([]Candidate, error) {
	out := make([]Candidate, 0, len(d.Devices))
	for _, dev := range d.Devices {
		out = append(out, Candidate{
			ID:   dev.ID(),
			Open: func(context.Context) (Device, error) { return dev, nil },
		})
	}
	return out, nil
}

// NewSimulatedMonitors returns n in-memory monitors named sim0..sim<n-1>.
func NewSimulatedMonitors(n int) []Device {
	out := make([]Device, 0, n)
	for i := range n {
		bus := fmt.Sprintf("sim%d", i)
		out = append(out, NewMonitor(ID(bus), bus, link.NewDriver(link.NewSimMonitor(50, 100))))
	}
	return out
}
