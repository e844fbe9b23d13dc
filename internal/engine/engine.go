package engine

import (
	"context"
	"fmt"
	"math"
	"regexp"
	"sort"
	"sync"
	"time"

	"github.com/nerrad567/calibright/internal/calibration"
	"github.com/nerrad567/calibright/internal/configstore"
	"github.com/nerrad567/calibright/internal/device"
)

// Defaults for engine options.
const (
	// DefaultDiscoveryInterval is how often Run rescans for displays.
	DefaultDiscoveryInterval = 2 * time.Second

	// DefaultQueueSize bounds the pending requests per display.
	DefaultQueueSize = 64

	// DefaultFanOut bounds concurrent displays in aggregate operations.
	DefaultFanOut = 8
)

// Logger defines the logging interface used by the engine.
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

// Options configures an Engine. Zero values select the defaults.
type Options struct {
	DiscoveryInterval time.Duration
	QueueSize         int
	FanOut            int
}

// DisplayInfo describes a registered display.
type DisplayInfo struct {
	ID        device.ID             `json:"id"`
	Kind      device.Kind           `json:"kind"`
	Effective configstore.Effective `json:"effective"`
	Link      LinkStats             `json:"link"`
}

// Engine is the brightness orchestrator.
//
// Thread Safety: all methods are safe for concurrent use.
type Engine struct {
	store    *configstore.Store
	registry *device.Registry
	opts     Options
	logger   Logger

	mu     sync.RWMutex
	lanes  map[device.ID]*lane
	closed bool

	scanMu sync.Mutex // serialises Rediscover

	obsMu     sync.RWMutex
	observers []Observer
}

// New creates an engine over a config store and device registry.
func New(store *configstore.Store, registry *device.Registry, opts Options) *Engine {
	if opts.DiscoveryInterval <= 0 {
		opts.DiscoveryInterval = DefaultDiscoveryInterval
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = DefaultQueueSize
	}
	if opts.FanOut <= 0 {
		opts.FanOut = DefaultFanOut
	}
	return &Engine{
		store:    store,
		registry: registry,
		opts:     opts,
		logger:   noopLogger{},
		lanes:    make(map[device.ID]*lane),
	}
}

// SetLogger sets the logger for the engine.
func (e *Engine) SetLogger(logger Logger) {
	e.logger = logger
}

// Subscribe registers an observer for engine events.
func (e *Engine) Subscribe(fn Observer) {
	e.obsMu.Lock()
	defer e.obsMu.Unlock()
	e.observers = append(e.observers, fn)
}

// Store returns the config store the engine reads from.
func (e *Engine) Store() *configstore.Store {
	return e.store
}

// Run rediscovers displays on an interval until ctx is done, then closes
// every lane.
func (e *Engine) Run(ctx context.Context) error {
	if err := e.Rediscover(ctx); err != nil {
		e.logger.Warn("initial discovery incomplete", "error", err)
	}

	ticker := time.NewTicker(e.opts.DiscoveryInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			e.Close()
			return nil
		case <-ticker.C:
			if err := e.Rediscover(ctx); err != nil {
				e.logger.Debug("discovery incomplete", "error", err)
			}
		}
	}
}

// Rediscover reconciles lanes with the devices currently present.
func (e *Engine) Rediscover(ctx context.Context) error {
	e.scanMu.Lock()
	defer e.scanMu.Unlock()

	diff, err := e.registry.Discover(ctx)

	for _, dev := range diff.Removed {
		e.mu.Lock()
		l := e.lanes[dev.ID()]
		delete(e.lanes, dev.ID())
		e.mu.Unlock()

		if l != nil {
			l.close()
		}
		// Close may block behind an abandoned I2C attempt.
		go func(dev device.Device) {
			if cerr := dev.Close(); cerr != nil {
				e.logger.Warn("closing removed display", "id", dev.ID(), "error", cerr)
			}
		}(dev)
		e.emit(Event{Type: EventDisplayRemoved, DisplayID: dev.ID(), Kind: dev.Kind()})
	}

	for _, dev := range diff.Added {
		e.mu.Lock()
		if e.closed {
			e.mu.Unlock()
			_ = dev.Close() //nolint:errcheck // engine shutting down
			continue
		}
		l := newLane(e, dev, e.opts.QueueSize)
		e.lanes[dev.ID()] = l
		e.mu.Unlock()

		go l.run()
		e.emit(Event{Type: EventDisplayAdded, DisplayID: dev.ID(), Kind: dev.Kind()})
	}

	return err
}

// ListDisplays returns the ids of every display with a lane, sorted.
func (e *Engine) ListDisplays() []device.ID {
	e.mu.RLock()
	ids := make([]device.ID, 0, len(e.lanes))
	for id := range e.lanes {
		ids = append(ids, id)
	}
	e.mu.RUnlock()

	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Match returns the displays whose id matches re, sorted. A nil re matches
// every display.
func (e *Engine) Match(re *regexp.Regexp) []device.ID {
	all := e.ListDisplays()
	if re == nil {
		return all
	}
	out := all[:0]
	for _, id := range all {
		if re.MatchString(string(id)) {
			out = append(out, id)
		}
	}
	return out
}

// Describe returns the kind, effective configuration and link statistics
// for a display.
func (e *Engine) Describe(id device.ID) (DisplayInfo, error) {
	l, err := e.lane(id)
	if err != nil {
		return DisplayInfo{}, err
	}
	return DisplayInfo{
		ID:        id,
		Kind:      l.dev.Kind(),
		Effective: e.store.EffectiveFor(id),
		Link:      l.stats.snapshot(),
	}, nil
}

// GetBrightness reads a display and returns its logical brightness.
func (e *Engine) GetBrightness(ctx context.Context, id device.ID) (float64, error) {
	l, err := e.lane(id)
	if err != nil {
		return 0, err
	}

	v, err := l.submit(ctx, func(ctx context.Context, l *lane) (float64, error) {
		eff := e.store.EffectiveFor(id)
		r, err := l.read(ctx, eff)
		if err != nil {
			return 0, err
		}
		physical := calibration.FromRaw(r.Raw, r.Max)
		return calibration.ScaleDown(physical, eff.Config), nil
	})
	if err != nil {
		return 0, fmt.Errorf("display %s: get: %w", id, err)
	}
	return v, nil
}

// SetBrightness sets a display's logical brightness. Values outside
// [0, 100] are clamped.
func (e *Engine) SetBrightness(ctx context.Context, id device.ID, v float64) error {
	if math.IsNaN(v) {
		return ErrInvalidBrightness
	}
	l, err := e.lane(id)
	if err != nil {
		return err
	}

	logical := math.Max(calibration.MinPercent, math.Min(calibration.MaxPercent, v))
	_, err = l.submit(ctx, func(ctx context.Context, l *lane) (float64, error) {
		eff := e.store.EffectiveFor(id)
		if l.hwMax == 0 {
			if _, err := l.read(ctx, eff); err != nil {
				return 0, err
			}
		}
		raw := calibration.ToRaw(calibration.ScaleUp(logical, eff.Config), l.hwMax)
		if err := l.write(ctx, eff, raw); err != nil {
			return 0, err
		}
		e.emit(Event{Type: EventBrightnessChanged, DisplayID: id, Kind: l.dev.Kind(), Brightness: &logical})
		return logical, nil
	})
	if err != nil {
		return fmt.Errorf("display %s: set: %w", id, err)
	}
	return nil
}

// ReloadConfig publishes a new configuration. It never waits for
// in-flight operations; they finish with the snapshot they started with.
func (e *Engine) ReloadConfig(global configstore.Section, overrides map[device.ID]configstore.Section) (bool, error) {
	return e.reload(ReloadManual, global, overrides)
}

// Close stops every lane and closes every device.
func (e *Engine) Close() {
	e.mu.Lock()
	e.closed = true
	lanes := e.lanes
	e.lanes = make(map[device.ID]*lane)
	e.mu.Unlock()

	for _, l := range lanes {
		l.close()
	}
	if err := e.registry.Close(); err != nil {
		e.logger.Warn("closing displays", "error", err)
	}
}

func (e *Engine) lane(id device.ID) (*lane, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	l, ok := e.lanes[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownDisplay, id)
	}
	return l, nil
}
