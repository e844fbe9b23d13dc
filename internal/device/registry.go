package device

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"regexp"
	"sort"
	"sync"
)

// Diff reports what changed during a discovery pass.
type Diff struct {
	Added   []Device
	Removed []Device
}

// Empty reports whether nothing changed.
func (d Diff) Empty() bool {
	return len(d.Added) == 0 && len(d.Removed) == 0
}

type entry struct {
	dev    Device
	source int // index of the discoverer that produced it
}

// Registry tracks the devices currently present.
//
// All public methods are thread-safe.
type Registry struct {
	discoverers []Discoverer
	filter      *regexp.Regexp

	mu      sync.RWMutex
	devices map[ID]entry
	logger  Logger
}

// NewRegistry creates a registry. A nil filter accepts every id.
// Discoverers are consulted in order; the first to offer an id owns it.
func NewRegistry(filter *regexp.Regexp, discoverers ...Discoverer) *Registry {
	return &Registry{
		discoverers: discoverers,
		filter:      filter,
		devices:     make(map[ID]entry),
		logger:      noopLogger{},
	}
}

// SetLogger sets the logger for the registry.
func (r *Registry) SetLogger(logger Logger) {
	r.logger = logger
}

// Discover enumerates every discoverer and reconciles the registry.
//
// New candidates that pass the filter are opened and added. Registered
// devices whose candidate vanished, or whose candidate reports them no
// longer present, are removed and returned in Diff.Removed; the caller
// closes them. A discoverer that fails keeps its
// existing devices and its error is returned alongside the diff.
func (r *Registry) Discover(ctx context.Context) (Diff, error) {
	var (
		diff    Diff
		errs    []error
		present = make(map[ID]bool)
		failed  = make(map[int]bool)
	)

	for i, d := range r.discoverers {
		cands, err := d.Candidates(ctx)
		if err != nil {
			failed[i] = true
			errs = append(errs, fmt.Errorf("%s: %w", d.Name(), err))
			continue
		}

		for _, c := range cands {
			if !r.accepts(c.ID) {
				continue
			}
			if present[c.ID] {
				r.logger.Debug("duplicate device id ignored", "id", c.ID, "discoverer", d.Name())
				continue
			}
			present[c.ID] = true

			r.mu.RLock()
			existing, known := r.devices[c.ID]
			r.mu.RUnlock()
			if known {
				if c.Present != nil && !c.Present(ctx, existing.dev) {
					r.logger.Info("display stopped responding", "id", c.ID)
					delete(present, c.ID)
				}
				continue
			}

			dev, err := c.Open(ctx)
			if err != nil {
				if errors.Is(err, ErrNoDevice) {
					r.logger.Debug("candidate has no display", "id", c.ID, "error", err)
				} else {
					r.logger.Warn("opening device failed", "id", c.ID, "error", err)
				}
				delete(present, c.ID)
				continue
			}

			r.mu.Lock()
			r.devices[c.ID] = entry{dev: dev, source: i}
			r.mu.Unlock()
			diff.Added = append(diff.Added, dev)
			r.logger.Info("display added", "id", c.ID, "kind", dev.Kind())
		}
	}

	r.mu.Lock()
	for id, e := range r.devices {
		if present[id] || failed[e.source] {
			continue
		}
		delete(r.devices, id)
		diff.Removed = append(diff.Removed, e.dev)
		r.logger.Info("display removed", "id", id)
	}
	r.mu.Unlock()

	return diff, errors.Join(errs...)
}

// Get returns the device with the given id.
func (r *Registry) Get(id ID) (Device, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.devices[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrDeviceNotFound, id)
	}
	return e.dev, nil
}

// IDs returns the registered ids in sorted order.
func (r *Registry) IDs() []ID {
	r.mu.RLock()
	ids := make([]ID, 0, len(r.devices))
	for id := range r.devices {
		ids = append(ids, id)
	}
	r.mu.RUnlock()

	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// All yields the registered devices in id order. The sequence walks a
// snapshot taken when iteration starts and can be ranged over repeatedly.
func (r *Registry) All() iter.Seq2[ID, Device] {
	return func(yield func(ID, Device) bool) {
		for _, id := range r.IDs() {
			dev, err := r.Get(id)
			if err != nil {
				continue // removed since the snapshot
			}
			if !yield(id, dev) {
				return
			}
		}
	}
}

// Count returns the number of registered devices.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.devices)
}

// Close closes and forgets every registered device.
func (r *Registry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var errs []error
	for id, e := range r.devices {
		if err := e.dev.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing %s: %w", id, err))
		}
	}
	r.devices = make(map[ID]entry)
	return errors.Join(errs...)
}

func (r *Registry) accepts(id ID) bool {
	return r.filter == nil || r.filter.MatchString(string(id))
}
