package configstore

import (
	"fmt"
	"maps"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nerrad567/calibright/internal/calibration"
	"github.com/nerrad567/calibright/internal/device"
)

// GlobalSection is the reserved table name for global settings.
const GlobalSection = "global"

// Snapshot is one published configuration. Never modified after
// publication.
type Snapshot struct {
	Version   uint64
	Global    calibration.DisplayConfig
	Overrides map[device.ID]calibration.DisplayConfig
	AppliedAt time.Time
}

// Effective is the configuration that applies to one display.
type Effective struct {
	ID         device.ID                 `json:"id"`
	Config     calibration.DisplayConfig `json:"config"`
	Overridden bool                      `json:"overridden"`
	Version    uint64                    `json:"version"`
}

// Store serves configuration snapshots to concurrent readers.
type Store struct {
	current atomic.Pointer[Snapshot]

	// writeMu serialises Replace; readers never take it.
	writeMu sync.Mutex
}

// NewStore returns a store serving the default configuration.
func NewStore() *Store {
	s := &Store{}
	s.current.Store(&Snapshot{
		Version:   1,
		Global:    calibration.Default(),
		Overrides: map[device.ID]calibration.DisplayConfig{},
		AppliedAt: time.Now(),
	})
	return s
}

// Current returns the published snapshot.
func (s *Store) Current() *Snapshot {
	return s.current.Load()
}

// EffectiveFor returns the configuration for id: its override if one
// exists, otherwise the global configuration.
func (s *Store) EffectiveFor(id device.ID) Effective {
	snap := s.current.Load()
	if cfg, ok := snap.Overrides[id]; ok {
		return Effective{ID: id, Config: cfg, Overridden: true, Version: snap.Version}
	}
	return Effective{ID: id, Config: snap.Global, Version: snap.Version}
}

// Replace resolves, validates and publishes a new configuration.
//
// Parameters:
//   - global: Global section, resolved against the built-in defaults
//   - overrides: Per-display sections, each resolved against the global
//
// Returns:
//   - bool: True if a new snapshot was published; false when the content
//     is identical to the current one
//   - error: *ValidationError (matching ErrInvalidConfig) listing every
//     problem; the current snapshot is kept
func (s *Store) Replace(global Section, overrides map[device.ID]Section) (bool, error) {
	resolvedGlobal := global.Resolve(calibration.Default())

	var problems []error
	if err := resolvedGlobal.Validate(); err != nil {
		problems = append(problems, fmt.Errorf("%s: %w", GlobalSection, err))
	}

	resolved := make(map[device.ID]calibration.DisplayConfig, len(overrides))
	for _, id := range sortedIDs(overrides) {
		if id == "" || id == GlobalSection {
			problems = append(problems, fmt.Errorf("%q: %w: reserved or empty display id", id, ErrInvalidConfig))
			continue
		}
		cfg := overrides[id].Resolve(resolvedGlobal)
		if err := cfg.Validate(); err != nil {
			problems = append(problems, fmt.Errorf("%s: %w", id, err))
			continue
		}
		resolved[id] = cfg
	}

	if len(problems) > 0 {
		return false, &ValidationError{Problems: problems}
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	prev := s.current.Load()
	if prev.Global == resolvedGlobal && maps.Equal(prev.Overrides, resolved) {
		return false, nil
	}

	s.current.Store(&Snapshot{
		Version:   prev.Version + 1,
		Global:    resolvedGlobal,
		Overrides: resolved,
		AppliedAt: time.Now(),
	})
	return true, nil
}

// ReplaceFile publishes the contents of a parsed configuration file.
func (s *Store) ReplaceFile(f File) (bool, error) {
	return s.Replace(f.Global, f.Displays)
}

func sortedIDs(m map[device.ID]Section) []device.ID {
	ids := make([]device.ID, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
