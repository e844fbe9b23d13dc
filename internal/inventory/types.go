package inventory

import (
	"time"

	"github.com/nerrad567/calibright/internal/device"
)

// Display is one row of the display inventory.
type Display struct {
	ID        device.ID   `json:"id"`
	Kind      device.Kind `json:"kind"`
	FirstSeen time.Time   `json:"first_seen"`
	LastSeen  time.Time   `json:"last_seen"`
	Present   bool        `json:"present"`
}

// Reload is one calibration reload attempt.
type Reload struct {
	ID        string    `json:"id"`
	AppliedAt time.Time `json:"applied_at"`
	Source    string    `json:"source"`
	Accepted  bool      `json:"accepted"`
	Changed   bool      `json:"changed"`
	Version   uint64    `json:"version"`
	Error     string    `json:"error,omitempty"`
}

const (
	// DefaultReloadLimit is the page size when ListReloads is given none.
	DefaultReloadLimit = 50

	// MaxReloadLimit caps ListReloads.
	MaxReloadLimit = 500
)
