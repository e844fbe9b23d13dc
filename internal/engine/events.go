package engine

import (
	"time"

	"github.com/nerrad567/calibright/internal/device"
)

// EventType names an engine event.
type EventType string

// Event types.
const (
	EventDisplayAdded      EventType = "display.added"
	EventDisplayRemoved    EventType = "display.removed"
	EventBrightnessChanged EventType = "brightness.changed"
	EventConfigReloaded    EventType = "config.reloaded"
	EventConfigRejected    EventType = "config.rejected"
	EventLinkTransaction   EventType = "link.transaction"
)

// Event is delivered to observers.
type Event struct {
	Type        EventType    `json:"type"`
	DisplayID   device.ID    `json:"display_id,omitempty"`
	Kind        device.Kind  `json:"kind,omitempty"`
	Brightness  *float64     `json:"brightness,omitempty"`
	Version     uint64       `json:"version,omitempty"`
	Transaction *Transaction `json:"transaction,omitempty"`
	Reload      *ReloadInfo  `json:"reload,omitempty"`
	Time        time.Time    `json:"time"`
}

// Transaction summarises one hardware operation on a display.
type Transaction struct {
	Op       string        `json:"op"`
	Attempts int           `json:"attempts"`
	Duration time.Duration `json:"duration_ns"`
	OK       bool          `json:"ok"`
	Error    string        `json:"error,omitempty"`
}

// ReloadInfo describes one configuration reload attempt.
type ReloadInfo struct {
	Source   string `json:"source"`
	Accepted bool   `json:"accepted"`
	Changed  bool   `json:"changed"`
	Error    string `json:"error,omitempty"`
}

// Observer receives engine events. Observers run synchronously on the
// goroutine that produced the event and must not block.
type Observer func(Event)

func (e *Engine) emit(ev Event) {
	if ev.Time.IsZero() {
		ev.Time = time.Now()
	}
	e.obsMu.RLock()
	observers := e.observers
	e.obsMu.RUnlock()

	for _, fn := range observers {
		fn(ev)
	}
}
