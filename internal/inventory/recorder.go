package inventory

import (
	"context"
	"time"

	"github.com/nerrad567/calibright/internal/engine"
)

// DefaultBuffer is the number of events a Recorder queues before dropping.
const DefaultBuffer = 256

// writeTimeout bounds each repository write.
const writeTimeout = 5 * time.Second

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

// Recorder writes display presence and reload outcomes from engine events
// to a Repository.
type Recorder struct {
	repo   Repository
	events chan engine.Event
	logger Logger
}

// NewRecorder creates a recorder with a queue of buffer events. A
// non-positive buffer selects DefaultBuffer.
func NewRecorder(repo Repository, buffer int) *Recorder {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	return &Recorder{
		repo:   repo,
		events: make(chan engine.Event, buffer),
		logger: noopLogger{},
	}
}

// SetLogger sets the logger for the recorder.
func (r *Recorder) SetLogger(logger Logger) {
	r.logger = logger
}

// Observe queues an event. It never blocks; events are dropped when the
// queue is full. Pass it to engine.Subscribe.
func (r *Recorder) Observe(ev engine.Event) {
	switch ev.Type {
	case engine.EventDisplayAdded, engine.EventDisplayRemoved,
		engine.EventConfigReloaded, engine.EventConfigRejected:
	default:
		return
	}
	select {
	case r.events <- ev:
	default:
		r.logger.Warn("inventory queue full, dropping event", "type", ev.Type, "display", ev.DisplayID)
	}
}

// Run writes queued events until ctx is cancelled, then writes whatever is
// still queued.
func (r *Recorder) Run(ctx context.Context) error {
	for {
		select {
		case ev := <-r.events:
			r.write(ev)
		case <-ctx.Done():
			for {
				select {
				case ev := <-r.events:
					r.write(ev)
				default:
					return nil
				}
			}
		}
	}
}

func (r *Recorder) write(ev engine.Event) {
	// Writes outlive the Run context so the drain on shutdown completes.
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()

	var err error
	switch ev.Type {
	case engine.EventDisplayAdded:
		err = r.repo.UpsertSeen(ctx, ev.DisplayID, ev.Kind, ev.Time)
	case engine.EventDisplayRemoved:
		err = r.repo.MarkGone(ctx, ev.DisplayID, ev.Time)
	case engine.EventConfigReloaded, engine.EventConfigRejected:
		if ev.Reload == nil {
			return
		}
		err = r.repo.RecordReload(ctx, &Reload{
			AppliedAt: ev.Time,
			Source:    ev.Reload.Source,
			Accepted:  ev.Reload.Accepted,
			Changed:   ev.Reload.Changed,
			Version:   ev.Version,
			Error:     ev.Reload.Error,
		})
	}
	if err != nil {
		r.logger.Error("inventory write failed", "type", ev.Type, "display", ev.DisplayID, "error", err)
	}
}
