package inventory

import (
	"context"
	"testing"
	"time"

	"github.com/nerrad567/calibright/internal/device"
	"github.com/nerrad567/calibright/internal/engine"
)

func TestRecorder(t *testing.T) {
	repo := openTestRepo(t)
	rec := NewRecorder(repo, 0)

	now := time.Now()
	events := []engine.Event{
		{Type: engine.EventDisplayAdded, DisplayID: "ddcci6", Kind: device.KindDDCCI, Time: now},
		{Type: engine.EventDisplayAdded, DisplayID: "sim0", Kind: device.KindDDCCI, Time: now},
		{Type: engine.EventBrightnessChanged, DisplayID: "ddcci6", Time: now},
		{Type: engine.EventDisplayRemoved, DisplayID: "sim0", Kind: device.KindDDCCI, Time: now.Add(time.Second)},
		{Type: engine.EventConfigReloaded, Version: 3, Time: now, Reload: &engine.ReloadInfo{Source: engine.ReloadWatch, Accepted: true, Changed: true}},
		{Type: engine.EventConfigRejected, Version: 3, Time: now, Reload: &engine.ReloadInfo{Source: engine.ReloadAPI, Error: "bad"}},
	}
	for _, ev := range events {
		rec.Observe(ev)
	}

	// A cancelled context still drains the queue.
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := rec.Run(ctx); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	bg := context.Background()
	displays, err := repo.List(bg)
	if err != nil {
		t.Fatal(err)
	}
	if len(displays) != 2 {
		t.Fatalf("got %d displays, want 2", len(displays))
	}
	present := map[device.ID]bool{}
	for _, d := range displays {
		present[d.ID] = d.Present
	}
	if !present["ddcci6"] || present["sim0"] {
		t.Errorf("presence = %v", present)
	}

	reloads, err := repo.ListReloads(bg, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(reloads) != 2 {
		t.Fatalf("got %d reloads, want 2", len(reloads))
	}
	for _, r := range reloads {
		if r.Version != 3 {
			t.Errorf("reload %+v: version = %d, want 3", r, r.Version)
		}
	}
}

func TestRecorderDropsWhenFull(t *testing.T) {
	rec := NewRecorder(nil, 1)
	ev := engine.Event{Type: engine.EventDisplayAdded, DisplayID: "ddcci6"}

	done := make(chan struct{})
	go func() {
		rec.Observe(ev)
		rec.Observe(ev) // must not block
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Observe blocked on a full queue")
	}
	if len(rec.events) != 1 {
		t.Errorf("queued %d events, want 1", len(rec.events))
	}
}
