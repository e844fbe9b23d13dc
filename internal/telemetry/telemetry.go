// Package telemetry records DDC/CI and backlight link transactions to a
// time-series store.
//
// One "link" point is written per hardware operation: tags display, kind,
// op and site; fields attempts, duration_ms and ok. Brightness values are
// never written.
package telemetry

import (
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/nerrad567/calibright/internal/engine"
)

// Measurement is the InfluxDB measurement name.
const Measurement = "link"

// PointWriter accepts points without blocking. *influxdb.Client
// implements it.
type PointWriter interface {
	WritePoint(p *write.Point)
}

// Recorder is an engine observer that writes link points.
type Recorder struct {
	w    PointWriter
	site string
}

// NewRecorder creates a recorder tagging every point with site.
func NewRecorder(w PointWriter, site string) *Recorder {
	return &Recorder{w: w, site: site}
}

// Observe writes a point for every link transaction event and ignores the
// rest. Pass it to engine.Subscribe.
func (r *Recorder) Observe(ev engine.Event) {
	if ev.Type != engine.EventLinkTransaction || ev.Transaction == nil {
		return
	}
	r.w.WritePoint(Point(r.site, ev))
}

// Point builds the link point for a transaction event.
func Point(site string, ev engine.Event) *write.Point {
	tx := ev.Transaction
	tags := map[string]string{
		"display": string(ev.DisplayID),
		"kind":    string(ev.Kind),
		"op":      tx.Op,
		"site":    site,
	}
	fields := map[string]any{
		"attempts":    tx.Attempts,
		"duration_ms": float64(tx.Duration.Microseconds()) / 1000,
		"ok":          tx.OK,
	}
	return write.NewPoint(Measurement, tags, fields, ev.Time)
}
