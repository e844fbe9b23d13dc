package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// WritePoint queues p for the next batch. Points are dropped while the
// client is disconnected.
func (c *Client) WritePoint(p *write.Point) {
	if !c.IsConnected() {
		return
	}
	c.writeAPI.WritePoint(p)
}

// Write queues a point built from its parts.
//
// Example:
//
//	client.Write("link",
//	    map[string]string{"display": "ddcci6", "op": "set"},
//	    map[string]any{"attempts": 2, "ok": true},
//	    time.Now())
func (c *Client) Write(measurement string, tags map[string]string, fields map[string]any, ts time.Time) {
	c.WritePoint(write.NewPoint(measurement, tags, fields, ts))
}
