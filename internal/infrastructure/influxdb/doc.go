// Package influxdb provides InfluxDB connectivity for link telemetry.
//
// It wraps the official influxdb-client-go v2 library: connection
// management, batched non-blocking writes and health checks. The
// telemetry package decides what is written; this package only moves
// points.
//
// # Usage
//
//	client, err := influxdb.Connect(ctx, cfg.InfluxDB)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	client.SetOnError(func(err error) {
//	    logger.Warn("influxdb write failed", "error", err)
//	})
package influxdb
