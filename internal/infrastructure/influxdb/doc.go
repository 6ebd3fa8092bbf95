// Package influxdb records doorlock telemetry in InfluxDB.
//
// It wraps the official influxdb-client-go v2 library for connection
// management, batched non-blocking writes and health checks.
//
// # Measurements
//
//   - relay_commands: one point per relayed command, tagged by lock MAC and
//     outcome, with latency and response size fields
//   - lock_events: registrations, check-ins, invites and grants per lock
//
// # Usage
//
//	client, err := influxdb.Connect(ctx, cfg.InfluxDB)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	pool.SetMetrics(client)
//
// # Thread Safety
//
// All methods are safe for concurrent use from multiple goroutines.
// The underlying write API uses non-blocking batched writes.
//
// # Error Handling
//
// Write operations are non-blocking and batch errors are delivered via the
// SetOnError callback. Connection and health check errors are returned
// directly. Writes on a client that is not connected are dropped.
package influxdb
