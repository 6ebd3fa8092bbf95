package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// Measurement names.
const (
	MeasurementRelay     = "relay_commands"
	MeasurementLockEvent = "lock_events"
)

// RecordRelay writes one relay_commands point. It satisfies relay.Metrics.
//
// Parameters:
//   - mac: lock MAC (tag)
//   - outcome: "ok", "unreachable" or "relay_error" (tag)
//   - latency: time from command start to response or failure
//   - responseBytes: size of the lock's response, 0 on failure
func (c *Client) RecordRelay(mac, outcome string, latency time.Duration, responseBytes int) {
	c.WritePoint(
		MeasurementRelay,
		map[string]string{
			"mac":     mac,
			"outcome": outcome,
		},
		map[string]any{
			"latency_ms":     float64(latency.Microseconds()) / 1000,
			"response_bytes": responseBytes,
		},
	)
}

// WriteLockEvent counts a lifecycle event for a lock, e.g. "registered",
// "checkin", "invite_created" or "authorization_granted".
func (c *Client) WriteLockEvent(mac, event string) {
	c.WritePoint(
		MeasurementLockEvent,
		map[string]string{
			"mac":   mac,
			"event": event,
		},
		map[string]any{"count": 1},
	)
}

// WritePoint writes a point timestamped now. Tags should be low cardinality.
func (c *Client) WritePoint(measurement string, tags map[string]string, fields map[string]any) {
	c.WritePointWithTime(measurement, tags, fields, time.Now())
}

// WritePointWithTime writes a point with an explicit timestamp.
func (c *Client) WritePointWithTime(measurement string, tags map[string]string, fields map[string]any, timestamp time.Time) {
	if !c.IsConnected() {
		return
	}
	c.writeAPI.WritePoint(write.NewPoint(measurement, tags, fields, timestamp))
}
