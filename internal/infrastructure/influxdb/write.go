package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// statsMeasurement holds one point per tester per sampling tick.
const statsMeasurement = "tester_stats"

// WriteStats records a snapshot of a tester's counters.
//
// protocol and endpoint become tags; fields carry the counters.
//
// Example:
//
//	client.WriteStats("mqtt", "mqtt://broker:1883",
//	    map[string]any{"messages_received": 42, "state": "connected"}, time.Now())
func (c *Client) WriteStats(protocol, endpoint string, fields map[string]any, at time.Time) {
	c.WritePoint(statsMeasurement, map[string]string{
		"protocol": protocol,
		"endpoint": endpoint,
	}, fields, at)
}

// WritePoint writes a custom point. Points written while not connected are
// dropped.
func (c *Client) WritePoint(measurement string, tags map[string]string, fields map[string]any, at time.Time) {
	if !c.IsConnected() || len(fields) == 0 {
		return
	}
	c.writeAPI.WritePoint(write.NewPoint(measurement, tags, fields, at))
	c.queued.Add(1)
}
