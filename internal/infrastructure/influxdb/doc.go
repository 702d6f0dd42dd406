// Package influxdb writes tester statistics to InfluxDB v2.
//
// It wraps the official influxdb-client-go v2 library. Each sampling tick
// of the telemetry package becomes one tester_stats point tagged with the
// protocol and endpoint, so connection quality can be charted over time.
//
// # Usage
//
//	client, err := influxdb.Connect(cfg.InfluxDB)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	client.WriteStats("websocket", "wss://echo.example", fields, time.Now())
//
// Writes are non-blocking and batched according to batch_size and
// flush_interval. Batch failures are reported through SetOnError.
package influxdb
