// Package influxdb records session telemetry in InfluxDB v2.
//
// It wraps the official influxdb-client-go v2 library. Three measurements
// are written, all tagged with device_id:
//
//   - session_events: connect, connect failure, connection loss, disconnect
//   - session_messages: inbound state frames by outcome
//   - session_commands: commands handed to the broker
//
// A fourth measurement, duuxlink_runtime, holds the periodic session
// counts passed to ReportSessions. Device state values are not written.
//
// # Usage
//
//	client, err := influxdb.Connect(ctx, cfg.InfluxDB, func(err error) {
//	    logger.Error("influxdb write failed", "error", err)
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	sess.SetTelemetry(client)
//
// # Thread Safety
//
// All methods are safe for concurrent use. Writes are non-blocking and
// batched according to batch_size and flush_interval; asynchronous write
// errors are delivered to the callback passed to Connect.
package influxdb
