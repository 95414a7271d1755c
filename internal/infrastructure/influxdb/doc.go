// Package influxdb records robotlink session telemetry in InfluxDB.
//
// It wraps the official influxdb-client-go v2 library and implements the
// session package's Recorder interface.
//
// # Measurements
//
//   - session_dispatch: one point per inbound message
//     (tags topic, outcome, reason; fields tool_name, count)
//   - session_phase: one point per coordinator phase transition
//     (tag phase; fields elapsed_ms, failed, error)
//
// Every point is tagged with the robot name.
//
// # Usage
//
//	client, err := influxdb.Connect(ctx, cfg.InfluxDB, cfg.Robot.Name)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//	client.SetOnError(func(err error) { log.Warn("telemetry write failed", "error", err) })
//
// # Thread Safety
//
// All methods are safe for concurrent use. Writes are non-blocking and
// batched per the batch_size and flush_interval settings; batch failures are
// delivered to the SetOnError callback.
package influxdb
