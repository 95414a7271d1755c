package influxdb

import "errors"

// Telemetry is optional: callers treat ErrDisabled as "run without a
// Recorder" and anything else from Connect as fatal.
var (
	// ErrNotConnected is returned by HealthCheck before Connect or after Close.
	ErrNotConnected = errors.New("influxdb: not connected")

	// ErrConnectionFailed wraps a failed or unhealthy startup ping.
	ErrConnectionFailed = errors.New("influxdb: connection failed")

	// ErrWriteFailed wraps batch write errors passed to the SetOnError callback.
	ErrWriteFailed = errors.New("influxdb: write failed")

	// ErrDisabled is returned by Connect when influxdb.enabled is false.
	ErrDisabled = errors.New("influxdb: disabled in configuration")
)
