package influxdb

import "errors"

// Sentinel errors for the metrics client, matchable with errors.Is.
var (
	// ErrNotConnected means the client has been closed or never connected.
	ErrNotConnected = errors.New("influxdb: not connected")

	// ErrConnectionFailed means the initial ping did not succeed.
	ErrConnectionFailed = errors.New("influxdb: connection failed")

	// ErrDisabled means metrics export is switched off in the configuration.
	// Callers treat this as "run without metrics", not as a fault.
	ErrDisabled = errors.New("influxdb: disabled in configuration")
)
