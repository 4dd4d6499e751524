package influxdb

import "errors"

// Errors returned by Connect and Client. Match them with errors.Is.
var (
	// ErrDisabled is returned by Connect when influxdb.enabled is false.
	// Callers treat it as "run without a time-series sink".
	ErrDisabled = errors.New("influxdb: disabled in configuration")

	ErrConnectionFailed = errors.New("influxdb: connection failed")

	ErrNotConnected = errors.New("influxdb: not connected")

	// ErrWriteFailed wraps errors from the asynchronous batch writer. They
	// reach the caller only through the SetOnError callback.
	ErrWriteFailed = errors.New("influxdb: write failed")
)
