// Package logging provides structured logging for the Instar bridge.
//
// It wraps log/slog so that every record carries the service name and
// build version. JSON output is the default; "text" is available for
// development.
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, text
//	  output: "stdout"   # stdout, stderr
//
// Consumers normally depend on a small Logger interface of their own
// (Debug/Info/Warn/Error) rather than on this concrete type.
//
// Never log MQTT passwords or InfluxDB tokens.
package logging
