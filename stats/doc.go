// Package stats provides the observability surface for the memoization
// engine: a counter/timing Sink with an OpenTelemetry implementation, a
// minimal structured logger for backend degradation reporting, and
// telemetry provider setup with pluggable exporters.
package stats
