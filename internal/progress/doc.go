// Package progress carries live sweep telemetry from the orchestrator to
// pluggable sinks. Emitters never block: events are buffered on a channel,
// batched by a background goroutine, and fanned out to sinks such as
// structured logs and Prometheus collectors.
package progress
