// Package sinks holds the concrete progress consumers: a zap log sink and a
// Prometheus sink. Each satisfies progress.Sink.
package sinks
