// Package sinks implements job event consumers: structured logging,
// Prometheus collectors and a message publisher for job outcomes. Each sink
// satisfies progress.Sink.
package sinks
