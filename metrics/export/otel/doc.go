// Package otel binds goPortal client metrics to OpenTelemetry instruments.
//
// [NewExporter] registers an Int64ObservableCounter per client counter and an
// Int64ObservableGauge per latency bucket. A single callback reads
// [goPortal.Client.MetricsSnapshot] on each collection cycle.
//
// # What this package must NOT do
//
//   - Own the MeterProvider (callers supply the Meter).
//   - Mutate client state.
package otel
