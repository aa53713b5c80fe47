// Package prometheus exports goPortal client metrics through
// client_golang. Register a [Collector] with any registry, or mount
// [Handler] for a standalone /metrics endpoint.
package prometheus
