package internaldefs

import (
	goPortal "github.com/MrEthical07/goPortal"
)

// CounterDef names one exported counter.
type CounterDef struct {
	ID   goPortal.MetricID
	Name string
	Help string
}

// HistogramDef names one exported histogram.
type HistogramDef struct {
	ID   goPortal.MetricID
	Name string
	Help string
}

// CounterDefs lists every exported counter in exposition order.
var CounterDefs = []CounterDef{
	{ID: goPortal.MetricRequests, Name: "goportal_requests_total", Help: "HTTP exchanges with the portal API, resubmissions included."},
	{ID: goPortal.MetricRequestFailures, Name: "goportal_request_failures_total", Help: "Exchanges answered with a non-2xx status."},
	{ID: goPortal.MetricTransportErrors, Name: "goportal_transport_errors_total", Help: "Exchanges that produced no response."},
	{ID: goPortal.MetricAuthRejected, Name: "goportal_auth_rejected_total", Help: "First attempts answered with 401 or 403."},
	{ID: goPortal.MetricResubmits, Name: "goportal_resubmits_total", Help: "Requests sent again after a token refresh."},
	{ID: goPortal.MetricRefreshSuccess, Name: "goportal_refresh_success_total", Help: "Refresh cycles that produced an access token."},
	{ID: goPortal.MetricRefreshFailure, Name: "goportal_refresh_failure_total", Help: "Refresh cycles that failed."},
	{ID: goPortal.MetricRefreshWaiters, Name: "goportal_refresh_waiters_total", Help: "Callers queued behind an in-flight refresh."},
	{ID: goPortal.MetricSessionReset, Name: "goportal_session_reset_total", Help: "Session teardowns."},
	{ID: goPortal.MetricLoginSuccess, Name: "goportal_login_success_total", Help: "Successful sign-ins."},
	{ID: goPortal.MetricLoginFailure, Name: "goportal_login_failure_total", Help: "Failed sign-ins."},
	{ID: goPortal.MetricLogout, Name: "goportal_logout_total", Help: "Sign-outs."},
	{ID: goPortal.MetricRegister, Name: "goportal_register_total", Help: "Successful registrations."},
	{ID: goPortal.MetricPasswordChange, Name: "goportal_password_change_total", Help: "Successful password changes."},
	{ID: goPortal.MetricPasswordReset, Name: "goportal_password_reset_total", Help: "Successful password resets."},
}

// HistogramDefs lists every exported histogram.
var HistogramDefs = []HistogramDef{
	{ID: goPortal.MetricRequestLatency, Name: "goportal_request_latency_seconds", Help: "Portal API request latency."},
}

// EventsDroppedName is the counter of events dropped under backpressure.
const EventsDroppedName = "goportal_events_dropped_total"

// HistogramUpperBounds are the finite bucket bounds in seconds.
var HistogramUpperBounds = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5}

// HistogramBoundSuffix names each bucket, +Inf last.
var HistogramBoundSuffix = []string{
	"0_005",
	"0_01",
	"0_025",
	"0_05",
	"0_1",
	"0_25",
	"0_5",
	"inf",
}

// NormalizeBuckets copies raw into a fixed-size array, zero-filling.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

// CumulativeBuckets converts per-bucket counts to running totals.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
