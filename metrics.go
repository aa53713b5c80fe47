package goPortal

import (
	"context"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/MrEthical07/goPortal/authapi"
	"github.com/MrEthical07/goPortal/pipeline"
)

// MetricID identifies one client counter or histogram.
type MetricID uint16

const (
	// MetricRequests counts HTTP exchanges, resubmissions included.
	MetricRequests MetricID = iota
	// MetricRequestFailures counts exchanges answered with a non-2xx status.
	MetricRequestFailures
	// MetricTransportErrors counts exchanges that produced no response.
	MetricTransportErrors
	// MetricAuthRejected counts first attempts answered with 401 or 403.
	MetricAuthRejected
	// MetricResubmits counts requests sent again after a refresh.
	MetricResubmits
	// MetricRefreshSuccess counts refresh cycles that produced a token.
	MetricRefreshSuccess
	// MetricRefreshFailure counts refresh cycles that failed.
	MetricRefreshFailure
	// MetricRefreshWaiters counts callers that queued behind a refresh.
	MetricRefreshWaiters
	// MetricSessionReset counts session teardowns of any reason.
	MetricSessionReset
	MetricLoginSuccess
	MetricLoginFailure
	MetricLogout
	MetricRegister
	MetricPasswordChange
	MetricPasswordReset
	// MetricRequestLatency is the request latency histogram.
	MetricRequestLatency
	metricIDCount
)

const (
	histBucketCount = 8
	cacheLineSize   = 64
)

type metricHistogram struct {
	buckets [histBucketCount]uint64
}

type paddedCounter struct {
	value uint64
	_     [cacheLineSize - 8]byte
}

// Metrics holds lock-free client counters. It implements [pipeline.Observer].
//
//	Concurrency: safe for use by multiple goroutines.
type Metrics struct {
	enabled       bool
	enableLatency bool
	counters      [metricIDCount]paddedCounter
	histograms    [metricIDCount]metricHistogram
}

// MetricsSnapshot is a point-in-time copy of [Metrics]. Histogram buckets are
// non-cumulative, bounded at 5, 10, 25, 50, 100, 250 and 500ms plus overflow.
type MetricsSnapshot struct {
	Counters   map[MetricID]uint64
	Histograms map[MetricID][]uint64
}

// NewMetrics returns metrics configured by cfg.
func NewMetrics(cfg MetricsConfig) *Metrics {
	return &Metrics{
		enabled:       cfg.Enabled,
		enableLatency: cfg.Enabled && cfg.EnableLatencyHistograms,
	}
}

// Enabled reports whether counters are recorded.
func (m *Metrics) Enabled() bool {
	return m != nil && m.enabled
}

// LatencyEnabled reports whether the latency histogram is recorded.
func (m *Metrics) LatencyEnabled() bool {
	return m != nil && m.enableLatency
}

// Inc adds one to id.
func (m *Metrics) Inc(id MetricID) {
	m.Add(id, 1)
}

// Add adds n to id.
func (m *Metrics) Add(id MetricID, n uint64) {
	if m == nil || !m.enabled || id >= metricIDCount || n == 0 {
		return
	}
	atomic.AddUint64(&m.counters[id].value, n)
}

// Observe records d in the histogram of id. Only [MetricRequestLatency]
// carries a histogram.
func (m *Metrics) Observe(id MetricID, d time.Duration) {
	if m == nil || !m.enabled || !m.enableLatency || id != MetricRequestLatency {
		return
	}
	atomic.AddUint64(&m.histograms[id].buckets[bucketIndex(d)], 1)
}

// Value returns the current count of id.
func (m *Metrics) Value(id MetricID) uint64 {
	if m == nil || id >= metricIDCount {
		return 0
	}
	return atomic.LoadUint64(&m.counters[id].value)
}

// Snapshot copies every counter. Disabled metrics yield empty maps.
func (m *Metrics) Snapshot() MetricsSnapshot {
	if m == nil || !m.enabled {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}

	s := MetricsSnapshot{
		Counters:   make(map[MetricID]uint64, int(metricIDCount)),
		Histograms: make(map[MetricID][]uint64, 1),
	}
	for id := MetricID(0); id < metricIDCount; id++ {
		if id == MetricRequestLatency {
			continue
		}
		s.Counters[id] = atomic.LoadUint64(&m.counters[id].value)
	}

	if m.enableLatency {
		buckets := make([]uint64, histBucketCount)
		for i := 0; i < histBucketCount; i++ {
			buckets[i] = atomic.LoadUint64(&m.histograms[MetricRequestLatency].buckets[i])
		}
		s.Histograms[MetricRequestLatency] = buckets
	}
	return s
}

func (m *Metrics) OnRequest(_ context.Context, info pipeline.RequestInfo) {
	m.Inc(MetricRequests)
	m.Observe(MetricRequestLatency, info.Duration)

	switch {
	case info.Err == nil:
	case info.StatusCode == 0:
		m.Inc(MetricTransportErrors)
	default:
		m.Inc(MetricRequestFailures)
	}
	if info.Attempt == pipeline.AttemptResubmit {
		m.Inc(MetricResubmits)
	} else if info.StatusCode == http.StatusUnauthorized || info.StatusCode == http.StatusForbidden {
		m.Inc(MetricAuthRejected)
	}
}

func (m *Metrics) OnRefresh(_ context.Context, info pipeline.RefreshInfo) {
	if info.Err != nil {
		m.Inc(MetricRefreshFailure)
	} else {
		m.Inc(MetricRefreshSuccess)
	}
	if info.Waiters > 0 {
		m.Add(MetricRefreshWaiters, uint64(info.Waiters))
	}
}

func (m *Metrics) OnReset(context.Context, pipeline.ResetInfo) {
	m.Inc(MetricSessionReset)
}

func (m *Metrics) recordOutcome(out authapi.Outcome) {
	switch out.Op {
	case authapi.OpLogin:
		if out.Err != nil {
			m.Inc(MetricLoginFailure)
		} else {
			m.Inc(MetricLoginSuccess)
		}
	case authapi.OpLogout:
		m.Inc(MetricLogout)
	case authapi.OpRegister:
		if out.Err == nil {
			m.Inc(MetricRegister)
		}
	case authapi.OpChangePassword:
		if out.Err == nil {
			m.Inc(MetricPasswordChange)
		}
	case authapi.OpResetPassword:
		if out.Err == nil {
			m.Inc(MetricPasswordReset)
		}
	}
}

func bucketIndex(d time.Duration) int {
	ms := d.Milliseconds()

	switch {
	case ms <= 5:
		return 0
	case ms <= 10:
		return 1
	case ms <= 25:
		return 2
	case ms <= 50:
		return 3
	case ms <= 100:
		return 4
	case ms <= 250:
		return 5
	case ms <= 500:
		return 6
	default:
		return 7
	}
}
