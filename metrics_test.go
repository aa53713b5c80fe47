package goPortal

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/MrEthical07/goPortal/authapi"
	"github.com/MrEthical07/goPortal/pipeline"
)

func TestMetricsDisabled(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: false})
	m.Inc(MetricRequests)
	m.Observe(MetricRequestLatency, time.Millisecond)

	if m.Value(MetricRequests) != 0 {
		t.Fatalf("disabled metrics counted")
	}
	s := m.Snapshot()
	if len(s.Counters) != 0 || len(s.Histograms) != 0 {
		t.Fatalf("expected empty snapshot, got %+v", s)
	}

	var nilMetrics *Metrics
	nilMetrics.Inc(MetricRequests)
	if nilMetrics.Enabled() || nilMetrics.Value(MetricRequests) != 0 {
		t.Fatalf("nil metrics misbehaved")
	}
}

func TestMetricsObserver(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: true, EnableLatencyHistograms: true})
	ctx := context.Background()

	m.OnRequest(ctx, pipeline.RequestInfo{StatusCode: 200, Duration: 3 * time.Millisecond})
	m.OnRequest(ctx, pipeline.RequestInfo{StatusCode: 401, Err: errors.New("401"), Duration: 40 * time.Millisecond})
	m.OnRequest(ctx, pipeline.RequestInfo{StatusCode: 200, Attempt: pipeline.AttemptResubmit, Duration: time.Second})
	m.OnRequest(ctx, pipeline.RequestInfo{Err: errors.New("dial"), Duration: time.Millisecond})
	m.OnRefresh(ctx, pipeline.RefreshInfo{Waiters: 3})
	m.OnRefresh(ctx, pipeline.RefreshInfo{Err: errors.New("rejected")})
	m.OnReset(ctx, pipeline.ResetInfo{Reason: pipeline.ResetRefreshFailed})

	want := map[MetricID]uint64{
		MetricRequests:        4,
		MetricRequestFailures: 1,
		MetricTransportErrors: 1,
		MetricAuthRejected:    1,
		MetricResubmits:       1,
		MetricRefreshSuccess:  1,
		MetricRefreshFailure:  1,
		MetricRefreshWaiters:  3,
		MetricSessionReset:    1,
	}
	s := m.Snapshot()
	for id, v := range want {
		if s.Counters[id] != v {
			t.Fatalf("counter %d = %d, want %d", id, s.Counters[id], v)
		}
	}

	buckets := s.Histograms[MetricRequestLatency]
	if len(buckets) != histBucketCount {
		t.Fatalf("buckets = %v", buckets)
	}
	if buckets[0] != 2 || buckets[3] != 1 || buckets[7] != 1 {
		t.Fatalf("unexpected buckets: %v", buckets)
	}
}

func TestMetricsOutcomes(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: true})
	m.recordOutcome(authapi.Outcome{Op: authapi.OpLogin})
	m.recordOutcome(authapi.Outcome{Op: authapi.OpLogin, Err: errors.New("401")})
	m.recordOutcome(authapi.Outcome{Op: authapi.OpLogout})
	m.recordOutcome(authapi.Outcome{Op: authapi.OpRegister, Err: errors.New("409")})
	m.recordOutcome(authapi.Outcome{Op: authapi.OpChangePassword})

	if m.Value(MetricLoginSuccess) != 1 || m.Value(MetricLoginFailure) != 1 || m.Value(MetricLogout) != 1 {
		t.Fatalf("login/logout counters wrong")
	}
	if m.Value(MetricRegister) != 0 || m.Value(MetricPasswordChange) != 1 {
		t.Fatalf("register/password counters wrong")
	}
}

func TestBucketIndex(t *testing.T) {
	cases := map[time.Duration]int{
		0:                      0,
		5 * time.Millisecond:   0,
		6 * time.Millisecond:   1,
		25 * time.Millisecond:  2,
		99 * time.Millisecond:  4,
		250 * time.Millisecond: 5,
		500 * time.Millisecond: 6,
		2 * time.Second:        7,
	}
	for d, want := range cases {
		if got := bucketIndex(d); got != want {
			t.Fatalf("bucketIndex(%v) = %d, want %d", d, got, want)
		}
	}
}
