package authcore

import (
	"context"
	"sync"
	"testing"
	"time"
)

func TestMetricsDisabledNoIncrement(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: false})
	m.Inc(MetricLoginSuccess)

	if got := m.Value(MetricLoginSuccess); got != 0 {
		t.Fatalf("expected 0, got %d", got)
	}
	if len(m.Snapshot().Counters) != 0 {
		t.Fatal("disabled metrics must snapshot empty")
	}
}

func TestMetricsEnabledIncrement(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: true})
	m.Inc(MetricAuthzDenied)
	m.Inc(MetricAuthzDenied)
	m.Inc(MetricAuthzDenied)

	if got := m.Value(MetricAuthzDenied); got != 3 {
		t.Fatalf("expected 3, got %d", got)
	}
}

func TestMetricsNilSafe(t *testing.T) {
	var m *Metrics
	m.Inc(MetricLoginSuccess)
	m.Observe(MetricVerifyLatency, time.Millisecond)
	if m.Enabled() || m.Value(MetricLoginSuccess) != 0 {
		t.Fatal("nil metrics must be inert")
	}
}

func TestMetricsConcurrentIncrementSafe(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: true})

	const goroutines = 32
	const perG = 4000

	var wg sync.WaitGroup
	wg.Add(goroutines)
	for i := 0; i < goroutines; i++ {
		go func() {
			defer wg.Done()
			for j := 0; j < perG; j++ {
				m.Inc(MetricVerifySuccess)
			}
		}()
	}
	wg.Wait()

	want := uint64(goroutines * perG)
	if got := m.Value(MetricVerifySuccess); got != want {
		t.Fatalf("expected %d, got %d", want, got)
	}
}

func TestMetricsHistogramBucketCorrectness(t *testing.T) {
	m := NewMetrics(MetricsConfig{
		Enabled:                 true,
		EnableLatencyHistograms: true,
	})

	observations := []time.Duration{
		5 * time.Millisecond,
		10 * time.Millisecond,
		25 * time.Millisecond,
		50 * time.Millisecond,
		100 * time.Millisecond,
		250 * time.Millisecond,
		500 * time.Millisecond,
		700 * time.Millisecond,
	}

	for _, d := range observations {
		m.Observe(MetricVerifyLatency, d)
	}
	// Only the verify latency histogram exists.
	m.Observe(MetricLoginSuccess, time.Millisecond)

	snap := m.Snapshot()
	buckets := snap.Histograms[MetricVerifyLatency]
	if len(buckets) != 8 {
		t.Fatalf("expected 8 buckets, got %d", len(buckets))
	}
	for i, v := range buckets {
		if v != 1 {
			t.Fatalf("bucket %d expected 1, got %d", i, v)
		}
	}
	if len(snap.Histograms) != 1 {
		t.Fatalf("expected one histogram, got %d", len(snap.Histograms))
	}
}

func TestServiceRecordsVerifyMetrics(t *testing.T) {
	cfg := testConfig()
	cfg.Metrics.EnableLatencyHistograms = true
	env := newTestEnv(t, cfg, nil)
	ctx := context.Background()

	token, _, err := env.svc.IssueAccess(ctx, "u-1", "one", nil, nil)
	if err != nil {
		t.Fatalf("IssueAccess failed: %v", err)
	}
	_, _ = env.svc.Verify(ctx, token, KindAccess)
	_, _ = env.svc.Verify(ctx, "garbage", KindAccess)
	env.clock.Advance(time.Hour)
	_, _ = env.svc.Verify(ctx, token, KindAccess)

	snap := env.svc.MetricsSnapshot()
	checks := map[MetricID]uint64{
		MetricAccessIssued:  1,
		MetricVerifySuccess: 1,
		MetricVerifyInvalid: 1,
		MetricVerifyExpired: 1,
	}
	for id, want := range checks {
		if got := snap.Counters[id]; got != want {
			t.Fatalf("metric %d = %d, want %d", id, got, want)
		}
	}

	var total uint64
	for _, v := range snap.Histograms[MetricVerifyLatency] {
		total += v
	}
	if total != 3 {
		t.Fatalf("expected 3 latency observations, got %d", total)
	}
}
