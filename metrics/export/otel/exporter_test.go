package otel

import (
	"context"
	"sync"
	"testing"

	"github.com/atulya-tantra/authcore"
	"github.com/atulya-tantra/authcore/metrics/export/internaldefs"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

type fakeSource struct {
	mu       sync.RWMutex
	snapshot authcore.MetricsSnapshot
	dropped  uint64
}

func (f *fakeSource) MetricsSnapshot() authcore.MetricsSnapshot {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := authcore.MetricsSnapshot{
		Counters:   make(map[authcore.MetricID]uint64, len(f.snapshot.Counters)),
		Histograms: make(map[authcore.MetricID][]uint64, len(f.snapshot.Histograms)),
	}
	for k, v := range f.snapshot.Counters {
		out.Counters[k] = v
	}
	for k, buckets := range f.snapshot.Histograms {
		next := make([]uint64, len(buckets))
		copy(next, buckets)
		out.Histograms[k] = next
	}
	return out
}

func (f *fakeSource) AuditDropped() uint64 {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.dropped
}

func newTestMeter() (*sdkmetric.ManualReader, *sdkmetric.MeterProvider) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	return reader, provider
}

// int64Value finds the data point of the named metric whose attributes
// include every key/value pair in attrs. Pass no pairs for unattributed
// instruments.
func int64Value(t *testing.T, rm metricdata.ResourceMetrics, name string, attrs ...attribute.KeyValue) (int64, bool) {
	t.Helper()
	match := func(set attribute.Set) bool {
		for _, kv := range attrs {
			v, ok := set.Value(kv.Key)
			if !ok || v.Emit() != kv.Value.Emit() {
				return false
			}
		}
		return true
	}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != name {
				continue
			}
			switch data := m.Data.(type) {
			case metricdata.Sum[int64]:
				for _, dp := range data.DataPoints {
					if match(dp.Attributes) {
						return dp.Value, true
					}
				}
			case metricdata.Gauge[int64]:
				for _, dp := range data.DataPoints {
					if match(dp.Attributes) {
						return dp.Value, true
					}
				}
			default:
				t.Fatalf("unexpected data type %T for %s", m.Data, name)
			}
		}
	}
	return 0, false
}

func TestCounterGroupsCoverEveryCounter(t *testing.T) {
	seen := make(map[authcore.MetricID]int)
	for _, g := range counterGroups {
		for _, s := range g.series {
			seen[s.id]++
		}
	}
	for _, def := range internaldefs.CounterDefs {
		if seen[def.ID] != 1 {
			t.Fatalf("%s appears %d times in counterGroups", def.Name, seen[def.ID])
		}
	}
	if len(seen) != len(internaldefs.CounterDefs) {
		t.Fatalf("counterGroups has %d series, want %d", len(seen), len(internaldefs.CounterDefs))
	}
}

func TestExporterRegistersAndCollects(t *testing.T) {
	reader, provider := newTestMeter()
	meter := provider.Meter("authcore-test")

	src := &fakeSource{
		snapshot: authcore.MetricsSnapshot{
			Counters: map[authcore.MetricID]uint64{
				authcore.MetricVerifyInvalid: 3,
			},
			Histograms: map[authcore.MetricID][]uint64{
				authcore.MetricVerifyLatency: {1, 1, 1, 1, 1, 1, 1, 1},
			},
		},
		dropped: 1,
	}

	exp, err := NewExporter(meter, src)
	if err != nil {
		t.Fatalf("NewExporter failed: %v", err)
	}
	defer func() {
		if err := exp.Close(); err != nil {
			t.Fatalf("Close failed: %v", err)
		}
	}()

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect failed: %v", err)
	}

	checks := []struct {
		name  string
		attrs []attribute.KeyValue
		want  int64
	}{
		{"authcore.tokens.verified", []attribute.KeyValue{attribute.String("outcome", "invalid")}, 3},
		{"authcore.audit.dropped", nil, 1},
		{"authcore.tokens.verify.latency.bucket", []attribute.KeyValue{attribute.Float64("le", 0.005)}, 1},
		{"authcore.tokens.verify.latency.bucket", []attribute.KeyValue{attribute.Float64("le", 0.1)}, 5},
		{"authcore.tokens.verify.latency.bucket", []attribute.KeyValue{attribute.String("le", "+Inf")}, 8},
		{"authcore.tokens.verify.latency.count", nil, 8},
	}
	for _, c := range checks {
		got, ok := int64Value(t, rm, c.name, c.attrs...)
		if !ok {
			t.Fatalf("metric %s %v not collected", c.name, c.attrs)
		}
		if got != c.want {
			t.Fatalf("%s %v = %d, want %d", c.name, c.attrs, got, c.want)
		}
	}

	// Only counters present in the snapshot are reported.
	if _, ok := int64Value(t, rm, "authcore.tokens.verified", attribute.String("outcome", "success")); ok {
		t.Fatal("absent counter must not be observed")
	}
}

func TestExporterWithLiveService(t *testing.T) {
	reader, provider := newTestMeter()

	cfg := authcore.DefaultConfig()
	cfg.JWT.PrivateKey = []byte("0123456789abcdef0123456789abcdef")
	cfg.Password.Memory = 8 * 1024
	cfg.Password.Time = 1
	cfg.Password.Parallelism = 1
	svc, err := authcore.New().WithConfig(cfg).Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	defer svc.Close()

	exp, err := NewExporter(provider.Meter("authcore-test"), svc)
	if err != nil {
		t.Fatalf("NewExporter failed: %v", err)
	}
	defer exp.Close()

	if _, _, err := svc.IssueAccess(context.Background(), "u-1", "one", nil, nil); err != nil {
		t.Fatalf("IssueAccess failed: %v", err)
	}

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect failed: %v", err)
	}
	if got, ok := int64Value(t, rm, "authcore.tokens.issued", attribute.String("kind", "access")); !ok || got != 1 {
		t.Fatalf("tokens.issued{kind=access} = %d, %v", got, ok)
	}
	if got, ok := int64Value(t, rm, "authcore.tokens.issued", attribute.String("kind", "refresh")); !ok || got != 0 {
		t.Fatalf("tokens.issued{kind=refresh} = %d, %v", got, ok)
	}
}

func TestExporterRejectsNil(t *testing.T) {
	_, provider := newTestMeter()
	meter := provider.Meter("authcore-test")

	if _, err := NewExporter(meter, nil); err == nil {
		t.Fatal("expected error for nil source")
	}
	if _, err := NewExporter(nil, &fakeSource{}); err == nil {
		t.Fatal("expected error for nil meter")
	}
}

func TestExporterConcurrentCollectNoPanic(t *testing.T) {
	reader, provider := newTestMeter()
	meter := provider.Meter("authcore-test")

	src := &fakeSource{
		snapshot: authcore.MetricsSnapshot{
			Counters: map[authcore.MetricID]uint64{
				authcore.MetricLoginSuccess: 1,
			},
			Histograms: map[authcore.MetricID][]uint64{
				authcore.MetricVerifyLatency: {1, 0, 0, 0, 0, 0, 0, 0},
			},
		},
	}

	exp, err := NewExporter(meter, src)
	if err != nil {
		t.Fatalf("NewExporter failed: %v", err)
	}
	defer func() {
		if err := exp.Close(); err != nil {
			t.Fatalf("Close failed: %v", err)
		}
	}()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(v uint64) {
			defer wg.Done()
			src.mu.Lock()
			src.snapshot.Counters[authcore.MetricLoginSuccess] = v
			src.mu.Unlock()

			var rm metricdata.ResourceMetrics
			_ = reader.Collect(context.Background(), &rm)
		}(uint64(i + 1))
	}
	wg.Wait()
}
