package observe

import (
	"context"
	"errors"
	"testing"
	"time"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

// newTestMetrics returns a Metrics instance backed by a ManualReader for
// programmatic metric inspection.
func newTestMetrics(t *testing.T) (*Metrics, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })

	m, err := NewMetrics(mp)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	return m, reader
}

func collect(t *testing.T, reader *sdkmetric.ManualReader) metricdata.ResourceMetrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect: %v", err)
	}
	return rm
}

func findMetric(rm metricdata.ResourceMetrics, name string) *metricdata.Metrics {
	for _, sm := range rm.ScopeMetrics {
		for i := range sm.Metrics {
			if sm.Metrics[i].Name == name {
				return &sm.Metrics[i]
			}
		}
	}
	return nil
}

// sumWhere returns the value of the first int64 sum data point carrying
// key=value, and whether one was found.
func sumWhere(t *testing.T, met *metricdata.Metrics, key, value string) (int64, bool) {
	t.Helper()
	sum, ok := met.Data.(metricdata.Sum[int64])
	if !ok {
		t.Fatalf("metric %q is not an int64 sum", met.Name)
	}
	for _, dp := range sum.DataPoints {
		for _, kv := range dp.Attributes.ToSlice() {
			if string(kv.Key) == key && kv.Value.AsString() == value {
				return dp.Value, true
			}
		}
	}
	return 0, false
}

func TestRecordNarration(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.RecordNarration(ctx, 1200*time.Millisecond, nil)
	m.RecordNarration(ctx, 3*time.Second, nil)
	m.RecordNarration(ctx, 50*time.Millisecond, errors.New("boom"))

	met := findMetric(collect(t, reader), "periodix.narration.duration")
	if met == nil {
		t.Fatal("metric not found")
	}
	hist, ok := met.Data.(metricdata.Histogram[float64])
	if !ok {
		t.Fatal("metric is not a histogram")
	}
	counts := map[string]uint64{}
	for _, dp := range hist.DataPoints {
		v, _ := dp.Attributes.Value("status")
		counts[v.AsString()] = dp.Count
	}
	if counts["ok"] != 2 || counts["error"] != 1 {
		t.Errorf("counts = %v, want ok=2 error=1", counts)
	}
}

func TestProviderCounters(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.RecordProviderRequest(ctx, "gemini", "ok")
	m.RecordProviderRequest(ctx, "gemini", "ok")
	m.RecordProviderRequest(ctx, "gemini", "error")
	m.RecordProviderError(ctx, "gemini", "synthesize")

	rm := collect(t, reader)

	req := findMetric(rm, "periodix.provider.requests")
	if req == nil {
		t.Fatal("requests metric not found")
	}
	if v, ok := sumWhere(t, req, "status", "ok"); !ok || v != 2 {
		t.Errorf("ok requests = %d (found %v), want 2", v, ok)
	}

	errs := findMetric(rm, "periodix.provider.errors")
	if errs == nil {
		t.Fatal("errors metric not found")
	}
	if v, ok := sumWhere(t, errs, "kind", "synthesize"); !ok || v != 1 {
		t.Errorf("errors = %d (found %v), want 1", v, ok)
	}
}

func TestRecordQuestions(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.RecordQuestions(ctx, "quiz", 10)
	m.RecordQuestions(ctx, "game", 1)
	m.RecordQuestions(ctx, "game", 1)

	met := findMetric(collect(t, reader), "periodix.questions.generated")
	if met == nil {
		t.Fatal("metric not found")
	}
	if v, _ := sumWhere(t, met, "mode", "quiz"); v != 10 {
		t.Errorf("quiz = %d, want 10", v)
	}
	if v, _ := sumWhere(t, met, "mode", "game"); v != 2 {
		t.Errorf("game = %d, want 2", v)
	}
}

func TestActiveSessions(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.ActiveSessions.Add(ctx, 1)
	m.ActiveSessions.Add(ctx, 1)
	m.ActiveSessions.Add(ctx, -1)

	met := findMetric(collect(t, reader), "periodix.active_sessions")
	if met == nil {
		t.Fatal("metric not found")
	}
	sum, ok := met.Data.(metricdata.Sum[int64])
	if !ok || len(sum.DataPoints) == 0 {
		t.Fatal("no sum data points")
	}
	if got := sum.DataPoints[0].Value; got != 1 {
		t.Errorf("active sessions = %d, want 1", got)
	}
}

func TestDefaultMetrics_ReturnsSameInstance(t *testing.T) {
	if DefaultMetrics() != DefaultMetrics() {
		t.Error("DefaultMetrics returned different pointers")
	}
}
