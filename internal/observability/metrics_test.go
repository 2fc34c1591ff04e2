package observability

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
)

func TestRecordFrameCountsAndObserves(t *testing.T) {
	reg := prometheus.NewRegistry()
	collector, err := NewFrameCollector(reg)
	if err != nil {
		t.Fatalf("NewFrameCollector: %v", err)
	}

	collector.RecordFrame(2 * time.Millisecond)
	collector.RecordFrame(3 * time.Millisecond)

	if got := testutil.ToFloat64(collector.FramesTotal); got != 2 {
		t.Fatalf("orrery_frames_total = %v, want 2", got)
	}
	if count := histogramSampleCount(t, reg, "orrery_frame_duration_seconds"); count != 2 {
		t.Fatalf("orrery_frame_duration_seconds sample_count = %d, want 2", count)
	}
}

func TestInputCountersByKind(t *testing.T) {
	reg := prometheus.NewRegistry()
	collector, err := NewFrameCollector(reg)
	if err != nil {
		t.Fatalf("NewFrameCollector: %v", err)
	}

	collector.ObserveInput("wheel")
	collector.ObserveInput("wheel")
	collector.ObserveInput("pointer_move")
	collector.IncDroppedInput()

	if got := testutil.ToFloat64(collector.InputEvents.WithLabelValues("wheel")); got != 2 {
		t.Fatalf("wheel events = %v, want 2", got)
	}
	if got := testutil.ToFloat64(collector.InputEvents.WithLabelValues("pointer_move")); got != 1 {
		t.Fatalf("pointer_move events = %v, want 1", got)
	}
	if got := testutil.ToFloat64(collector.DroppedInputEvents); got != 1 {
		t.Fatalf("dropped events = %v, want 1", got)
	}
}

func TestRegisteringTwiceReusesCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	first, err := NewFrameCollector(reg)
	if err != nil {
		t.Fatalf("first NewFrameCollector: %v", err)
	}
	second, err := NewFrameCollector(reg)
	if err != nil {
		t.Fatalf("second NewFrameCollector: %v", err)
	}
	first.RecordFrame(time.Millisecond)
	if got := testutil.ToFloat64(second.FramesTotal); got != 1 {
		t.Fatalf("second collector should share counters, got %v", got)
	}
}

func TestNilCollectorIsSafe(t *testing.T) {
	var c *FrameCollector
	c.RecordFrame(time.Millisecond)
	c.SetSceneBodies(3)
	c.SetCameraDistance(1)
	c.ObserveInput("wheel")
	c.IncDroppedInput()
	c.SetFeedClients(1)
}

func TestMetricsHandlerExposesGauges(t *testing.T) {
	reg := prometheus.NewRegistry()
	collector, err := NewFrameCollector(reg)
	if err != nil {
		t.Fatalf("NewFrameCollector: %v", err)
	}
	collector.SetSceneBodies(13)
	collector.SetCameraDistance(10.5)
	collector.SetFeedClients(2)
	collector.ObserveInput("wheel")

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rr := httptest.NewRecorder()
	collector.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("/metrics status = %d, want 200", rr.Code)
	}
	body := rr.Body.String()
	for _, want := range []string{
		"orrery_scene_bodies 13",
		"orrery_camera_distance 10.5",
		"orrery_feed_clients 2",
		`orrery_input_events_total{kind="wheel"} 1`,
	} {
		if !strings.Contains(body, want) {
			t.Fatalf("expected %q in /metrics output:\n%s", want, body)
		}
	}
}

func histogramSampleCount(t *testing.T, gatherer prometheus.Gatherer, name string) uint64 {
	t.Helper()

	metrics, err := gatherer.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}
	for _, mf := range metrics {
		if mf.GetName() != name || mf.GetType() != dto.MetricType_HISTOGRAM {
			continue
		}
		for _, m := range mf.Metric {
			if h := m.GetHistogram(); h != nil {
				return h.GetSampleCount()
			}
		}
	}
	return 0
}
