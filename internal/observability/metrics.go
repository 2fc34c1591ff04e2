package observability

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// FrameCollector bundles Prometheus metrics for the frame loop, the input
// path and the live feed.
type FrameCollector struct {
	gatherer prometheus.Gatherer

	FramesTotal   prometheus.Counter
	FrameDuration prometheus.Histogram

	InputEvents        *prometheus.CounterVec
	DroppedInputEvents prometheus.Counter

	SceneBodies    prometheus.Gauge
	CameraDistance prometheus.Gauge
	FeedClients    prometheus.Gauge
}

// NewFrameCollector registers frame metrics against the provided registerer,
// defaulting to the global Prometheus registry when nil. Registering twice
// against the same registry returns the existing collectors.
func NewFrameCollector(reg prometheus.Registerer) (*FrameCollector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	frames, err := register(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "orrery_frames_total",
		Help: "Total number of frames rendered.",
	}), "orrery_frames_total")
	if err != nil {
		return nil, err
	}

	duration, err := register(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "orrery_frame_duration_seconds",
		Help:    "Time spent advancing bodies, updating the camera and rendering one frame.",
		Buckets: []float64{0.0001, 0.00025, 0.0005, 0.001, 0.0025, 0.005, 0.01, 0.016, 0.033, 0.1},
	}), "orrery_frame_duration_seconds")
	if err != nil {
		return nil, err
	}

	inputs, err := register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "orrery_input_events_total",
		Help: "Input events delivered to the camera controller, labeled by kind.",
	}, []string{"kind"}), "orrery_input_events_total")
	if err != nil {
		return nil, err
	}

	dropped, err := register(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "orrery_input_events_dropped_total",
		Help: "Input events discarded because the input queue was full.",
	}), "orrery_input_events_dropped_total")
	if err != nil {
		return nil, err
	}

	bodies, err := register(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "orrery_scene_bodies",
		Help: "Number of bodies in the scene, including the central body.",
	}), "orrery_scene_bodies")
	if err != nil {
		return nil, err
	}

	distance, err := register(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "orrery_camera_distance",
		Help: "Distance from the camera to its look-at target, in scene units.",
	}), "orrery_camera_distance")
	if err != nil {
		return nil, err
	}

	clients, err := register(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "orrery_feed_clients",
		Help: "Websocket clients currently subscribed to the frame feed.",
	}), "orrery_feed_clients")
	if err != nil {
		return nil, err
	}

	return &FrameCollector{
		gatherer:           gatherer,
		FramesTotal:        frames,
		FrameDuration:      duration,
		InputEvents:        inputs,
		DroppedInputEvents: dropped,
		SceneBodies:        bodies,
		CameraDistance:     distance,
		FeedClients:        clients,
	}, nil
}

// Handler exposes a ready-to-use /metrics handler.
func (c *FrameCollector) Handler() http.Handler {
	gatherer := c.gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// RecordFrame counts a frame and observes how long it took.
func (c *FrameCollector) RecordFrame(d time.Duration) {
	if c == nil {
		return
	}
	c.FramesTotal.Inc()
	c.FrameDuration.Observe(d.Seconds())
}

// SetSceneBodies updates the body gauge.
func (c *FrameCollector) SetSceneBodies(n int) {
	if c == nil {
		return
	}
	c.SceneBodies.Set(float64(n))
}

// SetCameraDistance updates the camera distance gauge.
func (c *FrameCollector) SetCameraDistance(d float64) {
	if c == nil {
		return
	}
	c.CameraDistance.Set(d)
}

// ObserveInput counts one delivered input event.
func (c *FrameCollector) ObserveInput(kind string) {
	if c == nil {
		return
	}
	c.InputEvents.WithLabelValues(kind).Inc()
}

// IncDroppedInput counts one discarded input event.
func (c *FrameCollector) IncDroppedInput() {
	if c == nil {
		return
	}
	c.DroppedInputEvents.Inc()
}

// SetFeedClients updates the websocket client gauge.
func (c *FrameCollector) SetFeedClients(n int) {
	if c == nil {
		return
	}
	c.FeedClients.Set(float64(n))
}

// register adds collector to reg, returning the already-registered instance
// when an identical collector exists.
func register[T prometheus.Collector](reg prometheus.Registerer, collector T, name string) (T, error) {
	if err := reg.Register(collector); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(T); ok {
				return existing, nil
			}
			var zero T
			return zero, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		var zero T
		return zero, err
	}
	return collector, nil
}
