// Package metrics exposes tracking counters and gauges to Prometheus.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ayusman/mudra/internal/tracking"
)

const namespace = "mudra"

// Recorder owns a private registry. It implements tracking.Listener, so
// subscribing it to a tracker is all the wiring frame metrics need.
type Recorder struct {
	registry *prometheus.Registry

	frames         prometheus.Counter
	lost           prometheus.Counter
	detectErrors   prometheus.Counter
	detected       prometheus.Gauge
	targetOpenness prometheus.Gauge
	detectDuration prometheus.Histogram
}

// NewRecorder registers the tracking metrics. smoothed, when non-nil, is
// sampled at scrape time for the smoothed openness gauge.
func NewRecorder(smoothed func() float64) *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		frames: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_total",
			Help:      "Detector frames processed by the tracker.",
		}),
		lost: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "hand_lost_total",
			Help:      "Processed frames without a hand.",
		}),
		detectErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "detect_errors_total",
			Help:      "Frames dropped because detection failed.",
		}),
		detected: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "hand_detected",
			Help:      "1 while the latest frame contains a hand.",
		}),
		targetOpenness: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "openness_target",
			Help:      "Unfiltered openness of the latest frame.",
		}),
		detectDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "detect_duration_seconds",
			Help:      "Time spent in the landmark detector per frame.",
			Buckets:   prometheus.ExponentialBuckets(0.002, 2, 10),
		}),
	}

	r.registry.MustRegister(r.frames, r.lost, r.detectErrors, r.detected, r.targetOpenness, r.detectDuration)

	if smoothed != nil {
		r.registry.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "openness_smoothed",
			Help:      "Smoothed openness as last ticked by a consumer.",
		}, smoothed))
	}
	return r
}

// HandUpdated records a frame with a hand.
func (r *Recorder) HandUpdated(s tracking.Snapshot) {
	r.frames.Inc()
	r.detected.Set(1)
	r.targetOpenness.Set(s.TargetOpenness)
}

// HandLost records a frame without a hand.
func (r *Recorder) HandLost() {
	r.frames.Inc()
	r.lost.Inc()
	r.detected.Set(0)
	r.targetOpenness.Set(0)
}

// DetectError records a dropped frame.
func (r *Recorder) DetectError() {
	r.detectErrors.Inc()
}

// ObserveDetect records one detector call.
func (r *Recorder) ObserveDetect(d time.Duration) {
	r.detectDuration.Observe(d.Seconds())
}

// Registry returns the private registry.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}
