// Package metrics provides Prometheus metrics for the recognition pipeline.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// RecognitionMetrics covers the capture loop, the classifier and attendance
// writes. A nil *RecognitionMetrics is valid and records nothing.
type RecognitionMetrics struct {
	FramesCaptured     prometheus.Counter
	FrameReadFailures  prometheus.Counter
	FramesProcessed    prometheus.Counter
	FaceObservations   *prometheus.CounterVec
	AttendanceOutcomes *prometheus.CounterVec
	ProcessDuration    prometheus.Histogram
	GalleryIdentities  prometheus.Gauge
	TrainingSamples    prometheus.Gauge
	SessionActive      prometheus.Gauge
}

// NewRecognitionMetrics creates the metrics and registers them with registry.
func NewRecognitionMetrics(registry prometheus.Registerer) (*RecognitionMetrics, error) {
	m := &RecognitionMetrics{}
	m.initMetrics()
	if err := registry.Register(m); err != nil {
		return nil, fmt.Errorf("failed to register recognition metrics: %w", err)
	}
	return m, nil
}

func (m *RecognitionMetrics) initMetrics() {
	m.FramesCaptured = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "faceattend_frames_captured_total",
		Help: "Frames read from the camera.",
	})
	m.FrameReadFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "faceattend_frame_read_failures_total",
		Help: "Capture ticks where the camera returned no frame.",
	})
	m.FramesProcessed = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "faceattend_frames_processed_total",
		Help: "Frames run through detection and classification.",
	})
	m.FaceObservations = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "faceattend_face_observations_total",
		Help: "Detected faces partitioned by classification result.",
	}, []string{"result"})
	m.AttendanceOutcomes = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "faceattend_attendance_outcomes_total",
		Help: "Attendance observations partitioned by outcome.",
	}, []string{"outcome"})
	m.ProcessDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "faceattend_frame_process_duration_seconds",
		Help:    "Time taken to detect and classify faces in one frame.",
		Buckets: prometheus.ExponentialBuckets(0.001, 2, 10), // 1ms to ~1s
	})
	m.GalleryIdentities = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "faceattend_gallery_identities",
		Help: "Identities in the label table of the running session.",
	})
	m.TrainingSamples = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "faceattend_training_samples",
		Help: "Face samples the classifier was trained on.",
	})
	m.SessionActive = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "faceattend_session_active",
		Help: "1 while an attendance session is running.",
	})
}

// Describe implements prometheus.Collector.
func (m *RecognitionMetrics) Describe(ch chan<- *prometheus.Desc) {
	m.FramesCaptured.Describe(ch)
	m.FrameReadFailures.Describe(ch)
	m.FramesProcessed.Describe(ch)
	m.FaceObservations.Describe(ch)
	m.AttendanceOutcomes.Describe(ch)
	m.ProcessDuration.Describe(ch)
	m.GalleryIdentities.Describe(ch)
	m.TrainingSamples.Describe(ch)
	m.SessionActive.Describe(ch)
}

// Collect implements prometheus.Collector.
func (m *RecognitionMetrics) Collect(ch chan<- prometheus.Metric) {
	m.FramesCaptured.Collect(ch)
	m.FrameReadFailures.Collect(ch)
	m.FramesProcessed.Collect(ch)
	m.FaceObservations.Collect(ch)
	m.AttendanceOutcomes.Collect(ch)
	m.ProcessDuration.Collect(ch)
	m.GalleryIdentities.Collect(ch)
	m.TrainingSamples.Collect(ch)
	m.SessionActive.Collect(ch)
}

func (m *RecognitionMetrics) RecordFrameCaptured() {
	if m == nil {
		return
	}
	m.FramesCaptured.Inc()
}

func (m *RecognitionMetrics) RecordFrameReadFailure() {
	if m == nil {
		return
	}
	m.FrameReadFailures.Inc()
}

// RecordFrameProcessed counts one processed frame and its matched/unknown faces.
func (m *RecognitionMetrics) RecordFrameProcessed(duration time.Duration, matched, unknown int) {
	if m == nil {
		return
	}
	m.FramesProcessed.Inc()
	m.ProcessDuration.Observe(duration.Seconds())
	m.FaceObservations.WithLabelValues("matched").Add(float64(matched))
	m.FaceObservations.WithLabelValues("unknown").Add(float64(unknown))
}

func (m *RecognitionMetrics) RecordAttendanceOutcome(outcome string) {
	if m == nil {
		return
	}
	m.AttendanceOutcomes.WithLabelValues(outcome).Inc()
}

// SetModel publishes the size of the trained model.
func (m *RecognitionMetrics) SetModel(identities, samples int) {
	if m == nil {
		return
	}
	m.GalleryIdentities.Set(float64(identities))
	m.TrainingSamples.Set(float64(samples))
}

func (m *RecognitionMetrics) SetSessionActive(active bool) {
	if m == nil {
		return
	}
	if active {
		m.SessionActive.Set(1)
	} else {
		m.SessionActive.Set(0)
	}
}
