package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecognitionMetricsRecord(t *testing.T) {
	registry := prometheus.NewRegistry()
	m, err := NewRecognitionMetrics(registry)
	require.NoError(t, err)

	m.RecordFrameCaptured()
	m.RecordFrameCaptured()
	m.RecordFrameReadFailure()
	m.RecordFrameProcessed(5*time.Millisecond, 2, 1)
	m.RecordAttendanceOutcome("recorded")
	m.SetModel(3, 7)
	m.SetSessionActive(true)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.FramesCaptured))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.FrameReadFailures))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.FramesProcessed))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.FaceObservations.WithLabelValues("matched")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.FaceObservations.WithLabelValues("unknown")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.AttendanceOutcomes.WithLabelValues("recorded")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.GalleryIdentities))
	assert.Equal(t, 7.0, testutil.ToFloat64(m.TrainingSamples))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SessionActive))
}

func TestRecognitionMetricsDoubleRegistrationFails(t *testing.T) {
	registry := prometheus.NewRegistry()
	_, err := NewRecognitionMetrics(registry)
	require.NoError(t, err)
	_, err = NewRecognitionMetrics(registry)
	assert.Error(t, err)
}

func TestNilRecognitionMetricsIsNoop(t *testing.T) {
	var m *RecognitionMetrics
	assert.NotPanics(t, func() {
		m.RecordFrameCaptured()
		m.RecordFrameProcessed(time.Millisecond, 1, 1)
		m.SetSessionActive(true)
	})
}
