package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/camden-git/faceattend/attendance"
	"github.com/camden-git/faceattend/config"
	"github.com/camden-git/faceattend/media"
	"github.com/camden-git/faceattend/metrics"
	"github.com/camden-git/faceattend/models"
	"github.com/camden-git/faceattend/realtime"
	"github.com/camden-git/faceattend/repository"
	"github.com/camden-git/faceattend/workers"
)

var (
	ErrSessionRunning  = errors.New("an attendance session is already running")
	ErrNoActiveSession = errors.New("no attendance session is running")
)

// DetectorFactory builds a fresh detector for a session.
type DetectorFactory func() (media.Detector, error)

// SourceOpener opens the capture device for a session.
type SourceOpener func(source string) (workers.FrameSource, error)

// Status is what the service reports about the current or last session.
type Status struct {
	Session         attendance.Status `json:"session"`
	Camera          string            `json:"camera,omitempty"`
	Trained         bool              `json:"trained"`
	Identities      int               `json:"identities"`
	TrainingSamples int               `json:"training_samples"`
	FramesCaptured  int               `json:"frames_captured"`
}

type activeRun struct {
	loop       *workers.CaptureLoop
	detector   media.Detector
	classifier *media.LBPHClassifier
}

// RecognitionService owns the lifecycle of one attendance session at a
// time: train from the gallery, open the camera, run the capture loop and
// tear everything down on stop.
type RecognitionService struct {
	cfg     config.Config
	gallery *media.GalleryStore
	session *attendance.Session
	hub     *realtime.Hub
	metrics *metrics.RecognitionMetrics
	logger  *zap.Logger

	NewDetector DetectorFactory
	OpenSource  SourceOpener

	mu  sync.Mutex
	run *activeRun
}

func NewRecognitionService(
	cfg config.Config,
	gallery *media.GalleryStore,
	store repository.AttendanceStoreInterface,
	hub *realtime.Hub,
	m *metrics.RecognitionMetrics,
	logger *zap.Logger,
) *RecognitionService {
	s := &RecognitionService{
		cfg:     cfg,
		gallery: gallery,
		hub:     hub,
		metrics: m,
		logger:  logger.Named("recognition"),
	}
	s.session = attendance.NewSession(store, logger, attendance.Options{
		RetryFailedWrites: cfg.RetryFailedWrites,
		OnRecorded:        s.publishRecord,
	})
	s.NewDetector = func() (media.Detector, error) {
		return media.NewDetector(cfg, logger)
	}
	s.OpenSource = func(source string) (workers.FrameSource, error) {
		cam, err := media.OpenCamera(source)
		if err != nil {
			return nil, err
		}
		return cam, nil
	}
	return s
}

func (s *RecognitionService) publishRecord(record models.AttendanceRecord) {
	s.hub.Broadcast(realtime.Event{
		Type:      realtime.EventAttendanceRecorded,
		SessionID: s.session.Status().ID,
		Data: map[string]interface{}{
			"identity": record.Identity,
			"date":     record.Date(),
			"time":     record.TimeOfDay(),
		},
	})
}

func (s *RecognitionService) publishObservations(sessionID string) func([]models.FrameObservation) {
	return func(obs []models.FrameObservation) {
		if len(obs) == 0 {
			return
		}
		s.hub.Broadcast(realtime.Event{Type: realtime.EventObservations, SessionID: sessionID, Data: obs})
	}
}

// Start trains a fresh classifier from the gallery, opens the camera and
// starts capturing. Any failure before the camera opens releases what was
// already acquired.
func (s *RecognitionService) Start(ctx context.Context) (Status, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.run != nil {
		return Status{}, ErrSessionRunning
	}

	detector, err := s.NewDetector()
	if err != nil {
		return Status{}, fmt.Errorf("failed to create face detector: %w", err)
	}

	labels, samples, err := s.gallery.Load(detector, s.cfg.TrainDetection)
	if err != nil {
		detector.Close()
		return Status{}, fmt.Errorf("failed to load gallery: %w", err)
	}
	classifier := media.NewLBPHClassifier(s.cfg.MatchThreshold, s.logger)
	classifier.Train(samples, labels)
	media.CloseSamples(samples)

	if err := ctx.Err(); err != nil {
		classifier.Close()
		detector.Close()
		return Status{}, err
	}

	source, err := s.OpenSource(s.cfg.CameraSource)
	if err != nil {
		classifier.Close()
		detector.Close()
		s.logger.Error("failed to open camera", zap.String("source", s.cfg.CameraSource), zap.Error(err))
		return Status{}, err
	}

	sessionID := s.session.Start()
	processor := media.NewFrameProcessor(detector, s.cfg.LiveDetection, s.logger)
	loop := workers.NewCaptureLoop(source, processor, classifier, s.session, workers.CaptureOptions{
		Interval:            s.cfg.FrameInterval(),
		ProcessEveryNFrames: s.cfg.ProcessEveryNFrames,
		Mirror:              s.cfg.CameraMirror,
		Metrics:             s.metrics,
		OnObservations:      s.publishObservations(sessionID),
	}, s.logger)
	loop.Start()

	s.run = &activeRun{loop: loop, detector: detector, classifier: classifier}
	s.metrics.SetModel(len(labels), classifier.SampleCount())
	s.metrics.SetSessionActive(true)
	s.hub.Broadcast(realtime.Event{Type: realtime.EventSessionStarted, SessionID: sessionID})

	s.logger.Info("attendance session running",
		zap.String("session_id", sessionID),
		zap.String("camera", s.cfg.CameraSource),
		zap.Int("identities", len(labels)))
	return s.statusLocked(), nil
}

// Stop ends the running session and releases the camera.
func (s *RecognitionService) Stop() (Status, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.run == nil {
		return Status{}, ErrNoActiveSession
	}

	run := s.run
	run.loop.Stop()
	s.session.Stop()
	status := s.statusLocked()

	run.loop.Close()
	run.classifier.Close()
	if err := run.detector.Close(); err != nil {
		s.logger.Warn("failed to close detector", zap.Error(err))
	}
	s.run = nil

	s.metrics.SetSessionActive(false)
	s.hub.Broadcast(realtime.Event{Type: realtime.EventSessionStopped, SessionID: status.Session.ID})
	return status, nil
}

// Run starts a session and blocks until ctx is done.
func (s *RecognitionService) Run(ctx context.Context) error {
	if _, err := s.Start(ctx); err != nil {
		return err
	}
	<-ctx.Done()
	_, err := s.Stop()
	return err
}

func (s *RecognitionService) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.statusLocked()
}

func (s *RecognitionService) statusLocked() Status {
	st := Status{Session: s.session.Status()}
	if s.run != nil {
		st.Camera = s.cfg.CameraSource
		st.Trained = s.run.classifier.Trained()
		st.Identities = len(s.run.classifier.Labels())
		st.TrainingSamples = s.run.classifier.SampleCount()
		st.FramesCaptured = s.run.loop.FramesCaptured()
	}
	return st
}

// LatestFrameJPEG is the most recent annotated frame of the running session.
func (s *RecognitionService) LatestFrameJPEG() ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.run == nil {
		return nil, ErrNoActiveSession
	}
	return s.run.loop.LatestFrameJPEG()
}

func (s *RecognitionService) LatestObservations() ([]models.FrameObservation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.run == nil {
		return nil, ErrNoActiveSession
	}
	return s.run.loop.LatestObservations(), nil
}

// Labels is the label table of the running session, or nil.
func (s *RecognitionService) Labels() models.LabelTable {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.run == nil {
		return nil
	}
	return s.run.classifier.Labels()
}

// Shutdown stops a running session, if any, waiting at most until ctx is done.
func (s *RecognitionService) Shutdown(ctx context.Context) error {
	done := make(chan error, 1)
	go func() {
		_, err := s.Stop()
		if errors.Is(err, ErrNoActiveSession) {
			err = nil
		}
		done <- err
	}()
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(10 * time.Second):
		return errors.New("timed out stopping attendance session")
	}
}
