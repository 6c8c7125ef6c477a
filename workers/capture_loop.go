package workers

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"gocv.io/x/gocv"

	"github.com/camden-git/faceattend/attendance"
	"github.com/camden-git/faceattend/media"
	"github.com/camden-git/faceattend/metrics"
	"github.com/camden-git/faceattend/models"
)

// ErrNoFrame is returned before the first frame has been captured.
var ErrNoFrame = errors.New("no frame captured yet")

// FrameSource yields camera frames.
type FrameSource interface {
	Read(dst *gocv.Mat) bool
	Close() error
}

// Observer receives every matched identity from processed frames.
type Observer interface {
	Observe(identity models.Identity) (attendance.Outcome, error)
}

type CaptureOptions struct {
	Interval            time.Duration
	ProcessEveryNFrames int
	Mirror              bool
	Metrics             *metrics.RecognitionMetrics
	// OnObservations is called after every processed frame.
	OnObservations func([]models.FrameObservation)
}

// CaptureLoop reads frames on a fixed tick and runs recognition on every Nth
// one. Skipped frames are redrawn with the most recent observations so the
// preview stays annotated. A tick that overruns the interval drops the
// following ticks instead of queueing them.
type CaptureLoop struct {
	source     FrameSource
	processor  *media.FrameProcessor
	classifier media.Classifier
	observer   Observer
	opts       CaptureOptions
	logger     *zap.Logger

	Wg       sync.WaitGroup
	StopChan chan struct{}
	stopOnce sync.Once

	// owned by the loop goroutine
	work gocv.Mat
	last []models.FrameObservation

	mu         sync.RWMutex
	frameCount int // written by the loop goroutine under mu
	latest     gocv.Mat
	latestObs  []models.FrameObservation
}

func NewCaptureLoop(source FrameSource, processor *media.FrameProcessor, classifier media.Classifier, observer Observer, opts CaptureOptions, logger *zap.Logger) *CaptureLoop {
	if opts.Interval <= 0 {
		opts.Interval = time.Second / 30
	}
	if opts.ProcessEveryNFrames <= 0 {
		opts.ProcessEveryNFrames = 1
	}
	return &CaptureLoop{
		source:     source,
		processor:  processor,
		classifier: classifier,
		observer:   observer,
		opts:       opts,
		logger:     logger.Named("capture"),
		StopChan:   make(chan struct{}),
		work:       gocv.NewMat(),
		latest:     gocv.NewMat(),
	}
}

// Start launches the loop goroutine.
func (l *CaptureLoop) Start() {
	l.Wg.Add(1)
	go l.run()
	l.logger.Info("capture loop started",
		zap.Duration("interval", l.opts.Interval),
		zap.Int("process_every_n_frames", l.opts.ProcessEveryNFrames),
		zap.Bool("mirror", l.opts.Mirror))
}

// Stop signals the loop and waits for it to exit. The camera is released by
// then. Safe to call more than once.
func (l *CaptureLoop) Stop() {
	l.stopOnce.Do(func() { close(l.StopChan) })
	l.Wg.Wait()
}

// Close frees the frame buffers. Call after Stop.
func (l *CaptureLoop) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.work.Close()
	l.latest.Close()
}

func (l *CaptureLoop) run() {
	defer l.Wg.Done()
	defer func() {
		if err := l.source.Close(); err != nil {
			l.logger.Warn("failed to release camera", zap.Error(err))
		} else {
			l.logger.Info("camera released")
		}
	}()

	ticker := time.NewTicker(l.opts.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-l.StopChan:
			l.logger.Info("capture loop stopping: stop signal received", zap.Int("frames", l.frameCount))
			return
		case <-ticker.C:
			l.tick()
		}
	}
}

func (l *CaptureLoop) tick() {
	if !l.source.Read(&l.work) {
		l.opts.Metrics.RecordFrameReadFailure()
		l.logger.Debug("camera returned no frame")
		return
	}
	l.opts.Metrics.RecordFrameCaptured()

	if l.opts.Mirror {
		gocv.Flip(l.work, &l.work, 1)
	}

	// the first frame is always processed
	processed := l.frameCount%l.opts.ProcessEveryNFrames == 0

	if processed {
		start := time.Now()
		obs := l.processor.ProcessFrame(&l.work, l.classifier)
		matched := models.MatchedIdentities(obs)
		l.opts.Metrics.RecordFrameProcessed(time.Since(start), len(matched), len(obs)-len(matched))
		l.last = obs

		for _, identity := range matched {
			outcome, err := l.observer.Observe(identity)
			l.opts.Metrics.RecordAttendanceOutcome(outcome.String())
			if err != nil {
				l.logger.Warn("attendance observation failed", zap.Stringer("identity", identity), zap.Error(err))
			}
		}
	} else {
		l.processor.Annotate(&l.work, l.last)
	}

	l.mu.Lock()
	l.frameCount++
	l.work.CopyTo(&l.latest)
	l.latestObs = l.last
	l.mu.Unlock()

	if processed && l.opts.OnObservations != nil {
		l.opts.OnObservations(l.last)
	}
}

// LatestFrameJPEG encodes the most recent annotated frame.
func (l *CaptureLoop) LatestFrameJPEG() ([]byte, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if l.latest.Empty() {
		return nil, ErrNoFrame
	}
	buf, err := gocv.IMEncode(gocv.JPEGFileExt, l.latest)
	if err != nil {
		return nil, fmt.Errorf("failed to encode frame: %w", err)
	}
	defer buf.Close()

	out := make([]byte, buf.Len())
	copy(out, buf.GetBytes())
	return out, nil
}

// LatestObservations returns the observations of the last processed frame.
func (l *CaptureLoop) LatestObservations() []models.FrameObservation {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]models.FrameObservation, len(l.latestObs))
	copy(out, l.latestObs)
	return out
}

// FramesCaptured is the number of frames read so far.
func (l *CaptureLoop) FramesCaptured() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.frameCount
}
