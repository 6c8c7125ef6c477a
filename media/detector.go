package media

import (
	"errors"
	"fmt"
	"image"
	"os"

	"go.uber.org/zap"
	"gocv.io/x/gocv"

	"github.com/camden-git/faceattend/config"
)

// ErrDetectorModelMissing means the detector's backing model could not be
// loaded. Nothing can be recognized without it.
var ErrDetectorModelMissing = errors.New("face detector model unavailable")

// Detector finds candidate face boxes in a grayscale image. Boxes may overlap
// or duplicate each other; no suppression is performed.
type Detector interface {
	Detect(gray gocv.Mat, params config.DetectionParams) []image.Rectangle
	Close() error
}

// NewDetector builds the detector selected by cfg.DetectorBackend.
func NewDetector(cfg config.Config, logger *zap.Logger) (Detector, error) {
	switch cfg.DetectorBackend {
	case config.DetectorBackendDNN:
		return NewDNNDetector(cfg.FaceDNNNetConfigPath, cfg.FaceDNNNetModelPath, logger)
	default:
		return NewHaarDetector(cfg.HaarCascadePath, logger)
	}
}

// HaarDetector wraps an OpenCV cascade classifier.
type HaarDetector struct {
	classifier gocv.CascadeClassifier
	path       string
	logger     *zap.Logger
}

func NewHaarDetector(cascadePath string, logger *zap.Logger) (*HaarDetector, error) {
	if _, err := os.Stat(cascadePath); err != nil {
		return nil, fmt.Errorf("%w: cascade file %s: %v", ErrDetectorModelMissing, cascadePath, err)
	}

	classifier := gocv.NewCascadeClassifier()
	if !classifier.Load(cascadePath) {
		classifier.Close()
		return nil, fmt.Errorf("%w: failed to load cascade classifier %s", ErrDetectorModelMissing, cascadePath)
	}

	logger = logger.Named("detection.haar")
	logger.Info("loaded face cascade", zap.String("path", cascadePath))
	return &HaarDetector{classifier: classifier, path: cascadePath, logger: logger}, nil
}

func (d *HaarDetector) Detect(gray gocv.Mat, params config.DetectionParams) []image.Rectangle {
	if gray.Empty() {
		return nil
	}
	minSize := image.Pt(params.MinFaceSize, params.MinFaceSize)
	return d.classifier.DetectMultiScaleWithParams(gray, params.ScaleFactor, params.MinNeighbors, 0, minSize, image.Pt(0, 0))
}

func (d *HaarDetector) Close() error {
	return d.classifier.Close()
}
