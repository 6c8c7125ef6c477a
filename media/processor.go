package media

import (
	"fmt"
	"image"
	"image/color"

	"go.uber.org/zap"
	"gocv.io/x/gocv"

	"github.com/camden-git/faceattend/config"
	"github.com/camden-git/faceattend/models"
)

var (
	matchedColor    = color.RGBA{R: 0, G: 255, B: 0, A: 0}
	unknownColor    = color.RGBA{R: 255, G: 0, B: 0, A: 0}
	labelColor      = color.RGBA{R: 255, G: 255, B: 255, A: 0}
	confidenceColor = color.RGBA{R: 255, G: 255, B: 0, A: 0}
)

// FrameProcessor detects and classifies faces in live frames.
type FrameProcessor struct {
	detector Detector
	params   config.DetectionParams
	logger   *zap.Logger
}

func NewFrameProcessor(detector Detector, params config.DetectionParams, logger *zap.Logger) *FrameProcessor {
	return &FrameProcessor{detector: detector, params: params, logger: logger.Named("processor")}
}

// ProcessFrame returns one observation per detected box, in detector order,
// and draws the annotations onto frame. Any failure inside degrades to no
// observations for this frame.
func (p *FrameProcessor) ProcessFrame(frame *gocv.Mat, classifier Classifier) (observations []models.FrameObservation) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("frame processing failed", zap.String("panic", fmt.Sprint(r)))
			observations = nil
		}
	}()

	if frame == nil || frame.Empty() {
		return nil
	}

	gray := gocv.NewMat()
	defer gray.Close()
	if frame.Channels() == 1 {
		frame.CopyTo(&gray)
	} else {
		gocv.CvtColor(*frame, &gray, gocv.ColorBGRToGray)
	}

	bounds := image.Rect(0, 0, gray.Cols(), gray.Rows())
	rects := p.detector.Detect(gray, p.params)
	observations = make([]models.FrameObservation, 0, len(rects))

	for _, rect := range rects {
		r := rect.Intersect(bounds)
		var result models.Classification
		if r.Empty() {
			empty := gocv.NewMat()
			result = classifier.Classify(empty)
			empty.Close()
		} else {
			crop := gray.Region(r)
			result = classifier.Classify(crop)
			crop.Close()
		}
		observations = append(observations, models.FrameObservation{
			Box:    models.BoundingBoxFromRect(r),
			Result: result,
		})
	}

	p.Annotate(frame, observations)
	return observations
}

// Annotate draws a box per observation, green for a match and red for
// Unknown, with the name above and the confidence percent inside.
func (p *FrameProcessor) Annotate(frame *gocv.Mat, observations []models.FrameObservation) {
	for _, o := range observations {
		rect := o.Box.Rect()
		boxColor := unknownColor
		if _, ok := o.Identity(); ok {
			boxColor = matchedColor
		}
		gocv.Rectangle(frame, rect, boxColor, 2)
		gocv.PutText(frame, o.Label(), image.Pt(rect.Min.X+5, rect.Min.Y-5), gocv.FontHersheySimplex, 0.8, labelColor, 2)
		if o.Result != nil {
			text := fmt.Sprintf("%d%%", models.ConfidencePercent(o.Result))
			gocv.PutText(frame, text, image.Pt(rect.Min.X+5, rect.Max.Y-5), gocv.FontHersheySimplex, 0.6, confidenceColor, 1)
		}
	}
}
