package media

import (
	"image"
	"math/rand"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"

	"github.com/camden-git/faceattend/config"
	"github.com/camden-git/faceattend/models"
)

const faceSize = 96

var trainParams = config.DetectionParams{ScaleFactor: 1.1, MinNeighbors: 5}

// noiseFace is a deterministic random texture standing in for a face.
func noiseFace(seed int64) *image.Gray {
	rng := rand.New(rand.NewSource(seed))
	img := image.NewGray(image.Rect(0, 0, faceSize, faceSize))
	for i := range img.Pix {
		img.Pix[i] = uint8(rng.Intn(256))
	}
	return img
}

// flatFace is a uniform patch. Every LBP code on it is 255, so its histogram
// barely overlaps any noiseFace and the LBPH distance stays above
// models.MatchThreshold.
func flatFace(value uint8) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, faceSize, faceSize))
	for i := range img.Pix {
		img.Pix[i] = value
	}
	return img
}

func writeImage(t *testing.T, dir, name string, img image.Image) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, imaging.Save(img, path))
	return path
}

func grayMat(t *testing.T, img *image.Gray) gocv.Mat {
	t.Helper()
	m, err := gocv.NewMatFromBytes(img.Rect.Dy(), img.Rect.Dx(), gocv.MatTypeCV8U, img.Pix)
	require.NoError(t, err)
	defer m.Close()
	out := m.Clone()
	runtime.KeepAlive(img)
	return out
}

func bgrFrame(t *testing.T, img *image.Gray) gocv.Mat {
	t.Helper()
	gray := grayMat(t, img)
	defer gray.Close()
	frame := gocv.NewMat()
	gocv.CvtColor(gray, &frame, gocv.ColorGrayToBGR)
	return frame
}

// fullFrameDetector reports the whole image as one face.
type fullFrameDetector struct{}

func (fullFrameDetector) Detect(gray gocv.Mat, _ config.DetectionParams) []image.Rectangle {
	if gray.Empty() {
		return nil
	}
	return []image.Rectangle{image.Rect(0, 0, gray.Cols(), gray.Rows())}
}

func (fullFrameDetector) Close() error { return nil }

type fixedDetector struct {
	rects []image.Rectangle
}

func (d fixedDetector) Detect(gocv.Mat, config.DetectionParams) []image.Rectangle { return d.rects }
func (fixedDetector) Close() error                                              { return nil }

type panickingDetector struct{}

func (panickingDetector) Detect(gocv.Mat, config.DetectionParams) []image.Rectangle {
	panic("detector exploded")
}
func (panickingDetector) Close() error { return nil }

type stubClassifier struct {
	result models.Classification
	calls  int
}

func (s *stubClassifier) Classify(gocv.Mat) models.Classification {
	s.calls++
	return s.result
}
