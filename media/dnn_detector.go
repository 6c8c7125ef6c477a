package media

import (
	"fmt"
	"image"
	"os"

	"go.uber.org/zap"
	"gocv.io/x/gocv"

	"github.com/camden-git/faceattend/config"
)

// DNNDetector runs the res10 SSD face detector. It ignores the cascade knobs
// (scale factor, neighbors) and honours only MinFaceSize.
type DNNDetector struct {
	net    gocv.Net
	logger *zap.Logger

	// configuration parameters used during detection
	InputSizeW    int
	InputSizeH    int
	ScaleFactor   float64
	MeanVal       gocv.Scalar
	ConfThreshold float32
}

// NewDNNDetector loads the DNN model
func NewDNNDetector(configPath, modelPath string, logger *zap.Logger) (*DNNDetector, error) {
	logger = logger.Named("detection.dnn")
	for _, p := range []string{configPath, modelPath} {
		if _, err := os.Stat(p); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrDetectorModelMissing, p, err)
		}
	}

	net := gocv.ReadNet(modelPath, configPath)
	if net.Empty() {
		return nil, fmt.Errorf("%w: failed to read network config=%s model=%s", ErrDetectorModelMissing, configPath, modelPath)
	}

	cudaBackendErr := net.SetPreferableBackend(gocv.NetBackendCUDA)
	cudaTargetErr := net.SetPreferableTarget(gocv.NetTargetCUDA)
	if cudaBackendErr == nil && cudaTargetErr == nil {
		logger.Info("set backend/target to CUDA")
	} else {
		logger.Info("CUDA not available, using CPU", zap.NamedError("backend_err", cudaBackendErr), zap.NamedError("target_err", cudaTargetErr))
		net.SetPreferableBackend(gocv.NetBackendDefault)
		net.SetPreferableTarget(gocv.NetTargetCPU)
	}

	logger.Info("loaded face detection network", zap.String("model", modelPath))
	return &DNNDetector{
		net:           net,
		logger:        logger,
		InputSizeW:    300,
		InputSizeH:    300,
		ScaleFactor:   1.0,
		MeanVal:       gocv.NewScalar(104.0, 177.0, 123.0, 0),
		ConfThreshold: 0.5,
	}, nil
}

func (d *DNNDetector) Close() error {
	return d.net.Close()
}

// Detect runs the network on a grayscale image, expanded to three channels.
func (d *DNNDetector) Detect(gray gocv.Mat, params config.DetectionParams) []image.Rectangle {
	if gray.Empty() {
		return nil
	}

	bgr := gocv.NewMat()
	defer bgr.Close()
	gocv.CvtColor(gray, &bgr, gocv.ColorGrayToBGR)

	imgHeight := float32(bgr.Rows())
	imgWidth := float32(bgr.Cols())

	blob := gocv.BlobFromImage(bgr, d.ScaleFactor, image.Pt(d.InputSizeW, d.InputSizeH), d.MeanVal, false, false)
	defer blob.Close()

	d.net.SetInput(blob, "")
	detectionsMat := d.net.Forward("")
	defer detectionsMat.Close()

	sizes := detectionsMat.Size()
	if len(sizes) < 4 {
		d.logger.Warn("unexpected output matrix dimensions", zap.Ints("sizes", sizes))
		return nil
	}

	numDetections := sizes[2]
	if numDetections == 0 {
		return nil
	}

	// reshape to [N, 7] for GetFloatAt(row, col)
	detectionsData := detectionsMat.Reshape(1, numDetections)
	defer detectionsData.Close()

	var results []image.Rectangle
	for i := 0; i < numDetections; i++ {
		confidence := detectionsData.GetFloatAt(i, 2)
		if confidence <= d.ConfThreshold {
			continue
		}

		xMin := max(0, detectionsData.GetFloatAt(i, 3)*imgWidth)
		yMin := max(0, detectionsData.GetFloatAt(i, 4)*imgHeight)
		xMax := min(imgWidth, detectionsData.GetFloatAt(i, 5)*imgWidth)
		yMax := min(imgHeight, detectionsData.GetFloatAt(i, 6)*imgHeight)

		rect := image.Rect(int(xMin), int(yMin), int(xMax), int(yMax))
		if rect.Dx() < params.MinFaceSize || rect.Dy() < params.MinFaceSize || rect.Empty() {
			continue
		}
		results = append(results, rect)
	}
	return results
}
