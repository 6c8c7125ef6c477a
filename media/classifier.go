package media

import (
	"sync"

	"go.uber.org/zap"
	"gocv.io/x/gocv"
	"gocv.io/x/gocv/contrib"

	"github.com/camden-git/faceattend/models"
)

// TrainingSample is one cropped grayscale face tagged with its identity.
type TrainingSample struct {
	Identity models.Identity
	Face     gocv.Mat
}

// CloseSamples releases the face crops.
func CloseSamples(samples []TrainingSample) {
	for i := range samples {
		samples[i].Face.Close()
	}
}

// Classifier maps a grayscale face crop to an identity or Unknown.
type Classifier interface {
	Classify(face gocv.Mat) models.Classification
}

// LBPHClassifier is a local-binary-pattern-histogram recognizer. Scores are
// distances: lower is more similar.
type LBPHClassifier struct {
	threshold float64
	logger    *zap.Logger

	mu         sync.RWMutex
	recognizer *contrib.LBPHFaceRecognizer // nil until trained on at least one face
	labels     models.LabelTable
	samples    int
}

func NewLBPHClassifier(threshold float64, logger *zap.Logger) *LBPHClassifier {
	if threshold <= 0 {
		threshold = models.MatchThreshold
	}
	return &LBPHClassifier{
		threshold: threshold,
		logger:    logger.Named("classifier"),
		labels:    models.LabelTable{},
	}
}

// Train rebuilds the model from scratch. The samples stay owned by the caller.
// An empty sample set leaves the classifier untrained: every face is Unknown.
func (c *LBPHClassifier) Train(samples []TrainingSample, labels models.LabelTable) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.release()
	c.labels = labels
	if c.labels == nil {
		c.labels = models.LabelTable{}
	}
	c.samples = len(samples)

	if len(samples) == 0 {
		if len(labels) == 0 {
			c.logger.Warn("gallery is empty, classifier left untrained; every face will be reported as Unknown")
		} else {
			c.logger.Warn("no faces detected in any gallery image, classifier left untrained",
				zap.Int("identities", len(labels)))
		}
		return
	}

	faces := make([]gocv.Mat, 0, len(samples))
	ids := make([]int, 0, len(samples))
	for _, s := range samples {
		faces = append(faces, s.Face)
		ids = append(ids, s.Identity.ID)
	}

	recognizer := contrib.NewLBPHFaceRecognizer()
	recognizer.Train(faces, ids)
	c.recognizer = recognizer

	c.logger.Info("classifier trained", zap.Int("samples", len(samples)), zap.Int("identities", len(labels)))
}

// Trained reports whether a model is available.
func (c *LBPHClassifier) Trained() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.recognizer != nil
}

// SampleCount is the number of faces the current model was trained on.
func (c *LBPHClassifier) SampleCount() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.samples
}

func (c *LBPHClassifier) Threshold() float64 {
	return c.threshold
}

// Labels returns a copy of the label table the model was trained against.
func (c *LBPHClassifier) Labels() models.LabelTable {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(models.LabelTable, len(c.labels))
	for id, identity := range c.labels {
		out[id] = identity
	}
	return out
}

// Classify returns Matched when the distance is strictly below the threshold
// and the predicted label is known.
func (c *LBPHClassifier) Classify(face gocv.Mat) models.Classification {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.recognizer == nil || face.Empty() {
		return models.Unmatched{Distance: c.threshold}
	}

	resp := c.recognizer.PredictExtendedResponse(face)
	distance := float64(resp.Confidence)
	if distance < c.threshold {
		if identity, ok := c.labels.Lookup(int(resp.Label)); ok {
			return models.Matched{Identity: identity, Distance: distance}
		}
		c.logger.Debug("predicted label missing from label table", zap.Int32("label", resp.Label))
	}
	return models.Unmatched{Distance: distance}
}

func (c *LBPHClassifier) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.release()
}

func (c *LBPHClassifier) release() {
	if c.recognizer != nil {
		c.recognizer.Close()
		c.recognizer = nil
	}
}
