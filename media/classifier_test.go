package media

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gocv.io/x/gocv"

	"github.com/camden-git/faceattend/models"
)

var (
	alice = models.Identity{ID: 1, DisplayName: "Alice"}
	bob   = models.Identity{ID: 2, DisplayName: "Bob"}
)

func trainedClassifier(t *testing.T) *LBPHClassifier {
	t.Helper()
	samples := []TrainingSample{
		{Identity: alice, Face: grayMat(t, noiseFace(1))},
		{Identity: bob, Face: grayMat(t, noiseFace(2))},
	}
	defer CloseSamples(samples)

	c := NewLBPHClassifier(models.MatchThreshold, zap.NewNop())
	c.Train(samples, models.LabelTable{alice.ID: alice, bob.ID: bob})
	t.Cleanup(c.Close)
	return c
}

func TestUntrainedClassifierReportsUnknown(t *testing.T) {
	c := NewLBPHClassifier(models.MatchThreshold, zap.NewNop())
	defer c.Close()

	face := grayMat(t, noiseFace(1))
	defer face.Close()

	result := c.Classify(face)
	assert.Equal(t, models.Unmatched{Distance: models.MatchThreshold}, result)
	assert.Equal(t, 0, models.ConfidencePercent(result))
	assert.False(t, c.Trained())
}

func TestTrainWithoutSamplesKeepsLabels(t *testing.T) {
	c := NewLBPHClassifier(models.MatchThreshold, zap.NewNop())
	defer c.Close()

	c.Train(nil, models.LabelTable{alice.ID: alice})
	assert.False(t, c.Trained())
	assert.Equal(t, models.LabelTable{alice.ID: alice}, c.Labels())
}

func TestClassifyTrainingSampleMatches(t *testing.T) {
	c := trainedClassifier(t)
	require.True(t, c.Trained())
	assert.Equal(t, 2, c.SampleCount())

	for seed, want := range map[int64]models.Identity{1: alice, 2: bob} {
		face := grayMat(t, noiseFace(seed))
		result := c.Classify(face)
		face.Close()

		matched, ok := result.(models.Matched)
		require.True(t, ok, "seed %d: got %#v", seed, result)
		assert.Equal(t, want, matched.Identity)
		assert.Less(t, matched.Distance, 1.0)
		assert.Greater(t, models.ConfidencePercent(result), 99)
	}
}

func TestClassifyStrangerIsUnknown(t *testing.T) {
	c := trainedClassifier(t)

	face := grayMat(t, flatFace(128))
	defer face.Close()

	result := c.Classify(face)
	unmatched, ok := result.(models.Unmatched)
	require.True(t, ok, "got %#v", result)
	assert.GreaterOrEqual(t, unmatched.Distance, models.MatchThreshold)
}

func TestClassifyHonoursThreshold(t *testing.T) {
	samples := []TrainingSample{{Identity: alice, Face: grayMat(t, noiseFace(1))}}
	defer CloseSamples(samples)

	strict := NewLBPHClassifier(50, zap.NewNop())
	defer strict.Close()
	strict.Train(samples, models.LabelTable{alice.ID: alice})
	assert.Equal(t, 50.0, strict.Threshold())

	other := grayMat(t, noiseFace(2))
	defer other.Close()
	unmatched, ok := strict.Classify(other).(models.Unmatched)
	require.True(t, ok)
	assert.GreaterOrEqual(t, unmatched.Distance, strict.Threshold())

	same := grayMat(t, noiseFace(1))
	defer same.Close()
	matched, ok := strict.Classify(same).(models.Matched)
	require.True(t, ok)
	assert.Equal(t, alice, matched.Identity)
}

func TestClassifyEmptyCrop(t *testing.T) {
	c := trainedClassifier(t)
	empty := gocv.NewMat()
	defer empty.Close()

	assert.Equal(t, models.Unmatched{Distance: models.MatchThreshold}, c.Classify(empty))
}

func TestRetrainReplacesModel(t *testing.T) {
	c := NewLBPHClassifier(models.MatchThreshold, zap.NewNop())
	defer c.Close()

	first := []TrainingSample{
		{Identity: alice, Face: grayMat(t, flatFace(128))},
		{Identity: bob, Face: grayMat(t, noiseFace(2))},
	}
	c.Train(first, models.LabelTable{alice.ID: alice, bob.ID: bob})
	CloseSamples(first)

	face := grayMat(t, flatFace(128))
	defer face.Close()
	matched, ok := c.Classify(face).(models.Matched)
	require.True(t, ok)
	require.Equal(t, alice, matched.Identity)

	second := []TrainingSample{{Identity: bob, Face: grayMat(t, noiseFace(2))}}
	c.Train(second, models.LabelTable{bob.ID: bob})
	CloseSamples(second)

	unmatched, ok := c.Classify(face).(models.Unmatched)
	require.True(t, ok)
	assert.GreaterOrEqual(t, unmatched.Distance, models.MatchThreshold)
	assert.Equal(t, 1, c.SampleCount())
	assert.Equal(t, models.LabelTable{bob.ID: bob}, c.Labels())
}
