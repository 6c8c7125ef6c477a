package models

import (
	"encoding/json"
	"image"
	"math"
)

// MatchThreshold is the default distance below which a classification counts
// as a match. Lower distances are better matches.
const MatchThreshold = 100.0

// BoundingBox is an axis-aligned face box in frame pixel coordinates.
type BoundingBox struct {
	X int `json:"x"`
	Y int `json:"y"`
	W int `json:"w"`
	H int `json:"h"`
}

func BoundingBoxFromRect(r image.Rectangle) BoundingBox {
	return BoundingBox{X: r.Min.X, Y: r.Min.Y, W: r.Dx(), H: r.Dy()}
}

func (b BoundingBox) Rect() image.Rectangle {
	return image.Rect(b.X, b.Y, b.X+b.W, b.Y+b.H)
}

// Classification is the outcome of classifying one face crop. It is either
// Matched or Unmatched.
type Classification interface {
	// Score is the classifier distance. Lower is better.
	Score() float64
	isClassification()
}

// Matched is a classification that resolved to a known identity.
type Matched struct {
	Identity Identity
	Distance float64
}

func (m Matched) Score() float64  { return m.Distance }
func (Matched) isClassification() {}

// Unmatched is a classification that did not resolve to a known identity,
// either because the distance reached the threshold or because the predicted
// label is absent from the label table.
type Unmatched struct {
	Distance float64
}

func (u Unmatched) Score() float64  { return u.Distance }
func (Unmatched) isClassification() {}

// ConfidencePercent is the user-facing confidence, round(100 - score). It is
// diagnostic only and may be negative for poor matches.
func ConfidencePercent(c Classification) int {
	return int(math.Round(100 - c.Score()))
}

// FrameObservation is one detected face in one frame.
type FrameObservation struct {
	Box    BoundingBox
	Result Classification
}

// Identity returns the matched identity, if any.
func (o FrameObservation) Identity() (Identity, bool) {
	if m, ok := o.Result.(Matched); ok {
		return m.Identity, true
	}
	return Identity{}, false
}

// Label is the text drawn next to the box.
func (o FrameObservation) Label() string {
	if identity, ok := o.Identity(); ok {
		return identity.DisplayName
	}
	return "Unknown"
}

func (o FrameObservation) MarshalJSON() ([]byte, error) {
	out := struct {
		Box        BoundingBox `json:"box"`
		Matched    bool        `json:"matched"`
		Identity   *Identity   `json:"identity,omitempty"`
		Score      float64     `json:"score"`
		Confidence int         `json:"confidence"`
	}{Box: o.Box}

	if o.Result != nil {
		out.Score = o.Result.Score()
		out.Confidence = ConfidencePercent(o.Result)
	}
	if identity, ok := o.Identity(); ok {
		out.Matched = true
		out.Identity = &identity
	}
	return json.Marshal(out)
}

// MatchedIdentities returns the identities of matched observations, in frame
// order. Unknown faces are never included.
func MatchedIdentities(observations []FrameObservation) []Identity {
	var out []Identity
	for _, o := range observations {
		if identity, ok := o.Identity(); ok {
			out = append(out, identity)
		}
	}
	return out
}
