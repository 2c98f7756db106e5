package providers

import (
	"context"
	"hash/fnv"
	"time"

	"github.com/osvaldoandrade/classifyq/pkg/domain"
)

var demoPredictionSets = [][]domain.Prediction{
	{{Label: "Golden Retriever", Confidence: 0.94}, {Label: "Labrador", Confidence: 0.84}, {Label: "German Shepherd", Confidence: 0.12}},
	{{Label: "Sports Car", Confidence: 0.91}, {Label: "Sedan", Confidence: 0.76}, {Label: "SUV", Confidence: 0.23}},
	{{Label: "Mountain Landscape", Confidence: 0.88}, {Label: "Forest", Confidence: 0.67}, {Label: "Lake", Confidence: 0.45}},
	{{Label: "Modern Architecture", Confidence: 0.92}, {Label: "Glass Building", Confidence: 0.78}, {Label: "Office Complex", Confidence: 0.34}},
}

type mockClassifier struct {
	delay time.Duration
}

// NewMockClassifier returns canned demo predictions after delay. The set
// is picked from a hash of the image bytes so repeated submissions of the
// same image agree.
func NewMockClassifier(delay time.Duration) Classifier {
	return &mockClassifier{delay: delay}
}

func (m *mockClassifier) Classify(ctx context.Context, image []byte, contentType string) ([]domain.Prediction, error) {
	if m.delay > 0 {
		t := time.NewTimer(m.delay)
		defer t.Stop()
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-t.C:
		}
	}
	h := fnv.New32a()
	_, _ = h.Write(image)
	set := demoPredictionSets[int(h.Sum32()%uint32(len(demoPredictionSets)))]
	out := make([]domain.Prediction, len(set))
	copy(out, set)
	return out, nil
}
