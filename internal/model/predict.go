package model

import (
	"fmt"
	"math"

	"github.com/Brownie44l1/classifier-api/internal/apperr"
)

// Decode takes the arg-max of probs and resolves it through labels. Ties go
// to the lowest index.
func Decode(probs []float32, labels *Labels) (*Prediction, error) {
	if len(probs) == 0 {
		return nil, apperr.New(apperr.Inference, "model returned no scores")
	}
	if len(probs) != labels.Len() {
		return nil, apperr.New(apperr.Inference,
			fmt.Sprintf("model returned %d scores for %d labels", len(probs), labels.Len()))
	}

	maxIdx := 0
	maxVal := probs[0]
	scores := make(map[string]float32, len(probs))

	for i, val := range probs {
		if f := float64(val); math.IsNaN(f) || math.IsInf(f, 0) {
			return nil, apperr.New(apperr.Inference, fmt.Sprintf("model returned non-finite score at index %d", i))
		}
		label, err := labels.Decode(i)
		if err != nil {
			return nil, apperr.Wrap(apperr.Inference, "label lookup failed", err)
		}
		scores[label] = val
		if val > maxVal {
			maxVal = val
			maxIdx = i
		}
	}

	label, err := labels.Decode(maxIdx)
	if err != nil {
		return nil, apperr.Wrap(apperr.Inference, "label lookup failed", err)
	}

	return &Prediction{
		Label:      label,
		Index:      maxIdx,
		Confidence: maxVal,
		Scores:     scores,
	}, nil
}
