package model

import (
	"context"

	"gorgonia.org/tensor"
)

const (
	DefaultImageSize  = 128
	DefaultInputName  = "input"
	DefaultOutputName = "output"
)

type Classifier interface {
	Predict(ctx context.Context, input *tensor.Dense) ([]float32, error)
}

type Metadata struct {
	InputName   string   `json:"input_name"`
	OutputName  string   `json:"output_name"`
	InputShape  []int64  `json:"input_shape"`
	OutputShape []int64  `json:"output_shape"`
	Classes     []string `json:"classes"`
	ImageSize   int      `json:"image_size"`
}

type PredictionRequest struct {
	Image []float32 `json:"image"`
}

type Prediction struct {
	Label      string
	Index      int
	Confidence float32
	Scores     map[string]float32
}
