package model

import (
	"context"
	"fmt"
	"sync"

	ort "github.com/yalue/onnxruntime_go"
	"gorgonia.org/tensor"
)

// Server runs an ONNX classification model. The session is bound to a single
// pair of input/output tensors, so Predict calls are serialized.
type Server struct {
	mu           sync.Mutex
	session      *ort.AdvancedSession
	Metadata     Metadata
	inputTensor  *ort.Tensor[float32]
	outputTensor *ort.Tensor[float32]
}

// NewServer initializes the ONNX Runtime environment and opens a session for
// modelPath. libPath overrides the onnxruntime shared library location when
// non-empty.
func NewServer(modelPath, libPath string, metadata Metadata) (*Server, error) {
	if len(metadata.OutputShape) == 0 {
		return nil, fmt.Errorf("metadata has no output shape")
	}

	if libPath != "" {
		ort.SetSharedLibraryPath(libPath)
	}
	if err := ort.InitializeEnvironment(); err != nil {
		return nil, fmt.Errorf("failed to initialize ONNX environment: %w", err)
	}

	s := &Server{Metadata: metadata}

	inputShape := ort.NewShape(1, int64(metadata.ImageSize), int64(metadata.ImageSize), 3)
	inputTensor, err := ort.NewEmptyTensor[float32](inputShape)
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("failed to create input tensor: %w", err)
	}
	s.inputTensor = inputTensor

	outputTensor, err := ort.NewEmptyTensor[float32](fixedShape(metadata.OutputShape))
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("failed to create output tensor: %w", err)
	}
	s.outputTensor = outputTensor

	session, err := ort.NewAdvancedSession(modelPath,
		[]string{metadata.InputName}, []string{metadata.OutputName},
		[]ort.ArbitraryTensor{inputTensor}, []ort.ArbitraryTensor{outputTensor},
		nil)
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("failed to create ONNX session: %w", err)
	}
	s.session = session

	return s, nil
}

func (s *Server) Predict(ctx context.Context, input *tensor.Dense) ([]float32, error) {
	data, ok := input.Data().([]float32)
	if !ok {
		return nil, fmt.Errorf("input tensor has type %T, want []float32", input.Data())
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	dst := s.inputTensor.GetData()
	if len(data) != len(dst) {
		return nil, fmt.Errorf("input has %d values, model expects %d", len(data), len(dst))
	}
	copy(dst, data)

	if err := s.session.Run(); err != nil {
		return nil, fmt.Errorf("inference failed: %w", err)
	}

	return append([]float32(nil), s.outputTensor.GetData()...), nil
}

func (s *Server) Close() {
	if s.inputTensor != nil {
		s.inputTensor.Destroy()
	}
	if s.outputTensor != nil {
		s.outputTensor.Destroy()
	}
	if s.session != nil {
		s.session.Destroy()
	}
	ort.DestroyEnvironment()
}

// fixedShape replaces dynamic (non-positive) dimensions with 1, since every
// request runs with a batch of one.
func fixedShape(dims []int64) ort.Shape {
	out := make([]int64, len(dims))
	for i, d := range dims {
		if d <= 0 {
			d = 1
		}
		out[i] = d
	}
	return ort.NewShape(out...)
}
