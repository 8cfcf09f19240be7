package model

import (
	"encoding/json"
	"fmt"
	"os"
)

// LoadMetadata reads the JSON metadata that accompanies a model artifact and
// fills in defaults for missing fields.
func LoadMetadata(path string) (Metadata, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Metadata{}, fmt.Errorf("failed to read metadata: %w", err)
	}

	var metadata Metadata
	if err := json.Unmarshal(raw, &metadata); err != nil {
		return Metadata{}, fmt.Errorf("failed to parse metadata: %w", err)
	}

	metadata.applyDefaults()
	return metadata, nil
}

func (m *Metadata) applyDefaults() {
	if m.InputName == "" {
		m.InputName = DefaultInputName
	}
	if m.OutputName == "" {
		m.OutputName = DefaultOutputName
	}
	if m.ImageSize <= 0 {
		m.ImageSize = DefaultImageSize
		if len(m.InputShape) == 4 && m.InputShape[1] > 0 {
			m.ImageSize = int(m.InputShape[1])
		}
	}
	if len(m.InputShape) == 0 {
		m.InputShape = []int64{1, int64(m.ImageSize), int64(m.ImageSize), 3}
	}
}

// ClassCount is the size of the last output dimension, or 0 when the output
// shape is unknown.
func (m Metadata) ClassCount() int {
	if len(m.OutputShape) == 0 {
		return 0
	}
	return int(m.OutputShape[len(m.OutputShape)-1])
}

func (m Metadata) Validate(labels *Labels) error {
	want := []int64{1, int64(m.ImageSize), int64(m.ImageSize), 3}
	if len(m.InputShape) != len(want) {
		return fmt.Errorf("input shape %v, want %v", m.InputShape, want)
	}
	for i := range want {
		// A non-positive dimension is dynamic and accepts any size.
		if m.InputShape[i] > 0 && m.InputShape[i] != want[i] {
			return fmt.Errorf("input shape %v, want %v", m.InputShape, want)
		}
	}

	if n := m.ClassCount(); n > 0 && n != labels.Len() {
		return fmt.Errorf("model has %d output classes but %d labels are defined", n, labels.Len())
	}
	return nil
}
