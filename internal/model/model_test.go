package model

import (
	"math"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/Brownie44l1/classifier-api/internal/apperr"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func mustLabels(t *testing.T, classes ...string) *Labels {
	t.Helper()
	l, err := NewLabels(classes)
	if err != nil {
		t.Fatalf("NewLabels() error = %v", err)
	}
	return l
}

func TestLoadMetadataDefaults(t *testing.T) {
	path := writeFile(t, "meta.json", `{"classes": ["glioma", "meningioma", "notumor", "pituitary"], "output_shape": [1, 4]}`)

	m, err := LoadMetadata(path)
	if err != nil {
		t.Fatalf("LoadMetadata() error = %v", err)
	}

	if m.ImageSize != DefaultImageSize {
		t.Errorf("ImageSize = %d, want %d", m.ImageSize, DefaultImageSize)
	}
	if m.InputName != DefaultInputName || m.OutputName != DefaultOutputName {
		t.Errorf("names = %q/%q, want defaults", m.InputName, m.OutputName)
	}
	if want := []int64{1, 128, 128, 3}; !reflect.DeepEqual(m.InputShape, want) {
		t.Errorf("InputShape = %v, want %v", m.InputShape, want)
	}
	if m.ClassCount() != 4 {
		t.Errorf("ClassCount() = %d, want 4", m.ClassCount())
	}
	if err := m.Validate(mustLabels(t, m.Classes...)); err != nil {
		t.Errorf("Validate() error = %v", err)
	}
}

func TestLoadMetadataImageSizeFromShape(t *testing.T) {
	path := writeFile(t, "meta.json", `{"classes": ["cat", "dog"], "input_shape": [-1, 150, 150, 3]}`)

	m, err := LoadMetadata(path)
	if err != nil {
		t.Fatalf("LoadMetadata() error = %v", err)
	}
	if m.ImageSize != 150 {
		t.Errorf("ImageSize = %d, want 150", m.ImageSize)
	}
	if m.ClassCount() != 0 {
		t.Errorf("ClassCount() = %d, want 0 for unknown output shape", m.ClassCount())
	}
}

func TestLoadMetadataErrors(t *testing.T) {
	if _, err := LoadMetadata(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Error("missing file: error = nil")
	}
	if _, err := LoadMetadata(writeFile(t, "bad.json", "{classes:")); err == nil {
		t.Error("invalid json: error = nil")
	}
}

func TestMetadataValidate(t *testing.T) {
	labels := mustLabels(t, "a", "b", "c")

	tests := []struct {
		name    string
		meta    Metadata
		wantErr bool
	}{
		{"matching", Metadata{ImageSize: 150, InputShape: []int64{1, 150, 150, 3}, OutputShape: []int64{1, 3}}, false},
		{"dynamic batch", Metadata{ImageSize: 150, InputShape: []int64{-1, 150, 150, 3}, OutputShape: []int64{-1, 3}}, false},
		{"unknown output", Metadata{ImageSize: 64, InputShape: []int64{1, 64, 64, 3}}, false},
		{"class mismatch", Metadata{ImageSize: 150, InputShape: []int64{1, 150, 150, 3}, OutputShape: []int64{1, 4}}, true},
		{"size mismatch", Metadata{ImageSize: 128, InputShape: []int64{1, 150, 150, 3}, OutputShape: []int64{1, 3}}, true},
		{"channels first", Metadata{ImageSize: 128, InputShape: []int64{1, 3, 128, 128}, OutputShape: []int64{1, 3}}, true},
		{"wrong rank", Metadata{ImageSize: 128, InputShape: []int64{128, 128, 3}, OutputShape: []int64{1, 3}}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.meta.Validate(labels)
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestLabels(t *testing.T) {
	l := mustLabels(t, "glioma", " meningioma ", "notumor")

	if got, err := l.Decode(1); err != nil || got != "meningioma" {
		t.Errorf("Decode(1) = %q, %v", got, err)
	}
	for _, i := range []int{-1, 3} {
		if _, err := l.Decode(i); err == nil {
			t.Errorf("Decode(%d) error = nil", i)
		}
	}
	if !l.Contains("notumor") || l.Contains("pituitary") {
		t.Error("Contains() returned wrong membership")
	}

	classes := l.Classes()
	classes[0] = "changed"
	if got, _ := l.Decode(0); got != "glioma" {
		t.Errorf("Classes() exposed internal slice, Decode(0) = %q", got)
	}
}

func TestNewLabelsErrors(t *testing.T) {
	for name, classes := range map[string][]string{
		"empty":     nil,
		"blank":     {"a", " "},
		"duplicate": {"a", "b", "a"},
	} {
		if _, err := NewLabels(classes); err == nil {
			t.Errorf("%s: error = nil", name)
		}
	}
}

func TestLoadLabels(t *testing.T) {
	path := writeFile(t, "labels.txt", "# brain tumor classes\nglioma\n\nmeningioma\r\nnotumor\npituitary\n")

	l, err := LoadLabels(path)
	if err != nil {
		t.Fatalf("LoadLabels() error = %v", err)
	}
	if want := []string{"glioma", "meningioma", "notumor", "pituitary"}; !reflect.DeepEqual(l.Classes(), want) {
		t.Errorf("Classes() = %v, want %v", l.Classes(), want)
	}

	if _, err := LoadLabels(writeFile(t, "empty.txt", "\n\n")); err == nil {
		t.Error("empty labels file: error = nil")
	}
}

func TestDecode(t *testing.T) {
	labels := mustLabels(t, "glioma", "meningioma", "notumor", "pituitary")

	p, err := Decode([]float32{0.1, 0.05, 0.8, 0.05}, labels)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if p.Label != "notumor" || p.Index != 2 || p.Confidence != 0.8 {
		t.Errorf("Decode() = %+v", p)
	}
	if len(p.Scores) != 4 || p.Scores["glioma"] != 0.1 {
		t.Errorf("Scores = %v", p.Scores)
	}

	tie, err := Decode([]float32{0.5, 0.5, 0, 0}, labels)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if tie.Index != 0 {
		t.Errorf("tie Index = %d, want 0", tie.Index)
	}
}

func TestDecodeErrors(t *testing.T) {
	labels := mustLabels(t, "a", "b")

	for name, probs := range map[string][]float32{
		"empty":        {},
		"too many":     {0.1, 0.2, 0.7},
		"too few":      {1},
		"nan first":    {float32(math.NaN()), 0.9},
		"nan last":     {0.9, float32(math.NaN())},
		"positive inf": {float32(math.Inf(1)), 0},
	} {
		_, err := Decode(probs, labels)
		if err == nil {
			t.Errorf("%s: error = nil", name)
			continue
		}
		if kind := apperr.KindOf(err); kind != apperr.Inference {
			t.Errorf("%s: kind = %v, want inference", name, kind)
		}
	}
}
