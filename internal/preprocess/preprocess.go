package preprocess

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"log"
	"strings"

	"github.com/nfnt/resize"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
	"gorgonia.org/tensor"

	"github.com/Brownie44l1/classifier-api/internal/apperr"
)

const Channels = 3

var filters = map[string]resize.InterpolationFunction{
	"nearest":  resize.NearestNeighbor,
	"bilinear": resize.Bilinear,
	"bicubic":  resize.Bicubic,
	"mitchell": resize.MitchellNetravali,
	"lanczos2": resize.Lanczos2,
	"lanczos3": resize.Lanczos3,
}

// ParseFilter resolves a resize filter name such as "bicubic".
func ParseFilter(name string) (resize.InterpolationFunction, error) {
	f, ok := filters[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return 0, fmt.Errorf("unknown resize filter %q", name)
	}
	return f, nil
}

// Preprocessor turns encoded images into (1, H, W, 3) float32 tensors in [0, 1].
type Preprocessor struct {
	Width  int
	Height int
	Filter resize.InterpolationFunction
	Debug  bool
}

func New(width, height int) *Preprocessor {
	return &Preprocessor{
		Width:  width,
		Height: height,
		Filter: resize.Bicubic,
	}
}

// Shape is the tensor shape Process produces.
func (p *Preprocessor) Shape() tensor.Shape {
	return tensor.Shape{1, p.Height, p.Width, Channels}
}

// Size is the number of values in a tensor produced by Process.
func (p *Preprocessor) Size() int {
	return p.Height * p.Width * Channels
}

// Process decodes data and converts it to the model input tensor.
func (p *Preprocessor) Process(data []byte) (*tensor.Dense, error) {
	if len(data) == 0 {
		return nil, apperr.New(apperr.Decode, "empty image data")
	}

	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, apperr.Wrap(apperr.Decode, "invalid image format", err)
	}

	if p.Debug {
		log.Printf("Image format: %s, dimensions: %dx%d", format, img.Bounds().Dx(), img.Bounds().Dy())
	}

	return p.FromImage(img)
}

// FromImage converts img to opaque RGB, resizes it without preserving
// aspect ratio and normalizes it.
func (p *Preprocessor) FromImage(img image.Image) (*tensor.Dense, error) {
	if p.Width <= 0 || p.Height <= 0 {
		return nil, fmt.Errorf("invalid target size %dx%d", p.Width, p.Height)
	}

	resized := resize.Resize(uint(p.Width), uint(p.Height), toRGB(img), p.Filter)

	bounds := resized.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	if width != p.Width || height != p.Height {
		return nil, fmt.Errorf("resize produced %dx%d, want %dx%d", width, height, p.Width, p.Height)
	}

	data := make([]float32, p.Size())

	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			c := color.NRGBAModel.Convert(resized.At(bounds.Min.X+x, bounds.Min.Y+y)).(color.NRGBA)

			i := (y*width + x) * Channels
			data[i] = float32(c.R) / 255.0
			data[i+1] = float32(c.G) / 255.0
			data[i+2] = float32(c.B) / 255.0
		}
	}

	if p.Debug {
		log.Printf("Preprocessed image: %d values (1 × %d × %d × %d)", len(data), height, width, Channels)
	}

	return tensor.New(tensor.WithShape(p.Shape()...), tensor.WithBacking(data)), nil
}

// toRGB drops alpha without premultiplying and expands gray or paletted
// pixels to three channels. The result is fully opaque.
func toRGB(img image.Image) *image.RGBA {
	b := img.Bounds()
	out := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	for y := 0; y < b.Dy(); y++ {
		for x := 0; x < b.Dx(); x++ {
			c := color.NRGBAModel.Convert(img.At(b.Min.X+x, b.Min.Y+y)).(color.NRGBA)
			i := out.PixOffset(x, y)
			out.Pix[i], out.Pix[i+1], out.Pix[i+2], out.Pix[i+3] = c.R, c.G, c.B, 0xff
		}
	}
	return out
}

// FromValues wraps raw normalized values in a tensor, validating length and range.
func (p *Preprocessor) FromValues(values []float32) (*tensor.Dense, error) {
	if len(values) != p.Size() {
		return nil, apperr.New(apperr.Validation, fmt.Sprintf("expected %d values, got %d", p.Size(), len(values)))
	}
	for i, v := range values {
		if !(v >= 0 && v <= 1) {
			return nil, apperr.New(apperr.Validation, fmt.Sprintf("value %d out of range [0, 1]: %v", i, v))
		}
	}

	data := make([]float32, len(values))
	copy(data, values)
	return tensor.New(tensor.WithShape(p.Shape()...), tensor.WithBacking(data)), nil
}
