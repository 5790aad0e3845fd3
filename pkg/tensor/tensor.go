// Package tensor provides the dense float64 tensor exchanged between the data
// pipeline, the loss functions and the feature extractor.
//
// Tensors are row-major. Image batches use the (batch, height, width, channels)
// layout; discriminator scores use (batch, 1) or any shape whose elements are
// scores.
package tensor

import (
	"fmt"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/menta2k/srgan-data/pkg/types"
)

// ErrShapeMismatch is returned when two tensors that must agree in shape do not.
var ErrShapeMismatch = errors.New("tensor shape mismatch")

// Tensor is a dense row-major float64 tensor.
type Tensor struct {
	Shape []int
	Data  []float64
}

// New allocates a zero tensor.
func New(shape ...int) Tensor {
	return Tensor{Shape: append([]int(nil), shape...), Data: make([]float64, sizeOf(shape))}
}

// FromData wraps data with the given shape. The slice is not copied.
func FromData(data []float64, shape ...int) (Tensor, error) {
	if len(data) != sizeOf(shape) {
		return Tensor{}, errors.Wrapf(ErrShapeMismatch, "%d values do not fit shape %v", len(data), shape)
	}
	return Tensor{Shape: append([]int(nil), shape...), Data: data}, nil
}

// Scalar returns a rank-0 tensor.
func Scalar(v float64) Tensor {
	return Tensor{Shape: []int{}, Data: []float64{v}}
}

func sizeOf(shape []int) int {
	n := 1
	for _, d := range shape {
		n *= d
	}
	return n
}

// Size is the number of elements.
func (t Tensor) Size() int {
	return len(t.Data)
}

// Rank is the number of axes.
func (t Tensor) Rank() int {
	return len(t.Shape)
}

// SameShape reports whether both tensors have identical dimensions.
func (t Tensor) SameShape(o Tensor) bool {
	if len(t.Shape) != len(o.Shape) {
		return false
	}
	for i := range t.Shape {
		if t.Shape[i] != o.Shape[i] {
			return false
		}
	}
	return true
}

// CheckSameShape returns ErrShapeMismatch with details if the shapes differ.
func CheckSameShape(a, b Tensor) error {
	if !a.SameShape(b) {
		return errors.Wrapf(ErrShapeMismatch, "%v vs %v", a.Shape, b.Shape)
	}
	return nil
}

// Clone returns a deep copy.
func (t Tensor) Clone() Tensor {
	return Tensor{Shape: append([]int(nil), t.Shape...), Data: append([]float64(nil), t.Data...)}
}

// Map returns a new tensor with fn applied to every element.
func (t Tensor) Map(fn func(float64) float64) Tensor {
	out := New(t.Shape...)
	for i, v := range t.Data {
		out.Data[i] = fn(v)
	}
	return out
}

// Mean is the average over all elements.
func (t Tensor) Mean() float64 {
	if len(t.Data) == 0 {
		return 0
	}
	return stat.Mean(t.Data, nil)
}

// Sub returns a - b elementwise.
func Sub(a, b Tensor) (Tensor, error) {
	if err := CheckSameShape(a, b); err != nil {
		return Tensor{}, err
	}
	out := New(a.Shape...)
	floats.SubTo(out.Data, a.Data, b.Data)
	return out, nil
}

// String implements fmt.Stringer, printing only the shape.
func (t Tensor) String() string {
	return fmt.Sprintf("Tensor%v", t.Shape)
}

// FromImage converts one normalized image into a (1, H, W, C) tensor.
func FromImage(im types.FloatImage) Tensor {
	return Tensor{
		Shape: []int{1, im.Height, im.Width, im.Channels},
		Data:  append([]float64(nil), im.Pix...),
	}
}

// Stack stacks images of identical shape along a new leading batch axis.
func Stack(images []types.FloatImage) (Tensor, error) {
	if len(images) == 0 {
		return Tensor{}, errors.New("cannot stack an empty list of images")
	}
	first := images[0]
	out := New(len(images), first.Height, first.Width, first.Channels)
	stride := first.Height * first.Width * first.Channels
	for i, im := range images {
		if im.Height != first.Height || im.Width != first.Width || im.Channels != first.Channels {
			return Tensor{}, errors.Wrapf(ErrShapeMismatch, "image %d is %dx%dx%d, expected %dx%dx%d",
				i, im.Height, im.Width, im.Channels, first.Height, first.Width, first.Channels)
		}
		copy(out.Data[i*stride:(i+1)*stride], im.Pix)
	}
	return out, nil
}

// Image extracts element i of a (B, H, W, C) tensor.
func (t Tensor) Image(i int) (types.FloatImage, error) {
	if t.Rank() != 4 {
		return types.FloatImage{}, errors.Errorf("expected a rank-4 (B,H,W,C) tensor, got shape %v", t.Shape)
	}
	if i < 0 || i >= t.Shape[0] {
		return types.FloatImage{}, errors.Errorf("batch index %d out of range [0,%d)", i, t.Shape[0])
	}
	h, w, c := t.Shape[1], t.Shape[2], t.Shape[3]
	stride := h * w * c
	return types.FloatImage{
		Height:   h,
		Width:    w,
		Channels: c,
		Pix:      append([]float64(nil), t.Data[i*stride:(i+1)*stride]...),
	}, nil
}
