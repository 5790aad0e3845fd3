// Package features describes the frozen, pretrained feature extractor used by
// the perceptual (content) loss and the input convention it expects.
package features

import (
	"fmt"

	"github.com/pkg/errors"

	"github.com/menta2k/srgan-data/pkg/tensor"
)

// ErrUnsupportedLayer is returned for output layers other than 22 and 54.
var ErrUnsupportedLayer = errors.New("unsupported feature layer")

// Layer names an extraction depth by its conventional "ij" VGG19 notation
// (block i, convolution j).
type Layer int

const (
	// Layer22 is the low-level feature map of the second convolution in block 2.
	Layer22 Layer = 22
	// Layer54 is the high-level feature map of the fourth convolution in block 5.
	Layer54 Layer = 54
)

// ParseLayer validates a numeric layer selector.
func ParseLayer(n int) (Layer, error) {
	switch Layer(n) {
	case Layer22, Layer54:
		return Layer(n), nil
	}
	return 0, errors.Wrapf(ErrUnsupportedLayer, "VGG output layer %d is not recognized", n)
}

// Index is the position of the layer in the VGG19 (include_top=false) layer list.
func (l Layer) Index() int {
	switch l {
	case Layer22:
		return 5
	case Layer54:
		return 20
	}
	return -1
}

// Name is the VGG19 layer name.
func (l Layer) Name() string {
	switch l {
	case Layer22:
		return "block2_conv2"
	case Layer54:
		return "block5_conv4"
	}
	return fmt.Sprintf("layer%d", int(l))
}

// String implements fmt.Stringer
func (l Layer) String() string {
	return fmt.Sprintf("%d (%s)", int(l), l.Name())
}

// Extractor is an opaque pretrained network mapping a preprocessed image batch
// (B, H, W, 3) to a feature batch taken at layer. With beforeActivation set the
// values are taken before that layer's ReLU.
//
// Implementations are read-only and must be safe for concurrent calls.
type Extractor interface {
	Extract(batch tensor.Tensor, layer Layer, beforeActivation bool) (tensor.Tensor, error)
}

// Func adapts a plain function to the Extractor interface.
type Func func(batch tensor.Tensor, layer Layer, beforeActivation bool) (tensor.Tensor, error)

// Extract implements Extractor.
func (f Func) Extract(batch tensor.Tensor, layer Layer, beforeActivation bool) (tensor.Tensor, error) {
	return f(batch, layer, beforeActivation)
}
