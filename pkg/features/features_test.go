package features

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/menta2k/srgan-data/pkg/tensor"
)

func TestParseLayer(t *testing.T) {
	l, err := ParseLayer(22)
	require.NoError(t, err)
	assert.Equal(t, 5, l.Index())
	assert.Equal(t, "block2_conv2", l.Name())

	l, err = ParseLayer(54)
	require.NoError(t, err)
	assert.Equal(t, 20, l.Index())
	assert.Equal(t, "block5_conv4", l.Name())

	for _, n := range []int{0, 21, 34, 55} {
		_, err := ParseLayer(n)
		assert.ErrorIs(t, err, ErrUnsupportedLayer, "layer %d", n)
	}
}

func TestPreprocess(t *testing.T) {
	in, err := tensor.FromData([]float64{1, 0.5, 0, 0, 0, 0}, 1, 1, 2, 3)
	require.NoError(t, err)

	out, err := Preprocess(in)
	require.NoError(t, err)
	assert.Equal(t, in.Shape, out.Shape)

	// first pixel: R=255, G=127.5, B=0 -> BGR order, mean removed, scaled
	assert.InDelta(t, (0-103.939)/12.75, out.Data[0], 1e-12)
	assert.InDelta(t, (127.5-116.779)/12.75, out.Data[1], 1e-12)
	assert.InDelta(t, (255-123.68)/12.75, out.Data[2], 1e-12)
	// black pixel is just the negated mean
	assert.InDelta(t, -123.68/12.75, out.Data[5], 1e-12)
	// input untouched
	assert.Equal(t, 1.0, in.Data[0])
}

func TestPreprocessRejectsWrongChannels(t *testing.T) {
	_, err := Preprocess(tensor.New(1, 2, 2, 4))
	assert.Error(t, err)
	_, err = Preprocess(tensor.Scalar(1))
	assert.Error(t, err)
}

func TestFuncAdapter(t *testing.T) {
	var called Layer
	var ext Extractor = Func(func(b tensor.Tensor, l Layer, pre bool) (tensor.Tensor, error) {
		called = l
		return b, nil
	})
	_, err := ext.Extract(tensor.New(1), Layer54, true)
	require.NoError(t, err)
	assert.Equal(t, Layer54, called)
}
