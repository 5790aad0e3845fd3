package tensor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/menta2k/srgan-data/pkg/types"
)

func floatImage(h, w, c int, fill float64) types.FloatImage {
	pix := make([]float64, h*w*c)
	for i := range pix {
		pix[i] = fill
	}
	return types.FloatImage{Height: h, Width: w, Channels: c, Pix: pix}
}

func TestFromData(t *testing.T) {
	tt, err := FromData([]float64{1, 2, 3, 4, 5, 6}, 2, 3)
	require.NoError(t, err)
	assert.Equal(t, 6, tt.Size())
	assert.Equal(t, 2, tt.Rank())

	_, err = FromData([]float64{1, 2, 3}, 2, 2)
	assert.ErrorIs(t, err, ErrShapeMismatch)
}

func TestStack(t *testing.T) {
	a := floatImage(2, 3, 3, 0.25)
	b := floatImage(2, 3, 3, 0.75)

	batch, err := Stack([]types.FloatImage{a, b})
	require.NoError(t, err)
	assert.Equal(t, []int{2, 2, 3, 3}, batch.Shape)
	assert.Equal(t, 0.25, batch.Data[0])
	assert.Equal(t, 0.75, batch.Data[18])

	second, err := batch.Image(1)
	require.NoError(t, err)
	assert.Equal(t, b, second)
}

func TestStackRejectsMixedShapes(t *testing.T) {
	_, err := Stack([]types.FloatImage{floatImage(2, 2, 3, 0), floatImage(2, 3, 3, 0)})
	assert.ErrorIs(t, err, ErrShapeMismatch)

	_, err = Stack(nil)
	assert.Error(t, err)
}

func TestSubAndMean(t *testing.T) {
	a, _ := FromData([]float64{1, 2, 3, 4}, 2, 2)
	b, _ := FromData([]float64{1, 1, 1, 1}, 2, 2)

	d, err := Sub(a, b)
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 1, 2, 3}, d.Data)
	assert.InDelta(t, 1.5, d.Mean(), 1e-12)

	c := New(4)
	_, err = Sub(a, c)
	assert.ErrorIs(t, err, ErrShapeMismatch)
}

func TestMapDoesNotMutate(t *testing.T) {
	a, _ := FromData([]float64{1, 2}, 2)
	doubled := a.Map(func(v float64) float64 { return 2 * v })
	assert.Equal(t, []float64{2, 4}, doubled.Data)
	assert.Equal(t, []float64{1, 2}, a.Data)
}
