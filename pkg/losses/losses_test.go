package losses

import (
	"math"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/menta2k/srgan-data/pkg/features"
	"github.com/menta2k/srgan-data/pkg/tensor"
)

func mustTensor(t *testing.T, data []float64, shape ...int) tensor.Tensor {
	t.Helper()
	tt, err := tensor.FromData(data, shape...)
	require.NoError(t, err)
	return tt
}

// identityExtractor returns its (preprocessed) input as the feature map
type identityExtractor struct {
	mu     sync.Mutex
	calls  int
	layers []features.Layer
	pre    []bool
}

func (e *identityExtractor) Extract(batch tensor.Tensor, layer features.Layer, beforeActivation bool) (tensor.Tensor, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls++
	e.layers = append(e.layers, layer)
	e.pre = append(e.pre, beforeActivation)
	return batch.Clone(), nil
}

func sig(x float64) float64 { return 1 / (1 + math.Exp(-x)) }

func TestParseSelectors(t *testing.T) {
	c, err := ParseCriterion("L1")
	require.NoError(t, err)
	assert.Equal(t, L1, c)
	c, err = ParseCriterion("l2")
	require.NoError(t, err)
	assert.Equal(t, L2, c)
	_, err = ParseCriterion("huber")
	assert.ErrorIs(t, err, ErrUnsupportedCriterion)

	m, err := ParseGANMode("ragan")
	require.NoError(t, err)
	assert.Equal(t, RaGAN, m)
	m, err = ParseGANMode("relativistic-gan")
	require.NoError(t, err)
	assert.Equal(t, RaGAN, m)
	m, err = ParseGANMode("gan")
	require.NoError(t, err)
	assert.Equal(t, GAN, m)
	_, err = ParseGANMode("wgan")
	assert.ErrorIs(t, err, ErrUnsupportedGANMode)
}

func TestParseConfig(t *testing.T) {
	cfg, err := ParseConfig("l1", "l2", 22, false, "gan")
	require.NoError(t, err)
	assert.Equal(t, Config{PixelCriterion: L1, ContentCriterion: L2, ContentLayer: features.Layer22, GANMode: GAN}, cfg)

	_, err = ParseConfig("l1", "l1", 33, true, "ragan")
	assert.ErrorIs(t, err, features.ErrUnsupportedLayer)
	_, err = ParseConfig("l0", "l1", 54, true, "ragan")
	assert.ErrorIs(t, err, ErrUnsupportedCriterion)
}

func TestPixelLossIdenticalInputs(t *testing.T) {
	x := mustTensor(t, []float64{0.1, 0.9, 0.3, 0.7, 0.5, 0}, 1, 1, 2, 3)
	for _, c := range []Criterion{L1, L2} {
		fn, err := PixelLoss(c)
		require.NoError(t, err)
		v, err := fn(x, x)
		require.NoError(t, err)
		assert.Equal(t, 0.0, v, "criterion %v", c)
	}
}

func TestPixelLossValues(t *testing.T) {
	a := mustTensor(t, []float64{0, 0, 0, 0}, 2, 2)
	b := mustTensor(t, []float64{1, -1, 2, 0}, 2, 2)

	l1, err := PixelLoss(L1)
	require.NoError(t, err)
	v, err := l1(a, b)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, v, 1e-12)

	l2, err := PixelLoss(L2)
	require.NoError(t, err)
	v, err = l2(a, b)
	require.NoError(t, err)
	assert.InDelta(t, 1.5, v, 1e-12)

	_, err = l1(a, tensor.New(4))
	assert.ErrorIs(t, err, tensor.ErrShapeMismatch)
}

func TestPixelLossUnsupported(t *testing.T) {
	fn, err := PixelLoss(Criterion(0))
	assert.Nil(t, fn)
	assert.ErrorIs(t, err, ErrUnsupportedCriterion)
}

func TestContentLoss(t *testing.T) {
	ext := &identityExtractor{}
	fn, err := ContentLoss(L1, features.Layer22, true, ext)
	require.NoError(t, err)

	hr := mustTensor(t, []float64{0.2, 0.4, 0.6, 0.8, 1.0, 0.0}, 1, 1, 2, 3)
	sr := mustTensor(t, []float64{0.1, 0.4, 0.6, 0.8, 1.0, 0.3}, 1, 1, 2, 3)

	v, err := fn(hr, hr)
	require.NoError(t, err)
	assert.Equal(t, 0.0, v)

	// with identity features the loss is mean|hr-sr| * 255 / 12.75 = 20 * mean|hr-sr|
	v, err = fn(hr, sr)
	require.NoError(t, err)
	assert.InDelta(t, 20*(0.1+0.3)/6, v, 1e-9)

	assert.Equal(t, 4, ext.calls)
	for i := range ext.layers {
		assert.Equal(t, features.Layer22, ext.layers[i])
		assert.True(t, ext.pre[i])
	}
}

func TestContentLossL2(t *testing.T) {
	fn, err := ContentLoss(L2, features.Layer54, false, &identityExtractor{})
	require.NoError(t, err)

	hr := mustTensor(t, []float64{0.5, 0.5, 0.5}, 1, 1, 1, 3)
	sr := mustTensor(t, []float64{0.5, 0.5, 0.6}, 1, 1, 1, 3)
	v, err := fn(hr, sr)
	require.NoError(t, err)
	assert.InDelta(t, 2.0*2.0/3, v, 1e-9)
}

func TestContentLossConstructionErrors(t *testing.T) {
	_, err := ContentLoss(Criterion(7), features.Layer54, true, &identityExtractor{})
	assert.ErrorIs(t, err, ErrUnsupportedCriterion)

	_, err = ContentLoss(L1, features.Layer(33), true, &identityExtractor{})
	assert.ErrorIs(t, err, features.ErrUnsupportedLayer)

	_, err = ContentLoss(L1, features.Layer54, true, nil)
	assert.Error(t, err)
}

func TestContentLossConcurrent(t *testing.T) {
	ext := &identityExtractor{}
	fn, err := ContentLoss(L1, features.Layer54, true, ext)
	require.NoError(t, err)
	hr := mustTensor(t, []float64{0.2, 0.4, 0.6}, 1, 1, 1, 3)
	sr := mustTensor(t, []float64{0.3, 0.4, 0.6}, 1, 1, 1, 3)

	var wg sync.WaitGroup
	results := make([]float64, 16)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			v, err := fn(hr, sr)
			assert.NoError(t, err)
			results[i] = v
		}(i)
	}
	wg.Wait()
	for _, v := range results {
		assert.InDelta(t, results[0], v, 1e-12)
	}
	assert.Equal(t, 32, ext.calls)
}

func TestDiscriminatorLossBalancedScores(t *testing.T) {
	zeros := tensor.New(4, 1)
	half := -math.Log(0.5 + epsilon)

	ragan, err := DiscriminatorLoss(RaGAN)
	require.NoError(t, err)
	v, err := ragan(zeros, zeros)
	require.NoError(t, err)
	assert.InDelta(t, half, v, 1e-12)

	gan, err := DiscriminatorLoss(GAN)
	require.NoError(t, err)
	v, err = gan(zeros, zeros)
	require.NoError(t, err)
	assert.InDelta(t, 2*half, v, 1e-12)
}

func TestRelativisticLosses(t *testing.T) {
	real := mustTensor(t, []float64{2}, 1, 1)
	fake := mustTensor(t, []float64{-2}, 1, 1)

	d, err := DiscriminatorLoss(RaGAN)
	require.NoError(t, err)
	g, err := GeneratorLoss(RaGAN)
	require.NoError(t, err)

	realRel := sig(2 - (-2))
	fakeRel := sig(-2 - 2)

	dv, err := d(real, fake)
	require.NoError(t, err)
	wantD := 0.5 * (-math.Log(realRel+epsilon) - math.Log(1-fakeRel+epsilon))
	assert.InDelta(t, wantD, dv, 1e-12)

	gv, err := g(real, fake)
	require.NoError(t, err)
	wantG := 0.5 * (-math.Log(fakeRel+epsilon) - math.Log(1-realRel+epsilon))
	assert.InDelta(t, wantG, gv, 1e-12)

	assert.Less(t, dv, gv, "a discriminator that separates well has low loss, the generator high loss")
}

func TestRelativisticUsesBatchMean(t *testing.T) {
	real := mustTensor(t, []float64{1, 3}, 2, 1)
	fake := mustTensor(t, []float64{0, -2}, 2, 1)
	meanReal, meanFake := 2.0, -1.0

	d, err := DiscriminatorLoss(RaGAN)
	require.NoError(t, err)
	v, err := d(real, fake)
	require.NoError(t, err)

	realTerm := -(math.Log(sig(1-meanFake)+epsilon) + math.Log(sig(3-meanFake)+epsilon)) / 2
	fakeTerm := -(math.Log(1-sig(0-meanReal)+epsilon) + math.Log(1-sig(-2-meanReal)+epsilon)) / 2
	assert.InDelta(t, 0.5*(realTerm+fakeTerm), v, 1e-12)
}

func TestStandardGeneratorLoss(t *testing.T) {
	g, err := GeneratorLoss(GAN)
	require.NoError(t, err)
	real := mustTensor(t, []float64{5}, 1)
	fake := mustTensor(t, []float64{1}, 1)
	v, err := g(real, fake)
	require.NoError(t, err)
	assert.InDelta(t, -math.Log(sig(1)+epsilon), v, 1e-12)
}

func TestCrossEntropyClipsExtremeScores(t *testing.T) {
	real := mustTensor(t, []float64{100}, 1)
	fake := mustTensor(t, []float64{-100}, 1)

	d, _ := DiscriminatorLoss(RaGAN)
	dv, err := d(real, fake)
	require.NoError(t, err)
	assert.InDelta(t, 0, dv, 1e-12)

	g, _ := GeneratorLoss(RaGAN)
	gv, err := g(real, fake)
	require.NoError(t, err)
	assert.False(t, math.IsInf(gv, 0) || math.IsNaN(gv))
	assert.InDelta(t, -math.Log(2*epsilon), gv, 1e-9)
}

func TestUnsupportedGANMode(t *testing.T) {
	d, err := DiscriminatorLoss(GANMode(42))
	assert.Nil(t, d)
	assert.ErrorIs(t, err, ErrUnsupportedGANMode)

	g, err := GeneratorLoss(GANMode(0))
	assert.Nil(t, g)
	assert.ErrorIs(t, err, ErrUnsupportedGANMode)
}

func TestNew(t *testing.T) {
	l, err := New(DefaultConfig(), &identityExtractor{})
	require.NoError(t, err)
	assert.NotNil(t, l.Pixel)
	assert.NotNil(t, l.Content)
	assert.NotNil(t, l.Discriminator)
	assert.NotNil(t, l.Generator)
	assert.Equal(t, features.Layer54, l.Config.ContentLayer)

	cfg := DefaultConfig()
	cfg.GANMode = GANMode(9)
	_, err = New(cfg, &identityExtractor{})
	assert.ErrorIs(t, err, ErrUnsupportedGANMode)

	cfg = DefaultConfig()
	cfg.PixelCriterion = Criterion(9)
	_, err = New(cfg, &identityExtractor{})
	assert.ErrorIs(t, err, ErrUnsupportedCriterion)

	_, err = New(DefaultConfig(), nil)
	assert.Error(t, err)
}

func BenchmarkContentLoss(b *testing.B) {
	fn, _ := ContentLoss(L1, features.Layer54, true, &identityExtractor{})
	hr := tensor.New(4, 32, 32, 3)
	sr := tensor.New(4, 32, 32, 3)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		fn(hr, sr)
	}
}
