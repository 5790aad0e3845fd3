package augment

import (
	"image"
	"math/rand/v2"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/menta2k/srgan-data/pkg/processing"
	"github.com/menta2k/srgan-data/pkg/types"
)

// createTestImage fills every pixel with a value derived from its position
func createTestImage(height, width, channels int) types.Image {
	img := types.NewImage(height, width, channels)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			for c := 0; c < channels; c++ {
				img.Pix[img.Offset(y, x, c)] = uint8((y*width+x)*channels + c)
			}
		}
	}
	return img
}

// upscale repeats each pixel ratio×ratio times, so block (y,x) of the result
// depicts pixel (y,x) of the input.
func upscale(img types.Image, ratio int) types.Image {
	out := types.NewImage(img.Height*ratio, img.Width*ratio, img.Channels)
	for y := 0; y < out.Height; y++ {
		for x := 0; x < out.Width; x++ {
			for c := 0; c < img.Channels; c++ {
				out.Pix[out.Offset(y, x, c)] = img.At(y/ratio, x/ratio, c)
			}
		}
	}
	return out
}

func createPair(lowH, lowW, ratio int) types.PairedSample {
	low := createTestImage(lowH, lowW, 3)
	return types.PairedSample{Name: "pair", LowRes: low, HighRes: upscale(low, ratio)}
}

func newRNG(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

// assertAligned checks that the high-res image is the block upscale of the low-res one
func assertAligned(t *testing.T, low, high types.FloatImage, ratio int) {
	t.Helper()
	require.Equal(t, low.Height*ratio, high.Height)
	require.Equal(t, low.Width*ratio, high.Width)
	for y := 0; y < high.Height; y++ {
		for x := 0; x < high.Width; x++ {
			for c := 0; c < high.Channels; c++ {
				hv := high.Pix[(y*high.Width+x)*high.Channels+c]
				lv := low.Pix[((y/ratio)*low.Width+x/ratio)*low.Channels+c]
				if hv != lv {
					t.Fatalf("pair desynchronized at (%d,%d,%d): high=%v low=%v", y, x, c, hv, lv)
				}
			}
		}
	}
}

func TestValidateShapes(t *testing.T) {
	good := createPair(4, 4, 4)
	require.NoError(t, ValidateShapes(good, 8, 4))
	require.NoError(t, ValidateShapes(good, 16, 4))

	tests := []struct {
		name   string
		sample types.PairedSample
		gt     int
	}{
		{"high res smaller than ground truth", good, 17},
		{"height not scaled by ratio", types.PairedSample{LowRes: createTestImage(5, 4, 3), HighRes: createTestImage(16, 16, 3)}, 8},
		{"width not scaled by ratio", types.PairedSample{LowRes: createTestImage(4, 3, 3), HighRes: createTestImage(16, 16, 3)}, 8},
		{"channel mismatch", types.PairedSample{LowRes: createTestImage(4, 4, 1), HighRes: createTestImage(16, 16, 3)}, 8},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidateShapes(tc.sample, tc.gt, 4)
			assert.ErrorIs(t, err, ErrShapeInvariant)
		})
	}
}

func TestRandomCropScalesOffset(t *testing.T) {
	sample := createPair(4, 4, 4)
	rng := newRNG(7)

	seen := map[image.Point]bool{}
	for i := 0; i < 500; i++ {
		cropped, off, err := RandomCrop(rng, sample, 8, 4)
		require.NoError(t, err)

		assert.GreaterOrEqual(t, off.X, 0)
		assert.LessOrEqual(t, off.X, 2)
		assert.GreaterOrEqual(t, off.Y, 0)
		assert.LessOrEqual(t, off.Y, 2)
		seen[off] = true

		assert.Equal(t, [3]int{2, 2, 3}, cropped.LowRes.Shape())
		assert.Equal(t, [3]int{8, 8, 3}, cropped.HighRes.Shape())

		// high-res origin is the low-res origin times the ratio
		wantHigh, err := Crop(sample.HighRes, off.Y*4, off.X*4, 8, 8)
		require.NoError(t, err)
		assert.Equal(t, wantHigh, cropped.HighRes)
		wantLow, err := Crop(sample.LowRes, off.Y, off.X, 2, 2)
		require.NoError(t, err)
		assert.Equal(t, wantLow, cropped.LowRes)
	}
	assert.Len(t, seen, 9, "every offset in {0,1,2}x{0,1,2} should be reachable")
}

func TestRandomCropRejectsBadGeometry(t *testing.T) {
	bad := types.PairedSample{LowRes: createTestImage(4, 4, 3), HighRes: createTestImage(15, 16, 3)}
	_, _, err := RandomCrop(newRNG(1), bad, 8, 4)
	assert.ErrorIs(t, err, ErrShapeInvariant)
}

func TestAugmentKeepsPairAligned(t *testing.T) {
	aug := Augmenter{GroundTruthSize: 8, Ratio: 4, Flip: true, Rotate: true}
	require.NoError(t, aug.Check())
	sample := createPair(6, 5, 4)
	rng := newRNG(42)

	flips := map[bool]int{}
	rotations := map[Rotation]int{}
	for i := 0; i < 400; i++ {
		pair, d, err := aug.Augment(rng, sample)
		require.NoError(t, err)
		flips[d.Flip]++
		rotations[d.Rotation]++

		assert.Equal(t, 2, pair.LowRes.Height)
		assert.Equal(t, 8, pair.HighRes.Width)
		assertAligned(t, pair.LowRes, pair.HighRes, 4)
	}
	assert.Len(t, flips, 2)
	assert.Len(t, rotations, 4)
}

func TestApplyIsDeterministic(t *testing.T) {
	aug := Augmenter{GroundTruthSize: 8, Ratio: 2, Flip: true, Rotate: true}
	sample := createPair(8, 8, 2)
	d := Decision{OffsetY: 1, OffsetX: 3, Flip: true, Rotation: Rotate270}

	a, err := aug.Apply(sample, d)
	require.NoError(t, err)
	b, err := aug.Apply(sample, d)
	require.NoError(t, err)
	assert.Equal(t, a, b)
	assertAligned(t, a.LowRes, a.HighRes, 2)

	_, err = aug.Apply(sample, Decision{OffsetY: 5})
	assert.Error(t, err, "offset past the valid range must not be cropped")
}

func TestSameSeedSameDecisions(t *testing.T) {
	aug := Augmenter{GroundTruthSize: 8, Ratio: 4, Flip: true, Rotate: true}
	sample := createPair(10, 10, 4)

	d1, err := aug.Draw(newRNG(3), sample)
	require.NoError(t, err)
	d2, err := aug.Draw(newRNG(3), sample)
	require.NoError(t, err)
	assert.Equal(t, d1, d2)
}

func TestDisabledFlipAndRotateLeaveImagesAlone(t *testing.T) {
	aug := Augmenter{GroundTruthSize: 16, Ratio: 4}
	sample := createPair(4, 4, 4)

	for i := 0; i < 20; i++ {
		d, err := aug.Draw(newRNG(uint64(i)), sample)
		require.NoError(t, err)
		assert.False(t, d.Flip)
		assert.Equal(t, Rotate0, d.Rotation)
	}

	s := RandomFlip(newRNG(1), sample, false)
	assert.Equal(t, sample, s)
	s = RandomRotate(newRNG(1), sample, false)
	assert.Equal(t, sample, s)
}

func TestRandomFlipAndRotateShareDecision(t *testing.T) {
	sample := createPair(3, 5, 2)
	for i := 0; i < 50; i++ {
		flipped := RandomFlip(newRNG(uint64(i)), sample, true)
		assertAligned(t, Normalize(flipped.LowRes), Normalize(flipped.HighRes), 2)

		rotated := RandomRotate(newRNG(uint64(i)), sample, true)
		assertAligned(t, Normalize(rotated.LowRes), Normalize(rotated.HighRes), 2)
	}
}

func TestFlipMatchesImaging(t *testing.T) {
	img := createTestImage(3, 5, 3)
	nrgba, err := processing.ToNRGBA(img)
	require.NoError(t, err)

	assert.Equal(t, processing.ToRGB(imaging.FlipH(nrgba)), FlipHorizontal(img))
}

func TestRotateMatchesImaging(t *testing.T) {
	img := createTestImage(3, 5, 3)
	nrgba, err := processing.ToNRGBA(img)
	require.NoError(t, err)

	assert.Equal(t, img, RotateQuarter(img, 0))
	assert.Equal(t, processing.ToRGB(imaging.Rotate90(nrgba)), RotateQuarter(img, 1))
	assert.Equal(t, processing.ToRGB(imaging.Rotate180(nrgba)), RotateQuarter(img, 2))
	assert.Equal(t, processing.ToRGB(imaging.Rotate270(nrgba)), RotateQuarter(img, 3))
	assert.Equal(t, RotateQuarter(img, 3), RotateQuarter(img, -1))
}

func TestTransformsDoNotMutateInput(t *testing.T) {
	img := createTestImage(4, 4, 3)
	orig := append([]uint8(nil), img.Pix...)

	_ = FlipHorizontal(img)
	_ = RotateQuarter(img, 1)
	_ = RotateQuarter(img, 0)
	_, _ = Crop(img, 1, 1, 2, 2)
	assert.Equal(t, orig, img.Pix)
}

func TestNormalizeRange(t *testing.T) {
	img := types.NewImage(16, 16, 1)
	for i := range img.Pix {
		img.Pix[i] = uint8(i)
	}
	f := Normalize(img)
	for _, v := range f.Pix {
		assert.GreaterOrEqual(t, v, 0.0)
		assert.LessOrEqual(t, v, 1.0)
	}
	assert.Equal(t, 0.0, f.Pix[0])
	assert.Equal(t, 1.0, f.Pix[255])
}

func TestDecisionWindows(t *testing.T) {
	d := Decision{OffsetY: 2, OffsetX: 1}
	assert.Equal(t, image.Rect(1, 2, 3, 4), d.LowWindow(8, 4))
	assert.Equal(t, image.Rect(4, 8, 12, 16), d.HighWindow(8, 4))
}

func TestAugmenterCheck(t *testing.T) {
	assert.Error(t, Augmenter{GroundTruthSize: 8, Ratio: 0}.Check())
	assert.Error(t, Augmenter{GroundTruthSize: 2, Ratio: 4}.Check())
	assert.Error(t, Augmenter{GroundTruthSize: 10, Ratio: 4}.Check())
	assert.NoError(t, Augmenter{GroundTruthSize: 4, Ratio: 4}.Check())
	assert.NoError(t, Augmenter{GroundTruthSize: 12, Ratio: 4}.Check())
}

func TestRandomCropRejectsUnalignedGroundTruth(t *testing.T) {
	low := types.NewImage(3, 3, 3)
	high := types.NewImage(12, 12, 3)
	s := types.PairedSample{Name: "x", LowRes: low, HighRes: high}
	rng := rand.New(rand.NewPCG(1, 2))
	for i := 0; i < 100; i++ {
		_, _, err := RandomCrop(rng, s, 10, 4)
		require.Error(t, err)
		assert.NotErrorIs(t, err, ErrShapeInvariant)
	}
	_, _, err := RandomCrop(rng, s, 12, 4)
	assert.NoError(t, err)
}

func BenchmarkAugment(b *testing.B) {
	aug := Augmenter{GroundTruthSize: 128, Ratio: 4, Flip: true, Rotate: true}
	sample := createPair(64, 64, 4)
	rng := newRNG(1)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		aug.Augment(rng, sample)
	}
}
