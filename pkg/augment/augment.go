// Package augment applies geometry-consistent random augmentations to paired
// low-resolution / high-resolution images.
//
// Every random choice for a sample is drawn once into a Decision and then
// applied by pure transforms to both images, so the pair always shows the
// same scene region with the same orientation:
//
//	aug := augment.Augmenter{GroundTruthSize: 128, Ratio: 4, Flip: true, Rotate: true}
//	pair, decision, err := aug.Augment(rng, sample)
//
// The high-resolution crop origin is always the low-resolution origin times
// Ratio.
package augment

import (
	"fmt"
	"image"
	"math/rand/v2"

	"github.com/pkg/errors"

	"github.com/menta2k/srgan-data/pkg/types"
)

// Rotation is a counter-clockwise rotation by a multiple of 90 degrees
type Rotation int

// Supported rotations
const (
	Rotate0 Rotation = iota
	Rotate90
	Rotate180
	Rotate270
)

// String implements fmt.Stringer
func (r Rotation) String() string {
	return fmt.Sprintf("rot%d", int(r)*90)
}

// Decision holds every random choice made for one sample.
// It is a value: draw it once, apply it to both images.
type Decision struct {
	// OffsetY, OffsetX is the low-resolution crop origin.
	OffsetY, OffsetX int
	Flip             bool
	Rotation         Rotation
}

// LowWindow is the low-resolution crop rectangle (x horizontal, y vertical)
func (d Decision) LowWindow(groundTruthSize, ratio int) image.Rectangle {
	lowCrop := LowCropSize(groundTruthSize, ratio)
	return image.Rect(d.OffsetX, d.OffsetY, d.OffsetX+lowCrop, d.OffsetY+lowCrop)
}

// HighWindow is the high-resolution crop rectangle
func (d Decision) HighWindow(groundTruthSize, ratio int) image.Rectangle {
	y, x := d.OffsetY*ratio, d.OffsetX*ratio
	return image.Rect(x, y, x+groundTruthSize, y+groundTruthSize)
}

// LowCropSize is floor(groundTruthSize / ratio)
func LowCropSize(groundTruthSize, ratio int) int {
	return groundTruthSize / ratio
}

// Augmenter binds the augmentation parameters of a dataset
type Augmenter struct {
	GroundTruthSize int
	Ratio           int
	Flip            bool
	Rotate          bool
}

// Check validates the parameters themselves
func (a Augmenter) Check() error {
	if a.Ratio <= 0 {
		return errors.Errorf("ratio must be positive, got %d", a.Ratio)
	}
	if a.GroundTruthSize < a.Ratio {
		return errors.Errorf("ground truth size %d must be at least the ratio %d", a.GroundTruthSize, a.Ratio)
	}
	if a.GroundTruthSize%a.Ratio != 0 {
		return errors.Errorf("ground truth size %d must be a multiple of the ratio %d", a.GroundTruthSize, a.Ratio)
	}
	return nil
}

// Draw validates the sample geometry and draws the crop offset, flip coin and
// rotation for it, in that order.
func (a Augmenter) Draw(rng *rand.Rand, s types.PairedSample) (Decision, error) {
	if err := ValidateShapes(s, a.GroundTruthSize, a.Ratio); err != nil {
		return Decision{}, err
	}
	dy, dx := drawOffset(rng, s.LowRes, LowCropSize(a.GroundTruthSize, a.Ratio))
	d := Decision{OffsetY: dy, OffsetX: dx}
	if a.Flip {
		d.Flip = drawFlip(rng)
	}
	if a.Rotate {
		d.Rotation = drawRotation(rng)
	}
	return d, nil
}

// Apply performs the crop, flip, rotation and normalization described by d.
// It draws nothing and is safe to call repeatedly with the same inputs.
func (a Augmenter) Apply(s types.PairedSample, d Decision) (types.NormalizedPair, error) {
	lowCrop := LowCropSize(a.GroundTruthSize, a.Ratio)
	low, err := Crop(s.LowRes, d.OffsetY, d.OffsetX, lowCrop, lowCrop)
	if err != nil {
		return types.NormalizedPair{}, errors.Wrapf(err, "low-res crop of %q", s.Name)
	}
	high, err := Crop(s.HighRes, d.OffsetY*a.Ratio, d.OffsetX*a.Ratio, a.GroundTruthSize, a.GroundTruthSize)
	if err != nil {
		return types.NormalizedPair{}, errors.Wrapf(err, "high-res crop of %q", s.Name)
	}
	pair := applyOrientation(types.PairedSample{Name: s.Name, LowRes: low, HighRes: high}, d.Flip, d.Rotation)
	return NormalizePair(pair), nil
}

// Augment validates s, draws a Decision from rng and applies it
func (a Augmenter) Augment(rng *rand.Rand, s types.PairedSample) (types.NormalizedPair, Decision, error) {
	d, err := a.Draw(rng, s)
	if err != nil {
		return types.NormalizedPair{}, Decision{}, err
	}
	pair, err := a.Apply(s, d)
	return pair, d, err
}

// RandomCrop crops both images at one random offset: the low-res window is
// floor(gt/ratio) square at (dy, dx), the high-res window is gt square at
// (dy*ratio, dx*ratio). It returns the cropped pair and the offset drawn.
func RandomCrop(rng *rand.Rand, s types.PairedSample, groundTruthSize, ratio int) (types.PairedSample, image.Point, error) {
	if err := (Augmenter{GroundTruthSize: groundTruthSize, Ratio: ratio}).Check(); err != nil {
		return types.PairedSample{}, image.Point{}, err
	}
	if err := ValidateShapes(s, groundTruthSize, ratio); err != nil {
		return types.PairedSample{}, image.Point{}, err
	}
	lowCrop := LowCropSize(groundTruthSize, ratio)
	dy, dx := drawOffset(rng, s.LowRes, lowCrop)

	low, err := Crop(s.LowRes, dy, dx, lowCrop, lowCrop)
	if err != nil {
		return types.PairedSample{}, image.Point{}, err
	}
	high, err := Crop(s.HighRes, dy*ratio, dx*ratio, groundTruthSize, groundTruthSize)
	if err != nil {
		return types.PairedSample{}, image.Point{}, err
	}
	return types.PairedSample{Name: s.Name, LowRes: low, HighRes: high}, image.Pt(dx, dy), nil
}

// RandomFlip mirrors both images with probability 1/2 when enabled
func RandomFlip(rng *rand.Rand, s types.PairedSample, enabled bool) types.PairedSample {
	if !enabled {
		return s
	}
	return applyOrientation(s, drawFlip(rng), Rotate0)
}

// RandomRotate rotates both images by one of 0, 90, 180 or 270 degrees when enabled
func RandomRotate(rng *rand.Rand, s types.PairedSample, enabled bool) types.PairedSample {
	if !enabled {
		return s
	}
	return applyOrientation(s, false, drawRotation(rng))
}

// NormalizePair normalizes both images to [0,1]
func NormalizePair(s types.PairedSample) types.NormalizedPair {
	return types.NormalizedPair{
		Name:    s.Name,
		LowRes:  Normalize(s.LowRes),
		HighRes: Normalize(s.HighRes),
	}
}

func applyOrientation(s types.PairedSample, flip bool, rot Rotation) types.PairedSample {
	if flip {
		s.LowRes = FlipHorizontal(s.LowRes)
		s.HighRes = FlipHorizontal(s.HighRes)
	}
	if rot != Rotate0 {
		s.LowRes = RotateQuarter(s.LowRes, int(rot))
		s.HighRes = RotateQuarter(s.HighRes, int(rot))
	}
	return s
}

// drawOffset draws (dy, dx) uniformly from [0, H-crop] × [0, W-crop] inclusive
func drawOffset(rng *rand.Rand, low types.Image, lowCrop int) (int, int) {
	dy := rng.IntN(low.Height - lowCrop + 1)
	dx := rng.IntN(low.Width - lowCrop + 1)
	return dy, dx
}

func drawFlip(rng *rand.Rand) bool {
	return rng.IntN(2) == 0
}

func drawRotation(rng *rand.Rand) Rotation {
	return Rotation(rng.IntN(4))
}
