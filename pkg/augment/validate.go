package augment

import (
	"github.com/pkg/errors"

	"github.com/menta2k/srgan-data/pkg/types"
)

// ErrShapeInvariant marks a pair whose geometry cannot be augmented consistently.
// A dataset producing it is corrupt; callers must stop rather than skip.
var ErrShapeInvariant = errors.New("shape invariant violated")

// ValidateShapes checks that the high-res image is at least groundTruthSize in
// both dimensions, is exactly ratio times the low-res image, and has the same
// channel count.
func ValidateShapes(s types.PairedSample, groundTruthSize, ratio int) error {
	hr, lr := s.HighRes, s.LowRes
	if hr.Height < groundTruthSize || hr.Width < groundTruthSize {
		return errors.Wrapf(ErrShapeInvariant, "%q: need high-res %s >= %d", s.Name, hr, groundTruthSize)
	}
	if hr.Height != lr.Height*ratio || hr.Width != lr.Width*ratio {
		return errors.Wrapf(ErrShapeInvariant, "%q: need high-res %dx%d == low-res %dx%d * %d",
			s.Name, hr.Height, hr.Width, lr.Height, lr.Width, ratio)
	}
	if hr.Channels != lr.Channels {
		return errors.Wrapf(ErrShapeInvariant, "%q: high-res has %d channels, low-res has %d",
			s.Name, hr.Channels, lr.Channels)
	}
	return nil
}
