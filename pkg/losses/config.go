package losses

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"

	"github.com/menta2k/srgan-data/pkg/features"
)

var (
	// ErrUnsupportedCriterion is returned for pixel criteria other than l1 and l2.
	ErrUnsupportedCriterion = errors.New("unsupported loss criterion")
	// ErrUnsupportedGANMode is returned for adversarial modes other than gan and ragan.
	ErrUnsupportedGANMode = errors.New("unsupported GAN mode")
)

// Criterion selects the elementwise distance of pixel and content losses.
type Criterion int

const (
	// L1 is the mean absolute error.
	L1 Criterion = iota + 1
	// L2 is the mean squared error.
	L2
)

// ParseCriterion maps "l1" / "l2" to a Criterion.
func ParseCriterion(s string) (Criterion, error) {
	switch strings.ToLower(s) {
	case "l1":
		return L1, nil
	case "l2":
		return L2, nil
	}
	return 0, errors.Wrapf(ErrUnsupportedCriterion, "loss type %q is not recognized", s)
}

// String implements fmt.Stringer.
func (c Criterion) String() string {
	switch c {
	case L1:
		return "l1"
	case L2:
		return "l2"
	}
	return fmt.Sprintf("Criterion(%d)", int(c))
}

// GANMode selects the adversarial loss family.
type GANMode int

const (
	// RaGAN is the relativistic average GAN loss, the default.
	RaGAN GANMode = iota + 1
	// GAN is the standard non-relativistic loss.
	GAN
)

// ParseGANMode maps "ragan" (or "relativistic-gan") / "gan" to a GANMode.
func ParseGANMode(s string) (GANMode, error) {
	switch strings.ToLower(s) {
	case "ragan", "relativistic-gan":
		return RaGAN, nil
	case "gan":
		return GAN, nil
	}
	return 0, errors.Wrapf(ErrUnsupportedGANMode, "GAN mode %q is not recognized", s)
}

// String implements fmt.Stringer.
func (m GANMode) String() string {
	switch m {
	case RaGAN:
		return "ragan"
	case GAN:
		return "gan"
	}
	return fmt.Sprintf("GANMode(%d)", int(m))
}

// Config selects every loss variant for a training run. It is fixed once the
// losses are bound.
type Config struct {
	PixelCriterion   Criterion
	ContentCriterion Criterion
	ContentLayer     features.Layer
	BeforeActivation bool
	GANMode          GANMode
}

// DefaultConfig is l1 pixel and content losses on pre-activation layer 54
// features with the relativistic average GAN loss.
func DefaultConfig() Config {
	return Config{
		PixelCriterion:   L1,
		ContentCriterion: L1,
		ContentLayer:     features.Layer54,
		BeforeActivation: true,
		GANMode:          RaGAN,
	}
}

// ParseConfig builds a Config from the string and integer selectors used in
// configuration files.
func ParseConfig(pixel, content string, layer int, beforeActivation bool, ganMode string) (Config, error) {
	var cfg Config
	var err error
	if cfg.PixelCriterion, err = ParseCriterion(pixel); err != nil {
		return Config{}, errors.WithMessage(err, "pixel loss")
	}
	if cfg.ContentCriterion, err = ParseCriterion(content); err != nil {
		return Config{}, errors.WithMessage(err, "content loss")
	}
	if cfg.ContentLayer, err = features.ParseLayer(layer); err != nil {
		return Config{}, err
	}
	if cfg.GANMode, err = ParseGANMode(ganMode); err != nil {
		return Config{}, err
	}
	cfg.BeforeActivation = beforeActivation
	return cfg, nil
}
