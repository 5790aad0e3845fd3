// Package losses binds the loss functions of super-resolution GAN training:
// pixel loss, perceptual (content) loss on pretrained features, and the
// discriminator / generator adversarial losses.
//
// Every constructor validates its selector immediately and returns a bound
// function, so configuration errors surface before the first training step.
package losses

import (
	"math"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"

	"github.com/menta2k/srgan-data/pkg/features"
	"github.com/menta2k/srgan-data/pkg/tensor"
)

// Func compares a reference tensor with a candidate of the same shape.
type Func func(reference, candidate tensor.Tensor) (float64, error)

// ScoreFunc computes an adversarial loss from discriminator scores (logits)
// for real (high-res) and fake (super-res) images.
type ScoreFunc func(real, fake tensor.Tensor) (float64, error)

// epsilon matches the fuzz factor of Keras' binary cross-entropy.
const epsilon = 1e-7

// PixelLoss returns the mean absolute (L1) or mean squared (L2) difference
// over all elements.
func PixelLoss(c Criterion) (Func, error) {
	switch c {
	case L1:
		return meanAbsoluteError, nil
	case L2:
		return meanSquaredError, nil
	}
	return nil, errors.Wrapf(ErrUnsupportedCriterion, "loss type %v is not recognized", c)
}

func meanAbsoluteError(reference, candidate tensor.Tensor) (float64, error) {
	if err := tensor.CheckSameShape(reference, candidate); err != nil {
		return 0, err
	}
	if reference.Size() == 0 {
		return 0, nil
	}
	return floats.Distance(reference.Data, candidate.Data, 1) / float64(reference.Size()), nil
}

func meanSquaredError(reference, candidate tensor.Tensor) (float64, error) {
	diff, err := tensor.Sub(reference, candidate)
	if err != nil {
		return 0, err
	}
	if diff.Size() == 0 {
		return 0, nil
	}
	return floats.Dot(diff.Data, diff.Data) / float64(diff.Size()), nil
}

// ContentLoss returns the perceptual loss: both images, in [0,1], are
// preprocessed for the extractor (see features.Preprocess), mapped to features
// at layer and compared with the criterion.
func ContentLoss(c Criterion, layer features.Layer, beforeActivation bool, ext features.Extractor) (Func, error) {
	criterion, err := PixelLoss(c)
	if err != nil {
		return nil, err
	}
	if _, err := features.ParseLayer(int(layer)); err != nil {
		return nil, err
	}
	if ext == nil {
		return nil, errors.New("content loss needs a feature extractor")
	}

	extract := func(images tensor.Tensor) (tensor.Tensor, error) {
		in, err := features.Preprocess(images)
		if err != nil {
			return tensor.Tensor{}, err
		}
		return ext.Extract(in, layer, beforeActivation)
	}

	return func(highRes, superRes tensor.Tensor) (float64, error) {
		if err := tensor.CheckSameShape(highRes, superRes); err != nil {
			return 0, errors.WithMessage(err, "content loss inputs")
		}
		srFeatures, err := extract(superRes)
		if err != nil {
			return 0, errors.WithMessage(err, "super-res features")
		}
		hrFeatures, err := extract(highRes)
		if err != nil {
			return 0, errors.WithMessage(err, "high-res features")
		}
		return criterion(hrFeatures, srFeatures)
	}, nil
}

// DiscriminatorLoss returns the discriminator's adversarial loss.
//
//	gan:   BCE(1, σ(real)) + BCE(0, σ(fake))
//	ragan: 0.5 · (BCE(1, σ(real − mean(fake))) + BCE(0, σ(fake − mean(real))))
func DiscriminatorLoss(m GANMode) (ScoreFunc, error) {
	switch m {
	case RaGAN:
		return func(real, fake tensor.Tensor) (float64, error) {
			realRel, fakeRel := relativistic(real, fake)
			return 0.5 * (binaryCrossEntropy(1, realRel) + binaryCrossEntropy(0, fakeRel)), nil
		}, nil
	case GAN:
		return func(real, fake tensor.Tensor) (float64, error) {
			return binaryCrossEntropy(1, real.Map(sigmoid)) + binaryCrossEntropy(0, fake.Map(sigmoid)), nil
		}, nil
	}
	return nil, errors.Wrapf(ErrUnsupportedGANMode, "discriminator loss type %v is not recognized", m)
}

// GeneratorLoss returns the generator's adversarial loss, the mirror of
// DiscriminatorLoss with the roles of real and fake swapped.
//
//	gan:   BCE(1, σ(fake))
//	ragan: 0.5 · (BCE(1, σ(fake − mean(real))) + BCE(0, σ(real − mean(fake))))
func GeneratorLoss(m GANMode) (ScoreFunc, error) {
	switch m {
	case RaGAN:
		return func(real, fake tensor.Tensor) (float64, error) {
			realRel, fakeRel := relativistic(real, fake)
			return 0.5 * (binaryCrossEntropy(1, fakeRel) + binaryCrossEntropy(0, realRel)), nil
		}, nil
	case GAN:
		return func(real, fake tensor.Tensor) (float64, error) {
			return binaryCrossEntropy(1, fake.Map(sigmoid)), nil
		}, nil
	}
	return nil, errors.Wrapf(ErrUnsupportedGANMode, "generator loss type %v is not recognized", m)
}

// relativistic returns σ(real − mean(fake)) and σ(fake − mean(real)).
func relativistic(real, fake tensor.Tensor) (tensor.Tensor, tensor.Tensor) {
	meanReal, meanFake := real.Mean(), fake.Mean()
	realRel := real.Map(func(v float64) float64 { return sigmoid(v - meanFake) })
	fakeRel := fake.Map(func(v float64) float64 { return sigmoid(v - meanReal) })
	return realRel, fakeRel
}

func sigmoid(x float64) float64 {
	return 1 / (1 + math.Exp(-x))
}

// binaryCrossEntropy is the mean cross-entropy between a constant label and
// probabilities, which are clipped to [ε, 1−ε] with ε added inside the logs.
// It works on probabilities, never on fused logits.
func binaryCrossEntropy(label float64, probs tensor.Tensor) float64 {
	if probs.Size() == 0 {
		return 0
	}
	var sum float64
	for _, p := range probs.Data {
		p = math.Min(math.Max(p, epsilon), 1-epsilon)
		sum += label*math.Log(p+epsilon) + (1-label)*math.Log(1-p+epsilon)
	}
	return -sum / float64(probs.Size())
}

// Losses holds the four loss functions bound from one Config.
// It has no mutable state and is safe for concurrent use.
type Losses struct {
	Config        Config
	Pixel         Func
	Content       Func
	Discriminator ScoreFunc
	Generator     ScoreFunc
}

// New binds every loss in cfg, failing on the first unsupported selector.
func New(cfg Config, ext features.Extractor) (*Losses, error) {
	pixel, err := PixelLoss(cfg.PixelCriterion)
	if err != nil {
		return nil, errors.WithMessage(err, "pixel loss")
	}
	content, err := ContentLoss(cfg.ContentCriterion, cfg.ContentLayer, cfg.BeforeActivation, ext)
	if err != nil {
		return nil, errors.WithMessage(err, "content loss")
	}
	disc, err := DiscriminatorLoss(cfg.GANMode)
	if err != nil {
		return nil, err
	}
	gen, err := GeneratorLoss(cfg.GANMode)
	if err != nil {
		return nil, err
	}
	return &Losses{
		Config:        cfg,
		Pixel:         pixel,
		Content:       content,
		Discriminator: disc,
		Generator:     gen,
	}, nil
}
