// Package srgan provides the data and loss side of super-resolution GAN
// training.
//
// It builds augmented training batches from paired low-res / high-res images
// and computes the pixel, content (perceptual) and adversarial losses used to
// train an ESRGAN-style generator and discriminator. Models, training loops
// and the pretrained feature network are left to the caller.
//
// Basic usage:
//
//	package main
//
//	import (
//		"context"
//		"log"
//
//		srgan "github.com/menta2k/srgan-data"
//	)
//
//	func main() {
//		cfg := srgan.DefaultConfig()
//		cfg.Extractor = myVGG // implements features.Extractor
//
//		s, err := srgan.New(cfg)
//		if err != nil {
//			log.Fatal(err)
//		}
//
//		stream, err := s.StreamDirs(context.Background(), "data/hr", "data/lr")
//		if err != nil {
//			log.Fatal(err)
//		}
//		defer stream.Close()
//
//		batch, err := stream.Next(context.Background())
//		if err != nil {
//			log.Fatal(err)
//		}
//		sr := myGenerator(batch.LowRes)
//		pixel, _ := s.Losses.Pixel(batch.HighRes, sr)
//		content, _ := s.Losses.Content(batch.HighRes, sr)
//		log.Printf("pixel=%.4f content=%.4f", pixel, content)
//	}
//
// The package consists of these components:
//
//  1. Augmentation (pkg/augment): paired crop, flip and rotation with shared decisions
//  2. Dataset (pkg/dataset): record sources, decoding and the batched training stream
//  3. Losses (pkg/losses): pixel, content, discriminator and generator losses
//  4. Features (pkg/features): the feature extractor interface and VGG preprocessing
//  5. Storage (pkg/tfrecord, pkg/catalog): TFRecord files and a SQLite record catalog
package srgan

import (
	"context"
	"math/rand/v2"

	"github.com/pkg/errors"

	"github.com/menta2k/srgan-data/pkg/augment"
	"github.com/menta2k/srgan-data/pkg/dataset"
	"github.com/menta2k/srgan-data/pkg/features"
	"github.com/menta2k/srgan-data/pkg/losses"
	"github.com/menta2k/srgan-data/pkg/types"
)

// Version of the srgan-data library
const Version = "1.0.0"

// Config gathers everything New needs.
type Config struct {
	Dataset   dataset.Options
	Loss      losses.Config
	Extractor features.Extractor
}

// DefaultConfig returns the default stream options and loss selection.
// Extractor must still be set.
func DefaultConfig() Config {
	return Config{
		Dataset: dataset.DefaultOptions(),
		Loss:    losses.DefaultConfig(),
	}
}

// Pipeline builds training streams that share one set of options.
type Pipeline struct {
	opts dataset.Options
}

// NewPipeline validates opts. Zero fields that have defaults are resolved
// per stream, so pipelines without a seed produce differently seeded streams.
func NewPipeline(opts dataset.Options) (*Pipeline, error) {
	if err := opts.WithDefaults().Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid dataset options")
	}
	return &Pipeline{opts: opts}, nil
}

// Options returns the options streams are built with.
func (p *Pipeline) Options() dataset.Options {
	return p.opts
}

// Augmenter returns the augmenter matching the pipeline options.
func (p *Pipeline) Augmenter() augment.Augmenter {
	return augment.Augmenter{
		GroundTruthSize: p.opts.GroundTruthSize,
		Ratio:           p.opts.Ratio,
		Flip:            p.opts.Flip,
		Rotate:          p.opts.Rotate,
	}
}

// Stream starts a stream over src.
func (p *Pipeline) Stream(ctx context.Context, src dataset.Source) (*dataset.Stream, error) {
	return dataset.Build(ctx, src, p.opts)
}

// SRGAN binds a pipeline and the losses of one configuration.
type SRGAN struct {
	Pipeline *Pipeline
	Losses   *losses.Losses
}

// New validates cfg and binds the losses. Unsupported selectors and a nil
// extractor are reported here rather than on first use.
func New(cfg Config) (*SRGAN, error) {
	pipeline, err := NewPipeline(cfg.Dataset)
	if err != nil {
		return nil, err
	}
	bound, err := losses.New(cfg.Loss, cfg.Extractor)
	if err != nil {
		return nil, errors.Wrap(err, "failed to bind losses")
	}
	return &SRGAN{Pipeline: pipeline, Losses: bound}, nil
}

// Stream starts a stream over an arbitrary source.
func (s *SRGAN) Stream(ctx context.Context, src dataset.Source) (*dataset.Stream, error) {
	return s.Pipeline.Stream(ctx, src)
}

// StreamFiles starts a stream over TFRecord files matching the glob patterns.
// The files are closed when the stream is closed.
func (s *SRGAN) StreamFiles(ctx context.Context, patterns ...string) (*dataset.Stream, error) {
	src, err := dataset.NewTFRecordSource(patterns...)
	if err != nil {
		return nil, err
	}
	stream, err := s.Pipeline.Stream(ctx, src)
	if err != nil {
		src.Close()
		return nil, err
	}
	go func() {
		<-stream.Done()
		src.Close()
	}()
	return stream, nil
}

// StreamDirs starts a stream over paired high-res and low-res directories.
func (s *SRGAN) StreamDirs(ctx context.Context, highResDir, lowResDir string) (*dataset.Stream, error) {
	src, err := dataset.NewDirSource(highResDir, lowResDir)
	if err != nil {
		return nil, err
	}
	return s.Pipeline.Stream(ctx, src)
}

// AugmentPair applies one random augmentation to a single sample outside of
// any stream, e.g. for previews.
func (s *SRGAN) AugmentPair(rng *rand.Rand, sample types.PairedSample) (types.NormalizedPair, augment.Decision, error) {
	return s.Pipeline.Augmenter().Augment(rng, sample)
}

// GetVersion returns the library version
func GetVersion() string {
	return Version
}
