package main

import (
	"context"
	"fmt"
	"image"
	"io"
	"math/rand/v2"

	"github.com/spf13/cobra"
	"k8s.io/klog/v2"

	"github.com/menta2k/srgan-data/internal/config"
	"github.com/menta2k/srgan-data/internal/utils"
	"github.com/menta2k/srgan-data/pkg/augment"
	"github.com/menta2k/srgan-data/pkg/dataset"
	"github.com/menta2k/srgan-data/pkg/processing"
	"github.com/menta2k/srgan-data/pkg/types"
)

type previewOptions struct {
	source sourceFlags
	count  int
	outDir string
	seed   uint64
}

var previewOpts previewOptions

var previewCmd = &cobra.Command{
	Use:   "preview",
	Short: "Draw augmentations for the first records and save the crop windows and augmented pairs as images",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		return runPreview(cmd.Context(), cfg, previewOpts)
	},
}

func init() {
	previewOpts.source.register(previewCmd)
	previewCmd.Flags().IntVarP(&previewOpts.count, "count", "n", 4, "number of records to preview")
	previewCmd.Flags().StringVarP(&previewOpts.outDir, "out", "o", "", "output directory (default from config)")
	previewCmd.Flags().Uint64Var(&previewOpts.seed, "seed", 1, "seed for the augmentation draws")
	rootCmd.AddCommand(previewCmd)
}

func runPreview(ctx context.Context, cfg *config.Config, opts previewOptions) error {
	defaultMode, err := types.ParseDecodeMode(cfg.Dataset.Mode)
	if err != nil {
		return err
	}
	src, mode, cleanup, err := opts.source.open(defaultMode)
	if err != nil {
		return err
	}
	defer cleanup()

	outDir := opts.outDir
	if outDir == "" {
		outDir = cfg.Output.OutputDir
	}
	if err := utils.EnsureDir(outDir); err != nil {
		return err
	}

	aug := augment.Augmenter{
		GroundTruthSize: cfg.Dataset.GroundTruthSize,
		Ratio:           cfg.Dataset.Ratio,
		Flip:            cfg.Dataset.Flip,
		Rotate:          cfg.Dataset.Rotate,
	}
	processor := processing.NewProcessor()

	if err := src.Reset(); err != nil {
		return err
	}
	for i := 0; i < opts.count; i++ {
		rec, err := src.Next(ctx)
		if err == io.EOF {
			klog.V(1).Infof("source exhausted after %d records", i)
			break
		}
		if err != nil {
			return err
		}

		sample, err := dataset.Decode(ctx, rec, mode, processor)
		if err != nil {
			return err
		}
		rng := rand.New(rand.NewPCG(opts.seed, uint64(i)))
		d, err := aug.Draw(rng, sample)
		if err != nil {
			return err
		}
		pair, err := aug.Apply(sample, d)
		if err != nil {
			return err
		}
		fmt.Printf("%s: low-res %s high-res %s offset=(%d,%d) flip=%t %v\n",
			rec.Name, sample.LowRes, sample.HighRes, d.OffsetY, d.OffsetX, d.Flip, d.Rotation)

		if err := savePreview(processor, cfg.Output, outDir, rec.Name, sample, pair,
			d.LowWindow(aug.GroundTruthSize, aug.Ratio), d.HighWindow(aug.GroundTruthSize, aug.Ratio)); err != nil {
			return err
		}
	}
	return nil
}

// savePreview writes both source images with their crop window drawn on top,
// followed by the two augmented crops
func savePreview(p *processing.Processor, out config.OutputConfig, outDir, name string,
	sample types.PairedSample, pair types.NormalizedPair, lowWindow, highWindow image.Rectangle) error {
	images := []struct {
		suffix string
		img    types.Image
		window *image.Rectangle
	}{
		{"_lr_window", sample.LowRes, &lowWindow},
		{"_hr_window", sample.HighRes, &highWindow},
		{"_lr_crop", processing.Quantize(pair.LowRes), nil},
		{"_hr_crop", processing.Quantize(pair.HighRes), nil},
	}

	for _, item := range images {
		nrgba, err := processing.ToNRGBA(item.img)
		if err != nil {
			return err
		}
		var img image.Image = nrgba
		if item.window != nil {
			img = p.CreateCropOverlay(nrgba, *item.window)
		}
		path := utils.GenerateOutputFilename(name, outDir, out.Prefix, item.suffix, out.DefaultFormat)
		if err := p.SaveImage(img, path, out.DefaultFormat, out.Quality, true); err != nil {
			return fmt.Errorf("failed to save %s: %w", path, err)
		}
		klog.V(1).Infof("wrote %s", path)
	}
	return nil
}
