package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/menta2k/srgan-data/internal/config"
	"github.com/menta2k/srgan-data/pkg/augment"
	"github.com/menta2k/srgan-data/pkg/losses"
	"github.com/menta2k/srgan-data/pkg/processing"
	"github.com/menta2k/srgan-data/pkg/tensor"
)

type pixelLossOptions struct {
	reference string
	candidate string
	criterion string
}

var pixelLossOpts pixelLossOptions

var pixelLossCmd = &cobra.Command{
	Use:   "pixel-loss",
	Short: "Compute the pixel loss between a reference image and a candidate (e.g. a super-resolved output)",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		return runPixelLoss(cmd.Context(), cfg, pixelLossOpts)
	},
}

func init() {
	pixelLossCmd.Flags().StringVarP(&pixelLossOpts.reference, "reference", "r", "", "reference (ground truth) image path or URL")
	pixelLossCmd.Flags().StringVarP(&pixelLossOpts.candidate, "candidate", "s", "", "candidate image path or URL")
	pixelLossCmd.Flags().StringVar(&pixelLossOpts.criterion, "criterion", "", "l1|l2 (default from config)")

	pixelLossCmd.MarkFlagRequired("reference")
	pixelLossCmd.MarkFlagRequired("candidate")
	rootCmd.AddCommand(pixelLossCmd)
}

func runPixelLoss(ctx context.Context, cfg *config.Config, opts pixelLossOptions) error {
	name := opts.criterion
	if name == "" {
		name = cfg.Loss.PixelCriterion
	}
	criterion, err := losses.ParseCriterion(name)
	if err != nil {
		return err
	}
	loss, err := losses.PixelLoss(criterion)
	if err != nil {
		return err
	}

	processor := processing.NewProcessor()
	reference, err := processor.Load(ctx, opts.reference)
	if err != nil {
		return fmt.Errorf("failed to load reference: %w", err)
	}
	candidate, err := processor.Load(ctx, opts.candidate)
	if err != nil {
		return fmt.Errorf("failed to load candidate: %w", err)
	}

	v, err := loss(tensor.FromImage(augment.Normalize(reference)), tensor.FromImage(augment.Normalize(candidate)))
	if err != nil {
		return fmt.Errorf("reference %s and candidate %s: %w", opts.reference, opts.candidate, err)
	}
	fmt.Printf("%s pixel loss: %.6f\n", criterion, v)
	return nil
}
