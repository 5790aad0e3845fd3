package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"k8s.io/klog/v2"

	"github.com/menta2k/srgan-data/internal/config"
	"github.com/menta2k/srgan-data/internal/utils"
	"github.com/menta2k/srgan-data/pkg/augment"
	"github.com/menta2k/srgan-data/pkg/catalog"
	"github.com/menta2k/srgan-data/pkg/dataset"
	"github.com/menta2k/srgan-data/pkg/processing"
	"github.com/menta2k/srgan-data/pkg/tfrecord"
	"github.com/menta2k/srgan-data/pkg/types"
)

const catalogChunk = 256

type packOptions struct {
	highRes string
	lowRes  string
	out     string
	catalog string
	embed   bool
	check   bool
}

var packOpts packOptions

var packCmd = &cobra.Command{
	Use:   "pack",
	Short: "Pair high-res and low-res directories into a TFRecord file and/or a SQLite catalog",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		return runPack(cmd.Context(), cfg, packOpts)
	},
}

func init() {
	packCmd.Flags().StringVar(&packOpts.highRes, "hr", "", "high-res image directory")
	packCmd.Flags().StringVar(&packOpts.lowRes, "lr", "", "low-res image directory")
	packCmd.Flags().StringVarP(&packOpts.out, "out", "o", "", "output TFRecord file")
	packCmd.Flags().StringVar(&packOpts.catalog, "catalog", "", "output SQLite catalog")
	packCmd.Flags().BoolVar(&packOpts.embed, "embed", false, "embed encoded image bytes instead of file paths")
	packCmd.Flags().BoolVar(&packOpts.check, "check", true, "decode every pair and verify its geometry against the configured ground truth size and ratio")

	packCmd.MarkFlagRequired("hr")
	packCmd.MarkFlagRequired("lr")
	rootCmd.AddCommand(packCmd)
}

func runPack(ctx context.Context, cfg *config.Config, opts packOptions) error {
	if opts.out == "" && opts.catalog == "" {
		return fmt.Errorf("at least one of --out or --catalog is required")
	}

	pairs, unmatched, err := utils.PairImageFiles(opts.highRes, opts.lowRes)
	if err != nil {
		return err
	}
	for _, path := range unmatched {
		klog.Warningf("no counterpart for %s", path)
	}
	if len(pairs) == 0 {
		return fmt.Errorf("no image pairs found in %s and %s", opts.highRes, opts.lowRes)
	}

	var writer *tfrecord.Writer
	var buffered *bufio.Writer
	if opts.out != "" {
		if err := utils.EnsureDir(filepath.Dir(opts.out)); err != nil {
			return err
		}
		f, err := os.Create(opts.out)
		if err != nil {
			return fmt.Errorf("failed to create %s: %w", opts.out, err)
		}
		defer f.Close()
		buffered = bufio.NewWriterSize(f, 1<<20)
		writer = tfrecord.NewWriter(buffered)
	}

	var cat *catalog.Catalog
	if opts.catalog != "" {
		if cat, err = catalog.Open(opts.catalog); err != nil {
			return err
		}
		defer cat.Close()
	}

	processor := processing.NewProcessor()
	mode := types.Paths
	if opts.embed {
		mode = types.Embedded
	}

	bar := progressbar.NewOptions(len(pairs),
		progressbar.OptionSetDescription("packing"),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionShowCount(),
	)

	chunk := make([]types.Record, 0, catalogChunk)
	flush := func() error {
		if cat == nil || len(chunk) == 0 {
			return nil
		}
		if err := cat.AddAll(ctx, chunk); err != nil {
			return err
		}
		chunk = chunk[:0]
		return nil
	}

	for _, p := range pairs {
		if err := ctx.Err(); err != nil {
			return err
		}
		rec, err := packRecord(p, opts.embed)
		if err != nil {
			return err
		}
		if opts.check {
			sample, err := dataset.Decode(ctx, rec, mode, processor)
			if err != nil {
				return err
			}
			if err := augment.ValidateShapes(sample, cfg.Dataset.GroundTruthSize, cfg.Dataset.Ratio); err != nil {
				return err
			}
		}
		if writer != nil {
			if err := writer.Write(dataset.ExampleFromRecord(rec).Marshal()); err != nil {
				return err
			}
		}
		if cat != nil {
			chunk = append(chunk, rec)
			if len(chunk) == catalogChunk {
				if err := flush(); err != nil {
					return err
				}
			}
		}
		bar.Add(1)
	}
	if err := flush(); err != nil {
		return err
	}
	bar.Finish()
	fmt.Fprintln(os.Stderr)

	if buffered != nil {
		if err := buffered.Flush(); err != nil {
			return fmt.Errorf("failed to flush %s: %w", opts.out, err)
		}
		if info, err := os.Stat(opts.out); err == nil {
			fmt.Printf("wrote %d records to %s (%s)\n", len(pairs), opts.out, utils.FormatFileSize(info.Size()))
		}
	}
	if cat != nil {
		n, err := cat.Count(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("catalog %s holds %d records\n", opts.catalog, n)
	}
	return nil
}

// packRecord builds the record for one pair, with absolute paths or the raw
// file bytes
func packRecord(p utils.ImagePair, embed bool) (types.Record, error) {
	rec := types.Record{Name: p.Name}
	if embed {
		var err error
		if rec.HighResBytes, err = os.ReadFile(p.HighRes); err != nil {
			return rec, fmt.Errorf("failed to read %s: %w", p.HighRes, err)
		}
		if rec.LowResBytes, err = os.ReadFile(p.LowRes); err != nil {
			return rec, fmt.Errorf("failed to read %s: %w", p.LowRes, err)
		}
		return rec, nil
	}
	hr, err := filepath.Abs(p.HighRes)
	if err != nil {
		return rec, err
	}
	lr, err := filepath.Abs(p.LowRes)
	if err != nil {
		return rec, err
	}
	rec.HighResPath, rec.LowResPath = hr, lr
	return rec, nil
}
