package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/menta2k/srgan-data/internal/config"
	"github.com/menta2k/srgan-data/pkg/dataset"
)

type inspectOptions struct {
	source  sourceFlags
	batches int
}

var inspectOpts inspectOptions

var inspectCmd = &cobra.Command{
	Use:   "inspect",
	Short: "Run the training stream for a number of batches and report shapes, value ranges and throughput",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		return runInspect(cmd.Context(), cfg, inspectOpts)
	},
}

func init() {
	inspectOpts.source.register(inspectCmd)
	inspectCmd.Flags().IntVarP(&inspectOpts.batches, "batches", "n", 10, "number of batches to read")
	rootCmd.AddCommand(inspectCmd)
}

type batchStats struct {
	lowMin, lowMax, highMin, highMax float64
	lowMean, highMean                []float64
}

func (s *batchStats) add(b dataset.Batch) {
	lmin, lmax := floats.Min(b.LowRes.Data), floats.Max(b.LowRes.Data)
	hmin, hmax := floats.Min(b.HighRes.Data), floats.Max(b.HighRes.Data)
	if len(s.lowMean) == 0 {
		s.lowMin, s.lowMax, s.highMin, s.highMax = lmin, lmax, hmin, hmax
	} else {
		s.lowMin, s.lowMax = min(s.lowMin, lmin), max(s.lowMax, lmax)
		s.highMin, s.highMax = min(s.highMin, hmin), max(s.highMax, hmax)
	}
	s.lowMean = append(s.lowMean, stat.Mean(b.LowRes.Data, nil))
	s.highMean = append(s.highMean, stat.Mean(b.HighRes.Data, nil))
}

func runInspect(ctx context.Context, cfg *config.Config, opts inspectOptions) error {
	streamOpts, err := cfg.DatasetOptions()
	if err != nil {
		return err
	}
	src, mode, cleanup, err := opts.source.open(streamOpts.Mode)
	if err != nil {
		return err
	}
	defer cleanup()
	streamOpts.Mode = mode

	stream, err := dataset.Build(ctx, src, streamOpts)
	if err != nil {
		return err
	}
	defer stream.Close()

	bar := progressbar.NewOptions(opts.batches,
		progressbar.OptionSetDescription("reading batches"),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionShowCount(),
	)

	var stats batchStats
	var first dataset.Batch
	start := time.Now()
	n := 0
	for ; n < opts.batches; n++ {
		b, err := stream.Next(ctx)
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}
		if n == 0 {
			first = b
		}
		stats.add(b)
		bar.Add(1)
	}
	elapsed := time.Since(start)
	bar.Finish()
	fmt.Fprintln(os.Stderr)

	if n == 0 {
		fmt.Println("no complete batch produced")
		return nil
	}
	effective := stream.Options()
	fmt.Printf("batches:        %d in %v (%.1f batches/s)\n", n, elapsed.Round(time.Millisecond), float64(n)/elapsed.Seconds())
	fmt.Printf("seed:           %d\n", effective.Seed)
	fmt.Printf("mode:           %v\n", effective.Mode)
	fmt.Printf("low-res shape:  %v\n", first.LowRes.Shape)
	fmt.Printf("high-res shape: %v\n", first.HighRes.Shape)
	fmt.Printf("low-res range:  [%.4f, %.4f] mean %.4f\n", stats.lowMin, stats.lowMax, stat.Mean(stats.lowMean, nil))
	fmt.Printf("high-res range: [%.4f, %.4f] mean %.4f\n", stats.highMin, stats.highMax, stat.Mean(stats.highMean, nil))
	fmt.Printf("parallelism:    %d\n", effective.Parallelism)
	fmt.Printf("first names:    %v\n", first.Names)
	return nil
}
