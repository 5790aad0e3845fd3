package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/menta2k/srgan-data/pkg/catalog"
	"github.com/menta2k/srgan-data/pkg/dataset"
	"github.com/menta2k/srgan-data/pkg/types"
)

// sourceFlags selects where records come from. Exactly one of tfrecord
// patterns, a high-res/low-res directory pair or a catalog must be given.
type sourceFlags struct {
	tfrecords []string
	highRes   string
	lowRes    string
	catalog   string
	mode      string
}

func (f *sourceFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringSliceVar(&f.tfrecords, "tfrecord", nil, "TFRecord file glob(s)")
	cmd.Flags().StringVar(&f.highRes, "hr", "", "high-res image directory")
	cmd.Flags().StringVar(&f.lowRes, "lr", "", "low-res image directory")
	cmd.Flags().StringVar(&f.catalog, "catalog", "", "SQLite catalog file")
	cmd.Flags().StringVar(&f.mode, "mode", "", "decode mode override: paths|embedded")
}

// open returns the source, the decode mode to use with it and a cleanup func.
// Directory sources always decode from paths.
func (f *sourceFlags) open(defaultMode types.DecodeMode) (dataset.Source, types.DecodeMode, func(), error) {
	mode := defaultMode
	if f.mode != "" {
		m, err := types.ParseDecodeMode(f.mode)
		if err != nil {
			return nil, 0, nil, err
		}
		mode = m
	}

	given := 0
	if len(f.tfrecords) > 0 {
		given++
	}
	if f.highRes != "" || f.lowRes != "" {
		given++
	}
	if f.catalog != "" {
		given++
	}
	if given != 1 {
		return nil, 0, nil, fmt.Errorf("specify exactly one of --tfrecord, --hr/--lr or --catalog")
	}

	switch {
	case len(f.tfrecords) > 0:
		src, err := dataset.NewTFRecordSource(f.tfrecords...)
		if err != nil {
			return nil, 0, nil, err
		}
		return src, mode, func() { src.Close() }, nil
	case f.catalog != "":
		c, err := catalog.Open(f.catalog)
		if err != nil {
			return nil, 0, nil, err
		}
		return c.Source(), mode, func() { c.Close() }, nil
	default:
		if f.highRes == "" || f.lowRes == "" {
			return nil, 0, nil, fmt.Errorf("--hr and --lr must be given together")
		}
		src, err := dataset.NewDirSource(f.highRes, f.lowRes)
		if err != nil {
			return nil, 0, nil, err
		}
		return src, types.Paths, func() {}, nil
	}
}
