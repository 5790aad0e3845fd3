package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/menta2k/srgan-data/internal/config"
	"github.com/menta2k/srgan-data/internal/utils"
)

var overwriteConfig bool

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage the configuration file",
}

var configInitCmd = &cobra.Command{
	Use:   "init [path]",
	Short: "Write the default configuration (JSON or YAML by extension)",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := config.GetConfigPath()
		if len(args) == 1 {
			path = args[0]
		}
		if utils.FileExists(path) && !overwriteConfig {
			return fmt.Errorf("%s already exists, use --force to overwrite", path)
		}
		if err := config.Default().SaveToFile(path); err != nil {
			return err
		}
		fmt.Printf("wrote %s\n", path)
		return nil
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration after validation",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		opts, err := cfg.DatasetOptions()
		if err != nil {
			return err
		}
		lc, err := cfg.LossConfig()
		if err != nil {
			return err
		}
		fmt.Printf("dataset: batch=%d gt=%d ratio=%d mode=%v flip=%t rotate=%t shuffle=%t/%d epochs=%d seed=%d\n",
			opts.BatchSize, opts.GroundTruthSize, opts.Ratio, opts.Mode, opts.Flip, opts.Rotate,
			opts.Shuffle, opts.ShuffleBuffer, opts.Epochs, opts.Seed)
		fmt.Printf("loss:    pixel=%v content=%v layer=%v before_activation=%t gan=%v\n",
			lc.PixelCriterion, lc.ContentCriterion, lc.ContentLayer, lc.BeforeActivation, lc.GANMode)
		return nil
	},
}

func init() {
	configInitCmd.Flags().BoolVarP(&overwriteConfig, "force", "f", false, "overwrite an existing file")
	configCmd.AddCommand(configInitCmd, configShowCmd)
	rootCmd.AddCommand(configCmd)
}
