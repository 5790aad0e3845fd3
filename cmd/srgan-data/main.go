package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"k8s.io/klog/v2"

	srgan "github.com/menta2k/srgan-data"
	"github.com/menta2k/srgan-data/internal/config"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:           "srgan-data",
	Short:         "Paired super-resolution datasets: packing, augmentation previews and loss checks",
	Version:       srgan.Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func main() {
	klogFlags := flag.NewFlagSet("klog", flag.ExitOnError)
	klog.InitFlags(klogFlags)
	rootCmd.PersistentFlags().AddGoFlagSet(klogFlags)
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file (.json, .yaml or .yml); defaults are used when empty")
	rootCmd.SetVersionTemplate(`{{printf "%s\n" .Version}}`)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := rootCmd.ExecuteContext(ctx)
	klog.Flush()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// loadConfig reads --config, or the defaults when it is not set
func loadConfig() (*config.Config, error) {
	cfg := config.Default()
	if configPath != "" {
		var err error
		if cfg, err = config.LoadFromFile(configPath); err != nil {
			return nil, err
		}
		klog.V(1).Infof("loaded config from %s", configPath)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}
