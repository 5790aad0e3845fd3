package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/menta2k/srgan-data/pkg/dataset"
	"github.com/menta2k/srgan-data/pkg/losses"
	"github.com/menta2k/srgan-data/pkg/types"
)

// Config holds the application configuration
type Config struct {
	Dataset DatasetConfig `json:"dataset" yaml:"dataset"`
	Loss    LossConfig    `json:"loss" yaml:"loss"`
	Output  OutputConfig  `json:"output" yaml:"output"`
}

// DatasetConfig holds configuration for the augmentation stream
type DatasetConfig struct {
	BatchSize       int    `json:"batch_size" yaml:"batch_size"`
	GroundTruthSize int    `json:"ground_truth_size" yaml:"ground_truth_size"`
	Ratio           int    `json:"ratio" yaml:"ratio"`
	Mode            string `json:"mode" yaml:"mode"`
	Flip            bool   `json:"flip" yaml:"flip"`
	Rotate          bool   `json:"rotate" yaml:"rotate"`
	Shuffle         bool   `json:"shuffle" yaml:"shuffle"`
	ShuffleBuffer   int    `json:"shuffle_buffer" yaml:"shuffle_buffer"`
	Parallelism     int    `json:"parallelism" yaml:"parallelism"`
	Prefetch        int    `json:"prefetch" yaml:"prefetch"`
	Epochs          int    `json:"epochs" yaml:"epochs"`
	Seed            uint64 `json:"seed" yaml:"seed"`
}

// LossConfig holds the loss selectors
type LossConfig struct {
	PixelCriterion   string `json:"pixel_criterion" yaml:"pixel_criterion"`
	ContentCriterion string `json:"content_criterion" yaml:"content_criterion"`
	ContentLayer     int    `json:"content_layer" yaml:"content_layer"`
	BeforeActivation bool   `json:"before_activation" yaml:"before_activation"`
	GANMode          string `json:"gan_mode" yaml:"gan_mode"`
}

// OutputConfig holds configuration for preview generation
type OutputConfig struct {
	DefaultFormat string `json:"default_format" yaml:"default_format"`
	Quality       int    `json:"quality" yaml:"quality"`
	OutputDir     string `json:"output_dir" yaml:"output_dir"`
	Prefix        string `json:"prefix" yaml:"prefix"`
}

// Default returns a configuration with default values
func Default() *Config {
	return &Config{
		Dataset: DatasetConfig{
			BatchSize:       16,
			GroundTruthSize: 128,
			Ratio:           4,
			Mode:            "paths",
			Flip:            true,
			Rotate:          true,
			Shuffle:         true,
			ShuffleBuffer:   dataset.DefaultShuffleBuffer,
			Parallelism:     0,
			Prefetch:        dataset.DefaultPrefetch,
			Epochs:          0,
			Seed:            0,
		},
		Loss: LossConfig{
			PixelCriterion:   "l1",
			ContentCriterion: "l1",
			ContentLayer:     54,
			BeforeActivation: true,
			GANMode:          "ragan",
		},
		Output: OutputConfig{
			DefaultFormat: "png",
			Quality:       95,
			OutputDir:     "./preview",
			Prefix:        "",
		},
	}
}

func isYAML(filename string) bool {
	ext := strings.ToLower(filepath.Ext(filename))
	return ext == ".yaml" || ext == ".yml"
}

// LoadFromFile loads configuration from a JSON or YAML file, chosen by
// extension. Fields missing from the file keep their default values.
func LoadFromFile(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := Default()
	if isYAML(filename) {
		err = yaml.Unmarshal(data, config)
	} else {
		err = json.Unmarshal(data, config)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return config, nil
}

// SaveToFile saves configuration to a JSON or YAML file
func (c *Config) SaveToFile(filename string) error {
	// Create directory if it doesn't exist
	dir := filepath.Dir(filename)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	var data []byte
	var err error
	if isYAML(filename) {
		data, err = yaml.Marshal(c)
	} else {
		data, err = json.MarshalIndent(c, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Dataset.BatchSize < 1 {
		return fmt.Errorf("dataset.batch_size must be positive")
	}

	if c.Dataset.Ratio < 1 {
		return fmt.Errorf("dataset.ratio must be positive")
	}

	if c.Dataset.GroundTruthSize < c.Dataset.Ratio {
		return fmt.Errorf("dataset.ground_truth_size must be at least dataset.ratio")
	}

	if c.Dataset.GroundTruthSize%c.Dataset.Ratio != 0 {
		return fmt.Errorf("dataset.ground_truth_size must be a multiple of dataset.ratio")
	}

	if _, err := types.ParseDecodeMode(c.Dataset.Mode); err != nil {
		return fmt.Errorf("dataset.mode: %w", err)
	}

	if c.Dataset.Shuffle && c.Dataset.ShuffleBuffer < 0 {
		return fmt.Errorf("dataset.shuffle_buffer cannot be negative")
	}

	if c.Dataset.Parallelism < 0 || c.Dataset.Prefetch < 0 || c.Dataset.Epochs < 0 {
		return fmt.Errorf("dataset.parallelism, dataset.prefetch and dataset.epochs cannot be negative")
	}

	if _, err := c.LossConfig(); err != nil {
		return fmt.Errorf("loss: %w", err)
	}

	if c.Output.Quality < 1 || c.Output.Quality > 100 {
		return fmt.Errorf("output.quality must be between 1 and 100")
	}

	return nil
}

// DatasetOptions converts the dataset section into stream options.
// Zero parallelism, prefetch and seed are left for the stream to default.
func (c *Config) DatasetOptions() (dataset.Options, error) {
	mode, err := types.ParseDecodeMode(c.Dataset.Mode)
	if err != nil {
		return dataset.Options{}, err
	}
	return dataset.Options{
		BatchSize:       c.Dataset.BatchSize,
		GroundTruthSize: c.Dataset.GroundTruthSize,
		Ratio:           c.Dataset.Ratio,
		Mode:            mode,
		Flip:            c.Dataset.Flip,
		Rotate:          c.Dataset.Rotate,
		Shuffle:         c.Dataset.Shuffle,
		ShuffleBuffer:   c.Dataset.ShuffleBuffer,
		Parallelism:     c.Dataset.Parallelism,
		Prefetch:        c.Dataset.Prefetch,
		Epochs:          c.Dataset.Epochs,
		Seed:            c.Dataset.Seed,
	}, nil
}

// LossConfig parses the loss selectors.
func (c *Config) LossConfig() (losses.Config, error) {
	return losses.ParseConfig(
		c.Loss.PixelCriterion,
		c.Loss.ContentCriterion,
		c.Loss.ContentLayer,
		c.Loss.BeforeActivation,
		c.Loss.GANMode,
	)
}

// GetConfigPath returns the default configuration file path
func GetConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "./config.yaml"
	}
	return filepath.Join(home, ".config", "srgan-data", "config.yaml")
}
