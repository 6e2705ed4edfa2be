package config

import (
	"fmt"
	"math"

	"github.com/rs/zerolog"
	"github.com/spf13/viper"
)

type Config struct {
	Env      string `mapstructure:"ENV"`
	LogLevel string `mapstructure:"LOG_LEVEL"`

	// Generation
	Seed     int64 `mapstructure:"SEED"`
	NSamples int   `mapstructure:"N_SAMPLES"`

	// Files, relative to DataDir
	DataDir      string `mapstructure:"DATA_DIR"`
	RawFile      string `mapstructure:"RAW_FILE"`
	TrainFile    string `mapstructure:"TRAIN_FILE"`
	ValFile      string `mapstructure:"VAL_FILE"`
	TestFile     string `mapstructure:"TEST_FILE"`
	EncodersFile string `mapstructure:"ENCODERS_FILE"`

	// Splitting
	TestFraction float64 `mapstructure:"TEST_FRACTION"`
	ValFraction  float64 `mapstructure:"VAL_FRACTION"`
	SplitSeed    int64   `mapstructure:"SPLIT_SEED"`
}

var keys = []string{
	"ENV", "LOG_LEVEL", "SEED", "N_SAMPLES", "DATA_DIR", "RAW_FILE",
	"TRAIN_FILE", "VAL_FILE", "TEST_FILE", "ENCODERS_FILE",
	"TEST_FRACTION", "VAL_FRACTION", "SPLIT_SEED",
}

// Load reads configuration from the environment, falling back to a .env
// file in the working directory and then to defaults.
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.AutomaticEnv()

	v.SetDefault("ENV", "development")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("SEED", 42)
	v.SetDefault("N_SAMPLES", 500)
	v.SetDefault("DATA_DIR", ".")
	v.SetDefault("RAW_FILE", "clinical_trial_data.csv")
	v.SetDefault("TRAIN_FILE", "train_data.csv")
	v.SetDefault("VAL_FILE", "val_data.csv")
	v.SetDefault("TEST_FILE", "test_data.csv")
	v.SetDefault("ENCODERS_FILE", "label_encoders.json")
	v.SetDefault("TEST_FRACTION", 0.2)
	v.SetDefault("VAL_FRACTION", 0.1)
	v.SetDefault("SPLIT_SEED", 42)

	// Bind env vars explicitly so Unmarshal picks them up
	for _, key := range keys {
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("bind %s: %w", key, err)
		}
	}

	// Try reading .env file, but don't fail if missing
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return cfg, nil
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// Level parses LOG_LEVEL. An empty value means info.
func (c *Config) Level() (zerolog.Level, error) {
	if c.LogLevel == "" {
		return zerolog.InfoLevel, nil
	}
	return zerolog.ParseLevel(c.LogLevel)
}

// Validate checks value ranges. N_SAMPLES is not checked: zero or negative
// counts produce an empty dataset.
func (c *Config) Validate() error {
	if err := checkSeed("SEED", c.Seed); err != nil {
		return err
	}
	if err := checkSeed("SPLIT_SEED", c.SplitSeed); err != nil {
		return err
	}
	if c.TestFraction <= 0 || c.TestFraction >= 1 {
		return fmt.Errorf("TEST_FRACTION must be between 0 and 1, got %v", c.TestFraction)
	}
	if c.ValFraction <= 0 || c.ValFraction >= 1 {
		return fmt.Errorf("VAL_FRACTION must be between 0 and 1, got %v", c.ValFraction)
	}
	if c.TestFraction+c.ValFraction >= 1 {
		return fmt.Errorf("TEST_FRACTION + VAL_FRACTION must be below 1, got %v", c.TestFraction+c.ValFraction)
	}
	if _, err := c.Level(); err != nil {
		return fmt.Errorf("LOG_LEVEL: %w", err)
	}
	for _, f := range []struct{ key, name string }{
		{"RAW_FILE", c.RawFile},
		{"TRAIN_FILE", c.TrainFile},
		{"VAL_FILE", c.ValFile},
		{"TEST_FILE", c.TestFile},
		{"ENCODERS_FILE", c.EncodersFile},
	} {
		if f.name == "" {
			return fmt.Errorf("%s is required", f.key)
		}
	}
	return nil
}

func checkSeed(key string, seed int64) error {
	if seed < 0 || seed > math.MaxUint32 {
		return fmt.Errorf("%s must be between 0 and %d, got %d", key, uint32(math.MaxUint32), seed)
	}
	return nil
}
