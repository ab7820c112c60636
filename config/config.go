package config

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"

	"onset-training/onset"
)

// EnvPrefix prefixes every environment override, e.g. ONSET_WINDOW_SIZE.
const EnvPrefix = "onset"

// Config is the preprocessing configuration shared by the batch tools and the
// upload server.
type Config struct {
	RawDir      string `yaml:"raw_dir" envconfig:"RAW_DIR"`
	OutputDir   string `yaml:"output_dir" envconfig:"OUTPUT_DIR"`
	LedgerPath  string `yaml:"ledger_path" envconfig:"LEDGER_PATH"`
	InputFormat string `yaml:"input_format" envconfig:"INPUT_FORMAT"`

	WindowSize    int     `yaml:"window_size" envconfig:"WINDOW_SIZE"`
	FilterSilence bool    `yaml:"filter_silence" envconfig:"FILTER_SILENCE"`
	MinAmplitude  float64 `yaml:"min_amplitude" envconfig:"MIN_AMPLITUDE"`
	MinActivity   float64 `yaml:"min_activity" envconfig:"MIN_ACTIVITY"`

	TargetPositiveRatio   float64 `yaml:"target_positive_ratio" envconfig:"TARGET_POSITIVE_RATIO"`
	Seed                  uint64  `yaml:"seed" envconfig:"SEED"`
	OnsetToleranceSeconds float64 `yaml:"onset_tolerance_seconds" envconfig:"ONSET_TOLERANCE_SECONDS"`

	MinTotalSamples int     `yaml:"min_total_samples" envconfig:"MIN_TOTAL_SAMPLES"`
	MinTotalOnsets  int     `yaml:"min_total_onsets" envconfig:"MIN_TOTAL_ONSETS"`
	ValFraction     float64 `yaml:"val_fraction" envconfig:"VAL_FRACTION"`
}

// Default mirrors onset.DefaultPreprocessingConfig plus the directory layout
// used by the training scripts.
func Default() *Config {
	p := onset.DefaultPreprocessingConfig()
	return &Config{
		RawDir:                "data/raw",
		OutputDir:             "data/processed",
		LedgerPath:            "db/runs.sqlite3",
		InputFormat:           string(onset.FormatAnnotated),
		WindowSize:            p.WindowSize,
		FilterSilence:         p.FilterSilence,
		MinAmplitude:          p.MinAmplitude,
		MinActivity:           p.MinActivity,
		TargetPositiveRatio:   p.TargetPositiveRatio,
		Seed:                  p.Seed,
		OnsetToleranceSeconds: p.OnsetTolerance,
		MinTotalSamples:       p.MinTotalSamples,
		MinTotalOnsets:        p.MinTotalOnsets,
		ValFraction:           0.2,
	}
}

// Load reads the YAML file at path over the defaults, applies environment
// overrides and validates the result. An empty path skips the file.
func Load(path string) (*Config, error) {
	if path == "" {
		cfg := Default()
		if err := applyEnv(cfg); err != nil {
			return nil, err
		}
		if err := Validate(cfg); err != nil {
			return nil, err
		}
		return cfg, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes YAML from r over the defaults, applies environment
// overrides and validates the result. Unknown keys are rejected.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	if err := applyEnv(cfg); err != nil {
		return nil, err
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv overwrites only the fields whose ONSET_* variable is set.
func applyEnv(cfg *Config) error {
	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return fmt.Errorf("config: environment: %w", err)
	}
	return nil
}

// Validate returns a joined error listing every invalid value.
func Validate(cfg *Config) error {
	var errs []error

	if _, err := onset.ParseInputFormat(cfg.InputFormat); err != nil {
		errs = append(errs, fmt.Errorf("input_format: %w", err))
	}
	if err := cfg.Preprocessing().Validate(); err != nil {
		errs = append(errs, err)
	}
	if cfg.ValFraction <= 0 || cfg.ValFraction >= 1 {
		errs = append(errs, fmt.Errorf("val_fraction %g is out of range (0, 1)", cfg.ValFraction))
	}

	return errors.Join(errs...)
}

// Format returns the parsed input format. Call after Validate.
func (c *Config) Format() onset.InputFormat {
	f, err := onset.ParseInputFormat(c.InputFormat)
	if err != nil {
		return onset.FormatAnnotated
	}
	return f
}

// Preprocessing converts the file settings into the extractor configuration.
func (c *Config) Preprocessing() onset.PreprocessingConfig {
	return onset.PreprocessingConfig{
		WindowSize:          c.WindowSize,
		FilterSilence:       c.FilterSilence,
		MinAmplitude:        c.MinAmplitude,
		MinActivity:         c.MinActivity,
		OnsetTolerance:      c.OnsetToleranceSeconds,
		TargetPositiveRatio: c.TargetPositiveRatio,
		Seed:                c.Seed,
		MinTotalSamples:     c.MinTotalSamples,
		MinTotalOnsets:      c.MinTotalOnsets,
	}
}
