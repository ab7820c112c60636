package onset

// Training-data preprocessing parameters
//
// The defaults describe the recording setup the browser analyser uses:
//
// 1. ~10ms hop, so a 5 frame window is 50ms of causal history
// 2. 5 features per frame, 25 model inputs
// 3. Annotated onsets already expanded to ±1 frame (~±10ms)
// 4. Raw timestamp logs are labelled with a ±50ms tolerance instead
// 5. Negatives are downsampled until positives make up 20% of the data
//
// The silence thresholds and the balancing target are policy constants with no
// derivation behind them; they are kept configurable rather than tuned here.

import (
	"errors"
	"fmt"
)

// PreprocessingConfig holds the extractor and dataset policy.
type PreprocessingConfig struct {
	WindowSize int

	FilterSilence bool
	MinAmplitude  float64 // frames at or below this amplitude count as silent
	MinActivity   float64 // same, for spectral flux and phase deviation

	OnsetTolerance float64 // seconds, timestamped format only

	TargetPositiveRatio float64
	Seed                uint64

	MinTotalSamples int
	MinTotalOnsets  int
}

// DefaultPreprocessingConfig returns the recording setup described above.
func DefaultPreprocessingConfig() PreprocessingConfig {
	return PreprocessingConfig{
		WindowSize:          5,
		FilterSilence:       true,
		MinAmplitude:        0.001,
		MinActivity:         0.01,
		OnsetTolerance:      0.05,
		TargetPositiveRatio: 0.20,
		Seed:                42,
		MinTotalSamples:     1000,
		MinTotalOnsets:      100,
	}
}

// NumFeatures is the width of one feature window.
func (c PreprocessingConfig) NumFeatures() int {
	return c.WindowSize * FeaturesPerFrame
}

// Validate reports every out-of-range parameter.
func (c PreprocessingConfig) Validate() error {
	var errs []error
	if c.WindowSize < 1 {
		errs = append(errs, fmt.Errorf("window size must be at least 1, got %d", c.WindowSize))
	}
	if c.MinAmplitude < 0 || c.MinActivity < 0 {
		errs = append(errs, fmt.Errorf("silence thresholds must be non-negative, got amplitude=%g activity=%g", c.MinAmplitude, c.MinActivity))
	}
	if c.OnsetTolerance < 0 {
		errs = append(errs, fmt.Errorf("onset tolerance must be non-negative, got %g", c.OnsetTolerance))
	}
	if c.TargetPositiveRatio <= 0 || c.TargetPositiveRatio >= 1 {
		errs = append(errs, fmt.Errorf("target positive ratio must be in (0, 1), got %g", c.TargetPositiveRatio))
	}
	if c.MinTotalSamples < 0 || c.MinTotalOnsets < 0 {
		errs = append(errs, errors.New("imbalance warning thresholds must be non-negative"))
	}
	return errors.Join(errs...)
}
