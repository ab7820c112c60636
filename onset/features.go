package onset

import (
	"fmt"
	"math"
)

// FeaturesPerFrame is the size of the per-frame tuple.
const FeaturesPerFrame = 5

// FrameFeatureNames lists the per-frame tuple in emission order.
var FrameFeatureNames = [FeaturesPerFrame]string{
	"amplitude",
	"spectralFlux",
	"phaseDeviation",
	"highFrequencyEnergy",
	"hasPitch",
}

// WindowFeatureNames repeats FrameFeatureNames once per window slot, which is
// the layout the browser runtime expects in scaler.json.
func WindowFeatureNames(windowSize int) []string {
	names := make([]string, 0, windowSize*FeaturesPerFrame)
	for i := 0; i < windowSize; i++ {
		names = append(names, FrameFeatureNames[:]...)
	}
	return names
}

// SlotFeatureNames qualifies every column with its slot, oldest first:
// "t-4 amplitude" ... "t hasPitch".
func SlotFeatureNames(windowSize int) []string {
	names := make([]string, 0, windowSize*FeaturesPerFrame)
	for offset := windowSize - 1; offset >= 0; offset-- {
		slot := "t"
		if offset > 0 {
			slot = fmt.Sprintf("t-%d", offset)
		}
		for _, name := range FrameFeatureNames {
			names = append(names, slot+" "+name)
		}
	}
	return names
}

// LabelPolicy decides whether a single frame is an onset. Implementations must
// only look at the frame they are given.
type LabelPolicy interface {
	Label(f Frame) bool
}

// ManualOnsetLabels uses the pre-expanded hasManualOnset flag.
type ManualOnsetLabels struct{}

func (ManualOnsetLabels) Label(f Frame) bool {
	return f.HasManualOnset
}

// toleranceSlack absorbs float error so frames exactly Tolerance away match.
const toleranceSlack = 1e-9

// ToleranceLabels marks frames whose timestamp lies within Tolerance seconds of
// any manual onset, inclusive.
type ToleranceLabels struct {
	Onsets    []float64
	Tolerance float64
}

func (p ToleranceLabels) Label(f Frame) bool {
	if !f.HasTimestamp {
		return false
	}
	for _, onset := range p.Onsets {
		if math.Abs(f.Timestamp-onset) <= p.Tolerance+toleranceSlack {
			return true
		}
	}
	return false
}

// PolicyFor picks the labelling policy matching the recording's format.
func PolicyFor(rec Recording, tolerance float64) LabelPolicy {
	if rec.Format == FormatTimestamped {
		return ToleranceLabels{Onsets: rec.Onsets, Tolerance: tolerance}
	}
	return ManualOnsetLabels{}
}

// IsActive reports whether a frame survives the silence filter. Positive frames
// are always kept so no onset example is thrown away.
func IsActive(f Frame, policy LabelPolicy, cfg PreprocessingConfig) bool {
	return f.Amplitude > cfg.MinAmplitude ||
		f.SpectralFlux > cfg.MinActivity ||
		f.PhaseDeviation > cfg.MinActivity ||
		policy.Label(f)
}

// FilterActiveFrames drops silent frames, preserving order. With the filter
// disabled the input slice is returned as is.
func FilterActiveFrames(frames []Frame, policy LabelPolicy, cfg PreprocessingConfig) []Frame {
	if !cfg.FilterSilence {
		return frames
	}
	kept := make([]Frame, 0, len(frames))
	for _, f := range frames {
		if IsActive(f, policy, cfg) {
			kept = append(kept, f)
		}
	}
	return kept
}

// frameTuple appends the 5 features of f in emission order.
func frameTuple(dst []float64, f Frame) []float64 {
	pitch := 0.0
	if f.HasPitch {
		pitch = 1.0
	}
	return append(dst, f.Amplitude, f.SpectralFlux, f.PhaseDeviation, f.HighFrequencyEnergy, pitch)
}

// BuildWindow returns the feature vector for frame t: frames t-w+1 … t, oldest
// first. It never reads past t. t must be at least w-1.
func BuildWindow(frames []Frame, t, windowSize int) []float64 {
	vec := make([]float64, 0, windowSize*FeaturesPerFrame)
	for offset := windowSize - 1; offset >= 0; offset-- {
		vec = frameTuple(vec, frames[t-offset])
	}
	return vec
}

// ExtractWindows turns frames into causal feature windows and labels. The first
// window_size-1 retained frames are history only. When fewer than window_size
// frames survive filtering the result is empty, which is not an error.
func ExtractWindows(frames []Frame, policy LabelPolicy, cfg PreprocessingConfig) ([][]float64, []int) {
	return WindowActiveFrames(FilterActiveFrames(frames, policy, cfg), policy, cfg.WindowSize)
}

// WindowActiveFrames builds the windows of frames that already passed the
// silence filter.
func WindowActiveFrames(active []Frame, policy LabelPolicy, w int) ([][]float64, []int) {
	if w < 1 || len(active) < w {
		return nil, nil
	}

	features := make([][]float64, 0, len(active)-w+1)
	labels := make([]int, 0, len(active)-w+1)
	for t := w - 1; t < len(active); t++ {
		features = append(features, BuildWindow(active, t, w))
		label := 0
		if policy.Label(active[t]) {
			label = 1
		}
		labels = append(labels, label)
	}

	return features, labels
}
