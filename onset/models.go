package onset

// Frame is one analysis step (~10ms hop) of a recording.
type Frame struct {
	Timestamp           float64 `json:"timestamp,omitempty"`
	HasTimestamp        bool    `json:"-"`
	Amplitude           float64 `json:"amplitude"`
	SpectralFlux        float64 `json:"spectralFlux"`
	PhaseDeviation      float64 `json:"phaseDeviation"`
	HighFrequencyEnergy float64 `json:"highFrequencyEnergy"`
	HasPitch            bool    `json:"hasPitch"`
	HasManualOnset      bool    `json:"hasManualOnset"`
}

// Recording is a decoded input file. Frames are in temporal order.
type Recording struct {
	Name   string      `json:"name"`
	Format InputFormat `json:"format"`
	Frames []Frame     `json:"frames"`
	// Onsets holds manual onset times in seconds; only FormatTimestamped sets it.
	Onsets []float64 `json:"onsets,omitempty"`
}

// FileStats is the per-recording diagnostic record. Err is nil for a file that
// contributed samples, ErrInsufficientActiveFrames for one that was too quiet,
// or the decode error for one that could not be read.
type FileStats struct {
	Name             string  `json:"name"`
	Frames           int     `json:"frames"`
	ActiveFrames     int     `json:"activeFrames"`
	Samples          int     `json:"samples"`
	Onsets           int     `json:"onsets"`
	PositiveFraction float64 `json:"positiveFraction"`
	Err              error   `json:"-"`
}

// Skipped reports whether the file contributed nothing to the aggregate.
func (s FileStats) Skipped() bool {
	return s.Samples == 0
}

// Summary describes a label vector.
type Summary struct {
	Samples          int     `json:"samples"`
	Onsets           int     `json:"onsets"`
	PositiveFraction float64 `json:"positiveFraction"`
}

// Summarize counts samples and positives in labels.
func Summarize(labels []int) Summary {
	s := Summary{Samples: len(labels)}
	for _, l := range labels {
		if l == 1 {
			s.Onsets++
		}
	}
	if s.Samples > 0 {
		s.PositiveFraction = float64(s.Onsets) / float64(s.Samples)
	}
	return s
}
