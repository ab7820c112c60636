package onset

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidInputFormat reports a recording whose JSON structure is not a
	// sequence of frame records in the declared format.
	ErrInvalidInputFormat = errors.New("invalid input format")

	// ErrMissingFeatureField is matched by every *MissingFeatureFieldError.
	ErrMissingFeatureField = errors.New("missing feature field")

	// ErrInsufficientActiveFrames marks a recording that kept fewer frames than
	// the window size after filtering. It is recorded on FileStats and never
	// aborts a run.
	ErrInsufficientActiveFrames = errors.New("insufficient active frames")

	// ErrEmptyDataset means no recording contributed a single sample.
	ErrEmptyDataset = errors.New("empty dataset")
)

// MissingFeatureFieldError names the key a frame lacks.
type MissingFeatureFieldError struct {
	Field string
	Index int
}

func (e *MissingFeatureFieldError) Error() string {
	return fmt.Sprintf("frame %d: missing feature field %q", e.Index, e.Field)
}

func (e *MissingFeatureFieldError) Is(target error) bool {
	return target == ErrMissingFeatureField
}

func invalidFormat(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidInputFormat, fmt.Sprintf(format, args...))
}

// ImbalanceKind distinguishes the two dataset-size warnings.
type ImbalanceKind string

const (
	TooFewSamples ImbalanceKind = "too_few_samples"
	TooFewOnsets  ImbalanceKind = "too_few_onsets"
)

// ImbalanceWarning flags an aggregate that is usable but thin. It never blocks
// the pipeline.
type ImbalanceWarning struct {
	Kind    ImbalanceKind `json:"kind"`
	Count   int           `json:"count"`
	Minimum int           `json:"minimum"`
}

func (w ImbalanceWarning) String() string {
	switch w.Kind {
	case TooFewSamples:
		return fmt.Sprintf("only %d samples (want at least %d): record more annotated files", w.Count, w.Minimum)
	case TooFewOnsets:
		return fmt.Sprintf("only %d onset samples (want at least %d): add more onset markers when recording", w.Count, w.Minimum)
	default:
		return fmt.Sprintf("%s: %d < %d", w.Kind, w.Count, w.Minimum)
	}
}
