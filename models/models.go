package models

import (
	"encoding/json"
	"time"
)

// TrainingUpload is one annotated recording sent by the browser tuner.
type TrainingUpload struct {
	Data       json.RawMessage `json:"data"`
	Instrument string          `json:"instrument"`
}

// TrainingSaved acknowledges a stored upload.
type TrainingSaved struct {
	Success  bool   `json:"success"`
	Filename string `json:"filename"`
}

// TrainingError reports a rejected upload.
type TrainingError struct {
	Message string `json:"message"`
}

// DatasetInfo describes the raw recordings on disk and the last processed
// dataset, if one exists.
type DatasetInfo struct {
	Recordings int             `json:"recordings"`
	Files      []string        `json:"files"`
	Metadata   json.RawMessage `json:"metadata,omitempty"` // metadata.json as written
	LastRun    *Run            `json:"lastRun,omitempty"`
}

// Run is one preprocessing run as kept in the ledger.
type Run struct {
	ID                  int64            `json:"id"`
	CreatedAt           time.Time        `json:"createdAt"`
	RawDir              string           `json:"rawDir"`
	OutputDir           string           `json:"outputDir"`
	InputFormat         string           `json:"inputFormat"`
	WindowSize          int              `json:"windowSize"`
	Seed                uint64           `json:"seed"`
	TargetPositiveRatio float64          `json:"targetPositiveRatio"`
	SamplesBefore       int              `json:"samplesBefore"`
	OnsetsBefore        int              `json:"onsetsBefore"`
	Samples             int              `json:"samples"`
	Onsets              int              `json:"onsets"`
	PositiveFraction    float64          `json:"positiveFraction"`
	Warnings            []string         `json:"warnings,omitempty"`
	Recordings          []RecordingStats `json:"recordings,omitempty"`
}

// RecordingStats is the per-file outcome of a run.
type RecordingStats struct {
	Name             string  `json:"name"`
	Frames           int     `json:"frames"`
	ActiveFrames     int     `json:"activeFrames"`
	Samples          int     `json:"samples"`
	Onsets           int     `json:"onsets"`
	PositiveFraction float64 `json:"positiveFraction"`
	Error            string  `json:"error,omitempty"`
}
