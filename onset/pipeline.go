package onset

// Preprocessing Pipeline
//
// One linear pass, no shared state between runs:
//
// 1. Per file: read, decode, filter silence, build causal windows
// 2. Stack every file's rows in input order
// 3. Warn when the aggregate is thin, fail when it is empty
// 4. Downsample negatives towards the target positive ratio
// 5. Fit the scaler on the balanced matrix and standardise it
//
// A file that cannot be decoded or has too little activity contributes nothing
// and the run continues with the next file.

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/mdobak/go-xerrors"

	"onset-training/utils"
)

// FileResult is the extractor output for one recording.
type FileResult struct {
	Stats    FileStats
	Features [][]float64
	Labels   []int
}

// Result is everything a run produces.
type Result struct {
	Config   PreprocessingConfig
	Files    []FileStats
	Before   Summary // aggregate before balancing
	After    Summary // final dataset
	Balance  BalanceReport
	Warnings []ImbalanceWarning

	// Unscaled is the balanced dataset in raw feature units; Dataset is the
	// same rows after standardisation.
	Unscaled Dataset
	Dataset  Dataset
	Scaler   *StandardScaler
}

// Metadata builds the metadata.json record for the final dataset.
func (r *Result) Metadata() Metadata {
	return Metadata{
		NSamples:             r.After.Samples,
		NFeatures:            r.Dataset.NumFeatures(),
		NOnsets:              r.After.Onsets,
		OnsetRatio:           r.After.PositiveFraction,
		WindowSize:           r.Config.WindowSize,
		FeaturesPerFrame:     FeaturesPerFrame,
		TotalFramesPerWindow: r.Config.WindowSize,
	}
}

// Preprocessor turns recordings into a balanced, standardised dataset.
type Preprocessor struct {
	cfg    PreprocessingConfig
	format InputFormat
	logger *slog.Logger

	// OnFileDone, when set, is called after every file with its stats.
	OnFileDone func(FileStats)
}

// NewPreprocessor validates cfg. A nil logger falls back to utils.GetLogger.
func NewPreprocessor(cfg PreprocessingConfig, format InputFormat, logger *slog.Logger) (*Preprocessor, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid preprocessing config: %w", err)
	}
	if _, err := ParseInputFormat(string(format)); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = utils.GetLogger()
	}
	return &Preprocessor{cfg: cfg, format: format, logger: logger}, nil
}

// Config returns the validated configuration.
func (p *Preprocessor) Config() PreprocessingConfig {
	return p.cfg
}

// ProcessRecording extracts windows from one decoded recording.
func (p *Preprocessor) ProcessRecording(rec Recording) FileResult {
	policy := PolicyFor(rec, p.cfg.OnsetTolerance)
	active := FilterActiveFrames(rec.Frames, policy, p.cfg)
	features, labels := WindowActiveFrames(active, policy, p.cfg.WindowSize)

	summary := Summarize(labels)
	stats := FileStats{
		Name:             rec.Name,
		Frames:           len(rec.Frames),
		ActiveFrames:     len(active),
		Samples:          summary.Samples,
		Onsets:           summary.Onsets,
		PositiveFraction: summary.PositiveFraction,
	}
	if summary.Samples == 0 {
		stats.Err = ErrInsufficientActiveFrames
	}

	return FileResult{Stats: stats, Features: features, Labels: labels}
}

// Aggregate stacks per-file results in order.
func Aggregate(results []FileResult) (Dataset, []FileStats) {
	var ds Dataset
	stats := make([]FileStats, 0, len(results))
	for _, r := range results {
		ds.Append(r.Features, r.Labels)
		stats = append(stats, r.Stats)
	}
	return ds, stats
}

// CheckBalance returns the thin-dataset warnings for summary.
func CheckBalance(summary Summary, minSamples, minOnsets int) []ImbalanceWarning {
	var warnings []ImbalanceWarning
	if summary.Samples < minSamples {
		warnings = append(warnings, ImbalanceWarning{Kind: TooFewSamples, Count: summary.Samples, Minimum: minSamples})
	}
	if summary.Onsets < minOnsets {
		warnings = append(warnings, ImbalanceWarning{Kind: TooFewOnsets, Count: summary.Onsets, Minimum: minOnsets})
	}
	return warnings
}

// ProcessFiles runs the whole pipeline over paths.
func (p *Preprocessor) ProcessFiles(ctx context.Context, paths []string) (*Result, error) {
	results := make([]FileResult, 0, len(paths))
	for _, path := range paths {
		res := p.processFile(ctx, path)
		results = append(results, res)
		if p.OnFileDone != nil {
			p.OnFileDone(res.Stats)
		}
	}

	ds, stats := Aggregate(results)
	return p.Finish(ctx, ds, stats)
}

// ProcessRecordings runs the pipeline over already decoded recordings.
func (p *Preprocessor) ProcessRecordings(ctx context.Context, recs []Recording) (*Result, error) {
	results := make([]FileResult, 0, len(recs))
	for _, rec := range recs {
		res := p.ProcessRecording(rec)
		p.logFile(ctx, res.Stats)
		results = append(results, res)
	}
	ds, stats := Aggregate(results)
	return p.Finish(ctx, ds, stats)
}

func (p *Preprocessor) processFile(ctx context.Context, path string) FileResult {
	rec, err := LoadRecordingFile(path, p.format)
	if err != nil {
		p.logger.ErrorContext(ctx, "skipping unreadable recording",
			slog.String("path", path),
			slog.Any("error", xerrors.New(err)),
		)
		return FileResult{Stats: FileStats{Name: filepath.Base(path), Err: err}}
	}

	res := p.ProcessRecording(rec)
	p.logFile(ctx, res.Stats)
	return res
}

func (p *Preprocessor) logFile(ctx context.Context, s FileStats) {
	if errors.Is(s.Err, ErrInsufficientActiveFrames) {
		p.logger.WarnContext(ctx, "recording has too few active frames",
			slog.String("file", s.Name),
			slog.Int("frames", s.Frames),
			slog.Int("activeFrames", s.ActiveFrames),
			slog.Int("windowSize", p.cfg.WindowSize),
		)
		return
	}
	p.logger.InfoContext(ctx, "extracted samples",
		slog.String("file", s.Name),
		slog.Int("frames", s.Frames),
		slog.Int("activeFrames", s.ActiveFrames),
		slog.Int("samples", s.Samples),
		slog.Int("onsets", s.Onsets),
		slog.Float64("positiveFraction", s.PositiveFraction),
	)
}

// Finish applies the dataset-level steps to an aggregate.
func (p *Preprocessor) Finish(ctx context.Context, ds Dataset, stats []FileStats) (*Result, error) {
	res := &Result{Config: p.cfg, Files: stats, Before: ds.Summary()}

	p.logger.InfoContext(ctx, "aggregate before balancing",
		slog.Int("samples", res.Before.Samples),
		slog.Int("onsets", res.Before.Onsets),
		slog.Float64("positiveFraction", res.Before.PositiveFraction),
		slog.Int("features", ds.NumFeatures()),
	)

	if res.Before.Samples == 0 {
		return nil, fmt.Errorf("%w: none of %d recordings produced a sample", ErrEmptyDataset, len(stats))
	}

	res.Warnings = CheckBalance(res.Before, p.cfg.MinTotalSamples, p.cfg.MinTotalOnsets)
	for _, w := range res.Warnings {
		p.logger.WarnContext(ctx, "imbalanced dataset",
			slog.String("kind", string(w.Kind)),
			slog.Int("count", w.Count),
			slog.Int("minimum", w.Minimum),
			slog.String("hint", w.String()),
		)
	}

	if res.Before.Onsets == 0 {
		p.logger.WarnContext(ctx, "no onset samples, skipping class balancing")
	}
	balanced, report := BalanceDataset(ds, p.cfg.TargetPositiveRatio, p.cfg.Seed)
	res.Balance = report
	if report.Applied {
		p.logger.InfoContext(ctx, "downsampled negatives",
			slog.Float64("ratioBefore", report.RatioBefore),
			slog.Float64("targetRatio", p.cfg.TargetPositiveRatio),
			slog.Int("positives", report.Positives),
			slog.Int("negativesKept", report.NegativesKept),
			slog.Int("negativesDropped", report.NegativesDropped),
			slog.Float64("ratioAfter", report.RatioAfter),
		)
	}
	res.Unscaled = balanced
	res.After = balanced.Summary()

	scaler, err := FitStandardScaler(balanced.Matrix())
	if err != nil {
		return nil, fmt.Errorf("fit scaler: %w", err)
	}
	scaled, err := scaler.TransformDataset(balanced)
	if err != nil {
		return nil, fmt.Errorf("scale features: %w", err)
	}
	res.Scaler = scaler
	res.Dataset = scaled

	p.logger.InfoContext(ctx, "final dataset",
		slog.Int("samples", res.After.Samples),
		slog.Int("onsets", res.After.Onsets),
		slog.Float64("positiveFraction", res.After.PositiveFraction),
		slog.Int("features", scaled.NumFeatures()),
	)

	return res, nil
}
