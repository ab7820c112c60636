package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"

	"onset-training/config"
	"onset-training/db"
	"onset-training/models"
	"onset-training/onset"
)

type options struct {
	ConfigPath string
	RawDir     string
	OutputDir  string
	Format     string
	WindowSize int
	Ratio      float64
	Seed       uint64
	NoFilter   bool
	NoLedger   bool
	Quiet      bool
}

func main() {
	_ = godotenv.Load()
	opts := parseFlags()

	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		log.Fatalf("ERROR: %v", err)
	}
	applyFlags(cfg, opts)
	if err := config.Validate(cfg); err != nil {
		log.Fatalf("ERROR: invalid configuration: %v", err)
	}

	log.SetFlags(log.Ldate | log.Ltime)
	log.Printf("=== Onset Training Data Preprocessing ===\n")
	log.Printf("Raw data:      %s\n", cfg.RawDir)
	log.Printf("Output:        %s\n", cfg.OutputDir)
	log.Printf("Input format:  %s\n", cfg.InputFormat)
	log.Printf("Window size:   %d frames (%d features)\n", cfg.WindowSize, cfg.Preprocessing().NumFeatures())
	log.Println()

	startTime := time.Now()
	ctx := context.Background()

	// Step 1: Discover recordings
	log.Println("Step 1: Discovering recordings...")
	paths, err := onset.ListRecordingFiles(cfg.RawDir)
	if err != nil {
		log.Fatalf("ERROR: Failed to read raw directory: %v", err)
	}
	if len(paths) == 0 {
		log.Fatalf("ERROR: No .json recordings found in %s", cfg.RawDir)
	}
	log.Printf("Found %d recordings\n", len(paths))
	log.Println()

	// Step 2: Extract windows
	log.Println("Step 2: Extracting causal feature windows...")
	pre, err := onset.NewPreprocessor(cfg.Preprocessing(), cfg.Format(), nil)
	if err != nil {
		log.Fatalf("ERROR: %v", err)
	}

	var progress *mpb.Progress
	if !opts.Quiet {
		progress = mpb.New(mpb.WithWidth(64))
		bar := progress.AddBar(int64(len(paths)),
			mpb.PrependDecorators(
				decor.Name("Recordings: "),
				decor.CountersNoUnit("%d / %d"),
			),
			mpb.AppendDecorators(
				decor.Percentage(),
				decor.AverageETA(decor.ET_STYLE_GO),
			),
		)
		pre.OnFileDone = func(onset.FileStats) { bar.Increment() }
	}

	res, err := pre.ProcessFiles(ctx, paths)
	if progress != nil {
		progress.Wait()
	}
	if err != nil {
		log.Fatalf("ERROR: %v", err)
	}
	log.Println()

	// Step 3: Write artifacts
	log.Println("Step 3: Writing artifacts...")
	if err := onset.WriteArtifacts(cfg.OutputDir, res); err != nil {
		log.Fatalf("ERROR: Failed to write artifacts: %v", err)
	}
	log.Printf("Artifacts written to: %s\n", cfg.OutputDir)
	log.Println()

	// Step 4: Record the run
	if !opts.NoLedger && cfg.LedgerPath != "" {
		if id, err := recordRun(cfg, res); err != nil {
			log.Printf("WARNING: Failed to record run in ledger: %v\n", err)
		} else {
			log.Printf("Recorded run #%d in %s\n", id, cfg.LedgerPath)
		}
		log.Println()
	}

	printSummary(res, startTime)
}

func parseFlags() options {
	opts := options{}

	flag.StringVar(&opts.ConfigPath, "config", os.Getenv("ONSET_CONFIG"), "Path to the YAML config (optional)")
	flag.StringVar(&opts.RawDir, "raw-dir", "", "Directory of raw recording JSON files")
	flag.StringVar(&opts.OutputDir, "output-dir", "", "Directory to write X.npy, y.npy and metadata")
	flag.StringVar(&opts.Format, "format", "", "Input format: annotated, timestamped or auto")
	flag.IntVar(&opts.WindowSize, "window", 0, "Frames per feature window")
	flag.Float64Var(&opts.Ratio, "target-ratio", 0, "Target fraction of onset samples after balancing")
	flag.Uint64Var(&opts.Seed, "seed", 0, "Random seed for balancing")
	flag.BoolVar(&opts.NoFilter, "no-filter", false, "Keep silent frames")
	flag.BoolVar(&opts.NoLedger, "no-ledger", false, "Do not record the run in the SQLite ledger")
	flag.BoolVar(&opts.Quiet, "quiet", false, "Hide the progress bar")

	flag.Parse()
	return opts
}

// applyFlags overrides only the settings given on the command line.
func applyFlags(cfg *config.Config, opts options) {
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "raw-dir":
			cfg.RawDir = opts.RawDir
		case "output-dir":
			cfg.OutputDir = opts.OutputDir
		case "format":
			cfg.InputFormat = opts.Format
		case "window":
			cfg.WindowSize = opts.WindowSize
		case "target-ratio":
			cfg.TargetPositiveRatio = opts.Ratio
		case "seed":
			cfg.Seed = opts.Seed
		case "no-filter":
			cfg.FilterSilence = !opts.NoFilter
		}
	})
}

func recordRun(cfg *config.Config, res *onset.Result) (int64, error) {
	ledger, err := db.NewSQLiteClient(cfg.LedgerPath)
	if err != nil {
		return 0, err
	}
	defer ledger.Close()

	run := models.Run{
		RawDir:              cfg.RawDir,
		OutputDir:           cfg.OutputDir,
		InputFormat:         cfg.InputFormat,
		WindowSize:          res.Config.WindowSize,
		Seed:                res.Config.Seed,
		TargetPositiveRatio: res.Config.TargetPositiveRatio,
		SamplesBefore:       res.Before.Samples,
		OnsetsBefore:        res.Before.Onsets,
		Samples:             res.After.Samples,
		Onsets:              res.After.Onsets,
		PositiveFraction:    res.After.PositiveFraction,
	}
	for _, w := range res.Warnings {
		run.Warnings = append(run.Warnings, w.String())
	}
	for _, f := range res.Files {
		rec := models.RecordingStats{
			Name:             f.Name,
			Frames:           f.Frames,
			ActiveFrames:     f.ActiveFrames,
			Samples:          f.Samples,
			Onsets:           f.Onsets,
			PositiveFraction: f.PositiveFraction,
		}
		if f.Err != nil {
			rec.Error = f.Err.Error()
		}
		run.Recordings = append(run.Recordings, rec)
	}

	return ledger.RecordRun(run)
}

func printSummary(res *onset.Result, startTime time.Time) {
	log.Println("=== Preprocessing Summary ===")
	log.Println()

	skipped := 0
	log.Println("Per-recording samples:")
	for _, f := range res.Files {
		if f.Skipped() {
			skipped++
			log.Printf("  %-40s: skipped (%v)\n", f.Name, f.Err)
			continue
		}
		log.Printf("  %-40s: %6d samples, %5d onsets (%.1f%%)\n",
			f.Name, f.Samples, f.Onsets, f.PositiveFraction*100)
	}
	log.Println()

	log.Printf("Before balancing: %d samples, %d onsets (%.1f%%)\n",
		res.Before.Samples, res.Before.Onsets, res.Before.PositiveFraction*100)
	if res.Balance.Applied {
		log.Printf("Dropped %d negatives to reach %.0f%% onsets\n",
			res.Balance.NegativesDropped, res.Config.TargetPositiveRatio*100)
	}
	log.Printf("Final dataset:    %d samples, %d onsets (%.1f%%)\n",
		res.After.Samples, res.After.Onsets, res.After.PositiveFraction*100)
	log.Printf("Feature shape:    (%d, %d)\n", res.Dataset.Len(), res.Dataset.NumFeatures())
	if skipped > 0 {
		log.Printf("Skipped recordings: %d of %d\n", skipped, len(res.Files))
	}
	log.Println()

	for _, w := range res.Warnings {
		log.Printf("WARNING: %s\n", w)
	}
	if len(res.Warnings) > 0 {
		log.Println()
	}

	log.Printf("Total time: %s\n", time.Since(startTime).Round(time.Millisecond))
	log.Println()
	fmt.Println("✓ Preprocessing complete!")
}
