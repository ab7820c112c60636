package main

import (
	"bytes"
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"math"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"

	"onset-training/config"
	"onset-training/onset"
)

// Preprocess the same recordings several times and check that every run
// produces byte-identical artifacts.
func main() {
	_ = godotenv.Load()

	configPath := flag.String("config", os.Getenv("ONSET_CONFIG"), "Path to the YAML config (optional)")
	rawDir := flag.String("raw-dir", "", "Directory of raw recording JSON files (defaults to raw_dir)")
	runs := flag.Int("runs", 3, "Number of repeated runs")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("ERROR: %v", err)
	}
	if *rawDir != "" {
		cfg.RawDir = *rawDir
	}
	if *runs < 2 {
		log.Fatal("ERROR: -runs must be at least 2")
	}

	paths, err := onset.ListRecordingFiles(cfg.RawDir)
	if err != nil {
		log.Fatalf("ERROR: %v", err)
	}
	log.Printf("Testing determinism with %d recordings from %s (seed %d)\n", len(paths), cfg.RawDir, cfg.Seed)

	workDir, err := os.MkdirTemp("", "onset-determinism-*")
	if err != nil {
		log.Fatalf("ERROR: %v", err)
	}
	defer os.RemoveAll(workDir)

	quiet := slog.New(slog.NewTextHandler(io.Discard, nil))
	var results []*onset.Result
	for i := 0; i < *runs; i++ {
		pre, err := onset.NewPreprocessor(cfg.Preprocessing(), cfg.Format(), quiet)
		if err != nil {
			log.Fatalf("ERROR: %v", err)
		}
		res, err := pre.ProcessFiles(context.Background(), paths)
		if err != nil {
			log.Fatalf("Run %d failed: %v", i+1, err)
		}
		if err := onset.WriteArtifacts(runDir(workDir, i), res); err != nil {
			log.Fatalf("Run %d failed to write artifacts: %v", i+1, err)
		}
		results = append(results, res)
		log.Printf("Run %d: %d samples, %d onsets\n", i+1, res.After.Samples, res.After.Onsets)
	}

	fmt.Println("\n=== Determinism Check ===")
	allIdentical := true
	for i := 1; i < *runs; i++ {
		if diff := maxAbsDiff(results[0].Dataset, results[i].Dataset); diff != 0 {
			allIdentical = false
			fmt.Printf("❌ Run %d features differ from run 1 (max diff: %e)\n", i+1, diff)
		}
		for _, name := range []string{onset.FeaturesFile, onset.LabelsFile, onset.ScalerJSONFile, onset.MetadataFile} {
			same, err := sameFile(filepath.Join(runDir(workDir, 0), name), filepath.Join(runDir(workDir, i), name))
			if err != nil {
				log.Fatalf("ERROR: %v", err)
			}
			if !same {
				allIdentical = false
				fmt.Printf("❌ %s differs between run 1 and run %d\n", name, i+1)
			}
		}
	}

	if allIdentical {
		fmt.Println("✅ All runs produced IDENTICAL artifacts (deterministic)")
		return
	}
	fmt.Println("❌ Preprocessing is NON-DETERMINISTIC")
	os.Exit(1)
}

func runDir(root string, i int) string {
	return filepath.Join(root, fmt.Sprintf("run-%d", i+1))
}

func maxAbsDiff(a, b onset.Dataset) float64 {
	if a.Len() != b.Len() || a.NumFeatures() != b.NumFeatures() {
		return math.Inf(1)
	}
	var maxDiff float64
	for i := range a.Features {
		if a.Labels[i] != b.Labels[i] {
			return math.Inf(1)
		}
		for j := range a.Features[i] {
			maxDiff = math.Max(maxDiff, math.Abs(a.Features[i][j]-b.Features[i][j]))
		}
	}
	return maxDiff
}

func sameFile(a, b string) (bool, error) {
	da, err := os.ReadFile(a)
	if err != nil {
		return false, err
	}
	db, err := os.ReadFile(b)
	if err != nil {
		return false, err
	}
	return bytes.Equal(da, db), nil
}
