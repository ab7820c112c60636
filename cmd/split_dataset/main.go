package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"

	"onset-training/config"
	"onset-training/onset"
)

// Split artifact names, next to X.npy and y.npy.
const (
	trainFeaturesFile = "X_train.npy"
	trainLabelsFile   = "y_train.npy"
	valFeaturesFile   = "X_val.npy"
	valLabelsFile     = "y_val.npy"
	classWeightsFile  = "class_weights.json"
)

func main() {
	_ = godotenv.Load()

	configPath := flag.String("config", os.Getenv("ONSET_CONFIG"), "Path to the YAML config (optional)")
	dataDir := flag.String("data-dir", "", "Directory holding X.npy and y.npy (defaults to output_dir)")
	valFraction := flag.Float64("val", 0, "Validation fraction (defaults to val_fraction)")
	seed := flag.Uint64("seed", 0, "Random seed (defaults to seed)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("ERROR: %v", err)
	}
	dir := cfg.OutputDir
	fraction := cfg.ValFraction
	splitSeed := cfg.Seed
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "data-dir":
			dir = *dataDir
		case "val":
			fraction = *valFraction
		case "seed":
			splitSeed = *seed
		}
	})

	log.SetFlags(log.Ldate | log.Ltime)
	log.Printf("=== Train / Validation Split ===\n")
	log.Printf("Dataset: %s\n", dir)
	log.Printf("Validation fraction: %.2f (seed %d)\n", fraction, splitSeed)
	log.Println()

	meta, err := onset.ReadMetadata(dir)
	if err != nil {
		log.Fatalf("ERROR: Failed to read metadata: %v", err)
	}
	if err := meta.Validate(); err != nil {
		log.Fatalf("ERROR: %v", err)
	}

	x, err := onset.LoadFeatureMatrix(filepath.Join(dir, onset.FeaturesFile))
	if err != nil {
		log.Fatalf("ERROR: Failed to load features: %v", err)
	}
	y, err := onset.LoadLabels(filepath.Join(dir, onset.LabelsFile))
	if err != nil {
		log.Fatalf("ERROR: Failed to load labels: %v", err)
	}
	if rows, cols := x.Dims(); rows != len(y) || cols != meta.NFeatures {
		log.Fatalf("ERROR: X is %dx%d but y has %d labels and metadata declares %d features", rows, cols, len(y), meta.NFeatures)
	}

	split, err := onset.StratifiedSplit(onset.DatasetFromMatrix(x, y), fraction, splitSeed)
	if err != nil {
		log.Fatalf("ERROR: %v", err)
	}

	if err := writeSplit(dir, split.Train, trainFeaturesFile, trainLabelsFile); err != nil {
		log.Fatalf("ERROR: Failed to write training split: %v", err)
	}
	if err := writeSplit(dir, split.Validation, valFeaturesFile, valLabelsFile); err != nil {
		log.Fatalf("ERROR: Failed to write validation split: %v", err)
	}

	weights := onset.BalancedClassWeights(split.Train.Labels)
	if err := onset.WriteJSON(filepath.Join(dir, classWeightsFile), weights); err != nil {
		log.Fatalf("ERROR: Failed to write class weights: %v", err)
	}

	train, val := split.Train.Summary(), split.Validation.Summary()
	log.Printf("Train:      %6d samples, %5d onsets (%.1f%%)\n", train.Samples, train.Onsets, train.PositiveFraction*100)
	log.Printf("Validation: %6d samples, %5d onsets (%.1f%%)\n", val.Samples, val.Onsets, val.PositiveFraction*100)
	log.Printf("Class weights: no onset=%.3f onset=%.3f\n", weights[0], weights[1])
	log.Println()
	fmt.Println("✓ Split complete!")
}

func writeSplit(dir string, ds onset.Dataset, featuresFile, labelsFile string) error {
	if ds.Len() == 0 {
		return fmt.Errorf("%s: %w", featuresFile, onset.ErrEmptyDataset)
	}
	if err := onset.WriteMatrix(filepath.Join(dir, featuresFile), ds.Matrix()); err != nil {
		return err
	}
	return onset.WriteLabels(filepath.Join(dir, labelsFile), ds.Labels)
}
