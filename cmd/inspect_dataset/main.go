package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"

	"onset-training/onset"
	"onset-training/utils"
)

// Print per-column statistics of an exported feature matrix, before and after
// undoing the scaler, and flag columns the classifier cannot learn from.
func main() {
	_ = godotenv.Load()

	dataDir := flag.String("data-dir", utils.GetEnv("ONSET_OUTPUT_DIR", filepath.Join("data", "processed")),
		"Directory holding X.npy, metadata.json and scaler.gob")
	features := flag.String("features", "", "Feature matrix to inspect (defaults to X.npy in -data-dir)")
	raw := flag.Bool("raw", false, "Undo standardisation with scaler.gob before analysing")
	flag.Parse()

	path := *features
	if path == "" {
		path = filepath.Join(*dataDir, onset.FeaturesFile)
	}

	meta, err := onset.ReadMetadata(*dataDir)
	if err != nil {
		log.Fatalf("Failed to read metadata: %v", err)
	}
	if err := meta.Validate(); err != nil {
		log.Fatalf("Invalid metadata: %v", err)
	}

	x, err := onset.LoadFeatureMatrix(path)
	if err != nil {
		log.Fatalf("Failed to load features: %v", err)
	}
	rows, cols := x.Dims()
	fmt.Printf("=== Inspecting %s ===\n", filepath.Base(path))
	fmt.Printf("   Shape: (%d, %d)\n", rows, cols)
	fmt.Printf("   Window: %d frames × %d features\n", meta.WindowSize, meta.FeaturesPerFrame)
	fmt.Printf("   Onsets: %d of %d samples (%.1f%%)\n", meta.NOnsets, meta.NSamples, meta.OnsetRatio*100)

	ds := onset.DatasetFromMatrix(x, make([]int, rows))
	if *raw {
		scaler, err := onset.ReadScalerFile(*dataDir)
		if err != nil {
			log.Fatalf("Failed to read scaler: %v", err)
		}
		ds, err = scaler.InverseTransformDataset(ds)
		if err != nil {
			log.Fatalf("Failed to undo scaling: %v", err)
		}
		fmt.Println("   Values: raw feature units")
	} else {
		fmt.Println("   Values: standardised")
	}

	analysis := onset.AnalyzeFeatureScales(ds.Matrix(), meta.WindowSize)
	analysis.PrintFeatureScaleReport(os.Stdout)

	issues := analysis.CheckScaleIssues()
	if len(issues) == 0 {
		fmt.Println("✅ No scale issues found")
		return
	}
	fmt.Printf("⚠️  %d potential issues:\n", len(issues))
	for _, issue := range issues {
		fmt.Printf("   - %s\n", issue)
	}
}
