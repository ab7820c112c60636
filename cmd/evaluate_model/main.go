package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"onset-training/evaluation"
	"onset-training/onset"
	"onset-training/utils"
)

// Files written next to the exported model.
const (
	reportFile       = "classification_report.txt"
	evalMetadataFile = "evaluation_metadata.json"
	modelConfigFile  = "config.json"
	rocCurveFile     = "roc_curve.json"
)

// EvaluationConfig holds evaluation parameters
type EvaluationConfig struct {
	DataDir         string
	LabelsPath      string
	PredictionsPath string
	ModelDir        string
	Version         string
}

func main() {
	_ = godotenv.Load()
	config := parseFlags()

	log.SetFlags(log.Ldate | log.Ltime)
	log.Println("=== Onset Model Evaluation ===")
	log.Printf("Labels: %s\n", config.LabelsPath)
	log.Printf("Predictions: %s\n", config.PredictionsPath)
	log.Printf("Model directory: %s\n", config.ModelDir)
	log.Println()

	meta, err := onset.ReadMetadata(config.DataDir)
	if err != nil {
		log.Fatalf("ERROR: Failed to read dataset metadata: %v", err)
	}
	if err := meta.Validate(); err != nil {
		log.Fatalf("ERROR: %v", err)
	}

	labels, err := onset.LoadLabels(config.LabelsPath)
	if err != nil {
		log.Fatalf("ERROR: Failed to load labels: %v", err)
	}
	probs, err := onset.LoadVector(config.PredictionsPath)
	if err != nil {
		log.Fatalf("ERROR: Failed to load predictions: %v", err)
	}
	if len(labels) != len(probs) {
		log.Fatalf("ERROR: %d labels but %d predictions", len(labels), len(probs))
	}

	log.Printf("Evaluating %d samples...\n", len(labels))
	result, err := evaluation.Evaluate(labels, probs)
	if err != nil {
		log.Fatalf("ERROR: %v", err)
	}

	log.Println()
	fmt.Println("Classification Report:")
	fmt.Println(result.Report.String())
	fmt.Println("Confusion Matrix:")
	fmt.Printf("  %v\n  %v\n\n", result.Confusion.Rows()[0], result.Confusion.Rows()[1])
	log.Printf("AUC-ROC: %.4f\n", result.AUC)
	log.Printf("Optimal threshold: %.4f\n", result.Threshold)
	log.Println()

	if err := saveOutputs(config, meta, result); err != nil {
		log.Fatalf("ERROR: Failed to save evaluation: %v", err)
	}
	log.Printf("Evaluation written to: %s\n", config.ModelDir)
	log.Println()

	printVerdict(result)
}

func parseFlags() EvaluationConfig {
	config := EvaluationConfig{}

	flag.StringVar(&config.DataDir, "data-dir", utils.GetEnv("ONSET_OUTPUT_DIR", filepath.Join("data", "processed")),
		"Directory holding metadata.json and the label files")
	flag.StringVar(&config.LabelsPath, "labels", "",
		"Label vector (.npy); defaults to y_val.npy, falling back to y.npy")
	flag.StringVar(&config.PredictionsPath, "predictions", "",
		"Predicted onset probabilities (.npy), one per label")
	flag.StringVar(&config.ModelDir, "model-dir", filepath.Join("models", "onset"),
		"Directory the report and config.json are written to")
	flag.StringVar(&config.Version, "version", "1.0",
		"Model version recorded in config.json")

	flag.Parse()

	if config.PredictionsPath == "" {
		log.Fatal("ERROR: -predictions is required")
	}
	if config.LabelsPath == "" {
		config.LabelsPath = filepath.Join(config.DataDir, "y_val.npy")
		if _, err := os.Stat(config.LabelsPath); err != nil {
			config.LabelsPath = filepath.Join(config.DataDir, onset.LabelsFile)
		}
	}

	return config
}

func saveOutputs(config EvaluationConfig, meta onset.Metadata, result evaluation.Result) error {
	if err := utils.CreateFolder(config.ModelDir); err != nil {
		return err
	}

	if err := os.WriteFile(filepath.Join(config.ModelDir, reportFile), []byte(result.Report.String()), 0o644); err != nil {
		return err
	}
	if err := onset.WriteJSON(filepath.Join(config.ModelDir, evalMetadataFile), result.Metadata()); err != nil {
		return err
	}
	if err := onset.WriteJSON(filepath.Join(config.ModelDir, rocCurveFile), result.Curve); err != nil {
		return err
	}

	modelConfig := evaluation.NewModelConfig(meta.NFeatures, result.Threshold, config.Version, time.Now())
	return onset.WriteJSON(filepath.Join(config.ModelDir, modelConfigFile), modelConfig)
}

func printVerdict(result evaluation.Result) {
	log.Println("=" + strings.Repeat("=", 79))
	log.Println("VERDICT")
	log.Println("=" + strings.Repeat("=", 79))

	var verdict, recommendation string
	switch auc := result.AUC; {
	case auc >= 0.95:
		verdict = "✓ EXCELLENT"
		recommendation = "Onset separation is strong; export the model."
	case auc >= 0.85:
		verdict = "✓ GOOD"
		recommendation = "Usable. More annotated recordings should tighten the threshold."
	case auc >= 0.70:
		verdict = "⚠ FAIR"
		recommendation = "Check the onset annotations and record more varied material."
	default:
		verdict = "✗ POOR"
		recommendation = "The model barely separates onsets; check labels and silence filtering."
	}

	onsetClass := result.Report.Classes[1]
	log.Printf("Overall Assessment: %s\n", verdict)
	log.Printf("AUC: %.4f, Onset recall: %.2f%%, Onset precision: %.2f%%\n", result.AUC, onsetClass.Recall*100, onsetClass.Precision*100)
	log.Printf("Recommendation: %s\n", recommendation)
	log.Println("=" + strings.Repeat("=", 79))
}
