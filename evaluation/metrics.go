package evaluation

// Model Evaluation
//
// The network is trained and run outside this repository; what comes back is a
// vector of onset probabilities, one per row of X.npy. This package scores that
// vector against y.npy:
//
// 1. Confusion matrix at the 0.5 decision boundary
// 2. Per-class precision / recall / F1 with macro and weighted averages
// 3. ROC curve over every distinct score, and its area
// 4. The threshold maximising tpr - fpr (Youden's J), shipped to the browser

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"gonum.org/v1/gonum/integrate"
)

// DefaultThreshold is the decision boundary used for the report.
const DefaultThreshold = 0.5

// ClassNames labels class 0 and class 1 in reports.
var ClassNames = [2]string{"No Onset", "Onset"}

var errBadInput = errors.New("labels and probabilities must be non-empty and of equal length")

// ConfusionMatrix counts outcomes of a binary decision.
type ConfusionMatrix struct {
	TN, FP, FN, TP int
}

// ConfusionAt predicts onset when prob > threshold.
func ConfusionAt(labels []int, probs []float64, threshold float64) (ConfusionMatrix, error) {
	if len(labels) == 0 || len(labels) != len(probs) {
		return ConfusionMatrix{}, errBadInput
	}
	var cm ConfusionMatrix
	for i, label := range labels {
		predicted := probs[i] > threshold
		switch {
		case label == 1 && predicted:
			cm.TP++
		case label == 1:
			cm.FN++
		case predicted:
			cm.FP++
		default:
			cm.TN++
		}
	}
	return cm, nil
}

// Rows returns [[TN FP] [FN TP]]: true class by row, predicted by column.
func (c ConfusionMatrix) Rows() [][]int {
	return [][]int{{c.TN, c.FP}, {c.FN, c.TP}}
}

// Total is the number of scored samples.
func (c ConfusionMatrix) Total() int {
	return c.TN + c.FP + c.FN + c.TP
}

// ClassMetrics are the scores for one class, or one average row.
type ClassMetrics struct {
	Name      string  `json:"name"`
	Precision float64 `json:"precision"`
	Recall    float64 `json:"recall"`
	F1        float64 `json:"f1"`
	Support   int     `json:"support"`
}

// ClassificationReport mirrors the familiar per-class text report.
type ClassificationReport struct {
	Classes     [2]ClassMetrics `json:"classes"`
	Accuracy    float64         `json:"accuracy"`
	MacroAvg    ClassMetrics    `json:"macroAvg"`
	WeightedAvg ClassMetrics    `json:"weightedAvg"`
	Total       int             `json:"total"`
}

// NewClassificationReport derives the report from a confusion matrix. Ratios
// with a zero denominator are reported as 0.
func NewClassificationReport(cm ConfusionMatrix) ClassificationReport {
	onset := classMetrics(ClassNames[1], cm.TP, cm.FP, cm.FN)
	none := classMetrics(ClassNames[0], cm.TN, cm.FN, cm.FP)

	report := ClassificationReport{
		Classes: [2]ClassMetrics{none, onset},
		Total:   cm.Total(),
	}
	if report.Total > 0 {
		report.Accuracy = float64(cm.TP+cm.TN) / float64(report.Total)
	}

	report.MacroAvg = ClassMetrics{
		Name:      "macro avg",
		Precision: (none.Precision + onset.Precision) / 2,
		Recall:    (none.Recall + onset.Recall) / 2,
		F1:        (none.F1 + onset.F1) / 2,
		Support:   report.Total,
	}

	report.WeightedAvg = ClassMetrics{Name: "weighted avg", Support: report.Total}
	if report.Total > 0 {
		for _, c := range report.Classes {
			w := float64(c.Support) / float64(report.Total)
			report.WeightedAvg.Precision += w * c.Precision
			report.WeightedAvg.Recall += w * c.Recall
			report.WeightedAvg.F1 += w * c.F1
		}
	}

	return report
}

func classMetrics(name string, tp, fp, fn int) ClassMetrics {
	m := ClassMetrics{Name: name, Support: tp + fn}
	m.Precision = ratio(tp, tp+fp)
	m.Recall = ratio(tp, tp+fn)
	if m.Precision+m.Recall > 0 {
		m.F1 = 2 * m.Precision * m.Recall / (m.Precision + m.Recall)
	}
	return m
}

func ratio(num, den int) float64 {
	if den == 0 {
		return 0
	}
	return float64(num) / float64(den)
}

func (r ClassificationReport) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%14s %10s %10s %10s %10s\n\n", "", "precision", "recall", "f1-score", "support")
	for _, c := range r.Classes {
		fmt.Fprintf(&b, "%14s %10.2f %10.2f %10.2f %10d\n", c.Name, c.Precision, c.Recall, c.F1, c.Support)
	}
	fmt.Fprintln(&b)
	fmt.Fprintf(&b, "%14s %10s %10s %10.2f %10d\n", "accuracy", "", "", r.Accuracy, r.Total)
	for _, c := range []ClassMetrics{r.MacroAvg, r.WeightedAvg} {
		fmt.Fprintf(&b, "%14s %10.2f %10.2f %10.2f %10d\n", c.Name, c.Precision, c.Recall, c.F1, c.Support)
	}
	return b.String()
}

// ROC is a receiver operating characteristic curve. Thresholds decrease along
// the curve; the first point (0, 0) uses max(score)+1.
type ROC struct {
	FPR        []float64 `json:"fpr"`
	TPR        []float64 `json:"tpr"`
	Thresholds []float64 `json:"thresholds"`
}

// ROCCurve evaluates every distinct score as a threshold (predict onset when
// prob >= threshold). Both classes must be present.
func ROCCurve(labels []int, probs []float64) (ROC, error) {
	if len(labels) == 0 || len(labels) != len(probs) {
		return ROC{}, errBadInput
	}

	var positives, negatives int
	for _, l := range labels {
		if l == 1 {
			positives++
		} else {
			negatives++
		}
	}
	if positives == 0 || negatives == 0 {
		return ROC{}, errors.New("ROC needs both onset and no-onset samples")
	}

	order := make([]int, len(probs))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool { return probs[order[a]] > probs[order[b]] })

	curve := ROC{
		FPR:        []float64{0},
		TPR:        []float64{0},
		Thresholds: []float64{probs[order[0]] + 1},
	}

	var tp, fp int
	for i, idx := range order {
		if labels[idx] == 1 {
			tp++
		} else {
			fp++
		}
		// Emit a point only once all samples sharing this score are counted.
		if i+1 < len(order) && probs[order[i+1]] == probs[idx] {
			continue
		}
		curve.FPR = append(curve.FPR, float64(fp)/float64(negatives))
		curve.TPR = append(curve.TPR, float64(tp)/float64(positives))
		curve.Thresholds = append(curve.Thresholds, probs[idx])
	}

	return curve, nil
}

// AUC integrates the curve with the trapezoidal rule.
func (r ROC) AUC() float64 {
	if len(r.FPR) < 2 {
		return 0
	}
	return integrate.Trapezoidal(r.FPR, r.TPR)
}

// OptimalThreshold returns the threshold maximising tpr - fpr. Ties keep the
// earliest (highest) threshold.
func (r ROC) OptimalThreshold() float64 {
	best := 0
	for i := range r.FPR {
		if r.TPR[i]-r.FPR[i] > r.TPR[best]-r.FPR[best] {
			best = i
		}
	}
	return r.Thresholds[best]
}

// Metadata is evaluation_metadata.json.
type Metadata struct {
	AUC              float64 `json:"auc"`
	OptimalThreshold float64 `json:"optimal_threshold"`
	ConfusionMatrix  [][]int `json:"confusion_matrix"`
}

// ModelConfig is the config.json the browser loads next to the model.
type ModelConfig struct {
	InputShape       []int   `json:"inputShape"`
	OutputShape      []int   `json:"outputShape"`
	OptimalThreshold float64 `json:"optimalThreshold"`
	Version          string  `json:"version"`
	Created          string  `json:"created"`
}

// NewModelConfig describes a single-sigmoid classifier over nFeatures inputs.
func NewModelConfig(nFeatures int, threshold float64, version string, created time.Time) ModelConfig {
	return ModelConfig{
		InputShape:       []int{nFeatures},
		OutputShape:      []int{1},
		OptimalThreshold: threshold,
		Version:          version,
		Created:          created.UTC().Format("2006-01-02"),
	}
}

// Result bundles everything Evaluate computes.
type Result struct {
	Confusion ConfusionMatrix
	Report    ClassificationReport
	Curve     ROC
	AUC       float64
	Threshold float64
}

// Evaluate scores probs against labels.
func Evaluate(labels []int, probs []float64) (Result, error) {
	cm, err := ConfusionAt(labels, probs, DefaultThreshold)
	if err != nil {
		return Result{}, err
	}
	curve, err := ROCCurve(labels, probs)
	if err != nil {
		return Result{}, err
	}
	return Result{
		Confusion: cm,
		Report:    NewClassificationReport(cm),
		Curve:     curve,
		AUC:       curve.AUC(),
		Threshold: curve.OptimalThreshold(),
	}, nil
}

// Metadata returns the evaluation_metadata.json record.
func (r Result) Metadata() Metadata {
	return Metadata{
		AUC:              r.AUC,
		OptimalThreshold: r.Threshold,
		ConfusionMatrix:  r.Confusion.Rows(),
	}
}
