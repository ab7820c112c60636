package onset

import (
	"fmt"
	"io"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// FeatureScaleAnalysis holds per-column statistics of a feature matrix.
type FeatureScaleAnalysis struct {
	FeatureNames []string
	MinValues    []float64
	MaxValues    []float64
	MeanValues   []float64
	StdValues    []float64
}

// AnalyzeFeatureScales examines every column of m. Column names are
// slot-qualified when the width matches windowSize; otherwise generic.
func AnalyzeFeatureScales(m mat.Matrix, windowSize int) FeatureScaleAnalysis {
	if m == nil {
		return FeatureScaleAnalysis{}
	}
	rows, cols := m.Dims()
	if rows == 0 || cols == 0 {
		return FeatureScaleAnalysis{}
	}

	names := SlotFeatureNames(windowSize)
	if len(names) != cols {
		names = make([]string, cols)
		for i := range names {
			names[i] = fmt.Sprintf("feature %d", i)
		}
	}

	analysis := FeatureScaleAnalysis{
		FeatureNames: names,
		MinValues:    make([]float64, cols),
		MaxValues:    make([]float64, cols),
		MeanValues:   make([]float64, cols),
		StdValues:    make([]float64, cols),
	}

	column := make([]float64, rows)
	for j := 0; j < cols; j++ {
		mat.Col(column, j, m)
		analysis.MinValues[j] = floats.Min(column)
		analysis.MaxValues[j] = floats.Max(column)
		mean, variance := stat.MeanVariance(column, nil)
		analysis.MeanValues[j] = mean
		if rows > 1 {
			analysis.StdValues[j] = math.Sqrt(variance * float64(rows-1) / float64(rows))
		}
	}

	return analysis
}

// PrintFeatureScaleReport writes a fixed-width table of the analysis.
func (f *FeatureScaleAnalysis) PrintFeatureScaleReport(w io.Writer) {
	fmt.Fprintln(w, "\n=== Feature Scale Analysis ===")
	fmt.Fprintf(w, "%-25s %12s %12s %12s %12s %12s\n", "Feature", "Min", "Max", "Mean", "Std", "Range")
	fmt.Fprintln(w, "--------------------------------------------------------------------------------------------")

	for i, name := range f.FeatureNames {
		rangeVal := f.MaxValues[i] - f.MinValues[i]
		fmt.Fprintf(w, "%-25s %12.6f %12.6f %12.6f %12.6f %12.6f\n",
			name, f.MinValues[i], f.MaxValues[i], f.MeanValues[i], f.StdValues[i], rangeVal)
	}
	fmt.Fprintln(w)
}

// CheckScaleIssues flags constant columns and columns whose spread is large
// relative to their mean.
func (f *FeatureScaleAnalysis) CheckScaleIssues() []string {
	var issues []string

	for i, name := range f.FeatureNames {
		if f.StdValues[i] < minStddev {
			issues = append(issues, fmt.Sprintf(
				"Feature '%s' is constant (%.6f); it carries no information for the classifier",
				name, f.MeanValues[i]))
			continue
		}
		if math.Abs(f.MeanValues[i]) > 1e-9 {
			coeffVar := f.StdValues[i] / math.Abs(f.MeanValues[i])
			if coeffVar > 2.0 {
				issues = append(issues, fmt.Sprintf(
					"Feature '%s' has high coefficient of variation (%.2f), indicating heavy outliers",
					name, coeffVar))
			}
		}
	}

	return issues
}
