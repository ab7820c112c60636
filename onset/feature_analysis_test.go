package onset

import (
	"bytes"
	"math"
	"strings"
	"testing"

	"gonum.org/v1/gonum/mat"
)

// scaleMatrix has a constant column 0, an outlier-heavy column 1 and
// well-behaved columns elsewhere.
func scaleMatrix(rows, cols int) *mat.Dense {
	m := mat.NewDense(rows, cols, nil)
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			m.Set(i, j, float64(10+i+j))
		}
		m.Set(i, 0, 0.5)
		m.Set(i, 1, 0)
	}
	m.Set(rows-1, 1, 100)
	return m
}

func TestAnalyzeFeatureScalesNamesSlots(t *testing.T) {
	t.Parallel()

	analysis := AnalyzeFeatureScales(scaleMatrix(10, 25), 5)
	names := analysis.FeatureNames
	if len(names) != 25 {
		t.Fatalf("got %d names, want 25", len(names))
	}
	if names[0] != "t-4 amplitude" || names[4] != "t-4 hasPitch" || names[20] != "t amplitude" || names[24] != "t hasPitch" {
		t.Fatalf("names = %v", names)
	}

	if analysis.MinValues[1] != 0 || analysis.MaxValues[1] != 100 || analysis.MeanValues[1] != 10 {
		t.Fatalf("column 1 stats = min %v max %v mean %v", analysis.MinValues[1], analysis.MaxValues[1], analysis.MeanValues[1])
	}
	// Population std of nine zeros and one 100 is 30.
	if math.Abs(analysis.StdValues[1]-30) > 1e-9 {
		t.Fatalf("column 1 std = %v, want 30", analysis.StdValues[1])
	}
}

func TestAnalyzeFeatureScalesGenericNames(t *testing.T) {
	t.Parallel()

	analysis := AnalyzeFeatureScales(scaleMatrix(10, 25), 3)
	if analysis.FeatureNames[0] != "feature 0" || analysis.FeatureNames[24] != "feature 24" {
		t.Fatalf("names = %v", analysis.FeatureNames)
	}
}

func TestCheckScaleIssues(t *testing.T) {
	t.Parallel()

	analysis := AnalyzeFeatureScales(scaleMatrix(10, 25), 5)
	issues := analysis.CheckScaleIssues()
	if len(issues) != 2 {
		t.Fatalf("issues = %v, want the constant and the outlier column", issues)
	}
	if !strings.Contains(issues[0], "'t-4 amplitude' is constant") {
		t.Fatalf("first issue = %q", issues[0])
	}
	if !strings.Contains(issues[1], "'t-4 spectralFlux' has high coefficient of variation (3.00)") {
		t.Fatalf("second issue = %q", issues[1])
	}

	var buf bytes.Buffer
	analysis.PrintFeatureScaleReport(&buf)
	if !strings.Contains(buf.String(), "t hasPitch") {
		t.Fatalf("report is missing the last column:\n%s", buf.String())
	}
}

func TestAnalyzeFeatureScalesEmpty(t *testing.T) {
	t.Parallel()

	if a := AnalyzeFeatureScales(nil, 5); a.FeatureNames != nil || a.StdValues != nil {
		t.Fatalf("nil matrix analysis = %+v", a)
	}
	var empty mat.Dense
	if a := AnalyzeFeatureScales(&empty, 5); a.FeatureNames != nil {
		t.Fatalf("empty matrix analysis = %+v", a)
	}
	if issues := (&FeatureScaleAnalysis{}).CheckScaleIssues(); len(issues) != 0 {
		t.Fatalf("issues = %v", issues)
	}
}
