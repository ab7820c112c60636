package onset

// Feature Scaling
//
// Amplitude sits around 0.01-0.3 while spectral flux and phase deviation can
// reach several units, and hasPitch is binary. Without per-column
// standardisation the network's first layer is dominated by whichever feature
// happens to have the largest magnitude.
//
// StandardScaler fits one mean and one population standard deviation per
// column of the final (balanced) feature matrix. The same statistics are shipped
// to the browser as scaler.json so live frames are scaled identically.

import (
	"encoding/gob"
	"errors"
	"fmt"
	"io"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// minStddev is the floor below which a column is treated as constant.
const minStddev = 1e-10

// StandardScaler standardizes features using z-score normalization.
type StandardScaler struct {
	Mean []float64 `json:"mean"`
	Std  []float64 `json:"std"`
}

// FitStandardScaler computes column statistics over m. Constant columns get a
// standard deviation of 1 so they pass through centred but unscaled.
func FitStandardScaler(m mat.Matrix) (*StandardScaler, error) {
	if m == nil {
		return nil, errors.New("no samples provided")
	}
	rows, cols := m.Dims()
	if rows == 0 || cols == 0 {
		return nil, errors.New("no samples provided")
	}

	mean := make([]float64, cols)
	std := make([]float64, cols)
	column := make([]float64, rows)
	for j := 0; j < cols; j++ {
		mat.Col(column, j, m)
		mu, variance := stat.MeanVariance(column, nil)
		mean[j] = mu

		// stat.MeanVariance is the unbiased estimator; rescale to the population
		// variance the browser runtime was built against.
		sd := 0.0
		if rows > 1 {
			sd = math.Sqrt(variance * float64(rows-1) / float64(rows))
		}
		if sd < minStddev || math.IsNaN(sd) {
			sd = 1.0
		}
		std[j] = sd
	}

	return &StandardScaler{Mean: mean, Std: std}, nil
}

// NumFeatures is the width the scaler was fit on.
func (s *StandardScaler) NumFeatures() int {
	return len(s.Mean)
}

// Transform applies z-score standardization to a feature vector.
func (s *StandardScaler) Transform(features []float64) ([]float64, error) {
	if len(features) != len(s.Mean) {
		return nil, fmt.Errorf("feature width %d does not match scaler width %d", len(features), len(s.Mean))
	}
	scaled := make([]float64, len(features))
	for i, val := range features {
		scaled[i] = (val - s.Mean[i]) / s.Std[i]
	}
	return scaled, nil
}

// InverseTransform maps a standardized vector back to raw feature units.
func (s *StandardScaler) InverseTransform(scaled []float64) ([]float64, error) {
	if len(scaled) != len(s.Mean) {
		return nil, fmt.Errorf("feature width %d does not match scaler width %d", len(scaled), len(s.Mean))
	}
	raw := make([]float64, len(scaled))
	for i, val := range scaled {
		raw[i] = val*s.Std[i] + s.Mean[i]
	}
	return raw, nil
}

// TransformDataset returns a scaled copy of ds. Labels are shared.
func (s *StandardScaler) TransformDataset(ds Dataset) (Dataset, error) {
	return s.mapRows(ds, s.Transform)
}

// InverseTransformDataset undoes TransformDataset.
func (s *StandardScaler) InverseTransformDataset(ds Dataset) (Dataset, error) {
	return s.mapRows(ds, s.InverseTransform)
}

func (s *StandardScaler) mapRows(ds Dataset, fn func([]float64) ([]float64, error)) (Dataset, error) {
	out := Dataset{Features: make([][]float64, len(ds.Features)), Labels: ds.Labels}
	for i, row := range ds.Features {
		mapped, err := fn(row)
		if err != nil {
			return Dataset{}, fmt.Errorf("row %d: %w", i, err)
		}
		out.Features[i] = mapped
	}
	return out, nil
}

// ScalerJSON is the browser-loadable form of the scaler.
type ScalerJSON struct {
	Mean         []float64 `json:"mean"`
	Std          []float64 `json:"std"`
	NFeatures    int       `json:"n_features"`
	FeatureNames []string  `json:"feature_names"`
}

// JSON builds the browser form for a scaler fit on windowSize-frame windows.
func (s *StandardScaler) JSON(windowSize int) ScalerJSON {
	return ScalerJSON{
		Mean:         append([]float64(nil), s.Mean...),
		Std:          append([]float64(nil), s.Std...),
		NFeatures:    len(s.Mean),
		FeatureNames: WindowFeatureNames(windowSize),
	}
}

// WriteBinary persists the scaler with encoding/gob.
func (s *StandardScaler) WriteBinary(w io.Writer) error {
	return gob.NewEncoder(w).Encode(s)
}

// ReadScalerBinary loads a scaler written by WriteBinary.
func ReadScalerBinary(r io.Reader) (*StandardScaler, error) {
	var s StandardScaler
	if err := gob.NewDecoder(r).Decode(&s); err != nil {
		return nil, fmt.Errorf("decode scaler: %w", err)
	}
	if len(s.Mean) != len(s.Std) {
		return nil, fmt.Errorf("corrupt scaler: %d means, %d deviations", len(s.Mean), len(s.Std))
	}
	return &s, nil
}
