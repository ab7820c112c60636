package onset

import (
	"math/rand/v2"

	"gonum.org/v1/gonum/mat"
)

// Dataset is an ordered collection of feature windows and their labels.
type Dataset struct {
	Features [][]float64
	Labels   []int
}

// Len returns the number of samples.
func (d Dataset) Len() int {
	return len(d.Labels)
}

// NumFeatures returns the row width, or 0 for an empty dataset.
func (d Dataset) NumFeatures() int {
	if len(d.Features) == 0 {
		return 0
	}
	return len(d.Features[0])
}

// Summary counts samples and onsets.
func (d Dataset) Summary() Summary {
	return Summarize(d.Labels)
}

// Append stacks another file's rows below the existing ones.
func (d *Dataset) Append(features [][]float64, labels []int) {
	d.Features = append(d.Features, features...)
	d.Labels = append(d.Labels, labels...)
}

// Subset copies the given rows, in the given order, into a new dataset.
func (d Dataset) Subset(indices []int) Dataset {
	out := Dataset{
		Features: make([][]float64, len(indices)),
		Labels:   make([]int, len(indices)),
	}
	for i, idx := range indices {
		row := make([]float64, len(d.Features[idx]))
		copy(row, d.Features[idx])
		out.Features[i] = row
		out.Labels[i] = d.Labels[idx]
	}
	return out
}

// ClassIndices splits row indices by label, preserving order.
func (d Dataset) ClassIndices() (negatives, positives []int) {
	for i, l := range d.Labels {
		if l == 1 {
			positives = append(positives, i)
		} else {
			negatives = append(negatives, i)
		}
	}
	return negatives, positives
}

// Matrix copies the features into a dense n×f matrix. It returns nil for an
// empty dataset since gonum rejects zero-sized matrices.
func (d Dataset) Matrix() *mat.Dense {
	n, f := d.Len(), d.NumFeatures()
	if n == 0 || f == 0 {
		return nil
	}
	data := make([]float64, 0, n*f)
	for _, row := range d.Features {
		data = append(data, row...)
	}
	return mat.NewDense(n, f, data)
}

// DatasetFromMatrix is the inverse of Matrix.
func DatasetFromMatrix(m mat.Matrix, labels []int) Dataset {
	r, c := m.Dims()
	ds := Dataset{Features: make([][]float64, r), Labels: append([]int(nil), labels...)}
	for i := 0; i < r; i++ {
		row := make([]float64, c)
		mat.Row(row, i, m)
		ds.Features[i] = row
	}
	return ds
}

// newRand returns the deterministic source used for sampling and shuffling.
func newRand(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}
