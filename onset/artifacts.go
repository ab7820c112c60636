package onset

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/sbinet/npyio"
	"gonum.org/v1/gonum/mat"

	"onset-training/utils"
)

// Artifact file names inside an output directory.
const (
	FeaturesFile     = "X.npy"
	LabelsFile       = "y.npy"
	MetadataFile     = "metadata.json"
	ScalerBinaryFile = "scaler.gob"
	ScalerJSONFile   = "scaler.json"
)

// Metadata is the metadata.json record consumed by the training collaborator.
type Metadata struct {
	NSamples             int     `json:"n_samples"`
	NFeatures            int     `json:"n_features"`
	NOnsets              int     `json:"n_onsets"`
	OnsetRatio           float64 `json:"onset_ratio"`
	WindowSize           int     `json:"window_size"`
	FeaturesPerFrame     int     `json:"features_per_frame"`
	TotalFramesPerWindow int     `json:"total_frames_per_window"`
}

// Validate checks the input width the exported model must declare.
func (m Metadata) Validate() error {
	if m.WindowSize < 1 {
		return fmt.Errorf("metadata: window_size must be positive, got %d", m.WindowSize)
	}
	if want := m.WindowSize * FeaturesPerFrame; m.NFeatures != want {
		return fmt.Errorf("metadata: n_features=%d does not match window_size×%d=%d", m.NFeatures, FeaturesPerFrame, want)
	}
	return nil
}

// WriteArtifacts writes the dataset, scaler and metadata of res into dir.
func WriteArtifacts(dir string, res *Result) error {
	if res == nil || res.Dataset.Len() == 0 || res.Scaler == nil {
		return ErrEmptyDataset
	}
	if err := utils.CreateFolder(dir); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	meta := res.Metadata()
	if err := meta.Validate(); err != nil {
		return err
	}

	m := res.Dataset.Matrix()
	if err := writeFileAtomic(filepath.Join(dir, FeaturesFile), func(w io.Writer) error {
		return npyio.Write(w, m)
	}); err != nil {
		return fmt.Errorf("write features: %w", err)
	}

	labels := make([]int64, len(res.Dataset.Labels))
	for i, l := range res.Dataset.Labels {
		labels[i] = int64(l)
	}
	if err := writeFileAtomic(filepath.Join(dir, LabelsFile), func(w io.Writer) error {
		return npyio.Write(w, labels)
	}); err != nil {
		return fmt.Errorf("write labels: %w", err)
	}

	if err := writeFileAtomic(filepath.Join(dir, ScalerBinaryFile), res.Scaler.WriteBinary); err != nil {
		return fmt.Errorf("write scaler: %w", err)
	}
	if err := WriteJSON(filepath.Join(dir, ScalerJSONFile), res.Scaler.JSON(res.Config.WindowSize)); err != nil {
		return fmt.Errorf("write scaler json: %w", err)
	}
	if err := WriteJSON(filepath.Join(dir, MetadataFile), meta); err != nil {
		return fmt.Errorf("write metadata: %w", err)
	}

	return nil
}

// WriteJSON writes v as indented JSON through a temp file.
func WriteJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", filepath.Base(path), err)
	}
	return writeFileAtomic(path, func(w io.Writer) error {
		_, err := w.Write(data)
		return err
	})
}

// WriteMatrix writes m as a 2-D float64 .npy file.
func WriteMatrix(path string, m mat.Matrix) error {
	return writeFileAtomic(path, func(w io.Writer) error {
		return npyio.Write(w, m)
	})
}

// WriteLabels writes labels as a 1-D int64 .npy file.
func WriteLabels(path string, labels []int) error {
	out := make([]int64, len(labels))
	for i, l := range labels {
		out[i] = int64(l)
	}
	return writeFileAtomic(path, func(w io.Writer) error {
		return npyio.Write(w, out)
	})
}

func writeFileAtomic(path string, write func(io.Writer) error) error {
	tempPath := path + ".tmp"
	f, err := os.Create(tempPath)
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}

	bw := bufio.NewWriter(f)
	if err := write(bw); err != nil {
		f.Close()
		os.Remove(tempPath)
		return err
	}
	if err := bw.Flush(); err != nil {
		f.Close()
		os.Remove(tempPath)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(tempPath)
		return err
	}

	if err := os.Rename(tempPath, path); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to rename temp file: %w", err)
	}
	return nil
}

// ReadMetadata loads metadata.json from dir.
func ReadMetadata(dir string) (Metadata, error) {
	var meta Metadata
	data, err := os.ReadFile(filepath.Join(dir, MetadataFile))
	if err != nil {
		return meta, err
	}
	if err := json.Unmarshal(data, &meta); err != nil {
		return meta, fmt.Errorf("parse %s: %w", MetadataFile, err)
	}
	return meta, nil
}

// ReadScalerFile loads the binary scaler from dir.
func ReadScalerFile(dir string) (*StandardScaler, error) {
	f, err := os.Open(filepath.Join(dir, ScalerBinaryFile))
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ReadScalerBinary(bufio.NewReader(f))
}

// LoadFeatureMatrix reads a 2-D .npy array of float32 or float64 values.
func LoadFeatureMatrix(path string) (*mat.Dense, error) {
	values, shape, err := readNumeric(path)
	if err != nil {
		return nil, err
	}
	if len(shape) != 2 {
		return nil, fmt.Errorf("%s: expected a 2-D array, got shape %v", filepath.Base(path), shape)
	}
	if shape[0] == 0 || shape[1] == 0 {
		return nil, fmt.Errorf("%s: %w", filepath.Base(path), ErrEmptyDataset)
	}
	return mat.NewDense(shape[0], shape[1], values), nil
}

// LoadVector reads a .npy array as float64 values. A trailing unit dimension,
// as in the (n, 1) output of a sigmoid model, is flattened.
func LoadVector(path string) ([]float64, error) {
	values, shape, err := readNumeric(path)
	if err != nil {
		return nil, err
	}
	switch {
	case len(shape) == 1:
	case len(shape) == 2 && shape[1] == 1:
	default:
		return nil, fmt.Errorf("%s: expected a vector, got shape %v", filepath.Base(path), shape)
	}
	return values, nil
}

// LoadLabels reads a label vector and checks every entry is 0 or 1.
func LoadLabels(path string) ([]int, error) {
	values, err := LoadVector(path)
	if err != nil {
		return nil, err
	}
	labels := make([]int, len(values))
	for i, v := range values {
		switch v {
		case 0:
		case 1:
			labels[i] = 1
		default:
			return nil, fmt.Errorf("%s: label %d is %g, want 0 or 1", filepath.Base(path), i, v)
		}
	}
	return labels, nil
}

func readNumeric(path string) ([]float64, []int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	defer f.Close()

	r, err := npyio.NewReader(bufio.NewReader(f))
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	shape := r.Header.Descr.Shape

	var values []float64
	switch dtype := r.Header.Descr.Type; dtype {
	case "<f8", "f8":
		err = r.Read(&values)
	case "<f4", "f4":
		var raw []float32
		if err = r.Read(&raw); err == nil {
			values = make([]float64, len(raw))
			for i, v := range raw {
				values[i] = float64(v)
			}
		}
	case "<i8", "i8":
		var raw []int64
		if err = r.Read(&raw); err == nil {
			values = make([]float64, len(raw))
			for i, v := range raw {
				values[i] = float64(v)
			}
		}
	case "<i4", "i4":
		var raw []int32
		if err = r.Read(&raw); err == nil {
			values = make([]float64, len(raw))
			for i, v := range raw {
				values[i] = float64(v)
			}
		}
	case "|b1", "b1":
		var raw []bool
		if err = r.Read(&raw); err == nil {
			values = make([]float64, len(raw))
			for i, v := range raw {
				if v {
					values[i] = 1
				}
			}
		}
	default:
		return nil, nil, fmt.Errorf("%s: unsupported dtype %q", filepath.Base(path), dtype)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	if r.Header.Descr.Fortran && len(shape) == 2 {
		values = fortranToRowMajor(values, shape[0], shape[1])
	}

	return values, shape, nil
}

func fortranToRowMajor(values []float64, rows, cols int) []float64 {
	out := make([]float64, len(values))
	for j := 0; j < cols; j++ {
		for i := 0; i < rows; i++ {
			out[i*cols+j] = values[j*rows+i]
		}
	}
	return out
}
