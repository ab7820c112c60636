package onset

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// InputFormat selects how a recording file is decoded and labelled.
type InputFormat string

const (
	// FormatAnnotated is a plain JSON list of frames whose hasManualOnset flag
	// was already expanded to the ±1 frame tolerance by the annotation tool.
	FormatAnnotated InputFormat = "annotated"
	// FormatTimestamped is an object {analysisData, manualOnsets}; labels come
	// from matching frame timestamps against the onset times.
	FormatTimestamped InputFormat = "timestamped"
	// FormatAuto is accepted by the command-line tools only. It resolves to one
	// of the two concrete formats per file through SniffFormat.
	FormatAuto InputFormat = "auto"
)

// ParseInputFormat validates a user supplied format name.
func ParseInputFormat(s string) (InputFormat, error) {
	switch f := InputFormat(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatAnnotated, FormatTimestamped, FormatAuto:
		return f, nil
	default:
		return "", fmt.Errorf("unknown input format %q (want annotated, timestamped or auto)", s)
	}
}

// Required per-frame keys, in the order they are checked.
var requiredFrameFields = []string{
	"amplitude",
	"spectralFlux",
	"phaseDeviation",
	"highFrequencyEnergy",
	"hasPitch",
}

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// TrimBOM drops a leading UTF-8 byte order mark.
func TrimBOM(data []byte) []byte {
	return bytes.TrimPrefix(data, utf8BOM)
}

// SniffFormat guesses the concrete format from the top-level JSON token.
func SniffFormat(data []byte) (InputFormat, error) {
	trimmed := bytes.TrimLeft(TrimBOM(data), " \t\r\n")
	if len(trimmed) == 0 {
		return "", invalidFormat("empty document")
	}
	switch trimmed[0] {
	case '[':
		return FormatAnnotated, nil
	case '{':
		return FormatTimestamped, nil
	default:
		return "", invalidFormat("top-level value must be a list or an object")
	}
}

// DecodeRecording parses data as the given concrete format.
func DecodeRecording(name string, data []byte, format InputFormat) (Recording, error) {
	rec := Recording{Name: name, Format: format}
	data = TrimBOM(data)

	switch format {
	case FormatAnnotated:
		var raw []json.RawMessage
		if err := json.Unmarshal(data, &raw); err != nil || raw == nil {
			return Recording{}, invalidFormat("%s: expected a list of frame objects", name)
		}
		frames, err := decodeFrames(raw, false)
		if err != nil {
			return Recording{}, fmt.Errorf("%s: %w", name, err)
		}
		rec.Frames = frames

	case FormatTimestamped:
		var doc struct {
			AnalysisData []json.RawMessage `json:"analysisData"`
			ManualOnsets []float64         `json:"manualOnsets"`
		}
		if err := json.Unmarshal(data, &doc); err != nil {
			return Recording{}, invalidFormat("%s: expected an object with analysisData and manualOnsets", name)
		}
		if doc.AnalysisData == nil {
			return Recording{}, invalidFormat("%s: analysisData must be a list of frame objects", name)
		}
		frames, err := decodeFrames(doc.AnalysisData, true)
		if err != nil {
			return Recording{}, fmt.Errorf("%s: %w", name, err)
		}
		rec.Frames = frames
		rec.Onsets = doc.ManualOnsets

	default:
		return Recording{}, invalidFormat("%s: unsupported format %q", name, format)
	}

	return rec, nil
}

func decodeFrames(raw []json.RawMessage, requireTimestamp bool) ([]Frame, error) {
	frames := make([]Frame, 0, len(raw))
	for i, item := range raw {
		frame, err := decodeFrame(item, i, requireTimestamp)
		if err != nil {
			return nil, err
		}
		frames = append(frames, frame)
	}
	return frames, nil
}

func decodeFrame(raw json.RawMessage, index int, requireTimestamp bool) (Frame, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil || fields == nil {
		return Frame{}, invalidFormat("frame %d is not an object", index)
	}

	for _, key := range requiredFrameFields {
		if !present(fields, key) {
			return Frame{}, &MissingFeatureFieldError{Field: key, Index: index}
		}
	}
	if requireTimestamp && !present(fields, "timestamp") {
		return Frame{}, &MissingFeatureFieldError{Field: "timestamp", Index: index}
	}

	var (
		f   Frame
		err error
	)
	if f.Amplitude, err = numberField(fields, "amplitude", index); err != nil {
		return Frame{}, err
	}
	if f.SpectralFlux, err = numberField(fields, "spectralFlux", index); err != nil {
		return Frame{}, err
	}
	if f.PhaseDeviation, err = numberField(fields, "phaseDeviation", index); err != nil {
		return Frame{}, err
	}
	if f.HighFrequencyEnergy, err = numberField(fields, "highFrequencyEnergy", index); err != nil {
		return Frame{}, err
	}
	if f.HasPitch, err = boolField(fields, "hasPitch", index); err != nil {
		return Frame{}, err
	}
	if present(fields, "timestamp") {
		if f.Timestamp, err = numberField(fields, "timestamp", index); err != nil {
			return Frame{}, err
		}
		f.HasTimestamp = true
	}
	// The timestamped format carries its labels separately.
	if !requireTimestamp && present(fields, "hasManualOnset") {
		if f.HasManualOnset, err = boolField(fields, "hasManualOnset", index); err != nil {
			return Frame{}, err
		}
	}

	return f, nil
}

func present(fields map[string]json.RawMessage, key string) bool {
	v, ok := fields[key]
	return ok && !bytes.Equal(bytes.TrimSpace(v), []byte("null"))
}

func numberField(fields map[string]json.RawMessage, key string, index int) (float64, error) {
	var v float64
	if err := json.Unmarshal(fields[key], &v); err != nil {
		return 0, invalidFormat("frame %d: %s must be a number", index, key)
	}
	return v, nil
}

func boolField(fields map[string]json.RawMessage, key string, index int) (bool, error) {
	var v bool
	if err := json.Unmarshal(fields[key], &v); err != nil {
		return false, invalidFormat("frame %d: %s must be a boolean", index, key)
	}
	return v, nil
}

// LoadRecordingFile reads and decodes one recording. The file is closed before
// returning. FormatAuto is resolved per file.
func LoadRecordingFile(path string, format InputFormat) (Recording, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Recording{}, fmt.Errorf("read %s: %w", path, err)
	}

	if format == FormatAuto {
		format, err = SniffFormat(data)
		if err != nil {
			return Recording{}, fmt.Errorf("%s: %w", filepath.Base(path), err)
		}
	}

	return DecodeRecording(filepath.Base(path), data, format)
}

// ListRecordingFiles returns the *.json files directly inside dir, sorted by
// name so runs over the same directory aggregate in the same order.
func ListRecordingFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var files []string
	for _, entry := range entries {
		if entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		if strings.EqualFold(filepath.Ext(entry.Name()), ".json") {
			files = append(files, filepath.Join(dir, entry.Name()))
		}
	}
	sort.Strings(files)

	return files, nil
}
