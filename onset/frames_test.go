package onset

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestDecodeAnnotatedRecording(t *testing.T) {
	t.Parallel()

	data := []byte(`[
		{"amplitude": 0.5, "spectralFlux": 0.2, "phaseDeviation": 0.1, "highFrequencyEnergy": 0.3, "hasPitch": true, "hasManualOnset": true},
		{"amplitude": 0.4, "spectralFlux": 0.0, "phaseDeviation": 0.0, "highFrequencyEnergy": 0.1, "hasPitch": false}
	]`)

	rec, err := DecodeRecording("take1.json", data, FormatAnnotated)
	if err != nil {
		t.Fatalf("DecodeRecording returned error: %v", err)
	}
	if len(rec.Frames) != 2 {
		t.Fatalf("decoded %d frames, want 2", len(rec.Frames))
	}
	first := rec.Frames[0]
	if first.Amplitude != 0.5 || first.SpectralFlux != 0.2 || !first.HasPitch || !first.HasManualOnset {
		t.Fatalf("unexpected first frame %+v", first)
	}
	if rec.Frames[1].HasManualOnset {
		t.Fatalf("absent hasManualOnset should decode as false")
	}
}

func TestDecodeTimestampedRecording(t *testing.T) {
	t.Parallel()

	data := []byte(`{
		"analysisData": [
			{"timestamp": 0.00, "amplitude": 0.1, "spectralFlux": 0.1, "phaseDeviation": 0.1, "highFrequencyEnergy": 0.1, "hasPitch": false, "hasManualOnset": true},
			{"timestamp": 0.01, "amplitude": 0.1, "spectralFlux": 0.1, "phaseDeviation": 0.1, "highFrequencyEnergy": 0.1, "hasPitch": true}
		],
		"manualOnsets": [0.5]
	}`)

	rec, err := DecodeRecording("take2.json", data, FormatTimestamped)
	if err != nil {
		t.Fatalf("DecodeRecording returned error: %v", err)
	}
	if len(rec.Onsets) != 1 || rec.Onsets[0] != 0.5 {
		t.Fatalf("onsets = %v", rec.Onsets)
	}
	if !rec.Frames[1].HasTimestamp || rec.Frames[1].Timestamp != 0.01 {
		t.Fatalf("timestamp not decoded: %+v", rec.Frames[1])
	}
	if rec.Frames[0].HasManualOnset {
		t.Fatalf("hasManualOnset must be ignored in the timestamped format")
	}
}

func TestDecodeMissingFeatureField(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name   string
		data   string
		format InputFormat
		field  string
	}{
		{"absent", `[{"amplitude": 0.1, "spectralFlux": 0.1, "phaseDeviation": 0.1, "hasPitch": true}]`, FormatAnnotated, "highFrequencyEnergy"},
		{"null", `[{"amplitude": null, "spectralFlux": 0.1, "phaseDeviation": 0.1, "highFrequencyEnergy": 0.1, "hasPitch": true}]`, FormatAnnotated, "amplitude"},
		{"timestamp", `{"analysisData": [{"amplitude": 0.1, "spectralFlux": 0.1, "phaseDeviation": 0.1, "highFrequencyEnergy": 0.1, "hasPitch": true}], "manualOnsets": []}`, FormatTimestamped, "timestamp"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			_, err := DecodeRecording("bad.json", []byte(tc.data), tc.format)
			if !errors.Is(err, ErrMissingFeatureField) {
				t.Fatalf("expected ErrMissingFeatureField, got %v", err)
			}
			var missing *MissingFeatureFieldError
			if !errors.As(err, &missing) {
				t.Fatalf("expected *MissingFeatureFieldError, got %T", err)
			}
			if missing.Field != tc.field || missing.Index != 0 {
				t.Fatalf("missing field = %q at %d, want %q at 0", missing.Field, missing.Index, tc.field)
			}
		})
	}
}

func TestDecodeInvalidInputFormat(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name   string
		data   string
		format InputFormat
	}{
		{"object as annotated", `{"amplitude": 1}`, FormatAnnotated},
		{"list as timestamped", `[]`, FormatTimestamped},
		{"scalar element", `[1, 2, 3]`, FormatAnnotated},
		{"string amplitude", `[{"amplitude": "loud", "spectralFlux": 0.1, "phaseDeviation": 0.1, "highFrequencyEnergy": 0.1, "hasPitch": true}]`, FormatAnnotated},
		{"broken json", `[{"amplitude": 0.1`, FormatAnnotated},
		{"auto is not a concrete format", `[]`, FormatAuto},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if _, err := DecodeRecording("bad.json", []byte(tc.data), tc.format); !errors.Is(err, ErrInvalidInputFormat) {
				t.Fatalf("expected ErrInvalidInputFormat, got %v", err)
			}
		})
	}
}

func TestSniffFormat(t *testing.T) {
	t.Parallel()

	if f, err := SniffFormat([]byte("  \n[]")); err != nil || f != FormatAnnotated {
		t.Fatalf("list sniffed as %q, %v", f, err)
	}
	if f, err := SniffFormat([]byte(`{"analysisData": []}`)); err != nil || f != FormatTimestamped {
		t.Fatalf("object sniffed as %q, %v", f, err)
	}
	bom := []byte("\xEF\xBB\xBF[]")
	if f, err := SniffFormat(bom); err != nil || f != FormatAnnotated {
		t.Fatalf("BOM-prefixed list sniffed as %q, %v", f, err)
	}
	if _, err := SniffFormat([]byte("42")); !errors.Is(err, ErrInvalidInputFormat) {
		t.Fatalf("scalar should be rejected, got %v", err)
	}
	if _, err := SniffFormat(nil); !errors.Is(err, ErrInvalidInputFormat) {
		t.Fatalf("empty document should be rejected, got %v", err)
	}
}

func TestParseInputFormat(t *testing.T) {
	t.Parallel()

	if f, err := ParseInputFormat(" Timestamped "); err != nil || f != FormatTimestamped {
		t.Fatalf("ParseInputFormat = %q, %v", f, err)
	}
	if _, err := ParseInputFormat("csv"); err == nil {
		t.Fatalf("expected error for unknown format")
	}
}

func TestListRecordingFilesSorted(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	for _, name := range []string{"b.json", "a.json", "notes.txt", ".hidden.json"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("[]"), 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
	if err := os.Mkdir(filepath.Join(dir, "sub.json"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	files, err := ListRecordingFiles(dir)
	if err != nil {
		t.Fatalf("ListRecordingFiles returned error: %v", err)
	}
	if len(files) != 2 || filepath.Base(files[0]) != "a.json" || filepath.Base(files[1]) != "b.json" {
		t.Fatalf("files = %v", files)
	}
}

func TestDecodeRecordingWithBOM(t *testing.T) {
	t.Parallel()

	data := []byte("\xEF\xBB\xBF" + `[{"amplitude": 0.5, "spectralFlux": 0.2, "phaseDeviation": 0.1, "highFrequencyEnergy": 0.3, "hasPitch": true}]`)
	rec, err := DecodeRecording("bom.json", data, FormatAnnotated)
	if err != nil {
		t.Fatalf("DecodeRecording returned error: %v", err)
	}
	if len(rec.Frames) != 1 || rec.Frames[0].Amplitude != 0.5 {
		t.Fatalf("frames = %+v", rec.Frames)
	}
}
