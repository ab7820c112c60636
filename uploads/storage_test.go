package uploads

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"onset-training/onset"
)

const annotatedUpload = `[
  {"amplitude": 0.2, "spectralFlux": 0.1, "phaseDeviation": 0.05, "highFrequencyEnergy": 0.3, "hasPitch": true, "hasManualOnset": true},
  {"amplitude": 0.1, "spectralFlux": 0.02, "phaseDeviation": 0.01, "highFrequencyEnergy": 0.2, "hasPitch": false}
]`

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s := NewStore(filepath.Join(t.TempDir(), "raw"), slog.New(slog.NewTextHandler(io.Discard, nil)))
	s.now = func() time.Time { return time.UnixMilli(1700000000000) }
	return s
}

func TestSaveWritesNamedFile(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	name, err := store.Save(context.Background(), "guitar", []byte(annotatedUpload))
	if err != nil {
		t.Fatalf("Save returned error: %v", err)
	}
	if name != "onset-training-guitar-1700000000000.json" {
		t.Fatalf("filename = %q", name)
	}

	rec, err := onset.LoadRecordingFile(filepath.Join(store.Dir(), name), onset.FormatAnnotated)
	if err != nil {
		t.Fatalf("stored file does not decode: %v", err)
	}
	if len(rec.Frames) != 2 || !rec.Frames[0].HasManualOnset {
		t.Fatalf("unexpected stored frames %+v", rec.Frames)
	}

	// Same clock tick: the second upload must not overwrite the first.
	second, err := store.Save(context.Background(), "guitar", []byte(annotatedUpload))
	if err != nil {
		t.Fatalf("second Save returned error: %v", err)
	}
	if second == name {
		t.Fatalf("second upload reused filename %q", name)
	}

	names, err := store.List()
	if err != nil {
		t.Fatalf("List returned error: %v", err)
	}
	if len(names) != 2 {
		t.Fatalf("List = %v, want two files", names)
	}
}

func TestSaveAcceptsTimestampedFormat(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	data := `{"analysisData": [{"timestamp": 0.01, "amplitude": 0.2, "spectralFlux": 0.1, "phaseDeviation": 0.05, "highFrequencyEnergy": 0.3, "hasPitch": true}], "manualOnsets": [0.01]}`
	if _, err := store.Save(context.Background(), "piano", []byte(data)); err != nil {
		t.Fatalf("Save returned error: %v", err)
	}
}

func TestSaveRejectsBadUploads(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()

	if _, err := store.Save(ctx, "", []byte(annotatedUpload)); !errors.Is(err, ErrMissingInstrument) {
		t.Fatalf("empty instrument: got %v", err)
	}
	if _, err := store.Save(ctx, "../etc", []byte(annotatedUpload)); !errors.Is(err, ErrInvalidInstrument) {
		t.Fatalf("path instrument: got %v", err)
	}
	if _, err := store.Save(ctx, "guitar", nil); !errors.Is(err, ErrMissingData) {
		t.Fatalf("empty data: got %v", err)
	}
	if _, err := store.Save(ctx, "guitar", []byte(`"hello"`)); !errors.Is(err, onset.ErrInvalidInputFormat) {
		t.Fatalf("scalar data: got %v", err)
	}
	if _, err := store.Save(ctx, "guitar", []byte(`[{"amplitude": 0.1}]`)); !errors.Is(err, onset.ErrMissingFeatureField) {
		t.Fatalf("missing field: got %v", err)
	}

	if _, err := os.Stat(store.Dir()); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("rejected uploads should not create files")
	}
	names, err := store.List()
	if err != nil || len(names) != 0 {
		t.Fatalf("List on missing dir = %v, %v", names, err)
	}
}

func TestSaveLimitsInstrumentLength(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()

	done := make(chan error, 1)
	go func() {
		_, err := store.Save(ctx, strings.Repeat("a", 300), []byte(annotatedUpload))
		done <- err
	}()
	select {
	case err := <-done:
		if !errors.Is(err, ErrInvalidInstrument) {
			t.Fatalf("300 character instrument: got %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatalf("Save did not return for an overlong instrument")
	}

	if _, err := store.Save(ctx, strings.Repeat("b", 65), []byte(annotatedUpload)); !errors.Is(err, ErrInvalidInstrument) {
		t.Fatalf("65 character instrument: got %v", err)
	}
	name, err := store.Save(ctx, strings.Repeat("c", 64), []byte(annotatedUpload))
	if err != nil {
		t.Fatalf("64 character instrument: got %v", err)
	}

	// The store is still usable afterwards.
	names, err := store.List()
	if err != nil || len(names) != 1 || names[0] != name {
		t.Fatalf("List = %v, %v", names, err)
	}
}

func TestSaveReturnsStatErrors(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	if err := os.MkdirAll(store.Dir(), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	// A regular file where the upload directory should be makes every
	// candidate path fail with ENOTDIR instead of ErrNotExist.
	store.dir = filepath.Join(store.Dir(), "not-a-dir")
	if err := os.WriteFile(store.dir, []byte("x"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	store.mkdir = func(string) error { return nil }

	done := make(chan error, 1)
	go func() {
		_, err := store.Save(context.Background(), "guitar", []byte(annotatedUpload))
		done <- err
	}()
	select {
	case err := <-done:
		if err == nil {
			t.Fatalf("expected an error when the upload path is a file")
		}
	case <-time.After(3 * time.Second):
		t.Fatalf("Save did not return when stat failed")
	}
}

func TestSaveStripsByteOrderMark(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	name, err := store.Save(context.Background(), "violin", []byte("\xEF\xBB\xBF"+annotatedUpload))
	if err != nil {
		t.Fatalf("Save returned error: %v", err)
	}
	if _, err := onset.LoadRecordingFile(filepath.Join(store.Dir(), name), onset.FormatAnnotated); err != nil {
		t.Fatalf("stored file does not decode: %v", err)
	}
}
