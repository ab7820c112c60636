package uploads

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sync"
	"time"

	"onset-training/onset"
	"onset-training/utils"
)

var (
	ErrMissingInstrument = errors.New("instrument is required")
	ErrInvalidInstrument = errors.New("instrument must be 1-64 letters, digits, '-' or '_'")
	ErrMissingData       = errors.New("no training data received")
)

var instrumentPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

// Store keeps uploaded recordings as files in the raw data directory the
// preprocessing tool reads from.
type Store struct {
	dir    string
	logger *slog.Logger
	now    func() time.Time
	mkdir  func(string) error

	mu sync.RWMutex
}

// NewStore returns a store writing into dir. A nil logger falls back to
// utils.GetLogger.
func NewStore(dir string, logger *slog.Logger) *Store {
	if logger == nil {
		logger = utils.GetLogger()
	}
	return &Store{dir: dir, logger: logger, now: time.Now, mkdir: utils.CreateFolder}
}

// Dir is the directory recordings are written to.
func (s *Store) Dir() string {
	return s.dir
}

// Save validates data as a recording in either input format and writes it as
// onset-training-<instrument>-<unix ms>.json. It returns the file name.
func (s *Store) Save(ctx context.Context, instrument string, data []byte) (string, error) {
	if instrument == "" {
		return "", ErrMissingInstrument
	}
	if !instrumentPattern.MatchString(instrument) {
		return "", ErrInvalidInstrument
	}
	data = onset.TrimBOM(data)
	if len(data) == 0 || string(data) == "null" {
		return "", ErrMissingData
	}

	format, err := onset.SniffFormat(data)
	if err != nil {
		return "", err
	}
	rec, err := onset.DecodeRecording("upload", data, format)
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.mkdir(s.dir); err != nil {
		return "", fmt.Errorf("error creating directory: %w", err)
	}

	// Two uploads in the same millisecond get consecutive stamps.
	stamp := s.now().UnixMilli()
	var filename string
	for {
		filename = fmt.Sprintf("onset-training-%s-%d.json", instrument, stamp)
		_, err := os.Stat(filepath.Join(s.dir, filename))
		if errors.Is(err, os.ErrNotExist) {
			break
		}
		if err != nil {
			return "", fmt.Errorf("error checking %s: %w", filename, err)
		}
		stamp++
	}

	if err := onset.WriteJSON(filepath.Join(s.dir, filename), json.RawMessage(data)); err != nil {
		return "", fmt.Errorf("error writing training data: %w", err)
	}

	s.logger.InfoContext(ctx, "saved training data",
		slog.String("file", filename),
		slog.String("instrument", instrument),
		slog.String("format", string(format)),
		slog.Int("frames", len(rec.Frames)),
		slog.Int("onsets", len(rec.Onsets)),
	)

	return filename, nil
}

// List returns the stored recording file names in sorted order.
func (s *Store) List() ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, err := os.Stat(s.dir); errors.Is(err, os.ErrNotExist) {
		return []string{}, nil
	}
	paths, err := onset.ListRecordingFiles(s.dir)
	if err != nil {
		return nil, err
	}
	names := make([]string, len(paths))
	for i, p := range paths {
		names[i] = filepath.Base(p)
	}
	return names, nil
}
