package main

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"onset-training/db"
	"onset-training/models"
	"onset-training/uploads"
)

const uploadFrames = `[{"amplitude": 0.2, "spectralFlux": 0.1, "phaseDeviation": 0.05, "highFrequencyEnergy": 0.3, "hasPitch": true, "hasManualOnset": true}]`

func newTestController(t *testing.T) *socketController {
	t.Helper()
	dir := t.TempDir()
	ledger, err := db.NewSQLiteClient(filepath.Join(dir, "runs.sqlite3"))
	if err != nil {
		t.Fatalf("NewSQLiteClient returned error: %v", err)
	}
	t.Cleanup(func() { ledger.Close() })

	store := uploads.NewStore(filepath.Join(dir, "raw"), slog.New(slog.NewTextHandler(io.Discard, nil)))
	return newSocketController(store, filepath.Join(dir, "processed"), ledger)
}

func postUpload(t *testing.T, mux http.Handler, upload models.TrainingUpload) *httptest.ResponseRecorder {
	t.Helper()
	body, err := json.Marshal(upload)
	if err != nil {
		t.Fatalf("marshal upload: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, "/api/save-training-data", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

func TestSaveTrainingDataEndpoint(t *testing.T) {
	t.Parallel()

	controller := newTestController(t)
	mux := newMux(controller, nil)

	rec := postUpload(t, mux, models.TrainingUpload{Instrument: "guitar", Data: json.RawMessage(uploadFrames)})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	var saved models.TrainingSaved
	if err := json.Unmarshal(rec.Body.Bytes(), &saved); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !saved.Success || saved.Filename == "" {
		t.Fatalf("unexpected response %+v", saved)
	}
	if _, err := os.Stat(filepath.Join(controller.store.Dir(), saved.Filename)); err != nil {
		t.Fatalf("upload not on disk: %v", err)
	}
}

func TestSaveTrainingDataRejectsInvalidUploads(t *testing.T) {
	t.Parallel()

	mux := newMux(newTestController(t), nil)

	rec := postUpload(t, mux, models.TrainingUpload{Data: json.RawMessage(uploadFrames)})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("missing instrument: status = %d", rec.Code)
	}

	rec = postUpload(t, mux, models.TrainingUpload{Instrument: "guitar", Data: json.RawMessage(`[{"amplitude": 1}]`)})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("missing field: status = %d", rec.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/save-training-data", nil)
	res := httptest.NewRecorder()
	mux.ServeHTTP(res, req)
	if res.Code != http.StatusMethodNotAllowed {
		t.Fatalf("GET: status = %d", res.Code)
	}
}

func TestDatasetEndpoint(t *testing.T) {
	t.Parallel()

	controller := newTestController(t)
	mux := newMux(controller, nil)

	postUpload(t, mux, models.TrainingUpload{Instrument: "piano", Data: json.RawMessage(uploadFrames)})
	if _, err := controller.ledger.RecordRun(models.Run{InputFormat: "annotated", WindowSize: 5, Samples: 12}); err != nil {
		t.Fatalf("RecordRun returned error: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/dataset", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	var info models.DatasetInfo
	if err := json.Unmarshal(rec.Body.Bytes(), &info); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if info.Recordings != 1 || len(info.Files) != 1 {
		t.Fatalf("unexpected dataset info %+v", info)
	}
	if info.Metadata != nil {
		t.Fatalf("no dataset has been processed, metadata should be absent")
	}
	if info.LastRun == nil || info.LastRun.Samples != 12 {
		t.Fatalf("last run missing from dataset info: %+v", info.LastRun)
	}
}
