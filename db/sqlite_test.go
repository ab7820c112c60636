package db

import (
	"path/filepath"
	"testing"

	"onset-training/models"
)

func newTestClient(t *testing.T) *SQLiteClient {
	t.Helper()
	client, err := NewSQLiteClient(filepath.Join(t.TempDir(), "ledger", "runs.sqlite3"))
	if err != nil {
		t.Fatalf("NewSQLiteClient returned error: %v", err)
	}
	t.Cleanup(func() { client.Close() })
	return client
}

func TestRecordRunRoundTrip(t *testing.T) {
	t.Parallel()

	client := newTestClient(t)
	run := models.Run{
		RawDir:              "data/raw",
		OutputDir:           "data/processed",
		InputFormat:         "annotated",
		WindowSize:          5,
		Seed:                42,
		TargetPositiveRatio: 0.2,
		SamplesBefore:       900,
		OnsetsBefore:        40,
		Samples:             200,
		Onsets:              40,
		PositiveFraction:    0.2,
		Warnings:            []string{"too few samples"},
		Recordings: []models.RecordingStats{
			{Name: "a.json", Frames: 500, ActiveFrames: 450, Samples: 446, Onsets: 20, PositiveFraction: 20.0 / 446},
			{Name: "b.json", Error: "insufficient active frames"},
		},
	}

	id, err := client.RecordRun(run)
	if err != nil {
		t.Fatalf("RecordRun returned error: %v", err)
	}

	runs, err := client.ListRuns(0)
	if err != nil {
		t.Fatalf("ListRuns returned error: %v", err)
	}
	if len(runs) != 1 || runs[0].ID != id {
		t.Fatalf("unexpected runs %+v", runs)
	}
	got := runs[0]
	if got.Seed != 42 || got.WindowSize != 5 || got.Samples != 200 {
		t.Fatalf("run fields not stored: %+v", got)
	}
	if len(got.Warnings) != 1 || got.Warnings[0] != "too few samples" {
		t.Fatalf("warnings = %v", got.Warnings)
	}

	recs, err := client.RecordingsForRun(id)
	if err != nil {
		t.Fatalf("RecordingsForRun returned error: %v", err)
	}
	if len(recs) != 2 || recs[0].Name != "a.json" || recs[1].Name != "b.json" {
		t.Fatalf("recordings out of order: %+v", recs)
	}
	if recs[0].Error != "" || recs[1].Error == "" {
		t.Fatalf("error column not round-tripped: %+v", recs)
	}
}

func TestListRunsNewestFirst(t *testing.T) {
	t.Parallel()

	client := newTestClient(t)
	for _, n := range []int{10, 20, 30} {
		if _, err := client.RecordRun(models.Run{InputFormat: "annotated", WindowSize: 5, Samples: n}); err != nil {
			t.Fatalf("RecordRun returned error: %v", err)
		}
	}

	runs, err := client.ListRuns(2)
	if err != nil {
		t.Fatalf("ListRuns returned error: %v", err)
	}
	if len(runs) != 2 || runs[0].Samples != 30 || runs[1].Samples != 20 {
		t.Fatalf("unexpected runs %+v", runs)
	}

	latest, ok, err := client.LatestRun()
	if err != nil || !ok {
		t.Fatalf("LatestRun = %v, %v", ok, err)
	}
	if latest.Samples != 30 {
		t.Fatalf("latest run has %d samples, want 30", latest.Samples)
	}
}

func TestLatestRunEmptyLedger(t *testing.T) {
	t.Parallel()

	client := newTestClient(t)
	if _, ok, err := client.LatestRun(); err != nil || ok {
		t.Fatalf("LatestRun on empty ledger = %v, %v", ok, err)
	}
}
