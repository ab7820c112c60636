package db

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite driver registration

	"onset-training/models"
	"onset-training/utils"
)

// SQLiteClient is the preprocessing run ledger.
type SQLiteClient struct {
	db *sql.DB
}

func NewSQLiteClient(dataSourceName string) (*SQLiteClient, error) {
	// Extract the file path before query parameters
	dbPath := dataSourceName
	if idx := strings.Index(dataSourceName, "?"); idx != -1 {
		dbPath = dataSourceName[:idx]
	}

	dbDir := filepath.Dir(dbPath)
	if dbDir != "." && dbDir != "" {
		if err := utils.CreateFolder(dbDir); err != nil {
			return nil, fmt.Errorf("error creating database directory: %w", err)
		}
	}

	// Add busy timeout param to DSN (milliseconds)
	if !strings.Contains(dataSourceName, "_busy_timeout") {
		if strings.Contains(dataSourceName, "?") {
			dataSourceName += "&_busy_timeout=5000"
		} else {
			dataSourceName += "?_busy_timeout=5000"
		}
	}

	db, err := sql.Open("sqlite3", dataSourceName)
	if err != nil {
		return nil, fmt.Errorf("error connecting to SQLite: %w", err)
	}

	if err := createTables(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("error creating tables: %w", err)
	}

	return &SQLiteClient{db: db}, nil
}

// createTables creates the required tables if they don't exist
func createTables(db *sql.DB) error {
	createRunsTable := `
    CREATE TABLE IF NOT EXISTS runs (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
        raw_dir TEXT NOT NULL,
        output_dir TEXT NOT NULL,
        input_format TEXT NOT NULL,
        window_size INTEGER NOT NULL,
        seed INTEGER NOT NULL,
        target_positive_ratio REAL NOT NULL,
        samples_before INTEGER NOT NULL DEFAULT 0,
        onsets_before INTEGER NOT NULL DEFAULT 0,
        samples INTEGER NOT NULL DEFAULT 0,
        onsets INTEGER NOT NULL DEFAULT 0,
        positive_fraction REAL NOT NULL DEFAULT 0,
        warnings TEXT
    );
    CREATE INDEX IF NOT EXISTS idx_runs_created_at ON runs(created_at);
    `

	createRecordingsTable := `
    CREATE TABLE IF NOT EXISTS recordings (
        run_id INTEGER NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
        position INTEGER NOT NULL,
        name TEXT NOT NULL,
        frames INTEGER NOT NULL DEFAULT 0,
        active_frames INTEGER NOT NULL DEFAULT 0,
        samples INTEGER NOT NULL DEFAULT 0,
        onsets INTEGER NOT NULL DEFAULT 0,
        positive_fraction REAL NOT NULL DEFAULT 0,
        error TEXT,
        PRIMARY KEY (run_id, position)
    );
    `

	if _, err := db.Exec(createRunsTable); err != nil {
		return fmt.Errorf("error creating runs table: %w", err)
	}
	if _, err := db.Exec(createRecordingsTable); err != nil {
		return fmt.Errorf("error creating recordings table: %w", err)
	}
	return nil
}

func (db *SQLiteClient) Close() error {
	if db.db != nil {
		return db.db.Close()
	}
	return nil
}

// RecordRun stores run and its recordings in one transaction and returns the
// new run id.
func (db *SQLiteClient) RecordRun(run models.Run) (int64, error) {
	var warningsJSON *string
	if len(run.Warnings) > 0 {
		data, err := json.Marshal(run.Warnings)
		if err != nil {
			return 0, fmt.Errorf("error marshaling warnings: %w", err)
		}
		s := string(data)
		warningsJSON = &s
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now()
	}

	tx, err := db.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("error starting transaction: %w", err)
	}

	res, err := tx.Exec(`
		INSERT INTO runs (
			created_at, raw_dir, output_dir, input_format, window_size, seed,
			target_positive_ratio, samples_before, onsets_before, samples,
			onsets, positive_fraction, warnings
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.CreatedAt.UTC(),
		run.RawDir,
		run.OutputDir,
		run.InputFormat,
		run.WindowSize,
		int64(run.Seed),
		run.TargetPositiveRatio,
		run.SamplesBefore,
		run.OnsetsBefore,
		run.Samples,
		run.Onsets,
		run.PositiveFraction,
		warningsJSON,
	)
	if err != nil {
		tx.Rollback()
		return 0, fmt.Errorf("error storing run: %w", err)
	}
	runID, err := res.LastInsertId()
	if err != nil {
		tx.Rollback()
		return 0, fmt.Errorf("error reading run id: %w", err)
	}

	stmt, err := tx.Prepare(`
		INSERT INTO recordings (
			run_id, position, name, frames, active_frames, samples, onsets,
			positive_fraction, error
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		tx.Rollback()
		return 0, fmt.Errorf("error preparing statement: %w", err)
	}
	defer stmt.Close()

	for i, rec := range run.Recordings {
		var errText *string
		if rec.Error != "" {
			errText = &rec.Error
		}
		if _, err := stmt.Exec(runID, i, rec.Name, rec.Frames, rec.ActiveFrames,
			rec.Samples, rec.Onsets, rec.PositiveFraction, errText); err != nil {
			tx.Rollback()
			return 0, fmt.Errorf("error storing recording %s: %w", rec.Name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("error committing run: %w", err)
	}
	return runID, nil
}

// ListRuns returns the most recent runs first, without their recordings. A
// limit of zero or less returns every run.
func (db *SQLiteClient) ListRuns(limit int) ([]models.Run, error) {
	query := `
		SELECT id, created_at, raw_dir, output_dir, input_format, window_size,
		       seed, target_positive_ratio, samples_before, onsets_before,
		       samples, onsets, positive_fraction, warnings
		FROM runs
		ORDER BY id DESC`
	var args []any
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := db.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("error querying runs: %w", err)
	}
	defer rows.Close()

	var runs []models.Run
	for rows.Next() {
		var r models.Run
		var seed int64
		var warningsJSON *string

		err := rows.Scan(
			&r.ID,
			&r.CreatedAt,
			&r.RawDir,
			&r.OutputDir,
			&r.InputFormat,
			&r.WindowSize,
			&seed,
			&r.TargetPositiveRatio,
			&r.SamplesBefore,
			&r.OnsetsBefore,
			&r.Samples,
			&r.Onsets,
			&r.PositiveFraction,
			&warningsJSON,
		)
		if err != nil {
			return nil, fmt.Errorf("error scanning run: %w", err)
		}
		r.Seed = uint64(seed)

		if warningsJSON != nil {
			if err := json.Unmarshal([]byte(*warningsJSON), &r.Warnings); err != nil {
				return nil, fmt.Errorf("error unmarshaling warnings: %w", err)
			}
		}

		runs = append(runs, r)
	}

	return runs, rows.Err()
}

// LatestRun returns the most recent run with its recordings.
func (db *SQLiteClient) LatestRun() (models.Run, bool, error) {
	runs, err := db.ListRuns(1)
	if err != nil || len(runs) == 0 {
		return models.Run{}, false, err
	}
	run := runs[0]
	run.Recordings, err = db.RecordingsForRun(run.ID)
	if err != nil {
		return models.Run{}, false, err
	}
	return run, true, nil
}

// RecordingsForRun returns the per-file stats of a run in input order.
func (db *SQLiteClient) RecordingsForRun(runID int64) ([]models.RecordingStats, error) {
	rows, err := db.db.Query(`
		SELECT name, frames, active_frames, samples, onsets, positive_fraction, error
		FROM recordings
		WHERE run_id = ?
		ORDER BY position`, runID)
	if err != nil {
		return nil, fmt.Errorf("error querying recordings: %w", err)
	}
	defer rows.Close()

	var recs []models.RecordingStats
	for rows.Next() {
		var rec models.RecordingStats
		var errText *string
		if err := rows.Scan(&rec.Name, &rec.Frames, &rec.ActiveFrames, &rec.Samples,
			&rec.Onsets, &rec.PositiveFraction, &errText); err != nil {
			return nil, fmt.Errorf("error scanning recording: %w", err)
		}
		if errText != nil {
			rec.Error = *errText
		}
		recs = append(recs, rec)
	}

	return recs, rows.Err()
}
