package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"time"

	"onset-training/models"
	"onset-training/onset"
)

// Replays recording files against a running server the way the browser tuner
// posts them, so the upload path can be exercised without a browser.
func main() {
	dir := flag.String("dir", "data/raw", "Directory of recording JSON files to upload (ignored if -file is set)")
	file := flag.String("file", "", "Single recording file to upload (overrides -dir)")
	endpoint := flag.String("url", "http://localhost:5000/api/save-training-data", "Upload endpoint")
	instrument := flag.String("instrument", "guitar", "Instrument name sent with every upload")
	delay := flag.Duration("delay", 500*time.Millisecond, "Delay between uploads when using -dir")
	flag.Parse()

	files, err := resolveFiles(*file, *dir)
	if err != nil {
		log.Fatalf("failed to resolve files: %v", err)
	}
	if len(files) == 0 {
		log.Fatalf("no recording files found (file=%s dir=%s)", *file, *dir)
	}

	fmt.Printf("Uploading %d recording(s) to %s\n\n", len(files), *endpoint)
	failed := 0
	for idx, path := range files {
		if err := uploadRecording(path, *endpoint, *instrument); err != nil {
			log.Printf("upload failed for %s: %v\n", path, err)
			failed++
		}

		if idx < len(files)-1 && *delay > 0 {
			time.Sleep(*delay)
		}
	}
	if failed > 0 {
		os.Exit(1)
	}
}

func resolveFiles(single, dir string) ([]string, error) {
	if single != "" {
		return []string{single}, nil
	}
	return onset.ListRecordingFiles(dir)
}

func uploadRecording(path, endpoint, instrument string) error {
	fmt.Printf("→ %s\n", path)

	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read recording: %w", err)
	}
	format, err := onset.SniffFormat(raw)
	if err != nil {
		return err
	}
	rec, err := onset.DecodeRecording(path, raw, format)
	if err != nil {
		return err
	}

	payload, err := json.Marshal(models.TrainingUpload{Data: raw, Instrument: instrument})
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	req, err := http.NewRequest(http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("post recording: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= 300 {
		var rejected models.TrainingError
		if json.Unmarshal(body, &rejected) == nil && rejected.Message != "" {
			return fmt.Errorf("server returned %d: %s", resp.StatusCode, rejected.Message)
		}
		return fmt.Errorf("server returned %d: %s", resp.StatusCode, string(body))
	}

	var saved models.TrainingSaved
	if err := json.Unmarshal(body, &saved); err != nil {
		return fmt.Errorf("decode upload response: %w", err)
	}
	if !saved.Success {
		return errors.New("server did not confirm the upload")
	}

	fmt.Printf("   %s, %d frames → saved as %s\n", format, len(rec.Frames), saved.Filename)
	return nil
}
