package main

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"

	"onset-training/db"
	"onset-training/models"
	"onset-training/onset"
	"onset-training/uploads"
	"onset-training/utils"

	socketio "github.com/googollee/go-socket.io"
	"github.com/mdobak/go-xerrors"
)

type socketController struct {
	store     *uploads.Store
	outputDir string
	ledger    *db.SQLiteClient // nil when the ledger could not be opened
}

func newSocketController(store *uploads.Store, outputDir string, ledger *db.SQLiteClient) *socketController {
	return &socketController{store: store, outputDir: outputDir, ledger: ledger}
}

// saveUpload validates and stores one upload. On failure it returns the HTTP
// status and a message that is safe to show to the browser.
func (c *socketController) saveUpload(ctx context.Context, upload models.TrainingUpload) (string, int, string, error) {
	filename, err := c.store.Save(ctx, upload.Instrument, upload.Data)
	if err == nil {
		return filename, http.StatusOK, "", nil
	}

	switch {
	case errors.Is(err, uploads.ErrMissingInstrument),
		errors.Is(err, uploads.ErrInvalidInstrument),
		errors.Is(err, uploads.ErrMissingData):
		return "", http.StatusBadRequest, err.Error(), err
	case errors.Is(err, onset.ErrInvalidInputFormat), errors.Is(err, onset.ErrMissingFeatureField):
		return "", http.StatusBadRequest, "invalid training data: " + err.Error(), err
	default:
		return "", http.StatusInternalServerError, "failed to save training data", err
	}
}

func (c *socketController) datasetInfo(ctx context.Context) (models.DatasetInfo, error) {
	files, err := c.store.List()
	if err != nil {
		return models.DatasetInfo{}, err
	}
	info := models.DatasetInfo{Recordings: len(files), Files: files}

	meta, err := os.ReadFile(filepath.Join(c.outputDir, onset.MetadataFile))
	switch {
	case err == nil && json.Valid(meta):
		info.Metadata = meta
	case err != nil && !errors.Is(err, os.ErrNotExist):
		utils.GetLogger().WarnContext(ctx, "failed to read dataset metadata", slog.Any("error", err))
	}

	if c.ledger != nil {
		run, ok, err := c.ledger.LatestRun()
		if err != nil {
			utils.GetLogger().WarnContext(ctx, "failed to read run ledger", slog.Any("error", err))
		} else if ok {
			info.LastRun = &run
		}
	}

	return info, nil
}

func (c *socketController) handleSaveTrainingData(socket socketio.Conn, msg string) {
	logger := utils.GetLogger()
	ctx := context.Background()

	logger.InfoContext(ctx, "saveTrainingData called",
		slog.String("socketID", socket.ID()),
		slog.Int("dataLength", len(msg)),
	)

	var upload models.TrainingUpload
	if err := json.Unmarshal([]byte(msg), &upload); err != nil {
		err := xerrors.New(err)
		logger.ErrorContext(ctx, "failed to parse training upload", slog.Any("error", err))
		socket.Emit("trainingDataError", models.TrainingError{Message: "invalid training data payload"})
		return
	}

	filename, _, message, err := c.saveUpload(ctx, upload)
	if err != nil {
		err := xerrors.New(err)
		logger.ErrorContext(ctx, "failed to save training data",
			slog.String("socketID", socket.ID()),
			slog.String("instrument", upload.Instrument),
			slog.Any("error", err),
		)
		socket.Emit("trainingDataError", models.TrainingError{Message: message})
		return
	}

	log.Printf("[saveTrainingData] stored %s for socket %s\n", filename, socket.ID())
	socket.Emit("trainingDataSaved", models.TrainingSaved{Success: true, Filename: filename})
}

func (c *socketController) handleRequestDatasetInfo(socket socketio.Conn) {
	ctx := context.Background()
	info, err := c.datasetInfo(ctx)
	if err != nil {
		err := xerrors.New(err)
		utils.GetLogger().ErrorContext(ctx, "failed to collect dataset info", slog.Any("error", err))
		socket.Emit("trainingDataError", models.TrainingError{Message: "failed to read dataset"})
		return
	}
	socket.Emit("datasetInfo", info)
}
