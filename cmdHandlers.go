package main

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"log"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"onset-training/config"
	"onset-training/db"
	"onset-training/models"
	"onset-training/uploads"
	"onset-training/utils"

	socketio "github.com/googollee/go-socket.io"
	"github.com/googollee/go-socket.io/engineio"
	"github.com/googollee/go-socket.io/engineio/transport"
	"github.com/googollee/go-socket.io/engineio/transport/polling"
	"github.com/googollee/go-socket.io/engineio/transport/websocket"
	"github.com/mdobak/go-xerrors"
)

// Uploads are a few minutes of 10ms frames; anything larger is rejected.
const maxUploadBytes = 64 << 20

type apiError struct {
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	if w.Header().Get("Access-Control-Allow-Origin") == "" {
		w.Header().Set("Access-Control-Allow-Origin", "*")
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("failed to encode JSON response: %v", err)
	}
}

func writeJSONError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, apiError{Message: message})
}

func setCORSHeaders(w http.ResponseWriter, methods string) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
	w.Header().Set("Access-Control-Allow-Methods", methods)
	w.Header().Set("Access-Control-Allow-Credentials", "true")
}

func newSaveTrainingDataHandler(controller *socketController) http.HandlerFunc {
	logger := utils.GetLogger()
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		setCORSHeaders(w, "POST, OPTIONS")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		if r.Method != http.MethodPost {
			writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}

		var upload models.TrainingUpload
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxUploadBytes)).Decode(&upload); err != nil {
			logger.ErrorContext(ctx, "failed to parse request body", slog.Any("error", err))
			writeJSONError(w, http.StatusBadRequest, "invalid request payload")
			return
		}

		filename, status, message, err := controller.saveUpload(ctx, upload)
		if err != nil {
			err := xerrors.New(err)
			logger.ErrorContext(ctx, "failed to save training data",
				slog.String("instrument", upload.Instrument),
				slog.Any("error", err),
			)
			writeJSONError(w, status, message)
			return
		}

		writeJSON(w, http.StatusOK, models.TrainingSaved{Success: true, Filename: filename})
	}
}

func newDatasetHandler(controller *socketController) http.HandlerFunc {
	logger := utils.GetLogger()
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		setCORSHeaders(w, "GET, OPTIONS")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		if r.Method != http.MethodGet {
			writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}

		info, err := controller.datasetInfo(ctx)
		if err != nil {
			logger.ErrorContext(ctx, "failed to collect dataset info", slog.Any("error", err))
			writeJSONError(w, http.StatusInternalServerError, "failed to read dataset")
			return
		}
		writeJSON(w, http.StatusOK, info)
	}
}

func newMux(controller *socketController, socketServer *socketio.Server) *http.ServeMux {
	mux := http.NewServeMux()
	if socketServer != nil {
		mux.Handle("/socket.io/", socketServer)
	}
	mux.HandleFunc("/api/save-training-data", newSaveTrainingDataHandler(controller))
	mux.HandleFunc("/api/dataset", newDatasetHandler(controller))
	return mux
}

func serve(protocol, port, configPath string) {
	protocol = strings.ToLower(protocol)
	var allowOriginFunc = func(r *http.Request) bool {
		return true
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	var ledger *db.SQLiteClient
	if cfg.LedgerPath != "" {
		ledger, err = db.NewSQLiteClient(cfg.LedgerPath)
		if err != nil {
			err := xerrors.New(err)
			utils.GetLogger().WarnContext(context.Background(), "run ledger unavailable", slog.Any("error", err))
			ledger = nil
		} else {
			defer ledger.Close()
		}
	}

	store := uploads.NewStore(cfg.RawDir, nil)
	controller := newSocketController(store, cfg.OutputDir, ledger)
	log.Printf("Storing training uploads in %s\n", store.Dir())

	server := socketio.NewServer(&engineio.Options{
		PingTimeout:  60 * time.Second,
		PingInterval: 25 * time.Second,
		Transports: []transport.Transport{
			&websocket.Transport{
				CheckOrigin: allowOriginFunc,
			},
			&polling.Transport{
				CheckOrigin: allowOriginFunc,
			},
		},
	})

	server.OnConnect("/", func(socket socketio.Conn) error {
		socket.SetContext("")
		log.Printf("CONNECTED: %s, remote addr: %s\n", socket.ID(), socket.RemoteAddr())
		return nil
	})

	server.OnEvent("/", "saveTrainingData", func(socket socketio.Conn, msg string) {
		log.Printf("saveTrainingData received from %s, data length: %d\n", socket.ID(), len(msg))
		go func() {
			defer func() {
				if r := recover(); r != nil {
					log.Printf("panic in handleSaveTrainingData for socket %s: %v\n", socket.ID(), r)
					socket.Emit("trainingDataError", models.TrainingError{Message: "internal server error while saving"})
				}
			}()
			controller.handleSaveTrainingData(socket, msg)
		}()
	})

	server.OnEvent("/", "requestDatasetInfo", func(socket socketio.Conn) {
		log.Printf("requestDatasetInfo received from %s\n", socket.ID())
		controller.handleRequestDatasetInfo(socket)
	})

	server.OnError("/", func(s socketio.Conn, e error) {
		log.Println("meet error:", e)
	})

	server.OnDisconnect("/", func(s socketio.Conn, reason string) {
		log.Printf("Socket disconnected - ID: %s, Reason: %s\n", s.ID(), reason)
	})

	go func() {
		if err := server.Serve(); err != nil {
			log.Fatalf("socketio listen error: %s\n", err)
		}
	}()
	defer server.Close()

	serveHTTP(protocol == "https", port, newMux(controller, server))
}

func serveHTTP(serveHTTPS bool, port string, handler http.Handler) {
	if serveHTTPS {
		httpsAddr := ":" + port
		httpsServer := &http.Server{
			Addr: httpsAddr,
			TLSConfig: &tls.Config{
				MinVersion: tls.VersionTLS12,
			},
			Handler: handler,
		}

		certKey := utils.GetEnv("CERT_KEY", "")
		certFile := utils.GetEnv("CERT_FILE", "")
		if certKey == "" || certFile == "" {
			log.Fatal("Missing cert: set CERT_KEY and CERT_FILE")
		}

		log.Printf("Starting HTTPS server on %s\n", httpsAddr)
		if err := httpsServer.ListenAndServeTLS(certFile, certKey); err != nil {
			log.Fatalf("HTTPS server ListenAndServeTLS: %v", err)
		}
		return
	}

	log.Printf("Starting HTTP server on port %v", port)
	if err := http.ListenAndServe(":"+port, handler); err != nil {
		log.Fatalf("HTTP server ListenAndServe: %v", err)
	}
}
