package api

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"emgstream/internal/config"
	"emgstream/internal/ingest"
	"emgstream/internal/model"
	"emgstream/internal/session"
	"emgstream/internal/telemetry"
)

// PipelineControl is the slice of the pipeline the API needs: recording
// lifecycle and state reset, all funneled through the worker loop.
type PipelineControl interface {
	StartRecording(ctx context.Context) error
	StopRecording(ctx context.Context) (model.Export, error)
	Reset(ctx context.Context) error
	Stages() []string
}

type Server struct {
	cfg       *config.Manager
	telemetry *telemetry.Store
	pipeline  PipelineControl
	frames    chan<- []byte
	logger    *slog.Logger
	version   string
	started   time.Time
}

type statusResponse struct {
	Status     string               `json:"status"`
	Time       string               `json:"time"`
	Version    string               `json:"version"`
	UptimeSec  float64              `json:"uptime_sec"`
	ConfigPath string               `json:"config_path"`
	Decoder    config.DecoderConfig `json:"decoder"`
	Stages     []string             `json:"stages"`
	Ingest     ingestStatus         `json:"ingest"`
	Recording  bool                 `json:"recording"`
}

type ingestStatus struct {
	TCPStream bool `json:"tcp_stream"`
	Kafka     bool `json:"kafka"`
	REST      bool `json:"rest"`
}

func Start(ctx context.Context, cfg *config.Manager, telemetryStore *telemetry.Store, pipeline PipelineControl, frames chan<- []byte, logger *slog.Logger, version string) *http.Server {
	if cfg == nil {
		return nil
	}
	current := cfg.Get().API
	if !current.Enabled {
		if logger != nil {
			logger.Info("api disabled")
		}
		return nil
	}
	if logger != nil {
		logger.Info("api enabled", "addr", current.Addr)
	}
	server := &Server{
		cfg:       cfg,
		telemetry: telemetryStore,
		pipeline:  pipeline,
		frames:    frames,
		logger:    logger,
		version:   version,
		started:   time.Now().UTC(),
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/status", server.handleStatus)
	mux.HandleFunc("/snapshot", server.handleSnapshot)
	mux.HandleFunc("/ingest", server.handleIngest(ctx))
	mux.HandleFunc("/recording/start", server.handleRecordingStart)
	mux.HandleFunc("/recording/stop", server.handleRecordingStop)
	mux.HandleFunc("/admin/reset", server.handleReset)

	httpServer := &http.Server{Addr: current.Addr, Handler: mux}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = httpServer.Shutdown(ctxShutdown)
	}()
	go func() {
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			if logger != nil {
				logger.Error("api server error", "err", err)
			}
		}
	}()
	return httpServer
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	cfg := s.cfg.Get()
	recording := false
	if snap, ok := s.telemetry.Get(); ok {
		recording = snap.Recording
	}
	var stages []string
	if s.pipeline != nil {
		stages = s.pipeline.Stages()
	}
	resp := statusResponse{
		Status:     "ok",
		Time:       time.Now().UTC().Format(time.RFC3339Nano),
		Version:    s.version,
		UptimeSec:  time.Since(s.started).Seconds(),
		ConfigPath: s.cfg.Path(),
		Decoder:    cfg.Decoder,
		Stages:     stages,
		Ingest: ingestStatus{
			TCPStream: cfg.Ingest.TCPStream.Enabled,
			Kafka:     cfg.Ingest.Kafka.Enabled,
			REST:      cfg.API.Enabled,
		},
		Recording: recording,
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	snap, ok := s.telemetry.Get()
	if !ok {
		writeJSON(w, http.StatusOK, map[string]any{"snapshot": nil})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"snapshot": snap})
}

// handleIngest is the REST inbound path for frames: either a raw binary
// body (application/octet-stream) or JSON {"frame": "<base64>"}.
func (s *Server) handleIngest(ctx context.Context) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, 1<<20))
		if err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		frame := body
		if strings.Contains(r.Header.Get("Content-Type"), "application/json") {
			var req struct {
				Frame string `json:"frame"`
			}
			if err := json.Unmarshal(body, &req); err != nil {
				w.WriteHeader(http.StatusBadRequest)
				return
			}
			frame, err = base64.StdEncoding.DecodeString(req.Frame)
			if err != nil {
				w.WriteHeader(http.StatusBadRequest)
				return
			}
		}
		if len(frame) == 0 {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		if !ingest.SendFrame(ctx, s.frames, frame, s.logger) {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		writeJSON(w, http.StatusAccepted, map[string]any{"status": "accepted", "frame_bytes": len(frame)})
	}
}

func (s *Server) handleRecordingStart(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()
	if err := s.pipeline.StartRecording(ctx); err != nil {
		if errors.Is(err, session.ErrAlreadyRecording) {
			writeJSON(w, http.StatusConflict, map[string]any{"error": err.Error()})
			return
		}
		writeJSON(w, http.StatusInternalServerError, map[string]any{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "recording"})
}

func (s *Server) handleRecordingStop(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()
	export, err := s.pipeline.StopRecording(ctx)
	if err != nil {
		if errors.Is(err, session.ErrNotRecording) {
			writeJSON(w, http.StatusConflict, map[string]any{"error": err.Error()})
			return
		}
		writeJSON(w, http.StatusInternalServerError, map[string]any{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"export": export})
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()
	if err := s.pipeline.Reset(ctx); err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]any{"error": err.Error()})
		return
	}
	if s.telemetry != nil {
		s.telemetry.Clear()
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
