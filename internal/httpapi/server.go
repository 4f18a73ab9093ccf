package httpapi

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"subtitler/internal/gate"
	"subtitler/internal/logging"
	"subtitler/internal/pipeline"
)

// envelopeAllowance covers multipart boundaries and part headers on top of
// the media size limit.
const envelopeAllowance = 64 << 10

// Processor runs caption requests.
type Processor interface {
	Process(ctx context.Context, req pipeline.Request, deliver func(pipeline.Output) error) error
	Snapshot() []pipeline.RequestStatus
	GateStats() gate.Stats
}

// Parameters are the effective settings reported by /api/status.
type Parameters struct {
	MaxUploadMB    int    `json:"max_upload_mb"`
	MaxConcurrency int    `json:"max_concurrency"`
	WhisperModel   string `json:"whisper_model"`
	Device         string `json:"device"`
	ComputeType    string `json:"compute_type,omitempty"`
	CRF            int    `json:"ffmpeg_crf"`
	Preset         string `json:"ffmpeg_preset"`
	CaptionWidth   int    `json:"caption_width"`
	Overlap        string `json:"overlap_policy"`
}

// Options configures a Server.
type Options struct {
	Processor      Processor
	MaxUploadBytes int64
	Parameters     Parameters
	Logger         *slog.Logger
}

// Server exposes the caption pipeline over HTTP.
type Server struct {
	processor Processor
	maxBytes  int64
	params    Parameters
	logger    *slog.Logger
	started   time.Time
	router    chi.Router
}

// New builds the router.
func New(opts Options) *Server {
	s := &Server{
		processor: opts.Processor,
		maxBytes:  opts.MaxUploadBytes,
		params:    opts.Parameters,
		logger:    logging.NewComponentLogger(opts.Logger, "http"),
		started:   time.Now(),
		router:    chi.NewRouter(),
	}
	s.routes()
	return s
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) routes() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(s.accessLog)
	s.router.Use(middleware.Recoverer)
	s.router.Use(cors)

	s.router.Post("/subtitles/{lang}", s.handleSubtitles)
	s.router.Get("/healthz", s.handleHealth)
	s.router.Get("/api/status", s.handleStatus)
	s.router.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		s.writeDetail(w, http.StatusNotFound, "Not Found")
	})
	s.router.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		s.writeDetail(w, http.StatusMethodNotAllowed, "Method Not Allowed")
	})
}

func cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("Access-Control-Allow-Origin", "*")
		h.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		h.Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		h.Set("Access-Control-Expose-Headers", "Content-Disposition")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		started := time.Now()
		next.ServeHTTP(ww, r)
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		level := slog.LevelInfo
		if status >= http.StatusInternalServerError {
			level = slog.LevelWarn
		}
		s.logger.LogAttrs(r.Context(), level, "http request",
			logging.String(logging.FieldRequestID, middleware.GetReqID(r.Context())),
			logging.String("method", r.Method),
			logging.String("path", r.URL.Path),
			logging.Int("status", status),
			logging.Int("bytes", ww.BytesWritten()),
			logging.String("remote", r.RemoteAddr),
			logging.Int64("elapsed_ms", time.Since(started).Milliseconds()),
		)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// StatusResponse is the /api/status payload.
type StatusResponse struct {
	UptimeSeconds int64                    `json:"uptime_seconds"`
	Gate          gate.Stats               `json:"gate"`
	Requests      []pipeline.RequestStatus `json:"requests"`
	Parameters    Parameters               `json:"parameters"`
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, StatusResponse{
		UptimeSeconds: int64(time.Since(s.started).Seconds()),
		Gate:          s.processor.GateStats(),
		Requests:      s.processor.Snapshot(),
		Parameters:    s.params,
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("failed to encode response", logging.Error(err))
	}
}

func (s *Server) writeDetail(w http.ResponseWriter, status int, detail string) {
	s.writeJSON(w, status, map[string]string{"detail": detail})
}
