package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
)

// Pinger reports whether a backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Server exposes /healthz and /metrics.
type Server struct {
	http *http.Server
}

func New(addr string, db Pinger, metrics http.Handler) *Server {
	r := mux.NewRouter()
	r.Handle("/metrics", metrics).Methods(http.MethodGet)
	r.HandleFunc("/healthz", healthHandler(db)).Methods(http.MethodGet)

	var h http.Handler = r
	h = handlers.CustomLoggingHandler(io.Discard, h, logRequest)
	h = handlers.CompressHandler(h)
	h = handlers.RecoveryHandler(handlers.RecoveryLogger(recoveryLogger{}))(h)

	return &Server{
		http: &http.Server{
			Addr:         addr,
			Handler:      h,
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  120 * time.Second,
		},
	}
}

func (s *Server) Handler() http.Handler {
	return s.http.Handler
}

// Start serves in the background until Shutdown.
func (s *Server) Start() {
	go func() {
		slog.Info("HTTP server listening", slog.String("type", "sys"), slog.String("addr", s.http.Addr))
		if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("HTTP server failed", slog.String("type", "sys"), slog.Any("error", err))
		}
	}()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

type healthResponse struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

func healthHandler(db Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		resp, code := healthResponse{Status: "healthy"}, http.StatusOK
		if db != nil {
			if err := db.Ping(ctx); err != nil {
				resp, code = healthResponse{Status: "unhealthy", Error: "database connection failed"}, http.StatusServiceUnavailable
			}
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		_ = json.NewEncoder(w).Encode(resp)
	}
}

func logRequest(_ io.Writer, p handlers.LogFormatterParams) {
	slog.Debug("HTTP request",
		slog.String("type", "sys"),
		slog.String("method", p.Request.Method),
		slog.String("path", p.URL.Path),
		slog.Int("code", p.StatusCode),
		slog.Int("size", p.Size),
		slog.Duration("took", time.Since(p.TimeStamp)))
}

type recoveryLogger struct{}

func (recoveryLogger) Println(v ...interface{}) {
	slog.Error("HTTP handler panic", slog.String("type", "error"), slog.Any("error", v))
}
