package app

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"assetwatch/internal/export"
	"assetwatch/internal/infra"
	"assetwatch/internal/service"
)

const openMetricsContentType = "application/openmetrics-text; version=1.0.0; charset=utf-8"

// Server exposes the portfolio over HTTP: the OpenMetrics page, a JSON
// summary and a connectivity status endpoint.
type Server struct {
	manager *service.Manager
	httpSrv *http.Server
	timeout time.Duration
}

// NewServer wires the HTTP surface onto a running manager.
func NewServer(cfg *infra.Config, manager *service.Manager) *Server {
	s := &Server{
		manager: manager,
		timeout: time.Duration(cfg.Server.ShutdownTimeoutSec) * time.Second,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/metrics", s.handleMetrics)
	mux.HandleFunc("/summary", s.handleSummary)
	mux.HandleFunc("/status", s.handleStatus)

	s.httpSrv = &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      mux,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeoutSec) * time.Second,
	}
	return s
}

// Handler exposes the mux, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.httpSrv.Handler
}

// Start blocks serving HTTP until Shutdown or a listener error.
func (s *Server) Start() error {
	slog.Info("✅ HTTP server listening", slog.String("addr", s.httpSrv.Addr))
	if err := s.httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests within the configured timeout.
func (s *Server) Shutdown(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return s.httpSrv.Shutdown(ctx)
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	body := export.RenderOpenMetrics(s.manager.AssetMetrics())
	w.Header().Set("Content-Type", openMetricsContentType)
	w.Write([]byte(body))
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	s.writeJSON(w, export.BuildSummary(s.manager.AssetMetrics()))
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	s.writeJSON(w, s.manager.Status())
}

func (s *Server) writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("response encoding failed", slog.Any("error", err))
	}
}
