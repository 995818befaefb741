// Package api serves the session trigger, the record stream, health and
// metrics over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/endorses/lippyguard/internal/pkg/capture"
	"github.com/endorses/lippyguard/internal/pkg/logger"
	"github.com/endorses/lippyguard/internal/pkg/session"
	"github.com/endorses/lippyguard/internal/pkg/stream"
	"github.com/endorses/lippyguard/internal/pkg/types"
)

// Runner runs capture sessions.
type Runner interface {
	Run(ctx context.Context, overrides session.Overrides) (*session.Result, error)
	State() session.State
}

// Server wires the HTTP routes.
type Server struct {
	runner  Runner
	hub     *stream.Hub
	stream  http.Handler
	metrics http.Handler
	enum    capture.Enumerator
}

// Config holds the collaborators of a Server. Metrics and Enumerator are
// optional.
type Config struct {
	Runner       Runner
	Hub          *stream.Hub
	WriteTimeout time.Duration
	Metrics      http.Handler
	Enumerator   capture.Enumerator
}

func New(cfg Config) *Server {
	return &Server{
		runner:  cfg.Runner,
		hub:     cfg.Hub,
		stream:  stream.NewHandler(cfg.Hub, cfg.WriteTimeout),
		metrics: cfg.Metrics,
		enum:    cfg.Enumerator,
	}
}

// Handler returns the route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/sessions", s.handleRunSession)
	mux.Handle("GET /api/v1/stream", s.stream)
	mux.HandleFunc("GET /api/v1/interfaces", s.handleInterfaces)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	if s.metrics != nil {
		mux.Handle("GET /metrics", s.metrics)
	}
	return mux
}

// SessionRequest is the optional body of POST /api/v1/sessions. Durations
// use Go syntax, e.g. "15s".
type SessionRequest struct {
	Interface         string   `json:"interface,omitempty"`
	AllowedMACs       []string `json:"allowed_macs,omitempty"`
	Window            string   `json:"window,omitempty"`
	DetectionWindow   string   `json:"detection_window,omitempty"`
	SYNThreshold      *int     `json:"syn_threshold,omitempty"`
	UDPThreshold      *int     `json:"udp_threshold,omitempty"`
	PortScanThreshold *int     `json:"port_scan_threshold,omitempty"`
}

// Overrides converts the request into session overrides.
func (req SessionRequest) Overrides() (session.Overrides, error) {
	ov := session.Overrides{
		Interface:         req.Interface,
		AllowedMACs:       req.AllowedMACs,
		SYNThreshold:      req.SYNThreshold,
		UDPThreshold:      req.UDPThreshold,
		PortScanThreshold: req.PortScanThreshold,
	}
	var err error
	if ov.Window, err = parseDuration("window", req.Window); err != nil {
		return session.Overrides{}, err
	}
	if ov.DetectionWindow, err = parseDuration("detection_window", req.DetectionWindow); err != nil {
		return session.Overrides{}, err
	}
	return ov, nil
}

func parseDuration(field, value string) (time.Duration, error) {
	if value == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", field, err)
	}
	return d, nil
}

// sessionResponse is the body of a successful POST /api/v1/sessions. The
// full record set goes to stream subscribers.
type sessionResponse struct {
	session.Summary
	FlaggedRecords []*types.PacketRecord `json:"flagged_records"`
}

func (s *Server) handleRunSession(w http.ResponseWriter, r *http.Request) {
	var req SessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
		return
	}
	overrides, err := req.Overrides()
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	result, err := s.runner.Run(r.Context(), overrides)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, sessionResponse{
			Summary:        result.Summary(),
			FlaggedRecords: result.Flagged,
		})
	case errors.Is(err, session.ErrSessionBusy):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, capture.ErrNoInterface):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, capture.ErrDeviceOpen):
		writeError(w, http.StatusServiceUnavailable, err.Error())
	default:
		writeError(w, http.StatusBadRequest, err.Error())
	}
}

func (s *Server) handleInterfaces(w http.ResponseWriter, r *http.Request) {
	if s.enum == nil {
		writeError(w, http.StatusNotImplemented, "interface enumeration unavailable")
		return
	}
	ifaces, err := s.enum.Interfaces()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, ifaces)
}

type healthResponse struct {
	Status      string        `json:"status"`
	State       session.State `json:"state"`
	Subscribers int           `json:"subscribers"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{
		Status:      "ok",
		State:       s.runner.State(),
		Subscribers: s.hub.Count(),
	})
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Warn("Failed to write response", "error", err)
	}
}

// Serve runs the HTTP server until ctx is cancelled, then drains it within
// shutdownTimeout.
func Serve(ctx context.Context, addr string, handler http.Handler, shutdownTimeout time.Duration) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("HTTP server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http server shutdown: %w", err)
	}
	return <-errCh
}
