// Package api serves the simulator over HTTP: render frames, status, the
// event log, playback controls, layout editing and a websocket stream.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/AaronLay10/FNOLSimulator/internal/config"
	"github.com/AaronLay10/FNOLSimulator/internal/logging"
	"github.com/AaronLay10/FNOLSimulator/internal/metrics"
	"github.com/AaronLay10/FNOLSimulator/internal/orchestrator"
	"github.com/AaronLay10/FNOLSimulator/internal/simulator"
	"github.com/AaronLay10/FNOLSimulator/internal/version"
	"github.com/AaronLay10/FNOLSimulator/internal/workflow"
)

// Check reports whether a dependency is usable.
type Check func(ctx context.Context) error

type readinessCheck struct {
	check    Check
	optional bool
}

// Options configures a Server.
type Options struct {
	Logger        *slog.Logger
	Metrics       *metrics.Metrics
	Credentials   config.Credentials
	FrameInterval time.Duration
}

// Server is the HTTP surface of one simulator.
type Server struct {
	sim           *simulator.Simulator
	logger        *slog.Logger
	metrics       *metrics.Metrics
	auth          *authenticator
	frameInterval time.Duration
	clients       atomic.Int64

	mu     sync.RWMutex
	checks map[string]readinessCheck
}

// NewServer creates a server for sim.
func NewServer(sim *simulator.Simulator, opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = logging.NewNop()
	}
	if opts.FrameInterval <= 0 {
		opts.FrameInterval = time.Second
	}
	return &Server{
		sim:           sim,
		logger:        opts.Logger,
		metrics:       opts.Metrics,
		auth:          newAuthenticator(opts.Credentials),
		frameInterval: opts.FrameInterval,
		checks:        make(map[string]readinessCheck),
	}
}

// AddCheck registers a readiness check. Optional checks are reported but
// never make the server unready.
func (s *Server) AddCheck(name string, check Check, optional bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.checks[name] = readinessCheck{check: check, optional: optional}
}

// Clients returns the number of connected websocket clients.
func (s *Server) Clients() int {
	return int(s.clients.Load())
}

// Handler builds the router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.requestLogger)

	r.Get("/", s.auth.require(s.uiHandler, RoleAdmin, RoleOperator))
	r.Get("/health", s.healthHandler)
	r.Get("/ready", s.readyHandler)
	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics.Handler())
	}
	r.Get("/ws", s.auth.require(s.wsHandler, RoleAdmin, RoleOperator))

	r.Route("/api", func(r chi.Router) {
		r.Get("/render", s.auth.require(s.renderHandler, RoleAdmin, RoleOperator))
		r.Get("/status", s.auth.require(s.statusHandler, RoleAdmin, RoleOperator))
		r.Get("/log", s.auth.require(s.logHandler, RoleAdmin, RoleOperator))
		r.Get("/graph.mmd", s.auth.require(s.mermaidHandler, RoleAdmin, RoleOperator))

		r.Post("/control/speed", s.auth.require(s.speedHandler, RoleAdmin, RoleOperator))
		r.Post("/control/{command}", s.auth.require(s.controlHandler, RoleAdmin, RoleOperator))

		r.Post("/layout/auto", s.auth.require(s.autoLayoutHandler, RoleAdmin))
		r.Post("/layout/lock", s.auth.require(s.lockHandler, RoleAdmin))
		r.Post("/stages/{id}/position", s.auth.require(s.moveHandler, RoleAdmin))
	})
	return r
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Debug("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}

// Response is the body of mutating endpoints.
type Response struct {
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, Response{OK: false, Error: msg})
}

type HealthResponse struct {
	Status    string `json:"status"`
	Service   string `json:"service"`
	Version   string `json:"version"`
	Hostname  string `json:"hostname"`
	Timestamp string `json:"ts"`
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	host, _ := os.Hostname()
	writeJSON(w, http.StatusOK, HealthResponse{
		Status:    "ok",
		Service:   "fnolsim",
		Version:   version.Version,
		Hostname:  host,
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
	})
}

// CheckResult is one entry of the readiness report.
type CheckResult struct {
	Status   string `json:"status"`
	Optional bool   `json:"optional,omitempty"`
	Error    string `json:"error,omitempty"`
}

// ReadinessResponse is the body of /ready.
type ReadinessResponse struct {
	Ready  bool                   `json:"ready"`
	Checks map[string]CheckResult `json:"checks"`
}

func (s *Server) readyHandler(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	checks := make(map[string]readinessCheck, len(s.checks))
	for k, v := range s.checks {
		checks[k] = v
	}
	s.mu.RUnlock()

	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	resp := ReadinessResponse{Ready: true, Checks: map[string]CheckResult{
		"simulator": {Status: "ok"},
	}}
	for name, c := range checks {
		res := CheckResult{Status: "ok", Optional: c.optional}
		err := c.check(ctx)
		if err != nil {
			res.Status = "error"
			res.Error = err.Error()
			if !c.optional {
				resp.Ready = false
			}
		}
		if s.metrics != nil {
			s.metrics.SetDependency(name, err == nil)
		}
		resp.Checks[name] = res
	}

	status := http.StatusOK
	if !resp.Ready {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, resp)
}

func (s *Server) renderHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.sim.Render())
}

func (s *Server) statusHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.sim.Status())
}

func (s *Server) logHandler(w http.ResponseWriter, r *http.Request) {
	newestFirst := r.URL.Query().Get("order") == "desc"
	writeJSON(w, http.StatusOK, s.sim.Log(newestFirst))
}

func (s *Server) mermaidHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte(s.sim.Mermaid()))
}

func (s *Server) controlHandler(w http.ResponseWriter, r *http.Request) {
	command := chi.URLParam(r, "command")
	switch command {
	case simulator.CommandPlay, simulator.CommandPause, simulator.CommandStep, simulator.CommandReset:
	default:
		writeError(w, http.StatusNotFound, "unknown command")
		return
	}

	if err := s.sim.Control("http", command, 0); err != nil {
		writeError(w, controlStatus(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, Response{OK: true})
}

type SpeedRequest struct {
	Multiplier float64 `json:"multiplier"`
}

func (s *Server) speedHandler(w http.ResponseWriter, r *http.Request) {
	var req SpeedRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if err := s.sim.Control("http", simulator.CommandSpeed, req.Multiplier); err != nil {
		writeError(w, controlStatus(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, Response{OK: true})
}

// controlStatus maps playback errors to HTTP status codes.
func controlStatus(err error) int {
	switch {
	case errors.Is(err, orchestrator.ErrInvalidSpeed):
		return http.StatusBadRequest
	case errors.Is(err, orchestrator.ErrAlreadyPlaying),
		errors.Is(err, orchestrator.ErrNotRunning),
		errors.Is(err, orchestrator.ErrRunComplete):
		return http.StatusConflict
	case errors.Is(err, orchestrator.ErrNotLoaded):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) autoLayoutHandler(w http.ResponseWriter, r *http.Request) {
	s.sim.AutoLayout()
	writeJSON(w, http.StatusOK, Response{OK: true})
}

type LockRequest struct {
	Locked bool `json:"locked"`
}

func (s *Server) lockHandler(w http.ResponseWriter, r *http.Request) {
	var req LockRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	s.sim.LockLayout(req.Locked)
	writeJSON(w, http.StatusOK, Response{OK: true})
}

func (s *Server) moveHandler(w http.ResponseWriter, r *http.Request) {
	var p workflow.Position
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	err := s.sim.MoveStage(chi.URLParam(r, "id"), p)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, Response{OK: true})
	case errors.Is(err, simulator.ErrUnknownStage):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, simulator.ErrLayoutLocked):
		writeError(w, http.StatusConflict, err.Error())
	default:
		writeError(w, http.StatusBadRequest, err.Error())
	}
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string, tlsCfg *TLSConfig) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if tlsCfg.Enabled() {
			cfg, err := tlsCfg.Load()
			if err != nil {
				errCh <- err
				return
			}
			srv.TLSConfig = cfg
			s.logger.Info("api listening", "addr", addr, "tls", true)
			errCh <- srv.ListenAndServeTLS("", "")
			return
		}
		s.logger.Info("api listening", "addr", addr, "tls", false)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
