// Package admin serves a small JSON API over the running simulator and its
// time-series store.
package admin

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"fleetsim/internal/logging"
	"fleetsim/internal/sim"
	"fleetsim/internal/telemetry"
	"fleetsim/internal/tsdb"
)

const shutdownTimeout = 5 * time.Second

// Server exposes a simulator and its store over HTTP.
type Server struct {
	Sim   *sim.Simulator
	Store *tsdb.Store
	mux   *http.ServeMux
	log   *slog.Logger
}

// NewServer registers the API routes. Handlers log through log, or
// slog.Default() when it is nil.
func NewServer(simulator *sim.Simulator, store *tsdb.Store, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	s := &Server{Sim: simulator, Store: store, mux: http.NewServeMux(), log: log}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.mux.HandleFunc("GET /servers", s.handleServers)
	s.mux.HandleFunc("GET /servers/{id}", s.handleServer)
	s.mux.HandleFunc("GET /scenarios", s.handleScenarios)
	s.mux.HandleFunc("GET /scenarios/active", s.handleActive)
	s.mux.HandleFunc("POST /scenarios/{id}/trigger", s.handleTrigger)
	s.mux.HandleFunc("GET /summary", s.handleSummary)
	s.mux.HandleFunc("GET /metrics", s.handleMultiMetrics)
	s.mux.HandleFunc("GET /metrics/{id}", s.handleMetrics)
	s.mux.HandleFunc("GET /storage/stats", s.handleStats)
	s.mux.HandleFunc("GET /healthz", s.handleHealthz)
}

// ServeHTTP lets the server be mounted or tested directly.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// Start listens on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context, addr string) error {
	log := logging.FromContext(ctx)
	srv := &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 5 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		log.Info("admin API listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()
	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	log.Info("admin API stopped")
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func (s *Server) handleServers(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.Sim.GetServers())
}

func (s *Server) handleServer(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	srv, ok := s.Sim.GetServerByID(id)
	if !ok {
		writeError(w, http.StatusNotFound, "server not found: "+id)
		return
	}
	writeJSON(w, http.StatusOK, srv)
}

func (s *Server) handleScenarios(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.Sim.Scenarios())
}

func (s *Server) handleActive(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"ids":       s.Sim.GetActiveScenarios(),
		"scenarios": s.Sim.ActiveScenarioDetails(),
	})
}

func (s *Server) handleTrigger(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	err := s.Sim.TriggerScenario(logging.NewContext(r.Context(), s.log), id)
	switch {
	case err == nil:
		writeJSON(w, http.StatusAccepted, map[string]string{"triggered": id})
	case errors.Is(err, sim.ErrUnknownScenario):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, sim.ErrScenarioActive), errors.Is(err, sim.ErrNoEligibleServer):
		writeError(w, http.StatusConflict, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.Sim.GetSummary())
}

// splitList splits a comma separated query value, dropping blanks.
func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var metrics []telemetry.Metric
	for _, m := range splitList(q.Get("metrics")) {
		metrics = append(metrics, telemetry.Metric(m))
	}
	writeJSON(w, http.StatusOK, s.Store.QueryMetrics(r.PathValue("id"), q.Get("range"), metrics))
}

func (s *Server) handleMultiMetrics(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	metric := telemetry.Metric(q.Get("metric"))
	if metric == "" {
		metric = telemetry.MetricCPU
	}
	ids := splitList(q.Get("ids"))
	if len(ids) == 0 {
		for _, srv := range s.Sim.GetServers() {
			ids = append(ids, srv.ID)
		}
	}
	writeJSON(w, http.StatusOK, s.Store.QueryMultipleServers(ids, q.Get("range"), metric))
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.Store.GetStorageStats())
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "running": s.Sim.IsRunning()})
}
