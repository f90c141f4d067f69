// Package api exposes the service's operational surface: health, last-run
// status and Prometheus metrics.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"uvabs/internal/batch"
	"uvabs/internal/store"
)

type RunStatus struct {
	StartedAt   time.Time `json:"started_at"`
	FinishedAt  time.Time `json:"finished_at"`
	Uploaded    int       `json:"uploaded"`
	Skipped     int       `json:"skipped"`
	Failed      int       `json:"failed"`
	BatchErrors []string  `json:"batch_errors,omitempty"`
}

type Server struct {
	store *store.Store
	addr  string

	mu      sync.Mutex
	lastRun *RunStatus
}

func NewServer(st *store.Store, addr string) *Server {
	return &Server{store: st, addr: addr}
}

// RecordRun captures a finished run for the status endpoint.
func (s *Server) RecordRun(r batch.RunReport) {
	uploaded, skipped, failed := r.Counts()
	status := &RunStatus{
		StartedAt:  r.StartedAt,
		FinishedAt: r.FinishedAt,
		Uploaded:   uploaded,
		Skipped:    skipped,
		Failed:     failed,
	}
	for _, b := range r.Batches {
		if b.BatchErr != nil {
			status.BatchErrors = append(status.BatchErrors, b.BatchErr.Error())
		}
	}

	s.mu.Lock()
	s.lastRun = status
	s.mu.Unlock()
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/status", s.handleStatus)
	mux.Handle("/metrics", promhttp.Handler())
	return mux
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Ping(r.Context()); err != nil {
		http.Error(w, "database unreachable", http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	last := s.lastRun
	s.mu.Unlock()

	resp := struct {
		LastRun *RunStatus `json:"last_run"`
	}{LastRun: last}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{Addr: s.addr, Handler: s.Handler()}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
