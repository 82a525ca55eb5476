// Package web serves the correction HTTP API: a small embedded form page,
// a JSON correction endpoint, health probes, and the Prometheus metrics
// endpoint.
package web

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"io/fs"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hokomura/kousei/internal/corrector"
	"github.com/hokomura/kousei/internal/health"
	"github.com/hokomura/kousei/internal/observe"
	"github.com/hokomura/kousei/internal/segment"
)

//go:embed static
var staticFS embed.FS

// maxRequestBytes bounds the transcript size accepted over HTTP. Lecture
// transcripts run a few hundred KB; anything past this is not one.
const maxRequestBytes = 4 << 20

// OrchestratorFactory builds a fresh [corrector.Orchestrator] per request so
// that every correction run gets its own cost ledger.
type OrchestratorFactory func() *corrector.Orchestrator

// Server is the correction HTTP server.
type Server struct {
	addr    string
	factory OrchestratorFactory
	metrics *observe.Metrics
	health  *health.Handler
	router  *mux.Router
	srv     *http.Server
}

// Option is a functional option for [New].
type Option func(*Server)

// WithMetrics overrides the metrics instance. Defaults to
// [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(s *Server) {
		s.metrics = m
	}
}

// WithHealthCheckers adds readiness checkers exposed on /readyz.
func WithHealthCheckers(checkers ...health.Checker) Option {
	return func(s *Server) {
		s.health = health.New(checkers...)
	}
}

// New creates a server listening on addr. The factory is invoked once per
// correction request.
func New(addr string, factory OrchestratorFactory, opts ...Option) *Server {
	s := &Server{
		addr:    addr,
		factory: factory,
		health:  health.New(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.metrics == nil {
		s.metrics = observe.DefaultMetrics()
	}

	r := mux.NewRouter()
	r.HandleFunc("/correct", s.handleCorrect).Methods(http.MethodPost)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	s.health.Register(r)

	static, err := fs.Sub(staticFS, "static")
	if err != nil {
		panic(err) // embed layout is fixed at compile time
	}
	r.PathPrefix("/").Handler(http.FileServerFS(static)).Methods(http.MethodGet)

	r.Use(observe.Middleware(s.metrics))
	s.router = r
	return s
}

// Handler returns the server's root handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	s.srv = &http.Server{
		Addr:              s.addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("http server listening", "addr", s.addr)
		if err := s.srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return <-errCh
}

type correctRequest struct {
	Text string `json:"text"`
}

type segmentResult struct {
	ID          int      `json:"id"`
	StartTime   string   `json:"start_time"`
	EndTime     string   `json:"end_time"`
	Original    string   `json:"original"`
	Corrected   string   `json:"corrected"`
	Corrections []string `json:"corrections"`
	Quality     float64  `json:"quality"`
	ModelUsed   bool     `json:"model_used"`
}

type correctResponse struct {
	Corrected string           `json:"corrected"`
	Segments  []segmentResult  `json:"segments"`
	Report    corrector.Report `json:"report"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) handleCorrect(w http.ResponseWriter, r *http.Request) {
	var req correctRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid JSON body: " + err.Error()})
		return
	}
	if req.Text == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "text must not be empty"})
		return
	}

	o := s.factory()
	corrected, segments, err := o.CorrectTranscript(r.Context(), req.Text)
	if err != nil {
		var formatErr *segment.FormatError
		if errors.As(err, &formatErr) {
			writeJSON(w, http.StatusUnprocessableEntity, errorResponse{Error: err.Error()})
			return
		}
		slog.Error("correction failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "correction failed"})
		return
	}

	results := make([]segmentResult, len(segments))
	for i, seg := range segments {
		results[i] = segmentResult{
			ID:          seg.ID,
			StartTime:   seg.StartTime,
			EndTime:     seg.EndTime,
			Original:    seg.OriginalText,
			Corrected:   seg.CorrectedText,
			Corrections: seg.AppliedCorrections,
			Quality:     seg.Quality,
			ModelUsed:   seg.ModelUsed,
		}
	}

	writeJSON(w, http.StatusOK, correctResponse{
		Corrected: corrected,
		Segments:  results,
		Report:    o.Ledger().Report(),
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}
