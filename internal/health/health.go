// Package health serves the correction server's liveness and readiness
// probes.
//
// /healthz answers 200 whenever the process is up. /readyz evaluates every
// registered [Checker] (the history database, the remote correction backend,
// and whatever else the server wires in) and answers 503 until all of them
// pass. Both endpoints reply with a JSON body of the form
// {"status": "ok"|"fail", "checks": {name: verdict}}.
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"
)

// probeTimeout bounds a single readiness check so one stuck dependency,
// typically an unreachable LLM endpoint, cannot hang the probe.
const probeTimeout = 5 * time.Second

// Checker is one named readiness dependency. Check returns nil when the
// dependency can serve corrections and an error describing the fault
// otherwise. It must respect context cancellation.
type Checker struct {
	// Name keys the verdict in the JSON response, e.g. "history" or "llm".
	Name string

	Check func(ctx context.Context) error
}

// probeResponse is the JSON body for both endpoints.
type probeResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// Handler serves the probe endpoints. The checker set is fixed at
// construction; the handler itself holds no mutable state and is safe for
// concurrent use.
type Handler struct {
	checkers []Checker
}

// New builds a [Handler] over the given checkers. /readyz evaluates them in
// the order given.
func New(checkers ...Checker) *Handler {
	h := &Handler{checkers: make([]Checker, len(checkers))}
	copy(h.checkers, checkers)
	return h
}

// Healthz reports liveness. Serving the request is the proof, so it always
// answers 200.
func (h *Handler) Healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, probeResponse{Status: "ok"})
}

// Readyz reports readiness: 200 when every checker passes, 503 with the
// per-check verdicts otherwise.
func (h *Handler) Readyz(w http.ResponseWriter, r *http.Request) {
	resp, ready := h.evaluate(r.Context())
	code := http.StatusOK
	if !ready {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, resp)
}

// evaluate runs each checker under its own [probeTimeout] and collects the
// verdicts.
func (h *Handler) evaluate(ctx context.Context) (probeResponse, bool) {
	resp := probeResponse{Status: "ok", Checks: make(map[string]string, len(h.checkers))}
	ready := true

	for _, c := range h.checkers {
		probeCtx, cancel := context.WithTimeout(ctx, probeTimeout)
		err := c.Check(probeCtx)
		cancel()

		if err != nil {
			resp.Checks[c.Name] = "fail: " + err.Error()
			ready = false
			continue
		}
		resp.Checks[c.Name] = "ok"
	}

	if !ready {
		resp.Status = "fail"
	}
	return resp, ready
}

// Register mounts /healthz and /readyz on r.
func (h *Handler) Register(r *mux.Router) {
	r.HandleFunc("/healthz", h.Healthz).Methods(http.MethodGet)
	r.HandleFunc("/readyz", h.Readyz).Methods(http.MethodGet)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"status":"error"}`, http.StatusInternalServerError)
	}
}
