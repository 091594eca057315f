// Package health provides the /healthz and /readyz handlers.
//
// /healthz answers 200 while the process serves HTTP. /readyz answers 200
// only when every registered [Checker] passes and the server is not
// draining. Responses are JSON objects with a "status" field ("ok" or
// "fail") and a "checks" map.
package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync/atomic"
	"time"
)

var (
	// ErrDraining is reported while the server shuts down.
	ErrDraining = errors.New("server is shutting down")

	// ErrNoSpeech is reported when no speech provider accepts requests.
	ErrNoSpeech = errors.New("no speech provider available")

	// ErrEmptyDataset is reported when no elements are loaded.
	ErrEmptyDataset = errors.New("element dataset is empty")
)

// checkTimeout is the maximum time a single readiness check may take before
// the context is cancelled.
const checkTimeout = 5 * time.Second

// Checker is a named health check function. The Check function should return
// nil when the dependency is healthy and a non-nil error describing the
// failure otherwise.
type Checker struct {
	// Name is a short label for this check (e.g. "speech", "dataset"). It
	// appears as a key in the JSON response.
	Name string

	// Check probes the dependency. It must respect context cancellation.
	Check func(ctx context.Context) error
}

// result is the JSON response body for health endpoints.
type result struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// SpeechCheck fails while available reports false, i.e. while every speech
// provider's circuit breaker is open.
func SpeechCheck(available func() bool) Checker {
	return Checker{Name: "speech", Check: func(context.Context) error {
		if !available() {
			return ErrNoSpeech
		}
		return nil
	}}
}

// DatasetCheck fails when size reports no elements.
func DatasetCheck(size func() int) Checker {
	return Checker{Name: "dataset", Check: func(context.Context) error {
		if size() == 0 {
			return ErrEmptyDataset
		}
		return nil
	}}
}

// Handler serves /healthz and /readyz endpoints. It is safe for concurrent
// use; the checker list is fixed at construction time.
type Handler struct {
	checkers []Checker
	draining atomic.Bool
}

// New creates a [Handler] that evaluates the given checkers on each /readyz
// request. The checkers are evaluated sequentially in the order provided.
func New(checkers ...Checker) *Handler {
	c := make([]Checker, len(checkers))
	copy(c, checkers)
	return &Handler{checkers: c}
}

// Healthz is a liveness probe that always returns 200 OK. A running process
// that can serve HTTP is considered alive.
func (h *Handler) Healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, result{Status: "ok"})
}

// Drain makes /readyz fail from now on so load balancers stop routing new
// sessions before the server shuts down.
func (h *Handler) Drain() {
	h.draining.Store(true)
}

// Readyz is a readiness probe that returns 200 only when every registered
// [Checker] passes. Each checker is given a context with a [checkTimeout]
// deadline derived from the request context.
func (h *Handler) Readyz(w http.ResponseWriter, r *http.Request) {
	checks := make(map[string]string, len(h.checkers)+1)
	allOK := true
	if h.draining.Load() {
		checks["server"] = "fail: " + ErrDraining.Error()
		allOK = false
	}

	for _, c := range h.checkers {
		ctx, cancel := context.WithTimeout(r.Context(), checkTimeout)
		err := c.Check(ctx)
		cancel()

		if err != nil {
			checks[c.Name] = "fail: " + err.Error()
			allOK = false
		} else {
			checks[c.Name] = "ok"
		}
	}

	res := result{
		Status: "ok",
		Checks: checks,
	}
	status := http.StatusOK
	if !allOK {
		res.Status = "fail"
		status = http.StatusServiceUnavailable
	}

	writeJSON(w, status, res)
}

// Register adds the /healthz and /readyz routes to mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", h.Healthz)
	mux.HandleFunc("GET /readyz", h.Readyz)
}

// writeJSON encodes v as JSON and writes it with the given status code. On
// encoding failure it falls back to a plain-text 500 response.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"status":"error"}`, http.StatusInternalServerError)
	}
}
