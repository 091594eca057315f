// Package httpapi is the HTTP surface of periodix: the narration endpoint,
// read-only element and quiz routes, the browser websocket session, and the
// operational health and metrics routes.
package httpapi

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/MrWong99/periodix/internal/health"
	"github.com/MrWong99/periodix/internal/observe"
	"github.com/MrWong99/periodix/pkg/element"
	"github.com/MrWong99/periodix/pkg/narration"
	"github.com/MrWong99/periodix/pkg/quiz"
)

// Config holds the tunables of the HTTP surface.
type Config struct {
	// FrameDuration is the PCM chunk size streamed to session clients.
	FrameDuration time.Duration

	// Realtime paces session audio at playback rate.
	Realtime bool

	// GameOptions is the difficulty used when game.start names none.
	GameOptions int

	// NextDelay is the pause between a game answer and the next question.
	NextDelay time.Duration

	// RevealInterval is the delay between revealed electrons.
	RevealInterval time.Duration

	// OriginPatterns lists the extra origins allowed to open a session.
	OriginPatterns []string
}

// Deps are the collaborators the router serves from. Dataset and Generator
// are required; everything else may be nil.
type Deps struct {
	Dataset   *element.Dataset
	Generator *quiz.Generator
	Matcher   *quiz.AnswerMatcher

	// Narrator backs POST /api/narration.
	Narrator *narration.Service

	// Fetcher feeds session narration. It defaults to Narrator.
	Fetcher narration.Fetcher

	Health  *health.Handler
	Metrics *observe.Metrics
	Logger  *slog.Logger
}

// Router wires the routes onto a [http.ServeMux].
type Router struct {
	cfg     Config
	mux     *http.ServeMux
	data    *element.Dataset
	gen     *quiz.Generator
	matcher *quiz.AnswerMatcher
	aliases map[string][]string
	narr    *narration.Service
	fetch   narration.Fetcher
	metrics *observe.Metrics
	log     *slog.Logger
}

// NewRouter returns the full handler, wrapped in the observability and CORS
// middleware.
func NewRouter(cfg Config, deps Deps) http.Handler {
	return withCORS(observe.Middleware(deps.metricsOrDefault())(newRouter(cfg, deps)))
}

func newRouter(cfg Config, deps Deps) *Router {
	if cfg.GameOptions == 0 {
		cfg.GameOptions = 4
	}
	r := &Router{
		cfg:     cfg,
		mux:     http.NewServeMux(),
		data:    deps.Dataset,
		gen:     deps.Generator,
		matcher: deps.Matcher,
		aliases: quiz.Aliases(deps.Dataset.All()),
		narr:    deps.Narrator,
		fetch:   deps.Fetcher,
		metrics: deps.metricsOrDefault(),
		log:     deps.Logger,
	}
	if r.matcher == nil {
		r.matcher = quiz.NewAnswerMatcher()
	}
	if r.narr == nil {
		r.narr = narration.NewService(nil)
	}
	if r.fetch == nil {
		r.fetch = r.narr
	}
	if r.log == nil {
		r.log = slog.Default()
	}
	r.routes()
	if deps.Health != nil {
		deps.Health.Register(r.mux)
	}
	return r
}

func (d Deps) metricsOrDefault() *observe.Metrics {
	if d.Metrics != nil {
		return d.Metrics
	}
	return observe.DefaultMetrics()
}

func (r *Router) routes() {
	// Narration. Other methods get 405 from the mux.
	r.mux.HandleFunc("POST /api/narration", r.handleNarration)
	r.mux.HandleFunc("POST /api/gemini", r.handleNarration)

	r.mux.HandleFunc("GET /api/elements", r.handleElements)
	r.mux.HandleFunc("GET /api/elements/{key}", r.handleElement)
	r.mux.HandleFunc("GET /api/elements/{key}/electrons", r.handleElectrons)

	r.mux.HandleFunc("GET /api/quiz", r.handleQuiz)
	r.mux.HandleFunc("GET /api/game/question", r.handleGameQuestion)
	r.mux.HandleFunc("POST /api/answers/check", r.handleCheckAnswer)

	r.mux.HandleFunc("GET /ws/session", r.handleSession)

	r.mux.Handle("GET /metrics", observe.MetricsHandler())
}

func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.mux.ServeHTTP(w, req)
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

func withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if req.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, req)
	})
}
