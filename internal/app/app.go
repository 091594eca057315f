// Package app wires all periodix subsystems into a running server.
//
// The App struct owns the full lifecycle: New loads the dataset and builds
// the speech backends, Run serves HTTP until its context ends, and Shutdown
// drains and stops the server.
//
// For testing, inject doubles via functional options (WithSpeech,
// WithDataset, etc.). When an option is not provided, New creates real
// implementations from the config.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/MrWong99/periodix/internal/config"
	"github.com/MrWong99/periodix/internal/health"
	"github.com/MrWong99/periodix/internal/httpapi"
	"github.com/MrWong99/periodix/internal/observe"
	"github.com/MrWong99/periodix/internal/resilience"
	"github.com/MrWong99/periodix/pkg/element"
	"github.com/MrWong99/periodix/pkg/narration"
	"github.com/MrWong99/periodix/pkg/provider/tts"
	"github.com/MrWong99/periodix/pkg/quiz"
)

// App owns all subsystem lifetimes.
type App struct {
	cfg *config.Config
	reg *config.Registry

	dataset  *element.Dataset
	speech   tts.Provider
	failover *resilience.SpeechFailover
	narrator *narration.Service
	fetcher  narration.Fetcher
	gen      *quiz.Generator
	health   *health.Handler
	metrics  *observe.Metrics
	rnd      quiz.Rand
	handler  http.Handler
	server   *http.Server

	// base parents every request context so Shutdown can end websocket
	// sessions, which http.Server.Shutdown does not track.
	base       context.Context
	cancelBase context.CancelFunc

	mu   sync.Mutex
	addr net.Addr

	stopOnce sync.Once
	stopErr  error
}

// Option is a functional option for New. Use these to inject test doubles.
type Option func(*App)

// WithDataset injects an element dataset instead of loading it from config.
func WithDataset(ds *element.Dataset) Option {
	return func(a *App) { a.dataset = ds }
}

// WithSpeech injects a speech provider instead of building the configured
// failover group.
func WithSpeech(p tts.Provider) Option {
	return func(a *App) { a.speech = p }
}

// WithFetcher injects the narration source for UI sessions.
func WithFetcher(f narration.Fetcher) Option {
	return func(a *App) { a.fetcher = f }
}

// WithMetrics injects the metric instruments instead of [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(a *App) { a.metrics = m }
}

// WithRand seeds question generation.
func WithRand(r quiz.Rand) Option {
	return func(a *App) { a.rnd = r }
}

// New creates an App by wiring all subsystems together. reg supplies the
// speech provider factories named in cfg.
func New(ctx context.Context, cfg *config.Config, reg *config.Registry, opts ...Option) (*App, error) {
	a := &App{cfg: cfg, reg: reg}
	a.base, a.cancelBase = context.WithCancel(context.WithoutCancel(ctx))
	for _, o := range opts {
		o(a)
	}
	if a.metrics == nil {
		a.metrics = observe.DefaultMetrics()
	}

	if err := a.initDataset(); err != nil {
		return nil, fmt.Errorf("app: init dataset: %w", err)
	}
	if err := a.initSpeech(); err != nil {
		return nil, fmt.Errorf("app: init speech: %w", err)
	}
	a.initNarration()
	a.initQuiz()
	a.initHealth()
	a.initHTTP()

	slog.Info("app initialised",
		"elements", a.dataset.Len(),
		"speech_backends", a.speechBackends(),
		"remote_narration", cfg.Narration.Endpoint != "",
	)
	return a, nil
}

func (a *App) initDataset() error {
	if a.dataset != nil {
		return nil
	}
	var err error
	if path := a.cfg.Dataset.Path; path != "" {
		a.dataset, err = element.LoadFile(path)
	} else {
		a.dataset, err = element.Embedded()
	}
	return err
}

// initSpeech builds one failover group over every configured provider. An
// empty provider list leaves narration unconfigured.
func (a *App) initSpeech() error {
	if a.speech != nil || len(a.cfg.Narration.Providers) == 0 {
		return nil
	}
	if a.reg == nil {
		return errors.New("no provider registry")
	}

	fo := resilience.NewSpeechFailover(a.cfg.Narration.CircuitBreaker,
		resilience.WithStateChange(func(name string, from, to resilience.State) {
			slog.Warn("speech provider circuit changed", "provider", name, "from", from, "to", to)
		}),
	)
	for _, entry := range a.cfg.Narration.Providers {
		p, err := a.reg.CreateTTS(entry)
		if err != nil {
			return fmt.Errorf("provider %q: %w", entry.Name, err)
		}
		fo.Add(entry.Name, &instrumented{name: entry.Name, provider: p, metrics: a.metrics}, entry.Voice)
		slog.Debug("speech provider registered", "provider", entry.Name, "voice", entry.Voice)
	}
	fo.OnServed(func(provider string) {
		slog.Debug("narration served", "provider", provider)
	})
	a.failover = fo
	a.speech = fo
	return nil
}

func (a *App) initNarration() {
	a.narrator = narration.NewService(a.speech, narration.WithRecorder(a.metrics))
	if a.fetcher != nil {
		return
	}
	if ep := a.cfg.Narration.Endpoint; ep != "" {
		a.fetcher = narration.NewClient(ep)
		return
	}
	a.fetcher = a.narrator
}

func (a *App) initQuiz() {
	opts := []quiz.Option{
		quiz.WithQuizShape(a.cfg.Quiz.Questions, a.cfg.Quiz.Options),
		quiz.WithObserver(func(mode quiz.Mode, n int) {
			a.metrics.RecordQuestions(context.Background(), mode.String(), n)
		}),
	}
	if a.rnd != nil {
		opts = append(opts, quiz.WithRand(a.rnd))
	}
	a.gen = quiz.New(a.dataset.All(), opts...)
}

func (a *App) initHealth() {
	checks := []health.Checker{health.DatasetCheck(a.dataset.Len)}
	if a.failover != nil {
		checks = append(checks, health.SpeechCheck(a.failover.Available))
	}
	a.health = health.New(checks...)
}

func (a *App) initHTTP() {
	a.handler = httpapi.NewRouter(httpapi.Config{
		FrameDuration:  a.cfg.Playback.FrameDuration,
		Realtime:       a.cfg.Playback.IsRealtime(),
		GameOptions:    a.cfg.Game.DefaultOptions,
		NextDelay:      a.cfg.Game.NextDelay,
		RevealInterval: a.cfg.Reveal.Interval,
	}, httpapi.Deps{
		Dataset:   a.dataset,
		Generator: a.gen,
		Narrator:  a.narrator,
		Fetcher:   a.fetcher,
		Health:    a.health,
		Metrics:   a.metrics,
	})
	a.server = &http.Server{
		Addr:              a.cfg.Server.ListenAddr,
		Handler:           a.handler,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return a.base },
	}
}

func (a *App) speechBackends() int {
	switch {
	case a.failover != nil:
		return a.failover.Len()
	case a.speech != nil:
		return 1
	default:
		return 0
	}
}

// Handler returns the root HTTP handler.
func (a *App) Handler() http.Handler { return a.handler }

// Addr returns the listening address once Run has bound it, or nil.
func (a *App) Addr() net.Addr {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.addr
}

// Run serves HTTP and blocks until ctx is cancelled or the server fails.
// On cancellation it drains readiness and shuts the server down within
// the configured shutdown timeout. A clean shutdown returns nil.
func (a *App) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", a.server.Addr)
	if err != nil {
		return fmt.Errorf("app: listen: %w", err)
	}
	a.mu.Lock()
	a.addr = ln.Addr()
	a.mu.Unlock()
	slog.Info("http server listening", "addr", ln.Addr().String())

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := a.server.Serve(ln); !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("app: serve: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.cfg.Server.ShutdownTimeout)
		defer cancel()
		return a.Shutdown(sctx)
	})
	return g.Wait()
}

// Shutdown marks the server as draining and stops it, waiting for in-flight
// requests until ctx expires. It is safe to call more than once.
func (a *App) Shutdown(ctx context.Context) error {
	a.stopOnce.Do(func() {
		slog.Info("shutting down")
		a.health.Drain()
		defer a.cancelBase()
		if err := a.server.Shutdown(ctx); err != nil {
			slog.Warn("http shutdown incomplete", "err", err)
			a.stopErr = err
			return
		}
		slog.Info("shutdown complete")
	})
	return a.stopErr
}

// instrumented records per-provider request and error counts.
type instrumented struct {
	name     string
	provider tts.Provider
	metrics  *observe.Metrics
}

var _ tts.Provider = (*instrumented)(nil)

func (p *instrumented) Synthesize(ctx context.Context, text string, voice tts.Voice) ([]byte, error) {
	pcm, err := p.provider.Synthesize(ctx, text, voice)
	if err != nil {
		p.metrics.RecordProviderRequest(ctx, p.name, "error")
		p.metrics.RecordProviderError(ctx, p.name, errorKind(err))
		return nil, err
	}
	p.metrics.RecordProviderRequest(ctx, p.name, "ok")
	return pcm, nil
}

func (p *instrumented) ListVoices(ctx context.Context) ([]tts.Voice, error) {
	return p.provider.ListVoices(ctx)
}

func errorKind(err error) string {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "canceled"
	default:
		return "synthesize"
	}
}
