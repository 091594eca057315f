package narration

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/MrWong99/periodix/pkg/audio"
	"github.com/MrWong99/periodix/pkg/provider/tts"
)

var (
	// ErrEmptyPrompt is returned by [Service.Narrate] for a blank prompt.
	ErrEmptyPrompt = errors.New("narration: prompt is required")

	// ErrNoProvider is returned when the service has no speech provider.
	ErrNoProvider = errors.New("narration: no speech provider is configured")
)

// Recorder receives one observation per narration request.
type Recorder interface {
	RecordNarration(ctx context.Context, d time.Duration, err error)
}

var _ Fetcher = (*Service)(nil)

// Service synthesises narration in-process. It is the logic behind the
// narration endpoint and is safe for concurrent use.
type Service struct {
	provider tts.Provider
	voice    tts.Voice
	rec      Recorder
	log      *slog.Logger
}

// ServiceOption configures a [Service].
type ServiceOption func(*Service)

// WithVoice sets the voice requested from the provider.
func WithVoice(v tts.Voice) ServiceOption {
	return func(s *Service) { s.voice = v }
}

// WithRecorder reports each request's latency and outcome to r.
func WithRecorder(r Recorder) ServiceOption {
	return func(s *Service) { s.rec = r }
}

// WithServiceLogger sets the logger used by FetchNarration.
func WithServiceLogger(l *slog.Logger) ServiceOption {
	return func(s *Service) {
		if l != nil {
			s.log = l
		}
	}
}

// NewService creates a service backed by p. A nil p yields a service whose
// every call fails with [ErrNoProvider].
func NewService(p tts.Provider, opts ...ServiceOption) *Service {
	s := &Service{provider: p, log: slog.Default()}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Configured reports whether a provider is present.
func (s *Service) Configured() bool { return s.provider != nil }

// Narrate synthesises prompt and returns base64-encoded 24 kHz mono 16-bit
// PCM. Errors are returned with their cause for the endpoint to report.
func (s *Service) Narrate(ctx context.Context, prompt string) (data string, err error) {
	start := time.Now()
	defer func() {
		if s.rec != nil {
			s.rec.RecordNarration(ctx, time.Since(start), err)
		}
	}()

	if strings.TrimSpace(prompt) == "" {
		return "", ErrEmptyPrompt
	}
	if s.provider == nil {
		return "", ErrNoProvider
	}
	pcm, err := s.provider.Synthesize(ctx, prompt, s.voice)
	if err != nil {
		return "", fmt.Errorf("narration: synthesize: %w", err)
	}
	if len(pcm) == 0 {
		return "", errors.New("narration: no audio data received from the provider")
	}
	return audio.EncodeBase64PCM(pcm), nil
}

// FetchNarration implements [Fetcher] with the same error contract as
// [Client]: any failure is logged and reported as [ErrSpeechUnavailable].
func (s *Service) FetchNarration(ctx context.Context, prompt string) (string, error) {
	data, err := s.Narrate(ctx, prompt)
	if err != nil {
		s.log.ErrorContext(ctx, "narration: speech generation failed", "err", err)
		return "", ErrSpeechUnavailable
	}
	return data, nil
}
