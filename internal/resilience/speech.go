package resilience

import (
	"context"

	"github.com/MrWong99/periodix/pkg/provider/tts"
)

var _ tts.Provider = (*SpeechFailover)(nil)

type speechBackend struct {
	name     string
	provider tts.Provider
	voice    string
}

// SpeechFailover is a [tts.Provider] that fails over across several speech
// backends. Voice IDs are provider specific, so each backend is registered
// with its own voice. A request voice is honoured by the backend named in its
// Provider field, or by the only backend when Provider is empty.
type SpeechFailover struct {
	group  *Failover[speechBackend]
	served func(provider string)
}

// NewSpeechFailover creates an empty speech failover.
func NewSpeechFailover(cfg BreakerConfig, opts ...BreakerOption) *SpeechFailover {
	return &SpeechFailover{group: NewFailover[speechBackend](cfg, opts...)}
}

// Add registers a backend under name with its default voice ID (empty for
// the provider's own default).
func (s *SpeechFailover) Add(name string, p tts.Provider, voice string) {
	s.group.Add(name, speechBackend{name: name, provider: p, voice: voice})
}

// OnServed registers fn to be told which backend produced each clip. Call it
// before the failover is used.
func (s *SpeechFailover) OnServed(fn func(provider string)) {
	s.served = fn
}

// Len returns the number of registered backends.
func (s *SpeechFailover) Len() int { return s.group.Len() }

// Available reports whether any backend would accept a call.
func (s *SpeechFailover) Available() bool { return s.group.Available() }

// States returns each backend's breaker state.
func (s *SpeechFailover) States() map[string]State { return s.group.States() }

// Synthesize implements tts.Provider.
func (s *SpeechFailover) Synthesize(ctx context.Context, text string, voice tts.Voice) ([]byte, error) {
	pcm, name, err := Do(ctx, s.group, func(ctx context.Context, b speechBackend) ([]byte, error) {
		v := tts.Voice{ID: b.voice}
		if voice.ID != "" && (voice.Provider == b.name || voice.Provider == "" && s.group.Len() == 1) {
			v = voice
		}
		return b.provider.Synthesize(ctx, text, v)
	})
	if err != nil {
		return nil, err
	}
	if s.served != nil {
		s.served(name)
	}
	return pcm, nil
}

// ListVoices returns the voices of the first healthy backend.
func (s *SpeechFailover) ListVoices(ctx context.Context) ([]tts.Voice, error) {
	voices, _, err := Do(ctx, s.group, func(ctx context.Context, b speechBackend) ([]tts.Voice, error) {
		return b.provider.ListVoices(ctx)
	})
	return voices, err
}
