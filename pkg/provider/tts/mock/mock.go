// Package mock provides a test double for the tts.Provider interface.
//
// Example:
//
//	p := &mock.Provider{SynthesizeResult: pcm}
//	got, _ := p.Synthesize(ctx, "hello", tts.Voice{ID: "Zephyr"})
//	calls := p.SynthesizeCalls()
package mock

import (
	"context"
	"slices"
	"sync"

	"github.com/MrWong99/periodix/pkg/provider/tts"
)

var _ tts.Provider = (*Provider)(nil)

// SynthesizeCall records a single invocation of Synthesize.
type SynthesizeCall struct {
	Text  string
	Voice tts.Voice
}

// Provider is a mock implementation of tts.Provider. It is safe for
// concurrent use.
type Provider struct {
	mu sync.Mutex

	// SynthesizeResult is returned by Synthesize (copied per call).
	SynthesizeResult []byte

	// SynthesizeErr, if non-nil, is returned by Synthesize.
	SynthesizeErr error

	// SynthesizeFunc, if set, overrides SynthesizeResult and SynthesizeErr.
	SynthesizeFunc func(ctx context.Context, text string, voice tts.Voice) ([]byte, error)

	// ListVoicesResult is returned by ListVoices.
	ListVoicesResult []tts.Voice

	// ListVoicesErr, if non-nil, is returned by ListVoices.
	ListVoicesErr error

	synthesizeCalls []SynthesizeCall
	listVoicesCalls int
}

// Synthesize implements tts.Provider.
func (p *Provider) Synthesize(ctx context.Context, text string, voice tts.Voice) ([]byte, error) {
	p.mu.Lock()
	p.synthesizeCalls = append(p.synthesizeCalls, SynthesizeCall{Text: text, Voice: voice})
	fn := p.SynthesizeFunc
	result, err := slices.Clone(p.SynthesizeResult), p.SynthesizeErr
	p.mu.Unlock()

	if fn != nil {
		return fn(ctx, text, voice)
	}
	if err != nil {
		return nil, err
	}
	return result, nil
}

// ListVoices implements tts.Provider.
func (p *Provider) ListVoices(_ context.Context) ([]tts.Voice, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.listVoicesCalls++
	if p.ListVoicesErr != nil {
		return nil, p.ListVoicesErr
	}
	return slices.Clone(p.ListVoicesResult), nil
}

// SynthesizeCalls returns a copy of all recorded Synthesize calls.
func (p *Provider) SynthesizeCalls() []SynthesizeCall {
	p.mu.Lock()
	defer p.mu.Unlock()
	return slices.Clone(p.synthesizeCalls)
}

// ListVoicesCallCount returns how many times ListVoices was called.
func (p *Provider) ListVoicesCallCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.listVoicesCalls
}

// Reset clears all recorded calls.
func (p *Provider) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.synthesizeCalls = nil
	p.listVoicesCalls = 0
}
