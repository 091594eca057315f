// Package gemini provides a speech synthesis provider backed by the Gemini
// API's native text-to-speech models via google.golang.org/genai.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"google.golang.org/genai"

	"github.com/MrWong99/periodix/pkg/audio"
	"github.com/MrWong99/periodix/pkg/provider/tts"
)

const (
	// DefaultModel is the Gemini TTS model used when none is configured.
	DefaultModel = "gemini-2.5-flash-preview-tts"

	// DefaultVoice is the prebuilt voice used when the request names none.
	DefaultVoice = "Zephyr"
)

// prebuiltVoices is a subset of the prebuilt voice catalogue offered by the
// Gemini TTS models.
var prebuiltVoices = []string{"Zephyr", "Puck", "Charon", "Kore", "Fenrir", "Leda", "Orus", "Aoede"}

var _ tts.Provider = (*Provider)(nil)

// contentGenerator is the slice of *genai.Models the provider needs.
type contentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// Option is a functional option for configuring the Gemini Provider.
type Option func(*Provider)

// WithModel overrides the TTS model.
func WithModel(model string) Option {
	return func(p *Provider) {
		if model != "" {
			p.model = model
		}
	}
}

// WithBaseURL points the client at a different API host.
func WithBaseURL(url string) Option {
	return func(p *Provider) {
		p.baseURL = url
	}
}

// Provider implements tts.Provider using Gemini speech generation.
type Provider struct {
	models  contentGenerator
	model   string
	baseURL string
}

// New creates a Gemini provider. apiKey must be non-empty.
func New(ctx context.Context, apiKey string, opts ...Option) (*Provider, error) {
	if apiKey == "" {
		return nil, errors.New("gemini tts: apiKey must not be empty")
	}
	p := &Provider{model: DefaultModel}
	for _, o := range opts {
		o(p)
	}

	cc := &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	}
	if p.baseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: p.baseURL}
	}
	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("gemini tts: create client: %w", err)
	}
	p.models = client.Models
	return p, nil
}

// newWithGenerator is used by tests to bypass the HTTP client.
func newWithGenerator(g contentGenerator, opts ...Option) *Provider {
	p := &Provider{models: g, model: DefaultModel}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Synthesize implements tts.Provider.
func (p *Provider) Synthesize(ctx context.Context, text string, voice tts.Voice) ([]byte, error) {
	if strings.TrimSpace(text) == "" {
		return nil, tts.ErrEmptyText
	}
	name := voice.ID
	if name == "" {
		name = DefaultVoice
	}

	resp, err := p.models.GenerateContent(ctx, p.model, genai.Text(text), &genai.GenerateContentConfig{
		ResponseModalities: []string{"AUDIO"},
		SpeechConfig: &genai.SpeechConfig{
			VoiceConfig: &genai.VoiceConfig{
				PrebuiltVoiceConfig: &genai.PrebuiltVoiceConfig{VoiceName: name},
			},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("gemini tts: generate content: %w", err)
	}

	blob := inlineAudio(resp)
	if blob == nil || len(blob.Data) == 0 {
		return nil, errors.New("gemini tts: response contained no audio")
	}
	if len(blob.Data)%audio.BytesPerSample != 0 {
		return nil, fmt.Errorf("gemini tts: %w: odd byte count %d", audio.ErrMalformedPCM, len(blob.Data))
	}

	rate := sampleRate(blob.MIMEType)
	if rate != audio.NarrationFormat.SampleRate {
		return audio.Resample(blob.Data, 1, rate, audio.NarrationFormat.SampleRate), nil
	}
	return blob.Data, nil
}

// ListVoices implements tts.Provider. The catalogue is static.
func (p *Provider) ListVoices(_ context.Context) ([]tts.Voice, error) {
	out := make([]tts.Voice, 0, len(prebuiltVoices))
	for _, v := range prebuiltVoices {
		out = append(out, tts.Voice{ID: v, Name: v, Provider: "gemini"})
	}
	return out, nil
}

func inlineAudio(resp *genai.GenerateContentResponse) *genai.Blob {
	if resp == nil {
		return nil
	}
	for _, c := range resp.Candidates {
		if c == nil || c.Content == nil {
			continue
		}
		for _, part := range c.Content.Parts {
			if part != nil && part.InlineData != nil {
				return part.InlineData
			}
		}
	}
	return nil
}

// sampleRate extracts the rate parameter from an "audio/L16;codec=pcm;rate=24000"
// MIME type, defaulting to the narration rate.
func sampleRate(mime string) int {
	for _, param := range strings.Split(mime, ";") {
		k, v, ok := strings.Cut(strings.TrimSpace(param), "=")
		if !ok || !strings.EqualFold(k, "rate") {
			continue
		}
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return audio.NarrationFormat.SampleRate
}
