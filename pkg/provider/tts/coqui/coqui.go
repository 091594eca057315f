// Package coqui provides a speech provider backed by a locally running Coqui
// TTS server, reached over its REST API.
//
// Two API modes are supported:
//
//   - APIModeStandard (default): the standard Coqui TTS server. Synthesis is
//     GET /api/tts with query parameters; voices come from GET /details.
//
//   - APIModeXTTS: the XTTS v2 API server. Synthesis is POST /tts_to_audio/
//     with a JSON body; voices come from GET /studio_speakers.
//
// Both servers answer with a WAV file. The provider strips the RIFF container
// and converts the samples to [audio.NarrationFormat].
//
//	p, _ := coqui.New("http://localhost:5002", coqui.WithLanguage("ar"))
//	pcm, err := p.Synthesize(ctx, "الأكسجين غاز", tts.Voice{})
package coqui

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/MrWong99/periodix/pkg/audio"
	"github.com/MrWong99/periodix/pkg/provider/tts"
)

var _ tts.Provider = (*Provider)(nil)

const (
	defaultLanguage = "ar"
	defaultTimeout  = 30 * time.Second

	xttsEndpoint           = "/tts_to_audio/"
	studioSpeakersEndpoint = "/studio_speakers"
	apiTTSEndpoint         = "/api/tts"
	detailsEndpoint        = "/details"
)

// APIMode selects which Coqui server API the provider targets.
type APIMode string

const (
	// APIModeXTTS targets the XTTS v2 API server.
	APIModeXTTS APIMode = "xtts"

	// APIModeStandard targets the standard Coqui TTS server.
	APIModeStandard APIMode = "standard"
)

// Option is a functional option for configuring a Coqui Provider.
type Option func(*Provider)

// WithLanguage sets the language code sent to the server. Defaults to "ar".
func WithLanguage(lang string) Option {
	return func(p *Provider) {
		p.language = lang
	}
}

// WithTimeout sets the per-request HTTP timeout. Defaults to 30 s.
func WithTimeout(d time.Duration) Option {
	return func(p *Provider) {
		p.httpClient.Timeout = d
	}
}

// WithAPIMode sets the server API mode.
func WithAPIMode(mode APIMode) Option {
	return func(p *Provider) {
		p.apiMode = mode
	}
}

// WithDefaultVoice sets the speaker used when a request names none. XTTS
// mode needs one of these or a per-request voice.
func WithDefaultVoice(id string) Option {
	return func(p *Provider) {
		p.defaultVoice = id
	}
}

// Provider implements tts.Provider against a Coqui TTS server. It is safe for
// concurrent use.
type Provider struct {
	serverURL    string
	language     string
	defaultVoice string
	apiMode      APIMode
	httpClient   *http.Client
}

// New creates a Provider that targets the server at serverURL (for example
// "http://localhost:5002").
func New(serverURL string, opts ...Option) (*Provider, error) {
	if serverURL == "" {
		return nil, errors.New("coqui: serverURL must not be empty")
	}
	p := &Provider{
		serverURL:  strings.TrimRight(serverURL, "/"),
		language:   defaultLanguage,
		apiMode:    APIModeStandard,
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
	for _, o := range opts {
		o(p)
	}
	switch p.apiMode {
	case APIModeStandard, APIModeXTTS:
	default:
		return nil, fmt.Errorf("coqui: unknown api mode %q", p.apiMode)
	}
	return p, nil
}

// xttsRequest is the JSON body sent to POST /tts_to_audio/.
type xttsRequest struct {
	Text       string `json:"text"`
	SpeakerWav string `json:"speaker_wav"`
	Language   string `json:"language"`
}

// studioSpeakersResponse maps speaker names to opaque embeddings.
type studioSpeakersResponse map[string]json.RawMessage

// detailsResponse is returned by GET /details. Speakers is empty for
// single-speaker models.
type detailsResponse struct {
	ModelName string   `json:"model_name"`
	Language  string   `json:"language"`
	Speakers  []string `json:"speakers"`
}

// Synthesize renders text in one request and returns 24 kHz mono PCM.
func (p *Provider) Synthesize(ctx context.Context, text string, voice tts.Voice) ([]byte, error) {
	if strings.TrimSpace(text) == "" {
		return nil, tts.ErrEmptyText
	}
	speaker := voice.ID
	if speaker == "" {
		speaker = p.defaultVoice
	}
	lang := p.language
	if voice.Language != "" {
		lang = voice.Language
	}

	var (
		req *http.Request
		err error
	)
	if p.apiMode == APIModeXTTS {
		if speaker == "" {
			return nil, errors.New("coqui: a voice is required in xtts mode")
		}
		req, err = p.xttsRequest(ctx, text, speaker, lang)
	} else {
		req, err = p.standardRequest(ctx, text, speaker, lang)
	}
	if err != nil {
		return nil, fmt.Errorf("coqui: create tts request: %w", err)
	}
	req.Header.Set("Accept", "audio/wav")

	wav, err := p.do(req)
	if err != nil {
		return nil, err
	}
	return decodeWAV(wav)
}

func (p *Provider) xttsRequest(ctx context.Context, text, speaker, lang string) (*http.Request, error) {
	body, err := json.Marshal(xttsRequest{Text: text, SpeakerWav: speaker, Language: lang})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.serverURL+xttsEndpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	return req, nil
}

func (p *Provider) standardRequest(ctx context.Context, text, speaker, lang string) (*http.Request, error) {
	params := url.Values{}
	params.Set("text", text)
	if speaker != "" {
		params.Set("speaker_id", speaker)
	}
	if lang != "" {
		params.Set("language_id", lang)
	}
	return http.NewRequestWithContext(ctx, http.MethodGet, p.serverURL+apiTTSEndpoint+"?"+params.Encode(), nil)
}

// do sends req and returns the body of a 200 response.
func (p *Provider) do(req *http.Request) ([]byte, error) {
	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("coqui: %s %s: %w", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("coqui: %s %s returned status %d", req.Method, req.URL.Path, resp.StatusCode)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("coqui: read response: %w", err)
	}
	return data, nil
}

// ListVoices returns the studio speakers in XTTS mode. In standard mode it
// returns one voice per speaker of a multi-speaker model, or a single voice
// named after the model.
func (p *Provider) ListVoices(ctx context.Context) ([]tts.Voice, error) {
	endpoint := detailsEndpoint
	if p.apiMode == APIModeXTTS {
		endpoint = studioSpeakersEndpoint
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.serverURL+endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("coqui: create list-voices request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	data, err := p.do(req)
	if err != nil {
		return nil, err
	}

	var names []string
	if p.apiMode == APIModeXTTS {
		var raw studioSpeakersResponse
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("coqui: decode studio speakers: %w", err)
		}
		for name := range raw {
			names = append(names, name)
		}
	} else {
		var details detailsResponse
		if err := json.Unmarshal(data, &details); err != nil {
			return nil, fmt.Errorf("coqui: decode details: %w", err)
		}
		names = append(names, details.Speakers...)
		if len(names) == 0 {
			name := details.ModelName
			if name == "" {
				name = "default"
			}
			names = []string{name}
		}
	}
	sort.Strings(names)

	voices := make([]tts.Voice, 0, len(names))
	for _, name := range names {
		voices = append(voices, tts.Voice{ID: name, Name: name, Provider: "coqui", Language: p.language})
	}
	return voices, nil
}

// wavInfo holds the format metadata extracted from a RIFF/WAVE header.
type wavInfo struct {
	DataOffset int
	DataSize   int
	SampleRate int
	Channels   int
	Bits       int
}

// parseWAV walks the RIFF chunks of wav and returns the sample format and
// the location of the data chunk. The fmt chunk size varies between
// encoders, so the 44-byte canonical header is not assumed.
func parseWAV(wav []byte) (wavInfo, error) {
	if len(wav) < 12 || string(wav[0:4]) != "RIFF" || string(wav[8:12]) != "WAVE" {
		return wavInfo{}, errors.New("coqui: response is not a RIFF/WAVE file")
	}

	var info wavInfo
	foundFmt := false
	offset := 12
	for offset+8 <= len(wav) {
		id := string(wav[offset : offset+4])
		size := int(binary.LittleEndian.Uint32(wav[offset+4 : offset+8]))

		switch id {
		case "fmt ":
			if size < 16 || offset+8+16 > len(wav) {
				return wavInfo{}, errors.New("coqui: truncated fmt chunk")
			}
			f := wav[offset+8:]
			info.Channels = int(binary.LittleEndian.Uint16(f[2:4]))
			info.SampleRate = int(binary.LittleEndian.Uint32(f[4:8]))
			info.Bits = int(binary.LittleEndian.Uint16(f[14:16]))
			foundFmt = true
		case "data":
			if !foundFmt {
				return wavInfo{}, errors.New("coqui: data chunk before fmt chunk")
			}
			info.DataOffset = offset + 8
			info.DataSize = min(size, len(wav)-info.DataOffset)
			return info, nil
		}

		// Chunks are word aligned.
		offset += 8 + size
		if size%2 != 0 {
			offset++
		}
	}
	return wavInfo{}, errors.New("coqui: WAV response missing data chunk")
}

// decodeWAV extracts the PCM from wav and converts it to the narration
// format.
func decodeWAV(wav []byte) ([]byte, error) {
	info, err := parseWAV(wav)
	if err != nil {
		return nil, err
	}
	if info.Bits != 8*audio.BytesPerSample {
		return nil, fmt.Errorf("coqui: unsupported sample width %d bits", info.Bits)
	}
	pcm := wav[info.DataOffset : info.DataOffset+info.DataSize]
	switch info.Channels {
	case 1:
	case 2:
		pcm = audio.StereoToMono(pcm)
	default:
		return nil, fmt.Errorf("coqui: unsupported channel count %d", info.Channels)
	}
	if len(pcm) == 0 {
		return nil, errors.New("coqui: no audio data in response")
	}
	return audio.Resample(pcm, 1, info.SampleRate, audio.NarrationFormat.SampleRate), nil
}
