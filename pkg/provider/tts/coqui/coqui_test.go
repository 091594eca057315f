package coqui

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/MrWong99/periodix/pkg/provider/tts"
)

// makeWAV builds a 16-bit PCM WAV file with an extra chunk before data.
func makeWAV(rate, channels int, pcm []byte) []byte {
	var b []byte
	put32 := func(v uint32) { b = binary.LittleEndian.AppendUint32(b, v) }
	put16 := func(v uint16) { b = binary.LittleEndian.AppendUint16(b, v) }

	b = append(b, "RIFF"...)
	put32(0)
	b = append(b, "WAVE"...)
	b = append(b, "fmt "...)
	put32(16)
	put16(1)
	put16(uint16(channels))
	put32(uint32(rate))
	put32(uint32(rate * channels * 2))
	put16(uint16(channels * 2))
	put16(16)
	b = append(b, "LIST"...)
	put32(3)
	b = append(b, 'a', 'b', 'c', 0)
	b = append(b, "data"...)
	put32(uint32(len(pcm)))
	b = append(b, pcm...)
	return b
}

func TestNew(t *testing.T) {
	if _, err := New(""); err == nil {
		t.Error("expected error for empty server url")
	}
	if _, err := New("http://localhost", WithAPIMode("grpc")); err == nil {
		t.Error("expected error for unknown api mode")
	}
	p, err := New("http://localhost:5002/")
	if err != nil {
		t.Fatal(err)
	}
	if p.serverURL != "http://localhost:5002" || p.language != "ar" || p.apiMode != APIModeStandard {
		t.Errorf("defaults = %+v", p)
	}
}

func TestSynthesize_Standard(t *testing.T) {
	var gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet || r.URL.Path != apiTTSEndpoint {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		gotQuery = r.URL.RawQuery
		_, _ = w.Write(makeWAV(12000, 1, make([]byte, 200)))
	}))
	defer srv.Close()

	p, _ := New(srv.URL)
	pcm, err := p.Synthesize(context.Background(), "مرحبا", tts.Voice{ID: "spk1"})
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	// 100 samples at 12 kHz become 200 samples at 24 kHz.
	if len(pcm) != 400 {
		t.Errorf("pcm len = %d, want 400", len(pcm))
	}
	for _, want := range []string{"speaker_id=spk1", "language_id=ar", "text="} {
		if !strings.Contains(gotQuery, want) {
			t.Errorf("query %q missing %q", gotQuery, want)
		}
	}
}

func TestSynthesize_XTTS(t *testing.T) {
	var got xttsRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != xttsEndpoint {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_ = json.NewDecoder(r.Body).Decode(&got)
		_, _ = w.Write(makeWAV(24000, 2, make([]byte, 400)))
	}))
	defer srv.Close()

	p, _ := New(srv.URL, WithAPIMode(APIModeXTTS), WithDefaultVoice("Ana"), WithLanguage("en"))
	pcm, err := p.Synthesize(context.Background(), "hello", tts.Voice{})
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if len(pcm) != 200 {
		t.Errorf("pcm len = %d, want 200 (stereo folded to mono)", len(pcm))
	}
	if got.Text != "hello" || got.SpeakerWav != "Ana" || got.Language != "en" {
		t.Errorf("request = %+v", got)
	}
}

func TestSynthesize_Errors(t *testing.T) {
	tests := []struct {
		name    string
		mode    APIMode
		text    string
		handler http.HandlerFunc
		wantErr string
	}{
		{"empty text", APIModeStandard, " ", nil, tts.ErrEmptyText.Error()},
		{"xtts without voice", APIModeXTTS, "hi", nil, "voice is required"},
		{
			"server error", APIModeStandard, "hi",
			func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusInternalServerError) },
			"status 500",
		},
		{
			"not a wav", APIModeStandard, "hi",
			func(w http.ResponseWriter, _ *http.Request) { _, _ = w.Write([]byte("nope")) },
			"RIFF",
		},
		{
			"8-bit audio", APIModeStandard, "hi",
			func(w http.ResponseWriter, _ *http.Request) {
				wav := makeWAV(24000, 1, []byte{1, 2})
				binary.LittleEndian.PutUint16(wav[34:36], 8)
				_, _ = w.Write(wav)
			},
			"sample width",
		},
		{
			"empty data", APIModeStandard, "hi",
			func(w http.ResponseWriter, _ *http.Request) { _, _ = w.Write(makeWAV(24000, 1, nil)) },
			"no audio data",
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			url := "http://127.0.0.1:1"
			if tc.handler != nil {
				srv := httptest.NewServer(tc.handler)
				defer srv.Close()
				url = srv.URL
			}
			p, _ := New(url, WithAPIMode(tc.mode))
			_, err := p.Synthesize(context.Background(), tc.text, tts.Voice{})
			if err == nil || !strings.Contains(err.Error(), tc.wantErr) {
				t.Fatalf("err = %v, want it to contain %q", err, tc.wantErr)
			}
		})
	}
}

func TestSynthesize_ContextCanceled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	p, _ := New(srv.URL)
	if _, err := p.Synthesize(ctx, "hi", tts.Voice{}); !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}

func TestListVoices(t *testing.T) {
	tests := []struct {
		name string
		mode APIMode
		path string
		body string
		want []string
	}{
		{"xtts speakers", APIModeXTTS, studioSpeakersEndpoint, `{"Zoe":{},"Ana":{}}`, []string{"Ana", "Zoe"}},
		{"multi speaker", APIModeStandard, detailsEndpoint, `{"model_name":"vits","speakers":["p2","p1"]}`, []string{"p1", "p2"}},
		{"single speaker", APIModeStandard, detailsEndpoint, `{"model_name":"vits"}`, []string{"vits"}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path != tc.path {
					w.WriteHeader(http.StatusNotFound)
					return
				}
				_, _ = w.Write([]byte(tc.body))
			}))
			defer srv.Close()

			p, _ := New(srv.URL, WithAPIMode(tc.mode))
			voices, err := p.ListVoices(context.Background())
			if err != nil {
				t.Fatalf("ListVoices: %v", err)
			}
			if len(voices) != len(tc.want) {
				t.Fatalf("voices = %+v, want %v", voices, tc.want)
			}
			for i, v := range voices {
				if v.ID != tc.want[i] || v.Provider != "coqui" {
					t.Errorf("voice %d = %+v, want %s", i, v, tc.want[i])
				}
			}
		})
	}
}

func TestParseWAV_OddChunkPadding(t *testing.T) {
	wav := makeWAV(16000, 1, []byte{1, 0, 2, 0})
	info, err := parseWAV(wav)
	if err != nil {
		t.Fatal(err)
	}
	if info.SampleRate != 16000 || info.Channels != 1 || info.DataSize != 4 {
		t.Errorf("info = %+v", info)
	}
}
