package elevenlabs_test

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/coder/websocket"

	"github.com/MrWong99/periodix/pkg/provider/tts"
	"github.com/MrWong99/periodix/pkg/provider/tts/elevenlabs"
)

type received struct {
	mu    sync.Mutex
	path  string
	query string
	texts []map[string]any
}

// startServer runs a fake stream-input endpoint that replies with chunks
// once it sees the closing empty-text frame.
func startServer(t *testing.T, chunks [][]byte, got *received) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/v1/voices" {
			if r.Header.Get("xi-api-key") != "key" {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			_, _ = w.Write([]byte(`{"voices":[{"voice_id":"v1","name":"Rachel","labels":{"language":"ar"}}]}`))
			return
		}
		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{InsecureSkipVerify: true})
		if err != nil {
			return
		}
		defer conn.Close(websocket.StatusNormalClosure, "done")

		got.mu.Lock()
		got.path, got.query = r.URL.Path, r.URL.RawQuery
		got.mu.Unlock()

		ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
		defer cancel()
		for {
			_, data, err := conn.Read(ctx)
			if err != nil {
				return
			}
			var msg map[string]any
			_ = json.Unmarshal(data, &msg)
			got.mu.Lock()
			got.texts = append(got.texts, msg)
			got.mu.Unlock()
			if msg["text"] == "" {
				break
			}
		}
		for _, c := range chunks {
			data, _ := json.Marshal(map[string]any{"audio": base64.StdEncoding.EncodeToString(c)})
			_ = conn.Write(ctx, websocket.MessageText, data)
		}
		data, _ := json.Marshal(map[string]any{"isFinal": true})
		_ = conn.Write(ctx, websocket.MessageText, data)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestNew_RequiresAPIKey(t *testing.T) {
	if _, err := elevenlabs.New(""); err == nil {
		t.Fatal("expected error for empty api key")
	}
}

func TestSynthesize(t *testing.T) {
	var got received
	srv := startServer(t, [][]byte{{1, 0}, {2, 0, 3, 0}}, &got)
	p, err := elevenlabs.New("key", elevenlabs.WithBaseURL(srv.URL))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	pcm, err := p.Synthesize(ctx, "مرحبا", tts.Voice{ID: "voice-1"})
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if string(pcm) != string([]byte{1, 0, 2, 0, 3, 0}) {
		t.Errorf("pcm = %v", pcm)
	}

	got.mu.Lock()
	defer got.mu.Unlock()
	if got.path != "/v1/text-to-speech/voice-1/stream-input" {
		t.Errorf("path = %q", got.path)
	}
	if !strings.Contains(got.query, "output_format=pcm_24000") {
		t.Errorf("query = %q, want pcm_24000 output", got.query)
	}
	if len(got.texts) != 3 {
		t.Fatalf("frames = %d, want 3", len(got.texts))
	}
	if got.texts[0]["xi_api_key"] != "key" {
		t.Error("first frame missing api key")
	}
	if !strings.Contains(got.texts[1]["text"].(string), "مرحبا") {
		t.Errorf("second frame = %v", got.texts[1])
	}
}

func TestSynthesize_NoAudio(t *testing.T) {
	var got received
	srv := startServer(t, nil, &got)
	p, _ := elevenlabs.New("key", elevenlabs.WithBaseURL(srv.URL), elevenlabs.WithDefaultVoice("v"))
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := p.Synthesize(ctx, "hi", tts.Voice{}); err == nil {
		t.Fatal("expected error when no audio arrives")
	}
}

func TestSynthesize_Validation(t *testing.T) {
	p, _ := elevenlabs.New("key")
	if _, err := p.Synthesize(context.Background(), " ", tts.Voice{ID: "v"}); err != tts.ErrEmptyText {
		t.Errorf("empty text err = %v", err)
	}
	if _, err := p.Synthesize(context.Background(), "hi", tts.Voice{}); err == nil {
		t.Error("expected error without a voice")
	}
}

func TestListVoices(t *testing.T) {
	var got received
	srv := startServer(t, nil, &got)
	p, _ := elevenlabs.New("key", elevenlabs.WithBaseURL(srv.URL))
	voices, err := p.ListVoices(context.Background())
	if err != nil {
		t.Fatalf("ListVoices: %v", err)
	}
	if len(voices) != 1 || voices[0].ID != "v1" || voices[0].Language != "ar" {
		t.Errorf("voices = %+v", voices)
	}

	bad, _ := elevenlabs.New("wrong", elevenlabs.WithBaseURL(srv.URL))
	if _, err := bad.ListVoices(context.Background()); err == nil {
		t.Error("expected error for unauthorized key")
	}
}
