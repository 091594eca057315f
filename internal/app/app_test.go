package app_test

import (
	"context"
	"encoding/json"
	"errors"
	"math/rand/v2"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/MrWong99/periodix/internal/app"
	"github.com/MrWong99/periodix/internal/config"
	"github.com/MrWong99/periodix/pkg/provider/tts"
	ttsmock "github.com/MrWong99/periodix/pkg/provider/tts/mock"
)

// testConfig returns the default config listing the named providers.
func testConfig(providers ...string) *config.Config {
	cfg := config.Default()
	for _, name := range providers {
		cfg.Narration.Providers = append(cfg.Narration.Providers, config.ProviderEntry{Name: name})
	}
	return cfg
}

func registry(providers map[string]tts.Provider) *config.Registry {
	reg := config.NewRegistry()
	for name, p := range providers {
		reg.RegisterTTS(name, func(config.ProviderEntry) (tts.Provider, error) { return p, nil })
	}
	return reg
}

func newServer(t *testing.T, a *app.App) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(a.Handler())
	t.Cleanup(srv.Close)
	return srv
}

func narrate(t *testing.T, url string) (int, map[string]string) {
	t.Helper()
	resp, err := http.Post(url+"/api/narration", "application/json", strings.NewReader(`{"prompt":"hello"}`))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	var body map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return resp.StatusCode, body
}

func TestNew_Defaults(t *testing.T) {
	t.Parallel()

	a, err := app.New(context.Background(), testConfig(), config.NewRegistry(),
		app.WithRand(rand.New(rand.NewPCG(3, 4))))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	srv := newServer(t, a)

	resp, err := http.Get(srv.URL + "/api/quiz")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("quiz status = %d", resp.StatusCode)
	}

	status, body := narrate(t, srv.URL)
	if status != http.StatusInternalServerError || body["error"] != "API key is not configured on the server." {
		t.Errorf("narration = %d %v", status, body)
	}
}

func TestNew_ProviderFailover(t *testing.T) {
	t.Parallel()

	broken := &ttsmock.Provider{SynthesizeErr: errors.New("unavailable")}
	working := &ttsmock.Provider{SynthesizeResult: []byte("ABC")}
	a, err := app.New(context.Background(), testConfig("gemini", "openai"),
		registry(map[string]tts.Provider{"gemini": broken, "openai": working}))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	srv := newServer(t, a)

	status, body := narrate(t, srv.URL)
	if status != http.StatusOK || body["audioData"] != "QUJD" {
		t.Fatalf("narration = %d %v", status, body)
	}
	if len(broken.SynthesizeCalls()) != 1 || len(working.SynthesizeCalls()) != 1 {
		t.Errorf("calls = %d broken, %d working", len(broken.SynthesizeCalls()), len(working.SynthesizeCalls()))
	}

	resp, err := http.Get(srv.URL + "/readyz")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("readyz = %d", resp.StatusCode)
	}
}

func TestNew_WithSpeech(t *testing.T) {
	t.Parallel()

	p := &ttsmock.Provider{SynthesizeResult: []byte("ABC")}
	a, err := app.New(context.Background(), testConfig(), nil, app.WithSpeech(p))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if status, _ := narrate(t, newServer(t, a).URL); status != http.StatusOK {
		t.Errorf("status = %d", status)
	}
}

func TestNew_Errors(t *testing.T) {
	t.Parallel()

	missing := testConfig()
	missing.Dataset.Path = filepath.Join(t.TempDir(), "missing.yaml")

	invalid := testConfig()
	invalid.Dataset.Path = filepath.Join(t.TempDir(), "invalid.yaml")
	if err := os.WriteFile(invalid.Dataset.Path, []byte("elements: []\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name string
		cfg  *config.Config
		reg  *config.Registry
		want error
	}{
		{"unregistered provider", testConfig("coqui"), config.NewRegistry(), config.ErrProviderNotRegistered},
		{"no registry", testConfig("gemini"), nil, nil},
		{"missing dataset", missing, config.NewRegistry(), os.ErrNotExist},
		{"empty dataset", invalid, config.NewRegistry(), nil},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := app.New(context.Background(), tc.cfg, tc.reg)
			if err == nil {
				t.Fatal("expected error")
			}
			if tc.want != nil && !errors.Is(err, tc.want) {
				t.Errorf("err = %v, want %v", err, tc.want)
			}
		})
	}
}

func TestRun_Shutdown(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.Server.ListenAddr = "127.0.0.1:0"
	a, err := app.New(context.Background(), cfg, config.NewRegistry())
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()

	deadline := time.Now().Add(2 * time.Second)
	for a.Addr() == nil {
		if time.Now().After(deadline) {
			t.Fatal("server never started listening")
		}
		time.Sleep(5 * time.Millisecond)
	}

	resp, err := http.Get("http://" + a.Addr().String() + "/healthz")
	if err != nil {
		t.Fatalf("healthz: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("healthz = %d", resp.StatusCode)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run = %v, want nil", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}

	// A second shutdown is a no-op.
	if err := a.Shutdown(context.Background()); err != nil {
		t.Errorf("Shutdown = %v", err)
	}
}
