package narration_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/MrWong99/periodix/pkg/element"
	"github.com/MrWong99/periodix/pkg/narration"
	"github.com/MrWong99/periodix/pkg/provider/tts"
	"github.com/MrWong99/periodix/pkg/provider/tts/mock"
)

type recorder struct {
	mu   sync.Mutex
	errs []error
}

func (r *recorder) RecordNarration(_ context.Context, _ time.Duration, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errs = append(r.errs, err)
}

func TestService_Narrate(t *testing.T) {
	p := &mock.Provider{SynthesizeResult: []byte("ABC")}
	rec := &recorder{}
	voice := tts.Voice{ID: "Zephyr", Provider: "gemini"}
	s := narration.NewService(p, narration.WithVoice(voice), narration.WithRecorder(rec))

	got, err := s.Narrate(context.Background(), "hello")
	if err != nil {
		t.Fatalf("Narrate: %v", err)
	}
	if got != "QUJD" {
		t.Errorf("payload = %q, want QUJD", got)
	}
	calls := p.SynthesizeCalls()
	if len(calls) != 1 || calls[0].Text != "hello" || calls[0].Voice != voice {
		t.Errorf("calls = %+v", calls)
	}
	if len(rec.errs) != 1 || rec.errs[0] != nil {
		t.Errorf("recorded = %v", rec.errs)
	}
}

func TestService_Narrate_Errors(t *testing.T) {
	boom := errors.New("boom")
	tests := []struct {
		name     string
		provider tts.Provider
		prompt   string
		want     error
	}{
		{name: "blank prompt", provider: &mock.Provider{}, prompt: "  ", want: narration.ErrEmptyPrompt},
		{name: "no provider", provider: nil, prompt: "hello", want: narration.ErrNoProvider},
		{name: "provider failure", provider: &mock.Provider{SynthesizeErr: boom}, prompt: "hello", want: boom},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rec := &recorder{}
			s := narration.NewService(tc.provider, narration.WithRecorder(rec), narration.WithServiceLogger(quietLogger()))
			if _, err := s.Narrate(context.Background(), tc.prompt); !errors.Is(err, tc.want) {
				t.Errorf("err = %v, want %v", err, tc.want)
			}
			if len(rec.errs) != 1 || rec.errs[0] == nil {
				t.Errorf("recorded = %v, want one error", rec.errs)
			}
			if _, err := s.FetchNarration(context.Background(), tc.prompt); !errors.Is(err, narration.ErrSpeechUnavailable) {
				t.Errorf("FetchNarration err = %v, want ErrSpeechUnavailable", err)
			}
		})
	}
}

func TestService_EmptyAudio(t *testing.T) {
	s := narration.NewService(&mock.Provider{}, narration.WithServiceLogger(quietLogger()))
	if _, err := s.Narrate(context.Background(), "hello"); err == nil {
		t.Error("expected an error for an empty clip")
	}
	if !s.Configured() {
		t.Error("Configured = false with a provider")
	}
	if narration.NewService(nil).Configured() {
		t.Error("Configured = true without a provider")
	}
}

func TestPrompts(t *testing.T) {
	e := element.Element{Name: "الأكسجين", Description: "غاز ضروري للتنفس.", ElectronConfiguration: "[He] 2s2 2p4"}

	want := "أهلاً بك في عالم الكيمياء. سأقدم لك الآن شرحاً صوتياً شيقاً عن عنصر الأكسجين. غاز ضروري للتنفس."
	if got := narration.DescriptionPrompt(e); got != want {
		t.Errorf("DescriptionPrompt = %q, want %q", got, want)
	}
	want = "والآن، لنستمع إلى شرح مبسط للتوزيع الإلكتروني لعنصر الأكسجين، وهو [He] 2s2 2p4."
	if got := narration.ConfigurationPrompt(e); got != want {
		t.Errorf("ConfigurationPrompt = %q, want %q", got, want)
	}
}
