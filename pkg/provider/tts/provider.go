// Package tts defines the Provider interface for speech synthesis backends
// used to narrate element descriptions.
//
// Every provider returns a complete clip as raw 16-bit little-endian PCM at
// 24 kHz mono ([audio.NarrationFormat]); providers whose service produces a
// different rate resample before returning.
//
// Implementations must be safe for concurrent use.
package tts

import (
	"context"
	"errors"
)

// ErrEmptyText is returned when Synthesize is called without text.
var ErrEmptyText = errors.New("tts: text must not be empty")

// Voice selects the speaker used for synthesis.
type Voice struct {
	// ID is the provider-specific voice identifier (e.g. "Zephyr", "alloy").
	ID string

	// Name is a human-readable label.
	Name string

	// Provider names the backend the voice belongs to.
	Provider string

	// Language is an optional BCP 47 tag hint such as "ar".
	Language string
}

// Provider is the abstraction over any speech synthesis backend.
type Provider interface {
	// Synthesize renders text with voice and returns the whole clip as 24 kHz
	// mono 16-bit PCM. An empty voice ID selects the provider default.
	Synthesize(ctx context.Context, text string, voice Voice) ([]byte, error)

	// ListVoices returns the voices the provider can synthesize with.
	ListVoices(ctx context.Context) ([]Voice, error)
}
