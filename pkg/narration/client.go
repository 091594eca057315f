// Package narration turns element texts into spoken clips.
//
// [Client] talks to the narration endpoint over HTTP. [Service] is the
// endpoint's own logic and can be used in-process instead. Both satisfy
// [Fetcher]. A [Channel] binds a fetcher to one player, and a [Detail] pairs
// the description and electron-configuration channels of the element
// detail view.
package narration

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
)

// ErrSpeechUnavailable is the only error a [Fetcher] reports to its caller.
// The underlying cause is logged, never returned.
var ErrSpeechUnavailable = errors.New("failed to generate speech; try again later")

// Fetcher produces a base64 audio payload for a prompt.
type Fetcher interface {
	FetchNarration(ctx context.Context, prompt string) (string, error)
}

var _ Fetcher = (*Client)(nil)

const (
	// maxErrorBody caps how much of a failed response is read for logging.
	maxErrorBody = 4 << 10

	// DefaultMaxResponseBytes bounds a successful reply: about five minutes
	// of base64 narration PCM.
	DefaultMaxResponseBytes = 32 << 20
)

type request struct {
	Prompt string `json:"prompt"`
}

type response struct {
	AudioData string `json:"audioData"`
	Error     string `json:"error"`
}

// Client calls a remote narration endpoint.
type Client struct {
	endpoint string
	http     *http.Client
	log      *slog.Logger
	maxBody  int64
}

// ClientOption configures a [Client].
type ClientOption func(*Client)

// WithHTTPClient replaces the HTTP client. The default has no timeout.
func WithHTTPClient(c *http.Client) ClientOption {
	return func(cl *Client) {
		if c != nil {
			cl.http = c
		}
	}
}

// WithClientLogger sets the logger failures are reported to.
func WithClientLogger(l *slog.Logger) ClientOption {
	return func(cl *Client) {
		if l != nil {
			cl.log = l
		}
	}
}

// WithMaxResponseBytes bounds how much of a successful reply is read. A
// larger reply is treated as malformed.
func WithMaxResponseBytes(n int64) ClientOption {
	return func(cl *Client) {
		if n > 0 {
			cl.maxBody = n
		}
	}
}

// NewClient creates a client posting to endpoint, for example
// "http://localhost:8080/api/narration".
func NewClient(endpoint string, opts ...ClientOption) *Client {
	c := &Client{
		endpoint: endpoint,
		http:     &http.Client{},
		log:      slog.Default(),
		maxBody:  DefaultMaxResponseBytes,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// FetchNarration posts prompt and returns the audioData field of the reply
// unchanged. Every failure is reported as [ErrSpeechUnavailable]. The
// prompt is sent as-is, including when empty.
func (c *Client) FetchNarration(ctx context.Context, prompt string) (string, error) {
	data, err := c.fetch(ctx, prompt)
	if err != nil {
		c.log.ErrorContext(ctx, "narration: speech request failed", "endpoint", c.endpoint, "err", err)
		return "", ErrSpeechUnavailable
	}
	return data, nil
}

func (c *Client) fetch(ctx context.Context, prompt string) (string, error) {
	body, err := json.Marshal(request{Prompt: prompt})
	if err != nil {
		return "", fmt.Errorf("encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		text, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return "", fmt.Errorf("request failed with status %d: %s", resp.StatusCode, bytes.TrimSpace(text))
	}

	var r response
	if err := json.NewDecoder(io.LimitReader(resp.Body, c.maxBody)).Decode(&r); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if r.Error != "" {
		return "", fmt.Errorf("endpoint error: %s", r.Error)
	}
	if r.AudioData == "" {
		return "", errors.New("no audio data received from the server")
	}
	return r.AudioData, nil
}
