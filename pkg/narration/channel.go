package narration

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/MrWong99/periodix/pkg/audio/player"
)

// ErrStale is returned by [Channel.Load] when a later Load or Reset
// superseded the request while it was in flight. The fetched clip is
// dropped.
var ErrStale = errors.New("narration: request superseded")

// Channel binds one [Fetcher] to one [player.Player]. Each Load is tagged
// with a generation so a slow response can never overwrite the clip of a
// newer request.
type Channel struct {
	name   string
	player *player.Player
	fetch  Fetcher

	mu  sync.Mutex // serialises the generation check with SetAudioData
	gen uint64
}

// NewChannel creates a channel. name labels status events.
func NewChannel(name string, p *player.Player, f Fetcher) *Channel {
	return &Channel{name: name, player: p, fetch: f}
}

// Name returns the channel label.
func (c *Channel) Name() string { return c.name }

// Player returns the underlying player.
func (c *Channel) Player() *player.Player { return c.player }

// Status returns the player's snapshot.
func (c *Channel) Status() player.Status { return c.player.Status() }

// Load stops the current clip, fetches prompt and hands the payload to the
// player. It returns [ErrStale] if another Load or Reset happened meanwhile,
// [ErrSpeechUnavailable] if the fetch failed, or the player's decode error.
func (c *Channel) Load(ctx context.Context, prompt string) error {
	gen := c.invalidate()

	data, err := c.fetch.FetchNarration(ctx, prompt)

	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.gen {
		return ErrStale
	}
	if err != nil {
		return err
	}
	if err := c.player.SetAudioData(data); err != nil {
		if errors.Is(err, player.ErrSuperseded) {
			return ErrStale
		}
		return fmt.Errorf("narration: %s: %w", c.name, err)
	}
	return nil
}

// Reset drops any in-flight Load and stops the player.
func (c *Channel) Reset() {
	c.invalidate()
}

func (c *Channel) invalidate() uint64 {
	c.mu.Lock()
	c.gen++
	gen := c.gen
	c.mu.Unlock()
	c.player.Stop()
	return gen
}

// Ready reports whether a clip is buffered and can be played.
func (c *Channel) Ready() bool {
	st := c.player.Status().State
	return st == player.StateReady || st == player.StatePlaying
}

// Toggle pauses a playing clip or plays a buffered one. It reports whether
// the channel is playing afterwards.
func (c *Channel) Toggle() bool {
	if c.player.Pause() {
		return false
	}
	return c.player.Play()
}

// Pause halts playback and keeps the clip.
func (c *Channel) Pause() { c.player.Pause() }
