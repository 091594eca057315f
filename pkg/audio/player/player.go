// Package player implements the narration playback controller: it owns one
// clip at a time and drives it through decode, buffer, play, pause and stop.
//
// A [Player] holds an explicitly acquired [audio.Output]; [Player.Close]
// releases it. Two players never coordinate with each other, callers that
// need mutual exclusion stop one before playing the other.
package player

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/MrWong99/periodix/pkg/audio"
)

// DecodeErrorMessage is the user-facing message set when a payload cannot be
// decoded into playable audio.
const DecodeErrorMessage = "لا يمكن فك تشفير الصوت."

// DefaultFrameDuration is the amount of audio handed to the output per write.
const DefaultFrameDuration = 20 * time.Millisecond

var (
	// ErrDecode is returned by SetAudioData when the payload is not valid PCM.
	ErrDecode = errors.New("player: cannot decode audio")

	// ErrSuperseded is returned by SetAudioData when a later SetAudioData or a
	// Stop invalidated the decode before it finished.
	ErrSuperseded = errors.New("player: audio data superseded")

	// ErrClosed is returned after the player has been closed.
	ErrClosed = errors.New("player: closed")
)

// State is the lifecycle state of a [Player].
type State int

const (
	// StateIdle means no clip is held.
	StateIdle State = iota
	// StateLoading means a payload is being decoded.
	StateLoading
	// StateReady means a decoded clip is buffered and not playing.
	StateReady
	// StatePlaying means the buffered clip is being written to the output.
	StatePlaying
	// StateError means the last payload failed to decode.
	StateError
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateLoading:
		return "loading"
	case StateReady:
		return "ready-paused"
	case StatePlaying:
		return "ready-playing"
	case StateError:
		return "error"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Status is a point-in-time snapshot of a player.
type Status struct {
	State State

	// Message is the localized error text, set only in StateError.
	Message string

	// Duration of the buffered clip, zero when nothing is buffered.
	Duration time.Duration
}

// Playing reports whether the clip is currently being played.
func (s Status) Playing() bool { return s.State == StatePlaying }

// Loading reports whether a payload is being decoded.
func (s Status) Loading() bool { return s.State == StateLoading }

// Option configures a [Player].
type Option func(*Player)

// WithFrameDuration sets how much audio is written per output call. A
// duration too short to hold one sample is ignored.
func WithFrameDuration(d time.Duration) Option {
	return func(p *Player) {
		if audio.NarrationFormat.FrameBytes(d) > 0 {
			p.frameDur = d
		}
	}
}

// WithRealtime controls whether frames are paced at the clip's playback
// rate. When false, frames are written as fast as the output accepts them.
func WithRealtime(enabled bool) Option {
	return func(p *Player) {
		p.realtime = enabled
	}
}

// WithDecoder replaces the payload decoder. The default is
// [audio.DecodeBase64PCM].
func WithDecoder(decode func(string) ([]byte, error)) Option {
	return func(p *Player) {
		if decode != nil {
			p.decode = decode
		}
	}
}

// WithLogger sets the logger used for playback diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(p *Player) {
		if l != nil {
			p.log = l
		}
	}
}

// Player is the playback controller. All exported methods are safe for
// concurrent use.
type Player struct {
	out      audio.Output
	format   audio.Format
	frameDur time.Duration
	realtime bool
	decode   func(string) ([]byte, error)
	log      *slog.Logger

	mu       sync.Mutex
	state    State
	buf      []byte
	message  string
	gen      uint64 // bumped by SetAudioData and Stop; stale decodes compare against it
	playID   uint64 // bumped whenever the active source is started or abandoned
	cancel   context.CancelFunc
	done     chan struct{}
	listener func(Status)
	closed   bool
}

// New creates an idle player writing 24 kHz mono PCM to out.
func New(out audio.Output, opts ...Option) *Player {
	p := &Player{
		out:      out,
		format:   audio.NarrationFormat,
		frameDur: DefaultFrameDuration,
		realtime: true,
		decode:   audio.DecodeBase64PCM,
		log:      slog.Default(),
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// OnStatus registers fn to be called after every state change. Only one
// listener is kept; a later call replaces the earlier one. fn is invoked
// without the player's lock held.
func (p *Player) OnStatus(fn func(Status)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.listener = fn
}

// Status returns the current snapshot.
func (p *Player) Status() Status {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.statusLocked()
}

// SetAudioData replaces the held clip with the decoded payload. Any active
// playback is halted first. While decoding the player reports
// [StateLoading]; on success it is [StateReady], on failure [StateError]
// with [DecodeErrorMessage] and no buffer.
//
// Concurrent calls race on a generation counter: only the most recent call
// updates the state, earlier ones return [ErrSuperseded].
func (p *Player) SetAudioData(payload string) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return ErrClosed
	}
	done := p.haltLocked()
	p.gen++
	gen := p.gen
	p.buf = nil
	p.message = ""
	p.state = StateLoading
	p.mu.Unlock()
	p.emit()
	wait(done)

	pcm, err := p.decode(payload)

	p.mu.Lock()
	if gen != p.gen || p.closed {
		p.mu.Unlock()
		return ErrSuperseded
	}
	if err != nil {
		p.state = StateError
		p.message = DecodeErrorMessage
		p.buf = nil
		p.mu.Unlock()
		p.log.Warn("player: failed to decode audio data", "err", err)
		p.emit()
		return fmt.Errorf("%w: %w", ErrDecode, err)
	}
	p.buf = pcm
	p.state = StateReady
	p.mu.Unlock()
	p.emit()
	return nil
}

// Play starts the buffered clip from its beginning. It does nothing and
// returns false unless the player is in [StateReady].
func (p *Player) Play() bool {
	p.mu.Lock()
	if p.closed || p.state != StateReady || len(p.buf) == 0 {
		p.mu.Unlock()
		return false
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	p.playID++
	id := p.playID
	p.cancel = cancel
	p.done = done
	p.state = StatePlaying
	frames := audio.Frames(p.buf, p.format, p.frameDur)
	p.mu.Unlock()
	p.emit()

	go p.stream(ctx, id, frames, done)
	return true
}

// Pause halts the playing clip. The clip stays buffered and the next Play
// starts from the beginning again. Pause returns once the output is no
// longer being written to; it returns false when nothing was playing.
func (p *Player) Pause() bool {
	p.mu.Lock()
	if p.state != StatePlaying || p.cancel == nil {
		p.mu.Unlock()
		return false
	}
	p.cancel()
	done := p.done
	p.mu.Unlock()

	// The stream goroutine moves the state back to ready once it observes
	// the cancellation.
	wait(done)
	return true
}

// Stop halts playback, discards the buffered clip and invalidates any decode
// in flight. The player ends in [StateIdle]. Stop is idempotent.
func (p *Player) Stop() {
	p.mu.Lock()
	done := p.haltLocked()
	p.gen++
	changed := p.state != StateIdle || p.message != ""
	p.buf = nil
	p.message = ""
	p.state = StateIdle
	p.mu.Unlock()

	wait(done)
	if changed {
		p.emit()
	}
}

// Close stops the player and releases its output. Later calls to
// SetAudioData return [ErrClosed] and Play becomes a no-op.
func (p *Player) Close() error {
	p.Stop()
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	p.mu.Unlock()
	return p.out.Close()
}

// haltLocked abandons the active source, if any, and returns its done
// channel so the caller can wait for it after releasing the lock.
func (p *Player) haltLocked() chan struct{} {
	if p.cancel == nil {
		return nil
	}
	p.cancel()
	p.playID++
	done := p.done
	p.cancel = nil
	p.done = nil
	return done
}

func (p *Player) stream(ctx context.Context, id uint64, frames []audio.AudioFrame, done chan struct{}) {
	defer close(done)
	defer p.finish(id)

	var tick *time.Ticker
	if p.realtime {
		tick = time.NewTicker(p.frameDur)
		defer tick.Stop()
	}

	for i, f := range frames {
		if i > 0 && tick != nil {
			select {
			case <-ctx.Done():
				return
			case <-tick.C:
			}
		}
		if err := p.out.WriteFrame(ctx, f); err != nil {
			if ctx.Err() == nil {
				p.log.Warn("player: output write failed", "err", err)
			}
			return
		}
	}

	if tick != nil {
		// Let the final frame drain before reporting completion.
		select {
		case <-ctx.Done():
		case <-tick.C:
		}
	}
}

// finish is the single completion path shared by natural end and Pause.
func (p *Player) finish(id uint64) {
	p.mu.Lock()
	if id != p.playID || p.state != StatePlaying {
		p.mu.Unlock()
		return
	}
	if p.cancel != nil {
		p.cancel()
	}
	p.cancel = nil
	p.done = nil
	p.state = StateReady
	p.mu.Unlock()
	p.emit()
}

func (p *Player) statusLocked() Status {
	return Status{
		State:    p.state,
		Message:  p.message,
		Duration: p.format.Duration(len(p.buf)),
	}
}

func (p *Player) emit() {
	p.mu.Lock()
	fn := p.listener
	st := p.statusLocked()
	p.mu.Unlock()
	if fn != nil {
		fn(st)
	}
}

func wait(done chan struct{}) {
	if done != nil {
		<-done
	}
}
