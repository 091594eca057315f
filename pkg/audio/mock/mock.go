// Package mock provides an in-memory [audio.Output] for unit tests.
//
// The mock records every frame it receives and can be gated so that tests can
// hold playback mid-clip and observe pause or stop behaviour deterministically:
//
//	out := mock.NewOutput()
//	out.Gate() // WriteFrame now blocks until Release or ctx cancellation
//	p := player.New(out)
package mock

import (
	"context"
	"sync"

	"github.com/MrWong99/periodix/pkg/audio"
)

var _ audio.Output = (*Output)(nil)

// Output is a mock implementation of [audio.Output]. It is safe for
// concurrent use.
type Output struct {
	mu     sync.Mutex
	frames []audio.AudioFrame
	closed bool
	gate   chan struct{}
	wrote  chan struct{}

	// WriteErr, if set, is returned by every WriteFrame call.
	WriteErr error

	// CloseErr is returned by Close.
	CloseErr error

	// CallCountClose records how many times Close was called.
	CallCountClose int
}

// NewOutput returns an ungated Output.
func NewOutput() *Output {
	return &Output{wrote: make(chan struct{}, 1024)}
}

// Gate makes subsequent WriteFrame calls block until [Output.Release] is
// called or their context is cancelled.
func (o *Output) Gate() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.gate == nil {
		o.gate = make(chan struct{})
	}
}

// Release opens the gate installed by [Output.Gate].
func (o *Output) Release() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.gate != nil {
		close(o.gate)
		o.gate = nil
	}
}

// WriteFrame implements [audio.Output]. The frame is recorded before the gate
// is consulted, so a gated writer still counts as "started".
func (o *Output) WriteFrame(ctx context.Context, frame audio.AudioFrame) error {
	o.mu.Lock()
	if o.WriteErr != nil {
		err := o.WriteErr
		o.mu.Unlock()
		return err
	}
	o.frames = append(o.frames, frame)
	gate := o.gate
	o.mu.Unlock()

	select {
	case o.wrote <- struct{}{}:
	default:
	}

	if gate == nil {
		return ctx.Err()
	}
	select {
	case <-gate:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close implements [audio.Output].
func (o *Output) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.CallCountClose++
	o.closed = true
	return o.CloseErr
}

// Written returns a channel that receives a value after each recorded frame.
func (o *Output) Written() <-chan struct{} {
	return o.wrote
}

// Frames returns a copy of all recorded frames.
func (o *Output) Frames() []audio.AudioFrame {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]audio.AudioFrame(nil), o.frames...)
}

// Bytes returns the total number of PCM bytes recorded.
func (o *Output) Bytes() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	n := 0
	for _, f := range o.frames {
		n += len(f.Data)
	}
	return n
}

// Closed reports whether Close has been called.
func (o *Output) Closed() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.closed
}

// Reset discards all recorded frames.
func (o *Output) Reset() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.frames = nil
}
