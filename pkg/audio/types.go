// Package audio holds the PCM primitives shared by narration playback and the
// websocket transport: frames, formats, base64 payload decoding, and format
// conversion between the synthesis format and whatever a client asks for.
//
// All PCM in this package is signed 16-bit little-endian, interleaved when
// there is more than one channel.
package audio

import (
	"context"
	"time"
)

// BytesPerSample is the width of one 16-bit PCM sample.
const BytesPerSample = 2

// AudioFrame is a contiguous chunk of PCM handed to an [Output].
type AudioFrame struct {
	// Data is the PCM payload.
	Data []byte

	// SampleRate in Hz.
	SampleRate int

	// Channels is 1 for mono, 2 for stereo.
	Channels int

	// Timestamp is the offset of the first sample from the start of the clip.
	Timestamp time.Duration
}

// Format describes the sample rate and channel count of a PCM stream.
type Format struct {
	SampleRate int
	Channels   int
}

// NarrationFormat is the format produced by every speech provider and
// expected by the playback controller: 24 kHz mono.
var NarrationFormat = Format{SampleRate: 24000, Channels: 1}

// FrameBytes returns the byte length of d worth of PCM in f, rounded down to
// a whole number of sample frames.
func (f Format) FrameBytes(d time.Duration) int {
	if f.SampleRate <= 0 || f.Channels <= 0 || d <= 0 {
		return 0
	}
	samples := int(int64(f.SampleRate) * int64(d) / int64(time.Second))
	return samples * f.Channels * BytesPerSample
}

// Duration returns the playing time of n bytes of PCM in f.
func (f Format) Duration(n int) time.Duration {
	stride := f.Channels * BytesPerSample
	if f.SampleRate <= 0 || stride <= 0 {
		return 0
	}
	return time.Duration(int64(n/stride) * int64(time.Second) / int64(f.SampleRate))
}

// Valid reports whether f describes a stream this package can process.
func (f Format) Valid() bool {
	return f.SampleRate > 0 && (f.Channels == 1 || f.Channels == 2)
}

func (f Format) String() string {
	return formatString(f.SampleRate, f.Channels)
}

// Output is a sink for decoded PCM. The playback controller writes one clip
// at a time to it; implementations forward frames to a speaker, a websocket
// or a test recorder.
//
// WriteFrame must honour ctx: when ctx is cancelled it returns promptly with
// ctx.Err(). Close releases the sink; it is called exactly once by the owner.
type Output interface {
	WriteFrame(ctx context.Context, frame AudioFrame) error
	Close() error
}
