package audio

import (
	"encoding/base64"
	"errors"
	"fmt"
	"time"
)

// ErrMalformedPCM is returned when a payload cannot be interpreted as 16-bit
// PCM: it is empty, not valid base64, or has an odd number of bytes.
var ErrMalformedPCM = errors.New("audio: malformed PCM payload")

// DecodeBase64PCM decodes a standard base64 payload into raw 16-bit PCM.
// Payloads with a trailing half sample are rejected rather than truncated.
func DecodeBase64PCM(payload string) ([]byte, error) {
	if payload == "" {
		return nil, fmt.Errorf("%w: empty payload", ErrMalformedPCM)
	}
	pcm, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedPCM, err)
	}
	if len(pcm) == 0 {
		return nil, fmt.Errorf("%w: no samples", ErrMalformedPCM)
	}
	if len(pcm)%BytesPerSample != 0 {
		return nil, fmt.Errorf("%w: odd byte count %d", ErrMalformedPCM, len(pcm))
	}
	return pcm, nil
}

// EncodeBase64PCM is the inverse of [DecodeBase64PCM].
func EncodeBase64PCM(pcm []byte) string {
	return base64.StdEncoding.EncodeToString(pcm)
}

// Frames splits pcm into consecutive frames of frameDur in format f. The last
// frame may be shorter. Frames share memory with pcm.
func Frames(pcm []byte, f Format, frameDur time.Duration) []AudioFrame {
	size := f.FrameBytes(frameDur)
	if size <= 0 || len(pcm) == 0 {
		return nil
	}
	frames := make([]AudioFrame, 0, (len(pcm)+size-1)/size)
	for off := 0; off < len(pcm); off += size {
		end := min(off+size, len(pcm))
		frames = append(frames, AudioFrame{
			Data:       pcm[off:end],
			SampleRate: f.SampleRate,
			Channels:   f.Channels,
			Timestamp:  f.Duration(off),
		})
	}
	return frames
}
