package audio

import (
	"encoding/binary"
	"fmt"
	"log/slog"
	"sync"
)

// Converter rewrites frames into a client's requested format. It logs once
// the first time a conversion is actually needed.
//
// A Converter belongs to one stream and is not safe for concurrent use.
type Converter struct {
	Target Format

	logOnce sync.Once
}

// NewConverter returns a converter targeting f.
func NewConverter(f Format) (*Converter, error) {
	if !f.Valid() {
		return nil, fmt.Errorf("audio: unsupported target format %s", f)
	}
	return &Converter{Target: f}, nil
}

// Convert returns frame in the target format. A frame already in the target
// format is returned as is. Frames with a trailing half sample are rejected
// with [ErrMalformedPCM].
func (c *Converter) Convert(frame AudioFrame) (AudioFrame, error) {
	if len(frame.Data)%BytesPerSample != 0 {
		return AudioFrame{}, fmt.Errorf("%w: odd byte count %d", ErrMalformedPCM, len(frame.Data))
	}
	src := Format{SampleRate: frame.SampleRate, Channels: frame.Channels}
	if src == c.Target {
		return frame, nil
	}
	if !src.Valid() {
		return AudioFrame{}, fmt.Errorf("audio: unsupported source format %s", src)
	}

	c.logOnce.Do(func() {
		slog.Debug("audio: converting stream", "from", src.String(), "to", c.Target.String())
	})

	pcm := frame.Data

	// Downmix before resampling and upmix after, so the resampler always
	// runs over the smaller stream.
	if src.Channels == 2 && c.Target.Channels == 1 {
		pcm = StereoToMono(pcm)
		src.Channels = 1
	}
	if src.SampleRate != c.Target.SampleRate {
		pcm = Resample(pcm, src.Channels, src.SampleRate, c.Target.SampleRate)
	}
	if src.Channels == 1 && c.Target.Channels == 2 {
		pcm = MonoToStereo(pcm)
	}

	return AudioFrame{
		Data:       pcm,
		SampleRate: c.Target.SampleRate,
		Channels:   c.Target.Channels,
		Timestamp:  frame.Timestamp,
	}, nil
}

func sampleAt(pcm []byte, i int) int16 {
	return int16(binary.LittleEndian.Uint16(pcm[i*BytesPerSample:]))
}

func putSample(pcm []byte, i int, s int16) {
	binary.LittleEndian.PutUint16(pcm[i*BytesPerSample:], uint16(s))
}

// MonoToStereo copies every mono sample into both channels.
func MonoToStereo(pcm []byte) []byte {
	n := len(pcm) / BytesPerSample
	out := make([]byte, n*2*BytesPerSample)
	for i := range n {
		s := sampleAt(pcm, i)
		putSample(out, 2*i, s)
		putSample(out, 2*i+1, s)
	}
	return out
}

// StereoToMono averages the left and right channel of every frame.
func StereoToMono(pcm []byte) []byte {
	n := len(pcm) / (2 * BytesPerSample)
	out := make([]byte, n*BytesPerSample)
	for i := range n {
		avg := (int32(sampleAt(pcm, 2*i)) + int32(sampleAt(pcm, 2*i+1))) / 2
		putSample(out, i, int16(avg))
	}
	return out
}

// Resample converts interleaved pcm with the given channel count from srcRate
// to dstRate using linear interpolation between neighbouring frames.
func Resample(pcm []byte, channels, srcRate, dstRate int) []byte {
	if srcRate <= 0 || dstRate <= 0 || channels <= 0 || srcRate == dstRate {
		return pcm
	}
	srcFrames := len(pcm) / (channels * BytesPerSample)
	if srcFrames == 0 {
		return nil
	}
	dstFrames := int(int64(srcFrames) * int64(dstRate) / int64(srcRate))
	out := make([]byte, dstFrames*channels*BytesPerSample)
	step := float64(srcRate) / float64(dstRate)

	for i := range dstFrames {
		pos := float64(i) * step
		idx := int(pos)
		frac := pos - float64(idx)
		next := min(idx+1, srcFrames-1)
		for ch := range channels {
			a := float64(sampleAt(pcm, idx*channels+ch))
			b := float64(sampleAt(pcm, next*channels+ch))
			putSample(out, i*channels+ch, int16(a+(b-a)*frac))
		}
	}
	return out
}

func formatString(rate, channels int) string {
	switch channels {
	case 1:
		return fmt.Sprintf("%dHz mono", rate)
	case 2:
		return fmt.Sprintf("%dHz stereo", rate)
	default:
		return fmt.Sprintf("%dHz %dch", rate, channels)
	}
}
