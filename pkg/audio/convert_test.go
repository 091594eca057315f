package audio_test

import (
	"encoding/binary"
	"errors"
	"slices"
	"testing"
	"time"

	"github.com/MrWong99/periodix/pkg/audio"
)

func samplesToBytes(samples []int16) []byte {
	buf := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(buf[i*2:], uint16(s))
	}
	return buf
}

func bytesToSamples(b []byte) []int16 {
	samples := make([]int16, len(b)/2)
	for i := range samples {
		samples[i] = int16(binary.LittleEndian.Uint16(b[i*2:]))
	}
	return samples
}

func TestMonoToStereo(t *testing.T) {
	got := bytesToSamples(audio.MonoToStereo(samplesToBytes([]int16{100, -200, 300})))
	want := []int16{100, 100, -200, -200, 300, 300}
	if !slices.Equal(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestStereoToMono(t *testing.T) {
	tests := []struct {
		name string
		in   []int16
		want []int16
	}{
		{"average", []int16{100, 200, -100, -200}, []int16{150, -150}},
		{"extremes", []int16{32767, 32767, -32768, -32768}, []int16{32767, -32768}},
		{"trailing half frame ignored", []int16{10, 20, 30}, []int16{15}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := bytesToSamples(audio.StereoToMono(samplesToBytes(tt.in)))
			if !slices.Equal(got, tt.want) {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestResample(t *testing.T) {
	t.Run("same rate is identity", func(t *testing.T) {
		pcm := samplesToBytes([]int16{1, 2, 3})
		if out := audio.Resample(pcm, 1, 24000, 24000); len(out) != len(pcm) {
			t.Fatalf("len = %d, want %d", len(out), len(pcm))
		}
	})

	t.Run("upsample doubles frames", func(t *testing.T) {
		out := bytesToSamples(audio.Resample(samplesToBytes([]int16{0, 100}), 1, 24000, 48000))
		want := []int16{0, 50, 100, 100}
		if !slices.Equal(out, want) {
			t.Errorf("got %v, want %v", out, want)
		}
	})

	t.Run("downsample halves frames", func(t *testing.T) {
		out := audio.Resample(samplesToBytes(make([]int16, 480)), 1, 48000, 24000)
		if len(out) != 240*2 {
			t.Errorf("len = %d, want %d", len(out), 240*2)
		}
	})

	t.Run("stereo keeps channels apart", func(t *testing.T) {
		in := samplesToBytes([]int16{100, -100, 100, -100})
		out := bytesToSamples(audio.Resample(in, 2, 24000, 48000))
		for i, s := range out {
			if i%2 == 0 && s != 100 || i%2 == 1 && s != -100 {
				t.Fatalf("sample %d = %d, channels mixed: %v", i, s, out)
			}
		}
	})
}

func TestConverter_Convert(t *testing.T) {
	conv, err := audio.NewConverter(audio.Format{SampleRate: 48000, Channels: 2})
	if err != nil {
		t.Fatalf("NewConverter: %v", err)
	}

	frame := audio.AudioFrame{
		Data:       samplesToBytes([]int16{10, 20, 30, 40}),
		SampleRate: 24000,
		Channels:   1,
		Timestamp:  40 * time.Millisecond,
	}
	got, err := conv.Convert(frame)
	if err != nil {
		t.Fatalf("Convert: %v", err)
	}
	if got.SampleRate != 48000 || got.Channels != 2 {
		t.Errorf("format = %dHz/%dch, want 48000Hz/2ch", got.SampleRate, got.Channels)
	}
	if len(got.Data) != 8*2*2 {
		t.Errorf("len = %d, want %d", len(got.Data), 8*2*2)
	}
	if got.Timestamp != frame.Timestamp {
		t.Errorf("timestamp = %v, want %v", got.Timestamp, frame.Timestamp)
	}
}

func TestConverter_Passthrough(t *testing.T) {
	conv, err := audio.NewConverter(audio.NarrationFormat)
	if err != nil {
		t.Fatalf("NewConverter: %v", err)
	}
	frame := audio.AudioFrame{Data: samplesToBytes([]int16{1, 2}), SampleRate: 24000, Channels: 1}
	got, err := conv.Convert(frame)
	if err != nil {
		t.Fatalf("Convert: %v", err)
	}
	if &got.Data[0] != &frame.Data[0] {
		t.Error("matching format should not copy data")
	}
}

func TestConverter_OddBytes(t *testing.T) {
	conv, _ := audio.NewConverter(audio.Format{SampleRate: 16000, Channels: 1})
	_, err := conv.Convert(audio.AudioFrame{Data: []byte{1, 2, 3}, SampleRate: 24000, Channels: 1})
	if !errors.Is(err, audio.ErrMalformedPCM) {
		t.Errorf("err = %v, want ErrMalformedPCM", err)
	}
}

func TestNewConverter_InvalidTarget(t *testing.T) {
	for _, f := range []audio.Format{{}, {SampleRate: 24000, Channels: 3}, {SampleRate: -1, Channels: 1}} {
		if _, err := audio.NewConverter(f); err == nil {
			t.Errorf("NewConverter(%v): expected error", f)
		}
	}
}
