// Package bohr lays out electrons on Bohr-model shells and reveals them one
// by one for the element detail animation.
package bohr

import (
	"context"
	"math"
	"time"
)

// DefaultInterval is the delay between two revealed electrons.
const DefaultInterval = 50 * time.Millisecond

// Geometry of the rendered model, in SVG user units.
const (
	NucleusRadius = 15
	ShellGap      = 25
)

// Electron is one electron's position on its shell.
type Electron struct {
	// Index is the electron's position in reveal order.
	Index int `json:"index"`

	// Shell is 1-based, counted from the nucleus.
	Shell int `json:"shell"`

	// Angle in radians, evenly spaced within the shell.
	Angle float64 `json:"angle"`

	// Radius of the shell orbit.
	Radius float64 `json:"radius"`

	// Period of one orbit; outer shells turn slower.
	Period time.Duration `json:"period"`
}

// Layout returns the electrons of shells ordered shell by shell. The i-th
// electron of a shell holding n sits at angle i/n·2π. Shells with a
// non-positive count are skipped but still occupy their radius.
func Layout(shells []int) []Electron {
	total := 0
	for _, n := range shells {
		if n > 0 {
			total += n
		}
	}
	out := make([]Electron, 0, total)
	for s, n := range shells {
		shell := s + 1
		for i := 0; i < n; i++ {
			out = append(out, Electron{
				Index:  len(out),
				Shell:  shell,
				Angle:  float64(i) / float64(n) * 2 * math.Pi,
				Radius: float64(NucleusRadius + ShellGap*shell),
				Period: time.Duration(5*shell) * time.Second,
			})
		}
	}
	return out
}

// Reveal emits electrons in order: the first immediately, each following
// one interval later, all driven by a single ticker. It returns the number
// emitted, which is less than len(electrons) only when ctx was cancelled.
// A non-positive interval falls back to [DefaultInterval].
func Reveal(ctx context.Context, electrons []Electron, interval time.Duration, emit func(Electron)) int {
	if len(electrons) == 0 || ctx.Err() != nil {
		return 0
	}
	if interval <= 0 {
		interval = DefaultInterval
	}

	emit(electrons[0])
	if len(electrons) == 1 {
		return 1
	}

	tick := time.NewTicker(interval)
	defer tick.Stop()
	for n := 1; n < len(electrons); n++ {
		select {
		case <-ctx.Done():
			return n
		case <-tick.C:
			if ctx.Err() != nil {
				return n
			}
			emit(electrons[n])
		}
	}
	return len(electrons)
}
