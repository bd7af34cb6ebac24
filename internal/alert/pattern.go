// Package alert turns a zone into an audible beep pattern and plays it.
package alert

import (
	"math"
	"time"

	"github.com/GriffinCanCode/stripscan/internal/zone"
)

// Tone is one beep followed by an optional pause.
type Tone struct {
	Frequency float64       `json:"frequency"`
	Duration  time.Duration `json:"duration"`
	Gap       time.Duration `json:"gap,omitempty"`
}

// Pattern is a sequence of tones.
type Pattern []Tone

var (
	dryPattern = Pattern{
		{Frequency: 500, Duration: 220 * time.Millisecond, Gap: 40 * time.Millisecond},
		{Frequency: 600, Duration: 180 * time.Millisecond},
	}
	wetPattern = Pattern{
		{Frequency: 900, Duration: 220 * time.Millisecond, Gap: 40 * time.Millisecond},
		{Frequency: 780, Duration: 180 * time.Millisecond},
	}
	defaultPattern = Pattern{{Frequency: 880, Duration: 120 * time.Millisecond}}

	// ConfirmPattern is played when alerts are switched on.
	ConfirmPattern = Pattern{{Frequency: 880, Duration: 90 * time.Millisecond}}
)

// PatternFor returns the beep pattern for z. Dry rises from a low tone, Wet
// falls from a high one, anything else is one short beep.
func PatternFor(z zone.Zone) Pattern {
	switch z {
	case zone.Dry:
		return dryPattern
	case zone.Wet:
		return wetPattern
	default:
		return defaultPattern
	}
}

// ShouldAlert reports whether z warrants an audible alert.
func ShouldAlert(z zone.Zone) bool {
	return z == zone.Dry || z == zone.Wet
}

// Total returns the pattern's playing time including gaps.
func (p Pattern) Total() time.Duration {
	var d time.Duration
	for _, t := range p {
		d += t.Duration + t.Gap
	}
	return d
}

// Envelope constants for a click-free sine beep.
const (
	peakGain  = 0.2
	floorGain = 0.0001
	rampTime  = 20 * time.Millisecond
)

// Synthesize renders p as mono float32 samples at sampleRate.
func (p Pattern) Synthesize(sampleRate int) []float32 {
	out := make([]float32, 0, samplesFor(p.Total(), sampleRate))
	for _, t := range p {
		out = append(out, tone(t.Frequency, t.Duration, sampleRate)...)
		out = append(out, make([]float32, samplesFor(t.Gap, sampleRate))...)
	}
	return out
}

func samplesFor(d time.Duration, sampleRate int) int {
	return int(math.Round(d.Seconds() * float64(sampleRate)))
}

// tone is a sine with exponential attack and release ramps.
func tone(freq float64, d time.Duration, sampleRate int) []float32 {
	n := samplesFor(d, sampleRate)
	ramp := min(samplesFor(rampTime, sampleRate), n/2)
	buf := make([]float32, n)
	for i := range buf {
		g := peakGain
		switch {
		case ramp > 0 && i < ramp:
			g = expRamp(float64(i) / float64(ramp))
		case ramp > 0 && i >= n-ramp:
			g = expRamp(float64(n-1-i) / float64(ramp))
		}
		buf[i] = float32(g * math.Sin(2*math.Pi*freq*float64(i)/float64(sampleRate)))
	}
	return buf
}

// expRamp interpolates exponentially from floorGain (x=0) to peakGain (x=1).
func expRamp(x float64) float64 {
	return floorGain * math.Pow(peakGain/floorGain, x)
}
