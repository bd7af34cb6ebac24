package alert

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	apperrors "github.com/GriffinCanCode/stripscan/internal/errors"
	"github.com/GriffinCanCode/stripscan/internal/resilience"
	"github.com/GriffinCanCode/stripscan/internal/zone"
)

func TestPatternFor(t *testing.T) {
	tests := []struct {
		z     zone.Zone
		freqs []float64
		durs  []time.Duration
		gaps  []time.Duration
	}{
		{zone.Dry, []float64{500, 600}, []time.Duration{220 * time.Millisecond, 180 * time.Millisecond}, []time.Duration{40 * time.Millisecond, 0}},
		{zone.Wet, []float64{900, 780}, []time.Duration{220 * time.Millisecond, 180 * time.Millisecond}, []time.Duration{40 * time.Millisecond, 0}},
		{zone.Good, []float64{880}, []time.Duration{120 * time.Millisecond}, []time.Duration{0}},
		{zone.Unknown, []float64{880}, []time.Duration{120 * time.Millisecond}, []time.Duration{0}},
	}

	for _, tt := range tests {
		t.Run(tt.z.String(), func(t *testing.T) {
			p := PatternFor(tt.z)
			if len(p) != len(tt.freqs) {
				t.Fatalf("len(pattern) = %d, want %d", len(p), len(tt.freqs))
			}
			for i, tone := range p {
				if tone.Frequency != tt.freqs[i] || tone.Duration != tt.durs[i] || tone.Gap != tt.gaps[i] {
					t.Errorf("tone %d = %+v", i, tone)
				}
			}
		})
	}
}

func TestShouldAlert(t *testing.T) {
	want := map[zone.Zone]bool{zone.Dry: true, zone.Wet: true, zone.Good: false, zone.Unknown: false}
	for z, w := range want {
		if got := ShouldAlert(z); got != w {
			t.Errorf("ShouldAlert(%v) = %v, want %v", z, got, w)
		}
	}
}

func TestSynthesize(t *testing.T) {
	const rate = 8000
	p := PatternFor(zone.Dry)
	if p.Total() != 440*time.Millisecond {
		t.Fatalf("Total() = %v, want 440ms", p.Total())
	}

	samples := p.Synthesize(rate)
	if len(samples) != 3520 {
		t.Fatalf("len(samples) = %d, want 3520", len(samples))
	}

	var peak float64
	for _, s := range samples {
		peak = math.Max(peak, math.Abs(float64(s)))
	}
	if peak > peakGain+1e-6 || peak < peakGain*0.9 {
		t.Errorf("peak amplitude = %f, want about %f", peak, peakGain)
	}

	// attack starts near silence
	if math.Abs(float64(samples[1])) > 0.001 {
		t.Errorf("sample 1 = %f, want near zero", samples[1])
	}
	// 40ms gap after the first 220ms tone is silent
	for i := 1760; i < 2080; i++ {
		if samples[i] != 0 {
			t.Fatalf("gap sample %d = %f, want 0", i, samples[i])
		}
	}
}

func TestExpRamp(t *testing.T) {
	if v := expRamp(0); math.Abs(v-floorGain) > 1e-12 {
		t.Errorf("expRamp(0) = %g", v)
	}
	if v := expRamp(1); math.Abs(v-peakGain) > 1e-12 {
		t.Errorf("expRamp(1) = %g", v)
	}
}

func TestMatchDevice(t *testing.T) {
	names := []string{"Built-in Microphone", "MacBook Pro Speakers", "USB Audio Device", "HDMI"}
	outputs := []bool{false, true, true, true}

	tests := []struct {
		want string
		idx  int
	}{
		{"speakers", 1},
		{"usb", 2},
		{"microphone", -1},
		{"bluetooth", -1},
	}
	for _, tt := range tests {
		if got := matchDevice(names, outputs, tt.want); got != tt.idx {
			t.Errorf("matchDevice(%q) = %d, want %d", tt.want, got, tt.idx)
		}
	}
}

type failingPlayer struct{ calls int }

func (f *failingPlayer) Play(context.Context, Pattern) error {
	f.calls++
	return apperrors.New(apperrors.CodeAlertUnavailable, "device unplugged")
}

func (f *failingPlayer) Close() error { return nil }

func TestGuardedPlayerStopsCallingBrokenDevice(t *testing.T) {
	inner := &failingPlayer{}
	g := Guard(inner, resilience.New(resilience.Config{Threshold: 2, ResetTimeout: time.Hour, HalfOpenSuccesses: 1}))

	for i := 0; i < 5; i++ {
		err := g.Play(context.Background(), PatternFor(zone.Dry))
		if err == nil {
			t.Fatal("expected error")
		}
		if i >= 2 && !errors.Is(err, resilience.ErrOpen) {
			t.Errorf("call %d error = %v, want ErrOpen", i, err)
		}
	}
	if inner.calls != 2 {
		t.Errorf("inner calls = %d, want 2", inner.calls)
	}
}

func TestNopPlayer(t *testing.T) {
	var p Player = NopPlayer{}
	if err := p.Play(context.Background(), ConfirmPattern); err != nil {
		t.Errorf("Play() = %v", err)
	}
	if err := p.Close(); err != nil {
		t.Errorf("Close() = %v", err)
	}
}

func TestPortAudioPlayer(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping audio device test in short mode")
	}
	p, err := NewPortAudioPlayer(44100, "")
	if err != nil {
		t.Skipf("no audio output available: %v", err)
	}
	defer p.Close()

	if err := p.Play(context.Background(), ConfirmPattern); err != nil {
		t.Errorf("Play() = %v", err)
	}
}
