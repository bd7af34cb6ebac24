package alertgate

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/GriffinCanCode/stripscan/internal/alert"
	"github.com/GriffinCanCode/stripscan/internal/zone"
)

type mockPlayer struct {
	mu     sync.Mutex
	played []alert.Pattern
	err    error
}

func (m *mockPlayer) Play(_ context.Context, p alert.Pattern) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.played = append(m.played, p)
	return m.err
}

func (m *mockPlayer) Close() error { return nil }

func (m *mockPlayer) patterns() []alert.Pattern {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]alert.Pattern(nil), m.played...)
}

// fakeClock lets tests move time past the cooldown.
type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestGate(p alert.Player, cooldownSec float64, enabled bool) (*Gate, *fakeClock) {
	clock := &fakeClock{t: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
	g := NewGate(p, cooldownSec, enabled)
	g.now = clock.now
	return g, clock
}

func TestGateDisabled(t *testing.T) {
	mock := &mockPlayer{}
	g, _ := newTestGate(mock, 3, false)

	if g.Notify(context.Background(), zone.Dry) {
		t.Error("disabled gate should not alert")
	}
	g.Wait()
	if len(mock.patterns()) != 0 {
		t.Error("should not play when disabled")
	}
}

func TestGateZones(t *testing.T) {
	tests := []struct {
		zone zone.Zone
		want bool
	}{
		{zone.Dry, true},
		{zone.Wet, true},
		{zone.Good, false},
		{zone.Unknown, false},
	}

	for _, tt := range tests {
		t.Run(tt.zone.String(), func(t *testing.T) {
			g, _ := newTestGate(&mockPlayer{}, 3, true)
			if got := g.Check(tt.zone); got != tt.want {
				t.Errorf("Check(%v) = %v, want %v", tt.zone, got, tt.want)
			}
		})
	}
}

func TestGateCooldown(t *testing.T) {
	mock := &mockPlayer{}
	g, clock := newTestGate(mock, 3, true)
	ctx := context.Background()

	if !g.Notify(ctx, zone.Dry) {
		t.Fatal("first alert should sound")
	}
	clock.advance(time.Second)
	if g.Notify(ctx, zone.Wet) {
		t.Error("should be in cooldown")
	}
	clock.advance(2 * time.Second)
	if !g.Notify(ctx, zone.Wet) {
		t.Error("should sound after cooldown")
	}
	g.Wait()

	got := mock.patterns()
	if len(got) != 2 {
		t.Fatalf("played %d patterns, want 2", len(got))
	}
	if got[0].Total() != alert.PatternFor(zone.Dry).Total() || got[1][0].Frequency != 900 {
		t.Errorf("unexpected patterns: %+v", got)
	}
}

func TestGateGoodDoesNotStartCooldown(t *testing.T) {
	g, _ := newTestGate(&mockPlayer{}, 3, true)
	g.Check(zone.Good)
	if !g.Check(zone.Dry) {
		t.Error("a Good reading should not consume the cooldown")
	}
}

func TestSetEnabledPlaysConfirmation(t *testing.T) {
	mock := &mockPlayer{}
	g, _ := newTestGate(mock, 3, false)
	ctx := context.Background()

	g.SetEnabled(ctx, true)
	if !g.IsEnabled() {
		t.Error("should be enabled")
	}
	g.SetEnabled(ctx, true)
	g.SetEnabled(ctx, false)
	if g.IsEnabled() {
		t.Error("should be disabled")
	}
	g.Wait()

	got := mock.patterns()
	if len(got) != 1 {
		t.Fatalf("played %d patterns, want only the confirmation", len(got))
	}
	if got[0][0].Frequency != 880 || got[0][0].Duration != 90*time.Millisecond {
		t.Errorf("confirmation = %+v", got[0])
	}
}

func TestNotifyPlaybackErrorIsAbsorbed(t *testing.T) {
	mock := &mockPlayer{err: errors.New("device gone")}
	g, _ := newTestGate(mock, 0, true)

	if !g.Notify(context.Background(), zone.Dry) {
		t.Error("gate should still report the alert as sounded")
	}
	g.Wait()
	if len(mock.patterns()) != 1 {
		t.Error("player should have been called")
	}
}

func TestNotifyOutlivesCancelledContext(t *testing.T) {
	mock := &mockPlayer{}
	g, _ := newTestGate(mock, 0, true)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	g.Notify(ctx, zone.Wet)
	g.Wait()
	if len(mock.patterns()) != 1 {
		t.Error("alert should play even after the request context ends")
	}
}
