// Package alertgate decides when a reading is worth an audible alert and
// plays it without blocking the caller.
package alertgate

import (
	"context"
	"sync"
	"time"

	"github.com/GriffinCanCode/stripscan/internal/alert"
	"github.com/GriffinCanCode/stripscan/internal/trace"
	"github.com/GriffinCanCode/stripscan/internal/zone"
)

// Gate applies the enabled flag and a cooldown in front of a Player.
type Gate struct {
	player   alert.Player
	mu       sync.Mutex
	enabled  bool
	cooldown time.Duration
	lastTime time.Time
	now      func() time.Time
	wg       sync.WaitGroup
}

// NewGate creates an alert gate.
func NewGate(player alert.Player, cooldownSec float64, enabled bool) *Gate {
	return &Gate{
		player:   player,
		enabled:  enabled,
		cooldown: time.Duration(cooldownSec * float64(time.Second)),
		now:      time.Now,
	}
}

// Check reports whether z should sound now and, if so, starts the cooldown.
func (g *Gate) Check(z zone.Zone) bool {
	if !alert.ShouldAlert(z) {
		return false
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.enabled {
		return false
	}
	now := g.now()
	if !g.lastTime.IsZero() && now.Sub(g.lastTime) < g.cooldown {
		return false
	}
	g.lastTime = now
	return true
}

// Notify plays the pattern for z in the background when Check allows it.
func (g *Gate) Notify(ctx context.Context, z zone.Zone) bool {
	if !g.Check(z) {
		return false
	}
	trace.Logger(ctx).Info("sounding alert", "zone", z.String())
	g.play(ctx, alert.PatternFor(z))
	return true
}

// SetEnabled toggles alerts. Switching on plays a short confirmation tone.
func (g *Gate) SetEnabled(ctx context.Context, enabled bool) {
	g.mu.Lock()
	was := g.enabled
	g.enabled = enabled
	g.mu.Unlock()

	trace.Logger(ctx).Info("alert state changed", "enabled", enabled)
	if enabled && !was {
		g.play(ctx, alert.ConfirmPattern)
	}
}

// IsEnabled returns the current enabled state.
func (g *Gate) IsEnabled() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.enabled
}

// Wait blocks until every pending alert has finished playing.
func (g *Gate) Wait() {
	g.wg.Wait()
}

func (g *Gate) play(ctx context.Context, p alert.Pattern) {
	// keeps trace values but outlives the request
	playCtx := context.WithoutCancel(ctx)
	g.wg.Add(1)
	go func() {
		defer g.wg.Done()
		if err := g.player.Play(playCtx, p); err != nil {
			trace.Logger(playCtx).Warn("alert playback failed", "error", err)
		}
	}()
}
