// Package score turns a classified color into a germination percent.
package score

import (
	"math"

	"github.com/GriffinCanCode/stripscan/internal/colorspace"
	"github.com/GriffinCanCode/stripscan/internal/zone"
)

// Per-zone bounds and dampening applied to the distance-based base score.
const (
	goodMin, goodMax       = 60, 98
	dryMin, dryMax         = 12, 75
	wetMin, wetMax         = 10, 70
	unknownMin, unknownMax = 20, 90

	dryFactor = 0.55
	wetFactor = 0.45
)

// Quick score thresholds for the live meter.
const (
	quickLowBlue  = 100
	quickHighBlue = 170

	QuickLow  = 40
	QuickHigh = 55
	QuickMid  = 80
)

// Base is round(max(0, 100 - d)) where d is the distance to reference.
func Base(rgb, reference colorspace.RGB) int {
	d := colorspace.Distance(rgb, reference)
	return int(math.Round(math.Max(0, 100-d)))
}

// Germination returns the estimated germination percent for rgb in zone z.
// The result always lies in [0, 100].
func Germination(rgb colorspace.RGB, z zone.Zone, reference colorspace.RGB) int {
	base := Base(rgb, reference)
	switch z {
	case zone.Good:
		return clamp(base, goodMin, goodMax)
	case zone.Dry:
		return clamp(round(float64(base)*dryFactor), dryMin, dryMax)
	case zone.Wet:
		return clamp(round(float64(base)*wetFactor), wetMin, wetMax)
	default:
		return clamp(base, unknownMin, unknownMax)
	}
}

// Quick is the coarse blue-channel estimate shown while the camera is live.
func Quick(rgb colorspace.RGB) int {
	switch {
	case rgb.B < quickLowBlue:
		return QuickLow
	case rgb.B > quickHighBlue:
		return QuickHigh
	default:
		return QuickMid
	}
}

func round(v float64) int { return int(math.Round(v)) }

func clamp(v, lo, hi int) int {
	return min(max(v, lo), hi)
}
