package score

import (
	"testing"

	"github.com/GriffinCanCode/stripscan/internal/colorspace"
	"github.com/GriffinCanCode/stripscan/internal/zone"
)

var reference = colorspace.RGB{R: 200, G: 100, B: 140}

func TestBase(t *testing.T) {
	tests := []struct {
		in   colorspace.RGB
		want int
	}{
		{reference, 100},
		{colorspace.RGB{R: 140, G: 60, B: 70}, 0},
		{colorspace.RGB{R: 200, G: 100, B: 110}, 70},
		{colorspace.RGB{R: 0, G: 0, B: 0}, 0},
		{colorspace.RGB{R: 203, G: 104, B: 140}, 95},
	}
	for _, tt := range tests {
		if got := Base(tt.in, reference); got != tt.want {
			t.Errorf("Base(%v) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestGermination(t *testing.T) {
	tests := []struct {
		name string
		in   colorspace.RGB
		z    zone.Zone
		want int
	}{
		{"good at reference caps at 98", reference, zone.Good, 98},
		{"good far floors at 60", colorspace.RGB{R: 140, G: 60, B: 70}, zone.Good, 60},
		{"good mid", colorspace.RGB{R: 200, G: 100, B: 110}, zone.Good, 70},
		{"dry rounds half up", colorspace.RGB{R: 200, G: 100, B: 110}, zone.Dry, 39},
		{"dry floors at 12", colorspace.RGB{R: 120, G: 80, B: 220}, zone.Dry, 12},
		{"dry at reference", reference, zone.Dry, 55},
		{"wet rounds half up", colorspace.RGB{R: 200, G: 100, B: 110}, zone.Wet, 32},
		{"wet floors at 10", colorspace.RGB{R: 60, G: 180, B: 60}, zone.Wet, 10},
		{"wet at reference", reference, zone.Wet, 45},
		{"unknown floors at 20", colorspace.RGB{R: 40, G: 40, B: 40}, zone.Unknown, 20},
		{"unknown caps at 90", reference, zone.Unknown, 90},
		{"unknown passthrough", colorspace.RGB{R: 200, G: 100, B: 110}, zone.Unknown, 70},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Germination(tt.in, tt.z, reference); got != tt.want {
				t.Errorf("Germination(%v, %v) = %d, want %d", tt.in, tt.z, got, tt.want)
			}
		})
	}
}

func TestGerminationBounds(t *testing.T) {
	bounds := map[zone.Zone][2]int{
		zone.Good:    {60, 98},
		zone.Dry:     {12, 75},
		zone.Wet:     {10, 70},
		zone.Unknown: {20, 90},
	}
	for r := 0; r < 256; r += 15 {
		for g := 0; g < 256; g += 15 {
			for b := 0; b < 256; b += 15 {
				in := colorspace.RGB{R: uint8(r), G: uint8(g), B: uint8(b)}
				for z, bnd := range bounds {
					got := Germination(in, z, reference)
					if got < bnd[0] || got > bnd[1] {
						t.Fatalf("Germination(%v, %v) = %d, outside [%d, %d]", in, z, got, bnd[0], bnd[1])
					}
				}
			}
		}
	}
}

func TestQuick(t *testing.T) {
	tests := []struct {
		b    uint8
		want int
	}{
		{0, 40},
		{99, 40},
		{100, 80},
		{170, 80},
		{171, 55},
		{255, 55},
	}
	for _, tt := range tests {
		if got := Quick(colorspace.RGB{R: 200, G: 100, B: tt.b}); got != tt.want {
			t.Errorf("Quick(B=%d) = %d, want %d", tt.b, got, tt.want)
		}
	}
}
