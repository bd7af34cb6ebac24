// Package colorspace holds the color value types shared by the classifier stages
// and the RGB to HSV conversion.
package colorspace

import (
	"fmt"
	"math"

	"github.com/lucasb-eyer/go-colorful"
)

// RGB is an 8-bit per channel color.
type RGB struct {
	R uint8 `json:"r" msgpack:"r"`
	G uint8 `json:"g" msgpack:"g"`
	B uint8 `json:"b" msgpack:"b"`
}

// HSV holds hue in degrees [0,360), saturation and value in [0,1].
type HSV struct {
	H float64 `json:"h" msgpack:"h"`
	S float64 `json:"s" msgpack:"s"`
	V float64 `json:"v" msgpack:"v"`
}

func (c RGB) String() string {
	return fmt.Sprintf("R %d G %d B %d", c.R, c.G, c.B)
}

func (h HSV) String() string {
	return fmt.Sprintf("H %d° S %d%% V %d%%", int(math.Round(h.H)), int(math.Round(h.S*100)), int(math.Round(h.V*100)))
}

// ToHSV converts c to HSV. Gray input yields hue 0.
//
// Hue is computed on the integer channels so that hues landing exactly on a
// zone boundary (160, 260, ...) come out exact.
func ToHSV(c RGB) HSV {
	r, g, b := int(c.R), int(c.G), int(c.B)
	hi, lo := max(r, g, b), min(r, g, b)
	d := hi - lo

	var h float64
	if d > 0 {
		var num int
		switch hi {
		case r:
			num = g - b
			if num < 0 {
				num += 6 * d
			}
		case g:
			num = b - r + 2*d
		default:
			num = r - g + 4*d
		}
		h = 60 * float64(num) / float64(d)
		if h >= 360 {
			h -= 360
		}
	}

	_, s, v := colorful.Color{
		R: float64(c.R) / 255,
		G: float64(c.G) / 255,
		B: float64(c.B) / 255,
	}.Hsv()
	return HSV{H: h, S: s, V: v}
}

// Distance is the Euclidean distance between a and b in 0-255 RGB space.
func Distance(a, b RGB) float64 {
	dr := float64(a.R) - float64(b.R)
	dg := float64(a.G) - float64(b.G)
	db := float64(a.B) - float64(b.B)
	return math.Sqrt(dr*dr + dg*dg + db*db)
}
