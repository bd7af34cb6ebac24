// Package analysis runs the full strip pipeline: sample the pixel buffer,
// estimate its dominant color, convert to HSV, classify the zone and score it.
package analysis

import (
	"github.com/GriffinCanCode/stripscan/internal/colorspace"
	"github.com/GriffinCanCode/stripscan/internal/sampler"
	"github.com/GriffinCanCode/stripscan/internal/score"
	"github.com/GriffinCanCode/stripscan/internal/zone"
)

// Reading is the result of classifying one frame.
type Reading struct {
	RGB                colorspace.RGB `json:"rgb" msgpack:"rgb"`
	HSV                colorspace.HSV `json:"hsv" msgpack:"hsv"`
	Zone               zone.Zone      `json:"zone" msgpack:"zone"`
	GerminationPercent int            `json:"germinationPercent" msgpack:"germinationPercent"`
	Rule               string         `json:"rule" msgpack:"rule"`
}

// PreviewReading is the live meter value for a frame that was not classified.
type PreviewReading struct {
	RGB        colorspace.RGB `json:"rgb" msgpack:"rgb"`
	QuickScore int            `json:"quickScore" msgpack:"quickScore"`
}

// Classify turns buf into a Reading.
//
// It fails only when buf is empty or malformed. Degenerate cluster settings
// are not an error: the estimator falls back to the mean color.
func Classify(buf sampler.PixelBuffer, cfg Config) (Reading, error) {
	rgb, err := dominantColor(buf, cfg)
	if err != nil {
		return Reading{}, err
	}

	hsv := colorspace.ToHSV(rgb)
	z, rule := zone.NewClassifier(cfg.Reference).Explain(rgb, hsv)
	return Reading{
		RGB:                rgb,
		HSV:                hsv,
		Zone:               z,
		GerminationPercent: score.Germination(rgb, z, cfg.Reference),
		Rule:               rule,
	}, nil
}

// Preview estimates the dominant color of buf and its quick score.
func Preview(buf sampler.PixelBuffer, cfg Config) (PreviewReading, error) {
	rgb, err := dominantColor(buf, cfg)
	if err != nil {
		return PreviewReading{}, err
	}
	return PreviewReading{RGB: rgb, QuickScore: score.Quick(rgb)}, nil
}

func dominantColor(buf sampler.PixelBuffer, cfg Config) (colorspace.RGB, error) {
	if err := buf.Validate(); err != nil {
		return colorspace.RGB{}, err
	}
	n := cfg.MaxSampleCount
	if n < 1 {
		n = DefaultMaxSampleCount
	}
	return cfg.estimator().Estimate(sampler.Sample(buf, n))
}
