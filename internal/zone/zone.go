// Package zone maps a strip color to one of four semantic zones through an
// ordered list of threshold rules. The first matching rule wins.
package zone

import (
	"fmt"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/GriffinCanCode/stripscan/internal/colorspace"
)

// Zone is the semantic classification of a strip color.
type Zone uint8

const (
	Unknown Zone = iota
	Dry
	Good
	Wet
)

var zoneNames = [...]string{"unknown", "dry", "good", "wet"}

// All lists every zone.
var All = []Zone{Dry, Good, Wet, Unknown}

func (z Zone) String() string {
	if int(z) < len(zoneNames) {
		return zoneNames[z]
	}
	return zoneNames[Unknown]
}

// Valid reports whether z is one of the four defined zones.
func (z Zone) Valid() bool {
	return int(z) < len(zoneNames)
}

// Parse converts a zone name back to a Zone.
func Parse(s string) (Zone, error) {
	for i, n := range zoneNames {
		if n == s {
			return Zone(i), nil
		}
	}
	return Unknown, fmt.Errorf("unknown zone %q", s)
}

// MarshalText implements encoding.TextMarshaler.
func (z Zone) MarshalText() ([]byte, error) {
	return []byte(z.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (z *Zone) UnmarshalText(b []byte) error {
	v, err := Parse(string(b))
	if err != nil {
		return err
	}
	*z = v
	return nil
}

// EncodeMsgpack writes the zone name as a msgpack str so both wire formats agree.
func (z Zone) EncodeMsgpack(enc *msgpack.Encoder) error {
	return enc.EncodeString(z.String())
}

// DecodeMsgpack implements msgpack.CustomDecoder.
func (z *Zone) DecodeMsgpack(dec *msgpack.Decoder) error {
	s, err := dec.DecodeString()
	if err != nil {
		return err
	}
	v, err := Parse(s)
	if err != nil {
		return err
	}
	*z = v
	return nil
}

// Input is what a rule inspects.
type Input struct {
	RGB colorspace.RGB
	HSV colorspace.HSV
	// Distance to the reference color.
	Distance float64
}

// Rule maps a predicate to a zone.
type Rule struct {
	Name  string
	Zone  Zone
	Match func(Input) bool
}

// Rule names, in evaluation order.
const (
	RuleDryViolet  = "dry-violet"
	RuleGoodPink   = "good-pink"
	RuleWetChannel = "wet-channel"
	RuleGoodHue    = "good-hue"
	RuleWetHue     = "wet-hue"
	RuleGoodNear   = "good-near"
	RuleUnknown    = "unknown"
)

// Rules returns the decision procedure. Order and thresholds are calibrated
// against the default reference color and must not be rearranged.
func Rules() []Rule {
	return []Rule{
		{RuleDryViolet, Dry, func(in Input) bool {
			r, b := int(in.RGB.R), int(in.RGB.B)
			return (in.HSV.H >= 260 && in.HSV.H <= 320) || (b-r > 45 && b > 110 && in.HSV.S > 0.12)
		}},
		{RuleGoodPink, Good, func(in Input) bool {
			r, g, b := int(in.RGB.R), int(in.RGB.G), int(in.RGB.B)
			return r > 150 && r-g > 20 && r-b > 15 && in.Distance < 90
		}},
		// Fires before good-hue, so a pink sample with a bright blue or green
		// channel lands in Wet.
		{RuleWetChannel, Wet, func(in Input) bool {
			return in.RGB.B > 150 || in.RGB.G > 150
		}},
		{RuleGoodHue, Good, func(in Input) bool {
			return (in.HSV.H >= 300 || in.HSV.H <= 30) && in.Distance < 130
		}},
		{RuleWetHue, Wet, func(in Input) bool {
			h := in.HSV.H
			return (h >= 180 && h <= 260) || (h >= 80 && h <= 160)
		}},
		{RuleGoodNear, Good, func(in Input) bool {
			return in.Distance < 140
		}},
		{RuleUnknown, Unknown, func(Input) bool { return true }},
	}
}

// Classifier evaluates the rule list against a fixed reference color.
type Classifier struct {
	reference colorspace.RGB
	rules     []Rule
}

// NewClassifier creates a classifier anchored at reference.
func NewClassifier(reference colorspace.RGB) *Classifier {
	return &Classifier{reference: reference, rules: Rules()}
}

// Classify returns the zone for rgb and its HSV form.
func (c *Classifier) Classify(rgb colorspace.RGB, hsv colorspace.HSV) Zone {
	z, _ := c.Explain(rgb, hsv)
	return z
}

// Explain returns the zone together with the name of the rule that produced it.
func (c *Classifier) Explain(rgb colorspace.RGB, hsv colorspace.HSV) (Zone, string) {
	in := Input{RGB: rgb, HSV: hsv, Distance: colorspace.Distance(rgb, c.reference)}
	for _, r := range c.rules {
		if r.Match(in) {
			return r.Zone, r.Name
		}
	}
	return Unknown, RuleUnknown
}
