// Package config handles stripscan process configuration
package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/GriffinCanCode/stripscan/internal/analysis"
	"github.com/GriffinCanCode/stripscan/internal/colorspace"
	apperrors "github.com/GriffinCanCode/stripscan/internal/errors"
)

type Config struct {
	HTTPAddr          string
	ReferenceColor    colorspace.RGB
	MaxSampleCount    int
	ClusterCount      int
	ClusterIterations int
	ClusterSeed       uint64
	CropFraction      float64
	ScanRate          float64 // Hz
	FrameSource       string  // file or directory; empty disables the scan loop
	FrameExtensions   []string
	MaxHashDistance   int
	HistoryMaxEntries int
	AlertsEnabled     bool
	AlertCooldown     float64 // seconds
	AudioSampleRate   int
	AudioDevice       string // substring of the output device name; empty = default
}

func Load() *Config {
	return &Config{
		HTTPAddr:          getEnv("HTTP_ADDR", ":8000"),
		ReferenceColor:    getEnvRGB("REFERENCE_COLOR", analysis.DefaultReference),
		MaxSampleCount:    getEnvInt("MAX_SAMPLE_COUNT", analysis.DefaultMaxSampleCount),
		ClusterCount:      getEnvInt("CLUSTER_COUNT", 3),
		ClusterIterations: getEnvInt("CLUSTER_ITERATIONS", 8),
		ClusterSeed:       getEnvUint64("CLUSTER_SEED", 0),
		CropFraction:      getEnvFloat("CROP_FRACTION", 0.28),
		ScanRate:          getEnvFloat("SCAN_RATE", 1.43),
		FrameSource:       getEnv("FRAME_SOURCE", ""),
		FrameExtensions:   extensions(getEnvList("FRAME_EXTENSIONS", []string{".png", ".jpg", ".jpeg", ".gif", ".bmp", ".tif", ".tiff", ".webp"})),
		MaxHashDistance:   getEnvInt("MAX_HASH_DISTANCE", 4),
		HistoryMaxEntries: getEnvInt("HISTORY_MAX_ENTRIES", 200),
		AlertsEnabled:     getEnvBool("ALERTS_ENABLED", true),
		AlertCooldown:     getEnvFloat("ALERT_COOLDOWN", 3.0),
		AudioSampleRate:   getEnvInt("AUDIO_SAMPLE_RATE", 44100),
		AudioDevice:       getEnv("AUDIO_DEVICE", ""),
	}
}

// Analysis returns the classifier settings.
func (c *Config) Analysis() analysis.Config {
	return analysis.Config{
		Reference:         c.ReferenceColor,
		MaxSampleCount:    c.MaxSampleCount,
		ClusterCount:      c.ClusterCount,
		ClusterIterations: c.ClusterIterations,
		Seed:              c.ClusterSeed,
	}
}

// Validate checks the values the service cannot start without.
func (c *Config) Validate() error {
	if err := c.Analysis().Validate(); err != nil {
		return err
	}
	switch {
	case c.CropFraction <= 0 || c.CropFraction > 1:
		return apperrors.Newf(apperrors.CodeConfigInvalid, "CROP_FRACTION must be in (0,1], got %g", c.CropFraction)
	case c.ScanRate <= 0:
		return apperrors.Newf(apperrors.CodeConfigInvalid, "SCAN_RATE must be positive, got %g", c.ScanRate)
	case c.HistoryMaxEntries < 1:
		return apperrors.Newf(apperrors.CodeConfigInvalid, "HISTORY_MAX_ENTRIES must be positive, got %d", c.HistoryMaxEntries)
	case c.AudioSampleRate < 1:
		return apperrors.Newf(apperrors.CodeConfigInvalid, "AUDIO_SAMPLE_RATE must be positive, got %d", c.AudioSampleRate)
	}
	return nil
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func getEnvUint64(key string, def uint64) uint64 {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.ParseUint(v, 10, 64); err == nil {
			return i
		}
	}
	return def
}

func getEnvFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getEnvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		return v == "true" || v == "1"
	}
	return def
}

func getEnvList(key string, def []string) []string {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		result := make([]string, 0, len(parts))
		for _, p := range parts {
			if t := strings.TrimSpace(p); t != "" {
				result = append(result, t)
			}
		}
		return result
	}
	return def
}

// extensions lowercases each entry and gives it a leading dot, the form
// filepath.Ext produces.
func extensions(list []string) []string {
	out := make([]string, 0, len(list))
	for _, e := range list {
		e = strings.ToLower(e)
		if !strings.HasPrefix(e, ".") {
			e = "." + e
		}
		out = append(out, e)
	}
	return out
}

// getEnvRGB parses "r,g,b" with each channel in 0-255.
func getEnvRGB(key string, def colorspace.RGB) colorspace.RGB {
	parts := getEnvList(key, nil)
	if len(parts) != 3 {
		return def
	}
	var ch [3]uint8
	for i, p := range parts {
		n, err := strconv.ParseUint(p, 10, 8)
		if err != nil {
			return def
		}
		ch[i] = uint8(n)
	}
	return colorspace.RGB{R: ch[0], G: ch[1], B: ch[2]}
}
