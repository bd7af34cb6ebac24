package resilience

import "time"

// Circuit breaker configuration constants
const (
	DefaultThreshold         = 5
	DefaultResetTimeout      = 30 * time.Second
	DefaultHalfOpenSuccesses = 3

	// Audio output: a missing or busy device fails every call, so give up
	// quickly and try again after a minute.
	AudioThreshold         = 3
	AudioResetTimeout      = 60 * time.Second
	AudioHalfOpenSuccesses = 1
)

// Config holds circuit breaker settings.
type Config struct {
	Name              string        // used in log lines
	Threshold         int           // failures before opening
	ResetTimeout      time.Duration // wait before half-open attempt
	HalfOpenSuccesses int           // successes needed to close
}

// DefaultConfig returns general-purpose defaults.
func DefaultConfig() Config {
	return Config{
		Name:              "default",
		Threshold:         DefaultThreshold,
		ResetTimeout:      DefaultResetTimeout,
		HalfOpenSuccesses: DefaultHalfOpenSuccesses,
	}
}

// AudioConfig returns settings for the alert tone player.
func AudioConfig() Config {
	return Config{
		Name:              "alert-audio",
		Threshold:         AudioThreshold,
		ResetTimeout:      AudioResetTimeout,
		HalfOpenSuccesses: AudioHalfOpenSuccesses,
	}
}

func (c Config) withDefaults() Config {
	if c.Name == "" {
		c.Name = "default"
	}
	if c.Threshold <= 0 {
		c.Threshold = DefaultThreshold
	}
	if c.ResetTimeout <= 0 {
		c.ResetTimeout = DefaultResetTimeout
	}
	if c.HalfOpenSuccesses <= 0 {
		c.HalfOpenSuccesses = DefaultHalfOpenSuccesses
	}
	return c
}
