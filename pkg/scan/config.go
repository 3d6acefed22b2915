package scan

import (
	"fmt"
	"time"
)

// Config holds the sweep parameters.
// Use Normalize before running; Engine.Run does this for you.
type Config struct {
	StartAngle      int           `json:"start_angle"`
	EndAngle        int           `json:"end_angle"`
	Step            int           `json:"step"`
	Settle          time.Duration `json:"settle"`
	SamplesPerAngle int           `json:"samples_per_angle"`
	Retries         int           `json:"retries"`
}

// Accepted ranges. Values outside are clamped, never rejected.
const (
	MinAngle = 0
	MaxAngle = 180

	MinStep = 1
	MaxStep = 90

	MinSettle = 50 * time.Millisecond
	MaxSettle = time.Second

	MinSamples = 1
	MaxSamples = 9

	MinRetries = 0
	MaxRetries = 5
)

// Fixed sampler timings.
const (
	// RetryBackoff is the pause before re-measuring after a timeout.
	RetryBackoff = 40 * time.Millisecond

	// SampleGap separates consecutive samples at one angle to reduce
	// ultrasonic crosstalk.
	SampleGap = 30 * time.Millisecond

	// BlockedBelowCM marks an angle as blocked in the summary.
	BlockedBelowCM = 20.0
)

// DefaultConfig returns the recommended sweep: 30-150° in 15° steps,
// median of 3 samples, 2 retries.
func DefaultConfig() Config {
	return Config{
		StartAngle:      30,
		EndAngle:        150,
		Step:            15,
		Settle:          180 * time.Millisecond,
		SamplesPerAngle: 3,
		Retries:         2,
	}
}

func clampInt(name string, v, lo, hi int, warnings *[]string) int {
	if v < lo || v > hi {
		c := min(max(v, lo), hi)
		*warnings = append(*warnings, fmt.Sprintf("%s %d out of range [%d,%d], using %d", name, v, lo, hi, c))
		return c
	}
	return v
}

// Normalize clamps every field to its accepted range and swaps inverted
// start/end angles. It returns the adjusted config and one warning per
// adjustment.
func (c Config) Normalize() (Config, []string) {
	var warnings []string

	c.StartAngle = clampInt("start_angle", c.StartAngle, MinAngle, MaxAngle, &warnings)
	c.EndAngle = clampInt("end_angle", c.EndAngle, MinAngle, MaxAngle, &warnings)
	if c.StartAngle > c.EndAngle {
		warnings = append(warnings, fmt.Sprintf("start_angle %d > end_angle %d, swapping", c.StartAngle, c.EndAngle))
		c.StartAngle, c.EndAngle = c.EndAngle, c.StartAngle
	}
	c.Step = clampInt("step", c.Step, MinStep, MaxStep, &warnings)
	c.SamplesPerAngle = clampInt("samples_per_angle", c.SamplesPerAngle, MinSamples, MaxSamples, &warnings)
	c.Retries = clampInt("retries", c.Retries, MinRetries, MaxRetries, &warnings)

	if c.Settle < MinSettle || c.Settle > MaxSettle {
		s := min(max(c.Settle, MinSettle), MaxSettle)
		warnings = append(warnings, fmt.Sprintf("settle %v out of range [%v,%v], using %v", c.Settle, MinSettle, MaxSettle, s))
		c.Settle = s
	}

	return c, warnings
}

// Angles lists the stops from StartAngle to EndAngle inclusive by Step.
// The config must be normalized.
func (c Config) Angles() []int {
	if c.Step <= 0 || c.EndAngle < c.StartAngle {
		return nil
	}
	angles := make([]int, 0, (c.EndAngle-c.StartAngle)/c.Step+1)
	for a := c.StartAngle; a <= c.EndAngle; a += c.Step {
		angles = append(angles, a)
	}
	return angles
}

// Midpoint is where the servo rests after a sweep.
func (c Config) Midpoint() int {
	return (c.StartAngle + c.EndAngle) / 2
}
