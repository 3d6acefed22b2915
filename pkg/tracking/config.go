package tracking

import (
	"time"

	"github.com/teslashibe/go-rover/pkg/robot"
)

// Config holds all tunable parameters for face tracking
type Config struct {
	// Control law
	DeadZonePx int // Don't move while the face center is within this many pixels of frame center
	ServoStep  int // Degrees per correction

	// Servo range for tracking (tighter than the servo's mechanical bounds)
	ServoMin    int
	ServoMax    int
	ServoCenter int

	// Recenter after this many consecutive frames without a face
	MaxLostFrames int

	// Timing
	Interval    time.Duration // Loop cadence (~20Hz)
	FrameRetry  time.Duration // Back-off after a failed capture
	SettleDelay time.Duration // Pause after the initial centering
	StopTimeout time.Duration // How long Stop waits for the loop
}

// DefaultConfig returns the recommended configuration
func DefaultConfig() Config {
	return Config{
		DeadZonePx: 50,
		ServoStep:  5,

		ServoMin:    30,
		ServoMax:    150,
		ServoCenter: 90,

		MaxLostFrames: 30,

		Interval:    50 * time.Millisecond,
		FrameRetry:  100 * time.Millisecond,
		SettleDelay: 500 * time.Millisecond,
		StopTimeout: 3 * time.Second,
	}
}

// SlowConfig returns a configuration for slower, steadier tracking
func SlowConfig() Config {
	cfg := DefaultConfig()
	cfg.DeadZonePx = 80
	cfg.ServoStep = 3
	cfg.Interval = 100 * time.Millisecond
	return cfg
}

// AggressiveConfig returns a configuration for very fast tracking
func AggressiveConfig() Config {
	cfg := DefaultConfig()
	cfg.DeadZonePx = 30
	cfg.ServoStep = 8
	cfg.Interval = 33 * time.Millisecond
	return cfg
}

// Normalize fills zero values from DefaultConfig and keeps the servo range
// ordered, inside 0..180 and around the center.
func (c Config) Normalize() Config {
	def := DefaultConfig()
	if c.DeadZonePx < 0 {
		c.DeadZonePx = 0
	}
	if c.ServoStep <= 0 {
		c.ServoStep = def.ServoStep
	}
	if c.ServoMin == 0 && c.ServoMax == 0 {
		c.ServoMin, c.ServoMax = def.ServoMin, def.ServoMax
	}
	if c.ServoMin > c.ServoMax {
		c.ServoMin, c.ServoMax = c.ServoMax, c.ServoMin
	}
	c.ServoMin = min(max(c.ServoMin, robot.ServoMinDegrees), robot.ServoMaxDegrees)
	c.ServoMax = min(max(c.ServoMax, robot.ServoMinDegrees), robot.ServoMaxDegrees)
	if c.ServoCenter == 0 {
		c.ServoCenter = (c.ServoMin + c.ServoMax) / 2
	}
	c.ServoCenter = min(max(c.ServoCenter, c.ServoMin), c.ServoMax)
	if c.MaxLostFrames <= 0 {
		c.MaxLostFrames = def.MaxLostFrames
	}
	if c.Interval <= 0 {
		c.Interval = def.Interval
	}
	if c.FrameRetry <= 0 {
		c.FrameRetry = def.FrameRetry
	}
	if c.SettleDelay < 0 {
		c.SettleDelay = 0
	}
	if c.StopTimeout <= 0 {
		c.StopTimeout = def.StopTimeout
	}
	return c
}
