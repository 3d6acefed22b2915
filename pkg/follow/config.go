package follow

import "time"

// Config holds the follower tuning. Distances are in centimeters and speeds
// are duty percentages.
type Config struct {
	TargetCM     float64 // Distance to hold
	MinCM        float64 // Closer than this backs up
	MaxCM        float64 // Farther than this counts as lost
	NoiseFloorCM float64 // Readings below this are sensor noise
	ToleranceCM  float64 // Band around TargetCM where the motors stop

	ForwardSpeed  int
	BackwardSpeed int
	TurnSpeed     int

	MaxForwardPulse  time.Duration // Cap on a distance-scaled forward move
	MaxBackwardPulse time.Duration // Cap on a distance-scaled backward move
	BackupPulse      time.Duration // Fixed move when too close

	// Search
	ScanStep      int           // Degrees between search bearings
	SearchTimeout time.Duration // Give up after this long without a hit
	SearchSettle  time.Duration // Servo settle at each bearing
	NotFoundPause time.Duration // Pause after a sweep without a hit
	FoundPause    time.Duration // Pause after turning toward a hit

	// Servo
	ServoMin    int
	ServoMax    int
	ServoCenter int

	// Sampling at each evaluation or search stop
	SamplesPerReading int
	Retries           int

	// Timing
	Cycle           time.Duration // Pause after a regulation step
	StartSettle     time.Duration // Pause after the initial centering
	RecenterTimeout time.Duration // Bounded wait for the servo on shutdown
	StopTimeout     time.Duration // How long Stop waits for the loop
}

// DefaultConfig returns the follower defaults: hold 50cm, back up under
// 30cm, search beyond 150cm.
func DefaultConfig() Config {
	return Config{
		TargetCM:     50,
		MinCM:        30,
		MaxCM:        150,
		NoiseFloorCM: 5,
		ToleranceCM:  10,

		ForwardSpeed:  60,
		BackwardSpeed: 50,
		TurnSpeed:     50,

		MaxForwardPulse:  500 * time.Millisecond,
		MaxBackwardPulse: 300 * time.Millisecond,
		BackupPulse:      500 * time.Millisecond,

		ScanStep:      20,
		SearchTimeout: 10 * time.Second,
		SearchSettle:  300 * time.Millisecond,
		NotFoundPause: 500 * time.Millisecond,
		FoundPause:    300 * time.Millisecond,

		ServoMin:    30,
		ServoMax:    150,
		ServoCenter: 90,

		SamplesPerReading: 3,
		Retries:           1,

		Cycle:           200 * time.Millisecond,
		StartSettle:     500 * time.Millisecond,
		RecenterTimeout: 2 * time.Second,
		StopTimeout:     3 * time.Second,
	}
}

// Normalize keeps the distance thresholds ordered and fills missing values
// from DefaultConfig.
func (c Config) Normalize() Config {
	def := DefaultConfig()

	if c.MaxCM <= 0 {
		c.MaxCM = def.MaxCM
	}
	if c.MinCM <= 0 {
		c.MinCM = def.MinCM
	}
	if c.MinCM > c.MaxCM {
		c.MinCM, c.MaxCM = c.MaxCM, c.MinCM
	}
	if c.TargetCM < c.MinCM || c.TargetCM > c.MaxCM {
		c.TargetCM = min(max(def.TargetCM, c.MinCM), c.MaxCM)
	}
	if c.NoiseFloorCM < 0 {
		c.NoiseFloorCM = 0
	}
	if c.ToleranceCM <= 0 {
		c.ToleranceCM = def.ToleranceCM
	}

	c.ForwardSpeed = speedOr(c.ForwardSpeed, def.ForwardSpeed)
	c.BackwardSpeed = speedOr(c.BackwardSpeed, def.BackwardSpeed)
	c.TurnSpeed = speedOr(c.TurnSpeed, def.TurnSpeed)

	if c.ScanStep <= 0 {
		c.ScanStep = def.ScanStep
	}
	if c.SearchTimeout <= 0 {
		c.SearchTimeout = def.SearchTimeout
	}
	if c.ServoMin == 0 && c.ServoMax == 0 {
		c.ServoMin, c.ServoMax = def.ServoMin, def.ServoMax
	}
	if c.ServoMin > c.ServoMax {
		c.ServoMin, c.ServoMax = c.ServoMax, c.ServoMin
	}
	c.ServoMin = min(max(c.ServoMin, 0), 180)
	c.ServoMax = min(max(c.ServoMax, 0), 180)
	if c.ServoCenter == 0 {
		c.ServoCenter = (c.ServoMin + c.ServoMax) / 2
	}
	c.ServoCenter = min(max(c.ServoCenter, c.ServoMin), c.ServoMax)

	if c.SamplesPerReading <= 0 {
		c.SamplesPerReading = 1
	}
	if c.Retries < 0 {
		c.Retries = 0
	}
	if c.RecenterTimeout <= 0 {
		c.RecenterTimeout = def.RecenterTimeout
	}
	if c.StopTimeout <= 0 {
		c.StopTimeout = def.StopTimeout
	}
	return c
}

func speedOr(v, def int) int {
	if v <= 0 {
		return def
	}
	return min(v, 100)
}
