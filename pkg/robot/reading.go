package robot

import (
	"encoding/json"
	"fmt"
)

// Ultrasonic working range (HC-SR04 class sensors).
const (
	MinRangeCM = 2.0
	MaxRangeCM = 400.0
)

// Sentinel marks a reading that carries no distance.
type Sentinel int

const (
	// SentinelNone means the reading holds a valid distance.
	SentinelNone Sentinel = iota
	// SentinelTimeout means no echo was observed within the timing window.
	SentinelTimeout
	// SentinelOutOfRange means the echo decoded outside the sensor's range.
	SentinelOutOfRange
)

func (s Sentinel) String() string {
	switch s {
	case SentinelNone:
		return "none"
	case SentinelTimeout:
		return "timeout"
	case SentinelOutOfRange:
		return "out-of-range"
	default:
		return fmt.Sprintf("sentinel(%d)", int(s))
	}
}

// Reading is one range measurement: either a distance or a sentinel.
type Reading struct {
	DistanceCM float64
	Sentinel   Sentinel
}

// Distance returns a valid reading of d centimeters.
func Distance(d float64) Reading {
	return Reading{DistanceCM: d}
}

// Timeout returns the timeout sentinel reading.
func Timeout() Reading {
	return Reading{Sentinel: SentinelTimeout}
}

// OutOfRange returns the out-of-range sentinel reading.
func OutOfRange() Reading {
	return Reading{Sentinel: SentinelOutOfRange}
}

// Classify turns a raw distance into a reading, applying the sensor range.
func Classify(d float64) Reading {
	if d < MinRangeCM || d > MaxRangeCM {
		return OutOfRange()
	}
	return Distance(d)
}

// Valid reports whether the reading carries a distance.
func (r Reading) Valid() bool {
	return r.Sentinel == SentinelNone
}

func (r Reading) String() string {
	if r.Valid() {
		return fmt.Sprintf("%.1fcm", r.DistanceCM)
	}
	return r.Sentinel.String()
}

// MarshalJSON encodes valid readings as a number and sentinels as a string.
func (r Reading) MarshalJSON() ([]byte, error) {
	if r.Valid() {
		return json.Marshal(r.DistanceCM)
	}
	return json.Marshal(r.Sentinel.String())
}

// UnmarshalJSON accepts the forms written by MarshalJSON.
func (r *Reading) UnmarshalJSON(data []byte) error {
	var d float64
	if err := json.Unmarshal(data, &d); err == nil {
		*r = Distance(d)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("robot: reading must be a number or sentinel name: %w", err)
	}
	switch s {
	case SentinelTimeout.String():
		*r = Timeout()
	case SentinelOutOfRange.String():
		*r = OutOfRange()
	default:
		return fmt.Errorf("robot: unknown sentinel %q", s)
	}
	return nil
}
