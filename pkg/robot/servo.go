package robot

import (
	"sync"
	"time"
)

// Mechanical range of a standard hobby servo, in logical degrees.
const (
	ServoMinDegrees = 0
	ServoMaxDegrees = 180
)

// PanServoID is the actuator ID of the shared pan (neck) servo.
const PanServoID = "pan"

// clamp restricts v to the range [lo, hi].
func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// ServoHandle wraps a ServoDriver with an identity and safe angle bounds.
// Every angle is clamped to [MinAngle, MaxAngle] before it reaches the driver.
// Controllers should only call Set while holding the arbiter token for ID.
type ServoHandle struct {
	ID       string
	MinAngle int
	MaxAngle int

	driver ServoDriver

	mu      sync.Mutex
	last    int
	hasLast bool
}

// NewServoHandle creates a handle for driver limited to [minAngle, maxAngle].
// Inverted bounds are swapped and both are limited to the 0..180 range.
func NewServoHandle(id string, driver ServoDriver, minAngle, maxAngle int) *ServoHandle {
	if minAngle > maxAngle {
		minAngle, maxAngle = maxAngle, minAngle
	}
	return &ServoHandle{
		ID:       id,
		MinAngle: clamp(minAngle, ServoMinDegrees, ServoMaxDegrees),
		MaxAngle: clamp(maxAngle, ServoMinDegrees, ServoMaxDegrees),
		driver:   driver,
	}
}

// Available reports whether the handle is backed by a driver.
func (s *ServoHandle) Available() bool {
	return s != nil && s.driver != nil
}

// Clamp limits deg to the handle's safe bounds.
func (s *ServoHandle) Clamp(deg int) int {
	return clamp(deg, s.MinAngle, s.MaxAngle)
}

// Center returns the midpoint of the safe bounds.
func (s *ServoHandle) Center() int {
	return (s.MinAngle + s.MaxAngle) / 2
}

// Set clamps deg and commands the servo. It returns the angle actually sent.
func (s *ServoHandle) Set(deg int) (int, error) {
	if !s.Available() {
		return 0, &HardwareError{Component: "servo"}
	}
	angle := s.Clamp(deg)

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.driver.SetAngle(angle); err != nil {
		return angle, err
	}
	s.last = angle
	s.hasLast = true
	return angle, nil
}

// Angle returns the last commanded logical angle, falling back to the driver.
func (s *ServoHandle) Angle() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.hasLast {
		return s.last
	}
	if s.driver == nil {
		return s.Center()
	}
	return s.driver.CurrentAngle()
}

// PulseMapper converts logical servo angles to PWM pulse widths.
// Reverse mirrors the direction (180-a) and Offset shifts logical to
// physical degrees, as wired on the rover's neck mount.
type PulseMapper struct {
	MinPulse time.Duration // pulse at 0° physical
	MaxPulse time.Duration // pulse at 180° physical
	Offset   int
	Reverse  bool
}

// DefaultPulseMapper returns the 500-2400µs range most hobby servos accept.
func DefaultPulseMapper() PulseMapper {
	return PulseMapper{
		MinPulse: 500 * time.Microsecond,
		MaxPulse: 2400 * time.Microsecond,
	}
}

// Physical returns the physical angle for a logical one, limited to 0..180.
func (m PulseMapper) Physical(logical int) int {
	a := logical
	if m.Reverse {
		a = ServoMaxDegrees - a
	}
	return clamp(a+m.Offset, ServoMinDegrees, ServoMaxDegrees)
}

// PulseWidth returns the pulse width commanding the logical angle.
func (m PulseMapper) PulseWidth(logical int) time.Duration {
	phys := m.Physical(logical)
	span := m.MaxPulse - m.MinPulse
	return m.MinPulse + span*time.Duration(phys)/ServoMaxDegrees
}
