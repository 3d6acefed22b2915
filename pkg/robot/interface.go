// Package robot provides the hardware capability interfaces shared by the
// rover's control loops, plus simulated and mock implementations.
//
// This package follows the Interface Segregation Principle (ISP) by defining
// small, focused interfaces that can be composed as needed. Controllers
// receive these as constructor arguments and never reach into global state.
// Concrete drivers live in subpackages (pca9685, busservo, gpio, bridge).
package robot

// ServoDriver positions a hobby or bus servo.
// Angles are logical degrees; drivers apply reverse/offset and convert to
// pulse widths or raw positions internally.
type ServoDriver interface {
	SetAngle(deg int) error
	CurrentAngle() int
}

// RangeSensor takes a single distance measurement.
// Missing echoes are reported as sentinel readings, never as errors.
type RangeSensor interface {
	Measure() Reading
}

// DriveMotors drives a two-wheel differential chassis.
// Speeds are duty percentages 0..100. Each call changes direction and keeps
// the motors running until Stop or the next call; use Pulse for timed moves.
type DriveMotors interface {
	Forward(speed int) error
	Backward(speed int) error
	Left(speed int) error
	Right(speed int) error
	Stop() error
}

// Observer receives status events from the control loops (status display,
// dashboard). Implementations must not block.
type Observer interface {
	Notify(Event)
}

// Closer is implemented by drivers holding OS resources.
type Closer interface {
	Close() error
}

// Rig bundles the hardware handles a rover was built with.
// Any field may be nil when that piece of hardware is absent.
type Rig struct {
	Pan    *ServoHandle
	Sensor RangeSensor
	Motors DriveMotors

	closers []Closer
}

// AddCloser registers a resource released by Close.
func (r *Rig) AddCloser(c Closer) {
	if c != nil {
		r.closers = append(r.closers, c)
	}
}

// Close releases all driver resources in reverse registration order.
// It returns the first error encountered.
func (r *Rig) Close() error {
	var first error
	for i := len(r.closers) - 1; i >= 0; i-- {
		if err := r.closers[i].Close(); err != nil && first == nil {
			first = err
		}
	}
	r.closers = nil
	return first
}

// Ensure the simulated drivers implement the capability interfaces.
var (
	_ ServoDriver = (*SimServo)(nil)
	_ RangeSensor = (*SimSensor)(nil)
	_ DriveMotors = (*SimMotors)(nil)
)
