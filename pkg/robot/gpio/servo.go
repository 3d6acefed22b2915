package gpio

import (
	"sync"
	"time"

	"github.com/teslashibe/go-rover/pkg/robot"
)

// Servo PWM runs at 50Hz with 1µs resolution.
const (
	servoHz    = 50
	servoCycle = 20000
)

// PWMServo is a hobby servo on a hardware PWM pin.
type PWMServo struct {
	pin    DutyPin
	mapper robot.PulseMapper

	mu    sync.Mutex
	angle int
}

// Servo configures pin for 50Hz PWM and returns the driver. It does not
// move the horn until the first SetAngle.
func (b *Board) Servo(pin int, mapper robot.PulseMapper) (*PWMServo, error) {
	if err := b.check(); err != nil {
		return nil, err
	}
	p, err := b.pwm(pin, servoHz, servoCycle)
	if err != nil {
		return nil, err
	}
	return NewPWMServo(p, mapper), nil
}

// NewPWMServo builds a servo on a duty pin with a 20ms cycle of 1µs steps.
func NewPWMServo(pin DutyPin, mapper robot.PulseMapper) *PWMServo {
	return &PWMServo{pin: pin, mapper: mapper, angle: robot.ServoMaxDegrees / 2}
}

// SetAngle commands a logical angle.
func (s *PWMServo) SetAngle(deg int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pin.SetDuty(uint32(s.mapper.PulseWidth(deg) / time.Microsecond))
	s.angle = deg
	return nil
}

// CurrentAngle returns the last commanded logical angle.
func (s *PWMServo) CurrentAngle() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.angle
}

// Close drops the pulse so the servo goes limp.
func (s *PWMServo) Close() error {
	s.pin.SetDuty(0)
	return nil
}

var _ robot.ServoDriver = (*PWMServo)(nil)
