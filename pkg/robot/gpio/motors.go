package gpio

import (
	"fmt"
	"sync"

	"github.com/teslashibe/go-rover/pkg/robot"
)

// MotorConfig wires an L298N. EN pins carry PWM and must be hardware PWM
// capable; IN pins select direction.
type MotorConfig struct {
	LeftEN, LeftIN1, LeftIN2    int
	RightEN, RightIN1, RightIN2 int

	FrequencyHz int
}

// DefaultMotorConfig returns the rover's wiring.
func DefaultMotorConfig() MotorConfig {
	return MotorConfig{
		LeftEN: 12, LeftIN1: 5, LeftIN2: 6,
		RightEN: 13, RightIN1: 26, RightIN2: 16,
		FrequencyHz: 100,
	}
}

// Levels is the state of the four direction inputs.
type Levels struct {
	LeftIN1, LeftIN2, RightIN1, RightIN2 bool
}

// DirectionLevels returns the H-bridge inputs for a motion. Turning in
// place runs the two sides in opposite directions.
func DirectionLevels(dir robot.Direction) (Levels, error) {
	switch dir {
	case robot.DirForward:
		return Levels{true, false, true, false}, nil
	case robot.DirBackward:
		return Levels{false, true, false, true}, nil
	case robot.DirLeft:
		return Levels{false, true, true, false}, nil
	case robot.DirRight:
		return Levels{true, false, false, true}, nil
	default:
		return Levels{}, fmt.Errorf("gpio: unknown direction %d", int(dir))
	}
}

// L298N drives two DC motors through an L298N bridge.
type L298N struct {
	leftEN, rightEN        DutyPin
	lIN1, lIN2, rIN1, rIN2 OutputPin

	mu sync.Mutex
}

// Motors configures the bridge pins and returns the driver, stopped.
func (b *Board) Motors(cfg MotorConfig) (*L298N, error) {
	if err := b.check(); err != nil {
		return nil, err
	}
	if cfg.FrequencyHz <= 0 {
		cfg.FrequencyHz = DefaultMotorConfig().FrequencyHz
	}
	left, err := b.pwm(cfg.LeftEN, cfg.FrequencyHz, robot.MaxSpeed)
	if err != nil {
		return nil, fmt.Errorf("gpio: left enable: %w", err)
	}
	right, err := b.pwm(cfg.RightEN, cfg.FrequencyHz, robot.MaxSpeed)
	if err != nil {
		return nil, fmt.Errorf("gpio: right enable: %w", err)
	}
	return NewL298N(left, right,
		b.output(cfg.LeftIN1), b.output(cfg.LeftIN2),
		b.output(cfg.RightIN1), b.output(cfg.RightIN2)), nil
}

// NewL298N builds a driver on arbitrary pins. Duty pins use a cycle of
// robot.MaxSpeed steps so a speed maps to duty directly.
func NewL298N(leftEN, rightEN DutyPin, lIN1, lIN2, rIN1, rIN2 OutputPin) *L298N {
	m := &L298N{leftEN: leftEN, rightEN: rightEN, lIN1: lIN1, lIN2: lIN2, rIN1: rIN1, rIN2: rIN2}
	m.apply(Levels{}, 0)
	return m
}

func (m *L298N) drive(dir robot.Direction, speed int) error {
	lv, err := DirectionLevels(dir)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.apply(lv, min(max(speed, 0), robot.MaxSpeed))
	return nil
}

func (m *L298N) apply(lv Levels, speed int) {
	set(m.lIN1, lv.LeftIN1)
	set(m.lIN2, lv.LeftIN2)
	set(m.rIN1, lv.RightIN1)
	set(m.rIN2, lv.RightIN2)
	m.leftEN.SetDuty(uint32(speed))
	m.rightEN.SetDuty(uint32(speed))
}

func set(p OutputPin, high bool) {
	if high {
		p.High()
	} else {
		p.Low()
	}
}

func (m *L298N) Forward(speed int) error  { return m.drive(robot.DirForward, speed) }
func (m *L298N) Backward(speed int) error { return m.drive(robot.DirBackward, speed) }
func (m *L298N) Left(speed int) error     { return m.drive(robot.DirLeft, speed) }
func (m *L298N) Right(speed int) error    { return m.drive(robot.DirRight, speed) }

// Stop pulls every input low and drops the duty to zero.
func (m *L298N) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.apply(Levels{}, 0)
	return nil
}

// Close stops the motors.
func (m *L298N) Close() error {
	return m.Stop()
}

var _ robot.DriveMotors = (*L298N)(nil)
