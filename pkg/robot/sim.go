package robot

import (
	"log/slog"
	"math/rand/v2"
	"sync"
)

// SimServo is an in-memory servo used in simulation mode.
type SimServo struct {
	mu    sync.Mutex
	angle int
}

// NewSimServo returns a simulated servo resting at 90°.
func NewSimServo() *SimServo {
	return &SimServo{angle: 90}
}

// SetAngle records the commanded angle.
func (s *SimServo) SetAngle(deg int) error {
	s.mu.Lock()
	s.angle = clamp(deg, ServoMinDegrees, ServoMaxDegrees)
	s.mu.Unlock()
	return nil
}

// CurrentAngle returns the last commanded angle.
func (s *SimServo) CurrentAngle() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.angle
}

// SimSensor produces plausible ultrasonic readings.
// Distances are uniform in [MinCM, MaxCM]; TimeoutRate of them are dropped.
type SimSensor struct {
	MinCM       float64
	MaxCM       float64
	TimeoutRate float64

	mu  sync.Mutex
	rng *rand.Rand
}

// NewSimSensor returns a sensor reading 5-200cm with 5% timeouts.
func NewSimSensor(seed uint64) *SimSensor {
	return &SimSensor{
		MinCM:       5,
		MaxCM:       200,
		TimeoutRate: 0.05,
		rng:         rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
	}
}

// Measure returns a random reading.
func (s *SimSensor) Measure() Reading {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.rng.Float64() < s.TimeoutRate {
		return Timeout()
	}
	return Classify(s.MinCM + s.rng.Float64()*(s.MaxCM-s.MinCM))
}

// SimMotors logs drive commands instead of switching H-bridge pins.
type SimMotors struct {
	logger *slog.Logger

	mu    sync.Mutex
	dir   string
	speed int
}

// NewSimMotors returns simulated motors logging to logger.
func NewSimMotors(logger *slog.Logger) *SimMotors {
	if logger == nil {
		logger = slog.Default()
	}
	return &SimMotors{logger: logger, dir: "stopped"}
}

func (m *SimMotors) set(dir string, speed int) error {
	m.mu.Lock()
	m.dir, m.speed = dir, speed
	m.mu.Unlock()
	m.logger.Debug("sim motors", "dir", dir, "speed", speed)
	return nil
}

func (m *SimMotors) Forward(speed int) error  { return m.set("forward", speed) }
func (m *SimMotors) Backward(speed int) error { return m.set("backward", speed) }
func (m *SimMotors) Left(speed int) error     { return m.set("left", speed) }
func (m *SimMotors) Right(speed int) error    { return m.set("right", speed) }
func (m *SimMotors) Stop() error              { return m.set("stopped", 0) }

// State returns the current direction and speed.
func (m *SimMotors) State() (string, int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.dir, m.speed
}

// NewSimRig builds a fully simulated rig with the pan servo limited to
// [minAngle, maxAngle].
func NewSimRig(logger *slog.Logger, minAngle, maxAngle int) *Rig {
	return &Rig{
		Pan:    NewServoHandle(PanServoID, NewSimServo(), minAngle, maxAngle),
		Sensor: NewSimSensor(1),
		Motors: NewSimMotors(logger),
	}
}
