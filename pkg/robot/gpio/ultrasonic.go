package gpio

import (
	"sync"
	"time"

	"github.com/teslashibe/go-rover/pkg/robot"
)

// Speed of sound in cm/s at room temperature.
const speedOfSoundCMPerSec = 34300

// SensorConfig wires and times an HC-SR04.
type SensorConfig struct {
	Trigger int // BCM pin
	Echo    int // BCM pin

	TriggerPulse time.Duration // Trigger high time
	StartTimeout time.Duration // Wait for the echo to rise
	EchoTimeout  time.Duration // Wait for the echo to fall
}

// DefaultSensorConfig returns the rover's wiring: trigger 23, echo 24.
func DefaultSensorConfig() SensorConfig {
	return SensorConfig{
		Trigger:      23,
		Echo:         24,
		TriggerPulse: 10 * time.Microsecond,
		StartTimeout: time.Second,
		EchoTimeout:  100 * time.Millisecond,
	}
}

// Ultrasonic is an HC-SR04 range sensor. Measurements are serialized.
type Ultrasonic struct {
	trig OutputPin
	echo InputPin
	cfg  SensorConfig

	now   func() time.Time
	sleep func(time.Duration)

	mu sync.Mutex
}

// Sensor configures the trigger and echo pins and returns the sensor.
func (b *Board) Sensor(cfg SensorConfig) (*Ultrasonic, error) {
	if err := b.check(); err != nil {
		return nil, err
	}
	return NewUltrasonic(b.output(cfg.Trigger), b.input(cfg.Echo), cfg), nil
}

// NewUltrasonic builds a sensor on arbitrary pins.
func NewUltrasonic(trig OutputPin, echo InputPin, cfg SensorConfig) *Ultrasonic {
	def := DefaultSensorConfig()
	if cfg.TriggerPulse <= 0 {
		cfg.TriggerPulse = def.TriggerPulse
	}
	if cfg.StartTimeout <= 0 {
		cfg.StartTimeout = def.StartTimeout
	}
	if cfg.EchoTimeout <= 0 {
		cfg.EchoTimeout = def.EchoTimeout
	}
	return &Ultrasonic{
		trig:  trig,
		echo:  echo,
		cfg:   cfg,
		now:   time.Now,
		sleep: time.Sleep,
	}
}

// Measure fires one ping and times the echo. A missing rising or falling
// edge yields robot.Timeout(); a decoded distance outside the sensor's
// range yields robot.OutOfRange().
func (u *Ultrasonic) Measure() robot.Reading {
	u.mu.Lock()
	defer u.mu.Unlock()

	u.trig.High()
	u.sleep(u.cfg.TriggerPulse)
	u.trig.Low()

	deadline := u.now().Add(u.cfg.StartTimeout)
	start := u.now()
	for !u.echo.IsHigh() {
		start = u.now()
		if start.After(deadline) {
			return robot.Timeout()
		}
	}

	deadline = u.now().Add(u.cfg.EchoTimeout)
	stop := u.now()
	for u.echo.IsHigh() {
		stop = u.now()
		if stop.After(deadline) {
			return robot.Timeout()
		}
	}

	return robot.Classify(EchoDistance(stop.Sub(start)))
}

// EchoDistance converts a round-trip echo time to centimeters.
func EchoDistance(echo time.Duration) float64 {
	return echo.Seconds() * speedOfSoundCMPerSec / 2
}

var _ robot.RangeSensor = (*Ultrasonic)(nil)
