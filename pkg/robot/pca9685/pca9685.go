// Package pca9685 drives a hobby servo on one channel of a PCA9685 I2C PWM
// board through periph.io.
package pca9685

import (
	"fmt"
	"sync"
	"time"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/devices/v3/pca9685"
	"periph.io/x/host/v3"

	"github.com/teslashibe/go-rover/pkg/robot"
)

// The board divides each 50Hz period into 4096 counts.
const (
	frequency = 50 * physic.Hertz
	period    = 20 * time.Millisecond
	counts    = 4096
)

// Config selects the bus, address and channel.
type Config struct {
	Bus     string // periph bus name; empty picks the first bus
	Address uint16
	Channel int
	Mapper  robot.PulseMapper
}

// DefaultConfig returns the common 0x40 board with the servo on channel 0.
func DefaultConfig() Config {
	return Config{
		Address: 0x40,
		Channel: 0,
		Mapper:  robot.DefaultPulseMapper(),
	}
}

// Counts returns the off count for a pulse width within a 20ms period.
func Counts(pulse time.Duration) gpio.Duty {
	c := int64(pulse) * counts / int64(period)
	return gpio.Duty(min(max(c, 0), counts-1))
}

type pwmSetter interface {
	SetPwm(channel int, on, off gpio.Duty) error
}

// Servo is one PCA9685 channel driving a hobby servo.
type Servo struct {
	dev     pwmSetter
	channel int
	mapper  robot.PulseMapper
	bus     i2c.BusCloser

	mu    sync.Mutex
	angle int
}

// Open initializes the host drivers, opens the bus and sets the board to
// 50Hz.
func Open(cfg Config) (*Servo, error) {
	if cfg.Address == 0 {
		cfg.Address = DefaultConfig().Address
	}
	if cfg.Mapper.MaxPulse == 0 {
		cfg.Mapper = DefaultConfig().Mapper
	}
	if cfg.Channel < 0 || cfg.Channel > 15 {
		return nil, fmt.Errorf("pca9685: channel %d out of range 0..15", cfg.Channel)
	}

	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("pca9685: host init: %w", err)
	}
	bus, err := i2creg.Open(cfg.Bus)
	if err != nil {
		return nil, fmt.Errorf("pca9685: open bus %q: %w", cfg.Bus, err)
	}
	dev, err := pca9685.NewI2C(bus, cfg.Address)
	if err != nil {
		bus.Close()
		return nil, fmt.Errorf("pca9685: device 0x%02x: %w", cfg.Address, err)
	}
	if err := dev.SetPwmFreq(frequency); err != nil {
		bus.Close()
		return nil, fmt.Errorf("pca9685: set frequency: %w", err)
	}

	s := newServo(dev, cfg)
	s.bus = bus
	return s, nil
}

func newServo(dev pwmSetter, cfg Config) *Servo {
	return &Servo{
		dev:     dev,
		channel: cfg.Channel,
		mapper:  cfg.Mapper,
		angle:   robot.ServoMaxDegrees / 2,
	}
}

// SetAngle commands a logical angle.
func (s *Servo) SetAngle(deg int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	off := Counts(s.mapper.PulseWidth(deg))
	if err := s.dev.SetPwm(s.channel, 0, off); err != nil {
		return fmt.Errorf("pca9685: channel %d: %w", s.channel, err)
	}
	s.angle = deg
	return nil
}

// CurrentAngle returns the last commanded logical angle.
func (s *Servo) CurrentAngle() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.angle
}

// Close turns the channel off and releases the bus.
func (s *Servo) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	err := s.dev.SetPwm(s.channel, 0, 0)
	if s.bus != nil {
		if cerr := s.bus.Close(); err == nil {
			err = cerr
		}
		s.bus = nil
	}
	return err
}

var _ robot.ServoDriver = (*Servo)(nil)
