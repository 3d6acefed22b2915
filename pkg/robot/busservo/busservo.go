// Package busservo drives a Feetech STS serial bus servo as the pan axis.
package busservo

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/hipsterbrown/feetech-servo/feetech"

	"github.com/teslashibe/go-rover/pkg/robot"
)

// STS servos report 4096 steps per turn with 2048 at the mechanical middle.
const (
	stepsPerTurn = 4096
	centerRaw    = 2048
)

// Config selects the bus and servo.
type Config struct {
	Port     string
	BaudRate int
	ID       int

	Offset  int  // Logical to physical shift in degrees
	Reverse bool // Mirror the direction

	Timeout time.Duration // Per bus transaction
}

// DefaultConfig returns a 1Mbaud STS bus with servo ID 1.
func DefaultConfig() Config {
	return Config{
		Port:     "/dev/ttyACM0",
		BaudRate: 1_000_000,
		ID:       1,
		Timeout:  200 * time.Millisecond,
	}
}

// Raw converts physical degrees (90 = servo middle) to a raw position.
func Raw(physical int) int {
	return centerRaw + int(math.Round(float64(physical-90)*stepsPerTurn/360))
}

// Degrees converts a raw position to physical degrees.
func Degrees(raw int) int {
	return 90 + int(math.Round(float64(raw-centerRaw)*360/stepsPerTurn))
}

type positionWriter interface {
	SetPositions(ctx context.Context, positions feetech.PositionMap) error
}

// Servo is a single bus servo used through the robot.ServoDriver interface.
type Servo struct {
	writer  positionWriter
	id      int
	mapper  robot.PulseMapper
	timeout time.Duration
	close   func() error

	mu    sync.Mutex
	angle int
}

// Open connects to the bus, enables torque and reads the current position.
func Open(cfg Config) (*Servo, error) {
	def := DefaultConfig()
	if cfg.Port == "" {
		cfg.Port = def.Port
	}
	if cfg.BaudRate <= 0 {
		cfg.BaudRate = def.BaudRate
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}

	bus, err := feetech.NewBus(feetech.BusConfig{
		Port:     cfg.Port,
		BaudRate: cfg.BaudRate,
		Protocol: feetech.ProtocolSTS,
	})
	if err != nil {
		return nil, fmt.Errorf("busservo: open bus: %w", err)
	}
	group := feetech.NewServoGroupByIDs(bus, cfg.ID)

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Timeout)
	defer cancel()
	if err := group.EnableAll(ctx); err != nil {
		bus.Close()
		return nil, fmt.Errorf("busservo: enable servo %d: %w", cfg.ID, err)
	}

	s := newServo(group, cfg)
	if pos, err := group.Positions(ctx); err == nil {
		if raw, ok := pos[cfg.ID]; ok {
			s.angle = s.logical(Degrees(raw))
		}
	}
	s.close = func() error {
		ctx, cancel := context.WithTimeout(context.Background(), cfg.Timeout)
		defer cancel()
		return errors.Join(group.DisableAll(ctx), bus.Close())
	}
	return s, nil
}

func newServo(w positionWriter, cfg Config) *Servo {
	return &Servo{
		writer:  w,
		id:      cfg.ID,
		mapper:  robot.PulseMapper{Offset: cfg.Offset, Reverse: cfg.Reverse},
		timeout: cfg.Timeout,
		angle:   robot.ServoMaxDegrees / 2,
	}
}

// logical inverts the mapper's reverse and offset.
func (s *Servo) logical(physical int) int {
	a := physical - s.mapper.Offset
	if s.mapper.Reverse {
		a = robot.ServoMaxDegrees - a
	}
	return a
}

// SetAngle commands a logical angle.
func (s *Servo) SetAngle(deg int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	raw := Raw(s.mapper.Physical(deg))
	if err := s.writer.SetPositions(ctx, feetech.PositionMap{s.id: raw}); err != nil {
		return fmt.Errorf("busservo: set servo %d to %d: %w", s.id, raw, err)
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

// Close disables torque and releases the serial port.
func (s *Servo) Close() error {
	if s.close == nil {
		return nil
	}
	return s.close()
}

var _ robot.ServoDriver = (*Servo)(nil)
