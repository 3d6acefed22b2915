// Package bridge talks to a microcontroller that owns the servo, the
// ultrasonic sensor and the motor driver, over a line-based serial protocol.
//
// Each request is one line and gets one reply line:
//
//	SERVO <deg>          -> OK
//	DIST                 -> DIST <cm> | DIST TIMEOUT
//	MOTOR <F|B|L|R> <n>  -> OK
//	STOP                 -> OK
//
// Any request may be answered with "ERR <reason>". A reply that misses its
// deadline is abandoned: pending input is flushed before the next request
// and a late reply of the wrong kind is discarded.
package bridge

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.bug.st/serial"

	"github.com/teslashibe/go-rover/pkg/robot"
)

var (
	// ErrReply is returned when the controller answers with ERR.
	ErrReply = errors.New("bridge: controller error")

	// ErrProtocol is returned for a reply that does not parse.
	ErrProtocol = errors.New("bridge: malformed reply")

	// ErrTimeout is returned when no reply line arrives in time.
	ErrTimeout = errors.New("bridge: reply timeout")
)

// pollInterval is the serial read timeout; replies are assembled from
// several short reads so the request deadline is enforced here.
const pollInterval = 20 * time.Millisecond

// inputResetter is implemented by serial.Port.
type inputResetter interface {
	ResetInputBuffer() error
}

// Bridge is a serial link to the microcontroller. It implements
// robot.ServoDriver, robot.RangeSensor and robot.DriveMotors; requests are
// serialized so the three can be shared by different loops.
type Bridge struct {
	port    io.ReadWriteCloser
	timeout time.Duration
	logger  *slog.Logger
	now     func() time.Time

	mu      sync.Mutex
	pending []byte
	buf     [64]byte
	angle   int
}

// Option configures a Bridge.
type Option func(*Bridge)

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(b *Bridge) {
		b.logger = logger
	}
}

// WithReplyTimeout bounds the wait for each reply line.
func WithReplyTimeout(d time.Duration) Option {
	return func(b *Bridge) {
		if d > 0 {
			b.timeout = d
		}
	}
}

// Open opens the serial port at path.
func Open(path string, opts PortOptions, options ...Option) (*Bridge, error) {
	opts, err := opts.Normalize()
	if err != nil {
		return nil, err
	}
	mode, err := opts.SerialMode()
	if err != nil {
		return nil, err
	}
	port, err := serial.Open(path, mode)
	if err != nil {
		return nil, fmt.Errorf("bridge: open %s: %w", path, err)
	}
	if err := port.SetReadTimeout(min(pollInterval, opts.ReplyTimeout)); err != nil {
		port.Close()
		return nil, fmt.Errorf("bridge: set read timeout: %w", err)
	}
	return New(port, append([]Option{WithReplyTimeout(opts.ReplyTimeout)}, options...)...), nil
}

// New wraps an open port.
func New(port io.ReadWriteCloser, options ...Option) *Bridge {
	b := &Bridge{
		port:    port,
		timeout: DefaultPortOptions().ReplyTimeout,
		logger:  slog.Default(),
		now:     time.Now,
		angle:   robot.ServoMaxDegrees / 2,
	}
	for _, opt := range options {
		opt(b)
	}
	return b
}

// Request sends one command line and returns the reply line.
func (b *Bridge) Request(cmd string) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.request(cmd)
}

func (b *Bridge) request(cmd string) (string, error) {
	b.flush()
	if _, err := io.WriteString(b.port, cmd+"\n"); err != nil {
		return "", fmt.Errorf("bridge: write %q: %w", cmd, err)
	}

	deadline := b.now().Add(b.timeout)
	for {
		line, err := b.readLine(deadline)
		if err != nil {
			b.flush()
			return "", fmt.Errorf("bridge: read reply to %q: %w", cmd, err)
		}
		b.logger.Debug("bridge exchange", "cmd", cmd, "reply", line)

		if reason, ok := strings.CutPrefix(line, "ERR"); ok {
			return "", fmt.Errorf("%w: %s", ErrReply, strings.TrimSpace(reason))
		}
		if stale(cmd, line) {
			b.logger.Debug("discarding stale reply", "cmd", cmd, "reply", line)
			continue
		}
		return line, nil
	}
}

// stale reports whether line answers a different kind of request than cmd.
func stale(cmd, line string) bool {
	if cmd == "DIST" {
		return line == "OK"
	}
	return strings.HasPrefix(line, "DIST ")
}

// readLine returns the next complete line. A read of zero bytes with no
// error is a serial read timeout; the loop keeps polling until deadline.
func (b *Bridge) readLine(deadline time.Time) (string, error) {
	for {
		if i := bytes.IndexByte(b.pending, '\n'); i >= 0 {
			line := strings.TrimSpace(string(b.pending[:i]))
			b.pending = b.pending[i+1:]
			if line == "" {
				continue
			}
			return line, nil
		}
		if !b.now().Before(deadline) {
			return "", ErrTimeout
		}
		n, err := b.port.Read(b.buf[:])
		b.pending = append(b.pending, b.buf[:n]...)
		if err != nil {
			return "", err
		}
	}
}

// flush drops buffered input so a late reply cannot answer the next request.
func (b *Bridge) flush() {
	b.pending = b.pending[:0]
	if r, ok := b.port.(inputResetter); ok {
		if err := r.ResetInputBuffer(); err != nil {
			b.logger.Debug("reset serial input", "error", err)
		}
	}
}

func (b *Bridge) command(cmd string) error {
	reply, err := b.Request(cmd)
	if err != nil {
		return err
	}
	if reply != "OK" {
		return fmt.Errorf("%w: %q to %q", ErrProtocol, reply, cmd)
	}
	return nil
}

// SetAngle moves the servo.
func (b *Bridge) SetAngle(deg int) error {
	if err := b.command(fmt.Sprintf("SERVO %d", deg)); err != nil {
		return err
	}
	b.mu.Lock()
	b.angle = deg
	b.mu.Unlock()
	return nil
}

// CurrentAngle returns the last commanded angle.
func (b *Bridge) CurrentAngle() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.angle
}

// Measure asks for one ping. Link failures are logged and reported as a
// timeout reading.
func (b *Bridge) Measure() robot.Reading {
	reply, err := b.Request("DIST")
	if err != nil {
		b.logger.Warn("distance request failed", "error", err)
		return robot.Timeout()
	}
	r, err := ParseDistance(reply)
	if err != nil {
		b.logger.Warn("distance reply", "error", err)
		return robot.Timeout()
	}
	return r
}

// ParseDistance decodes a DIST reply.
func ParseDistance(reply string) (robot.Reading, error) {
	value, ok := strings.CutPrefix(reply, "DIST ")
	if !ok {
		return robot.Reading{}, fmt.Errorf("%w: %q", ErrProtocol, reply)
	}
	value = strings.TrimSpace(value)
	if value == "TIMEOUT" {
		return robot.Timeout(), nil
	}
	cm, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return robot.Reading{}, fmt.Errorf("%w: %q", ErrProtocol, reply)
	}
	if cm < 0 {
		return robot.Timeout(), nil
	}
	return robot.Classify(cm), nil
}

var motorCodes = map[robot.Direction]string{
	robot.DirForward:  "F",
	robot.DirBackward: "B",
	robot.DirLeft:     "L",
	robot.DirRight:    "R",
}

func (b *Bridge) drive(dir robot.Direction, speed int) error {
	return b.command(fmt.Sprintf("MOTOR %s %d", motorCodes[dir], min(max(speed, 0), robot.MaxSpeed)))
}

func (b *Bridge) Forward(speed int) error  { return b.drive(robot.DirForward, speed) }
func (b *Bridge) Backward(speed int) error { return b.drive(robot.DirBackward, speed) }
func (b *Bridge) Left(speed int) error     { return b.drive(robot.DirLeft, speed) }
func (b *Bridge) Right(speed int) error    { return b.drive(robot.DirRight, speed) }

// Stop halts both motors.
func (b *Bridge) Stop() error {
	return b.command("STOP")
}

// Close stops the motors and closes the port.
func (b *Bridge) Close() error {
	stopErr := b.Stop()
	if stopErr != nil {
		b.logger.Warn("stop on close failed", "error", stopErr)
	}
	return b.port.Close()
}

var (
	_ robot.ServoDriver = (*Bridge)(nil)
	_ robot.RangeSensor = (*Bridge)(nil)
	_ robot.DriveMotors = (*Bridge)(nil)
)
