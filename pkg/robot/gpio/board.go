// Package gpio drives hardware wired straight to the Raspberry Pi header:
// an HC-SR04 ultrasonic sensor, an L298N dual H-bridge and a hobby servo on
// a hardware PWM pin. Register access goes through go-rpio.
package gpio

import (
	"errors"
	"fmt"
	"sync"

	"github.com/stianeikeland/go-rpio/v4"
)

var (
	// ErrNotPWM is returned for a pin without a hardware PWM channel.
	ErrNotPWM = errors.New("gpio: pin has no hardware PWM")

	// ErrClosed is returned when creating drivers on a closed board.
	ErrClosed = errors.New("gpio: board closed")
)

// pwmPins lists the BCM pins routed to the two PWM channels.
// 12/18 share channel 0 and 13/19 share channel 1.
var pwmPins = map[int]bool{12: true, 13: true, 18: true, 19: true}

// OutputPin is a digital output.
type OutputPin interface {
	High()
	Low()
}

// InputPin is a digital input.
type InputPin interface {
	IsHigh() bool
}

// DutyPin is a PWM output with a duty expressed in steps of its cycle.
type DutyPin interface {
	SetDuty(steps uint32)
}

// Board owns the memory-mapped GPIO registers. Drivers created from it stay
// valid until Close.
type Board struct {
	mu     sync.Mutex
	closed bool
}

// Open maps the GPIO registers. It needs /dev/gpiomem or root.
func Open() (*Board, error) {
	if err := rpio.Open(); err != nil {
		return nil, fmt.Errorf("gpio: open: %w", err)
	}
	return &Board{}, nil
}

// Close unmaps the registers. It is safe to call more than once.
func (b *Board) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	return rpio.Close()
}

func (b *Board) check() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return ErrClosed
	}
	return nil
}

func (b *Board) output(n int) OutputPin {
	p := rpio.Pin(n)
	p.Output()
	p.Low()
	return rpioPin{p}
}

func (b *Board) input(n int) InputPin {
	p := rpio.Pin(n)
	p.Input()
	return rpioPin{p}
}

// pwm configures n for hardware PWM at hz with cycle steps per period.
func (b *Board) pwm(n, hz int, cycle uint32) (DutyPin, error) {
	if !pwmPins[n] {
		return nil, fmt.Errorf("%w: %d", ErrNotPWM, n)
	}
	p := rpio.Pin(n)
	p.Mode(rpio.Pwm)
	p.Freq(hz * int(cycle))
	p.DutyCycle(0, cycle)
	return rpioPWM{pin: p, cycle: cycle}, nil
}

type rpioPin struct {
	pin rpio.Pin
}

func (p rpioPin) High()        { p.pin.High() }
func (p rpioPin) Low()         { p.pin.Low() }
func (p rpioPin) IsHigh() bool { return p.pin.Read() == rpio.High }

type rpioPWM struct {
	pin   rpio.Pin
	cycle uint32
}

func (p rpioPWM) SetDuty(steps uint32) {
	p.pin.DutyCycle(min(steps, p.cycle), p.cycle)
}
