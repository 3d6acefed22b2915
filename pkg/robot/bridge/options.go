package bridge

import (
	"fmt"
	"strings"
	"time"

	"go.bug.st/serial"
)

// PortOptions describes the serial link to the microcontroller.
type PortOptions struct {
	BaudRate int
	DataBits int
	StopBits int
	Parity   string

	// ReplyTimeout bounds the wait for each reply line.
	ReplyTimeout time.Duration
}

// DefaultPortOptions returns 115200 8N1 with a 150ms reply timeout, enough
// for one HC-SR04 ping plus the round trip.
func DefaultPortOptions() PortOptions {
	return PortOptions{BaudRate: 115200, DataBits: 8, StopBits: 1, Parity: "N", ReplyTimeout: 150 * time.Millisecond}
}

// Normalize validates the options and fills unset values.
func (o PortOptions) Normalize() (PortOptions, error) {
	def := DefaultPortOptions()

	if o.BaudRate <= 0 {
		o.BaudRate = def.BaudRate
	}
	if o.DataBits == 0 {
		o.DataBits = def.DataBits
	}
	if o.DataBits < 5 || o.DataBits > 8 {
		return o, fmt.Errorf("bridge: invalid data bits %d: must be between 5 and 8", o.DataBits)
	}
	if o.StopBits == 0 {
		o.StopBits = def.StopBits
	}
	if o.StopBits != 1 && o.StopBits != 2 {
		return o, fmt.Errorf("bridge: invalid stop bits %d: must be 1 or 2", o.StopBits)
	}
	if o.ReplyTimeout <= 0 {
		o.ReplyTimeout = def.ReplyTimeout
	}

	switch p := strings.ToUpper(strings.TrimSpace(o.Parity)); p {
	case "", "N", "NONE":
		o.Parity = "N"
	case "E", "EVEN":
		o.Parity = "E"
	case "O", "ODD":
		o.Parity = "O"
	default:
		return o, fmt.Errorf("bridge: unsupported parity %q", o.Parity)
	}
	return o, nil
}

// SerialMode converts the options for serial.Open.
func (o PortOptions) SerialMode() (*serial.Mode, error) {
	opts, err := o.Normalize()
	if err != nil {
		return nil, err
	}

	mode := &serial.Mode{
		BaudRate: opts.BaudRate,
		DataBits: opts.DataBits,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	if opts.StopBits == 2 {
		mode.StopBits = serial.TwoStopBits
	}
	switch opts.Parity {
	case "E":
		mode.Parity = serial.EvenParity
	case "O":
		mode.Parity = serial.OddParity
	}
	return mode, nil
}
