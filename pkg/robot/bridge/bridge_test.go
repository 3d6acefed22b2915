package bridge

import (
	"bytes"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"go.bug.st/serial"

	"github.com/teslashibe/go-rover/pkg/robot"
)

// fakeController answers each complete command line through reply.
type fakeController struct {
	mu      sync.Mutex
	reply   func(cmd string) string
	pending bytes.Buffer
	out     bytes.Buffer
	cmds    []string
	closed  bool
}

func (f *fakeController) Write(p []byte) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pending.Write(p)
	for {
		line, err := f.pending.ReadString('\n')
		if err != nil {
			f.pending.WriteString(line)
			return len(p), nil
		}
		cmd := strings.TrimSpace(line)
		f.cmds = append(f.cmds, cmd)
		f.out.WriteString(f.reply(cmd) + "\n")
	}
}

func (f *fakeController) Read(p []byte) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.out.Read(p)
}

func (f *fakeController) Close() error {
	f.closed = true
	return nil
}

func okController() *fakeController {
	return &fakeController{reply: func(cmd string) string {
		if cmd == "DIST" {
			return "DIST 42.5"
		}
		return "OK"
	}}
}

func TestParseDistance(t *testing.T) {
	tests := []struct {
		reply   string
		want    robot.Reading
		wantErr bool
	}{
		{"DIST 42.5", robot.Distance(42.5), false},
		{"DIST TIMEOUT", robot.Timeout(), false},
		{"DIST -1", robot.Timeout(), false},
		{"DIST 1.0", robot.OutOfRange(), false},
		{"DIST 900", robot.OutOfRange(), false},
		{"DIST abc", robot.Reading{}, true},
		{"OK", robot.Reading{}, true},
	}
	for _, tt := range tests {
		t.Run(tt.reply, func(t *testing.T) {
			got, err := ParseDistance(tt.reply)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseDistance() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("ParseDistance() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestBridgeCommands(t *testing.T) {
	ctrl := okController()
	b := New(ctrl)

	if err := b.SetAngle(120); err != nil {
		t.Fatalf("SetAngle() error = %v", err)
	}
	if got := b.Measure(); got != robot.Distance(42.5) {
		t.Errorf("Measure() = %v, want 42.5cm", got)
	}
	if err := b.Left(70); err != nil {
		t.Fatalf("Left() error = %v", err)
	}
	if err := b.Forward(250); err != nil {
		t.Fatalf("Forward() error = %v", err)
	}
	if err := b.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	want := []string{"SERVO 120", "DIST", "MOTOR L 70", "MOTOR F 100", "STOP"}
	if diff := cmp.Diff(want, ctrl.cmds); diff != "" {
		t.Errorf("commands mismatch (-want +got):\n%s", diff)
	}
	if b.CurrentAngle() != 120 {
		t.Errorf("CurrentAngle() = %d, want 120", b.CurrentAngle())
	}
	if !ctrl.closed {
		t.Error("port not closed")
	}
}

func TestBridgeErrors(t *testing.T) {
	t.Run("controller error", func(t *testing.T) {
		b := New(&fakeController{reply: func(string) string { return "ERR servo detached" }})
		err := b.SetAngle(10)
		if !errors.Is(err, ErrReply) {
			t.Fatalf("SetAngle() error = %v, want ErrReply", err)
		}
		if b.CurrentAngle() != 90 {
			t.Errorf("CurrentAngle() = %d, want 90 after failure", b.CurrentAngle())
		}
	})

	t.Run("unexpected reply", func(t *testing.T) {
		b := New(&fakeController{reply: func(string) string { return "HELLO" }})
		if err := b.Stop(); !errors.Is(err, ErrProtocol) {
			t.Fatalf("Stop() error = %v, want ErrProtocol", err)
		}
	})

	t.Run("failed distance is a timeout", func(t *testing.T) {
		b := New(&fakeController{reply: func(string) string { return "ERR no echo pin" }})
		if got := b.Measure(); got != robot.Timeout() {
			t.Errorf("Measure() = %v, want timeout", got)
		}
	})
}

// silentPort behaves like a serial port with a read timeout: an empty read
// returns (0, nil) and advances the clock by one poll.
type silentPort struct {
	mu     sync.Mutex
	silent bool
	out    bytes.Buffer
	cmds   []string
	reads  int
	clock  time.Time
}

func (p *silentPort) Write(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	cmd := strings.TrimSpace(string(b))
	p.cmds = append(p.cmds, cmd)
	if !p.silent {
		if cmd == "DIST" {
			p.out.WriteString("DIST 42.5\n")
		} else {
			p.out.WriteString("OK\n")
		}
	}
	return len(b), nil
}

func (p *silentPort) Read(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.reads++
	p.clock = p.clock.Add(pollInterval)
	if p.out.Len() == 0 {
		return 0, nil
	}
	return p.out.Read(b)
}

func (p *silentPort) Close() error { return nil }

func (p *silentPort) now() time.Time {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.clock
}

// deliver queues bytes as if they arrived late on the wire.
func (p *silentPort) deliver(s string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.out.WriteString(s)
}

// resettingPort also drops unread input on ResetInputBuffer, like serial.Port.
type resettingPort struct {
	*silentPort
	resets int
}

func (p *resettingPort) ResetInputBuffer() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.resets++
	p.out.Reset()
	return nil
}

func newSilentBridge(port io.ReadWriteCloser, sp *silentPort) *Bridge {
	b := New(port, WithReplyTimeout(100*time.Millisecond))
	b.now = sp.now
	return b
}

func TestBridgeRecoversFromLateReply(t *testing.T) {
	run := func(t *testing.T, port io.ReadWriteCloser, sp *silentPort) {
		b := newSilentBridge(port, sp)

		sp.silent = true
		if got := b.Measure(); got != robot.Timeout() {
			t.Fatalf("Measure() = %v, want timeout", got)
		}
		if sp.reads > 10 {
			t.Errorf("timed out request took %d reads, want a bounded wait", sp.reads)
		}

		sp.silent = false
		sp.deliver("DIST 42\n")
		if err := b.SetAngle(90); err != nil {
			t.Fatalf("SetAngle() after late reply error = %v", err)
		}
		if b.CurrentAngle() != 90 {
			t.Errorf("CurrentAngle() = %d, want 90", b.CurrentAngle())
		}
		if got := b.Measure(); got != robot.Distance(42.5) {
			t.Errorf("Measure() = %v, want 42.5cm", got)
		}
		if diff := cmp.Diff([]string{"DIST", "SERVO 90", "DIST"}, sp.cmds); diff != "" {
			t.Errorf("commands mismatch (-want +got):\n%s", diff)
		}
	}

	t.Run("stale reply discarded", func(t *testing.T) {
		sp := &silentPort{}
		run(t, sp, sp)
	})

	t.Run("input buffer reset", func(t *testing.T) {
		sp := &silentPort{}
		rp := &resettingPort{silentPort: sp}
		run(t, rp, sp)
		if rp.resets == 0 {
			t.Error("ResetInputBuffer never called")
		}
	})

	t.Run("late ok before distance", func(t *testing.T) {
		sp := &silentPort{silent: true}
		b := newSilentBridge(sp, sp)
		if err := b.Stop(); !errors.Is(err, ErrTimeout) {
			t.Fatalf("Stop() error = %v, want ErrTimeout", err)
		}
		sp.silent = false
		sp.deliver("OK\n")
		if got := b.Measure(); got != robot.Distance(42.5) {
			t.Errorf("Measure() = %v, want 42.5cm", got)
		}
	})
}

func TestPortOptions(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		got, err := PortOptions{}.Normalize()
		if err != nil {
			t.Fatalf("Normalize() error = %v", err)
		}
		if diff := cmp.Diff(DefaultPortOptions(), got); diff != "" {
			t.Errorf("Normalize() mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("invalid", func(t *testing.T) {
		for _, opts := range []PortOptions{{DataBits: 9}, {StopBits: 3}, {Parity: "X"}} {
			if _, err := opts.Normalize(); err == nil {
				t.Errorf("Normalize(%+v) expected error", opts)
			}
		}
	})

	t.Run("serial mode", func(t *testing.T) {
		mode, err := PortOptions{BaudRate: 9600, StopBits: 2, Parity: "even"}.SerialMode()
		if err != nil {
			t.Fatalf("SerialMode() error = %v", err)
		}
		want := &serial.Mode{BaudRate: 9600, DataBits: 8, Parity: serial.EvenParity, StopBits: serial.TwoStopBits}
		if diff := cmp.Diff(want, mode); diff != "" {
			t.Errorf("SerialMode() mismatch (-want +got):\n%s", diff)
		}
	})
}
