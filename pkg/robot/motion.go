package robot

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/teslashibe/go-rover/internal/wait"
)

// Direction is a differential-drive motion.
type Direction int

const (
	DirForward Direction = iota
	DirBackward
	DirLeft
	DirRight
)

func (d Direction) String() string {
	switch d {
	case DirForward:
		return "forward"
	case DirBackward:
		return "backward"
	case DirLeft:
		return "left"
	case DirRight:
		return "right"
	default:
		return fmt.Sprintf("direction(%d)", int(d))
	}
}

// MaxSpeed is the full duty cycle.
const MaxSpeed = 100

// Drive starts the motors in direction dir at speed (clamped to 0..100).
func Drive(m DriveMotors, dir Direction, speed int) error {
	if m == nil {
		return Unavailable("motors", nil)
	}
	speed = clamp(speed, 0, MaxSpeed)
	switch dir {
	case DirForward:
		return m.Forward(speed)
	case DirBackward:
		return m.Backward(speed)
	case DirLeft:
		return m.Left(speed)
	case DirRight:
		return m.Right(speed)
	default:
		return fmt.Errorf("robot: unknown direction %d", int(dir))
	}
}

// Pulse drives in dir for d, then stops. The wait is bound to ctx and the
// motors are stopped on every exit path, including cancellation. A zero d
// starts the motion and returns without stopping.
func Pulse(ctx context.Context, m DriveMotors, dir Direction, speed int, d time.Duration) error {
	if err := Drive(m, dir, speed); err != nil {
		return err
	}
	if d <= 0 {
		return nil
	}

	waitErr := wait.Sleep(ctx, d)
	stopErr := m.Stop()
	return errors.Join(waitErr, stopErr)
}
