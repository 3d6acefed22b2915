package follow

import (
	"time"

	"github.com/teslashibe/go-rover/pkg/robot"
)

// Bearings lists the search stops: center first, then alternating left and
// right at growing offsets of step, skipping stops outside [lo, hi].
// Lower angles look left.
func Bearings(center, step, lo, hi int) []int {
	if step <= 0 || center < lo || center > hi {
		return []int{min(max(center, lo), hi)}
	}

	out := []int{center}
	for off := step; center-off >= lo || center+off <= hi; off += step {
		if a := center - off; a >= lo {
			out = append(out, a)
		}
		if a := center + off; a <= hi {
			out = append(out, a)
		}
	}
	return out
}

// Turn is a coarse body rotation toward a servo bearing.
type Turn struct {
	Name     string
	Dir      robot.Direction
	Duration time.Duration
}

// None reports whether the bearing needs no rotation.
func (t Turn) None() bool {
	return t.Duration == 0
}

// TurnFor buckets a servo bearing into a timed differential turn.
func TurnFor(angle int) Turn {
	switch {
	case angle < 50:
		return Turn{Name: "far-left", Dir: robot.DirLeft, Duration: 700 * time.Millisecond}
	case angle < 70:
		return Turn{Name: "left", Dir: robot.DirLeft, Duration: 500 * time.Millisecond}
	case angle < 85:
		return Turn{Name: "slight-left", Dir: robot.DirLeft, Duration: 200 * time.Millisecond}
	case angle <= 95:
		return Turn{Name: "center"}
	case angle <= 110:
		return Turn{Name: "slight-right", Dir: robot.DirRight, Duration: 200 * time.Millisecond}
	case angle <= 130:
		return Turn{Name: "right", Dir: robot.DirRight, Duration: 500 * time.Millisecond}
	default:
		return Turn{Name: "far-right", Dir: robot.DirRight, Duration: 700 * time.Millisecond}
	}
}
