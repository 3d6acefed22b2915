package follow

import (
	"math"
	"time"

	"github.com/teslashibe/go-rover/pkg/robot"
)

// Mode is the follower state.
type Mode string

const (
	ModeSearching   Mode = "searching"
	ModeApproaching Mode = "approaching"
	ModeMaintaining Mode = "maintaining"
	ModeTooClose    Mode = "too-close"
	ModeBackingUp   Mode = "backing-up"
	ModeLost        Mode = "lost"
)

// State is a snapshot of the follower loop.
type State struct {
	Running      bool          `json:"running"`
	Mode         Mode          `json:"mode"`
	LastSeenAt   time.Time     `json:"last_seen_at,omitzero"`
	LastDistance robot.Reading `json:"last_distance"`
}

// NextMode classifies a straight-ahead reading. It depends only on the
// reading, so a reading under MinCM backs up from any prior state. The one
// exception is a reading under NoiseFloorCM: it is treated as sensor noise
// and searches rather than backing up.
func NextMode(cfg Config, r robot.Reading) Mode {
	if !r.Valid() || r.DistanceCM < cfg.NoiseFloorCM || r.DistanceCM > cfg.MaxCM {
		return ModeSearching
	}
	if r.DistanceCM < cfg.MinCM {
		return ModeBackingUp
	}
	if math.Abs(r.DistanceCM-cfg.TargetCM) < cfg.ToleranceCM {
		return ModeMaintaining
	}
	return ModeApproaching
}

// InRange reports whether a search reading counts as a person.
func InRange(cfg Config, r robot.Reading) bool {
	return r.Valid() && r.DistanceCM > cfg.MinCM && r.DistanceCM < cfg.MaxCM
}

// Move is a timed drive command.
type Move struct {
	Dir      robot.Direction
	Speed    int
	Duration time.Duration
}

// Regulate returns the move that closes the distance error for a reading in
// Approaching range: forward when too far, backward when too close, each
// scaled at 10ms per cm and capped.
func Regulate(cfg Config, distanceCM float64) Move {
	errCM := distanceCM - cfg.TargetCM
	scaled := time.Duration(math.Round(math.Abs(errCM) * 10 * float64(time.Millisecond)))

	if errCM > 0 {
		return Move{Dir: robot.DirForward, Speed: cfg.ForwardSpeed, Duration: min(scaled, cfg.MaxForwardPulse)}
	}
	return Move{Dir: robot.DirBackward, Speed: cfg.BackwardSpeed, Duration: min(scaled, cfg.MaxBackwardPulse)}
}
