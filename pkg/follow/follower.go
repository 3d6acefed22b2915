// Package follow keeps the rover a fixed distance from a person using the
// front ultrasonic sensor, sweeping the pan servo to search when the person
// leaves the beam.
package follow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/teslashibe/go-rover/internal/wait"
	"github.com/teslashibe/go-rover/pkg/arbiter"
	"github.com/teslashibe/go-rover/pkg/robot"
	"github.com/teslashibe/go-rover/pkg/scan"
)

// Owner is the arbiter owner name used by the follower.
const Owner = "follower"

// ErrAlreadyRunning is returned by Start while a session is active.
var ErrAlreadyRunning = errors.New("follow: already running")

// Follower runs the distance-regulation loop.
type Follower struct {
	config  Config
	motors  robot.DriveMotors
	sensor  robot.RangeSensor
	pan     *robot.ServoHandle
	arbiter *arbiter.Arbiter
	sampler *scan.Sampler

	logger   *slog.Logger
	observer robot.Observer

	mu     sync.RWMutex
	state  State
	cancel context.CancelFunc
	done   chan struct{}
}

// Option configures a Follower.
type Option func(*Follower)

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(f *Follower) {
		f.logger = logger
	}
}

// WithObserver sets the status observer.
func WithObserver(obs robot.Observer) Option {
	return func(f *Follower) {
		f.observer = obs
	}
}

// New creates a follower. pan may be nil, in which case searching only
// samples straight ahead. A nil arb gets a private arbiter.
func New(config Config, motors robot.DriveMotors, sensor robot.RangeSensor, pan *robot.ServoHandle, arb *arbiter.Arbiter, opts ...Option) *Follower {
	config = config.Normalize()
	f := &Follower{
		config:  config,
		motors:  motors,
		sensor:  sensor,
		pan:     pan,
		arbiter: arb,
		logger:  slog.Default(),
		state:   State{Mode: ModeSearching},
	}
	if sensor != nil {
		f.sampler = scan.NewSampler(sensor, config.SamplesPerReading, config.Retries)
	}
	for _, opt := range opts {
		opt(f)
	}
	if f.arbiter == nil {
		f.arbiter = arbiter.New(f.logger)
	}
	return f
}

// Config returns the normalized configuration.
func (f *Follower) Config() Config {
	return f.config
}

// Start launches the follow loop. It fails with
// robot.ErrHardwareUnavailable when the motors or the sensor are missing.
func (f *Follower) Start() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.cancel != nil {
		return ErrAlreadyRunning
	}
	if f.motors == nil {
		return robot.Unavailable("motors", nil)
	}
	if f.sensor == nil {
		return robot.Unavailable("sensor", nil)
	}

	ctx, cancel := context.WithCancel(context.Background())
	f.cancel = cancel
	f.done = make(chan struct{})
	f.state = State{Running: true, Mode: ModeSearching}

	go f.run(ctx, f.done)
	return nil
}

// Stop cancels the loop and waits up to Config.StopTimeout for it to stop
// the motors and recenter the servo. Stop on an idle follower is a no-op.
func (f *Follower) Stop() error {
	f.mu.Lock()
	cancel, done := f.cancel, f.done
	f.mu.Unlock()

	if cancel == nil {
		return nil
	}
	cancel()

	select {
	case <-done:
		return nil
	case <-time.After(f.config.StopTimeout):
		f.logger.Warn("follower did not stop in time", "timeout", f.config.StopTimeout)
		return fmt.Errorf("follow: stop timed out after %v", f.config.StopTimeout)
	}
}

// IsFollowing reports whether the loop is alive.
func (f *Follower) IsFollowing() bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.state.Running
}

// State returns a snapshot of the loop state.
func (f *Follower) State() State {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.state
}

// Done returns a channel closed when the latest session ends. It stays
// valid after the loop finishes, and is already closed before any Start.
func (f *Follower) Done() <-chan struct{} {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.done == nil {
		return closed
	}
	return f.done
}

var closed = func() chan struct{} {
	c := make(chan struct{})
	close(c)
	return c
}()

func (f *Follower) setMode(m Mode, r robot.Reading) {
	f.mu.Lock()
	prev := f.state.Mode
	f.state.Mode = m
	f.state.LastDistance = r
	if m != ModeSearching && m != ModeLost {
		f.state.LastSeenAt = time.Now()
	}
	f.mu.Unlock()

	if prev != m {
		f.logger.Info("follow mode", "mode", m, "from", prev, "distance", r.String())
		robot.Emit(f.observer, robot.Event{
			Source:   Owner,
			Kind:     "state",
			Mode:     string(m),
			Distance: robot.ReadingPtr(r),
		})
	}
}

func (f *Follower) run(ctx context.Context, done chan struct{}) {
	defer close(done)
	defer f.finish()

	f.logger.Info("person following started", "target_cm", f.config.TargetCM,
		"min_cm", f.config.MinCM, "max_cm", f.config.MaxCM)
	robot.Emit(f.observer, robot.Event{Source: Owner, Kind: "started", Message: "Following You"})

	f.centerServo()
	if wait.Sleep(ctx, f.config.StartSettle) != nil {
		return
	}

	var lostSince time.Time
	for ctx.Err() == nil {
		reading, _, err := f.sampler.Sample(ctx)
		if err != nil {
			return
		}

		mode := NextMode(f.config, reading)
		if mode != ModeSearching {
			lostSince = time.Time{}
		}

		switch mode {
		case ModeSearching:
			if lostSince.IsZero() {
				lostSince = time.Now()
				f.logger.Info("person lost from view", "distance", reading.String())
			}
			if time.Since(lostSince) > f.config.SearchTimeout {
				f.logger.Info("search timeout, stopping", "timeout", f.config.SearchTimeout)
				f.setMode(ModeLost, reading)
				return
			}
			f.setMode(ModeSearching, reading)

			var found bool
			if found, err = f.search(ctx); err != nil {
				return
			}
			pause := f.config.NotFoundPause
			if found {
				lostSince = time.Time{}
				pause = f.config.FoundPause
			}
			err = wait.Sleep(ctx, pause)

		case ModeBackingUp:
			f.setMode(ModeTooClose, reading)
			f.logger.Info("too close, backing up", "distance", reading.String())
			f.setMode(ModeBackingUp, reading)
			err = f.pulse(ctx, Move{Dir: robot.DirBackward, Speed: f.config.BackwardSpeed, Duration: f.config.BackupPulse})
			if err == nil {
				err = wait.Sleep(ctx, f.config.Cycle)
			}

		case ModeMaintaining:
			f.setMode(ModeMaintaining, reading)
			if stopErr := f.motors.Stop(); stopErr != nil {
				f.logger.Error("motor stop failed", "error", stopErr)
			}
			err = wait.Sleep(ctx, f.config.Cycle)

		case ModeApproaching:
			f.setMode(ModeApproaching, reading)
			err = f.pulse(ctx, Regulate(f.config, reading.DistanceCM))
			if err == nil {
				err = wait.Sleep(ctx, f.config.Cycle)
			}
		}

		if err != nil {
			return
		}
	}
}

// pulse runs a timed move. Motor errors are logged and the loop carries on;
// only cancellation is returned.
func (f *Follower) pulse(ctx context.Context, m Move) error {
	err := robot.Pulse(ctx, f.motors, m.Dir, m.Speed, m.Duration)
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	if err != nil {
		f.logger.Error("motor pulse failed", "direction", m.Dir, "error", err)
	}
	return nil
}

// search sweeps the bearings looking for an in-range reading. On a hit it
// turns the body toward it and recenters the servo. The servo is held only
// for the sweep, the turn and the recenter. If another controller owns it,
// search samples straight ahead without moving the servo.
func (f *Follower) search(ctx context.Context) (bool, error) {
	if !f.pan.Available() {
		return f.sampleAhead(ctx)
	}

	tok, err := f.arbiter.Acquire(f.pan.ID, Owner)
	if err != nil {
		f.logger.Debug("pan servo busy, sampling straight ahead", "error", err)
		return f.sampleAhead(ctx)
	}
	defer tok.Release()
	defer f.setServo(f.config.ServoCenter)

	for _, angle := range Bearings(f.config.ServoCenter, f.config.ScanStep, f.config.ServoMin, f.config.ServoMax) {
		if !f.setServo(angle) {
			continue
		}
		if err := wait.Sleep(ctx, f.config.SearchSettle); err != nil {
			return false, err
		}

		r, _, err := f.sampler.Sample(ctx)
		if err != nil {
			return false, err
		}
		robot.Emit(f.observer, robot.Event{
			Source: Owner, Kind: "sample", Angle: robot.IntPtr(angle), Distance: robot.ReadingPtr(r),
		})

		if InRange(f.config, r) {
			f.logger.Info("person found", "angle", angle, "distance", r.String())
			return true, f.turnToward(ctx, angle)
		}
	}
	return false, nil
}

func (f *Follower) sampleAhead(ctx context.Context) (bool, error) {
	r, _, err := f.sampler.Sample(ctx)
	if err != nil {
		return false, err
	}
	return InRange(f.config, r), nil
}

func (f *Follower) turnToward(ctx context.Context, angle int) error {
	turn := TurnFor(angle)
	if turn.None() {
		return nil
	}
	f.logger.Info("turning toward person", "angle", angle, "turn", turn.Name)
	return f.pulse(ctx, Move{Dir: turn.Dir, Speed: f.config.TurnSpeed, Duration: turn.Duration})
}

func (f *Follower) setServo(angle int) bool {
	if _, err := f.pan.Set(angle); err != nil {
		f.logger.Error("servo command failed", "angle", angle, "error", err)
		return false
	}
	return true
}

// centerServo recenters if the servo is free, without waiting.
func (f *Follower) centerServo() {
	if !f.pan.Available() {
		return
	}
	tok, err := f.arbiter.Acquire(f.pan.ID, Owner)
	if err != nil {
		f.logger.Debug("pan servo busy, not centering", "error", err)
		return
	}
	defer tok.Release()
	f.setServo(f.config.ServoCenter)
}

// finish stops the motors and recenters the servo with a bounded wait.
func (f *Follower) finish() {
	if err := f.motors.Stop(); err != nil {
		f.logger.Error("motor stop failed", "error", err)
	}

	if f.pan.Available() {
		ctx, cancel := context.WithTimeout(context.Background(), f.config.RecenterTimeout)
		tok, err := f.arbiter.AcquireWithin(ctx, f.pan.ID, Owner, f.config.RecenterTimeout)
		cancel()
		if err != nil {
			f.logger.Warn("could not recenter pan servo", "error", err)
		} else {
			f.setServo(f.config.ServoCenter)
			tok.Release()
		}
	}

	f.mu.Lock()
	f.state.Running = false
	if f.cancel != nil {
		f.cancel()
	}
	f.cancel = nil
	mode := f.state.Mode
	f.mu.Unlock()

	f.logger.Info("person following stopped", "mode", mode)
	robot.Emit(f.observer, robot.Event{Source: Owner, Kind: "stopped", Mode: string(mode)})
}
