// Package tracking keeps a face centered in the camera frame by stepping
// the pan servo toward it.
package tracking

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
)

// Owner is the arbiter owner name used by the tracker.
const Owner = "tracker"

// ErrAlreadyRunning is returned by Start while a session is active.
var ErrAlreadyRunning = errors.New("tracking: already running")

// Mode is the tracker's view of the scene.
type Mode string

const (
	ModeIdle     Mode = "idle"
	ModeTracking Mode = "tracking"
)

// State is a snapshot of the tracking loop.
type State struct {
	Running      bool      `json:"running"`
	Mode         Mode      `json:"mode"`
	CurrentAngle int       `json:"current_angle"`
	LostFrames   int       `json:"lost_frames"`
	LastFaceAt   time.Time `json:"last_face_at,omitzero"`
}

// Tracker runs the face tracking loop
type Tracker struct {
	config   Config
	camera   Camera
	detector FaceDetector
	pan      *robot.ServoHandle
	arbiter  *arbiter.Arbiter

	logger   *slog.Logger
	observer robot.Observer

	mu     sync.RWMutex
	state  State
	cancel context.CancelFunc
	done   chan struct{}
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(t *Tracker) {
		t.logger = logger
	}
}

// WithObserver sets the status observer.
func WithObserver(obs robot.Observer) Option {
	return func(t *Tracker) {
		t.observer = obs
	}
}

// New creates a face tracker. Any hardware argument may be nil; Start then
// fails with robot.ErrHardwareUnavailable. A nil arb gets a private arbiter.
func New(config Config, camera Camera, detector FaceDetector, pan *robot.ServoHandle, arb *arbiter.Arbiter, opts ...Option) *Tracker {
	config = config.Normalize()
	t := &Tracker{
		config:   config,
		camera:   camera,
		detector: detector,
		pan:      pan,
		arbiter:  arb,
		logger:   slog.Default(),
		state:    State{Mode: ModeIdle, CurrentAngle: config.ServoCenter},
	}
	for _, opt := range opts {
		opt(t)
	}
	if t.arbiter == nil {
		t.arbiter = arbiter.New(t.logger)
	}
	return t
}

// Config returns the normalized configuration.
func (t *Tracker) Config() Config {
	return t.config
}

// Start opens the camera, takes the pan servo and starts the loop.
// It fails with robot.ErrHardwareUnavailable if the camera cannot be opened
// and with arbiter.ErrBusy if the servo is held elsewhere; in both cases
// nothing is left running.
func (t *Tracker) Start() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.cancel != nil {
		return ErrAlreadyRunning
	}
	if !t.pan.Available() {
		return robot.Unavailable("servo", nil)
	}
	if t.camera == nil || t.detector == nil {
		return robot.Unavailable("camera", nil)
	}

	if err := t.camera.Open(); err != nil {
		return robot.Unavailable("camera", err)
	}

	tok, err := t.arbiter.Acquire(t.pan.ID, Owner)
	if err != nil {
		t.closeCamera()
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	t.cancel = cancel
	t.done = make(chan struct{})
	t.state = State{Running: true, Mode: ModeIdle, CurrentAngle: t.config.ServoCenter}

	go t.run(ctx, tok, t.done)
	return nil
}

// Stop ends the loop and waits up to Config.StopTimeout for it to recenter
// the servo, release it and close the camera. Stop on an idle tracker is a
// no-op.
func (t *Tracker) Stop() error {
	t.mu.Lock()
	cancel, done := t.cancel, t.done
	t.mu.Unlock()

	if cancel == nil {
		return nil
	}
	cancel()

	select {
	case <-done:
		return nil
	case <-time.After(t.config.StopTimeout):
		t.logger.Warn("tracker did not stop in time", "timeout", t.config.StopTimeout)
		return fmt.Errorf("tracking: stop timed out after %v", t.config.StopTimeout)
	}
}

// IsTracking reports whether the loop is alive.
func (t *Tracker) IsTracking() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.state.Running
}

// State returns a snapshot of the loop state.
func (t *Tracker) State() State {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.state
}

func (t *Tracker) emit(kind, msg string) {
	s := t.State()
	robot.Emit(t.observer, robot.Event{
		Source:  Owner,
		Kind:    kind,
		Message: msg,
		Angle:   robot.IntPtr(s.CurrentAngle),
		Mode:    string(s.Mode),
	})
}

func (t *Tracker) run(ctx context.Context, tok *arbiter.Token, done chan struct{}) {
	defer close(done)
	defer t.finish(tok)

	t.setAngle(t.config.ServoCenter)
	t.logger.Info("face tracking started", "dead_zone_px", t.config.DeadZonePx, "step", t.config.ServoStep,
		"range", fmt.Sprintf("%d-%d", t.config.ServoMin, t.config.ServoMax))
	t.emit("started", "Tracking Face")

	if err := wait.Sleep(ctx, t.config.SettleDelay); err != nil {
		return
	}

	ticker := time.NewTicker(t.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := t.step(ctx); err != nil {
				return
			}
		}
	}
}

// step runs one capture-detect-correct cycle. It returns an error only when
// ctx ended during a back-off.
func (t *Tracker) step(ctx context.Context) error {
	frame, err := t.camera.Capture()
	if err != nil {
		t.logger.Warn("frame capture failed", "error", err)
		return wait.Sleep(ctx, t.config.FrameRetry)
	}

	face, err := t.detector.Detect(frame)
	if err != nil {
		t.logger.Debug("face detection failed", "error", err)
		face = nil
	}

	if face == nil {
		t.onMiss()
		return nil
	}
	t.onFace(*face, frame.Width)
	return nil
}

func (t *Tracker) onFace(face BoundingBox, frameWidth int) {
	t.mu.Lock()
	wasIdle := t.state.Mode != ModeTracking
	t.state.Mode = ModeTracking
	t.state.LostFrames = 0
	t.state.LastFaceAt = time.Now()
	current := t.state.CurrentAngle
	t.mu.Unlock()

	if wasIdle {
		t.emit("state", "Face Locked")
	}

	next, move := NextAngle(t.config, current, face, frameWidth)
	if !move {
		return
	}
	if t.setAngle(next) {
		t.logger.Debug("face tracking adjusted", "angle", next, "face_x", face.CenterX())
		t.emit("state", fmt.Sprintf("Angle: %d", next))
	}
}

// onMiss drops to idle on the first empty frame; the servo holds its angle
// until MaxLostFrames consecutive misses, then recenters.
func (t *Tracker) onMiss() {
	t.mu.Lock()
	wasTracking := t.state.Mode == ModeTracking
	t.state.Mode = ModeIdle
	t.state.LostFrames++
	lost := t.state.LostFrames >= t.config.MaxLostFrames
	if lost {
		t.state.LostFrames = 0
	}
	current := t.state.CurrentAngle
	t.mu.Unlock()

	if wasTracking {
		t.emit("state", "Face Lost")
	}
	if !lost {
		return
	}
	if current != t.config.ServoCenter && t.setAngle(t.config.ServoCenter) {
		t.logger.Info("face lost, returning to center", "angle", t.config.ServoCenter)
	}
	t.emit("state", "Searching...")
}

// setAngle commands the servo and records the angle on success.
func (t *Tracker) setAngle(deg int) bool {
	sent, err := t.pan.Set(deg)
	if err != nil {
		t.logger.Error("servo command failed", "angle", deg, "error", err)
		return false
	}
	t.mu.Lock()
	t.state.CurrentAngle = sent
	t.mu.Unlock()
	return true
}

// finish recenters, releases the servo and closes the camera.
func (t *Tracker) finish(tok *arbiter.Token) {
	t.setAngle(t.config.ServoCenter)
	tok.Release()
	t.closeCamera()

	t.mu.Lock()
	t.state.Running = false
	t.state.Mode = ModeIdle
	t.state.LostFrames = 0
	t.cancel = nil
	t.done = nil
	t.mu.Unlock()

	t.logger.Info("face tracking stopped")
	t.emit("stopped", "")
}

func (t *Tracker) closeCamera() {
	if err := t.camera.Close(); err != nil {
		t.logger.Warn("camera close failed", "error", err)
	}
}
