// Package scan sweeps the pan servo across an arc, takes median-filtered
// ultrasonic readings at each stop and summarizes the obstacle map.
package scan

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/teslashibe/go-rover/internal/wait"
	"github.com/teslashibe/go-rover/pkg/arbiter"
	"github.com/teslashibe/go-rover/pkg/robot"
)

// Owner is the arbiter owner name used by scans.
const Owner = "scan"

// Engine runs one-shot sweeps.
type Engine struct {
	pan     *robot.ServoHandle
	sensor  robot.RangeSensor
	arbiter *arbiter.Arbiter

	logger   *slog.Logger
	observer robot.Observer
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithObserver sets the status observer.
func WithObserver(obs robot.Observer) Option {
	return func(e *Engine) {
		e.observer = obs
	}
}

// NewEngine creates a scan engine. pan and sensor may be nil; Run then
// fails with robot.ErrHardwareUnavailable. A nil arb gets a private arbiter,
// so scans only exclude each other.
func NewEngine(pan *robot.ServoHandle, sensor robot.RangeSensor, arb *arbiter.Arbiter, opts ...Option) *Engine {
	e := &Engine{
		pan:     pan,
		sensor:  sensor,
		arbiter: arb,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.arbiter == nil {
		e.arbiter = arbiter.New(e.logger)
	}
	return e
}

func (e *Engine) emit(kind, msg string, angle *int, reading *robot.Reading) {
	robot.Emit(e.observer, robot.Event{
		Source:   Owner,
		Kind:     kind,
		Message:  msg,
		Angle:    angle,
		Distance: reading,
	})
}

// Run performs a sweep with cfg (normalized first, with a warning logged for
// every clamped field).
//
// It fails immediately with robot.ErrHardwareUnavailable if the servo or
// sensor is missing, and with arbiter.ErrBusy if another controller owns
// the pan servo. Sensor timeouts never fail the scan. If ctx is cancelled
// mid-sweep the partial result is returned together with ctx.Err(). In
// every case after the sweep started, the servo is returned to the midpoint
// of the arc.
func (e *Engine) Run(ctx context.Context, cfg Config) (*Result, error) {
	if !e.pan.Available() {
		return nil, robot.Unavailable("servo", nil)
	}
	if e.sensor == nil {
		return nil, robot.Unavailable("sensor", nil)
	}

	cfg, warnings := cfg.Normalize()
	for _, w := range warnings {
		e.logger.Warn("scan config clamped", "detail", w)
	}

	tok, err := e.arbiter.Acquire(e.pan.ID, Owner)
	if err != nil {
		return nil, err
	}
	defer tok.Release()

	result := &Result{
		ID:        uuid.NewString(),
		StartedAt: time.Now(),
		Config:    cfg,
		Raw:       make(map[int][]robot.Reading),
	}

	mid := cfg.Midpoint()
	defer func() {
		if _, err := e.pan.Set(mid); err != nil {
			e.logger.Error("return to midpoint failed", "angle", mid, "error", err)
		}
	}()

	angles := cfg.Angles()
	e.logger.Info("scan started", "id", result.ID, "start", cfg.StartAngle, "end", cfg.EndAngle,
		"step", cfg.Step, "stops", len(angles))
	e.emit("started", fmt.Sprintf("%d-%d deg", cfg.StartAngle, cfg.EndAngle), nil, nil)

	sampler := NewSampler(e.sensor, cfg.SamplesPerAngle, cfg.Retries)
	runErr := e.sweep(ctx, cfg, angles, sampler, result)

	result.Duration = time.Since(result.StartedAt)
	result.Summary = Summarize(result.Samples)

	if runErr != nil {
		e.logger.Warn("scan aborted", "id", result.ID, "completed", len(result.Samples), "error", runErr)
		e.emit("error", runErr.Error(), nil, nil)
		return result, runErr
	}

	e.logger.Info("scan complete", "id", result.ID, "status", result.Summary.Status,
		"best_angle", result.Summary.BestAngle, "clearance_cm", result.Summary.BestClearanceCM,
		"duration", result.Duration)
	e.emit("summary", result.Describe(), nil, nil)
	return result, nil
}

func (e *Engine) sweep(ctx context.Context, cfg Config, angles []int, sampler *Sampler, result *Result) error {
	for _, angle := range angles {
		if err := ctx.Err(); err != nil {
			return err
		}

		sent, err := e.pan.Set(angle)
		if err != nil {
			return fmt.Errorf("scan: set angle %d: %w", angle, err)
		}
		if sent != angle {
			e.logger.Debug("scan angle limited by servo bounds", "angle", angle, "sent", sent)
		}
		if err := wait.Sleep(ctx, cfg.Settle); err != nil {
			return err
		}

		value, raw, err := sampler.Sample(ctx)
		if err != nil {
			return err
		}

		result.Raw[angle] = raw
		result.Samples = append(result.Samples, Sample{Angle: angle, Reading: value})

		e.logger.Debug("scan sample", "angle", angle, "distance", value.String(), "raw", len(raw))
		e.emit("sample", "", robot.IntPtr(angle), robot.ReadingPtr(value))
	}
	return nil
}
