package main

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/teslashibe/go-rover/internal/config"
	"github.com/teslashibe/go-rover/internal/log"
	"github.com/teslashibe/go-rover/pkg/arbiter"
	"github.com/teslashibe/go-rover/pkg/camera"
	"github.com/teslashibe/go-rover/pkg/robot"
	"github.com/teslashibe/go-rover/pkg/robot/bridge"
	"github.com/teslashibe/go-rover/pkg/robot/busservo"
	"github.com/teslashibe/go-rover/pkg/robot/gpio"
	"github.com/teslashibe/go-rover/pkg/robot/pca9685"
	"github.com/teslashibe/go-rover/pkg/tracking"
	"github.com/teslashibe/go-rover/pkg/tracking/detection"
)

// buildRig opens whatever hardware the configuration names. Missing pieces
// are logged and left nil; operations that need them fail with
// robot.ErrHardwareUnavailable.
func buildRig(cfg config.Config, logger *slog.Logger) *robot.Rig {
	if cfg.Sim {
		banner("🧪 Simulation mode: simulated servo, sensor and motors")
		return robot.NewSimRig(log.Component("sim"), cfg.Servo.MinAngle, cfg.Servo.MaxAngle)
	}

	rig := &robot.Rig{}

	var link *bridge.Bridge
	if cfg.Bridge.Port != "" {
		b, err := bridge.Open(cfg.Bridge.Port, cfg.Bridge.Options, bridge.WithLogger(log.Component("bridge")))
		if err != nil {
			logger.Warn("bridge unavailable", "port", cfg.Bridge.Port, "error", err)
		} else {
			link = b
			rig.AddCloser(link)
			rig.Sensor = link
			rig.Motors = link
			banner("🔌 Bridge: %s", cfg.Bridge.Port)
		}
	}

	var board *gpio.Board
	if link == nil || cfg.Servo.Driver == config.ServoPWM {
		b, err := gpio.Open()
		if err != nil {
			logger.Warn("gpio unavailable", "error", err)
		} else {
			board = b
			rig.AddCloser(board)
		}
	}

	if link == nil && board != nil {
		if sensor, err := board.Sensor(cfg.Sensor); err != nil {
			logger.Warn("ultrasonic sensor unavailable", "error", err)
		} else {
			rig.Sensor = sensor
		}
		if motors, err := board.Motors(cfg.Motors); err != nil {
			logger.Warn("motors unavailable", "error", err)
		} else {
			rig.Motors = motors
			rig.AddCloser(motors)
		}
	}

	driver, err := openServo(cfg, board, link)
	if err != nil {
		logger.Warn("pan servo unavailable", "driver", cfg.Servo.Driver, "error", err)
	} else {
		rig.Pan = robot.NewServoHandle(robot.PanServoID, driver, cfg.Servo.MinAngle, cfg.Servo.MaxAngle)
		if c, ok := driver.(robot.Closer); ok && cfg.Servo.Driver != config.ServoBridge {
			rig.AddCloser(c)
		}
		banner("🦒 Pan servo: %s [%d°..%d°]", cfg.Servo.Driver, rig.Pan.MinAngle, rig.Pan.MaxAngle)
	}
	return rig
}

func openServo(cfg config.Config, board *gpio.Board, link *bridge.Bridge) (robot.ServoDriver, error) {
	switch cfg.Servo.Driver {
	case config.ServoPWM:
		if board == nil {
			return nil, errors.New("gpio not open")
		}
		return board.Servo(cfg.Servo.Pin, cfg.Servo.Mapper)
	case config.ServoPCA9685:
		return pca9685.Open(cfg.Servo.PCA9685)
	case config.ServoFeetech:
		return busservo.Open(cfg.Servo.Feetech)
	case config.ServoBridge:
		if link == nil {
			return nil, errors.New("bridge not open")
		}
		return link, nil
	default:
		return nil, fmt.Errorf("unknown servo driver %q", cfg.Servo.Driver)
	}
}

// buildTracker wires the camera and face detector to a tracker. The
// returned cleanup releases the detector.
func buildTracker(cfg config.Config, tcfg tracking.Config, rig *robot.Rig, arb *arbiter.Arbiter, obs robot.Observer, logger *slog.Logger) (*tracking.Tracker, func(), error) {
	opts := []tracking.Option{
		tracking.WithLogger(log.Component("tracker")),
		tracking.WithObserver(obs),
	}

	if cfg.Sim {
		return tracking.New(tcfg, tracking.NewSimCamera(), tracking.NewSimDetector(), rig.Pan, arb, opts...), func() {}, nil
	}

	cam, err := camera.New(cfg.Camera)
	if err != nil {
		return nil, nil, robot.Unavailable("camera", err)
	}
	det, err := detection.New(cfg.Detector)
	if err != nil {
		return nil, nil, robot.Unavailable("camera", fmt.Errorf("face detector: %w", err))
	}
	perception := tracking.NewPerception(det)
	cleanup := func() {
		if err := perception.Close(); err != nil {
			logger.Warn("close face detector", "error", err)
		}
	}
	banner("📷 Camera %d, %s face detector", cfg.Camera.Index, cfg.Detector.Backend)
	return tracking.New(tcfg, cam, perception, rig.Pan, arb, opts...), cleanup, nil
}
