// Package config loads rover settings from the environment.
//
// Every variable is optional. Malformed values fall back to the default
// and are reported as warnings; out-of-range scan values are clamped later
// by scan.Config.Normalize.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/teslashibe/go-rover/pkg/camera"
	"github.com/teslashibe/go-rover/pkg/robot"
	"github.com/teslashibe/go-rover/pkg/robot/bridge"
	"github.com/teslashibe/go-rover/pkg/robot/busservo"
	"github.com/teslashibe/go-rover/pkg/robot/gpio"
	"github.com/teslashibe/go-rover/pkg/robot/pca9685"
	"github.com/teslashibe/go-rover/pkg/scan"
	"github.com/teslashibe/go-rover/pkg/tracking/detection"
)

// Servo driver names for SERVO_DRIVER.
const (
	ServoPWM     = "pwm"
	ServoPCA9685 = "pca9685"
	ServoFeetech = "feetech"
	ServoBridge  = "bridge"
)

// Defaults for the process-level settings.
const (
	DefaultHTTPPort = "8080"
	DefaultLogLevel = "info"
)

// Servo describes the pan (neck) servo.
type Servo struct {
	Driver   string
	Pin      int // BCM pin for the pwm driver
	Mapper   robot.PulseMapper
	MinAngle int
	MaxAngle int

	PCA9685 pca9685.Config
	Feetech busservo.Config
}

// Bridge describes the optional microcontroller link. An empty Port
// disables it.
type Bridge struct {
	Port    string
	Options bridge.PortOptions
}

// Config is everything a rover command needs to build its rig and loops.
type Config struct {
	Sim      bool
	HTTPPort string
	LogLevel string

	Scan   scan.Config
	Servo  Servo
	Sensor gpio.SensorConfig
	Motors gpio.MotorConfig
	Bridge Bridge

	Camera   camera.Config
	Detector detection.Config
}

// Default returns the configuration used when no variable is set.
func Default() Config {
	pca := pca9685.DefaultConfig()
	return Config{
		HTTPPort: DefaultHTTPPort,
		LogLevel: DefaultLogLevel,
		Scan:     scan.DefaultConfig(),
		Servo: Servo{
			Driver:   ServoPWM,
			Pin:      18,
			Mapper:   robot.DefaultPulseMapper(),
			MinAngle: robot.ServoMinDegrees,
			MaxAngle: robot.ServoMaxDegrees,
			PCA9685:  pca,
			Feetech:  busservo.DefaultConfig(),
		},
		Sensor:   gpio.DefaultSensorConfig(),
		Motors:   gpio.DefaultMotorConfig(),
		Bridge:   Bridge{Options: bridge.DefaultPortOptions()},
		Camera:   camera.DefaultConfig(),
		Detector: detection.DefaultConfig(),
	}
}

// Load reads the environment over Default. It returns one warning per
// variable that could not be parsed.
func Load() (Config, []string) {
	e := &env{lookup: os.LookupEnv}
	c := Default()

	c.Sim = e.flag("ROVER_SIM", c.Sim)
	c.HTTPPort = e.str("ROVER_HTTP_PORT", c.HTTPPort)
	c.LogLevel = e.str("ROVER_LOG_LEVEL", c.LogLevel)

	c.Scan.StartAngle = e.num("SCAN_START_ANGLE", c.Scan.StartAngle)
	c.Scan.EndAngle = e.num("SCAN_END_ANGLE", c.Scan.EndAngle)
	c.Scan.Step = e.num("SCAN_STEP", c.Scan.Step)
	c.Scan.SamplesPerAngle = e.num("SCAN_SAMPLES_PER_ANGLE", c.Scan.SamplesPerAngle)
	c.Scan.Settle = e.dur("SCAN_SETTLE", c.Scan.Settle)
	c.Scan.Retries = e.num("SCAN_RETRIES", c.Scan.Retries)

	s := &c.Servo
	s.Driver = strings.ToLower(e.str("SERVO_DRIVER", s.Driver))
	s.Pin = e.num("SERVO_PIN_NECK", s.Pin)
	s.Mapper.MinPulse = e.micros("SERVO_MIN_PULSE_NECK", s.Mapper.MinPulse)
	s.Mapper.MaxPulse = e.micros("SERVO_MAX_PULSE_NECK", s.Mapper.MaxPulse)
	s.Mapper.Offset = e.num("SERVO_OFFSET_NECK", s.Mapper.Offset)
	s.Mapper.Reverse = e.flag("SERVO_REVERSE_NECK", s.Mapper.Reverse)
	s.MinAngle = e.num("SERVO_MIN_ANGLE_NECK", s.MinAngle)
	s.MaxAngle = e.num("SERVO_MAX_ANGLE_NECK", s.MaxAngle)
	s.PCA9685.Channel = e.num("PCA9685_CHANNEL", s.PCA9685.Channel)
	s.PCA9685.Bus = e.str("PCA9685_BUS", s.PCA9685.Bus)
	s.PCA9685.Mapper = s.Mapper
	s.Feetech.Port = e.str("FEETECH_PORT", s.Feetech.Port)
	s.Feetech.ID = e.num("FEETECH_ID", s.Feetech.ID)
	s.Feetech.Offset = s.Mapper.Offset
	s.Feetech.Reverse = s.Mapper.Reverse

	c.Sensor.Trigger = e.num("ULTRASONIC_TRIGGER_PIN", c.Sensor.Trigger)
	c.Sensor.Echo = e.num("ULTRASONIC_ECHO_PIN", c.Sensor.Echo)

	m := &c.Motors
	m.LeftEN = e.num("MOTOR_L_EN", m.LeftEN)
	m.LeftIN1 = e.num("MOTOR_L_IN1", m.LeftIN1)
	m.LeftIN2 = e.num("MOTOR_L_IN2", m.LeftIN2)
	m.RightEN = e.num("MOTOR_R_EN", m.RightEN)
	m.RightIN1 = e.num("MOTOR_R_IN1", m.RightIN1)
	m.RightIN2 = e.num("MOTOR_R_IN2", m.RightIN2)

	c.Bridge.Port = e.str("BRIDGE_PORT", c.Bridge.Port)
	c.Bridge.Options.BaudRate = e.num("BRIDGE_BAUD", c.Bridge.Options.BaudRate)

	c.Camera.Index = e.num("CAMERA_INDEX", c.Camera.Index)
	if name, ok := e.get("CAMERA_PRESET"); ok {
		if cam, err := camera.Preset(name, c.Camera.Index); err != nil {
			e.warn("CAMERA_PRESET", name, err)
		} else {
			c.Camera = cam
		}
	}
	if backend := strings.ToLower(e.str("FACE_DETECTOR", "")); backend == detection.BackendYuNet {
		c.Detector = detection.YuNetConfig()
	}
	c.Detector.ModelPath = e.str("FACE_MODEL", c.Detector.ModelPath)

	switch s.Driver {
	case ServoPWM, ServoPCA9685, ServoFeetech, ServoBridge:
	default:
		e.warn("SERVO_DRIVER", s.Driver, fmt.Errorf("want one of %s, %s, %s, %s", ServoPWM, ServoPCA9685, ServoFeetech, ServoBridge))
		s.Driver = ServoPWM
	}
	if s.Driver == ServoBridge && c.Bridge.Port == "" {
		e.warn("SERVO_DRIVER", s.Driver, fmt.Errorf("BRIDGE_PORT is not set"))
		s.Driver = ServoPWM
	}

	return c, e.warnings
}

type env struct {
	lookup   func(string) (string, bool)
	warnings []string
}

func (e *env) warn(name, raw string, err error) {
	e.warnings = append(e.warnings, fmt.Sprintf("%s=%q ignored: %v", name, raw, err))
}

func (e *env) get(name string) (string, bool) {
	v, ok := e.lookup(name)
	v = strings.TrimSpace(v)
	return v, ok && v != ""
}

func (e *env) str(name, def string) string {
	if v, ok := e.get(name); ok {
		return v
	}
	return def
}

func (e *env) num(name string, def int) int {
	v, ok := e.get(name)
	if !ok {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		e.warn(name, v, err)
		return def
	}
	return n
}

func (e *env) flag(name string, def bool) bool {
	v, ok := e.get(name)
	if !ok {
		return def
	}
	switch strings.ToLower(v) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	}
	e.warn(name, v, fmt.Errorf("not a boolean"))
	return def
}

// dur accepts Go durations ("250ms") or plain seconds ("0.18").
func (e *env) dur(name string, def time.Duration) time.Duration {
	v, ok := e.get(name)
	if !ok {
		return def
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	secs, err := strconv.ParseFloat(v, 64)
	if err != nil {
		e.warn(name, v, err)
		return def
	}
	return time.Duration(secs * float64(time.Second))
}

// micros reads a pulse width given in microseconds.
func (e *env) micros(name string, def time.Duration) time.Duration {
	n := e.num(name, int(def/time.Microsecond))
	return time.Duration(n) * time.Microsecond
}
