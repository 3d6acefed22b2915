package web

import (
	"context"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/teslashibe/go-rover/pkg/arbiter"
	"github.com/teslashibe/go-rover/pkg/follow"
	"github.com/teslashibe/go-rover/pkg/robot"
	"github.com/teslashibe/go-rover/pkg/scan"
	"github.com/teslashibe/go-rover/pkg/tracking"
)

// PanStatus describes the shared pan servo.
type PanStatus struct {
	Available bool            `json:"available"`
	Angle     int             `json:"angle"`
	Holder    *arbiter.Holder `json:"holder,omitempty"`
}

// Status is the GET /api/status response.
type Status struct {
	Pan      PanStatus       `json:"pan"`
	Sensor   bool            `json:"sensor"`
	Motors   bool            `json:"motors"`
	Camera   bool            `json:"camera"`
	Tracker  *tracking.State `json:"tracker,omitempty"`
	Follower *follow.State   `json:"follower,omitempty"`
	LastScan *scan.Summary   `json:"last_scan,omitempty"`
	Clients  int             `json:"clients"`
}

// ScanRequest overrides the configured sweep. Omitted fields keep their
// configured values; out-of-range values are clamped.
type ScanRequest struct {
	StartAngle      *int `json:"start_angle"`
	EndAngle        *int `json:"end_angle"`
	Step            *int `json:"step"`
	SamplesPerAngle *int `json:"samples_per_angle"`
	Retries         *int `json:"retries"`
	SettleMS        *int `json:"settle_ms"`
}

// Apply returns cfg with the request's overrides.
func (r ScanRequest) Apply(cfg scan.Config) scan.Config {
	set := func(dst *int, src *int) {
		if src != nil {
			*dst = *src
		}
	}
	set(&cfg.StartAngle, r.StartAngle)
	set(&cfg.EndAngle, r.EndAngle)
	set(&cfg.Step, r.Step)
	set(&cfg.SamplesPerAngle, r.SamplesPerAngle)
	set(&cfg.Retries, r.Retries)
	if r.SettleMS != nil {
		cfg.Settle = time.Duration(*r.SettleMS) * time.Millisecond
	}
	return cfg
}

// ScanResponse is the POST /api/scan response.
type ScanResponse struct {
	Result      *scan.Result `json:"result"`
	Description string       `json:"description"`
}

// PanRequest is the POST /api/pan body.
type PanRequest struct {
	Angle int `json:"angle"`
}

// statusFor maps control errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, arbiter.ErrBusy),
		errors.Is(err, tracking.ErrAlreadyRunning),
		errors.Is(err, follow.ErrAlreadyRunning):
		return fiber.StatusConflict
	case errors.Is(err, robot.ErrHardwareUnavailable):
		return fiber.StatusServiceUnavailable
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return fiber.StatusRequestTimeout
	default:
		return fiber.StatusInternalServerError
	}
}

func (s *Server) fail(c *fiber.Ctx, err error) error {
	code := statusFor(err)
	if code == fiber.StatusInternalServerError {
		s.logger.Error("request failed", "path", c.Path(), "error", err)
	}
	return c.Status(code).JSON(fiber.Map{"error": err.Error()})
}

func (s *Server) handleStatus(c *fiber.Ctx) error {
	rig := s.ctl.Rig
	st := Status{
		Pan:    PanStatus{Available: rig.Pan.Available()},
		Sensor: rig.Sensor != nil,
		Motors: rig.Motors != nil,
		Camera: s.ctl.Tracker != nil,
	}
	if st.Pan.Available {
		st.Pan.Angle = rig.Pan.Angle()
		if s.ctl.Arbiter != nil {
			if h, ok := s.ctl.Arbiter.Held(rig.Pan.ID); ok {
				st.Pan.Holder = &h
			}
		}
	}
	if s.ctl.Tracker != nil {
		ts := s.ctl.Tracker.State()
		st.Tracker = &ts
	}
	if s.ctl.Follower != nil {
		fs := s.ctl.Follower.State()
		st.Follower = &fs
	}
	s.mu.RLock()
	if s.lastScan != nil {
		sum := s.lastScan.Summary
		st.LastScan = &sum
	}
	s.mu.RUnlock()
	if s.events != nil {
		st.Clients = s.events.ClientCount()
	}
	return c.JSON(st)
}

func (s *Server) handleLastScan(c *fiber.Ctx) error {
	s.mu.RLock()
	last := s.lastScan
	s.mu.RUnlock()
	if last == nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "no scan yet"})
	}
	return c.JSON(ScanResponse{Result: last, Description: last.Describe()})
}

func (s *Server) handleScan(c *fiber.Ctx) error {
	if s.ctl.Scanner == nil {
		return s.fail(c, robot.Unavailable("sensor", nil))
	}

	var req ScanRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
		}
	}

	result, err := s.ctl.Scanner.Run(c.UserContext(), req.Apply(s.ctl.ScanConfig))
	if err != nil {
		return s.fail(c, err)
	}

	s.mu.Lock()
	s.lastScan = result
	s.mu.Unlock()
	return c.JSON(ScanResponse{Result: result, Description: result.Describe()})
}

func (s *Server) handleTrackStart(c *fiber.Ctx) error {
	if s.ctl.Tracker == nil {
		return s.fail(c, robot.Unavailable("camera", nil))
	}
	if err := s.ctl.Tracker.Start(); err != nil {
		return s.fail(c, err)
	}
	return c.Status(fiber.StatusAccepted).JSON(s.ctl.Tracker.State())
}

func (s *Server) handleTrackStop(c *fiber.Ctx) error {
	if s.ctl.Tracker == nil {
		return s.fail(c, robot.Unavailable("camera", nil))
	}
	if err := s.ctl.Tracker.Stop(); err != nil {
		return s.fail(c, err)
	}
	return c.JSON(s.ctl.Tracker.State())
}

func (s *Server) handleFollowStart(c *fiber.Ctx) error {
	if s.ctl.Follower == nil {
		return s.fail(c, robot.Unavailable("motors", nil))
	}
	if err := s.ctl.Follower.Start(); err != nil {
		return s.fail(c, err)
	}
	return c.Status(fiber.StatusAccepted).JSON(s.ctl.Follower.State())
}

func (s *Server) handleFollowStop(c *fiber.Ctx) error {
	if s.ctl.Follower == nil {
		return s.fail(c, robot.Unavailable("motors", nil))
	}
	if err := s.ctl.Follower.Stop(); err != nil {
		return s.fail(c, err)
	}
	return c.JSON(s.ctl.Follower.State())
}

// handlePan moves the pan servo once. It fails fast when a loop owns it.
func (s *Server) handlePan(c *fiber.Ctx) error {
	var req PanRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	angle, err := MovePan(s.ctl.Rig.Pan, s.ctl.Arbiter, req.Angle)
	if err != nil {
		return s.fail(c, err)
	}
	s.emit(robot.Event{Source: PanOwner, Kind: "state", Angle: robot.IntPtr(angle)})
	return c.JSON(fiber.Map{"angle": angle})
}

// MovePan commands the pan servo under the arbiter and returns the clamped
// angle sent.
func MovePan(pan *robot.ServoHandle, arb *arbiter.Arbiter, deg int) (int, error) {
	if !pan.Available() {
		return 0, robot.Unavailable("servo", nil)
	}
	if arb == nil {
		return 0, errors.New("web: no arbiter")
	}
	var angle int
	err := arb.Do(pan.ID, PanOwner, func() (err error) {
		angle, err = pan.Set(deg)
		return err
	})
	return angle, err
}
