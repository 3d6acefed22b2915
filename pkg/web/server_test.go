package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/teslashibe/go-rover/internal/log"
	"github.com/teslashibe/go-rover/pkg/arbiter"
	"github.com/teslashibe/go-rover/pkg/follow"
	"github.com/teslashibe/go-rover/pkg/hub"
	"github.com/teslashibe/go-rover/pkg/robot"
	"github.com/teslashibe/go-rover/pkg/scan"
	"github.com/teslashibe/go-rover/pkg/tracking"
)

type fixture struct {
	server *Server
	arb    *arbiter.Arbiter
	pan    *robot.ServoHandle
	servo  *robot.MockServo
}

func newFixture(t *testing.T, sensor robot.RangeSensor) *fixture {
	t.Helper()
	logger := log.Discard()
	arb := arbiter.New(logger)
	servo := robot.NewMockServo(90)
	pan := robot.NewServoHandle(robot.PanServoID, servo, 30, 150)
	rig := &robot.Rig{Pan: pan, Sensor: sensor, Motors: &robot.MockMotors{}}

	ctl := Controllers{
		Rig:     rig,
		Arbiter: arb,
		Scanner: scan.NewEngine(pan, sensor, arb, scan.WithLogger(logger)),
		ScanConfig: scan.Config{
			StartAngle: 60, EndAngle: 120, Step: 30,
			Settle: scan.MinSettle, SamplesPerAngle: 1,
		},
		Tracker:  tracking.New(tracking.DefaultConfig(), &tracking.MockCamera{}, &tracking.MockDetector{}, pan, arb, tracking.WithLogger(logger)),
		Follower: follow.New(follow.DefaultConfig(), rig.Motors, sensor, pan, arb, follow.WithLogger(logger)),
	}
	t.Cleanup(func() {
		ctl.Tracker.Stop()
		ctl.Follower.Stop()
	})
	return &fixture{
		server: NewServer("0", ctl, nil, logger),
		arb:    arb,
		pan:    pan,
		servo:  servo,
	}
}

func (f *fixture) do(t *testing.T, method, path, body string) (int, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := f.server.App().Test(req, -1)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatal(err)
	}
	var out map[string]any
	if len(data) > 0 {
		if err := json.Unmarshal(data, &out); err != nil {
			t.Fatalf("%s %s: decode %s: %v", method, path, data, err)
		}
	}
	return resp.StatusCode, out
}

func TestStatus(t *testing.T) {
	f := newFixture(t, robot.NewMockSensor(robot.Distance(80)))

	code, body := f.do(t, http.MethodGet, "/api/status", "")
	if code != http.StatusOK {
		t.Fatalf("status = %d, want 200", code)
	}
	pan := body["pan"].(map[string]any)
	if pan["available"] != true || pan["angle"] != float64(90) {
		t.Errorf("pan = %v", pan)
	}
	if body["sensor"] != true || body["motors"] != true || body["camera"] != true {
		t.Errorf("hardware flags = %v", body)
	}
	if _, ok := pan["holder"]; ok {
		t.Errorf("idle pan reports holder: %v", pan)
	}
}

func TestStatusWithoutHardware(t *testing.T) {
	s := NewServer("0", Controllers{}, nil, log.Discard())
	resp, err := s.App().Test(httptest.NewRequest(http.MethodGet, "/api/status", nil), -1)
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}

	for _, path := range []string{"/api/scan", "/api/track/start", "/api/follow/start"} {
		resp, err := s.App().Test(httptest.NewRequest(http.MethodPost, path, nil), -1)
		if err != nil {
			t.Fatal(err)
		}
		if resp.StatusCode != http.StatusServiceUnavailable {
			t.Errorf("POST %s = %d, want 503", path, resp.StatusCode)
		}
	}
}

func TestScan(t *testing.T) {
	sensor := &robot.MockSensor{MeasureFunc: func(call int) robot.Reading {
		return robot.Distance([]float64{40, 120, 60}[call%3])
	}}
	f := newFixture(t, sensor)

	code, _ := f.do(t, http.MethodGet, "/api/scan", "")
	if code != http.StatusNotFound {
		t.Errorf("GET /api/scan before any scan = %d, want 404", code)
	}

	code, body := f.do(t, http.MethodPost, "/api/scan", "")
	if code != http.StatusOK {
		t.Fatalf("POST /api/scan = %d (%v), want 200", code, body)
	}
	summary := body["result"].(map[string]any)["summary"].(map[string]any)
	if summary["status"] != "ok" || summary["best_angle"] != float64(90) {
		t.Errorf("summary = %v", summary)
	}
	if !strings.Contains(body["description"].(string), "90") {
		t.Errorf("description = %q", body["description"])
	}

	code, body = f.do(t, http.MethodGet, "/api/status", "")
	if code != http.StatusOK || body["last_scan"] == nil {
		t.Errorf("status after scan = %d %v", code, body)
	}
	if code, _ := f.do(t, http.MethodGet, "/api/scan", ""); code != http.StatusOK {
		t.Errorf("GET /api/scan = %d, want 200", code)
	}
}

func TestScanOverrides(t *testing.T) {
	f := newFixture(t, robot.NewMockSensor(robot.Distance(100)))

	code, body := f.do(t, http.MethodPost, "/api/scan", `{"start_angle":80,"end_angle":100,"step":20,"settle_ms":50}`)
	if code != http.StatusOK {
		t.Fatalf("POST /api/scan = %d (%v)", code, body)
	}
	summary := body["result"].(map[string]any)["summary"].(map[string]any)
	if summary["sample_count"] != float64(2) {
		t.Errorf("sample_count = %v, want 2", summary["sample_count"])
	}

	if code, _ := f.do(t, http.MethodPost, "/api/scan", `{"step":`); code != http.StatusBadRequest {
		t.Errorf("malformed body = %d, want 400", code)
	}
}

func TestScanBusy(t *testing.T) {
	f := newFixture(t, robot.NewMockSensor(robot.Distance(100)))
	tok, err := f.arb.Acquire(robot.PanServoID, "tracker")
	if err != nil {
		t.Fatal(err)
	}
	defer tok.Release()

	code, body := f.do(t, http.MethodPost, "/api/scan", "")
	if code != http.StatusConflict {
		t.Errorf("POST /api/scan while held = %d, want 409", code)
	}
	if !strings.Contains(fmt.Sprint(body["error"]), "busy") {
		t.Errorf("error = %v", body["error"])
	}

	code, body = f.do(t, http.MethodGet, "/api/status", "")
	holder := body["pan"].(map[string]any)["holder"].(map[string]any)
	if code != http.StatusOK || holder["owner"] != "tracker" {
		t.Errorf("holder = %v", holder)
	}
}

func TestPan(t *testing.T) {
	f := newFixture(t, robot.NewMockSensor())

	code, body := f.do(t, http.MethodPost, "/api/pan", `{"angle":170}`)
	if code != http.StatusOK || body["angle"] != float64(150) {
		t.Errorf("POST /api/pan = %d %v, want clamped 150", code, body)
	}
	if got := f.servo.CurrentAngle(); got != 150 {
		t.Errorf("servo = %d, want 150", got)
	}
	if _, ok := f.arb.Held(robot.PanServoID); ok {
		t.Error("pan still held after request")
	}

	if code, _ := f.do(t, http.MethodPost, "/api/pan", `nope`); code != http.StatusBadRequest {
		t.Errorf("bad body = %d, want 400", code)
	}

	tok, _ := f.arb.Acquire(robot.PanServoID, "scan")
	defer tok.Release()
	if code, _ := f.do(t, http.MethodPost, "/api/pan", `{"angle":60}`); code != http.StatusConflict {
		t.Errorf("pan while held = %d, want 409", code)
	}
	if got := f.servo.CurrentAngle(); got != 150 {
		t.Errorf("servo moved while held: %d", got)
	}
}

func TestTrackStartStop(t *testing.T) {
	f := newFixture(t, robot.NewMockSensor())

	if code, body := f.do(t, http.MethodPost, "/api/track/start", ""); code != http.StatusAccepted {
		t.Fatalf("start = %d %v, want 202", code, body)
	}
	if code, _ := f.do(t, http.MethodPost, "/api/track/start", ""); code != http.StatusConflict {
		t.Errorf("second start = %d, want 409", code)
	}
	if code, _ := f.do(t, http.MethodPost, "/api/pan", `{"angle":60}`); code != http.StatusConflict {
		t.Errorf("pan while tracking = %d, want 409", code)
	}

	code, body := f.do(t, http.MethodPost, "/api/track/stop", "")
	if code != http.StatusOK || body["running"] != false {
		t.Errorf("stop = %d %v", code, body)
	}
	if _, ok := f.arb.Held(robot.PanServoID); ok {
		t.Error("pan still held after tracker stop")
	}
}

func TestFollowStartStop(t *testing.T) {
	f := newFixture(t, robot.NewMockSensor(robot.Distance(50)))

	if code, body := f.do(t, http.MethodPost, "/api/follow/start", ""); code != http.StatusAccepted {
		t.Fatalf("start = %d %v, want 202", code, body)
	}
	if code, _ := f.do(t, http.MethodPost, "/api/follow/start", ""); code != http.StatusConflict {
		t.Errorf("second start = %d, want 409", code)
	}
	time.Sleep(20 * time.Millisecond)

	code, body := f.do(t, http.MethodPost, "/api/follow/stop", "")
	if code != http.StatusOK || body["running"] != false {
		t.Errorf("stop = %d %v", code, body)
	}
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("scan: %w", arbiter.ErrBusy), fiber.StatusConflict},
		{tracking.ErrAlreadyRunning, fiber.StatusConflict},
		{follow.ErrAlreadyRunning, fiber.StatusConflict},
		{robot.Unavailable("camera", errors.New("no /dev/video0")), fiber.StatusServiceUnavailable},
		{context.Canceled, fiber.StatusRequestTimeout},
		{errors.New("boom"), fiber.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got := statusFor(tt.err); got != tt.want {
			t.Errorf("statusFor(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}

func TestEventsWebsocket(t *testing.T) {
	events := hub.New("events", log.Discard())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go events.Run(ctx)

	s := NewServer("18090", Controllers{}, events, log.Discard())
	go s.App().Listen(":18090")
	defer s.Shutdown()
	time.Sleep(100 * time.Millisecond)

	got := make(chan robot.Event, 4)
	subCtx, stop := context.WithCancel(context.Background())
	defer stop()
	go hub.Subscribe(subCtx, "ws://localhost:18090/ws/events", func(e robot.Event) { got <- e })

	deadline := time.Now().Add(2 * time.Second)
	for events.ClientCount() != 1 {
		if time.Now().After(deadline) {
			t.Fatal("subscriber never connected")
		}
		time.Sleep(10 * time.Millisecond)
	}

	events.Notify(robot.Event{Source: "follower", Kind: "state", Mode: "approaching", Distance: robot.ReadingPtr(robot.Distance(72))})

	select {
	case e := <-got:
		if e.Mode != "approaching" || e.Distance == nil || *e.Distance != robot.Distance(72) {
			t.Errorf("got %+v", e)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no event received")
	}

	resp, err := s.App().Test(httptest.NewRequest(http.MethodGet, "/ws/events", nil), -1)
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != http.StatusUpgradeRequired {
		t.Errorf("plain GET /ws/events = %d, want 426", resp.StatusCode)
	}
}
