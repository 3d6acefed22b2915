package scan

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/teslashibe/go-rover/internal/log"
	"github.com/teslashibe/go-rover/pkg/arbiter"
	"github.com/teslashibe/go-rover/pkg/robot"
)

func newTestEngine(sensor robot.RangeSensor, opts ...Option) (*Engine, *robot.MockServo, *arbiter.Arbiter) {
	servo := robot.NewMockServo(90)
	arb := arbiter.New(log.Discard())
	pan := robot.NewServoHandle(robot.PanServoID, servo, 0, 180)
	opts = append([]Option{WithLogger(log.Discard())}, opts...)
	return NewEngine(pan, sensor, arb, opts...), servo, arb
}

func TestMedian(t *testing.T) {
	tests := []struct {
		name   string
		values []float64
		want   float64
	}{
		{"single", []float64{42}, 42},
		{"odd", []float64{9, 1, 5}, 5},
		{"even averages middle pair", []float64{10, 40, 20, 30}, 25},
		{"two", []float64{50, 60}, 55},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Median(tt.values); got != tt.want {
				t.Errorf("Median(%v) = %v, want %v", tt.values, got, tt.want)
			}
		})
	}

	in := []float64{3, 1, 2}
	Median(in)
	if diff := cmp.Diff([]float64{3, 1, 2}, in); diff != "" {
		t.Errorf("Median modified its input (-want +got):\n%s", diff)
	}
}

func TestFilter(t *testing.T) {
	got := Filter([]robot.Reading{robot.Distance(50), robot.Timeout(), robot.Distance(70), robot.OutOfRange()})
	if got != robot.Distance(60) {
		t.Errorf("mixed batch: got %v, want 60cm", got)
	}

	got = Filter([]robot.Reading{robot.Timeout(), robot.OutOfRange()})
	if got != robot.Timeout() {
		t.Errorf("no valid readings: got %v, want timeout", got)
	}
}

func TestSampler_RetriesOnlyTimeouts(t *testing.T) {
	sensor := robot.NewMockSensor(
		robot.Timeout(), robot.Timeout(), robot.Distance(30), // first sample after two retries
		robot.OutOfRange(), // not retried
		robot.Distance(32),
	)
	s := NewSampler(sensor, 3, 2)
	s.Backoff, s.Gap = 0, 0

	value, raw, err := s.Sample(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	want := []robot.Reading{robot.Distance(30), robot.OutOfRange(), robot.Distance(32)}
	if diff := cmp.Diff(want, raw); diff != "" {
		t.Errorf("raw batch (-want +got):\n%s", diff)
	}
	if value != robot.Distance(31) {
		t.Errorf("filtered value: got %v, want 31cm", value)
	}
	if sensor.Calls() != 5 {
		t.Errorf("sensor calls: got %d, want 5", sensor.Calls())
	}
}

func TestSampler_RetriesExhausted(t *testing.T) {
	sensor := robot.NewMockSensor() // always Timeout
	s := NewSampler(sensor, 2, 1)
	s.Backoff, s.Gap = 0, 0

	value, raw, err := s.Sample(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if value != robot.Timeout() || len(raw) != 2 {
		t.Errorf("got value %v with %d raw readings", value, len(raw))
	}
	if sensor.Calls() != 4 {
		t.Errorf("sensor calls: got %d, want 4", sensor.Calls())
	}
}

func TestConfig_Normalize(t *testing.T) {
	cfg, warnings := Config{
		StartAngle:      170,
		EndAngle:        -20,
		Step:            0,
		Settle:          5 * time.Second,
		SamplesPerAngle: 20,
		Retries:         -1,
	}.Normalize()

	want := Config{
		StartAngle:      0,
		EndAngle:        170,
		Step:            MinStep,
		Settle:          MaxSettle,
		SamplesPerAngle: MaxSamples,
		Retries:         0,
	}
	if diff := cmp.Diff(want, cfg); diff != "" {
		t.Errorf("normalized config (-want +got):\n%s", diff)
	}
	if len(warnings) != 6 {
		t.Errorf("warnings: got %d %q, want 6", len(warnings), warnings)
	}

	if _, warnings := DefaultConfig().Normalize(); len(warnings) != 0 {
		t.Errorf("default config produced warnings: %q", warnings)
	}
}

func TestConfig_Angles(t *testing.T) {
	tests := []struct {
		cfg  Config
		want []int
	}{
		{Config{StartAngle: 30, EndAngle: 150, Step: 60}, []int{30, 90, 150}},
		{Config{StartAngle: 30, EndAngle: 100, Step: 30}, []int{30, 60, 90}},
		{Config{StartAngle: 90, EndAngle: 90, Step: 15}, []int{90}},
	}
	for _, tt := range tests {
		if diff := cmp.Diff(tt.want, tt.cfg.Angles()); diff != "" {
			t.Errorf("Angles(%+v) (-want +got):\n%s", tt.cfg, diff)
		}
	}
}

func TestSummarize(t *testing.T) {
	t.Run("tie goes to earliest angle", func(t *testing.T) {
		s := Summarize([]Sample{
			{Angle: 30, Reading: robot.Distance(80)},
			{Angle: 60, Reading: robot.Distance(120)},
			{Angle: 90, Reading: robot.Distance(120)},
			{Angle: 120, Reading: robot.Timeout()},
			{Angle: 150, Reading: robot.Distance(15)},
		})
		want := Summary{
			Status:            StatusOK,
			BestAngle:         60,
			BestClearanceCM:   120,
			AverageDistanceCM: 83.8,
			BlockedAngles:     []int{150},
			SampleCount:       4,
		}
		if diff := cmp.Diff(want, s); diff != "" {
			t.Errorf("summary (-want +got):\n%s", diff)
		}
	})

	t.Run("no data", func(t *testing.T) {
		s := Summarize([]Sample{{Angle: 90, Reading: robot.Timeout()}})
		if s.Status != StatusNoData || s.SampleCount != 0 {
			t.Errorf("got %+v", s)
		}
	})
}

func TestSummaryJSON(t *testing.T) {
	tests := []struct {
		name    string
		samples []Sample
		want    string
	}{
		{
			name: "best at zero degrees",
			samples: []Sample{
				{Angle: 0, Reading: robot.Distance(120)},
				{Angle: 15, Reading: robot.Distance(40)},
			},
			want: `{"status":"ok","best_angle":0,"best_clearance_cm":120,"average_distance_cm":80,"blocked_angles":[],"sample_count":2}`,
		},
		{
			name:    "no data",
			samples: []Sample{{Angle: 0, Reading: robot.Timeout()}},
			want:    `{"status":"no-data","blocked_angles":[],"sample_count":0}`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := json.Marshal(Summarize(tt.samples))
			if err != nil {
				t.Fatal(err)
			}
			if string(data) != tt.want {
				t.Errorf("got  %s\nwant %s", data, tt.want)
			}

			var back Summary
			if err := json.Unmarshal(data, &back); err != nil {
				t.Fatal(err)
			}
			if diff := cmp.Diff(Summarize(tt.samples), back); diff != "" {
				t.Errorf("round trip (-want +got):\n%s", diff)
			}
		})
	}
}

func TestRun_ThreeAngleSweep(t *testing.T) {
	// Every batch is [50, 50, Timeout]
	sensor := &robot.MockSensor{MeasureFunc: func(call int) robot.Reading {
		if call%3 == 2 {
			return robot.Timeout()
		}
		return robot.Distance(50)
	}}
	engine, servo, arb := newTestEngine(sensor)

	result, err := engine.Run(context.Background(), Config{
		StartAngle:      30,
		EndAngle:        150,
		Step:            60,
		Settle:          MinSettle,
		SamplesPerAngle: 3,
		Retries:         0,
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	wantSamples := []Sample{
		{Angle: 30, Reading: robot.Distance(50)},
		{Angle: 90, Reading: robot.Distance(50)},
		{Angle: 150, Reading: robot.Distance(50)},
	}
	if diff := cmp.Diff(wantSamples, result.Samples); diff != "" {
		t.Errorf("samples (-want +got):\n%s", diff)
	}

	s := result.Summary
	if s.Status != StatusOK || s.BestAngle != 30 || s.AverageDistanceCM != 50 || len(s.BlockedAngles) != 0 {
		t.Errorf("summary: got %+v", s)
	}
	if s.SampleCount != 3 {
		t.Errorf("sample count: got %d, want 3", s.SampleCount)
	}
	if len(result.Raw[90]) != 3 {
		t.Errorf("raw batch at 90: got %d readings, want 3", len(result.Raw[90]))
	}

	if diff := cmp.Diff([]int{30, 90, 150, 90}, servo.Angles()); diff != "" {
		t.Errorf("servo commands (-want +got):\n%s", diff)
	}
	if _, held := arb.Held(robot.PanServoID); held {
		t.Error("pan servo still held after scan")
	}
}

func TestRun_AllTimeouts(t *testing.T) {
	engine, _, _ := newTestEngine(robot.NewMockSensor())

	result, err := engine.Run(context.Background(), Config{
		StartAngle: 60, EndAngle: 120, Step: 30,
		Settle: MinSettle, SamplesPerAngle: 1, Retries: 0,
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.Summary.Status != StatusNoData {
		t.Errorf("status: got %q, want no-data", result.Summary.Status)
	}
	if len(result.Samples) != 3 {
		t.Errorf("samples: got %d, want 3", len(result.Samples))
	}
	if got := result.Describe(); got != "I could not gather distance data." {
		t.Errorf("Describe: %q", got)
	}
}

func TestRun_BusyWhenPanHeld(t *testing.T) {
	sensor := robot.NewMockSensor(robot.Distance(80))
	engine, servo, arb := newTestEngine(sensor)

	tok, err := arb.Acquire(robot.PanServoID, "tracker")
	if err != nil {
		t.Fatal(err)
	}
	defer tok.Release()

	start := time.Now()
	_, err = engine.Run(context.Background(), DefaultConfig())
	if !errors.Is(err, arbiter.ErrBusy) {
		t.Fatalf("got %v, want ErrBusy", err)
	}
	if time.Since(start) > 100*time.Millisecond {
		t.Error("busy scan did not fail fast")
	}
	if len(servo.Angles()) != 0 || sensor.Calls() != 0 {
		t.Error("busy scan touched the hardware")
	}
}

func TestRun_HardwareUnavailable(t *testing.T) {
	arb := arbiter.New(log.Discard())

	noServo := NewEngine(nil, robot.NewMockSensor(), arb, WithLogger(log.Discard()))
	if _, err := noServo.Run(context.Background(), DefaultConfig()); !errors.Is(err, robot.ErrHardwareUnavailable) {
		t.Errorf("missing servo: got %v", err)
	}

	pan := robot.NewServoHandle(robot.PanServoID, robot.NewMockServo(90), 0, 180)
	noSensor := NewEngine(pan, nil, arb, WithLogger(log.Discard()))
	if _, err := noSensor.Run(context.Background(), DefaultConfig()); !errors.Is(err, robot.ErrHardwareUnavailable) {
		t.Errorf("missing sensor: got %v", err)
	}
}

func TestRun_NilArbiter(t *testing.T) {
	servo := robot.NewMockServo(90)
	pan := robot.NewServoHandle(robot.PanServoID, servo, 0, 180)
	engine := NewEngine(pan, robot.NewMockSensor(robot.Distance(40)), nil, WithLogger(log.Discard()))

	result, err := engine.Run(context.Background(), Config{
		StartAngle: 60, EndAngle: 120, Step: 60,
		Settle: MinSettle, SamplesPerAngle: 1, Retries: 0,
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(result.Samples) != 2 {
		t.Errorf("samples: got %d, want 2", len(result.Samples))
	}
	if got := servo.CurrentAngle(); got != 90 {
		t.Errorf("servo after scan: got %d, want 90", got)
	}
}

func TestRun_CancelReturnsPartialAndRecenters(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sensor := &robot.MockSensor{MeasureFunc: func(call int) robot.Reading {
		if call == 1 {
			cancel()
		}
		return robot.Distance(100)
	}}
	engine, servo, arb := newTestEngine(sensor)

	result, err := engine.Run(ctx, Config{
		StartAngle: 0, EndAngle: 180, Step: 45,
		Settle: MinSettle, SamplesPerAngle: 1, Retries: 0,
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("got %v, want context.Canceled", err)
	}
	if result == nil || len(result.Samples) == 0 || len(result.Samples) >= 5 {
		t.Fatalf("expected a partial result, got %+v", result)
	}
	angles := servo.Angles()
	if angles[len(angles)-1] != 90 {
		t.Errorf("servo not returned to midpoint: %v", angles)
	}
	if _, held := arb.Held(robot.PanServoID); held {
		t.Error("pan servo still held after cancelled scan")
	}
}

func TestRun_EmitsEvents(t *testing.T) {
	var (
		mu    sync.Mutex
		kinds []string
	)
	obs := robot.ObserverFunc(func(e robot.Event) {
		mu.Lock()
		kinds = append(kinds, e.Kind)
		mu.Unlock()
	})
	engine, _, _ := newTestEngine(robot.NewMockSensor(robot.Distance(40)), WithObserver(obs))

	if _, err := engine.Run(context.Background(), Config{
		StartAngle: 80, EndAngle: 100, Step: 20,
		Settle: MinSettle, SamplesPerAngle: 1,
	}); err != nil {
		t.Fatal(err)
	}

	mu.Lock()
	defer mu.Unlock()
	if diff := cmp.Diff([]string{"started", "sample", "sample", "summary"}, kinds); diff != "" {
		t.Errorf("event kinds (-want +got):\n%s", diff)
	}
}
