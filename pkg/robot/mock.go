package robot

import (
	"sync"
	"time"
)

// MockServo records every commanded angle for verification.
type MockServo struct {
	// SetAngleFunc, if set, is called before recording and may fail the call.
	SetAngleFunc func(deg int) error

	mu     sync.Mutex
	angles []int
	start  int
}

// NewMockServo returns a mock servo reporting start until first commanded.
func NewMockServo(start int) *MockServo {
	return &MockServo{start: start}
}

// SetAngle records deg.
func (m *MockServo) SetAngle(deg int) error {
	if m.SetAngleFunc != nil {
		if err := m.SetAngleFunc(deg); err != nil {
			return err
		}
	}
	m.mu.Lock()
	m.angles = append(m.angles, deg)
	m.mu.Unlock()
	return nil
}

// CurrentAngle returns the last recorded angle.
func (m *MockServo) CurrentAngle() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.angles) == 0 {
		return m.start
	}
	return m.angles[len(m.angles)-1]
}

// Angles returns a copy of all recorded angles.
func (m *MockServo) Angles() []int {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]int, len(m.angles))
	copy(out, m.angles)
	return out
}

// MockSensor returns readings from MeasureFunc, or from a fixed queue.
type MockSensor struct {
	// MeasureFunc, if set, produces every reading. It receives the call index.
	MeasureFunc func(call int) Reading

	mu     sync.Mutex
	queue  []Reading
	calls  int
	repeat Reading
}

// NewMockSensor returns a sensor yielding readings in order, then repeating
// the last one forever (Timeout if none were given).
func NewMockSensor(readings ...Reading) *MockSensor {
	m := &MockSensor{queue: readings, repeat: Timeout()}
	if len(readings) > 0 {
		m.repeat = readings[len(readings)-1]
	}
	return m
}

// Measure returns the next reading.
func (m *MockSensor) Measure() Reading {
	m.mu.Lock()
	defer m.mu.Unlock()
	call := m.calls
	m.calls++
	if m.MeasureFunc != nil {
		return m.MeasureFunc(call)
	}
	if len(m.queue) == 0 {
		return m.repeat
	}
	r := m.queue[0]
	m.queue = m.queue[1:]
	return r
}

// Calls returns how many measurements were taken.
func (m *MockSensor) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// MotorCall records a single drive command.
type MotorCall struct {
	Method string
	Speed  int
	Time   time.Time
}

// MockMotors records every drive command.
type MockMotors struct {
	mu    sync.Mutex
	calls []MotorCall
}

func (m *MockMotors) record(method string, speed int) error {
	m.mu.Lock()
	m.calls = append(m.calls, MotorCall{Method: method, Speed: speed, Time: time.Now()})
	m.mu.Unlock()
	return nil
}

func (m *MockMotors) Forward(speed int) error  { return m.record("forward", speed) }
func (m *MockMotors) Backward(speed int) error { return m.record("backward", speed) }
func (m *MockMotors) Left(speed int) error     { return m.record("left", speed) }
func (m *MockMotors) Right(speed int) error    { return m.record("right", speed) }
func (m *MockMotors) Stop() error              { return m.record("stop", 0) }

// Calls returns a copy of all recorded commands.
func (m *MockMotors) Calls() []MotorCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]MotorCall, len(m.calls))
	copy(out, m.calls)
	return out
}

// Methods returns just the method names, in order.
func (m *MockMotors) Methods() []string {
	calls := m.Calls()
	out := make([]string, len(calls))
	for i, c := range calls {
		out[i] = c.Method
	}
	return out
}

// CallCount returns the number of calls to method.
func (m *MockMotors) CallCount(method string) int {
	n := 0
	for _, c := range m.Calls() {
		if c.Method == method {
			n++
		}
	}
	return n
}

// Last returns the most recent command, if any.
func (m *MockMotors) Last() (MotorCall, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.calls) == 0 {
		return MotorCall{}, false
	}
	return m.calls[len(m.calls)-1], true
}
