package tracking

import (
	"errors"
	"sync"
)

// MockCamera is a Camera for tests.
type MockCamera struct {
	// OpenErr fails Open when set.
	OpenErr error
	// CaptureFunc, if set, produces every frame. It receives the call index.
	CaptureFunc func(call int) (Frame, error)

	mu       sync.Mutex
	open     bool
	opens    int
	closes   int
	captures int
}

// Open marks the camera open unless OpenErr is set.
func (m *MockCamera) Open() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.OpenErr != nil {
		return m.OpenErr
	}
	m.open = true
	m.opens++
	return nil
}

// Capture returns the next frame; a 640x480 empty frame by default.
func (m *MockCamera) Capture() (Frame, error) {
	m.mu.Lock()
	call := m.captures
	m.captures++
	open := m.open
	m.mu.Unlock()

	if !open {
		return Frame{}, errors.New("mock camera: not open")
	}
	if m.CaptureFunc != nil {
		return m.CaptureFunc(call)
	}
	return Frame{Width: 640, Height: 480}, nil
}

// Close marks the camera closed.
func (m *MockCamera) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.open = false
	m.closes++
	return nil
}

// IsOpen reports whether the camera is open.
func (m *MockCamera) IsOpen() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.open
}

// Counts returns the number of Open, Close and Capture calls.
func (m *MockCamera) Counts() (opens, closes, captures int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.opens, m.closes, m.captures
}

// MockDetector returns the face last given to SetFace.
type MockDetector struct {
	mu    sync.Mutex
	face  *BoundingBox
	err   error
	calls int
}

// SetFace sets the face returned from now on; nil means no face.
func (m *MockDetector) SetFace(face *BoundingBox) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.face = face
}

// SetErr makes Detect fail from now on.
func (m *MockDetector) SetErr(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Detect implements FaceDetector.
func (m *MockDetector) Detect(Frame) (*BoundingBox, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	if m.face == nil {
		return nil, nil
	}
	f := *m.face
	return &f, nil
}

// Calls returns the number of Detect calls.
func (m *MockDetector) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}
