package tracking

import (
	"math"
	"sync"
	"time"
)

// SimCamera produces blank frames of a fixed size for simulation mode.
type SimCamera struct {
	Width, Height int
}

// NewSimCamera returns a 640x480 simulated camera.
func NewSimCamera() *SimCamera {
	return &SimCamera{Width: 640, Height: 480}
}

func (c *SimCamera) Open() error  { return nil }
func (c *SimCamera) Close() error { return nil }

// Capture returns an empty frame.
func (c *SimCamera) Capture() (Frame, error) {
	return Frame{Width: c.Width, Height: c.Height}, nil
}

// SimDetector reports a face drifting left and right across the frame with
// the given period, absent for the last quarter of each cycle.
type SimDetector struct {
	Period time.Duration

	once  sync.Once
	start time.Time
}

// NewSimDetector returns a simulated detector with an 8s cycle.
func NewSimDetector() *SimDetector {
	return &SimDetector{Period: 8 * time.Second}
}

// Detect implements FaceDetector.
func (d *SimDetector) Detect(frame Frame) (*BoundingBox, error) {
	d.once.Do(func() { d.start = time.Now() })

	phase := math.Mod(time.Since(d.start).Seconds()/d.Period.Seconds(), 1)
	if phase > 0.75 {
		return nil, nil
	}

	size := frame.Height / 4
	center := float64(frame.Width)/2 + math.Sin(phase/0.75*2*math.Pi)*float64(frame.Width)/3
	return &BoundingBox{
		X: int(center) - size/2,
		Y: frame.Height/2 - size/2,
		W: size,
		H: size,
	}, nil
}

var (
	_ Camera       = (*SimCamera)(nil)
	_ Camera       = (*MockCamera)(nil)
	_ FaceDetector = (*SimDetector)(nil)
	_ FaceDetector = (*MockDetector)(nil)
	_ FaceDetector = (*Perception)(nil)
)
