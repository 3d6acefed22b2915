package tracking

import (
	"math"

	"github.com/teslashibe/go-rover/pkg/tracking/detection"
)

// Perception adapts a detection backend to FaceDetector: it runs the
// backend on the frame's JPEG, keeps the largest face and converts it to
// frame pixels.
type Perception struct {
	detector detection.Detector

	consecutiveMisses int
}

// NewPerception wraps a detection backend.
func NewPerception(detector detection.Detector) *Perception {
	return &Perception{detector: detector}
}

// Detect implements FaceDetector. Not safe for concurrent use; the tracker
// loop is its only caller.
func (p *Perception) Detect(frame Frame) (*BoundingBox, error) {
	dets, err := p.detector.Detect(frame.JPEG)
	if err != nil {
		return nil, err
	}

	best := detection.SelectLargest(dets)
	if best == nil {
		p.consecutiveMisses++
		return nil, nil
	}
	p.consecutiveMisses = 0

	box := ToPixels(*best, frame.Width, frame.Height)
	return &box, nil
}

// ConsecutiveMisses returns how many frames in a row had no face.
func (p *Perception) ConsecutiveMisses() int {
	return p.consecutiveMisses
}

// Close releases the backend.
func (p *Perception) Close() error {
	return p.detector.Close()
}

// ToPixels converts a normalized detection into a pixel box.
func ToPixels(d detection.Detection, width, height int) BoundingBox {
	w, h := float64(width), float64(height)
	return BoundingBox{
		X: int(math.Round(d.X * w)),
		Y: int(math.Round(d.Y * h)),
		W: int(math.Round(d.W * w)),
		H: int(math.Round(d.H * h)),
	}
}
