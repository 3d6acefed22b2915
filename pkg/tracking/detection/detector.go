// Package detection provides face detection using computer vision
package detection

import (
	"fmt"
	"strings"
)

// Detection represents a detected face
type Detection struct {
	X, Y       float64 // Top-left corner (0-1 normalized)
	W, H       float64 // Width and height (0-1 normalized)
	Confidence float64 // Detection confidence (0-1), 1 for cascades
}

// Center returns the center point of the detection
func (d Detection) Center() (x, y float64) {
	return d.X + d.W/2, d.Y + d.H/2
}

// Area returns the area of the bounding box
func (d Detection) Area() float64 {
	return d.W * d.H
}

// Detector is the interface for face detection backends
type Detector interface {
	// Detect finds faces in the JPEG image and returns their positions
	Detect(jpeg []byte) ([]Detection, error)

	// Close releases resources
	Close() error
}

// Backend names accepted by New.
const (
	BackendCascade = "cascade"
	BackendYuNet   = "yunet"
)

// Config holds detector configuration
type Config struct {
	Backend          string  // cascade or yunet
	ModelPath        string  // Haar cascade XML or YuNet ONNX
	ConfidenceThresh float64 // Minimum confidence (YuNet only)
	InputWidth       int     // Model input width (YuNet only)
	InputHeight      int     // Model input height (YuNet only)
	MinFacePx        int     // Smallest face a cascade reports
}

// DefaultConfig returns defaults for the Haar cascade shipped with OpenCV.
func DefaultConfig() Config {
	return Config{
		Backend:          BackendCascade,
		ModelPath:        "models/haarcascade_frontalface_default.xml",
		ConfidenceThresh: 0.5,
		InputWidth:       320,
		InputHeight:      320,
		MinFacePx:        50,
	}
}

// YuNetConfig returns defaults for the YuNet ONNX model.
func YuNetConfig() Config {
	cfg := DefaultConfig()
	cfg.Backend = BackendYuNet
	cfg.ModelPath = "models/face_detection_yunet.onnx"
	return cfg
}

// New opens the detector named by cfg.Backend.
func New(cfg Config) (Detector, error) {
	switch strings.ToLower(cfg.Backend) {
	case "", BackendCascade:
		return NewCascade(cfg)
	case BackendYuNet:
		return NewYuNet(cfg)
	default:
		return nil, fmt.Errorf("detection: unknown backend %q", cfg.Backend)
	}
}

// SelectLargest picks the face with the biggest bounding box.
// Equal areas keep the first detection.
func SelectLargest(dets []Detection) *Detection {
	if len(dets) == 0 {
		return nil
	}

	best := &dets[0]
	for i := 1; i < len(dets); i++ {
		if dets[i].Area() > best.Area() {
			best = &dets[i]
		}
	}
	return best
}
