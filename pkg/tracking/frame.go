package tracking

// Frame is one captured camera image.
type Frame struct {
	Width  int
	Height int
	JPEG   []byte
}

// BoundingBox is a face rectangle in frame pixels.
type BoundingBox struct {
	X, Y int // top-left corner
	W, H int
}

// CenterX returns the horizontal center, rounded down.
func (b BoundingBox) CenterX() int {
	return b.X + b.W/2
}

// Area returns the box area in pixels.
func (b BoundingBox) Area() int {
	return b.W * b.H
}

// Camera captures frames. Open and Close bracket a tracking session.
type Camera interface {
	Open() error
	Capture() (Frame, error)
	Close() error
}

// FaceDetector returns the largest face in a frame, or nil if none.
type FaceDetector interface {
	Detect(Frame) (*BoundingBox, error)
}
