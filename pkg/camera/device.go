package camera

import (
	"errors"
	"fmt"
	"sync"

	"gocv.io/x/gocv"

	"github.com/teslashibe/go-rover/pkg/tracking"
)

// ErrNotOpen is returned by Capture before Open or after Close.
var ErrNotOpen = errors.New("camera: not open")

// Device is an OpenCV-backed tracking.Camera.
type Device struct {
	config Config

	mu  sync.Mutex
	vc  *gocv.VideoCapture
	img gocv.Mat
}

// New validates cfg and returns a closed device.
func New(cfg Config) (*Device, error) {
	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, fmt.Errorf("camera: invalid config: %v", errs)
	}
	return &Device{config: cfg}, nil
}

// Config returns the capture configuration.
func (d *Device) Config() Config {
	return d.config
}

// Open starts capturing from the configured device index.
func (d *Device) Open() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.vc != nil {
		return nil
	}

	vc, err := gocv.OpenVideoCapture(d.config.Index)
	if err != nil {
		return fmt.Errorf("camera: open device %d: %w", d.config.Index, err)
	}
	if !vc.IsOpened() {
		vc.Close()
		return fmt.Errorf("camera: device %d not available", d.config.Index)
	}

	vc.Set(gocv.VideoCaptureFrameWidth, float64(d.config.Width))
	vc.Set(gocv.VideoCaptureFrameHeight, float64(d.config.Height))
	vc.Set(gocv.VideoCaptureFPS, float64(d.config.Framerate))

	d.vc = vc
	d.img = gocv.NewMat()
	return nil
}

// Capture reads one frame and encodes it as JPEG.
func (d *Device) Capture() (tracking.Frame, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.vc == nil {
		return tracking.Frame{}, ErrNotOpen
	}
	if ok := d.vc.Read(&d.img); !ok || d.img.Empty() {
		return tracking.Frame{}, fmt.Errorf("camera: failed to read frame")
	}

	buf, err := gocv.IMEncodeWithParams(gocv.JPEGFileExt, d.img, []int{int(gocv.IMWriteJpegQuality), d.config.Quality})
	if err != nil {
		return tracking.Frame{}, fmt.Errorf("camera: encode frame: %w", err)
	}
	defer buf.Close()

	// GetBytes aliases C memory freed by Close
	jpeg := append([]byte(nil), buf.GetBytes()...)

	return tracking.Frame{
		Width:  d.img.Cols(),
		Height: d.img.Rows(),
		JPEG:   jpeg,
	}, nil
}

// Close releases the device. Safe to call when already closed.
func (d *Device) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.vc == nil {
		return nil
	}
	err := d.vc.Close()
	d.img.Close()
	d.vc = nil
	return err
}

var _ tracking.Camera = (*Device)(nil)
