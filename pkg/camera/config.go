// Package camera captures JPEG frames from a V4L2/USB camera through OpenCV
// for the face tracker.
package camera

// Config holds the capture parameters.
type Config struct {
	Index     int `json:"index"`     // Device index (/dev/videoN)
	Width     int `json:"width"`     // Frame width in pixels
	Height    int `json:"height"`    // Frame height in pixels
	Framerate int `json:"framerate"` // Target FPS
	Quality   int `json:"quality"`   // JPEG quality 1-100
}

// Capture limits for the USB and CSI cameras the rover ships with.
const (
	MinWidth     = 160
	MinHeight    = 120
	MaxWidth     = 1920
	MaxHeight    = 1080
	MaxFramerate = 60
)

// DefaultConfig returns 640x480, the resolution the tracker's dead zone is
// tuned for.
func DefaultConfig() Config {
	return Config{
		Index:     0,
		Width:     640,
		Height:    480,
		Framerate: 20,
		Quality:   80,
	}
}

// Validate checks if the config values are within valid ranges.
// Returns a list of validation errors, or nil if valid.
func (c *Config) Validate() []string {
	var errors []string

	if c.Index < 0 {
		errors = append(errors, "index must not be negative")
	}
	if c.Width < MinWidth || c.Width > MaxWidth {
		errors = append(errors, "width must be between 160 and 1920")
	}
	if c.Height < MinHeight || c.Height > MaxHeight {
		errors = append(errors, "height must be between 120 and 1080")
	}
	if c.Framerate < 1 || c.Framerate > MaxFramerate {
		errors = append(errors, "framerate must be between 1 and 60")
	}
	if c.Quality < 1 || c.Quality > 100 {
		errors = append(errors, "quality must be between 1 and 100")
	}

	return errors
}
