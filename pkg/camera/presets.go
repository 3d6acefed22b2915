package camera

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownPreset is returned by Preset for names it does not know.
var ErrUnknownPreset = errors.New("camera: unknown preset")

// Preset names accepted by CAMERA_PRESET and `rover track --camera`.
const (
	PresetLow     = "low"
	PresetDefault = "default"
	Preset720p    = "720p"
)

var presets = map[string]func() Config{
	PresetLow:     LowConfig,
	PresetDefault: DefaultConfig,
	Preset720p:    HD720Config,
}

// PresetNames lists the presets, smallest frame first.
func PresetNames() []string {
	return []string{PresetLow, PresetDefault, Preset720p}
}

// Preset returns the named capture settings for the camera at index.
func Preset(name string, index int) (Config, error) {
	newConfig, ok := presets[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return Config{}, fmt.Errorf("%w %q (want %s)", ErrUnknownPreset, name, strings.Join(PresetNames(), ", "))
	}
	cfg := newConfig()
	cfg.Index = index
	return cfg, nil
}

// LowConfig returns 320x240 for boards that cannot keep up with detection
// at full resolution. The tracker's 50px dead zone is relatively wider here.
func LowConfig() Config {
	cfg := DefaultConfig()
	cfg.Width = 320
	cfg.Height = 240
	cfg.Quality = 70
	return cfg
}

// HD720Config returns 1280x720 at 15fps for faces farther from the rover.
func HD720Config() Config {
	cfg := DefaultConfig()
	cfg.Width = 1280
	cfg.Height = 720
	cfg.Framerate = 15
	return cfg
}
