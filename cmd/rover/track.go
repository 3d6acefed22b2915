package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/teslashibe/go-rover/internal/wait"
	"github.com/teslashibe/go-rover/pkg/arbiter"
	"github.com/teslashibe/go-rover/pkg/camera"
	"github.com/teslashibe/go-rover/pkg/tracking"
)

// trackingPresets maps --preset names to tracker configs.
var trackingPresets = map[string]func() tracking.Config{
	"default":    tracking.DefaultConfig,
	"slow":       tracking.SlowConfig,
	"aggressive": tracking.AggressiveConfig,
}

func newTrackCommand(e *env) *cobra.Command {
	var (
		preset   string
		cam      string
		duration time.Duration
	)

	cmd := &cobra.Command{
		Use:   "track",
		Short: "Keep a face centered with the pan servo",
		RunE: func(cmd *cobra.Command, _ []string) error {
			newConfig, ok := trackingPresets[preset]
			if !ok {
				return fmt.Errorf("unknown preset %q (default, slow, aggressive)", preset)
			}
			cfg := e.cfg
			if cmd.Flags().Changed("camera") {
				c, err := camera.Preset(cam, cfg.Camera.Index)
				if err != nil {
					return err
				}
				cfg.Camera = c
			}

			rig := buildRig(e.cfg, e.logger)
			defer rig.Close()

			tracker, cleanup, err := buildTracker(cfg, newConfig(), rig, arbiter.New(e.logger), printer(), e.logger)
			if err != nil {
				return err
			}
			defer cleanup()

			ctx, cancel := signalContext(cmd.Context())
			defer cancel()

			if err := tracker.Start(); err != nil {
				return err
			}
			fmt.Println("👀 Tracking faces (Ctrl+C to stop)")

			if duration > 0 {
				wait.Sleep(ctx, duration)
			} else {
				<-ctx.Done()
			}
			return tracker.Stop()
		},
	}

	cmd.Flags().StringVar(&preset, "preset", "default", "tuning preset: default, slow or aggressive")
	cmd.Flags().StringVar(&cam, "camera", camera.PresetDefault, "capture preset: low, default or 720p (CAMERA_PRESET)")
	cmd.Flags().DurationVar(&duration, "duration", 0, "stop after this long (0 runs until Ctrl+C)")
	return cmd
}
