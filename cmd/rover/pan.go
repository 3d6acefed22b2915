package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/teslashibe/go-rover/pkg/arbiter"
	"github.com/teslashibe/go-rover/pkg/web"
)

func newPanCommand(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "pan ANGLE",
		Short: "Move the pan servo to ANGLE degrees",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			deg, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("angle must be an integer: %w", err)
			}

			rig := buildRig(e.cfg, e.logger)
			defer rig.Close()

			angle, err := web.MovePan(rig.Pan, arbiter.New(e.logger), deg)
			if err != nil {
				return err
			}
			if angle != deg {
				fmt.Printf("⚠️  %d° is outside [%d°, %d°], clamped\n", deg, rig.Pan.MinAngle, rig.Pan.MaxAngle)
			}
			fmt.Printf("🦒 Pan at %d°\n", angle)
			return nil
		},
	}
}
