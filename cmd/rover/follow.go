package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/teslashibe/go-rover/internal/log"
	"github.com/teslashibe/go-rover/pkg/arbiter"
	"github.com/teslashibe/go-rover/pkg/follow"
)

func newFollowCommand(e *env) *cobra.Command {
	cfg := follow.DefaultConfig()

	cmd := &cobra.Command{
		Use:   "follow",
		Short: "Follow a person at a fixed distance",
		RunE: func(cmd *cobra.Command, _ []string) error {
			rig := buildRig(e.cfg, e.logger)
			defer rig.Close()

			follower := follow.New(cfg, rig.Motors, rig.Sensor, rig.Pan, arbiter.New(e.logger),
				follow.WithLogger(log.Component("follower")),
				follow.WithObserver(printer()))

			ctx, cancel := signalContext(cmd.Context())
			defer cancel()

			if err := follower.Start(); err != nil {
				return err
			}
			c := follower.Config()
			fmt.Printf("🚶 Following at %.0fcm (backing up under %.0fcm, searching beyond %.0fcm)\n",
				c.TargetCM, c.MinCM, c.MaxCM)

			select {
			case <-ctx.Done():
			case <-follower.Done():
			}
			if err := follower.Stop(); err != nil {
				return err
			}
			if st := follower.State(); st.Mode == follow.ModeLost {
				fmt.Println("🤷 Lost the person, stopped.")
			}
			return nil
		},
	}

	cmd.Flags().Float64Var(&cfg.TargetCM, "target", cfg.TargetCM, "distance to hold in cm")
	cmd.Flags().Float64Var(&cfg.MinCM, "min", cfg.MinCM, "back up when closer than this (cm)")
	cmd.Flags().Float64Var(&cfg.MaxCM, "max", cfg.MaxCM, "search when farther than this (cm)")
	cmd.Flags().DurationVar(&cfg.SearchTimeout, "search-timeout", cfg.SearchTimeout, "give up after searching this long")
	return cmd
}
