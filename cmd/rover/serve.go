package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/teslashibe/go-rover/internal/config"
	"github.com/teslashibe/go-rover/internal/log"
	"github.com/teslashibe/go-rover/pkg/arbiter"
	"github.com/teslashibe/go-rover/pkg/follow"
	"github.com/teslashibe/go-rover/pkg/hub"
	"github.com/teslashibe/go-rover/pkg/robot"
	"github.com/teslashibe/go-rover/pkg/scan"
	"github.com/teslashibe/go-rover/pkg/tracking"
	"github.com/teslashibe/go-rover/pkg/web"
)

func newServeCommand(e *env) *cobra.Command {
	var port string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the control API and the event websocket",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !cmd.Flags().Changed("port") {
				port = e.cfg.HTTPPort
			}

			fmt.Println("🤖 go-rover")
			fmt.Println("===========")

			rig := buildRig(e.cfg, e.logger)
			defer rig.Close()

			ctx, cancel := signalContext(cmd.Context())
			defer cancel()

			events := hub.New("events", e.logger)
			hubCtx, stopHub := context.WithCancel(context.Background())
			defer stopHub()
			go events.Run(hubCtx)

			arb := arbiter.New(e.logger)
			ctl := web.Controllers{
				Rig:        rig,
				Arbiter:    arb,
				ScanConfig: e.cfg.Scan,
				Scanner: scan.NewEngine(rig.Pan, rig.Sensor, arb,
					scan.WithLogger(log.Component("scan")),
					scan.WithObserver(events)),
				Follower: follow.New(follow.DefaultConfig(), rig.Motors, rig.Sensor, rig.Pan, arb,
					follow.WithLogger(log.Component("follower")),
					follow.WithObserver(events)),
			}

			tracker, cleanup, err := buildTracker(e.cfg, tracking.DefaultConfig(), rig, arb, events, e.logger)
			if err != nil {
				e.logger.Warn("face tracking disabled", "error", err)
			} else {
				ctl.Tracker = tracker
				defer cleanup()
			}

			server := web.NewServer(port, ctl, events, e.logger)
			server.StartAsync()
			fmt.Printf("📡 Events: ws://localhost:%s/ws/events\n", port)
			robot.Emit(events, robot.Event{Source: "rover", Kind: "started", Message: "API ready"})

			<-ctx.Done()

			if ctl.Tracker != nil {
				if err := ctl.Tracker.Stop(); err != nil {
					e.logger.Warn("tracker stop", "error", err)
				}
			}
			if err := ctl.Follower.Stop(); err != nil {
				e.logger.Warn("follower stop", "error", err)
			}
			return server.Shutdown()
		},
	}

	cmd.Flags().StringVar(&port, "port", config.DefaultHTTPPort, "HTTP port (ROVER_HTTP_PORT)")
	return cmd
}
