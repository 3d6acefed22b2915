package main

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/spf13/cobra"

	"github.com/teslashibe/go-rover/pkg/hub"
	"github.com/teslashibe/go-rover/pkg/robot"
)

func newWatchCommand(e *env) *cobra.Command {
	var (
		server  string
		sources []string
	)

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Print live events from a running rover server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if server == "" {
				server = fmt.Sprintf("ws://localhost:%s/ws/events", e.cfg.HTTPPort)
			}
			u, err := url.Parse(server)
			if err != nil {
				return fmt.Errorf("bad --url: %w", err)
			}
			if len(sources) > 0 {
				q := u.Query()
				q.Set("source", strings.Join(sources, ","))
				u.RawQuery = q.Encode()
			}
			ctx, cancel := signalContext(cmd.Context())
			defer cancel()

			fmt.Printf("📡 Watching %s (Ctrl+C to stop)\n", u)
			return hub.Subscribe(ctx, u.String(), func(ev robot.Event) {
				fmt.Println(formatEvent(ev))
			})
		},
	}

	cmd.Flags().StringSliceVar(&sources, "source", nil, "only show events from these loops (scan, tracker, follower, pan)")
	cmd.Flags().StringVar(&server, "url", "", "event websocket URL (default ws://localhost:$ROVER_HTTP_PORT/ws/events)")
	return cmd
}
