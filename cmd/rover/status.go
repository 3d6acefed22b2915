package main

import (
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/teslashibe/go-rover/internal/httpc"
	"github.com/teslashibe/go-rover/pkg/web"
)

func newStatusCommand(e *env) *cobra.Command {
	var url string

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the status of a running rover server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if url == "" {
				url = "http://localhost:" + e.cfg.HTTPPort
			}
			var st web.Status
			if err := httpc.New(url, 5*time.Second).GetJSON(cmd.Context(), "/api/status", &st); err != nil {
				return err
			}
			fmt.Print(formatStatus(st))
			return nil
		},
	}

	cmd.Flags().StringVar(&url, "url", "", "server base URL (default http://localhost:$ROVER_HTTP_PORT)")
	return cmd
}

func yesNo(ok bool) string {
	if ok {
		return color.New(color.Bold, color.FgGreen).Sprint("✔")
	}
	return color.New(color.Bold, color.FgRed).Sprint("✘")
}

func formatStatus(st web.Status) string {
	s := fmt.Sprintf("🦒 Pan:     %s", yesNo(st.Pan.Available))
	if st.Pan.Available {
		s += fmt.Sprintf(" at %d°", st.Pan.Angle)
	}
	if h := st.Pan.Holder; h != nil {
		s += fmt.Sprintf(" (held by %s for %v)", h.Owner, h.HeldFor.Round(time.Millisecond))
	}
	s += "\n"
	s += fmt.Sprintf("📏 Sensor:  %s\n", yesNo(st.Sensor))
	s += fmt.Sprintf("🛞 Motors:  %s\n", yesNo(st.Motors))
	s += fmt.Sprintf("📷 Camera:  %s\n", yesNo(st.Camera))
	if t := st.Tracker; t != nil && t.Running {
		s += fmt.Sprintf("👀 Tracker: %s at %d°\n", t.Mode, t.CurrentAngle)
	}
	if f := st.Follower; f != nil && f.Running {
		s += fmt.Sprintf("🚶 Follow:  %s (%s)\n", f.Mode, f.LastDistance)
	}
	if sum := st.LastScan; sum != nil {
		s += fmt.Sprintf("🔭 Scan:    %s, best %d° (%.1fcm)\n", sum.Status, sum.BestAngle, sum.BestClearanceCM)
	}
	s += fmt.Sprintf("📡 Clients: %d\n", st.Clients)
	return s
}
