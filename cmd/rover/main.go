// Rover - pan-servo scanning, face tracking and person following for a
// two-wheel robot.
//
// Usage:
//
//	rover scan                 # sweep the sensor and report the safest direction
//	rover track                # follow a face with the pan servo
//	rover follow               # keep a fixed distance from a person
//	rover pan 120              # move the pan servo once
//	rover serve                # HTTP API + event websocket
//	rover watch                # print events from a running server
//	rover status               # show a running server's status
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/teslashibe/go-rover/internal/config"
	"github.com/teslashibe/go-rover/internal/log"
	"github.com/teslashibe/go-rover/pkg/arbiter"
	"github.com/teslashibe/go-rover/pkg/robot"
)

// env is shared by every subcommand after PersistentPreRunE.
type env struct {
	cfg    config.Config
	logger *slog.Logger

	sim      bool
	logLevel string
}

func main() {
	cmd := NewCommand()
	if err := cmd.Execute(); err != nil {
		handleCmdError(err)
		os.Exit(1)
	}
}

func handleCmdError(err error) {
	red := color.New(color.FgRed)
	switch {
	case errors.Is(err, arbiter.ErrBusy):
		red.Fprintln(os.Stderr, "\n❌ The pan servo is in use by another controller.")
		fmt.Fprintln(os.Stderr, "   Stop face tracking or wait for the scan to finish.")
	case errors.Is(err, robot.ErrHardwareUnavailable):
		red.Fprintln(os.Stderr, "\n❌ Required hardware is not available.")
		fmt.Fprintln(os.Stderr, "   Check the wiring and the SERVO_*/ULTRASONIC_*/MOTOR_* settings, or run with --sim.")
	}
}

// NewCommand builds the root command.
func NewCommand() *cobra.Command {
	e := &env{}

	cmd := &cobra.Command{
		Use:   "rover",
		Short: "rover drives the scanning, tracking and following loops",
		Long: `rover drives a two-wheel robot with a pan servo, an ultrasonic sensor
and a camera. Settings come from the environment (SCAN_*, SERVO_*,
ULTRASONIC_*, MOTOR_*, BRIDGE_*, CAMERA_INDEX, FACE_*); flags override them.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, warnings := config.Load()
			if cmd.Flags().Changed("sim") {
				cfg.Sim = e.sim
			}
			if cmd.Flags().Changed("log-level") {
				cfg.LogLevel = e.logLevel
			}
			log.Init(cfg.LogLevel)
			e.cfg = cfg
			e.logger = log.L()
			for _, w := range warnings {
				e.logger.Warn("config", "warning", w)
			}
			return nil
		},
	}

	cmd.PersistentFlags().BoolVar(&e.sim, "sim", false, "use simulated hardware (ROVER_SIM)")
	cmd.PersistentFlags().StringVar(&e.logLevel, "log-level", config.DefaultLogLevel, "debug, info, warn or error (ROVER_LOG_LEVEL)")

	cmd.AddCommand(
		newScanCommand(e),
		newTrackCommand(e),
		newFollowCommand(e),
		newPanCommand(e),
		newServeCommand(e),
		newWatchCommand(e),
		newStatusCommand(e),
	)
	return cmd
}

// signalContext is cancelled on Ctrl+C or SIGTERM.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case <-sigChan:
			fmt.Println("\n\n👋 Goodbye!")
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(sigChan)
	}()
	return ctx, cancel
}
