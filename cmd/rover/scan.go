package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/teslashibe/go-rover/internal/log"
	"github.com/teslashibe/go-rover/pkg/arbiter"
	"github.com/teslashibe/go-rover/pkg/scan"
)

func newScanCommand(e *env) *cobra.Command {
	var (
		start, end, step int
		samples, retries int
		settle           time.Duration
		asJSON           bool
	)

	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Sweep the ultrasonic sensor and report the safest direction",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := e.cfg.Scan
			flags := cmd.Flags()
			if flags.Changed("start") {
				cfg.StartAngle = start
			}
			if flags.Changed("end") {
				cfg.EndAngle = end
			}
			if flags.Changed("step") {
				cfg.Step = step
			}
			if flags.Changed("samples") {
				cfg.SamplesPerAngle = samples
			}
			if flags.Changed("retries") {
				cfg.Retries = retries
			}
			if flags.Changed("settle") {
				cfg.Settle = settle
			}

			if asJSON {
				banners = os.Stderr
			}
			rig := buildRig(e.cfg, e.logger)
			defer rig.Close()

			ctx, cancel := signalContext(cmd.Context())
			defer cancel()

			opts := []scan.Option{scan.WithLogger(log.Component("scan"))}
			if !asJSON {
				opts = append(opts, scan.WithObserver(printer()))
				fmt.Printf("🔭 Scanning %d°..%d° every %d°\n", cfg.StartAngle, cfg.EndAngle, cfg.Step)
			}
			engine := scan.NewEngine(rig.Pan, rig.Sensor, arbiter.New(e.logger), opts...)

			result, err := engine.Run(ctx, cfg)
			if result != nil {
				if asJSON {
					enc := json.NewEncoder(os.Stdout)
					enc.SetIndent("", "  ")
					if encErr := enc.Encode(result); encErr != nil {
						return encErr
					}
				} else {
					printScan(result)
				}
			}
			return err
		},
	}

	def := scan.DefaultConfig()
	cmd.Flags().IntVar(&start, "start", def.StartAngle, "start angle (SCAN_START_ANGLE)")
	cmd.Flags().IntVar(&end, "end", def.EndAngle, "end angle (SCAN_END_ANGLE)")
	cmd.Flags().IntVar(&step, "step", def.Step, "degrees between stops (SCAN_STEP)")
	cmd.Flags().IntVar(&samples, "samples", def.SamplesPerAngle, "samples per angle (SCAN_SAMPLES_PER_ANGLE)")
	cmd.Flags().IntVar(&retries, "retries", def.Retries, "retries per timed-out sample (SCAN_RETRIES)")
	cmd.Flags().DurationVar(&settle, "settle", def.Settle, "servo settle time per stop (SCAN_SETTLE)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the full result as JSON")
	return cmd
}

func printScan(r *scan.Result) {
	fmt.Println()
	fmt.Println("╭──────────────────────────")
	for _, s := range r.Samples {
		fmt.Printf("│ %4d°  %s\n", s.Angle, s.Reading)
	}
	fmt.Println("╰──────────────────────────")
	fmt.Printf("🧭 %s\n", r.Describe())
	fmt.Printf("⏱️  %v\n", r.Duration.Round(time.Millisecond))
}
