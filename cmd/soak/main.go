// Soak runner for long-duration verification.
//
// This tool runs one flow repeatedly, each run in a fresh browser session,
// and watches for flaky outcomes, runs that slow down over time and
// sessions that leak memory or goroutines.
//
// Usage:
//
//	go run ./cmd/soak --url http://localhost:5173 --duration 1h
//	go run ./cmd/soak --flow sync --duration 10m --engine chromedp
//
// Exposes pprof endpoint at :6060 for live profiling:
//
//	curl http://localhost:6060/debug/pprof/heap > heap.pprof
//	go tool pprof heap.pprof
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	_ "net/http/pprof" // Enable pprof endpoints
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/thesyncim/uiverify/pkg/uiverify"
	"github.com/thesyncim/uiverify/pkg/uiverify/engine"
	"github.com/thesyncim/uiverify/pkg/uiverify/flows"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newCommand().ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func newCommand() *cobra.Command {
	cfg := uiverify.DefaultConfig()
	sc := defaultSoakConfig()
	var (
		flowName  string
		pprofPort int
		verbose   bool
	)

	cmd := &cobra.Command{
		Use:           "soak",
		Short:         "Run a verification flow repeatedly",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			level := slog.LevelWarn
			if verbose {
				level = slog.LevelDebug
			}
			logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

			flow, ok := flows.ByName(flowName)
			if !ok {
				return fmt.Errorf("unknown flow %q", flowName)
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			launch, err := engine.Launcher(cfg)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "uiverify Soak Runner\n")
			fmt.Fprintf(out, "====================\n")
			fmt.Fprintf(out, "Flow:     %s\n", flow.Name)
			fmt.Fprintf(out, "Duration: %v\n", sc.Duration)
			fmt.Fprintf(out, "Pprof:    http://localhost:%d/debug/pprof/\n\n", pprofPort)

			if pprofPort > 0 {
				go func() {
					addr := fmt.Sprintf(":%d", pprofPort)
					if err := http.ListenAndServe(addr, nil); err != nil {
						logger.Warn("pprof server failed", "err", err)
					}
				}()
			}

			result := runSoak(cmd.Context(), sc, launch, cfg, flow, out, logger)
			printSummary(out, result)
			if result.Status != "PASS" {
				return errors.New("soak failed")
			}
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVar(&flowName, "flow", "dialog-idempotence", "flow to repeat")
	f.StringVar(&cfg.BaseURL, "url", cfg.BaseURL, "application base URL")
	f.StringVar(&cfg.Engine, "engine", cfg.Engine, "browser engine: rod, chromedp or static")
	f.StringVarP(&cfg.OutputDir, "out", "o", "verification/soak", "artifact directory")
	f.DurationVar(&sc.Duration, "duration", sc.Duration, "test duration (e.g., 1h, 24h)")
	f.DurationVar(&sc.Interval, "interval", sc.Interval, "pause between runs")
	f.IntVar(&pprofPort, "pprof-port", 6060, "port for pprof HTTP server, 0 disables")
	f.BoolVarP(&verbose, "verbose", "v", false, "log every run")
	return cmd
}
