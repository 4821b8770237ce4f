package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"runtime"
	"time"

	"github.com/thesyncim/uiverify/pkg/uiverify"
)

const (
	heapLimitMB = 200
	// Goroutines allowed above the baseline before a session is
	// considered leaked.
	goroutineSlack = 20
	// A run slower than this multiple of the first run's duration is
	// counted as a slowdown.
	slowdownFactor = 3
)

type soakConfig struct {
	Duration       time.Duration
	Interval       time.Duration
	StatusInterval time.Duration
}

func defaultSoakConfig() soakConfig {
	return soakConfig{
		Duration:       time.Hour,
		Interval:       time.Second,
		StatusInterval: 5 * time.Minute,
	}
}

// SoakResult contains the results of a soak test run.
type SoakResult struct {
	Duration       time.Duration
	Runs           int
	Failed         int
	Warnings       int
	FirstRun       time.Duration
	SlowestRun     time.Duration
	Slowdowns      int
	PeakHeapMB     float64
	BaseGoroutines int
	PeakGoroutines int
	FailedRunIDs   []string
	Status         string
}

func runSoak(ctx context.Context, sc soakConfig, launch uiverify.LaunchFunc, cfg uiverify.Config, flow uiverify.Flow, out io.Writer, logger *slog.Logger) SoakResult {
	result := SoakResult{
		Status:         "PASS",
		BaseGoroutines: runtime.NumGoroutine(),
	}
	rep := uiverify.NewReporter(cfg.OutputDir, io.Discard, logger)

	var memStats runtime.MemStats
	startTime := time.Now()
	lastStatusTime := startTime

	fmt.Fprintf(out, "[%s] Starting soak test...\n", formatDuration(0))

	for {
		if ctx.Err() != nil {
			break
		}
		elapsed := time.Since(startTime)
		if elapsed >= sc.Duration {
			break
		}

		runStart := time.Now()
		res, err := uiverify.Run(ctx, launch, cfg, flow, rep, logger)
		took := time.Since(runStart)
		if ctx.Err() != nil {
			break
		}

		result.Runs++
		result.Warnings += len(res.Warnings())
		if err != nil {
			result.Failed++
			result.FailedRunIDs = append(result.FailedRunIDs, res.RunID.String())
			result.Status = "FAIL"
			fmt.Fprintf(out, "[%s] ERROR: run %d failed: %v\n", formatDuration(elapsed), result.Runs, err)
			if _, jerr := rep.WriteJSON(res); jerr != nil {
				logger.Warn("failed to write result", "err", jerr)
			}
		}

		if result.Runs == 1 {
			result.FirstRun = took
		} else if took > slowdownFactor*result.FirstRun {
			result.Slowdowns++
			fmt.Fprintf(out, "[%s] WARNING: run %d took %v (first run %v)\n",
				formatDuration(elapsed), result.Runs, took.Round(time.Millisecond), result.FirstRun.Round(time.Millisecond))
		}
		result.SlowestRun = max(result.SlowestRun, took)

		runtime.ReadMemStats(&memStats)
		heapMB := float64(memStats.HeapAlloc) / (1024 * 1024)
		result.PeakHeapMB = max(result.PeakHeapMB, heapMB)
		g := runtime.NumGoroutine()
		result.PeakGoroutines = max(result.PeakGoroutines, g)

		if time.Since(lastStatusTime) >= sc.StatusInterval {
			lastStatusTime = time.Now()
			fmt.Fprintf(out, "[%s] Runs: %d, Failed: %d, HeapAlloc: %.2f MB, Goroutines: %d\n",
				formatDuration(elapsed), result.Runs, result.Failed, heapMB, g)
		}

		select {
		case <-ctx.Done():
		case <-time.After(sc.Interval):
		}
	}

	result.Duration = time.Since(startTime)
	if result.PeakHeapMB > heapLimitMB {
		fmt.Fprintf(out, "ERROR: Memory limit exceeded: %.2f MB\n", result.PeakHeapMB)
		result.Status = "FAIL"
	}
	if leaked(result) {
		fmt.Fprintf(out, "ERROR: Goroutines grew from %d to %d\n", result.BaseGoroutines, result.PeakGoroutines)
		result.Status = "FAIL"
	}
	if result.Runs == 0 {
		result.Status = "FAIL"
	}
	return result
}

func leaked(r SoakResult) bool {
	return r.PeakGoroutines > r.BaseGoroutines+goroutineSlack
}

func printSummary(out io.Writer, result SoakResult) {
	fmt.Fprintf(out, "\n")
	fmt.Fprintf(out, "Soak Test Complete\n")
	fmt.Fprintf(out, "==================\n")
	fmt.Fprintf(out, "Duration:          %v\n", result.Duration.Round(time.Second))
	fmt.Fprintf(out, "Runs:              %d\n", result.Runs)
	fmt.Fprintf(out, "Failed runs:       %d\n", result.Failed)
	fmt.Fprintf(out, "Warnings:          %d\n", result.Warnings)
	fmt.Fprintf(out, "First run:         %v\n", result.FirstRun.Round(time.Millisecond))
	fmt.Fprintf(out, "Slowest run:       %v\n", result.SlowestRun.Round(time.Millisecond))
	fmt.Fprintf(out, "Peak HeapAlloc:    %.2f MB\n", result.PeakHeapMB)
	fmt.Fprintf(out, "Peak goroutines:   %d (baseline %d)\n", result.PeakGoroutines, result.BaseGoroutines)
	for _, id := range result.FailedRunIDs {
		fmt.Fprintf(out, "Failed run:        %s\n", id)
	}
	fmt.Fprintf(out, "Status:            %s\n", result.Status)
	fmt.Fprintf(out, "\n")

	fmt.Fprintf(out, "Pass Criteria:\n")
	fmt.Fprintf(out, "  - At least one run:     %s\n", checkMark(result.Runs > 0))
	fmt.Fprintf(out, "  - No failed runs:       %s\n", checkMark(result.Failed == 0))
	fmt.Fprintf(out, "  - Peak memory < %d MB: %s\n", heapLimitMB, checkMark(result.PeakHeapMB <= heapLimitMB))
	fmt.Fprintf(out, "  - No goroutine growth:  %s\n", checkMark(!leaked(result)))
}

func formatDuration(d time.Duration) string {
	h := d / time.Hour
	m := (d % time.Hour) / time.Minute
	s := (d % time.Minute) / time.Second
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}

func checkMark(pass bool) string {
	if pass {
		return "PASS"
	}
	return "FAIL"
}
