package uiverify

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/muesli/termenv"
)

// Reporter writes screenshots and console diagnostics.
type Reporter struct {
	dir    string
	out    *termenv.Output
	logger *slog.Logger
}

// NewReporter creates a Reporter writing artifacts under dir and console
// diagnostics to w. Colour is detected from w unless overridden by opts.
func NewReporter(dir string, w io.Writer, logger *slog.Logger, opts ...termenv.OutputOption) *Reporter {
	return &Reporter{
		dir:    dir,
		out:    termenv.NewOutput(w, opts...),
		logger: logger,
	}
}

// Dir returns the artifact directory.
func (r *Reporter) Dir() string { return r.dir }

// Capture writes a PNG screenshot of page to <dir>/<tag>.png and returns
// its path.
func (r *Reporter) Capture(ctx context.Context, page Page, tag string) (string, error) {
	if err := os.MkdirAll(r.dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create artifact dir: %w", err)
	}
	data, err := page.Screenshot(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to capture %s screenshot: %w", tag, err)
	}
	path := filepath.Join(r.dir, tag+".png")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", path, err)
	}
	r.logger.Info("screenshot saved", "tag", tag, "path", path)
	return path, nil
}

// Step prints a progress line for a flow step.
func (r *Reporter) Step(msg string) {
	fmt.Fprintln(r.out, r.out.String("> "+msg).Faint())
}

// Report prints one line per check followed by a summary.
func (r *Reporter) Report(res *Result) {
	fmt.Fprintf(r.out, "== %s ==\n", res.Flow)
	for _, c := range res.Checks() {
		fmt.Fprintln(r.out, r.line(c))
	}

	var passed, failed, warned int
	for _, c := range res.Checks() {
		switch c.Status {
		case StatusPass:
			passed++
		case StatusFail:
			failed++
		case StatusWarn:
			warned++
		}
	}
	fmt.Fprintf(r.out, "checks: %d passed, %d failed, %d warnings\n", passed, failed, warned)
	if arts := res.Artifacts(); len(arts) > 0 {
		fmt.Fprintf(r.out, "artifacts: %s\n", strings.Join(arts, ", "))
	}
	if res.Err != nil {
		fmt.Fprintf(r.out, "error: %v\n", res.Err)
	}
	if res.Passed() {
		fmt.Fprintln(r.out, r.status(StatusPass, "result: PASS"))
	} else {
		fmt.Fprintln(r.out, r.status(StatusFail, "result: FAIL"))
	}
}

// WriteJSON writes res to <dir>/<flow>.json.
func (r *Reporter) WriteJSON(res *Result) (string, error) {
	if err := os.MkdirAll(r.dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create artifact dir: %w", err)
	}
	data, err := json.MarshalIndent(res, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode result: %w", err)
	}
	path := filepath.Join(r.dir, res.Flow+".json")
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", path, err)
	}
	return path, nil
}

func (r *Reporter) line(c Check) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s", r.status(c.Status, fmt.Sprintf("%-4s", c.Status)), c.Name)
	if c.Expected != "" || c.Actual != "" {
		fmt.Fprintf(&b, " expected=%q actual=%q", c.Expected, c.Actual)
	}
	if c.Message != "" {
		fmt.Fprintf(&b, " - %s", c.Message)
	}
	return b.String()
}

func (r *Reporter) status(s Status, text string) string {
	style := r.out.String(text)
	switch s {
	case StatusPass:
		style = style.Foreground(r.out.Color("2"))
	case StatusFail:
		style = style.Foreground(r.out.Color("1")).Bold()
	case StatusWarn:
		style = style.Foreground(r.out.Color("3"))
	case StatusInfo:
		style = style.Foreground(r.out.Color("6"))
	}
	return style.String()
}
