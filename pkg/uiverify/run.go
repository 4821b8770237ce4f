package uiverify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/thesyncim/uiverify/pkg/uiverify/internal"
)

var monotonic Clock = internal.MonotonicClock{}

// Flow is one scripted verification.
type Flow struct {
	Name string
	// Viewport overrides Config.Viewport when non-zero.
	Viewport Viewport
	// SeededStorage is written before the application boots.
	SeededStorage map[string]string
	// Steps runs the flow. Bootstrapping has already happened.
	Steps func(ctx context.Context, h *Harness) error
}

// Harness gives a running flow access to the run's components.
type Harness struct {
	Config   Config
	Session  *Session
	Driver   *Driver
	Observer *Observer
	Assert   *Asserter
	Result   *Result

	reporter *Reporter
	logger   *slog.Logger
}

// Step announces a flow step on the console.
func (h *Harness) Step(msg string) {
	h.reporter.Step(msg)
	h.logger.Info(msg, "flow", h.Result.Flow)
}

// Capture writes a checkpoint screenshot and records it as an artifact.
func (h *Harness) Capture(ctx context.Context, tag string) error {
	path, err := h.reporter.Capture(ctx, h.Session.Page(), tag)
	if err != nil {
		return err
	}
	h.Result.AddArtifact(path)
	return nil
}

// Run executes flow in its own browser session.
//
// The session is closed exactly once on every exit path. Any failure,
// whether a returned error, a panic or a failed check, triggers an
// "error" screenshot before the session closes. The returned error is nil
// only when the run passed; failed checks without a flow error yield
// ErrChecksFailed.
func Run(ctx context.Context, launch LaunchFunc, cfg Config, flow Flow, rep *Reporter, logger *slog.Logger) (*Result, error) {
	res := NewResult(flow.Name)
	defer rep.Report(res)

	if err := cfg.Validate(); err != nil {
		err = fmt.Errorf("invalid config: %w", err)
		res.Err = err
		res.Fail("config", "valid configuration", "invalid", err)
		res.Finished = time.Now()
		return res, err
	}

	ctx, cancel := context.WithTimeout(ctx, cfg.Timeouts.Flow)
	defer cancel()

	vp := flow.Viewport
	if vp == (Viewport{}) {
		vp = cfg.Viewport
	}
	sess, err := OpenSession(ctx, launch, SessionConfig{
		BaseURL:          cfg.BaseURL,
		Viewport:         vp,
		SeededStorage:    flow.SeededStorage,
		BootstrapTimeout: cfg.Timeouts.Bootstrap,
	}, logger)
	if err != nil {
		res.Err = err
		res.Fail("session.open", "browser session", "none", err)
		res.Finished = time.Now()
		return res, err
	}
	defer func() {
		if err := sess.Close(); err != nil {
			logger.Warn("session close failed", "err", err)
		}
	}()

	clock := cfg.clock()
	page := sess.Page()
	h := &Harness{
		Config:  cfg,
		Session: sess,
		Driver: NewDriver(page, DriverConfig{
			PollInterval:  cfg.Timeouts.Poll,
			SettleDelay:   cfg.Timeouts.SettleDelay,
			SettleTimeout: cfg.Timeouts.Settle,
			SettleSamples: 3,
		}, clock, logger),
		Observer: NewObserver(page, cfg.Timeouts.Poll, clock, res, logger),
		Assert:   NewAsserter(page, res),
		Result:   res,
		reporter: rep,
		logger:   logger,
	}

	err = guard(func() error {
		if err := sess.Bootstrap(ctx); err != nil {
			return err
		}
		return flow.Steps(ctx, h)
	})
	if err == nil && len(res.Failures()) > 0 {
		err = ErrChecksFailed
	}
	if err != nil {
		if !errors.Is(err, ErrChecksFailed) {
			res.Err = err
		}
		logger.Error("verification failed", "flow", flow.Name, "err", err)
		captureCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
		defer cancel()
		if cerr := h.Capture(captureCtx, "error"); cerr != nil {
			logger.Warn("error screenshot failed", "err", cerr)
		}
	}
	res.Finished = time.Now()
	return res, err
}

// guard runs fn and converts a panic into an error.
func guard(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return fn()
}
