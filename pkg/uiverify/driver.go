package uiverify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// DriverConfig configures element waits.
type DriverConfig struct {
	// PollInterval is the delay between samples of a polling wait.
	PollInterval time.Duration
	// SettleDelay is a fixed pause before settle sampling starts.
	// Zero skips the pause.
	SettleDelay time.Duration
	// SettleTimeout bounds the wait for an element to stop changing.
	SettleTimeout time.Duration
	// SettleSamples is the number of consecutive identical samples that
	// count as settled.
	SettleSamples int
}

// DefaultDriverConfig returns the waits used by the bundled flows.
func DefaultDriverConfig() DriverConfig {
	return DriverConfig{
		PollInterval:  50 * time.Millisecond,
		SettleTimeout: 3 * time.Second,
		SettleSamples: 3,
	}
}

// settleAttrs are sampled while waiting for a transition to complete.
var settleAttrs = append([]string{"class", "style"}, ARIAAttrs...)

// Driver locates elements and performs user actions on a page.
// It holds no element handles between calls.
type Driver struct {
	page   Page
	cfg    DriverConfig
	clock  Clock
	logger *slog.Logger
}

// NewDriver creates a Driver for page.
func NewDriver(page Page, cfg DriverConfig, clock Clock, logger *slog.Logger) *Driver {
	if cfg.SettleSamples < 2 {
		cfg.SettleSamples = 2
	}
	return &Driver{page: page, cfg: cfg, clock: clock, logger: logger}
}

// Find returns a lazy Locator for q.
func (d *Driver) Find(q Query) *Locator {
	return &Locator{page: d.page, query: q, now: d.clock.Now}
}

// Click clicks the first element matched by loc. The element must be
// visible and enabled; the click is attempted exactly once.
func (d *Driver) Click(ctx context.Context, loc *Locator) error {
	_, err := d.ClickAt(ctx, loc)
	return err
}

// ClickAt is Click, also returning the clock reading taken after the
// element was resolved and checked, immediately before the click is
// dispatched. Transition latencies are measured from it.
func (d *Driver) ClickAt(ctx context.Context, loc *Locator) (time.Time, error) {
	el, err := loc.First(ctx)
	if err != nil {
		return time.Time{}, err
	}
	visible, err := el.Visible(ctx)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to check visibility of %s: %w", loc, err)
	}
	if !visible {
		return time.Time{}, &ElementNotInteractableError{Query: loc.Query(), Reason: "not visible"}
	}
	enabled, err := isEnabled(ctx, el)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to check enabled state of %s: %w", loc, err)
	}
	if !enabled {
		return time.Time{}, &ElementNotInteractableError{Query: loc.Query(), Reason: "disabled"}
	}
	d.logger.Debug("click", "query", loc.String())
	sent := d.clock.Now()
	if err := el.Click(ctx); err != nil {
		return sent, &ElementNotInteractableError{Query: loc.Query(), Reason: err.Error()}
	}
	return sent, nil
}

// WaitForAppearance polls until q matches a visible element or timeout
// elapses, in which case it returns *TimeoutVerificationError.
func (d *Driver) WaitForAppearance(ctx context.Context, q Query, timeout time.Duration) (*Locator, error) {
	loc := d.Find(q)
	elapsed, err := poll(ctx, d.clock, timeout, d.cfg.PollInterval, func(ctx context.Context) (bool, error) {
		els, err := loc.All(ctx)
		if err != nil {
			return false, err
		}
		for _, el := range els {
			v, err := el.Visible(ctx)
			if errors.Is(err, ErrStaleElement) {
				return false, nil
			}
			if err != nil {
				return false, err
			}
			if v {
				return true, nil
			}
		}
		return false, nil
	})
	if errors.Is(err, errPollTimeout) {
		return nil, &TimeoutVerificationError{Text: q.String(), Elapsed: elapsed, Timeout: timeout}
	}
	if err != nil {
		return nil, err
	}
	d.logger.Debug("appeared", "query", q.String(), "elapsed", elapsed)
	return loc, nil
}

// WaitForHidden polls until q matches no visible element.
func (d *Driver) WaitForHidden(ctx context.Context, q Query, timeout time.Duration) error {
	loc := d.Find(q)
	elapsed, err := poll(ctx, d.clock, timeout, d.cfg.PollInterval, func(ctx context.Context) (bool, error) {
		els, err := loc.All(ctx)
		if err != nil {
			return false, err
		}
		for _, el := range els {
			v, err := el.Visible(ctx)
			if errors.Is(err, ErrStaleElement) {
				continue
			}
			if err != nil {
				return false, err
			}
			if v {
				return false, nil
			}
		}
		return true, nil
	})
	if errors.Is(err, errPollTimeout) {
		return &TimeoutVerificationError{Text: "hidden " + q.String(), Elapsed: elapsed, Timeout: timeout}
	}
	return err
}

// Reload reloads the page. Locators remain valid; elements do not.
func (d *Driver) Reload(ctx context.Context) error {
	if err := d.page.Reload(ctx); err != nil {
		return fmt.Errorf("failed to reload: %w", err)
	}
	return nil
}

// Settle waits for the first element matched by q to stop changing:
// after the optional fixed SettleDelay it samples bounds and attributes
// until SettleSamples consecutive samples are identical.
func (d *Driver) Settle(ctx context.Context, q Query) error {
	if err := sleep(ctx, d.cfg.SettleDelay); err != nil {
		return err
	}
	loc := d.Find(q)
	var (
		last   ElementSnapshot
		stable int
	)
	elapsed, err := poll(ctx, d.clock, d.cfg.SettleTimeout, d.cfg.PollInterval, func(ctx context.Context) (bool, error) {
		snap, err := loc.Snapshot(ctx, settleAttrs...)
		if err != nil {
			return false, err
		}
		if stable > 0 && snap.SameState(last) && snap.Rect() == last.Rect() {
			stable++
		} else {
			stable = 1
		}
		last = snap
		return stable >= d.cfg.SettleSamples, nil
	})
	if errors.Is(err, errPollTimeout) {
		return &TimeoutVerificationError{Text: "settled " + q.String(), Elapsed: elapsed, Timeout: d.cfg.SettleTimeout}
	}
	return err
}

// isEnabled reports whether el accepts interaction.
func isEnabled(ctx context.Context, el Element) (bool, error) {
	if _, disabled, err := el.Attribute(ctx, "disabled"); err != nil || disabled {
		return false, err
	}
	v, _, err := el.Attribute(ctx, "aria-disabled")
	if err != nil {
		return false, err
	}
	return v != "true", nil
}
