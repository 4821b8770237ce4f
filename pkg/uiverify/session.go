package uiverify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"sync"
	"time"
)

// SessionConfig configures the Session Bootstrapper.
type SessionConfig struct {
	BaseURL  string
	Viewport Viewport
	// SeededStorage is written into localStorage after the first
	// navigation and before a reload, so the application reads it at boot.
	SeededStorage map[string]string
	// BootstrapTimeout bounds navigation, seeding and reload together.
	BootstrapTimeout time.Duration
}

// Session owns one browser instance and one page for the length of a run.
type Session struct {
	browser Browser
	page    Page
	cfg     SessionConfig
	logger  *slog.Logger

	once     sync.Once
	closeErr error
}

// OpenSession launches an isolated browser and opens a page with the
// configured viewport. No navigation happens yet.
func OpenSession(ctx context.Context, launch LaunchFunc, cfg SessionConfig, logger *slog.Logger) (*Session, error) {
	browser, err := launch(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}
	page, err := browser.NewPage(ctx, cfg.Viewport)
	if err != nil {
		if cerr := browser.Close(); cerr != nil {
			logger.Warn("browser close failed", "err", cerr)
		}
		return nil, fmt.Errorf("failed to open page: %w", err)
	}
	return &Session{browser: browser, page: page, cfg: cfg, logger: logger}, nil
}

// StartSession opens a session and bootstraps it. On failure the session
// is closed before returning.
func StartSession(ctx context.Context, launch LaunchFunc, cfg SessionConfig, logger *slog.Logger) (*Session, error) {
	s, err := OpenSession(ctx, launch, cfg, logger)
	if err != nil {
		return nil, err
	}
	if err := s.Bootstrap(ctx); err != nil {
		return nil, errors.Join(err, s.Close())
	}
	return s, nil
}

// Bootstrap navigates to the base URL and, when storage is seeded, writes
// every key and reloads so the application boots with the seeded values.
// Storage requires a loaded document, so the order is navigate, seed, reload.
func (s *Session) Bootstrap(ctx context.Context) error {
	if s.cfg.BootstrapTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.BootstrapTimeout)
		defer cancel()
	}

	s.logger.Info("navigating", "url", s.cfg.BaseURL)
	if err := s.page.Navigate(ctx, s.cfg.BaseURL); err != nil {
		return &NavigationError{URL: s.cfg.BaseURL, Err: err}
	}
	if len(s.cfg.SeededStorage) == 0 {
		return nil
	}

	for _, key := range slices.Sorted(maps.Keys(s.cfg.SeededStorage)) {
		if err := s.page.SetStorageItem(ctx, key, s.cfg.SeededStorage[key]); err != nil {
			return fmt.Errorf("failed to seed %s: %w", key, err)
		}
		s.logger.Debug("seeded storage", "key", key, "value", s.cfg.SeededStorage[key])
	}
	if err := s.page.Reload(ctx); err != nil {
		return &NavigationError{URL: s.cfg.BaseURL, Err: fmt.Errorf("reload after seeding: %w", err)}
	}
	return nil
}

// Page returns the session's page.
func (s *Session) Page() Page { return s.page }

// Close releases the page and the browser. Only the first call has an
// effect; later calls return the first call's error.
func (s *Session) Close() error {
	s.once.Do(func() {
		perr := s.page.Close()
		berr := s.browser.Close()
		s.closeErr = errors.Join(perr, berr)
		s.logger.Debug("session closed", "err", s.closeErr)
	})
	return s.closeErr
}
