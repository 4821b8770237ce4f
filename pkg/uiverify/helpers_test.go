package uiverify_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/thesyncim/uiverify/pkg/uiverify"
	"github.com/thesyncim/uiverify/pkg/uiverify/htmlpage"
	"github.com/thesyncim/uiverify/pkg/uiverify/internal"
	"github.com/thesyncim/uiverify/pkg/uiverify/testutil"
)

const docURL = "http://doc.test/"

// loadDoc opens a static page on body wrapped in a minimal document.
func loadDoc(t *testing.T, body string, opts ...htmlpage.Option) uiverify.Page {
	t.Helper()
	opts = append([]htmlpage.Option{htmlpage.WithRoute(docURL, "<!DOCTYPE html><html><body>"+body+"</body></html>")}, opts...)
	b := htmlpage.New(opts...)
	p, err := b.NewPage(context.Background(), uiverify.Viewport{})
	require.NoError(t, err)
	require.NoError(t, p.Navigate(context.Background(), docURL))
	return p
}

// loadApp opens the fixture application on a page sharing clock.
func loadApp(t *testing.T, opts testutil.AppOptions, clock uiverify.Clock, seed map[string]string) uiverify.Page {
	t.Helper()
	ctx := context.Background()
	b := testutil.StaticApp(opts, htmlpage.WithClock(clock))
	p, err := b.NewPage(ctx, uiverify.Pixel7)
	require.NoError(t, err)
	require.NoError(t, p.Navigate(ctx, testutil.AppURL))
	for k, v := range seed {
		require.NoError(t, p.SetStorageItem(ctx, k, v))
	}
	if len(seed) > 0 {
		require.NoError(t, p.Reload(ctx))
	}
	return p
}

func newDriver(page uiverify.Page, clock uiverify.Clock) *uiverify.Driver {
	cfg := uiverify.DefaultDriverConfig()
	cfg.PollInterval = time.Millisecond
	return uiverify.NewDriver(page, cfg, clock, testutil.Logger())
}

func ticking() *internal.TickingClock {
	return internal.NewTickingClock(5 * time.Millisecond)
}

// recorder is a Page and Browser wrapper logging every lifecycle call.
type recorder struct {
	mu    sync.Mutex
	calls []string
}

func (r *recorder) log(call string) {
	r.mu.Lock()
	r.calls = append(r.calls, call)
	r.mu.Unlock()
}

func (r *recorder) Calls() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.calls...)
}

type recordingPage struct {
	uiverify.Page
	rec *recorder
}

func (p *recordingPage) Navigate(ctx context.Context, url string) error {
	p.rec.log("navigate " + url)
	return p.Page.Navigate(ctx, url)
}

func (p *recordingPage) Reload(ctx context.Context) error {
	p.rec.log("reload")
	return p.Page.Reload(ctx)
}

func (p *recordingPage) SetStorageItem(ctx context.Context, key, value string) error {
	p.rec.log("seed " + key)
	return p.Page.SetStorageItem(ctx, key, value)
}

func (p *recordingPage) Close() error {
	p.rec.log("page.close")
	return p.Page.Close()
}

type recordingBrowser struct {
	uiverify.Browser
	rec *recorder
}

func (b *recordingBrowser) NewPage(ctx context.Context, vp uiverify.Viewport) (uiverify.Page, error) {
	p, err := b.Browser.NewPage(ctx, vp)
	if err != nil {
		return nil, err
	}
	return &recordingPage{Page: p, rec: b.rec}, nil
}

func (b *recordingBrowser) Close() error {
	b.rec.log("browser.close")
	return b.Browser.Close()
}

func recordingLauncher(b *htmlpage.Browser, rec *recorder) uiverify.LaunchFunc {
	return func(ctx context.Context) (uiverify.Browser, error) {
		inner, err := b.Launch(ctx)
		if err != nil {
			return nil, err
		}
		return &recordingBrowser{Browser: inner, rec: rec}, nil
	}
}
