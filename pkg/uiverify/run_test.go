package uiverify_test

import (
	"bytes"
	"context"
	"errors"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thesyncim/uiverify/pkg/uiverify"
	"github.com/thesyncim/uiverify/pkg/uiverify/htmlpage"
	"github.com/thesyncim/uiverify/pkg/uiverify/testutil"
)

type runOutcome struct {
	res     *uiverify.Result
	err     error
	browser *htmlpage.Browser
	dir     string
	out     string
}

func runSteps(t *testing.T, flow uiverify.Flow, mutate ...func(*uiverify.Config)) runOutcome {
	t.Helper()
	clock := ticking()
	b := testutil.StaticApp(testutil.AppOptions{}, htmlpage.WithClock(clock))
	dir := t.TempDir()
	cfg := testutil.StaticConfig(dir, clock)
	for _, m := range mutate {
		m(&cfg)
	}
	var out bytes.Buffer

	res, err := uiverify.Run(context.Background(), b.Launch, cfg, flow, testutil.NewReporter(dir, &out), testutil.Logger())
	require.NotNil(t, res)
	return runOutcome{res: res, err: err, browser: b, dir: dir, out: out.String()}
}

func TestRun_Pass(t *testing.T) {
	r := runSteps(t, uiverify.Flow{
		Name: "ok",
		Steps: func(ctx context.Context, h *uiverify.Harness) error {
			h.Result.Pass("noop", "x", "x")
			return h.Capture(ctx, "checkpoint")
		},
	})

	require.NoError(t, r.err)
	assert.True(t, r.res.Passed())
	assert.Equal(t, 1, r.browser.Closes())
	assert.FileExists(t, filepath.Join(r.dir, "checkpoint.png"))
	assert.NoFileExists(t, filepath.Join(r.dir, "error.png"))
	assert.False(t, r.res.Finished.Before(r.res.Started))
	assert.True(t, strings.HasSuffix(r.out, "result: PASS\n"), r.out)
}

func TestRun_FlowErrorCapturesAndCloses(t *testing.T) {
	boom := errors.New("boom")
	r := runSteps(t, uiverify.Flow{
		Name:  "err",
		Steps: func(context.Context, *uiverify.Harness) error { return boom },
	})

	require.ErrorIs(t, r.err, boom)
	assert.Equal(t, boom, r.res.Err)
	assert.Equal(t, 1, r.browser.Closes())
	assert.FileExists(t, filepath.Join(r.dir, "error.png"))
	assert.Equal(t, []string{filepath.Join(r.dir, "error.png")}, r.res.Artifacts())
	assert.Contains(t, r.out, "error: boom")
	assert.True(t, strings.HasSuffix(r.out, "result: FAIL\n"), r.out)
}

func TestRun_PanicIsRecovered(t *testing.T) {
	r := runSteps(t, uiverify.Flow{
		Name:  "panic",
		Steps: func(context.Context, *uiverify.Harness) error { panic("kaboom") },
	})

	require.Error(t, r.err)
	assert.Contains(t, r.err.Error(), "panic: kaboom")
	assert.Equal(t, 1, r.browser.Closes())
	assert.FileExists(t, filepath.Join(r.dir, "error.png"))
}

func TestRun_FailedChecksFailTheRun(t *testing.T) {
	r := runSteps(t, uiverify.Flow{
		Name: "checks",
		Steps: func(_ context.Context, h *uiverify.Harness) error {
			h.Result.Warn("w", "just a warning")
			h.Result.Info("i", "a fact")
			return nil
		},
	})
	require.NoError(t, r.err, "warnings and infos alone pass")

	r = runSteps(t, uiverify.Flow{
		Name: "checks",
		Steps: func(_ context.Context, h *uiverify.Harness) error {
			h.Result.Warn("w", "just a warning")
			h.Result.Fail("f", "1", "2", errors.New("mismatch"))
			return nil
		},
	})
	require.ErrorIs(t, r.err, uiverify.ErrChecksFailed)
	assert.Nil(t, r.res.Err)
	assert.False(t, r.res.Passed())
	assert.FileExists(t, filepath.Join(r.dir, "error.png"))
}

func TestRun_BootstrapFailure(t *testing.T) {
	called := false
	r := runSteps(t, uiverify.Flow{
		Name:  "nav",
		Steps: func(context.Context, *uiverify.Harness) error { called = true; return nil },
	}, func(c *uiverify.Config) { c.BaseURL = "http://127.0.0.1:1/" })

	var nav *uiverify.NavigationError
	require.ErrorAs(t, r.err, &nav)
	assert.False(t, called)
	assert.Equal(t, 1, r.browser.Closes())
}

func TestRun_LaunchFailure(t *testing.T) {
	dir := t.TempDir()
	launchErr := errors.New("no browser")
	res, err := uiverify.Run(context.Background(),
		func(context.Context) (uiverify.Browser, error) { return nil, launchErr },
		testutil.StaticConfig(dir, ticking()),
		uiverify.Flow{Name: "launch", Steps: func(context.Context, *uiverify.Harness) error { return nil }},
		testutil.NewReporter(dir, nil), testutil.Logger())

	require.ErrorIs(t, err, launchErr)
	require.Len(t, res.Failures(), 1)
	assert.Equal(t, "session.open", res.Failures()[0].Name)
	assert.NoFileExists(t, filepath.Join(dir, "error.png"))
}

func TestRun_FlowTimeout(t *testing.T) {
	r := runSteps(t, uiverify.Flow{
		Name: "slow",
		Steps: func(ctx context.Context, _ *uiverify.Harness) error {
			<-ctx.Done()
			return ctx.Err()
		},
	}, func(c *uiverify.Config) { c.Timeouts.Flow = 20 * time.Millisecond })

	require.ErrorIs(t, r.err, context.DeadlineExceeded)
	assert.FileExists(t, filepath.Join(r.dir, "error.png"), "the error capture outlives the flow deadline")
}

func TestRun_InvalidConfigNeverLaunches(t *testing.T) {
	ran := false
	r := runSteps(t, uiverify.Flow{
		Name: "invalid",
		Steps: func(context.Context, *uiverify.Harness) error {
			ran = true
			return nil
		},
	}, func(c *uiverify.Config) { c.Timeouts.Flow = 0 })

	require.Error(t, r.err)
	assert.ErrorContains(t, r.err, "timeouts.flow must be positive")
	assert.False(t, ran)
	assert.Equal(t, 0, r.browser.Pages())
	assert.Equal(t, 0, r.browser.Closes())
	require.Len(t, r.res.Failures(), 1)
	assert.Equal(t, "config", r.res.Failures()[0].Name)
	assert.Equal(t, r.err, r.res.Err)
}

func TestRun_FlowViewportOverridesConfig(t *testing.T) {
	r := runSteps(t, uiverify.Flow{
		Name:     "viewport",
		Viewport: uiverify.Pixel7,
		Steps:    func(ctx context.Context, h *uiverify.Harness) error { return h.Capture(ctx, "shot") },
	}, func(c *uiverify.Config) { c.Viewport = uiverify.Viewport{Width: 1280, Height: 720} })
	require.NoError(t, r.err)

	f, err := os.Open(filepath.Join(r.dir, "shot.png"))
	require.NoError(t, err)
	defer f.Close()
	img, err := png.DecodeConfig(f)
	require.NoError(t, err)
	assert.Equal(t, 412, img.Width)
	assert.Equal(t, 915, img.Height)
}
