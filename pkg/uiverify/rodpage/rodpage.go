// Package rodpage drives a real Chrome through go-rod.
package rodpage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/cdp"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"

	"github.com/thesyncim/uiverify/pkg/uiverify"
)

// Config configures Chrome launch options.
type Config struct {
	Headless bool          // Run in headless mode (default: true)
	Bin      string        // Chrome binary; empty lets rod find or download one
	Timeout  time.Duration // Bound on launching and connecting (default: 30s)
}

// DefaultConfig returns the launch options used by the CLI.
func DefaultConfig() Config {
	return Config{
		Headless: true,
		Timeout:  30 * time.Second,
	}
}

// Launcher returns a LaunchFunc starting one Chrome process per call.
func Launcher(cfg Config) uiverify.LaunchFunc {
	return func(ctx context.Context) (uiverify.Browser, error) {
		return Launch(ctx, cfg)
	}
}

// Browser is a Chrome process owned by one session.
type Browser struct {
	l    *launcher.Launcher
	root *rod.Browser
}

// Launch starts Chrome with container-friendly flags and connects to it.
func Launch(ctx context.Context, cfg Config) (*Browser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Timeout)
		defer cancel()
	}

	l := launcher.New().
		Context(ctx).
		Headless(cfg.Headless).
		Set("no-sandbox").
		Set("disable-gpu").
		Set("disable-dev-shm-usage")
	if cfg.Bin != "" {
		l = l.Bin(cfg.Bin)
	}

	url, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("failed to launch Chrome: %w", err)
	}

	root := rod.New().ControlURL(url)
	if err := root.Connect(); err != nil {
		l.Kill()
		return nil, fmt.Errorf("failed to connect to Chrome: %w", err)
	}
	return &Browser{l: l, root: root}, nil
}

// NewPage opens a page in a fresh incognito context with vp applied.
func (b *Browser) NewPage(ctx context.Context, vp uiverify.Viewport) (uiverify.Page, error) {
	incognito, err := b.root.Incognito()
	if err != nil {
		return nil, fmt.Errorf("failed to create browser context: %w", err)
	}
	page, err := incognito.Page(proto.TargetCreateTarget{URL: "about:blank"})
	if err != nil {
		_ = incognito.Close()
		return nil, fmt.Errorf("failed to create page: %w", err)
	}
	if vp.Width > 0 && vp.Height > 0 {
		scale := vp.Scale
		if scale <= 0 {
			scale = 1
		}
		err := page.Context(ctx).SetViewport(&proto.EmulationSetDeviceMetricsOverride{
			Width:             vp.Width,
			Height:            vp.Height,
			DeviceScaleFactor: scale,
			Mobile:            vp.Mobile,
		})
		if err != nil {
			_ = incognito.Close()
			return nil, fmt.Errorf("failed to set viewport: %w", err)
		}
	}
	return &Page{ctxBrowser: incognito, page: page}, nil
}

// Close closes Chrome and removes its user data dir.
func (b *Browser) Close() error {
	err := b.root.Close()
	b.l.Kill()
	b.l.Cleanup()
	return err
}

// Page is a Chrome tab.
type Page struct {
	ctxBrowser *rod.Browser
	page       *rod.Page
}

func (p *Page) with(ctx context.Context) *rod.Page {
	return p.page.Context(ctx)
}

// Navigate loads url and waits for the load event.
func (p *Page) Navigate(ctx context.Context, url string) error {
	pg := p.with(ctx)
	if err := pg.Navigate(url); err != nil {
		return err
	}
	return pg.WaitLoad()
}

// Reload reloads and waits for the load event.
func (p *Page) Reload(ctx context.Context) error {
	pg := p.with(ctx)
	if err := pg.Reload(); err != nil {
		return err
	}
	return pg.WaitLoad()
}

// SetStorageItem writes localStorage for the current origin.
func (p *Page) SetStorageItem(ctx context.Context, key, value string) error {
	_, err := p.with(ctx).Eval(`(k, v) => localStorage.setItem(k, v)`, key, value)
	return err
}

// StorageItem reads localStorage for the current origin.
func (p *Page) StorageItem(ctx context.Context, key string) (string, bool, error) {
	res, err := p.with(ctx).Eval(`k => localStorage.getItem(k)`, key)
	if err != nil {
		return "", false, err
	}
	if res.Value.Nil() {
		return "", false, nil
	}
	return res.Value.Str(), true, nil
}

// Elements returns the elements matching a CSS selector.
func (p *Page) Elements(ctx context.Context, selector string) ([]uiverify.Element, error) {
	els, err := p.with(ctx).Elements(selector)
	if err != nil {
		return nil, err
	}
	return wrap(els), nil
}

// ElementsByText returns the innermost body elements whose normalized
// text contains text.
func (p *Page) ElementsByText(ctx context.Context, text string) ([]uiverify.Element, error) {
	els, err := p.with(ctx).ElementsX(uiverify.TextXPath(text))
	if err != nil {
		return nil, err
	}
	return wrap(els), nil
}

// Screenshot captures the viewport as PNG.
func (p *Page) Screenshot(ctx context.Context) ([]byte, error) {
	return p.with(ctx).Screenshot(false, &proto.PageCaptureScreenshot{
		Format: proto.PageCaptureScreenshotFormatPng,
	})
}

// Close closes the tab and its browser context.
func (p *Page) Close() error {
	return errors.Join(p.page.Close(), p.ctxBrowser.Close())
}

func wrap(els rod.Elements) []uiverify.Element {
	out := make([]uiverify.Element, len(els))
	for i, el := range els {
		out[i] = &Element{el: el}
	}
	return out
}

// Element is a remote DOM node.
type Element struct {
	el *rod.Element
}

// Attribute returns an attribute value.
func (e *Element) Attribute(ctx context.Context, name string) (string, bool, error) {
	v, err := e.el.Context(ctx).Attribute(name)
	if err != nil {
		return "", false, stale(err)
	}
	if v == nil {
		return "", false, nil
	}
	return *v, true, nil
}

// Text returns the node's textContent.
func (e *Element) Text(ctx context.Context) (string, error) {
	res, err := e.el.Context(ctx).Eval(`() => this.textContent`)
	if err != nil {
		return "", stale(err)
	}
	return res.Value.Str(), nil
}

// Visible reports whether the node is rendered.
func (e *Element) Visible(ctx context.Context) (bool, error) {
	v, err := e.el.Context(ctx).Visible()
	return v, stale(err)
}

// Rect returns the node's bounding client rect.
func (e *Element) Rect(ctx context.Context) (uiverify.Rect, error) {
	res, err := e.el.Context(ctx).Eval(`() => {
		const r = this.getBoundingClientRect();
		return {x: r.x, y: r.y, width: r.width, height: r.height};
	}`)
	if err != nil {
		return uiverify.Rect{}, stale(err)
	}
	v := res.Value
	return uiverify.Rect{X: v.Get("x").Num(), Y: v.Get("y").Num(), Width: v.Get("width").Num(), Height: v.Get("height").Num()}, nil
}

// Click scrolls the node into view and clicks its centre once.
func (e *Element) Click(ctx context.Context) error {
	return stale(e.el.Context(ctx).Click(proto.InputMouseButtonLeft, 1))
}

// stale maps errors for nodes whose document has gone to
// uiverify.ErrStaleElement.
func stale(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, &rod.ObjectNotFoundError{}) {
		return fmt.Errorf("%w: %v", uiverify.ErrStaleElement, err)
	}
	var cerr *cdp.Error
	if errors.As(err, &cerr) && (strings.Contains(cerr.Message, "Cannot find context") ||
		strings.Contains(cerr.Message, "Could not find object") ||
		strings.Contains(cerr.Message, "Node is detached")) {
		return fmt.Errorf("%w: %v", uiverify.ErrStaleElement, err)
	}
	return err
}
