// Package cdppage drives a real Chrome through chromedp and raw DevTools
// protocol calls.
package cdppage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/chromedp/cdproto"
	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/dom"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"

	"github.com/thesyncim/uiverify/pkg/uiverify"
)

// Config configures Chrome launch options.
type Config struct {
	Headless bool
	// ExecPath is the Chrome binary; empty searches the usual locations.
	ExecPath string
}

// DefaultConfig returns the launch options used by the CLI.
func DefaultConfig() Config {
	return Config{Headless: true}
}

// Launcher returns a LaunchFunc starting one Chrome process per call.
func Launcher(cfg Config) uiverify.LaunchFunc {
	return func(ctx context.Context) (uiverify.Browser, error) {
		return Launch(ctx, cfg)
	}
}

// Browser is a Chrome process owned by one session. Chrome itself starts
// lazily with the first page.
type Browser struct {
	alloc  context.Context
	cancel context.CancelFunc
}

// Launch prepares an exec allocator. ctx only bounds this call; the
// browser lives until Close.
func Launch(ctx context.Context, cfg Config) (*Browser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.NoSandbox,
		chromedp.DisableGPU,
		chromedp.Flag("headless", cfg.Headless),
	)
	if cfg.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(cfg.ExecPath))
	}
	alloc, cancel := chromedp.NewExecAllocator(context.Background(), opts...)
	return &Browser{alloc: alloc, cancel: cancel}, nil
}

// NewPage opens a tab with vp applied.
func (b *Browser) NewPage(ctx context.Context, vp uiverify.Viewport) (uiverify.Page, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	tab, cancel := chromedp.NewContext(b.alloc)
	// The first Run starts Chrome and the tab; both are bound to the
	// context it is given, so it must be the tab context itself. The
	// caller's ctx bounds it by cancelling the tab.
	stop := context.AfterFunc(ctx, cancel)
	err := chromedp.Run(tab)
	if !stop() {
		cancel()
		return nil, fmt.Errorf("failed to start Chrome: %w", ctx.Err())
	}
	if err != nil {
		cancel()
		return nil, fmt.Errorf("failed to start Chrome: %w", err)
	}
	p := &Page{tab: tab, cancel: cancel}

	actions := []chromedp.Action{chromedp.Navigate("about:blank")}
	if vp.Width > 0 && vp.Height > 0 {
		var opts []chromedp.EmulateViewportOption
		if vp.Scale > 0 {
			opts = append(opts, chromedp.EmulateScale(vp.Scale))
		}
		if vp.Mobile {
			opts = append(opts, chromedp.EmulateMobile)
		}
		actions = append(actions, chromedp.EmulateViewport(int64(vp.Width), int64(vp.Height), opts...))
	}
	if err := p.run(ctx, actions...); err != nil {
		cancel()
		return nil, fmt.Errorf("failed to open tab: %w", err)
	}
	return p, nil
}

// Close stops Chrome.
func (b *Browser) Close() error {
	b.cancel()
	return nil
}

// Page is a Chrome tab.
type Page struct {
	tab    context.Context
	cancel context.CancelFunc
	once   sync.Once
}

// run executes actions on the tab, aborting them when ctx ends.
func (p *Page) run(ctx context.Context, actions ...chromedp.Action) error {
	tctx, cancel := context.WithCancel(p.tab)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()
	if err := chromedp.Run(tctx, actions...); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return err
	}
	return nil
}

// Navigate loads url and waits for the load event.
func (p *Page) Navigate(ctx context.Context, url string) error {
	return p.run(ctx, chromedp.Navigate(url))
}

// Reload reloads and waits for the load event.
func (p *Page) Reload(ctx context.Context) error {
	return p.run(ctx, chromedp.Reload())
}

// SetStorageItem writes localStorage for the current origin.
func (p *Page) SetStorageItem(ctx context.Context, key, value string) error {
	expr := fmt.Sprintf("localStorage.setItem(%s, %s)", jsString(key), jsString(value))
	return p.run(ctx, chromedp.Evaluate(expr, nil))
}

// StorageItem reads localStorage for the current origin.
func (p *Page) StorageItem(ctx context.Context, key string) (string, bool, error) {
	var v *string
	if err := p.run(ctx, chromedp.Evaluate(fmt.Sprintf("localStorage.getItem(%s)", jsString(key)), &v)); err != nil {
		return "", false, err
	}
	if v == nil {
		return "", false, nil
	}
	return *v, true, nil
}

// Elements returns the elements matching a CSS selector without waiting.
func (p *Page) Elements(ctx context.Context, selector string) ([]uiverify.Element, error) {
	return p.nodes(ctx, selector, chromedp.ByQueryAll)
}

// ElementsByText returns the innermost body elements whose normalized
// text contains text.
func (p *Page) ElementsByText(ctx context.Context, text string) ([]uiverify.Element, error) {
	return p.nodes(ctx, uiverify.TextXPath(text), chromedp.BySearch)
}

func (p *Page) nodes(ctx context.Context, sel string, by chromedp.QueryOption) ([]uiverify.Element, error) {
	var nodes []*cdp.Node
	if err := p.run(ctx, chromedp.Nodes(sel, &nodes, by, chromedp.AtLeast(0))); err != nil {
		return nil, err
	}
	out := make([]uiverify.Element, len(nodes))
	for i, n := range nodes {
		out[i] = &Element{p: p, node: n}
	}
	return out, nil
}

// Screenshot captures the viewport as PNG.
func (p *Page) Screenshot(ctx context.Context) ([]byte, error) {
	var buf []byte
	if err := p.run(ctx, chromedp.CaptureScreenshot(&buf)); err != nil {
		return nil, err
	}
	return buf, nil
}

// Close closes the tab.
func (p *Page) Close() error {
	p.once.Do(p.cancel)
	return nil
}

// Element is a DOM node addressed by node id.
type Element struct {
	p    *Page
	node *cdp.Node
}

// Attribute returns an attribute value read over DOM.getAttributes.
func (e *Element) Attribute(ctx context.Context, name string) (string, bool, error) {
	var attrs []string
	err := e.p.run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		var err error
		attrs, err = dom.GetAttributes(e.node.NodeID).Do(ctx)
		return err
	}))
	if err != nil {
		return "", false, stale(err)
	}
	for i := 0; i+1 < len(attrs); i += 2 {
		if attrs[i] == name {
			return attrs[i+1], true, nil
		}
	}
	return "", false, nil
}

// Text returns the node's textContent.
func (e *Element) Text(ctx context.Context) (string, error) {
	var s string
	err := e.call(ctx, `function() { return this.textContent; }`, &s)
	return s, err
}

const visibleJS = `function() {
	if (!this.isConnected) return false;
	const s = getComputedStyle(this);
	if (s.display === 'none' || s.visibility === 'hidden') return false;
	const r = this.getBoundingClientRect();
	return r.width > 0 && r.height > 0;
}`

// Visible reports whether the node is rendered with a non-empty box.
func (e *Element) Visible(ctx context.Context) (bool, error) {
	var v bool
	err := e.call(ctx, visibleJS, &v)
	return v, err
}

// Rect returns the node's bounding client rect.
func (e *Element) Rect(ctx context.Context) (uiverify.Rect, error) {
	var r struct {
		X, Y, Width, Height float64
	}
	err := e.call(ctx, `function() {
		const r = this.getBoundingClientRect();
		return {X: r.x, Y: r.y, Width: r.width, Height: r.height};
	}`, &r)
	return uiverify.Rect{X: r.X, Y: r.Y, Width: r.Width, Height: r.Height}, err
}

// Click scrolls the node into view and clicks its centre once.
func (e *Element) Click(ctx context.Context) error {
	return stale(e.p.run(ctx, chromedp.MouseClickNode(e.node)))
}

// call runs fn with the node as this and decodes the returned value.
func (e *Element) call(ctx context.Context, fn string, out any) error {
	err := e.p.run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		obj, err := dom.ResolveNode().WithNodeID(e.node.NodeID).Do(ctx)
		if err != nil {
			return err
		}
		res, exc, err := runtime.CallFunctionOn(fn).
			WithObjectID(obj.ObjectID).
			WithReturnByValue(true).
			Do(ctx)
		if err != nil {
			return err
		}
		if exc != nil {
			return fmt.Errorf("script exception: %s", exc.Text)
		}
		return json.Unmarshal([]byte(res.Value), out)
	}))
	return stale(err)
}

// stale maps errors for nodes whose document has gone to
// uiverify.ErrStaleElement.
func stale(err error) error {
	if err == nil {
		return nil
	}
	var cerr *cdproto.Error
	if errors.As(err, &cerr) {
		msg := strings.ToLower(cerr.Message)
		if strings.Contains(msg, "could not find node") || strings.Contains(msg, "no node with given id") ||
			strings.Contains(msg, "node is detached") {
			return fmt.Errorf("%w: %v", uiverify.ErrStaleElement, err)
		}
	}
	return err
}

func jsString(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}
