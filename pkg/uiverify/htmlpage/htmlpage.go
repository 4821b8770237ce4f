// Package htmlpage is a static, in-process engine backed by goquery.
//
// It loads HTML from registered routes or over HTTP, never executes
// scripts, and models interactivity with Go hooks: OnLoad runs after every
// navigation or reload, OnClick runs when a matching element is clicked,
// and both may schedule delayed DOM mutations. It is used to check
// server-rendered markup and as a deterministic stand-in for a browser.
package htmlpage

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
	"golang.org/x/net/html"

	"github.com/thesyncim/uiverify/pkg/uiverify"
	"github.com/thesyncim/uiverify/pkg/uiverify/internal"
)

// ClickHandler mutates the document in response to a click.
type ClickHandler func(ev *Event)

// LoadHook runs after each document load.
type LoadHook func(ev *Event)

type clickRule struct {
	matcher cascadia.Selector
	fn      ClickHandler
}

// Option configures a Browser.
type Option func(*Browser)

// WithRoute serves html for url without a network request.
func WithRoute(url, html string) Option {
	return func(b *Browser) { b.routes[url] = html }
}

// WithHTTPClient sets the client used for URLs without a route.
func WithHTTPClient(c *http.Client) Option {
	return func(b *Browser) { b.client = c }
}

// WithClock sets the clock used for scheduled mutations.
func WithClock(c uiverify.Clock) Option {
	return func(b *Browser) { b.clock = c }
}

// OnClick registers fn for clicks on elements matching selector.
// It panics if selector is invalid.
func OnClick(selector string, fn ClickHandler) Option {
	m := cascadia.MustCompile(selector)
	return func(b *Browser) { b.clicks = append(b.clicks, clickRule{matcher: m, fn: fn}) }
}

// OnLoad registers a hook run after every navigation and reload.
func OnLoad(fn LoadHook) Option {
	return func(b *Browser) { b.loads = append(b.loads, fn) }
}

// Browser hands out isolated static pages.
type Browser struct {
	routes map[string]string
	client *http.Client
	clock  uiverify.Clock
	clicks []clickRule
	loads  []LoadHook

	mu     sync.Mutex
	closes int
	pages  int
}

// New creates a Browser.
func New(opts ...Option) *Browser {
	b := &Browser{
		routes: make(map[string]string),
		client: http.DefaultClient,
		clock:  internal.MonotonicClock{},
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Launch satisfies uiverify.LaunchFunc.
func (b *Browser) Launch(ctx context.Context) (uiverify.Browser, error) {
	return b, ctx.Err()
}

// NewPage opens a page with empty storage.
func (b *Browser) NewPage(ctx context.Context, vp uiverify.Viewport) (uiverify.Page, error) {
	b.mu.Lock()
	b.pages++
	b.mu.Unlock()
	return &Page{b: b, vp: vp, storage: make(map[string]string)}, ctx.Err()
}

// Close records the close.
func (b *Browser) Close() error {
	b.mu.Lock()
	b.closes++
	b.mu.Unlock()
	return nil
}

// Closes returns how many times Close was called.
func (b *Browser) Closes() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.closes
}

// Pages returns how many pages were opened.
func (b *Browser) Pages() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.pages
}

type scheduled struct {
	due time.Time
	seq int
	fn  func(doc *goquery.Document)
}

// Event is passed to hooks. Storage is the page's live localStorage.
type Event struct {
	Doc     *goquery.Document
	Target  *goquery.Selection
	Storage map[string]string

	p *Page
}

// After runs fn once the page clock has advanced by d. Mutations are
// applied lazily, before the next read of the document, and are dropped
// when the document is reloaded.
func (ev *Event) After(d time.Duration, fn func(doc *goquery.Document)) {
	p := ev.p
	p.seq++
	p.pending = append(p.pending, scheduled{due: p.b.clock.Now().Add(d), seq: p.seq, fn: fn})
}

// Page is a static document with storage.
type Page struct {
	b  *Browser
	vp uiverify.Viewport

	mu      sync.Mutex
	url     string
	doc     *goquery.Document
	gen     int
	storage map[string]string
	pending []scheduled
	seq     int
	closed  bool
}

// Navigate loads url and runs load hooks.
func (p *Page) Navigate(ctx context.Context, url string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return fmt.Errorf("page is closed")
	}
	return p.load(ctx, url)
}

// Reload reloads the current URL.
func (p *Page) Reload(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.doc == nil {
		return uiverify.ErrNoDocument
	}
	return p.load(ctx, p.url)
}

func (p *Page) load(ctx context.Context, url string) error {
	src, err := p.fetch(ctx, url)
	if err != nil {
		return err
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(src))
	if err != nil {
		return fmt.Errorf("failed to parse %s: %w", url, err)
	}
	p.url = url
	p.doc = doc
	p.gen++
	p.pending = nil
	for _, hook := range p.b.loads {
		hook(&Event{Doc: doc, Target: doc.Selection, Storage: p.storage, p: p})
	}
	return nil
}

func (p *Page) fetch(ctx context.Context, url string) (string, error) {
	if src, ok := p.b.routes[url]; ok {
		return src, nil
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}
	resp, err := p.b.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		return "", fmt.Errorf("GET %s: %s", url, resp.Status)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	return string(body), nil
}

// SetStorageItem writes a storage key. It fails before the first load.
func (p *Page) SetStorageItem(ctx context.Context, key, value string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.doc == nil {
		return uiverify.ErrNoDocument
	}
	p.storage[key] = value
	return nil
}

// StorageItem reads a storage key.
func (p *Page) StorageItem(ctx context.Context, key string) (string, bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.doc == nil {
		return "", false, uiverify.ErrNoDocument
	}
	v, ok := p.storage[key]
	return v, ok, nil
}

// Elements returns the nodes matching selector.
func (p *Page) Elements(ctx context.Context, selector string) ([]uiverify.Element, error) {
	m, err := cascadia.Compile(selector)
	if err != nil {
		return nil, fmt.Errorf("invalid selector %q: %w", selector, err)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.doc == nil {
		return nil, uiverify.ErrNoDocument
	}
	p.applyDue()
	return p.wrap(p.doc.FindMatcher(m)), nil
}

// ElementsByText returns the innermost body elements whose normalized
// text contains text.
func (p *Page) ElementsByText(ctx context.Context, text string) ([]uiverify.Element, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.doc == nil {
		return nil, uiverify.ErrNoDocument
	}
	p.applyDue()
	want := normalize(text)
	contains := func(s *goquery.Selection) bool {
		return strings.Contains(normalize(renderedText(s.Nodes[0])), want)
	}
	matches := p.doc.Find("body *").FilterFunction(func(_ int, s *goquery.Selection) bool {
		if s.Closest("template").Length() > 0 || !contains(s) {
			return false
		}
		inner := false
		s.Children().EachWithBreak(func(_ int, c *goquery.Selection) bool {
			inner = contains(c)
			return !inner
		})
		return !inner
	})
	return p.wrap(matches), nil
}

// Screenshot renders a blank PNG of the viewport size; static pages have
// no layout to capture.
func (p *Page) Screenshot(ctx context.Context) ([]byte, error) {
	w, h := p.vp.Width, p.vp.Height
	if w <= 0 || h <= 0 {
		w, h = 1, 1
	}
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for i := range img.Pix {
		img.Pix[i] = 0xff
	}
	img.Set(0, 0, color.RGBA{A: 0xff})
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Close closes the page.
func (p *Page) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}

// HTML returns the current document markup.
func (p *Page) HTML() (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.doc == nil {
		return "", uiverify.ErrNoDocument
	}
	p.applyDue()
	return goquery.OuterHtml(p.doc.Selection)
}

// applyDue runs every scheduled mutation whose time has come, in due
// order. Callers hold p.mu.
func (p *Page) applyDue() {
	for len(p.pending) > 0 {
		now := p.b.clock.Now()
		sort.SliceStable(p.pending, func(i, j int) bool {
			if p.pending[i].due.Equal(p.pending[j].due) {
				return p.pending[i].seq < p.pending[j].seq
			}
			return p.pending[i].due.Before(p.pending[j].due)
		})
		next := p.pending[0]
		if next.due.After(now) {
			return
		}
		p.pending = p.pending[1:]
		next.fn(p.doc)
	}
}

func (p *Page) wrap(sel *goquery.Selection) []uiverify.Element {
	out := make([]uiverify.Element, 0, sel.Length())
	sel.Each(func(_ int, s *goquery.Selection) {
		out = append(out, &Element{p: p, sel: s, gen: p.gen})
	})
	return out
}

// renderedText is the text content of n without script, style and
// template subtrees.
func renderedText(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		switch {
		case n.Type == html.TextNode:
			b.WriteString(n.Data)
			return
		case n.Type == html.ElementNode && (n.Data == "script" || n.Data == "style" || n.Data == "template"):
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return b.String()
}

func normalize(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
