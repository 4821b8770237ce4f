package htmlpage

import (
	"context"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/thesyncim/uiverify/pkg/uiverify"
)

// Element is a node of a static page.
type Element struct {
	p   *Page
	sel *goquery.Selection
	gen int
}

// check verifies the element still belongs to the page's current document
// and applies due mutations. Callers hold e.p.mu.
func (e *Element) check() error {
	if e.gen != e.p.gen {
		return uiverify.ErrStaleElement
	}
	e.p.applyDue()
	return nil
}

// Attribute returns an attribute value.
func (e *Element) Attribute(ctx context.Context, name string) (string, bool, error) {
	e.p.mu.Lock()
	defer e.p.mu.Unlock()
	if err := e.check(); err != nil {
		return "", false, err
	}
	v, ok := e.sel.Attr(name)
	return v, ok, nil
}

// Text returns the node's text content.
func (e *Element) Text(ctx context.Context) (string, error) {
	e.p.mu.Lock()
	defer e.p.mu.Unlock()
	if err := e.check(); err != nil {
		return "", err
	}
	return e.sel.Text(), nil
}

// Visible reports whether neither the node nor an ancestor is hidden by
// the hidden attribute, inline display:none or visibility:hidden, a closed
// <dialog>, or a non-rendered element type.
func (e *Element) Visible(ctx context.Context) (bool, error) {
	e.p.mu.Lock()
	defer e.p.mu.Unlock()
	if err := e.check(); err != nil {
		return false, err
	}
	if t, _ := e.sel.Attr("type"); goquery.NodeName(e.sel) == "input" && t == "hidden" {
		return false, nil
	}
	for s := e.sel; s.Length() > 0; s = s.Parent() {
		if hidden(s) {
			return false, nil
		}
	}
	return true, nil
}

func hidden(s *goquery.Selection) bool {
	switch goquery.NodeName(s) {
	case "head", "script", "style", "template", "noscript":
		return true
	case "dialog":
		if _, open := s.Attr("open"); !open {
			return true
		}
	}
	if _, ok := s.Attr("hidden"); ok {
		return true
	}
	style, _ := s.Attr("style")
	style = strings.ToLower(strings.Join(strings.Fields(style), ""))
	return strings.Contains(style, "display:none") || strings.Contains(style, "visibility:hidden")
}

// Rect returns a zero rectangle; static pages have no layout.
func (e *Element) Rect(ctx context.Context) (uiverify.Rect, error) {
	e.p.mu.Lock()
	defer e.p.mu.Unlock()
	return uiverify.Rect{}, e.check()
}

// Click runs every click handler whose selector matches the node.
func (e *Element) Click(ctx context.Context) error {
	e.p.mu.Lock()
	defer e.p.mu.Unlock()
	if err := e.check(); err != nil {
		return err
	}
	for _, rule := range e.p.b.clicks {
		if e.sel.IsMatcher(rule.matcher) {
			rule.fn(&Event{Doc: e.p.doc, Target: e.sel, Storage: e.p.storage, p: e.p})
		}
	}
	return nil
}
