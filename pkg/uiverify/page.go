// Package uiverify drives a browser session against a running web application,
// waits for asynchronous UI state changes and asserts accessibility contracts
// on the resulting markup.
package uiverify

import (
	"context"
	"errors"
)

// Viewport is the device-emulation profile applied to a new page.
type Viewport struct {
	Width  int     `yaml:"width" json:"width"`
	Height int     `yaml:"height" json:"height"`
	Scale  float64 `yaml:"scale" json:"scale,omitempty"`
	Mobile bool    `yaml:"mobile" json:"mobile,omitempty"`
}

// Pixel7 is the viewport used by the settings accessibility flow.
var Pixel7 = Viewport{Width: 412, Height: 915, Scale: 1, Mobile: true}

// Rect is an element's bounding box in CSS pixels.
type Rect struct {
	X, Y, Width, Height float64
}

// Element is a single DOM node resolved by an engine.
// An Element is only valid until the next page-level transition;
// engines report stale handles as errors.
type Element interface {
	// Attribute returns the attribute value and whether it is present.
	Attribute(ctx context.Context, name string) (string, bool, error)
	// Text returns the node's textContent.
	Text(ctx context.Context) (string, error)
	// Visible reports whether the node is rendered.
	Visible(ctx context.Context) (bool, error)
	// Rect returns the node's bounding box.
	Rect(ctx context.Context) (Rect, error)
	// Click dispatches a single left click on the node.
	Click(ctx context.Context) error
}

// Page is the browser-automation capability the harness depends on.
type Page interface {
	// Navigate loads url and waits for the load event.
	Navigate(ctx context.Context, url string) error
	// Reload reloads the current document.
	Reload(ctx context.Context) error
	// SetStorageItem writes a key into the document's localStorage.
	// Engines return ErrNoDocument when no document has been loaded yet.
	SetStorageItem(ctx context.Context, key, value string) error
	// StorageItem reads a key from the document's localStorage.
	StorageItem(ctx context.Context, key string) (string, bool, error)
	// Elements returns all nodes matching a CSS selector, in document order.
	Elements(ctx context.Context, selector string) ([]Element, error)
	// ElementsByText returns the innermost nodes whose normalized
	// textContent contains text.
	ElementsByText(ctx context.Context, text string) ([]Element, error)
	// Screenshot captures the viewport as PNG.
	Screenshot(ctx context.Context) ([]byte, error)
	// Close releases the page.
	Close() error
}

// Browser is an isolated browser instance.
type Browser interface {
	// NewPage opens a page in a fresh, isolated storage context.
	NewPage(ctx context.Context, vp Viewport) (Page, error)
	// Close terminates the browser process.
	Close() error
}

// LaunchFunc starts a new Browser.
type LaunchFunc func(ctx context.Context) (Browser, error)

// ErrNoDocument is returned by engines when a storage operation is attempted
// before any document has been loaded.
var ErrNoDocument = errors.New("no document loaded")

// ErrStaleElement is returned by engines when an Element outlived the
// document it was resolved from.
var ErrStaleElement = errors.New("element handle is stale")
