package uiverify

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"time"
)

// ARIAAttrs are the attributes captured by default in a snapshot.
var ARIAAttrs = []string{
	"id", "role",
	"aria-modal", "aria-label", "aria-labelledby", "aria-describedby",
	"aria-checked", "aria-disabled", "disabled", "for",
}

// ElementSnapshot is an immutable, point-in-time read of an element.
// It is never refreshed; after further actions it may no longer match the
// live DOM.
type ElementSnapshot struct {
	query   Query
	index   int
	attrs   map[string]string
	text    string
	visible bool
	rect    Rect
	takenAt time.Time
}

// Capture reads the requested attributes, text, visibility and bounding box
// of el. Absent attributes are omitted from the snapshot.
func Capture(ctx context.Context, el Element, q Query, index int, at time.Time, attrs ...string) (ElementSnapshot, error) {
	if len(attrs) == 0 {
		attrs = ARIAAttrs
	}
	snap := ElementSnapshot{
		query:   q,
		index:   index,
		attrs:   make(map[string]string, len(attrs)),
		takenAt: at,
	}
	for _, name := range attrs {
		v, ok, err := el.Attribute(ctx, name)
		if err != nil {
			return ElementSnapshot{}, fmt.Errorf("failed to read %s of %s: %w", name, q, err)
		}
		if ok {
			snap.attrs[name] = v
		}
	}
	text, err := el.Text(ctx)
	if err != nil {
		return ElementSnapshot{}, fmt.Errorf("failed to read text of %s: %w", q, err)
	}
	snap.text = normalizeSpace(text)
	if snap.visible, err = el.Visible(ctx); err != nil {
		return ElementSnapshot{}, fmt.Errorf("failed to read visibility of %s: %w", q, err)
	}
	if snap.rect, err = el.Rect(ctx); err != nil {
		return ElementSnapshot{}, fmt.Errorf("failed to read bounds of %s: %w", q, err)
	}
	return snap, nil
}

// Attr returns a captured attribute.
func (s ElementSnapshot) Attr(name string) (string, bool) {
	v, ok := s.attrs[name]
	return v, ok
}

// Attrs returns a copy of all captured attributes.
func (s ElementSnapshot) Attrs() map[string]string {
	return maps.Clone(s.attrs)
}

// Text returns the whitespace-normalized text content.
func (s ElementSnapshot) Text() string { return s.text }

// Visible reports whether the element was rendered at capture time.
func (s ElementSnapshot) Visible() bool { return s.visible }

// Rect returns the bounding box at capture time.
func (s ElementSnapshot) Rect() Rect { return s.rect }

// TakenAt returns the capture time.
func (s ElementSnapshot) TakenAt() time.Time { return s.takenAt }

// Query returns the query the element was resolved from.
func (s ElementSnapshot) Query() Query { return s.query }

// Index returns the element's position among the query's matches.
func (s ElementSnapshot) Index() int { return s.index }

// Label names the element for diagnostics.
func (s ElementSnapshot) Label() string {
	if id, ok := s.attrs["id"]; ok && id != "" {
		return "#" + id
	}
	return fmt.Sprintf("%s[%d]", s.query, s.index)
}

// SameState reports whether two snapshots carry identical attributes,
// text and visibility. Bounding boxes and capture times are ignored.
func (s ElementSnapshot) SameState(o ElementSnapshot) bool {
	return s.text == o.text && s.visible == o.visible && maps.Equal(s.attrs, o.attrs)
}

// Diff lists the attributes whose values differ between s and o.
func (s ElementSnapshot) Diff(o ElementSnapshot) []string {
	keys := make(map[string]struct{})
	for k := range s.attrs {
		keys[k] = struct{}{}
	}
	for k := range o.attrs {
		keys[k] = struct{}{}
	}
	var out []string
	for _, k := range slices.Sorted(maps.Keys(keys)) {
		a, aok := s.attrs[k]
		b, bok := o.attrs[k]
		if a != b || aok != bok {
			out = append(out, fmt.Sprintf("%s: %q -> %q", k, a, b))
		}
	}
	if s.text != o.text {
		out = append(out, fmt.Sprintf("text: %q -> %q", s.text, o.text))
	}
	if s.visible != o.visible {
		out = append(out, fmt.Sprintf("visible: %v -> %v", s.visible, o.visible))
	}
	return out
}
