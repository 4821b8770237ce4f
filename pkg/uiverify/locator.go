package uiverify

import (
	"context"
	"fmt"
	"time"
)

// Locator is a lazy reference to the elements matching a Query.
// It never caches elements: every call re-resolves the query against the
// current document, so a Locator stays usable across reloads.
type Locator struct {
	page  Page
	query Query
	now   func() time.Time
}

// Query returns the locator's query.
func (l *Locator) Query() Query { return l.query }

// String renders the query.
func (l *Locator) String() string { return l.query.String() }

// All resolves every matching element.
func (l *Locator) All(ctx context.Context) ([]Element, error) {
	els, err := l.query.resolve(ctx, l.page)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %s: %w", l.query, err)
	}
	return els, nil
}

// Count returns the number of matching elements. Zero is a valid answer.
func (l *Locator) Count(ctx context.Context) (int, error) {
	els, err := l.All(ctx)
	return len(els), err
}

// First resolves the first matching element, or returns
// *ElementNotFoundError when there is none.
func (l *Locator) First(ctx context.Context) (Element, error) {
	els, err := l.All(ctx)
	if err != nil {
		return nil, err
	}
	if len(els) == 0 {
		return nil, &ElementNotFoundError{Query: l.query}
	}
	return els[0], nil
}

// Snapshot captures the first matching element.
func (l *Locator) Snapshot(ctx context.Context, attrs ...string) (ElementSnapshot, error) {
	el, err := l.First(ctx)
	if err != nil {
		return ElementSnapshot{}, err
	}
	return Capture(ctx, el, l.query, 0, l.now(), attrs...)
}

// Snapshots captures every matching element.
func (l *Locator) Snapshots(ctx context.Context, attrs ...string) ([]ElementSnapshot, error) {
	els, err := l.All(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]ElementSnapshot, 0, len(els))
	for i, el := range els {
		s, err := Capture(ctx, el, l.query, i, l.now(), attrs...)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}
