package uiverify

import (
	"context"
	"strings"
)

// AccessibleName computes a reduced accessible name for el: aria-labelledby
// text, then aria-label, then an associated <label for>, then the element's
// own text, then its title.
func AccessibleName(ctx context.Context, page Page, el Element) (string, error) {
	text, err := referencedText(ctx, page, el, "aria-labelledby")
	if err != nil {
		return "", err
	}
	if text != "" {
		return text, nil
	}

	if v, ok, err := el.Attribute(ctx, "aria-label"); err != nil {
		return "", err
	} else if ok && strings.TrimSpace(v) != "" {
		return normalizeSpace(v), nil
	}

	if id, ok, err := el.Attribute(ctx, "id"); err != nil {
		return "", err
	} else if ok && id != "" {
		labels, err := page.Elements(ctx, "label[for="+cssString(id)+"]")
		if err != nil {
			return "", err
		}
		var parts []string
		for _, l := range labels {
			t, err := l.Text(ctx)
			if err != nil {
				return "", err
			}
			if t = normalizeSpace(t); t != "" {
				parts = append(parts, t)
			}
		}
		if len(parts) > 0 {
			return strings.Join(parts, " "), nil
		}
	}

	own, err := el.Text(ctx)
	if err != nil {
		return "", err
	}
	if own = normalizeSpace(own); own != "" {
		return own, nil
	}

	title, _, err := el.Attribute(ctx, "title")
	if err != nil {
		return "", err
	}
	return normalizeSpace(title), nil
}

// referencedText joins the text of every element referenced by an id-list
// attribute such as aria-labelledby. Unresolvable ids contribute nothing.
func referencedText(ctx context.Context, page Page, el Element, attr string) (string, error) {
	ids, ok, err := el.Attribute(ctx, attr)
	if err != nil || !ok {
		return "", err
	}
	var parts []string
	for _, id := range strings.Fields(ids) {
		ref, err := lookupID(ctx, page, id)
		if err != nil {
			return "", err
		}
		if ref == nil {
			continue
		}
		t, err := ref.Text(ctx)
		if err != nil {
			return "", err
		}
		if t = normalizeSpace(t); t != "" {
			parts = append(parts, t)
		}
	}
	return strings.Join(parts, " "), nil
}

// lookupID returns the first element with id, or nil when none exists.
func lookupID(ctx context.Context, page Page, id string) (Element, error) {
	els, err := page.Elements(ctx, IDSelector(id))
	if err != nil {
		return nil, err
	}
	if len(els) == 0 {
		return nil, nil
	}
	return els[0], nil
}
