package uiverify

import (
	"context"
	"fmt"
	"strings"
)

// QueryKind identifies how a Query locates elements.
type QueryKind int

const (
	// KindRole matches an explicit or implicit ARIA role, optionally
	// filtered by accessible name.
	KindRole QueryKind = iota
	// KindLabel matches elements by accessible label (aria-label,
	// aria-labelledby or an associated <label for>).
	KindLabel
	// KindID matches the element with a given id.
	KindID
	// KindSelector matches a raw CSS selector.
	KindSelector
	// KindText matches the innermost elements containing a text.
	KindText
)

// Query describes how to locate elements. The zero value is not useful;
// build queries with ByRole, ByLabel, ByID, BySelector or ByText.
type Query struct {
	Kind  QueryKind
	Role  string
	Value string
	exact bool
}

// ByRole matches elements with the given role. A non-empty name
// additionally filters on accessible name.
func ByRole(role, name string) Query {
	return Query{Kind: KindRole, Role: role, Value: name}
}

// ByLabel matches elements whose accessible label matches label.
func ByLabel(label string) Query {
	return Query{Kind: KindLabel, Value: label}
}

// ByID matches the element with the given id.
func ByID(id string) Query {
	return Query{Kind: KindID, Value: id}
}

// BySelector matches a CSS selector.
func BySelector(css string) Query {
	return Query{Kind: KindSelector, Value: css}
}

// ByText matches the innermost elements containing text.
func ByText(text string) Query {
	return Query{Kind: KindText, Value: text}
}

// Exact returns a copy of q that requires whole-string, case-sensitive
// name, label and text matches. By default role names and labels are
// case-insensitive substring matches, while text queries are
// case-sensitive substring matches as performed by the page engine.
func (q Query) Exact() Query {
	q.exact = true
	return q
}

// String renders the query for diagnostics.
func (q Query) String() string {
	switch q.Kind {
	case KindRole:
		if q.Value == "" {
			return fmt.Sprintf("role=%s", q.Role)
		}
		return fmt.Sprintf("role=%s[name=%q]", q.Role, q.Value)
	case KindLabel:
		return fmt.Sprintf("label=%q", q.Value)
	case KindID:
		return "#" + q.Value
	case KindSelector:
		return q.Value
	case KindText:
		return fmt.Sprintf("text=%q", q.Value)
	default:
		return "unknown query"
	}
}

// resolve returns the elements matching q on page, in document order.
func (q Query) resolve(ctx context.Context, page Page) ([]Element, error) {
	switch q.Kind {
	case KindID:
		return page.Elements(ctx, IDSelector(q.Value))
	case KindSelector:
		return page.Elements(ctx, q.Value)
	case KindText:
		return q.resolveText(ctx, page)
	case KindRole:
		return q.resolveRole(ctx, page)
	case KindLabel:
		return q.resolveLabel(ctx, page)
	}
	return nil, fmt.Errorf("unsupported query kind %d", q.Kind)
}

func (q Query) resolveText(ctx context.Context, page Page) ([]Element, error) {
	els, err := page.ElementsByText(ctx, q.Value)
	if err != nil {
		return nil, err
	}
	if !q.exact {
		return els, nil
	}
	var out []Element
	for _, el := range els {
		text, err := el.Text(ctx)
		if err != nil {
			return nil, err
		}
		if normalizeSpace(text) == q.Value {
			out = append(out, el)
		}
	}
	return out, nil
}

func (q Query) resolveRole(ctx context.Context, page Page) ([]Element, error) {
	els, err := page.Elements(ctx, RoleSelector(q.Role))
	if err != nil {
		return nil, err
	}
	if q.Value == "" {
		return els, nil
	}
	var out []Element
	for _, el := range els {
		name, err := AccessibleName(ctx, page, el)
		if err != nil {
			return nil, err
		}
		if matchText(name, q.Value, q.exact) {
			out = append(out, el)
		}
	}
	return out, nil
}

func (q Query) resolveLabel(ctx context.Context, page Page) ([]Element, error) {
	var out []Element

	labelled, err := page.Elements(ctx, "[aria-label]")
	if err != nil {
		return nil, err
	}
	for _, el := range labelled {
		v, _, err := el.Attribute(ctx, "aria-label")
		if err != nil {
			return nil, err
		}
		if matchText(v, q.Value, q.exact) {
			out = append(out, el)
		}
	}

	referenced, err := page.Elements(ctx, "[aria-labelledby]:not([aria-label])")
	if err != nil {
		return nil, err
	}
	for _, el := range referenced {
		text, err := referencedText(ctx, page, el, "aria-labelledby")
		if err != nil {
			return nil, err
		}
		if matchText(text, q.Value, q.exact) {
			out = append(out, el)
		}
	}

	labels, err := page.Elements(ctx, "label[for]")
	if err != nil {
		return nil, err
	}
	for _, label := range labels {
		text, err := label.Text(ctx)
		if err != nil {
			return nil, err
		}
		if !matchText(text, q.Value, q.exact) {
			continue
		}
		target, _, err := label.Attribute(ctx, "for")
		if err != nil {
			return nil, err
		}
		controls, err := page.Elements(ctx, IDSelector(target)+":not([aria-label]):not([aria-labelledby])")
		if err != nil {
			return nil, err
		}
		out = append(out, controls...)
	}
	return out, nil
}

// implicitRoles maps roles to the native elements that carry them without
// an explicit role attribute.
var implicitRoles = map[string][]string{
	"button":   {"button", `input[type="button"]`, `input[type="submit"]`, `input[type="reset"]`},
	"checkbox": {`input[type="checkbox"]`},
	"dialog":   {"dialog"},
	"heading":  {"h1", "h2", "h3", "h4", "h5", "h6"},
	"link":     {"a[href]"},
	"slider":   {`input[type="range"]`},
	"textbox":  {"input:not([type])", `input[type="text"]`, `input[type="email"]`, "textarea"},
}

// RoleSelector returns a CSS selector matching elements with role, either
// explicitly through the role attribute or implicitly by element type.
func RoleSelector(role string) string {
	parts := []string{fmt.Sprintf("[role=%s]", cssString(role))}
	for _, native := range implicitRoles[role] {
		parts = append(parts, native+":not([role])")
	}
	return strings.Join(parts, ", ")
}

// IDSelector returns a CSS selector matching the element with id.
// Attribute syntax keeps ids that are not valid CSS identifiers usable.
func IDSelector(id string) string {
	return fmt.Sprintf("[id=%s]", cssString(id))
}

func cssString(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `"`, `\"`)
	return `"` + r.Replace(s) + `"`
}

func normalizeSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func matchText(actual, want string, exact bool) bool {
	actual = normalizeSpace(actual)
	if exact {
		return actual == want
	}
	return strings.Contains(strings.ToLower(actual), strings.ToLower(normalizeSpace(want)))
}

// TextXPath returns an XPath selecting the innermost body elements whose
// normalized text contains text, skipping script, style and template
// content. Browser engines use it to implement Page.ElementsByText.
func TextXPath(text string) string {
	lit := xpathLiteral(normalizeSpace(text))
	return fmt.Sprintf(
		"//body//*[not(self::script or self::style or self::template or ancestor::template)]"+
			"[contains(normalize-space(.), %[1]s)]"+
			"[not(.//*[not(self::script or self::style or self::template)][contains(normalize-space(.), %[1]s)])]",
		lit)
}

// xpathLiteral quotes s as an XPath 1.0 string literal. XPath has no
// escapes, so strings holding both quote kinds are built with concat.
func xpathLiteral(s string) string {
	if !strings.Contains(s, `"`) {
		return `"` + s + `"`
	}
	if !strings.Contains(s, "'") {
		return "'" + s + "'"
	}
	parts := strings.Split(s, `"`)
	args := make([]string, 0, 2*len(parts))
	for i, p := range parts {
		if i > 0 {
			args = append(args, `'"'`)
		}
		if p != "" {
			args = append(args, `"`+p+`"`)
		}
	}
	return "concat(" + strings.Join(args, ", ") + ")"
}
