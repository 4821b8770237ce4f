package uiverify

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Relation names an ARIA id-reference attribute a control is expected to
// carry.
type Relation struct {
	Attr     string
	Required bool
}

var (
	// LabelledBy requires a resolvable, non-empty aria-labelledby.
	LabelledBy = Relation{Attr: "aria-labelledby", Required: true}
	// DescribedBy checks aria-describedby when present.
	DescribedBy = Relation{Attr: "aria-describedby"}
)

// Asserter checks accessibility and functional contracts against element
// snapshots. It only reads from the page and records every outcome,
// including engine errors, into its Result; returned errors mirror what was
// recorded so callers may continue past a violation.
type Asserter struct {
	page   Page
	result *Result
}

// NewAsserter creates an Asserter recording into result.
func NewAsserter(page Page, result *Result) *Asserter {
	return &Asserter{page: page, result: result}
}

// AssertAccessibleDialog checks that the first element of loc exposes
// role="dialog", aria-modal="true" and an aria-labelledby that resolves to
// non-empty text.
func (a *Asserter) AssertAccessibleDialog(ctx context.Context, loc *Locator) error {
	snap, err := loc.Snapshot(ctx)
	if err != nil {
		a.result.Fail("dialog.present", loc.String(), "absent", err)
		return err
	}
	a.result.Pass("dialog.present", loc.String(), snap.Label())

	var errs []error
	errs = append(errs, a.expectAttr(snap, "dialog.role", "role", "dialog"))
	errs = append(errs, a.expectAttr(snap, "dialog.aria-modal", "aria-modal", "true"))
	errs = append(errs, a.checkRelation(ctx, "dialog", snap, LabelledBy))
	return errors.Join(errs...)
}

// AssertLabelledControl checks every relation on a captured control.
// All relations are checked even when an earlier one fails.
func (a *Asserter) AssertLabelledControl(ctx context.Context, snap ElementSnapshot, relations ...Relation) error {
	var errs []error
	for _, rel := range relations {
		errs = append(errs, a.checkRelation(ctx, snap.Label(), snap, rel))
	}
	return errors.Join(errs...)
}

// AssertSwitches enumerates every element matched by loc and validates
// each as a labelled switch, independently. It returns the number of
// switches whose aria-labelledby is missing, broken or resolves to blank
// text. Role and aria-describedby violations are recorded and joined into
// the returned error but not counted. Finding no switches is recorded as
// an informational outcome, not a pass.
func (a *Asserter) AssertSwitches(ctx context.Context, loc *Locator) (int, error) {
	snaps, err := loc.Snapshots(ctx)
	if err != nil {
		a.result.Fail("switches.enumerate", loc.String(), "error", err)
		return 0, err
	}
	if len(snaps) == 0 {
		a.result.Info("switches", "no toggles found")
		return 0, nil
	}
	a.result.Info("switches", fmt.Sprintf("%d toggles found", len(snaps)))

	var (
		errs       []error
		unlabelled int
	)
	for _, snap := range snaps {
		roleErr := a.expectAttr(snap, snap.Label()+".role", "role", "switch")
		labelErr := a.checkRelation(ctx, snap.Label(), snap, LabelledBy)
		descErr := a.checkRelation(ctx, snap.Label(), snap, DescribedBy)
		if labelErr != nil {
			unlabelled++
		}
		errs = append(errs, roleErr, labelErr, descErr)
	}
	return unlabelled, errors.Join(errs...)
}

// AssertInputLabel checks that exactly one element carries id and exactly
// one <label for> targets it.
func (a *Asserter) AssertInputLabel(ctx context.Context, id string) error {
	name := "input#" + id
	inputs, err := a.page.Elements(ctx, IDSelector(id))
	if err != nil {
		return a.engineFail(name+".count", fmt.Errorf("failed to count #%s: %w", id, err))
	}
	labels, err := a.page.Elements(ctx, "label[for="+cssString(id)+"]")
	if err != nil {
		return a.engineFail(name+".label", fmt.Errorf("failed to count labels for #%s: %w", id, err))
	}

	if len(inputs) == 1 && len(labels) == 1 {
		a.result.Pass(name+".count", "1", "1")
		a.result.Pass(name+".label", "1", "1")
		return nil
	}
	merr := &MissingLabelAssociationError{ID: id, Inputs: len(inputs), Labels: len(labels)}
	a.result.Add(countCheck(name+".count", len(inputs), merr))
	a.result.Add(countCheck(name+".label", len(labels), merr))
	return merr
}

// AssertAttributeEquals checks one attribute of the first element of loc.
func (a *Asserter) AssertAttributeEquals(ctx context.Context, loc *Locator, attr, expected string) error {
	snap, err := loc.Snapshot(ctx, attr)
	name := loc.String() + "." + attr
	if err != nil {
		a.result.Fail(name, expected, "element missing", err)
		return err
	}
	return a.expectAttr(snap, name, attr, expected)
}

// AssertVisibleEnabled checks that the first element of loc is rendered
// and accepts interaction.
func (a *Asserter) AssertVisibleEnabled(ctx context.Context, name string, loc *Locator) error {
	el, err := loc.First(ctx)
	if err != nil {
		a.result.Fail(name, "visible and enabled", "absent", err)
		return err
	}
	visible, err := el.Visible(ctx)
	if err != nil {
		return a.engineFail(name, err)
	}
	enabled, err := isEnabled(ctx, el)
	if err != nil {
		return a.engineFail(name, err)
	}
	actual := fmt.Sprintf("visible=%t enabled=%t", visible, enabled)
	if !visible || !enabled {
		err := &ElementNotInteractableError{Query: loc.Query(), Reason: actual}
		a.result.Fail(name, "visible=true enabled=true", actual, err)
		return err
	}
	a.result.Pass(name, "visible=true enabled=true", actual)
	return nil
}

// AssertCount checks that loc matches exactly want elements.
func (a *Asserter) AssertCount(ctx context.Context, name string, loc *Locator, want int) error {
	n, err := loc.Count(ctx)
	if err != nil {
		return a.engineFail(name, err)
	}
	if n != want {
		err := fmt.Errorf("%s: want %d matches, got %d", loc, want, n)
		a.result.Fail(name, strconv.Itoa(want), strconv.Itoa(n), err)
		return err
	}
	a.result.Pass(name, strconv.Itoa(want), strconv.Itoa(n))
	return nil
}

func (a *Asserter) expectAttr(snap ElementSnapshot, name, attr, expected string) error {
	v, ok := snap.Attr(attr)
	if !ok {
		err := fmt.Errorf("%s: missing %s", snap.Label(), attr)
		a.result.Fail(name, expected, "<absent>", err)
		return err
	}
	if v != expected {
		err := fmt.Errorf("%s: %s=%q, want %q", snap.Label(), attr, v, expected)
		a.result.Fail(name, expected, v, err)
		return err
	}
	a.result.Pass(name, expected, v)
	return nil
}

// checkRelation resolves every id in rel.Attr on snap and requires each to
// exist and the joined text to be non-empty.
func (a *Asserter) checkRelation(ctx context.Context, prefix string, snap ElementSnapshot, rel Relation) error {
	name := prefix + "." + rel.Attr
	ids, ok := snap.Attr(rel.Attr)
	if !ok || strings.TrimSpace(ids) == "" {
		if !rel.Required {
			return nil
		}
		err := fmt.Errorf("%s: missing %s", snap.Label(), rel.Attr)
		a.result.Fail(name, "id reference", "<absent>", err)
		return err
	}

	var texts []string
	for _, id := range strings.Fields(ids) {
		ref, err := lookupID(ctx, a.page, id)
		if err != nil {
			return a.engineFail(name, err)
		}
		if ref == nil {
			berr := &BrokenAriaReferenceError{Attr: rel.Attr, ID: id}
			a.result.Fail(name, "#"+id+" exists", "missing", berr)
			return berr
		}
		t, err := ref.Text(ctx)
		if err != nil {
			return a.engineFail(name, err)
		}
		if t = normalizeSpace(t); t != "" {
			texts = append(texts, t)
		}
	}
	text := strings.Join(texts, " ")
	if text == "" {
		err := fmt.Errorf("%s: %s %q resolves to empty text", snap.Label(), rel.Attr, ids)
		a.result.Fail(name, "non-empty text", `""`, err)
		return err
	}
	a.result.Pass(name, "non-empty text", text)
	return nil
}

// engineFail records an error raised by the engine while checking name.
func (a *Asserter) engineFail(name string, err error) error {
	a.result.Fail(name, "", "error", err)
	return err
}

func countCheck(name string, got int, err error) Check {
	c := Check{Name: name, Expected: "1", Actual: strconv.Itoa(got), Status: StatusPass}
	if got != 1 {
		c.Status = StatusFail
		c.Err = err
		c.Message = err.Error()
	}
	return c
}
