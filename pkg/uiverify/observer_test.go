package uiverify_test

import (
	"context"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thesyncim/uiverify/pkg/uiverify"
	"github.com/thesyncim/uiverify/pkg/uiverify/htmlpage"
	"github.com/thesyncim/uiverify/pkg/uiverify/internal"
	"github.com/thesyncim/uiverify/pkg/uiverify/testutil"
)

var syncSpec = uiverify.TransitionSpec{
	Name:            "sync",
	Transient:       "Syncing...",
	Terminal:        "Synced!",
	TransientWithin: 200 * time.Millisecond,
	TerminalWithin:  time.Second,
}

var seed = map[string]string{"data_logging_enabled": "true", "cloud_sync_enabled": "true"}

func newObserver(page uiverify.Page, clock uiverify.Clock, res *uiverify.Result) *uiverify.Observer {
	return uiverify.NewObserver(page, time.Millisecond, clock, res, testutil.Logger())
}

func statusOf(res *uiverify.Result, name string) (uiverify.Status, bool) {
	for _, c := range res.Checks() {
		if c.Name == name {
			return c.Status, true
		}
	}
	return 0, false
}

func clickSync(t *testing.T, page uiverify.Page, clock uiverify.Clock) {
	t.Helper()
	d := newDriver(page, clock)
	require.NoError(t, d.Click(context.Background(), d.Find(uiverify.ByID("open-settings"))))
	require.NoError(t, d.Click(context.Background(), d.Find(uiverify.ByRole("button", "Sync Now"))))
}

func TestObserver_OrderedTransition(t *testing.T) {
	clock := ticking()
	page := loadApp(t, testutil.AppOptions{}, clock, seed)
	res := uiverify.NewResult("sync")
	o := newObserver(page, clock, res)
	ctx := context.Background()

	state, err := o.State(ctx, syncSpec)
	require.NoError(t, err)
	assert.Equal(t, uiverify.StateIdle, state)

	mark := o.Mark()
	clickSync(t, page, clock)

	state, err = o.State(ctx, syncSpec)
	require.NoError(t, err)
	assert.Equal(t, uiverify.StateTransient, state)

	tr, err := o.WaitTransition(ctx, mark, syncSpec)
	require.NoError(t, err)
	assert.True(t, tr.TransientSeen)
	assert.True(t, tr.Ordered())
	assert.Equal(t, []uiverify.AsyncState{uiverify.StateIdle, uiverify.StateTransient, uiverify.StateTerminal}, tr.States)
	assert.Greater(t, tr.TerminalAt, tr.TransientAt)
	assert.Greater(t, tr.TerminalAt, testutil.DefaultSyncLatency/2)
	assert.Less(t, tr.TerminalAt, syncSpec.TerminalWithin)

	for _, name := range []string{"sync.transient", "sync.terminal", "sync.order"} {
		s, ok := statusOf(res, name)
		require.True(t, ok, name)
		assert.Equal(t, uiverify.StatusPass, s, name)
	}

	state, err = o.State(ctx, syncSpec)
	require.NoError(t, err)
	assert.Equal(t, uiverify.StateTerminal, state)
}

func TestObserver_SkippedTransientWarns(t *testing.T) {
	clock := ticking()
	page := loadApp(t, testutil.AppOptions{Faults: []testutil.Fault{testutil.FaultSkipTransient}}, clock, seed)
	res := uiverify.NewResult("sync")
	o := newObserver(page, clock, res)

	mark := o.Mark()
	clickSync(t, page, clock)
	tr, err := o.WaitTransition(context.Background(), mark, syncSpec)

	require.NoError(t, err)
	assert.False(t, tr.TransientSeen)
	assert.False(t, tr.Ordered())
	s, _ := statusOf(res, "sync.transient")
	assert.Equal(t, uiverify.StatusWarn, s)
	_, ok := statusOf(res, "sync.order")
	assert.False(t, ok)
	assert.True(t, res.Passed())
}

func TestObserver_TerminalTimeout(t *testing.T) {
	clock := ticking()
	page := loadApp(t, testutil.AppOptions{SyncLatency: 3 * time.Second}, clock, seed)
	res := uiverify.NewResult("sync")
	o := newObserver(page, clock, res)

	mark := o.Mark()
	clickSync(t, page, clock)
	tr, err := o.WaitTransition(context.Background(), mark, syncSpec)

	var terr *uiverify.TimeoutVerificationError
	require.ErrorAs(t, err, &terr)
	assert.Equal(t, "Synced!", terr.Text)
	assert.True(t, tr.TransientSeen)
	s, _ := statusOf(res, "sync.terminal")
	assert.Equal(t, uiverify.StatusFail, s)
	assert.False(t, res.Passed())
}

const delayedDoc = `<button id="go">Go</button><p id="a"></p><p id="b"></p>`

func TestObserver_LateTransientFails(t *testing.T) {
	clock := ticking()
	page := loadDoc(t, delayedDoc, htmlpage.WithClock(clock), htmlpage.OnClick("#go", func(ev *htmlpage.Event) {
		ev.After(300*time.Millisecond, func(doc *goquery.Document) { doc.Find("#a").SetText("Syncing...") })
		ev.After(400*time.Millisecond, func(doc *goquery.Document) { doc.Find("#b").SetText("Synced!") })
	}))
	res := uiverify.NewResult("sync")
	o := newObserver(page, clock, res)
	d := newDriver(page, clock)

	mark := o.Mark()
	require.NoError(t, d.Click(context.Background(), d.Find(uiverify.ByID("go"))))
	tr, err := o.WaitTransition(context.Background(), mark, syncSpec)

	var terr *uiverify.TimeoutVerificationError
	require.ErrorAs(t, err, &terr)
	assert.Equal(t, "Syncing...", terr.Text)
	assert.Greater(t, tr.TransientAt, syncSpec.TransientWithin)
	s, _ := statusOf(res, "sync.transient")
	assert.Equal(t, uiverify.StatusFail, s)
	s, _ = statusOf(res, "sync.terminal")
	assert.Equal(t, uiverify.StatusPass, s)
}

func TestObserver_SameSampleWarnsOnOrder(t *testing.T) {
	clock := ticking()
	page := loadDoc(t, delayedDoc, htmlpage.WithClock(clock), htmlpage.OnClick("#go", func(ev *htmlpage.Event) {
		ev.Doc.Find("#a").SetText("Syncing...")
		ev.Doc.Find("#b").SetText("Synced!")
	}))
	res := uiverify.NewResult("sync")
	o := newObserver(page, clock, res)
	d := newDriver(page, clock)

	mark := o.Mark()
	require.NoError(t, d.Click(context.Background(), d.Find(uiverify.ByID("go"))))
	tr, err := o.WaitTransition(context.Background(), mark, syncSpec)

	require.NoError(t, err)
	assert.True(t, tr.TransientSeen)
	assert.Equal(t, tr.TransientSample, tr.TerminalSample)
	assert.False(t, tr.Ordered())
	s, _ := statusOf(res, "sync.order")
	assert.Equal(t, uiverify.StatusWarn, s)
}

// slowPage charges a fixed clock cost to every element query.
type slowPage struct {
	uiverify.Page
	clock      *internal.MockClock
	lookupCost time.Duration
	textCost   time.Duration
}

func (p *slowPage) Elements(ctx context.Context, selector string) ([]uiverify.Element, error) {
	p.clock.Advance(p.lookupCost)
	return p.Page.Elements(ctx, selector)
}

func (p *slowPage) ElementsByText(ctx context.Context, text string) ([]uiverify.Element, error) {
	p.clock.Advance(p.textCost)
	return p.Page.ElementsByText(ctx, text)
}

func TestObserver_SightingsIncludeQueryCost(t *testing.T) {
	clock := internal.NewMockClock(time.Unix(0, 0))
	inner := loadDoc(t, delayedDoc, htmlpage.WithClock(clock), htmlpage.OnClick("#go", func(ev *htmlpage.Event) {
		ev.Doc.Find("#a").SetText("Syncing...")
		ev.After(100*time.Millisecond, func(doc *goquery.Document) { doc.Find("#b").SetText("Synced!") })
	}))
	page := &slowPage{Page: inner, clock: clock, textCost: 150 * time.Millisecond}
	res := uiverify.NewResult("sync")
	o := newObserver(page, clock, res)
	d := newDriver(page, clock)
	spec := syncSpec
	spec.TerminalWithin = 250 * time.Millisecond

	mark := o.Mark()
	require.NoError(t, d.Click(context.Background(), d.Find(uiverify.ByID("go"))))
	tr, err := o.WaitTransition(context.Background(), mark, spec)

	var terr *uiverify.TimeoutVerificationError
	require.ErrorAs(t, err, &terr)
	assert.Equal(t, "Synced!", terr.Text)
	assert.Equal(t, 150*time.Millisecond, tr.TransientAt)
	assert.Equal(t, 300*time.Millisecond, tr.TerminalAt)
	s, _ := statusOf(res, "sync.transient")
	assert.Equal(t, uiverify.StatusPass, s)
	s, _ = statusOf(res, "sync.terminal")
	assert.Equal(t, uiverify.StatusFail, s)
	s, _ = statusOf(res, "sync.order")
	assert.Equal(t, uiverify.StatusWarn, s)
}

func TestObserver_LatencyMeasuredFromClickDispatch(t *testing.T) {
	clock := internal.NewMockClock(time.Unix(0, 0))
	inner := loadDoc(t, delayedDoc, htmlpage.WithClock(clock), htmlpage.OnClick("#go", func(ev *htmlpage.Event) {
		ev.Doc.Find("#a").SetText("Syncing...")
		ev.After(300*time.Millisecond, func(doc *goquery.Document) { doc.Find("#b").SetText("Synced!") })
	}))
	page := &slowPage{Page: inner, clock: clock, lookupCost: 250 * time.Millisecond, textCost: 20 * time.Millisecond}
	res := uiverify.NewResult("sync")
	o := newObserver(page, clock, res)
	d := newDriver(page, clock)

	before := clock.Now()
	sent, err := d.ClickAt(context.Background(), d.Find(uiverify.ByID("go")))
	require.NoError(t, err)
	assert.GreaterOrEqual(t, sent.Sub(before), 250*time.Millisecond)

	tr, err := o.WaitTransition(context.Background(), sent, syncSpec)
	require.NoError(t, err)
	assert.Less(t, tr.TransientAt, syncSpec.TransientWithin)
	assert.True(t, tr.Ordered())
	assert.True(t, res.Passed())
}

func TestObserver_WaitForText(t *testing.T) {
	clock := ticking()
	page := loadDoc(t, delayedDoc, htmlpage.WithClock(clock), htmlpage.OnClick("#go", func(ev *htmlpage.Event) {
		ev.After(100*time.Millisecond, func(doc *goquery.Document) { doc.Find("#a").SetText("Ready") })
	}))
	o := newObserver(page, clock, uiverify.NewResult("t"))
	d := newDriver(page, clock)
	ctx := context.Background()

	require.NoError(t, d.Click(ctx, d.Find(uiverify.ByID("go"))))
	elapsed, err := o.WaitForText(ctx, "Ready", time.Second)
	require.NoError(t, err)
	assert.Less(t, elapsed, time.Second)

	_, err = o.WaitForText(ctx, "Never", 50*time.Millisecond)
	var terr *uiverify.TimeoutVerificationError
	require.ErrorAs(t, err, &terr)
}

func TestAsyncStateString(t *testing.T) {
	assert.Equal(t, "idle", uiverify.StateIdle.String())
	assert.Equal(t, "transient", uiverify.StateTransient.String())
	assert.Equal(t, "terminal", uiverify.StateTerminal.String())
	assert.Equal(t, "unknown", uiverify.AsyncState(9).String())
}
