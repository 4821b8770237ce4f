// Package testutil provides the fixture application used by unit, server
// and end-to-end tests.
package testutil

import (
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/thesyncim/uiverify/pkg/uiverify"
	"github.com/thesyncim/uiverify/pkg/uiverify/htmlpage"
)

// Fault alters the fixture application so that one contract breaks.
type Fault string

const (
	// FaultBrokenLabel points the first switch's aria-labelledby at a
	// missing id.
	FaultBrokenLabel Fault = "broken-label"
	// FaultBlankLabel empties the second switch's label text.
	FaultBlankLabel Fault = "blank-label"
	// FaultNoSwitches removes every switch.
	FaultNoSwitches Fault = "no-switches"
	// FaultNoLabel removes the speed-threshold label.
	FaultNoLabel Fault = "no-label"
	// FaultNotModal sets aria-modal="false" on the dialog.
	FaultNotModal Fault = "not-modal"
	// FaultSkipTransient makes sync jump straight to "Synced!".
	FaultSkipTransient Fault = "skip-transient"
	// FaultUnnamedClose drops the close button's "Close Settings" label.
	FaultUnnamedClose Fault = "unnamed-close"
)

// DefaultSyncLatency is the fixture's sync duration.
const DefaultSyncLatency = 500 * time.Millisecond

// AppOptions configures the fixture application.
type AppOptions struct {
	SyncLatency time.Duration
	Faults      []Fault
}

// Query encodes opts as the fixture's URL query string.
func (o AppOptions) Query() string {
	v := url.Values{}
	if o.SyncLatency > 0 {
		v.Set("latency", strconv.FormatInt(o.SyncLatency.Milliseconds(), 10))
	}
	if len(o.Faults) > 0 {
		fs := make([]string, len(o.Faults))
		for i, f := range o.Faults {
			fs[i] = string(f)
		}
		v.Set("fault", strings.Join(fs, ","))
	}
	if len(v) == 0 {
		return ""
	}
	return "?" + v.Encode()
}

func (o AppOptions) has(f Fault) bool {
	for _, x := range o.Faults {
		if x == f {
			return true
		}
	}
	return false
}

// AppURL is the URL the static fixture is served from.
const AppURL = "http://app.test/"

// StaticApp returns a static browser serving AppHTML at AppURL, with Go
// hooks reproducing the fixture's script: faults, storage-driven
// rendering, dialog open/close, switch toggling and the timed sync
// sequence.
func StaticApp(opts AppOptions, extra ...htmlpage.Option) *htmlpage.Browser {
	latency := opts.SyncLatency
	if latency <= 0 {
		latency = DefaultSyncLatency
	}

	render := func(ev *htmlpage.Event) {
		ev.Doc.Find(`[role="switch"]`).Each(func(_ int, s *goquery.Selection) {
			key, _ := s.Attr("data-setting")
			if v, ok := ev.Storage[key]; ok {
				s.SetAttr("aria-checked", strconv.FormatBool(v == "true"))
			}
		})
		row := ev.Doc.Find("#cloud-sync")
		if ev.Storage["data_logging_enabled"] == "true" && ev.Storage["cloud_sync_enabled"] == "true" {
			row.RemoveAttr("hidden")
		} else {
			row.SetAttr("hidden", "")
		}
	}

	hooks := []htmlpage.Option{
		htmlpage.WithRoute(AppURL, AppHTML),
		htmlpage.OnLoad(func(ev *htmlpage.Event) {
			doc := ev.Doc
			if opts.has(FaultBrokenLabel) {
				doc.Find(`[role="switch"]`).First().SetAttr("aria-labelledby", "missing-label")
			}
			if opts.has(FaultBlankLabel) {
				doc.Find("#chimes-label").SetText("")
			}
			if opts.has(FaultNoSwitches) {
				doc.Find(`[role="switch"]`).Each(func(_ int, s *goquery.Selection) {
					s.Closest(".row").Remove()
				})
			}
			if opts.has(FaultNoLabel) {
				doc.Find(`label[for="speed-threshold"]`).Remove()
			}
			if opts.has(FaultNotModal) {
				doc.Find("#settings-panel").SetAttr("aria-modal", "false")
			}
			if opts.has(FaultUnnamedClose) {
				doc.Find("#close-settings").RemoveAttr("aria-label")
			}
			render(ev)
		}),
		htmlpage.OnClick("#open-settings", func(ev *htmlpage.Event) {
			ev.Doc.Find("#settings-panel").RemoveAttr("hidden").AddClass("open")
		}),
		htmlpage.OnClick("#close-settings", func(ev *htmlpage.Event) {
			ev.Doc.Find("#settings-panel").RemoveClass("open").SetAttr("hidden", "")
		}),
		htmlpage.OnClick(`[role="switch"]`, func(ev *htmlpage.Event) {
			key, _ := ev.Target.Attr("data-setting")
			checked, _ := ev.Target.Attr("aria-checked")
			ev.Storage[key] = strconv.FormatBool(checked != "true")
			render(ev)
		}),
		htmlpage.OnClick("#sync-now", func(ev *htmlpage.Event) {
			btn := ev.Target
			if opts.has(FaultSkipTransient) {
				btn.SetText("Synced!")
			} else {
				btn.SetText("Syncing...").SetAttr("disabled", "")
			}
			ev.After(latency, func(doc *goquery.Document) {
				b := doc.Find("#sync-now")
				b.RemoveAttr("disabled").SetText("Synced!")
			})
			ev.After(latency+3*time.Second, func(doc *goquery.Document) {
				doc.Find("#sync-now").SetText("Sync Now")
			})
		}),
	}
	return htmlpage.New(append(hooks, extra...)...)
}

// StaticConfig returns a run configuration pointing at the static fixture,
// with short waits measured on clock.
func StaticConfig(dir string, clock uiverify.Clock) uiverify.Config {
	cfg := uiverify.DefaultConfig()
	cfg.BaseURL = AppURL
	cfg.Engine = "static"
	cfg.OutputDir = dir
	cfg.Timeouts.Poll = time.Millisecond
	cfg.Clock = clock
	return cfg
}
