// Package engine maps configured engine names to browser launchers.
package engine

import (
	"fmt"
	"net/http"
	"slices"
	"time"

	"github.com/thesyncim/uiverify/pkg/uiverify"
	"github.com/thesyncim/uiverify/pkg/uiverify/cdppage"
	"github.com/thesyncim/uiverify/pkg/uiverify/htmlpage"
	"github.com/thesyncim/uiverify/pkg/uiverify/rodpage"
)

// Engine names accepted in Config.Engine.
const (
	Rod      = "rod"
	Chromedp = "chromedp"
	Static   = "static"
)

// Names lists the supported engines.
func Names() []string {
	return []string{Rod, Chromedp, Static}
}

// Launcher returns the LaunchFunc for cfg.Engine. The static engine
// fetches markup over HTTP and runs no scripts, so only flows that do not
// depend on client-side behaviour pass with it.
func Launcher(cfg uiverify.Config) (uiverify.LaunchFunc, error) {
	switch cfg.Engine {
	case Rod, "":
		rc := rodpage.DefaultConfig()
		rc.Headless = cfg.Headless
		rc.Timeout = cfg.Timeouts.Bootstrap
		return rodpage.Launcher(rc), nil
	case Chromedp:
		cc := cdppage.DefaultConfig()
		cc.Headless = cfg.Headless
		return cdppage.Launcher(cc), nil
	case Static:
		client := &http.Client{Timeout: cfg.Timeouts.Bootstrap}
		if client.Timeout <= 0 {
			client.Timeout = 30 * time.Second
		}
		return htmlpage.New(htmlpage.WithHTTPClient(client)).Launch, nil
	}
	return nil, fmt.Errorf("unknown engine %q (want one of %v)", cfg.Engine, Names())
}

// Valid reports whether name is a supported engine.
func Valid(name string) bool {
	return slices.Contains(Names(), name)
}
