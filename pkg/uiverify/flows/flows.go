// Package flows contains the scripted verifications run against the
// settings panel of the target application.
//
// Assertion violations never abort a flow: they are recorded in the run's
// Result and the flow carries on, so one run reports every violation.
// Driver and observer failures abort the flow.
package flows

import (
	"context"
	"fmt"

	"github.com/thesyncim/uiverify/pkg/uiverify"
)

// Application contract.
const (
	OpenSettingsLabel  = "Open Settings"
	CloseSettingsLabel = "Close Settings"
	SettingsTitleID    = "settings-title"
	SpeedThresholdID   = "speed-threshold"
	SyncButtonName     = "Sync Now"
	SyncingText        = "Syncing..."
	SyncedText         = "Synced!"

	DataLoggingKey = "data_logging_enabled"
	CloudSyncKey   = "cloud_sync_enabled"
)

var (
	dialogQuery   = uiverify.ByRole("dialog", "")
	switchQuery   = uiverify.ByRole("switch", "")
	syncQuery     = uiverify.ByRole("button", SyncButtonName)
	titleInDialog = uiverify.BySelector(`[role="dialog"] ` + uiverify.IDSelector(SettingsTitleID))

	dialogButtonQuery = uiverify.BySelector(`[role="dialog"] button:not([role])`)
)

// SyncSeed returns the storage that enables cloud sync.
func SyncSeed() map[string]string {
	return map[string]string{
		DataLoggingKey: "true",
		CloudSyncKey:   "true",
	}
}

// All returns every interactive flow, in the order the CLI runs them.
func All() []uiverify.Flow {
	return []uiverify.Flow{SettingsAccessibility(), Sync(), SyncGating(), DialogIdempotence(3)}
}

// ByName looks up a flow by its name, including Markup.
func ByName(name string) (uiverify.Flow, bool) {
	for _, f := range append(All(), Markup()) {
		if f.Name == name {
			return f, true
		}
	}
	return uiverify.Flow{}, false
}

// SettingsAccessibility opens the settings panel on a phone-sized
// viewport and checks the dialog, switch and input-label contracts.
func SettingsAccessibility() uiverify.Flow {
	return uiverify.Flow{
		Name:     "settings-accessibility",
		Viewport: uiverify.Pixel7,
		Steps: func(ctx context.Context, h *uiverify.Harness) error {
			if err := openSettings(ctx, h); err != nil {
				return err
			}
			if err := h.Driver.Settle(ctx, dialogQuery); err != nil {
				return abort(h, "dialog.settle", err)
			}

			h.Step("Taking screenshot...")
			if err := h.Capture(ctx, "settings_panel"); err != nil {
				return abort(h, "capture.settings_panel", err)
			}

			h.Step("Verifying attributes...")
			h.Assert.AssertAccessibleDialog(ctx, h.Driver.Find(dialogQuery))
			h.Assert.AssertCount(ctx, "dialog.contains-title", h.Driver.Find(titleInDialog), 1)
			h.Assert.AssertSwitches(ctx, h.Driver.Find(switchQuery))
			h.Assert.AssertInputLabel(ctx, SpeedThresholdID)
			return nil
		},
	}
}

// Markup audits the served document without interacting with it. The
// settings dialog may still be hidden; its attributes, switches and the
// threshold label are checked as rendered by the server. It is the only
// flow that passes on the static engine against a live server.
func Markup() uiverify.Flow {
	return uiverify.Flow{
		Name: "markup",
		Steps: func(ctx context.Context, h *uiverify.Harness) error {
			h.Step("Auditing served markup...")
			h.Assert.AssertCount(ctx, "open-settings.present", h.Driver.Find(uiverify.ByLabel(OpenSettingsLabel)), 1)
			h.Assert.AssertAccessibleDialog(ctx, h.Driver.Find(dialogQuery))
			h.Assert.AssertCount(ctx, "dialog.contains-title", h.Driver.Find(titleInDialog), 1)
			h.Assert.AssertSwitches(ctx, h.Driver.Find(switchQuery))
			h.Assert.AssertInputLabel(ctx, SpeedThresholdID)
			return nil
		},
	}
}

// Sync seeds cloud sync settings, presses "Sync Now" and checks that the
// button passes through "Syncing..." to "Synced!" within bounds.
func Sync() uiverify.Flow {
	return uiverify.Flow{
		Name:          "sync",
		SeededStorage: SyncSeed(),
		Steps: func(ctx context.Context, h *uiverify.Harness) error {
			if err := openSettings(ctx, h); err != nil {
				return err
			}

			h.Step("Finding Sync Now button...")
			btn, err := h.Driver.WaitForAppearance(ctx, syncQuery, h.Config.Timeouts.Appear)
			if err != nil {
				h.Result.Fail("sync.visible", "visible=true enabled=true", "absent", err)
				return err
			}
			if err := h.Assert.AssertVisibleEnabled(ctx, "sync.visible", btn); err != nil {
				return err
			}

			spec := uiverify.TransitionSpec{
				Name:            "sync",
				Transient:       SyncingText,
				Terminal:        SyncedText,
				TransientWithin: h.Config.Timeouts.Transient,
				TerminalWithin:  h.Config.Timeouts.Terminal,
			}
			state, err := h.Observer.State(ctx, spec)
			if err != nil {
				return abort(h, "sync.state", err)
			}
			if state == uiverify.StateIdle {
				h.Result.Pass("sync.idle", uiverify.StateIdle.String(), state.String())
			} else {
				h.Result.Fail("sync.idle", uiverify.StateIdle.String(), state.String(),
					fmt.Errorf("sync already %s before click", state))
			}

			h.Step("Clicking Sync Now...")
			sent, err := h.Driver.ClickAt(ctx, btn)
			if err != nil {
				return abort(h, "sync.click", err)
			}

			h.Step("Waiting for Synced! state...")
			if _, err := h.Observer.WaitTransition(ctx, sent, spec); err != nil {
				return err
			}

			h.Step("Taking screenshot...")
			if err := h.Capture(ctx, "sync_success"); err != nil {
				return abort(h, "capture.sync_success", err)
			}
			return nil
		},
	}
}

// SyncGating opens settings without seeding storage and records whether
// "Sync Now" is rendered. Absence is the expected outcome.
func SyncGating() uiverify.Flow {
	return uiverify.Flow{
		Name: "sync-gating",
		Steps: func(ctx context.Context, h *uiverify.Harness) error {
			if err := openSettings(ctx, h); err != nil {
				return err
			}
			els, err := h.Driver.Find(syncQuery).All(ctx)
			if err != nil {
				return abort(h, "sync.gated", err)
			}
			visible := false
			for _, el := range els {
				v, err := el.Visible(ctx)
				if err != nil {
					return abort(h, "sync.gated", err)
				}
				visible = visible || v
			}
			if visible {
				h.Result.Warn("sync.gated", "Sync Now is rendered without seeded cloud sync settings")
			} else {
				h.Result.Info("sync.gated", "Sync Now is not rendered without seeded cloud sync settings")
			}
			return nil
		},
	}
}

// DialogIdempotence opens and closes the settings dialog n times and
// checks that it exposes the same accessible state every time.
func DialogIdempotence(n int) uiverify.Flow {
	return uiverify.Flow{
		Name: "dialog-idempotence",
		Steps: func(ctx context.Context, h *uiverify.Harness) error {
			var first uiverify.ElementSnapshot
			for i := range n {
				if err := openSettings(ctx, h); err != nil {
					return err
				}
				name := fmt.Sprintf("dialog.open[%d]", i)
				if err := h.Driver.Settle(ctx, dialogQuery); err != nil {
					return abort(h, name, err)
				}
				snap, err := h.Driver.Find(dialogQuery).Snapshot(ctx)
				if err != nil {
					return abort(h, name, err)
				}

				if i == 0 {
					first = snap
					h.Assert.AssertAccessibleDialog(ctx, h.Driver.Find(dialogQuery))
					h.Result.Info(name, "baseline captured")
				} else if snap.SameState(first) {
					h.Result.Pass(name, "same state as first open", "same")
				} else {
					h.Result.Fail(name, "same state as first open", "changed",
						fmt.Errorf("dialog state changed: %v", first.Diff(snap)))
				}

				if err := closeSettings(ctx, h); err != nil {
					return err
				}
			}
			return nil
		},
	}
}

// openSettings clicks "Open Settings" and waits for the panel title.
// Failures are recorded as a failed "settings.open" check.
func openSettings(ctx context.Context, h *uiverify.Harness) error {
	h.Step("Clicking Open Settings...")
	open, err := h.Driver.WaitForAppearance(ctx, uiverify.ByLabel(OpenSettingsLabel), h.Config.Timeouts.Appear)
	if err != nil {
		return abort(h, "settings.open", err)
	}
	if err := h.Driver.Click(ctx, open); err != nil {
		return abort(h, "settings.open", err)
	}

	h.Step("Waiting for Settings Panel...")
	if _, err := h.Driver.WaitForAppearance(ctx, uiverify.ByID(SettingsTitleID), h.Config.Timeouts.Appear); err != nil {
		return abort(h, "settings.open", err)
	}
	return nil
}

// closeSettings clicks the "Close Settings" control, or the dialog's first
// button when no control carries that name.
func closeSettings(ctx context.Context, h *uiverify.Harness) error {
	h.Step("Closing settings...")
	closer := h.Driver.Find(uiverify.ByLabel(CloseSettingsLabel))
	n, err := closer.Count(ctx)
	if err != nil {
		return abort(h, "settings.close", err)
	}
	if n == 0 {
		h.Result.Info("settings.close", fmt.Sprintf("no %q control; using the dialog's first button", CloseSettingsLabel))
		closer = h.Driver.Find(dialogButtonQuery)
	}
	if err := h.Driver.Click(ctx, closer); err != nil {
		return abort(h, "settings.close", err)
	}
	if err := h.Driver.WaitForHidden(ctx, dialogQuery, h.Config.Timeouts.Appear); err != nil {
		return abort(h, "settings.close", err)
	}
	return nil
}

// abort records err as a failed check named after step and returns it.
func abort(h *uiverify.Harness, step string, err error) error {
	h.Result.Fail(step, "completed", "error", err)
	return err
}
