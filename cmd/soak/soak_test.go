package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thesyncim/uiverify/pkg/uiverify/flows"
	"github.com/thesyncim/uiverify/pkg/uiverify/testutil"
)

func shortSoak() soakConfig {
	return soakConfig{Duration: 50 * time.Millisecond, Interval: time.Millisecond}
}

func TestRunSoak_Pass(t *testing.T) {
	app := testutil.StaticApp(testutil.AppOptions{})
	cfg := testutil.StaticConfig(t.TempDir(), nil)
	var out bytes.Buffer

	result := runSoak(context.Background(), shortSoak(), app.Launch, cfg, flows.DialogIdempotence(2), &out, testutil.Logger())
	assert.Equal(t, "PASS", result.Status, out.String())
	assert.GreaterOrEqual(t, result.Runs, 1)
	assert.Zero(t, result.Failed)
	assert.Equal(t, result.Runs, app.Closes(), "every session closes its browser")
	assert.Contains(t, out.String(), "Runs: ")

	printSummary(&out, result)
	assert.Contains(t, out.String(), "Status:            PASS")
}

func TestRunSoak_RecordsFailedRuns(t *testing.T) {
	app := testutil.StaticApp(testutil.AppOptions{Faults: []testutil.Fault{testutil.FaultNotModal}})
	dir := t.TempDir()
	cfg := testutil.StaticConfig(dir, nil)
	var out bytes.Buffer

	result := runSoak(context.Background(), shortSoak(), app.Launch, cfg, flows.Markup(), &out, testutil.Logger())
	assert.Equal(t, "FAIL", result.Status)
	assert.Equal(t, result.Runs, result.Failed)
	require.Len(t, result.FailedRunIDs, result.Failed)
	assert.Contains(t, out.String(), "ERROR: run 1 failed")

	_, err := os.Stat(filepath.Join(dir, "markup.json"))
	assert.NoError(t, err)
}

func TestRunSoak_CancelledBeforeFirstRun(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	app := testutil.StaticApp(testutil.AppOptions{})
	cfg := testutil.StaticConfig(t.TempDir(), nil)

	result := runSoak(ctx, shortSoak(), app.Launch, cfg, flows.Markup(), &bytes.Buffer{}, testutil.Logger())
	assert.Zero(t, result.Runs)
	assert.Equal(t, "FAIL", result.Status)
}

func TestFormatDuration(t *testing.T) {
	assert.Equal(t, "00:00:00", formatDuration(0))
	assert.Equal(t, "01:02:03", formatDuration(time.Hour+2*time.Minute+3*time.Second))
}
