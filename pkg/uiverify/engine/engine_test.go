package engine

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thesyncim/uiverify/pkg/uiverify"
)

func TestLauncher_Names(t *testing.T) {
	for _, name := range Names() {
		cfg := uiverify.DefaultConfig()
		cfg.Engine = name
		launch, err := Launcher(cfg)
		require.NoError(t, err, name)
		assert.NotNil(t, launch, name)
		assert.True(t, Valid(name))
	}

	cfg := uiverify.DefaultConfig()
	cfg.Engine = "playwright"
	_, err := Launcher(cfg)
	require.Error(t, err)
	assert.False(t, Valid("playwright"))
}

func TestLauncher_StaticFetchesOverHTTP(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html><body><h2 id="settings-title">Settings</h2></body></html>`))
	}))
	defer srv.Close()

	cfg := uiverify.DefaultConfig()
	cfg.Engine = Static
	launch, err := Launcher(cfg)
	require.NoError(t, err)

	ctx := context.Background()
	b, err := launch(ctx)
	require.NoError(t, err)
	defer b.Close()
	p, err := b.NewPage(ctx, uiverify.Viewport{})
	require.NoError(t, err)
	require.NoError(t, p.Navigate(ctx, srv.URL))

	els, err := p.Elements(ctx, "#settings-title")
	require.NoError(t, err)
	assert.Len(t, els, 1)
}
