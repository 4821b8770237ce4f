package rodpage

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/cdp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thesyncim/uiverify/pkg/uiverify"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.True(t, cfg.Headless)
	assert.Equal(t, 30*time.Second, cfg.Timeout)
	assert.Empty(t, cfg.Bin)
}

func TestStale(t *testing.T) {
	tests := []struct {
		name  string
		err   error
		stale bool
	}{
		{"nil", nil, false},
		{"object not found", &rod.ObjectNotFoundError{}, true},
		{"detached node", &cdp.Error{Code: -32000, Message: "Node is detached from document"}, true},
		{"lost context", &cdp.Error{Code: -32000, Message: "Cannot find context with specified id"}, true},
		{"other protocol error", &cdp.Error{Code: -32601, Message: "method not found"}, false},
		{"plain", errors.New("boom"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := stale(tt.err)
			if tt.err == nil {
				assert.NoError(t, got)
				return
			}
			assert.Equal(t, tt.stale, errors.Is(got, uiverify.ErrStaleElement))
		})
	}
}

func TestLaunch_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Launcher(DefaultConfig())(ctx)
	require.ErrorIs(t, err, context.Canceled)
}
