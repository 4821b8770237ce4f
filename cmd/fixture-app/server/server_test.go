package server

import (
	"context"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/thesyncim/uiverify/pkg/uiverify"
	"github.com/thesyncim/uiverify/pkg/uiverify/engine"
	"github.com/thesyncim/uiverify/pkg/uiverify/flows"
	"github.com/thesyncim/uiverify/pkg/uiverify/testutil"
)

func startServer(t *testing.T) *Server {
	t.Helper()
	srv, err := NewServer(DefaultConfig())
	if err != nil {
		t.Fatalf("NewServer() failed: %v", err)
	}
	if _, err := srv.Start(); err != nil {
		t.Fatalf("Start() failed: %v", err)
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	})
	return srv
}

func TestServerStartStop(t *testing.T) {
	srv, err := NewServer(DefaultConfig())
	if err != nil {
		t.Fatalf("NewServer() failed: %v", err)
	}

	addr, err := srv.Start()
	if err != nil {
		t.Fatalf("Start() failed: %v", err)
	}
	if addr == "" || addr == ":0" {
		t.Errorf("Start() returned invalid address: %q", addr)
	}
	t.Logf("Server started on %s", addr)

	if got := srv.Addr(); got != addr {
		t.Errorf("Addr() = %q, want %q", got, addr)
	}
	if again, _ := srv.Start(); again != addr {
		t.Errorf("second Start() = %q, want %q", again, addr)
	}

	url := srv.URL()
	if !strings.HasPrefix(url, "http://127.0.0.1:") {
		t.Errorf("URL() = %q, want a loopback URL", url)
	}
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("HTTP GET failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("GET / status = %d, want %d", resp.StatusCode, http.StatusOK)
	}
	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Errorf("GET / Content-Type = %q, want text/html", ct)
	}
	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), `id="settings-panel"`) {
		t.Error("Response body doesn't contain the settings panel")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown() failed: %v", err)
	}
	if srv.Addr() != "" {
		t.Errorf("Addr() after shutdown = %q, want empty", srv.Addr())
	}

	if _, err := http.Get(url); err == nil {
		t.Error("Expected connection error after shutdown, but request succeeded")
	}
}

func TestHealthz(t *testing.T) {
	srv := startServer(t)

	resp, err := http.Get(srv.URL() + "healthz")
	if err != nil {
		t.Fatalf("HTTP GET failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("GET /healthz status = %d, want %d", resp.StatusCode, http.StatusOK)
	}

	resp2, err := http.Post(srv.URL(), "text/plain", nil)
	if err != nil {
		t.Fatalf("HTTP POST failed: %v", err)
	}
	resp2.Body.Close()
	if resp2.StatusCode != http.StatusMethodNotAllowed {
		t.Errorf("POST / status = %d, want %d", resp2.StatusCode, http.StatusMethodNotAllowed)
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Addr != ":0" {
		t.Errorf("DefaultConfig().Addr = %q, want %q", cfg.Addr, ":0")
	}
	if cfg.ReadTimeout != 30*time.Second {
		t.Errorf("DefaultConfig().ReadTimeout = %v, want %v", cfg.ReadTimeout, 30*time.Second)
	}
	if cfg.WriteTimeout != 30*time.Second {
		t.Errorf("DefaultConfig().WriteTimeout = %v, want %v", cfg.WriteTimeout, 30*time.Second)
	}
}

func TestNewServerRejectsEmptyAddr(t *testing.T) {
	if _, err := NewServer(Config{}); err == nil {
		t.Error("NewServer(Config{}) succeeded, want error")
	}
}

// TestServedMarkup runs the markup audit over HTTP with the static engine.
func TestServedMarkup(t *testing.T) {
	srv := startServer(t)

	cfg := uiverify.DefaultConfig()
	cfg.BaseURL = srv.URL()
	cfg.Engine = engine.Static
	cfg.OutputDir = t.TempDir()
	launch, err := engine.Launcher(cfg)
	if err != nil {
		t.Fatalf("Launcher() failed: %v", err)
	}

	res, err := uiverify.Run(context.Background(), launch, cfg, flows.Markup(),
		testutil.NewReporter(cfg.OutputDir, nil), testutil.Logger())
	if err != nil {
		t.Fatalf("markup run failed: %v (checks %v)", err, res.Failures())
	}
	if !res.Passed() {
		t.Errorf("markup run did not pass: %v", res.Failures())
	}
}
