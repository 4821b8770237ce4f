//go:build e2e

package e2e

import (
	"os"
	"os/exec"
	"runtime"
	"testing"
)

func TestMain(m *testing.M) {
	code := m.Run()

	// Safety net for panics or timeouts where a session's Close didn't run.
	cleanupOrphanedBrowsers()

	os.Exit(code)
}

// cleanupOrphanedBrowsers kills Chrome processes that may have been left
// behind by failed tests. This is best-effort cleanup.
func cleanupOrphanedBrowsers() {
	switch runtime.GOOS {
	case "darwin", "linux":
		// pkill returns non-zero if no processes matched, ignore error
		_ = exec.Command("pkill", "-f", "chromium|chrome").Run()
	case "windows":
		_ = exec.Command("taskkill", "/F", "/IM", "chrome.exe").Run()
		_ = exec.Command("taskkill", "/F", "/IM", "chromium.exe").Run()
	}
}
