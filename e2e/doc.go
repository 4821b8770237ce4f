//go:build e2e

// Package e2e provides end-to-end tests for the verification flows.
//
// These tests are isolated from the standard test suite via build tags.
// They require a Chrome browser (auto-downloaded by Rod if not present,
// looked up on PATH by chromedp) and are intended for CI pipelines or
// explicit local testing.
//
// Running E2E tests:
//
//	go test -tags=e2e ./e2e/...
//
// Running all tests except E2E:
//
//	go test ./...
//
// E2E tests use:
//   - the fixture-app server as the application under test
//   - every browser engine in pkg/uiverify/engine except static
//
// Test isolation:
// Each test starts its own server on a random port and each flow run
// launches its own browser instance.
package e2e
