package main

import (
	"bytes"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kuitang/storefront-e2e/internal/errs"
	"github.com/kuitang/storefront-e2e/internal/steps"
)

// Flag values persist on the package-level commands, so every test passes
// the flags it depends on.
func execute(t *testing.T, args ...string) error {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	return rootCmd.Execute()
}

func TestRun_UnknownFlowIsInvalidArgument(t *testing.T) {
	err := execute(t, "run", "--flow", "wishlist")
	require.Error(t, err)
	assert.Equal(t, errs.InvalidArgument, errs.CodeOf(err))
	assert.Equal(t, 2, errs.ExitCode(errs.CodeOf(err)))
}

func TestRun_RejectsNonPositiveMaxRetries(t *testing.T) {
	err := execute(t, "run", "--flow", "search", "--max-retries", "0")
	require.Error(t, err)
	assert.Equal(t, errs.InvalidArgument, errs.CodeOf(err))
	assert.Contains(t, err.Error(), "--max-retries must be at least 1")
}

func TestRun_InvalidConfigIsInvalidArgument(t *testing.T) {
	err := execute(t, "run", "--flow", "search", "--max-retries", "2", "--browser", "netscape")
	require.Error(t, err)
	assert.Equal(t, errs.InvalidArgument, errs.CodeOf(err))
	assert.Contains(t, err.Error(), "BROWSER must be one of")
}

func TestOverridesFromFlags_OnlyChangedFlags(t *testing.T) {
	require.NoError(t, runCmd.ParseFlags([]string{"--base-url", "http://localhost:9999/", "--headless=false"}))
	ov, err := overridesFromFlags(runCmd)
	require.NoError(t, err)

	require.NotNil(t, ov.BaseURL)
	assert.Equal(t, "http://localhost:9999/", *ov.BaseURL)
	require.NotNil(t, ov.Headless)
	assert.False(t, *ov.Headless)
}

func TestPrintResults(t *testing.T) {
	var out bytes.Buffer
	printResults(&out, []steps.Result{
		{Scenario: "search for pants"},
		{Scenario: "guest checkout", Err: errors.New("place order failed")},
	}, 1500*time.Millisecond)

	text := out.String()
	assert.Contains(t, text, "PASS  search for pants")
	assert.Contains(t, text, "FAIL  guest checkout")
	assert.Contains(t, text, "place order failed")
	assert.Contains(t, text, "1/2 scenarios passed in 1.5s")
}

func TestStartFakeStore_ServesHealthz(t *testing.T) {
	baseURL, shutdown, err := startFakeStore()
	require.NoError(t, err)
	defer shutdown()
	require.True(t, strings.HasPrefix(baseURL, "http://127.0.0.1:"))

	resp, err := http.Get(baseURL + "healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", string(body))
}
