// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package main

import (
	"bytes"
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuGH/reftabs/internal/testutil"
	"github.com/ManuGH/reftabs/internal/version"
)

// testEnv points the daemon at a temporary data directory holding a copy
// of the sample displays.
func testEnv(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	data, err := os.ReadFile(testutil.TestdataPath(t, "displays.yaml"))
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "displays.yaml"), data, 0o600))

	t.Setenv("REFTABS_DATA_DIR", dir)
	t.Setenv("REFTABS_LOG_LEVEL", "warn")
	return dir
}

func TestRun_Version(t *testing.T) {
	var stdout, stderr bytes.Buffer
	code := run([]string{"--version"}, &stdout, &stderr)
	assert.Equal(t, 0, code)
	assert.Equal(t, version.String()+"\n", stdout.String())
}

func TestRun_ImportThenRender(t *testing.T) {
	dir := testEnv(t)
	fixture := testutil.TestdataPath(t, "site.yaml")

	var stdout, stderr bytes.Buffer
	code := run([]string{"import", fixture}, &stdout, &stderr)
	require.Equal(t, 0, code, stderr.String())
	assert.Contains(t, stdout.String(), "entities")
	assert.FileExists(t, filepath.Join(dir, "reftabs.db"))

	stdout.Reset()
	code = run([]string{"render", "--view-mode", "teaser", "node", "1", "field_tabs"}, &stdout, &stderr)
	require.Equal(t, 0, code, stderr.String())
	assert.Contains(t, stdout.String(), `class="entity-ref-accordion-formatter"`)

	stdout.Reset()
	code = run([]string{"render", "--page", "node", "1", "field_tabs"}, &stdout, &stderr)
	require.Equal(t, 0, code, stderr.String())
	assert.True(t, strings.HasPrefix(stdout.String(), "<!DOCTYPE html>"))
}

func TestRun_RenderSeedsEmptyStore(t *testing.T) {
	testEnv(t)
	t.Setenv("REFTABS_SEED_PATH", testutil.TestdataPath(t, "site.yaml"))

	var stdout, stderr bytes.Buffer
	code := run([]string{"render", "node", "1", "field_tabs"}, &stdout, &stderr)
	require.Equal(t, 0, code, stderr.String())
	assert.Equal(t, 3, strings.Count(stdout.String(), `role="tabpanel"`))
}

func TestRun_RenderWithConfigFile(t *testing.T) {
	testEnv(t)
	t.Setenv("REFTABS_SEED_PATH", testutil.TestdataPath(t, "site.yaml"))

	var stdout, stderr bytes.Buffer
	code := run([]string{
		"render", "--config", testutil.TestdataPath(t, "config.yaml"),
		"--lang", "de", "node", "1", "field_tabs",
	}, &stdout, &stderr)
	require.Equal(t, 0, code, stderr.String())
	assert.Contains(t, stdout.String(), `lang="de"`)
}

func TestRun_LogsLoadedConfig(t *testing.T) {
	testEnv(t)
	t.Setenv("REFTABS_LOG_LEVEL", "info")
	t.Setenv("REFTABS_SEED_PATH", testutil.TestdataPath(t, "site.yaml"))

	var stdout, stderr bytes.Buffer
	code := run([]string{"render", "node", "1", "field_tabs"}, &stdout, &stderr)
	require.Equal(t, 0, code, stderr.String())
	assert.Contains(t, stderr.String(), `"event":"config.loaded"`)
	assert.Contains(t, stderr.String(), `"source":"env+defaults"`)
}

func TestRun_ServeFailsWhenAddressInUse(t *testing.T) {
	testEnv(t)
	busy, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = busy.Close() })
	t.Setenv("REFTABS_LISTEN", busy.Addr().String())
	t.Setenv("REFTABS_LOG_LEVEL", "error")

	var stdout, stderr bytes.Buffer
	code := run(nil, &stdout, &stderr)
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr.String(), `"event":"daemon.failed"`)
}

func TestRun_Errors(t *testing.T) {
	testEnv(t)

	tests := []struct {
		name string
		args []string
		code int
	}{
		{"import without file", []string{"import"}, 2},
		{"render missing args", []string{"render", "node", "1"}, 2},
		{"unknown flag", []string{"--nope"}, 2},
		{"import missing fixture", []string{"import", "/does/not/exist.yaml"}, 1},
		{"render unknown entity", []string{"render", "node", "999", "field_tabs"}, 1},
		{"missing config file", []string{"render", "--config", "/does/not/exist.yaml", "node", "1", "field_tabs"}, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var stdout, stderr bytes.Buffer
			assert.Equal(t, tt.code, run(tt.args, &stdout, &stderr))
		})
	}
}
