package main

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	"github.com/aretw0/hitch"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, stdin string, args ...string) string {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetIn(strings.NewReader(stdin))
	rootCmd.SetArgs(args)
	require.NoError(t, rootCmd.Execute())
	return out.String()
}

func TestVersionCommand(t *testing.T) {
	out := execute(t, "", "version")
	assert.Equal(t, "hitch version "+strings.TrimSpace(hitch.Version)+"\n", out)
}

func TestWorkflowsCommand(t *testing.T) {
	out := execute(t, "", "workflows")
	for _, name := range []string{"essay", "essay-nested", "weather", "travel"} {
		assert.Contains(t, out, name)
	}
}

func TestRunAndThreadsCommands(t *testing.T) {
	dir := t.TempDir()
	store := []string{"--config", filepath.Join(dir, "hitch.yaml"), "--store", "sqlite", "--dir", filepath.Join(dir, "hitch.db")}

	out := execute(t, "", append([]string{"run", "weather", "--thread", "cli", "weather", "in", "boston?"}, store...)...)
	assert.Contains(t, out, "It's rainy!")
	assert.Contains(t, out, "Thread 'cli' completed.")

	out = execute(t, "", append([]string{"threads", "ls"}, store...)...)
	assert.Contains(t, out, "cli")

	out = execute(t, "", append([]string{"threads", "inspect", "cli"}, store...)...)
	assert.Contains(t, out, `"name": "weather.call_tool"`)

	out = execute(t, "", append([]string{"threads", "rm", "cli"}, store...)...)
	assert.Contains(t, out, "Removed thread 'cli'")
}
