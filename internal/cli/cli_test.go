package cli

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"github.com/aretw0/hitch/internal/config"
	"github.com/aretw0/hitch/internal/logging"
	"github.com/aretw0/hitch/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testOptions(t *testing.T, in string) (Options, *bytes.Buffer) {
	t.Helper()
	t.Setenv(config.EnvEncryptionKey, "")
	dir := t.TempDir()
	out := &bytes.Buffer{}
	return Options{
		ConfigPath:  filepath.Join(dir, "hitch.yaml"),
		StoreDriver: config.DriverFile,
		StorePath:   filepath.Join(dir, "threads"),
		In:          strings.NewReader(in),
		Out:         out,
	}, out
}

func TestRun_EssayJSON(t *testing.T) {
	opts, out := testOptions(t, "\"approved\"\n")
	opts.JSON = true

	err := Run(context.Background(), RunOptions{Options: opts, Workflow: "essay", ThreadID: "essay-1"})
	require.NoError(t, err)

	var types []string
	for _, line := range strings.Split(strings.TrimSpace(out.String()), "\n") {
		var ev map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &ev), line)
		types = append(types, ev["type"].(string))
	}
	assert.Equal(t, []string{"checkpoint", "interrupt", "checkpoint", "completed"}, types)
	assert.Contains(t, out.String(), `"is_approved":"approved"`)
	assert.NotContains(t, out.String(), ">>>", "JSON mode prints no banner or status")
}

func TestRun_LeaveAndResume(t *testing.T) {
	opts, out := testOptions(t, "quit\n")
	ctx := context.Background()

	require.NoError(t, Run(ctx, RunOptions{Options: opts, Workflow: "essay", ThreadID: "t1", Input: "dogs"}))
	assert.Contains(t, out.String(), "An essay about topic: dogs")
	assert.Contains(t, out.String(), "Thread 't1' is waiting for input.")

	out.Reset()
	opts.In = strings.NewReader("")
	require.NoError(t, Run(ctx, RunOptions{Options: opts, Workflow: "essay", ThreadID: "t1", Input: "approved"}))
	assert.Contains(t, out.String(), "Thread 't1' completed.")

	out.Reset()
	require.NoError(t, InspectThread(ctx, opts, "t1"))
	var view struct {
		Thread      domain.Thread       `json:"thread"`
		Checkpoints []domain.Checkpoint `json:"checkpoints"`
	}
	require.NoError(t, json.Unmarshal(out.Bytes(), &view))
	assert.Equal(t, domain.StatusCompleted, view.Thread.Status)
	assert.Equal(t, "essay", view.Thread.Metadata[MetadataWorkflow])
	require.Len(t, view.Checkpoints, 2)
	assert.Equal(t, "write_essay", view.Checkpoints[0].Name)
	assert.Equal(t, domain.KindResume, view.Checkpoints[1].Kind)
}

func TestRun_ContinuePending(t *testing.T) {
	opts, out := testOptions(t, "")
	ctx := context.Background()

	require.NoError(t, Run(ctx, RunOptions{Options: opts, Workflow: "essay-nested", ThreadID: "t2"}))
	assert.Contains(t, out.String(), "An essay about topic: cat", "the default input starts a new thread")

	out.Reset()
	opts.In = strings.NewReader("rejected\n")
	require.NoError(t, Run(ctx, RunOptions{Options: opts, Workflow: "essay-nested", ThreadID: "t2"}))
	assert.Contains(t, out.String(), "Please approve/reject the essay", "the pending question is asked again")
	assert.Contains(t, out.String(), "Thread 't2' completed.")
}

func TestRun_WeatherConversation(t *testing.T) {
	opts, out := testOptions(t, "")
	ctx := context.Background()

	require.NoError(t, Run(ctx, RunOptions{Options: opts, Workflow: "weather", ThreadID: "w", Input: "what's the weather in sf?"}))
	assert.Contains(t, out.String(), "Thread 'w' completed.")

	out.Reset()
	require.NoError(t, Run(ctx, RunOptions{Options: opts, Workflow: "weather", ThreadID: "w", Input: "and in nyc?"}))
	assert.Contains(t, out.String(), "Thread 'w' completed.")

	out.Reset()
	require.NoError(t, InspectThread(ctx, opts, "w"))
	assert.Contains(t, out.String(), `"run": 1`, "the second run of the thread")
}

func TestRun_UnknownWorkflow(t *testing.T) {
	opts, _ := testOptions(t, "")
	err := Run(context.Background(), RunOptions{Options: opts, Workflow: "nope"})
	assert.ErrorContains(t, err, `unknown workflow "nope"`)
}

func TestThreads_ListAndRemove(t *testing.T) {
	opts, out := testOptions(t, "")
	ctx := context.Background()

	require.NoError(t, ListThreads(ctx, opts))
	assert.Contains(t, out.String(), "No threads found.")

	require.NoError(t, Run(ctx, RunOptions{Options: opts, Workflow: "weather", ThreadID: "a", Input: "hi"}))
	require.NoError(t, Run(ctx, RunOptions{Options: opts, Workflow: "weather", ThreadID: "b", Input: "hi"}))

	out.Reset()
	require.NoError(t, ListThreads(ctx, opts))
	assert.Contains(t, out.String(), "THREAD")
	assert.Contains(t, out.String(), "weather")
	assert.Contains(t, out.String(), "completed")

	out.Reset()
	err := RemoveThreads(ctx, opts, "a", "missing")
	assert.ErrorIs(t, err, domain.ErrThreadNotFound)
	assert.Contains(t, out.String(), "Removed thread 'a'")

	out.Reset()
	require.NoError(t, ListThreads(ctx, opts))
	var ids []string
	for _, line := range strings.Split(strings.TrimSpace(out.String()), "\n")[1:] {
		ids = append(ids, strings.Fields(line)[0])
	}
	assert.Equal(t, []string{"b"}, ids)
}

func TestLoadConfig_Overrides(t *testing.T) {
	opts, _ := testOptions(t, "")
	opts.StoreDriver = config.DriverSQLite
	opts.Debug = true

	cfg, err := LoadConfig(opts)
	require.NoError(t, err)
	assert.Equal(t, config.DriverSQLite, cfg.Store.Driver)
	assert.Equal(t, opts.StorePath, cfg.Store.Path)
	assert.Equal(t, "debug", cfg.Log.Level)

	opts.StoreDriver = "tape"
	_, err = LoadConfig(opts)
	assert.ErrorIs(t, err, config.ErrInvalidConfig)
}

func TestOpenBackend_EncryptedSQLite(t *testing.T) {
	opts, _ := testOptions(t, "")
	opts.StoreDriver = config.DriverSQLite
	opts.StorePath = filepath.Join(t.TempDir(), "db", "hitch.db")
	t.Setenv(config.EnvEncryptionKey, base64.StdEncoding.EncodeToString(bytes.Repeat([]byte{7}, 32)))

	cfg, err := LoadConfig(opts)
	require.NoError(t, err)

	ctx := context.Background()
	b, err := OpenBackend(ctx, cfg, logging.NewNop())
	require.NoError(t, err)
	defer b.Close()

	require.NoError(t, b.Store.Append(ctx, "enc", domain.Checkpoint{Index: 0, Name: "step", Value: json.RawMessage(`"secret"`)}))
	cps, err := b.Store.List(ctx, "enc")
	require.NoError(t, err)
	require.Len(t, cps, 1)
	assert.JSONEq(t, `"secret"`, string(cps[0].Value))
	assert.Nil(t, b.Locker)
}

func TestOpenBackend_BadKey(t *testing.T) {
	opts, _ := testOptions(t, "")
	opts.StoreDriver = config.DriverMemory
	t.Setenv(config.EnvEncryptionKey, "c2hvcnQ=")

	cfg, err := LoadConfig(opts)
	require.NoError(t, err)
	_, err = OpenBackend(context.Background(), cfg, logging.NewNop())
	assert.ErrorIs(t, err, config.ErrInvalidConfig)
}

func TestWorkflows(t *testing.T) {
	assert.Equal(t, []string{"essay", "essay-nested", "weather", "travel"}, WorkflowNames())
	for _, w := range Workflows() {
		entry, reg, err := w.Build()
		require.NoError(t, err, w.Name)
		assert.NotNil(t, entry)
		assert.NotEmpty(t, reg.Names(), w.Name)
	}
}
