package sqlite_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/aretw0/hitch/pkg/adapters/sqlite"
	"github.com/aretw0/hitch/pkg/domain"
	"github.com/aretw0/hitch/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var _ ports.Store = (*sqlite.Store)(nil)

func openStore(t *testing.T, path string) *sqlite.Store {
	t.Helper()
	store, err := sqlite.Open(context.Background(), path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestSQLiteStore_Contract(t *testing.T) {
	store := openStore(t, filepath.Join(t.TempDir(), "hitch.db"))
	ports.RunStoreContract(t, store)
}

func TestSQLiteStore_SurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hitch.db")
	ctx := context.Background()

	first := openStore(t, path)
	thread := domain.NewThread("essay")
	thread.Status = domain.StatusCompleted
	require.NoError(t, first.SaveThread(ctx, thread))
	require.NoError(t, first.Append(ctx, "essay", domain.Checkpoint{Index: 0, Name: "write_essay", Kind: domain.KindTask, Value: []byte(`"An essay about topic: cat"`)}))
	require.NoError(t, first.Close())

	second := openStore(t, path)
	loaded, err := second.LoadThread(ctx, "essay")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, loaded.Status)

	cps, err := second.List(ctx, "essay")
	require.NoError(t, err)
	require.Len(t, cps, 1)
	assert.Equal(t, "essay", cps[0].ThreadID)
	assert.JSONEq(t, `"An essay about topic: cat"`, string(cps[0].Value))
}
