package thread

import (
	"context"
	"fmt"
	"testing"

	"github.com/aretw0/hitch/pkg/adapters/memory"
	"github.com/stretchr/testify/assert"
)

func TestManager_LockLifecycle(t *testing.T) {
	mgr := NewManager(memory.NewStore())
	ctx := context.Background()
	count := 10000

	for i := 0; i < count; i++ {
		tid := fmt.Sprintf("thread-%d", i)
		_ = mgr.WithLock(ctx, tid, func(context.Context) error { return nil })
		_, _ = mgr.Load(ctx, tid)
	}

	assert.Empty(t, mgr.locks, "locks must be released once no caller holds them")
}
