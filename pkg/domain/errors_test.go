package domain_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/aretw0/hitch/pkg/domain"
	"github.com/stretchr/testify/assert"
)

func TestUnknownTransferTargetError(t *testing.T) {
	err := fmt.Errorf("swarm: %w", &domain.UnknownTransferTargetError{Name: "pirate_advisor"})

	assert.ErrorIs(t, err, domain.ErrUnknownTransferTarget)
	assert.Contains(t, err.Error(), `"pirate_advisor"`)

	var target *domain.UnknownTransferTargetError
	assert.True(t, errors.As(err, &target))
	assert.Equal(t, "pirate_advisor", target.Name)
}

func TestNonDeterministicError(t *testing.T) {
	err := &domain.NonDeterministicError{Index: 3, Expected: "write_essay", Got: "interrupt"}
	assert.ErrorIs(t, err, domain.ErrNonDeterministic)
	assert.NotErrorIs(t, err, domain.ErrCheckpointConflict)
}

func TestInterruptID_Stable(t *testing.T) {
	a := domain.InterruptID("t1", 0, 1)
	assert.Equal(t, a, domain.InterruptID("t1", 0, 1))
	assert.NotEqual(t, a, domain.InterruptID("t1", 1, 1))
	assert.NotEqual(t, a, domain.InterruptID("t2", 0, 1))
}

func TestNextIndex(t *testing.T) {
	assert.Equal(t, 0, domain.NextIndex(nil))
	assert.Equal(t, 4, domain.NextIndex([]domain.Checkpoint{{Index: 0}, {Index: 3}, {Index: 1}}))
}

func TestCombineHooks(t *testing.T) {
	var calls []string
	a := domain.LifecycleHooks{OnInterrupt: func(_ context.Context, _ *domain.Interrupt) { calls = append(calls, "a") }}
	b := domain.LifecycleHooks{OnInterrupt: func(_ context.Context, _ *domain.Interrupt) { calls = append(calls, "b") }}

	hooks := domain.CombineHooks(a, domain.LifecycleHooks{}, b)
	hooks.OnInterrupt(context.Background(), &domain.Interrupt{})

	assert.Equal(t, []string{"a", "b"}, calls)
	assert.Nil(t, hooks.OnCheckpoint)
}

func TestThreadClone(t *testing.T) {
	th := domain.NewThread("t1")
	th.Input = []byte(`"cat"`)
	th.Pending = &domain.Interrupt{Index: 1, Payload: []byte(`{"a":1}`)}

	c := th.Clone()
	c.Input[1] = 'd'
	c.Pending.Index = 7

	assert.Equal(t, `"cat"`, string(th.Input))
	assert.Equal(t, 1, th.Pending.Index)
}
