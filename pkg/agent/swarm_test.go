package agent_test

import (
	"context"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/aretw0/hitch"
	"github.com/aretw0/hitch/pkg/agent"
	"github.com/aretw0/hitch/pkg/domain"
	"github.com/aretw0/hitch/pkg/messages"
	"github.com/aretw0/hitch/pkg/task"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type advisors struct {
	travelCalls atomic.Int32
	hotelCalls  atomic.Int32
	seen        []messages.Message
}

func (a *advisors) travel(ctx context.Context, history []messages.Message, tools []agent.Tool) (messages.Message, error) {
	a.travelCalls.Add(1)
	a.seen = history
	last := history[len(history)-1]
	if last.Role == messages.RoleUser && strings.Contains(last.Content, "hotel") {
		return messages.Message{
			Content:   "Let me ask the hotel advisor.",
			ToolCalls: []messages.ToolCall{{ID: "handoff-1", Name: "transfer_to_hotel_advisor"}},
		}, nil
	}
	if last.Role == messages.RoleUser && strings.Contains(last.Content, "ghost") {
		return messages.Message{ToolCalls: []messages.ToolCall{{ID: "handoff-2", Name: "transfer_to_ghost"}}}, nil
	}
	return messages.Message{Content: "I recommend aruba."}, nil
}

func (a *advisors) hotel(ctx context.Context, history []messages.Message, tools []agent.Tool) (messages.Message, error) {
	a.hotelCalls.Add(1)
	return messages.Message{Content: "Try Grace Bay Club."}, nil
}

func newSwarm(t *testing.T, a *advisors, maxTurns int) *hitch.Engine {
	t.Helper()
	travel := &agent.Agent{
		Name:  "travel_advisor",
		Model: agent.ModelFunc(a.travel),
		Tools: []agent.Tool{
			agent.HandoffTool("hotel_advisor", ""),
			agent.HandoffTool("ghost", ""),
		},
	}
	hotel := &agent.Agent{
		Name:  "hotel_advisor",
		Model: agent.ModelFunc(a.hotel),
		Tools: []agent.Tool{agent.HandoffTool("travel_advisor", "")},
	}
	swarm, err := agent.NewSwarm("travel_advisor", travel, hotel)
	require.NoError(t, err)
	swarm.MaxTurns = maxTurns

	reg := task.NewRegistry()
	require.NoError(t, swarm.Register(reg))
	eng, err := hitch.New(swarm.Entrypoint(), reg, hitch.WithName("travel"))
	require.NoError(t, err)
	return eng
}

func TestSwarm_Handoff(t *testing.T) {
	var a advisors
	eng := newSwarm(t, &a, 0)
	ctx := context.Background()
	cfg := domain.ThreadConfig{ThreadID: "trip"}

	res, err := eng.Invoke(ctx, cfg, "i wanna go somewhere warm in the caribbean")
	require.NoError(t, err)
	require.True(t, res.Interrupted())
	assert.Equal(t, agent.ReadyForInput, res.Payload)
	assert.Equal(t, int32(1), a.travelCalls.Load())

	res, err = eng.Resume(ctx, cfg, "could you recommend a nice hotel?")
	require.NoError(t, err)
	require.True(t, res.Interrupted())
	assert.Equal(t, int32(2), a.travelCalls.Load(), "the first answer is replayed, not regenerated")
	assert.Equal(t, int32(1), a.hotelCalls.Load())

	cps, err := eng.Checkpoints(ctx, "trip")
	require.NoError(t, err)
	var names []string
	for _, cp := range cps {
		names = append(names, cp.Name)
	}
	assert.Equal(t, []string{
		"travel_advisor.call_model",
		"interrupt",
		"travel_advisor.call_model",
		"travel_advisor.call_tool",
		"hotel_advisor.call_model",
	}, names)
}

func TestSwarm_RepeatedReplyIsANewTurn(t *testing.T) {
	var a advisors
	eng := newSwarm(t, &a, 0)
	ctx := context.Background()
	cfg := domain.ThreadConfig{ThreadID: "again"}

	_, err := eng.Invoke(ctx, cfg, "hello")
	require.NoError(t, err)
	for range 2 {
		res, err := eng.Resume(ctx, cfg, "thanks")
		require.NoError(t, err)
		require.True(t, res.Interrupted())
	}

	require.NotEmpty(t, a.seen)
	last := a.seen[len(a.seen)-1]
	assert.Equal(t, messages.RoleUser, last.Role)
	assert.Equal(t, "thanks", last.Content)

	var thanks, answers int
	for _, m := range a.seen {
		switch {
		case m.Role == messages.RoleUser && m.Content == "thanks":
			thanks++
		case m.Role == messages.RoleAssistant:
			answers++
		}
	}
	assert.Equal(t, 2, thanks)
	assert.Equal(t, 2, answers, "the same answer given twice is kept twice")
}

func TestSwarm_UnknownTarget(t *testing.T) {
	var a advisors
	eng := newSwarm(t, &a, 0)
	ctx := context.Background()
	cfg := domain.ThreadConfig{ThreadID: "trip"}

	_, err := eng.Invoke(ctx, cfg, "hello")
	require.NoError(t, err)

	_, err = eng.Resume(ctx, cfg, "ask the ghost")
	assert.ErrorIs(t, err, domain.ErrUnknownTransferTarget)
}

func TestSwarm_MaxTurns(t *testing.T) {
	var a advisors
	eng := newSwarm(t, &a, 1)
	ctx := context.Background()
	cfg := domain.ThreadConfig{ThreadID: "short"}

	_, err := eng.Invoke(ctx, cfg, "somewhere warm")
	require.NoError(t, err)
	res, err := eng.Resume(ctx, cfg, "a hotel please")
	require.NoError(t, err)

	assert.Equal(t, domain.ResultCompleted, res.Status)
	assert.Equal(t, "Try Grace Bay Club.", res.Value.(map[string]any)["content"])

	th, err := eng.Thread(ctx, "short")
	require.NoError(t, err)
	var history []messages.Message
	require.NoError(t, domain.Decode(mustUnmarshal(t, th.Saved), &history))
	assert.Equal(t, "somewhere warm", history[0].Content)
}

func TestNewSwarm_Validates(t *testing.T) {
	a := &agent.Agent{Name: "a"}
	_, err := agent.NewSwarm("b", a)
	assert.Error(t, err)
	_, err = agent.NewSwarm("a", a, &agent.Agent{Name: "a"})
	assert.Error(t, err)

	s, err := agent.NewSwarm("a", a)
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, s.Agents())
}

func mustUnmarshal(t *testing.T, raw []byte) any {
	t.Helper()
	v, err := domain.Unmarshal(raw)
	require.NoError(t, err)
	return v
}
