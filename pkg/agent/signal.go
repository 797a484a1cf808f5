package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aretw0/hitch/pkg/domain"
	"github.com/aretw0/hitch/pkg/messages"
)

// TransferPrefix marks tools that hand the conversation to another agent.
const TransferPrefix = "transfer_to_"

// ErrUnexpectedToolCall is returned when an agent stops on a tool call that
// is not a handoff.
var ErrUnexpectedToolCall = errors.New("expected transfer tool")

// SignalKind is the closed set of control signals an agent turn can end with.
type SignalKind int

const (
	// SignalNone means the agent answered; the conversation waits for the user.
	SignalNone SignalKind = iota
	// SignalHandoff means the agent transferred control to Target.
	SignalHandoff
)

func (k SignalKind) String() string {
	switch k {
	case SignalNone:
		return "none"
	case SignalHandoff:
		return "handoff"
	default:
		return fmt.Sprintf("SignalKind(%d)", int(k))
	}
}

// Signal is the control outcome of an agent turn.
type Signal struct {
	Kind   SignalKind
	Target string
}

// ParseSignal reads the signal carried by the last assistant message of a turn.
// A message without tool calls is SignalNone. Otherwise the last tool call
// must be a transfer_to_<name> call.
func ParseSignal(m messages.Message) (Signal, error) {
	if len(m.ToolCalls) == 0 {
		return Signal{Kind: SignalNone}, nil
	}
	name := m.ToolCalls[len(m.ToolCalls)-1].Name
	target, ok := strings.CutPrefix(name, TransferPrefix)
	if !ok || target == "" {
		return Signal{}, fmt.Errorf("%w, got %q", ErrUnexpectedToolCall, name)
	}
	return Signal{Kind: SignalHandoff, Target: target}, nil
}

// HandoffTool builds the transfer tool for target. It ends the tool loop.
func HandoffTool(target, description string) Tool {
	if description == "" {
		description = fmt.Sprintf("Ask %s for help.", target)
	}
	return Tool{
		Name:         TransferPrefix + target,
		Description:  description,
		ReturnDirect: true,
		Fn: func(ctx context.Context, args map[string]any) (any, error) {
			return "Successfully transferred to " + target, nil
		},
	}
}

// Router resolves handoff targets to agents by name.
type Router map[string]*Agent

// Resolve returns the agent a handoff signal points at.
func (r Router) Resolve(sig Signal) (*Agent, error) {
	if sig.Kind != SignalHandoff {
		return nil, fmt.Errorf("resolve %s signal: no target", sig.Kind)
	}
	a, ok := r[sig.Target]
	if !ok {
		return nil, &domain.UnknownTransferTargetError{Name: sig.Target}
	}
	return a, nil
}
