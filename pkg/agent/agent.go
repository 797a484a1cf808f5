package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/aretw0/hitch"
	"github.com/aretw0/hitch/pkg/domain"
	"github.com/aretw0/hitch/pkg/messages"
	"github.com/aretw0/hitch/pkg/task"
	"github.com/google/uuid"
	"github.com/mitchellh/mapstructure"
)

var (
	// ErrUnknownTool is returned when a model calls a tool the agent does not have.
	ErrUnknownTool = errors.New("unknown tool")

	// ErrStepLimit is returned when the tool loop does not settle within MaxSteps.
	ErrStepLimit = errors.New("agent step limit reached")
)

// DefaultMaxSteps bounds the model calls of one ReAct loop.
const DefaultMaxSteps = 25

// Model produces the next assistant message for a history.
type Model interface {
	Generate(ctx context.Context, history []messages.Message, tools []Tool) (messages.Message, error)
}

// ModelFunc adapts a function to Model.
type ModelFunc func(ctx context.Context, history []messages.Message, tools []Tool) (messages.Message, error)

func (f ModelFunc) Generate(ctx context.Context, history []messages.Message, tools []Tool) (messages.Message, error) {
	return f(ctx, history, tools)
}

// ToolFunc is the body of a tool. Args are the raw arguments of the call.
type ToolFunc func(ctx context.Context, args map[string]any) (any, error)

// Tool is a function a model may call.
type Tool struct {
	Name        string
	Description string
	// ReturnDirect ends the tool loop after this tool runs.
	ReturnDirect bool
	Fn           ToolFunc
}

// DecodeArgs decodes tool arguments into T, matching json tags.
func DecodeArgs[T any](args map[string]any) (T, error) {
	var out T
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &out,
		TagName:          "json",
		WeaklyTypedInput: true,
	})
	if err != nil {
		return out, err
	}
	if err := decoder.Decode(args); err != nil {
		return out, fmt.Errorf("decode tool args: %w", err)
	}
	return out, nil
}

// Agent is a named model with its tools and system prompt.
type Agent struct {
	Name   string
	Prompt string
	Model  Model
	Tools  []Tool
	// MaxSteps overrides DefaultMaxSteps when positive.
	MaxSteps int
}

// ModelTask is the task name of the agent's model call.
func (a *Agent) ModelTask() string {
	return a.Name + ".call_model"
}

// ToolTask is the task name of the agent's tool calls.
func (a *Agent) ToolTask() string {
	return a.Name + ".call_tool"
}

// Tool returns the named tool.
func (a *Agent) Tool(name string) (Tool, bool) {
	for _, t := range a.Tools {
		if t.Name == name {
			return t, true
		}
	}
	return Tool{}, false
}

// Register adds the model and tool tasks of the agent to reg.
func (a *Agent) Register(reg *task.Registry) error {
	if a.Name == "" {
		return errors.New("agent name cannot be empty")
	}
	if a.Model == nil {
		return fmt.Errorf("agent %s: model is required", a.Name)
	}
	if err := reg.Register(a.ModelTask(), a.callModel,
		task.WithDescription(fmt.Sprintf("Call the model of %s", a.Name)),
	); err != nil {
		return err
	}
	return reg.Register(a.ToolTask(), a.callTool,
		task.WithDescription(fmt.Sprintf("Run a tool of %s", a.Name)),
	)
}

func (a *Agent) callModel(ctx context.Context, args any) (any, error) {
	history, err := asMessages(args)
	if err != nil {
		return nil, err
	}
	if a.Prompt != "" {
		history = append([]messages.Message{{Role: messages.RoleSystem, Content: a.Prompt}}, history...)
	}

	reply, err := a.Model.Generate(ctx, history, a.Tools)
	if err != nil {
		return nil, err
	}
	if reply.Role == "" {
		reply.Role = messages.RoleAssistant
	}
	if reply.Name == "" {
		reply.Name = a.Name
	}
	if reply.ID == "" {
		// The checkpoint pins the ID on replay.
		reply.ID = uuid.NewString()
	}
	return reply, nil
}

func (a *Agent) callTool(ctx context.Context, args any) (any, error) {
	call, ok := args.(messages.ToolCall)
	if !ok {
		if err := domain.Decode(args, &call); err != nil {
			return nil, fmt.Errorf("tool call: %w", err)
		}
	}

	tool, ok := a.Tool(call.Name)
	if !ok || tool.Fn == nil {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTool, call.Name)
	}
	out, err := tool.Fn(ctx, call.Args)
	if err != nil {
		return nil, err
	}

	content, err := toolContent(out)
	if err != nil {
		return nil, fmt.Errorf("tool %s: %w", call.Name, err)
	}
	return messages.Message{
		Role:       messages.RoleTool,
		Name:       call.Name,
		Content:    content,
		ToolCallID: call.ID,
		ID:         uuid.NewString(),
	}, nil
}

func toolContent(out any) (string, error) {
	switch v := out.(type) {
	case nil:
		return "", nil
	case string:
		return v, nil
	case fmt.Stringer:
		return v.String(), nil
	}
	b, err := json.Marshal(out)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func asMessages(v any) ([]messages.Message, error) {
	if history, ok := v.([]messages.Message); ok {
		return history, nil
	}
	var history []messages.Message
	if err := domain.Decode(v, &history); err != nil {
		return nil, fmt.Errorf("messages: %w", err)
	}
	return history, nil
}

// ToMessages converts workflow input into messages: a string becomes a user
// message; a Message, a slice of them, or their JSON form are decoded as is.
// Missing IDs are derived from content.
func ToMessages(input any) ([]messages.Message, error) {
	return scopedMessages(input, "")
}

// InputMessages converts the input of the current run like ToMessages, but
// derives missing IDs from the run number and position too. Sending the same
// text in two runs adds two messages, while a replay of one run adds it once.
func InputMessages(wf *hitch.Context, input any) ([]messages.Message, error) {
	return scopedMessages(input, fmt.Sprintf("run/%d/input", wf.Run()))
}

func scopedMessages(input any, scope string) ([]messages.Message, error) {
	var out []messages.Message
	switch v := input.(type) {
	case nil:
		return nil, nil
	case string:
		out = []messages.Message{{Role: messages.RoleUser, Content: v}}
	case messages.Message:
		out = []messages.Message{v}
	case map[string]any:
		var m messages.Message
		if err := domain.Decode(v, &m); err != nil {
			return nil, fmt.Errorf("input message: %w", err)
		}
		out = []messages.Message{m}
	default:
		var err error
		if out, err = asMessages(v); err != nil {
			return nil, fmt.Errorf("input: %w", err)
		}
	}
	for i := range out {
		if out[i].Role == "" {
			out[i].Role = messages.RoleUser
		}
		if scope == "" {
			out[i] = out[i].WithID()
			continue
		}
		out[i] = out[i].WithScopedID(fmt.Sprintf("%s/%d", scope, i))
	}
	return out, nil
}
