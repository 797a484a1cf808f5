// Package messages models a conversation history and merges new messages
// into it by ID.
package messages

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Role identifies the author of a message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// ToolCall is a request from a model to run a tool.
type ToolCall struct {
	ID   string         `json:"id"`
	Name string         `json:"name"`
	Args map[string]any `json:"args,omitempty"`
}

// Message is one entry of a conversation.
type Message struct {
	ID         string     `json:"id"`
	Role       Role       `json:"role"`
	Content    string     `json:"content"`
	Name       string     `json:"name,omitempty"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
}

var namespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("hitch:message"))

// DeriveID computes a content-derived ID. The same message always gets the
// same ID. Two messages with identical fields collide; use DeriveScopedID
// when a repeat of the same content must stay distinct.
func DeriveID(m Message) string {
	return DeriveScopedID("", m)
}

// DeriveScopedID derives an ID from the message and the place it entered the
// conversation, such as a run and turn. The same message at the same place
// always gets the same ID, so a replayed step adds nothing; the same content
// at another place gets another ID.
func DeriveScopedID(scope string, m Message) string {
	var b strings.Builder
	if scope != "" {
		b.WriteString(scope)
		b.WriteByte('\n')
	}
	b.WriteString(string(m.Role))
	b.WriteByte('\n')
	b.WriteString(m.Name)
	b.WriteByte('\n')
	b.WriteString(m.ToolCallID)
	b.WriteByte('\n')
	b.WriteString(m.Content)
	for _, call := range m.ToolCalls {
		b.WriteByte('\n')
		b.WriteString(call.ID)
		b.WriteByte(' ')
		b.WriteString(call.Name)
		b.WriteByte(' ')
		b.WriteString(argsKey(call.Args))
	}
	return uuid.NewSHA1(namespace, []byte(b.String())).String()
}

// argsKey renders tool arguments for hashing. JSON sorts map keys; values
// JSON cannot encode (NaN, channels) fall back to their printed form.
func argsKey(args map[string]any) string {
	data, err := json.Marshal(args)
	if err != nil {
		return fmt.Sprint(args)
	}
	return string(data)
}

// New builds a message with a derived ID.
func New(role Role, content string) Message {
	return Message{Role: role, Content: content}.WithID()
}

// WithID returns m with its ID derived when empty.
func (m Message) WithID() Message {
	if m.ID == "" {
		m.ID = DeriveID(m)
	}
	return m
}

// WithScopedID returns m with its ID derived from scope when empty.
func (m Message) WithScopedID(scope string) Message {
	if m.ID == "" {
		m.ID = DeriveScopedID(scope, m)
	}
	return m
}

// Merge returns history with incoming appended in order. An incoming message
// whose ID is already present (in history or earlier in incoming) is skipped,
// so the first occurrence keeps its position. Inputs are not modified.
func Merge(history, incoming []Message) []Message {
	out := make([]Message, len(history), len(history)+len(incoming))
	copy(out, history)

	seen := make(map[string]struct{}, len(out)+len(incoming))
	for _, m := range out {
		if m.ID != "" {
			seen[m.ID] = struct{}{}
		}
	}

	for _, m := range incoming {
		m = m.WithID()
		if _, ok := seen[m.ID]; ok {
			continue
		}
		seen[m.ID] = struct{}{}
		out = append(out, m)
	}
	return out
}

// Last returns the most recent message with the given role.
func Last(history []Message, role Role) (Message, bool) {
	for i := len(history) - 1; i >= 0; i-- {
		if history[i].Role == role {
			return history[i], true
		}
	}
	return Message{}, false
}
