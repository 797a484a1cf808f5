package runner

import (
	"encoding/json"
	"fmt"
	"maps"
	"slices"
	"strings"
)

// message reports whether v is the JSON form of a chat message and returns
// its author and content.
func message(v any) (name, content string, ok bool) {
	m, isMap := v.(map[string]any)
	if !isMap {
		return "", "", false
	}
	role, _ := m["role"].(string)
	if role == "" {
		return "", "", false
	}
	content, _ = m["content"].(string)
	name, _ = m["name"].(string)
	if name == "" {
		name = role
	}
	return name, content, true
}

// format turns an event value into markdown.
func format(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case map[string]any:
		if _, content, ok := message(val); ok {
			return content
		}
		var b strings.Builder
		for _, k := range slices.Sorted(maps.Keys(val)) {
			fmt.Fprintf(&b, "- **%s**: %s\n", k, inline(val[k]))
		}
		return b.String()
	}
	return inline(v)
}

func inline(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(b)
}
