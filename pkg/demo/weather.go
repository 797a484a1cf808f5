package demo

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/aretw0/hitch/pkg/agent"
	"github.com/aretw0/hitch/pkg/messages"
)

var cities = map[string]string{
	"sf":            "San Francisco",
	"san francisco": "San Francisco",
	"boston":        "Boston",
	"new york":      "New York",
	"nyc":           "New York",
}

// GetWeather is a placeholder weather lookup.
func GetWeather() agent.Tool {
	return agent.Tool{
		Name:        "get_weather",
		Description: "Call to get the weather from a specific location.",
		Fn: func(ctx context.Context, args map[string]any) (any, error) {
			in, err := agent.DecodeArgs[struct {
				Location string `json:"location"`
			}](args)
			if err != nil {
				return nil, err
			}
			location := strings.ToLower(in.Location)
			switch {
			case strings.Contains(location, "sf"), strings.Contains(location, "san francisco"):
				return "It's sunny!", nil
			case strings.Contains(location, "boston"):
				return "It's rainy!", nil
			default:
				return fmt.Sprintf("I am not sure what the weather is in %s", in.Location), nil
			}
		},
	}
}

// WeatherModel calls get_weather once per city named in the latest user
// message and then summarises the answers.
func WeatherModel() agent.Model {
	return agent.ModelFunc(func(ctx context.Context, history []messages.Message, tools []agent.Tool) (messages.Message, error) {
		last := history[len(history)-1]
		if last.Role == messages.RoleTool {
			return messages.Message{Role: messages.RoleAssistant, Content: summarise(history)}, nil
		}

		question := strings.ToLower(last.Content)
		var found []string
		for key, city := range cities {
			if strings.Contains(question, key) && !slices.Contains(found, city) {
				found = append(found, city)
			}
		}
		if len(found) == 0 {
			if prev, ok := messages.Last(history[:len(history)-1], messages.RoleUser); ok {
				return messages.Message{Role: messages.RoleAssistant, Content: fmt.Sprintf("Earlier you asked: %q", prev.Content)}, nil
			}
			return messages.Message{Role: messages.RoleAssistant, Content: "Ask me about the weather in a city."}, nil
		}

		slices.Sort(found)
		calls := make([]messages.ToolCall, len(found))
		for i, city := range found {
			calls[i] = messages.ToolCall{
				ID:   fmt.Sprintf("call_%d_%d", len(history), i),
				Name: "get_weather",
				Args: map[string]any{"location": city},
			}
		}
		return messages.Message{Role: messages.RoleAssistant, ToolCalls: calls}, nil
	})
}

// NewWeatherAgent builds the weather agent.
func NewWeatherAgent() *agent.Agent {
	return &agent.Agent{
		Name:   "weather",
		Prompt: "You answer questions about the weather.",
		Model:  WeatherModel(),
		Tools:  []agent.Tool{GetWeather()},
	}
}

// summarise joins the tool results that follow the last assistant request.
func summarise(history []messages.Message) string {
	var parts []string
	for i := len(history) - 1; i >= 0 && history[i].Role == messages.RoleTool; i-- {
		parts = append([]string{history[i].Content}, parts...)
	}
	return strings.Join(parts, " ")
}
