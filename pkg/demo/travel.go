package demo

import (
	"context"
	"fmt"
	"math/rand/v2"
	"strings"

	"github.com/aretw0/hitch/pkg/agent"
	"github.com/aretw0/hitch/pkg/messages"
)

const (
	TravelAdvisor = "travel_advisor"
	HotelAdvisor  = "hotel_advisor"
)

var destinations = []string{"aruba", "turks and caicos"}

var hotels = map[string][]string{
	"aruba": {
		"The Ritz-Carlton, Aruba (Palm Beach)",
		"Bucuti & Tara Beach Resort (Eagle Beach)",
	},
	"turks and caicos": {"Grace Bay Club", "COMO Parrot Cay"},
}

// GetTravelRecommendations picks a destination.
func GetTravelRecommendations() agent.Tool {
	return agent.Tool{
		Name:        "get_travel_recommendations",
		Description: "Get recommendation for travel destinations",
		Fn: func(ctx context.Context, args map[string]any) (any, error) {
			return destinations[rand.IntN(len(destinations))], nil
		},
	}
}

// GetHotelRecommendations lists hotels for a destination.
func GetHotelRecommendations() agent.Tool {
	return agent.Tool{
		Name:        "get_hotel_recommendations",
		Description: "Get hotel recommendations for a given destination.",
		Fn: func(ctx context.Context, args map[string]any) (any, error) {
			in, err := agent.DecodeArgs[struct {
				Location string `json:"location"`
			}](args)
			if err != nil {
				return nil, err
			}
			list, ok := hotels[strings.ToLower(in.Location)]
			if !ok {
				return nil, fmt.Errorf("no hotels known for %q", in.Location)
			}
			return strings.Join(list, "; "), nil
		},
	}
}

// NewTravelAdvisors builds the travel and hotel advisors. Each can hand the
// conversation to the other.
func NewTravelAdvisors() (*agent.Agent, *agent.Agent) {
	travel := &agent.Agent{
		Name: TravelAdvisor,
		Prompt: "You are a general travel expert that can recommend travel destinations (e.g. countries, cities, etc). " +
			"If you need hotel recommendations, ask 'hotel_advisor' for help. " +
			"You MUST include human-readable response before transferring to another agent.",
		Model: agent.ModelFunc(travelModel),
		Tools: []agent.Tool{
			GetTravelRecommendations(),
			agent.HandoffTool(HotelAdvisor, "Ask hotel advisor agent for help."),
		},
	}
	hotel := &agent.Agent{
		Name: HotelAdvisor,
		Prompt: "You are a hotel expert that can provide hotel recommendations for a given destination. " +
			"If you need help picking travel destinations, ask 'travel_advisor' for help. " +
			"You MUST include human-readable response before transferring to another agent.",
		Model: agent.ModelFunc(hotelModel),
		Tools: []agent.Tool{
			GetHotelRecommendations(),
			agent.HandoffTool(TravelAdvisor, "Ask travel advisor agent for help."),
		},
	}
	return travel, hotel
}

// NewTravelSwarm groups the advisors, starting with the travel advisor.
func NewTravelSwarm() (*agent.Swarm, error) {
	travel, hotel := NewTravelAdvisors()
	return agent.NewSwarm(TravelAdvisor, travel, hotel)
}

func travelModel(ctx context.Context, history []messages.Message, tools []agent.Tool) (messages.Message, error) {
	last := history[len(history)-1]

	if last.Role == messages.RoleTool && last.Name == "get_travel_recommendations" {
		return reply(fmt.Sprintf("How about %s? It's warm and sunny this time of year.", last.Content)), nil
	}
	if last.Role == messages.RoleUser && mentions(last.Content, "hotel", "stay") {
		return handoff(history, HotelAdvisor, "Let me ask our hotel advisor for the best places to stay."), nil
	}
	return call(history, "get_travel_recommendations", nil), nil
}

func hotelModel(ctx context.Context, history []messages.Message, tools []agent.Tool) (messages.Message, error) {
	last := history[len(history)-1]
	dest := lastDestination(history)

	switch {
	case last.Role == messages.RoleTool && last.Name == "get_hotel_recommendations":
		return reply(fmt.Sprintf("In %s I recommend: %s.", dest, last.Content)), nil
	case last.Role == messages.RoleUser && mentions(last.Content, "destination", "somewhere else", "another place"):
		return handoff(history, TravelAdvisor, "The travel advisor can help you pick a destination."), nil
	case last.Role == messages.RoleUser && mentions(last.Content, "to do", "activit"):
		return reply(fmt.Sprintf("Near your hotel in %s, try snorkeling and a sunset catamaran cruise.", dest)), nil
	case dest == "":
		return handoff(history, TravelAdvisor, "Let's pick a destination first."), nil
	default:
		return call(history, "get_hotel_recommendations", map[string]any{"location": dest}), nil
	}
}

func reply(content string) messages.Message {
	return messages.Message{Role: messages.RoleAssistant, Content: content}
}

func call(history []messages.Message, tool string, args map[string]any) messages.Message {
	return messages.Message{
		Role:      messages.RoleAssistant,
		ToolCalls: []messages.ToolCall{{ID: fmt.Sprintf("call_%d", len(history)), Name: tool, Args: args}},
	}
}

func handoff(history []messages.Message, target, content string) messages.Message {
	m := call(history, agent.TransferPrefix+target, nil)
	m.Content = content
	return m
}

func mentions(text string, words ...string) bool {
	text = strings.ToLower(text)
	for _, w := range words {
		if strings.Contains(text, w) {
			return true
		}
	}
	return false
}

// lastDestination returns the destination mentioned most recently.
func lastDestination(history []messages.Message) string {
	for i := len(history) - 1; i >= 0; i-- {
		if history[i].Role == messages.RoleSystem {
			continue
		}
		for _, d := range destinations {
			if strings.Contains(strings.ToLower(history[i].Content), d) {
				return d
			}
		}
	}
	return ""
}
