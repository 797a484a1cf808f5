package cli

import (
	"fmt"
	"slices"
	"time"

	"github.com/aretw0/hitch"
	"github.com/aretw0/hitch/pkg/agent"
	"github.com/aretw0/hitch/pkg/demo"
	"github.com/aretw0/hitch/pkg/task"
)

// Workflow is a demo the CLI can run.
type Workflow struct {
	Name        string
	Description string
	// DefaultInput starts a new thread when no input is given.
	DefaultInput string
	build        func(reg *task.Registry) (hitch.Entrypoint, error)
}

var workflows = []Workflow{
	{
		Name:         "essay",
		Description:  "Write an essay and wait for a human to approve or reject it",
		DefaultInput: "cat",
		build: func(reg *task.Registry) (hitch.Entrypoint, error) {
			return demo.Essay, demo.RegisterEssay(reg, time.Second)
		},
	},
	{
		Name:         "essay-nested",
		Description:  "The essay workflow called as a sub-workflow",
		DefaultInput: "cat",
		build: func(reg *task.Registry) (hitch.Entrypoint, error) {
			return demo.NestedEssay, demo.RegisterEssay(reg, time.Second)
		},
	},
	{
		Name:         "weather",
		Description:  "A tool-calling agent answering weather questions; each run adds to the conversation",
		DefaultInput: "What's the weather in san francisco?",
		build: func(reg *task.Registry) (hitch.Entrypoint, error) {
			a := demo.NewWeatherAgent()
			return agent.Chat(a), a.Register(reg)
		},
	},
	{
		Name:         "travel",
		Description:  "Travel and hotel advisors handing the conversation to each other",
		DefaultInput: "i wanna go somewhere warm in the caribbean",
		build: func(reg *task.Registry) (hitch.Entrypoint, error) {
			swarm, err := demo.NewTravelSwarm()
			if err != nil {
				return nil, err
			}
			return swarm.Entrypoint(), swarm.Register(reg)
		},
	},
}

// Workflows lists the runnable demos.
func Workflows() []Workflow {
	return slices.Clone(workflows)
}

// WorkflowNames lists the names of the runnable demos.
func WorkflowNames() []string {
	names := make([]string, len(workflows))
	for i, w := range workflows {
		names[i] = w.Name
	}
	return names
}

// Build registers the tasks of the workflow and returns its entrypoint.
func (w Workflow) Build() (hitch.Entrypoint, *task.Registry, error) {
	reg := task.NewRegistry()
	entry, err := w.build(reg)
	if err != nil {
		return nil, nil, fmt.Errorf("build %s: %w", w.Name, err)
	}
	return entry, reg, nil
}

// LookupWorkflow finds a demo by name.
func LookupWorkflow(name string) (Workflow, error) {
	for _, w := range workflows {
		if w.Name == name {
			return w, nil
		}
	}
	return Workflow{}, fmt.Errorf("unknown workflow %q (available: %v)", name, WorkflowNames())
}
