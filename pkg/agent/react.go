package agent

import (
	"fmt"

	"github.com/aretw0/hitch"
	"github.com/aretw0/hitch/pkg/messages"
)

// ReAct runs the tool loop of the agent over history: call the model, run
// every requested tool concurrently, feed the results back, and repeat until
// the model answers without tool calls or a ReturnDirect tool ran.
//
// It returns the messages produced during the loop, in order. The caller
// merges them into its history.
func (a *Agent) ReAct(wf *hitch.Context, history []messages.Message) ([]messages.Message, error) {
	limit := a.MaxSteps
	if limit <= 0 {
		limit = DefaultMaxSteps
	}

	var produced []messages.Message
	for step := 0; step < limit; step++ {
		reply, err := hitch.Await[messages.Message](wf.Task(a.ModelTask(), messages.Merge(history, produced)))
		if err != nil {
			return produced, err
		}
		produced = messages.Merge(produced, []messages.Message{reply})
		if len(reply.ToolCalls) == 0 {
			return produced, nil
		}

		futures := make([]*hitch.Future, len(reply.ToolCalls))
		for i, call := range reply.ToolCalls {
			futures[i] = wf.Task(a.ToolTask(), call)
		}

		results := make([]messages.Message, 0, len(futures))
		direct := false
		for i, f := range futures {
			result, err := hitch.Await[messages.Message](f)
			if err != nil {
				return produced, err
			}
			results = append(results, result)
			if tool, ok := a.Tool(reply.ToolCalls[i].Name); ok && tool.ReturnDirect {
				direct = true
			}
		}
		produced = messages.Merge(produced, results)
		if direct {
			return produced, nil
		}
	}
	return produced, fmt.Errorf("%s: %w (%d)", a.Name, ErrStepLimit, limit)
}

// Chat is an entrypoint running a single agent over a conversation that
// grows across runs. Input is anything InputMessages accepts. The run returns
// the last message and saves the whole history for the next run.
func Chat(a *Agent) hitch.Entrypoint {
	return func(wf *hitch.Context, input any) (any, error) {
		var history []messages.Message
		if _, err := wf.DecodePrevious(&history); err != nil {
			return nil, err
		}
		incoming, err := InputMessages(wf, input)
		if err != nil {
			return nil, err
		}
		history = messages.Merge(history, incoming)

		produced, err := a.ReAct(wf, history)
		if err != nil {
			return nil, err
		}
		history = messages.Merge(history, produced)
		return hitch.Final{Value: produced[len(produced)-1], Save: history}, nil
	}
}
