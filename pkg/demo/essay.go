package demo

import (
	"context"
	"fmt"
	"time"

	"github.com/aretw0/hitch"
	"github.com/aretw0/hitch/pkg/task"
)

// EssayAction is the instruction shown with the essay awaiting review.
const EssayAction = "Please approve/reject the essay"

// EssayReview is the result of the essay workflow.
type EssayReview struct {
	Essay      string `json:"essay"`
	IsApproved any    `json:"is_approved"`
}

// RegisterEssay adds the write_essay task. delay stands in for slow work.
func RegisterEssay(reg *task.Registry, delay time.Duration) error {
	return reg.Register("write_essay", func(ctx context.Context, topic any) (any, error) {
		if delay > 0 {
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
		return fmt.Sprintf("An essay about topic: %v", topic), nil
	}, task.WithDescription("Write an essay about the given topic."))
}

// Essay writes an essay about the input topic and asks a human to review it.
func Essay(wf *hitch.Context, topic any) (any, error) {
	essay, err := hitch.Await[string](wf.Task("write_essay", topic))
	if err != nil {
		return nil, err
	}
	verdict, err := wf.Interrupt(map[string]any{
		"essay":  essay,
		"action": EssayAction,
	})
	if err != nil {
		return nil, err
	}
	return EssayReview{Essay: essay, IsApproved: verdict}, nil
}

// NestedEssay runs Essay as a sub-workflow. Its steps are recorded under
// "sub_workflow/".
func NestedEssay(wf *hitch.Context, topic any) (any, error) {
	return wf.Call("sub_workflow", Essay, topic)
}
