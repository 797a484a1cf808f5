package runner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"
	"strings"

	"github.com/aretw0/hitch"
	"github.com/aretw0/hitch/internal/logging"
	"github.com/aretw0/hitch/pkg/domain"
)

// ErrIncompleteStream is returned when a run ends without completing or interrupting.
var ErrIncompleteStream = errors.New("stream ended without completion or interrupt")

// Runner alternates between running a thread and asking the user for the
// replies its interrupts wait for.
type Runner struct {
	// Handler is the strategy for IO. Defaults to a TextHandler on Stdin/Stdout.
	Handler IOHandler

	// Logger is used for internal debug logging.
	// If nil, a no-op logger is used.
	Logger *slog.Logger

	// ExitWords end the session when typed as a reply.
	ExitWords []string
}

// NewRunner creates a new Runner.
func NewRunner(opts ...Option) *Runner {
	r := &Runner{
		ExitWords: []string{"exit", "quit"},
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.Handler == nil {
		r.Handler = NewTextHandler(os.Stdin, os.Stdout)
	}
	if r.Logger == nil {
		r.Logger = logging.NewNop()
	}
	return r
}

// Run invokes the thread with input and keeps resuming it with the user's
// replies. It returns the last result: completed, or interrupted when the
// user left before answering. A domain.Command input resumes a thread that is
// already waiting.
func (r *Runner) Run(ctx context.Context, eng *hitch.Engine, cfg domain.ThreadConfig, input any) (*domain.Result, error) {
	next := input
	for {
		res, err := r.turn(ctx, eng, cfg, next)
		if err != nil {
			return nil, err
		}
		if !res.Interrupted() {
			return res, nil
		}

		reply, done, err := r.reply(ctx, cfg)
		if done || err != nil {
			return res, err
		}

		r.Logger.Debug("resuming", "thread_id", cfg.ThreadID)
		next = domain.Command{Resume: reply}
	}
}

// Continue picks up an existing thread. A thread waiting at an interrupt
// shows the pending payload again and resumes with the reply; any other
// thread is invoked without input, which retries a failed run.
func (r *Runner) Continue(ctx context.Context, eng *hitch.Engine, cfg domain.ThreadConfig) (*domain.Result, error) {
	th, err := eng.Thread(ctx, cfg.ThreadID)
	if err != nil {
		return nil, err
	}
	if th.Pending == nil {
		return r.Run(ctx, eng, cfg, nil)
	}

	payload, err := domain.Unmarshal(th.Pending.Payload)
	if err != nil {
		return nil, fmt.Errorf("pending payload: %w", err)
	}
	waiting := &domain.Result{
		ThreadID:    th.ID,
		Status:      domain.ResultInterrupted,
		Payload:     payload,
		InterruptID: th.Pending.ID,
	}
	if err := r.Handler.Output(ctx, domain.Event{
		Type:      domain.EventInterrupt,
		ThreadID:  th.ID,
		Index:     th.Pending.Index,
		Name:      th.Pending.Name,
		Value:     payload,
		Timestamp: th.UpdatedAt,
	}); err != nil {
		return nil, fmt.Errorf("output error: %w", err)
	}

	reply, done, err := r.reply(ctx, cfg)
	if done || err != nil {
		return waiting, err
	}
	return r.Run(ctx, eng, cfg, domain.Command{Resume: reply})
}

// reply reads the answer to an interrupt. done reports that the user left.
func (r *Runner) reply(ctx context.Context, cfg domain.ThreadConfig) (reply any, done bool, err error) {
	reply, err = r.Handler.Input(ctx)
	if err != nil {
		if errors.Is(err, io.EOF) {
			r.Logger.Debug("input closed", "thread_id", cfg.ThreadID)
			return nil, true, nil
		}
		return nil, true, fmt.Errorf("input error: %w", err)
	}
	if r.isExit(reply) {
		_ = r.Handler.SystemOutput(ctx, fmt.Sprintf("Thread '%s' is waiting for your reply. Resume it later to continue.", cfg.ThreadID))
		return nil, true, nil
	}
	return reply, false, nil
}

// turn streams one invocation to the handler and returns how it ended.
func (r *Runner) turn(ctx context.Context, eng *hitch.Engine, cfg domain.ThreadConfig, input any) (*domain.Result, error) {
	var last domain.Event
	for ev, err := range eng.Stream(ctx, cfg, input) {
		if err != nil {
			return nil, err
		}
		if err := r.Handler.Output(ctx, ev); err != nil {
			return nil, fmt.Errorf("output error: %w", err)
		}
		last = ev
	}

	switch last.Type {
	case domain.EventCompleted:
		return &domain.Result{ThreadID: cfg.ThreadID, Status: domain.ResultCompleted, Value: last.Value}, nil
	case domain.EventInterrupt:
		res := &domain.Result{ThreadID: cfg.ThreadID, Status: domain.ResultInterrupted, Payload: last.Value}
		if th, err := eng.Thread(ctx, cfg.ThreadID); err == nil && th.Pending != nil {
			res.InterruptID = th.Pending.ID
		}
		return res, nil
	}
	return nil, ErrIncompleteStream
}

func (r *Runner) isExit(reply any) bool {
	s, ok := reply.(string)
	if !ok {
		return false
	}
	return slices.Contains(r.ExitWords, strings.ToLower(strings.TrimSpace(s)))
}
