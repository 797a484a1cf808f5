package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/aretw0/hitch"
	"github.com/aretw0/hitch/internal/presentation/tui"
	"github.com/aretw0/hitch/pkg/domain"
	"github.com/aretw0/hitch/pkg/observability"
	"github.com/aretw0/hitch/pkg/runner"
	"github.com/google/uuid"
)

// MetadataWorkflow is the thread metadata key naming the workflow that owns it.
const MetadataWorkflow = "workflow"

// RunOptions contains the configuration for the run command.
type RunOptions struct {
	Options
	Workflow string
	// ThreadID selects the thread. A new ID is generated when empty.
	ThreadID string
	// Input starts a run, or answers the pending interrupt of ThreadID.
	Input   string
	Verbose bool
}

// Run executes a demo workflow on a thread and converses with the user
// until it completes or the user leaves.
func Run(ctx context.Context, opts RunOptions) error {
	cfg, err := LoadConfig(opts.Options)
	if err != nil {
		return err
	}
	logger := createLogger(cfg, opts.Debug)
	out := opts.stdout()

	wf, err := LookupWorkflow(opts.Workflow)
	if err != nil {
		return err
	}
	entry, reg, err := wf.Build()
	if err != nil {
		return err
	}

	sigCtx := NewSignalContext(ctx)
	defer sigCtx.Cancel()

	backend, err := OpenBackend(sigCtx, cfg, logger)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer func() {
		if err := backend.Close(); err != nil {
			logger.Warn("Failed to close store", "err", err)
		}
	}()

	metrics := observability.NewMetrics()
	hooks := metrics.Hooks()
	if opts.Debug {
		hooks = domain.CombineHooks(hooks, observability.LogHooks(logger))
	}

	engineOpts := []hitch.Option{
		hitch.WithName(wf.Name),
		hitch.WithStore(backend.Store),
		hitch.WithLogger(logger),
		hitch.WithLifecycleHooks(hooks),
		hitch.WithTaskTimeout(cfg.TaskTimeoutDuration()),
	}
	if backend.Locker != nil {
		engineOpts = append(engineOpts, hitch.WithLocker(backend.Locker))
	}
	if ttl := cfg.LockTTLDuration(); ttl > 0 {
		engineOpts = append(engineOpts, hitch.WithLockTTL(ttl))
	}
	engine, err := hitch.New(entry, reg, engineOpts...)
	if err != nil {
		return fmt.Errorf("error initializing hitch: %w", err)
	}

	threadID := opts.ThreadID
	if threadID == "" {
		threadID = uuid.NewString()
	}
	threadCfg := domain.ThreadConfig{
		ThreadID: threadID,
		Metadata: map[string]string{MetadataWorkflow: wf.Name},
	}

	if !opts.JSON {
		tui.PrintBanner(out)
	}
	r := runner.NewRunner(
		runner.WithLogger(logger),
		runner.WithInputHandler(createHandler(opts, out)),
	)

	res, runErr := start(sigCtx, r, engine, threadCfg, opts.Input, wf.DefaultInput)
	if sigCtx.Err() != nil && runErr == nil {
		runErr = sigCtx.Err()
	}

	if cfg.MetricsFile != "" {
		if err := metrics.WriteToTextfile(cfg.MetricsFile); err != nil {
			logger.Warn("Failed to write metrics", "path", cfg.MetricsFile, "err", err)
		}
	}

	logCompletion(out, opts.JSON, threadID, res, runErr, sigCtx.Signal())
	return handleExecutionError(runErr)
}

// start decides how the session begins: a fresh thread runs with the input
// (or the workflow default), a waiting thread is answered, and a finished
// thread starts another run.
func start(ctx context.Context, r *runner.Runner, eng *hitch.Engine, cfg domain.ThreadConfig, input, fallback string) (*domain.Result, error) {
	th, err := eng.Thread(ctx, cfg.ThreadID)
	switch {
	case errors.Is(err, domain.ErrThreadNotFound):
		if input == "" {
			input = fallback
		}
		return r.Run(ctx, eng, cfg, input)
	case err != nil:
		return nil, err
	case th.Status == domain.StatusInterrupted && input == "":
		return r.Continue(ctx, eng, cfg)
	case th.Status == domain.StatusInterrupted:
		return r.Run(ctx, eng, cfg, domain.Command{Resume: input})
	case input == "":
		// Retries an aborted run, or starts the next run without input.
		return r.Run(ctx, eng, cfg, nil)
	default:
		return r.Run(ctx, eng, cfg, input)
	}
}

func createHandler(opts RunOptions, out io.Writer) runner.IOHandler {
	if opts.JSON {
		return runner.NewJSONHandler(opts.stdin(), out)
	}
	handlerOpts := []runner.TextHandlerOption{runner.WithVerbose(opts.Verbose)}
	if f, ok := out.(*os.File); ok {
		if render := tui.NewRenderer(f); render != nil {
			handlerOpts = append(handlerOpts, runner.WithTextHandlerRenderer(render))
		}
	}
	return runner.NewTextHandler(opts.stdin(), out, handlerOpts...)
}

func isInterrupted(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, io.EOF)
}

// handleExecutionError exits cleanly when the user interrupted the session.
func handleExecutionError(err error) error {
	if err == nil || isInterrupted(err) {
		return nil
	}
	return err
}

func logCompletion(w io.Writer, quiet bool, threadID string, res *domain.Result, err error, sig os.Signal) {
	if quiet {
		return
	}
	switch {
	case sig != nil:
		tui.Status(w, false, "Stopped by %v. Thread '%s' can be resumed.", sig, threadID)
	case err != nil && isInterrupted(err):
		tui.Status(w, false, "Session interrupted. Thread '%s' can be resumed.", threadID)
	case err != nil:
		tui.Status(w, false, "Thread '%s' failed: %v", threadID, err)
	case res != nil && res.Interrupted():
		tui.Status(w, true, "Thread '%s' is waiting for input.", threadID)
	default:
		tui.Status(w, true, "Thread '%s' completed.", threadID)
	}
}
