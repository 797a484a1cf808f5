/*
Package runner drives a hitch thread turn by turn with a human.

It streams the events of a run to an IOHandler, and whenever the run stops at
an interrupt it reads the reply and resumes the thread with it, until the run
completes, the input ends or the user types an exit word. A thread left this
way stays interrupted in the store and can be resumed later.

# Key Components

  - Runner: The loop over Engine.Stream and Engine resume commands.
  - IOHandler: Decouples how events are shown and replies are read.
  - TextHandler: Interactive terminal usage, with optional markdown rendering.
  - JSONHandler: JSON lines for scripts and other programs.

# Usage

	r := runner.NewRunner(
		runner.WithInputHandler(runner.NewTextHandler(os.Stdin, os.Stdout)),
	)

	res, err := r.Run(ctx, engine, domain.ThreadConfig{ThreadID: "essay-1"}, "cat")
	if err != nil {
		log.Fatal(err)
	}
*/
package runner
