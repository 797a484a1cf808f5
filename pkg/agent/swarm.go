package agent

import (
	"fmt"

	"github.com/aretw0/hitch"
	"github.com/aretw0/hitch/pkg/messages"
	"github.com/aretw0/hitch/pkg/task"
)

// ReadyForInput is the interrupt payload shown when the active agent waits for the user.
const ReadyForInput = "Ready for user input."

// Swarm is a group of agents that hand a conversation to each other.
type Swarm struct {
	router Router
	names  []string
	entry  string

	// MaxTurns, when positive, completes the run after that many user
	// interrupts instead of waiting for another reply.
	MaxTurns int
}

// NewSwarm groups agents. The conversation starts with the agent named entry.
func NewSwarm(entry string, agents ...*Agent) (*Swarm, error) {
	s := &Swarm{router: make(Router, len(agents)), entry: entry}
	for _, a := range agents {
		if _, dup := s.router[a.Name]; dup {
			return nil, fmt.Errorf("duplicate agent %q", a.Name)
		}
		s.router[a.Name] = a
		s.names = append(s.names, a.Name)
	}
	if _, ok := s.router[entry]; !ok {
		return nil, fmt.Errorf("entry agent %q is not in the swarm", entry)
	}
	return s, nil
}

// Agents returns the agent names in the order they were added.
func (s *Swarm) Agents() []string {
	return append([]string(nil), s.names...)
}

// Router returns the handoff router of the swarm.
func (s *Swarm) Router() Router {
	return s.router
}

// Register adds the tasks of every agent to reg.
func (s *Swarm) Register(reg *task.Registry) error {
	for _, name := range s.names {
		if err := s.router[name].Register(reg); err != nil {
			return err
		}
	}
	return nil
}

// Entrypoint returns the workflow driving the conversation.
//
// Each run starts from the history saved by the previous run, merged with the
// input. The active agent runs its tool loop; if it handed off, the target
// takes over, otherwise the run interrupts with ReadyForInput and the reply
// becomes a user message. A reply's ID is derived from the run, the turn and
// its content, so a replayed interrupt never adds it twice while the same
// answer on a later turn is kept.
func (s *Swarm) Entrypoint() hitch.Entrypoint {
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

		active := s.router[s.entry]
		turns := 0
		for {
			produced, err := active.ReAct(wf, history)
			if err != nil {
				return nil, err
			}
			history = messages.Merge(history, produced)

			last, _ := messages.Last(produced, messages.RoleAssistant)
			sig, err := ParseSignal(last)
			if err != nil {
				return nil, fmt.Errorf("agent %s: %w", active.Name, err)
			}

			if sig.Kind == SignalHandoff {
				next, err := s.router.Resolve(sig)
				if err != nil {
					return nil, err
				}
				wf.Logger().Debug("handoff", "from", active.Name, "to", next.Name)
				active = next
				continue
			}

			if s.MaxTurns > 0 && turns >= s.MaxTurns {
				return hitch.Final{Value: last, Save: history}, nil
			}
			reply, err := hitch.InterruptAs[string](wf, ReadyForInput)
			if err != nil {
				return nil, err
			}
			turns++
			msg := messages.Message{Role: messages.RoleUser, Content: reply}
			scope := fmt.Sprintf("run/%d/turn/%d", wf.Run(), turns)
			history = messages.Merge(history, []messages.Message{msg.WithScopedID(scope)})
		}
	}
}
