package assistant

// State is a step of the request lifecycle
type State string

const (
	StateReceived    State = "received"
	StateExtracted   State = "extracted"
	StateCompiled    State = "compiled"
	StateEmbedded    State = "embedded"
	StateExecuted    State = "executed"
	StateSynthesized State = "synthesized"
	StateDone        State = "done"
	StateFailed      State = "failed"
)

// next lists the legal transitions. Failed is reachable from every non-terminal state.
var next = map[State][]State{
	StateReceived:    {StateExtracted, StateSynthesized},
	StateExtracted:   {StateCompiled, StateEmbedded},
	StateCompiled:    {StateExecuted},
	StateEmbedded:    {StateExecuted},
	StateExecuted:    {StateSynthesized},
	StateSynthesized: {StateDone},
}

// Terminal reports whether no transition leaves s
func (s State) Terminal() bool {
	return s == StateDone || s == StateFailed
}

// CanTransition reports whether to may follow s
func (s State) CanTransition(to State) bool {
	if s.Terminal() {
		return false
	}
	if to == StateFailed {
		return true
	}
	for _, n := range next[s] {
		if n == to {
			return true
		}
	}
	return false
}

type trail struct {
	states []State
}

func newTrail() *trail {
	return &trail{states: []State{StateReceived}}
}

func (t *trail) current() State {
	return t.states[len(t.states)-1]
}

func (t *trail) to(s State) {
	if !t.current().CanTransition(s) {
		panic("assistant: illegal transition " + string(t.current()) + " -> " + string(s))
	}
	t.states = append(t.states, s)
}
