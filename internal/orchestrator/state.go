package orchestrator

import "github.com/crimson-sun/rca/internal/errors"

// State is a step of a run.
type State string

const (
	StateStart     State = "start"
	StateBasic     State = "basic"
	StateScan      State = "scan"
	StateQuick     State = "quick"
	StateTriage    State = "triage"
	StateScored    State = "scored"
	StateAssembled State = "assembled"
	StateDone      State = "done"
)

// transitions lists the legal next states. There is no retry edge. Triage
// may skip Scored when its deadline expires.
var transitions = map[State][]State{
	StateStart:     {StateBasic, StateScan, StateQuick, StateTriage},
	StateBasic:     {StateScored},
	StateScan:      {StateScored},
	StateQuick:     {StateScored},
	StateTriage:    {StateScored, StateAssembled},
	StateScored:    {StateAssembled},
	StateAssembled: {StateDone},
}

// CanTransition reports whether from -> to is a legal edge.
func CanTransition(from, to State) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// machine tracks the current state and rejects illegal edges.
type machine struct {
	state   State
	history []State
	onEnter func(from, to State)
}

func newMachine(onEnter func(from, to State)) *machine {
	return &machine{state: StateStart, history: []State{StateStart}, onEnter: onEnter}
}

func (m *machine) to(next State) error {
	if !CanTransition(m.state, next) {
		return errors.Newf("illegal transition %s -> %s", m.state, next)
	}
	from := m.state
	m.state = next
	m.history = append(m.history, next)
	if m.onEnter != nil {
		m.onEnter(from, next)
	}
	return nil
}
