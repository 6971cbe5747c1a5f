package operations

import (
	"time"

	"pricepipe/internal/wait"
)

// State is a pipeline run state.
type State string

const (
	StateCrawling     State = "crawling"
	StateLocating     State = "locating"
	StateTransforming State = "transforming"
	StateLoading      State = "loading"
	StateDone         State = "done"
	StateFailed       State = "failed"
)

// transitions lists the legal successors of every state. Done and Failed
// are terminal.
var transitions = map[State][]State{
	StateCrawling:     {StateLocating, StateFailed},
	StateLocating:     {StateTransforming, StateFailed},
	StateTransforming: {StateLoading, StateFailed},
	StateLoading:      {StateDone, StateFailed},
}

// IsTerminal reports whether no transition leaves s.
func (s State) IsTerminal() bool {
	return s == StateDone || s == StateFailed
}

// CanTransition reports whether to is a legal successor of s.
func (s State) CanTransition(to State) bool {
	for _, next := range transitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

// Transition is one recorded state change.
type Transition struct {
	From State     `json:"from"`
	To   State     `json:"to"`
	At   time.Time `json:"at"`
}

// StateMachine tracks the state of one run and rejects illegal moves.
// It is owned by a single goroutine.
type StateMachine struct {
	current State
	history []Transition
	clock   wait.Clock
}

// NewStateMachine starts a machine in initial, which must be Crawling or
// Locating (a run that starts from an existing file).
func NewStateMachine(initial State, clock wait.Clock) (*StateMachine, error) {
	if initial != StateCrawling && initial != StateLocating {
		return nil, NewInvalidStateError(initial, initial)
	}
	if clock == nil {
		clock = wait.RealClock()
	}
	return &StateMachine{current: initial, clock: clock}, nil
}

func (m *StateMachine) Current() State {
	return m.current
}

// History returns the transitions taken so far, oldest first.
func (m *StateMachine) History() []Transition {
	out := make([]Transition, len(m.history))
	copy(out, m.history)
	return out
}

// Transition moves to the next state or returns an invalid state error
// leaving the machine unchanged.
func (m *StateMachine) Transition(to State) error {
	if !m.current.CanTransition(to) {
		return NewInvalidStateError(m.current, to)
	}
	m.history = append(m.history, Transition{From: m.current, To: to, At: m.clock.Now()})
	m.current = to
	return nil
}

// Fail moves to Failed from any non-terminal state.
func (m *StateMachine) Fail() error {
	return m.Transition(StateFailed)
}
