// Package statemachine drives run status transitions with statekit.
package statemachine

import (
	"github.com/felixgeelhaar/statekit"

	"github.com/felixgeelhaar/ragent/domain/agent"
)

// Context carries the run state through the machine.
type Context struct {
	State         *agent.State
	MaxIterations int
	Path          []agent.Status
}

// NewContext creates a machine context for one run.
func NewContext(state *agent.State, maxIterations int) *Context {
	return &Context{
		State:         state,
		MaxIterations: maxIterations,
	}
}

const (
	statePending       = statekit.StateID(agent.StatusPending)
	stateRunning       = statekit.StateID(agent.StatusRunning)
	stateMaxIterations = statekit.StateID(agent.StatusMaxIterations)
	stateCompleted     = statekit.StateID(agent.StatusCompleted)
	stateFailed        = statekit.StateID(agent.StatusFailed)
)

// Events understood by the run machine.
const (
	EventStart    statekit.EventType = "START"
	EventExhaust  statekit.EventType = "EXHAUST"
	EventComplete statekit.EventType = "COMPLETE"
	EventFail     statekit.EventType = "FAIL"
)

// NewRunMachine creates the run status statechart:
// pending -> running -> {completed | failed | max_iterations}, max_iterations -> {completed | failed}.
func NewRunMachine() (*statekit.MachineConfig[*Context], error) {
	return statekit.NewMachine[*Context]("run").
		WithInitial(statePending).
		WithContext(&Context{}).
		WithAction("recordStatus", recordStatus).
		WithGuard("budgetExhausted", guardBudgetExhausted).
		State(statePending).
			OnEntry("recordStatus").
			On(EventStart).Target(stateRunning).
			On(EventFail).Target(stateFailed).
			Done().
		State(stateRunning).
			OnEntry("recordStatus").
			On(EventExhaust).Target(stateMaxIterations).Guard("budgetExhausted").
			On(EventComplete).Target(stateCompleted).
			On(EventFail).Target(stateFailed).
			Done().
		State(stateMaxIterations).
			OnEntry("recordStatus").
			On(EventComplete).Target(stateCompleted).
			On(EventFail).Target(stateFailed).
			Done().
		State(stateCompleted).
			Final().
			OnEntry("recordStatus").
			Done().
		State(stateFailed).
			Final().
			OnEntry("recordStatus").
			Done().
		Build()
}

var transitions = map[agent.Status]map[agent.Status]statekit.EventType{
	agent.StatusPending: {
		agent.StatusRunning: EventStart,
		agent.StatusFailed:  EventFail,
	},
	agent.StatusRunning: {
		agent.StatusMaxIterations: EventExhaust,
		agent.StatusCompleted:     EventComplete,
		agent.StatusFailed:        EventFail,
	},
	agent.StatusMaxIterations: {
		agent.StatusCompleted: EventComplete,
		agent.StatusFailed:    EventFail,
	},
}

// EventFor returns the event that moves from one status to another.
func EventFor(from, to agent.Status) (statekit.EventType, bool) {
	ev, ok := transitions[from][to]
	return ev, ok
}
