package statemachine

import (
	"errors"
	"fmt"
	"slices"

	"github.com/felixgeelhaar/statekit"

	"github.com/felixgeelhaar/ragent/domain/agent"
)

// ErrInvalidTransition indicates the machine rejected a status change.
var ErrInvalidTransition = errors.New("invalid status transition")

// Interpreter runs the status machine for one run and keeps the run
// state's Status in sync with it.
type Interpreter struct {
	interp *statekit.Interpreter[*Context]
	ctx    *Context
}

// NewInterpreter creates an interpreter bound to the given context.
func NewInterpreter(machine *statekit.MachineConfig[*Context], ctx *Context) *Interpreter {
	interp := statekit.NewInterpreter(machine)
	interp.UpdateContext(func(c **Context) {
		*c = ctx
	})
	return &Interpreter{
		interp: interp,
		ctx:    ctx,
	}
}

// Start enters the initial status.
func (i *Interpreter) Start() {
	i.interp.Start()
	i.sync()
}

// Stop stops the interpreter.
func (i *Interpreter) Stop() {
	i.interp.Stop()
}

// Status returns the current status.
func (i *Interpreter) Status() agent.Status {
	return agent.Status(i.interp.State().Value)
}

// Transition moves the run to the target status.
func (i *Interpreter) Transition(to agent.Status) error {
	from := i.Status()
	event, ok := EventFor(from, to)
	if !ok {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}

	i.ctx.State.Status = to
	i.interp.Send(statekit.Event{Type: event})

	if got := i.Status(); got != to {
		i.sync()
		return fmt.Errorf("%w: %s -> %s (guard rejected)", ErrInvalidTransition, from, to)
	}
	return nil
}

// IsTerminal returns true once the run is completed or failed.
func (i *Interpreter) IsTerminal() bool {
	return i.interp.Done()
}

// Path returns every status the run has entered, in order.
func (i *Interpreter) Path() []agent.Status {
	return slices.Clone(i.ctx.Path)
}

func (i *Interpreter) sync() {
	if i.ctx.State != nil {
		i.ctx.State.Status = i.Status()
	}
}
