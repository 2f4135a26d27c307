package statemachine

import "github.com/felixgeelhaar/statekit"

// guardBudgetExhausted allows the max_iterations status only once every
// permitted step has been taken.
func guardBudgetExhausted(ctx *Context, _ statekit.Event) bool {
	if ctx == nil || ctx.State == nil {
		return false
	}
	return ctx.State.CurrentIteration() >= ctx.MaxIterations
}
