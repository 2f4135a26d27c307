package statemachine

import "github.com/felixgeelhaar/statekit"

// recordStatus appends the entered status to the path. The interpreter
// syncs State.Status from the machine after each event.
func recordStatus(ctx **Context, _ statekit.Event) {
	if ctx == nil || *ctx == nil || (*ctx).State == nil {
		return
	}
	c := *ctx
	c.Path = append(c.Path, c.State.Status)
}
