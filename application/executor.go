package application

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/semaphore"

	"github.com/felixgeelhaar/ragent/domain/agent"
	"github.com/felixgeelhaar/ragent/domain/config"
	"github.com/felixgeelhaar/ragent/domain/tool"
	"github.com/felixgeelhaar/ragent/infrastructure/logging"
)

// Executor runs batches of tool calls under a concurrency limit and two
// deadlines: one for the whole batch and one per call.
type Executor struct {
	tools   tool.Service
	config  config.AgentConfig
	metrics Metrics
}

// NewExecutor creates an executor over the given tool service.
func NewExecutor(tools tool.Service, cfg config.AgentConfig, metrics Metrics) *Executor {
	if metrics == nil {
		metrics = NoopMetrics{}
	}
	return &Executor{
		tools:   tools,
		config:  cfg,
		metrics: metrics,
	}
}

// Execute runs the calls and returns one result per call in input order.
// A call that fails, panics, or exceeds the per-call deadline yields a failed
// result. If the batch deadline expires the whole batch fails with
// agent.ErrBatchTimeout and no results are returned.
func (e *Executor) Execute(ctx context.Context, calls []agent.ToolCall) ([]agent.ToolResult, error) {
	if len(calls) == 0 {
		return []agent.ToolResult{}, nil
	}

	ctx, span := startSpan(ctx, "agent.execute", attribute.Int("tool.count", len(calls)))
	batchCtx, cancel := context.WithTimeout(ctx, e.config.Timeout)
	defer cancel()

	limit := 1
	if e.config.ParallelExecution && len(calls) > 1 {
		limit = e.config.MaxConcurrentTools
	}
	sem := semaphore.NewWeighted(int64(limit))

	results := make([]agent.ToolResult, len(calls))
	var wg sync.WaitGroup
	for i, call := range calls {
		if err := sem.Acquire(batchCtx, 1); err != nil {
			break
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer sem.Release(1)
			results[i] = e.executeOne(batchCtx, call)
		}()
	}
	wg.Wait()

	if err := e.batchError(ctx, batchCtx); err != nil {
		logging.Warn().
			Add(logging.ToolCount(len(calls))).
			Add(logging.ErrorField(err)).
			Msg("tool batch aborted")
		endSpan(span, err)
		return nil, err
	}

	endSpan(span, nil)
	return results, nil
}

func (e *Executor) batchError(parent, batchCtx context.Context) error {
	if err := parent.Err(); err != nil {
		return err
	}
	if err := batchCtx.Err(); err != nil {
		return fmt.Errorf("%w after %s: %w", agent.ErrBatchTimeout, e.config.Timeout, err)
	}
	return nil
}

type callOutcome struct {
	result tool.Result
	err    error
}

// executeOne runs a single call in its own goroutine so the per-call deadline
// holds even when the tool ignores its context.
func (e *Executor) executeOne(ctx context.Context, call agent.ToolCall) agent.ToolResult {
	ctx, span := startSpan(ctx, "agent.tool",
		attribute.String("tool.name", call.ToolName),
		attribute.String("tool.call_id", call.CallID),
	)

	start := time.Now()
	callCtx, cancel := context.WithTimeout(ctx, e.config.ToolTimeout)
	defer cancel()

	done := make(chan callOutcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- callOutcome{err: fmt.Errorf("panic: %v", r)}
			}
		}()
		res, err := e.tools.Execute(callCtx, call.ToolName, call.Arguments)
		done <- callOutcome{result: res, err: err}
	}()

	var result agent.ToolResult
	select {
	case out := <-done:
		result = e.resolve(ctx, callCtx, call, out, time.Since(start))
	case <-callCtx.Done():
		result = agent.Failed(call, e.deadlineMessage(ctx, callCtx), time.Since(start))
	}

	e.metrics.RecordToolExecution(ctx, call.ToolName, result.Success, result.ExecutionTime)
	if result.Success {
		logging.Debug().
			Add(logging.ToolName(call.ToolName)).
			Add(logging.CallID(call.CallID)).
			Add(logging.Duration(result.ExecutionTime)).
			Msg("tool call succeeded")
		endSpan(span, nil)
	} else {
		logging.Warn().
			Add(logging.ToolName(call.ToolName)).
			Add(logging.CallID(call.CallID)).
			Add(logging.Duration(result.ExecutionTime)).
			Add(logging.Reason(result.Error)).
			Msg("tool call failed")
		endSpan(span, errors.New(result.Error))
	}
	return result
}

func (e *Executor) resolve(ctx, callCtx context.Context, call agent.ToolCall, out callOutcome, elapsed time.Duration) agent.ToolResult {
	if out.err != nil {
		if callCtx.Err() != nil {
			return agent.Failed(call, e.deadlineMessage(ctx, callCtx), elapsed)
		}
		return agent.Failed(call, out.err.Error(), elapsed)
	}
	if out.result.Error != nil {
		return agent.Failed(call, out.result.Error.Error(), elapsed)
	}
	return agent.Succeeded(call, out.result.Output, elapsed)
}

func (e *Executor) deadlineMessage(ctx, callCtx context.Context) string {
	if ctx.Err() == nil && errors.Is(callCtx.Err(), context.DeadlineExceeded) {
		return fmt.Sprintf("timeout after %s", e.config.ToolTimeout)
	}
	if err := ctx.Err(); err != nil {
		return "cancelled: " + err.Error()
	}
	return "cancelled: " + callCtx.Err().Error()
}
