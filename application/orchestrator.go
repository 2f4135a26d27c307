package application

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/felixgeelhaar/statekit"
	"go.opentelemetry.io/otel/attribute"

	"github.com/felixgeelhaar/ragent/domain/agent"
	"github.com/felixgeelhaar/ragent/domain/config"
	"github.com/felixgeelhaar/ragent/domain/reasoning"
	"github.com/felixgeelhaar/ragent/domain/run"
	"github.com/felixgeelhaar/ragent/domain/tool"
	"github.com/felixgeelhaar/ragent/infrastructure/logging"
	"github.com/felixgeelhaar/ragent/infrastructure/statemachine"
)

// FailureApology is the answer returned when a run fails.
const FailureApology = "I'm sorry, something went wrong while answering your question. Please try again later."

// historyTimeout bounds how long a run waits to be recorded.
const historyTimeout = 5 * time.Second

// Config holds the collaborators of an Orchestrator.
type Config struct {
	Reasoner  reasoning.Service
	Tools     tool.Service
	Agent     config.AgentConfig
	Reflector Reflector
	History   run.Store
	Metrics   Metrics

	// FailureMessage replaces FailureApology when set.
	FailureMessage string
}

// Orchestrator drives the plan, execute, synthesize and reflect loop.
type Orchestrator struct {
	config      config.AgentConfig
	planner     *Planner
	executor    *Executor
	synthesizer *Synthesizer
	reflector   Reflector
	history     run.Store
	metrics     Metrics
	machine     *statekit.MachineConfig[*statemachine.Context]
	apology     string
}

// New creates an orchestrator. A zero Agent config means the defaults.
func New(cfg Config) (*Orchestrator, error) {
	if cfg.Reasoner == nil {
		return nil, errors.New("reasoning service is required")
	}
	if cfg.Tools == nil {
		return nil, errors.New("tool service is required")
	}

	agentCfg := cfg.Agent
	if agentCfg == (config.AgentConfig{}) {
		agentCfg = config.DefaultAgentConfig()
	}
	if err := agentCfg.Validate(); err != nil {
		return nil, err
	}

	metrics := cfg.Metrics
	if metrics == nil {
		metrics = NoopMetrics{}
	}

	reflector := cfg.Reflector
	switch {
	case !agentCfg.EnableReflection:
		reflector = NoopReflector{}
	case reflector == nil:
		reflector = NewLLMReflector(cfg.Reasoner)
	}

	machine, err := statemachine.NewRunMachine()
	if err != nil {
		return nil, fmt.Errorf("failed to build status machine: %w", err)
	}

	apology := cfg.FailureMessage
	if apology == "" {
		apology = FailureApology
	}

	return &Orchestrator{
		config:      agentCfg,
		planner:     NewPlanner(cfg.Reasoner, cfg.Tools, agentCfg, metrics),
		executor:    NewExecutor(cfg.Tools, agentCfg, metrics),
		synthesizer: NewSynthesizer(cfg.Reasoner),
		reflector:   reflector,
		history:     cfg.History,
		metrics:     metrics,
		machine:     machine,
		apology:     apology,
	}, nil
}

// AgentConfig returns the loop configuration in effect.
func (o *Orchestrator) AgentConfig() config.AgentConfig {
	return o.config
}

// runTrace collects the per-run figures reported in DebugInfo.
type runTrace struct {
	fallbackSteps      int
	reflectionScores   []float64
	reflectionAttempts int
}

// Run answers the query. It never returns an error: failures are reported
// through the result's Success and Error fields.
func (o *Orchestrator) Run(ctx context.Context, query, sessionContext string) agent.Result {
	runID := generateRunID()
	start := time.Now()

	ctx, span := startSpan(ctx, "agent.run", attribute.String("agent.run_id", runID))

	state := agent.NewState(query, sessionContext)
	interp := statemachine.NewInterpreter(o.machine, statemachine.NewContext(state, o.config.MaxIterations))
	interp.Start()
	defer interp.Stop()

	logging.Info().
		Add(logging.RunID(runID)).
		Add(logging.Query(query)).
		Msg("run started")

	trace := &runTrace{}
	err := o.execute(ctx, state, interp, trace)

	var result agent.Result
	if err != nil {
		result = o.fail(state, interp, err)
	} else {
		result = agent.Result{
			Success:   true,
			Answer:    state.FinalAnswer,
			Sources:   state.Sources,
			ToolsUsed: state.ToolsUsed(),
		}
	}
	result.RunID = runID
	result.StepsTaken = state.CurrentIteration()
	result.TotalTime = time.Since(start)
	result.DebugInfo = debugInfo(state, interp, trace)

	span.SetAttributes(
		attribute.String("agent.status", state.Status.String()),
		attribute.Int("agent.steps", result.StepsTaken),
	)
	endSpan(span, err)

	o.metrics.RecordRun(ctx, state.Status, result.StepsTaken, result.TotalTime)
	o.record(ctx, runID, state, result, start)

	logging.Info().
		Add(logging.RunID(runID)).
		Add(logging.Status(state.Status)).
		Add(logging.Step(result.StepsTaken)).
		Add(logging.Success(result.Success)).
		Add(logging.Duration(result.TotalTime)).
		Msg("run finished")

	return result
}

// execute runs the loop and the synthesis. A panic anywhere below is
// turned into an error.
func (o *Orchestrator) execute(ctx context.Context, state *agent.State, interp *statemachine.Interpreter, trace *runTrace) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()

	if err := interp.Transition(agent.StatusRunning); err != nil {
		return err
	}

	exhausted, err := o.loop(ctx, state, trace)
	if err != nil {
		return err
	}
	if exhausted {
		if err := interp.Transition(agent.StatusMaxIterations); err != nil {
			return err
		}
		logging.Warn().
			Add(logging.Step(state.CurrentIteration())).
			Msg("iteration budget exhausted")
	}

	answer, sources := o.synthesize(ctx, state, trace)
	if err := ctx.Err(); err != nil {
		return err
	}
	state.FinalAnswer = answer
	state.Sources = sources

	return interp.Transition(agent.StatusCompleted)
}

// loop plans and executes steps until the planner stops or the budget is
// spent. It reports whether the budget ran out.
func (o *Orchestrator) loop(ctx context.Context, state *agent.State, trace *runTrace) (bool, error) {
	for state.CurrentIteration() < o.config.MaxIterations {
		stepStart := time.Now()
		number := state.NextStepNumber()

		plan, err := o.planner.Plan(ctx, state)
		if err != nil {
			return false, fmt.Errorf("planning step %d: %w", number, err)
		}
		if plan.Fallback {
			trace.fallbackSteps++
		}

		results := []agent.ToolResult{}
		if len(plan.ToolCalls) > 0 {
			results, err = o.executor.Execute(ctx, plan.ToolCalls)
			if err != nil {
				return false, fmt.Errorf("executing step %d: %w", number, err)
			}
		}

		step := agent.Step{
			Number:         number,
			Reasoning:      plan.Reasoning,
			ToolCalls:      plan.ToolCalls,
			ToolResults:    results,
			ShouldContinue: plan.ShouldContinue,
			DirectAnswer:   plan.DirectAnswer,
			Duration:       time.Since(stepStart),
		}
		if err := state.AppendStep(step); err != nil {
			return false, err
		}

		logging.Debug().
			Add(logging.Step(number)).
			Add(logging.ToolCount(len(plan.ToolCalls))).
			Add(logging.Int("failures", step.Failures())).
			Add(logging.Duration(step.Duration)).
			Msg("step completed")

		if !plan.ShouldContinue {
			return false, nil
		}
	}
	return true, nil
}

// synthesize writes the answer and, when reflection is enabled, revises it
// until it clears the threshold or the attempts run out. The last answer
// is always kept.
func (o *Orchestrator) synthesize(ctx context.Context, state *agent.State, trace *runTrace) (string, []agent.Source) {
	answer, sources := o.synthesizer.Synthesize(ctx, state, "")
	if !o.config.EnableReflection || answer == SynthesisApology {
		return answer, sources
	}

	toolContext := FormatContext(state.Results())
	for attempt := 1; ; attempt++ {
		reflection, err := o.reflect(ctx, state.OriginalQuery, answer, toolContext, attempt)
		if err != nil {
			logging.Warn().
				Add(logging.Attempt(attempt)).
				Add(logging.ErrorField(err)).
				Msg("reflection failed, keeping current answer")
			return answer, sources
		}
		trace.reflectionAttempts = attempt
		trace.reflectionScores = append(trace.reflectionScores, reflection.Score)

		if !reflection.NeedsImprovement || attempt >= o.config.MaxReflectionIterations {
			return answer, sources
		}

		revised, revisedSources := o.synthesizer.Synthesize(ctx, state, reflection.Feedback())
		if revised == SynthesisApology {
			return answer, sources
		}
		answer, sources = revised, revisedSources
	}
}

func (o *Orchestrator) reflect(ctx context.Context, query, answer, toolContext string, attempt int) (agent.Reflection, error) {
	ctx, span := startSpan(ctx, "agent.reflect", attribute.Int("agent.reflection_attempt", attempt))

	reflection, err := o.reflector.Reflect(ctx, query, answer, toolContext)
	if err != nil {
		endSpan(span, err)
		return agent.Reflection{}, err
	}
	reflection = reflection.Judge(o.config.ReflectionThreshold)

	o.metrics.RecordReflection(ctx, reflection.Score, attempt)
	span.SetAttributes(
		attribute.Float64("agent.reflection_score", reflection.Score),
		attribute.Bool("agent.needs_improvement", reflection.NeedsImprovement),
	)
	endSpan(span, nil)

	logging.Debug().
		Add(logging.Attempt(attempt)).
		Add(logging.Score(reflection.Score)).
		Add(logging.Reason(reflection.Reasoning)).
		Msg("answer reflected")
	return reflection, nil
}

// fail moves the run to failed and builds the failure result.
func (o *Orchestrator) fail(state *agent.State, interp *statemachine.Interpreter, cause error) agent.Result {
	if !interp.IsTerminal() {
		if err := interp.Transition(agent.StatusFailed); err != nil {
			state.Status = agent.StatusFailed
		}
	} else {
		state.Status = agent.StatusFailed
	}

	state.Error = cause.Error()
	state.FinalAnswer = o.apology
	state.Sources = []agent.Source{}

	logging.Error().
		Add(logging.Step(state.CurrentIteration())).
		Add(logging.ErrorField(cause)).
		Msg("run failed")

	return agent.Result{
		Success:   false,
		Answer:    o.apology,
		Sources:   []agent.Source{},
		ToolsUsed: state.ToolsUsed(),
		Error:     cause.Error(),
	}
}

// record stores the run in the history store. Failures are logged only.
func (o *Orchestrator) record(ctx context.Context, runID string, state *agent.State, result agent.Result, start time.Time) {
	if o.history == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), historyTimeout)
	defer cancel()

	rec := &run.Record{
		ID:             runID,
		Query:          state.OriginalQuery,
		SessionContext: state.SessionContext,
		Status:         state.Status,
		Result:         result,
		Steps:          state.Steps(),
		StartTime:      start,
		EndTime:        start.Add(result.TotalTime),
	}
	if err := o.history.Save(ctx, rec); err != nil {
		logging.Warn().
			Add(logging.RunID(runID)).
			Add(logging.ErrorField(err)).
			Msg("failed to record run")
	}
}

func debugInfo(state *agent.State, interp *statemachine.Interpreter, trace *runTrace) map[string]any {
	path := interp.Path()
	statusPath := make([]string, 0, len(path))
	for _, s := range path {
		statusPath = append(statusPath, s.String())
	}
	if len(statusPath) == 0 || statusPath[len(statusPath)-1] != state.Status.String() {
		statusPath = append(statusPath, state.Status.String())
	}

	scores := trace.reflectionScores
	if scores == nil {
		scores = []float64{}
	}

	return map[string]any{
		"tool_counts":         state.ToolCounts(),
		"reflection_scores":   scores,
		"reflection_attempts": trace.reflectionAttempts,
		"fallback_steps":      trace.fallbackSteps,
		"status_path":         statusPath,
	}
}

func generateRunID() string {
	b := make([]byte, 4)
	_, _ = rand.Read(b)
	return fmt.Sprintf("run-%d-%s", time.Now().UnixNano(), hex.EncodeToString(b))
}
