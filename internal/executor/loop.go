// Package executor runs the generate, build, test and fix loop for a single
// task until the tests pass or the attempt budget is spent.
package executor

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/harrison/fixloop/internal/agent"
	"github.com/harrison/fixloop/internal/budget"
	"github.com/harrison/fixloop/internal/models"
	"github.com/harrison/fixloop/internal/supervisor"
	"github.com/harrison/fixloop/internal/workspace"
)

// Feedback sent back when the test command times out on every launch.
const testTimeoutFeedback = "Tests did not run because they were hung and timed out. Exception:"

// Feedback sent back when the build command times out on every launch.
const buildTimeoutFeedback = "Build did not finish because it was hung and timed out. Exception:"

// Generator produces text for a prompt. *agent.Gateway satisfies it.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Prompter renders the four prompts used by the loop. *agent.Prompts satisfies it.
type Prompter interface {
	Code(task string) (string, error)
	Tests(code string) (string, error)
	Fix(fb budget.Feedback) (string, error)
	DesignDoc(code string) (string, error)
}

// CommandExecutor runs build and test commands. *supervisor.Supervisor satisfies it.
type CommandExecutor interface {
	Execute(ctx context.Context, inv supervisor.Invocation) (supervisor.Result, error)
}

// Workspace is the on-disk target for generated artifacts. *workspace.Workspace satisfies it.
type Workspace interface {
	Layout() workspace.Layout
	WriteArtifacts(code, tests string) error
	WriteDesignDoc(markdown string) (string, string, error)
}

// Logger receives loop events.
type Logger interface {
	LogInfo(message string)
	LogWarn(message string)
	LogTaskStart(task models.Task)
	LogAttemptStart(task models.Task, attempt, maxAttempts int)
	LogAttemptResult(task models.Task, record models.AttemptRecord)
}

// LoopConfig holds the loop's budgets and toolchain commands.
type LoopConfig struct {
	MaxAttempts            int
	FixDelay               time.Duration
	PinTestsOnBuildFailure bool
	BuildCommand           string
	TestCommand            string
	CommandTimeout         time.Duration
	CommandMaxRetries      int
}

// AttemptLoop drives one task through Generating, Building, Testing and
// Fixing until it ends Succeeded, Exhausted or Aborted.
type AttemptLoop struct {
	generator Generator
	prompts   Prompter
	executor  CommandExecutor
	workspace Workspace
	trimmer   *budget.Trimmer
	cfg       LoopConfig
	logger    Logger // can be nil
	tracer    trace.Tracer
	clock     func() time.Time
}

// NewAttemptLoop wires the loop's collaborators.
func NewAttemptLoop(gen Generator, prompts Prompter, exec CommandExecutor, ws Workspace, trimmer *budget.Trimmer, cfg LoopConfig, logger Logger) *AttemptLoop {
	return &AttemptLoop{
		generator: gen,
		prompts:   prompts,
		executor:  exec,
		workspace: ws,
		trimmer:   trimmer,
		cfg:       cfg,
		logger:    logger,
		tracer:    otel.Tracer("github.com/harrison/fixloop/internal/executor"),
		clock:     time.Now,
	}
}

// Run executes the loop for task. Exhausted is reported through the result
// with a nil error; only an aborted task returns an error.
func (l *AttemptLoop) Run(ctx context.Context, task models.Task) (models.TaskResult, error) {
	start := l.clock()
	result := models.TaskResult{Task: task}

	ctx, span := l.tracer.Start(ctx, "executor.task", trace.WithAttributes(
		attribute.String("task.id", task.ID),
		attribute.Int("loop.max_attempts", l.cfg.MaxAttempts),
	))
	defer span.End()

	finish := func(state models.EndState, err error) (models.TaskResult, error) {
		result.State = state
		result.Duration = l.clock().Sub(start)
		span.SetAttributes(
			attribute.String("task.state", string(state)),
			attribute.Int("task.attempts", result.AttemptsUsed()),
		)
		if state == models.StateAborted {
			result.Error = err
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return result, err
		}
		result.Error = err
		return result, nil
	}

	if err := task.Validate(); err != nil {
		return finish(models.StateAborted, NewTaskError(task.ID, PhaseGenerateCode, 0, err))
	}

	if l.logger != nil {
		l.logger.LogTaskStart(task)
	}

	code, err := l.ask(ctx, &result, func() (string, error) {
		return l.prompts.Code(task.Description)
	}, true)
	if err != nil {
		return finish(models.StateAborted, NewTaskError(task.ID, PhaseGenerateCode, 0, err))
	}

	attempts := models.NewRetryBudget("attempts", l.cfg.MaxAttempts)
	layout := l.workspace.Layout()
	var tests string
	var previous models.AttemptOutcome

	for {
		n, ok := attempts.Take()
		if !ok {
			break
		}
		attemptStart := l.clock()
		if l.logger != nil {
			l.logger.LogAttemptStart(task, n, attempts.Limit())
		}

		reuseTests := l.cfg.PinTestsOnBuildFailure && previous == models.OutcomeBuildFailed && tests != ""
		if !reuseTests {
			tests, err = l.ask(ctx, &result, func() (string, error) {
				return l.prompts.Tests(code)
			}, true)
			if err != nil {
				return finish(models.StateAborted, NewTaskError(task.ID, PhaseGenerateTests, n, err))
			}
		}

		if err := l.workspace.WriteArtifacts(code, tests); err != nil {
			return finish(models.StateAborted, NewTaskError(task.ID, PhaseWrite, n, err))
		}

		outcome, feedback, err := l.verify(ctx, layout, n)
		if err != nil {
			phase := PhaseBuild
			if outcome == models.OutcomeTestFailed {
				phase = PhaseTest
			}
			return finish(models.StateAborted, NewTaskError(task.ID, phase, n, err))
		}

		record := models.AttemptRecord{Number: n, Outcome: outcome}

		if outcome == models.OutcomeSuccess {
			record.Duration = l.clock().Sub(attemptStart)
			l.recordAttempt(&result, task, record)

			result.Artifacts.CodeFile = layout.CodeFile
			result.Artifacts.TestFile = layout.TestFile
			l.writeDesignDoc(ctx, &result, code)
			return finish(models.StateSucceeded, nil)
		}

		fb := l.trimmer.Trim(budget.Feedback{
			Code:   code,
			Errors: strings.TrimSpace(feedback),
			Task:   task.Description,
		})
		record.Feedback = fb.Errors
		previous = outcome

		if attempts.Exhausted() {
			record.Duration = l.clock().Sub(attemptStart)
			l.recordAttempt(&result, task, record)
			break
		}

		fixed, err := l.ask(ctx, &result, func() (string, error) {
			return l.prompts.Fix(fb)
		}, true)
		record.Duration = l.clock().Sub(attemptStart)
		l.recordAttempt(&result, task, record)
		if err != nil {
			return finish(models.StateAborted, NewTaskError(task.ID, PhaseFix, n, err))
		}
		code = fixed

		if err := budget.Wait(ctx, l.cfg.FixDelay); err != nil {
			return finish(models.StateAborted, NewTaskError(task.ID, PhaseFix, n, err))
		}
	}

	return finish(models.StateExhausted, ErrAttemptsExhausted)
}

// verify builds and, only if the build succeeded, tests the current
// artifacts. A returned error means the attempt never reached a verdict.
func (l *AttemptLoop) verify(ctx context.Context, layout workspace.Layout, attempt int) (models.AttemptOutcome, string, error) {
	ctx, span := l.tracer.Start(ctx, "executor.attempt", trace.WithAttributes(attribute.Int("attempt", attempt)))
	defer span.End()

	build, err := l.executor.Execute(ctx, l.invocation(layout.CodeDir, l.cfg.BuildCommand))
	if err != nil {
		if supervisor.IsTimeoutError(err) {
			span.SetAttributes(attribute.String("attempt.outcome", string(models.OutcomeBuildFailed)))
			return models.OutcomeBuildFailed, buildTimeoutFeedback + err.Error(), nil
		}
		return models.OutcomeFatalError, "", err
	}
	if !build.Success() {
		span.SetAttributes(attribute.String("attempt.outcome", string(models.OutcomeBuildFailed)))
		return models.OutcomeBuildFailed, build.Output, nil
	}

	run, err := l.executor.Execute(ctx, l.invocation(layout.TestDir, l.cfg.TestCommand))
	if err != nil {
		if supervisor.IsTimeoutError(err) {
			span.SetAttributes(attribute.String("attempt.outcome", string(models.OutcomeTimedOut)))
			return models.OutcomeTimedOut, testTimeoutFeedback + err.Error(), nil
		}
		return models.OutcomeTestFailed, "", err
	}
	if !run.Success() {
		span.SetAttributes(attribute.String("attempt.outcome", string(models.OutcomeTestFailed)))
		return models.OutcomeTestFailed, run.Output, nil
	}

	span.SetAttributes(attribute.String("attempt.outcome", string(models.OutcomeSuccess)))
	return models.OutcomeSuccess, "", nil
}

func (l *AttemptLoop) invocation(dir, commandLine string) supervisor.Invocation {
	return supervisor.Invocation{
		Dir:         dir,
		CommandLine: commandLine,
		Timeout:     l.cfg.CommandTimeout,
		MaxRetries:  l.cfg.CommandMaxRetries,
	}
}

// ask renders a prompt, sends it, and optionally unwraps a fenced code block.
func (l *AttemptLoop) ask(ctx context.Context, result *models.TaskResult, render func() (string, error), extract bool) (string, error) {
	prompt, err := render()
	if err != nil {
		return "", fmt.Errorf("failed to render prompt: %w", err)
	}
	result.GenerationCalls++
	text, err := l.generator.Generate(ctx, prompt)
	if err != nil {
		return "", err
	}
	if extract {
		return agent.ExtractCode(text), nil
	}
	return text, nil
}

func (l *AttemptLoop) recordAttempt(result *models.TaskResult, task models.Task, record models.AttemptRecord) {
	result.Attempts = append(result.Attempts, record)
	if l.logger != nil {
		l.logger.LogAttemptResult(task, record)
	}
}

// writeDesignDoc generates and stores the design document. Failures are
// logged and leave the Succeeded state untouched.
func (l *AttemptLoop) writeDesignDoc(ctx context.Context, result *models.TaskResult, code string) {
	doc, err := l.ask(ctx, result, func() (string, error) {
		return l.prompts.DesignDoc(code)
	}, false)
	if err != nil {
		l.warn(fmt.Sprintf("Design document generation failed: %v", err))
		return
	}

	mdPath, htmlPath, err := l.workspace.WriteDesignDoc(doc)
	if err != nil {
		l.warn(fmt.Sprintf("Failed to save design document: %v", err))
	}
	result.Artifacts.DesignDoc = mdPath
	result.Artifacts.DesignDocHTML = htmlPath
	if htmlPath != "" && l.logger != nil {
		l.logger.LogInfo("Design document saved: " + htmlPath)
	}
}

func (l *AttemptLoop) warn(message string) {
	if l.logger != nil {
		l.logger.LogWarn(message)
	}
}
