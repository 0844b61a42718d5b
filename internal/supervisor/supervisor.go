// Package supervisor runs external commands under a hard timeout with a
// bounded number of launches, classifying each run as success, non-zero
// exit, or timeout.
package supervisor

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/harrison/fixloop/internal/budget"
	"github.com/harrison/fixloop/internal/models"
)

// DefaultRetryDelay is the pause between timed-out launches.
const DefaultRetryDelay = time.Second

// Outcome classifies a finished command.
type Outcome string

const (
	OutcomeSuccess     Outcome = "success"
	OutcomeNonZeroExit Outcome = "non_zero_exit"
	OutcomeTimeout     Outcome = "timeout"
)

// Invocation describes one command to run.
type Invocation struct {
	Dir            string        // Working directory
	CommandLine    string        // Executable, whitespace, argument string
	Timeout        time.Duration // Hard per-launch timeout
	MaxRetries     int           // Maximum launches when the command times out (<1 means 1)
	ThrowOnNonZero bool          // Return NonZeroExitError instead of a failed Result
}

// Result is the captured outcome of an invocation.
type Result struct {
	Command  string
	Dir      string
	ExitCode int
	Stdout   string
	Stderr   string
	Output   string // Stderr if non-empty, else Stdout
	Outcome  Outcome
	Launches int
	Duration time.Duration
}

// Success reports whether the command exited zero.
func (r Result) Success() bool {
	return r.Outcome == OutcomeSuccess
}

// Logger receives command lifecycle events.
type Logger interface {
	LogCommandLaunch(inv Invocation, launch int)
	LogCommandTimeout(inv Invocation, launch int)
	LogCommandResult(res Result)
}

// Supervisor executes invocations through a Runner.
type Supervisor struct {
	runner     Runner
	retryDelay time.Duration
	logger     Logger // can be nil
	tracer     trace.Tracer
}

// New creates a Supervisor. A nil runner uses a ProcessRunner.
func New(runner Runner, retryDelay time.Duration, logger Logger) *Supervisor {
	if runner == nil {
		runner = NewProcessRunner()
	}
	if retryDelay < 0 {
		retryDelay = 0
	}
	return &Supervisor{
		runner:     runner,
		retryDelay: retryDelay,
		logger:     logger,
		tracer:     otel.Tracer("github.com/harrison/fixloop/internal/supervisor"),
	}
}

// SplitCommandLine splits a command line into the executable and its
// arguments. The executable ends at the first whitespace; the rest is split
// on whitespace. No shell quoting is interpreted.
func SplitCommandLine(line string) (string, []string, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return "", nil, ErrEmptyCommand
	}
	return fields[0], fields[1:], nil
}

// Execute runs inv, retrying only on timeout. Non-zero exits are returned as
// data unless inv.ThrowOnNonZero is set. After the last timed-out launch a
// *TimeoutError is returned together with the timeout Result.
func (s *Supervisor) Execute(ctx context.Context, inv Invocation) (Result, error) {
	res := Result{Command: inv.CommandLine, Dir: inv.Dir}

	name, args, err := SplitCommandLine(inv.CommandLine)
	if err != nil {
		return res, err
	}

	ctx, span := s.tracer.Start(ctx, "supervisor.execute", trace.WithAttributes(
		attribute.String("command", inv.CommandLine),
		attribute.String("dir", inv.Dir),
		attribute.Int64("timeout_ms", inv.Timeout.Milliseconds()),
	))
	defer span.End()

	launches := models.NewRetryBudget("process", inv.MaxRetries)
	start := time.Now()

	for {
		n, _ := launches.Take()
		res.Launches = n
		if s.logger != nil {
			s.logger.LogCommandLaunch(inv, n)
		}

		launch, err := s.runner.Run(ctx, inv.Dir, name, args, inv.Timeout)
		if err != nil {
			res.Duration = time.Since(start)
			span.SetStatus(codes.Error, err.Error())
			if ctx.Err() != nil {
				return res, fmt.Errorf("command %q cancelled: %w", inv.CommandLine, ctx.Err())
			}
			return res, &StartError{Command: inv.CommandLine, Err: err}
		}

		if launch.TimedOut {
			if s.logger != nil {
				s.logger.LogCommandTimeout(inv, n)
			}
			if launches.Exhausted() {
				res.Outcome = OutcomeTimeout
				res.ExitCode = -1
				res.Duration = time.Since(start)
				s.finish(span, res)
				return res, &TimeoutError{Command: inv.CommandLine, Timeout: inv.Timeout, Launches: n}
			}
			if err := budget.Wait(ctx, s.retryDelay); err != nil {
				res.Duration = time.Since(start)
				return res, fmt.Errorf("command %q cancelled: %w", inv.CommandLine, err)
			}
			continue
		}

		res.ExitCode = launch.ExitCode
		res.Stdout = launch.Stdout
		res.Stderr = launch.Stderr
		res.Output = launch.Stderr
		if res.Output == "" {
			res.Output = launch.Stdout
		}
		res.Outcome = OutcomeSuccess
		if launch.ExitCode != 0 {
			res.Outcome = OutcomeNonZeroExit
		}
		res.Duration = time.Since(start)
		s.finish(span, res)

		if res.Outcome == OutcomeNonZeroExit && inv.ThrowOnNonZero {
			return res, &NonZeroExitError{Command: inv.CommandLine, ExitCode: res.ExitCode, Output: res.Output}
		}
		return res, nil
	}
}

func (s *Supervisor) finish(span trace.Span, res Result) {
	span.SetAttributes(
		attribute.String("outcome", string(res.Outcome)),
		attribute.Int("exit_code", res.ExitCode),
		attribute.Int("launches", res.Launches),
	)
	if !res.Success() {
		span.SetStatus(codes.Error, string(res.Outcome))
	}
	if s.logger != nil {
		s.logger.LogCommandResult(res)
	}
}
