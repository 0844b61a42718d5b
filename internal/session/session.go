// Package session runs tasks one at a time against a locked workspace,
// either from a list or interactively from a line-oriented reader.
package session

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/fatih/color"

	"github.com/harrison/fixloop/internal/models"
)

// ExitCommand ends an interactive session.
const ExitCommand = "exit"

const promptText = "What would you like me to build? (e.g., 'Reverse a string')"

// TaskRunner executes one task. *executor.AttemptLoop satisfies it.
type TaskRunner interface {
	Run(ctx context.Context, task models.Task) (models.TaskResult, error)
}

// Workspace is the part of the workspace the session manages.
// *workspace.Workspace satisfies it.
type Workspace interface {
	Lock(ctx context.Context) error
	Unlock() error
	Cleanup() error
	Setup(ctx context.Context) error
}

// Recorder persists task results. *history.Store satisfies it.
type Recorder interface {
	Record(ctx context.Context, result models.TaskResult) (int64, error)
}

// Logger receives session events.
type Logger interface {
	LogInfo(message string)
	LogWarn(message string)
	LogTaskResult(result models.TaskResult) error
	LogSummary(summary models.SessionSummary)
}

// Session owns the workspace for its lifetime and runs tasks sequentially.
type Session struct {
	runner    TaskRunner
	workspace Workspace
	recorder  Recorder // can be nil
	logger    Logger
	clock     func() time.Time
	summary   models.SessionSummary
	started   time.Time
	locked    bool
}

// New creates a Session. recorder may be nil when history is disabled.
func New(runner TaskRunner, ws Workspace, recorder Recorder, logger Logger) *Session {
	return &Session{
		runner:    runner,
		workspace: ws,
		recorder:  recorder,
		logger:    logger,
		clock:     time.Now,
	}
}

// Start locks the workspace and removes output left by a previous session.
func (s *Session) Start(ctx context.Context) error {
	if err := s.workspace.Lock(ctx); err != nil {
		return err
	}
	s.locked = true
	s.started = s.clock()

	if err := s.workspace.Cleanup(); err != nil {
		s.logger.LogWarn(err.Error())
	}
	return nil
}

// Close logs the summary and releases the workspace.
func (s *Session) Close() (models.SessionSummary, error) {
	s.summary.Duration = s.clock().Sub(s.started)
	s.logger.LogSummary(s.summary)

	if !s.locked {
		return s.summary, nil
	}
	s.locked = false
	return s.summary, s.workspace.Unlock()
}

// Summary returns the running totals.
func (s *Session) Summary() models.SessionSummary {
	return s.summary
}

// RunTask scaffolds the workspace and runs one task to completion. The task
// runs under a context detached from ctx cancellation, so an interrupt is
// only observed between tasks.
func (s *Session) RunTask(ctx context.Context, description string) models.TaskResult {
	task := models.NewTask(description)
	taskCtx := context.WithoutCancel(ctx)

	var result models.TaskResult
	if err := s.workspace.Setup(taskCtx); err != nil {
		result = models.TaskResult{
			Task:  task,
			State: models.StateAborted,
			Error: fmt.Errorf("workspace setup failed: %w", err),
		}
	} else {
		// Aborts are carried in result.Error.
		result, _ = s.runner.Run(taskCtx, task)
	}

	if err := s.logger.LogTaskResult(result); err != nil {
		s.logger.LogWarn(fmt.Sprintf("failed to write task result: %v", err))
	}
	if s.recorder != nil {
		if _, err := s.recorder.Record(taskCtx, result); err != nil {
			s.logger.LogWarn(fmt.Sprintf("failed to record task history: %v", err))
		}
	}

	s.summary.Add(result)
	return result
}

// RunTasks runs each description in order, stopping early if ctx is cancelled.
func (s *Session) RunTasks(ctx context.Context, descriptions []string) error {
	for _, d := range descriptions {
		if err := ctx.Err(); err != nil {
			return err
		}
		if strings.TrimSpace(d) == "" {
			continue
		}
		s.RunTask(ctx, d)
	}
	return nil
}

// Interactive prompts on out and reads one task per line from in until
// "exit", end of input, or ctx cancellation. Blank lines are ignored.
func (s *Session) Interactive(ctx context.Context, in io.Reader, out io.Writer) error {
	lines := make(chan string)
	readErr := make(chan error, 1)
	done := make(chan struct{})
	defer close(done)

	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		scanner.Buffer(make([]byte, 64*1024), 1024*1024)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-done:
				return
			}
		}
		readErr <- scanner.Err()
	}()

	bold := color.New(color.Bold)
	for {
		fmt.Fprintf(out, "\n%s\n> ", bold.Sprint(promptText))

		var line string
		var ok bool
		select {
		case <-ctx.Done():
			return ctx.Err()
		case line, ok = <-lines:
		}
		if !ok {
			select {
			case err := <-readErr:
				if err != nil && !errors.Is(err, io.EOF) {
					return fmt.Errorf("failed to read task: %w", err)
				}
			default:
			}
			return nil
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if strings.EqualFold(line, ExitCommand) {
			return nil
		}

		s.RunTask(ctx, line)
		if err := ctx.Err(); err != nil {
			return err
		}
	}
}
