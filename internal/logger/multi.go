package logger

import (
	"time"

	"github.com/harrison/fixloop/internal/budget"
	"github.com/harrison/fixloop/internal/models"
	"github.com/harrison/fixloop/internal/supervisor"
)

// Sink is the full set of events a fixloop logger handles.
// ConsoleLogger, FileLogger and NoOpLogger all implement it.
type Sink interface {
	LogTrace(message string)
	LogDebug(message string)
	LogInfo(message string)
	LogWarn(message string)
	LogError(message string)
	LogTaskStart(task models.Task)
	LogAttemptStart(task models.Task, attempt, maxAttempts int)
	LogAttemptResult(task models.Task, record models.AttemptRecord)
	LogCommandLaunch(inv supervisor.Invocation, launch int)
	LogCommandTimeout(inv supervisor.Invocation, launch int)
	LogCommandResult(res supervisor.Result)
	LogGenerationCall(attempt, maxAttempts, promptChars int)
	LogGenerationRetry(attempt int, err error, delay time.Duration)
	LogGenerationDone(attempt int, elapsed time.Duration, outputChars int)
	LogFeedbackTrimmed(report budget.TrimReport)
	LogTaskResult(result models.TaskResult) error
	LogSummary(summary models.SessionSummary)
}

// MultiLogger forwards every event to each of its sinks in order.
type MultiLogger struct {
	sinks []Sink
}

// NewMultiLogger creates a MultiLogger. Nil sinks are skipped.
func NewMultiLogger(sinks ...Sink) *MultiLogger {
	ml := &MultiLogger{}
	for _, s := range sinks {
		if s != nil {
			ml.sinks = append(ml.sinks, s)
		}
	}
	return ml
}

func (ml *MultiLogger) each(fn func(Sink)) {
	for _, s := range ml.sinks {
		fn(s)
	}
}

func (ml *MultiLogger) LogTrace(message string) { ml.each(func(s Sink) { s.LogTrace(message) }) }
func (ml *MultiLogger) LogDebug(message string) { ml.each(func(s Sink) { s.LogDebug(message) }) }
func (ml *MultiLogger) LogInfo(message string)  { ml.each(func(s Sink) { s.LogInfo(message) }) }
func (ml *MultiLogger) LogWarn(message string)  { ml.each(func(s Sink) { s.LogWarn(message) }) }
func (ml *MultiLogger) LogError(message string) { ml.each(func(s Sink) { s.LogError(message) }) }

func (ml *MultiLogger) LogTaskStart(task models.Task) {
	ml.each(func(s Sink) { s.LogTaskStart(task) })
}

func (ml *MultiLogger) LogAttemptStart(task models.Task, attempt, maxAttempts int) {
	ml.each(func(s Sink) { s.LogAttemptStart(task, attempt, maxAttempts) })
}

func (ml *MultiLogger) LogAttemptResult(task models.Task, record models.AttemptRecord) {
	ml.each(func(s Sink) { s.LogAttemptResult(task, record) })
}

func (ml *MultiLogger) LogCommandLaunch(inv supervisor.Invocation, launch int) {
	ml.each(func(s Sink) { s.LogCommandLaunch(inv, launch) })
}

func (ml *MultiLogger) LogCommandTimeout(inv supervisor.Invocation, launch int) {
	ml.each(func(s Sink) { s.LogCommandTimeout(inv, launch) })
}

func (ml *MultiLogger) LogCommandResult(res supervisor.Result) {
	ml.each(func(s Sink) { s.LogCommandResult(res) })
}

func (ml *MultiLogger) LogGenerationCall(attempt, maxAttempts, promptChars int) {
	ml.each(func(s Sink) { s.LogGenerationCall(attempt, maxAttempts, promptChars) })
}

func (ml *MultiLogger) LogGenerationRetry(attempt int, err error, delay time.Duration) {
	ml.each(func(s Sink) { s.LogGenerationRetry(attempt, err, delay) })
}

func (ml *MultiLogger) LogGenerationDone(attempt int, elapsed time.Duration, outputChars int) {
	ml.each(func(s Sink) { s.LogGenerationDone(attempt, elapsed, outputChars) })
}

func (ml *MultiLogger) LogFeedbackTrimmed(report budget.TrimReport) {
	ml.each(func(s Sink) { s.LogFeedbackTrimmed(report) })
}

// LogTaskResult forwards to every sink and returns the last error seen.
func (ml *MultiLogger) LogTaskResult(result models.TaskResult) error {
	var lastErr error
	for _, s := range ml.sinks {
		if err := s.LogTaskResult(result); err != nil {
			lastErr = err
		}
	}
	return lastErr
}

func (ml *MultiLogger) LogSummary(summary models.SessionSummary) {
	ml.each(func(s Sink) { s.LogSummary(summary) })
}
