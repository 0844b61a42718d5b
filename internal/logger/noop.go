package logger

import (
	"time"

	"github.com/harrison/fixloop/internal/budget"
	"github.com/harrison/fixloop/internal/models"
	"github.com/harrison/fixloop/internal/supervisor"
)

// NoOpLogger discards all log messages.
// Useful for testing or when logging is disabled.
type NoOpLogger struct{}

// NewNoOpLogger creates a NoOpLogger instance.
func NewNoOpLogger() *NoOpLogger {
	return &NoOpLogger{}
}

func (n *NoOpLogger) LogTrace(string)                                    {}
func (n *NoOpLogger) LogDebug(string)                                    {}
func (n *NoOpLogger) LogInfo(string)                                     {}
func (n *NoOpLogger) LogWarn(string)                                     {}
func (n *NoOpLogger) LogError(string)                                    {}
func (n *NoOpLogger) LogTaskStart(models.Task)                           {}
func (n *NoOpLogger) LogAttemptStart(models.Task, int, int)              {}
func (n *NoOpLogger) LogAttemptResult(models.Task, models.AttemptRecord) {}
func (n *NoOpLogger) LogCommandLaunch(supervisor.Invocation, int)        {}
func (n *NoOpLogger) LogCommandTimeout(supervisor.Invocation, int)       {}
func (n *NoOpLogger) LogCommandResult(supervisor.Result)                 {}
func (n *NoOpLogger) LogGenerationCall(int, int, int)                    {}
func (n *NoOpLogger) LogGenerationRetry(int, error, time.Duration)       {}
func (n *NoOpLogger) LogGenerationDone(int, time.Duration, int)          {}
func (n *NoOpLogger) LogFeedbackTrimmed(budget.TrimReport)               {}
func (n *NoOpLogger) LogTaskResult(models.TaskResult) error              { return nil }
func (n *NoOpLogger) LogSummary(models.SessionSummary)                   {}
