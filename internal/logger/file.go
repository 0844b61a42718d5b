package logger

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/harrison/fixloop/internal/budget"
	"github.com/harrison/fixloop/internal/models"
	"github.com/harrison/fixloop/internal/supervisor"
)

// FileLogger logs run events to files in the log directory.
// It creates timestamped per-run log files, per-task detailed logs,
// and maintains a latest.log symlink pointing to the most recent run.
// Unlike the console, command output is written in full.
type FileLogger struct {
	logDir   string
	runLog   *os.File
	runFile  string
	tasksDir string
	logLevel string
	mu       sync.Mutex
}

// NewFileLoggerWithDir creates a new FileLogger with a custom log directory.
// Uses default log level "info".
func NewFileLoggerWithDir(logDir string) (*FileLogger, error) {
	return NewFileLoggerWithDirAndLevel(logDir, "info")
}

// NewFileLoggerWithDirAndLevel creates a new FileLogger with a custom log directory and log level.
func NewFileLoggerWithDirAndLevel(logDir string, logLevel string) (*FileLogger, error) {
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	tasksDir := filepath.Join(logDir, "tasks")
	if err := os.MkdirAll(tasksDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create tasks directory: %w", err)
	}

	// Generate timestamped filename: run-YYYYMMDD-HHMMSS.log
	ts := time.Now().Format("20060102-150405")
	runFile := filepath.Join(logDir, fmt.Sprintf("run-%s.log", ts))

	file, err := os.OpenFile(runFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to create run log file: %w", err)
	}

	symlinkPath := filepath.Join(logDir, "latest.log")
	if _, err := os.Lstat(symlinkPath); err == nil {
		if err := os.Remove(symlinkPath); err != nil {
			file.Close()
			return nil, fmt.Errorf("failed to remove old symlink: %w", err)
		}
	}
	if err := os.Symlink(filepath.Base(runFile), symlinkPath); err != nil {
		file.Close()
		return nil, fmt.Errorf("failed to create symlink: %w", err)
	}

	logger := &FileLogger{
		logDir:   logDir,
		runLog:   file,
		runFile:  runFile,
		tasksDir: tasksDir,
		logLevel: normalizeLogLevel(logLevel),
	}

	logger.writeRunLog("=== fixloop Run Log ===\n")
	logger.writeRunLog(fmt.Sprintf("Started at: %s\n\n", time.Now().Format(time.RFC3339)))

	return logger, nil
}

// RunFile returns the path of the current run log.
func (fl *FileLogger) RunFile() string {
	return fl.runFile
}

// shouldLog checks if a message at the given level should be logged.
func (fl *FileLogger) shouldLog(messageLevel string) bool {
	return logLevelToInt(messageLevel) >= logLevelToInt(fl.logLevel)
}

// LogTrace logs a trace-level message (most verbose).
func (fl *FileLogger) LogTrace(message string) {
	fl.logWithLevel("TRACE", message)
}

// LogDebug logs a debug-level message.
func (fl *FileLogger) LogDebug(message string) {
	fl.logWithLevel("DEBUG", message)
}

// LogInfo logs an info-level message.
func (fl *FileLogger) LogInfo(message string) {
	fl.logWithLevel("INFO", message)
}

// LogWarn logs a warning-level message.
func (fl *FileLogger) LogWarn(message string) {
	fl.logWithLevel("WARN", message)
}

// LogError logs an error-level message.
func (fl *FileLogger) LogError(message string) {
	fl.logWithLevel("ERROR", message)
}

func (fl *FileLogger) logWithLevel(level string, message string) {
	if !fl.shouldLog(strings.ToLower(level)) {
		return
	}
	fl.writeRunLog(fmt.Sprintf("[%s] [%s] %s\n", timestamp(), level, message))
}

// LogTaskStart records the task id and description.
func (fl *FileLogger) LogTaskStart(task models.Task) {
	fl.logWithLevel("INFO", fmt.Sprintf("Task %s started: %s", task.ID, task.Description))
}

// LogAttemptStart records the attempt ordinal.
func (fl *FileLogger) LogAttemptStart(task models.Task, attempt, maxAttempts int) {
	fl.logWithLevel("INFO", fmt.Sprintf("Task %s attempt %d/%d", task.ShortID(), attempt, maxAttempts))
}

// LogAttemptResult records the attempt outcome and its full feedback text.
func (fl *FileLogger) LogAttemptResult(task models.Task, record models.AttemptRecord) {
	msg := fmt.Sprintf("Task %s attempt %d: %s (%.1fs)", task.ShortID(), record.Number, record.Outcome, record.Duration.Seconds())
	if record.Feedback != "" {
		msg += "\nFeedback:\n" + record.Feedback
	}
	fl.logWithLevel("INFO", msg)
}

// LogCommandLaunch records each process launch.
func (fl *FileLogger) LogCommandLaunch(inv supervisor.Invocation, launch int) {
	fl.logWithLevel("DEBUG", fmt.Sprintf("Launch %d: %q in %s (timeout %s)", launch, inv.CommandLine, inv.Dir, inv.Timeout))
}

// LogCommandTimeout records a killed launch.
func (fl *FileLogger) LogCommandTimeout(inv supervisor.Invocation, launch int) {
	fl.logWithLevel("WARN", fmt.Sprintf("Launch %d of %q timed out after %s", launch, inv.CommandLine, inv.Timeout))
}

// LogCommandResult records exit code, duration and the complete output.
func (fl *FileLogger) LogCommandResult(res supervisor.Result) {
	msg := fmt.Sprintf("Command %q in %s: %s, exit code %d, %d launch(es), %.1fs",
		res.Command, res.Dir, res.Outcome, res.ExitCode, res.Launches, res.Duration.Seconds())
	if res.Stdout != "" {
		msg += "\n--- stdout ---\n" + strings.TrimRight(res.Stdout, "\n")
	}
	if res.Stderr != "" {
		msg += "\n--- stderr ---\n" + strings.TrimRight(res.Stderr, "\n")
	}

	level := "INFO"
	if !res.Success() {
		level = "WARN"
	}
	fl.logWithLevel(level, msg)
}

// LogGenerationCall records a generation request.
func (fl *FileLogger) LogGenerationCall(attempt, maxAttempts, promptChars int) {
	fl.logWithLevel("INFO", fmt.Sprintf("Generation call %d/%d, prompt %d chars", attempt, maxAttempts, promptChars))
}

// LogGenerationRetry records a retried transport failure.
func (fl *FileLogger) LogGenerationRetry(attempt int, err error, delay time.Duration) {
	fl.logWithLevel("WARN", fmt.Sprintf("Generation call %d failed: %v (retry in %s)", attempt, err, delay))
}

// LogGenerationDone records a successful generation call.
func (fl *FileLogger) LogGenerationDone(attempt int, elapsed time.Duration, outputChars int) {
	fl.logWithLevel("INFO", fmt.Sprintf("Generation call %d returned %d chars in %.1fs", attempt, outputChars, elapsed.Seconds()))
}

// LogFeedbackTrimmed records feedback trimming.
func (fl *FileLogger) LogFeedbackTrimmed(report budget.TrimReport) {
	fl.logWithLevel("INFO", fmt.Sprintf("Feedback trimmed: %d -> %d chars (budget %d, removed %d, dropped %t)",
		report.Before, report.After, report.Budget, report.ErrorsRemoved, report.Dropped))
}

// LogTaskResult logs detailed information about a task.
// It creates a separate log file for each task in the tasks/ subdirectory.
func (fl *FileLogger) LogTaskResult(result models.TaskResult) error {
	fl.logWithLevel("INFO", fmt.Sprintf("Task %s finished: %s after %d attempt(s) in %.1fs",
		result.Task.ShortID(), result.State, result.AttemptsUsed(), result.Duration.Seconds()))

	fl.mu.Lock()
	defer fl.mu.Unlock()

	taskLogPath := filepath.Join(fl.tasksDir, fmt.Sprintf("task-%s.log", result.Task.ShortID()))
	file, err := os.OpenFile(taskLogPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return fmt.Errorf("failed to create task log file: %w", err)
	}
	defer file.Close()

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("=== Task %s ===\n", result.Task.ID))
	sb.WriteString(fmt.Sprintf("Description: %s\n", result.Task.Description))
	sb.WriteString(fmt.Sprintf("State: %s\n", result.State))
	sb.WriteString(fmt.Sprintf("Duration: %.1fs\n", result.Duration.Seconds()))
	sb.WriteString(fmt.Sprintf("Attempts: %d\n", result.AttemptsUsed()))
	sb.WriteString(fmt.Sprintf("Generation calls: %d\n\n", result.GenerationCalls))

	if len(result.Attempts) > 0 {
		sb.WriteString("=== Attempt History ===\n\n")
		for _, a := range result.Attempts {
			sb.WriteString(fmt.Sprintf("#### Attempt %d - %s (%.1fs)\n", a.Number, a.Outcome, a.Duration.Seconds()))
			if a.Feedback != "" {
				sb.WriteString(fmt.Sprintf("Feedback:\n%s\n", a.Feedback))
			}
			sb.WriteString("\n")
		}
	}

	if result.State == models.StateSucceeded {
		sb.WriteString(fmt.Sprintf("Code: %s\nTests: %s\n", result.Artifacts.CodeFile, result.Artifacts.TestFile))
		if result.Artifacts.DesignDoc != "" {
			sb.WriteString(fmt.Sprintf("Design document: %s\n", result.Artifacts.DesignDoc))
		}
		sb.WriteString("\n")
	}

	if result.Error != nil {
		sb.WriteString(fmt.Sprintf("Error:\n%v\n\n", result.Error))
	}

	sb.WriteString(fmt.Sprintf("Completed at: %s\n", time.Now().Format(time.RFC3339)))

	if _, err := file.WriteString(sb.String()); err != nil {
		return fmt.Errorf("failed to write task log: %w", err)
	}
	return nil
}

// LogSummary logs the session summary at INFO level.
func (fl *FileLogger) LogSummary(summary models.SessionSummary) {
	if !fl.shouldLog("info") {
		return
	}

	ts := timestamp()
	fl.writeRunLog(fmt.Sprintf(
		"\n[%s] === SESSION SUMMARY ===\n"+
			"[%s] Total tasks:  %d\n"+
			"[%s] Succeeded:    %d\n"+
			"[%s] Exhausted:    %d\n"+
			"[%s] Aborted:      %d\n"+
			"[%s] Total time:   %.1fs\n"+
			"[%s] Completed at: %s\n",
		ts,
		ts, summary.TotalTasks,
		ts, summary.Succeeded,
		ts, summary.Exhausted,
		ts, summary.Aborted,
		ts, summary.Duration.Seconds(),
		ts, time.Now().Format(time.RFC3339),
	))
}

// Close flushes and closes the run log file.
func (fl *FileLogger) Close() error {
	fl.mu.Lock()
	defer fl.mu.Unlock()

	if fl.runLog != nil {
		if err := fl.runLog.Sync(); err != nil {
			return fmt.Errorf("failed to sync run log: %w", err)
		}
		if err := fl.runLog.Close(); err != nil {
			return fmt.Errorf("failed to close run log: %w", err)
		}
		fl.runLog = nil
	}
	return nil
}

// writeRunLog is a thread-safe helper to write to the run log file.
func (fl *FileLogger) writeRunLog(message string) {
	fl.mu.Lock()
	defer fl.mu.Unlock()

	if fl.runLog != nil {
		fl.runLog.WriteString(message)
		fl.runLog.Sync()
	}
}
