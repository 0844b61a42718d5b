package logger

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"

	"github.com/harrison/fixloop/internal/budget"
	"github.com/harrison/fixloop/internal/models"
	"github.com/harrison/fixloop/internal/supervisor"
)

// ConsoleLogger logs run progress to a writer with timestamps and thread safety.
// All output is prefixed with [HH:MM:SS] timestamps for tracking execution flow.
// It supports log level filtering to control message verbosity.
// Color output is automatically enabled for terminal output (os.Stdout/os.Stderr).
type ConsoleLogger struct {
	writer      io.Writer
	logLevel    string
	mutex       sync.Mutex
	colorOutput bool
	scheme      *colorScheme
}

// NewConsoleLogger creates a ConsoleLogger that writes to the provided io.Writer.
// If writer is nil, messages are silently discarded.
// If logLevel is empty or invalid, defaults to "info".
func NewConsoleLogger(writer io.Writer, logLevel string) *ConsoleLogger {
	return &ConsoleLogger{
		writer:      writer,
		logLevel:    normalizeLogLevel(logLevel),
		colorOutput: isTerminal(writer),
		scheme:      newColorScheme(),
	}
}

// isTerminal checks if the writer is a terminal that supports colors.
// Returns true for os.Stdout and os.Stderr when they are TTYs and NO_COLOR is unset.
func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok || (f != os.Stdout && f != os.Stderr) {
		return false
	}
	if color.NoColor {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// shouldLog checks if a message at the given level should be logged.
func (cl *ConsoleLogger) shouldLog(messageLevel string) bool {
	return logLevelToInt(messageLevel) >= logLevelToInt(cl.logLevel)
}

// LogTrace logs a trace-level message (most verbose).
// Format: "[HH:MM:SS] [TRACE] <message>"
func (cl *ConsoleLogger) LogTrace(message string) {
	cl.logWithLevel("TRACE", message)
}

// LogDebug logs a debug-level message.
func (cl *ConsoleLogger) LogDebug(message string) {
	cl.logWithLevel("DEBUG", message)
}

// LogInfo logs an info-level message.
func (cl *ConsoleLogger) LogInfo(message string) {
	cl.logWithLevel("INFO", message)
}

// LogWarn logs a warning-level message.
func (cl *ConsoleLogger) LogWarn(message string) {
	cl.logWithLevel("WARN", message)
}

// LogError logs an error-level message.
func (cl *ConsoleLogger) LogError(message string) {
	cl.logWithLevel("ERROR", message)
}

// logWithLevel is a helper that logs a message at the specified level if filtering allows it.
func (cl *ConsoleLogger) logWithLevel(level string, message string) {
	if cl.writer == nil || !cl.shouldLog(strings.ToLower(level)) {
		return
	}

	lvl := level
	if cl.colorOutput {
		lvl = cl.scheme.level(level).Sprint(level)
	}
	cl.write(fmt.Sprintf("[%s] [%s] %s\n", timestamp(), lvl, message))
}

// emit writes a level-filtered event line without a level tag.
func (cl *ConsoleLogger) emit(level string, message string) {
	if cl.writer == nil || !cl.shouldLog(level) {
		return
	}
	cl.write(fmt.Sprintf("[%s] %s\n", timestamp(), message))
}

func (cl *ConsoleLogger) write(s string) {
	cl.mutex.Lock()
	defer cl.mutex.Unlock()
	cl.writer.Write([]byte(s))
}

// paint applies c when color output is enabled.
func (cl *ConsoleLogger) paint(c *color.Color, s string) string {
	if !cl.colorOutput {
		return s
	}
	return c.Sprint(s)
}

// LogTaskStart logs the beginning of a task at INFO level.
// Format: "[HH:MM:SS] Starting task <id>: <description>"
func (cl *ConsoleLogger) LogTaskStart(task models.Task) {
	cl.emit("info", fmt.Sprintf("Starting task %s: %s", cl.paint(cl.scheme.bold, task.ShortID()), task.Description))
}

// LogAttemptStart logs the start of an attempt with a progress bar.
// Format: "[HH:MM:SS] Attempt 2 of 10 [==        ]"
func (cl *ConsoleLogger) LogAttemptStart(task models.Task, attempt, maxAttempts int) {
	bar := NewAttemptBar(maxAttempts, 10, cl.colorOutput)
	bar.Update(attempt)
	cl.emit("info", fmt.Sprintf("Attempt %d of %d %s", attempt, maxAttempts, bar.Render()))
}

// LogAttemptResult logs how an attempt ended. Failures include the feedback
// that will be sent to the next generation round, clipped for readability.
func (cl *ConsoleLogger) LogAttemptResult(task models.Task, record models.AttemptRecord) {
	outcome := cl.paint(cl.scheme.outcome(record.Outcome), string(record.Outcome))
	cl.emit("info", fmt.Sprintf("Attempt %d: %s (%s)", record.Number, outcome, formatDuration(record.Duration)))

	if record.Outcome.Fixable() && record.Feedback != "" && cl.shouldLog("debug") {
		cl.emit("debug", "Feedback:\n"+clip(record.Feedback, maxConsoleOutput))
	}
}

// LogCommandLaunch logs each process launch at DEBUG level.
func (cl *ConsoleLogger) LogCommandLaunch(inv supervisor.Invocation, launch int) {
	limit := inv.MaxRetries
	if limit < 1 {
		limit = 1
	}
	cl.emit("debug", fmt.Sprintf("Running %q in %s (launch %d/%d, timeout %s)",
		inv.CommandLine, inv.Dir, launch, limit, formatDuration(inv.Timeout)))
}

// LogCommandTimeout logs a launch that was killed at its deadline.
func (cl *ConsoleLogger) LogCommandTimeout(inv supervisor.Invocation, launch int) {
	cl.logWithLevel("WARN", fmt.Sprintf("%q timed out after %s (launch %d)", inv.CommandLine, formatDuration(inv.Timeout), launch))
}

// LogCommandResult logs a finished command: exit code or timeout, duration,
// and on failure the captured output.
func (cl *ConsoleLogger) LogCommandResult(res supervisor.Result) {
	switch res.Outcome {
	case supervisor.OutcomeSuccess:
		cl.emit("info", fmt.Sprintf("%q %s (%s)", res.Command, cl.paint(cl.scheme.success, "succeeded"), formatDuration(res.Duration)))
	case supervisor.OutcomeTimeout:
		cl.logWithLevel("WARN", fmt.Sprintf("%q timed out on all %d launch(es)", res.Command, res.Launches))
	default:
		msg := fmt.Sprintf("%q %s with exit code %d (%s)", res.Command, cl.paint(cl.scheme.fail, "failed"), res.ExitCode, formatDuration(res.Duration))
		if out := strings.TrimSpace(res.Output); out != "" {
			msg += "\n" + clip(out, maxConsoleOutput)
		}
		cl.logWithLevel("WARN", msg)
	}
}

// LogGenerationCall logs a request to the generation backend.
func (cl *ConsoleLogger) LogGenerationCall(attempt, maxAttempts, promptChars int) {
	if attempt == 1 {
		cl.emit("info", fmt.Sprintf("Asking generation backend (prompt %d chars)", promptChars))
		return
	}
	cl.emit("info", fmt.Sprintf("Asking generation backend, try %d of %d", attempt, maxAttempts))
}

// LogGenerationRetry logs a transport failure that will be retried.
func (cl *ConsoleLogger) LogGenerationRetry(attempt int, err error, delay time.Duration) {
	cl.logWithLevel("WARN", fmt.Sprintf("Generation try %d failed: %v; retrying in %s", attempt, err, formatDuration(delay)))
}

// LogGenerationDone logs a successful generation round-trip at DEBUG level.
func (cl *ConsoleLogger) LogGenerationDone(attempt int, elapsed time.Duration, outputChars int) {
	cl.emit("debug", fmt.Sprintf("Generation returned %d chars in %s", outputChars, formatDuration(elapsed)))
}

// LogFeedbackTrimmed logs that error feedback was shortened to fit the prompt budget.
func (cl *ConsoleLogger) LogFeedbackTrimmed(report budget.TrimReport) {
	if report.Dropped {
		cl.logWithLevel("DEBUG", fmt.Sprintf("Feedback dropped: %d chars exceed budget of %d", report.Before, report.Budget))
		return
	}
	cl.logWithLevel("DEBUG", fmt.Sprintf("Feedback trimmed by %d chars to fit budget of %d", report.ErrorsRemoved, report.Budget))
}

// LogTaskResult logs the end state of a task at INFO level (ERROR when aborted).
// Returns an error if the write failed.
func (cl *ConsoleLogger) LogTaskResult(result models.TaskResult) error {
	if cl.writer == nil {
		return nil
	}

	state := cl.paint(cl.scheme.state(result.State), string(result.State))
	var lines []string

	switch result.State {
	case models.StateSucceeded:
		lines = append(lines, fmt.Sprintf("Task %s %s after %d attempt(s) in %s", result.Task.ShortID(), state, result.AttemptsUsed(), formatDuration(result.Duration)))
		lines = append(lines, "  Code:  "+result.Artifacts.CodeFile)
		lines = append(lines, "  Tests: "+result.Artifacts.TestFile)
		if result.Artifacts.DesignDocHTML != "" {
			lines = append(lines, "  Design document: "+result.Artifacts.DesignDocHTML)
		}
	case models.StateExhausted:
		lines = append(lines, fmt.Sprintf("Task %s %s: maximum attempts (%d) reached, unable to complete: %s", result.Task.ShortID(), state, result.AttemptsUsed(), result.Task.Description))
	default:
		if !cl.shouldLog("error") {
			return nil
		}
		lines = append(lines, fmt.Sprintf("Task %s %s: %v", result.Task.ShortID(), state, result.Error))
		cl.mutex.Lock()
		defer cl.mutex.Unlock()
		_, err := cl.writer.Write([]byte(prefixLines(lines)))
		return err
	}

	if !cl.shouldLog("info") {
		return nil
	}
	cl.mutex.Lock()
	defer cl.mutex.Unlock()
	_, err := cl.writer.Write([]byte(prefixLines(lines)))
	return err
}

// LogSummary logs the session summary at INFO level.
func (cl *ConsoleLogger) LogSummary(summary models.SessionSummary) {
	if cl.writer == nil || !cl.shouldLog("info") {
		return
	}

	lines := []string{
		cl.paint(cl.scheme.bold, "=== Session Summary ==="),
		fmt.Sprintf("Total tasks: %d", summary.TotalTasks),
		cl.paint(cl.scheme.success, fmt.Sprintf("Succeeded: %d", summary.Succeeded)),
	}
	if summary.Exhausted > 0 {
		lines = append(lines, cl.paint(cl.scheme.warn, fmt.Sprintf("Exhausted: %d", summary.Exhausted)))
	} else {
		lines = append(lines, fmt.Sprintf("Exhausted: %d", summary.Exhausted))
	}
	if summary.Aborted > 0 {
		lines = append(lines, cl.paint(cl.scheme.fail, fmt.Sprintf("Aborted: %d", summary.Aborted)))
	} else {
		lines = append(lines, fmt.Sprintf("Aborted: %d", summary.Aborted))
	}
	lines = append(lines, fmt.Sprintf("Duration: %s", formatDuration(summary.Duration)))

	cl.write(prefixLines(lines))
}

// prefixLines timestamps each line.
func prefixLines(lines []string) string {
	ts := timestamp()
	var sb strings.Builder
	for _, l := range lines {
		sb.WriteString(fmt.Sprintf("[%s] %s\n", ts, l))
	}
	return sb.String()
}
