package models

import "time"

// AttemptOutcome classifies how a single attempt ended.
type AttemptOutcome string

// Attempt outcomes
const (
	OutcomeSuccess     AttemptOutcome = "SUCCESS"      // Build and tests passed
	OutcomeBuildFailed AttemptOutcome = "BUILD_FAILED" // Build exited non-zero or timed out
	OutcomeTestFailed  AttemptOutcome = "TEST_FAILED"  // Tests exited non-zero
	OutcomeTimedOut    AttemptOutcome = "TIMED_OUT"    // Tests timed out after process retries
	OutcomeFatalError  AttemptOutcome = "FATAL_ERROR"  // Attempt never reached a verifiable state
)

// Fixable reports whether the outcome advances the loop to a regeneration round.
func (o AttemptOutcome) Fixable() bool {
	switch o {
	case OutcomeBuildFailed, OutcomeTestFailed, OutcomeTimedOut:
		return true
	default:
		return false
	}
}

// EndState is one of the three user-visible terminal states of a task.
type EndState string

// Task end states
const (
	StateSucceeded EndState = "SUCCEEDED" // Tests passed; artifacts are in place
	StateExhausted EndState = "EXHAUSTED" // Every attempt failed; expected, reportable outcome
	StateAborted   EndState = "ABORTED"   // Fatal error; the task stopped early
)

// AttemptRecord summarises one attempt. Artifacts are not kept; only the
// ordinal, outcome and (truncated) feedback text survive the attempt.
type AttemptRecord struct {
	Number   int            // 1-based attempt ordinal
	Outcome  AttemptOutcome // How the attempt ended
	Feedback string         // Failure text carried into the next generation request
	Duration time.Duration  // Wall time spent in the attempt
}

// Artifacts lists the files a successful task leaves behind.
type Artifacts struct {
	CodeFile      string // Generated source file
	TestFile      string // Generated test file
	DesignDoc     string // Design document (Markdown), empty if generation failed
	DesignDocHTML string // Design document (HTML), empty if generation failed
}

// TaskResult is the outcome of running the attempt loop for one task.
type TaskResult struct {
	Task            Task            // The task that was executed
	State           EndState        // Terminal state
	Attempts        []AttemptRecord // One record per attempt that reached build or test
	Artifacts       Artifacts       // Artifact locations (meaningful on success)
	Error           error           // Cause of an aborted task
	Duration        time.Duration   // Total time for the task
	GenerationCalls int             // Number of Gateway.Generate calls issued
}

// AttemptsUsed returns the number of attempts consumed by the task.
func (r TaskResult) AttemptsUsed() int {
	return len(r.Attempts)
}

// LastFeedback returns the feedback of the final attempt, if any.
func (r TaskResult) LastFeedback() string {
	if len(r.Attempts) == 0 {
		return ""
	}
	return r.Attempts[len(r.Attempts)-1].Feedback
}

// SessionSummary aggregates task results for one interactive session.
type SessionSummary struct {
	TotalTasks int           // Tasks processed
	Succeeded  int           // Tasks that ended in StateSucceeded
	Exhausted  int           // Tasks that ended in StateExhausted
	Aborted    int           // Tasks that ended in StateAborted
	Duration   time.Duration // Session wall time
}

// Add folds a task result into the summary.
func (s *SessionSummary) Add(r TaskResult) {
	s.TotalTasks++
	switch r.State {
	case StateSucceeded:
		s.Succeeded++
	case StateExhausted:
		s.Exhausted++
	case StateAborted:
		s.Aborted++
	}
}
