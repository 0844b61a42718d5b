package models

import (
	"errors"
	"testing"
)

func TestTaskValidation(t *testing.T) {
	tests := []struct {
		name    string
		task    Task
		wantErr bool
	}{
		{
			name:    "valid task",
			task:    NewTask("Reverse a string"),
			wantErr: false,
		},
		{
			name:    "empty description",
			task:    Task{ID: "1"},
			wantErr: true,
		},
		{
			name:    "whitespace description",
			task:    Task{ID: "1", Description: " \t\n"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.task.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestNewTask(t *testing.T) {
	a := NewTask("  Reverse a string \n")
	b := NewTask("Reverse a string")

	if a.Description != "Reverse a string" {
		t.Errorf("expected trimmed description, got %q", a.Description)
	}
	if a.ID == "" || a.ID == b.ID {
		t.Errorf("expected distinct non-empty IDs, got %q and %q", a.ID, b.ID)
	}
	if a.SubmittedAt.IsZero() {
		t.Error("expected SubmittedAt to be set")
	}
	if got := a.ShortID(); len(got) != 8 || got != a.ID[:8] {
		t.Errorf("ShortID() = %q", got)
	}
	if got := (Task{ID: "abc"}).ShortID(); got != "abc" {
		t.Errorf("ShortID() of short id = %q, want abc", got)
	}
}

func TestRetryBudget(t *testing.T) {
	b := NewRetryBudget("attempts", 3)

	for want := 1; want <= 3; want++ {
		n, ok := b.Take()
		if !ok || n != want {
			t.Fatalf("Take() = (%d, %v), want (%d, true)", n, ok, want)
		}
		if b.IsLast() != (want == 3) {
			t.Errorf("IsLast() after take %d = %v", want, b.IsLast())
		}
	}

	if !b.Exhausted() {
		t.Error("expected budget to be exhausted")
	}
	if n, ok := b.Take(); ok || n != 3 {
		t.Errorf("Take() on exhausted budget = (%d, %v), want (3, false)", n, ok)
	}
	if b.Used() != 3 || b.Limit() != 3 {
		t.Errorf("Used()/Limit() = %d/%d, want 3/3", b.Used(), b.Limit())
	}
	if got := b.String(); got != "attempts 3/3" {
		t.Errorf("String() = %q", got)
	}
}

func TestRetryBudgetMinimumOne(t *testing.T) {
	for _, limit := range []int{0, -5} {
		b := NewRetryBudget("call", limit)
		if b.Limit() != 1 {
			t.Errorf("NewRetryBudget(%d).Limit() = %d, want 1", limit, b.Limit())
		}
		if _, ok := b.Take(); !ok {
			t.Errorf("NewRetryBudget(%d) should allow one use", limit)
		}
	}
}

func TestRetryBudgetsIndependent(t *testing.T) {
	call := NewRetryBudget("call", 1)
	loop := NewRetryBudget("loop", 2)

	call.Take()
	if loop.Used() != 0 {
		t.Errorf("taking from one budget changed another: loop used %d", loop.Used())
	}
}

func TestAttemptOutcomeFixable(t *testing.T) {
	tests := []struct {
		outcome AttemptOutcome
		want    bool
	}{
		{OutcomeSuccess, false},
		{OutcomeBuildFailed, true},
		{OutcomeTestFailed, true},
		{OutcomeTimedOut, true},
		{OutcomeFatalError, false},
	}
	for _, tt := range tests {
		if got := tt.outcome.Fixable(); got != tt.want {
			t.Errorf("%s.Fixable() = %v, want %v", tt.outcome, got, tt.want)
		}
	}
}

func TestTaskResultHelpers(t *testing.T) {
	var empty TaskResult
	if empty.AttemptsUsed() != 0 || empty.LastFeedback() != "" {
		t.Error("expected zero attempts and empty feedback")
	}

	r := TaskResult{Attempts: []AttemptRecord{
		{Number: 1, Outcome: OutcomeBuildFailed, Feedback: "first"},
		{Number: 2, Outcome: OutcomeTestFailed, Feedback: "second"},
	}}
	if r.AttemptsUsed() != 2 {
		t.Errorf("AttemptsUsed() = %d, want 2", r.AttemptsUsed())
	}
	if r.LastFeedback() != "second" {
		t.Errorf("LastFeedback() = %q, want second", r.LastFeedback())
	}
}

func TestSessionSummaryAdd(t *testing.T) {
	var s SessionSummary
	s.Add(TaskResult{State: StateSucceeded})
	s.Add(TaskResult{State: StateExhausted})
	s.Add(TaskResult{State: StateAborted, Error: errors.New("boom")})
	s.Add(TaskResult{State: StateSucceeded})

	if s.TotalTasks != 4 || s.Succeeded != 2 || s.Exhausted != 1 || s.Aborted != 1 {
		t.Errorf("unexpected summary: %+v", s)
	}
}
