package history

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harrison/fixloop/internal/models"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func sampleResult(description string, state models.EndState) models.TaskResult {
	task := models.NewTask(description)
	result := models.TaskResult{
		Task:            task,
		State:           state,
		Duration:        1500 * time.Millisecond,
		GenerationCalls: 4,
		Attempts: []models.AttemptRecord{
			{Number: 1, Outcome: models.OutcomeBuildFailed, Feedback: "error CS0103", Duration: 700 * time.Millisecond},
			{Number: 2, Outcome: models.OutcomeSuccess, Duration: 800 * time.Millisecond},
		},
	}
	if state == models.StateSucceeded {
		result.Artifacts = models.Artifacts{CodeFile: "/ws/CSProject/Solution.cs", DesignDocHTML: "/ws/DesignDocument.html"}
	}
	return result
}

func TestNewStore(t *testing.T) {
	tests := []struct {
		name    string
		dbPath  string
		wantErr bool
	}{
		{"creates database", filepath.Join(t.TempDir(), "history.db"), false},
		{"in-memory database", ":memory:", false},
		{"creates parent directories", filepath.Join(t.TempDir(), "nested", "dir", "history.db"), false},
		{"invalid path", "/dev/null/history.db", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, err := NewStore(tt.dbPath)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			defer store.Close()

			version, err := store.GetLatestVersion()
			require.NoError(t, err)
			assert.Equal(t, len(migrations), version)
			assert.Equal(t, tt.dbPath, store.Path())
		})
	}
}

func TestMigrationsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")

	first, err := NewStore(path)
	require.NoError(t, err)
	_, err = first.Record(context.Background(), sampleResult("reverse a string", models.StateSucceeded))
	require.NoError(t, err)
	require.NoError(t, first.Close())

	second, err := NewStore(path)
	require.NoError(t, err)
	defer second.Close()

	require.NoError(t, second.ApplyMigrations(context.Background()))
	runs, err := second.List(context.Background(), 0)
	require.NoError(t, err)
	assert.Len(t, runs, 1)
}

func TestRecordAndList(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	ok := sampleResult("reverse a string", models.StateSucceeded)
	id, err := store.Record(ctx, ok)
	require.NoError(t, err)
	assert.Positive(t, id)

	aborted := sampleResult("parse a date", models.StateAborted)
	aborted.Attempts = nil
	aborted.Error = errors.New("failed to write generated files")
	_, err = store.Record(ctx, aborted)
	require.NoError(t, err)

	runs, err := store.List(ctx, 0)
	require.NoError(t, err)
	require.Len(t, runs, 2)

	// Most recent first
	assert.Equal(t, "parse a date", runs[0].Description)
	assert.Equal(t, models.StateAborted, runs[0].State)
	assert.Equal(t, 0, runs[0].AttemptsUsed)
	assert.Equal(t, "failed to write generated files", runs[0].ErrorMessage)

	assert.Equal(t, ok.Task.ID, runs[1].TaskID)
	assert.Equal(t, models.StateSucceeded, runs[1].State)
	assert.Equal(t, 2, runs[1].AttemptsUsed)
	assert.Equal(t, 4, runs[1].GenerationCalls)
	assert.Equal(t, 1500*time.Millisecond, runs[1].Duration)
	assert.Equal(t, "/ws/CSProject/Solution.cs", runs[1].CodeFile)
	assert.Equal(t, "/ws/DesignDocument.html", runs[1].DesignDoc)
	assert.Empty(t, runs[1].ErrorMessage)
	assert.False(t, runs[1].Timestamp.IsZero())
}

func TestListLimit(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := store.Record(ctx, sampleResult("task", models.StateExhausted))
		require.NoError(t, err)
	}

	runs, err := store.List(ctx, 3)
	require.NoError(t, err)
	assert.Len(t, runs, 3)
	assert.Greater(t, runs[0].ID, runs[1].ID)
}

func TestAttempts(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	id, err := store.Record(ctx, sampleResult("reverse a string", models.StateSucceeded))
	require.NoError(t, err)

	attempts, err := store.Attempts(ctx, id)
	require.NoError(t, err)
	require.Len(t, attempts, 2)
	assert.Equal(t, 1, attempts[0].Attempt)
	assert.Equal(t, models.OutcomeBuildFailed, attempts[0].Outcome)
	assert.Equal(t, "error CS0103", attempts[0].Feedback)
	assert.Equal(t, 700*time.Millisecond, attempts[0].Duration)
	assert.Equal(t, models.OutcomeSuccess, attempts[1].Outcome)

	none, err := store.Attempts(ctx, id+100)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestStats(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	for _, st := range []models.EndState{models.StateSucceeded, models.StateSucceeded, models.StateExhausted, models.StateAborted} {
		_, err := store.Record(ctx, sampleResult("task", st))
		require.NoError(t, err)
	}

	stats, err := store.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, Stats{Total: 4, Succeeded: 2, Exhausted: 1, Aborted: 1}, stats)
}

func TestEmptyStore(t *testing.T) {
	store := newTestStore(t)

	runs, err := store.List(context.Background(), 10)
	require.NoError(t, err)
	assert.Empty(t, runs)

	stats, err := store.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Stats{}, stats)
}
