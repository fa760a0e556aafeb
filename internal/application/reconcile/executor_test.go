package reconcile

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eshaffer321/bank-reconciliation/internal/domain/matching"
	"github.com/eshaffer321/bank-reconciliation/internal/domain/reconciliation"
	"github.com/eshaffer321/bank-reconciliation/internal/infrastructure/storage"
)

func newTestExecutor(t *testing.T) (*Executor, *storage.MockRepository) {
	t.Helper()
	repo := storage.NewMockRepository()
	seedStatement(t, repo, "stmt-1", "acc-1")

	exec := NewExecutor(repo, repo, nil)
	exec.now = func() time.Time { return time.Date(2024, 7, 1, 12, 0, 0, 0, time.UTC) }
	ids := 0
	exec.newID = func() string {
		ids++
		return fmt.Sprintf("match-%d", ids)
	}
	return exec, repo
}

func TestExecutor_Apply(t *testing.T) {
	// Arrange
	exec, repo := newTestExecutor(t)
	ctx := context.Background()
	items := []Acceptance{
		AcceptSuggestion(matching.MatchSuggestion{BankRecordID: "stmt-1/b-1", CandidateID: "stmt-1/je-1", Score: 85}),
		AcceptMulti(matching.MultiTransactionMatch{
			BankRecordID:  "stmt-1/b-3",
			CandidateIDs:  []string{"stmt-1/je-3", "stmt-1/je-4"},
			CombinedScore: 60,
			Explanation:   "2 transactions",
		}),
	}

	// Act
	result, err := exec.Apply(ctx, "stmt-1", "tester", items)

	// Assert
	require.NoError(t, err)
	assert.Equal(t, 2, result.Matched)
	assert.Zero(t, result.Skipped)
	assert.Empty(t, result.Errors)
	assert.NoError(t, result.Err())

	require.Len(t, result.Matches, 2)
	first := result.Matches[0]
	assert.Equal(t, "match-1", first.ID)
	assert.Equal(t, "stmt-1", first.StatementID)
	assert.Equal(t, "acc-1", first.AccountID)
	assert.Equal(t, reconciliation.MatchSuggested, first.MatchType)
	assert.InDelta(t, 85, first.Score, 0.001)
	assert.Equal(t, time.Date(2024, 7, 1, 12, 0, 0, 0, time.UTC), first.MatchedAt)
	assert.Equal(t, "2 transactions", result.Matches[1].Notes)

	assert.Equal(t, []reconciliation.StatementStatus{reconciliation.StatusInProgress}, repo.StatusUpdates)
}

func TestExecutor_ApplyPartialFailure(t *testing.T) {
	// Arrange
	exec, repo := newTestExecutor(t)
	repo.PersistMatchErrs["stmt-1/b-2"] = assert.AnError
	items := []Acceptance{
		{BankRecordID: "stmt-1/b-1", CandidateIDs: []string{"stmt-1/je-1"}},
		{BankRecordID: "stmt-1/b-2", CandidateIDs: []string{"stmt-1/je-2"}},
		{BankRecordID: "stmt-1/b-4", CandidateIDs: []string{"stmt-1/je-1"}},
	}

	// Act
	result, err := exec.Apply(context.Background(), "stmt-1", "", items)

	// Assert: one failure does not stop the others
	require.NoError(t, err)
	assert.Equal(t, 1, result.Matched)
	require.Len(t, result.Errors, 2)
	assert.Contains(t, result.Errors[0], "stmt-1/b-2")
	assert.Contains(t, result.Errors[1], "stmt-1/b-4")
	assert.ErrorIs(t, result.Err(), assert.AnError)
	assert.ErrorIs(t, result.Err(), reconciliation.ErrCandidateUnavailable)
	assert.Equal(t, 3, repo.PersistMatchCalls)
}

func TestExecutor_ApplySkipsReconciled(t *testing.T) {
	exec, repo := newTestExecutor(t)
	ctx := context.Background()
	item := Acceptance{BankRecordID: "stmt-1/b-1", CandidateIDs: []string{"stmt-1/je-1"}}

	_, err := exec.Apply(ctx, "stmt-1", "", []Acceptance{item})
	require.NoError(t, err)

	result, err := exec.Apply(ctx, "stmt-1", "", []Acceptance{item})

	require.NoError(t, err)
	assert.Zero(t, result.Matched)
	assert.Equal(t, 1, result.Skipped)
	assert.Empty(t, result.Errors)

	// Status moves once, on the first apply only
	assert.Len(t, repo.StatusUpdates, 1)
}

func TestExecutor_ApplyUnknownStatement(t *testing.T) {
	exec, repo := newTestExecutor(t)

	result, err := exec.Apply(context.Background(), "missing", "", []Acceptance{
		{BankRecordID: "stmt-1/b-1", CandidateIDs: []string{"stmt-1/je-1"}},
	})

	assert.Nil(t, result)
	assert.ErrorIs(t, err, reconciliation.ErrNotFound)
	assert.Zero(t, repo.PersistMatchCalls)
}

func TestExecutor_ApplyCancelled(t *testing.T) {
	exec, repo := newTestExecutor(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := exec.Apply(ctx, "stmt-1", "", []Acceptance{
		{BankRecordID: "stmt-1/b-1", CandidateIDs: []string{"stmt-1/je-1"}},
	})

	assert.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, result)
	assert.Zero(t, result.Matched)
	assert.Zero(t, repo.PersistMatchCalls)
}

func TestExecutor_ApplyStatusUpdateFailure(t *testing.T) {
	exec, repo := newTestExecutor(t)
	repo.UpdateStatusErr = assert.AnError

	result, err := exec.Apply(context.Background(), "stmt-1", "", []Acceptance{
		{BankRecordID: "stmt-1/b-1", CandidateIDs: []string{"stmt-1/je-1"}},
	})

	assert.ErrorIs(t, err, assert.AnError)
	require.NotNil(t, result)
	assert.Equal(t, 1, result.Matched)
}

func TestExecutor_ApplyInProgressStatementKeepsStatus(t *testing.T) {
	exec, repo := newTestExecutor(t)
	ctx := context.Background()
	require.NoError(t, repo.UpdateStatementStatus(ctx, "stmt-1", reconciliation.StatusInProgress))

	_, err := exec.Apply(ctx, "stmt-1", "", []Acceptance{
		{BankRecordID: "stmt-1/b-1", CandidateIDs: []string{"stmt-1/je-1"}},
	})

	require.NoError(t, err)
	assert.Len(t, repo.StatusUpdates, 1, "only the setup call should update status")
}

func TestExecutor_Unmatch(t *testing.T) {
	exec, repo := newTestExecutor(t)
	ctx := context.Background()
	_, err := exec.Apply(ctx, "stmt-1", "", []Acceptance{
		{BankRecordID: "stmt-1/b-1", CandidateIDs: []string{"stmt-1/je-1"}},
	})
	require.NoError(t, err)

	match, err := exec.Unmatch(ctx, "stmt-1/b-1")

	require.NoError(t, err)
	assert.Equal(t, "match-1", match.ID)
	lt, err := repo.GetLedgerTransaction(ctx, "stmt-1/je-1")
	require.NoError(t, err)
	assert.False(t, lt.Reconciled)

	_, err = exec.Unmatch(ctx, "stmt-1/b-1")
	assert.ErrorIs(t, err, reconciliation.ErrNoMatch)
}
