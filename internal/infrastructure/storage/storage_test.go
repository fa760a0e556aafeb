package storage

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eshaffer321/bank-reconciliation/internal/domain/matching"
	"github.com/eshaffer321/bank-reconciliation/internal/domain/reconciliation"
)

// forEachRepository runs fn against the SQLite store and the in-memory mock,
// so both implementations are held to the same behavior.
func forEachRepository(t *testing.T, fn func(t *testing.T, repo Repository)) {
	t.Run("sqlite", func(t *testing.T) {
		tmpDB := createTempDB(t)
		defer os.Remove(tmpDB)

		store, err := NewStorage(tmpDB)
		require.NoError(t, err)
		defer store.Close()

		fn(t, store)
	})
	t.Run("mock", func(t *testing.T) {
		fn(t, NewMockRepository())
	})
}

func day(d int) time.Time {
	return time.Date(2024, 6, d, 0, 0, 0, 0, time.UTC)
}

func seed(t *testing.T, repo Repository) {
	t.Helper()
	ctx := context.Background()

	stmt := &reconciliation.Statement{
		ID:             "stmt-1",
		AccountID:      "acc-1",
		PeriodStart:    day(1),
		PeriodEnd:      day(30),
		OpeningBalance: decimal.NewFromInt(5000),
		ClosingBalance: decimal.NewFromInt(3000),
	}
	require.NoError(t, repo.ImportStatement(ctx, stmt, []matching.BankRecord{
		{ID: "b-2", Date: day(20), Description: "Rent", Debit: decimal.NewFromInt(1000)},
		{ID: "b-1", Date: day(15), Description: "ACME", Reference: "REF-1", Debit: decimal.RequireFromString("1000.50")},
	}))

	n, err := repo.ImportLedgerTransactions(ctx, "acc-1", []map[string]any{
		{"id": "je-1", "date": "2024-06-15", "description": "ACME invoice", "amount": "1000.50"},
		{"id": "je-2", "date": "2024-06-19", "amount": 600},
		{"id": "je-3", "date": "2024-06-20", "amount": 400},
		{"id": "je-old", "date": "2024-01-01", "amount": 1},
		{"id": "je-undated", "amount": 5},
	})
	require.NoError(t, err)
	require.Equal(t, 5, n)

	_, err = repo.ImportLedgerTransactions(ctx, "acc-2", []map[string]any{
		{"id": "other-1", "date": "2024-06-15", "amount": "1000.50"},
	})
	require.NoError(t, err)
}

func candidateIDs(cands []matching.CandidateRecord) []string {
	ids := make([]string, len(cands))
	for i, c := range cands {
		ids[i] = c.ID
	}
	return ids
}

func TestRepository_StatementRoundTrip(t *testing.T) {
	forEachRepository(t, func(t *testing.T, repo Repository) {
		ctx := context.Background()
		seed(t, repo)

		stmt, err := repo.FetchStatement(ctx, "stmt-1")
		require.NoError(t, err)
		assert.Equal(t, "acc-1", stmt.AccountID)
		assert.Equal(t, reconciliation.StatusUploaded, stmt.Status)
		assert.True(t, stmt.PeriodStart.Equal(day(1)))
		assert.True(t, stmt.PeriodEnd.Equal(day(30)))
		assert.True(t, stmt.ClosingBalance.Equal(decimal.NewFromInt(3000)))

		_, err = repo.FetchStatement(ctx, "nope")
		assert.ErrorIs(t, err, reconciliation.ErrNotFound)

		// Statement order is preserved for the full listing
		all, err := repo.ListBankRecords(ctx, "stmt-1")
		require.NoError(t, err)
		require.Len(t, all, 2)
		assert.Equal(t, "b-2", all[0].ID)
		assert.Equal(t, "stmt-1", all[0].StatementID)
		assert.Equal(t, "acc-1", all[0].AccountID)

		// Unmatched records come back ordered by date
		open, err := repo.FetchUnmatchedBankRecords(ctx, reconciliation.Scope{StatementID: "stmt-1"})
		require.NoError(t, err)
		require.Len(t, open, 2)
		assert.Equal(t, "b-1", open[0].ID)
		assert.True(t, open[0].Debit.Equal(decimal.RequireFromString("1000.50")))
		assert.Equal(t, "REF-1", open[0].Reference)

		scoped, err := repo.FetchUnmatchedBankRecords(ctx, reconciliation.Scope{
			StatementID: "stmt-1",
			DateFrom:    day(16),
		})
		require.NoError(t, err)
		require.Len(t, scoped, 1)
		assert.Equal(t, "b-2", scoped[0].ID)
	})
}

func TestRepository_StatusUpdatesAndListing(t *testing.T) {
	forEachRepository(t, func(t *testing.T, repo Repository) {
		ctx := context.Background()
		seed(t, repo)

		require.NoError(t, repo.UpdateStatementStatus(ctx, "stmt-1", reconciliation.StatusInProgress))

		open, err := repo.ListStatements(ctx, reconciliation.StatusUploaded, reconciliation.StatusInProgress)
		require.NoError(t, err)
		require.Len(t, open, 1)
		assert.Equal(t, reconciliation.StatusInProgress, open[0].Status)

		done, err := repo.ListStatements(ctx, reconciliation.StatusReconciled)
		require.NoError(t, err)
		assert.Empty(t, done)

		err = repo.UpdateStatementStatus(ctx, "missing", reconciliation.StatusReconciled)
		assert.ErrorIs(t, err, reconciliation.ErrNotFound)
	})
}

func TestRepository_CandidateWindow(t *testing.T) {
	forEachRepository(t, func(t *testing.T, repo Repository) {
		ctx := context.Background()
		seed(t, repo)

		cands, err := repo.FetchUnmatchedCandidateRecords(ctx, "acc-1", day(1), day(30))
		require.NoError(t, err)

		// Undated rows sort first and are always included; other accounts never are
		assert.Equal(t, []string{"je-undated", "je-1", "je-2", "je-3"}, candidateIDs(cands))

		je1 := cands[1]
		require.NotNil(t, je1.Date)
		assert.True(t, je1.Date.Equal(day(15)))
		assert.Equal(t, "ACME invoice", je1.Description)
		require.True(t, je1.Amount.Valid)
		assert.Equal(t, "1000.5", je1.Amount.Decimal.String())

		all, err := repo.FetchUnmatchedCandidateRecords(ctx, "acc-1", time.Time{}, time.Time{})
		require.NoError(t, err)
		assert.Len(t, all, 5)
	})
}

func TestRepository_ImportRejectsRecordsWithoutID(t *testing.T) {
	forEachRepository(t, func(t *testing.T, repo Repository) {
		n, err := repo.ImportLedgerTransactions(context.Background(), "acc-1", []map[string]any{
			{"id": "ok", "amount": 1},
			{"amount": 2},
		})

		assert.Equal(t, 1, n)
		assert.Error(t, err)

		lt, err := repo.GetLedgerTransaction(context.Background(), "ok")
		require.NoError(t, err)
		assert.Equal(t, "acc-1", lt.AccountID)
		assert.False(t, lt.Reconciled)
	})
}

func TestRepository_PersistAndReverseMatch(t *testing.T) {
	forEachRepository(t, func(t *testing.T, repo Repository) {
		// Arrange
		ctx := context.Background()
		seed(t, repo)
		match := &reconciliation.Match{
			ID:           "m-1",
			StatementID:  "stmt-1",
			AccountID:    "acc-1",
			BankRecordID: "b-2",
			CandidateIDs: []string{"je-2", "je-3"},
			MatchType:    reconciliation.MatchSuggested,
			Score:        72.5,
			MatchedAt:    time.Date(2024, 7, 1, 9, 30, 0, 0, time.UTC),
			MatchedBy:    "scheduler",
			Notes:        "2 transactions",
		}

		// Act
		require.NoError(t, repo.PersistMatch(ctx, match))

		// Assert: both sides are reconciled
		open, err := repo.FetchUnmatchedBankRecords(ctx, reconciliation.Scope{StatementID: "stmt-1"})
		require.NoError(t, err)
		require.Len(t, open, 1)
		assert.Equal(t, "b-1", open[0].ID)

		cands, err := repo.FetchUnmatchedCandidateRecords(ctx, "acc-1", day(1), day(30))
		require.NoError(t, err)
		assert.Equal(t, []string{"je-undated", "je-1"}, candidateIDs(cands))

		lt, err := repo.GetLedgerTransaction(ctx, "je-2")
		require.NoError(t, err)
		assert.True(t, lt.Reconciled)
		assert.Equal(t, "b-2", lt.MatchedBankRecordID)

		all, err := repo.ListBankRecords(ctx, "stmt-1")
		require.NoError(t, err)
		assert.True(t, all[0].Reconciled)
		assert.Equal(t, []string{"je-2", "je-3"}, all[0].MatchedCandidateIDs)

		got, err := repo.GetMatch(ctx, "b-2")
		require.NoError(t, err)
		assert.Equal(t, "m-1", got.ID)
		assert.Equal(t, []string{"je-2", "je-3"}, got.CandidateIDs)
		assert.Equal(t, reconciliation.MatchSuggested, got.MatchType)
		assert.InDelta(t, 72.5, got.Score, 0.001)
		assert.True(t, got.MatchedAt.Equal(match.MatchedAt))

		matches, err := repo.ListMatches(ctx, "stmt-1")
		require.NoError(t, err)
		require.Len(t, matches, 1)

		// Act: reverse
		reversed, err := repo.ReversePersistedMatch(ctx, "b-2")

		// Assert: everything is open again
		require.NoError(t, err)
		assert.Equal(t, "m-1", reversed.ID)
		assert.Equal(t, []string{"je-2", "je-3"}, reversed.CandidateIDs)

		open, err = repo.FetchUnmatchedBankRecords(ctx, reconciliation.Scope{StatementID: "stmt-1"})
		require.NoError(t, err)
		assert.Len(t, open, 2)

		cands, err = repo.FetchUnmatchedCandidateRecords(ctx, "acc-1", day(1), day(30))
		require.NoError(t, err)
		assert.Len(t, cands, 4)

		_, err = repo.GetMatch(ctx, "b-2")
		assert.ErrorIs(t, err, reconciliation.ErrNoMatch)

		_, err = repo.ReversePersistedMatch(ctx, "b-2")
		assert.ErrorIs(t, err, reconciliation.ErrNoMatch)

		_, err = repo.ReversePersistedMatch(ctx, "missing")
		assert.ErrorIs(t, err, reconciliation.ErrNotFound)
	})
}

func TestRepository_PersistMatchIsAtomic(t *testing.T) {
	forEachRepository(t, func(t *testing.T, repo Repository) {
		ctx := context.Background()
		seed(t, repo)

		require.NoError(t, repo.PersistMatch(ctx, &reconciliation.Match{
			ID: "m-1", StatementID: "stmt-1", AccountID: "acc-1",
			BankRecordID: "b-1", CandidateIDs: []string{"je-1"},
			MatchType: reconciliation.MatchManual, MatchedAt: day(30),
		}))

		// je-1 is taken, so je-2 must not be reconciled either
		err := repo.PersistMatch(ctx, &reconciliation.Match{
			ID: "m-2", StatementID: "stmt-1", AccountID: "acc-1",
			BankRecordID: "b-2", CandidateIDs: []string{"je-2", "je-1"},
			MatchType: reconciliation.MatchManual, MatchedAt: day(30),
		})
		assert.ErrorIs(t, err, reconciliation.ErrCandidateUnavailable)

		lt, err := repo.GetLedgerTransaction(ctx, "je-2")
		require.NoError(t, err)
		assert.False(t, lt.Reconciled)

		open, err := repo.FetchUnmatchedBankRecords(ctx, reconciliation.Scope{StatementID: "stmt-1"})
		require.NoError(t, err)
		require.Len(t, open, 1)
		assert.Equal(t, "b-2", open[0].ID)

		_, err = repo.GetMatch(ctx, "b-2")
		assert.ErrorIs(t, err, reconciliation.ErrNoMatch)
	})
}

func TestRepository_PersistMatchErrors(t *testing.T) {
	forEachRepository(t, func(t *testing.T, repo Repository) {
		ctx := context.Background()
		seed(t, repo)

		base := reconciliation.Match{
			ID: "m-1", StatementID: "stmt-1", AccountID: "acc-1",
			BankRecordID: "b-1", CandidateIDs: []string{"je-1"},
			MatchType: reconciliation.MatchManual, MatchedAt: day(30),
		}
		first := base
		require.NoError(t, repo.PersistMatch(ctx, &first))

		again := base
		again.ID = "m-2"
		assert.ErrorIs(t, repo.PersistMatch(ctx, &again), reconciliation.ErrAlreadyReconciled)

		missingBank := base
		missingBank.ID, missingBank.BankRecordID = "m-3", "nope"
		assert.ErrorIs(t, repo.PersistMatch(ctx, &missingBank), reconciliation.ErrNotFound)

		otherAccount := base
		otherAccount.ID, otherAccount.BankRecordID, otherAccount.CandidateIDs = "m-4", "b-2", []string{"other-1"}
		assert.ErrorIs(t, repo.PersistMatch(ctx, &otherAccount), reconciliation.ErrCandidateUnavailable)

		noCandidates := base
		noCandidates.ID, noCandidates.BankRecordID, noCandidates.CandidateIDs = "m-5", "b-2", nil
		assert.ErrorIs(t, repo.PersistMatch(ctx, &noCandidates), reconciliation.ErrInvalidMatch)
	})
}

func TestRepository_ReimportKeepsReconciledRows(t *testing.T) {
	forEachRepository(t, func(t *testing.T, repo Repository) {
		ctx := context.Background()
		seed(t, repo)

		require.NoError(t, repo.PersistMatch(ctx, &reconciliation.Match{
			ID: "m-1", StatementID: "stmt-1", AccountID: "acc-1",
			BankRecordID: "b-1", CandidateIDs: []string{"je-1"},
			MatchType: reconciliation.MatchManual, MatchedAt: day(30),
		}))

		_, err := repo.ImportLedgerTransactions(ctx, "acc-1", []map[string]any{
			{"id": "je-1", "date": "2024-06-16", "amount": 1},
		})
		require.NoError(t, err)

		lt, err := repo.GetLedgerTransaction(ctx, "je-1")
		require.NoError(t, err)
		assert.True(t, lt.Reconciled)
		assert.Equal(t, "ACME invoice", lt.Payload["description"])
	})
}

func TestMockRepository_ErrorInjection(t *testing.T) {
	repo := NewMockRepository()
	seed(t, repo)
	ctx := context.Background()

	repo.PersistMatchErrs["b-1"] = assert.AnError
	err := repo.PersistMatch(ctx, &reconciliation.Match{
		ID: "m-1", AccountID: "acc-1", BankRecordID: "b-1", CandidateIDs: []string{"je-1"},
	})
	assert.ErrorIs(t, err, assert.AnError)
	assert.Equal(t, 1, repo.PersistMatchCalls)

	repo.FetchStatementErr = assert.AnError
	_, err = repo.FetchStatement(ctx, "stmt-1")
	assert.ErrorIs(t, err, assert.AnError)
}
