package reconcile

import (
	"context"
	"time"

	"github.com/eshaffer321/bank-reconciliation/internal/domain/matching"
	"github.com/eshaffer321/bank-reconciliation/internal/domain/reconciliation"
)

// RecordSource supplies the unmatched records a matching run works on.
type RecordSource interface {
	// FetchStatement returns reconciliation.ErrNotFound (wrapped) if missing.
	FetchStatement(ctx context.Context, statementID string) (*reconciliation.Statement, error)

	// FetchUnmatchedBankRecords returns unreconciled bank records in scope,
	// ordered by date then id.
	FetchUnmatchedBankRecords(ctx context.Context, scope reconciliation.Scope) ([]matching.BankRecord, error)

	// FetchUnmatchedCandidateRecords returns unreconciled ledger
	// transactions for an account dated within [from, to]. Undated
	// transactions are included.
	FetchUnmatchedCandidateRecords(ctx context.Context, accountID string, from, to time.Time) ([]matching.CandidateRecord, error)
}

// MatchStore persists and reverses matches.
type MatchStore interface {
	// PersistMatch creates the match record and marks the bank record and
	// every candidate reconciled, all or nothing. It returns
	// ErrAlreadyReconciled if the bank record already has a match and
	// ErrCandidateUnavailable if any candidate is reconciled or missing.
	PersistMatch(ctx context.Context, match *reconciliation.Match) error

	// ReversePersistedMatch deletes the match for a bank record and returns
	// both sides to unreconciled. It returns ErrNoMatch if there is none.
	ReversePersistedMatch(ctx context.Context, bankRecordID string) (*reconciliation.Match, error)

	// GetMatch returns the match recorded for a bank record, or ErrNoMatch.
	GetMatch(ctx context.Context, bankRecordID string) (*reconciliation.Match, error)

	// UpdateStatementStatus sets the statement status.
	UpdateStatementStatus(ctx context.Context, statementID string, status reconciliation.StatementStatus) error
}

// Repository is everything the reconciliation service needs from storage.
type Repository interface {
	RecordSource
	MatchStore

	// ListStatements returns statements in any of the given statuses.
	ListStatements(ctx context.Context, statuses ...reconciliation.StatementStatus) ([]reconciliation.Statement, error)
}
