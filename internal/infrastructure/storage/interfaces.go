package storage

import (
	"context"
	"time"

	"github.com/eshaffer321/bank-reconciliation/internal/domain/matching"
	"github.com/eshaffer321/bank-reconciliation/internal/domain/reconciliation"
)

// Repository defines the complete storage interface.
// It is a superset of what the reconciliation service needs, so the SQLite
// store and the in-memory mock can both be handed to reconcile.NewService.
type Repository interface {
	StatementRepository
	LedgerRepository
	MatchRepository
	Close() error
}

// StatementRepository handles statements and their bank records.
type StatementRepository interface {
	// ImportStatement creates or updates a statement and its bank records.
	// Bank records that are already reconciled are left untouched.
	ImportStatement(ctx context.Context, stmt *reconciliation.Statement, records []matching.BankRecord) error

	// FetchStatement returns a NotFoundError if the statement does not exist.
	FetchStatement(ctx context.Context, statementID string) (*reconciliation.Statement, error)

	// ListStatements returns statements in any of the given statuses, or all
	// statements when none are given.
	ListStatements(ctx context.Context, statuses ...reconciliation.StatementStatus) ([]reconciliation.Statement, error)

	UpdateStatementStatus(ctx context.Context, statementID string, status reconciliation.StatementStatus) error

	// ListBankRecords returns every bank record of a statement, matched or not.
	ListBankRecords(ctx context.Context, statementID string) ([]matching.BankRecord, error)

	// FetchUnmatchedBankRecords returns unreconciled bank records in scope,
	// ordered by date then id.
	FetchUnmatchedBankRecords(ctx context.Context, scope reconciliation.Scope) ([]matching.BankRecord, error)
}

// LedgerRepository handles accounting-side transactions.
type LedgerRepository interface {
	// ImportLedgerTransactions stores raw ledger records for an account and
	// returns how many were written. Records without an id are rejected and
	// reported in the returned error; the rest are still imported.
	ImportLedgerTransactions(ctx context.Context, accountID string, raws []map[string]any) (int, error)

	GetLedgerTransaction(ctx context.Context, id string) (*LedgerTransaction, error)

	// FetchUnmatchedCandidateRecords returns unreconciled ledger transactions
	// for an account dated within [from, to]. A zero bound is open and
	// undated transactions are always included.
	FetchUnmatchedCandidateRecords(ctx context.Context, accountID string, from, to time.Time) ([]matching.CandidateRecord, error)
}

// MatchRepository persists and reverses matches.
type MatchRepository interface {
	PersistMatch(ctx context.Context, match *reconciliation.Match) error
	ReversePersistedMatch(ctx context.Context, bankRecordID string) (*reconciliation.Match, error)
	GetMatch(ctx context.Context, bankRecordID string) (*reconciliation.Match, error)
	ListMatches(ctx context.Context, statementID string) ([]reconciliation.Match, error)
}
