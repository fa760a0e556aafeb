package handlers

import (
	"context"

	"github.com/eshaffer321/bank-reconciliation/internal/application/reconcile"
	"github.com/eshaffer321/bank-reconciliation/internal/domain/matching"
	"github.com/eshaffer321/bank-reconciliation/internal/domain/reconciliation"
)

// ReconciliationService is the part of reconcile.Service the handlers use.
type ReconciliationService interface {
	Suggest(ctx context.Context, statementID string) (*matching.BatchResult, error)
	AutoMatch(ctx context.Context, statementID string, opts reconcile.AutoApplyOptions) (*reconcile.AutoMatchResult, error)
	ManualMatch(ctx context.Context, req reconcile.ManualMatchRequest) (*reconciliation.Match, error)
	Unmatch(ctx context.Context, bankRecordID string) (*reconciliation.Match, error)
}

// Compile-time check that the real service satisfies the interface
var _ ReconciliationService = (*reconcile.Service)(nil)

// StatementReader is the read-only storage the handlers use.
type StatementReader interface {
	FetchStatement(ctx context.Context, statementID string) (*reconciliation.Statement, error)
	ListStatements(ctx context.Context, statuses ...reconciliation.StatementStatus) ([]reconciliation.Statement, error)
	ListMatches(ctx context.Context, statementID string) ([]reconciliation.Match, error)
	ListBankRecords(ctx context.Context, statementID string) ([]matching.BankRecord, error)
}
