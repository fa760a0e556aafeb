package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/eshaffer321/bank-reconciliation/internal/domain/matching"
	"github.com/eshaffer321/bank-reconciliation/internal/domain/reconciliation"
)

// Acceptance is one suggestion the caller has decided to apply.
type Acceptance struct {
	BankRecordID string
	CandidateIDs []string
	Score        float64
	MatchType    reconciliation.MatchType
	Notes        string
}

// AcceptSuggestion converts a pair suggestion into an Acceptance.
func AcceptSuggestion(s matching.MatchSuggestion) Acceptance {
	return Acceptance{
		BankRecordID: s.BankRecordID,
		CandidateIDs: []string{s.CandidateID},
		Score:        s.Score,
		MatchType:    reconciliation.MatchSuggested,
	}
}

// AcceptMulti converts a multi-transaction match into an Acceptance.
func AcceptMulti(m matching.MultiTransactionMatch) Acceptance {
	return Acceptance{
		BankRecordID: m.BankRecordID,
		CandidateIDs: append([]string(nil), m.CandidateIDs...),
		Score:        m.CombinedScore,
		MatchType:    reconciliation.MatchSuggested,
		Notes:        m.Explanation,
	}
}

// ExecutionResult reports what Apply did.
type ExecutionResult struct {
	Matched int
	Skipped int
	Errors  []string
	Matches []*reconciliation.Match

	failures []error
}

// Err returns the failures joined, or nil when every acceptance was matched
// or skipped.
func (r *ExecutionResult) Err() error {
	return errors.Join(r.failures...)
}

// Executor persists accepted suggestions.
type Executor struct {
	source RecordSource
	store  MatchStore
	logger *slog.Logger
	now    func() time.Time
	newID  func() string
}

// NewExecutor creates an executor. A nil logger uses slog.Default().
func NewExecutor(source RecordSource, store MatchStore, logger *slog.Logger) *Executor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Executor{
		source: source,
		store:  store,
		logger: logger,
		now:    time.Now,
		newID:  uuid.NewString,
	}
}

// Apply persists each acceptance as its own atomic match. A failure on one
// acceptance is recorded and the loop continues; bank records that are
// already reconciled are counted as skipped. If anything was matched, an
// uploaded statement moves to in progress.
//
// Apply fails fast with a NotFound error if the statement does not exist and
// stops early if ctx is cancelled, returning what was done so far.
func (e *Executor) Apply(ctx context.Context, statementID, actor string, items []Acceptance) (*ExecutionResult, error) {
	stmt, err := e.source.FetchStatement(ctx, statementID)
	if err != nil {
		return nil, err
	}

	result := &ExecutionResult{}

	for _, item := range items {
		if err := ctx.Err(); err != nil {
			return result, fmt.Errorf("apply interrupted after %d matches: %w", result.Matched, err)
		}

		match, err := e.persist(ctx, stmt, actor, item)
		switch {
		case err == nil:
			result.Matched++
			result.Matches = append(result.Matches, match)
		case errors.Is(err, reconciliation.ErrAlreadyReconciled):
			result.Skipped++
			e.logger.Debug("bank record already reconciled, skipping",
				"statement_id", statementID,
				"bank_record_id", item.BankRecordID,
			)
		default:
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", item.BankRecordID, err))
			result.failures = append(result.failures, err)
			e.logger.Warn("failed to persist match",
				"statement_id", statementID,
				"bank_record_id", item.BankRecordID,
				"error", err,
			)
		}
	}

	if result.Matched > 0 && stmt.Status == reconciliation.StatusUploaded {
		if err := e.store.UpdateStatementStatus(ctx, stmt.ID, reconciliation.StatusInProgress); err != nil {
			return result, fmt.Errorf("failed to update statement status: %w", err)
		}
	}

	return result, nil
}

func (e *Executor) persist(ctx context.Context, stmt *reconciliation.Statement, actor string, item Acceptance) (*reconciliation.Match, error) {
	if item.BankRecordID == "" || len(item.CandidateIDs) == 0 {
		return nil, fmt.Errorf("%w: bank record and at least one candidate are required", reconciliation.ErrInvalidMatch)
	}

	matchType := item.MatchType
	if matchType == "" {
		matchType = reconciliation.MatchSuggested
	}

	match := &reconciliation.Match{
		ID:           e.newID(),
		StatementID:  stmt.ID,
		AccountID:    stmt.AccountID,
		BankRecordID: item.BankRecordID,
		CandidateIDs: append([]string(nil), item.CandidateIDs...),
		MatchType:    matchType,
		Score:        item.Score,
		MatchedAt:    e.now().UTC(),
		MatchedBy:    actor,
		Notes:        item.Notes,
	}

	if err := e.store.PersistMatch(ctx, match); err != nil {
		return nil, err
	}
	return match, nil
}

// Unmatch reverses the match recorded for a bank record.
func (e *Executor) Unmatch(ctx context.Context, bankRecordID string) (*reconciliation.Match, error) {
	match, err := e.store.ReversePersistedMatch(ctx, bankRecordID)
	if err != nil {
		return nil, err
	}

	e.logger.Info("match reversed",
		"bank_record_id", bankRecordID,
		"match_id", match.ID,
		"candidates", len(match.CandidateIDs),
	)
	return match, nil
}
