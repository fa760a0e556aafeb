// Package reconcile runs the matching engine against stored records and
// applies the results.
//
// The Service owns the workflow: fetch the unmatched snapshot for a
// statement, run the engine, and optionally persist chosen buckets through
// the Executor. Only one run per statement is allowed at a time; runs on
// different statements proceed concurrently.
package reconcile

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/eshaffer321/bank-reconciliation/internal/domain/matching"
	"github.com/eshaffer321/bank-reconciliation/internal/domain/reconciliation"
)

// AutoApplyOptions selects which buckets AutoMatch persists. HIGH is always
// applied.
type AutoApplyOptions struct {
	IncludeMedium bool
	IncludeLow    bool
	IncludeMulti  bool
	Actor         string
}

// AutoMatchResult is the outcome of AutoMatch.
type AutoMatchResult struct {
	Batch     *matching.BatchResult
	Execution *ExecutionResult
}

// ManualMatchRequest links a bank record to candidates chosen by a user.
type ManualMatchRequest struct {
	StatementID  string
	BankRecordID string
	CandidateIDs []string
	Actor        string
	Notes        string
}

// Service coordinates matching runs.
type Service struct {
	repo     Repository
	executor *Executor
	cfg      matching.Config
	logger   *slog.Logger

	// Statement-level locking (one run per statement at a time)
	statementLocks map[string]*sync.Mutex
	locksMutex     sync.Mutex
}

// NewService creates a new reconciliation service.
func NewService(repo Repository, cfg matching.Config, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:           repo,
		executor:       NewExecutor(repo, repo, logger),
		cfg:            cfg,
		logger:         logger,
		statementLocks: make(map[string]*sync.Mutex),
	}
}

// Config returns the matching configuration the service runs with.
func (s *Service) Config() matching.Config {
	return s.cfg
}

// Statement returns a statement by id.
func (s *Service) Statement(ctx context.Context, statementID string) (*reconciliation.Statement, error) {
	return s.repo.FetchStatement(ctx, statementID)
}

// Suggest runs the engine over the statement's unmatched records without
// persisting anything.
func (s *Service) Suggest(ctx context.Context, statementID string) (*matching.BatchResult, error) {
	if !s.tryLockStatement(statementID) {
		return nil, fmt.Errorf("%w: %s", reconciliation.ErrStatementBusy, statementID)
	}
	defer s.unlockStatement(statementID)

	stmt, err := s.repo.FetchStatement(ctx, statementID)
	if err != nil {
		return nil, err
	}
	return s.suggest(ctx, stmt)
}

func (s *Service) suggest(ctx context.Context, stmt *reconciliation.Statement) (*matching.BatchResult, error) {
	start := time.Now()

	banks, err := s.repo.FetchUnmatchedBankRecords(ctx, reconciliation.Scope{
		StatementID: stmt.ID,
		AccountID:   stmt.AccountID,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch bank records: %w", err)
	}

	from, to := s.candidateWindow(stmt)
	cands, err := s.repo.FetchUnmatchedCandidateRecords(ctx, stmt.AccountID, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch candidate records: %w", err)
	}

	result := matching.RunBatch(banks, cands, s.cfg)

	s.logger.Info("matching run complete",
		"statement_id", stmt.ID,
		"bank_records", result.Statistics.TotalBankRecords,
		"candidates", result.Statistics.TotalCandidates,
		"high", result.Statistics.HighConfidence,
		"medium", result.Statistics.MediumConfidence,
		"low", result.Statistics.LowConfidence,
		"multi", result.Statistics.MultiMatches,
		"unmatched", result.Statistics.Unmatched,
		"match_rate", fmt.Sprintf("%.2f", result.Statistics.EstimatedMatchRate),
		"duration", time.Since(start),
	)

	return result, nil
}

// candidateWindow widens the statement period by the date tolerance on both
// sides so entries booked just outside the period can still match.
func (s *Service) candidateWindow(stmt *reconciliation.Statement) (time.Time, time.Time) {
	from, to := stmt.PeriodStart, stmt.PeriodEnd
	if !from.IsZero() {
		from = from.AddDate(0, 0, -s.cfg.DateToleranceDays)
	}
	if !to.IsZero() {
		to = to.AddDate(0, 0, s.cfg.DateToleranceDays)
	}
	return from, to
}

// AutoMatch runs Suggest and persists the selected buckets as SUGGESTED
// matches under one statement lock.
func (s *Service) AutoMatch(ctx context.Context, statementID string, opts AutoApplyOptions) (*AutoMatchResult, error) {
	if !s.tryLockStatement(statementID) {
		return nil, fmt.Errorf("%w: %s", reconciliation.ErrStatementBusy, statementID)
	}
	defer s.unlockStatement(statementID)

	stmt, err := s.repo.FetchStatement(ctx, statementID)
	if err != nil {
		return nil, err
	}

	batch, err := s.suggest(ctx, stmt)
	if err != nil {
		return nil, err
	}

	tiers := []matching.Confidence{matching.ConfidenceHigh}
	if opts.IncludeMedium {
		tiers = append(tiers, matching.ConfidenceMedium)
	}
	if opts.IncludeLow {
		tiers = append(tiers, matching.ConfidenceLow)
	}

	var items []Acceptance
	for _, sug := range batch.Suggestions(tiers...) {
		items = append(items, AcceptSuggestion(sug))
	}
	if opts.IncludeMulti {
		for _, m := range batch.MultiMatches {
			items = append(items, AcceptMulti(m))
		}
	}

	exec, err := s.executor.Apply(ctx, statementID, opts.Actor, items)
	if err != nil && exec == nil {
		return nil, err
	}

	s.logger.Info("auto-match applied",
		"statement_id", statementID,
		"matched", exec.Matched,
		"skipped", exec.Skipped,
		"errors", len(exec.Errors),
	)

	return &AutoMatchResult{Batch: batch, Execution: exec}, err
}

// ManualMatch records a MANUAL match for one bank record.
func (s *Service) ManualMatch(ctx context.Context, req ManualMatchRequest) (*reconciliation.Match, error) {
	if req.BankRecordID == "" || len(req.CandidateIDs) == 0 {
		return nil, fmt.Errorf("%w: bank record and at least one candidate are required", reconciliation.ErrInvalidMatch)
	}

	if !s.tryLockStatement(req.StatementID) {
		return nil, fmt.Errorf("%w: %s", reconciliation.ErrStatementBusy, req.StatementID)
	}
	defer s.unlockStatement(req.StatementID)

	exec, err := s.executor.Apply(ctx, req.StatementID, req.Actor, []Acceptance{{
		BankRecordID: req.BankRecordID,
		CandidateIDs: req.CandidateIDs,
		MatchType:    reconciliation.MatchManual,
		Notes:        req.Notes,
	}})
	if err != nil {
		return nil, err
	}

	switch {
	case exec.Skipped > 0:
		return nil, fmt.Errorf("%w: %s", reconciliation.ErrAlreadyReconciled, req.BankRecordID)
	case len(exec.Errors) > 0:
		return nil, fmt.Errorf("manual match failed: %w", exec.Err())
	}
	return exec.Matches[0], nil
}

// Unmatch reverses the match recorded for a bank record under the lock of
// the statement the match belongs to.
func (s *Service) Unmatch(ctx context.Context, bankRecordID string) (*reconciliation.Match, error) {
	existing, err := s.repo.GetMatch(ctx, bankRecordID)
	if err != nil {
		return nil, err
	}

	if !s.tryLockStatement(existing.StatementID) {
		return nil, fmt.Errorf("%w: %s", reconciliation.ErrStatementBusy, existing.StatementID)
	}
	defer s.unlockStatement(existing.StatementID)

	return s.executor.Unmatch(ctx, bankRecordID)
}

// SuggestMany runs Suggest for several statements with at most concurrency
// runs in flight. The first error cancels the remaining runs.
func (s *Service) SuggestMany(ctx context.Context, statementIDs []string, concurrency int) (map[string]*matching.BatchResult, error) {
	if concurrency <= 0 {
		concurrency = 1
	}

	var (
		mu      sync.Mutex
		results = make(map[string]*matching.BatchResult, len(statementIDs))
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	for _, id := range statementIDs {
		id := id
		g.Go(func() error {
			res, err := s.Suggest(gctx, id)
			if err != nil {
				return fmt.Errorf("statement %s: %w", id, err)
			}
			mu.Lock()
			results[id] = res
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// tryLockStatement attempts to acquire the lock for a statement.
func (s *Service) tryLockStatement(statementID string) bool {
	s.locksMutex.Lock()
	defer s.locksMutex.Unlock()

	if _, exists := s.statementLocks[statementID]; !exists {
		s.statementLocks[statementID] = &sync.Mutex{}
	}

	return s.statementLocks[statementID].TryLock()
}

// unlockStatement releases the lock for a statement.
func (s *Service) unlockStatement(statementID string) {
	s.locksMutex.Lock()
	defer s.locksMutex.Unlock()

	if lock, exists := s.statementLocks[statementID]; exists {
		lock.Unlock()
	}
}
