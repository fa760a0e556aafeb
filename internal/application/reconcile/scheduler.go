package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/eshaffer321/bank-reconciliation/internal/domain/reconciliation"
)

// SchedulerConfig controls periodic auto-matching.
type SchedulerConfig struct {
	Schedule string // cron spec, e.g. "0 2 * * *"
	TimeZone string
	Options  AutoApplyOptions
	Timeout  time.Duration // per run, 0 = 10 minutes
}

// Scheduler periodically auto-matches open statements.
type Scheduler struct {
	svc    *Service
	repo   Repository
	cfg    SchedulerConfig
	logger *slog.Logger
	cron   *cron.Cron
}

// NewScheduler creates a scheduler. Call Start to begin running.
func NewScheduler(svc *Service, cfg SchedulerConfig, logger *slog.Logger) (*Scheduler, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Minute
	}

	loc := time.UTC
	if cfg.TimeZone != "" {
		l, err := time.LoadLocation(cfg.TimeZone)
		if err != nil {
			return nil, fmt.Errorf("invalid scheduler time zone %q: %w", cfg.TimeZone, err)
		}
		loc = l
	}

	s := &Scheduler{
		svc:    svc,
		repo:   svc.repo,
		cfg:    cfg,
		logger: logger,
		cron:   cron.New(cron.WithLocation(loc)),
	}

	if _, err := s.cron.AddFunc(cfg.Schedule, s.runScheduled); err != nil {
		return nil, fmt.Errorf("unable to schedule auto-match %q: %w", cfg.Schedule, err)
	}

	return s, nil
}

// Start begins running scheduled jobs in the background.
func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Info("auto-match scheduler started", "schedule", s.cfg.Schedule)
}

// Stop stops the scheduler and waits for a running job to finish or ctx to
// expire.
func (s *Scheduler) Stop(ctx context.Context) {
	done := s.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
	}
}

func (s *Scheduler) runScheduled() {
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.Timeout)
	defer cancel()

	if _, err := s.RunOnce(ctx); err != nil {
		s.logger.Error("scheduled auto-match failed", "error", err)
	}
}

// RunOnce auto-matches every uploaded or in-progress statement and returns
// the number of matches created. Busy statements are skipped.
func (s *Scheduler) RunOnce(ctx context.Context) (int, error) {
	stmts, err := s.repo.ListStatements(ctx, reconciliation.StatusUploaded, reconciliation.StatusInProgress)
	if err != nil {
		return 0, fmt.Errorf("failed to list open statements: %w", err)
	}

	total := 0
	for _, stmt := range stmts {
		if err := ctx.Err(); err != nil {
			return total, err
		}

		res, err := s.svc.AutoMatch(ctx, stmt.ID, s.cfg.Options)
		switch {
		case errors.Is(err, reconciliation.ErrStatementBusy):
			s.logger.Info("statement busy, skipping", "statement_id", stmt.ID)
			continue
		case err != nil && res == nil:
			s.logger.Warn("auto-match failed", "statement_id", stmt.ID, "error", err)
			continue
		}
		total += res.Execution.Matched
	}

	s.logger.Info("scheduled auto-match complete", "statements", len(stmts), "matched", total)
	return total, nil
}
