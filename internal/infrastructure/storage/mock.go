package storage

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/eshaffer321/bank-reconciliation/internal/domain/matching"
	"github.com/eshaffer321/bank-reconciliation/internal/domain/reconciliation"
)

// MockRepository is an in-memory implementation of Repository for testing.
// It mirrors the SQLite semantics (atomic PersistMatch, NotFound and
// ErrNoMatch errors) so service tests can run without a database.
type MockRepository struct {
	mu sync.Mutex

	statements  map[string]*reconciliation.Statement
	bankRecords map[string]*matching.BankRecord
	bankOrder   []string
	ledger      map[string]*LedgerTransaction
	ledgerOrder []string
	matches     map[string]*reconciliation.Match // keyed by bank record id

	// Hooks for test assertions
	PersistMatchCalls int
	StatusUpdates     []reconciliation.StatementStatus
	OnPersistMatch    func(match *reconciliation.Match)

	// Error injection for testing error paths
	FetchStatementErr   error
	FetchBankRecordsErr error
	FetchCandidatesErr  error
	ListStatementsErr   error
	UpdateStatusErr     error
	PersistMatchErrs    map[string]error // keyed by bank record id
}

// NewMockRepository creates a new mock repository for testing
func NewMockRepository() *MockRepository {
	return &MockRepository{
		statements:       make(map[string]*reconciliation.Statement),
		bankRecords:      make(map[string]*matching.BankRecord),
		ledger:           make(map[string]*LedgerTransaction),
		matches:          make(map[string]*reconciliation.Match),
		PersistMatchErrs: make(map[string]error),
	}
}

// Compile-time check that MockRepository implements Repository
var _ Repository = (*MockRepository)(nil)

// Close does nothing for mock
func (m *MockRepository) Close() error {
	return nil
}

func (m *MockRepository) ImportStatement(_ context.Context, stmt *reconciliation.Statement, records []matching.BankRecord) error {
	if stmt.ID == "" || stmt.AccountID == "" {
		return errors.New("statement id and account id are required")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	copied := *stmt
	if existing, ok := m.statements[stmt.ID]; ok {
		copied.Status = existing.Status
	} else if copied.Status == "" {
		copied.Status = reconciliation.StatusUploaded
	}
	m.statements[stmt.ID] = &copied

	for i, r := range records {
		if r.ID == "" {
			return fmt.Errorf("bank record %d has no id", i)
		}
		if existing, ok := m.bankRecords[r.ID]; ok {
			if existing.Reconciled {
				continue
			}
		} else {
			m.bankOrder = append(m.bankOrder, r.ID)
		}
		rec := r
		rec.StatementID = stmt.ID
		rec.AccountID = stmt.AccountID
		rec.Reconciled = false
		rec.MatchedCandidateIDs = nil
		m.bankRecords[r.ID] = &rec
	}
	return nil
}

func (m *MockRepository) FetchStatement(_ context.Context, statementID string) (*reconciliation.Statement, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.FetchStatementErr != nil {
		return nil, m.FetchStatementErr
	}
	st, ok := m.statements[statementID]
	if !ok {
		return nil, reconciliation.NewNotFound("statement", statementID)
	}
	copied := *st
	return &copied, nil
}

func (m *MockRepository) ListStatements(_ context.Context, statuses ...reconciliation.StatementStatus) ([]reconciliation.Statement, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.ListStatementsErr != nil {
		return nil, m.ListStatementsErr
	}

	want := make(map[reconciliation.StatementStatus]bool, len(statuses))
	for _, st := range statuses {
		want[st] = true
	}

	var out []reconciliation.Statement
	for _, st := range m.statements {
		if len(want) == 0 || want[st.Status] {
			out = append(out, *st)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].PeriodStart.Equal(out[j].PeriodStart) {
			return out[i].PeriodStart.Before(out[j].PeriodStart)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (m *MockRepository) UpdateStatementStatus(_ context.Context, statementID string, status reconciliation.StatementStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.StatusUpdates = append(m.StatusUpdates, status)
	if m.UpdateStatusErr != nil {
		return m.UpdateStatusErr
	}
	st, ok := m.statements[statementID]
	if !ok {
		return reconciliation.NewNotFound("statement", statementID)
	}
	st.Status = status
	return nil
}

func (m *MockRepository) ListBankRecords(_ context.Context, statementID string) ([]matching.BankRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []matching.BankRecord
	for _, id := range m.bankOrder {
		r := m.bankRecords[id]
		if r.StatementID == statementID {
			out = append(out, copyBankRecord(r))
		}
	}
	return out, nil
}

func (m *MockRepository) FetchUnmatchedBankRecords(_ context.Context, scope reconciliation.Scope) ([]matching.BankRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.FetchBankRecordsErr != nil {
		return nil, m.FetchBankRecordsErr
	}

	var out []matching.BankRecord
	for _, id := range m.bankOrder {
		r := m.bankRecords[id]
		switch {
		case r.Reconciled:
			continue
		case scope.StatementID != "" && r.StatementID != scope.StatementID:
			continue
		case scope.AccountID != "" && r.AccountID != scope.AccountID:
			continue
		case !inWindow(&r.Date, scope.DateFrom, scope.DateTo):
			continue
		}
		out = append(out, copyBankRecord(r))
	}
	sort.SliceStable(out, func(i, j int) bool {
		di, dj := formatDate(out[i].Date), formatDate(out[j].Date)
		if di != dj {
			return di < dj
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (m *MockRepository) ImportLedgerTransactions(_ context.Context, accountID string, raws []map[string]any) (int, error) {
	if accountID == "" {
		return 0, errors.New("account id is required")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	var (
		imported int
		errs     []error
	)
	for i, raw := range raws {
		lt, err := newLedgerTransaction(accountID, raw)
		if err != nil {
			errs = append(errs, fmt.Errorf("record %d: %w", i, err))
			continue
		}
		if existing, ok := m.ledger[lt.ID]; ok {
			if existing.Reconciled {
				imported++
				continue
			}
		} else {
			m.ledgerOrder = append(m.ledgerOrder, lt.ID)
		}
		m.ledger[lt.ID] = lt
		imported++
	}
	return imported, errors.Join(errs...)
}

func (m *MockRepository) GetLedgerTransaction(_ context.Context, id string) (*LedgerTransaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	lt, ok := m.ledger[id]
	if !ok {
		return nil, reconciliation.NewNotFound("ledger transaction", id)
	}
	copied := *lt
	return &copied, nil
}

func (m *MockRepository) FetchUnmatchedCandidateRecords(_ context.Context, accountID string, from, to time.Time) ([]matching.CandidateRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.FetchCandidatesErr != nil {
		return nil, m.FetchCandidatesErr
	}

	var picked []*LedgerTransaction
	for _, id := range m.ledgerOrder {
		lt := m.ledger[id]
		if lt.AccountID != accountID || lt.Reconciled || !inWindow(lt.Date, from, to) {
			continue
		}
		picked = append(picked, lt)
	}
	sort.SliceStable(picked, func(i, j int) bool {
		di, dj := "", ""
		if picked[i].Date != nil {
			di = formatDate(*picked[i].Date)
		}
		if picked[j].Date != nil {
			dj = formatDate(*picked[j].Date)
		}
		if di != dj {
			return di < dj
		}
		return picked[i].ID < picked[j].ID
	})

	out := make([]matching.CandidateRecord, 0, len(picked))
	for _, lt := range picked {
		out = append(out, lt.Candidate())
	}
	return out, nil
}

// PersistMatch validates everything before mutating, so a failed call leaves
// the repository unchanged.
func (m *MockRepository) PersistMatch(_ context.Context, match *reconciliation.Match) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.PersistMatchCalls++
	if m.OnPersistMatch != nil {
		m.OnPersistMatch(match)
	}
	if err := m.PersistMatchErrs[match.BankRecordID]; err != nil {
		return err
	}
	if match.ID == "" || match.BankRecordID == "" || len(match.CandidateIDs) == 0 {
		return fmt.Errorf("%w: match id, bank record and candidates are required", reconciliation.ErrInvalidMatch)
	}

	bank, ok := m.bankRecords[match.BankRecordID]
	switch {
	case !ok:
		return reconciliation.NewNotFound("bank record", match.BankRecordID)
	case bank.Reconciled:
		return fmt.Errorf("%w: %s", reconciliation.ErrAlreadyReconciled, match.BankRecordID)
	case match.StatementID != "" && bank.StatementID != match.StatementID:
		return fmt.Errorf("%w: bank record %s belongs to statement %s", reconciliation.ErrInvalidMatch, match.BankRecordID, bank.StatementID)
	}

	seen := make(map[string]bool, len(match.CandidateIDs))
	for _, id := range match.CandidateIDs {
		lt, ok := m.ledger[id]
		if !ok || lt.Reconciled || lt.AccountID != match.AccountID || seen[id] {
			return fmt.Errorf("%w: %s", reconciliation.ErrCandidateUnavailable, id)
		}
		seen[id] = true
	}

	for _, id := range match.CandidateIDs {
		m.ledger[id].Reconciled = true
		m.ledger[id].MatchedBankRecordID = match.BankRecordID
	}
	bank.Reconciled = true
	bank.MatchedCandidateIDs = append([]string(nil), match.CandidateIDs...)

	match.StatementID = bank.StatementID
	stored := *match
	stored.CandidateIDs = append([]string(nil), match.CandidateIDs...)
	m.matches[match.BankRecordID] = &stored
	return nil
}

func (m *MockRepository) ReversePersistedMatch(_ context.Context, bankRecordID string) (*reconciliation.Match, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	bank, ok := m.bankRecords[bankRecordID]
	if !ok {
		return nil, reconciliation.NewNotFound("bank record", bankRecordID)
	}
	match, ok := m.matches[bankRecordID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", reconciliation.ErrNoMatch, bankRecordID)
	}

	for _, id := range match.CandidateIDs {
		if lt, ok := m.ledger[id]; ok {
			lt.Reconciled = false
			lt.MatchedBankRecordID = ""
		}
	}
	bank.Reconciled = false
	bank.MatchedCandidateIDs = nil
	delete(m.matches, bankRecordID)
	return match, nil
}

func (m *MockRepository) GetMatch(_ context.Context, bankRecordID string) (*reconciliation.Match, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	match, ok := m.matches[bankRecordID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", reconciliation.ErrNoMatch, bankRecordID)
	}
	copied := *match
	return &copied, nil
}

func (m *MockRepository) ListMatches(_ context.Context, statementID string) ([]reconciliation.Match, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []reconciliation.Match
	for _, match := range m.matches {
		if match.StatementID == statementID {
			out = append(out, *match)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].MatchedAt.Equal(out[j].MatchedAt) {
			return out[i].MatchedAt.Before(out[j].MatchedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func copyBankRecord(r *matching.BankRecord) matching.BankRecord {
	c := *r
	c.MatchedCandidateIDs = append([]string(nil), r.MatchedCandidateIDs...)
	return c
}
