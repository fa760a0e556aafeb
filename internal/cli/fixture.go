package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/eshaffer321/bank-reconciliation/internal/domain/matching"
	"github.com/eshaffer321/bank-reconciliation/internal/domain/reconciliation"
	"github.com/eshaffer321/bank-reconciliation/internal/domain/validator"
	"github.com/eshaffer321/bank-reconciliation/internal/infrastructure/storage"
)

// Fixture is a statement, its bank lines and the ledger transactions of the
// same account, as loaded by the import command.
//
//	statement:
//	  id: stmt-2024-06
//	  account_id: acc-1
//	  period_start: 2024-06-01
//	  period_end: 2024-06-30
//	bank_records:
//	  - id: b-1
//	    date: 2024-06-15
//	    description: ACME invoice
//	    debit: "1000.50"
//	ledger:
//	  - id: je-1
//	    date: 2024-06-15
//	    amount: "1000.50"
type Fixture struct {
	Statement   FixtureStatement  `yaml:"statement"`
	BankRecords []FixtureBankLine `yaml:"bank_records"`
	Ledger      []map[string]any  `yaml:"ledger"`
}

// FixtureStatement is the statement header. Amounts are strings so they stay
// exact.
type FixtureStatement struct {
	ID             string `yaml:"id"`
	AccountID      string `yaml:"account_id"`
	PeriodStart    string `yaml:"period_start"`
	PeriodEnd      string `yaml:"period_end"`
	OpeningBalance string `yaml:"opening_balance"`
	ClosingBalance string `yaml:"closing_balance"`
}

// FixtureBankLine is one bank statement line.
type FixtureBankLine struct {
	ID           string `yaml:"id"`
	Date         string `yaml:"date"`
	Description  string `yaml:"description"`
	Reference    string `yaml:"reference"`
	ChequeNumber string `yaml:"cheque_number"`
	Debit        string `yaml:"debit"`
	Credit       string `yaml:"credit"`
	Balance      string `yaml:"balance"`
}

// ImportStore is the storage the import command writes to.
type ImportStore interface {
	ImportStatement(ctx context.Context, stmt *reconciliation.Statement, records []matching.BankRecord) error
	ImportLedgerTransactions(ctx context.Context, accountID string, raws []map[string]any) (int, error)
}

var _ ImportStore = (*storage.Storage)(nil)

// LoadFixture reads a fixture file.
func LoadFixture(path string) (*Fixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read fixture: %w", err)
	}

	var f Fixture
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse fixture %s: %w", path, err)
	}
	if f.Statement.ID == "" || f.Statement.AccountID == "" {
		return nil, fmt.Errorf("fixture %s: statement id and account_id are required", path)
	}
	return &f, nil
}

// ImportResult counts what an import wrote.
type ImportResult struct {
	StatementID string
	BankRecords int
	Ledger      int
	Balance     *validator.BalanceValidation
}

// Import writes the fixture. Bank lines and ledger rows that are already
// reconciled are left untouched by the store.
func (f *Fixture) Import(ctx context.Context, store ImportStore) (*ImportResult, error) {
	stmt, err := f.statement()
	if err != nil {
		return nil, err
	}

	records := make([]matching.BankRecord, 0, len(f.BankRecords))
	for i, line := range f.BankRecords {
		rec, err := line.bankRecord(stmt.ID, stmt.AccountID)
		if err != nil {
			return nil, fmt.Errorf("bank record %d: %w", i, err)
		}
		records = append(records, rec)
	}

	if err := store.ImportStatement(ctx, stmt, records); err != nil {
		return nil, fmt.Errorf("failed to import statement: %w", err)
	}

	n, err := store.ImportLedgerTransactions(ctx, stmt.AccountID, f.Ledger)
	if err != nil {
		return nil, fmt.Errorf("failed to import ledger: %w", err)
	}

	return &ImportResult{
		StatementID: stmt.ID,
		BankRecords: len(records),
		Ledger:      n,
		Balance:     validator.ValidateStatement(stmt, records),
	}, nil
}

func (f *Fixture) statement() (*reconciliation.Statement, error) {
	s := f.Statement
	start, err := parseFixtureDate(s.PeriodStart)
	if err != nil {
		return nil, fmt.Errorf("period_start: %w", err)
	}
	end, err := parseFixtureDate(s.PeriodEnd)
	if err != nil {
		return nil, fmt.Errorf("period_end: %w", err)
	}
	opening, err := parseFixtureAmount(s.OpeningBalance)
	if err != nil {
		return nil, fmt.Errorf("opening_balance: %w", err)
	}
	closing, err := parseFixtureAmount(s.ClosingBalance)
	if err != nil {
		return nil, fmt.Errorf("closing_balance: %w", err)
	}

	return &reconciliation.Statement{
		ID:             s.ID,
		AccountID:      s.AccountID,
		PeriodStart:    start,
		PeriodEnd:      end,
		OpeningBalance: opening,
		ClosingBalance: closing,
		Status:         reconciliation.StatusUploaded,
	}, nil
}

func (l FixtureBankLine) bankRecord(statementID, accountID string) (matching.BankRecord, error) {
	date, err := parseFixtureDate(l.Date)
	if err != nil {
		return matching.BankRecord{}, fmt.Errorf("date: %w", err)
	}
	if date.IsZero() {
		return matching.BankRecord{}, fmt.Errorf("date is required")
	}

	rec := matching.BankRecord{
		ID:           l.ID,
		StatementID:  statementID,
		AccountID:    accountID,
		Date:         date,
		Description:  l.Description,
		Reference:    l.Reference,
		ChequeNumber: l.ChequeNumber,
	}
	if rec.Debit, err = parseFixtureAmount(l.Debit); err != nil {
		return matching.BankRecord{}, fmt.Errorf("debit: %w", err)
	}
	if rec.Credit, err = parseFixtureAmount(l.Credit); err != nil {
		return matching.BankRecord{}, fmt.Errorf("credit: %w", err)
	}
	if rec.Balance, err = parseFixtureAmount(l.Balance); err != nil {
		return matching.BankRecord{}, fmt.Errorf("balance: %w", err)
	}
	return rec, nil
}

func parseFixtureDate(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.DateOnly, s)
}

func parseFixtureAmount(s string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(s)
}
