package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/eshaffer321/bank-reconciliation/internal/domain/matching"
	"github.com/eshaffer321/bank-reconciliation/internal/domain/reconciliation"
)

// Storage provides SQLite database access for statements, ledger
// transactions and matches. It implements the Repository interface.
type Storage struct {
	db *sql.DB
}

// Compile-time check that Storage implements Repository
var _ Repository = (*Storage)(nil)

// NewStorage creates a new storage instance with SQLite database
func NewStorage(dbPath string) (*Storage, error) {
	// Foreign keys are a per-connection setting in SQLite, so they go in the
	// DSN rather than a one-off PRAGMA.
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return nil, err
	}

	s := &Storage{db: db}

	// Run all pending migrations
	if err := s.runMigrations(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}

	return s, nil
}

// Close closes the database connection
func (s *Storage) Close() error {
	return s.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

// ImportStatement upserts a statement and its bank records in one transaction.
func (s *Storage) ImportStatement(ctx context.Context, stmt *reconciliation.Statement, records []matching.BankRecord) error {
	if stmt.ID == "" || stmt.AccountID == "" {
		return errors.New("statement id and account id are required")
	}
	status := stmt.Status
	if status == "" {
		status = reconciliation.StatusUploaded
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO statements (id, account_id, period_start, period_end, opening_balance, closing_balance, status)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			account_id = excluded.account_id,
			period_start = excluded.period_start,
			period_end = excluded.period_end,
			opening_balance = excluded.opening_balance,
			closing_balance = excluded.closing_balance,
			updated_at = CURRENT_TIMESTAMP
	`,
		stmt.ID, stmt.AccountID,
		formatDate(stmt.PeriodStart), formatDate(stmt.PeriodEnd),
		stmt.OpeningBalance.String(), stmt.ClosingBalance.String(),
		string(status),
	)
	if err != nil {
		return fmt.Errorf("failed to save statement %s: %w", stmt.ID, err)
	}

	for i, r := range records {
		if r.ID == "" {
			return fmt.Errorf("bank record %d has no id", i)
		}
		if r.Date.IsZero() {
			return fmt.Errorf("bank record %s has no date", r.ID)
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO bank_records
			(id, statement_id, account_id, txn_date, description, reference, cheque_number,
			 debit, credit, balance, position)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				txn_date = excluded.txn_date,
				description = excluded.description,
				reference = excluded.reference,
				cheque_number = excluded.cheque_number,
				debit = excluded.debit,
				credit = excluded.credit,
				balance = excluded.balance,
				position = excluded.position
			WHERE bank_records.reconciled = 0
		`,
			r.ID, stmt.ID, stmt.AccountID, formatDate(r.Date),
			r.Description, r.Reference, r.ChequeNumber,
			r.Debit.String(), r.Credit.String(), r.Balance.String(), i,
		)
		if err != nil {
			return fmt.Errorf("failed to save bank record %s: %w", r.ID, err)
		}
	}

	return tx.Commit()
}

const statementColumns = `id, account_id, COALESCE(period_start, ''), COALESCE(period_end, ''),
	opening_balance, closing_balance, status`

func scanStatement(row rowScanner) (*reconciliation.Statement, error) {
	var (
		st          reconciliation.Statement
		start, end  string
		statusValue string
	)
	if err := row.Scan(&st.ID, &st.AccountID, &start, &end, &st.OpeningBalance, &st.ClosingBalance, &statusValue); err != nil {
		return nil, err
	}
	st.Status = reconciliation.StatementStatus(statusValue)

	var err error
	if start != "" {
		if st.PeriodStart, err = parseDate(start); err != nil {
			return nil, err
		}
	}
	if end != "" {
		if st.PeriodEnd, err = parseDate(end); err != nil {
			return nil, err
		}
	}
	return &st, nil
}

// FetchStatement retrieves a statement by id.
func (s *Storage) FetchStatement(ctx context.Context, statementID string) (*reconciliation.Statement, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+statementColumns+" FROM statements WHERE id = ?", statementID)
	st, err := scanStatement(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, reconciliation.NewNotFound("statement", statementID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load statement %s: %w", statementID, err)
	}
	return st, nil
}

// ListStatements returns statements ordered by period start then id.
func (s *Storage) ListStatements(ctx context.Context, statuses ...reconciliation.StatementStatus) ([]reconciliation.Statement, error) {
	query := "SELECT " + statementColumns + " FROM statements"
	var args []any
	if len(statuses) > 0 {
		placeholders := make([]string, len(statuses))
		for i, st := range statuses {
			placeholders[i] = "?"
			args = append(args, string(st))
		}
		query += " WHERE status IN (" + strings.Join(placeholders, ", ") + ")"
	}
	query += " ORDER BY period_start, id"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list statements: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []reconciliation.Statement
	for rows.Next() {
		st, err := scanStatement(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *st)
	}
	return out, rows.Err()
}

// UpdateStatementStatus sets the statement status.
func (s *Storage) UpdateStatementStatus(ctx context.Context, statementID string, status reconciliation.StatementStatus) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE statements SET status = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?",
		string(status), statementID,
	)
	if err != nil {
		return fmt.Errorf("failed to update statement %s: %w", statementID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return reconciliation.NewNotFound("statement", statementID)
	}
	return nil
}

const bankRecordColumns = `id, statement_id, account_id, txn_date, description, reference, cheque_number,
	debit, credit, balance, reconciled, matched_candidate_ids`

func scanBankRecord(row rowScanner) (matching.BankRecord, error) {
	var (
		r          matching.BankRecord
		date       string
		matchedIDs string
	)
	err := row.Scan(&r.ID, &r.StatementID, &r.AccountID, &date, &r.Description, &r.Reference,
		&r.ChequeNumber, &r.Debit, &r.Credit, &r.Balance, &r.Reconciled, &matchedIDs)
	if err != nil {
		return r, err
	}
	if r.Date, err = parseDate(date); err != nil {
		return r, err
	}
	if matchedIDs != "" && matchedIDs != "[]" {
		if err := json.Unmarshal([]byte(matchedIDs), &r.MatchedCandidateIDs); err != nil {
			return r, fmt.Errorf("invalid matched candidate ids on %s: %w", r.ID, err)
		}
	}
	return r, nil
}

func (s *Storage) queryBankRecords(ctx context.Context, query string, args ...any) ([]matching.BankRecord, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query bank records: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []matching.BankRecord
	for rows.Next() {
		r, err := scanBankRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// ListBankRecords returns a statement's bank records in statement order.
func (s *Storage) ListBankRecords(ctx context.Context, statementID string) ([]matching.BankRecord, error) {
	return s.queryBankRecords(ctx,
		"SELECT "+bankRecordColumns+" FROM bank_records WHERE statement_id = ? ORDER BY position, id",
		statementID,
	)
}

// FetchUnmatchedBankRecords returns unreconciled bank records in scope.
func (s *Storage) FetchUnmatchedBankRecords(ctx context.Context, scope reconciliation.Scope) ([]matching.BankRecord, error) {
	conds := []string{"reconciled = 0"}
	var args []any
	if scope.StatementID != "" {
		conds = append(conds, "statement_id = ?")
		args = append(args, scope.StatementID)
	}
	if scope.AccountID != "" {
		conds = append(conds, "account_id = ?")
		args = append(args, scope.AccountID)
	}
	if !scope.DateFrom.IsZero() {
		conds = append(conds, "txn_date >= ?")
		args = append(args, formatDate(scope.DateFrom))
	}
	if !scope.DateTo.IsZero() {
		conds = append(conds, "txn_date <= ?")
		args = append(args, formatDate(scope.DateTo))
	}

	query := "SELECT " + bankRecordColumns + " FROM bank_records WHERE " +
		strings.Join(conds, " AND ") + " ORDER BY txn_date, id"
	return s.queryBankRecords(ctx, query, args...)
}

// ImportLedgerTransactions upserts raw ledger records. Reconciled rows keep
// their stored payload.
func (s *Storage) ImportLedgerTransactions(ctx context.Context, accountID string, raws []map[string]any) (int, error) {
	if accountID == "" {
		return 0, errors.New("account id is required")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

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

		payload, err := json.Marshal(lt.Payload)
		if err != nil {
			errs = append(errs, fmt.Errorf("record %s: %w", lt.ID, err))
			continue
		}

		var date any
		if lt.Date != nil {
			date = formatDate(*lt.Date)
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO ledger_transactions (id, account_id, txn_date, payload)
			VALUES (?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				account_id = excluded.account_id,
				txn_date = excluded.txn_date,
				payload = excluded.payload
			WHERE ledger_transactions.reconciled = 0
		`, lt.ID, accountID, date, string(payload))
		if err != nil {
			return imported, fmt.Errorf("failed to save ledger transaction %s: %w", lt.ID, err)
		}
		imported++
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit ledger import: %w", err)
	}
	return imported, errors.Join(errs...)
}

const ledgerColumns = `id, account_id, txn_date, payload, reconciled, COALESCE(matched_bank_record_id, '')`

func scanLedgerTransaction(row rowScanner) (*LedgerTransaction, error) {
	var (
		lt      LedgerTransaction
		date    sql.NullString
		payload string
	)
	if err := row.Scan(&lt.ID, &lt.AccountID, &date, &payload, &lt.Reconciled, &lt.MatchedBankRecordID); err != nil {
		return nil, err
	}
	if date.Valid && date.String != "" {
		d, err := parseDate(date.String)
		if err != nil {
			return nil, err
		}
		lt.Date = &d
	}

	raw, err := decodePayload(payload)
	if err != nil {
		return nil, fmt.Errorf("ledger transaction %s: %w", lt.ID, err)
	}
	lt.Payload = raw
	return &lt, nil
}

// GetLedgerTransaction retrieves a ledger transaction by id.
func (s *Storage) GetLedgerTransaction(ctx context.Context, id string) (*LedgerTransaction, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+ledgerColumns+" FROM ledger_transactions WHERE id = ?", id)
	lt, err := scanLedgerTransaction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, reconciliation.NewNotFound("ledger transaction", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load ledger transaction %s: %w", id, err)
	}
	return lt, nil
}

// FetchUnmatchedCandidateRecords returns the account's open ledger
// transactions projected for the engine.
func (s *Storage) FetchUnmatchedCandidateRecords(ctx context.Context, accountID string, from, to time.Time) ([]matching.CandidateRecord, error) {
	query := "SELECT " + ledgerColumns + " FROM ledger_transactions WHERE account_id = ? AND reconciled = 0"
	args := []any{accountID}

	var window []string
	if !from.IsZero() {
		window = append(window, "txn_date >= ?")
		args = append(args, formatDate(from))
	}
	if !to.IsZero() {
		window = append(window, "txn_date <= ?")
		args = append(args, formatDate(to))
	}
	if len(window) > 0 {
		query += " AND (txn_date IS NULL OR (" + strings.Join(window, " AND ") + "))"
	}
	query += " ORDER BY COALESCE(txn_date, ''), id"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query ledger transactions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []matching.CandidateRecord
	for rows.Next() {
		lt, err := scanLedgerTransaction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, lt.Candidate())
	}
	return out, rows.Err()
}

// PersistMatch records a match and reconciles both sides atomically.
func (s *Storage) PersistMatch(ctx context.Context, match *reconciliation.Match) error {
	if match.ID == "" || match.BankRecordID == "" || len(match.CandidateIDs) == 0 {
		return fmt.Errorf("%w: match id, bank record and candidates are required", reconciliation.ErrInvalidMatch)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var (
		statementID string
		reconciled  bool
	)
	err = tx.QueryRowContext(ctx,
		"SELECT statement_id, reconciled FROM bank_records WHERE id = ?", match.BankRecordID,
	).Scan(&statementID, &reconciled)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return reconciliation.NewNotFound("bank record", match.BankRecordID)
	case err != nil:
		return fmt.Errorf("failed to load bank record %s: %w", match.BankRecordID, err)
	case reconciled:
		return fmt.Errorf("%w: %s", reconciliation.ErrAlreadyReconciled, match.BankRecordID)
	case match.StatementID != "" && statementID != match.StatementID:
		return fmt.Errorf("%w: bank record %s belongs to statement %s", reconciliation.ErrInvalidMatch, match.BankRecordID, statementID)
	}

	for _, id := range match.CandidateIDs {
		res, err := tx.ExecContext(ctx, `
			UPDATE ledger_transactions
			SET reconciled = 1, matched_bank_record_id = ?
			WHERE id = ? AND account_id = ? AND reconciled = 0
		`, match.BankRecordID, id, match.AccountID)
		if err != nil {
			return fmt.Errorf("failed to reconcile ledger transaction %s: %w", id, err)
		}
		if n, err := res.RowsAffected(); err != nil || n != 1 {
			return fmt.Errorf("%w: %s", reconciliation.ErrCandidateUnavailable, id)
		}
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO reconciliation_matches
		(id, statement_id, account_id, bank_record_id, match_type, score, matched_at, matched_by, notes)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		match.ID, statementID, match.AccountID, match.BankRecordID, string(match.MatchType),
		match.Score, match.MatchedAt.UTC().Format(timestampLayout), match.MatchedBy, match.Notes,
	)
	if err != nil {
		return fmt.Errorf("failed to save match %s: %w", match.ID, err)
	}

	for i, id := range match.CandidateIDs {
		_, err := tx.ExecContext(ctx,
			"INSERT INTO reconciliation_match_candidates (match_id, candidate_id, position) VALUES (?, ?, ?)",
			match.ID, id, i,
		)
		if err != nil {
			return fmt.Errorf("failed to save match candidate %s: %w", id, err)
		}
	}

	ids, _ := json.Marshal(match.CandidateIDs)
	_, err = tx.ExecContext(ctx,
		"UPDATE bank_records SET reconciled = 1, matched_candidate_ids = ? WHERE id = ?",
		string(ids), match.BankRecordID,
	)
	if err != nil {
		return fmt.Errorf("failed to reconcile bank record %s: %w", match.BankRecordID, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit match %s: %w", match.ID, err)
	}
	match.StatementID = statementID
	return nil
}

const matchColumns = `id, statement_id, account_id, bank_record_id, match_type, score, matched_at, matched_by, notes`

type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func scanMatch(row rowScanner) (*reconciliation.Match, error) {
	var (
		m         reconciliation.Match
		matchType string
		matchedAt string
	)
	if err := row.Scan(&m.ID, &m.StatementID, &m.AccountID, &m.BankRecordID, &matchType,
		&m.Score, &matchedAt, &m.MatchedBy, &m.Notes); err != nil {
		return nil, err
	}
	m.MatchType = reconciliation.MatchType(matchType)

	t, err := time.Parse(timestampLayout, matchedAt)
	if err != nil {
		return nil, fmt.Errorf("invalid matched_at on match %s: %w", m.ID, err)
	}
	m.MatchedAt = t
	return &m, nil
}

func loadMatchCandidates(ctx context.Context, q queryer, m *reconciliation.Match) error {
	rows, err := q.QueryContext(ctx,
		"SELECT candidate_id FROM reconciliation_match_candidates WHERE match_id = ? ORDER BY position",
		m.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to load candidates for match %s: %w", m.ID, err)
	}
	defer func() { _ = rows.Close() }()

	m.CandidateIDs = nil
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return err
		}
		m.CandidateIDs = append(m.CandidateIDs, id)
	}
	return rows.Err()
}

func getMatch(ctx context.Context, q queryer, bankRecordID string) (*reconciliation.Match, error) {
	row := q.QueryRowContext(ctx, "SELECT "+matchColumns+" FROM reconciliation_matches WHERE bank_record_id = ?", bankRecordID)
	m, err := scanMatch(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", reconciliation.ErrNoMatch, bankRecordID)
	}
	if err != nil {
		return nil, err
	}
	if err := loadMatchCandidates(ctx, q, m); err != nil {
		return nil, err
	}
	return m, nil
}

// GetMatch returns the match recorded for a bank record, or ErrNoMatch.
func (s *Storage) GetMatch(ctx context.Context, bankRecordID string) (*reconciliation.Match, error) {
	return getMatch(ctx, s.db, bankRecordID)
}

// ListMatches returns a statement's matches in the order they were made.
func (s *Storage) ListMatches(ctx context.Context, statementID string) ([]reconciliation.Match, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+matchColumns+" FROM reconciliation_matches WHERE statement_id = ? ORDER BY matched_at, id",
		statementID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list matches: %w", err)
	}

	var out []reconciliation.Match
	for rows.Next() {
		m, err := scanMatch(rows)
		if err != nil {
			_ = rows.Close()
			return nil, err
		}
		out = append(out, *m)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range out {
		if err := loadMatchCandidates(ctx, s.db, &out[i]); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// ReversePersistedMatch deletes the match for a bank record and returns both
// sides to unreconciled.
func (s *Storage) ReversePersistedMatch(ctx context.Context, bankRecordID string) (*reconciliation.Match, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var exists int
	err = tx.QueryRowContext(ctx, "SELECT 1 FROM bank_records WHERE id = ?", bankRecordID).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, reconciliation.NewNotFound("bank record", bankRecordID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load bank record %s: %w", bankRecordID, err)
	}

	m, err := getMatch(ctx, tx, bankRecordID)
	if err != nil {
		return nil, err
	}

	for _, id := range m.CandidateIDs {
		_, err := tx.ExecContext(ctx,
			"UPDATE ledger_transactions SET reconciled = 0, matched_bank_record_id = NULL WHERE id = ?",
			id,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to reopen ledger transaction %s: %w", id, err)
		}
	}

	_, err = tx.ExecContext(ctx,
		"UPDATE bank_records SET reconciled = 0, matched_candidate_ids = '[]' WHERE id = ?",
		bankRecordID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to reopen bank record %s: %w", bankRecordID, err)
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM reconciliation_match_candidates WHERE match_id = ?", m.ID); err != nil {
		return nil, fmt.Errorf("failed to delete match candidates: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM reconciliation_matches WHERE id = ?", m.ID); err != nil {
		return nil, fmt.Errorf("failed to delete match %s: %w", m.ID, err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit unmatch: %w", err)
	}
	return m, nil
}
