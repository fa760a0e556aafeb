// Package validator checks imported bank statements for internal
// consistency before they are reconciled.
//
// A statement balances when
//
//	opening - sum(debits) + sum(credits) = closing
//
// within one cent. Lines that carry a running balance are also walked in
// statement order so a missing or duplicated line can be located.
package validator

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/eshaffer321/bank-reconciliation/internal/domain/matching"
	"github.com/eshaffer321/bank-reconciliation/internal/domain/reconciliation"
)

// Tolerance is the largest difference treated as rounding.
var Tolerance = decimal.New(1, -2)

// BalanceValidation contains the result of validating a statement.
type BalanceValidation struct {
	// Valid is true if the lines account for the movement between the
	// opening and closing balance and no running balance disagrees.
	Valid bool

	Opening         decimal.Decimal
	Closing         decimal.Decimal
	TotalDebits     decimal.Decimal
	TotalCredits    decimal.Decimal
	ComputedClosing decimal.Decimal

	// Difference is closing minus computed closing
	Difference decimal.Decimal

	// LineMismatches lists lines whose running balance disagrees with the
	// balance computed from the lines before them.
	LineMismatches []LineMismatch

	// Reason explains why validation failed (empty if valid)
	Reason string
}

// LineMismatch is one line whose stated running balance is wrong.
type LineMismatch struct {
	BankRecordID string
	Expected     decimal.Decimal
	Stated       decimal.Decimal
}

// ValidateStatement checks records, in statement order, against the
// statement's opening and closing balances. A zero running balance on a line
// is treated as "not supplied" and is not checked.
func ValidateStatement(stmt *reconciliation.Statement, records []matching.BankRecord) *BalanceValidation {
	result := &BalanceValidation{
		Opening:      stmt.OpeningBalance,
		Closing:      stmt.ClosingBalance,
		TotalDebits:  decimal.Zero,
		TotalCredits: decimal.Zero,
	}

	running := stmt.OpeningBalance
	for _, r := range records {
		result.TotalDebits = result.TotalDebits.Add(r.Debit)
		result.TotalCredits = result.TotalCredits.Add(r.Credit)
		running = running.Sub(r.Debit).Add(r.Credit)

		if !r.Balance.IsZero() && running.Sub(r.Balance).Abs().GreaterThan(Tolerance) {
			result.LineMismatches = append(result.LineMismatches, LineMismatch{
				BankRecordID: r.ID,
				Expected:     running,
				Stated:       r.Balance,
			})
			// Continue from the bank's figure so one bad line is reported once
			running = r.Balance
		}
	}

	result.ComputedClosing = stmt.OpeningBalance.Sub(result.TotalDebits).Add(result.TotalCredits)
	result.Difference = stmt.ClosingBalance.Sub(result.ComputedClosing)

	switch {
	case result.Difference.Abs().GreaterThan(Tolerance):
		result.Reason = fmt.Sprintf("lines move the balance to %s but the statement closes at %s (difference %s) - a line is missing or duplicated",
			result.ComputedClosing.StringFixed(2), stmt.ClosingBalance.StringFixed(2), result.Difference.StringFixed(2))
	case len(result.LineMismatches) > 0:
		first := result.LineMismatches[0]
		result.Reason = fmt.Sprintf("%d running balance mismatch(es), first at %s (expected %s, statement shows %s)",
			len(result.LineMismatches), first.BankRecordID, first.Expected.StringFixed(2), first.Stated.StringFixed(2))
	default:
		result.Valid = true
	}

	return result
}
