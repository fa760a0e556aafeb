package validator

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eshaffer321/bank-reconciliation/internal/domain/matching"
	"github.com/eshaffer321/bank-reconciliation/internal/domain/reconciliation"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func statement(opening, closing string) *reconciliation.Statement {
	return &reconciliation.Statement{ID: "stmt-1", OpeningBalance: d(opening), ClosingBalance: d(closing)}
}

func TestValidateStatement_Balanced(t *testing.T) {
	records := []matching.BankRecord{
		{ID: "b-1", Debit: d("1000.50"), Balance: d("3999.50")},
		{ID: "b-2", Credit: d("1000"), Balance: d("4999.50")},
		{ID: "b-3", Debit: d("77.77")},
	}

	result := ValidateStatement(statement("5000", "4921.73"), records)

	assert.True(t, result.Valid)
	assert.Empty(t, result.Reason)
	assert.True(t, result.TotalDebits.Equal(d("1078.27")))
	assert.True(t, result.TotalCredits.Equal(d("1000")))
	assert.True(t, result.ComputedClosing.Equal(d("4921.73")))
	assert.True(t, result.Difference.IsZero())
	assert.Empty(t, result.LineMismatches)
}

func TestValidateStatement_WithinTolerance(t *testing.T) {
	result := ValidateStatement(statement("100", "50.01"), []matching.BankRecord{{ID: "b-1", Debit: d("50")}})

	assert.True(t, result.Valid)
}

func TestValidateStatement_ClosingMismatch(t *testing.T) {
	tests := []struct {
		name     string
		closing  string
		wantDiff string
	}{
		{"statement shows more outflow", "800", "-50"},
		{"lines show more outflow", "900", "50"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := ValidateStatement(statement("1000", tt.closing), []matching.BankRecord{{ID: "b-1", Debit: d("150")}})

			assert.False(t, result.Valid)
			assert.True(t, result.Difference.Equal(d(tt.wantDiff)))
			assert.Contains(t, result.Reason, "difference "+d(tt.wantDiff).StringFixed(2))
		})
	}
}

func TestValidateStatement_RunningBalanceMismatch(t *testing.T) {
	records := []matching.BankRecord{
		{ID: "b-1", Debit: d("100"), Balance: d("900")},
		{ID: "b-2", Debit: d("100"), Balance: d("850")}, // bank shows 850, lines give 800
		{ID: "b-3", Credit: d("50"), Balance: d("900")},
	}

	result := ValidateStatement(statement("1000", "850"), records)

	assert.False(t, result.Valid)
	require.Len(t, result.LineMismatches, 1, "later lines are checked from the bank's figure")
	assert.Equal(t, "b-2", result.LineMismatches[0].BankRecordID)
	assert.True(t, result.LineMismatches[0].Expected.Equal(d("800")))
	assert.True(t, result.LineMismatches[0].Stated.Equal(d("850")))
	assert.Contains(t, result.Reason, "first at b-2")
}

func TestValidateStatement_Empty(t *testing.T) {
	result := ValidateStatement(statement("250", "250"), nil)

	assert.True(t, result.Valid)
	assert.True(t, result.TotalDebits.IsZero())
}
