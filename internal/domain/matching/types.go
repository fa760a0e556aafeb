package matching

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// BankRecord is one line item from an uploaded bank statement.
// Exactly one of Debit and Credit is expected to be non-zero.
type BankRecord struct {
	ID           string
	StatementID  string
	AccountID    string
	Date         time.Time
	Description  string
	Reference    string
	ChequeNumber string
	Debit        decimal.Decimal
	Credit       decimal.Decimal
	Balance      decimal.Decimal

	Reconciled          bool
	MatchedCandidateIDs []string
}

// Amount returns the debit if non-zero, otherwise the credit.
func (b BankRecord) Amount() decimal.Decimal {
	if !b.Debit.IsZero() {
		return b.Debit.Abs()
	}
	return b.Credit.Abs()
}

// CandidateRecord is an accounting-side transaction eligible for matching.
// Optional fields use their zero value (nil, "", invalid NullDecimal) for
// "absent"; absent fields contribute nothing to a score.
type CandidateRecord struct {
	ID           string
	Date         *time.Time
	Description  string
	Reference    string
	ChequeNumber string
	Amount       decimal.NullDecimal

	Reconciled bool
}

// absAmount returns the candidate amount without sign. Ledger sources disagree
// on whether payments are negative, so the engine compares magnitudes.
func (c CandidateRecord) absAmount() (decimal.Decimal, bool) {
	if !c.Amount.Valid {
		return decimal.Zero, false
	}
	return c.Amount.Decimal.Abs(), true
}

// Confidence is the tier assigned to a score.
type Confidence string

const (
	ConfidenceHigh   Confidence = "HIGH"
	ConfidenceMedium Confidence = "MEDIUM"
	ConfidenceLow    Confidence = "LOW"
	ConfidenceNone   Confidence = ""
)

// MatchFlags records which scoring dimensions contributed.
type MatchFlags struct {
	Amount      bool `json:"amount"`
	Date        bool `json:"date"`
	Reference   bool `json:"reference"`
	Description bool `json:"description"`
	Cheque      bool `json:"cheque"`
}

// ScoreResult is the output of Score.
type ScoreResult struct {
	Score   float64
	Reasons []string
	Flags   MatchFlags
}

// MatchSuggestion pairs one bank record with one candidate.
type MatchSuggestion struct {
	BankRecordID string
	CandidateID  string
	Score        float64
	Reasons      []string
	Confidence   Confidence
	Flags        MatchFlags
}

// MultiTransactionMatch pairs one bank record with a set of candidates whose
// amounts sum to the bank amount.
type MultiTransactionMatch struct {
	BankRecordID  string
	CandidateIDs  []string
	CombinedScore float64
	Confidence    Confidence
	TotalAmount   decimal.Decimal
	AmountDiff    decimal.Decimal
	Explanation   string
	Reasons       []string
}

// Weights are the per-dimension score contributions.
type Weights struct {
	ExactAmount float64
	Date        float64
	Reference   float64
	Description float64
	Cheque      float64
}

// Thresholds are the inclusive lower bounds of each confidence tier.
type Thresholds struct {
	High   float64
	Medium float64
	Low    float64
}

// Config holds matcher configuration. It is passed explicitly to every
// engine function; there is no package-level default instance.
type Config struct {
	Weights    Weights
	Thresholds Thresholds

	// ProposalFloor is the minimum score for a pair suggestion, checked in
	// addition to Thresholds.Low.
	ProposalFloor float64

	DateToleranceDays int

	// AmountTolerancePercent is a fraction: 0.05 means 5% of the bank amount.
	AmountTolerancePercent decimal.Decimal

	// MaxCombinationSize bounds the number of candidates in one combination.
	MaxCombinationSize int

	// MaxCombinationPool bounds how many candidates enter the subset search
	// for a single bank record.
	MaxCombinationPool int
}

// Hard limits applied regardless of configuration.
const (
	maxCombinationSizeLimit = 4
	maxCombinationPoolLimit = 60
)

// DefaultConfig returns the default weights and thresholds.
func DefaultConfig() Config {
	return Config{
		Weights: Weights{
			ExactAmount: 40,
			Date:        20,
			Reference:   15,
			Description: 10,
			Cheque:      15,
		},
		Thresholds: Thresholds{
			High:   80,
			Medium: 60,
			Low:    40,
		},
		ProposalFloor:          50,
		DateToleranceDays:      7,
		AmountTolerancePercent: decimal.NewFromFloat(0.05),
		MaxCombinationSize:     3,
		MaxCombinationPool:     25,
	}
}

// Validate checks the config for values the engine cannot work with.
func (c Config) Validate() error {
	if c.Thresholds.High < c.Thresholds.Medium || c.Thresholds.Medium < c.Thresholds.Low {
		return fmt.Errorf("thresholds must satisfy high >= medium >= low (got %.1f/%.1f/%.1f)",
			c.Thresholds.High, c.Thresholds.Medium, c.Thresholds.Low)
	}
	if c.DateToleranceDays < 0 {
		return fmt.Errorf("date tolerance must not be negative: %d", c.DateToleranceDays)
	}
	if c.AmountTolerancePercent.IsNegative() {
		return fmt.Errorf("amount tolerance must not be negative: %s", c.AmountTolerancePercent)
	}
	if c.MaxCombinationSize < 0 || c.MaxCombinationSize > maxCombinationSizeLimit {
		return fmt.Errorf("max combination size must be between 0 and %d: %d", maxCombinationSizeLimit, c.MaxCombinationSize)
	}
	if c.MaxCombinationPool < 0 || c.MaxCombinationPool > maxCombinationPoolLimit {
		return fmt.Errorf("max combination pool must be between 0 and %d: %d", maxCombinationPoolLimit, c.MaxCombinationPool)
	}
	return nil
}
