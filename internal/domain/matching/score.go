// Package matching scores and pairs bank statement lines with ledger
// transactions.
//
// The engine is pure: every function takes its inputs and a Config and
// returns new values without touching shared state. Matching runs in two
// passes:
//   - MatchPairs proposes the best single candidate per bank record
//   - MatchCombinations searches small candidate subsets whose amounts sum
//     to a bank record that found no pair
//
// RunBatch combines both passes and buckets the output by confidence.
//
// Example usage:
//
//	cfg := matching.DefaultConfig()
//	result := matching.RunBatch(bankRecords, candidates, cfg)
//	for _, s := range result.HighConfidence {
//		// apply s
//	}
package matching

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Reasons reported by Score.
const (
	ReasonExactAmount = "Exact amount match"
	ReasonCloseAmount = "Close amount match"
	ReasonSameDate    = "Same date"
	ReasonCheque      = "Cheque number match"
	ReasonReference   = "Reference match"
	ReasonDescription = "Description similarity"
)

// exactAmountEpsilon is the largest difference still treated as equal.
var exactAmountEpsilon = decimal.New(1, -2)

// dimension is one scored aspect of a bank/candidate comparison.
type dimension struct {
	points float64
	reason string
}

func (d dimension) matched() bool { return d.points > 0 }

// Score compares a bank record with one candidate. Dimensions are additive
// and the total is not capped.
func Score(bank BankRecord, cand CandidateRecord, cfg Config) ScoreResult {
	var res ScoreResult

	if amt, ok := cand.absAmount(); ok {
		d := amountDimension(bank.Amount(), amt, cfg)
		res.add(d)
		res.Flags.Amount = d.matched()
	}

	d := dateDimension(bank.Date, cand.Date, cfg)
	res.add(d)
	res.Flags.Date = d.matched()

	d = chequeDimension(bank.ChequeNumber, cand.ChequeNumber, cfg)
	res.add(d)
	res.Flags.Cheque = d.matched()

	d = referenceDimension(bank.Reference, cand.Reference, cfg)
	res.add(d)
	res.Flags.Reference = d.matched()

	d = descriptionDimension(bank.Description, cand.Description, cfg)
	res.add(d)
	res.Flags.Description = d.matched()

	return res
}

func (r *ScoreResult) add(d dimension) {
	if !d.matched() {
		return
	}
	r.Score += d.points
	r.Reasons = append(r.Reasons, d.reason)
}

// amountWithinTolerance reports whether diff is strictly below the
// percentage tolerance of the bank amount.
func amountWithinTolerance(diff, bankAmount decimal.Decimal, cfg Config) bool {
	return diff.LessThan(bankAmount.Mul(cfg.AmountTolerancePercent))
}

func amountDimension(bankAmount, candAmount decimal.Decimal, cfg Config) dimension {
	diff := bankAmount.Sub(candAmount).Abs()
	switch {
	case diff.LessThan(exactAmountEpsilon):
		return dimension{points: cfg.Weights.ExactAmount, reason: ReasonExactAmount}
	case amountWithinTolerance(diff, bankAmount, cfg):
		return dimension{points: cfg.Weights.ExactAmount / 2, reason: ReasonCloseAmount}
	}
	return dimension{}
}

func dateDimension(bankDate time.Time, candDate *time.Time, cfg Config) dimension {
	if candDate == nil || bankDate.IsZero() || candDate.IsZero() {
		return dimension{}
	}
	days := dayDiff(bankDate, *candDate)
	switch {
	case days == 0:
		return dimension{points: cfg.Weights.Date, reason: ReasonSameDate}
	case days <= 2 && days <= cfg.DateToleranceDays:
		return dimension{points: cfg.Weights.Date * 2 / 3, reason: fmt.Sprintf("Date within %d days", days)}
	case days <= cfg.DateToleranceDays:
		return dimension{points: cfg.Weights.Date / 3, reason: fmt.Sprintf("Date within %d days", days)}
	}
	return dimension{}
}

// dayDiff returns the absolute number of calendar days between a and b,
// ignoring time of day.
func dayDiff(a, b time.Time) int {
	ad := time.Date(a.Year(), a.Month(), a.Day(), 0, 0, 0, 0, time.UTC)
	bd := time.Date(b.Year(), b.Month(), b.Day(), 0, 0, 0, 0, time.UTC)
	return int(math.Abs(math.Round(ad.Sub(bd).Hours() / 24)))
}

func chequeDimension(bankCheque, candCheque string, cfg Config) dimension {
	bankCheque = strings.TrimSpace(bankCheque)
	candCheque = strings.TrimSpace(candCheque)
	if bankCheque == "" || candCheque == "" || bankCheque != candCheque {
		return dimension{}
	}
	return dimension{points: cfg.Weights.Cheque, reason: ReasonCheque}
}

func referenceDimension(bankRef, candRef string, cfg Config) dimension {
	b := strings.ToLower(strings.TrimSpace(bankRef))
	c := strings.ToLower(strings.TrimSpace(candRef))
	if b == "" || c == "" {
		return dimension{}
	}
	if strings.Contains(b, c) || strings.Contains(c, b) {
		return dimension{points: cfg.Weights.Reference, reason: ReasonReference}
	}
	return dimension{}
}

func descriptionDimension(bankDesc, candDesc string, cfg Config) dimension {
	b := strings.ToLower(strings.TrimSpace(bankDesc))
	c := strings.ToLower(strings.TrimSpace(candDesc))
	if b == "" || c == "" {
		return dimension{}
	}
	if strings.Contains(b, c) || strings.Contains(c, b) {
		return dimension{points: cfg.Weights.Description, reason: ReasonDescription}
	}
	for _, token := range strings.Fields(b) {
		if strings.Contains(c, token) {
			return dimension{points: cfg.Weights.Description, reason: ReasonDescription}
		}
	}
	return dimension{}
}
