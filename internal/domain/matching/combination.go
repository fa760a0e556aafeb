package matching

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"
)

// Reasons reported for combinations.
const (
	ReasonExactAmountSum = "Exact amount sum match"
	ReasonCloseAmountSum = "Close amount sum match"
)

// combinationTolerance is max(0.01, bankAmount * AmountTolerancePercent).
func combinationTolerance(bankAmount decimal.Decimal, cfg Config) decimal.Decimal {
	return decimal.Max(exactAmountEpsilon, bankAmount.Mul(cfg.AmountTolerancePercent))
}

// poolEntry is a candidate admitted to the subset search.
type poolEntry struct {
	index  int
	amount decimal.Decimal
}

// MatchCombinations searches, for each bank record in order, subsets of
// between 2 and cfg.MaxCombinationSize unclaimed candidates whose amounts sum
// to the bank amount within tolerance. The best subset per bank record wins
// by score, then fewer candidates, then smaller amount difference. Its
// candidates are claimed before the next bank record is searched.
//
// A subset is only proposed when its sum is closer to the bank amount than
// any single unclaimed candidate. Non-amount dimensions of a combination take
// the best value any single member achieves for that dimension.
func MatchCombinations(banks []BankRecord, cands []CandidateRecord, cfg Config) []MultiTransactionMatch {
	maxSize := min(cfg.MaxCombinationSize, maxCombinationSizeLimit)
	if maxSize < 2 {
		return nil
	}

	claimed := make(map[string]bool, len(cands))
	var out []MultiTransactionMatch

	for _, b := range banks {
		if b.Reconciled {
			continue
		}
		bankAmount := b.Amount()
		if !bankAmount.IsPositive() {
			continue
		}

		pool := buildPool(b, cands, claimed, cfg)
		if len(pool) < 2 {
			continue
		}

		// A subset must land closer to the bank amount than any lone
		// candidate does.
		ceiling := combinationTolerance(bankAmount, cfg)
		if single, ok := tightestSingle(b, cands, claimed); ok && single.LessThan(ceiling) {
			ceiling = single
		}
		if !ceiling.IsPositive() {
			continue
		}

		best, ok := searchCombinations(b, cands, pool, maxSize, ceiling, cfg)
		if !ok {
			continue
		}

		for _, id := range best.CandidateIDs {
			claimed[id] = true
		}
		out = append(out, best)
	}

	return out
}

// buildPool selects the candidates a bank record may combine. Candidates
// without an amount, with a zero amount or larger than the bank amount plus
// tolerance are excluded. When more than cfg.MaxCombinationPool remain, the
// ones closest in date are kept. The result is in candidate input order.
func buildPool(b BankRecord, cands []CandidateRecord, claimed map[string]bool, cfg Config) []poolEntry {
	bankAmount := b.Amount()
	limit := bankAmount.Add(combinationTolerance(bankAmount, cfg))

	var pool []poolEntry
	seen := make(map[string]bool)
	for i, c := range cands {
		if c.Reconciled || claimed[c.ID] || seen[c.ID] {
			continue
		}
		amt, ok := c.absAmount()
		if !ok || amt.IsZero() || amt.GreaterThanOrEqual(limit) {
			continue
		}
		seen[c.ID] = true
		pool = append(pool, poolEntry{index: i, amount: amt})
	}

	maxPool := min(cfg.MaxCombinationPool, maxCombinationPoolLimit)
	if len(pool) <= maxPool {
		return pool
	}

	distance := func(e poolEntry) int {
		d := cands[e.index].Date
		if d == nil || b.Date.IsZero() {
			return int(^uint(0) >> 1)
		}
		return dayDiff(b.Date, *d)
	}
	sort.SliceStable(pool, func(i, j int) bool {
		return distance(pool[i]) < distance(pool[j])
	})
	pool = pool[:maxPool]
	sort.Slice(pool, func(i, j int) bool { return pool[i].index < pool[j].index })
	return pool
}

// tightestSingle returns the smallest difference between the bank amount and
// the amount of one unclaimed candidate.
func tightestSingle(b BankRecord, cands []CandidateRecord, claimed map[string]bool) (decimal.Decimal, bool) {
	bankAmount := b.Amount()
	var (
		best  decimal.Decimal
		found bool
	)
	for _, c := range cands {
		if c.Reconciled || claimed[c.ID] {
			continue
		}
		amt, ok := c.absAmount()
		if !ok {
			continue
		}
		diff := bankAmount.Sub(amt).Abs()
		if !found || diff.LessThan(best) {
			best = diff
			found = true
		}
	}
	return best, found
}

// searchCombinations returns the best subset whose sum differs from the bank
// amount by less than ceiling.
func searchCombinations(b BankRecord, cands []CandidateRecord, pool []poolEntry, maxSize int, ceiling decimal.Decimal, cfg Config) (MultiTransactionMatch, bool) {
	bankAmount := b.Amount()

	var (
		best  MultiTransactionMatch
		found bool
	)

	chosen := make([]int, 0, maxSize)
	var walk func(start int, sum decimal.Decimal)
	walk = func(start int, sum decimal.Decimal) {
		if len(chosen) >= 2 {
			diff := sum.Sub(bankAmount).Abs()
			if diff.LessThan(ceiling) {
				m, ok := scoreCombination(b, cands, pool, chosen, sum, diff, cfg)
				if ok && (!found || betterCombination(m, best)) {
					best = m
					found = true
				}
			}
		}
		if len(chosen) == maxSize {
			return
		}
		for k := start; k < len(pool); k++ {
			next := sum.Add(pool[k].amount)
			// Amounts are non-negative, so an overshoot only grows.
			if next.Sub(bankAmount).GreaterThanOrEqual(ceiling) {
				continue
			}
			chosen = append(chosen, k)
			walk(k+1, next)
			chosen = chosen[:len(chosen)-1]
		}
	}
	walk(0, decimal.Zero)

	return best, found
}

func betterCombination(a, b MultiTransactionMatch) bool {
	if a.CombinedScore != b.CombinedScore {
		return a.CombinedScore > b.CombinedScore
	}
	if len(a.CandidateIDs) != len(b.CandidateIDs) {
		return len(a.CandidateIDs) < len(b.CandidateIDs)
	}
	return a.AmountDiff.LessThan(b.AmountDiff)
}

func scoreCombination(
	b BankRecord,
	cands []CandidateRecord,
	pool []poolEntry,
	chosen []int,
	sum, diff decimal.Decimal,
	cfg Config,
) (MultiTransactionMatch, bool) {
	var (
		score   float64
		reasons []string
	)

	if diff.LessThan(exactAmountEpsilon) {
		score += cfg.Weights.ExactAmount
		reasons = append(reasons, ReasonExactAmountSum)
	} else {
		score += cfg.Weights.ExactAmount / 2
		reasons = append(reasons, ReasonCloseAmountSum)
	}

	var date, cheque, ref, desc dimension
	ids := make([]string, len(chosen))
	for n, k := range chosen {
		c := cands[pool[k].index]
		ids[n] = c.ID
		date = bestDimension(date, dateDimension(b.Date, c.Date, cfg))
		cheque = bestDimension(cheque, chequeDimension(b.ChequeNumber, c.ChequeNumber, cfg))
		ref = bestDimension(ref, referenceDimension(b.Reference, c.Reference, cfg))
		desc = bestDimension(desc, descriptionDimension(b.Description, c.Description, cfg))
	}
	for _, d := range []dimension{date, cheque, ref, desc} {
		if d.matched() {
			score += d.points
			reasons = append(reasons, d.reason)
		}
	}

	confidence := Classify(score, cfg.Thresholds)
	if confidence == ConfidenceNone {
		return MultiTransactionMatch{}, false
	}

	return MultiTransactionMatch{
		BankRecordID:  b.ID,
		CandidateIDs:  ids,
		CombinedScore: score,
		Confidence:    confidence,
		TotalAmount:   sum,
		AmountDiff:    diff,
		Reasons:       reasons,
		Explanation: fmt.Sprintf("%d transactions totalling %s match bank amount %s (difference %s)",
			len(ids), sum.StringFixed(2), b.Amount().StringFixed(2), diff.StringFixed(2)),
	}, true
}

// bestDimension keeps the first of two dimensions unless the second scores higher.
func bestDimension(current, next dimension) dimension {
	if next.points > current.points {
		return next
	}
	return current
}
