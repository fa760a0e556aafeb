package matching

// BatchResult is the bucketed output of RunBatch.
type BatchResult struct {
	HighConfidence   []MatchSuggestion
	MediumConfidence []MatchSuggestion
	LowConfidence    []MatchSuggestion
	MultiMatches     []MultiTransactionMatch
	Unmatched        []BankRecord
	Statistics       Statistics
}

// Statistics summarises a batch run.
type Statistics struct {
	TotalBankRecords   int     `json:"total_bank_records"`
	TotalCandidates    int     `json:"total_candidates"`
	HighConfidence     int     `json:"high_confidence"`
	MediumConfidence   int     `json:"medium_confidence"`
	LowConfidence      int     `json:"low_confidence"`
	MultiMatches       int     `json:"multi_matches"`
	Unmatched          int     `json:"unmatched"`
	EstimatedMatchRate float64 `json:"estimated_match_rate"`
}

// RunBatch runs pair matching and then combination matching over the bank
// records pair matching left open, using only candidates pair matching did
// not claim. The result depends only on its arguments.
func RunBatch(banks []BankRecord, cands []CandidateRecord, cfg Config) *BatchResult {
	result := &BatchResult{}

	pairs := MatchPairs(banks, cands, cfg)

	pairedBanks := make(map[string]bool, len(pairs))
	claimed := make(map[string]bool, len(pairs))
	for _, s := range pairs {
		pairedBanks[s.BankRecordID] = true
		claimed[s.CandidateID] = true

		switch s.Confidence {
		case ConfidenceHigh:
			result.HighConfidence = append(result.HighConfidence, s)
		case ConfidenceMedium:
			result.MediumConfidence = append(result.MediumConfidence, s)
		case ConfidenceLow:
			result.LowConfidence = append(result.LowConfidence, s)
		}
	}

	var openBanks []BankRecord
	for _, b := range banks {
		if b.Reconciled || pairedBanks[b.ID] {
			continue
		}
		openBanks = append(openBanks, b)
	}

	var remaining []CandidateRecord
	for _, c := range cands {
		if c.Reconciled || claimed[c.ID] {
			continue
		}
		remaining = append(remaining, c)
	}

	result.MultiMatches = MatchCombinations(openBanks, remaining, cfg)

	multiBanks := make(map[string]bool, len(result.MultiMatches))
	for _, m := range result.MultiMatches {
		multiBanks[m.BankRecordID] = true
	}
	for _, b := range openBanks {
		if !multiBanks[b.ID] {
			result.Unmatched = append(result.Unmatched, b)
		}
	}

	result.Statistics = computeStatistics(result, len(banks), len(cands))
	return result
}

func computeStatistics(r *BatchResult, totalBanks, totalCands int) Statistics {
	stats := Statistics{
		TotalBankRecords: totalBanks,
		TotalCandidates:  totalCands,
		HighConfidence:   len(r.HighConfidence),
		MediumConfidence: len(r.MediumConfidence),
		LowConfidence:    len(r.LowConfidence),
		MultiMatches:     len(r.MultiMatches),
		Unmatched:        len(r.Unmatched),
	}
	if totalBanks > 0 {
		matched := stats.HighConfidence + stats.MediumConfidence + stats.LowConfidence + stats.MultiMatches
		stats.EstimatedMatchRate = float64(matched) / float64(totalBanks)
	}
	return stats
}

// Suggestions returns the pair suggestions in the given tiers, in bucket
// order HIGH, MEDIUM, LOW.
func (r *BatchResult) Suggestions(tiers ...Confidence) []MatchSuggestion {
	want := make(map[Confidence]bool, len(tiers))
	for _, t := range tiers {
		want[t] = true
	}
	var out []MatchSuggestion
	if want[ConfidenceHigh] {
		out = append(out, r.HighConfidence...)
	}
	if want[ConfidenceMedium] {
		out = append(out, r.MediumConfidence...)
	}
	if want[ConfidenceLow] {
		out = append(out, r.LowConfidence...)
	}
	return out
}
