package matching

// ScoreTable holds every bank/candidate score, computed once up front.
// Rows follow bank record order and columns follow candidate order.
type ScoreTable struct {
	rows [][]ScoreResult
}

// BuildScoreTable scores every bank record against every candidate.
func BuildScoreTable(banks []BankRecord, cands []CandidateRecord, cfg Config) ScoreTable {
	rows := make([][]ScoreResult, len(banks))
	for i, b := range banks {
		row := make([]ScoreResult, len(cands))
		for j, c := range cands {
			row[j] = Score(b, c, cfg)
		}
		rows[i] = row
	}
	return ScoreTable{rows: rows}
}

// At returns the score of bank record i against candidate j.
func (t ScoreTable) At(i, j int) ScoreResult {
	return t.rows[i][j]
}

// MatchPairs proposes at most one candidate per bank record.
//
// Bank records are visited in input order. Each takes the highest scoring
// unclaimed candidate at or above both the proposal floor and the low
// confidence threshold; ties go to the earlier candidate. A claimed candidate
// is unavailable to every later bank record.
func MatchPairs(banks []BankRecord, cands []CandidateRecord, cfg Config) []MatchSuggestion {
	table := BuildScoreTable(banks, cands, cfg)
	return selectPairs(banks, cands, table, cfg)
}

func selectPairs(banks []BankRecord, cands []CandidateRecord, table ScoreTable, cfg Config) []MatchSuggestion {
	claimed := make(map[string]bool, len(cands))
	var out []MatchSuggestion

	for i, b := range banks {
		if b.Reconciled {
			continue
		}

		best := -1
		var bestScore ScoreResult
		for j, c := range cands {
			if c.Reconciled || claimed[c.ID] {
				continue
			}
			s := table.At(i, j)
			if s.Score < cfg.ProposalFloor || Classify(s.Score, cfg.Thresholds) == ConfidenceNone {
				continue
			}
			if best == -1 || s.Score > bestScore.Score {
				best = j
				bestScore = s
			}
		}

		if best == -1 {
			continue
		}

		claimed[cands[best].ID] = true
		out = append(out, MatchSuggestion{
			BankRecordID: b.ID,
			CandidateID:  cands[best].ID,
			Score:        bestScore.Score,
			Reasons:      append([]string(nil), bestScore.Reasons...),
			Confidence:   Classify(bestScore.Score, cfg.Thresholds),
			Flags:        bestScore.Flags,
		})
	}

	return out
}
