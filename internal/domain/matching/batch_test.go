package matching

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func batchFixture() ([]BankRecord, []CandidateRecord) {
	d := day(2024, 6, 15)

	high := makeBank("b-high", "1000", d)
	high.Reference = "REF-123"
	high.ChequeNumber = "CHQ001"

	medium := makeBank("b-medium", "250", d)

	low := makeBank("b-low", "75", d)

	split := BankRecord{ID: "b-split", Debit: decimal.NewFromInt(1000)}

	none := makeBank("b-none", "12.34", d)
	none.Description = "bank fee"

	banks := []BankRecord{high, medium, low, split, none}

	cHigh := makeCandidate("c-high", "1000", datePtr(d))
	cHigh.Reference = "REF-123"
	cHigh.ChequeNumber = "CHQ001"

	cands := []CandidateRecord{
		cHigh,
		makeCandidate("c-medium", "250", datePtr(d)),          // 60
		makeCandidate("c-low", "75", datePtr(day(2024, 6, 14))), // 53.3
		makeCandidate("c-600", "600", nil),
		makeCandidate("c-400", "400", nil),
	}
	return banks, cands
}

func TestRunBatch_Buckets(t *testing.T) {
	// Arrange
	cfg := DefaultConfig()
	banks, cands := batchFixture()

	// Act
	res := RunBatch(banks, cands, cfg)

	// Assert
	require.Len(t, res.HighConfidence, 1)
	assert.Equal(t, "c-high", res.HighConfidence[0].CandidateID)

	require.Len(t, res.MediumConfidence, 1)
	assert.Equal(t, "c-medium", res.MediumConfidence[0].CandidateID)

	require.Len(t, res.LowConfidence, 1)
	assert.Equal(t, "c-low", res.LowConfidence[0].CandidateID)

	require.Len(t, res.MultiMatches, 1)
	assert.Equal(t, "b-split", res.MultiMatches[0].BankRecordID)
	assert.ElementsMatch(t, []string{"c-600", "c-400"}, res.MultiMatches[0].CandidateIDs)

	require.Len(t, res.Unmatched, 1)
	assert.Equal(t, "b-none", res.Unmatched[0].ID)

	stats := res.Statistics
	assert.Equal(t, 5, stats.TotalBankRecords)
	assert.Equal(t, 5, stats.TotalCandidates)
	assert.Equal(t, 1, stats.HighConfidence)
	assert.Equal(t, 1, stats.MediumConfidence)
	assert.Equal(t, 1, stats.LowConfidence)
	assert.Equal(t, 1, stats.MultiMatches)
	assert.Equal(t, 1, stats.Unmatched)
	assert.InDelta(t, 0.8, stats.EstimatedMatchRate, 0.0001)
}

func TestRunBatch_PairClaimsAreNotReusedByCombinations(t *testing.T) {
	cfg := DefaultConfig()
	d := day(2024, 6, 15)
	banks := []BankRecord{
		makeBank("b1", "600", d),
		{ID: "b2", Debit: decimal.NewFromInt(1000)},
	}
	cands := []CandidateRecord{
		makeCandidate("c-600", "600", datePtr(d)),
		makeCandidate("c-400", "400", nil),
	}

	res := RunBatch(banks, cands, cfg)

	require.Len(t, res.MediumConfidence, 1)
	assert.Equal(t, "c-600", res.MediumConfidence[0].CandidateID)
	assert.Empty(t, res.MultiMatches)
	require.Len(t, res.Unmatched, 1)
	assert.Equal(t, "b2", res.Unmatched[0].ID)
}

func TestRunBatch_FloorRejectedSingleIsNotPaddedIntoCombination(t *testing.T) {
	cfg := DefaultConfig()
	d := day(2024, 6, 15)
	banks := []BankRecord{makeBank("b1", "1000", d)}
	cands := []CandidateRecord{
		makeCandidate("c1", "1000", nil),
		makeCandidate("c2", "5", datePtr(d)),
	}

	res := RunBatch(banks, cands, cfg)

	assert.Empty(t, res.HighConfidence)
	assert.Empty(t, res.MediumConfidence)
	assert.Empty(t, res.LowConfidence)
	assert.Empty(t, res.MultiMatches)
	require.Len(t, res.Unmatched, 1)
	assert.Equal(t, "b1", res.Unmatched[0].ID)
}

func TestRunBatch_Idempotent(t *testing.T) {
	cfg := DefaultConfig()
	banks, cands := batchFixture()

	first := RunBatch(banks, cands, cfg)
	second := RunBatch(banks, cands, cfg)

	assert.Equal(t, first, second)
}

func TestRunBatch_EmptyStatement(t *testing.T) {
	cfg := DefaultConfig()
	_, cands := batchFixture()

	res := RunBatch(nil, cands, cfg)

	assert.Empty(t, res.HighConfidence)
	assert.Empty(t, res.MultiMatches)
	assert.Empty(t, res.Unmatched)
	assert.Equal(t, 0, res.Statistics.TotalBankRecords)
	assert.Equal(t, len(cands), res.Statistics.TotalCandidates)
	assert.Equal(t, 0.0, res.Statistics.EstimatedMatchRate)
}

func TestBatchResult_Suggestions(t *testing.T) {
	cfg := DefaultConfig()
	banks, cands := batchFixture()
	res := RunBatch(banks, cands, cfg)

	high := res.Suggestions(ConfidenceHigh)
	require.Len(t, high, 1)
	assert.Equal(t, "b-high", high[0].BankRecordID)

	all := res.Suggestions(ConfidenceLow, ConfidenceHigh, ConfidenceMedium)
	require.Len(t, all, 3)
	assert.Equal(t, ConfidenceHigh, all[0].Confidence)
	assert.Equal(t, ConfidenceMedium, all[1].Confidence)
	assert.Equal(t, ConfidenceLow, all[2].Confidence)
}
