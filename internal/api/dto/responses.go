package dto

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/eshaffer321/bank-reconciliation/internal/domain/matching"
	"github.com/eshaffer321/bank-reconciliation/internal/domain/reconciliation"
	"github.com/eshaffer321/bank-reconciliation/internal/domain/validator"
)

// HealthResponse is returned by the health check endpoint.
type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
}

// NewHealthResponse creates a healthy response with the current timestamp.
func NewHealthResponse() HealthResponse {
	return HealthResponse{
		Status:    "ok",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
}

// StatementResponse represents a bank statement in API responses.
type StatementResponse struct {
	ID             string          `json:"id"`
	AccountID      string          `json:"account_id"`
	PeriodStart    string          `json:"period_start,omitempty"`
	PeriodEnd      string          `json:"period_end,omitempty"`
	OpeningBalance decimal.Decimal `json:"opening_balance"`
	ClosingBalance decimal.Decimal `json:"closing_balance"`
	Status         string          `json:"status"`
}

// StatementListResponse is returned by GET /api/statements.
type StatementListResponse struct {
	Statements []StatementResponse `json:"statements"`
	Count      int                 `json:"count"`
}

// BankRecordResponse represents a bank statement line.
type BankRecordResponse struct {
	ID           string          `json:"id"`
	Date         string          `json:"date"`
	Description  string          `json:"description"`
	Reference    string          `json:"reference,omitempty"`
	ChequeNumber string          `json:"cheque_number,omitempty"`
	Debit        decimal.Decimal `json:"debit"`
	Credit       decimal.Decimal `json:"credit"`
	Reconciled   bool            `json:"reconciled"`
}

// SuggestionResponse is one proposed bank/candidate pair.
type SuggestionResponse struct {
	BankRecordID string              `json:"bank_record_id"`
	CandidateID  string              `json:"candidate_id"`
	Score        float64             `json:"score"`
	Confidence   string              `json:"confidence"`
	Reasons      []string            `json:"reasons"`
	Flags        matching.MatchFlags `json:"flags"`
}

// MultiMatchResponse is one proposed bank record to candidate-set match.
type MultiMatchResponse struct {
	BankRecordID string          `json:"bank_record_id"`
	CandidateIDs []string        `json:"candidate_ids"`
	Score        float64         `json:"score"`
	Confidence   string          `json:"confidence"`
	TotalAmount  decimal.Decimal `json:"total_amount"`
	AmountDiff   decimal.Decimal `json:"amount_diff"`
	Explanation  string          `json:"explanation"`
	Reasons      []string        `json:"reasons"`
}

// SuggestionsResponse is returned by GET /api/statements/{id}/suggestions.
type SuggestionsResponse struct {
	StatementID      string               `json:"statement_id"`
	HighConfidence   []SuggestionResponse `json:"high_confidence"`
	MediumConfidence []SuggestionResponse `json:"medium_confidence"`
	LowConfidence    []SuggestionResponse `json:"low_confidence"`
	MultiMatches     []MultiMatchResponse `json:"multi_matches"`
	Unmatched        []BankRecordResponse `json:"unmatched"`
	Statistics       matching.Statistics  `json:"statistics"`
}

// MatchResponse represents a persisted match.
type MatchResponse struct {
	ID           string   `json:"id"`
	StatementID  string   `json:"statement_id"`
	BankRecordID string   `json:"bank_record_id"`
	CandidateIDs []string `json:"candidate_ids"`
	MatchType    string   `json:"match_type"`
	Score        float64  `json:"score"`
	MatchedAt    string   `json:"matched_at"`
	MatchedBy    string   `json:"matched_by,omitempty"`
	Notes        string   `json:"notes,omitempty"`
}

// MatchListResponse is returned by GET /api/statements/{id}/matches.
type MatchListResponse struct {
	Matches []MatchResponse `json:"matches"`
	Count   int             `json:"count"`
}

// AutoMatchResponse is returned by POST /api/statements/{id}/auto-match.
type AutoMatchResponse struct {
	StatementID string              `json:"statement_id"`
	Matched     int                 `json:"matched"`
	Skipped     int                 `json:"skipped"`
	Errors      []string            `json:"errors"`
	Matches     []MatchResponse     `json:"matches"`
	Statistics  matching.Statistics `json:"statistics"`
}

// BalanceResponse is returned by GET /api/statements/{id}/balance.
type BalanceResponse struct {
	StatementID     string                 `json:"statement_id"`
	Valid           bool                   `json:"valid"`
	Opening         decimal.Decimal        `json:"opening_balance"`
	Closing         decimal.Decimal        `json:"closing_balance"`
	TotalDebits     decimal.Decimal        `json:"total_debits"`
	TotalCredits    decimal.Decimal        `json:"total_credits"`
	ComputedClosing decimal.Decimal        `json:"computed_closing"`
	Difference      decimal.Decimal        `json:"difference"`
	LineMismatches  []LineMismatchResponse `json:"line_mismatches"`
	Reason          string                 `json:"reason,omitempty"`
}

// LineMismatchResponse is a line whose running balance disagrees.
type LineMismatchResponse struct {
	BankRecordID string          `json:"bank_record_id"`
	Expected     decimal.Decimal `json:"expected"`
	Stated       decimal.Decimal `json:"stated"`
}

// NewBalanceResponse converts a balance check for the API.
func NewBalanceResponse(statementID string, v *validator.BalanceValidation) BalanceResponse {
	resp := BalanceResponse{
		StatementID:     statementID,
		Valid:           v.Valid,
		Opening:         v.Opening,
		Closing:         v.Closing,
		TotalDebits:     v.TotalDebits,
		TotalCredits:    v.TotalCredits,
		ComputedClosing: v.ComputedClosing,
		Difference:      v.Difference,
		LineMismatches:  make([]LineMismatchResponse, 0, len(v.LineMismatches)),
		Reason:          v.Reason,
	}
	for _, m := range v.LineMismatches {
		resp.LineMismatches = append(resp.LineMismatches, LineMismatchResponse{
			BankRecordID: m.BankRecordID,
			Expected:     m.Expected,
			Stated:       m.Stated,
		})
	}
	return resp
}

// NewStatementResponse converts a statement for the API.
func NewStatementResponse(st reconciliation.Statement) StatementResponse {
	return StatementResponse{
		ID:             st.ID,
		AccountID:      st.AccountID,
		PeriodStart:    formatDate(st.PeriodStart),
		PeriodEnd:      formatDate(st.PeriodEnd),
		OpeningBalance: st.OpeningBalance,
		ClosingBalance: st.ClosingBalance,
		Status:         string(st.Status),
	}
}

// NewMatchResponse converts a persisted match for the API.
func NewMatchResponse(m reconciliation.Match) MatchResponse {
	return MatchResponse{
		ID:           m.ID,
		StatementID:  m.StatementID,
		BankRecordID: m.BankRecordID,
		CandidateIDs: nonNil(m.CandidateIDs),
		MatchType:    string(m.MatchType),
		Score:        m.Score,
		MatchedAt:    m.MatchedAt.UTC().Format(time.RFC3339),
		MatchedBy:    m.MatchedBy,
		Notes:        m.Notes,
	}
}

// NewSuggestionsResponse converts a batch result for the API. Empty buckets
// are encoded as [] rather than null.
func NewSuggestionsResponse(statementID string, r *matching.BatchResult) SuggestionsResponse {
	resp := SuggestionsResponse{
		StatementID:      statementID,
		HighConfidence:   toSuggestions(r.HighConfidence),
		MediumConfidence: toSuggestions(r.MediumConfidence),
		LowConfidence:    toSuggestions(r.LowConfidence),
		MultiMatches:     make([]MultiMatchResponse, 0, len(r.MultiMatches)),
		Unmatched:        make([]BankRecordResponse, 0, len(r.Unmatched)),
		Statistics:       r.Statistics,
	}
	for _, m := range r.MultiMatches {
		resp.MultiMatches = append(resp.MultiMatches, MultiMatchResponse{
			BankRecordID: m.BankRecordID,
			CandidateIDs: nonNil(m.CandidateIDs),
			Score:        m.CombinedScore,
			Confidence:   string(m.Confidence),
			TotalAmount:  m.TotalAmount,
			AmountDiff:   m.AmountDiff,
			Explanation:  m.Explanation,
			Reasons:      nonNil(m.Reasons),
		})
	}
	for _, b := range r.Unmatched {
		resp.Unmatched = append(resp.Unmatched, BankRecordResponse{
			ID:           b.ID,
			Date:         formatDate(b.Date),
			Description:  b.Description,
			Reference:    b.Reference,
			ChequeNumber: b.ChequeNumber,
			Debit:        b.Debit,
			Credit:       b.Credit,
			Reconciled:   b.Reconciled,
		})
	}
	return resp
}

func toSuggestions(in []matching.MatchSuggestion) []SuggestionResponse {
	out := make([]SuggestionResponse, 0, len(in))
	for _, s := range in {
		out = append(out, SuggestionResponse{
			BankRecordID: s.BankRecordID,
			CandidateID:  s.CandidateID,
			Score:        s.Score,
			Confidence:   string(s.Confidence),
			Reasons:      nonNil(s.Reasons),
			Flags:        s.Flags,
		})
	}
	return out
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format("2006-01-02")
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
