package dto

// AutoMatchRequest is the body of POST /api/statements/{id}/auto-match.
// HIGH confidence suggestions are always applied.
type AutoMatchRequest struct {
	IncludeMedium bool   `json:"include_medium"`
	IncludeLow    bool   `json:"include_low"`
	IncludeMulti  bool   `json:"include_multi"`
	Actor         string `json:"actor"`
}

// ManualMatchRequest is the body of POST /api/statements/{id}/matches.
type ManualMatchRequest struct {
	BankRecordID string   `json:"bank_record_id"`
	CandidateIDs []string `json:"candidate_ids"`
	Actor        string   `json:"actor"`
	Notes        string   `json:"notes"`
}
