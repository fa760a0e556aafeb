package storage

import (
	"fmt"
	"time"

	"github.com/eshaffer321/bank-reconciliation/internal/adapters/ledger"
	"github.com/eshaffer321/bank-reconciliation/internal/domain/matching"
)

// dateLayout is how calendar dates are stored. Lexical order equals date
// order, so range filters work on the TEXT column.
const dateLayout = "2006-01-02"

// timestampLayout has fixed-width fractions so stored timestamps sort
// lexically.
const timestampLayout = "2006-01-02T15:04:05.000000000Z07:00"

// LedgerTransaction is a stored accounting-side record. Payload holds the
// record as imported; the engine sees it through ledger.Project.
type LedgerTransaction struct {
	ID                  string         `json:"id"`
	AccountID           string         `json:"account_id"`
	Date                *time.Time     `json:"date,omitempty"`
	Payload             map[string]any `json:"payload"`
	Reconciled          bool           `json:"reconciled"`
	MatchedBankRecordID string         `json:"matched_bank_record_id,omitempty"`
}

// Candidate projects the transaction for the matching engine. Id and
// reconciliation state come from the stored columns, not the payload.
func (t *LedgerTransaction) Candidate() matching.CandidateRecord {
	raw := make(map[string]any, len(t.Payload)+1)
	for k, v := range t.Payload {
		raw[k] = v
	}
	raw["id"] = t.ID

	c, _ := ledger.Project(raw)
	c.ID = t.ID
	c.Reconciled = t.Reconciled
	return c
}

// newLedgerTransaction validates a raw record for import.
func newLedgerTransaction(accountID string, raw map[string]any) (*LedgerTransaction, error) {
	c, err := ledger.Project(raw)
	if err != nil {
		return nil, err
	}
	return &LedgerTransaction{
		ID:        c.ID,
		AccountID: accountID,
		Date:      c.Date,
		Payload:   raw,
	}, nil
}

// inWindow reports whether date falls within [from, to]. Zero bounds are open
// and a nil date is always inside.
func inWindow(date *time.Time, from, to time.Time) bool {
	if date == nil {
		return true
	}
	d := date.UTC().Format(dateLayout)
	if !from.IsZero() && d < from.UTC().Format(dateLayout) {
		return false
	}
	if !to.IsZero() && d > to.UTC().Format(dateLayout) {
		return false
	}
	return true
}

func parseDate(s string) (time.Time, error) {
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid stored date %q: %w", s, err)
	}
	return t, nil
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(dateLayout)
}

func decodePayload(payload string) (map[string]any, error) {
	if payload == "" {
		return map[string]any{}, nil
	}
	return ledger.Decode([]byte(payload))
}
