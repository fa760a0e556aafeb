// Package ledger converts loosely shaped accounting ledger records into the
// typed candidates the matching engine scores.
//
// Ledger rows arrive from several sources (journal exports, invoice
// payments, manual entries) and do not share a schema. Project reads only the
// fields the engine needs and treats anything missing or malformed as absent.
package ledger

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/eshaffer321/bank-reconciliation/internal/domain/matching"
)

// ErrMissingID is returned for records without a usable identifier.
var ErrMissingID = errors.New("ledger record has no id")

// Field aliases, first present key wins.
var (
	idKeys          = []string{"id", "transactionId", "transaction_id"}
	dateKeys        = []string{"date", "transactionDate", "transaction_date", "entryDate", "entry_date"}
	descriptionKeys = []string{"description", "memo", "narration"}
	referenceKeys   = []string{"reference", "referenceNumber", "reference_number", "invoiceNumber", "invoice_number"}
	chequeKeys      = []string{"chequeNumber", "cheque_number", "checkNumber", "check_number"}
	amountKeys      = []string{"amount", "totalAmount", "total_amount"}
	reconciledKeys  = []string{"reconciled", "isReconciled", "is_reconciled"}
)

var dateLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	time.DateOnly,
	"02/01/2006",
}

// Project builds a CandidateRecord from a raw ledger record.
func Project(raw map[string]any) (matching.CandidateRecord, error) {
	id := firstString(raw, idKeys)
	if id == "" {
		return matching.CandidateRecord{}, ErrMissingID
	}

	c := matching.CandidateRecord{
		ID:           id,
		Description:  firstString(raw, descriptionKeys),
		Reference:    firstString(raw, referenceKeys),
		ChequeNumber: firstString(raw, chequeKeys),
		Reconciled:   firstBool(raw, reconciledKeys),
	}

	if d, ok := firstTime(raw, dateKeys); ok {
		c.Date = &d
	}

	// amount wins over totalAmount only when it parses
	for _, key := range amountKeys {
		if v, ok := raw[key]; ok {
			if amt, ok := toDecimal(v); ok {
				c.Amount = decimal.NewNullDecimal(amt)
				break
			}
		}
	}

	return c, nil
}

// ProjectAll projects records in order. Records that cannot be projected are
// skipped and reported in the returned error list.
func ProjectAll(raws []map[string]any) ([]matching.CandidateRecord, []error) {
	out := make([]matching.CandidateRecord, 0, len(raws))
	var errs []error
	for i, raw := range raws {
		c, err := Project(raw)
		if err != nil {
			errs = append(errs, fmt.Errorf("record %d: %w", i, err))
			continue
		}
		out = append(out, c)
	}
	return out, errs
}

// Decode unmarshals a JSON ledger payload, keeping numbers exact.
func Decode(payload []byte) (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader(payload))
	dec.UseNumber()

	var raw map[string]any
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("failed to decode ledger payload: %w", err)
	}
	return raw, nil
}

func firstString(raw map[string]any, keys []string) string {
	for _, key := range keys {
		v, ok := raw[key]
		if !ok || v == nil {
			continue
		}
		var s string
		switch t := v.(type) {
		case string:
			s = t
		case json.Number:
			s = t.String()
		case int, int32, int64, float64:
			s = fmt.Sprint(t)
		default:
			continue
		}
		if s = strings.TrimSpace(s); s != "" {
			return s
		}
	}
	return ""
}

func firstBool(raw map[string]any, keys []string) bool {
	for _, key := range keys {
		if b, ok := raw[key].(bool); ok {
			return b
		}
	}
	return false
}

func firstTime(raw map[string]any, keys []string) (time.Time, bool) {
	for _, key := range keys {
		switch t := raw[key].(type) {
		case time.Time:
			if !t.IsZero() {
				return t, true
			}
		case *time.Time:
			if t != nil && !t.IsZero() {
				return *t, true
			}
		case string:
			s := strings.TrimSpace(t)
			for _, layout := range dateLayouts {
				if parsed, err := time.Parse(layout, s); err == nil {
					return parsed, true
				}
			}
		}
	}
	return time.Time{}, false
}

func toDecimal(v any) (decimal.Decimal, bool) {
	switch t := v.(type) {
	case decimal.Decimal:
		return t, true
	case float64:
		if math.IsNaN(t) || math.IsInf(t, 0) {
			return decimal.Zero, false
		}
		return decimal.NewFromFloat(t), true
	case float32:
		if f := float64(t); math.IsNaN(f) || math.IsInf(f, 0) {
			return decimal.Zero, false
		}
		return decimal.NewFromFloat32(t), true
	case int:
		return decimal.NewFromInt(int64(t)), true
	case int64:
		return decimal.NewFromInt(t), true
	case json.Number:
		d, err := decimal.NewFromString(t.String())
		return d, err == nil
	case string:
		s := strings.ReplaceAll(strings.TrimSpace(t), ",", "")
		if s == "" {
			return decimal.Zero, false
		}
		d, err := decimal.NewFromString(s)
		return d, err == nil
	}
	return decimal.Zero, false
}
