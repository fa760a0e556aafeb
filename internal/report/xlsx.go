// Package report exports matching results for review outside the app.
package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/eshaffer321/bank-reconciliation/internal/domain/matching"
)

// Sheet names, in workbook order.
const (
	SheetSummary   = "Summary"
	SheetHigh      = "High"
	SheetMedium    = "Medium"
	SheetLow       = "Low"
	SheetMulti     = "Multi"
	SheetUnmatched = "Unmatched"
)

var (
	suggestionHeader = []any{"Bank Record", "Candidate", "Score", "Confidence", "Reasons"}
	multiHeader      = []any{"Bank Record", "Candidates", "Score", "Confidence", "Total", "Difference", "Explanation"}
	unmatchedHeader  = []any{"Bank Record", "Date", "Description", "Reference", "Cheque", "Debit", "Credit"}
)

// WriteXLSX writes a workbook with one sheet per bucket of result.
func WriteXLSX(w io.Writer, statementID string, result *matching.BatchResult) error {
	if result == nil {
		return fmt.Errorf("no result to export for statement %s", statementID)
	}

	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("failed to create header style: %w", err)
	}

	if err := f.SetSheetName("Sheet1", SheetSummary); err != nil {
		return err
	}
	if err := writeSummary(f, bold, statementID, result.Statistics); err != nil {
		return err
	}

	for _, s := range []struct {
		name  string
		items []matching.MatchSuggestion
	}{
		{SheetHigh, result.HighConfidence},
		{SheetMedium, result.MediumConfidence},
		{SheetLow, result.LowConfidence},
	} {
		rows := make([][]any, 0, len(s.items))
		for _, sug := range s.items {
			rows = append(rows, []any{
				sug.BankRecordID,
				sug.CandidateID,
				sug.Score,
				string(sug.Confidence),
				strings.Join(sug.Reasons, "; "),
			})
		}
		if err := writeSheet(f, bold, s.name, suggestionHeader, rows); err != nil {
			return err
		}
	}

	multi := make([][]any, 0, len(result.MultiMatches))
	for _, m := range result.MultiMatches {
		multi = append(multi, []any{
			m.BankRecordID,
			strings.Join(m.CandidateIDs, ", "),
			m.CombinedScore,
			string(m.Confidence),
			m.TotalAmount.InexactFloat64(),
			m.AmountDiff.InexactFloat64(),
			m.Explanation,
		})
	}
	if err := writeSheet(f, bold, SheetMulti, multiHeader, multi); err != nil {
		return err
	}

	unmatched := make([][]any, 0, len(result.Unmatched))
	for _, b := range result.Unmatched {
		unmatched = append(unmatched, []any{
			b.ID,
			b.Date.Format("2006-01-02"),
			b.Description,
			b.Reference,
			b.ChequeNumber,
			b.Debit.InexactFloat64(),
			b.Credit.InexactFloat64(),
		})
	}
	if err := writeSheet(f, bold, SheetUnmatched, unmatchedHeader, unmatched); err != nil {
		return err
	}

	f.SetActiveSheet(0)
	return f.Write(w)
}

func writeSummary(f *excelize.File, bold int, statementID string, st matching.Statistics) error {
	rows := [][]any{
		{"Statement", statementID},
		{"Bank records", st.TotalBankRecords},
		{"Candidates", st.TotalCandidates},
		{"High confidence", st.HighConfidence},
		{"Medium confidence", st.MediumConfidence},
		{"Low confidence", st.LowConfidence},
		{"Multi-transaction", st.MultiMatches},
		{"Unmatched", st.Unmatched},
		{"Estimated match rate", st.EstimatedMatchRate},
	}
	for i, row := range rows {
		cell, _ := excelize.CoordinatesToCellName(1, i+1)
		if err := f.SetSheetRow(SheetSummary, cell, &row); err != nil {
			return fmt.Errorf("failed to write summary: %w", err)
		}
	}
	if err := f.SetColStyle(SheetSummary, "A", bold); err != nil {
		return err
	}
	return f.SetColWidth(SheetSummary, "A", "A", 24)
}

func writeSheet(f *excelize.File, bold int, name string, header []any, rows [][]any) error {
	if _, err := f.NewSheet(name); err != nil {
		return fmt.Errorf("failed to create sheet %s: %w", name, err)
	}
	if err := f.SetSheetRow(name, "A1", &header); err != nil {
		return err
	}
	if err := f.SetRowStyle(name, 1, 1, bold); err != nil {
		return err
	}
	for i, row := range rows {
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		if err := f.SetSheetRow(name, cell, &row); err != nil {
			return fmt.Errorf("failed to write %s row %d: %w", name, i+1, err)
		}
	}

	last, _ := excelize.ColumnNumberToName(len(header))
	return f.SetColWidth(name, "A", last, 18)
}
