package cli

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/eshaffer321/bank-reconciliation/internal/application/reconcile"
	"github.com/eshaffer321/bank-reconciliation/internal/domain/matching"
	"github.com/eshaffer321/bank-reconciliation/internal/domain/reconciliation"
)

// PrintHeader prints the command header
func PrintHeader(w io.Writer, command, statementID string) {
	fmt.Fprintf(w, "reconcile: %s (statement %s)\n\n", command, statementID)
}

// PrintStatements prints one line per statement.
func PrintStatements(w io.Writer, stmts []reconciliation.Statement) {
	if len(stmts) == 0 {
		fmt.Fprintln(w, "No statements found.")
		return
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tACCOUNT\tPERIOD\tSTATUS")
	for _, s := range stmts {
		fmt.Fprintf(tw, "%s\t%s\t%s .. %s\t%s\n",
			s.ID, s.AccountID,
			s.PeriodStart.Format("2006-01-02"), s.PeriodEnd.Format("2006-01-02"),
			s.Status)
	}
	_ = tw.Flush()
}

// PrintSuggestions prints every bucket of a matching run followed by the
// statistics line.
func PrintSuggestions(w io.Writer, result *matching.BatchResult) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)

	buckets := []struct {
		name  string
		items []matching.MatchSuggestion
	}{
		{"HIGH", result.HighConfidence},
		{"MEDIUM", result.MediumConfidence},
		{"LOW", result.LowConfidence},
	}
	for _, b := range buckets {
		if len(b.items) == 0 {
			continue
		}
		fmt.Fprintf(tw, "%s (%d)\n", b.name, len(b.items))
		for _, s := range b.items {
			fmt.Fprintf(tw, "  %s\t-> %s\t%.2f\t%s\n", s.BankRecordID, s.CandidateID, s.Score, strings.Join(s.Reasons, "; "))
		}
	}

	if len(result.MultiMatches) > 0 {
		fmt.Fprintf(tw, "MULTI (%d)\n", len(result.MultiMatches))
		for _, m := range result.MultiMatches {
			fmt.Fprintf(tw, "  %s\t-> %s\t%.2f\t%s\n", m.BankRecordID, strings.Join(m.CandidateIDs, ", "), m.CombinedScore, m.Explanation)
		}
	}

	if len(result.Unmatched) > 0 {
		fmt.Fprintf(tw, "UNMATCHED (%d)\n", len(result.Unmatched))
		for _, b := range result.Unmatched {
			fmt.Fprintf(tw, "  %s\t%s\t%s\t%s\n", b.ID, b.Date.Format("2006-01-02"), b.Amount().StringFixed(2), b.Description)
		}
	}
	_ = tw.Flush()

	PrintStatistics(w, result.Statistics)
}

// PrintStatistics prints the one-line run summary.
func PrintStatistics(w io.Writer, st matching.Statistics) {
	fmt.Fprintln(w, strings.Repeat("-", 60))
	fmt.Fprintf(w, "Bank=%d Candidates=%d High=%d Medium=%d Low=%d Multi=%d Unmatched=%d Rate=%.1f%%\n",
		st.TotalBankRecords,
		st.TotalCandidates,
		st.HighConfidence,
		st.MediumConfidence,
		st.LowConfidence,
		st.MultiMatches,
		st.Unmatched,
		st.EstimatedMatchRate*100)
}

// PrintAutoMatchSummary prints the result of an auto-match run
func PrintAutoMatchSummary(w io.Writer, res *reconcile.AutoMatchResult) {
	exec := res.Execution
	fmt.Fprintln(w, strings.Repeat("-", 60))
	fmt.Fprintf(w, "Summary: Matched=%d Skipped=%d Errors=%d\n", exec.Matched, exec.Skipped, len(exec.Errors))

	if len(exec.Errors) > 0 {
		fmt.Fprintln(w, "\nErrors:")
		for _, e := range exec.Errors {
			fmt.Fprintf(w, "  - %s\n", e)
		}
	}
}

// PrintMatch prints a persisted match.
func PrintMatch(w io.Writer, verb string, m *reconciliation.Match) {
	fmt.Fprintf(w, "%s %s: %s -> %s (%s", verb, m.ID, m.BankRecordID, strings.Join(m.CandidateIDs, ", "), m.MatchType)
	if m.MatchedBy != "" {
		fmt.Fprintf(w, " by %s", m.MatchedBy)
	}
	fmt.Fprintln(w, ")")
}
