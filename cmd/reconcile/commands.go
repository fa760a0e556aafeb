package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/eshaffer321/bank-reconciliation/internal/application/reconcile"
	"github.com/eshaffer321/bank-reconciliation/internal/cli"
	"github.com/eshaffer321/bank-reconciliation/internal/domain/reconciliation"
	"github.com/eshaffer321/bank-reconciliation/internal/report"
)

func serveCmd() *cobra.Command {
	flags := &cli.ServeFlags{}
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := openApp("api")
			if err != nil {
				return err
			}
			defer closeApp(app)

			return cli.RunServe(cmd.Context(), app, flags)
		},
	}
	cmd.Flags().IntVar(&flags.Port, "port", 0, "port to listen on (default from config)")
	cmd.Flags().BoolVar(&flags.Scheduler, "scheduler", false, "run the auto-match scheduler even if disabled in config")
	return cmd
}

func importCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import <fixture.yaml>",
		Short: "Import a statement with its bank lines and ledger transactions",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			fixture, err := cli.LoadFixture(args[0])
			if err != nil {
				return err
			}

			app, err := openApp("import")
			if err != nil {
				return err
			}
			defer closeApp(app)

			res, err := fixture.Import(cmd.Context(), app.Store)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Imported statement %s: %d bank records, %d ledger transactions\n",
				res.StatementID, res.BankRecords, res.Ledger)
			if !res.Balance.Valid {
				fmt.Fprintf(out, "Warning: statement does not balance: %s\n", res.Balance.Reason)
			}
			return nil
		},
	}
}

func statementsCmd() *cobra.Command {
	var statuses []string
	cmd := &cobra.Command{
		Use:   "statements",
		Short: "List statements",
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := openApp("cli")
			if err != nil {
				return err
			}
			defer closeApp(app)

			var filter []reconciliation.StatementStatus
			for _, s := range statuses {
				filter = append(filter, reconciliation.StatementStatus(s))
			}
			stmts, err := app.Store.ListStatements(cmd.Context(), filter...)
			if err != nil {
				return err
			}
			cli.PrintStatements(cmd.OutOrStdout(), stmts)
			return nil
		},
	}
	cmd.Flags().StringSliceVar(&statuses, "status", nil, "filter by status (uploaded, in_progress, reconciled)")
	return cmd
}

func suggestCmd() *cobra.Command {
	var (
		statementID string
		xlsxPath    string
	)
	cmd := &cobra.Command{
		Use:   "suggest",
		Short: "Print match suggestions for a statement without saving anything",
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := openApp("cli")
			if err != nil {
				return err
			}
			defer closeApp(app)

			result, err := app.Service.Suggest(cmd.Context(), statementID)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			cli.PrintHeader(out, "suggest", statementID)
			cli.PrintSuggestions(out, result)

			if xlsxPath == "" {
				return nil
			}
			f, err := os.Create(xlsxPath)
			if err != nil {
				return fmt.Errorf("failed to create %s: %w", xlsxPath, err)
			}
			if err := report.WriteXLSX(f, statementID, result); err != nil {
				_ = f.Close()
				return err
			}
			if err := f.Close(); err != nil {
				return err
			}
			fmt.Fprintf(out, "\nWrote %s\n", xlsxPath)
			return nil
		},
	}
	cmd.Flags().StringVar(&statementID, "statement", "", "statement ID")
	cmd.Flags().StringVar(&xlsxPath, "xlsx", "", "also write the suggestions to this .xlsx file")
	_ = cmd.MarkFlagRequired("statement")
	return cmd
}

func autoMatchCmd() *cobra.Command {
	var (
		statementID string
		opts        reconcile.AutoApplyOptions
	)
	cmd := &cobra.Command{
		Use:   "auto-match",
		Short: "Apply suggestions for a statement",
		Long: `auto-match runs the matching engine and saves the selected suggestions.
Only HIGH confidence pairs are applied unless --medium, --low or --multi
widen the selection.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := openApp("cli")
			if err != nil {
				return err
			}
			defer closeApp(app)

			res, err := app.Service.AutoMatch(cmd.Context(), statementID, opts)
			if res == nil {
				return err
			}

			out := cmd.OutOrStdout()
			cli.PrintHeader(out, "auto-match", statementID)
			for _, m := range res.Execution.Matches {
				cli.PrintMatch(out, "Matched", m)
			}
			cli.PrintAutoMatchSummary(out, res)
			return err
		},
	}
	cmd.Flags().StringVar(&statementID, "statement", "", "statement ID")
	cmd.Flags().BoolVar(&opts.IncludeMedium, "medium", false, "also apply MEDIUM confidence pairs")
	cmd.Flags().BoolVar(&opts.IncludeLow, "low", false, "also apply LOW confidence pairs")
	cmd.Flags().BoolVar(&opts.IncludeMulti, "multi", false, "also apply multi-transaction matches")
	cmd.Flags().StringVar(&opts.Actor, "actor", os.Getenv("USER"), "recorded as matched_by")
	_ = cmd.MarkFlagRequired("statement")
	return cmd
}

func matchCmd() *cobra.Command {
	var req reconcile.ManualMatchRequest
	cmd := &cobra.Command{
		Use:   "match",
		Short: "Manually match a bank record to one or more ledger transactions",
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := openApp("cli")
			if err != nil {
				return err
			}
			defer closeApp(app)

			m, err := app.Service.ManualMatch(cmd.Context(), req)
			if err != nil {
				return err
			}
			cli.PrintMatch(cmd.OutOrStdout(), "Matched", m)
			return nil
		},
	}
	cmd.Flags().StringVar(&req.StatementID, "statement", "", "statement ID")
	cmd.Flags().StringVar(&req.BankRecordID, "bank-record", "", "bank record ID")
	cmd.Flags().StringSliceVar(&req.CandidateIDs, "candidate", nil, "ledger transaction ID (repeatable)")
	cmd.Flags().StringVar(&req.Actor, "actor", os.Getenv("USER"), "recorded as matched_by")
	cmd.Flags().StringVar(&req.Notes, "notes", "", "free-form note stored with the match")
	_ = cmd.MarkFlagRequired("statement")
	_ = cmd.MarkFlagRequired("bank-record")
	_ = cmd.MarkFlagRequired("candidate")
	return cmd
}

func unmatchCmd() *cobra.Command {
	var bankRecordID string
	cmd := &cobra.Command{
		Use:   "unmatch",
		Short: "Reverse the match recorded for a bank record",
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := openApp("cli")
			if err != nil {
				return err
			}
			defer closeApp(app)

			m, err := app.Service.Unmatch(cmd.Context(), bankRecordID)
			if err != nil {
				return err
			}
			cli.PrintMatch(cmd.OutOrStdout(), "Reversed", m)
			return nil
		},
	}
	cmd.Flags().StringVar(&bankRecordID, "bank-record", "", "bank record ID")
	_ = cmd.MarkFlagRequired("bank-record")
	return cmd
}

func runScheduledCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run-scheduled",
		Short: "Run the scheduled auto-match once over every open statement",
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := openApp("scheduler")
			if err != nil {
				return err
			}
			defer closeApp(app)

			sched, err := app.NewScheduler()
			if err != nil {
				return err
			}

			matched, err := sched.RunOnce(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Matched %d bank records\n", matched)
			return nil
		},
	}
}
