// Command reconcile matches bank statement lines against ledger
// transactions. It can import statements, print and apply suggestions,
// reverse matches and serve the HTTP API.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/eshaffer321/bank-reconciliation/internal/cli"
	"github.com/eshaffer321/bank-reconciliation/internal/infrastructure/config"
)

var (
	cfgFile string
	verbose bool
	rootCmd = &cobra.Command{
		Use:   "reconcile",
		Short: "Bank statement reconciliation",
		Long: `reconcile scores bank statement lines against unreconciled ledger
transactions, proposes one-to-one and one-to-many matches, and records
the matches a user or the scheduler accepts.`,
		SilenceUsage: true,
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "config.yaml", "config file, falls back to environment variables")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(importCmd())
	rootCmd.AddCommand(statementsCmd())
	rootCmd.AddCommand(suggestCmd())
	rootCmd.AddCommand(autoMatchCmd())
	rootCmd.AddCommand(matchCmd())
	rootCmd.AddCommand(unmatchCmd())
	rootCmd.AddCommand(runScheduledCmd())
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	err := rootCmd.ExecuteContext(ctx)
	stop()

	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// openApp loads configuration and opens the database for a command.
func openApp(component string) (*cli.App, error) {
	cfg := config.LoadOrEnvWithPath(cfgFile)
	return cli.OpenApp(cfg, component, verbose)
}

func closeApp(app *cli.App) {
	if err := app.Close(); err != nil {
		slog.Error("failed to close storage", "error", err)
	}
}
