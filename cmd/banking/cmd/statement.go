package cmd

import (
	"errors"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/keneth217/bank/internal/domain"
	"github.com/keneth217/bank/internal/notify"
)

var statementCmd = &cobra.Command{
	Use:   "statement",
	Short: "Print an account statement",
	Long: `Print the ledger entries of one account between two calendar days, both inclusive.

Example:
  banking statement --account 2024123456 --start 2024-01-01 --end 2024-01-31`,
	RunE: runStatement,
}

var (
	statementAccount string
	statementStart   string
	statementEnd     string
)

func init() {
	rootCmd.AddCommand(statementCmd)
	statementCmd.Flags().StringVarP(&statementAccount, "account", "a", "", "account number (required)")
	statementCmd.Flags().StringVar(&statementStart, "start", "", "first day, YYYY-MM-DD (required)")
	statementCmd.Flags().StringVar(&statementEnd, "end", "", "last day, YYYY-MM-DD (required)")
	statementCmd.MarkFlagRequired("account")
	statementCmd.MarkFlagRequired("start")
	statementCmd.MarkFlagRequired("end")
}

func runStatement(cmd *cobra.Command, args []string) error {
	start, err := time.Parse(time.DateOnly, statementStart)
	if err != nil {
		return fmt.Errorf("invalid --start: %w", err)
	}
	end, err := time.Parse(time.DateOnly, statementEnd)
	if err != nil {
		return fmt.Errorf("invalid --end: %w", err)
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger, err := newLogger()
	if err != nil {
		return err
	}
	defer logger.Sync()

	db, err := openDatabase(cfg, logger, 1)
	if err != nil {
		return err
	}
	defer db.Close()

	// Statement sends no notifications, so the dispatcher is never started.
	dispatcher := notify.NewDispatcher(notify.NewLogNotifier(logger), notify.DispatcherConfig{}, logger)
	defer dispatcher.Close()

	svc := newBankingService(db, cfg, dispatcher, logger)
	entries, err := svc.Statement(cmd.Context(), statementAccount, start, end)
	if errors.Is(err, domain.ErrAccountNotFound) {
		return fmt.Errorf("account %s does not exist", statementAccount)
	}
	if err != nil {
		return err
	}
	total, err := svc.EntryCount(cmd.Context(), statementAccount)
	if err != nil {
		return err
	}
	return printStatement(cmd.OutOrStdout(), entries, total)
}

func printStatement(out io.Writer, entries []domain.LedgerEntry, total int) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "DATE\tKIND\tAMOUNT\tCOUNTERPARTY\tENTRY")
	for _, e := range entries {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			e.CreatedAt.Format(time.RFC3339), e.Kind, domain.FormatMoney(e.Amount), e.Counterparty, e.ID)
	}
	if err := w.Flush(); err != nil {
		return err
	}
	_, err := fmt.Fprintf(out, "\n%d of %d ledger entries\n", len(entries), total)
	return err
}
