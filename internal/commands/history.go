package commands

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

func newHistoryCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "history",
		Short: "List your transactions, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withApp(func(app *App) error {
				claims, err := currentSession(app)
				if err != nil {
					return err
				}
				records, err := app.Ledger.TransactionHistory(cmd.Context(), claims.UserID)
				if err != nil {
					return err
				}
				if opts.json {
					return opts.printJSON(cmd.OutOrStdout(), records)
				}
				if len(records) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No transactions yet")
					return nil
				}
				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "TIME\tTYPE\tAMOUNT\tFROM\tTO\tDESCRIPTION")
				for _, r := range records {
					fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
						r.Timestamp.Local().Format(time.DateTime), r.TransactionType, r.Amount.StringFixed(2),
						dash(r.SenderAccountNumber), dash(r.ReceiverAccountNumber), r.Description)
				}
				return tw.Flush()
			})
		},
	}
}

func newAuditCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "audit",
		Short: "Check that your balance matches your transaction history",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withApp(func(app *App) error {
				claims, err := currentSession(app)
				if err != nil {
					return err
				}
				rec, err := app.Ledger.Reconcile(cmd.Context(), claims.UserID)
				if err != nil {
					return err
				}
				if opts.json {
					return opts.printJSON(cmd.OutOrStdout(), rec)
				}
				status := "OK"
				if !rec.OK {
					status = "MISMATCH"
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Balance %s, credits %s, debits %s over %d records: %s\n",
					rec.Balance.StringFixed(2), rec.Credits.StringFixed(2), rec.Debits.StringFixed(2), rec.Records, status)
				if !rec.OK {
					return fmt.Errorf("account %s does not reconcile", rec.AccountNumber)
				}
				return nil
			})
		},
	}
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
