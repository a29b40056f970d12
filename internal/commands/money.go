package commands

import (
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"bank_ledger/internal/domain"
	"bank_ledger/internal/ledger"
)

func parseAmount(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: amount %q is not a number", domain.ErrValidation, s)
	}
	return d, nil
}

func newDepositCommand(opts *rootOptions) *cobra.Command {
	var amount, account string
	var bankID uint

	cmd := &cobra.Command{
		Use:   "deposit",
		Short: "Credit a wallet, your own unless --account is given",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			amt, err := parseAmount(amount)
			if err != nil {
				return err
			}
			return opts.withApp(func(app *App) error {
				if account == "" {
					claims, err := currentSession(app)
					if err != nil {
						return err
					}
					own, err := app.Accounts.ResolveUser(cmd.Context(), claims.UserID)
					if err != nil {
						return err
					}
					account, bankID = own.AccountNumber, own.BankID
				} else if bankID == 0 {
					return fmt.Errorf("%w: --bank is required with --account", domain.ErrValidation)
				}

				rec, err := app.Ledger.Deposit(cmd.Context(), account, bankID, amt)
				if err != nil {
					return err
				}
				if opts.json {
					return opts.printJSON(cmd.OutOrStdout(), rec)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deposited %s to %s (ref %s)\n", rec.Amount.StringFixed(2), account, rec.Reference)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&amount, "amount", "", "amount to deposit (required)")
	cmd.Flags().StringVar(&account, "account", "", "target account number")
	cmd.Flags().UintVar(&bankID, "bank", 0, "bank id of the target account")
	_ = cmd.MarkFlagRequired("amount")

	return cmd
}

func newTransferCommand(opts *rootOptions) *cobra.Command {
	var p ledger.TransferParams
	var amount string

	cmd := &cobra.Command{
		Use:   "transfer",
		Short: "Send money from your account to another",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			amt, err := parseAmount(amount)
			if err != nil {
				return err
			}
			p.Amount = amt
			return opts.withApp(func(app *App) error {
				claims, err := currentSession(app)
				if err != nil {
					return err
				}
				p.SenderIdentifier = claims.AccountNumber

				res, err := app.Ledger.Transfer(cmd.Context(), p)
				if err != nil {
					return err
				}
				if opts.json {
					return opts.printJSON(cmd.OutOrStdout(), res)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Transferred %s to %s (ref %s)\n",
					res.Debit.Amount.StringFixed(2), res.Credit.ReceiverAccountNumber, res.Reference)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&p.RecipientAccountNumber, "to", "", "recipient account number (required)")
	cmd.Flags().UintVar(&p.RecipientBankID, "bank", 0, "recipient bank id (required)")
	cmd.Flags().StringVar(&amount, "amount", "", "amount to send (required)")
	cmd.Flags().StringVar(&p.Description, "description", "", "note shown on both statements")
	_ = cmd.MarkFlagRequired("to")
	_ = cmd.MarkFlagRequired("bank")
	_ = cmd.MarkFlagRequired("amount")

	return cmd
}

func newWithdrawCommand(opts *rootOptions) *cobra.Command {
	var amount string

	cmd := &cobra.Command{
		Use:   "withdraw",
		Short: "Take money out of your account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			amt, err := parseAmount(amount)
			if err != nil {
				return err
			}
			return opts.withApp(func(app *App) error {
				claims, err := currentSession(app)
				if err != nil {
					return err
				}
				rec, err := app.Ledger.Withdraw(cmd.Context(), claims.AccountNumber, amt)
				if err != nil {
					return err
				}
				if opts.json {
					return opts.printJSON(cmd.OutOrStdout(), rec)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Withdrew %s (ref %s)\n", rec.Amount.StringFixed(2), rec.Reference)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&amount, "amount", "", "amount to withdraw (required)")
	_ = cmd.MarkFlagRequired("amount")

	return cmd
}
