package commands

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"bank_ledger/internal/registry"
	"bank_ledger/internal/session"
)

func newRegisterCommand(opts *rootOptions) *cobra.Command {
	var p registry.RegisterParams

	cmd := &cobra.Command{
		Use:   "register",
		Short: "Open an account with a zero-balance wallet",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withApp(func(app *App) error {
				user, err := app.Accounts.Register(cmd.Context(), p)
				if err != nil {
					return err
				}
				view, err := app.Accounts.ResolveUser(cmd.Context(), user.UserID)
				if err != nil {
					return err
				}
				if opts.json {
					return opts.printJSON(cmd.OutOrStdout(), view)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Registered %s: account %s at %s (%s wallet)\n",
					view.Username, view.AccountNumber, view.BankName, view.WalletType)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&p.Username, "username", "", "username (required)")
	cmd.Flags().StringVar(&p.PIN, "pin", "", "four digit PIN (required)")
	cmd.Flags().UintVar(&p.BankID, "bank", 0, "bank id, see 'bankctl banks' (required)")
	cmd.Flags().StringVar(&p.WalletType, "wallet-type", "", "VISA, Verve or MasterCard (default Verve)")
	_ = cmd.MarkFlagRequired("username")
	_ = cmd.MarkFlagRequired("pin")
	_ = cmd.MarkFlagRequired("bank")

	return cmd
}

func newLoginCommand(opts *rootOptions) *cobra.Command {
	var username, pin string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Verify your PIN and start a session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withApp(func(app *App) error {
				if err := app.Vault.Authenticate(cmd.Context(), username, pin); err != nil {
					return err
				}
				view, err := app.Accounts.Resolve(cmd.Context(), username)
				if err != nil {
					return err
				}
				token, err := session.Issue(view.UserID, view.Username, view.AccountNumber,
					app.Config.SessionSecret, app.Config.SessionTTL)
				if err != nil {
					return err
				}
				if err := session.Save(app.Config.SessionFile, token); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Logged in as %s (session valid for %s)\n", view.Username, app.Config.SessionTTL)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&username, "username", "", "username (required)")
	cmd.Flags().StringVar(&pin, "pin", "", "four digit PIN (required)")
	_ = cmd.MarkFlagRequired("username")
	_ = cmd.MarkFlagRequired("pin")

	return cmd
}

func newLogoutCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "End the current session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withApp(func(app *App) error {
				if err := session.Clear(app.Config.SessionFile); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Logged out")
				return nil
			})
		},
	}
}

func newAccountCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "account",
		Short: "Show the logged-in account and balance",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withApp(func(app *App) error {
				claims, err := currentSession(app)
				if err != nil {
					return err
				}
				view, err := app.Accounts.ResolveUser(cmd.Context(), claims.UserID)
				if err != nil {
					return err
				}
				if opts.json {
					return opts.printJSON(cmd.OutOrStdout(), view)
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Username:  %s\n", view.Username)
				fmt.Fprintf(out, "Account:   %s\n", view.AccountNumber)
				fmt.Fprintf(out, "Bank:      %s (%s)\n", view.BankName, view.BankCode)
				fmt.Fprintf(out, "Wallet:    %s\n", view.WalletType)
				fmt.Fprintf(out, "Balance:   %s\n", view.Balance.StringFixed(2))
				return nil
			})
		},
	}
}

// currentSession loads and validates the stored session token.
func currentSession(app *App) (*session.Claims, error) {
	token, err := session.Load(app.Config.SessionFile)
	if err != nil {
		if errors.Is(err, session.ErrNoSession) {
			return nil, fmt.Errorf("%w: run 'bankctl login' first", err)
		}
		return nil, err
	}
	return session.Parse(token, app.Config.SessionSecret)
}
