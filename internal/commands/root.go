package commands

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"
)

// Opener produces the App a command runs against.
type Opener func() (*App, error)

type rootOptions struct {
	open Opener
	json bool
}

// NewRootCommand creates the bankctl command tree. Every subcommand obtains
// its services from open and closes them when it returns.
func NewRootCommand(open Opener) *cobra.Command {
	opts := &rootOptions{open: open}

	rootCmd := &cobra.Command{
		Use:   "bankctl",
		Short: "Personal banking ledger: accounts, deposits, transfers, history",
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().BoolVar(&opts.json, "json", false, "print results as JSON")

	rootCmd.AddCommand(
		newBanksCommand(opts),
		newRegisterCommand(opts),
		newLoginCommand(opts),
		newLogoutCommand(opts),
		newAccountCommand(opts),
		newDepositCommand(opts),
		newTransferCommand(opts),
		newWithdrawCommand(opts),
		newHistoryCommand(opts),
		newAuditCommand(opts),
	)

	return rootCmd
}

// withApp opens the App for the duration of fn.
func (o *rootOptions) withApp(fn func(app *App) error) error {
	app, err := o.open()
	if err != nil {
		return err
	}
	defer app.Close()
	return fn(app)
}

func (o *rootOptions) printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encoding output: %w", err)
	}
	return nil
}
