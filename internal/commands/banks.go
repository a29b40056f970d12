package commands

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func newBanksCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "banks",
		Short: "List the banks accounts can be opened at",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withApp(func(app *App) error {
				banks, err := app.Banks.ListBanks(cmd.Context())
				if err != nil {
					return err
				}
				if opts.json {
					return opts.printJSON(cmd.OutOrStdout(), banks)
				}
				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "ID\tCODE\tNAME")
				for _, b := range banks {
					fmt.Fprintf(tw, "%d\t%s\t%s\n", b.BankID, b.Code, b.Name)
				}
				return tw.Flush()
			})
		},
	}
}
