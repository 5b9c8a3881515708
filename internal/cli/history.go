package cli

import (
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"github.com/transfa/ledger-service/internal/domain"
)

type historyFlags struct {
	Type    string
	Page    int
	PerPage int
}

func newHistoryCmd(rt *runtime) *cobra.Command {
	flags := &historyFlags{}

	cmd := &cobra.Command{
		Use:   "history <subject>",
		Short: "List an account's transactions, most recent first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := rt.open(cmd.Context()); err != nil {
				return err
			}
			account, err := rt.svc.ResolveAccount(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			filter := domain.TransactionFilter{Page: flags.Page, PerPage: flags.PerPage}
			if flags.Type != "" {
				t := domain.TransactionType(flags.Type)
				filter.Type = &t
			}
			page, err := rt.svc.ListTransactions(cmd.Context(), account.ID, filter)
			if err != nil {
				return err
			}

			if len(page.Items) == 0 {
				pterm.Warning.Println("No transactions found")
				return nil
			}
			pterm.DefaultSection.Printf("%s (%s)", account.Name, account.AccountNumber)
			if err := renderTable(transactionTable(page.Items)); err != nil {
				return err
			}
			pterm.Info.Printfln("Page %d of %d, %d transactions in total", page.Meta.CurrentPage, page.Meta.LastPage, page.Meta.Total)
			return nil
		},
	}

	cmd.Flags().StringVarP(&flags.Type, "type", "t", "", "filter by type (deposit, transfer, withdrawal)")
	cmd.Flags().IntVarP(&flags.Page, "page", "p", 1, "page number")
	cmd.Flags().IntVar(&flags.PerPage, "per-page", domain.DefaultHistoryPerPage, "rows per page")

	return cmd
}
