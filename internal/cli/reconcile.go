package cli

import (
	"fmt"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

func newReconcileCmd(rt *runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "reconcile",
		Short: "Compare stored balances with the sum of each account's records",
		Long: `reconcile runs one reconciliation pass. Every drifted account is listed and,
with --publish-events, reported on the ledger events exchange. The command
exits non-zero when any drift is found.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := rt.open(cmd.Context()); err != nil {
				return err
			}

			drifts, err := rt.reconciler().RunOnce(cmd.Context())
			if err != nil {
				return err
			}
			if len(drifts) == 0 {
				pterm.Success.Println("All balances match their records")
				return nil
			}

			if err := renderTable(driftTable(drifts)); err != nil {
				return err
			}
			return fmt.Errorf("%d account(s) drifted from their records", len(drifts))
		},
	}
}
