package cli

import (
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"github.com/transfa/ledger-service/internal/store"
	"github.com/transfa/ledger-service/migrations"
)

func newMigrateCmd(rt *runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending schema migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := rt.loadConfig(); err != nil {
				return err
			}

			spinner, _ := pterm.DefaultSpinner.Start("Applying migrations")
			if err := store.RunMigrations(rt.cfg.DatabaseURL, migrations.FS); err != nil {
				if spinner != nil {
					spinner.Fail("Migration failed")
				}
				return err
			}
			if spinner != nil {
				spinner.Success("Schema is up to date")
			}
			return nil
		},
	}
}
