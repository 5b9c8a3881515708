package cli

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"github.com/transfa/ledger-service/internal/domain"
)

type openAccountFlags struct {
	Subject string
	Name    string
	Type    string
}

func newAccountsCmd(rt *runtime) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "accounts",
		Aliases: []string{"account", "acc"},
		Short:   "Open and manage ledger accounts",
	}
	cmd.AddCommand(newAccountsOpenCmd(rt))
	cmd.AddCommand(newAccountsShowCmd(rt))
	cmd.AddCommand(newAccountsStatusCmd(rt))
	return cmd
}

func newAccountsOpenCmd(rt *runtime) *cobra.Command {
	flags := &openAccountFlags{}

	cmd := &cobra.Command{
		Use:   "open",
		Short: "Open a ledger account for an identity-provider subject",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := rt.open(cmd.Context()); err != nil {
				return err
			}
			account, err := rt.svc.OpenAccount(cmd.Context(), domain.OpenAccountRequest{
				AuthSubject: flags.Subject,
				Name:        flags.Name,
				AccountType: domain.AccountType(flags.Type),
			})
			if err != nil {
				return fmt.Errorf("failed to open account: %w", err)
			}

			pterm.Success.Printfln("Opened account %s", account.AccountNumber)
			return renderTable(accountTable(account))
		},
	}

	cmd.Flags().StringVarP(&flags.Subject, "subject", "s", "", "identity-provider subject (sub claim)")
	cmd.Flags().StringVarP(&flags.Name, "name", "n", "", "account holder name")
	cmd.Flags().StringVarP(&flags.Type, "type", "t", string(domain.AccountTypeSavings), "account type (savings, current)")
	_ = cmd.MarkFlagRequired("subject")
	_ = cmd.MarkFlagRequired("name")

	return cmd
}

func newAccountsShowCmd(rt *runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "show <subject>",
		Short: "Show the account owned by a subject",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := rt.open(cmd.Context()); err != nil {
				return err
			}
			account, err := rt.svc.ResolveAccount(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return renderTable(accountTable(account))
		},
	}
}

func newAccountsStatusCmd(rt *runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "status <account-id> <active|inactive|suspended>",
		Short: "Change an account's status",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			accountID, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid account id %q", args[0])
			}
			if err := rt.open(cmd.Context()); err != nil {
				return err
			}
			status := domain.AccountStatus(args[1])
			if err := rt.svc.UpdateAccountStatus(cmd.Context(), accountID, status); err != nil {
				return err
			}
			pterm.Success.Printfln("Account %s is now %s", accountID, status)
			return nil
		},
	}
}
