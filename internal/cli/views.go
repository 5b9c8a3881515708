package cli

import (
	"github.com/pterm/pterm"
	"github.com/transfa/ledger-service/internal/domain"
)

const tableTimeLayout = "2006-01-02 15:04:05"

func renderTable(data pterm.TableData) error {
	return pterm.DefaultTable.WithHasHeader().WithData(data).Render()
}

func accountTable(a *domain.Account) pterm.TableData {
	pin := "not set"
	if a.HasTransactionPIN() {
		pin = "set"
	}
	return pterm.TableData{
		{"ID", "User ID", "Account Number", "Name", "Type", "Balance", "Status", "PIN"},
		{
			a.ID.String(),
			a.PublicID,
			a.AccountNumber,
			a.Name,
			string(a.AccountType),
			domain.FormatAmount(a.Balance),
			string(a.Status),
			pin,
		},
	}
}

// transactionTable colours money leaving the account red and money arriving green.
func transactionTable(items []domain.Transaction) pterm.TableData {
	data := pterm.TableData{
		{"Transaction ID", "Date", "Type", "Counterparty", "Amount", "Status"},
	}
	for _, tx := range items {
		amount := domain.FormatAmount(tx.Amount)
		counterparty := tx.SenderName
		switch tx.Type {
		case domain.TransactionTypeTransfer, domain.TransactionTypeWithdrawal:
			amount = pterm.Red("-" + amount)
			counterparty = tx.BeneficiaryName + " " + domain.MaskAccountNumber(tx.BeneficiaryAccountNumber)
		default:
			amount = pterm.Green("+" + amount)
		}
		data = append(data, []string{
			tx.TransactionID,
			tx.CreatedAt.UTC().Format(tableTimeLayout),
			string(tx.Type),
			counterparty,
			amount,
			string(tx.Status),
		})
	}
	return data
}

func driftTable(drifts []domain.BalanceDrift) pterm.TableData {
	data := pterm.TableData{
		{"Account ID", "Account Number", "Stored", "Computed", "Difference"},
	}
	for _, d := range drifts {
		data = append(data, []string{
			d.AccountID.String(),
			d.AccountNumber,
			domain.FormatAmount(d.Stored),
			domain.FormatAmount(d.Computed),
			pterm.Red(domain.FormatAmount(d.Stored.Sub(d.Computed))),
		})
	}
	return data
}
