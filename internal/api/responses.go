package api

import (
	"time"

	"github.com/transfa/ledger-service/internal/domain"
)

// Response shapes. Money always leaves the service as a two-place decimal string.

type accountResponse struct {
	ID                string    `json:"id"`
	PublicID          string    `json:"public_id"`
	AccountNumber     string    `json:"account_number"`
	Name              string    `json:"name"`
	AccountType       string    `json:"account_type"`
	Balance           string    `json:"balance"`
	Status            string    `json:"status"`
	HasTransactionPIN bool      `json:"has_transaction_pin"`
	CreatedAt         time.Time `json:"created_at"`
}

type transactionResponse struct {
	TransactionID            string    `json:"transaction_id"`
	Type                     string    `json:"type"`
	Amount                   string    `json:"amount"`
	BeneficiaryID            *string   `json:"beneficiary_id,omitempty"`
	BeneficiaryAccountNumber string    `json:"beneficiary_account_number"`
	BeneficiaryName          string    `json:"beneficiary_name"`
	SenderAccountNumber      string    `json:"sender_account_number"`
	SenderName               string    `json:"sender_name"`
	Status                   string    `json:"status"`
	CreatedAt                time.Time `json:"created_at"`
}

type movementResponse struct {
	Message     string              `json:"message"`
	Balance     string              `json:"balance"`
	Transaction transactionResponse `json:"transaction"`
}

type beneficiaryResponse struct {
	ID              string    `json:"id"`
	BeneficiaryName string    `json:"beneficiary_name"`
	AccountNumber   string    `json:"account_number"`
	BankName        string    `json:"bank_name"`
	Amount          *string   `json:"amount,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

type transactionPageResponse struct {
	Data []transactionResponse `json:"data"`
	Meta domain.PageMeta       `json:"meta"`
}

type summaryResponse struct {
	Account            accountResponse       `json:"account"`
	TotalDeposits      string                `json:"total_deposits"`
	TotalTransfers     string                `json:"total_transfers"`
	MonthlyDeposits    string                `json:"monthly_deposits"`
	MonthlyTransfers   string                `json:"monthly_transfers"`
	TotalTransactions  int64                 `json:"total_transactions"`
	BeneficiariesCount int64                 `json:"beneficiaries_count"`
	RecentTransactions []transactionResponse `json:"recent_transactions"`
}

func newAccountResponse(a *domain.Account) accountResponse {
	return accountResponse{
		ID:                a.ID.String(),
		PublicID:          a.PublicID,
		AccountNumber:     a.AccountNumber,
		Name:              a.Name,
		AccountType:       string(a.AccountType),
		Balance:           domain.FormatAmount(a.Balance),
		Status:            string(a.Status),
		HasTransactionPIN: a.HasTransactionPIN(),
		CreatedAt:         a.CreatedAt,
	}
}

func newTransactionResponse(tx *domain.Transaction) transactionResponse {
	resp := transactionResponse{
		TransactionID:            tx.TransactionID,
		Type:                     string(tx.Type),
		Amount:                   domain.FormatAmount(tx.Amount),
		BeneficiaryAccountNumber: tx.BeneficiaryAccountNumber,
		BeneficiaryName:          tx.BeneficiaryName,
		SenderAccountNumber:      tx.SenderAccountNumber,
		SenderName:               tx.SenderName,
		Status:                   string(tx.Status),
		CreatedAt:                tx.CreatedAt,
	}
	if tx.BeneficiaryID != nil {
		id := tx.BeneficiaryID.String()
		resp.BeneficiaryID = &id
	}
	return resp
}

func newTransactionResponses(items []domain.Transaction) []transactionResponse {
	out := make([]transactionResponse, 0, len(items))
	for i := range items {
		out = append(out, newTransactionResponse(&items[i]))
	}
	return out
}

func newBeneficiaryResponse(b *domain.Beneficiary) beneficiaryResponse {
	resp := beneficiaryResponse{
		ID:              b.ID.String(),
		BeneficiaryName: b.BeneficiaryName,
		AccountNumber:   b.AccountNumber,
		BankName:        b.BankName,
		CreatedAt:       b.CreatedAt,
		UpdatedAt:       b.UpdatedAt,
	}
	if b.Amount != nil {
		amount := domain.FormatAmount(*b.Amount)
		resp.Amount = &amount
	}
	return resp
}
