package domain

import "time"

// Routing keys published on the ledger events exchange.
const (
	EventDepositCompleted       = "ledger.deposit.completed"
	EventTransferCompleted      = "ledger.transfer.completed"
	EventTransferReceived       = "ledger.transfer.received"
	EventReconciliationMismatch = "ledger.reconciliation.mismatch"
)

// LedgerMovementEvent is emitted after a deposit or transfer commits.
// Amounts and balances are decimal strings with two places.
type LedgerMovementEvent struct {
	EventType                string    `json:"event_type"`
	TransactionID            string    `json:"transaction_id"`
	AccountID                string    `json:"account_id"`
	CounterpartyAccountID    string    `json:"counterparty_account_id,omitempty"`
	Type                     string    `json:"type"`
	Amount                   string    `json:"amount"`
	Balance                  string    `json:"balance,omitempty"`
	SenderAccountNumber      string    `json:"sender_account_number"`
	SenderName               string    `json:"sender_name"`
	BeneficiaryAccountNumber string    `json:"beneficiary_account_number"`
	BeneficiaryName          string    `json:"beneficiary_name"`
	OccurredAt               time.Time `json:"occurred_at"`
}

// ReconciliationMismatchEvent is emitted for every drifted account found by
// the reconciliation job.
type ReconciliationMismatchEvent struct {
	AccountID     string    `json:"account_id"`
	AccountNumber string    `json:"account_number"`
	Stored        string    `json:"stored_balance"`
	Computed      string    `json:"computed_balance"`
	DetectedAt    time.Time `json:"detected_at"`
}
