/**
 * @description
 * This file defines the core data structures of the ledger-service: accounts,
 * transaction records, beneficiaries and the request/result types exchanged
 * between the API layer and the application service.
 *
 * @dependencies
 * - github.com/google/uuid: internal identifiers.
 * - github.com/shopspring/decimal: fixed-point money amounts.
 */

package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type AccountStatus string

const (
	AccountStatusActive    AccountStatus = "active"
	AccountStatusInactive  AccountStatus = "inactive"
	AccountStatusSuspended AccountStatus = "suspended"
)

func (s AccountStatus) Valid() bool {
	switch s {
	case AccountStatusActive, AccountStatusInactive, AccountStatusSuspended:
		return true
	}
	return false
}

type AccountType string

const (
	AccountTypeSavings AccountType = "savings"
	AccountTypeCurrent AccountType = "current"
)

func (t AccountType) Valid() bool {
	return t == AccountTypeSavings || t == AccountTypeCurrent
}

type TransactionType string

const (
	TransactionTypeDeposit    TransactionType = "deposit"
	TransactionTypeTransfer   TransactionType = "transfer"
	TransactionTypeWithdrawal TransactionType = "withdrawal"
)

func (t TransactionType) Valid() bool {
	switch t {
	case TransactionTypeDeposit, TransactionTypeTransfer, TransactionTypeWithdrawal:
		return true
	}
	return false
}

type TransactionStatus string

const (
	TransactionStatusPending   TransactionStatus = "pending"
	TransactionStatusCompleted TransactionStatus = "completed"
	TransactionStatusFailed    TransactionStatus = "failed"
)

func (s TransactionStatus) Valid() bool {
	switch s {
	case TransactionStatusPending, TransactionStatusCompleted, TransactionStatusFailed:
		return true
	}
	return false
}

// Account is the balance-bearing ledger account. Balance is only ever
// changed inside a ledger transaction.
type Account struct {
	ID                 uuid.UUID       `json:"id"`
	PublicID           string          `json:"public_id"`
	AuthSubject        string          `json:"-"`
	AccountNumber      string          `json:"account_number"`
	Name               string          `json:"name"`
	AccountType        AccountType     `json:"account_type"`
	Balance            decimal.Decimal `json:"balance"`
	TransactionPINHash *string         `json:"-"`
	PINFailedAttempts  int             `json:"-"`
	PINLockedUntil     *time.Time      `json:"-"`
	Status             AccountStatus   `json:"status"`
	CreatedAt          time.Time       `json:"created_at"`
	UpdatedAt          time.Time       `json:"updated_at"`
}

func (a *Account) IsActive() bool {
	return a.Status == AccountStatusActive
}

func (a *Account) HasTransactionPIN() bool {
	return a.TransactionPINHash != nil && *a.TransactionPINHash != ""
}

// PINLocked reports whether a failed-attempt lockout is still running at now.
func (a *Account) PINLocked(now time.Time) bool {
	return a.PINLockedUntil != nil && a.PINLockedUntil.After(now)
}

// PINSecurityState is the failed-attempt bookkeeping for a transaction PIN.
type PINSecurityState struct {
	AccountID      uuid.UUID
	FailedAttempts int
	LockedUntil    *time.Time
}

// Transaction is an immutable ledger record. Counterparty fields are a
// snapshot taken when the record was written.
type Transaction struct {
	ID                       uuid.UUID         `json:"id"`
	TransactionID            string            `json:"transaction_id"`
	AccountID                uuid.UUID         `json:"account_id"`
	Type                     TransactionType   `json:"type"`
	Amount                   decimal.Decimal   `json:"amount"`
	BeneficiaryID            *uuid.UUID        `json:"beneficiary_id,omitempty"`
	BeneficiaryAccountNumber string            `json:"beneficiary_account_number"`
	BeneficiaryName          string            `json:"beneficiary_name"`
	SenderAccountNumber      string            `json:"sender_account_number"`
	SenderName               string            `json:"sender_name"`
	CreditedAccountID        *uuid.UUID        `json:"-"`
	Status                   TransactionStatus `json:"status"`
	CreatedAt                time.Time         `json:"created_at"`
}

// Beneficiary is a saved payee in an account's address book.
type Beneficiary struct {
	ID              uuid.UUID        `json:"id"`
	AccountID       uuid.UUID        `json:"account_id"`
	BeneficiaryName string           `json:"beneficiary_name"`
	AccountNumber   string           `json:"account_number"`
	BankName        string           `json:"bank_name"`
	Amount          *decimal.Decimal `json:"amount,omitempty"`
	CreatedAt       time.Time        `json:"created_at"`
	UpdatedAt       time.Time        `json:"updated_at"`
}

// DepositRequest is the payload for crediting the caller's own account.
type DepositRequest struct {
	Amount              decimal.Decimal `json:"amount"`
	SenderAccountNumber string          `json:"sender_account_number"`
	SenderName          *string         `json:"sender_name,omitempty"`
}

// TransferRequest is the payload for moving funds out of the caller's account.
type TransferRequest struct {
	Amount                   decimal.Decimal `json:"amount"`
	TransactionPIN           string          `json:"transaction_pin"`
	BeneficiaryAccountNumber string          `json:"beneficiary_account_number"`
	BeneficiaryName          *string         `json:"beneficiary_name,omitempty"`
	BeneficiaryID            *uuid.UUID      `json:"beneficiary_id,omitempty"`
}

// MovementResult is returned by deposits and transfers.
type MovementResult struct {
	Balance     decimal.Decimal
	Transaction *Transaction
}

// BeneficiaryInput carries the editable fields of a beneficiary.
type BeneficiaryInput struct {
	BeneficiaryName string           `json:"beneficiary_name"`
	AccountNumber   string           `json:"account_number"`
	BankName        string           `json:"bank_name"`
	Amount          *decimal.Decimal `json:"amount,omitempty"`
}

// OpenAccountRequest is the registration payload for a new ledger account.
type OpenAccountRequest struct {
	AuthSubject string      `json:"-"`
	Name        string      `json:"name"`
	AccountType AccountType `json:"account_type"`
}

// TransactionPINRequest covers both creating and changing a transaction PIN.
type TransactionPINRequest struct {
	CurrentPIN                 string `json:"current_pin,omitempty"`
	TransactionPIN             string `json:"transaction_pin"`
	TransactionPINConfirmation string `json:"transaction_pin_confirmation"`
}
