/**
 * @description
 * This file defines the interfaces for the data access layer of the ledger-service.
 * The application service depends on these interfaces rather than on PostgreSQL
 * directly, which keeps the money-movement rules testable against fakes.
 *
 * @dependencies
 * - context: For managing request-scoped deadlines and cancellation.
 * - internal/domain: Contains the domain models used in the interface.
 * - internal/identifier: Identifier kinds for uniqueness checks.
 */

package store

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/transfa/ledger-service/internal/domain"
	"github.com/transfa/ledger-service/internal/identifier"
)

// Repository defines the set of methods for interacting with the database.
type Repository interface {
	// Accounts
	FindAccountByID(ctx context.Context, accountID uuid.UUID) (*domain.Account, error)
	FindAccountByAuthSubject(ctx context.Context, subject string) (*domain.Account, error)
	FindAccountByNumber(ctx context.Context, accountNumber string) (*domain.Account, error)
	CreateAccount(ctx context.Context, account *domain.Account) error
	UpdateAccountStatus(ctx context.Context, accountID uuid.UUID, status domain.AccountStatus) error
	IdentifierExists(ctx context.Context, kind identifier.Kind, value string) (bool, error)

	// Transaction PIN
	SetTransactionPINHash(ctx context.Context, accountID uuid.UUID, hash string) error
	RecordFailedTransactionPINAttempt(ctx context.Context, accountID uuid.UUID, maxAttempts int, lockoutDurationSeconds int) (*domain.PINSecurityState, error)
	ResetTransactionPINFailureState(ctx context.Context, accountID uuid.UUID) error

	// Ledger mutations. fn runs inside one database transaction; returning an
	// error rolls back every write it made.
	ExecLedgerTx(ctx context.Context, fn func(tx LedgerTx) error) error

	// Transaction history
	FindTransactionByTransactionID(ctx context.Context, accountID uuid.UUID, transactionID string) (*domain.Transaction, error)
	ListTransactions(ctx context.Context, accountID uuid.UUID, filter domain.TransactionFilter) ([]domain.Transaction, int64, error)
	SummarizeTransactions(ctx context.Context, accountID uuid.UUID, monthStart time.Time) (*domain.TransactionTotals, error)
	FindBalanceDrifts(ctx context.Context) ([]domain.BalanceDrift, error)

	// Beneficiaries
	CreateBeneficiary(ctx context.Context, beneficiary *domain.Beneficiary) error
	FindBeneficiariesByAccountID(ctx context.Context, accountID uuid.UUID) ([]domain.Beneficiary, error)
	FindBeneficiaryByID(ctx context.Context, beneficiaryID uuid.UUID, accountID uuid.UUID) (*domain.Beneficiary, error)
	UpdateBeneficiary(ctx context.Context, beneficiary *domain.Beneficiary) error
	DeleteBeneficiary(ctx context.Context, beneficiaryID uuid.UUID, accountID uuid.UUID) error
	CountBeneficiariesByAccountID(ctx context.Context, accountID uuid.UUID) (int64, error)
}

// LedgerTx is the write surface available inside ExecLedgerTx.
type LedgerTx interface {
	// LockAccountByNumber reads the account row under a row lock held until
	// the transaction ends. Missing accounts return ErrAccountNotFound.
	LockAccountByNumber(ctx context.Context, accountNumber string) (*domain.Account, error)
	// AdjustBalance adds delta (negative to debit) and returns the new balance.
	// A debit that would take the balance below zero returns ErrInsufficientFunds.
	AdjustBalance(ctx context.Context, accountID uuid.UUID, delta decimal.Decimal) (decimal.Decimal, error)
	// InsertTransaction appends a record. A duplicate transaction id returns an
	// identifier.CollisionError and leaves the transaction usable.
	InsertTransaction(ctx context.Context, record *domain.Transaction) error
}
