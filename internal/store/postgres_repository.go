/**
 * @description
 * This file provides the PostgreSQL implementation of the `Repository` interface.
 * It contains the account and transaction-PIN queries; ledger mutations, history
 * and beneficiaries live in the sibling postgres_*.go files.
 *
 * Money columns are NUMERIC(15,2). They are read as text and parsed into
 * decimal.Decimal, and written as decimal strings cast with ::numeric, so no
 * amount ever passes through a float.
 *
 * @dependencies
 * - github.com/jackc/pgx/v5: The PostgreSQL driver for database operations.
 * - github.com/shopspring/decimal: fixed-point balances.
 * - internal/domain: Contains the domain models used for data transfer.
 */

package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"github.com/transfa/ledger-service/internal/domain"
	"github.com/transfa/ledger-service/internal/identifier"
)

var (
	ErrAccountNotFound      = errors.New("account not found")
	ErrAccountExists        = errors.New("account already exists for this identity")
	ErrBeneficiaryNotFound  = errors.New("beneficiary not found")
	ErrInsufficientFunds    = errors.New("insufficient funds")
	ErrBalanceLimitExceeded = errors.New("balance would exceed the maximum supported value")
	ErrTransactionNotFound  = errors.New("transaction not found")
	ErrTransactionPINNotSet = errors.New("transaction pin not set")
)

const (
	pgUniqueViolation     = "23505"
	pgCheckViolation      = "23514"
	pgForeignKeyViolation = "23503"
	pgNumericOutOfRange   = "22003"

	constraintAccountNumber   = "accounts_account_number_key"
	constraintAccountPublicID = "accounts_public_id_key"
	constraintAuthSubject     = "accounts_auth_subject_key"
	constraintTransactionID   = "transactions_transaction_id_key"
	constraintBalance         = "accounts_balance_non_negative"

	// PostgreSQL's default name for the unnamed beneficiary_id reference.
	constraintTransactionBeneficiary = "transactions_beneficiary_id_fkey"
)

const accountColumns = `
	id, public_id, auth_subject, account_number, name, account_type, balance::text,
	transaction_pin_hash, pin_failed_attempts, pin_locked_until, status, created_at, updated_at
`

// PostgresRepository is a concrete implementation of the Repository interface for PostgreSQL.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository creates a new instance of PostgresRepository.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func scanAccount(row pgx.Row) (*domain.Account, error) {
	var account domain.Account
	var balance string
	err := row.Scan(
		&account.ID,
		&account.PublicID,
		&account.AuthSubject,
		&account.AccountNumber,
		&account.Name,
		&account.AccountType,
		&balance,
		&account.TransactionPINHash,
		&account.PINFailedAttempts,
		&account.PINLockedUntil,
		&account.Status,
		&account.CreatedAt,
		&account.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAccountNotFound
		}
		return nil, err
	}
	account.Balance, err = decimal.NewFromString(balance)
	if err != nil {
		return nil, fmt.Errorf("failed to parse balance for account %s: %w", account.ID, err)
	}
	return &account, nil
}

// FindAccountByID retrieves an account by its internal id.
func (r *PostgresRepository) FindAccountByID(ctx context.Context, accountID uuid.UUID) (*domain.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE id = $1`
	return scanAccount(r.db.QueryRow(ctx, query, accountID))
}

// FindAccountByAuthSubject resolves the account owned by an authenticated identity.
func (r *PostgresRepository) FindAccountByAuthSubject(ctx context.Context, subject string) (*domain.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE auth_subject = $1`
	return scanAccount(r.db.QueryRow(ctx, query, subject))
}

// FindAccountByNumber retrieves an account by its public account number.
func (r *PostgresRepository) FindAccountByNumber(ctx context.Context, accountNumber string) (*domain.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE account_number = $1`
	return scanAccount(r.db.QueryRow(ctx, query, accountNumber))
}

// CreateAccount inserts a new account with a zero balance. Collisions on the
// generated identifiers come back as identifier.CollisionError so the caller
// can redraw them.
func (r *PostgresRepository) CreateAccount(ctx context.Context, account *domain.Account) error {
	query := `
		INSERT INTO accounts (id, public_id, auth_subject, account_number, name, account_type, balance, status)
		VALUES ($1, $2, $3, $4, $5, $6, 0, $7)
		RETURNING balance::text, created_at, updated_at
	`
	var balance string
	err := r.db.QueryRow(ctx, query,
		account.ID,
		account.PublicID,
		account.AuthSubject,
		account.AccountNumber,
		account.Name,
		account.AccountType,
		account.Status,
	).Scan(&balance, &account.CreatedAt, &account.UpdatedAt)
	if err != nil {
		if pgErr, ok := uniqueViolation(err); ok {
			switch pgErr.ConstraintName {
			case constraintAccountNumber:
				return &identifier.CollisionError{Kind: identifier.KindAccountNumber, Value: account.AccountNumber}
			case constraintAccountPublicID:
				return &identifier.CollisionError{Kind: identifier.KindUserID, Value: account.PublicID}
			case constraintAuthSubject:
				return ErrAccountExists
			}
		}
		return fmt.Errorf("failed to create account: %w", err)
	}
	account.Balance, err = decimal.NewFromString(balance)
	return err
}

// UpdateAccountStatus applies a soft status change. Accounts are never deleted.
func (r *PostgresRepository) UpdateAccountStatus(ctx context.Context, accountID uuid.UUID, status domain.AccountStatus) error {
	query := `UPDATE accounts SET status = $2, updated_at = NOW() WHERE id = $1`
	result, err := r.db.Exec(ctx, query, accountID, status)
	if err != nil {
		return fmt.Errorf("failed to update account status: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrAccountNotFound
	}
	return nil
}

// IdentifierExists is the read-side uniqueness pre-check used by the
// identifier generator. The unique constraints remain authoritative.
func (r *PostgresRepository) IdentifierExists(ctx context.Context, kind identifier.Kind, value string) (bool, error) {
	var query string
	switch kind {
	case identifier.KindAccountNumber:
		query = `SELECT EXISTS (SELECT 1 FROM accounts WHERE account_number = $1)`
	case identifier.KindUserID:
		query = `SELECT EXISTS (SELECT 1 FROM accounts WHERE public_id = $1)`
	case identifier.KindTransactionID:
		query = `SELECT EXISTS (SELECT 1 FROM transactions WHERE transaction_id = $1)`
	default:
		return false, fmt.Errorf("unsupported identifier kind %q", kind)
	}

	var exists bool
	if err := r.db.QueryRow(ctx, query, value).Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}

// SetTransactionPINHash stores a new PIN hash and clears any failure state.
func (r *PostgresRepository) SetTransactionPINHash(ctx context.Context, accountID uuid.UUID, hash string) error {
	query := `
		UPDATE accounts
		SET transaction_pin_hash = $2, pin_failed_attempts = 0, pin_last_failed_at = NULL,
			pin_locked_until = NULL, updated_at = NOW()
		WHERE id = $1
	`
	result, err := r.db.Exec(ctx, query, accountID, hash)
	if err != nil {
		return fmt.Errorf("failed to set transaction pin: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrAccountNotFound
	}
	return nil
}

// RecordFailedTransactionPINAttempt atomically increments failed attempts and applies lockout.
// An expired lockout, or a counter already at the limit without a lock, starts a fresh window.
func (r *PostgresRepository) RecordFailedTransactionPINAttempt(ctx context.Context, accountID uuid.UUID, maxAttempts int, lockoutDurationSeconds int) (*domain.PINSecurityState, error) {
	var state domain.PINSecurityState
	query := `
		UPDATE accounts
		SET
			pin_failed_attempts = CASE
				WHEN (pin_locked_until IS NOT NULL AND pin_locked_until <= NOW())
					OR (pin_locked_until IS NULL AND pin_failed_attempts >= $2) THEN 1
				ELSE pin_failed_attempts + 1
			END,
			pin_last_failed_at = NOW(),
			pin_locked_until = CASE
				WHEN (
					CASE
						WHEN (pin_locked_until IS NOT NULL AND pin_locked_until <= NOW())
							OR (pin_locked_until IS NULL AND pin_failed_attempts >= $2) THEN 1
						ELSE pin_failed_attempts + 1
					END
				) >= $2 THEN NOW() + ($3 * INTERVAL '1 second')
				ELSE NULL
			END
		WHERE id = $1 AND transaction_pin_hash IS NOT NULL
		RETURNING id, pin_failed_attempts, pin_locked_until
	`
	err := r.db.QueryRow(ctx, query, accountID, maxAttempts, lockoutDurationSeconds).Scan(
		&state.AccountID,
		&state.FailedAttempts,
		&state.LockedUntil,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrTransactionPINNotSet
		}
		return nil, err
	}

	return &state, nil
}

// ResetTransactionPINFailureState clears failed-attempt counters after a successful PIN verification.
func (r *PostgresRepository) ResetTransactionPINFailureState(ctx context.Context, accountID uuid.UUID) error {
	query := `
		UPDATE accounts
		SET pin_failed_attempts = 0, pin_last_failed_at = NULL, pin_locked_until = NULL
		WHERE id = $1 AND transaction_pin_hash IS NOT NULL
	`
	result, err := r.db.Exec(ctx, query, accountID)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return ErrTransactionPINNotSet
	}
	return nil
}

func uniqueViolation(err error) (*pgconn.PgError, bool) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
		return pgErr, true
	}
	return nil, false
}
