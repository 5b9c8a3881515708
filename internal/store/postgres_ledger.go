package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
	"github.com/transfa/ledger-service/internal/domain"
	"github.com/transfa/ledger-service/internal/identifier"
)

// ExecLedgerTx runs fn inside a single database transaction. The deferred
// rollback is a no-op after a successful commit and undoes every write on any
// other exit path, including a panic in fn.
func (r *PostgresRepository) ExecLedgerTx(ctx context.Context, fn func(tx LedgerTx) error) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin ledger transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(&postgresLedgerTx{tx: tx}); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit ledger transaction: %w", err)
	}
	return nil
}

type postgresLedgerTx struct {
	tx pgx.Tx
}

func (p *postgresLedgerTx) LockAccountByNumber(ctx context.Context, accountNumber string) (*domain.Account, error) {
	// FOR UPDATE holds the row until commit or rollback.
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE account_number = $1 FOR UPDATE`
	return scanAccount(p.tx.QueryRow(ctx, query, accountNumber))
}

func (p *postgresLedgerTx) AdjustBalance(ctx context.Context, accountID uuid.UUID, delta decimal.Decimal) (decimal.Decimal, error) {
	query := `
		UPDATE accounts
		SET balance = balance + $2::numeric, updated_at = NOW()
		WHERE id = $1 AND balance + $2::numeric >= 0
		RETURNING balance::text
	`
	var balance string
	err := p.tx.QueryRow(ctx, query, accountID, delta.StringFixed(domain.MoneyScale)).Scan(&balance)
	if err != nil {
		if !errors.Is(err, pgx.ErrNoRows) {
			return decimal.Zero, adjustBalanceError(err)
		}

		var exists bool
		if err := p.tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM accounts WHERE id = $1)`, accountID).Scan(&exists); err != nil {
			return decimal.Zero, fmt.Errorf("failed to adjust balance: %w", err)
		}
		if !exists {
			return decimal.Zero, ErrAccountNotFound
		}
		return decimal.Zero, ErrInsufficientFunds
	}
	return decimal.NewFromString(balance)
}

// adjustBalanceError maps a failed balance update to a ledger sentinel where
// the server reported a rule the caller can act on.
func adjustBalanceError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch {
		case pgErr.Code == pgCheckViolation && pgErr.ConstraintName == constraintBalance:
			return ErrInsufficientFunds
		case pgErr.Code == pgNumericOutOfRange:
			return ErrBalanceLimitExceeded
		}
	}
	return fmt.Errorf("failed to adjust balance: %w", err)
}

// insertTransactionError maps a failed record insert. A duplicate public id
// is a collision the generator retries; a missing beneficiary means the row
// was deleted after the caller looked it up.
func insertTransactionError(err error, record *domain.Transaction) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch {
		case pgErr.Code == pgUniqueViolation && pgErr.ConstraintName == constraintTransactionID:
			return &identifier.CollisionError{Kind: identifier.KindTransactionID, Value: record.TransactionID}
		case pgErr.Code == pgForeignKeyViolation && pgErr.ConstraintName == constraintTransactionBeneficiary:
			return ErrBeneficiaryNotFound
		}
	}
	return fmt.Errorf("failed to insert transaction record: %w", err)
}

func (p *postgresLedgerTx) InsertTransaction(ctx context.Context, record *domain.Transaction) error {
	// A failed statement aborts the whole PostgreSQL transaction, so the insert
	// runs in a savepoint that can be rolled back on a duplicate id.
	savepoint, err := p.tx.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to open savepoint: %w", err)
	}
	defer savepoint.Rollback(ctx)

	query := `
		INSERT INTO transactions (
			id, transaction_id, account_id, type, amount, beneficiary_id,
			beneficiary_account_number, beneficiary_name, sender_account_number, sender_name,
			credited_account_id, status, created_at
		)
		VALUES ($1, $2, $3, $4, $5::numeric, $6, $7, $8, $9, $10, $11, $12, $13)
	`
	_, err = savepoint.Exec(ctx, query,
		record.ID,
		record.TransactionID,
		record.AccountID,
		record.Type,
		record.Amount.StringFixed(domain.MoneyScale),
		record.BeneficiaryID,
		nullableString(record.BeneficiaryAccountNumber),
		nullableString(record.BeneficiaryName),
		nullableString(record.SenderAccountNumber),
		nullableString(record.SenderName),
		record.CreditedAccountID,
		record.Status,
		record.CreatedAt,
	)
	if err != nil {
		return insertTransactionError(err, record)
	}

	return savepoint.Commit(ctx)
}

func nullableString(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}
