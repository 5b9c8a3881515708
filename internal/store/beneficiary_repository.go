/**
 * @description
 * This file implements the data access layer for the beneficiary address book.
 * Every statement is scoped by the owning account so one account can never read
 * or change another's payees.
 *
 * @dependencies
 * - github.com/jackc/pgx/v5: The PostgreSQL driver.
 * - The service's internal domain package for the Beneficiary model.
 */
package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
	"github.com/transfa/ledger-service/internal/domain"
)

const beneficiaryColumns = `id, account_id, beneficiary_name, account_number, bank_name, amount::text, created_at, updated_at`

func scanBeneficiary(row pgx.Row) (*domain.Beneficiary, error) {
	var b domain.Beneficiary
	var amount *string
	err := row.Scan(&b.ID, &b.AccountID, &b.BeneficiaryName, &b.AccountNumber, &b.BankName, &amount, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if amount != nil {
		value, err := decimal.NewFromString(*amount)
		if err != nil {
			return nil, fmt.Errorf("failed to parse beneficiary amount: %w", err)
		}
		b.Amount = &value
	}
	return &b, nil
}

func optionalAmount(amount *decimal.Decimal) *string {
	if amount == nil {
		return nil
	}
	value := amount.StringFixed(domain.MoneyScale)
	return &value
}

// CreateBeneficiary inserts a new beneficiary record into the database.
func (r *PostgresRepository) CreateBeneficiary(ctx context.Context, beneficiary *domain.Beneficiary) error {
	query := `
		INSERT INTO beneficiaries (id, account_id, beneficiary_name, account_number, bank_name, amount)
		VALUES ($1, $2, $3, $4, $5, $6::numeric)
		RETURNING created_at, updated_at
	`
	err := r.db.QueryRow(ctx, query,
		beneficiary.ID,
		beneficiary.AccountID,
		beneficiary.BeneficiaryName,
		beneficiary.AccountNumber,
		beneficiary.BankName,
		optionalAmount(beneficiary.Amount),
	).Scan(&beneficiary.CreatedAt, &beneficiary.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create beneficiary: %w", err)
	}
	return nil
}

// FindBeneficiariesByAccountID retrieves all beneficiaries of an account, newest first.
func (r *PostgresRepository) FindBeneficiariesByAccountID(ctx context.Context, accountID uuid.UUID) ([]domain.Beneficiary, error) {
	query := `
		SELECT ` + beneficiaryColumns + `
		FROM beneficiaries
		WHERE account_id = $1
		ORDER BY created_at DESC, id DESC
	`
	rows, err := r.db.Query(ctx, query, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to query beneficiaries: %w", err)
	}
	defer rows.Close()

	beneficiaries := []domain.Beneficiary{}
	for rows.Next() {
		b, err := scanBeneficiary(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan beneficiary row: %w", err)
		}
		beneficiaries = append(beneficiaries, *b)
	}

	return beneficiaries, rows.Err()
}

// FindBeneficiaryByID retrieves a beneficiary owned by accountID.
func (r *PostgresRepository) FindBeneficiaryByID(ctx context.Context, beneficiaryID uuid.UUID, accountID uuid.UUID) (*domain.Beneficiary, error) {
	query := `SELECT ` + beneficiaryColumns + ` FROM beneficiaries WHERE id = $1 AND account_id = $2`
	b, err := scanBeneficiary(r.db.QueryRow(ctx, query, beneficiaryID, accountID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrBeneficiaryNotFound
		}
		return nil, err
	}
	return b, nil
}

// UpdateBeneficiary rewrites the editable fields of an owned beneficiary.
// Past transaction records keep their own snapshot and are not touched.
func (r *PostgresRepository) UpdateBeneficiary(ctx context.Context, beneficiary *domain.Beneficiary) error {
	query := `
		UPDATE beneficiaries
		SET beneficiary_name = $3, account_number = $4, bank_name = $5, amount = $6::numeric, updated_at = NOW()
		WHERE id = $1 AND account_id = $2
		RETURNING created_at, updated_at
	`
	err := r.db.QueryRow(ctx, query,
		beneficiary.ID,
		beneficiary.AccountID,
		beneficiary.BeneficiaryName,
		beneficiary.AccountNumber,
		beneficiary.BankName,
		optionalAmount(beneficiary.Amount),
	).Scan(&beneficiary.CreatedAt, &beneficiary.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrBeneficiaryNotFound
		}
		return fmt.Errorf("failed to update beneficiary: %w", err)
	}
	return nil
}

// DeleteBeneficiary removes a beneficiary record. Records that referenced it
// keep their snapshot; the foreign key is ON DELETE SET NULL.
func (r *PostgresRepository) DeleteBeneficiary(ctx context.Context, beneficiaryID uuid.UUID, accountID uuid.UUID) error {
	query := `DELETE FROM beneficiaries WHERE id = $1 AND account_id = $2`
	result, err := r.db.Exec(ctx, query, beneficiaryID, accountID)
	if err != nil {
		return fmt.Errorf("failed to delete beneficiary: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrBeneficiaryNotFound
	}
	return nil
}

// CountBeneficiariesByAccountID counts the beneficiaries of an account.
func (r *PostgresRepository) CountBeneficiariesByAccountID(ctx context.Context, accountID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM beneficiaries WHERE account_id = $1`, accountID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count beneficiaries: %w", err)
	}
	return count, nil
}
