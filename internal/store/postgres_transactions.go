package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
	"github.com/transfa/ledger-service/internal/domain"
)

const transactionColumns = `
	id, transaction_id, account_id, type, amount::text, beneficiary_id,
	COALESCE(beneficiary_account_number, ''), COALESCE(beneficiary_name, ''),
	COALESCE(sender_account_number, ''), COALESCE(sender_name, ''),
	credited_account_id, status, created_at
`

func scanTransaction(row pgx.Row) (*domain.Transaction, error) {
	var tx domain.Transaction
	var amount string
	err := row.Scan(
		&tx.ID, &tx.TransactionID, &tx.AccountID, &tx.Type, &amount, &tx.BeneficiaryID,
		&tx.BeneficiaryAccountNumber, &tx.BeneficiaryName,
		&tx.SenderAccountNumber, &tx.SenderName,
		&tx.CreditedAccountID, &tx.Status, &tx.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	tx.Amount, err = decimal.NewFromString(amount)
	if err != nil {
		return nil, fmt.Errorf("failed to parse amount for transaction %s: %w", tx.TransactionID, err)
	}
	return &tx, nil
}

// FindTransactionByTransactionID fetches one record owned by accountID.
func (r *PostgresRepository) FindTransactionByTransactionID(ctx context.Context, accountID uuid.UUID, transactionID string) (*domain.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE transaction_id = $1 AND account_id = $2`
	tx, err := scanTransaction(r.db.QueryRow(ctx, query, transactionID, accountID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrTransactionNotFound
		}
		return nil, err
	}
	return tx, nil
}

// ListTransactions returns one page of an account's history, most recent
// first, together with the total number of matching records. Both queries run
// in one repeatable-read snapshot so the total always agrees with the page.
func (r *PostgresRepository) ListTransactions(ctx context.Context, accountID uuid.UUID, filter domain.TransactionFilter) ([]domain.Transaction, int64, error) {
	filter = filter.Normalize()

	conditions := []string{"account_id = $1"}
	args := []any{accountID}
	if filter.Type != nil {
		args = append(args, string(*filter.Type))
		conditions = append(conditions, fmt.Sprintf("type = $%d", len(args)))
	}
	if filter.Status != nil {
		args = append(args, string(*filter.Status))
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)))
	}
	if filter.From != nil {
		args = append(args, startOfDay(*filter.From))
		conditions = append(conditions, fmt.Sprintf("created_at >= $%d", len(args)))
	}
	if filter.To != nil {
		args = append(args, startOfDay(*filter.To).AddDate(0, 0, 1))
		conditions = append(conditions, fmt.Sprintf("created_at < $%d", len(args)))
	}
	where := strings.Join(conditions, " AND ")

	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead, AccessMode: pgx.ReadOnly})
	if err != nil {
		return nil, 0, fmt.Errorf("failed to begin history snapshot: %w", err)
	}
	defer tx.Rollback(ctx)

	var total int64
	if err := tx.QueryRow(ctx, `SELECT COUNT(*) FROM transactions WHERE `+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count transactions: %w", err)
	}

	pageArgs := append(args, filter.PerPage, filter.Offset())
	query := fmt.Sprintf(`
		SELECT %s
		FROM transactions
		WHERE %s
		ORDER BY created_at DESC, id DESC
		LIMIT $%d OFFSET $%d
	`, transactionColumns, where, len(pageArgs)-1, len(pageArgs))

	rows, err := tx.Query(ctx, query, pageArgs...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query transactions: %w", err)
	}
	defer rows.Close()

	transactions := make([]domain.Transaction, 0, filter.PerPage)
	for rows.Next() {
		record, err := scanTransaction(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan transaction row: %w", err)
		}
		transactions = append(transactions, *record)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	return transactions, total, nil
}

// SummarizeTransactions aggregates completed records for the dashboard.
func (r *PostgresRepository) SummarizeTransactions(ctx context.Context, accountID uuid.UUID, monthStart time.Time) (*domain.TransactionTotals, error) {
	query := `
		SELECT
			COALESCE(SUM(amount) FILTER (WHERE type = 'deposit'), 0)::text,
			COALESCE(SUM(amount) FILTER (WHERE type = 'transfer'), 0)::text,
			COALESCE(SUM(amount) FILTER (WHERE type = 'deposit' AND created_at >= $2), 0)::text,
			COALESCE(SUM(amount) FILTER (WHERE type = 'transfer' AND created_at >= $2), 0)::text,
			COUNT(*)
		FROM transactions
		WHERE account_id = $1 AND status = 'completed'
	`
	var deposits, transfers, monthlyDeposits, monthlyTransfers string
	var totals domain.TransactionTotals
	err := r.db.QueryRow(ctx, query, accountID, monthStart).Scan(
		&deposits, &transfers, &monthlyDeposits, &monthlyTransfers, &totals.TotalTransactions,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to summarize transactions: %w", err)
	}

	for _, field := range []struct {
		raw string
		dst *decimal.Decimal
	}{
		{deposits, &totals.TotalDeposits},
		{transfers, &totals.TotalTransfers},
		{monthlyDeposits, &totals.MonthlyDeposits},
		{monthlyTransfers, &totals.MonthlyTransfers},
	} {
		value, err := decimal.NewFromString(field.raw)
		if err != nil {
			return nil, fmt.Errorf("failed to parse transaction total: %w", err)
		}
		*field.dst = value
	}

	return &totals, nil
}

// FindBalanceDrifts recomputes every balance from completed records and
// returns the accounts whose stored balance disagrees.
func (r *PostgresRepository) FindBalanceDrifts(ctx context.Context) ([]domain.BalanceDrift, error) {
	query := `
		WITH movements AS (
			SELECT account_id,
				CASE WHEN type = 'deposit' THEN amount ELSE -amount END AS delta
			FROM transactions
			WHERE status = 'completed'
			UNION ALL
			SELECT credited_account_id, amount
			FROM transactions
			WHERE status = 'completed' AND credited_account_id IS NOT NULL
		)
		SELECT a.id, a.account_number, a.balance::text, COALESCE(SUM(m.delta), 0)::text
		FROM accounts a
		LEFT JOIN movements m ON m.account_id = a.id
		GROUP BY a.id, a.account_number, a.balance
		HAVING a.balance <> COALESCE(SUM(m.delta), 0)
		ORDER BY a.account_number
	`
	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to reconcile balances: %w", err)
	}
	defer rows.Close()

	var drifts []domain.BalanceDrift
	for rows.Next() {
		var drift domain.BalanceDrift
		var stored, computed string
		if err := rows.Scan(&drift.AccountID, &drift.AccountNumber, &stored, &computed); err != nil {
			return nil, fmt.Errorf("failed to scan drift row: %w", err)
		}
		if drift.Stored, err = decimal.NewFromString(stored); err != nil {
			return nil, err
		}
		if drift.Computed, err = decimal.NewFromString(computed); err != nil {
			return nil, err
		}
		drifts = append(drifts, drift)
	}
	return drifts, rows.Err()
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
