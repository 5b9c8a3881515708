package app

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/transfa/ledger-service/internal/domain"
)

const recentTransactionsLimit = 5

// ListTransactions returns one page of the caller's history, most recent first.
func (s *Service) ListTransactions(ctx context.Context, accountID uuid.UUID, filter domain.TransactionFilter) (*domain.TransactionPage, error) {
	if filter.Type != nil && !filter.Type.Valid() {
		return nil, invalid("type must be one of deposit, transfer, withdrawal")
	}
	if filter.Status != nil && !filter.Status.Valid() {
		return nil, invalid("status must be one of pending, completed, failed")
	}
	if filter.From != nil && filter.To != nil && filter.To.Before(*filter.From) {
		return nil, invalid("to must not be before from")
	}
	if filter.PerPage > domain.MaxHistoryPerPage {
		return nil, invalid("per_page must not exceed 100")
	}
	if filter.Page > domain.MaxHistoryPage {
		return nil, invalid("page must not exceed 1000000")
	}
	filter = filter.Normalize()

	items, total, err := s.repo.ListTransactions(ctx, accountID, filter)
	if err != nil {
		return nil, operationFailed(err)
	}
	return &domain.TransactionPage{Items: items, Meta: domain.NewPageMeta(filter, total)}, nil
}

// GetTransaction fetches one of the caller's records by its public id.
func (s *Service) GetTransaction(ctx context.Context, accountID uuid.UUID, transactionID string) (*domain.Transaction, error) {
	transactionID = strings.TrimSpace(transactionID)
	if transactionID == "" {
		return nil, ErrTransactionNotFound
	}
	record, err := s.repo.FindTransactionByTransactionID(ctx, accountID, transactionID)
	if err != nil {
		return nil, lookupFailure(err)
	}
	return record, nil
}

// AccountSummary gathers the dashboard view of an account.
func (s *Service) AccountSummary(ctx context.Context, accountID uuid.UUID) (*domain.AccountSummary, error) {
	account, err := s.repo.FindAccountByID(ctx, accountID)
	if err != nil {
		return nil, lookupFailure(err)
	}

	totals, err := s.repo.SummarizeTransactions(ctx, accountID, monthStart(s.now()))
	if err != nil {
		return nil, operationFailed(err)
	}
	beneficiaries, err := s.repo.CountBeneficiariesByAccountID(ctx, accountID)
	if err != nil {
		return nil, operationFailed(err)
	}
	recent, _, err := s.repo.ListTransactions(ctx, accountID, domain.TransactionFilter{Page: 1, PerPage: recentTransactionsLimit})
	if err != nil {
		return nil, operationFailed(err)
	}

	return &domain.AccountSummary{
		Account:            account,
		Totals:             *totals,
		BeneficiariesCount: beneficiaries,
		RecentTransactions: recent,
	}, nil
}

func monthStart(now time.Time) time.Time {
	y, m, _ := now.UTC().Date()
	return time.Date(y, m, 1, 0, 0, 0, 0, time.UTC)
}
