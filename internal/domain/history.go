package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	DefaultHistoryPerPage = 15
	MaxHistoryPerPage     = 100
	// MaxHistoryPage keeps (page-1)*per_page well inside int range.
	MaxHistoryPage        = 1_000_000
)

// TransactionFilter narrows an account's transaction history. From and To are
// calendar dates and both ends are inclusive.
type TransactionFilter struct {
	Type    *TransactionType
	Status  *TransactionStatus
	From    *time.Time
	To      *time.Time
	Page    int
	PerPage int
}

// Normalize clamps paging to sane bounds.
func (f TransactionFilter) Normalize() TransactionFilter {
	if f.PerPage <= 0 {
		f.PerPage = DefaultHistoryPerPage
	}
	if f.PerPage > MaxHistoryPerPage {
		f.PerPage = MaxHistoryPerPage
	}
	if f.Page <= 0 {
		f.Page = 1
	}
	if f.Page > MaxHistoryPage {
		f.Page = MaxHistoryPage
	}
	return f
}

func (f TransactionFilter) Offset() int {
	return (f.Page - 1) * f.PerPage
}

type PageMeta struct {
	CurrentPage int   `json:"current_page"`
	LastPage    int   `json:"last_page"`
	PerPage     int   `json:"per_page"`
	Total       int64 `json:"total"`
}

// NewPageMeta derives the page counters for total matching rows.
func NewPageMeta(f TransactionFilter, total int64) PageMeta {
	lastPage := 1
	if total > 0 {
		lastPage = int((total + int64(f.PerPage) - 1) / int64(f.PerPage))
	}
	return PageMeta{
		CurrentPage: f.Page,
		LastPage:    lastPage,
		PerPage:     f.PerPage,
		Total:       total,
	}
}

type TransactionPage struct {
	Items []Transaction
	Meta  PageMeta
}

// TransactionTotals aggregates completed records for one account.
type TransactionTotals struct {
	TotalDeposits     decimal.Decimal
	TotalTransfers    decimal.Decimal
	MonthlyDeposits   decimal.Decimal
	MonthlyTransfers  decimal.Decimal
	TotalTransactions int64
}

// AccountSummary backs the dashboard view of an account.
type AccountSummary struct {
	Account            *Account
	Totals             TransactionTotals
	BeneficiariesCount int64
	RecentTransactions []Transaction
}

// BalanceDrift is an account whose stored balance disagrees with its records.
type BalanceDrift struct {
	AccountID     uuid.UUID
	AccountNumber string
	Stored        decimal.Decimal
	Computed      decimal.Decimal
}
