package store

import (
	"context"
	"errors"
	"sort"

	"github.com/transfa/ledger-service/internal/domain"
)

// LockAccounts locks every existing account among accountNumbers in ascending
// account-number order and returns them keyed by number. Numbers that match no
// account are absent from the result. Every writer goes through this ordering,
// so two transfers touching the same pair of accounts in opposite directions
// cannot deadlock. Account numbers are fixed-width digits, so string order is
// numeric order.
func LockAccounts(ctx context.Context, tx LedgerTx, accountNumbers ...string) (map[string]*domain.Account, error) {
	ordered := make([]string, 0, len(accountNumbers))
	seen := make(map[string]struct{}, len(accountNumbers))
	for _, number := range accountNumbers {
		if _, dup := seen[number]; dup {
			continue
		}
		seen[number] = struct{}{}
		ordered = append(ordered, number)
	}
	sort.Strings(ordered)

	locked := make(map[string]*domain.Account, len(ordered))
	for _, number := range ordered {
		account, err := tx.LockAccountByNumber(ctx, number)
		if err != nil {
			if errors.Is(err, ErrAccountNotFound) {
				continue
			}
			return nil, err
		}
		locked[number] = account
	}
	return locked, nil
}
