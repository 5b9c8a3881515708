package app

import (
	"context"
	"errors"
	"log"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/transfa/ledger-service/internal/domain"
	"github.com/transfa/ledger-service/internal/identifier"
)

// OpenAccount registers a ledger account for an authenticated subject with a
// zero balance. The account number and public id are drawn until both are
// unused; a collision on one redraws only that identifier.
func (s *Service) OpenAccount(ctx context.Context, req domain.OpenAccountRequest) (*domain.Account, error) {
	subject := strings.TrimSpace(req.AuthSubject)
	name := strings.TrimSpace(req.Name)
	if subject == "" {
		return nil, invalid("auth subject is required")
	}
	if name == "" {
		return nil, invalid("name is required")
	}
	if len(name) > maxNameLength {
		return nil, invalid("name must not exceed 255 characters")
	}
	accountType := req.AccountType
	if accountType == "" {
		accountType = domain.AccountTypeSavings
	}
	if !accountType.Valid() {
		return nil, invalid("account_type must be savings or current")
	}

	account := &domain.Account{
		ID:          uuid.New(),
		AuthSubject: subject,
		Name:        name,
		AccountType: accountType,
		Balance:     decimal.Zero,
		Status:      domain.AccountStatusActive,
	}

	_, err := s.ids.Reserve(ctx, identifier.KindAccountNumber, func(ctx context.Context, accountNumber string) error {
		account.AccountNumber = accountNumber
		_, err := s.ids.Reserve(ctx, identifier.KindUserID, func(ctx context.Context, publicID string) error {
			account.PublicID = publicID
			return s.repo.CreateAccount(ctx, account)
		})
		return err
	})
	if err != nil {
		switch {
		case errors.Is(err, ErrAccountAlreadyExists), errors.Is(err, ErrGenerationExhausted):
			return nil, err
		}
		log.Printf("level=error component=accounts msg=\"open account failed\" err=%v", err)
		return nil, operationFailed(err)
	}

	log.Printf("level=info component=accounts msg=\"account opened\" account_id=%s public_id=%s account_number=%s",
		account.ID, account.PublicID, domain.MaskAccountNumber(account.AccountNumber))
	return account, nil
}

func (s *Service) GetAccount(ctx context.Context, accountID uuid.UUID) (*domain.Account, error) {
	account, err := s.repo.FindAccountByID(ctx, accountID)
	if err != nil {
		return nil, lookupFailure(err)
	}
	return account, nil
}

// ResolveAccount maps an authenticated subject to its ledger account.
func (s *Service) ResolveAccount(ctx context.Context, authSubject string) (*domain.Account, error) {
	account, err := s.repo.FindAccountByAuthSubject(ctx, authSubject)
	if err != nil {
		return nil, lookupFailure(err)
	}
	return account, nil
}

// UpdateAccountStatus changes the lifecycle status. Accounts are never deleted.
func (s *Service) UpdateAccountStatus(ctx context.Context, accountID uuid.UUID, status domain.AccountStatus) error {
	if !status.Valid() {
		return invalid("status must be one of active, inactive, suspended")
	}
	if err := s.repo.UpdateAccountStatus(ctx, accountID, status); err != nil {
		return lookupFailure(err)
	}
	log.Printf("level=info component=accounts msg=\"account status updated\" account_id=%s status=%s", accountID, status)
	return nil
}
