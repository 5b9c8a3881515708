package app

import (
	"context"
	"errors"
	"log"

	"github.com/google/uuid"
	"github.com/transfa/ledger-service/internal/domain"
	"golang.org/x/crypto/bcrypt"
)

// verifyTransactionPIN checks pin against the account's hash and maintains the
// failed-attempt lockout. It never reveals whether the hash exists beyond
// ErrTransactionPINNotSet.
func (s *Service) verifyTransactionPIN(ctx context.Context, account *domain.Account, pin string) error {
	if !account.HasTransactionPIN() {
		return ErrTransactionPINNotSet
	}
	if s.pinMaxAttempts > 0 && account.PINLocked(s.now()) {
		log.Printf("level=warn component=pin msg=\"transaction pin locked\" account_id=%s locked_until=%s", account.ID, account.PINLockedUntil.UTC().Format("2006-01-02T15:04:05Z"))
		return ErrTransactionPINLocked
	}

	err := bcrypt.CompareHashAndPassword([]byte(*account.TransactionPINHash), []byte(pin))
	if err == nil {
		if account.PINFailedAttempts > 0 || account.PINLockedUntil != nil {
			if resetErr := s.repo.ResetTransactionPINFailureState(ctx, account.ID); resetErr != nil {
				log.Printf("level=warn component=pin msg=\"failed to reset pin failure state\" account_id=%s err=%v", account.ID, resetErr)
			}
		}
		return nil
	}
	if !errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
		return operationFailed(err)
	}

	if s.pinMaxAttempts > 0 {
		state, recordErr := s.repo.RecordFailedTransactionPINAttempt(ctx, account.ID, s.pinMaxAttempts, s.pinLockoutSeconds)
		switch {
		case recordErr != nil:
			log.Printf("level=warn component=pin msg=\"failed to record pin attempt\" account_id=%s err=%v", account.ID, recordErr)
		case state.LockedUntil != nil:
			log.Printf("level=warn component=pin msg=\"transaction pin lockout started\" account_id=%s attempts=%d", account.ID, state.FailedAttempts)
		}
	}
	return ErrInvalidCredential
}

// CreateTransactionPIN sets the first transaction PIN of an account.
func (s *Service) CreateTransactionPIN(ctx context.Context, accountID uuid.UUID, req domain.TransactionPINRequest) error {
	if err := validateNewPIN(req); err != nil {
		return err
	}
	account, err := s.repo.FindAccountByID(ctx, accountID)
	if err != nil {
		return lookupFailure(err)
	}
	if account.HasTransactionPIN() {
		return ErrTransactionPINAlreadySet
	}
	if err := s.storeTransactionPIN(ctx, account.ID, req.TransactionPIN); err != nil {
		return err
	}
	log.Printf("level=info component=pin msg=\"transaction pin created\" account_id=%s", account.ID)
	return nil
}

// ChangeTransactionPIN replaces an existing PIN after verifying the current one.
// Wrong current PINs count towards the lockout like a failed transfer.
func (s *Service) ChangeTransactionPIN(ctx context.Context, accountID uuid.UUID, req domain.TransactionPINRequest) error {
	if !domain.IsTransactionPIN(req.CurrentPIN) {
		return invalid("current_pin must be exactly 4 digits")
	}
	if err := validateNewPIN(req); err != nil {
		return err
	}
	account, err := s.repo.FindAccountByID(ctx, accountID)
	if err != nil {
		return lookupFailure(err)
	}
	if err := s.verifyTransactionPIN(ctx, account, req.CurrentPIN); err != nil {
		return err
	}
	if err := s.storeTransactionPIN(ctx, account.ID, req.TransactionPIN); err != nil {
		return err
	}
	log.Printf("level=info component=pin msg=\"transaction pin changed\" account_id=%s", account.ID)
	return nil
}

func validateNewPIN(req domain.TransactionPINRequest) error {
	if !domain.IsTransactionPIN(req.TransactionPIN) {
		return invalid("transaction_pin must be exactly 4 digits")
	}
	if req.TransactionPIN != req.TransactionPINConfirmation {
		return invalid("transaction_pin confirmation does not match")
	}
	return nil
}

func (s *Service) storeTransactionPIN(ctx context.Context, accountID uuid.UUID, pin string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(pin), bcrypt.DefaultCost)
	if err != nil {
		return operationFailed(err)
	}
	if err := s.repo.SetTransactionPINHash(ctx, accountID, string(hash)); err != nil {
		return lookupFailure(err)
	}
	return nil
}
