package app

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/transfa/ledger-service/internal/domain"
	"github.com/transfa/ledger-service/internal/identifier"
	"github.com/transfa/ledger-service/internal/store"
)

const (
	defaultDepositSenderName = "External Deposit"
	unknownBeneficiaryName   = "Unknown"
	maxNameLength            = 255
)

// Deposit credits the caller's own account and records a deposit.
func (s *Service) Deposit(ctx context.Context, accountID uuid.UUID, req domain.DepositRequest) (*domain.MovementResult, error) {
	if err := domain.ValidatePositiveAmount(req.Amount); err != nil {
		return nil, invalid(err.Error())
	}
	senderAccountNumber := strings.TrimSpace(req.SenderAccountNumber)
	if senderAccountNumber != "" && !domain.IsAccountNumber(senderAccountNumber) {
		return nil, invalid("sender_account_number must be exactly 10 digits")
	}
	senderName := defaultDepositSenderName
	if req.SenderName != nil {
		if name := strings.TrimSpace(*req.SenderName); name != "" {
			if len(name) > maxNameLength {
				return nil, invalid("sender_name must not exceed 255 characters")
			}
			senderName = name
		}
	}

	actor, err := s.repo.FindAccountByID(ctx, accountID)
	if err != nil {
		return nil, lookupFailure(err)
	}
	if !actor.IsActive() {
		return nil, &AccountStatusError{Status: actor.Status}
	}
	if exceedsBalanceLimit(actor.Balance, req.Amount) {
		return nil, ErrBalanceLimitExceeded
	}

	var result domain.MovementResult
	ledgerCtx := context.WithoutCancel(ctx)
	err = s.repo.ExecLedgerTx(ledgerCtx, func(tx store.LedgerTx) error {
		locked, err := tx.LockAccountByNumber(ledgerCtx, actor.AccountNumber)
		if err != nil {
			return err
		}
		if !locked.IsActive() {
			return &AccountStatusError{Status: locked.Status}
		}
		if exceedsBalanceLimit(locked.Balance, req.Amount) {
			return ErrBalanceLimitExceeded
		}

		balance, err := tx.AdjustBalance(ledgerCtx, locked.ID, req.Amount)
		if err != nil {
			return err
		}

		record := &domain.Transaction{
			ID:                       uuid.New(),
			AccountID:                locked.ID,
			Type:                     domain.TransactionTypeDeposit,
			Amount:                   req.Amount,
			BeneficiaryAccountNumber: locked.AccountNumber,
			BeneficiaryName:          locked.Name,
			SenderAccountNumber:      senderAccountNumber,
			SenderName:               senderName,
			Status:                   domain.TransactionStatusCompleted,
			CreatedAt:                s.recordTime(),
		}
		if err := s.insertRecord(ledgerCtx, tx, record); err != nil {
			return err
		}

		result = domain.MovementResult{Balance: balance, Transaction: record}
		return nil
	})
	if err != nil {
		log.Printf("level=error component=engine op=deposit outcome=failed account_id=%s err=%v", accountID, err)
		return nil, ledgerFailure(err)
	}

	log.Printf("level=info component=engine op=deposit outcome=completed account_id=%s transaction_id=%s amount=%s",
		accountID, result.Transaction.TransactionID, domain.FormatAmount(req.Amount))

	s.publishEvent(ctx, domain.EventDepositCompleted, movementEvent(domain.EventDepositCompleted, result.Transaction, result.Balance, nil))
	return &result, nil
}

// Transfer moves funds from the caller's account to a beneficiary. Internal
// beneficiaries are credited in the same database transaction; external ones
// are recorded only.
func (s *Service) Transfer(ctx context.Context, accountID uuid.UUID, req domain.TransferRequest) (*domain.MovementResult, error) {
	if err := s.consumeTransferQuota(ctx, accountID); err != nil {
		return nil, err
	}

	beneficiaryNumber := strings.TrimSpace(req.BeneficiaryAccountNumber)
	if err := domain.ValidatePositiveAmount(req.Amount); err != nil {
		return nil, invalid(err.Error())
	}
	if !domain.IsAccountNumber(beneficiaryNumber) {
		return nil, invalid("beneficiary_account_number must be exactly 10 digits")
	}
	if !domain.IsTransactionPIN(req.TransactionPIN) {
		return nil, invalid("transaction_pin must be exactly 4 digits")
	}
	suppliedName := ""
	if req.BeneficiaryName != nil {
		suppliedName = strings.TrimSpace(*req.BeneficiaryName)
		if len(suppliedName) > maxNameLength {
			return nil, invalid("beneficiary_name must not exceed 255 characters")
		}
	}

	actor, err := s.repo.FindAccountByID(ctx, accountID)
	if err != nil {
		return nil, lookupFailure(err)
	}
	if !actor.IsActive() {
		return nil, &AccountStatusError{Status: actor.Status}
	}

	if req.BeneficiaryID != nil {
		if _, err := s.repo.FindBeneficiaryByID(ctx, *req.BeneficiaryID, actor.ID); err != nil {
			if errors.Is(err, ErrBeneficiaryNotFound) {
				return nil, invalid("beneficiary_id does not exist")
			}
			return nil, operationFailed(err)
		}
	}

	if err := s.verifyTransactionPIN(ctx, actor, req.TransactionPIN); err != nil {
		return nil, err
	}
	if actor.Balance.LessThan(req.Amount) {
		return nil, ErrInsufficientFunds
	}
	if beneficiaryNumber == actor.AccountNumber {
		return nil, ErrSelfTransferNotAllowed
	}

	var result domain.MovementResult
	var credited *domain.Account
	ledgerCtx := context.WithoutCancel(ctx)
	err = s.repo.ExecLedgerTx(ledgerCtx, func(tx store.LedgerTx) error {
		locked, err := store.LockAccounts(ledgerCtx, tx, actor.AccountNumber, beneficiaryNumber)
		if err != nil {
			return err
		}
		sender, ok := locked[actor.AccountNumber]
		if !ok {
			return ErrAccountNotFound
		}
		if !sender.IsActive() {
			return &AccountStatusError{Status: sender.Status}
		}
		if sender.Balance.LessThan(req.Amount) {
			return ErrInsufficientFunds
		}

		balance, err := tx.AdjustBalance(ledgerCtx, sender.ID, req.Amount.Neg())
		if err != nil {
			return err
		}

		beneficiaryName := suppliedName
		var creditedAccountID *uuid.UUID
		if internal, ok := locked[beneficiaryNumber]; ok {
			if exceedsBalanceLimit(internal.Balance, req.Amount) {
				return ErrBalanceLimitExceeded
			}
			if _, err := tx.AdjustBalance(ledgerCtx, internal.ID, req.Amount); err != nil {
				return err
			}
			if beneficiaryName == "" {
				beneficiaryName = internal.Name
			}
			id := internal.ID
			creditedAccountID = &id
			credited = internal
		}
		if beneficiaryName == "" {
			beneficiaryName = unknownBeneficiaryName
		}

		record := &domain.Transaction{
			ID:                       uuid.New(),
			AccountID:                sender.ID,
			Type:                     domain.TransactionTypeTransfer,
			Amount:                   req.Amount,
			BeneficiaryID:            req.BeneficiaryID,
			BeneficiaryAccountNumber: beneficiaryNumber,
			BeneficiaryName:          beneficiaryName,
			SenderAccountNumber:      sender.AccountNumber,
			SenderName:               sender.Name,
			CreditedAccountID:        creditedAccountID,
			Status:                   domain.TransactionStatusCompleted,
			CreatedAt:                s.recordTime(),
		}
		if err := s.insertRecord(ledgerCtx, tx, record); err != nil {
			return err
		}

		result = domain.MovementResult{Balance: balance, Transaction: record}
		return nil
	})
	if err != nil {
		log.Printf("level=error component=engine op=transfer outcome=failed account_id=%s beneficiary=%s err=%v",
			accountID, domain.MaskAccountNumber(beneficiaryNumber), err)
		if req.BeneficiaryID != nil && errors.Is(err, ErrBeneficiaryNotFound) {
			// The saved beneficiary was deleted between the lookup and the insert.
			return nil, invalid("beneficiary_id does not exist")
		}
		return nil, ledgerFailure(err)
	}

	log.Printf("level=info component=engine op=transfer outcome=completed account_id=%s transaction_id=%s amount=%s beneficiary=%s internal=%t",
		accountID, result.Transaction.TransactionID, domain.FormatAmount(req.Amount), domain.MaskAccountNumber(beneficiaryNumber), credited != nil)

	s.publishEvent(ctx, domain.EventTransferCompleted, movementEvent(domain.EventTransferCompleted, result.Transaction, result.Balance, credited))
	if credited != nil {
		received := movementEvent(domain.EventTransferReceived, result.Transaction, result.Balance, nil)
		received.AccountID = credited.ID.String()
		received.CounterpartyAccountID = result.Transaction.AccountID.String()
		received.Balance = ""
		s.publishEvent(ctx, domain.EventTransferReceived, received)
	}
	return &result, nil
}

// insertRecord assigns a fresh public transaction id and appends the record,
// redrawing the id when it collides.
func (s *Service) insertRecord(ctx context.Context, tx store.LedgerTx, record *domain.Transaction) error {
	_, err := s.ids.Reserve(ctx, identifier.KindTransactionID, func(ctx context.Context, transactionID string) error {
		record.TransactionID = transactionID
		return tx.InsertTransaction(ctx, record)
	})
	return err
}

func (s *Service) consumeTransferQuota(ctx context.Context, accountID uuid.UUID) error {
	if s.transferQuota == nil {
		return nil
	}
	decision, err := s.transferQuota.Reserve(ctx, accountID)
	if err != nil {
		// Fail open: an unavailable quota store must not block payments.
		log.Printf("level=warn component=engine msg=\"transfer quota unavailable\" account_id=%s err=%v", accountID, err)
		return nil
	}
	if !decision.Allowed {
		log.Printf("level=warn component=engine msg=\"transfer rate limited\" account_id=%s used=%d retry_after=%s", accountID, decision.Used, decision.RetryAfter)
		return &RateLimitError{RetryAfterSeconds: retryAfterSeconds(decision.RetryAfter)}
	}
	return nil
}

// exceedsBalanceLimit reports whether crediting amount would push balance past
// what the balance column can hold.
func exceedsBalanceLimit(balance, amount decimal.Decimal) bool {
	return balance.Add(amount).GreaterThan(domain.MaxAmount)
}

// recordTime is truncated to the storage precision so a record returned by the
// engine reads back identical.
func (s *Service) recordTime() time.Time {
	return s.now().UTC().Truncate(time.Microsecond)
}

func movementEvent(eventType string, record *domain.Transaction, balance decimal.Decimal, counterparty *domain.Account) domain.LedgerMovementEvent {
	event := domain.LedgerMovementEvent{
		EventType:                eventType,
		TransactionID:            record.TransactionID,
		AccountID:                record.AccountID.String(),
		Type:                     string(record.Type),
		Amount:                   domain.FormatAmount(record.Amount),
		Balance:                  domain.FormatAmount(balance),
		SenderAccountNumber:      record.SenderAccountNumber,
		SenderName:               record.SenderName,
		BeneficiaryAccountNumber: record.BeneficiaryAccountNumber,
		BeneficiaryName:          record.BeneficiaryName,
		OccurredAt:               record.CreatedAt,
	}
	if counterparty != nil {
		event.CounterpartyAccountID = counterparty.ID.String()
	}
	return event
}
