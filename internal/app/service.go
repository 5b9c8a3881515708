/**
 * @description
 * This file contains the core business logic for the ledger-service. The Service
 * owns every rule that decides whether money may move: validation, the transaction
 * PIN gate, balance sufficiency and the self-transfer rule. Persistence is delegated
 * to the store, which executes each movement as one atomic database transaction.
 *
 * @dependencies
 * - internal/store: For database interactions.
 * - internal/identifier: Public identifier generation with bounded retry.
 * - pkg/rabbitmq: For publishing ledger events.
 */

package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/transfa/ledger-service/internal/domain"
	"github.com/transfa/ledger-service/internal/identifier"
	"github.com/transfa/ledger-service/internal/store"
	"github.com/transfa/ledger-service/pkg/rabbitmq"
)

var (
	ErrValidationFailed       = errors.New("validation failed")
	ErrInvalidCredential      = errors.New("invalid transaction pin")
	ErrInsufficientFunds      = store.ErrInsufficientFunds
	ErrBalanceLimitExceeded   = store.ErrBalanceLimitExceeded
	ErrSelfTransferNotAllowed = errors.New("cannot transfer to your own account")
	ErrGenerationExhausted    = identifier.ErrGenerationExhausted
	ErrOperationFailed        = errors.New("operation failed")

	ErrAccountNotFound          = store.ErrAccountNotFound
	ErrAccountNotActive         = errors.New("account is not active")
	ErrAccountAlreadyExists     = store.ErrAccountExists
	ErrBeneficiaryNotFound      = store.ErrBeneficiaryNotFound
	ErrTransactionNotFound      = store.ErrTransactionNotFound
	ErrTransactionPINNotSet     = store.ErrTransactionPINNotSet
	ErrTransactionPINAlreadySet = errors.New("transaction pin already set")
	ErrTransactionPINLocked     = errors.New("transaction pin temporarily locked")
	ErrRateLimited              = errors.New("too many requests")
)

// AccountStatusError reports the status that blocked an operation.
type AccountStatusError struct {
	Status domain.AccountStatus
}

func (e *AccountStatusError) Error() string {
	return fmt.Sprintf("account is %s", e.Status)
}

func (e *AccountStatusError) Is(target error) bool {
	return target == ErrAccountNotActive
}

// RateLimitError carries how long the caller should wait before retrying.
type RateLimitError struct {
	RetryAfterSeconds int
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("too many requests; retry after %ds", e.RetryAfterSeconds)
}

func (e *RateLimitError) Is(target error) bool {
	return target == ErrRateLimited
}

// TransferQuota decides whether an account may start another transfer.
type TransferQuota interface {
	Reserve(ctx context.Context, accountID uuid.UUID) (QuotaDecision, error)
}

const (
	defaultPINMaxAttempts    = 5
	defaultPINLockoutSeconds = 600
	eventPublishTimeout      = 5 * time.Second
)

// Service provides the business logic for the ledger.
type Service struct {
	repo          store.Repository
	ids           *identifier.Generator
	eventProducer rabbitmq.Publisher
	eventExchange string

	transferQuota TransferQuota

	pinMaxAttempts    int
	pinLockoutSeconds int

	now func() time.Time
}

// NewService creates a new ledger service. eventProducer may be nil.
func NewService(repo store.Repository, ids *identifier.Generator, eventProducer rabbitmq.Publisher, eventExchange string) *Service {
	if ids == nil {
		ids = identifier.NewGenerator(identifier.WithChecker(repo))
	}
	return &Service{
		repo:              repo,
		ids:               ids,
		eventProducer:     eventProducer,
		eventExchange:     eventExchange,
		pinMaxAttempts:    defaultPINMaxAttempts,
		pinLockoutSeconds: defaultPINLockoutSeconds,
		now:               time.Now,
	}
}

// ConfigureTransactionPINLockout sets how many wrong PINs lock the PIN and for
// how long. maxAttempts <= 0 disables the lockout.
func (s *Service) ConfigureTransactionPINLockout(maxAttempts int, lockoutSeconds int) {
	s.pinMaxAttempts = maxAttempts
	if lockoutSeconds > 0 {
		s.pinLockoutSeconds = lockoutSeconds
	}
}

// SetTransferQuota enables per-account transfer throttling.
func (s *Service) SetTransferQuota(quota TransferQuota) {
	s.transferQuota = quota
}

func invalid(msg string) error {
	return fmt.Errorf("%w: %s", ErrValidationFailed, msg)
}

func operationFailed(err error) error {
	return fmt.Errorf("%w: %w", ErrOperationFailed, err)
}

// lookupFailure keeps not-found sentinels and folds anything else into the
// operation-failed class.
func lookupFailure(err error) error {
	switch {
	case errors.Is(err, ErrAccountNotFound),
		errors.Is(err, ErrBeneficiaryNotFound),
		errors.Is(err, ErrTransactionNotFound),
		errors.Is(err, ErrTransactionPINNotSet):
		return err
	}
	return operationFailed(err)
}

// ledgerFailure classifies an error returned from an atomic ledger unit. The
// store has already rolled back by the time this runs.
func ledgerFailure(err error) error {
	switch {
	case errors.Is(err, ErrInsufficientFunds),
		errors.Is(err, ErrBalanceLimitExceeded),
		errors.Is(err, ErrAccountNotActive),
		errors.Is(err, ErrAccountNotFound),
		errors.Is(err, ErrGenerationExhausted):
		return err
	}
	return operationFailed(err)
}

func (s *Service) publishEvent(ctx context.Context, routingKey string, payload interface{}) {
	if s.eventProducer == nil {
		return
	}
	publishCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), eventPublishTimeout)
	defer cancel()
	if err := s.eventProducer.Publish(publishCtx, s.eventExchange, routingKey, payload); err != nil {
		log.Printf("level=warn component=engine msg=\"event publish failed\" routing_key=%s err=%v", routingKey, err)
	}
}
