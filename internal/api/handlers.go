/**
 * @description
 * This file contains the HTTP handlers for the ledger-service's API endpoints.
 * Handlers parse incoming requests, resolve the caller's ledger account from the
 * authenticated subject, call the application service and shape the JSON response.
 * Every service error is translated to a status code in one place so storage
 * error text never reaches a client.
 *
 * @dependencies
 * - encoding/json, log, net/http: Standard Go libraries.
 * - internal/app, internal/domain: For service logic, models, and error taxonomy.
 */

package api

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/transfa/ledger-service/internal/app"
	"github.com/transfa/ledger-service/internal/domain"
)

// LedgerService is the subset of app.Service the handlers depend on.
type LedgerService interface {
	OpenAccount(ctx context.Context, req domain.OpenAccountRequest) (*domain.Account, error)
	ResolveAccount(ctx context.Context, authSubject string) (*domain.Account, error)
	UpdateAccountStatus(ctx context.Context, accountID uuid.UUID, status domain.AccountStatus) error
	AccountSummary(ctx context.Context, accountID uuid.UUID) (*domain.AccountSummary, error)

	CreateTransactionPIN(ctx context.Context, accountID uuid.UUID, req domain.TransactionPINRequest) error
	ChangeTransactionPIN(ctx context.Context, accountID uuid.UUID, req domain.TransactionPINRequest) error

	CreateBeneficiary(ctx context.Context, accountID uuid.UUID, in domain.BeneficiaryInput) (*domain.Beneficiary, error)
	ListBeneficiaries(ctx context.Context, accountID uuid.UUID) ([]domain.Beneficiary, error)
	GetBeneficiary(ctx context.Context, accountID, beneficiaryID uuid.UUID) (*domain.Beneficiary, error)
	UpdateBeneficiary(ctx context.Context, accountID, beneficiaryID uuid.UUID, in domain.BeneficiaryInput) (*domain.Beneficiary, error)
	DeleteBeneficiary(ctx context.Context, accountID, beneficiaryID uuid.UUID) error

	Deposit(ctx context.Context, accountID uuid.UUID, req domain.DepositRequest) (*domain.MovementResult, error)
	Transfer(ctx context.Context, accountID uuid.UUID, req domain.TransferRequest) (*domain.MovementResult, error)
	ListTransactions(ctx context.Context, accountID uuid.UUID, filter domain.TransactionFilter) (*domain.TransactionPage, error)
	GetTransaction(ctx context.Context, accountID uuid.UUID, transactionID string) (*domain.Transaction, error)
}

var _ LedgerService = (*app.Service)(nil)

// Handlers holds the application service that handlers will use.
type Handlers struct {
	service LedgerService
}

// NewHandlers creates a new instance of Handlers.
func NewHandlers(service LedgerService) *Handlers {
	return &Handlers{service: service}
}

// HealthHandler reports liveness.
func (h *Handlers) HealthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// currentAccount resolves the ledger account owned by the authenticated subject.
// It writes the error response itself and reports false when resolution fails.
func (h *Handlers) currentAccount(w http.ResponseWriter, r *http.Request) (*domain.Account, bool) {
	subject, ok := GetAuthSubject(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Could not identify user from token")
		return nil, false
	}

	account, err := h.service.ResolveAccount(r.Context(), subject)
	if err != nil {
		if errors.Is(err, app.ErrAccountNotFound) {
			writeError(w, http.StatusNotFound, "No ledger account exists for this user")
			return nil, false
		}
		h.writeServiceError(w, "resolve account", err)
		return nil, false
	}
	return account, true
}

// writeServiceError maps the application error taxonomy onto HTTP statuses.
func (h *Handlers) writeServiceError(w http.ResponseWriter, op string, err error) {
	var rateLimited *app.RateLimitError
	var statusErr *app.AccountStatusError

	switch {
	case errors.As(err, &rateLimited):
		w.Header().Set("Retry-After", strconv.Itoa(rateLimited.RetryAfterSeconds))
		writeError(w, http.StatusTooManyRequests, "Too many transfer attempts. Please wait and try again.")
	case errors.Is(err, app.ErrValidationFailed):
		writeError(w, http.StatusBadRequest, validationMessage(err))
	case errors.Is(err, app.ErrTransactionPINNotSet):
		writeError(w, http.StatusBadRequest, "Transaction PIN is not set. Please create your PIN first.")
	case errors.Is(err, app.ErrTransactionPINLocked):
		writeError(w, http.StatusLocked, "Too many incorrect PIN attempts. Please wait and try again.")
	case errors.Is(err, app.ErrInvalidCredential):
		writeError(w, http.StatusUnauthorized, "Invalid transaction PIN.")
	case errors.Is(err, app.ErrInsufficientFunds):
		writeError(w, http.StatusBadRequest, "Insufficient funds")
	case errors.Is(err, app.ErrBalanceLimitExceeded):
		writeError(w, http.StatusBadRequest, "Balance would exceed the maximum supported value")
	case errors.Is(err, app.ErrSelfTransferNotAllowed):
		writeError(w, http.StatusBadRequest, "Cannot transfer to your own account")
	case errors.As(err, &statusErr):
		writeError(w, http.StatusForbidden, "Account is "+string(statusErr.Status))
	case errors.Is(err, app.ErrAccountNotActive):
		writeError(w, http.StatusForbidden, "Account is not active")
	case errors.Is(err, app.ErrBeneficiaryNotFound):
		writeError(w, http.StatusNotFound, "Beneficiary not found")
	case errors.Is(err, app.ErrTransactionNotFound):
		writeError(w, http.StatusNotFound, "Transaction not found")
	case errors.Is(err, app.ErrAccountNotFound):
		writeError(w, http.StatusNotFound, "Account not found")
	case errors.Is(err, app.ErrAccountAlreadyExists):
		writeError(w, http.StatusConflict, "A ledger account already exists for this user")
	case errors.Is(err, app.ErrTransactionPINAlreadySet):
		writeError(w, http.StatusConflict, "Transaction PIN already set")
	case errors.Is(err, app.ErrGenerationExhausted):
		log.Printf("level=error component=api msg=\"identifier space exhausted\" op=%q err=%v", op, err)
		writeError(w, http.StatusServiceUnavailable, "Unable to complete the request right now. Please retry.")
	default:
		log.Printf("level=error component=api msg=\"request failed\" op=%q err=%v", op, err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
	}
}

// validationMessage strips the sentinel prefix so clients see only the reason.
func validationMessage(err error) string {
	msg := err.Error()
	if idx := strings.Index(msg, app.ErrValidationFailed.Error()+": "); idx >= 0 {
		msg = msg[idx+len(app.ErrValidationFailed.Error())+2:]
	}
	if msg == "" {
		return "Invalid request"
	}
	return msg
}

// decodeJSON reads a JSON request body and rejects unknown fields.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return false
	}
	return true
}

// writeJSON is a helper for writing JSON responses.
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			log.Printf("level=warn component=api msg=\"failed to encode response\" err=%v", err)
		}
	}
}

// writeError is a helper for writing JSON error responses.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
