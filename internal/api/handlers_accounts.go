package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/transfa/ledger-service/internal/domain"
)

// OpenAccountHandler opens the ledger account for the authenticated subject.
func (h *Handlers) OpenAccountHandler(w http.ResponseWriter, r *http.Request) {
	subject, ok := GetAuthSubject(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Could not identify user from token")
		return
	}

	var req domain.OpenAccountRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	req.AuthSubject = subject

	account, err := h.service.OpenAccount(r.Context(), req)
	if err != nil {
		h.writeServiceError(w, "open account", err)
		return
	}
	writeJSON(w, http.StatusCreated, newAccountResponse(account))
}

func (h *Handlers) GetAccountHandler(w http.ResponseWriter, r *http.Request) {
	account, ok := h.currentAccount(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, newAccountResponse(account))
}

// AccountSummaryHandler returns dashboard totals and the most recent records.
func (h *Handlers) AccountSummaryHandler(w http.ResponseWriter, r *http.Request) {
	account, ok := h.currentAccount(w, r)
	if !ok {
		return
	}

	summary, err := h.service.AccountSummary(r.Context(), account.ID)
	if err != nil {
		h.writeServiceError(w, "account summary", err)
		return
	}

	writeJSON(w, http.StatusOK, summaryResponse{
		Account:            newAccountResponse(summary.Account),
		TotalDeposits:      domain.FormatAmount(summary.Totals.TotalDeposits),
		TotalTransfers:     domain.FormatAmount(summary.Totals.TotalTransfers),
		MonthlyDeposits:    domain.FormatAmount(summary.Totals.MonthlyDeposits),
		MonthlyTransfers:   domain.FormatAmount(summary.Totals.MonthlyTransfers),
		TotalTransactions:  summary.Totals.TotalTransactions,
		BeneficiariesCount: summary.BeneficiariesCount,
		RecentTransactions: newTransactionResponses(summary.RecentTransactions),
	})
}

func (h *Handlers) CreateTransactionPINHandler(w http.ResponseWriter, r *http.Request) {
	account, ok := h.currentAccount(w, r)
	if !ok {
		return
	}

	var req domain.TransactionPINRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := h.service.CreateTransactionPIN(r.Context(), account.ID, req); err != nil {
		h.writeServiceError(w, "create transaction pin", err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"message": "Transaction PIN created successfully"})
}

func (h *Handlers) ChangeTransactionPINHandler(w http.ResponseWriter, r *http.Request) {
	account, ok := h.currentAccount(w, r)
	if !ok {
		return
	}

	var req domain.TransactionPINRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := h.service.ChangeTransactionPIN(r.Context(), account.ID, req); err != nil {
		h.writeServiceError(w, "change transaction pin", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Transaction PIN updated successfully"})
}

type updateAccountStatusRequest struct {
	Status domain.AccountStatus `json:"status"`
}

// UpdateAccountStatusHandler is an internal endpoint for operations tooling.
func (h *Handlers) UpdateAccountStatusHandler(w http.ResponseWriter, r *http.Request) {
	accountID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid account ID")
		return
	}

	var req updateAccountStatusRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := h.service.UpdateAccountStatus(r.Context(), accountID, req.Status); err != nil {
		h.writeServiceError(w, "update account status", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": string(req.Status)})
}
