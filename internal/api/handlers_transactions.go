package api

import (
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/transfa/ledger-service/internal/domain"
)

const historyDateLayout = "2006-01-02"

// DepositHandler credits the caller's own account.
func (h *Handlers) DepositHandler(w http.ResponseWriter, r *http.Request) {
	account, ok := h.currentAccount(w, r)
	if !ok {
		return
	}

	var req domain.DepositRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	result, err := h.service.Deposit(r.Context(), account.ID, req)
	if err != nil {
		h.writeServiceError(w, "deposit", err)
		return
	}
	writeJSON(w, http.StatusCreated, movementResponse{
		Message:     "Deposit successful",
		Balance:     domain.FormatAmount(result.Balance),
		Transaction: newTransactionResponse(result.Transaction),
	})
}

// TransferHandler moves funds out of the caller's account. The transaction PIN
// is verified by the service, never logged here.
func (h *Handlers) TransferHandler(w http.ResponseWriter, r *http.Request) {
	account, ok := h.currentAccount(w, r)
	if !ok {
		return
	}

	var req domain.TransferRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	result, err := h.service.Transfer(r.Context(), account.ID, req)
	if err != nil {
		h.writeServiceError(w, "transfer", err)
		return
	}
	writeJSON(w, http.StatusCreated, movementResponse{
		Message:     "Transfer successful",
		Balance:     domain.FormatAmount(result.Balance),
		Transaction: newTransactionResponse(result.Transaction),
	})
}

// ListTransactionsHandler serves the paginated history.
// Query: type, status, from, to (YYYY-MM-DD, inclusive), page, per_page.
func (h *Handlers) ListTransactionsHandler(w http.ResponseWriter, r *http.Request) {
	account, ok := h.currentAccount(w, r)
	if !ok {
		return
	}

	filter, err := parseTransactionFilter(r.URL.Query())
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	page, err := h.service.ListTransactions(r.Context(), account.ID, filter)
	if err != nil {
		h.writeServiceError(w, "list transactions", err)
		return
	}
	writeJSON(w, http.StatusOK, transactionPageResponse{
		Data: newTransactionResponses(page.Items),
		Meta: page.Meta,
	})
}

func (h *Handlers) GetTransactionHandler(w http.ResponseWriter, r *http.Request) {
	account, ok := h.currentAccount(w, r)
	if !ok {
		return
	}

	record, err := h.service.GetTransaction(r.Context(), account.ID, chi.URLParam(r, "transactionID"))
	if err != nil {
		h.writeServiceError(w, "get transaction", err)
		return
	}
	writeJSON(w, http.StatusOK, newTransactionResponse(record))
}

// parseTransactionFilter only checks the query's shape; value rules such as
// the allowed types and the per_page cap belong to the service.
func parseTransactionFilter(q url.Values) (domain.TransactionFilter, error) {
	var filter domain.TransactionFilter

	if v := strings.TrimSpace(q.Get("type")); v != "" {
		t := domain.TransactionType(strings.ToLower(v))
		filter.Type = &t
	}
	if v := strings.TrimSpace(q.Get("status")); v != "" {
		s := domain.TransactionStatus(strings.ToLower(v))
		filter.Status = &s
	}

	var err error
	if filter.From, err = parseDateParam(q, "from"); err != nil {
		return filter, err
	}
	if filter.To, err = parseDateParam(q, "to"); err != nil {
		return filter, err
	}
	if filter.Page, err = parseIntParam(q, "page"); err != nil {
		return filter, err
	}
	if filter.PerPage, err = parseIntParam(q, "per_page"); err != nil {
		return filter, err
	}
	return filter, nil
}

func parseDateParam(q url.Values, name string) (*time.Time, error) {
	v := strings.TrimSpace(q.Get(name))
	if v == "" {
		return nil, nil
	}
	t, err := time.Parse(historyDateLayout, v)
	if err != nil {
		return nil, fmt.Errorf("%s must be a date in YYYY-MM-DD format", name)
	}
	return &t, nil
}

func parseIntParam(q url.Values, name string) (int, error) {
	v := strings.TrimSpace(q.Get(name))
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 1 {
		return 0, fmt.Errorf("%s must be a positive integer", name)
	}
	return n, nil
}
