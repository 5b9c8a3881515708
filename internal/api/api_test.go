package api

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/transfa/ledger-service/internal/app"
	"github.com/transfa/ledger-service/internal/domain"
)

const (
	testKID      = "test-key"
	testSubject  = "user_2abc"
	testAudience = "ledger-api"
	testIssuer   = "https://auth.example.com"
)

var testSigningKey = mustRSAKey()

func mustRSAKey() *rsa.PrivateKey {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		panic(err)
	}
	return key
}

type staticKeySource struct{}

func (staticKeySource) PublicKey(ctx context.Context, kid string) (*rsa.PublicKey, error) {
	if kid != testKID {
		return nil, fmt.Errorf("key with kid %s not found", kid)
	}
	return &testSigningKey.PublicKey, nil
}

func signToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	token.Header["kid"] = testKID
	signed, err := token.SignedString(testSigningKey)
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}
	return signed
}

func validClaims() jwt.MapClaims {
	return jwt.MapClaims{
		"sub": testSubject,
		"aud": testAudience,
		"iss": testIssuer,
		"exp": time.Now().Add(time.Hour).Unix(),
	}
}

// ledgerServiceStub embeds the interface so tests override only what they use.
type ledgerServiceStub struct {
	LedgerService

	account *domain.Account

	transferFn      func(req domain.TransferRequest) (*domain.MovementResult, error)
	depositFn       func(req domain.DepositRequest) (*domain.MovementResult, error)
	listFn          func(filter domain.TransactionFilter) (*domain.TransactionPage, error)
	statusUpdates   []domain.AccountStatus
	deletedBenefits []uuid.UUID
}

func (s *ledgerServiceStub) ResolveAccount(ctx context.Context, authSubject string) (*domain.Account, error) {
	if s.account == nil || authSubject != s.account.AuthSubject {
		return nil, app.ErrAccountNotFound
	}
	return s.account, nil
}

func (s *ledgerServiceStub) Transfer(ctx context.Context, accountID uuid.UUID, req domain.TransferRequest) (*domain.MovementResult, error) {
	return s.transferFn(req)
}

func (s *ledgerServiceStub) Deposit(ctx context.Context, accountID uuid.UUID, req domain.DepositRequest) (*domain.MovementResult, error) {
	return s.depositFn(req)
}

func (s *ledgerServiceStub) ListTransactions(ctx context.Context, accountID uuid.UUID, filter domain.TransactionFilter) (*domain.TransactionPage, error) {
	return s.listFn(filter)
}

func (s *ledgerServiceStub) UpdateAccountStatus(ctx context.Context, accountID uuid.UUID, status domain.AccountStatus) error {
	s.statusUpdates = append(s.statusUpdates, status)
	return nil
}

func (s *ledgerServiceStub) DeleteBeneficiary(ctx context.Context, accountID, beneficiaryID uuid.UUID) error {
	s.deletedBenefits = append(s.deletedBenefits, beneficiaryID)
	return nil
}

func newStubService() *ledgerServiceStub {
	return &ledgerServiceStub{
		account: &domain.Account{
			ID:            uuid.New(),
			PublicID:      "USR-20260101-AB12",
			AuthSubject:   testSubject,
			AccountNumber: "1234567890",
			Name:          "Ada Obi",
			AccountType:   domain.AccountTypeSavings,
			Balance:       decimal.RequireFromString("1000"),
			Status:        domain.AccountStatusActive,
		},
	}
}

func newTestRouter(svc LedgerService) http.Handler {
	return NewRouter(NewHandlers(svc), RouterOptions{
		Auth: AuthOptions{
			Keys:     staticKeySource{},
			Audience: testAudience,
			Issuer:   testIssuer,
		},
		InternalAPIKey: "internal-secret",
		AllowedOrigins: []string{"*"},
	})
}

func doRequest(t *testing.T, h http.Handler, method, path, token, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("response is not a JSON object: %v body=%s", err, rec.Body.String())
	}
	return out
}

func TestHealthIsPublic(t *testing.T) {
	rec := doRequest(t, newTestRouter(newStubService()), http.MethodGet, "/api/health", "", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestAuthMiddleware_RejectsBadTokens(t *testing.T) {
	router := newTestRouter(newStubService())

	expired := validClaims()
	expired["exp"] = time.Now().Add(-time.Minute).Unix()
	wrongAudience := validClaims()
	wrongAudience["aud"] = "someone-else"
	wrongIssuer := validClaims()
	wrongIssuer["iss"] = "https://evil.example.com"
	noSubject := validClaims()
	delete(noSubject, "sub")

	cases := map[string]string{
		"missing":        "",
		"garbage":        "not-a-jwt",
		"expired":        signToken(t, expired),
		"wrong audience": signToken(t, wrongAudience),
		"wrong issuer":   signToken(t, wrongIssuer),
		"no subject":     signToken(t, noSubject),
	}
	for name, token := range cases {
		rec := doRequest(t, router, http.MethodGet, "/api/accounts/me", token, "")
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("%s: expected 401, got %d", name, rec.Code)
		}
	}
}

func TestAuthMiddleware_RejectsHMACTokens(t *testing.T) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, validClaims())
	token.Header["kid"] = testKID
	signed, err := token.SignedString([]byte("shared-secret"))
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}
	rec := doRequest(t, newTestRouter(newStubService()), http.MethodGet, "/api/accounts/me", signed, "")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for HS256 token, got %d", rec.Code)
	}
}

func TestGetAccount_RendersTwoPlaceBalance(t *testing.T) {
	rec := doRequest(t, newTestRouter(newStubService()), http.MethodGet, "/api/accounts/me", signToken(t, validClaims()), "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d body=%s", rec.Code, rec.Body.String())
	}
	body := decodeBody(t, rec)
	if body["balance"] != "1000.00" || body["account_number"] != "1234567890" {
		t.Fatalf("unexpected account body %v", body)
	}
	if _, leaked := body["transaction_pin_hash"]; leaked {
		t.Fatal("PIN hash must never be rendered")
	}
}

func TestUnknownSubjectGets404(t *testing.T) {
	svc := newStubService()
	svc.account.AuthSubject = "someone-else"
	rec := doRequest(t, newTestRouter(svc), http.MethodGet, "/api/accounts/me", signToken(t, validClaims()), "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestTransfer_Success(t *testing.T) {
	svc := newStubService()
	var got domain.TransferRequest
	svc.transferFn = func(req domain.TransferRequest) (*domain.MovementResult, error) {
		got = req
		return &domain.MovementResult{
			Balance: decimal.RequireFromString("700"),
			Transaction: &domain.Transaction{
				TransactionID:            "TXN2026010112345678",
				Type:                     domain.TransactionTypeTransfer,
				Amount:                   req.Amount,
				BeneficiaryAccountNumber: req.BeneficiaryAccountNumber,
				BeneficiaryName:          "Unknown",
				SenderAccountNumber:      "1234567890",
				SenderName:               "Ada Obi",
				Status:                   domain.TransactionStatusCompleted,
			},
		}, nil
	}

	body := `{"amount":"300","transaction_pin":"1234","beneficiary_account_number":"0987654321"}`
	rec := doRequest(t, newTestRouter(svc), http.MethodPost, "/api/transactions/transfer", signToken(t, validClaims()), body)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d body=%s", rec.Code, rec.Body.String())
	}
	if !got.Amount.Equal(decimal.NewFromInt(300)) || got.TransactionPIN != "1234" {
		t.Fatalf("request not passed through: %+v", got)
	}

	resp := decodeBody(t, rec)
	if resp["balance"] != "700.00" {
		t.Fatalf("expected balance 700.00, got %v", resp["balance"])
	}
	tx := resp["transaction"].(map[string]interface{})
	if tx["amount"] != "300.00" || tx["transaction_id"] != "TXN2026010112345678" {
		t.Fatalf("unexpected transaction body %v", tx)
	}
}

func TestTransfer_ErrorMapping(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
	}{
		{"validation", fmt.Errorf("%w: %s", app.ErrValidationFailed, "amount must be greater than zero"), http.StatusBadRequest},
		{"pin not set", app.ErrTransactionPINNotSet, http.StatusBadRequest},
		{"wrong pin", app.ErrInvalidCredential, http.StatusUnauthorized},
		{"insufficient", app.ErrInsufficientFunds, http.StatusBadRequest},
		{"balance limit", app.ErrBalanceLimitExceeded, http.StatusBadRequest},
		{"self", app.ErrSelfTransferNotAllowed, http.StatusBadRequest},
		{"inactive", &app.AccountStatusError{Status: domain.AccountStatusSuspended}, http.StatusForbidden},
		{"beneficiary missing", app.ErrBeneficiaryNotFound, http.StatusNotFound},
		{"locked", app.ErrTransactionPINLocked, http.StatusLocked},
		{"exhausted", app.ErrGenerationExhausted, http.StatusServiceUnavailable},
		{"rate limited", &app.RateLimitError{RetryAfterSeconds: 42}, http.StatusTooManyRequests},
		{"storage", fmt.Errorf("%w: %w", app.ErrOperationFailed, errors.New("relation secret_table does not exist")), http.StatusInternalServerError},
	}

	body := `{"amount":"10","transaction_pin":"1234","beneficiary_account_number":"0987654321"}`
	for _, tc := range cases {
		svc := newStubService()
		svc.transferFn = func(domain.TransferRequest) (*domain.MovementResult, error) { return nil, tc.err }

		rec := doRequest(t, newTestRouter(svc), http.MethodPost, "/api/transactions/transfer", signToken(t, validClaims()), body)
		if rec.Code != tc.status {
			t.Fatalf("%s: expected %d, got %d", tc.name, tc.status, rec.Code)
		}
		if strings.Contains(rec.Body.String(), "secret_table") {
			t.Fatalf("%s: storage detail leaked: %s", tc.name, rec.Body.String())
		}
	}
}

func TestTransfer_RateLimitSetsRetryAfter(t *testing.T) {
	svc := newStubService()
	svc.transferFn = func(domain.TransferRequest) (*domain.MovementResult, error) {
		return nil, &app.RateLimitError{RetryAfterSeconds: 42}
	}
	body := `{"amount":"10","transaction_pin":"1234","beneficiary_account_number":"0987654321"}`
	rec := doRequest(t, newTestRouter(svc), http.MethodPost, "/api/transactions/transfer", signToken(t, validClaims()), body)
	if got := rec.Header().Get("Retry-After"); got != "42" {
		t.Fatalf("expected Retry-After 42, got %q", got)
	}
}

func TestValidationMessageStripsSentinel(t *testing.T) {
	svc := newStubService()
	svc.depositFn = func(domain.DepositRequest) (*domain.MovementResult, error) {
		return nil, fmt.Errorf("%w: %s", app.ErrValidationFailed, "amount must be greater than zero")
	}
	rec := doRequest(t, newTestRouter(svc), http.MethodPost, "/api/transactions/deposit", signToken(t, validClaims()), `{"amount":"0","sender_account_number":"1111111111"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if msg := decodeBody(t, rec)["error"]; msg != "amount must be greater than zero" {
		t.Fatalf("unexpected message %v", msg)
	}
}

func TestRejectsUnknownBodyFields(t *testing.T) {
	svc := newStubService()
	svc.depositFn = func(domain.DepositRequest) (*domain.MovementResult, error) {
		t.Fatal("service must not be called for a malformed body")
		return nil, nil
	}
	rec := doRequest(t, newTestRouter(svc), http.MethodPost, "/api/transactions/deposit", signToken(t, validClaims()), `{"amount":"5","balance":"9999"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestListTransactions_ParsesQuery(t *testing.T) {
	svc := newStubService()
	var got domain.TransactionFilter
	svc.listFn = func(filter domain.TransactionFilter) (*domain.TransactionPage, error) {
		got = filter
		return &domain.TransactionPage{Meta: domain.PageMeta{CurrentPage: 2, LastPage: 2, PerPage: 5, Total: 6}}, nil
	}

	rec := doRequest(t, newTestRouter(svc), http.MethodGet,
		"/api/transactions?type=Transfer&status=completed&from=2026-01-01&to=2026-01-31&page=2&per_page=5",
		signToken(t, validClaims()), "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d body=%s", rec.Code, rec.Body.String())
	}
	if got.Type == nil || *got.Type != domain.TransactionTypeTransfer {
		t.Fatalf("unexpected type filter %v", got.Type)
	}
	if got.Status == nil || *got.Status != domain.TransactionStatusCompleted {
		t.Fatalf("unexpected status filter %v", got.Status)
	}
	if got.From == nil || got.From.Format(historyDateLayout) != "2026-01-01" || got.To.Format(historyDateLayout) != "2026-01-31" {
		t.Fatalf("unexpected date range %v..%v", got.From, got.To)
	}
	if got.Page != 2 || got.PerPage != 5 {
		t.Fatalf("unexpected paging %d/%d", got.Page, got.PerPage)
	}

	resp := decodeBody(t, rec)
	if data, ok := resp["data"].([]interface{}); !ok || len(data) != 0 {
		t.Fatalf("expected an empty data array, got %v", resp["data"])
	}
}

func TestListTransactions_RejectsMalformedQuery(t *testing.T) {
	svc := newStubService()
	svc.listFn = func(domain.TransactionFilter) (*domain.TransactionPage, error) {
		t.Fatal("service must not be called for a malformed query")
		return nil, nil
	}
	router := newTestRouter(svc)
	for _, query := range []string{"from=01-31-2026", "to=yesterday", "page=0", "page=92233720368547758070", "per_page=abc"} {
		rec := doRequest(t, router, http.MethodGet, "/api/transactions?"+query, signToken(t, validClaims()), "")
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("%s: expected 400, got %d", query, rec.Code)
		}
	}
}

func TestDeleteBeneficiary(t *testing.T) {
	svc := newStubService()
	id := uuid.New()
	router := newTestRouter(svc)

	rec := doRequest(t, router, http.MethodDelete, "/api/beneficiaries/"+id.String(), signToken(t, validClaims()), "")
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}
	if len(svc.deletedBenefits) != 1 || svc.deletedBenefits[0] != id {
		t.Fatalf("unexpected deletions %v", svc.deletedBenefits)
	}

	rec = doRequest(t, router, http.MethodDelete, "/api/beneficiaries/not-a-uuid", signToken(t, validClaims()), "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for a malformed id, got %d", rec.Code)
	}
}

func TestInternalStatusRoute(t *testing.T) {
	svc := newStubService()
	router := newTestRouter(svc)
	path := "/internal/accounts/" + svc.account.ID.String() + "/status"

	rec := doRequest(t, router, http.MethodPut, path, "", `{"status":"suspended"}`)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without key, got %d", rec.Code)
	}

	req := httptest.NewRequest(http.MethodPut, path, strings.NewReader(`{"status":"suspended"}`))
	req.Header.Set("X-Internal-API-Key", "internal-secret")
	ok := httptest.NewRecorder()
	router.ServeHTTP(ok, req)
	if ok.Code != http.StatusOK {
		t.Fatalf("expected 200 with key, got %d body=%s", ok.Code, ok.Body.String())
	}
	if len(svc.statusUpdates) != 1 || svc.statusUpdates[0] != domain.AccountStatusSuspended {
		t.Fatalf("unexpected status updates %v", svc.statusUpdates)
	}
}

func TestInternalAuthMiddleware_ClosedWithoutKey(t *testing.T) {
	handler := InternalAuthMiddleware("")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run")
	}))
	req := httptest.NewRequest(http.MethodPut, "/internal/accounts/x/status", nil)
	req.Header.Set("X-Internal-API-Key", "")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rec.Code)
	}
}

func TestJWKSKeySource_FetchesAndCaches(t *testing.T) {
	var hits int32
	pub := testSigningKey.PublicKey
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"keys": []map[string]string{{
				"kid": testKID,
				"kty": "RSA",
				"use": "sig",
				"n":   base64.RawURLEncoding.EncodeToString(pub.N.Bytes()),
				"e":   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(pub.E)).Bytes()),
			}},
		})
	}))
	defer server.Close()

	source := NewJWKSKeySource(server.URL)
	for i := 0; i < 3; i++ {
		key, err := source.PublicKey(context.Background(), testKID)
		if err != nil {
			t.Fatalf("PublicKey returned error: %v", err)
		}
		if key.N.Cmp(pub.N) != 0 || key.E != pub.E {
			t.Fatal("fetched key does not match the signing key")
		}
	}
	if _, err := source.PublicKey(context.Background(), "rotated"); err == nil {
		t.Fatal("expected an unknown kid to fail")
	}
	if got := atomic.LoadInt32(&hits); got != 1 {
		t.Fatalf("expected a single JWKS fetch inside the refresh interval, got %d", got)
	}
}
