package app

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/transfa/ledger-service/internal/domain"
	"github.com/transfa/ledger-service/internal/identifier"
	"github.com/transfa/ledger-service/internal/store"
	"golang.org/x/crypto/bcrypt"
)

var fakeEpoch = time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

// ledgerFake is an in-memory store. ExecLedgerTx serializes units with one
// mutex, which stands in for row locks, and stages writes until fn returns
// nil so a failed unit leaves no trace.
type ledgerFake struct {
	store.Repository

	unitMu sync.Mutex
	mu     sync.Mutex

	accounts      map[uuid.UUID]*domain.Account
	transactions  []domain.Transaction
	beneficiaries []*domain.Beneficiary
	ticks         int
	now           func() time.Time

	// Test hooks.
	failInsert       error
	failCredit       error
	txIDCollisions   int
	accountCollision int
	lockedNumbers    []string
	insertAttempts   int
}

func newLedgerFake() *ledgerFake {
	return &ledgerFake{accounts: map[uuid.UUID]*domain.Account{}, now: time.Now}
}

func (f *ledgerFake) tick() time.Time {
	f.ticks++
	return fakeEpoch.Add(time.Duration(f.ticks) * time.Second)
}

// addAccount seeds an active account. pin may be empty for "no PIN set".
func (f *ledgerFake) addAccount(number, name, balance, pin string) *domain.Account {
	account := &domain.Account{
		ID:            uuid.New(),
		PublicID:      "USR-20260310-" + number[6:],
		AuthSubject:   "subject-" + number,
		AccountNumber: number,
		Name:          name,
		AccountType:   domain.AccountTypeSavings,
		Balance:       decimal.RequireFromString(balance),
		Status:        domain.AccountStatusActive,
		CreatedAt:     fakeEpoch,
		UpdatedAt:     fakeEpoch,
	}
	if pin != "" {
		hash, err := bcrypt.GenerateFromPassword([]byte(pin), bcrypt.MinCost)
		if err != nil {
			panic(err)
		}
		h := string(hash)
		account.TransactionPINHash = &h
	}
	f.mu.Lock()
	f.accounts[account.ID] = account
	f.mu.Unlock()
	return f.account(account.ID)
}

// account returns a snapshot of the committed account.
func (f *ledgerFake) account(id uuid.UUID) *domain.Account {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.accounts[id]
	if !ok {
		return nil
	}
	copied := *a
	return &copied
}

func (f *ledgerFake) records() []domain.Transaction {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.Transaction(nil), f.transactions...)
}

func (f *ledgerFake) findByNumberLocked(number string) *domain.Account {
	for _, a := range f.accounts {
		if a.AccountNumber == number {
			return a
		}
	}
	return nil
}

func (f *ledgerFake) FindAccountByID(ctx context.Context, accountID uuid.UUID) (*domain.Account, error) {
	if a := f.account(accountID); a != nil {
		return a, nil
	}
	return nil, store.ErrAccountNotFound
}

func (f *ledgerFake) FindAccountByAuthSubject(ctx context.Context, subject string) (*domain.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, a := range f.accounts {
		if a.AuthSubject == subject {
			copied := *a
			return &copied, nil
		}
	}
	return nil, store.ErrAccountNotFound
}

func (f *ledgerFake) FindAccountByNumber(ctx context.Context, accountNumber string) (*domain.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if a := f.findByNumberLocked(accountNumber); a != nil {
		copied := *a
		return &copied, nil
	}
	return nil, store.ErrAccountNotFound
}

func (f *ledgerFake) CreateAccount(ctx context.Context, account *domain.Account) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.accountCollision > 0 {
		f.accountCollision--
		return &identifier.CollisionError{Kind: identifier.KindAccountNumber, Value: account.AccountNumber}
	}
	for _, a := range f.accounts {
		switch {
		case a.AuthSubject == account.AuthSubject:
			return store.ErrAccountExists
		case a.AccountNumber == account.AccountNumber:
			return &identifier.CollisionError{Kind: identifier.KindAccountNumber, Value: account.AccountNumber}
		case a.PublicID == account.PublicID:
			return &identifier.CollisionError{Kind: identifier.KindUserID, Value: account.PublicID}
		}
	}
	now := f.tick()
	account.CreatedAt, account.UpdatedAt = now, now
	copied := *account
	f.accounts[account.ID] = &copied
	return nil
}

func (f *ledgerFake) UpdateAccountStatus(ctx context.Context, accountID uuid.UUID, status domain.AccountStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.accounts[accountID]
	if !ok {
		return store.ErrAccountNotFound
	}
	a.Status = status
	return nil
}

func (f *ledgerFake) IdentifierExists(ctx context.Context, kind identifier.Kind, value string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	switch kind {
	case identifier.KindTransactionID:
		for _, r := range f.transactions {
			if r.TransactionID == value {
				return true, nil
			}
		}
	default:
		for _, a := range f.accounts {
			if a.AccountNumber == value || a.PublicID == value {
				return true, nil
			}
		}
	}
	return false, nil
}

func (f *ledgerFake) SetTransactionPINHash(ctx context.Context, accountID uuid.UUID, hash string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.accounts[accountID]
	if !ok {
		return store.ErrAccountNotFound
	}
	a.TransactionPINHash = &hash
	a.PINFailedAttempts = 0
	a.PINLockedUntil = nil
	return nil
}

func (f *ledgerFake) RecordFailedTransactionPINAttempt(ctx context.Context, accountID uuid.UUID, maxAttempts int, lockoutDurationSeconds int) (*domain.PINSecurityState, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.accounts[accountID]
	if !ok || !a.HasTransactionPIN() {
		return nil, store.ErrTransactionPINNotSet
	}
	a.PINFailedAttempts++
	a.PINLockedUntil = nil
	if a.PINFailedAttempts >= maxAttempts {
		until := f.now().Add(time.Duration(lockoutDurationSeconds) * time.Second)
		a.PINLockedUntil = &until
	}
	return &domain.PINSecurityState{AccountID: a.ID, FailedAttempts: a.PINFailedAttempts, LockedUntil: a.PINLockedUntil}, nil
}

func (f *ledgerFake) ResetTransactionPINFailureState(ctx context.Context, accountID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if a, ok := f.accounts[accountID]; ok {
		a.PINFailedAttempts = 0
		a.PINLockedUntil = nil
	}
	return nil
}

func (f *ledgerFake) ExecLedgerTx(ctx context.Context, fn func(tx store.LedgerTx) error) error {
	f.unitMu.Lock()
	defer f.unitMu.Unlock()

	unit := &fakeLedgerTx{fake: f, deltas: map[uuid.UUID]decimal.Decimal{}}
	if err := fn(unit); err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	for id, delta := range unit.deltas {
		f.accounts[id].Balance = f.accounts[id].Balance.Add(delta)
	}
	f.transactions = append(f.transactions, unit.records...)
	return nil
}

type fakeLedgerTx struct {
	fake    *ledgerFake
	deltas  map[uuid.UUID]decimal.Decimal
	records []domain.Transaction
}

func (u *fakeLedgerTx) LockAccountByNumber(ctx context.Context, accountNumber string) (*domain.Account, error) {
	f := u.fake
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lockedNumbers = append(f.lockedNumbers, accountNumber)
	a := f.findByNumberLocked(accountNumber)
	if a == nil {
		return nil, store.ErrAccountNotFound
	}
	copied := *a
	copied.Balance = copied.Balance.Add(u.deltas[a.ID])
	return &copied, nil
}

func (u *fakeLedgerTx) AdjustBalance(ctx context.Context, accountID uuid.UUID, delta decimal.Decimal) (decimal.Decimal, error) {
	f := u.fake
	f.mu.Lock()
	defer f.mu.Unlock()
	if delta.IsPositive() && f.failCredit != nil {
		return decimal.Zero, f.failCredit
	}
	a, ok := f.accounts[accountID]
	if !ok {
		return decimal.Zero, store.ErrAccountNotFound
	}
	next := a.Balance.Add(u.deltas[accountID]).Add(delta)
	if next.IsNegative() {
		return decimal.Zero, store.ErrInsufficientFunds
	}
	if next.GreaterThan(domain.MaxAmount) {
		return decimal.Zero, store.ErrBalanceLimitExceeded
	}
	u.deltas[accountID] = u.deltas[accountID].Add(delta)
	return next, nil
}

func (u *fakeLedgerTx) InsertTransaction(ctx context.Context, record *domain.Transaction) error {
	f := u.fake
	f.mu.Lock()
	defer f.mu.Unlock()
	f.insertAttempts++
	if f.failInsert != nil {
		return f.failInsert
	}
	if f.txIDCollisions > 0 {
		f.txIDCollisions--
		return &identifier.CollisionError{Kind: identifier.KindTransactionID, Value: record.TransactionID}
	}
	if record.BeneficiaryID != nil && !f.beneficiaryExistsLocked(*record.BeneficiaryID) {
		return store.ErrBeneficiaryNotFound
	}
	for _, existing := range append(f.transactions, u.records...) {
		if existing.TransactionID == record.TransactionID {
			return &identifier.CollisionError{Kind: identifier.KindTransactionID, Value: record.TransactionID}
		}
	}
	u.records = append(u.records, *record)
	return nil
}

func (f *ledgerFake) FindTransactionByTransactionID(ctx context.Context, accountID uuid.UUID, transactionID string) (*domain.Transaction, error) {
	for _, r := range f.records() {
		if r.TransactionID == transactionID && r.AccountID == accountID {
			return &r, nil
		}
	}
	return nil, store.ErrTransactionNotFound
}

func (f *ledgerFake) ListTransactions(ctx context.Context, accountID uuid.UUID, filter domain.TransactionFilter) ([]domain.Transaction, int64, error) {
	filter = filter.Normalize()
	var matched []domain.Transaction
	all := f.records()
	for i := len(all) - 1; i >= 0; i-- {
		r := all[i]
		if r.AccountID != accountID {
			continue
		}
		if filter.Type != nil && r.Type != *filter.Type {
			continue
		}
		if filter.Status != nil && r.Status != *filter.Status {
			continue
		}
		if filter.From != nil && r.CreatedAt.Before(dayStart(*filter.From)) {
			continue
		}
		if filter.To != nil && !r.CreatedAt.Before(dayStart(*filter.To).AddDate(0, 0, 1)) {
			continue
		}
		matched = append(matched, r)
	}
	sort.SliceStable(matched, func(i, j int) bool { return matched[i].CreatedAt.After(matched[j].CreatedAt) })

	total := int64(len(matched))
	start := filter.Offset()
	if start > len(matched) {
		start = len(matched)
	}
	end := start + filter.PerPage
	if end > len(matched) {
		end = len(matched)
	}
	return append([]domain.Transaction{}, matched[start:end]...), total, nil
}

func (f *ledgerFake) SummarizeTransactions(ctx context.Context, accountID uuid.UUID, monthStart time.Time) (*domain.TransactionTotals, error) {
	var totals domain.TransactionTotals
	for _, r := range f.records() {
		if r.AccountID != accountID || r.Status != domain.TransactionStatusCompleted {
			continue
		}
		totals.TotalTransactions++
		monthly := !r.CreatedAt.Before(monthStart)
		switch r.Type {
		case domain.TransactionTypeDeposit:
			totals.TotalDeposits = totals.TotalDeposits.Add(r.Amount)
			if monthly {
				totals.MonthlyDeposits = totals.MonthlyDeposits.Add(r.Amount)
			}
		case domain.TransactionTypeTransfer:
			totals.TotalTransfers = totals.TotalTransfers.Add(r.Amount)
			if monthly {
				totals.MonthlyTransfers = totals.MonthlyTransfers.Add(r.Amount)
			}
		}
	}
	return &totals, nil
}

func (f *ledgerFake) CreateBeneficiary(ctx context.Context, b *domain.Beneficiary) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	now := f.tick()
	b.CreatedAt, b.UpdatedAt = now, now
	copied := *b
	f.beneficiaries = append(f.beneficiaries, &copied)
	return nil
}

func (f *ledgerFake) FindBeneficiariesByAccountID(ctx context.Context, accountID uuid.UUID) ([]domain.Beneficiary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []domain.Beneficiary{}
	for i := len(f.beneficiaries) - 1; i >= 0; i-- {
		if f.beneficiaries[i].AccountID == accountID {
			out = append(out, *f.beneficiaries[i])
		}
	}
	return out, nil
}

func (f *ledgerFake) findBeneficiaryLocked(beneficiaryID, accountID uuid.UUID) (int, *domain.Beneficiary) {
	for i, b := range f.beneficiaries {
		if b.ID == beneficiaryID && b.AccountID == accountID {
			return i, b
		}
	}
	return -1, nil
}

func (f *ledgerFake) beneficiaryExistsLocked(beneficiaryID uuid.UUID) bool {
	for _, b := range f.beneficiaries {
		if b.ID == beneficiaryID {
			return true
		}
	}
	return false
}

func (f *ledgerFake) FindBeneficiaryByID(ctx context.Context, beneficiaryID uuid.UUID, accountID uuid.UUID) (*domain.Beneficiary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, b := f.findBeneficiaryLocked(beneficiaryID, accountID); b != nil {
		copied := *b
		return &copied, nil
	}
	return nil, store.ErrBeneficiaryNotFound
}

func (f *ledgerFake) UpdateBeneficiary(ctx context.Context, b *domain.Beneficiary) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, existing := f.findBeneficiaryLocked(b.ID, b.AccountID)
	if existing == nil {
		return store.ErrBeneficiaryNotFound
	}
	existing.BeneficiaryName = b.BeneficiaryName
	existing.AccountNumber = b.AccountNumber
	existing.BankName = b.BankName
	existing.Amount = b.Amount
	existing.UpdatedAt = f.tick()
	b.CreatedAt, b.UpdatedAt = existing.CreatedAt, existing.UpdatedAt
	return nil
}

func (f *ledgerFake) DeleteBeneficiary(ctx context.Context, beneficiaryID uuid.UUID, accountID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	i, b := f.findBeneficiaryLocked(beneficiaryID, accountID)
	if b == nil {
		return store.ErrBeneficiaryNotFound
	}
	f.beneficiaries = append(f.beneficiaries[:i], f.beneficiaries[i+1:]...)
	return nil
}

func (f *ledgerFake) CountBeneficiariesByAccountID(ctx context.Context, accountID uuid.UUID) (int64, error) {
	list, _ := f.FindBeneficiariesByAccountID(ctx, accountID)
	return int64(len(list)), nil
}

func dayStart(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// stepClock returns a goroutine-safe clock that advances one second per read.
func stepClock(start time.Time) func() time.Time {
	var mu sync.Mutex
	current := start
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		current = current.Add(time.Second)
		return current
	}
}

func newTestService(f *ledgerFake) *Service {
	clock := stepClock(fakeEpoch.Add(time.Hour))
	ids := identifier.NewGenerator(identifier.WithChecker(f), identifier.WithClock(clock))
	svc := NewService(f, ids, nil, "ledger.events")
	svc.now = clock
	f.now = clock
	return svc
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []publishedEvent
	err    error
}

type publishedEvent struct {
	exchange   string
	routingKey string
	body       interface{}
}

func (p *recordingPublisher) Publish(ctx context.Context, exchange, routingKey string, body interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, publishedEvent{exchange: exchange, routingKey: routingKey, body: body})
	return p.err
}

func (p *recordingPublisher) Close() {}

func (p *recordingPublisher) keys() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	keys := make([]string, 0, len(p.events))
	for _, e := range p.events {
		keys = append(keys, e.routingKey)
	}
	return keys
}
