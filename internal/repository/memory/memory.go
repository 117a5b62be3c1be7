// Package memory provides map-backed implementations of the repository
// interfaces. They mirror the transactional semantics of the Postgres store
// (mutations inside Atomic commit together or roll back together) so the
// ledger core can be exercised without a database.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"payments-service/internal/domain"
	"payments-service/internal/repository"
)

type LedgerStore struct {
	mu           sync.Mutex
	wallets      map[string]*domain.Wallet
	transactions map[string]*domain.Transaction
	escrows      map[string]*domain.Escrow

	// FailSaveWallet, when set, is consulted before persisting a wallet
	// inside Atomic. Used to inject the credit-half failure of a two-wallet
	// mutation and assert the debit half rolls back.
	FailSaveWallet func(w *domain.Wallet) error
}

func NewLedgerStore() *LedgerStore {
	return &LedgerStore{
		wallets:      make(map[string]*domain.Wallet),
		transactions: make(map[string]*domain.Transaction),
		escrows:      make(map[string]*domain.Escrow),
	}
}

var _ repository.LedgerStore = (*LedgerStore)(nil)

func cloneWallet(w *domain.Wallet) *domain.Wallet {
	cp := *w
	return &cp
}

func cloneTransaction(t *domain.Transaction) *domain.Transaction {
	cp := *t
	if t.NextRetryAt != nil {
		v := *t.NextRetryAt
		cp.NextRetryAt = &v
	}
	if t.CompletedAt != nil {
		v := *t.CompletedAt
		cp.CompletedAt = &v
	}
	if t.FailedAt != nil {
		v := *t.FailedAt
		cp.FailedAt = &v
	}
	cp.Metadata = append([]byte(nil), t.Metadata...)
	return &cp
}

func cloneEscrow(e *domain.Escrow) *domain.Escrow {
	cp := *e
	cp.Conditions = make([]domain.Condition, len(e.Conditions))
	for i, c := range e.Conditions {
		cc := c
		cc.Evidence = append([]string(nil), c.Evidence...)
		if c.FulfilledAt != nil {
			v := *c.FulfilledAt
			cc.FulfilledAt = &v
		}
		cp.Conditions[i] = cc
	}
	cp.Disputes = make([]domain.Dispute, len(e.Disputes))
	for i, d := range e.Disputes {
		dc := d
		dc.Evidence = append([]string(nil), d.Evidence...)
		cp.Disputes[i] = dc
	}
	return &cp
}

func (s *LedgerStore) CreateWallet(_ context.Context, w *domain.Wallet) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.wallets[w.ID] = cloneWallet(w)
	return nil
}

func (s *LedgerStore) GetWallet(_ context.Context, walletID string) (*domain.Wallet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	w, ok := s.wallets[walletID]
	if !ok {
		return nil, domain.ErrWalletNotFound
	}
	return cloneWallet(w), nil
}

func (s *LedgerStore) GetWalletByOwner(_ context.Context, ownerType domain.OwnerType, ownerID, currency string) (*domain.Wallet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, w := range s.wallets {
		if w.OwnerType == ownerType && w.OwnerID == ownerID && w.Currency == currency {
			return cloneWallet(w), nil
		}
	}
	return nil, domain.ErrWalletNotFound
}

func (s *LedgerStore) ListWalletsByOwner(_ context.Context, ownerType domain.OwnerType, ownerID string) ([]*domain.Wallet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*domain.Wallet
	for _, w := range s.wallets {
		if w.OwnerType == ownerType && w.OwnerID == ownerID {
			out = append(out, cloneWallet(w))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Currency < out[j].Currency })
	return out, nil
}

func (s *LedgerStore) GetTransaction(_ context.Context, txID string) (*domain.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.transactions[txID]
	if !ok {
		return nil, domain.ErrTransactionNotFound
	}
	return cloneTransaction(t), nil
}

func (s *LedgerStore) GetTransactionByProviderRef(_ context.Context, providerRef string) (*domain.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range s.transactions {
		if t.ProviderRef == providerRef {
			return cloneTransaction(t), nil
		}
	}
	return nil, domain.ErrTransactionNotFound
}

func (s *LedgerStore) ListWalletTransactions(_ context.Context, walletID string, limit, offset int) ([]*domain.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*domain.Transaction
	for _, t := range s.transactions {
		if t.Source.WalletID == walletID || t.Destination.WalletID == walletID {
			out = append(out, cloneTransaction(t))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].InitiatedAt.After(out[j].InitiatedAt) })
	if offset >= len(out) {
		return nil, nil
	}
	out = out[offset:]
	if limit > 0 && limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}

func (s *LedgerStore) GetEscrow(_ context.Context, escrowID string) (*domain.Escrow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.escrows[escrowID]
	if !ok {
		return nil, domain.ErrEscrowNotFound
	}
	return cloneEscrow(e), nil
}

func (s *LedgerStore) ListEscrowsByParty(_ context.Context, userID string) ([]*domain.Escrow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*domain.Escrow
	for _, e := range s.escrows {
		if e.IsParty(userID) {
			out = append(out, cloneEscrow(e))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

// Atomic serializes all transactional work behind the store mutex and applies
// the callback's mutations to staged copies, committing only on success.
func (s *LedgerStore) Atomic(_ context.Context, fn func(tx repository.TxStore) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stage := &memTxStore{
		store:        s,
		wallets:      make(map[string]*domain.Wallet),
		transactions: make(map[string]*domain.Transaction),
		escrows:      make(map[string]*domain.Escrow),
	}
	if err := fn(stage); err != nil {
		return err
	}
	for id, w := range stage.wallets {
		s.wallets[id] = w
	}
	for id, t := range stage.transactions {
		s.transactions[id] = t
	}
	for id, e := range stage.escrows {
		s.escrows[id] = e
	}
	return nil
}

type memTxStore struct {
	store        *LedgerStore
	wallets      map[string]*domain.Wallet
	transactions map[string]*domain.Transaction
	escrows      map[string]*domain.Escrow
}

var _ repository.TxStore = (*memTxStore)(nil)

func (tx *memTxStore) WalletForUpdate(_ context.Context, walletID string) (*domain.Wallet, error) {
	if w, ok := tx.wallets[walletID]; ok {
		return cloneWallet(w), nil
	}
	w, ok := tx.store.wallets[walletID]
	if !ok {
		return nil, domain.ErrWalletNotFound
	}
	return cloneWallet(w), nil
}

func (tx *memTxStore) SaveWallet(_ context.Context, w *domain.Wallet) error {
	if tx.store.FailSaveWallet != nil {
		if err := tx.store.FailSaveWallet(w); err != nil {
			return err
		}
	}
	if _, ok := tx.store.wallets[w.ID]; !ok {
		return domain.ErrWalletNotFound
	}
	tx.wallets[w.ID] = cloneWallet(w)
	return nil
}

func (tx *memTxStore) SaveTransaction(_ context.Context, t *domain.Transaction) error {
	tx.transactions[t.ID] = cloneTransaction(t)
	return nil
}

func (tx *memTxStore) EscrowForUpdate(_ context.Context, escrowID string) (*domain.Escrow, error) {
	if e, ok := tx.escrows[escrowID]; ok {
		return cloneEscrow(e), nil
	}
	e, ok := tx.store.escrows[escrowID]
	if !ok {
		return nil, domain.ErrEscrowNotFound
	}
	return cloneEscrow(e), nil
}

func (tx *memTxStore) SaveEscrow(_ context.Context, e *domain.Escrow) error {
	tx.escrows[e.ID] = cloneEscrow(e)
	return nil
}

// TotalValue sums available+locked+pending over every wallet. Test helper for
// conservation checks.
func (s *LedgerStore) TotalValue() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	var total float64
	for _, w := range s.wallets {
		total += w.TotalBalance()
	}
	return total
}

type WebhookStore struct {
	mu            sync.Mutex
	subscriptions map[string]*domain.WebhookSubscription
	jobs          map[string]*domain.WebhookJob
	order         []string
	now           func() time.Time
}

func NewWebhookStore() *WebhookStore {
	return &WebhookStore{
		subscriptions: make(map[string]*domain.WebhookSubscription),
		jobs:          make(map[string]*domain.WebhookJob),
		now:           time.Now,
	}
}

var _ repository.WebhookRepository = (*WebhookStore)(nil)

func (s *WebhookStore) CreateSubscription(_ context.Context, sub *domain.WebhookSubscription) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *sub
	s.subscriptions[sub.ID] = &cp
	return nil
}

func (s *WebhookStore) GetSubscription(_ context.Context, id string) (*domain.WebhookSubscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sub, ok := s.subscriptions[id]
	if !ok {
		return nil, domain.ErrSubscriptionNotFound
	}
	cp := *sub
	return &cp, nil
}

func (s *WebhookStore) ListSubscriptionsForEvent(_ context.Context, event string) ([]*domain.WebhookSubscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*domain.WebhookSubscription
	for _, sub := range s.subscriptions {
		if sub.Matches(event) {
			cp := *sub
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (s *WebhookStore) DeactivateSubscription(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sub, ok := s.subscriptions[id]
	if !ok {
		return domain.ErrSubscriptionNotFound
	}
	sub.Active = false
	return nil
}

func (s *WebhookStore) EnqueueJob(_ context.Context, job *domain.WebhookJob) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *job
	s.jobs[job.ID] = &cp
	s.order = append(s.order, job.ID)
	return nil
}

func (s *WebhookStore) ClaimDueJob(_ context.Context, lease time.Duration) (*domain.WebhookJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	for _, id := range s.order {
		job := s.jobs[id]
		if job.Status == domain.WebhookJobPending && !job.NextRunAt.After(now) {
			job.NextRunAt = now.Add(lease)
			cp := *job
			return &cp, nil
		}
	}
	return nil, nil
}

func (s *WebhookStore) MarkDelivered(_ context.Context, jobID string, attempts int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[jobID]
	if !ok {
		return domain.ErrSubscriptionNotFound
	}
	now := s.now()
	job.Status = domain.WebhookJobDelivered
	job.Attempts = attempts
	job.DeliveredAt = &now
	return nil
}

func (s *WebhookStore) Reschedule(_ context.Context, jobID string, attempts int, lastError string, nextRunAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[jobID]
	if !ok {
		return domain.ErrSubscriptionNotFound
	}
	job.Attempts = attempts
	job.LastError = lastError
	job.NextRunAt = nextRunAt
	return nil
}

func (s *WebhookStore) MarkFailed(_ context.Context, jobID string, attempts int, lastError string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[jobID]
	if !ok {
		return domain.ErrSubscriptionNotFound
	}
	job.Status = domain.WebhookJobFailed
	job.Attempts = attempts
	job.LastError = lastError
	return nil
}

// SetNow overrides the store clock. Test helper.
func (s *WebhookStore) SetNow(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

// Job returns a copy of a stored job. Test helper.
func (s *WebhookStore) Job(id string) (*domain.WebhookJob, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok {
		return nil, false
	}
	cp := *job
	return &cp, true
}
