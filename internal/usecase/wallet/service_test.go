package wallet_test

import (
	"context"
	"errors"
	"testing"

	"payments-service/internal/domain"
	"payments-service/internal/events"
	"payments-service/internal/provider"
	"payments-service/internal/repository/memory"
	"payments-service/internal/usecase/wallet"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type stubProvider struct {
	name        domain.PaymentProvider
	collectResp *provider.InitiateResponse
	collectErr  error
	initResp    *provider.InitiateResponse
	initErr     error
}

func (s *stubProvider) Name() domain.PaymentProvider { return s.name }

func (s *stubProvider) Initiate(context.Context, provider.InitiateRequest) (*provider.InitiateResponse, error) {
	return s.initResp, s.initErr
}

func (s *stubProvider) Collect(context.Context, provider.InitiateRequest) (*provider.InitiateResponse, error) {
	return s.collectResp, s.collectErr
}

func (s *stubProvider) Query(context.Context, string) (*provider.StatusResponse, error) {
	return nil, domain.ErrProviderTimeout
}

func seedWallet(t *testing.T, store *memory.LedgerStore, ownerID, currency string, available float64) *domain.Wallet {
	t.Helper()
	w := domain.NewWallet(domain.OwnerTypeUser, ownerID, currency)
	require.NoError(t, w.AddFunds(available))
	require.NoError(t, store.CreateWallet(context.Background(), w))
	return w
}

func newService(store *memory.LedgerStore, p *stubProvider) *wallet.Service {
	return wallet.New(store, provider.NewRegistry(p), events.Nop{}, nil, zap.NewNop())
}

func TestTransferMovesNetAndPreservesValue(t *testing.T) {
	store := memory.NewLedgerStore()
	a := seedWallet(t, store, "alice", "KES", 10_000)
	b := seedWallet(t, store, "bob", "KES", 500)
	svc := newService(store, &stubProvider{name: domain.ProviderMpesa})

	txn, err := svc.Transfer(context.Background(), wallet.TransferParams{
		SourceWalletID:      a.ID,
		DestinationWalletID: b.ID,
		Amount:              1_000,
	})
	require.NoError(t, err)
	assert.Equal(t, domain.TxStatusCompleted, txn.Status)
	assert.Equal(t, 5.0, txn.Fees.TotalFee)
	assert.Equal(t, 995.0, txn.NetAmount)

	gotA, err := store.GetWallet(context.Background(), a.ID)
	require.NoError(t, err)
	gotB, err := store.GetWallet(context.Background(), b.ID)
	require.NoError(t, err)
	assert.Equal(t, 9_000.0, gotA.Available)
	assert.Equal(t, 1_495.0, gotB.Available)

	// Value held plus fee collected equals the starting total.
	assert.Equal(t, 10_500.0, store.TotalValue()+txn.Fees.TotalFee)
}

func TestTransferRequiresAmountPlusFee(t *testing.T) {
	store := memory.NewLedgerStore()
	a := seedWallet(t, store, "alice", "KES", 1_000)
	b := seedWallet(t, store, "bob", "KES", 0)
	svc := newService(store, &stubProvider{name: domain.ProviderMpesa})

	_, err := svc.Transfer(context.Background(), wallet.TransferParams{
		SourceWalletID:      a.ID,
		DestinationWalletID: b.ID,
		Amount:              1_000,
	})
	assert.ErrorIs(t, err, domain.ErrInsufficientFunds)

	gotA, _ := store.GetWallet(context.Background(), a.ID)
	gotB, _ := store.GetWallet(context.Background(), b.ID)
	assert.Equal(t, 1_000.0, gotA.Available)
	assert.Equal(t, 0.0, gotB.Available)
}

func TestTransferSucceedsWithExactAmountPlusFee(t *testing.T) {
	store := memory.NewLedgerStore()
	a := seedWallet(t, store, "alice", "KES", 1_005)
	b := seedWallet(t, store, "bob", "KES", 0)
	svc := newService(store, &stubProvider{name: domain.ProviderMpesa})

	txn, err := svc.Transfer(context.Background(), wallet.TransferParams{
		SourceWalletID:      a.ID,
		DestinationWalletID: b.ID,
		Amount:              1_000,
	})
	require.NoError(t, err)
	assert.Equal(t, domain.TxStatusCompleted, txn.Status)

	// Only the amount left the source; the fee shows up on the net side.
	gotA, _ := store.GetWallet(context.Background(), a.ID)
	gotB, _ := store.GetWallet(context.Background(), b.ID)
	assert.Equal(t, 5.0, gotA.Available)
	assert.Equal(t, 995.0, gotB.Available)
}

func TestTransferCurrencyMismatch(t *testing.T) {
	store := memory.NewLedgerStore()
	a := seedWallet(t, store, "alice", "KES", 1_000)
	b := seedWallet(t, store, "bob", "USD", 0)
	svc := newService(store, &stubProvider{name: domain.ProviderMpesa})

	_, err := svc.Transfer(context.Background(), wallet.TransferParams{
		SourceWalletID:      a.ID,
		DestinationWalletID: b.ID,
		Amount:              100,
	})
	assert.ErrorIs(t, err, domain.ErrCurrencyMismatch)
}

func TestTransferRollsBackWhenCreditFails(t *testing.T) {
	store := memory.NewLedgerStore()
	a := seedWallet(t, store, "alice", "KES", 10_000)
	b := seedWallet(t, store, "bob", "KES", 0)
	svc := newService(store, &stubProvider{name: domain.ProviderMpesa})

	store.FailSaveWallet = func(w *domain.Wallet) error {
		if w.ID == b.ID {
			return errors.New("disk full")
		}
		return nil
	}

	_, err := svc.Transfer(context.Background(), wallet.TransferParams{
		SourceWalletID:      a.ID,
		DestinationWalletID: b.ID,
		Amount:              1_000,
	})
	require.Error(t, err)

	// The debit half must not survive the failed credit half.
	gotA, _ := store.GetWallet(context.Background(), a.ID)
	gotB, _ := store.GetWallet(context.Background(), b.ID)
	assert.Equal(t, 10_000.0, gotA.Available)
	assert.Equal(t, 0.0, gotB.Available)
	assert.Equal(t, 10_000.0, store.TotalValue())
}

func TestFundSynchronousSettlement(t *testing.T) {
	store := memory.NewLedgerStore()
	w := seedWallet(t, store, "alice", "KES", 0)
	svc := newService(store, &stubProvider{
		name:        domain.ProviderCard,
		collectResp: &provider.InitiateResponse{Status: domain.TxStatusCompleted, ProviderRef: "ch_123"},
	})

	txn, err := svc.Fund(context.Background(), wallet.FundParams{
		WalletID: w.ID,
		Amount:   1_000,
		Provider: domain.ProviderCard,
	})
	require.NoError(t, err)
	assert.Equal(t, domain.TxStatusCompleted, txn.Status)
	assert.Equal(t, 15.0, txn.Fees.TotalFee)
	assert.Equal(t, "ch_123", txn.ProviderRef)

	got, _ := store.GetWallet(context.Background(), w.ID)
	assert.Equal(t, 985.0, got.Available)
	assert.Equal(t, 0.0, got.Pending)
}

func TestFundAsynchronousLeavesPending(t *testing.T) {
	store := memory.NewLedgerStore()
	w := seedWallet(t, store, "alice", "KES", 0)
	svc := newService(store, &stubProvider{
		name:        domain.ProviderMpesa,
		collectResp: &provider.InitiateResponse{Status: domain.TxStatusProcessing, ProviderRef: "ws_CO_1"},
	})

	txn, err := svc.Fund(context.Background(), wallet.FundParams{
		WalletID:    w.ID,
		Amount:      1_000,
		Provider:    domain.ProviderMpesa,
		PhoneNumber: "254700000000",
	})
	require.NoError(t, err)
	assert.Equal(t, domain.TxStatusProcessing, txn.Status)

	got, _ := store.GetWallet(context.Background(), w.ID)
	assert.Equal(t, 0.0, got.Available)
	assert.Equal(t, 985.0, got.Pending)
}

func TestFundProviderFailureReversesPending(t *testing.T) {
	store := memory.NewLedgerStore()
	w := seedWallet(t, store, "alice", "KES", 0)
	svc := newService(store, &stubProvider{
		name:       domain.ProviderMpesa,
		collectErr: domain.ErrProviderTimeout,
	})

	txn, err := svc.Fund(context.Background(), wallet.FundParams{
		WalletID:    w.ID,
		Amount:      1_000,
		Provider:    domain.ProviderMpesa,
		PhoneNumber: "254700000000",
	})
	require.NoError(t, err)
	assert.Equal(t, domain.TxStatusFailed, txn.Status)

	got, _ := store.GetWallet(context.Background(), w.ID)
	assert.Equal(t, 0.0, got.Pending)
	assert.Equal(t, 0.0, got.Available)
}

func TestWithdrawDebitsAmountPlusFee(t *testing.T) {
	store := memory.NewLedgerStore()
	w := seedWallet(t, store, "alice", "KES", 1_000)
	svc := newService(store, &stubProvider{
		name:     domain.ProviderMpesa,
		initResp: &provider.InitiateResponse{Status: domain.TxStatusCompleted, ProviderRef: "AG_1"},
	})

	txn, err := svc.Withdraw(context.Background(), wallet.WithdrawParams{
		WalletID:    w.ID,
		Amount:      500,
		Provider:    domain.ProviderMpesa,
		PhoneNumber: "254700000000",
	})
	require.NoError(t, err)
	assert.Equal(t, domain.TxStatusCompleted, txn.Status)
	assert.Equal(t, 7.5, txn.Fees.TotalFee)

	got, _ := store.GetWallet(context.Background(), w.ID)
	assert.Equal(t, 492.5, got.Available)
}

func TestWithdrawProviderFailureCompensates(t *testing.T) {
	store := memory.NewLedgerStore()
	w := seedWallet(t, store, "alice", "KES", 1_000)
	svc := newService(store, &stubProvider{
		name:    domain.ProviderMpesa,
		initErr: domain.ErrProviderRejected,
	})

	txn, err := svc.Withdraw(context.Background(), wallet.WithdrawParams{
		WalletID:    w.ID,
		Amount:      500,
		Provider:    domain.ProviderMpesa,
		PhoneNumber: "254700000000",
	})
	require.NoError(t, err)
	assert.Equal(t, domain.TxStatusFailed, txn.Status)

	got, _ := store.GetWallet(context.Background(), w.ID)
	assert.Equal(t, 1_000.0, got.Available)
}

func TestFrozenWalletRejectsMovement(t *testing.T) {
	store := memory.NewLedgerStore()
	a := seedWallet(t, store, "alice", "KES", 1_000)
	b := seedWallet(t, store, "bob", "KES", 0)
	svc := newService(store, &stubProvider{name: domain.ProviderMpesa})

	_, err := svc.Freeze(context.Background(), a.ID)
	require.NoError(t, err)

	_, err = svc.Transfer(context.Background(), wallet.TransferParams{
		SourceWalletID:      a.ID,
		DestinationWalletID: b.ID,
		Amount:              100,
	})
	assert.ErrorIs(t, err, domain.ErrWalletNotActive)

	_, err = svc.Unfreeze(context.Background(), a.ID)
	require.NoError(t, err)
	_, err = svc.Transfer(context.Background(), wallet.TransferParams{
		SourceWalletID:      a.ID,
		DestinationWalletID: b.ID,
		Amount:              100,
	})
	assert.NoError(t, err)
}

func TestGetOrCreateReturnsExistingWallet(t *testing.T) {
	store := memory.NewLedgerStore()
	svc := newService(store, &stubProvider{name: domain.ProviderMpesa})

	first, err := svc.GetOrCreate(context.Background(), domain.OwnerTypeUser, "alice", "KES")
	require.NoError(t, err)
	second, err := svc.GetOrCreate(context.Background(), domain.OwnerTypeUser, "alice", "KES")
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	other, err := svc.GetOrCreate(context.Background(), domain.OwnerTypeUser, "alice", "USD")
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, other.ID)
}

func TestListTransactionsPaging(t *testing.T) {
	store := memory.NewLedgerStore()
	a := seedWallet(t, store, "alice", "KES", 100_000)
	b := seedWallet(t, store, "bob", "KES", 0)
	svc := newService(store, &stubProvider{name: domain.ProviderMpesa})

	for i := 0; i < 5; i++ {
		_, err := svc.Transfer(context.Background(), wallet.TransferParams{
			SourceWalletID:      a.ID,
			DestinationWalletID: b.ID,
			Amount:              100,
		})
		require.NoError(t, err)
	}

	page, err := svc.ListTransactions(context.Background(), a.ID, 3, 0)
	require.NoError(t, err)
	assert.Len(t, page, 3)

	rest, err := svc.ListTransactions(context.Background(), a.ID, 3, 3)
	require.NoError(t, err)
	assert.Len(t, rest, 2)

	_, err = svc.ListTransactions(context.Background(), "WLT-missing", 0, 0)
	assert.ErrorIs(t, err, domain.ErrWalletNotFound)
}
