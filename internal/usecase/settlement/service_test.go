package settlement_test

import (
	"context"
	"testing"

	"payments-service/internal/domain"
	"payments-service/internal/events"
	"payments-service/internal/provider"
	"payments-service/internal/repository"
	"payments-service/internal/repository/memory"
	"payments-service/internal/usecase/settlement"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type stubProvider struct {
	name      domain.PaymentProvider
	queryResp *provider.StatusResponse
	queryErr  error
}

func (s *stubProvider) Name() domain.PaymentProvider { return s.name }

func (s *stubProvider) Initiate(context.Context, provider.InitiateRequest) (*provider.InitiateResponse, error) {
	return nil, domain.ErrProviderRejected
}

func (s *stubProvider) Collect(context.Context, provider.InitiateRequest) (*provider.InitiateResponse, error) {
	return nil, domain.ErrProviderRejected
}

func (s *stubProvider) Query(context.Context, string) (*provider.StatusResponse, error) {
	return s.queryResp, s.queryErr
}

func seedWallet(t *testing.T, store *memory.LedgerStore, ownerID string, available float64) *domain.Wallet {
	t.Helper()
	w := domain.NewWallet(domain.OwnerTypeUser, ownerID, "KES")
	if available > 0 {
		require.NoError(t, w.AddFunds(available))
	}
	require.NoError(t, store.CreateWallet(context.Background(), w))
	return w
}

// seedInFlightFunding stores a processing inbound transaction with its net
// amount sitting on the wallet's pending balance.
func seedInFlightFunding(t *testing.T, store *memory.LedgerStore, w *domain.Wallet, amount float64, providerRef string) *domain.Transaction {
	t.Helper()
	txn := domain.NewTransaction(domain.TxTypeWalletFunding, amount, "KES")
	require.NoError(t, txn.SetFees(amount*domain.FundingFeeRate, 0))
	txn.Source = domain.Party{Provider: domain.ProviderMpesa, PhoneNumber: "254700000000"}
	txn.Destination = domain.Party{WalletID: w.ID}
	txn.ProviderRef = providerRef
	require.NoError(t, txn.MarkProcessing())

	err := store.Atomic(context.Background(), func(tx repository.TxStore) error {
		wlt, err := tx.WalletForUpdate(context.Background(), w.ID)
		if err != nil {
			return err
		}
		if err := wlt.AddPending(txn.NetAmount); err != nil {
			return err
		}
		if err := tx.SaveWallet(context.Background(), wlt); err != nil {
			return err
		}
		return tx.SaveTransaction(context.Background(), txn)
	})
	require.NoError(t, err)
	return txn
}

// seedInFlightPayout stores a processing outbound transaction with
// amount+fee already debited from the source wallet.
func seedInFlightPayout(t *testing.T, store *memory.LedgerStore, w *domain.Wallet, amount, fee float64, providerRef string) *domain.Transaction {
	t.Helper()
	txn := domain.NewTransaction(domain.TxTypePayout, amount, "KES")
	require.NoError(t, txn.SetFees(fee, 0))
	txn.Source = domain.Party{WalletID: w.ID}
	txn.Destination = domain.Party{Provider: domain.ProviderMpesa, PhoneNumber: "254700000000"}
	txn.ProviderRef = providerRef
	require.NoError(t, txn.MarkProcessing())

	err := store.Atomic(context.Background(), func(tx repository.TxStore) error {
		wlt, err := tx.WalletForUpdate(context.Background(), w.ID)
		if err != nil {
			return err
		}
		if err := wlt.DeductFunds(amount + fee); err != nil {
			return err
		}
		if err := tx.SaveWallet(context.Background(), wlt); err != nil {
			return err
		}
		return tx.SaveTransaction(context.Background(), txn)
	})
	require.NoError(t, err)
	return txn
}

func newService(store *memory.LedgerStore, p *stubProvider) *settlement.Service {
	return settlement.New(store, provider.NewRegistry(p), events.Nop{}, zap.NewNop())
}

func TestCallbackSettlesInboundSuccess(t *testing.T) {
	store := memory.NewLedgerStore()
	w := seedWallet(t, store, "alice", 0)
	seedInFlightFunding(t, store, w, 1_000, "ws_CO_1")
	svc := newService(store, &stubProvider{name: domain.ProviderMpesa})

	txn, err := svc.HandleCallback(context.Background(), settlement.CallbackResult{
		ProviderRef: "ws_CO_1",
		Success:     true,
	})
	require.NoError(t, err)
	assert.Equal(t, domain.TxStatusCompleted, txn.Status)

	got, _ := store.GetWallet(context.Background(), w.ID)
	assert.Equal(t, 985.0, got.Available)
	assert.Equal(t, 0.0, got.Pending)
}

func TestCallbackReversesInboundFailure(t *testing.T) {
	store := memory.NewLedgerStore()
	w := seedWallet(t, store, "alice", 0)
	seedInFlightFunding(t, store, w, 1_000, "ws_CO_2")
	svc := newService(store, &stubProvider{name: domain.ProviderMpesa})

	txn, err := svc.HandleCallback(context.Background(), settlement.CallbackResult{
		ProviderRef: "ws_CO_2",
		Success:     false,
		Message:     "user cancelled",
	})
	require.NoError(t, err)
	assert.Equal(t, domain.TxStatusFailed, txn.Status)
	assert.Equal(t, "user cancelled", txn.FailureReason)

	got, _ := store.GetWallet(context.Background(), w.ID)
	assert.Equal(t, 0.0, got.Pending)
	assert.Equal(t, 0.0, got.Available)
}

func TestCallbackCompensatesOutboundFailure(t *testing.T) {
	store := memory.NewLedgerStore()
	w := seedWallet(t, store, "alice", 10_000)
	seedInFlightPayout(t, store, w, 5_000, 75, "AG_9")
	svc := newService(store, &stubProvider{name: domain.ProviderMpesa})

	before, _ := store.GetWallet(context.Background(), w.ID)
	assert.Equal(t, 4_925.0, before.Available)

	txn, err := svc.HandleCallback(context.Background(), settlement.CallbackResult{
		ProviderRef: "AG_9",
		Success:     false,
		Message:     "recipient unreachable",
	})
	require.NoError(t, err)
	assert.Equal(t, domain.TxStatusFailed, txn.Status)

	got, _ := store.GetWallet(context.Background(), w.ID)
	assert.Equal(t, 10_000.0, got.Available)
}

func TestCallbackCompletesOutboundSuccess(t *testing.T) {
	store := memory.NewLedgerStore()
	w := seedWallet(t, store, "alice", 10_000)
	seedInFlightPayout(t, store, w, 5_000, 75, "AG_10")
	svc := newService(store, &stubProvider{name: domain.ProviderMpesa})

	txn, err := svc.HandleCallback(context.Background(), settlement.CallbackResult{
		ProviderRef: "AG_10",
		Success:     true,
	})
	require.NoError(t, err)
	assert.Equal(t, domain.TxStatusCompleted, txn.Status)

	got, _ := store.GetWallet(context.Background(), w.ID)
	assert.Equal(t, 4_925.0, got.Available)
}

func TestDuplicateCallbackIsNoOp(t *testing.T) {
	store := memory.NewLedgerStore()
	w := seedWallet(t, store, "alice", 0)
	seedInFlightFunding(t, store, w, 1_000, "ws_CO_3")
	svc := newService(store, &stubProvider{name: domain.ProviderMpesa})

	result := settlement.CallbackResult{ProviderRef: "ws_CO_3", Success: true}
	_, err := svc.HandleCallback(context.Background(), result)
	require.NoError(t, err)
	_, err = svc.HandleCallback(context.Background(), result)
	require.NoError(t, err)

	// The credit must not apply twice.
	got, _ := store.GetWallet(context.Background(), w.ID)
	assert.Equal(t, 985.0, got.Available)
}

func TestCallbackUnknownReference(t *testing.T) {
	store := memory.NewLedgerStore()
	svc := newService(store, &stubProvider{name: domain.ProviderMpesa})

	_, err := svc.HandleCallback(context.Background(), settlement.CallbackResult{
		ProviderRef: "missing",
		Success:     true,
	})
	assert.ErrorIs(t, err, domain.ErrTransactionNotFound)
}

func TestReconcileAppliesQueriedStatus(t *testing.T) {
	store := memory.NewLedgerStore()
	w := seedWallet(t, store, "alice", 0)
	txn := seedInFlightFunding(t, store, w, 1_000, "ws_CO_4")
	svc := newService(store, &stubProvider{
		name:      domain.ProviderMpesa,
		queryResp: &provider.StatusResponse{ProviderRef: "ws_CO_4", Status: domain.TxStatusCompleted},
	})

	got, err := svc.Reconcile(context.Background(), txn.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TxStatusCompleted, got.Status)

	wlt, _ := store.GetWallet(context.Background(), w.ID)
	assert.Equal(t, 985.0, wlt.Available)
}

func TestReconcileLeavesProcessingUntouched(t *testing.T) {
	store := memory.NewLedgerStore()
	w := seedWallet(t, store, "alice", 0)
	txn := seedInFlightFunding(t, store, w, 1_000, "ws_CO_5")
	svc := newService(store, &stubProvider{
		name:      domain.ProviderMpesa,
		queryResp: &provider.StatusResponse{ProviderRef: "ws_CO_5", Status: domain.TxStatusProcessing},
	})

	got, err := svc.Reconcile(context.Background(), txn.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TxStatusProcessing, got.Status)

	wlt, _ := store.GetWallet(context.Background(), w.ID)
	assert.Equal(t, 985.0, wlt.Pending)
}
