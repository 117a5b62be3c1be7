package escrow_test

import (
	"context"
	"testing"

	"payments-service/internal/domain"
	"payments-service/internal/events"
	"payments-service/internal/repository/memory"
	"payments-service/internal/usecase/escrow"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func seedWallet(t *testing.T, store *memory.LedgerStore, ownerID string, available float64) *domain.Wallet {
	t.Helper()
	w := domain.NewWallet(domain.OwnerTypeUser, ownerID, "KES")
	if available > 0 {
		require.NoError(t, w.AddFunds(available))
	}
	require.NoError(t, store.CreateWallet(context.Background(), w))
	return w
}

func newService(store *memory.LedgerStore, policy escrow.Policy) *escrow.Service {
	return escrow.New(store, events.Nop{}, policy, zap.NewNop())
}

func createEscrow(t *testing.T, svc *escrow.Service, payer, payee *domain.Wallet, amount float64, settings domain.ReleaseSettings, conditions ...escrow.ConditionInput) *domain.Escrow {
	t.Helper()
	esc, err := svc.Create(context.Background(), escrow.CreateParams{
		Payer:           domain.EscrowParty{UserID: payer.OwnerID, WalletID: payer.ID},
		Payee:           domain.EscrowParty{UserID: payee.OwnerID, WalletID: payee.ID},
		Amount:          amount,
		Conditions:      conditions,
		ReleaseSettings: settings,
	})
	require.NoError(t, err)
	return esc
}

func TestCreateLocksPayerFunds(t *testing.T) {
	store := memory.NewLedgerStore()
	payer := seedWallet(t, store, "alice", 15_000)
	payee := seedWallet(t, store, "bob", 0)
	svc := newService(store, escrow.Policy{})

	esc := createEscrow(t, svc, payer, payee, 10_000, domain.ReleaseSettings{RequireAllConditions: true})

	assert.Equal(t, domain.EscrowStatusActive, esc.Status)
	assert.Equal(t, 200.0, esc.Fees.TotalFee)
	assert.NotEmpty(t, esc.TransactionID)

	gotPayer, _ := store.GetWallet(context.Background(), payer.ID)
	assert.Equal(t, 5_000.0, gotPayer.Available)
	assert.Equal(t, 10_000.0, gotPayer.Locked)

	hold, err := store.GetTransaction(context.Background(), esc.TransactionID)
	require.NoError(t, err)
	assert.Equal(t, domain.TxTypeEscrowHold, hold.Type)
	assert.Equal(t, domain.TxStatusCompleted, hold.Status)
}

func TestCreateInsufficientFunds(t *testing.T) {
	store := memory.NewLedgerStore()
	payer := seedWallet(t, store, "alice", 5_000)
	payee := seedWallet(t, store, "bob", 0)
	svc := newService(store, escrow.Policy{})

	_, err := svc.Create(context.Background(), escrow.CreateParams{
		Payer:  domain.EscrowParty{UserID: "alice", WalletID: payer.ID},
		Payee:  domain.EscrowParty{UserID: "bob", WalletID: payee.ID},
		Amount: 10_000,
	})
	assert.ErrorIs(t, err, domain.ErrInsufficientFunds)

	gotPayer, _ := store.GetWallet(context.Background(), payer.ID)
	assert.Equal(t, 5_000.0, gotPayer.Available)
	assert.Equal(t, 0.0, gotPayer.Locked)
}

func TestReleasePaysNetToPayee(t *testing.T) {
	store := memory.NewLedgerStore()
	payer := seedWallet(t, store, "alice", 15_000)
	payee := seedWallet(t, store, "bob", 0)
	svc := newService(store, escrow.Policy{})

	esc := createEscrow(t, svc, payer, payee, 10_000, domain.ReleaseSettings{})

	released, err := svc.Release(context.Background(), esc.ID, "alice")
	require.NoError(t, err)
	assert.Equal(t, domain.EscrowStatusReleased, released.Status)
	assert.NotNil(t, released.ReleasedAt)

	gotPayer, _ := store.GetWallet(context.Background(), payer.ID)
	gotPayee, _ := store.GetWallet(context.Background(), payee.ID)
	assert.Equal(t, 5_000.0, gotPayer.Available)
	assert.Equal(t, 0.0, gotPayer.Locked)
	assert.Equal(t, 9_800.0, gotPayee.Available)

	// Held value plus the escrow fee still totals the original 15,000.
	assert.Equal(t, 15_000.0, store.TotalValue()+esc.Fees.TotalFee)
}

func TestRefundRestoresPayerInFull(t *testing.T) {
	store := memory.NewLedgerStore()
	payer := seedWallet(t, store, "alice", 15_000)
	payee := seedWallet(t, store, "bob", 0)
	svc := newService(store, escrow.Policy{})

	esc := createEscrow(t, svc, payer, payee, 10_000, domain.ReleaseSettings{})

	refunded, err := svc.Refund(context.Background(), esc.ID, "alice", "buyer changed mind")
	require.NoError(t, err)
	assert.Equal(t, domain.EscrowStatusRefunded, refunded.Status)

	gotPayer, _ := store.GetWallet(context.Background(), payer.ID)
	gotPayee, _ := store.GetWallet(context.Background(), payee.ID)
	assert.Equal(t, 15_000.0, gotPayer.Available)
	assert.Equal(t, 0.0, gotPayer.Locked)
	assert.Equal(t, 0.0, gotPayee.Available)
}

func TestRefundByNonPayerRejected(t *testing.T) {
	store := memory.NewLedgerStore()
	payer := seedWallet(t, store, "alice", 15_000)
	payee := seedWallet(t, store, "bob", 0)
	svc := newService(store, escrow.Policy{})

	esc := createEscrow(t, svc, payer, payee, 10_000, domain.ReleaseSettings{})
	_, err := svc.Refund(context.Background(), esc.ID, "bob", "")
	assert.ErrorIs(t, err, domain.ErrUnauthorizedParty)
	_, err = svc.Refund(context.Background(), esc.ID, "stranger", "")
	assert.ErrorIs(t, err, domain.ErrUnauthorizedParty)

	gotPayer, _ := store.GetWallet(context.Background(), payer.ID)
	assert.Equal(t, 10_000.0, gotPayer.Locked)
}

func TestReleaseWithUnmetConditionsStaysActive(t *testing.T) {
	store := memory.NewLedgerStore()
	payer := seedWallet(t, store, "alice", 15_000)
	payee := seedWallet(t, store, "bob", 0)
	svc := newService(store, escrow.Policy{})

	esc := createEscrow(t, svc, payer, payee, 10_000,
		domain.ReleaseSettings{RequireAllConditions: true},
		escrow.ConditionInput{Type: "delivery"})

	got, err := svc.Release(context.Background(), esc.ID, "alice")
	require.NoError(t, err)
	assert.Equal(t, domain.EscrowStatusActive, got.Status)

	gotPayer, _ := store.GetWallet(context.Background(), payer.ID)
	assert.Equal(t, 10_000.0, gotPayer.Locked)
	gotPayee, _ := store.GetWallet(context.Background(), payee.ID)
	assert.Equal(t, 0.0, gotPayee.Available)
}

func TestFulfillConditionIsPayeeOnly(t *testing.T) {
	store := memory.NewLedgerStore()
	payer := seedWallet(t, store, "alice", 15_000)
	payee := seedWallet(t, store, "bob", 0)
	svc := newService(store, escrow.Policy{})

	esc := createEscrow(t, svc, payer, payee, 10_000,
		domain.ReleaseSettings{RequireAllConditions: true},
		escrow.ConditionInput{Type: "delivery", Description: "goods delivered"})
	condID := esc.Conditions[0].ID

	_, err := svc.FulfillCondition(context.Background(), esc.ID, condID, "alice", nil)
	assert.ErrorIs(t, err, domain.ErrUnauthorizedParty)

	got, err := svc.FulfillCondition(context.Background(), esc.ID, condID, "bob", []string{"pod.pdf"})
	require.NoError(t, err)
	assert.True(t, got.Conditions[0].Fulfilled)

	_, err = svc.FulfillCondition(context.Background(), esc.ID, condID, "bob", nil)
	assert.ErrorIs(t, err, domain.ErrConditionFulfilled)
}

func TestAutoReleaseCascade(t *testing.T) {
	store := memory.NewLedgerStore()
	payer := seedWallet(t, store, "alice", 15_000)
	payee := seedWallet(t, store, "bob", 0)
	svc := newService(store, escrow.Policy{})

	esc := createEscrow(t, svc, payer, payee, 10_000,
		domain.ReleaseSettings{AutoRelease: true, RequireAllConditions: true},
		escrow.ConditionInput{Type: "delivery"})

	got, err := svc.FulfillCondition(context.Background(), esc.ID, esc.Conditions[0].ID, "bob", nil)
	require.NoError(t, err)
	assert.Equal(t, domain.EscrowStatusReleased, got.Status)

	gotPayee, _ := store.GetWallet(context.Background(), payee.ID)
	assert.Equal(t, 9_800.0, gotPayee.Available)
}

func TestDisputeFreezePolicy(t *testing.T) {
	store := memory.NewLedgerStore()
	payer := seedWallet(t, store, "alice", 15_000)
	payee := seedWallet(t, store, "bob", 0)
	svc := newService(store, escrow.Policy{FreezeDisputedEscrows: true})

	esc := createEscrow(t, svc, payer, payee, 10_000, domain.ReleaseSettings{})
	disputed, err := svc.RaiseDispute(context.Background(), esc.ID, "bob", "wrong goods", "")
	require.NoError(t, err)
	assert.Equal(t, domain.EscrowStatusDisputed, disputed.Status)

	_, err = svc.Release(context.Background(), esc.ID, "alice")
	assert.ErrorIs(t, err, domain.ErrEscrowDisputed)
	_, err = svc.Refund(context.Background(), esc.ID, "alice", "")
	assert.ErrorIs(t, err, domain.ErrEscrowDisputed)
}

func TestDisputedEscrowStillMovesByDefault(t *testing.T) {
	store := memory.NewLedgerStore()
	payer := seedWallet(t, store, "alice", 15_000)
	payee := seedWallet(t, store, "bob", 0)
	svc := newService(store, escrow.Policy{})

	esc := createEscrow(t, svc, payer, payee, 10_000, domain.ReleaseSettings{})
	_, err := svc.RaiseDispute(context.Background(), esc.ID, "bob", "wrong goods", "")
	require.NoError(t, err)

	released, err := svc.Release(context.Background(), esc.ID, "alice")
	require.NoError(t, err)
	assert.Equal(t, domain.EscrowStatusReleased, released.Status)
}

func TestResolveDisputeWithRefundOutcome(t *testing.T) {
	store := memory.NewLedgerStore()
	payer := seedWallet(t, store, "alice", 15_000)
	payee := seedWallet(t, store, "bob", 0)
	svc := newService(store, escrow.Policy{FreezeDisputedEscrows: true})

	esc := createEscrow(t, svc, payer, payee, 10_000, domain.ReleaseSettings{})
	disputed, err := svc.RaiseDispute(context.Background(), esc.ID, "alice", "never delivered", "")
	require.NoError(t, err)
	disputeID := disputed.Disputes[0].ID

	resolved, err := svc.ResolveDispute(context.Background(), esc.ID, disputeID, escrow.OutcomeRefund)
	require.NoError(t, err)
	assert.Equal(t, domain.EscrowStatusRefunded, resolved.Status)

	gotPayer, _ := store.GetWallet(context.Background(), payer.ID)
	assert.Equal(t, 15_000.0, gotPayer.Available)
}

func TestReleaseIsTerminal(t *testing.T) {
	store := memory.NewLedgerStore()
	payer := seedWallet(t, store, "alice", 15_000)
	payee := seedWallet(t, store, "bob", 0)
	svc := newService(store, escrow.Policy{})

	esc := createEscrow(t, svc, payer, payee, 10_000, domain.ReleaseSettings{})
	_, err := svc.Release(context.Background(), esc.ID, "alice")
	require.NoError(t, err)

	_, err = svc.Release(context.Background(), esc.ID, "alice")
	assert.ErrorIs(t, err, domain.ErrEscrowNotActive)
	_, err = svc.Refund(context.Background(), esc.ID, "alice", "")
	assert.ErrorIs(t, err, domain.ErrEscrowNotActive)
}

func TestReleaseByNonPayerRejected(t *testing.T) {
	store := memory.NewLedgerStore()
	payer := seedWallet(t, store, "alice", 15_000)
	payee := seedWallet(t, store, "bob", 0)
	svc := newService(store, escrow.Policy{})

	esc := createEscrow(t, svc, payer, payee, 10_000, domain.ReleaseSettings{})
	_, err := svc.Release(context.Background(), esc.ID, "bob")
	assert.ErrorIs(t, err, domain.ErrUnauthorizedParty)
	_, err = svc.Release(context.Background(), esc.ID, "stranger")
	assert.ErrorIs(t, err, domain.ErrUnauthorizedParty)
}
