package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWalletLockUnlock(t *testing.T) {
	w := NewWallet(OwnerTypeUser, "u1", "KES")
	require.NoError(t, w.AddFunds(1000))

	require.NoError(t, w.LockFunds(400))
	assert.Equal(t, 600.0, w.Available)
	assert.Equal(t, 400.0, w.Locked)
	assert.Equal(t, 1000.0, w.TotalBalance())

	require.NoError(t, w.UnlockFunds(400))
	assert.Equal(t, 1000.0, w.Available)
	assert.Equal(t, 0.0, w.Locked)
}

func TestWalletLockInsufficient(t *testing.T) {
	w := NewWallet(OwnerTypeUser, "u1", "KES")
	require.NoError(t, w.AddFunds(100))

	err := w.LockFunds(101)
	assert.ErrorIs(t, err, ErrInsufficientFunds)
	assert.Equal(t, 100.0, w.Available)
	assert.Equal(t, 0.0, w.Locked)
}

func TestWalletUnlockMoreThanLocked(t *testing.T) {
	w := NewWallet(OwnerTypeUser, "u1", "KES")
	require.NoError(t, w.AddFunds(100))
	require.NoError(t, w.LockFunds(50))

	assert.ErrorIs(t, w.UnlockFunds(51), ErrInsufficientLockedFunds)
}

func TestWalletDeductInsufficient(t *testing.T) {
	w := NewWallet(OwnerTypeUser, "u1", "KES")
	require.NoError(t, w.AddFunds(100))
	require.NoError(t, w.LockFunds(60))

	// Locked funds do not back a plain deduction.
	assert.ErrorIs(t, w.DeductFunds(41), ErrInsufficientFunds)
	require.NoError(t, w.DeductFunds(40))
	assert.Equal(t, 0.0, w.Available)
}

func TestWalletNegativeAmounts(t *testing.T) {
	w := NewWallet(OwnerTypeUser, "u1", "KES")

	assert.ErrorIs(t, w.AddFunds(-1), ErrInvalidAmount)
	assert.ErrorIs(t, w.DeductFunds(-1), ErrInvalidAmount)
	assert.ErrorIs(t, w.LockFunds(-1), ErrInvalidAmount)
	assert.ErrorIs(t, w.UnlockFunds(-1), ErrInvalidAmount)
	assert.ErrorIs(t, w.AddPending(-1), ErrInvalidAmount)
}

func TestWalletPendingFlow(t *testing.T) {
	w := NewWallet(OwnerTypeUser, "u1", "KES")

	require.NoError(t, w.AddPending(985))
	assert.Equal(t, 985.0, w.Pending)
	assert.Equal(t, 0.0, w.Available)

	require.NoError(t, w.SettlePending(985))
	assert.Equal(t, 0.0, w.Pending)
	assert.Equal(t, 985.0, w.Available)

	require.NoError(t, w.AddPending(500))
	require.NoError(t, w.ReversePending(500))
	assert.Equal(t, 0.0, w.Pending)
	assert.Equal(t, 985.0, w.Available)

	assert.ErrorIs(t, w.SettlePending(1), ErrInsufficientPendingFunds)
}

func TestWalletHasSufficientFunds(t *testing.T) {
	w := NewWallet(OwnerTypeUser, "u1", "KES")
	require.NoError(t, w.AddFunds(100))
	require.NoError(t, w.LockFunds(60))

	assert.True(t, w.HasSufficientFunds(40, false))
	assert.False(t, w.HasSufficientFunds(41, false))
	assert.True(t, w.HasSufficientFunds(100, true))
	assert.False(t, w.HasSufficientFunds(101, true))
}

func TestWalletFreezeBlocksMutations(t *testing.T) {
	w := NewWallet(OwnerTypeUser, "u1", "KES")
	require.NoError(t, w.AddFunds(100))
	require.NoError(t, w.Freeze())

	assert.ErrorIs(t, w.AddFunds(10), ErrWalletNotActive)
	assert.ErrorIs(t, w.DeductFunds(10), ErrWalletNotActive)
	assert.ErrorIs(t, w.LockFunds(10), ErrWalletNotActive)

	require.NoError(t, w.Unfreeze())
	assert.NoError(t, w.AddFunds(10))
}

func TestWalletCloseRequiresEmpty(t *testing.T) {
	w := NewWallet(OwnerTypeUser, "u1", "KES")
	require.NoError(t, w.AddFunds(5))

	assert.ErrorIs(t, w.Close(), ErrWalletNotEmpty)
	require.NoError(t, w.DeductFunds(5))
	require.NoError(t, w.Close())
	assert.Equal(t, WalletStatusClosed, w.Status)

	// A closed wallet never reopens.
	assert.ErrorIs(t, w.Freeze(), ErrWalletNotActive)
	assert.ErrorIs(t, w.Unfreeze(), ErrWalletNotActive)
}
