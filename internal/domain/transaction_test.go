package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransactionFeesDeriveNetAmount(t *testing.T) {
	txn := NewTransaction(TxTypeCollection, 10_000, "KES")
	assert.Equal(t, 10_000.0, txn.NetAmount)

	require.NoError(t, txn.SetFees(250, 50))
	assert.Equal(t, 300.0, txn.Fees.TotalFee)
	assert.Equal(t, 9_700.0, txn.NetAmount)
}

func TestTransactionTerminalStateFreezesMonetaryFields(t *testing.T) {
	txn := NewTransaction(TxTypePayout, 500, "KES")
	require.NoError(t, txn.MarkCompleted())

	assert.ErrorIs(t, txn.SetFees(10, 0), ErrTransactionFinal)
	assert.ErrorIs(t, txn.MarkFailed("late failure"), ErrTransactionFinal)
	assert.ErrorIs(t, txn.MarkProcessing(), ErrTransactionFinal)
	assert.Equal(t, TxStatusCompleted, txn.Status)
}

func TestTransactionLifecycle(t *testing.T) {
	txn := NewTransaction(TxTypeWalletFunding, 100, "KES")
	assert.Equal(t, TxStatusPending, txn.Status)
	assert.False(t, txn.IsFinal())

	require.NoError(t, txn.MarkProcessing())
	require.NoError(t, txn.MarkFailed("provider declined"))
	assert.True(t, txn.IsFinal())
	assert.NotNil(t, txn.FailedAt)
	assert.Equal(t, "provider declined", txn.FailureReason)
}

func TestTransactionRetryBounds(t *testing.T) {
	txn := NewTransaction(TxTypePayout, 100, "KES")

	// Only failed transactions retry.
	assert.ErrorIs(t, txn.Retry(time.Second), ErrTransactionFinal)

	for i := 0; i < MaxTransactionRetries; i++ {
		require.NoError(t, txn.MarkFailed("flaky provider"))
		require.NoError(t, txn.Retry(time.Second))
		assert.Equal(t, TxStatusPending, txn.Status)
		assert.NotNil(t, txn.NextRetryAt)
	}

	require.NoError(t, txn.MarkFailed("flaky provider"))
	assert.ErrorIs(t, txn.Retry(time.Second), ErrRetryLimitExceeded)
}

func TestTransactionReverseOnlyFromCompleted(t *testing.T) {
	txn := NewTransaction(TxTypeTransfer, 100, "KES")
	assert.ErrorIs(t, txn.Reverse(), ErrTransactionFinal)

	require.NoError(t, txn.MarkCompleted())
	require.NoError(t, txn.Reverse())
	assert.Equal(t, TxStatusReversed, txn.Status)
}
