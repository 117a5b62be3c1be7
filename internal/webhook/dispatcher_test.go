package webhook

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"payments-service/internal/domain"
	"payments-service/internal/repository/memory"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestDispatchFansOutToMatchingSubscriptions(t *testing.T) {
	ctx := context.Background()
	store := memory.NewWebhookStore()
	subs := NewSubscriptions(store)

	matching, secret, err := subs.Subscribe(ctx, "merchant-1", "https://merchant-1.example.com/hooks", []string{"wallet.funded"})
	require.NoError(t, err)
	assert.Regexp(t, "^whsec_[0-9a-f]{64}$", secret)

	_, _, err = subs.Subscribe(ctx, "merchant-2", "https://merchant-2.example.com/hooks", []string{"payout.completed"})
	require.NoError(t, err)

	cancelled, _, err := subs.Subscribe(ctx, "merchant-3", "https://merchant-3.example.com/hooks", nil)
	require.NoError(t, err)
	require.NoError(t, subs.Unsubscribe(ctx, cancelled.ID))

	d := NewDispatcher(store, zap.NewNop())
	require.NoError(t, d.Dispatch(ctx, "wallet.funded", map[string]any{"wallet_id": "WLT-1", "amount": 1_000}))

	// Only the active, matching subscription got a job.
	job, err := store.ClaimDueJob(ctx, time.Minute)
	require.NoError(t, err)
	require.NotNil(t, job)
	assert.Equal(t, matching.ID, job.SubscriptionID)
	assert.Equal(t, "wallet.funded", job.Event)
	assert.Equal(t, matching.URL, job.URL)
	assert.Equal(t, domain.WebhookJobPending, job.Status)

	var payload map[string]any
	require.NoError(t, json.Unmarshal(job.Payload, &payload))
	assert.Equal(t, "WLT-1", payload["wallet_id"])

	next, err := store.ClaimDueJob(ctx, time.Minute)
	require.NoError(t, err)
	assert.Nil(t, next)
}

func TestCatchAllSubscriptionReceivesEverything(t *testing.T) {
	ctx := context.Background()
	store := memory.NewWebhookStore()
	subs := NewSubscriptions(store)

	sub, _, err := subs.Subscribe(ctx, "ops", "https://ops.example.com/hooks", nil)
	require.NoError(t, err)

	d := NewDispatcher(store, zap.NewNop())
	require.NoError(t, d.Dispatch(ctx, "escrow.released", map[string]any{"escrow_id": "ESC-1"}))
	require.NoError(t, d.Dispatch(ctx, "payout.failed", map[string]any{"transaction_id": "TXN-1"}))

	for i := 0; i < 2; i++ {
		job, err := store.ClaimDueJob(ctx, time.Minute)
		require.NoError(t, err)
		require.NotNil(t, job)
		assert.Equal(t, sub.ID, job.SubscriptionID)
	}
}

func TestSubscribeSecretIsNotSerialized(t *testing.T) {
	ctx := context.Background()
	store := memory.NewWebhookStore()
	subs := NewSubscriptions(store)

	sub, _, err := subs.Subscribe(ctx, "merchant-1", "https://merchant-1.example.com/hooks", nil)
	require.NoError(t, err)

	data, err := json.Marshal(sub)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "whsec_")
}
