package webhook

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"payments-service/internal/domain"
	"payments-service/internal/repository/memory"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func newTestWorker(store *memory.WebhookStore, clock *fakeClock) *Worker {
	w := NewWorker(store, zap.NewNop())
	w.now = clock.Now
	return w
}

func enqueueJob(t *testing.T, store *memory.WebhookStore, clock *fakeClock, url string) *domain.WebhookJob {
	t.Helper()
	job := &domain.WebhookJob{
		ID:        domain.NewID(domain.PrefixWebhookJob),
		Event:     "wallet.funded",
		URL:       url,
		Secret:    "whsec_testsecret",
		Payload:   []byte(`{"wallet_id":"WLT-1"}`),
		Status:    domain.WebhookJobPending,
		NextRunAt: clock.Now(),
		CreatedAt: clock.Now(),
	}
	require.NoError(t, store.EnqueueJob(context.Background(), job))
	return job
}

func TestWorkerDeliversAndSigns(t *testing.T) {
	var (
		gotSig   string
		gotEvent string
		gotBody  []byte
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotSig = r.Header.Get("X-Webhook-Signature")
		gotEvent = r.Header.Get("X-Webhook-Event")
		gotBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	clock := newFakeClock()
	store := memory.NewWebhookStore()
	store.SetNow(clock.Now)
	job := enqueueJob(t, store, clock, srv.URL)
	worker := newTestWorker(store, clock)

	processed, err := worker.ProcessOne(context.Background())
	require.NoError(t, err)
	assert.True(t, processed)

	assert.Equal(t, "wallet.funded", gotEvent)
	assert.Equal(t, []byte(`{"wallet_id":"WLT-1"}`), gotBody)
	assert.True(t, VerifySignature("whsec_testsecret", gotBody, gotSig))

	got, ok := store.Job(job.ID)
	require.True(t, ok)
	assert.Equal(t, domain.WebhookJobDelivered, got.Status)
	assert.Equal(t, 1, got.Attempts)
	assert.NotNil(t, got.DeliveredAt)
}

func TestWorkerRetriesWithBackoffThenDelivers(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	clock := newFakeClock()
	store := memory.NewWebhookStore()
	store.SetNow(clock.Now)
	job := enqueueJob(t, store, clock, srv.URL)
	worker := newTestWorker(store, clock)

	// First attempt fails and reschedules 5s out.
	processed, err := worker.ProcessOne(context.Background())
	require.NoError(t, err)
	assert.True(t, processed)
	got, _ := store.Job(job.ID)
	assert.Equal(t, domain.WebhookJobPending, got.Status)
	assert.Equal(t, 1, got.Attempts)
	assert.Equal(t, clock.Now().Add(5*time.Second), got.NextRunAt)
	assert.Contains(t, got.LastError, "500")

	// Not due yet.
	processed, err = worker.ProcessOne(context.Background())
	require.NoError(t, err)
	assert.False(t, processed)

	// Second attempt fails and reschedules 15s out.
	clock.Advance(5 * time.Second)
	processed, err = worker.ProcessOne(context.Background())
	require.NoError(t, err)
	assert.True(t, processed)
	got, _ = store.Job(job.ID)
	assert.Equal(t, 2, got.Attempts)
	assert.Equal(t, clock.Now().Add(15*time.Second), got.NextRunAt)

	// Third attempt succeeds.
	clock.Advance(15 * time.Second)
	processed, err = worker.ProcessOne(context.Background())
	require.NoError(t, err)
	assert.True(t, processed)
	got, _ = store.Job(job.ID)
	assert.Equal(t, domain.WebhookJobDelivered, got.Status)
	assert.Equal(t, 3, got.Attempts)
	assert.Equal(t, 3, calls)
}

func TestWorkerFailsPermanentlyAfterMaxAttempts(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	clock := newFakeClock()
	store := memory.NewWebhookStore()
	store.SetNow(clock.Now)
	job := enqueueJob(t, store, clock, srv.URL)
	worker := newTestWorker(store, clock)

	for i := 0; i < domain.MaxWebhookAttempts; i++ {
		processed, err := worker.ProcessOne(context.Background())
		require.NoError(t, err)
		assert.True(t, processed)
		clock.Advance(time.Minute)
	}

	got, _ := store.Job(job.ID)
	assert.Equal(t, domain.WebhookJobFailed, got.Status)
	assert.Equal(t, 3, got.Attempts)
	assert.Contains(t, got.LastError, "502")

	// A failed job is never claimed again.
	processed, err := worker.ProcessOne(context.Background())
	require.NoError(t, err)
	assert.False(t, processed)
	assert.Equal(t, 3, calls)
}

func TestWorkerNoDueJobs(t *testing.T) {
	clock := newFakeClock()
	store := memory.NewWebhookStore()
	store.SetNow(clock.Now)
	worker := newTestWorker(store, clock)

	processed, err := worker.ProcessOne(context.Background())
	require.NoError(t, err)
	assert.False(t, processed)
}
