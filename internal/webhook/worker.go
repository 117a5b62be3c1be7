package webhook

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"time"

	"payments-service/internal/domain"
	"payments-service/internal/repository"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

var webhookDeliveries = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "webhook_delivery_attempts_total",
		Help: "Webhook delivery attempts by outcome",
	},
	[]string{"outcome"},
)

// Backoff between attempts. An attempt that fails with attempts remaining is
// rescheduled by the matching entry; after MaxWebhookAttempts the job is
// failed permanently.
var retryBackoff = []time.Duration{5 * time.Second, 15 * time.Second, 45 * time.Second}

const (
	deliveryTimeout = 30 * time.Second
	claimLease      = time.Minute
	pollInterval    = 2 * time.Second
)

type Worker struct {
	repo       repository.WebhookRepository
	httpClient *http.Client
	logger     *zap.Logger
	now        func() time.Time
}

func NewWorker(repo repository.WebhookRepository, logger *zap.Logger) *Worker {
	return &Worker{
		repo:       repo,
		httpClient: &http.Client{Timeout: deliveryTimeout},
		logger:     logger,
		now:        time.Now,
	}
}

// Run polls the queue until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) {
	w.logger.Info("webhook worker started")
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			w.logger.Info("webhook worker stopped")
			return
		case <-ticker.C:
			for {
				processed, err := w.ProcessOne(ctx)
				if err != nil {
					w.logger.Error("webhook queue poll failed", zap.Error(err))
					break
				}
				if !processed {
					break
				}
			}
		}
	}
}

// ProcessOne claims and attempts the next due job. It reports whether a job
// was claimed.
func (w *Worker) ProcessOne(ctx context.Context) (bool, error) {
	job, err := w.repo.ClaimDueJob(ctx, claimLease)
	if err != nil {
		return false, err
	}
	if job == nil {
		return false, nil
	}

	attempt := job.Attempts + 1
	start := w.now()
	deliverErr := w.deliver(ctx, job)
	latency := w.now().Sub(start)

	if deliverErr == nil {
		webhookDeliveries.WithLabelValues("delivered").Inc()
		w.logger.Info("webhook delivered",
			zap.String("job_id", job.ID),
			zap.String("event", job.Event),
			zap.Int("attempt", attempt),
			zap.Duration("latency", latency))
		return true, w.repo.MarkDelivered(ctx, job.ID, attempt)
	}

	w.logger.Warn("webhook delivery failed",
		zap.String("job_id", job.ID),
		zap.String("event", job.Event),
		zap.Int("attempt", attempt),
		zap.Duration("latency", latency),
		zap.Error(deliverErr))

	if attempt >= domain.MaxWebhookAttempts {
		webhookDeliveries.WithLabelValues("failed").Inc()
		w.logger.Error("webhook permanently failed",
			zap.String("job_id", job.ID),
			zap.String("event", job.Event),
			zap.Int("attempts", attempt))
		return true, w.repo.MarkFailed(ctx, job.ID, attempt, deliverErr.Error())
	}

	webhookDeliveries.WithLabelValues("retried").Inc()
	nextRunAt := w.now().Add(retryBackoff[attempt-1])
	return true, w.repo.Reschedule(ctx, job.ID, attempt, deliverErr.Error(), nextRunAt)
}

func (w *Worker) deliver(ctx context.Context, job *domain.WebhookJob) error {
	reqCtx, cancel := context.WithTimeout(ctx, deliveryTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, job.URL, bytes.NewReader(job.Payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Webhook-Event", job.Event)
	req.Header.Set("X-Webhook-Signature", Sign(job.Secret, job.Payload))

	resp, err := w.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("endpoint returned %d", resp.StatusCode)
	}
	return nil
}
