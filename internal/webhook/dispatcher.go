package webhook

import (
	"context"
	"encoding/json"
	"time"

	"payments-service/internal/domain"
	"payments-service/internal/repository"

	"go.uber.org/zap"
)

// Dispatcher fans an event out to every matching durable subscription by
// enqueueing one delivery job each. Callers only ever wait for the enqueue;
// delivery happens on the worker.
type Dispatcher struct {
	repo   repository.WebhookRepository
	logger *zap.Logger
}

func NewDispatcher(repo repository.WebhookRepository, logger *zap.Logger) *Dispatcher {
	return &Dispatcher{repo: repo, logger: logger}
}

func (d *Dispatcher) Dispatch(ctx context.Context, event string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	subs, err := d.repo.ListSubscriptionsForEvent(ctx, event)
	if err != nil {
		return err
	}

	now := time.Now()
	for _, sub := range subs {
		job := &domain.WebhookJob{
			ID:             domain.NewID(domain.PrefixWebhookJob),
			SubscriptionID: sub.ID,
			Event:          event,
			URL:            sub.URL,
			Secret:         sub.Secret,
			Payload:        data,
			Status:         domain.WebhookJobPending,
			NextRunAt:      now,
			CreatedAt:      now,
		}
		if err := d.repo.EnqueueJob(ctx, job); err != nil {
			d.logger.Error("failed to enqueue webhook job",
				zap.String("event", event),
				zap.String("subscription_id", sub.ID),
				zap.Error(err))
		}
	}
	return nil
}

// Emit satisfies events.Emitter. Enqueue failures are logged, never
// propagated; webhooks must not affect the financial operation that
// triggered them.
func (d *Dispatcher) Emit(ctx context.Context, event string, payload any) {
	if err := d.Dispatch(ctx, event, payload); err != nil {
		d.logger.Error("webhook dispatch failed",
			zap.String("event", event),
			zap.Error(err))
	}
}
