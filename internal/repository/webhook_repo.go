package repository

import (
	"context"
	"errors"
	"time"

	"payments-service/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type WebhookRepository interface {
	CreateSubscription(ctx context.Context, sub *domain.WebhookSubscription) error
	GetSubscription(ctx context.Context, id string) (*domain.WebhookSubscription, error)
	ListSubscriptionsForEvent(ctx context.Context, event string) ([]*domain.WebhookSubscription, error)
	DeactivateSubscription(ctx context.Context, id string) error

	EnqueueJob(ctx context.Context, job *domain.WebhookJob) error
	// ClaimDueJob returns the oldest due pending job, or nil when the queue
	// is empty. The claim pushes next_run_at forward as a lease so a crashed
	// worker's job becomes due again; SKIP LOCKED keeps concurrent workers
	// off the same row.
	ClaimDueJob(ctx context.Context, lease time.Duration) (*domain.WebhookJob, error)
	MarkDelivered(ctx context.Context, jobID string, attempts int) error
	Reschedule(ctx context.Context, jobID string, attempts int, lastError string, nextRunAt time.Time) error
	MarkFailed(ctx context.Context, jobID string, attempts int, lastError string) error
}

type webhookRepo struct {
	db *pgxpool.Pool
}

func NewWebhookRepository(db *pgxpool.Pool) WebhookRepository {
	return &webhookRepo{db: db}
}

func (r *webhookRepo) CreateSubscription(ctx context.Context, sub *domain.WebhookSubscription) error {
	query := `INSERT INTO webhook_subscriptions
		(id, owner_id, url, secret, events, active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	_, err := r.db.Exec(ctx, query, sub.ID, sub.OwnerID, sub.URL, sub.Secret,
		sub.Events, sub.Active, sub.CreatedAt, sub.UpdatedAt)
	return err
}

func (r *webhookRepo) GetSubscription(ctx context.Context, id string) (*domain.WebhookSubscription, error) {
	var sub domain.WebhookSubscription
	query := `SELECT id, owner_id, url, secret, events, active, created_at, updated_at
		FROM webhook_subscriptions WHERE id = $1`
	err := r.db.QueryRow(ctx, query, id).Scan(&sub.ID, &sub.OwnerID, &sub.URL,
		&sub.Secret, &sub.Events, &sub.Active, &sub.CreatedAt, &sub.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrSubscriptionNotFound
	}
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

func (r *webhookRepo) ListSubscriptionsForEvent(ctx context.Context, event string) ([]*domain.WebhookSubscription, error) {
	query := `SELECT id, owner_id, url, secret, events, active, created_at, updated_at
		FROM webhook_subscriptions
		WHERE active AND (events = '{}' OR $1 = ANY(events))`
	rows, err := r.db.Query(ctx, query, event)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var subs []*domain.WebhookSubscription
	for rows.Next() {
		var sub domain.WebhookSubscription
		if err := rows.Scan(&sub.ID, &sub.OwnerID, &sub.URL, &sub.Secret,
			&sub.Events, &sub.Active, &sub.CreatedAt, &sub.UpdatedAt); err != nil {
			return nil, err
		}
		subs = append(subs, &sub)
	}
	return subs, rows.Err()
}

func (r *webhookRepo) DeactivateSubscription(ctx context.Context, id string) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE webhook_subscriptions SET active = false, updated_at = NOW() WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrSubscriptionNotFound
	}
	return nil
}

func (r *webhookRepo) EnqueueJob(ctx context.Context, job *domain.WebhookJob) error {
	query := `INSERT INTO webhook_jobs
		(id, subscription_id, event, url, secret, payload, status, attempts, next_run_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`
	_, err := r.db.Exec(ctx, query, job.ID, job.SubscriptionID, job.Event, job.URL,
		job.Secret, job.Payload, job.Status, job.Attempts, job.NextRunAt, job.CreatedAt)
	return err
}

func (r *webhookRepo) ClaimDueJob(ctx context.Context, lease time.Duration) (*domain.WebhookJob, error) {
	var job domain.WebhookJob
	query := `UPDATE webhook_jobs SET next_run_at = NOW() + $1
		WHERE id = (
			SELECT id FROM webhook_jobs
			WHERE status = 'pending' AND next_run_at <= NOW()
			ORDER BY created_at
			LIMIT 1
			FOR UPDATE SKIP LOCKED
		)
		RETURNING id, subscription_id, event, url, secret, payload, status, attempts, next_run_at, created_at`
	err := r.db.QueryRow(ctx, query, lease).Scan(&job.ID, &job.SubscriptionID, &job.Event,
		&job.URL, &job.Secret, &job.Payload, &job.Status, &job.Attempts, &job.NextRunAt, &job.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &job, nil
}

func (r *webhookRepo) MarkDelivered(ctx context.Context, jobID string, attempts int) error {
	_, err := r.db.Exec(ctx,
		`UPDATE webhook_jobs SET status = 'delivered', attempts = $2, delivered_at = NOW() WHERE id = $1`,
		jobID, attempts)
	return err
}

func (r *webhookRepo) Reschedule(ctx context.Context, jobID string, attempts int, lastError string, nextRunAt time.Time) error {
	_, err := r.db.Exec(ctx,
		`UPDATE webhook_jobs SET attempts = $2, last_error = $3, next_run_at = $4 WHERE id = $1`,
		jobID, attempts, lastError, nextRunAt)
	return err
}

func (r *webhookRepo) MarkFailed(ctx context.Context, jobID string, attempts int, lastError string) error {
	_, err := r.db.Exec(ctx,
		`UPDATE webhook_jobs SET status = 'failed', attempts = $2, last_error = $3 WHERE id = $1`,
		jobID, attempts, lastError)
	return err
}
