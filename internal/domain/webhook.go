package domain

import (
	"encoding/json"
	"time"
)

type WebhookJobStatus string

const (
	WebhookJobPending   WebhookJobStatus = "pending"
	WebhookJobDelivered WebhookJobStatus = "delivered"
	WebhookJobFailed    WebhookJobStatus = "failed"
)

const MaxWebhookAttempts = 3

// WebhookSubscription is a durable, per-owner registration of a delivery URL.
// Subscriptions are persisted so they survive restarts.
type WebhookSubscription struct {
	ID        string    `json:"id"`
	OwnerID   string    `json:"owner_id"`
	URL       string    `json:"url"`
	Secret    string    `json:"-"`
	Events    []string  `json:"events"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Matches reports whether the subscription wants the event. An empty event
// list subscribes to everything.
func (s *WebhookSubscription) Matches(event string) bool {
	if !s.Active {
		return false
	}
	if len(s.Events) == 0 {
		return true
	}
	for _, e := range s.Events {
		if e == event {
			return true
		}
	}
	return false
}

// WebhookJob is one queued delivery of an event to one subscription.
type WebhookJob struct {
	ID             string           `json:"id"`
	SubscriptionID string           `json:"subscription_id"`
	Event          string           `json:"event"`
	URL            string           `json:"url"`
	Secret         string           `json:"-"`
	Payload        json.RawMessage  `json:"payload"`
	Status         WebhookJobStatus `json:"status"`
	Attempts       int              `json:"attempts"`
	LastError      string           `json:"last_error,omitempty"`
	NextRunAt      time.Time        `json:"next_run_at"`
	CreatedAt      time.Time        `json:"created_at"`
	DeliveredAt    *time.Time       `json:"delivered_at,omitempty"`
}
