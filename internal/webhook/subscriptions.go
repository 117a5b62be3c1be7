package webhook

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"time"

	"payments-service/internal/domain"
	"payments-service/internal/repository"
)

// Subscriptions manages durable webhook registrations.
type Subscriptions struct {
	repo repository.WebhookRepository
}

func NewSubscriptions(repo repository.WebhookRepository) *Subscriptions {
	return &Subscriptions{repo: repo}
}

// Subscribe registers a delivery URL and returns the subscription together
// with its signing secret. The secret is shown exactly once, at creation.
func (s *Subscriptions) Subscribe(ctx context.Context, ownerID, url string, eventNames []string) (*domain.WebhookSubscription, string, error) {
	secret, err := newSecret()
	if err != nil {
		return nil, "", err
	}

	now := time.Now()
	sub := &domain.WebhookSubscription{
		ID:        domain.NewID(domain.PrefixSubscription),
		OwnerID:   ownerID,
		URL:       url,
		Secret:    secret,
		Events:    eventNames,
		Active:    true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.repo.CreateSubscription(ctx, sub); err != nil {
		return nil, "", err
	}
	return sub, secret, nil
}

func (s *Subscriptions) Get(ctx context.Context, id string) (*domain.WebhookSubscription, error) {
	return s.repo.GetSubscription(ctx, id)
}

func (s *Subscriptions) Unsubscribe(ctx context.Context, id string) error {
	return s.repo.DeactivateSubscription(ctx, id)
}

func newSecret() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return "whsec_" + hex.EncodeToString(buf), nil
}
