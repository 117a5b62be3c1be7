package provider

import (
	"context"
	"time"

	"payments-service/internal/domain"
)

// InitiateRequest carries everything a provider needs to start a movement.
type InitiateRequest struct {
	Reference     string
	Amount        float64
	Currency      string
	Rail          domain.PayoutRail
	PhoneNumber   string
	AccountNumber string
	BankCode      string
	Description   string
}

type InitiateResponse struct {
	Status      domain.TransactionStatus
	ProviderRef string
	Message     string
}

type StatusResponse struct {
	ProviderRef string
	Status      domain.TransactionStatus
	ResultCode  string
	Message     string
	CompletedAt *time.Time
}

// Provider is the payment-provider capability. One implementation per rail
// owner: mpesa, card, bank. Initiate moves money out, Collect pulls money in.
type Provider interface {
	Name() domain.PaymentProvider
	Initiate(ctx context.Context, req InitiateRequest) (*InitiateResponse, error)
	Collect(ctx context.Context, req InitiateRequest) (*InitiateResponse, error)
	Query(ctx context.Context, providerRef string) (*StatusResponse, error)
}

// Registry dispatches to a provider by identity. The set of providers is
// closed; an unknown identity is ErrUnsupportedProvider, never a silent
// fallthrough.
type Registry struct {
	providers map[domain.PaymentProvider]Provider
}

func NewRegistry(providers ...Provider) *Registry {
	r := &Registry{providers: make(map[domain.PaymentProvider]Provider, len(providers))}
	for _, p := range providers {
		r.providers[p.Name()] = p
	}
	return r
}

func (r *Registry) Get(name domain.PaymentProvider) (Provider, error) {
	switch name {
	case domain.ProviderMpesa, domain.ProviderCard, domain.ProviderBank:
		p, ok := r.providers[name]
		if !ok {
			return nil, domain.ErrUnsupportedProvider
		}
		return p, nil
	default:
		return nil, domain.ErrUnsupportedProvider
	}
}

// ForRail maps a payout rail to the provider that operates it.
func (r *Registry) ForRail(rail domain.PayoutRail) (Provider, error) {
	switch rail {
	case domain.RailMpesaB2C, domain.RailMpesaCorporate:
		return r.Get(domain.ProviderMpesa)
	case domain.RailPesalink, domain.RailRTGS:
		return r.Get(domain.ProviderBank)
	default:
		return nil, domain.ErrUnsupportedProvider
	}
}
