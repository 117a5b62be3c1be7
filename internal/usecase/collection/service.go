// Package collection implements merchant-initiated charges: money pulled
// from a customer's payment method into the merchant's wallet.
package collection

import (
	"context"

	"payments-service/internal/domain"
	"payments-service/internal/events"
	"payments-service/internal/provider"
	"payments-service/internal/repository"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

var collectionsInitiated = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "collections_initiated_total",
		Help: "Collection charges by provider and outcome",
	},
	[]string{"provider", "outcome"},
)

type Service struct {
	store     repository.LedgerStore
	providers *provider.Registry
	events    events.Emitter
	logger    *zap.Logger
}

func New(store repository.LedgerStore, providers *provider.Registry, emitter events.Emitter, logger *zap.Logger) *Service {
	return &Service{
		store:     store,
		providers: providers,
		events:    emitter,
		logger:    logger,
	}
}

type CreateParams struct {
	MerchantWalletID string
	Amount           float64
	Provider         domain.PaymentProvider
	PhoneNumber      string
	AccountNumber    string
	BankCode         string
	Description      string
}

// Create charges the customer through the named provider. The merchant sees
// the net amount on the pending balance until the provider settles; a card
// charge that settles synchronously is credited immediately.
func (s *Service) Create(ctx context.Context, params CreateParams) (*domain.Transaction, error) {
	if params.Amount <= 0 {
		return nil, domain.ErrInvalidAmount
	}

	p, err := s.providers.Get(params.Provider)
	if err != nil {
		return nil, err
	}

	wallet, err := s.store.GetWallet(ctx, params.MerchantWalletID)
	if err != nil {
		return nil, err
	}

	txn := domain.NewTransaction(domain.TxTypeCollection, params.Amount, wallet.Currency)
	if err := txn.SetFees(params.Amount*domain.CollectionFeeRate, 0); err != nil {
		return nil, err
	}
	txn.Source = domain.Party{
		Provider:      params.Provider,
		PhoneNumber:   params.PhoneNumber,
		AccountNumber: params.AccountNumber,
	}
	txn.Destination = domain.Party{WalletID: wallet.ID}
	txn.Description = params.Description

	err = s.store.Atomic(ctx, func(tx repository.TxStore) error {
		w, err := tx.WalletForUpdate(ctx, wallet.ID)
		if err != nil {
			return err
		}
		if err := w.AddPending(txn.NetAmount); err != nil {
			return err
		}
		if err := txn.MarkProcessing(); err != nil {
			return err
		}
		if err := tx.SaveWallet(ctx, w); err != nil {
			return err
		}
		return tx.SaveTransaction(ctx, txn)
	})
	if err != nil {
		return nil, err
	}

	resp, err := p.Collect(ctx, provider.InitiateRequest{
		Reference:     txn.ID,
		Amount:        params.Amount,
		Currency:      wallet.Currency,
		PhoneNumber:   params.PhoneNumber,
		AccountNumber: params.AccountNumber,
		BankCode:      params.BankCode,
		Description:   params.Description,
	})
	if err != nil {
		s.logger.Error("collection charge failed",
			zap.String("transaction_id", txn.ID),
			zap.String("provider", string(params.Provider)),
			zap.Error(err))
		collectionsInitiated.WithLabelValues(string(params.Provider), "failed").Inc()
		return txn, s.reverse(ctx, txn, err.Error())
	}
	if resp.Status == domain.TxStatusFailed {
		collectionsInitiated.WithLabelValues(string(params.Provider), "failed").Inc()
		return txn, s.reverse(ctx, txn, resp.Message)
	}

	txn.ProviderRef = resp.ProviderRef
	err = s.store.Atomic(ctx, func(tx repository.TxStore) error {
		if resp.Status != domain.TxStatusCompleted {
			return tx.SaveTransaction(ctx, txn)
		}
		w, err := tx.WalletForUpdate(ctx, wallet.ID)
		if err != nil {
			return err
		}
		if err := w.SettlePending(txn.NetAmount); err != nil {
			return err
		}
		if err := txn.MarkCompleted(); err != nil {
			return err
		}
		if err := tx.SaveWallet(ctx, w); err != nil {
			return err
		}
		return tx.SaveTransaction(ctx, txn)
	})
	if err != nil {
		return nil, err
	}

	collectionsInitiated.WithLabelValues(string(params.Provider), "accepted").Inc()
	if txn.Status == domain.TxStatusCompleted {
		s.events.Emit(ctx, events.TransactionCompleted, txn)
	}
	s.logger.Info("collection initiated",
		zap.String("transaction_id", txn.ID),
		zap.String("merchant_wallet", wallet.ID),
		zap.Float64("amount", params.Amount),
		zap.String("status", string(txn.Status)))
	return txn, nil
}

// Get resolves a collection either by our transaction ID or by the
// provider's reference.
func (s *Service) Get(ctx context.Context, id string) (*domain.Transaction, error) {
	txn, err := s.store.GetTransaction(ctx, id)
	if err == nil {
		return txn, nil
	}
	return s.store.GetTransactionByProviderRef(ctx, id)
}

func (s *Service) reverse(ctx context.Context, txn *domain.Transaction, reason string) error {
	err := s.store.Atomic(ctx, func(tx repository.TxStore) error {
		w, err := tx.WalletForUpdate(ctx, txn.Destination.WalletID)
		if err != nil {
			return err
		}
		if err := w.ReversePending(txn.NetAmount); err != nil {
			return err
		}
		if err := txn.MarkFailed(reason); err != nil {
			return err
		}
		if err := tx.SaveWallet(ctx, w); err != nil {
			return err
		}
		return tx.SaveTransaction(ctx, txn)
	})
	if err != nil {
		return err
	}
	s.events.Emit(ctx, events.TransactionFailed, txn)
	return nil
}
