// Package settlement applies asynchronous provider outcomes to in-flight
// transactions: callback results and on-demand reconciliation queries.
package settlement

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

var settlements = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "provider_settlements_total",
		Help: "Provider settlement results by transaction type and outcome",
	},
	[]string{"type", "outcome"},
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

// CallbackResult is the provider's verdict extracted from its callback body.
type CallbackResult struct {
	ProviderRef string
	Success     bool
	Message     string
}

// HandleCallback settles the transaction the provider reference points at.
// Applying the same final callback twice is a no-op: a transaction in a
// terminal state is left untouched.
func (s *Service) HandleCallback(ctx context.Context, result CallbackResult) (*domain.Transaction, error) {
	txn, err := s.store.GetTransactionByProviderRef(ctx, result.ProviderRef)
	if err != nil {
		return nil, err
	}
	if txn.IsFinal() {
		s.logger.Info("callback for settled transaction ignored",
			zap.String("transaction_id", txn.ID),
			zap.String("provider_ref", result.ProviderRef))
		return txn, nil
	}
	return s.settle(ctx, txn, result.Success, result.Message)
}

// Reconcile queries the provider for the current status of an in-flight
// transaction and applies the outcome. Used when a callback never arrived.
func (s *Service) Reconcile(ctx context.Context, transactionID string) (*domain.Transaction, error) {
	txn, err := s.store.GetTransaction(ctx, transactionID)
	if err != nil {
		return nil, err
	}
	if txn.IsFinal() {
		return txn, nil
	}
	if txn.ProviderRef == "" {
		return nil, domain.ErrTransactionNotFound
	}

	p, err := s.providerFor(txn)
	if err != nil {
		return nil, err
	}
	status, err := p.Query(ctx, txn.ProviderRef)
	if err != nil {
		return nil, err
	}

	switch status.Status {
	case domain.TxStatusCompleted:
		return s.settle(ctx, txn, true, status.Message)
	case domain.TxStatusFailed:
		return s.settle(ctx, txn, false, status.Message)
	default:
		return txn, nil
	}
}

// settle applies the provider outcome to the ledger. Inbound transactions
// move their pending credit; outbound failures credit the full deduction
// back to the source wallet.
func (s *Service) settle(ctx context.Context, txn *domain.Transaction, success bool, message string) (*domain.Transaction, error) {
	outcome := "failed"
	if success {
		outcome = "completed"
	}

	err := s.store.Atomic(ctx, func(tx repository.TxStore) error {
		switch txn.Type {
		case domain.TxTypeWalletFunding, domain.TxTypeCollection:
			return s.settleInbound(ctx, tx, txn, success, message)
		case domain.TxTypePayout, domain.TxTypeWalletWithdrawal:
			return s.settleOutbound(ctx, tx, txn, success, message)
		default:
			// Other types settle synchronously and never reach here.
			return domain.ErrTransactionNotFound
		}
	})
	if err != nil {
		return nil, err
	}

	settlements.WithLabelValues(string(txn.Type), outcome).Inc()
	if success {
		s.events.Emit(ctx, events.TransactionCompleted, txn)
		if txn.Type == domain.TxTypeWalletFunding {
			s.events.Emit(ctx, events.WalletFunded, txn)
		}
		if txn.Type == domain.TxTypePayout {
			s.events.Emit(ctx, events.PayoutCompleted, txn)
		}
	} else {
		s.events.Emit(ctx, events.TransactionFailed, txn)
		if txn.Type == domain.TxTypePayout {
			s.events.Emit(ctx, events.PayoutFailed, txn)
		}
	}

	s.logger.Info("transaction settled",
		zap.String("transaction_id", txn.ID),
		zap.String("type", string(txn.Type)),
		zap.String("outcome", outcome),
		zap.String("message", message))
	return txn, nil
}

func (s *Service) settleInbound(ctx context.Context, tx repository.TxStore, txn *domain.Transaction, success bool, message string) error {
	w, err := tx.WalletForUpdate(ctx, txn.Destination.WalletID)
	if err != nil {
		return err
	}
	if success {
		if err := w.SettlePending(txn.NetAmount); err != nil {
			return err
		}
		if err := txn.MarkCompleted(); err != nil {
			return err
		}
	} else {
		if err := w.ReversePending(txn.NetAmount); err != nil {
			return err
		}
		if err := txn.MarkFailed(message); err != nil {
			return err
		}
	}
	if err := tx.SaveWallet(ctx, w); err != nil {
		return err
	}
	return tx.SaveTransaction(ctx, txn)
}

func (s *Service) settleOutbound(ctx context.Context, tx repository.TxStore, txn *domain.Transaction, success bool, message string) error {
	if success {
		if err := txn.MarkCompleted(); err != nil {
			return err
		}
		return tx.SaveTransaction(ctx, txn)
	}

	w, err := tx.WalletForUpdate(ctx, txn.Source.WalletID)
	if err != nil {
		return err
	}
	if err := w.AddFunds(txn.Amount + txn.Fees.TotalFee); err != nil {
		return err
	}
	if err := txn.MarkFailed(message); err != nil {
		return err
	}
	if err := tx.SaveWallet(ctx, w); err != nil {
		return err
	}
	return tx.SaveTransaction(ctx, txn)
}

func (s *Service) providerFor(txn *domain.Transaction) (provider.Provider, error) {
	party := txn.Source
	if party.Provider == "" {
		party = txn.Destination
	}
	if party.Provider == "" {
		return nil, domain.ErrUnsupportedProvider
	}
	return s.providers.Get(party.Provider)
}
