package wallet

import (
	"context"
	"errors"

	"payments-service/internal/domain"
	"payments-service/internal/events"
	"payments-service/internal/provider"
	"payments-service/internal/repository"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

var walletOps = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "wallet_operations_total",
		Help: "Wallet ledger operations by kind and outcome",
	},
	[]string{"operation", "outcome"},
)

const (
	defaultPageSize = 50
	maxPageSize     = 100
)

type Service struct {
	store     repository.LedgerStore
	providers *provider.Registry
	events    events.Emitter
	notifier  *Notifier
	logger    *zap.Logger
}

func New(store repository.LedgerStore, providers *provider.Registry, emitter events.Emitter, notifier *Notifier, logger *zap.Logger) *Service {
	return &Service{
		store:     store,
		providers: providers,
		events:    emitter,
		notifier:  notifier,
		logger:    logger,
	}
}

// GetOrCreate returns the owner's wallet for the currency, creating it on
// first use. One wallet per owner per currency.
func (s *Service) GetOrCreate(ctx context.Context, ownerType domain.OwnerType, ownerID, currency string) (*domain.Wallet, error) {
	w, err := s.store.GetWalletByOwner(ctx, ownerType, ownerID, currency)
	if err == nil {
		return w, nil
	}
	if !errors.Is(err, domain.ErrWalletNotFound) {
		return nil, err
	}

	w = domain.NewWallet(ownerType, ownerID, currency)
	if err := s.store.CreateWallet(ctx, w); err != nil {
		return nil, err
	}
	s.events.Emit(ctx, events.WalletCreated, w)
	s.logger.Info("wallet created",
		zap.String("wallet_id", w.ID),
		zap.String("owner_id", ownerID),
		zap.String("currency", currency))
	return w, nil
}

func (s *Service) Get(ctx context.Context, walletID string) (*domain.Wallet, error) {
	return s.store.GetWallet(ctx, walletID)
}

func (s *Service) ListByOwner(ctx context.Context, ownerType domain.OwnerType, ownerID string) ([]*domain.Wallet, error) {
	return s.store.ListWalletsByOwner(ctx, ownerType, ownerID)
}

// ListTransactions pages through a wallet's history, newest first.
func (s *Service) ListTransactions(ctx context.Context, walletID string, limit, offset int) ([]*domain.Transaction, error) {
	if limit <= 0 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	if offset < 0 {
		offset = 0
	}
	if _, err := s.store.GetWallet(ctx, walletID); err != nil {
		return nil, err
	}
	return s.store.ListWalletTransactions(ctx, walletID, limit, offset)
}

type FundParams struct {
	WalletID      string
	Amount        float64
	Provider      domain.PaymentProvider
	PhoneNumber   string
	AccountNumber string
	BankCode      string
	Description   string
}

// Fund pulls money in from an external source. The net amount sits on the
// pending balance until the provider confirms; card charges that settle
// synchronously are credited immediately.
func (s *Service) Fund(ctx context.Context, params FundParams) (*domain.Transaction, error) {
	if params.Amount <= 0 {
		return nil, domain.ErrInvalidAmount
	}

	p, err := s.providers.Get(params.Provider)
	if err != nil {
		return nil, err
	}

	wallet, err := s.store.GetWallet(ctx, params.WalletID)
	if err != nil {
		return nil, err
	}

	txn := domain.NewTransaction(domain.TxTypeWalletFunding, params.Amount, wallet.Currency)
	if err := txn.SetFees(params.Amount*domain.FundingFeeRate, 0); err != nil {
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
		walletOps.WithLabelValues("fund", "rejected").Inc()
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
		s.logger.Error("funding collect failed",
			zap.String("transaction_id", txn.ID),
			zap.String("provider", string(params.Provider)),
			zap.Error(err))
		return txn, s.reverseFunding(ctx, txn, err.Error())
	}
	if resp.Status == domain.TxStatusFailed {
		return txn, s.reverseFunding(ctx, txn, resp.Message)
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

	walletOps.WithLabelValues("fund", "accepted").Inc()
	if txn.Status == domain.TxStatusCompleted {
		s.events.Emit(ctx, events.WalletFunded, txn)
		s.pushBalance(ctx, wallet.ID)
	}
	s.logger.Info("wallet funding initiated",
		zap.String("transaction_id", txn.ID),
		zap.String("wallet_id", wallet.ID),
		zap.Float64("amount", params.Amount),
		zap.String("status", string(txn.Status)))
	return txn, nil
}

// reverseFunding removes the pending credit and fails the transaction after
// the provider declined the pull.
func (s *Service) reverseFunding(ctx context.Context, txn *domain.Transaction, reason string) error {
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
	walletOps.WithLabelValues("fund", "failed").Inc()
	s.events.Emit(ctx, events.TransactionFailed, txn)
	return nil
}

type WithdrawParams struct {
	WalletID      string
	Amount        float64
	Provider      domain.PaymentProvider
	PhoneNumber   string
	AccountNumber string
	BankCode      string
	Description   string
}

// Withdraw pushes money out to an external destination. Amount plus fee is
// debited before the provider call; a provider failure credits the full
// deduction back.
func (s *Service) Withdraw(ctx context.Context, params WithdrawParams) (*domain.Transaction, error) {
	if params.Amount <= 0 {
		return nil, domain.ErrInvalidAmount
	}

	p, err := s.providers.Get(params.Provider)
	if err != nil {
		return nil, err
	}

	wallet, err := s.store.GetWallet(ctx, params.WalletID)
	if err != nil {
		return nil, err
	}

	txn := domain.NewTransaction(domain.TxTypeWalletWithdrawal, params.Amount, wallet.Currency)
	if err := txn.SetFees(params.Amount*domain.WithdrawalFeeRate, 0); err != nil {
		return nil, err
	}
	txn.Source = domain.Party{WalletID: wallet.ID}
	txn.Destination = domain.Party{
		Provider:      params.Provider,
		PhoneNumber:   params.PhoneNumber,
		AccountNumber: params.AccountNumber,
	}
	txn.Description = params.Description

	total := params.Amount + txn.Fees.TotalFee

	err = s.store.Atomic(ctx, func(tx repository.TxStore) error {
		w, err := tx.WalletForUpdate(ctx, wallet.ID)
		if err != nil {
			return err
		}
		if err := w.DeductFunds(total); err != nil {
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
		walletOps.WithLabelValues("withdraw", "rejected").Inc()
		return nil, err
	}

	resp, err := p.Initiate(ctx, provider.InitiateRequest{
		Reference:     txn.ID,
		Amount:        params.Amount,
		Currency:      wallet.Currency,
		PhoneNumber:   params.PhoneNumber,
		AccountNumber: params.AccountNumber,
		BankCode:      params.BankCode,
		Description:   params.Description,
	})
	if err != nil {
		s.logger.Error("withdrawal provider call failed",
			zap.String("transaction_id", txn.ID),
			zap.String("provider", string(params.Provider)),
			zap.Error(err))
		return txn, s.refundWithdrawal(ctx, txn, total, err.Error())
	}
	if resp.Status == domain.TxStatusFailed {
		return txn, s.refundWithdrawal(ctx, txn, total, resp.Message)
	}

	txn.ProviderRef = resp.ProviderRef
	if resp.Status == domain.TxStatusCompleted {
		if err := txn.MarkCompleted(); err != nil {
			return nil, err
		}
	}
	err = s.store.Atomic(ctx, func(tx repository.TxStore) error {
		return tx.SaveTransaction(ctx, txn)
	})
	if err != nil {
		return nil, err
	}

	walletOps.WithLabelValues("withdraw", "accepted").Inc()
	if txn.Status == domain.TxStatusCompleted {
		s.events.Emit(ctx, events.TransactionCompleted, txn)
	}
	s.pushBalance(ctx, wallet.ID)
	return txn, nil
}

func (s *Service) refundWithdrawal(ctx context.Context, txn *domain.Transaction, total float64, reason string) error {
	err := s.store.Atomic(ctx, func(tx repository.TxStore) error {
		w, err := tx.WalletForUpdate(ctx, txn.Source.WalletID)
		if err != nil {
			return err
		}
		if err := w.AddFunds(total); err != nil {
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
	walletOps.WithLabelValues("withdraw", "failed").Inc()
	s.events.Emit(ctx, events.TransactionFailed, txn)
	return nil
}

type TransferParams struct {
	SourceWalletID      string
	DestinationWalletID string
	Amount              float64
	Description         string
}

// Transfer moves funds between two internal wallets in one database
// transaction. The destination receives amount minus the transfer fee; the
// source must cover amount plus fee. Wallets are locked in ID order so two
// opposing transfers cannot deadlock.
func (s *Service) Transfer(ctx context.Context, params TransferParams) (*domain.Transaction, error) {
	if params.Amount <= 0 {
		return nil, domain.ErrInvalidAmount
	}
	if params.SourceWalletID == params.DestinationWalletID {
		return nil, domain.ErrUnroutableDestination
	}

	var txn *domain.Transaction
	err := s.store.Atomic(ctx, func(tx repository.TxStore) error {
		first, second := params.SourceWalletID, params.DestinationWalletID
		if second < first {
			first, second = second, first
		}
		a, err := tx.WalletForUpdate(ctx, first)
		if err != nil {
			return err
		}
		b, err := tx.WalletForUpdate(ctx, second)
		if err != nil {
			return err
		}
		src, dst := a, b
		if src.ID != params.SourceWalletID {
			src, dst = b, a
		}

		if src.Currency != dst.Currency {
			return domain.ErrCurrencyMismatch
		}

		txn = domain.NewTransaction(domain.TxTypeTransfer, params.Amount, src.Currency)
		if err := txn.SetFees(params.Amount*domain.TransferFeeRate, 0); err != nil {
			return err
		}
		txn.Source = domain.Party{WalletID: src.ID}
		txn.Destination = domain.Party{WalletID: dst.ID}
		txn.Description = params.Description

		if !src.HasSufficientFunds(params.Amount+txn.Fees.TotalFee, false) {
			return domain.ErrInsufficientFunds
		}
		if err := src.DeductFunds(params.Amount); err != nil {
			return err
		}
		if err := dst.AddFunds(txn.NetAmount); err != nil {
			return err
		}
		if err := txn.MarkCompleted(); err != nil {
			return err
		}
		if err := tx.SaveWallet(ctx, src); err != nil {
			return err
		}
		if err := tx.SaveWallet(ctx, dst); err != nil {
			return err
		}
		return tx.SaveTransaction(ctx, txn)
	})
	if err != nil {
		walletOps.WithLabelValues("transfer", "rejected").Inc()
		return nil, err
	}

	walletOps.WithLabelValues("transfer", "accepted").Inc()
	s.events.Emit(ctx, events.TransactionCompleted, txn)
	s.pushBalance(ctx, params.SourceWalletID)
	s.pushBalance(ctx, params.DestinationWalletID)
	s.logger.Info("wallet transfer completed",
		zap.String("transaction_id", txn.ID),
		zap.String("source", params.SourceWalletID),
		zap.String("destination", params.DestinationWalletID),
		zap.Float64("amount", params.Amount))
	return txn, nil
}

// Freeze suspends a wallet pending review. Administrative path.
func (s *Service) Freeze(ctx context.Context, walletID string) (*domain.Wallet, error) {
	var frozen *domain.Wallet
	err := s.store.Atomic(ctx, func(tx repository.TxStore) error {
		w, err := tx.WalletForUpdate(ctx, walletID)
		if err != nil {
			return err
		}
		if err := w.Freeze(); err != nil {
			return err
		}
		frozen = w
		return tx.SaveWallet(ctx, w)
	})
	if err != nil {
		return nil, err
	}
	s.events.Emit(ctx, events.WalletFrozen, frozen)
	s.logger.Warn("wallet frozen", zap.String("wallet_id", walletID))
	return frozen, nil
}

func (s *Service) Unfreeze(ctx context.Context, walletID string) (*domain.Wallet, error) {
	var w *domain.Wallet
	err := s.store.Atomic(ctx, func(tx repository.TxStore) error {
		var err error
		w, err = tx.WalletForUpdate(ctx, walletID)
		if err != nil {
			return err
		}
		if err := w.Unfreeze(); err != nil {
			return err
		}
		return tx.SaveWallet(ctx, w)
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("wallet unfrozen", zap.String("wallet_id", walletID))
	return w, nil
}

// Close retires an emptied wallet.
func (s *Service) Close(ctx context.Context, walletID string) (*domain.Wallet, error) {
	var w *domain.Wallet
	err := s.store.Atomic(ctx, func(tx repository.TxStore) error {
		var err error
		w, err = tx.WalletForUpdate(ctx, walletID)
		if err != nil {
			return err
		}
		if err := w.Close(); err != nil {
			return err
		}
		return tx.SaveWallet(ctx, w)
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("wallet closed", zap.String("wallet_id", walletID))
	return w, nil
}

func (s *Service) pushBalance(ctx context.Context, walletID string) {
	if s.notifier == nil {
		return
	}
	w, err := s.store.GetWallet(ctx, walletID)
	if err != nil {
		s.logger.Warn("balance push skipped", zap.String("wallet_id", walletID), zap.Error(err))
		return
	}
	s.notifier.PushBalance(w)
}
