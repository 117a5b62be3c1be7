package payout

import (
	"context"
	"encoding/json"
	"fmt"

	"payments-service/internal/domain"
	"payments-service/internal/events"
	"payments-service/internal/provider"
	"payments-service/internal/repository"

	"go.uber.org/zap"
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
	SourceWalletID string
	Destination    domain.PayoutDestination
	Amount         float64
	Description    string
}

// Create routes and executes an outbound payout. The source wallet is
// debited amount+fee up front; a provider failure after that debit triggers
// a compensating credit of the full deducted amount.
func (s *Service) Create(ctx context.Context, params CreateParams) (*domain.Transaction, error) {
	if params.Amount <= 0 {
		return nil, domain.ErrInvalidAmount
	}

	wallet, err := s.store.GetWallet(ctx, params.SourceWalletID)
	if err != nil {
		return nil, err
	}

	route := SelectRail(params.Destination, params.Amount, wallet.Currency)
	if route.Rail == domain.RailUnknown {
		return nil, domain.ErrUnroutableDestination
	}

	if route.Rail == domain.RailInternal {
		return s.internalPayout(ctx, wallet, params)
	}

	txn := domain.NewTransaction(domain.TxTypePayout, params.Amount, wallet.Currency)
	if err := txn.SetFees(route.Fee, 0); err != nil {
		return nil, err
	}
	txn.Source = domain.Party{WalletID: wallet.ID}
	txn.Destination = destinationParty(params.Destination)
	txn.Description = params.Description
	txn.Metadata, _ = json.Marshal(route)

	total := params.Amount + route.Fee

	// Optimistic debit: funds leave before the provider confirms.
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
		return nil, err
	}

	p, err := s.providers.ForRail(route.Rail)
	if err != nil {
		return txn, s.compensate(ctx, txn, total, err.Error())
	}

	resp, err := p.Initiate(ctx, provider.InitiateRequest{
		Reference:     txn.ID,
		Amount:        params.Amount,
		Currency:      wallet.Currency,
		Rail:          route.Rail,
		PhoneNumber:   params.Destination.PhoneNumber,
		AccountNumber: params.Destination.AccountNumber,
		BankCode:      params.Destination.BankCode,
		Description:   params.Description,
	})
	if err != nil {
		s.logger.Error("payout provider call failed",
			zap.String("transaction_id", txn.ID),
			zap.String("rail", string(route.Rail)),
			zap.Error(err))
		return txn, s.compensate(ctx, txn, total, err.Error())
	}
	if resp.Status == domain.TxStatusFailed {
		return txn, s.compensate(ctx, txn, total, resp.Message)
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

	if txn.Status == domain.TxStatusCompleted {
		s.events.Emit(ctx, events.PayoutCompleted, txn)
	}
	s.logger.Info("payout initiated",
		zap.String("transaction_id", txn.ID),
		zap.String("rail", string(route.Rail)),
		zap.Float64("amount", params.Amount),
		zap.Float64("fee", route.Fee),
		zap.String("status", string(txn.Status)))
	return txn, nil
}

// internalPayout settles a wallet destination immediately: no provider, no
// fee, both wallets mutated in one atomic transaction.
func (s *Service) internalPayout(ctx context.Context, source *domain.Wallet, params CreateParams) (*domain.Transaction, error) {
	txn := domain.NewTransaction(domain.TxTypePayout, params.Amount, source.Currency)
	txn.Source = domain.Party{WalletID: source.ID}
	txn.Destination = domain.Party{WalletID: params.Destination.WalletID}
	txn.Description = params.Description
	txn.Metadata, _ = json.Marshal(domain.RouteDecision{Rail: domain.RailInternal, Instant: true})

	err := s.store.Atomic(ctx, func(tx repository.TxStore) error {
		src, err := tx.WalletForUpdate(ctx, source.ID)
		if err != nil {
			return err
		}
		dst, err := tx.WalletForUpdate(ctx, params.Destination.WalletID)
		if err != nil {
			return err
		}
		if src.Currency != dst.Currency {
			return domain.ErrCurrencyMismatch
		}
		if err := src.DeductFunds(params.Amount); err != nil {
			return err
		}
		if err := dst.AddFunds(params.Amount); err != nil {
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
		return nil, err
	}

	s.events.Emit(ctx, events.PayoutCompleted, txn)
	return txn, nil
}

// compensate credits the full deducted amount back to the source wallet and
// fails the transaction. Required reconciliation path: a provider failure
// must never leave the ledger unbalanced.
func (s *Service) compensate(ctx context.Context, txn *domain.Transaction, total float64, reason string) error {
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
		return fmt.Errorf("payout compensation failed: %w", err)
	}
	s.events.Emit(ctx, events.PayoutFailed, txn)
	return nil
}

func destinationParty(dest domain.PayoutDestination) domain.Party {
	switch dest.Type {
	case domain.DestinationMpesa:
		return domain.Party{Provider: domain.ProviderMpesa, PhoneNumber: dest.PhoneNumber}
	case domain.DestinationBank:
		return domain.Party{Provider: domain.ProviderBank, AccountNumber: dest.AccountNumber}
	default:
		return domain.Party{WalletID: dest.WalletID}
	}
}
