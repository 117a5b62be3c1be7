package escrow

import (
	"context"
	"time"

	"payments-service/internal/domain"
	"payments-service/internal/events"
	"payments-service/internal/repository"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

var escrowTransitions = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "escrow_transitions_total",
		Help: "Escrow state transitions by target state",
	},
	[]string{"state"},
)

// Policy holds the operator-tunable rules the state machine consults.
type Policy struct {
	// ChargeFeeOnRefund deducts the escrow fee from a refund instead of
	// returning the hold in full.
	ChargeFeeOnRefund bool
	// FreezeDisputedEscrows blocks release and refund while any dispute is
	// open or under investigation.
	FreezeDisputedEscrows bool
}

type Service struct {
	store  repository.LedgerStore
	events events.Emitter
	policy Policy
	logger *zap.Logger
}

func New(store repository.LedgerStore, emitter events.Emitter, policy Policy, logger *zap.Logger) *Service {
	return &Service{
		store:  store,
		events: emitter,
		policy: policy,
		logger: logger,
	}
}

type ConditionInput struct {
	Type        string
	Description string
}

type CreateParams struct {
	Payer           domain.EscrowParty
	Payee           domain.EscrowParty
	Amount          float64
	Conditions      []ConditionInput
	ReleaseSettings domain.ReleaseSettings
	ExpiresAt       *time.Time
	Description     string
}

// Create locks the amount on the payer's wallet and opens an active escrow.
// The hold transaction, the balance move and the escrow row commit together.
func (s *Service) Create(ctx context.Context, params CreateParams) (*domain.Escrow, error) {
	if params.Amount <= 0 {
		return nil, domain.ErrInvalidAmount
	}

	var esc *domain.Escrow
	err := s.store.Atomic(ctx, func(tx repository.TxStore) error {
		payer, err := tx.WalletForUpdate(ctx, params.Payer.WalletID)
		if err != nil {
			return err
		}
		payee, err := tx.WalletForUpdate(ctx, params.Payee.WalletID)
		if err != nil {
			return err
		}
		if payer.Currency != payee.Currency {
			return domain.ErrCurrencyMismatch
		}

		if err := payer.LockFunds(params.Amount); err != nil {
			return err
		}

		esc = domain.NewEscrow(params.Amount, payer.Currency, params.Payer, params.Payee,
			params.ReleaseSettings, params.ExpiresAt)
		for _, c := range params.Conditions {
			esc.Conditions = append(esc.Conditions, domain.Condition{
				ID:          domain.NewID(domain.PrefixCondition),
				Type:        c.Type,
				Description: c.Description,
			})
		}
		if err := esc.Activate(); err != nil {
			return err
		}

		txn := domain.NewTransaction(domain.TxTypeEscrowHold, params.Amount, payer.Currency)
		txn.Source = domain.Party{WalletID: payer.ID}
		txn.Destination = domain.Party{WalletID: payee.ID}
		txn.Description = params.Description
		if err := txn.MarkCompleted(); err != nil {
			return err
		}
		esc.TransactionID = txn.ID

		if err := tx.SaveWallet(ctx, payer); err != nil {
			return err
		}
		if err := tx.SaveTransaction(ctx, txn); err != nil {
			return err
		}
		return tx.SaveEscrow(ctx, esc)
	})
	if err != nil {
		return nil, err
	}

	escrowTransitions.WithLabelValues("active").Inc()
	s.events.Emit(ctx, events.EscrowCreated, esc)
	s.logger.Info("escrow created",
		zap.String("escrow_id", esc.ID),
		zap.String("payer", esc.Payer.UserID),
		zap.String("payee", esc.Payee.UserID),
		zap.Float64("amount", esc.Amount))
	return esc, nil
}

func (s *Service) Get(ctx context.Context, escrowID string) (*domain.Escrow, error) {
	return s.store.GetEscrow(ctx, escrowID)
}

func (s *Service) ListByParty(ctx context.Context, userID string) ([]*domain.Escrow, error) {
	return s.store.ListEscrowsByParty(ctx, userID)
}

// AddCondition appends a release criterion to a live escrow. Either party
// may add one; existing conditions are never removed.
func (s *Service) AddCondition(ctx context.Context, escrowID, userID string, input ConditionInput) (*domain.Escrow, error) {
	var esc *domain.Escrow
	err := s.store.Atomic(ctx, func(tx repository.TxStore) error {
		var err error
		esc, err = tx.EscrowForUpdate(ctx, escrowID)
		if err != nil {
			return err
		}
		if !esc.IsParty(userID) {
			return domain.ErrUnauthorizedParty
		}
		if _, err := esc.AddCondition(input.Type, input.Description); err != nil {
			return err
		}
		return tx.SaveEscrow(ctx, esc)
	})
	if err != nil {
		return nil, err
	}
	return esc, nil
}

// FulfillCondition marks one condition satisfied. Only the payee attests to
// fulfilment. When the escrow is set to auto-release and the release gate
// passes, funds move in the same call.
func (s *Service) FulfillCondition(ctx context.Context, escrowID, conditionID, userID string, evidence []string) (*domain.Escrow, error) {
	var esc *domain.Escrow
	var cascade bool
	err := s.store.Atomic(ctx, func(tx repository.TxStore) error {
		var err error
		esc, err = tx.EscrowForUpdate(ctx, escrowID)
		if err != nil {
			return err
		}
		if userID != esc.Payee.UserID {
			return domain.ErrUnauthorizedParty
		}
		if !esc.Releasable() {
			return domain.ErrEscrowNotActive
		}
		if err := esc.FulfillCondition(conditionID, userID, evidence); err != nil {
			return err
		}
		cascade = esc.ReleaseSettings.AutoRelease && esc.ConditionsSatisfied()
		return tx.SaveEscrow(ctx, esc)
	})
	if err != nil {
		return nil, err
	}

	if cascade {
		return s.release(ctx, escrowID, "auto")
	}
	return esc, nil
}

// Release moves the held funds to the payee once the release gate passes.
// Only the payer requests a manual release; with conditions still
// outstanding the escrow stays active and is returned unchanged.
func (s *Service) Release(ctx context.Context, escrowID, callerUserID string) (*domain.Escrow, error) {
	esc, err := s.store.GetEscrow(ctx, escrowID)
	if err != nil {
		return nil, err
	}
	if callerUserID != esc.Payer.UserID {
		return nil, domain.ErrUnauthorizedParty
	}
	if !esc.ConditionsSatisfied() {
		return esc, nil
	}
	return s.release(ctx, escrowID, callerUserID)
}

// release is the single fund-moving path for escrow release. The payee
// receives amount minus the escrow fee; the payer's locked balance drops by
// the full amount.
func (s *Service) release(ctx context.Context, escrowID, releasedBy string) (*domain.Escrow, error) {
	var esc *domain.Escrow
	err := s.store.Atomic(ctx, func(tx repository.TxStore) error {
		var err error
		esc, err = tx.EscrowForUpdate(ctx, escrowID)
		if err != nil {
			return err
		}
		if s.policy.FreezeDisputedEscrows && esc.HasOpenDispute() {
			return domain.ErrEscrowDisputed
		}
		if err := esc.MarkReleased(); err != nil {
			return err
		}

		payer, err := tx.WalletForUpdate(ctx, esc.Payer.WalletID)
		if err != nil {
			return err
		}
		payee, err := tx.WalletForUpdate(ctx, esc.Payee.WalletID)
		if err != nil {
			return err
		}
		if err := payer.UnlockFunds(esc.Amount); err != nil {
			return err
		}
		if err := payer.DeductFunds(esc.Amount); err != nil {
			return err
		}
		if err := payee.AddFunds(esc.NetReleaseAmount()); err != nil {
			return err
		}

		txn := domain.NewTransaction(domain.TxTypeEscrowRelease, esc.Amount, esc.Currency)
		if err := txn.SetFees(esc.Fees.TotalFee, 0); err != nil {
			return err
		}
		txn.Source = domain.Party{WalletID: payer.ID}
		txn.Destination = domain.Party{WalletID: payee.ID}
		txn.Description = "escrow release " + esc.ID
		if err := txn.MarkCompleted(); err != nil {
			return err
		}

		if err := tx.SaveWallet(ctx, payer); err != nil {
			return err
		}
		if err := tx.SaveWallet(ctx, payee); err != nil {
			return err
		}
		if err := tx.SaveTransaction(ctx, txn); err != nil {
			return err
		}
		return tx.SaveEscrow(ctx, esc)
	})
	if err != nil {
		return nil, err
	}

	escrowTransitions.WithLabelValues("released").Inc()
	s.events.Emit(ctx, events.EscrowReleased, esc)
	s.logger.Info("escrow released",
		zap.String("escrow_id", esc.ID),
		zap.String("released_by", releasedBy),
		zap.Float64("amount", esc.Amount),
		zap.Float64("net", esc.NetReleaseAmount()))
	return esc, nil
}

// Refund returns the held funds to the payer. Payer-invoked; the hold comes
// back in full unless the fee-retention policy is on.
func (s *Service) Refund(ctx context.Context, escrowID, callerUserID, reason string) (*domain.Escrow, error) {
	var esc *domain.Escrow
	err := s.store.Atomic(ctx, func(tx repository.TxStore) error {
		var err error
		esc, err = tx.EscrowForUpdate(ctx, escrowID)
		if err != nil {
			return err
		}
		if callerUserID != esc.Payer.UserID {
			return domain.ErrUnauthorizedParty
		}
		if s.policy.FreezeDisputedEscrows && esc.HasOpenDispute() {
			return domain.ErrEscrowDisputed
		}
		if err := esc.MarkRefunded(); err != nil {
			return err
		}

		payer, err := tx.WalletForUpdate(ctx, esc.Payer.WalletID)
		if err != nil {
			return err
		}
		if err := payer.UnlockFunds(esc.Amount); err != nil {
			return err
		}

		txn := domain.NewTransaction(domain.TxTypeRefund, esc.Amount, esc.Currency)
		if s.policy.ChargeFeeOnRefund {
			if err := payer.DeductFunds(esc.Fees.TotalFee); err != nil {
				return err
			}
			if err := txn.SetFees(esc.Fees.TotalFee, 0); err != nil {
				return err
			}
		}
		txn.Source = domain.Party{WalletID: esc.Payee.WalletID}
		txn.Destination = domain.Party{WalletID: payer.ID}
		txn.Description = "escrow refund " + esc.ID
		if reason != "" {
			txn.Description += ": " + reason
		}
		if err := txn.MarkCompleted(); err != nil {
			return err
		}

		if err := tx.SaveWallet(ctx, payer); err != nil {
			return err
		}
		if err := tx.SaveTransaction(ctx, txn); err != nil {
			return err
		}
		return tx.SaveEscrow(ctx, esc)
	})
	if err != nil {
		return nil, err
	}

	escrowTransitions.WithLabelValues("refunded").Inc()
	s.events.Emit(ctx, events.EscrowRefunded, esc)
	s.logger.Info("escrow refunded",
		zap.String("escrow_id", esc.ID),
		zap.String("refunded_by", callerUserID),
		zap.String("reason", reason),
		zap.Float64("amount", esc.Amount))
	return esc, nil
}

// RaiseDispute opens a dispute on behalf of a party. The escrow is flagged
// disputed; whether funds stay movable is a policy decision.
func (s *Service) RaiseDispute(ctx context.Context, escrowID, userID, reason, description string) (*domain.Escrow, error) {
	var esc *domain.Escrow
	err := s.store.Atomic(ctx, func(tx repository.TxStore) error {
		var err error
		esc, err = tx.EscrowForUpdate(ctx, escrowID)
		if err != nil {
			return err
		}
		if !esc.IsParty(userID) {
			return domain.ErrUnauthorizedParty
		}
		if _, err := esc.RaiseDispute(userID, reason, description); err != nil {
			return err
		}
		return tx.SaveEscrow(ctx, esc)
	})
	if err != nil {
		return nil, err
	}

	escrowTransitions.WithLabelValues("disputed").Inc()
	s.events.Emit(ctx, events.EscrowDisputed, esc)
	s.logger.Warn("escrow disputed",
		zap.String("escrow_id", esc.ID),
		zap.String("raised_by", userID),
		zap.String("reason", reason))
	return esc, nil
}

// AddDisputeEvidence attaches evidence to an unresolved dispute.
func (s *Service) AddDisputeEvidence(ctx context.Context, escrowID, disputeID, userID string, evidence []string) (*domain.Escrow, error) {
	var esc *domain.Escrow
	err := s.store.Atomic(ctx, func(tx repository.TxStore) error {
		var err error
		esc, err = tx.EscrowForUpdate(ctx, escrowID)
		if err != nil {
			return err
		}
		if !esc.IsParty(userID) {
			return domain.ErrUnauthorizedParty
		}
		d := esc.FindDispute(disputeID)
		if d == nil {
			return domain.ErrDisputeNotFound
		}
		if d.Status != domain.DisputeStatusOpen && d.Status != domain.DisputeStatusInvestigating {
			return domain.ErrDisputeNotFound
		}
		d.Evidence = append(d.Evidence, evidence...)
		return tx.SaveEscrow(ctx, esc)
	})
	if err != nil {
		return nil, err
	}
	return esc, nil
}

// DisputeOutcome is the arbiter's verdict.
type DisputeOutcome string

const (
	OutcomeRelease DisputeOutcome = "release"
	OutcomeRefund  DisputeOutcome = "refund"
	OutcomeDismiss DisputeOutcome = "dismiss"
)

// ResolveDispute closes a dispute with an outcome. Administrative path: the
// arbiter may force a release or refund regardless of party roles.
func (s *Service) ResolveDispute(ctx context.Context, escrowID, disputeID string, outcome DisputeOutcome) (*domain.Escrow, error) {
	var esc *domain.Escrow
	err := s.store.Atomic(ctx, func(tx repository.TxStore) error {
		var err error
		esc, err = tx.EscrowForUpdate(ctx, escrowID)
		if err != nil {
			return err
		}
		d := esc.FindDispute(disputeID)
		if d == nil {
			return domain.ErrDisputeNotFound
		}
		now := time.Now()
		d.Status = domain.DisputeStatusResolved
		d.ResolvedAt = &now
		if esc.Status == domain.EscrowStatusDisputed && !esc.HasOpenDispute() {
			esc.Status = domain.EscrowStatusActive
		}
		esc.UpdatedAt = now
		return tx.SaveEscrow(ctx, esc)
	})
	if err != nil {
		return nil, err
	}

	switch outcome {
	case OutcomeRelease:
		return s.release(ctx, escrowID, "arbitration")
	case OutcomeRefund:
		return s.forceRefund(ctx, escrowID)
	default:
		return esc, nil
	}
}

// forceRefund is the arbitration refund path: same fund movement as Refund
// without the party checks.
func (s *Service) forceRefund(ctx context.Context, escrowID string) (*domain.Escrow, error) {
	var esc *domain.Escrow
	err := s.store.Atomic(ctx, func(tx repository.TxStore) error {
		var err error
		esc, err = tx.EscrowForUpdate(ctx, escrowID)
		if err != nil {
			return err
		}
		if err := esc.MarkRefunded(); err != nil {
			return err
		}
		payer, err := tx.WalletForUpdate(ctx, esc.Payer.WalletID)
		if err != nil {
			return err
		}
		if err := payer.UnlockFunds(esc.Amount); err != nil {
			return err
		}

		txn := domain.NewTransaction(domain.TxTypeRefund, esc.Amount, esc.Currency)
		txn.Source = domain.Party{WalletID: esc.Payee.WalletID}
		txn.Destination = domain.Party{WalletID: payer.ID}
		txn.Description = "escrow arbitration refund " + esc.ID
		if err := txn.MarkCompleted(); err != nil {
			return err
		}

		if err := tx.SaveWallet(ctx, payer); err != nil {
			return err
		}
		if err := tx.SaveTransaction(ctx, txn); err != nil {
			return err
		}
		return tx.SaveEscrow(ctx, esc)
	})
	if err != nil {
		return nil, err
	}

	escrowTransitions.WithLabelValues("refunded").Inc()
	s.events.Emit(ctx, events.EscrowRefunded, esc)
	return esc, nil
}
