// Package events carries ledger state changes to interested parties:
// webhook subscribers and the Kafka event stream. Emission is best-effort
// and never required for transactional correctness.
package events

import "context"

const (
	TransactionCompleted = "transaction.completed"
	TransactionFailed    = "transaction.failed"
	WalletCreated        = "wallet.created"
	WalletFunded         = "wallet.funded"
	WalletFrozen         = "wallet.frozen"
	EscrowCreated        = "escrow.created"
	EscrowReleased       = "escrow.released"
	EscrowRefunded       = "escrow.refunded"
	EscrowDisputed       = "escrow.disputed"
	PayoutCompleted      = "payout.completed"
	PayoutFailed         = "payout.failed"
)

type Emitter interface {
	Emit(ctx context.Context, event string, payload any)
}

// Fanout relays one event to several sinks.
type Fanout []Emitter

func (f Fanout) Emit(ctx context.Context, event string, payload any) {
	for _, sink := range f {
		sink.Emit(ctx, event, payload)
	}
}

// Nop discards events. Used where no sinks are configured.
type Nop struct{}

func (Nop) Emit(context.Context, string, any) {}
