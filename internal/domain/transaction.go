package domain

import (
	"encoding/json"
	"time"
)

type TransactionType string

const (
	TxTypeCollection       TransactionType = "collection"
	TxTypePayout           TransactionType = "payout"
	TxTypeEscrowHold       TransactionType = "escrow_hold"
	TxTypeEscrowRelease    TransactionType = "escrow_release"
	TxTypeRefund           TransactionType = "refund"
	TxTypeFee              TransactionType = "fee"
	TxTypeTransfer         TransactionType = "transfer"
	TxTypeWalletFunding    TransactionType = "wallet_funding"
	TxTypeWalletWithdrawal TransactionType = "wallet_withdrawal"
)

type TransactionStatus string

const (
	TxStatusPending    TransactionStatus = "pending"
	TxStatusProcessing TransactionStatus = "processing"
	TxStatusCompleted  TransactionStatus = "completed"
	TxStatusFailed     TransactionStatus = "failed"
	TxStatusCancelled  TransactionStatus = "cancelled"
	TxStatusReversed   TransactionStatus = "reversed"
)

const MaxTransactionRetries = 3

type Fees struct {
	ProcessingFee float64 `json:"processing_fee"`
	PlatformFee   float64 `json:"platform_fee"`
	TotalFee      float64 `json:"total_fee"`
}

// Party describes one side of a monetary movement: an internal wallet or an
// external payment-method reference, never both.
type Party struct {
	WalletID      string          `json:"wallet_id,omitempty"`
	Provider      PaymentProvider `json:"provider,omitempty"`
	AccountNumber string          `json:"account_number,omitempty"`
	PhoneNumber   string          `json:"phone_number,omitempty"`
}

// Transaction records one monetary movement. Monetary fields are mutable only
// while the transaction is in flight; once it reaches a terminal status they
// are frozen.
type Transaction struct {
	ID            string            `json:"id"`
	Type          TransactionType   `json:"type"`
	Status        TransactionStatus `json:"status"`
	Amount        float64           `json:"amount"`
	Currency      string            `json:"currency"`
	Fees          Fees              `json:"fees"`
	NetAmount     float64           `json:"net_amount"`
	Source        Party             `json:"source"`
	Destination   Party             `json:"destination"`
	ProviderRef   string            `json:"provider_ref,omitempty"`
	Description   string            `json:"description,omitempty"`
	Metadata      json.RawMessage   `json:"metadata,omitempty"`
	FailureReason string            `json:"failure_reason,omitempty"`
	RetryCount    int               `json:"retry_count"`
	NextRetryAt   *time.Time        `json:"next_retry_at,omitempty"`
	InitiatedAt   time.Time         `json:"initiated_at"`
	CompletedAt   *time.Time        `json:"completed_at,omitempty"`
	FailedAt      *time.Time        `json:"failed_at,omitempty"`
}

func NewTransaction(txType TransactionType, amount float64, currency string) *Transaction {
	return &Transaction{
		ID:          NewID(PrefixTransaction),
		Type:        txType,
		Status:      TxStatusPending,
		Amount:      amount,
		Currency:    currency,
		NetAmount:   amount,
		InitiatedAt: time.Now(),
	}
}

// IsFinal reports whether the transaction reached a terminal status.
func (t *Transaction) IsFinal() bool {
	switch t.Status {
	case TxStatusCompleted, TxStatusFailed, TxStatusCancelled, TxStatusReversed:
		return true
	}
	return false
}

// SetFees sets the fee components and recomputes TotalFee and NetAmount.
// NetAmount is always derived, never set directly.
func (t *Transaction) SetFees(processing, platform float64) error {
	if t.IsFinal() {
		return ErrTransactionFinal
	}
	t.Fees.ProcessingFee = processing
	t.Fees.PlatformFee = platform
	t.Fees.TotalFee = processing + platform
	t.NetAmount = t.Amount - t.Fees.TotalFee
	return nil
}

func (t *Transaction) MarkProcessing() error {
	if t.IsFinal() {
		return ErrTransactionFinal
	}
	t.Status = TxStatusProcessing
	return nil
}

func (t *Transaction) MarkCompleted() error {
	if t.IsFinal() {
		return ErrTransactionFinal
	}
	now := time.Now()
	t.Status = TxStatusCompleted
	t.CompletedAt = &now
	return nil
}

func (t *Transaction) MarkFailed(reason string) error {
	if t.IsFinal() {
		return ErrTransactionFinal
	}
	now := time.Now()
	t.Status = TxStatusFailed
	t.FailedAt = &now
	t.FailureReason = reason
	return nil
}

func (t *Transaction) MarkCancelled() error {
	if t.IsFinal() {
		return ErrTransactionFinal
	}
	t.Status = TxStatusCancelled
	return nil
}

// Reverse transitions a completed transaction to reversed. Administrative
// path only.
func (t *Transaction) Reverse() error {
	if t.Status != TxStatusCompleted {
		return ErrTransactionFinal
	}
	t.Status = TxStatusReversed
	return nil
}

// Retry moves a failed transaction back to pending, bounded by
// MaxTransactionRetries, and schedules the next attempt.
func (t *Transaction) Retry(backoff time.Duration) error {
	if t.Status != TxStatusFailed {
		return ErrTransactionFinal
	}
	if t.RetryCount >= MaxTransactionRetries {
		return ErrRetryLimitExceeded
	}
	t.RetryCount++
	next := time.Now().Add(backoff)
	t.NextRetryAt = &next
	t.Status = TxStatusPending
	t.FailedAt = nil
	t.FailureReason = ""
	return nil
}
