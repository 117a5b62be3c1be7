package domain

import "errors"

var (
	ErrInsufficientFunds        = errors.New("insufficient available funds")
	ErrInsufficientLockedFunds  = errors.New("insufficient locked funds")
	ErrInsufficientPendingFunds = errors.New("insufficient pending funds")
	ErrWalletNotFound           = errors.New("wallet not found")
	ErrWalletNotActive          = errors.New("wallet is not active")
	ErrWalletNotEmpty           = errors.New("wallet still holds funds")
	ErrEscrowNotFound           = errors.New("escrow not found")
	ErrEscrowNotActive          = errors.New("escrow is not active")
	ErrEscrowDisputed           = errors.New("escrow is under dispute")
	ErrConditionNotFound        = errors.New("escrow condition not found")
	ErrConditionFulfilled       = errors.New("escrow condition already fulfilled")
	ErrDisputeNotFound          = errors.New("dispute not found")
	ErrUnauthorizedParty        = errors.New("caller is not a party to this escrow")
	ErrUnsupportedProvider      = errors.New("unsupported payment provider")
	ErrUnroutableDestination    = errors.New("no payout rail for destination")
	ErrProviderTimeout          = errors.New("payment provider timed out")
	ErrProviderRejected         = errors.New("payment provider rejected the request")
	ErrRetryLimitExceeded       = errors.New("retry limit exceeded")
	ErrTransactionNotFound      = errors.New("transaction not found")
	ErrTransactionFinal         = errors.New("transaction is in a terminal state")
	ErrInvalidAmount            = errors.New("amount must be greater than 0")
	ErrCurrencyMismatch         = errors.New("wallet currencies do not match")
	ErrSubscriptionNotFound     = errors.New("webhook subscription not found")
)
