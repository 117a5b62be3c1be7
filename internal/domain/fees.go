package domain

// Platform fee rates. Fixed constants, not merchant-configurable.
const (
	CollectionFeeRate = 0.025
	EscrowFeeRate     = 0.02
	FundingFeeRate    = 0.015
	WithdrawalFeeRate = 0.015
	TransferFeeRate   = 0.005
)
