package domain

type PaymentProvider string

const (
	ProviderMpesa PaymentProvider = "mpesa"
	ProviderCard  PaymentProvider = "card"
	ProviderBank  PaymentProvider = "bank"
)

type DestinationType string

const (
	DestinationWallet DestinationType = "wallet"
	DestinationMpesa  DestinationType = "mpesa"
	DestinationBank   DestinationType = "bank"
)

// PayoutDestination is where an outbound transfer lands.
type PayoutDestination struct {
	Type          DestinationType `json:"type"`
	WalletID      string          `json:"wallet_id,omitempty"`
	PhoneNumber   string          `json:"phone_number,omitempty"`
	AccountNumber string          `json:"account_number,omitempty"`
	BankCode      string          `json:"bank_code,omitempty"`
}

type PayoutRail string

const (
	RailInternal       PayoutRail = "internal"
	RailMpesaB2C       PayoutRail = "mpesa_b2c"
	RailMpesaCorporate PayoutRail = "mpesa_corporate"
	RailPesalink       PayoutRail = "pesalink"
	RailRTGS           PayoutRail = "rtgs"
	RailUnknown        PayoutRail = "unknown"
)

// RouteDecision is the payout router's verdict for a destination. It is
// recorded on the transaction metadata for audit but not persisted on its own.
type RouteDecision struct {
	Rail    PayoutRail `json:"rail"`
	Fee     float64    `json:"fee"`
	Instant bool       `json:"instant"`
}
