package payout

import "payments-service/internal/domain"

const (
	mpesaB2CLimit      = 250_000
	mpesaB2CFeeRate    = 0.015
	mpesaCorporateFee  = 100
	pesalinkLimit      = 999_999
	pesalinkFee        = 50
	rtgsFee            = 150
)

// SelectRail decides the outbound rail, fee and settlement speed for a
// payout destination. Pure and deterministic: identical inputs always yield
// the identical decision.
func SelectRail(dest domain.PayoutDestination, amount float64, currency string) domain.RouteDecision {
	switch dest.Type {
	case domain.DestinationWallet:
		return domain.RouteDecision{Rail: domain.RailInternal, Fee: 0, Instant: true}
	case domain.DestinationMpesa:
		if amount <= mpesaB2CLimit {
			return domain.RouteDecision{Rail: domain.RailMpesaB2C, Fee: mpesaB2CFeeRate * amount, Instant: true}
		}
		return domain.RouteDecision{Rail: domain.RailMpesaCorporate, Fee: mpesaCorporateFee, Instant: false}
	case domain.DestinationBank:
		if currency == "KES" && amount < pesalinkLimit {
			return domain.RouteDecision{Rail: domain.RailPesalink, Fee: pesalinkFee, Instant: true}
		}
		return domain.RouteDecision{Rail: domain.RailRTGS, Fee: rtgsFee, Instant: false}
	default:
		// Not a usable route; callers must treat it as an error.
		return domain.RouteDecision{Rail: domain.RailUnknown, Fee: 0, Instant: false}
	}
}
