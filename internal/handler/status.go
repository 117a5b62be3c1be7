package handler

import (
	"errors"
	"net/http"

	"payments-service/internal/domain"
)

// statusFor maps domain errors onto HTTP status codes so handlers stay thin.
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrWalletNotFound),
		errors.Is(err, domain.ErrEscrowNotFound),
		errors.Is(err, domain.ErrTransactionNotFound),
		errors.Is(err, domain.ErrConditionNotFound),
		errors.Is(err, domain.ErrDisputeNotFound),
		errors.Is(err, domain.ErrSubscriptionNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrUnauthorizedParty):
		return http.StatusForbidden
	case errors.Is(err, domain.ErrInsufficientFunds),
		errors.Is(err, domain.ErrInsufficientLockedFunds),
		errors.Is(err, domain.ErrInsufficientPendingFunds),
		errors.Is(err, domain.ErrWalletNotActive),
		errors.Is(err, domain.ErrWalletNotEmpty),
		errors.Is(err, domain.ErrEscrowNotActive),
		errors.Is(err, domain.ErrEscrowDisputed),
		errors.Is(err, domain.ErrConditionFulfilled),
		errors.Is(err, domain.ErrTransactionFinal),
		errors.Is(err, domain.ErrRetryLimitExceeded):
		return http.StatusConflict
	case errors.Is(err, domain.ErrInvalidAmount),
		errors.Is(err, domain.ErrCurrencyMismatch),
		errors.Is(err, domain.ErrUnsupportedProvider),
		errors.Is(err, domain.ErrUnroutableDestination):
		return http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrProviderTimeout):
		return http.StatusGatewayTimeout
	case errors.Is(err, domain.ErrProviderRejected):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
