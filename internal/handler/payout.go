package handler

import (
	"encoding/json"
	"net/http"

	"payments-service/internal/domain"
	"payments-service/internal/usecase/payout"
	"payments-service/pkg/response"
)

func CreatePayoutHandler(payoutUC *payout.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		type destinationBody struct {
			Type          string `json:"type"`
			WalletID      string `json:"wallet_id"`
			PhoneNumber   string `json:"phone_number"`
			AccountNumber string `json:"account_number"`
			BankCode      string `json:"bank_code"`
		}
		type requestBody struct {
			SourceWalletID string          `json:"source_wallet_id"`
			Destination    destinationBody `json:"destination"`
			Amount         *float64        `json:"amount"`
			Description    string          `json:"description"`
		}

		var body requestBody
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			response.Error(w, http.StatusBadRequest, "Invalid JSON body")
			return
		}
		if body.Amount == nil {
			response.Error(w, http.StatusBadRequest, "Missing amount")
			return
		}
		if body.SourceWalletID == "" {
			response.Error(w, http.StatusBadRequest, "Missing source_wallet_id")
			return
		}

		txn, err := payoutUC.Create(r.Context(), payout.CreateParams{
			SourceWalletID: body.SourceWalletID,
			Destination: domain.PayoutDestination{
				Type:          domain.DestinationType(body.Destination.Type),
				WalletID:      body.Destination.WalletID,
				PhoneNumber:   body.Destination.PhoneNumber,
				AccountNumber: body.Destination.AccountNumber,
				BankCode:      body.Destination.BankCode,
			},
			Amount:      *body.Amount,
			Description: body.Description,
		})
		if err != nil {
			response.Error(w, statusFor(err), err.Error())
			return
		}
		response.JSON(w, http.StatusAccepted, txn)
	}
}

// QuoteRouteHandler previews the rail, fee and settlement speed for a
// destination without moving funds.
func QuoteRouteHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		type destinationBody struct {
			Type          string `json:"type"`
			WalletID      string `json:"wallet_id"`
			PhoneNumber   string `json:"phone_number"`
			AccountNumber string `json:"account_number"`
			BankCode      string `json:"bank_code"`
		}
		type requestBody struct {
			Destination destinationBody `json:"destination"`
			Amount      *float64        `json:"amount"`
			Currency    string          `json:"currency"`
		}

		var body requestBody
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			response.Error(w, http.StatusBadRequest, "Invalid JSON body")
			return
		}
		if body.Amount == nil {
			response.Error(w, http.StatusBadRequest, "Missing amount")
			return
		}

		route := payout.SelectRail(domain.PayoutDestination{
			Type:          domain.DestinationType(body.Destination.Type),
			WalletID:      body.Destination.WalletID,
			PhoneNumber:   body.Destination.PhoneNumber,
			AccountNumber: body.Destination.AccountNumber,
			BankCode:      body.Destination.BankCode,
		}, *body.Amount, body.Currency)
		if route.Rail == domain.RailUnknown {
			response.Error(w, http.StatusUnprocessableEntity, domain.ErrUnroutableDestination.Error())
			return
		}
		response.JSON(w, http.StatusOK, route)
	}
}

