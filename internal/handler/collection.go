package handler

import (
	"encoding/json"
	"net/http"

	"payments-service/internal/domain"
	"payments-service/internal/usecase/collection"
	"payments-service/pkg/response"

	"github.com/go-chi/chi/v5"
)

func CreateCollectionHandler(collectionUC *collection.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		type requestBody struct {
			MerchantWalletID string   `json:"merchant_wallet_id"`
			Amount           *float64 `json:"amount"`
			Provider         string   `json:"provider"`
			PhoneNumber      string   `json:"phone_number"`
			AccountNumber    string   `json:"account_number"`
			BankCode         string   `json:"bank_code"`
			Description      string   `json:"description"`
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
		if body.MerchantWalletID == "" {
			response.Error(w, http.StatusBadRequest, "Missing merchant_wallet_id")
			return
		}

		txn, err := collectionUC.Create(r.Context(), collection.CreateParams{
			MerchantWalletID: body.MerchantWalletID,
			Amount:           *body.Amount,
			Provider:         domain.PaymentProvider(body.Provider),
			PhoneNumber:      body.PhoneNumber,
			AccountNumber:    body.AccountNumber,
			BankCode:         body.BankCode,
			Description:      body.Description,
		})
		if err != nil {
			response.Error(w, statusFor(err), err.Error())
			return
		}
		response.JSON(w, http.StatusAccepted, txn)
	}
}

func GetCollectionHandler(collectionUC *collection.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		txn, err := collectionUC.Get(r.Context(), chi.URLParam(r, "collectionID"))
		if err != nil {
			response.Error(w, statusFor(err), err.Error())
			return
		}
		response.JSON(w, http.StatusOK, txn)
	}
}
