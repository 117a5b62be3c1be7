package handler

import (
	"encoding/json"
	"net/http"
	"strconv"

	"payments-service/internal/domain"
	"payments-service/internal/usecase/wallet"
	"payments-service/pkg/response"

	"github.com/go-chi/chi/v5"
)

func CreateWalletHandler(walletUC *wallet.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		type requestBody struct {
			OwnerType string `json:"owner_type"`
			OwnerID   string `json:"owner_id"`
			Currency  string `json:"currency"`
		}

		var body requestBody
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			response.Error(w, http.StatusBadRequest, "Invalid JSON body")
			return
		}
		if body.OwnerID == "" {
			response.Error(w, http.StatusBadRequest, "Missing owner_id")
			return
		}
		if body.Currency == "" {
			response.Error(w, http.StatusBadRequest, "Missing currency")
			return
		}
		if body.OwnerType == "" {
			body.OwnerType = string(domain.OwnerTypeUser)
		}

		wlt, err := walletUC.GetOrCreate(r.Context(), domain.OwnerType(body.OwnerType), body.OwnerID, body.Currency)
		if err != nil {
			response.Error(w, statusFor(err), err.Error())
			return
		}
		response.JSON(w, http.StatusOK, wlt)
	}
}

func GetWalletHandler(walletUC *wallet.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		walletID := chi.URLParam(r, "walletID")
		if walletID == "" {
			response.Error(w, http.StatusBadRequest, "Missing wallet ID")
			return
		}
		wlt, err := walletUC.Get(r.Context(), walletID)
		if err != nil {
			response.Error(w, statusFor(err), err.Error())
			return
		}
		response.JSON(w, http.StatusOK, wlt)
	}
}

func ListWalletsHandler(walletUC *wallet.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ownerID := chi.URLParam(r, "ownerID")
		ownerType := r.URL.Query().Get("owner_type")
		if ownerType == "" {
			ownerType = string(domain.OwnerTypeUser)
		}
		wallets, err := walletUC.ListByOwner(r.Context(), domain.OwnerType(ownerType), ownerID)
		if err != nil {
			response.Error(w, statusFor(err), err.Error())
			return
		}
		response.JSON(w, http.StatusOK, map[string]interface{}{"wallets": wallets})
	}
}

func ListTransactionsHandler(walletUC *wallet.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		walletID := chi.URLParam(r, "walletID")
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

		txns, err := walletUC.ListTransactions(r.Context(), walletID, limit, offset)
		if err != nil {
			response.Error(w, statusFor(err), err.Error())
			return
		}
		response.JSON(w, http.StatusOK, map[string]interface{}{
			"transactions": txns,
			"limit":        limit,
			"offset":       offset,
		})
	}
}

func FundWalletHandler(walletUC *wallet.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		type requestBody struct {
			Amount        *float64 `json:"amount"`
			Provider      string   `json:"provider"`
			PhoneNumber   string   `json:"phone_number"`
			AccountNumber string   `json:"account_number"`
			BankCode      string   `json:"bank_code"`
			Description   string   `json:"description"`
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

		txn, err := walletUC.Fund(r.Context(), wallet.FundParams{
			WalletID:      chi.URLParam(r, "walletID"),
			Amount:        *body.Amount,
			Provider:      domain.PaymentProvider(body.Provider),
			PhoneNumber:   body.PhoneNumber,
			AccountNumber: body.AccountNumber,
			BankCode:      body.BankCode,
			Description:   body.Description,
		})
		if err != nil {
			response.Error(w, statusFor(err), err.Error())
			return
		}
		response.JSON(w, http.StatusAccepted, txn)
	}
}

func WithdrawHandler(walletUC *wallet.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		type requestBody struct {
			Amount        *float64 `json:"amount"`
			Provider      string   `json:"provider"`
			PhoneNumber   string   `json:"phone_number"`
			AccountNumber string   `json:"account_number"`
			BankCode      string   `json:"bank_code"`
			Description   string   `json:"description"`
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

		txn, err := walletUC.Withdraw(r.Context(), wallet.WithdrawParams{
			WalletID:      chi.URLParam(r, "walletID"),
			Amount:        *body.Amount,
			Provider:      domain.PaymentProvider(body.Provider),
			PhoneNumber:   body.PhoneNumber,
			AccountNumber: body.AccountNumber,
			BankCode:      body.BankCode,
			Description:   body.Description,
		})
		if err != nil {
			response.Error(w, statusFor(err), err.Error())
			return
		}
		response.JSON(w, http.StatusAccepted, txn)
	}
}

func TransferHandler(walletUC *wallet.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		type requestBody struct {
			SourceWalletID      string   `json:"source_wallet_id"`
			DestinationWalletID string   `json:"destination_wallet_id"`
			Amount              *float64 `json:"amount"`
			Description         string   `json:"description"`
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
		if body.SourceWalletID == "" || body.DestinationWalletID == "" {
			response.Error(w, http.StatusBadRequest, "Missing wallet IDs")
			return
		}

		txn, err := walletUC.Transfer(r.Context(), wallet.TransferParams{
			SourceWalletID:      body.SourceWalletID,
			DestinationWalletID: body.DestinationWalletID,
			Amount:              *body.Amount,
			Description:         body.Description,
		})
		if err != nil {
			response.Error(w, statusFor(err), err.Error())
			return
		}
		response.JSON(w, http.StatusOK, txn)
	}
}

func FreezeWalletHandler(walletUC *wallet.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		wlt, err := walletUC.Freeze(r.Context(), chi.URLParam(r, "walletID"))
		if err != nil {
			response.Error(w, statusFor(err), err.Error())
			return
		}
		response.JSON(w, http.StatusOK, wlt)
	}
}

func UnfreezeWalletHandler(walletUC *wallet.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		wlt, err := walletUC.Unfreeze(r.Context(), chi.URLParam(r, "walletID"))
		if err != nil {
			response.Error(w, statusFor(err), err.Error())
			return
		}
		response.JSON(w, http.StatusOK, wlt)
	}
}

func CloseWalletHandler(walletUC *wallet.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		wlt, err := walletUC.Close(r.Context(), chi.URLParam(r, "walletID"))
		if err != nil {
			response.Error(w, statusFor(err), err.Error())
			return
		}
		response.JSON(w, http.StatusOK, wlt)
	}
}
