package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"payments-service/internal/domain"
	"payments-service/internal/usecase/escrow"
	"payments-service/pkg/response"

	"github.com/go-chi/chi/v5"
)

func CreateEscrowHandler(escrowUC *escrow.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		type conditionBody struct {
			Type        string `json:"type"`
			Description string `json:"description"`
		}
		type requestBody struct {
			PayerUserID          string          `json:"payer_user_id"`
			PayerWalletID        string          `json:"payer_wallet_id"`
			PayeeUserID          string          `json:"payee_user_id"`
			PayeeWalletID        string          `json:"payee_wallet_id"`
			Amount               *float64        `json:"amount"`
			Conditions           []conditionBody `json:"conditions"`
			AutoRelease          bool            `json:"auto_release"`
			AutoReleaseDate      *time.Time      `json:"auto_release_date"`
			RequireAllConditions *bool           `json:"require_all_conditions"`
			ExpiresAt            *time.Time      `json:"expires_at"`
			Description          string          `json:"description"`
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
		if body.PayerWalletID == "" || body.PayeeWalletID == "" {
			response.Error(w, http.StatusBadRequest, "Missing party wallet IDs")
			return
		}

		requireAll := true
		if body.RequireAllConditions != nil {
			requireAll = *body.RequireAllConditions
		}
		params := escrow.CreateParams{
			Payer:  domain.EscrowParty{UserID: body.PayerUserID, WalletID: body.PayerWalletID},
			Payee:  domain.EscrowParty{UserID: body.PayeeUserID, WalletID: body.PayeeWalletID},
			Amount: *body.Amount,
			ReleaseSettings: domain.ReleaseSettings{
				AutoRelease:          body.AutoRelease,
				AutoReleaseDate:      body.AutoReleaseDate,
				RequireAllConditions: requireAll,
			},
			ExpiresAt:   body.ExpiresAt,
			Description: body.Description,
		}
		for _, c := range body.Conditions {
			params.Conditions = append(params.Conditions, escrow.ConditionInput{
				Type:        c.Type,
				Description: c.Description,
			})
		}

		esc, err := escrowUC.Create(r.Context(), params)
		if err != nil {
			response.Error(w, statusFor(err), err.Error())
			return
		}
		response.JSON(w, http.StatusCreated, esc)
	}
}

func GetEscrowHandler(escrowUC *escrow.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		esc, err := escrowUC.Get(r.Context(), chi.URLParam(r, "escrowID"))
		if err != nil {
			response.Error(w, statusFor(err), err.Error())
			return
		}
		response.JSON(w, http.StatusOK, esc)
	}
}

func ListEscrowsHandler(escrowUC *escrow.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := chi.URLParam(r, "userID")
		if userID == "" {
			response.Error(w, http.StatusBadRequest, "Missing user ID")
			return
		}
		escrows, err := escrowUC.ListByParty(r.Context(), userID)
		if err != nil {
			response.Error(w, statusFor(err), err.Error())
			return
		}
		response.JSON(w, http.StatusOK, map[string]interface{}{"escrows": escrows})
	}
}

func AddConditionHandler(escrowUC *escrow.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		type requestBody struct {
			UserID      string `json:"user_id"`
			Type        string `json:"type"`
			Description string `json:"description"`
		}

		var body requestBody
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			response.Error(w, http.StatusBadRequest, "Invalid JSON body")
			return
		}

		esc, err := escrowUC.AddCondition(r.Context(), chi.URLParam(r, "escrowID"), body.UserID,
			escrow.ConditionInput{Type: body.Type, Description: body.Description})
		if err != nil {
			response.Error(w, statusFor(err), err.Error())
			return
		}
		response.JSON(w, http.StatusOK, esc)
	}
}

func FulfillConditionHandler(escrowUC *escrow.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		type requestBody struct {
			UserID   string   `json:"user_id"`
			Evidence []string `json:"evidence"`
		}

		var body requestBody
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			response.Error(w, http.StatusBadRequest, "Invalid JSON body")
			return
		}

		esc, err := escrowUC.FulfillCondition(r.Context(),
			chi.URLParam(r, "escrowID"), chi.URLParam(r, "conditionID"),
			body.UserID, body.Evidence)
		if err != nil {
			response.Error(w, statusFor(err), err.Error())
			return
		}
		response.JSON(w, http.StatusOK, esc)
	}
}

func ReleaseEscrowHandler(escrowUC *escrow.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		type requestBody struct {
			UserID string `json:"user_id"`
		}

		var body requestBody
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			response.Error(w, http.StatusBadRequest, "Invalid JSON body")
			return
		}

		esc, err := escrowUC.Release(r.Context(), chi.URLParam(r, "escrowID"), body.UserID)
		if err != nil {
			response.Error(w, statusFor(err), err.Error())
			return
		}
		response.JSON(w, http.StatusOK, esc)
	}
}

func RefundEscrowHandler(escrowUC *escrow.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		type requestBody struct {
			UserID string `json:"user_id"`
			Reason string `json:"reason"`
		}

		var body requestBody
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			response.Error(w, http.StatusBadRequest, "Invalid JSON body")
			return
		}

		esc, err := escrowUC.Refund(r.Context(), chi.URLParam(r, "escrowID"), body.UserID, body.Reason)
		if err != nil {
			response.Error(w, statusFor(err), err.Error())
			return
		}
		response.JSON(w, http.StatusOK, esc)
	}
}

func RaiseDisputeHandler(escrowUC *escrow.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		type requestBody struct {
			UserID      string `json:"user_id"`
			Reason      string `json:"reason"`
			Description string `json:"description"`
		}

		var body requestBody
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			response.Error(w, http.StatusBadRequest, "Invalid JSON body")
			return
		}
		if body.Reason == "" {
			response.Error(w, http.StatusBadRequest, "Missing reason")
			return
		}

		esc, err := escrowUC.RaiseDispute(r.Context(), chi.URLParam(r, "escrowID"),
			body.UserID, body.Reason, body.Description)
		if err != nil {
			response.Error(w, statusFor(err), err.Error())
			return
		}
		response.JSON(w, http.StatusOK, esc)
	}
}

func AddDisputeEvidenceHandler(escrowUC *escrow.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		type requestBody struct {
			UserID   string   `json:"user_id"`
			Evidence []string `json:"evidence"`
		}

		var body requestBody
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			response.Error(w, http.StatusBadRequest, "Invalid JSON body")
			return
		}

		esc, err := escrowUC.AddDisputeEvidence(r.Context(),
			chi.URLParam(r, "escrowID"), chi.URLParam(r, "disputeID"),
			body.UserID, body.Evidence)
		if err != nil {
			response.Error(w, statusFor(err), err.Error())
			return
		}
		response.JSON(w, http.StatusOK, esc)
	}
}

func ResolveDisputeHandler(escrowUC *escrow.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		type requestBody struct {
			Outcome string `json:"outcome"`
		}

		var body requestBody
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			response.Error(w, http.StatusBadRequest, "Invalid JSON body")
			return
		}

		esc, err := escrowUC.ResolveDispute(r.Context(),
			chi.URLParam(r, "escrowID"), chi.URLParam(r, "disputeID"),
			escrow.DisputeOutcome(body.Outcome))
		if err != nil {
			response.Error(w, statusFor(err), err.Error())
			return
		}
		response.JSON(w, http.StatusOK, esc)
	}
}
