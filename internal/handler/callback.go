package handler

import (
	"encoding/json"
	"net/http"

	"payments-service/internal/usecase/settlement"
	"payments-service/pkg/response"

	"go.uber.org/zap"
)

// MpesaCallbackHandler accepts both Daraja callback shapes: STK push results
// arrive under Body.stkCallback, B2C/B2B results under Result. ResultCode 0
// means the money moved.
func MpesaCallbackHandler(settlementUC *settlement.Service, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload struct {
			Body struct {
				StkCallback struct {
					CheckoutRequestID string `json:"CheckoutRequestID"`
					ResultCode        int    `json:"ResultCode"`
					ResultDesc        string `json:"ResultDesc"`
				} `json:"stkCallback"`
			} `json:"Body"`
			Result struct {
				ConversationID string `json:"ConversationID"`
				ResultCode     int    `json:"ResultCode"`
				ResultDesc     string `json:"ResultDesc"`
			} `json:"Result"`
		}
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			response.Error(w, http.StatusBadRequest, "Invalid callback body")
			return
		}

		result := settlement.CallbackResult{
			ProviderRef: payload.Body.StkCallback.CheckoutRequestID,
			Success:     payload.Body.StkCallback.ResultCode == 0,
			Message:     payload.Body.StkCallback.ResultDesc,
		}
		if result.ProviderRef == "" {
			result = settlement.CallbackResult{
				ProviderRef: payload.Result.ConversationID,
				Success:     payload.Result.ResultCode == 0,
				Message:     payload.Result.ResultDesc,
			}
		}
		if result.ProviderRef == "" {
			response.Error(w, http.StatusBadRequest, "Missing provider reference")
			return
		}

		if _, err := settlementUC.HandleCallback(r.Context(), result); err != nil {
			logger.Error("mpesa callback settlement failed",
				zap.String("provider_ref", result.ProviderRef),
				zap.Error(err))
			response.Error(w, statusFor(err), err.Error())
			return
		}

		// Daraja expects this exact acknowledgement shape.
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(map[string]any{"ResultCode": 0, "ResultDesc": "Accepted"})
	}
}

// GatewayCallbackHandler settles card and bank results. Both gateways post
// the same envelope: reference, status, message.
func GatewayCallbackHandler(settlementUC *settlement.Service, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload struct {
			Reference string `json:"reference"`
			Status    string `json:"status"`
			Message   string `json:"message"`
		}
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			response.Error(w, http.StatusBadRequest, "Invalid callback body")
			return
		}
		if payload.Reference == "" {
			response.Error(w, http.StatusBadRequest, "Missing reference")
			return
		}

		success := payload.Status == "settled" || payload.Status == "succeeded"
		if _, err := settlementUC.HandleCallback(r.Context(), settlement.CallbackResult{
			ProviderRef: payload.Reference,
			Success:     success,
			Message:     payload.Message,
		}); err != nil {
			logger.Error("gateway callback settlement failed",
				zap.String("provider_ref", payload.Reference),
				zap.Error(err))
			response.Error(w, statusFor(err), err.Error())
			return
		}
		response.JSON(w, http.StatusOK, map[string]string{"received": payload.Reference})
	}
}
