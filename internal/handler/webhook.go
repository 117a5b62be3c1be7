package handler

import (
	"encoding/json"
	"net/http"
	"strings"

	"payments-service/internal/webhook"
	"payments-service/pkg/response"

	"github.com/go-chi/chi/v5"
)

func SubscribeWebhookHandler(subs *webhook.Subscriptions) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		type requestBody struct {
			OwnerID string   `json:"owner_id"`
			URL     string   `json:"url"`
			Events  []string `json:"events"`
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
		if !strings.HasPrefix(body.URL, "http://") && !strings.HasPrefix(body.URL, "https://") {
			response.Error(w, http.StatusBadRequest, "URL must be http or https")
			return
		}

		sub, secret, err := subs.Subscribe(r.Context(), body.OwnerID, body.URL, body.Events)
		if err != nil {
			response.Error(w, statusFor(err), err.Error())
			return
		}
		response.JSON(w, http.StatusCreated, map[string]interface{}{
			"subscription": sub,
			"secret":       secret,
		})
	}
}

func GetWebhookSubscriptionHandler(subs *webhook.Subscriptions) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sub, err := subs.Get(r.Context(), chi.URLParam(r, "subscriptionID"))
		if err != nil {
			response.Error(w, statusFor(err), err.Error())
			return
		}
		response.JSON(w, http.StatusOK, sub)
	}
}

func UnsubscribeWebhookHandler(subs *webhook.Subscriptions) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := subs.Unsubscribe(r.Context(), chi.URLParam(r, "subscriptionID")); err != nil {
			response.Error(w, statusFor(err), err.Error())
			return
		}
		response.JSON(w, http.StatusOK, map[string]string{"message": "Subscription deactivated"})
	}
}
