package handler

import (
	"encoding/json"
	"net/http"

	"payments-service/internal/usecase/wallet"
	"payments-service/pkg/response"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// BalanceWSHandler streams balance updates for all of an owner's wallets.
// The client may send {"action":"get_balance"} to request a fresh snapshot.
func BalanceWSHandler(walletUC *wallet.Service, notifier *wallet.Notifier, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ownerID := chi.URLParam(r, "ownerID")
		if ownerID == "" {
			response.Error(w, http.StatusBadRequest, "Missing owner ID")
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			response.Error(w, http.StatusInternalServerError, "WebSocket upgrade failed")
			return
		}

		notifier.Register(ownerID, conn)
		defer notifier.Unregister(ownerID, conn)

		pushAll := func() {
			wallets, err := walletUC.ListByOwner(r.Context(), "user", ownerID)
			if err != nil {
				logger.Warn("websocket balance snapshot failed",
					zap.String("owner_id", ownerID), zap.Error(err))
				return
			}
			for _, wlt := range wallets {
				notifier.PushBalance(wlt)
			}
		}
		pushAll()

		for {
			mt, msg, err := conn.ReadMessage()
			if err != nil {
				logger.Info("websocket client disconnected",
					zap.String("owner_id", ownerID), zap.Error(err))
				return
			}
			if mt != websocket.TextMessage {
				continue
			}
			var req struct {
				Action string `json:"action"`
			}
			if err := json.Unmarshal(msg, &req); err == nil && req.Action == "get_balance" {
				pushAll()
			}
		}
	}
}
