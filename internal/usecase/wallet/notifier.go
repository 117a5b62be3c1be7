package wallet

import (
	"encoding/json"
	"sync"

	"payments-service/internal/domain"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

type wsMessage struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// Notifier pushes balance updates to connected owners over websockets.
// Push is fire-and-forget; a dead connection is dropped, never retried.
type Notifier struct {
	mu      sync.Mutex
	clients map[string]map[*websocket.Conn]bool
	logger  *zap.Logger
}

func NewNotifier(logger *zap.Logger) *Notifier {
	return &Notifier{
		clients: make(map[string]map[*websocket.Conn]bool),
		logger:  logger,
	}
}

func (n *Notifier) Register(ownerID string, conn *websocket.Conn) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.clients[ownerID] == nil {
		n.clients[ownerID] = make(map[*websocket.Conn]bool)
	}
	n.clients[ownerID][conn] = true
}

func (n *Notifier) Unregister(ownerID string, conn *websocket.Conn) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if conns, ok := n.clients[ownerID]; ok {
		delete(conns, conn)
		conn.Close()
		if len(conns) == 0 {
			delete(n.clients, ownerID)
		}
	}
}

// PushBalance sends the wallet's current balances to every connection the
// owner holds.
func (n *Notifier) PushBalance(w *domain.Wallet) {
	n.mu.Lock()
	defer n.mu.Unlock()

	payload, _ := json.Marshal(wsMessage{
		Type: "balance_update",
		Data: map[string]any{
			"wallet_id": w.ID,
			"currency":  w.Currency,
			"available": w.Available,
			"locked":    w.Locked,
			"pending":   w.Pending,
		},
	})

	for conn := range n.clients[w.OwnerID] {
		if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			n.logger.Warn("dropping dead websocket connection",
				zap.String("owner_id", w.OwnerID),
				zap.Error(err))
			conn.Close()
			delete(n.clients[w.OwnerID], conn)
		}
	}
}
