package router

import (
	"net/http"

	"payments-service/internal/handler"
	"payments-service/internal/middleware"
	"payments-service/internal/repository"
	"payments-service/internal/usecase/collection"
	"payments-service/internal/usecase/escrow"
	"payments-service/internal/usecase/payout"
	"payments-service/internal/usecase/settlement"
	"payments-service/internal/usecase/wallet"
	"payments-service/internal/webhook"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

type Deps struct {
	Store        repository.LedgerStore
	WalletUC     *wallet.Service
	EscrowUC     *escrow.Service
	PayoutUC     *payout.Service
	CollectionUC *collection.Service
	SettlementUC *settlement.Service
	Subs         *webhook.Subscriptions
	Notifier     *wallet.Notifier
	Redis        *redis.Client
	APIKey       string
	Logger       *zap.Logger
}

func New(d Deps) *chi.Mux {
	r := chi.NewRouter()

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-API-Key", "Idempotency-Key"},
		ExposedHeaders:   []string{"Link", "X-Idempotent-Replay"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	// ============================================================
	// Public Endpoints (health, metrics, provider callbacks)
	// ============================================================
	r.Group(func(pub chi.Router) {
		pub.Get("/health", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			w.Write([]byte("ok"))
		})
		pub.Handle("/metrics", promhttp.Handler())

		pub.Post("/callbacks/mpesa", handler.MpesaCallbackHandler(d.SettlementUC, d.Logger))
		pub.Post("/callbacks/gateway", handler.GatewayCallbackHandler(d.SettlementUC, d.Logger))
	})

	// ============================================================
	// API Endpoints (key-guarded, idempotent money movement)
	// ============================================================
	r.Route("/api/v1", func(api chi.Router) {
		api.Use(middleware.APIKey(d.APIKey))
		api.Use(middleware.Idempotency(d.Redis, d.Logger))

		api.Route("/wallets", func(wr chi.Router) {
			wr.Post("/", handler.CreateWalletHandler(d.WalletUC))
			wr.Get("/{walletID}", handler.GetWalletHandler(d.WalletUC))
			wr.Get("/{walletID}/transactions", handler.ListTransactionsHandler(d.WalletUC))
			wr.Post("/{walletID}/fund", handler.FundWalletHandler(d.WalletUC))
			wr.Post("/{walletID}/withdraw", handler.WithdrawHandler(d.WalletUC))
			wr.Post("/{walletID}/freeze", handler.FreezeWalletHandler(d.WalletUC))
			wr.Post("/{walletID}/unfreeze", handler.UnfreezeWalletHandler(d.WalletUC))
			wr.Post("/{walletID}/close", handler.CloseWalletHandler(d.WalletUC))
		})
		api.Get("/owners/{ownerID}/wallets", handler.ListWalletsHandler(d.WalletUC))
		api.Post("/transfers", handler.TransferHandler(d.WalletUC))

		api.Route("/escrows", func(er chi.Router) {
			er.Post("/", handler.CreateEscrowHandler(d.EscrowUC))
			er.Get("/{escrowID}", handler.GetEscrowHandler(d.EscrowUC))
			er.Post("/{escrowID}/conditions", handler.AddConditionHandler(d.EscrowUC))
			er.Post("/{escrowID}/conditions/{conditionID}/fulfill", handler.FulfillConditionHandler(d.EscrowUC))
			er.Post("/{escrowID}/release", handler.ReleaseEscrowHandler(d.EscrowUC))
			er.Post("/{escrowID}/refund", handler.RefundEscrowHandler(d.EscrowUC))
			er.Post("/{escrowID}/disputes", handler.RaiseDisputeHandler(d.EscrowUC))
			er.Post("/{escrowID}/disputes/{disputeID}/evidence", handler.AddDisputeEvidenceHandler(d.EscrowUC))
			er.Post("/{escrowID}/disputes/{disputeID}/resolve", handler.ResolveDisputeHandler(d.EscrowUC))
		})
		api.Get("/users/{userID}/escrows", handler.ListEscrowsHandler(d.EscrowUC))

		api.Post("/payouts", handler.CreatePayoutHandler(d.PayoutUC))
		api.Post("/payouts/quote", handler.QuoteRouteHandler())

		api.Post("/collections", handler.CreateCollectionHandler(d.CollectionUC))
		api.Get("/collections/{collectionID}", handler.GetCollectionHandler(d.CollectionUC))

		api.Get("/transactions/{transactionID}", handler.GetTransactionHandler(d.Store))
		api.Post("/transactions/{transactionID}/reconcile", handler.ReconcileTransactionHandler(d.SettlementUC))

		api.Route("/webhooks", func(hr chi.Router) {
			hr.Post("/", handler.SubscribeWebhookHandler(d.Subs))
			hr.Get("/{subscriptionID}", handler.GetWebhookSubscriptionHandler(d.Subs))
			hr.Delete("/{subscriptionID}", handler.UnsubscribeWebhookHandler(d.Subs))
		})

		api.Get("/ws/balances/{ownerID}", handler.BalanceWSHandler(d.WalletUC, d.Notifier, d.Logger))
	})

	return r
}
