package server

import (
	"context"
	"net/http"
	"strings"
	"time"

	"payments-service/internal/config"
	"payments-service/internal/events"
	"payments-service/internal/provider"
	"payments-service/internal/provider/bank"
	"payments-service/internal/provider/card"
	"payments-service/internal/provider/mpesa"
	"payments-service/internal/repository"
	"payments-service/internal/router"
	"payments-service/internal/usecase/collection"
	"payments-service/internal/usecase/escrow"
	"payments-service/internal/usecase/payout"
	"payments-service/internal/usecase/settlement"
	"payments-service/internal/usecase/wallet"
	"payments-service/internal/webhook"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

type Server struct {
	httpServer *http.Server
	db         *pgxpool.Pool
	kafka      *events.KafkaPublisher
	worker     *webhook.Worker
	workerStop context.CancelFunc
	logger     *zap.Logger
}

func New(cfg config.AppConfig, logger *zap.Logger) (*Server, error) {
	db, err := config.ConnectDB(cfg)
	if err != nil {
		return nil, err
	}

	// Redis is optional: without it idempotency degrades to pass-through.
	var rdb *redis.Client
	if cfg.RedisAddr != "" {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPass,
			DB:       0,
		})
		pingCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		if err := rdb.Ping(pingCtx).Err(); err != nil {
			logger.Warn("redis unreachable, idempotency disabled", zap.Error(err))
			rdb = nil
		}
		cancel()
	}

	store := repository.NewLedgerStore(db)
	webhookRepo := repository.NewWebhookRepository(db)

	mpesaProvider := mpesa.New(mpesa.Config{
		BaseURL:        cfg.MpesaBaseURL,
		ConsumerKey:    cfg.MpesaConsumerKey,
		ConsumerSecret: cfg.MpesaConsumerSecret,
		PassKey:        cfg.MpesaPassKey,
		ShortCode:      cfg.MpesaShortCode,
		CallbackURL:    cfg.MpesaCallbackURL,
	}, logger)
	cardProvider := card.New(card.Config{
		BaseURL:     cfg.CardBaseURL,
		SecretKey:   cfg.CardSecretKey,
		CallbackURL: cfg.CardCallbackURL,
	}, logger)
	bankProvider := bank.New(bank.Config{
		BaseURL:     cfg.BankBaseURL,
		APIKey:      cfg.BankAPIKey,
		CallbackURL: cfg.BankCallbackURL,
	}, logger)
	providers := provider.NewRegistry(mpesaProvider, cardProvider, bankProvider)

	dispatcher := webhook.NewDispatcher(webhookRepo, logger)
	sinks := events.Fanout{dispatcher}

	var kafkaPub *events.KafkaPublisher
	if cfg.KafkaBrokers != "" {
		writer := &kafkago.Writer{
			Addr:     kafkago.TCP(strings.Split(cfg.KafkaBrokers, ",")...),
			Topic:    cfg.KafkaTopic,
			Balancer: &kafkago.LeastBytes{},
		}
		kafkaPub = events.NewKafkaPublisher(writer, logger)
		sinks = append(sinks, kafkaPub)
	}

	notifier := wallet.NewNotifier(logger)
	walletUC := wallet.New(store, providers, sinks, notifier, logger)
	escrowUC := escrow.New(store, sinks, escrow.Policy{
		ChargeFeeOnRefund:     cfg.EscrowChargeFeeOnRefund,
		FreezeDisputedEscrows: cfg.EscrowFreezeDisputed,
	}, logger)
	payoutUC := payout.New(store, providers, sinks, logger)
	collectionUC := collection.New(store, providers, sinks, logger)
	settlementUC := settlement.New(store, providers, sinks, logger)
	subs := webhook.NewSubscriptions(webhookRepo)

	worker := webhook.NewWorker(webhookRepo, logger)
	workerCtx, workerStop := context.WithCancel(context.Background())
	go worker.Run(workerCtx)

	r := router.New(router.Deps{
		Store:        store,
		WalletUC:     walletUC,
		EscrowUC:     escrowUC,
		PayoutUC:     payoutUC,
		CollectionUC: collectionUC,
		SettlementUC: settlementUC,
		Subs:         subs,
		Notifier:     notifier,
		Redis:        rdb,
		APIKey:       cfg.APIKey,
		Logger:       logger,
	})

	return &Server{
		httpServer: &http.Server{
			Addr:         cfg.HTTPAddr,
			Handler:      r,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  30 * time.Second,
		},
		db:         db,
		kafka:      kafkaPub,
		worker:     worker,
		workerStop: workerStop,
		logger:     logger,
	}, nil
}

func (s *Server) ListenAndServe() error {
	return s.httpServer.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.workerStop()
	if s.kafka != nil {
		if err := s.kafka.Close(); err != nil {
			s.logger.Warn("kafka writer close failed", zap.Error(err))
		}
	}
	defer s.db.Close()
	return s.httpServer.Shutdown(ctx)
}
