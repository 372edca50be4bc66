package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"farmart-bargain/services/bargain-service/internal/bargain"
	"farmart-bargain/services/bargain-service/internal/config"
	"farmart-bargain/services/bargain-service/internal/domain"
	"farmart-bargain/services/bargain-service/internal/handlers"
	"farmart-bargain/services/bargain-service/internal/middleware"
	"farmart-bargain/services/bargain-service/internal/orderbridge"
	"farmart-bargain/services/bargain-service/internal/repository"
	"farmart-bargain/services/bargain-service/internal/timeline"
	"farmart-bargain/shared/kafka"

	"github.com/redis/go-redis/v9"
)

type stores struct {
	sessions domain.SessionRepository
	messages domain.MessageRepository
	orders   domain.OrderRepository
	listings domain.ListingRepository
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	logger, closeLog := config.SetupLogger(cfg.LogFile, cfg.LogLevel)
	defer closeLog()
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Storage: Postgres with a Redis session cache, or everything in memory
	var (
		st  stores
		rdb *redis.Client
		db  *sql.DB
	)
	switch cfg.Store {
	case "postgres":
		db, err = repository.OpenPostgres(ctx, cfg.PostgresURL)
		if err != nil {
			fatal(logger, "failed to connect to database", err)
		}
		defer db.Close()
		if err := repository.Migrate(ctx, db); err != nil {
			fatal(logger, "failed to migrate database", err)
		}

		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			fatal(logger, "failed to connect to redis", err)
		}

		st = stores{
			sessions: repository.NewCachedSessionRepository(repository.NewPostgresSessionRepo(db), rdb, cfg.CacheTTL),
			messages: repository.NewPostgresMessageRepo(db),
			orders:   repository.NewPostgresOrderRepo(db),
			listings: repository.NewPostgresListingRepo(db),
		}
	default:
		mem := repository.NewMemoryStore()
		st = stores{sessions: mem.Sessions(), messages: mem.Messages(), orders: mem.Orders(), listings: mem.Listings()}
		logger.Warn("using in-memory store; negotiations are lost on restart")
	}

	// Events
	var events domain.EventPublisher = domain.NopPublisher{}
	if len(cfg.KafkaBrokers) > 0 {
		kafkaProd, err := kafka.NewProducer(cfg.KafkaBrokers, logger)
		if err != nil {
			fatal(logger, "failed to start kafka producer", err)
		}
		defer kafkaProd.Close()
		events = kafkaProd
	}

	tl := timeline.New(st.sessions, st.messages, cfg.MaxMessageLength)
	svc, err := bargain.NewService(st.sessions, st.listings, tl, events, cfg.OfferPolicy(), logger)
	if err != nil {
		fatal(logger, "failed to build bargain service", err)
	}
	bridge := orderbridge.New(st.sessions, st.orders, st.listings, tl, events, logger)

	// Auth: tokens issued by the auth service live in Redis; dev tokens
	// override that for local runs
	var verifier middleware.TokenVerifier = middleware.StaticTokenVerifier(cfg.DevTokens)
	if rdb != nil && len(cfg.DevTokens) == 0 {
		verifier = middleware.NewRedisTokenVerifier(rdb)
	}
	if rdb == nil && len(cfg.DevTokens) == 0 {
		logger.Warn("no token source configured; every authenticated request will be refused")
	}
	var extra []handlers.Middleware
	if rdb != nil && cfg.RateLimit > 0 {
		extra = append(extra, middleware.RateLimit(rdb, cfg.RateLimit, cfg.RateWindow, logger))
	}

	mux := handlers.Routes(
		&handlers.BargainHandler{Service: svc, Logger: logger},
		&handlers.PaymentHandler{Bridge: bridge, CallbackToken: cfg.CallbackToken, Logger: logger},
		middleware.Auth(verifier, logger),
		extra...,
	)

	// Setup HTTP server with graceful shutdown
	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           middleware.Logging(logger)(mux),
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Start background processors
	go startSettlementChecker(ctx, bridge, cfg.SettleInterval, logger)

	if len(cfg.KafkaBrokers) > 0 {
		consumer, err := kafka.NewPaymentConsumer(cfg.KafkaBrokers, cfg.ConsumerGroup, cfg.PaymentTopic, bridge.ApplyPaymentEvent, logger)
		if err != nil {
			fatal(logger, "failed to start payment consumer", err)
		}
		defer consumer.Close()
		go consumer.Run(ctx)
	}

	go func() {
		logger.Info("starting bargain service", "addr", cfg.HTTPAddr, "store", cfg.Store)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			fatal(logger, "HTTP server error", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown failed", "error", err)
		return
	}
	logger.Info("server exited properly")
}

// startSettlementChecker completes sessions whose orders were paid while
// the completion write was lost, e.g. to a crash between the two updates.
func startSettlementChecker(ctx context.Context, bridge *orderbridge.Bridge, interval time.Duration, logger *slog.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			runCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
			settled, err := bridge.SettlePaidOrders(runCtx, 100)
			cancel()
			if err != nil {
				logger.Error("error finding paid orders", "error", err)
				continue
			}
			if settled > 0 {
				logger.Info("settled paid orders", "count", settled)
			}
		}
	}
}

func fatal(logger *slog.Logger, msg string, err error) {
	logger.Error(msg, "error", err)
	os.Exit(1)
}
