/**
 * @description
 * This is the main entry point for the ledger-service. It is responsible for
 * initializing all components of the service, including configuration, database
 * connection, schema migrations, the rate limiter, the event publisher, the core
 * application service, the reconciliation job and the HTTP server. It wires
 * everything together and starts the service.
 *
 * @dependencies
 * - github.com/joho/godotenv: For loading .env files during local development.
 * - github.com/jackc/pgx/v5: PostgreSQL driver.
 * - github.com/redis/go-redis/v9: Transfer rate limiting.
 * - internal/api, internal/app, internal/config, internal/store: Internal packages for the service.
 * - pkg/rabbitmq: Client for RabbitMQ.
 */

package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/transfa/ledger-service/internal/api"
	"github.com/transfa/ledger-service/internal/app"
	"github.com/transfa/ledger-service/internal/config"
	"github.com/transfa/ledger-service/internal/identifier"
	"github.com/transfa/ledger-service/internal/store"
	"github.com/transfa/ledger-service/migrations"
	rmrabbit "github.com/transfa/ledger-service/pkg/rabbitmq"
)

func main() {
	// A missing .env is normal outside local development.
	if err := godotenv.Load(); err != nil {
		log.Println("level=info component=bootstrap msg=\"no .env file found; using environment\"")
	}

	cfg, err := config.LoadConfig(".")
	if err != nil {
		log.Fatalf("level=fatal component=bootstrap msg=\"config load failed\" err=%v", err)
	}
	if strings.TrimSpace(cfg.DatabaseURL) == "" {
		log.Fatalf("level=fatal component=bootstrap msg=\"database url must be configured\" env=DATABASE_URL")
	}
	if strings.TrimSpace(cfg.JWKSURL) == "" {
		log.Fatalf("level=fatal component=bootstrap msg=\"jwks url must be configured\" env=JWKS_URL")
	}
	if cfg.InternalAPIKey == "" {
		log.Println("level=warn component=bootstrap msg=\"internal api key not set; internal routes disabled\" env=INTERNAL_API_KEY")
	}

	log.Printf("level=info component=bootstrap msg=\"starting ledger-service\" port=%s", cfg.ServerPort)

	if cfg.RunMigrations {
		if err := store.RunMigrations(cfg.DatabaseURL, migrations.FS); err != nil {
			log.Fatalf("level=fatal component=bootstrap msg=\"migrations failed\" err=%v", err)
		}
	}

	dbpool, err := store.OpenPool(context.Background(), cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		log.Fatalf("level=fatal component=bootstrap msg=\"database connection failed\" err=%v", err)
	}
	defer dbpool.Close()
	log.Println("level=info component=bootstrap msg=\"database connected\"")

	// Events are best effort. Without a broker the service still moves money.
	var eventProducer rmrabbit.Publisher = &rmrabbit.EventProducerFallback{}
	if cfg.RabbitMQURL == "" {
		log.Println("level=warn component=bootstrap msg=\"rabbitmq url missing; using fallback\" env=RABBITMQ_URL")
	} else if producer, err := rmrabbit.NewEventProducer(cfg.RabbitMQURL); err != nil {
		log.Printf("level=warn component=bootstrap msg=\"rabbitmq producer unavailable; using fallback\" err=%v", err)
	} else {
		eventProducer = producer
		log.Println("level=info component=bootstrap msg=\"rabbitmq producer connected\"")
	}
	defer eventProducer.Close()

	redisClient := connectRedis(cfg)
	if redisClient != nil {
		defer redisClient.Close()
	}

	repository := store.NewPostgresRepository(dbpool)
	ids := identifier.NewGenerator(
		identifier.WithChecker(repository),
		identifier.WithMaxAttempts(cfg.IdentifierMaxAttempts),
	)

	ledgerService := app.NewService(repository, ids, eventProducer, cfg.LedgerEventsExchange)
	ledgerService.ConfigureTransactionPINLockout(cfg.TransactionPINMaxAttempts, cfg.TransactionPINLockoutSeconds)
	if redisClient != nil {
		ledgerService.SetTransferQuota(app.NewRedisTransferQuota(
			redisClient,
			cfg.RedisRateLimitPrefix,
			cfg.TransferRateLimitPerMinute,
			time.Duration(cfg.TransferRateWindowSeconds)*time.Second,
		))
	}

	reconciler := app.NewReconciler(repository, eventProducer, cfg.LedgerEventsExchange,
		slog.New(slog.NewTextHandler(os.Stdout, nil)))
	if err := reconciler.Start(cfg.ReconcileSchedule); err != nil {
		log.Fatalf("level=fatal component=bootstrap msg=\"reconciler start failed\" err=%v", err)
	}

	router := api.NewRouter(api.NewHandlers(ledgerService), api.RouterOptions{
		Auth: api.AuthOptions{
			Keys:     api.NewJWKSKeySource(cfg.JWKSURL),
			Audience: cfg.JWTAudience,
			Issuer:   cfg.JWTIssuer,
		},
		InternalAPIKey: cfg.InternalAPIKey,
		AllowedOrigins: cfg.AllowedOrigins(),
	})

	serverAddr := fmt.Sprintf(":%s", cfg.ServerPort)
	server := &http.Server{
		Addr:              serverAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Printf("level=info component=http msg=\"server listening\" addr=%s", serverAddr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("level=fatal component=http msg=\"server stopped unexpectedly\" err=%v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	log.Println("level=info component=http msg=\"shutdown started\"")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Printf("level=error component=http msg=\"shutdown failed\" err=%v", err)
	}
	select {
	case <-reconciler.Stop().Done():
	case <-ctx.Done():
		log.Println("level=warn component=reconcile msg=\"reconciliation still running at shutdown\"")
	}

	log.Println("level=info component=http msg=\"shutdown complete\"")
}

// connectRedis returns nil when rate limiting is disabled or Redis is unreachable.
func connectRedis(cfg config.Config) *redis.Client {
	if cfg.TransferRateLimitPerMinute <= 0 {
		return nil
	}
	if cfg.RedisURL == "" {
		log.Println("level=warn component=bootstrap msg=\"redis url missing; transfer rate limiting disabled\" env=REDIS_URL")
		return nil
	}

	redisOptions, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		log.Printf("level=warn component=bootstrap msg=\"redis url parse failed; transfer rate limiting disabled\" err=%v", err)
		return nil
	}
	client := redis.NewClient(redisOptions)

	pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		log.Printf("level=warn component=bootstrap msg=\"redis ping failed; transfer rate limiting disabled\" err=%v", err)
		client.Close()
		return nil
	}
	log.Println("level=info component=bootstrap msg=\"redis connected\"")
	return client
}
