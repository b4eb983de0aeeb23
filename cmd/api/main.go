package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/spliteth/spliteth/internal/chain"
	"github.com/spliteth/spliteth/internal/config"
	"github.com/spliteth/spliteth/internal/events"
	"github.com/spliteth/spliteth/internal/identity"
	"github.com/spliteth/spliteth/internal/infra"
	"github.com/spliteth/spliteth/internal/logging"
	"github.com/spliteth/spliteth/internal/notification"
	"github.com/spliteth/spliteth/internal/routes"
	"github.com/spliteth/spliteth/internal/server"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.New(cfg.LogLevel, slog.String("app", cfg.AppName), slog.String("env", cfg.AppEnv))

	ctx := context.Background()

	var db *pgxpool.Pool
	if cfg.DatabaseURL != "" {
		db, err = infra.NewPostgresPool(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Error("connect postgres", "error", err)
			os.Exit(1)
		}
		defer db.Close()

		applied, err := infra.Migrate(ctx, db)
		if err != nil {
			logger.Error("migrate postgres", "error", err)
			os.Exit(1)
		}
		if len(applied) > 0 {
			logger.Info("migrations applied", "files", applied)
		}
	} else {
		logger.Warn("DATABASE_URL not set; activations are kept in memory")
	}

	var cache *redis.Client
	if cfg.RedisURL != "" {
		cache, err = infra.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			logger.Error("connect redis", "error", err)
			os.Exit(1)
		}
		defer func() {
			if err := cache.Close(); err != nil {
				logger.Warn("close redis", "error", err)
			}
		}()
	} else {
		logger.Warn("REDIS_URL not set; codes and rate limits are per process")
	}

	deps := routes.Deps{Cfg: cfg, DB: db, Cache: cache, Logger: logger}

	if cfg.Chain.Complete() {
		provider, client, err := connectChain(ctx, cfg, logger)
		if err != nil {
			logger.Error("connect chain", "error", err)
			os.Exit(1)
		}
		deps.Provider = provider
		deps.Chain = client
		logger.Info("chain ready",
			slog.String("provider", provider.Address().Hex()),
			slog.String("chain_id", client.ChainID().String()),
		)
	}

	notifier, err := buildNotifier(ctx, cfg, logger)
	if err != nil {
		logger.Error("build notifier", "error", err)
		os.Exit(1)
	}
	deps.Notifier = notifier

	if len(cfg.Kafka.Brokers) > 0 {
		producer, err := events.NewKafkaProducer(cfg.Kafka.Brokers)
		if err != nil {
			logger.Error("connect kafka", "error", err)
			os.Exit(1)
		}
		publisher := events.NewKafkaPublisher(producer, cfg.Kafka.Topic, logger)
		defer func() {
			if err := publisher.Close(); err != nil {
				logger.Warn("close kafka producer", "error", err)
			}
		}()
		deps.Publisher = publisher
	}

	srv, err := server.New(deps)
	if err != nil {
		logger.Error("build server", "error", err)
		os.Exit(1)
	}

	srvErrCh := make(chan error, 1)
	go func() {
		srvErrCh <- srv.Listen()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info("shutdown signal received", "signal", sig.String())
	case err := <-srvErrCh:
		if err != nil {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
		return
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownPeriod)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
		os.Exit(1)
	}

	logger.Info("server exited cleanly")
}

func connectChain(ctx context.Context, cfg config.Config, logger *slog.Logger) (*identity.Provider, *chain.Client, error) {
	provider, err := identity.ParseProvider(cfg.Chain.ProviderKey)
	if err != nil {
		return nil, nil, fmt.Errorf("PROVIDER_KEY: %w", err)
	}
	manager, err := identity.ParseAddress(cfg.Chain.SessionManagerAddress)
	if err != nil {
		return nil, nil, fmt.Errorf("SESSION_MANAGER_CONTRACT_ADDRESS: %w", err)
	}
	eth, err := infra.NewEthClient(ctx, cfg.Chain.RPCURL)
	if err != nil {
		return nil, nil, err
	}
	client, err := chain.NewClient(ctx, eth, provider, manager, chain.Options{
		ChainID: cfg.Chain.ChainID,
		Logger:  logger,
	})
	if err != nil {
		eth.Close()
		return nil, nil, err
	}
	return provider, client, nil
}

func buildNotifier(ctx context.Context, cfg config.Config, logger *slog.Logger) (notification.Notifier, error) {
	if cfg.SMS.Provider != config.SMSProviderSNS {
		return notification.NewLoggerNotifier(logger), nil
	}
	client, err := notification.NewSNSClient(ctx, notification.SNSConfig{
		Region:          cfg.SMS.AWSRegion,
		AccessKeyID:     cfg.SMS.AWSAccessKeyID,
		SecretAccessKey: cfg.SMS.AWSSecretKey,
		SenderID:        cfg.SMS.SenderID,
	})
	if err != nil {
		return nil, err
	}
	return notification.NewSNSNotifier(client, cfg.SMS.SenderID, logger), nil
}
