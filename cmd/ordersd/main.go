package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"gofalre.io/orders"
	"gofalre.io/orders/driver"
	"gofalre.io/orders/event"
	"gofalre.io/orders/order"
)

func main() {
	logger, err := zap.NewProduction()
	if err != nil {
		os.Exit(1)
	}
	defer logger.Sync()

	cfg, err := orders.LoadConfig()
	if err != nil {
		logger.Fatal("Failed to load configuration", zap.Error(err))
	}

	pool, err := driver.ConnectSQL(cfg.PostgresDSN)
	if err != nil {
		logger.Fatal("Failed to connect to postgres", zap.Error(err))
	}
	defer pool.Pool.Close()

	redisClient, err := driver.ConnectRedis(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		logger.Fatal("Failed to connect to redis", zap.Error(err))
	}
	defer redisClient.Close()

	natsConn, err := nats.Connect(cfg.NatsURL)
	if err != nil {
		logger.Fatal("Failed to connect to nats", zap.Error(err))
	}
	defer natsConn.Close()

	tm := driver.NewTransactionManager(pool.Pool, logger)

	orderRepo := order.NewRepository(pool.Pool, tm, logger)
	eventRepo, err := event.NewRepository(pool.Pool, logger)
	if err != nil {
		logger.Fatal("Failed to create event repository", zap.Error(err))
	}

	svc := orders.NewService(orderRepo, eventRepo, natsConn, redisClient, cfg, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := svc.Start(ctx); err != nil {
		logger.Fatal("Failed to start order service", zap.Error(err))
	}

	logger.Info("Order service started")

	<-ctx.Done()

	logger.Info("Shutting down order service")
	svc.Shutdown()
}
