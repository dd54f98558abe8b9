package main

import (
	"context"
	"github.com/ariefcatur/go-catalog-orders/internal/changelog"
	"github.com/ariefcatur/go-catalog-orders/internal/config"
	kafkax "github.com/ariefcatur/go-catalog-orders/internal/kafka"
	"github.com/ariefcatur/go-catalog-orders/internal/redisx"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"os"
	"os/signal"
	"syscall"
	"time"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	zl, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	log := zl.Sugar()
	defer log.Sync()

	if len(cfg.KafkaBrokers) == 0 {
		log.Fatal("KAFKA_BROKERS is required")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	svc := &changelog.Service{Log: log, ServiceName: cfg.ServiceName + "-changelog"}

	// Redis opsional, hanya untuk dedup
	if cfg.RedisAddr != "" {
		rdb, err := redisx.New(ctx, cfg.RedisAddr)
		if err != nil {
			log.Fatalf("redis: %v", err)
		}
		defer rdb.Close()
		svc.Redis = rdb
	}

	cons := kafkax.NewConsumer(cfg.KafkaBrokers, cfg.ChangelogGroup, cfg.ChangesTopic, cfg.ChangelogWorkers, log)

	go func() {
		log.Infow("changelog consumer started", "group", cfg.ChangelogGroup, "topic", cfg.ChangesTopic, "workers", cfg.ChangelogWorkers)
		if err := cons.Start(ctx, svc.HandleChange); err != nil {
			log.Errorw("consumer exit", "error", err)
			cancel()
		}
	}()

	// graceful shutdown
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sig:
	case <-ctx.Done():
	}
	log.Info("shutting down consumer...")
	cancel()
	time.Sleep(500 * time.Millisecond)
}
