package main

import (
	"context"
	"github.com/ariefcatur/go-catalog-orders/internal/app"
	"github.com/ariefcatur/go-catalog-orders/internal/catalog"
	"github.com/ariefcatur/go-catalog-orders/internal/config"
	"github.com/ariefcatur/go-catalog-orders/internal/events"
	kafkax "github.com/ariefcatur/go-catalog-orders/internal/kafka"
	"github.com/ariefcatur/go-catalog-orders/internal/memory"
	"github.com/ariefcatur/go-catalog-orders/internal/metrics"
	"github.com/ariefcatur/go-catalog-orders/internal/orders"
	"github.com/ariefcatur/go-catalog-orders/internal/postgres"
	"github.com/ariefcatur/go-catalog-orders/internal/redisx"
	"github.com/ariefcatur/go-catalog-orders/internal/store"
	"github.com/ariefcatur/go-catalog-orders/internal/tasks"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	log := newLogger(cfg.AppEnv)
	defer log.Sync()

	decimal.MarshalJSONWithoutQuotes = true

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Storage
	var driver store.Driver
	switch cfg.StorageDriver {
	case "memory":
		log.Warn("using in-memory storage, data is lost on restart")
		driver = memory.NewDriver()
	default:
		if cfg.MigrateOnStart {
			if err := postgres.Migrate(cfg.PostgresDSN); err != nil {
				log.Fatalf("migrate: %v", err)
			}
		}
		db, err := postgres.Connect(ctx, cfg.PostgresDSN, postgres.PoolConfig{
			MaxConns: int32(cfg.PGMaxConns),
			MinConns: int32(cfg.PGMinConns),
		})
		if err != nil {
			log.Fatalf("db connect: %v", err)
		}
		defer db.Close()
		driver = &postgres.DocumentDriver{DB: db}
	}

	// Cache + lock
	var (
		cache  store.Cache   = memory.NewCache()
		locker orders.Locker = memory.NewLocker()
	)
	if cfg.RedisAddr != "" {
		rdb, err := redisx.New(ctx, cfg.RedisAddr)
		if err != nil {
			log.Fatalf("redis: %v", err)
		}
		defer rdb.Close()
		cache = &redisx.Cache{RDB: rdb, Prefix: cfg.RedisPrefix}
		locker = &redisx.Locker{RDB: rdb, Log: log}
	}

	// Change bus
	var (
		bus  events.Publisher = &memory.Bus{Log: log}
		prod *kafkax.Producer
	)
	if len(cfg.KafkaBrokers) > 0 {
		prod = kafkax.NewProducer(cfg.KafkaBrokers, cfg.ChangesTopic, 1024, log)
		prod.Start(ctx)
		bus = &kafkax.Bus{Producer: prod, Service: cfg.ServiceName}
	}

	// Side effects
	queue := tasks.NewQueue(cfg.TaskWorkers, 1024, log)
	queue.Start(ctx)

	a := app.New(store.Deps{
		Driver:    driver,
		Cache:     cache,
		Bus:       bus,
		Tasks:     queue,
		Log:       log,
		Tenant:    cfg.Tenant,
		PublicDir: cfg.PublicDir,
		TTL:       cfg.CacheTTL,
	}, app.Options{
		Origin:       catalog.Point{Lat: cfg.ShopLat, Lng: cfg.ShopLng},
		DebitBalance: cfg.DebitBalance,
		Locker:       locker,
		JWTSecret:    []byte(cfg.JWTSecret),
		Metrics:      metrics.NewServerMetrics(cfg.ServiceName, nil),
	})

	go a.VoucherService.RunSweeper(ctx, cfg.VoucherSweepInterval)

	// HTTP server
	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: a.Routes()}

	// graceful shutdown
	go func() {
		log.Infof("HTTP listening at %s", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	// wait signal
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	log.Info("shutting down...")

	ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel2()
	_ = srv.Shutdown(ctx2)
	queue.Close() // selesaikan task yang masih antri
	if prod != nil {
		prod.Close()      // tutup inbox -> flush & close writer
		prod.WaitClosed() // drain
	}
	cancel()
}

func newLogger(env string) *zap.SugaredLogger {
	var (
		l   *zap.Logger
		err error
	)
	if env == "development" {
		l, err = zap.NewDevelopment()
	} else {
		l, err = zap.NewProduction()
	}
	if err != nil {
		panic(err)
	}
	return l.Sugar()
}
