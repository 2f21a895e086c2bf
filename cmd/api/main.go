package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ariefcatur/go-shop-orders/internal/auth"
	"github.com/ariefcatur/go-shop-orders/internal/catalog"
	"github.com/ariefcatur/go-shop-orders/internal/config"
	"github.com/ariefcatur/go-shop-orders/internal/describe"
	"github.com/ariefcatur/go-shop-orders/internal/httpx"
	kafkax "github.com/ariefcatur/go-shop-orders/internal/kafka"
	"github.com/ariefcatur/go-shop-orders/internal/logx"
	"github.com/ariefcatur/go-shop-orders/internal/memstore"
	"github.com/ariefcatur/go-shop-orders/internal/orders"
	"github.com/ariefcatur/go-shop-orders/internal/postgres"
	"github.com/ariefcatur/go-shop-orders/internal/redisx"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

type store interface {
	orders.Store
	catalog.Store
	auth.UserStore
}

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	log := logx.New(cfg.ServiceName, cfg.LogLevel, cfg.LogFormat)
	decimal.MarshalJSONWithoutQuotes = true

	if cfg.JWTSecret == "" {
		log.Fatal("JWT_SECRET is required")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Storage
	st, closeStore, err := openStore(ctx, cfg, log)
	if err != nil {
		log.WithError(err).Fatal("open store")
	}
	defer closeStore()

	// Auth
	authSvc := auth.NewService(st,
		auth.NewPasswordHasher(auth.DefaultBcryptCost),
		auth.NewJWTManager(auth.JWTConfig{SecretKey: cfg.JWTSecret, TTL: cfg.JWTTTL, Issuer: cfg.ServiceName}),
	)
	if cfg.AdminLogin != "" && cfg.AdminPassword != "" {
		if err := authSvc.EnsureUser(ctx, cfg.AdminLogin, cfg.AdminPassword, auth.RoleEmployee); err != nil {
			log.WithError(err).Fatal("bootstrap admin account")
		}
	}

	// Kafka producer
	prod := kafkax.NewProducer(cfg.KafkaBrokers, 1024, log)
	prod.Start()

	// Services
	catalogSvc := catalog.NewService(st)
	ordersSvc := orders.NewService(st, catalogSvc,
		orders.WithEvents(kafkax.NewPublisher(prod), cfg.ServiceName),
		orders.WithOwnershipCheck(cfg.OpinionOwnerCheck),
		orders.WithLogger(log),
	)

	// Router
	limiter := httpx.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst, log)
	stopCleanup := make(chan struct{})
	limiter.StartCleanup(time.Minute, stopCleanup)

	authn := &httpx.Authenticator{Auth: authSvc, Log: log}
	router := httpx.NewRouter(log, limiter)
	(&httpx.AuthHandler{Auth: authSvc, Authenticator: authn, Log: log}).Register(router)

	oh := &httpx.OrdersHandler{Orders: ordersSvc, Authenticator: authn, Log: log}
	if rdb := redisx.New(cfg.RedisAddr); redisx.Ping(ctx, rdb) == nil {
		defer rdb.Close()
		oh.Cache = redisx.NewOrderCache(rdb, redisx.TTLOrderCache)
		oh.Idem = redisx.NewIdempotency(rdb)
	} else {
		log.WithField("addr", cfg.RedisAddr).Warn("redis unreachable, order cache and idempotency disabled")
		_ = rdb.Close()
	}
	oh.Register(router)

	ch := &httpx.CatalogHandler{Catalog: catalogSvc, Authenticator: authn, Log: log}
	if cfg.LLMAPIKey != "" {
		ch.Describer = describe.New(cfg.LLMURL, cfg.LLMAPIKey, cfg.LLMModel)
	}
	ch.Register(router)

	// HTTP server
	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: router, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		log.WithField("addr", cfg.HTTPAddr).Info("http listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("listen")
		}
	}()

	// wait signal
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	log.Info("shutting down")

	ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel2()
	_ = srv.Shutdown(ctx2)
	close(stopCleanup)
	prod.Close()      // close inbox, the loop flushes and closes the writer
	prod.WaitClosed() // drain
	cancel()
}

// openStore connects the configured backend and brings its schema and
// reference data up to date.
func openStore(ctx context.Context, cfg config.Config, log *logrus.Entry) (store, func(), error) {
	if cfg.Store == "memory" {
		log.Warn("using in-memory store, data is lost on restart")
		m := memstore.New()
		if err := m.SeedCategories(ctx, cfg.Categories); err != nil {
			return nil, nil, err
		}
		return m, func() {}, nil
	}

	pool, err := postgres.Connect(ctx, cfg.PostgresDSN)
	if err != nil {
		return nil, nil, err
	}
	sqlDB := stdlib.OpenDBFromPool(pool)
	defer sqlDB.Close()
	if err := postgres.Apply(ctx, sqlDB); err != nil {
		pool.Close()
		return nil, nil, err
	}

	st := postgres.NewStore(pool)
	if err := st.SeedStatuses(ctx); err != nil {
		pool.Close()
		return nil, nil, err
	}
	if err := st.SeedCategories(ctx, cfg.Categories); err != nil {
		pool.Close()
		return nil, nil, err
	}
	return st, pool.Close, nil
}
