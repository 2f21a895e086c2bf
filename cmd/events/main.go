package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/ariefcatur/go-shop-orders/internal/config"
	kafkax "github.com/ariefcatur/go-shop-orders/internal/kafka"
	"github.com/ariefcatur/go-shop-orders/internal/logx"
	"github.com/ariefcatur/go-shop-orders/internal/orders"
	"github.com/ariefcatur/go-shop-orders/internal/projector"
	"github.com/ariefcatur/go-shop-orders/internal/redisx"
	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	service := cfg.ServiceName + "-events"
	log := logx.New(service, cfg.LogLevel, cfg.LogFormat)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Redis
	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()
	if err := redisx.Ping(ctx, rdb); err != nil {
		log.WithError(err).Fatal("redis")
	}

	svc := &projector.Service{
		Dedup: redisx.NewDedup(rdb, service),
		Cache: redisx.NewOrderCache(rdb, redisx.TTLOrderCache),
		Log:   log,
	}

	// Consumer
	topics := orders.Topics()
	cons := kafkax.NewConsumer(cfg.KafkaBrokers, cfg.EventsGroup, topics, cfg.EventsWorkers, log)

	done := make(chan struct{})
	go func() {
		defer close(done)
		log.WithField("group", cfg.EventsGroup).WithField("topics", topics).
			WithField("workers", cfg.EventsWorkers).Info("events consumer started")
		if err := cons.Start(ctx, svc.Handle); err != nil {
			log.WithError(err).Error("consumer exit")
			cancel()
		}
	}()

	// graceful shutdown
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sig:
		log.Info("shutting down consumer")
	case <-ctx.Done():
	}
	cancel()
	<-done
}
