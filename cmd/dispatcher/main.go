package main

import (
	"context"
	"log"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/example/fleet-dispatch/internal/arbiter"
	"github.com/example/fleet-dispatch/internal/config"
	"github.com/example/fleet-dispatch/internal/dispatch"
	"github.com/example/fleet-dispatch/internal/httpapi"
	"github.com/example/fleet-dispatch/internal/ingest"
	"github.com/example/fleet-dispatch/internal/journal"
	"github.com/example/fleet-dispatch/internal/logging"
	"github.com/example/fleet-dispatch/internal/match"
	"github.com/example/fleet-dispatch/internal/membership"
	"github.com/example/fleet-dispatch/internal/registry"
	"github.com/example/fleet-dispatch/internal/store"
	"github.com/example/fleet-dispatch/internal/transport"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger := logging.NewLogger(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.RedisAddr == "" {
		log.Fatal("REDIS_ADDR is required: the membership directory lives in Redis")
	}
	directory := membership.NewRedisDirectory(cfg.RedisAddr, cfg.RedisPassword, cfg.VehicleMembersKey, cfg.CourierMembersKey)
	defer directory.Close()
	members := membership.NewCache(directory, cfg.MembershipRefresh, logger)

	workers := registry.New(members, logger)
	requests := store.New()
	matcher := &match.Engine{Workers: workers}

	var jnl *journal.Journal
	if cfg.PGDSN != "" {
		jnl, err = journal.Open(cfg.PGDSN)
		if err != nil {
			log.Fatalf("journal: %v", err)
		}
		defer jnl.Close()
		if cfg.RunMigrations {
			if err := jnl.Migrate(ctx); err != nil {
				log.Fatalf("journal migrate: %v", err)
			}
			logger.Info("journal schema applied")
		}
	}

	wsreg := transport.NewWSRegistry(logger)
	outbound := transport.Composite{wsreg}

	var broker *transport.Kafka
	if len(cfg.KafkaBrokers) > 0 {
		broker = transport.NewKafka(cfg.KafkaBrokers, cfg.KafkaInboundTopic, cfg.KafkaOutboundTopic, cfg.KafkaGroup, logger)
		defer broker.Close()
		outbound = append(outbound, broker)
	}

	var mq *transport.AMQP
	if cfg.AMQPURL != "" {
		mq, err = transport.NewAMQP(cfg.AMQPURL, logger)
		if err != nil {
			log.Fatalf("amqp: %v", err)
		}
		defer mq.Close()
		outbound = append(outbound, mq)
	}

	arb := &arbiter.Arbiter{
		Requests:  requests,
		Workers:   workers,
		Transport: outbound,
		Logger:    logger,
	}
	if jnl != nil {
		arb.Journal = jnl
	}

	router := &ingest.Router{
		Members:   members,
		Registry:  workers,
		Matcher:   matcher,
		Requests:  requests,
		Arbiter:   arb,
		Transport: outbound,
		Logger:    logger,
	}
	if jnl != nil {
		router.Journal = jnl
	}

	scheduler := &dispatch.Scheduler{
		Requests:      requests,
		Workers:       workers,
		Transport:     outbound,
		Clock:         dispatch.RealClock(),
		OfferInterval: cfg.OfferInterval,
		TickInterval:  cfg.TickInterval,
		Logger:        logger,
	}

	go members.Run(ctx)
	go scheduler.Run(ctx)
	if broker != nil {
		go broker.Run(ctx, router.HandleInbound)
	}
	if mq != nil {
		go mq.Run(ctx, router.HandleInbound)
	}

	srv := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      httpapi.NewServer(workers, requests, wsreg, router.HandleInbound, logger),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}
	go func() {
		logger.Info("dispatcher listening", "addr", cfg.HTTPAddr,
			"offer_interval", cfg.OfferInterval.String(), "tick_interval", cfg.TickInterval.String())
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("http server: %v", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
}
