package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"github.com/economato/go-order-desk/internal/api"
	"github.com/economato/go-order-desk/internal/board"
	"github.com/economato/go-order-desk/internal/config"
	"github.com/economato/go-order-desk/internal/events"
	"github.com/economato/go-order-desk/internal/httpx"
	"github.com/economato/go-order-desk/internal/inbox"
	"github.com/economato/go-order-desk/internal/journal"
	kafkax "github.com/economato/go-order-desk/internal/kafka"
	"github.com/economato/go-order-desk/internal/orders"
	"github.com/economato/go-order-desk/internal/redisx"
	"github.com/economato/go-order-desk/internal/router"
	"github.com/economato/go-order-desk/internal/saga"
	"github.com/economato/go-order-desk/internal/session"
)

const consumerWorkers = 4

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	cfg.SetupLogging()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// one id per instance: the bus producer, the consumer group suffix and
	// the dedup namespace all need to tell instances apart
	instance := cfg.ServiceName + "-" + uuid.NewString()[:8]
	bus := events.NewBus(instance, 256)

	client := api.New(cfg.BackendURL,
		api.WithTimeout(cfg.BackendTimeout),
		api.WithCompletedStatus(orders.ParseStatus(cfg.CompletedStatus)),
	)

	// Saga journal
	store, err := journal.Open(ctx, cfg.JournalDSN)
	if err != nil {
		log.Fatal().Err(err).Str("dsn", cfg.JournalDSN).Msg("failed to open saga journal")
	}
	defer store.Close()

	var (
		sessions session.Store = session.NewMemory()
		srv                    = httpx.Backend(client, bus, nil)
		dedup    inbox.Deduper
	)
	srv.Sagas = saga.NewOrchestrator(store)

	// Redis is optional: without it every store stays in process
	if cfg.RedisAddr != "" {
		rdb, err := redisx.Connect(ctx, cfg.RedisAddr)
		if err != nil {
			log.Fatal().Err(err).Str("addr", cfg.RedisAddr).Msg("failed to connect to redis")
		}
		defer rdb.Close()

		sessions = redisx.NewSessions(rdb)
		cache := redisx.NewBoardCache(rdb, cfg.BoardCacheTTL)
		srv.BoardCache = cache
		srv.Locker = redisx.NewLocker(rdb, cfg.ReceptionLockTTL)
		srv.Idempotency = redisx.NewIdempotency(rdb)
		srv.Routes = func(id string) router.Store { return redisx.RouteStore(rdb, id) }
		dedup = redisx.NewDedup(rdb, instance)
		board.InvalidateOn(ctx, bus, cache)
	}
	srv.Sessions = session.NewManager(client.Auth, sessions, cfg.SessionTTL)

	// Kafka is optional too: it only fans events out to peer instances
	var prod *kafkax.Producer
	if len(cfg.KafkaBrokers) > 0 {
		prod = kafkax.NewProducer(cfg.KafkaBrokers, cfg.KafkaTopic, 1024)
		prod.Start(ctx)
		kafkax.Forward(ctx, bus, prod)

		svc := &inbox.Service{Bus: bus, Dedup: dedup}
		group := cfg.KafkaGroup + "-" + instance
		cons := kafkax.NewConsumer(cfg.KafkaBrokers, group, cfg.KafkaTopic, consumerWorkers)
		go func() {
			log.Info().Str("group", group).Str("topic", cfg.KafkaTopic).Msg("event consumer started")
			if err := cons.Start(ctx, svc.Handle); err != nil {
				log.Error().Err(err).Msg("event consumer stopped")
			}
		}()
	}

	httpSrv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           httpx.NewRouter(srv),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
		// no WriteTimeout: /events streams; other routes time out in the router
	}

	go func() {
		log.Info().Str("addr", cfg.HTTPAddr).Str("backend", cfg.BackendURL).Str("instance", instance).Msg("order desk listening")
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server…")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("forced shutdown")
	}
	// stop forwarding before the producer inbox closes
	cancel()
	if prod != nil {
		prod.Close()
		prod.WaitClosed()
		if n := prod.Dropped(); n > 0 {
			log.Warn().Int64("dropped", n).Msg("kafka events dropped")
		}
	}
	log.Info().Msg("server exited")
}
