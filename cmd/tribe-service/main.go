package main

import (
	"context"
	"flag"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/lpernett/godotenv"
	"github.com/rs/zerolog"

	"github.com/tribeapp/tribe-server/internal/api"
	"github.com/tribeapp/tribe-server/internal/chat"
	"github.com/tribeapp/tribe-server/internal/config"
	"github.com/tribeapp/tribe-server/internal/engage"
	"github.com/tribeapp/tribe-server/internal/events"
	"github.com/tribeapp/tribe-server/internal/health"
	"github.com/tribeapp/tribe-server/internal/lifecycle"
	"github.com/tribeapp/tribe-server/internal/notify"
	"github.com/tribeapp/tribe-server/internal/platform/logger"
	"github.com/tribeapp/tribe-server/internal/realtime"
	"github.com/tribeapp/tribe-server/internal/store"
	"github.com/tribeapp/tribe-server/internal/store/postgres"
	"github.com/tribeapp/tribe-server/internal/store/sqlite"
	"github.com/tribeapp/tribe-server/internal/tribe"
)

func main() {
	// Optional build-target flag override (local | cloud)
	buildTarget := flag.String("build-target", "", "Override BUILD_TARGET (local, cloud)")
	flag.Parse()

	_ = godotenv.Load()

	log := logger.New("tribe-service")

	cfg, err := config.New()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	if *buildTarget != "" {
		cfg.BuildTarget = *buildTarget
		if err := cfg.ResolveDefaults(); err != nil {
			log.Fatal().Err(err).Msg("Invalid build-target override")
		}
	}

	log.Info().
		Str("build_target", cfg.BuildTarget).
		Str("db_driver", cfg.DBDriver).
		Int("http_port", cfg.HTTPPort).
		Msg("Tribe service starting")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// -------- Storage layer -----------------
	st, err := newStore(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Store adapter unavailable")
	}

	// -------- Health monitor ---------------
	storeChecker := store.NewStoreHealthChecker(st, log, 2*time.Second)
	svcChecker := health.NewServiceHealthChecker(log, storeChecker)
	go storeChecker.Start(ctx, 15*time.Second)
	go svcChecker.Start(ctx, 15*time.Second)

	// -------- Domain services --------------
	bus := events.NewBus(256)
	presence := realtime.NewPresenceTracker()
	coordinator := realtime.NewCoordinator(presence, st, log)

	sender := newNotifySender(cfg, log)
	bridge := notify.NewBridge(st, presence, sender, log)

	chatSvc := chat.NewService(st, bus, coordinator, bridge, log, cfg.MaxMessageBytes)
	tribeSvc := tribe.NewService(st, bus, log)

	generator := engage.NewSafeGenerator(engage.NewContentClient(cfg.ContentURL, cfg.ContentTimeout), log)
	engageSvc := engage.NewService(st, generator, chatSvc, log)

	engine := lifecycle.NewEngine(st, log)
	sweeper := lifecycle.NewSweeper(engine, st, bus, cfg.SweepInterval, log)
	go func() {
		if err := sweeper.Run(ctx); err != nil && ctx.Err() == nil {
			log.Error().Err(err).Msg("lifecycle sweeper stopped")
		}
	}()

	// -------- Router & Server --------------
	router := api.NewRouter(api.Deps{
		Tribes:           tribeSvc,
		Chat:             chatSvc,
		Engage:           engageSvc,
		Engine:           engine,
		Coordinator:      coordinator,
		IsHealthy:        svcChecker.IsHealthy,
		Components:       svcChecker.Components,
		WSAllowedOrigins: cfg.WSAllowedOrigins,
		Log:              log,
	})
	server := &http.Server{
		Addr:         cfg.GetHTTPAddr(),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Int("port", cfg.HTTPPort).Msg("HTTP server starting")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	<-ctx.Done()

	log.Info().Msg("Shutting down server")
	ctxShutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctxShutdown); err != nil {
		log.Fatal().Err(err).Msg("Server forced to shutdown")
	}
	if c, ok := sender.(interface{ Close() error }); ok {
		_ = c.Close()
	}
	log.Info().Msg("Server exited")
}

func newStore(ctx context.Context, cfg *config.Config) (store.Store, error) {
	switch cfg.DBDriver {
	case "postgres":
		if err := postgres.Bootstrap(ctx, cfg.PostgresDSN); err != nil {
			return nil, err
		}
		db, err := postgres.Open(cfg.PostgresDSN)
		if err != nil {
			return nil, err
		}
		return postgres.NewWithDB(db), nil
	default:
		db, err := sqlite.Open(cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		if err := sqlite.EnsureSchema(db); err != nil {
			return nil, err
		}
		return sqlite.NewWithDB(db), nil
	}
}

func newNotifySender(cfg *config.Config, log zerolog.Logger) notify.Sender {
	switch cfg.NotifySender {
	case "amqp":
		s, err := notify.NewAMQPSender(cfg.AMQPURL, cfg.NotifyQueue)
		if err != nil {
			log.Warn().Err(err).Msg("AMQP unavailable, notifications disabled")
			return notify.NopSender{}
		}
		return s
	case "none":
		return notify.NopSender{}
	default:
		return notify.NewHTTPSender(cfg.PushURL)
	}
}
