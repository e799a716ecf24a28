package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	httptransport "github.com/developer-yasir/support-panel/internal/api/http"
	"github.com/developer-yasir/support-panel/internal/api/http/handlers"
	"github.com/developer-yasir/support-panel/internal/auth"
	"github.com/developer-yasir/support-panel/internal/clock"
	"github.com/developer-yasir/support-panel/internal/config"
	"github.com/developer-yasir/support-panel/internal/events"
	"github.com/developer-yasir/support-panel/internal/observability"
	"github.com/developer-yasir/support-panel/internal/persistence"
	"github.com/developer-yasir/support-panel/internal/push"
	"github.com/developer-yasir/support-panel/internal/repository"
	"github.com/developer-yasir/support-panel/internal/service"
	"github.com/developer-yasir/support-panel/internal/worker"
	"github.com/developer-yasir/support-panel/migrations"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()
	if !pg.Enabled() {
		logger.Fatal("POSTGRES_DSN is required to serve tickets")
	}

	if cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, pg.Pool, migrations.FS, logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	redis := persistence.NewRedis(ctx, cfg.Redis, logger)
	defer redis.Close()

	metrics := observability.NewMetrics()
	clk := clock.Real()
	dispatcher := events.NewInMemoryDispatcher()

	ticketService := service.NewTicketService(service.TicketDependencies{
		TicketRepo:  repository.NewTicketRepository(pg.Pool),
		HistoryRepo: repository.NewTicketHistoryRepository(pg.Pool),
		Dispatcher:  dispatcher,
		Clock:       clk,
		Logger:      logger.Named("tickets"),
	})

	tokens := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTLMinutes)
	hub := push.NewHub(push.Options{
		Auth:         tokens,
		Logger:       logger,
		Metrics:      metrics,
		WriteTimeout: cfg.Push.WriteTimeout(),
	})

	relay := worker.NewPushRelay(worker.PushRelayDeps{
		Dispatcher: dispatcher,
		Hub:        hub,
		Bus:        worker.NewRedisBus(redis, cfg.Redis.Channel),
		Logger:     logger,
		Metrics:    metrics,
	})
	relay.RegisterHandlers()

	app := httptransport.NewApp(cfg.App.Name)
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())
	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health: handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, map[string]handlers.Pinger{
			"postgres": pg,
			"redis":    redis,
		}),
		Tickets:        handlers.NewTicketsHandler(ticketService, clk),
		Metrics:        handlers.NewMetricsHandler(metrics, hub),
		AuthMiddleware: auth.NewAuthMiddleware(tokens),
	})

	// The push endpoint needs the raw net/http connection to upgrade, so it
	// is served beside the fiber app rather than through it.
	mux := http.NewServeMux()
	mux.Handle(cfg.Push.Path, hub)
	mux.Handle("/", adaptor.FiberApp(app))
	server := &http.Server{
		Addr:              cfg.App.Addr(),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return relay.Run(gctx)
	})
	g.Go(func() error {
		logger.Info("listening",
			zap.String("addr", server.Addr),
			zap.String("push_path", cfg.Push.Path),
			zap.Bool("redis_fanout", redis.Enabled()))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		waitForShutdown(gctx, logger)
		shutdownCtx, done := context.WithTimeout(context.Background(), shutdownTimeout)
		defer done()
		hub.Close()
		err := server.Shutdown(shutdownCtx)
		cancel()
		return err
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("server stopped with error", zap.Error(err))
	}
	_ = app.Shutdown()
}

func waitForShutdown(ctx context.Context, logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	select {
	case sig := <-sigCh:
		logger.Info("shutting down", zap.String("signal", sig.String()))
	case <-ctx.Done():
		logger.Info("shutting down", zap.Error(ctx.Err()))
	}
}
