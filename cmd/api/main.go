package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/paperplay/sticker-service/internal/api/http"
	"github.com/paperplay/sticker-service/internal/api/http/handlers"
	"github.com/paperplay/sticker-service/internal/auth"
	"github.com/paperplay/sticker-service/internal/clock"
	"github.com/paperplay/sticker-service/internal/config"
	"github.com/paperplay/sticker-service/internal/events"
	"github.com/paperplay/sticker-service/internal/mq"
	"github.com/paperplay/sticker-service/internal/observability"
	"github.com/paperplay/sticker-service/internal/persistence"
	"github.com/paperplay/sticker-service/internal/repository"
	"github.com/paperplay/sticker-service/internal/service"
	"github.com/paperplay/sticker-service/internal/storage"
	"github.com/paperplay/sticker-service/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger, cfg.App)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	metrics := observability.NewMetrics()

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()

	var (
		ticketRepo repository.TicketRepository
		orderRepo  repository.OrderRepository
		checks     []handlers.Check
	)
	if pool := pg.PoolHandle(); pool != nil {
		if cfg.Postgres.RunMigrations {
			if err := persistence.RunMigrations(ctx, pool, cfg.Postgres.MigrationsDir, logger); err != nil {
				logger.Fatal("failed to run migrations", zap.Error(err))
			}
		}
		ticketRepo = repository.NewTicketRepository(pool)
		orderRepo = repository.NewOrderRepository(pool)
		checks = append(checks, handlers.Check{Name: "postgres", Ping: pg.Ping})
	} else {
		logger.Warn("using in-memory repositories; data is lost on restart")
		ticketRepo = repository.NewMemoryTicketRepository()
		orderRepo = repository.NewMemoryOrderRepository()
	}

	if cfg.Redis.CacheEnabled {
		redis := persistence.NewRedis(cfg.Redis, logger)
		defer redis.Close()
		ticketRepo = repository.NewCachedTicketRepository(ticketRepo, redis, cfg.Redis.TicketTTL(), logger, metrics)
		checks = append(checks, handlers.Check{Name: "redis", Ping: redis.Ping})
	}

	store, err := storage.NewLocalStore(cfg.Storage.Dir, cfg.Storage.PublicBaseURL, int64(cfg.Storage.MaxUploadBytes))
	if err != nil {
		logger.Fatal("failed to init asset storage", zap.Error(err))
	}
	checks = append(checks, handlers.Check{Name: "storage", Ping: store.Ping})

	var publisher mq.Publisher = mq.NopPublisher{}
	if cfg.Broker.AMQPURL != "" {
		rabbit, err := mq.NewRabbitPublisher(cfg.Broker.AMQPURL, cfg.Broker.Exchange, logger)
		if err != nil {
			logger.Fatal("failed to connect amqp", zap.Error(err))
		}
		defer rabbit.Close() //nolint:errcheck
		publisher = rabbit
		checks = append(checks, handlers.Check{Name: "broker", Ping: rabbit.Ping})
	}

	dispatcher := events.NewInMemoryDispatcher()
	worker.StartEventRelay(service.NewEventRelay(dispatcher, publisher, logger))

	deps := service.TicketDependencies{
		TicketRepo: ticketRepo,
		OrderRepo:  orderRepo,
		Store:      store,
		Clock:      clock.Real(),
		Dispatcher: dispatcher,
		Metrics:    metrics,
		Logger:     logger,
		Issue:      cfg.Issue,
	}
	ticketService := service.NewTicketService(deps)
	binderService := service.NewBinderService(deps)
	orderService := service.NewOrderService(deps)

	tokens := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTLMinutes)

	if cfg.Watcher.Enabled {
		watcher := worker.NewUnlockWatcher(ticketRepo, dispatcher, clock.Real(), cfg.Watcher.Interval(), logger)
		go watcher.Start(ctx)
	}

	app := fiber.New(fiber.Config{
		AppName:      cfg.App.Name,
		BodyLimit:    cfg.Storage.MaxUploadBytes,
		ErrorHandler: httptransport.ErrorHandler(logger, metrics),
	})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, checks...),
		Viewer:         handlers.NewViewerHandler(ticketService, binderService),
		Letters:        handlers.NewLettersHandler(ticketService, binderService),
		Requests:       handlers.NewRequestsHandler(ticketService, orderService),
		Admin:          handlers.NewAdminHandler(ticketService, binderService, orderService),
		AuthMiddleware: auth.NewAuthMiddleware(tokens),
		Metrics:        metrics,
		AssetsDir:      store.Root(),
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	cancel()
	_ = app.Shutdown()
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
