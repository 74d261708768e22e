package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/iliyamo/cinema-box-office/internal/config"
	"github.com/iliyamo/cinema-box-office/internal/database"
	"github.com/iliyamo/cinema-box-office/internal/handler"
	"github.com/iliyamo/cinema-box-office/internal/queue"
	"github.com/iliyamo/cinema-box-office/internal/repository"
	"github.com/iliyamo/cinema-box-office/internal/router"
	"github.com/iliyamo/cinema-box-office/internal/service"
)

// storeGateway adapts the concrete repository store to the coordinator's
// Store interface, whose Begin returns the Session interface.
type storeGateway struct {
	store *repository.Store
}

func (g storeGateway) Begin(ctx context.Context) (service.Session, error) {
	return g.store.Begin(ctx)
}

func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	var logger *zap.Logger
	var err error
	if cfg.Env == "prod" {
		logger, err = zap.NewProduction()
	} else {
		logger, err = zap.NewDevelopment()
	}
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.Open(ctx, cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName, cfg.DBMaxConns)
	if err != nil {
		logger.Fatal("connect to database", zap.Error(err))
	}
	defer func() { _ = db.Close() }()

	broker, err := queue.Dial(cfg.AMQPURL)
	if err != nil {
		logger.Fatal("connect to broker", zap.Error(err))
	}
	defer func() { _ = broker.Close() }()

	publisher := queue.NewPublisher(broker, logger)
	defer publisher.Close()

	store := repository.NewStore(db)
	coordinator := service.NewCoordinator(
		storeGateway{store: store},
		publisher,
		publisher,
		cfg.ReservationTTL(),
		service.RetryConfig{
			MaxAttempts:  cfg.MaxRetryAttempts,
			InitialDelay: time.Duration(cfg.InitialRetryDelayMs) * time.Millisecond,
			Multiplier:   cfg.RetryBackoffMultiplier,
			MaxDelay:     time.Duration(cfg.MaxRetryDelayMs) * time.Millisecond,
		},
		logger,
	)

	consumer := queue.NewConsumer(
		broker, coordinator, publisher,
		cfg.ExpirationBatchSize, cfg.ExpirationFlush(), logger,
	)
	go consumer.Run(ctx)

	// Redis is optional: a failed connection disables rate limiting instead
	// of blocking startup.
	rdb := config.NewRedisClient()
	if rdb == nil {
		logger.Warn("redis unavailable, rate limiting disabled")
	}

	e := echo.New()
	e.HideBanner = true
	e.Use(echomw.Recover())
	e.Use(echomw.RequestID())

	router.Register(e, router.Handlers{
		Public:      handler.NewPublicHandler(repository.NewScreeningRepo(db)),
		Reservation: handler.NewReservationHandler(coordinator, repository.NewReservationRepo(db), repository.NewSaleRepo(db)),
		Admin:       handler.NewAdminHandler(repository.NewScreeningRepo(db), repository.NewSaleRepo(db)),
	}, cfg.JWTSecret, rdb)

	go func() {
		addr := ":" + cfg.Port
		logger.Info("listening", zap.String("addr", addr), zap.String("env", cfg.Env))
		if err := e.Start(addr); err != nil {
			logger.Info("http server stopped", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown http server", zap.Error(err))
	}
}
