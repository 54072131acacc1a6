package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/iliyamo/futsal-booking/internal/config"
	"github.com/iliyamo/futsal-booking/internal/database"
	"github.com/iliyamo/futsal-booking/internal/gateway"
	"github.com/iliyamo/futsal-booking/internal/handler"
	"github.com/iliyamo/futsal-booking/internal/lock"
	"github.com/iliyamo/futsal-booking/internal/logger"
	"github.com/iliyamo/futsal-booking/internal/middleware"
	"github.com/iliyamo/futsal-booking/internal/queue"
	"github.com/iliyamo/futsal-booking/internal/repository"
	"github.com/iliyamo/futsal-booking/internal/router"
	"github.com/iliyamo/futsal-booking/internal/scheduler"
	"github.com/iliyamo/futsal-booking/internal/service"
)

func main() {
	cfg := config.Load()
	log := logger.New(cfg.Env)
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.Open(ctx, database.DSN(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName), 5*time.Second)
	if err != nil {
		log.Fatal("open database", zap.Error(err))
	}
	defer db.Close()
	if err := database.Migrate(ctx, db, log); err != nil {
		log.Fatal("migrate database", zap.Error(err))
	}

	rdb := config.NewRedisClient()
	if rdb == nil {
		log.Warn("redis unavailable; running without cache, rate limit and reconciliation lock")
	} else {
		defer rdb.Close()
	}

	facilities := repository.NewFacilityRepo(db)
	slots := repository.NewSlotRepo(db)
	bookings := repository.NewBookingRepo(db)
	payments := repository.NewPaymentRepo(db)
	users := repository.NewUserRepo(db)
	tokens := repository.NewTokenRepo(db)
	txr := database.NewTxRunner(db)

	gw := gateway.New(cfg.Esewa)
	events := queue.NewPublisher(cfg.RabbitURL, log)

	bookingSvc := service.NewBookingService(txr, facilities, slots, bookings, payments, gw, log)
	reconcileSvc := service.NewReconcileService(txr, facilities, slots, bookings, payments, gw,
		lock.NewRedisLocker(rdb, "reconcile:"), events, cfg.Reconcile, log)
	authSvc := service.NewAuthService(users, tokens, cfg, log)

	if cfg.Reconcile.Enabled {
		sched, err := scheduler.Start(cfg.Reconcile, reconcileSvc, log)
		if err != nil {
			log.Fatal("start scheduler", zap.Error(err))
		}
		defer func() {
			if err := sched.Shutdown(); err != nil {
				log.Warn("scheduler shutdown", zap.Error(err))
			}
		}()
	}

	go queue.NewConsumer(cfg.RabbitURL, "logs/booking.log", log).Run(ctx)

	e := echo.New()
	e.HideBanner = true
	e.Validator = middleware.NewValidator()
	e.Use(echomw.RequestID())
	e.Use(middleware.RequestLogger(log))
	e.Use(echomw.Recover())

	cache := middleware.NewRedisCache(config.LoadCacheConfig(), rdb)
	limit := middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb, log)

	facilityH := handler.NewFacilityHandler(bookingSvc)
	bookingH := handler.NewBookingHandler(bookingSvc, reconcileSvc)

	router.RegisterRoutes(e, db)
	router.RegisterAuth(e, handler.NewAuthHandler(authSvc), cfg.JWTSecret)
	router.RegisterPublic(e, facilityH, cache)
	router.RegisterOwner(e, facilityH, bookingH, cfg.JWTSecret)
	router.RegisterBookings(e, bookingH, cfg.JWTSecret, limit)
	router.RegisterPayments(e, handler.NewPaymentHandler(reconcileSvc), limit)

	addr := ":" + cfg.Port
	go func() {
		log.Info("listening", zap.String("addr", addr), zap.String("env", cfg.Env))
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("http server", zap.Error(err))
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Warn("http shutdown", zap.Error(err))
	}
}
