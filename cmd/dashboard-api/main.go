package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"go.uber.org/zap"

	_ "github.com/isagip/barangay-dashboard-api/api/swagger"
	"github.com/isagip/barangay-dashboard-api/internal/realtime"
	"github.com/isagip/barangay-dashboard-api/internal/repository"
	"github.com/isagip/barangay-dashboard-api/internal/repository/memory"
	"github.com/isagip/barangay-dashboard-api/internal/server"
	"github.com/isagip/barangay-dashboard-api/internal/service"
	"github.com/isagip/barangay-dashboard-api/pkg/cache"
	"github.com/isagip/barangay-dashboard-api/pkg/config"
	"github.com/isagip/barangay-dashboard-api/pkg/database"
	"github.com/isagip/barangay-dashboard-api/pkg/logger"
)

// @title iSagip Barangay Dashboard API
// @version 1.0.0
// @description Emergency report intake, dispatch and resident management for barangay responders.
// @BasePath /api/v1
// @schemes http https
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	if err := run(cfg, logr); err != nil {
		logr.Fatal("server failed", zap.Error(err))
	}
}

func run(cfg *config.Config, logr *zap.Logger) error {
	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	store, closeStore, err := openStore(ctx, cfg, logr)
	if err != nil {
		return err
	}
	defer closeStore()

	redisClient, err := cache.NewRedis(ctx, cfg.Redis)
	if err != nil {
		return err
	}
	if redisClient != nil {
		defer redisClient.Close() //nolint:errcheck
	}

	var sink service.NotificationSink
	if cfg.Notifications.AMQPURL != "" {
		publisher, err := realtime.NewAMQPPublisher(cfg.Notifications.AMQPURL, cfg.Notifications.AMQPExchange, logr)
		if err != nil {
			return fmt.Errorf("connect amqp: %w", err)
		}
		defer publisher.Close() //nolint:errcheck
		sink = publisher
	}

	loc, err := time.LoadLocation("Asia/Manila")
	if err != nil {
		return fmt.Errorf("load export timezone: %w", err)
	}

	if cfg.Seed.DefaultAccounts {
		if err := service.Seed(ctx, store, logr); err != nil {
			return fmt.Errorf("seed demo data: %w", err)
		}
	}

	app, err := server.New(cfg, logr, server.Options{Store: store, Redis: redisClient, Sink: sink, Location: loc})
	if err != nil {
		return err
	}
	app.Start(ctx)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           app.Router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logr.Info("server starting", zap.String("addr", srv.Addr), zap.String("env", cfg.Env), zap.String("store", cfg.Store.Driver))
		errCh <- srv.ListenAndServe()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logr.Info("shutting down", zap.String("signal", sig.String()))
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	stop()
	err = srv.Shutdown(shutdownCtx)
	app.Close(shutdownCtx)
	return err
}

func openStore(ctx context.Context, cfg *config.Config, logr *zap.Logger) (repository.Store, func(), error) {
	switch cfg.Store.Driver {
	case config.StorePostgres:
		db, err := database.NewPostgres(ctx, cfg.Database)
		if err != nil {
			return nil, nil, fmt.Errorf("connect postgres: %w", err)
		}
		if cfg.Database.AutoMigrate {
			if err := database.Migrate(ctx, db, repository.Schema); err != nil {
				_ = db.Close()
				return nil, nil, err
			}
			logr.Info("schema migrated")
		}
		return repository.NewPostgresStore(db), func() { _ = db.Close() }, nil
	default:
		logr.Warn("using in-memory store; data is lost on restart")
		return memory.NewStore(), func() {}, nil
	}
}
