package server

import (
	"context"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/isagip/barangay-dashboard-api/internal/handler"
	"github.com/isagip/barangay-dashboard-api/internal/middleware"
	"github.com/isagip/barangay-dashboard-api/internal/realtime"
	"github.com/isagip/barangay-dashboard-api/internal/repository"
	"github.com/isagip/barangay-dashboard-api/internal/service"
	"github.com/isagip/barangay-dashboard-api/pkg/config"
	"github.com/isagip/barangay-dashboard-api/pkg/jobs"
	"github.com/isagip/barangay-dashboard-api/pkg/storage"
)

const redisKeyPrefix = "isagip:"

// Options carries the externally constructed backends.
type Options struct {
	Store    repository.Store
	Redis    *redis.Client
	Sink     service.NotificationSink
	Location *time.Location
}

// App is the fully wired API with its background workers.
type App struct {
	Router  *gin.Engine
	Store   repository.Store
	Bus     realtime.Bus
	Reports *service.ReportService
	Auth    *service.AuthService
	Metrics *service.MetricsService

	cfg       *config.Config
	logger    *zap.Logger
	queue     *jobs.Queue
	monitor   *service.BackendMonitor
	dashboard *service.DashboardService
	simulator *service.ReportSimulator

	wg sync.WaitGroup
}

// New assembles services, handlers and the router.
func New(cfg *config.Config, logr *zap.Logger, opts Options) (*App, error) {
	if logr == nil {
		logr = zap.NewNop()
	}
	store := opts.Store
	validate := service.NewValidator()
	metrics := service.NewMetricsService()

	var bus realtime.Bus
	var revocations interface {
		Revoke(ctx context.Context, jti string, ttl time.Duration) error
		IsRevoked(ctx context.Context, jti string) (bool, error)
	}
	var cacheRepo service.CacheRepository
	if opts.Redis != nil {
		bus = realtime.NewRedisBus(opts.Redis, redisKeyPrefix, logr)
		revocations = repository.NewRedisRevocationStore(opts.Redis, redisKeyPrefix)
		cacheRepo = repository.NewCacheRepository(opts.Redis, redisKeyPrefix, logr)
	} else {
		bus = realtime.NewMemoryBus(logr)
		revocations = repository.NewMemoryRevocationStore()
	}
	cache := service.NewCacheService(cacheRepo, metrics, cfg.Dashboard.CacheTTL, logr, cfg.Dashboard.CacheEnabled)

	access := service.NewAccessService(nil, store.Preferences(), logr)
	auth := service.NewAuthService(store, revocations, access, validate, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		GuestTokenExpiry:   cfg.JWT.GuestExpiration,
		Issuer:             cfg.JWT.Issuer,
		GuestViewerEnabled: cfg.Auth.GuestViewerEnabled,
	})
	prefs := service.NewPreferenceService(store.Preferences(), access.Registry(), validate, logr)

	notifyCfg := service.NotificationConfig{
		Workers:    cfg.Notifications.Workers,
		Retries:    cfg.Notifications.Retries,
		RetryDelay: cfg.Notifications.RetryDelay,
		Recent:     cfg.Notifications.Recent,
	}
	notifications := service.NewNotificationService(bus, opts.Sink, metrics, logr, notifyCfg)
	queue := notifications.NewQueue(notifyCfg)

	reports := service.NewReportService(store, bus, validate, logr,
		service.WithReportNotifier(notifications),
		service.WithReportMetrics(metrics),
	)
	ambulances := service.NewAmbulanceService(store, bus, metrics, validate, logr)
	registrations := service.NewRegistrationService(store, bus, validate, logr)
	accounts := service.NewAccountService(store, bus, validate, logr)
	residents := service.NewResidentService(store, bus, validate, logr)
	dashboard := service.NewDashboardService(store, cache, cfg.Dashboard.CacheTTL, logr)
	exports := service.NewExportService(store, nil, nil, opts.Location, logr)
	feeds := service.NewFeedService(store, bus, notifications, logr)
	monitor := service.NewBackendMonitor(store, metrics, cfg.Backend.ProbeInterval, cfg.Backend.ProbeTimeout, logr)

	files, err := storage.NewLocalStorage(cfg.Uploads.StorageDir)
	if err != nil {
		return nil, err
	}
	uploads := service.NewUploadService(files, storage.NewSignedURLSigner(cfg.Uploads.SignedURLSecret, cfg.Uploads.SignedURLTTL), service.UploadConfig{
		APIPrefix:    cfg.APIPrefix,
		MaxBytes:     cfg.Uploads.MaxFileSizeBytes,
		AllowedMIMEs: cfg.Uploads.AllowedMIMEs,
	}, logr)

	app := &App{
		Store:     store,
		Bus:       bus,
		Reports:   reports,
		Auth:      auth,
		Metrics:   metrics,
		cfg:       cfg,
		logger:    logr,
		queue:     queue,
		monitor:   monitor,
		dashboard: dashboard,
	}
	if cfg.Simulation.Enabled {
		app.simulator = service.NewReportSimulator(reports, service.SimulatorConfig{
			MinInterval: cfg.Simulation.MinInterval,
			MaxInterval: cfg.Simulation.MaxInterval,
			StartDelay:  cfg.Simulation.StartDelay,
		}, logr)
	}

	app.Router = NewRouter(cfg, logr, Dependencies{
		Tokens:       auth,
		Access:       access,
		Availability: monitor,
		Metrics:      metrics,
		LoginLimiter: middleware.NewIPRateLimiter(cfg.Auth.LoginRatePerMinute, cfg.Auth.LoginRateBurst),
	}, Handlers{
		Auth:          handler.NewAuthHandler(auth),
		Access:        handler.NewAccessHandler(access),
		Reports:       handler.NewReportHandler(reports),
		Ambulances:    handler.NewAmbulanceHandler(ambulances),
		Registrations: handler.NewRegistrationHandler(registrations),
		Accounts:      handler.NewAccountHandler(accounts),
		Residents:     handler.NewResidentHandler(residents),
		Preferences:   handler.NewPreferenceHandler(prefs),
		Exports:       handler.NewExportHandler(exports),
		Dashboard:     handler.NewDashboardHandler(dashboard, notifications),
		Uploads:       handler.NewUploadHandler(uploads),
		Streams:       handler.NewStreamHandler(feeds, access, logr),
		Metrics:       handler.NewMetricsHandler(metrics, monitor),
	})
	return app, nil
}

// Start launches the notification workers, the store probe, cache
// invalidation and the optional simulator. They stop when ctx ends.
func (a *App) Start(ctx context.Context) {
	a.queue.Start(ctx)
	a.spawn(func() { a.monitor.Run(ctx) })
	a.spawn(func() {
		if err := a.dashboard.Watch(ctx, a.Bus); err != nil && ctx.Err() == nil {
			a.logger.Warn("dashboard cache watcher stopped", zap.Error(err))
		}
	})
	if a.simulator != nil {
		a.spawn(func() { a.simulator.Run(ctx) })
	}
}

func (a *App) spawn(fn func()) {
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		fn()
	}()
}

// Close drains the workers and releases the bus. ctx bounds the wait.
func (a *App) Close(ctx context.Context) {
	a.queue.Stop()
	done := make(chan struct{})
	go func() {
		a.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		a.logger.Warn("background workers did not stop in time")
	}
	if err := a.Bus.Close(); err != nil {
		a.logger.Warn("close change bus", zap.Error(err))
	}
}
