package trackerservice

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"ride-tracker/internal/general/backend"
	"ride-tracker/internal/general/cache"
	"ride-tracker/internal/general/config"
	"ride-tracker/internal/general/jwt"
	"ride-tracker/internal/general/location"
	"ride-tracker/internal/general/logger"
	"ride-tracker/internal/general/postgres"
	"ride-tracker/internal/general/rabbitmq"
	"ride-tracker/internal/general/websocket"
	"ride-tracker/internal/software/tracking/handler"
	"ride-tracker/internal/software/tracking/service"
	"ride-tracker/internal/tracking"
)

// Run wires the tracker service and blocks until ctx is cancelled.
func Run(ctx context.Context, configPath string, maxConcurrent int) error {
	// set up a new logger and context with a static request ID for startup logs
	logger := logger.New("tracker-service")
	ctx = logger.WithRequestID(ctx, "startup-001")

	cfg, err := config.LoadFromFile(configPath)
	if err != nil {
		logger.Error(ctx, "config_load_failed", "Failed to load configuration", err, nil)
		return err
	}

	trackingCfg := TrackingConfig(cfg)
	if err := trackingCfg.Validate(); err != nil {
		logger.Error(ctx, "config_invalid", "Invalid tracking configuration", err, nil)
		return err
	}

	pool, err := postgres.NewPool(ctx, cfg, logger)
	if err != nil {
		logger.Error(ctx, "db_connection_failed", "Failed to initialize Postgres pool", err, nil)
		return err
	}
	defer pool.Close()

	rmq, err := rabbitmq.ConnectRabbitMQ(ctx, cfg, logger)
	if err != nil {
		logger.Error(ctx, "rabbitmq_connection_failed", "Failed to connect to RabbitMQ", err, nil)
		return err
	}
	defer rmq.Close()

	rdb, err := cache.NewClient(ctx, cfg, logger)
	if err != nil {
		logger.Error(ctx, "redis_connection_failed", "Failed to connect to Redis", err, nil)
		return err
	}
	defer rdb.Close()

	jwtManager, err := jwt.NewManager(cfg.JWT.SecretKey, cfg.JWT.AccessTTL)
	if err != nil {
		logger.Error(ctx, "jwt_setup_failed", "Failed to set up JWT manager", err, nil)
		return err
	}

	hub := websocket.NewHub(logger, jwtManager, cfg.Services.AllowedOrigins)
	defer hub.Close()

	deps := service.Dependencies{
		Config:    trackingCfg,
		Logger:    logger,
		UOW:       postgres.NewUnitOfWork(pool),
		Snapshots: postgres.NewRideSnapshotRepo(),
		Events:    postgres.NewRideEventRepo(),
		SOSLogs:   postgres.NewSOSLogRepo(),
		Publisher: rabbitmq.NewMQPublisher(rmq),
		Cache:     cache.NewSnapshotCache(rdb, cfg.Redis.SnapshotTTL),
		Handoff:   hub,
		Listeners: []tracking.Listener{hub.Listen},
		Consumer:  rmq,
	}
	if cfg.LocationEnabled() {
		deps.Locator = location.NewDeviceLocator(cfg.Location.MaxFixAge, cfg.Location.FixTimeout)
	}
	if cfg.Backend.BaseURL != "" {
		deps.Backend = backend.NewClient(cfg.Backend.BaseURL, cfg.Backend.Token, cfg.Backend.Timeout, logger)
	}

	svc, err := service.NewTrackingService(deps)
	if err != nil {
		logger.Error(ctx, "service_setup_failed", "Failed to set up tracking service", err, nil)
		return err
	}
	defer svc.Close()
	hub.Bind(svc)

	// ride assignments start trackers without an HTTP call
	svc.RunBackgroundConsumers(ctx)

	mux := http.NewServeMux()
	httpHandler := handler.NewTrackingHTTPHandler(svc, logger, jwtManager, hub)
	httpHandler.RegisterRoutes(mux)

	// concurrency limiter (global), blocks when capacity is full
	limitedHandler := withConcurrencyLimit(maxConcurrent, handler.CORS(cfg.Services.AllowedOrigins, mux))

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Services.TrackerServicePort),
		Handler:           limitedHandler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      20 * time.Second, // SOS waits for a location fix
		IdleTimeout:       60 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	logger.Info(ctx, "service_started",
		fmt.Sprintf("Tracker Service started on port %d", cfg.Services.TrackerServicePort),
		map[string]any{
			"port":             cfg.Services.TrackerServicePort,
			"max_concurrent":   maxConcurrent,
			"location_enabled": cfg.LocationEnabled(),
			"backend_enabled":  cfg.Backend.BaseURL != "",
		},
	)

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case <-ctx.Done():
		shCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		logger.Info(ctx, "shutdown_started", "Starting graceful shutdown", nil)
		if err := srv.Shutdown(shCtx); err != nil && err != http.ErrServerClosed {
			logger.Error(ctx, "http_shutdown_failed", "Failed to gracefully shut down HTTP server", err, nil)
		}
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			logger.Error(ctx, "http_server_error", "HTTP server terminated with error", err,
				map[string]any{"port": cfg.Services.TrackerServicePort})
			return err
		}
	}
	return nil
}

// TrackingConfig overlays the tracking section of cfg on tracking.DefaultConfig.
func TrackingConfig(cfg *config.Config) tracking.Config {
	out := tracking.DefaultConfig()
	t := cfg.Tracking
	out.StartDelay = t.StartDelay
	out.TickInterval = t.TickInterval
	out.DwellDelay = t.DwellDelay
	out.HandoffDelay = t.HandoffDelay
	out.SOSCooldown = t.SOSCooldown
	out.SinkTimeout = t.SinkTimeout
	out.Step = t.Step
	if t.HandoffRoute != "" {
		out.HandoffRoute = t.HandoffRoute
	}
	return out
}

// withConcurrencyLimit wraps an http.Handler with a semaphore-based limiter.
func withConcurrencyLimit(n int, next http.Handler) http.Handler {
	if n <= 0 {
		return next
	}
	sem := make(chan struct{}, n)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case sem <- struct{}{}: // acquire
			defer func() { <-sem }() // release
			next.ServeHTTP(w, r)
		case <-r.Context().Done():
			http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		}
	})
}
