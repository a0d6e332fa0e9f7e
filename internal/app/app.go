package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/utafrali/order-service/internal/cache"
	"github.com/utafrali/order-service/internal/client"
	"github.com/utafrali/order-service/internal/client/stub"
	"github.com/utafrali/order-service/internal/config"
	"github.com/utafrali/order-service/internal/event"
	handler "github.com/utafrali/order-service/internal/handler/http"
	"github.com/utafrali/order-service/internal/repository"
	"github.com/utafrali/order-service/internal/repository/memory"
	"github.com/utafrali/order-service/internal/repository/postgres"
	"github.com/utafrali/order-service/internal/service"
	"github.com/utafrali/order-service/migrations"
	"github.com/utafrali/order-service/pkg/database"
	"github.com/utafrali/order-service/pkg/health"
	"github.com/utafrali/order-service/pkg/httpclient"
	pkgkafka "github.com/utafrali/order-service/pkg/kafka"
	"github.com/utafrali/order-service/pkg/middleware"
	"github.com/utafrali/order-service/pkg/tracing"
)

const serviceName = "order-service"

// App wires together all dependencies and runs the order service.
type App struct {
	cfg            *config.Config
	logger         *slog.Logger
	pool           *pgxpool.Pool
	redis          *redis.Client
	producer       *pkgkafka.Producer
	httpServer     *http.Server
	tracerShutdown tracing.ShutdownFunc
}

// NewApp creates a new application instance, initializing all dependencies.
// Postgres is mandatory unless the memory store is selected; Redis and Kafka
// are only used when configured.
func NewApp(cfg *config.Config, logger *slog.Logger) (*App, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	a := &App{cfg: cfg, logger: logger}

	// Initialize OpenTelemetry tracing.
	tracerShutdown, err := tracing.Init(ctx, tracing.Config{
		ServiceName:    serviceName,
		ServiceVersion: "1.0.0",
		Environment:    cfg.Environment,
		OTLPEndpoint:   cfg.OTELEndpoint,
		SampleRate:     cfg.OTELSampleRate,
		Enabled:        cfg.OTELEnabled,
	})
	if err != nil {
		return nil, fmt.Errorf("init tracer: %w", err)
	}
	a.tracerShutdown = tracerShutdown

	healthHandler := health.NewHandler()

	repo, tx, err := a.initStore(ctx, healthHandler)
	if err != nil {
		_ = a.closeResources()
		return nil, err
	}

	orderCache := a.initCache(ctx, healthHandler)
	events := a.initEvents(healthHandler)

	orderService := service.NewOrderService(
		repo,
		tx,
		newClients(cfg, logger),
		events,
		orderCache,
		logger,
	)

	cors := middleware.DefaultCORSConfig(cfg.Environment)
	cors.AllowedOrigins = cfg.CORSAllowedOrigins

	router := handler.NewRouter(orderService, healthHandler, logger, handler.RouterConfig{
		ServiceName: serviceName,
		PprofCIDRs:  cfg.PprofAllowedCIDRs,
		CORS:        cors,
	})

	a.httpServer = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           router,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      35 * time.Second,
		IdleTimeout:       60 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return a, nil
}

// initStore opens the configured order store. The postgres store is a
// critical readiness dependency.
func (a *App) initStore(ctx context.Context, hh *health.Handler) (repository.OrderRepository, repository.Transactor, error) {
	if a.cfg.StoreDriver == config.StoreDriverMemory {
		a.logger.Warn("using in-memory order store; orders are lost on restart")
		store := memory.NewStore()
		return store, store, nil
	}

	pgCfg := a.cfg.Postgres()
	pool, err := database.NewPostgresPool(ctx, &pgCfg, a.logger)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to postgres: %w", err)
	}
	a.pool = pool
	a.logger.Info("connected to PostgreSQL",
		slog.String("host", pgCfg.Host),
		slog.Int("port", pgCfg.Port),
		slog.String("database", pgCfg.DBName),
	)
	if err := database.RegisterPoolMetrics(pool, serviceName); err != nil {
		a.logger.Warn("failed to register pool metrics", slog.String("error", err.Error()))
	}

	// Run database migrations.
	if err := database.RunMigrations(ctx, pool, migrations.FS, a.logger); err != nil {
		return nil, nil, fmt.Errorf("run migrations: %w", err)
	}
	a.logger.Info("database migrations completed")

	// Configure slow query logging.
	if a.cfg.SlowQueryThresholdMs > 0 {
		database.SetSlowQueryLogging(time.Duration(a.cfg.SlowQueryThresholdMs)*time.Millisecond, a.logger)
	}

	hh.RegisterCritical("postgres", func(ctx context.Context) error {
		return pool.Ping(ctx)
	})

	return postgres.NewOrderRepository(pool), postgres.NewTransactor(pool), nil
}

// initCache connects to Redis when configured. An unreachable Redis at
// startup disables caching rather than failing the service.
func (a *App) initCache(ctx context.Context, hh *health.Handler) service.OrderCache {
	if !a.cfg.CacheEnabled() {
		a.logger.Info("order cache disabled")
		return cache.Noop{}
	}

	rc := a.cfg.Redis()
	rdb, err := database.NewRedisClient(ctx, rc)
	if err != nil {
		a.logger.Warn("redis unavailable, order cache disabled",
			slog.String("addr", rc.Addr()),
			slog.String("error", err.Error()),
		)
		return cache.Noop{}
	}
	a.redis = rdb
	a.logger.Info("connected to Redis", slog.String("addr", rc.Addr()), slog.Duration("ttl", a.cfg.CacheTTL))

	orderCache := cache.NewOrderCache(rdb, a.cfg.CacheTTL)
	hh.RegisterNonCritical("redis", orderCache.Ping)
	return orderCache
}

// initEvents creates the Kafka producer when brokers are configured.
func (a *App) initEvents(hh *health.Handler) service.EventPublisher {
	if !a.cfg.EventsEnabled() {
		a.logger.Info("event publishing disabled")
		return event.Noop{}
	}

	producer := pkgkafka.NewProducer(pkgkafka.DefaultProducerConfig(a.cfg.KafkaBrokers), a.logger)
	a.producer = producer
	a.logger.Info("kafka producer initialized", slog.Any("brokers", a.cfg.KafkaBrokers))

	hh.RegisterNonCritical("kafka", producer.Ping)
	return event.NewProducer(producer, a.logger)
}

// newClients builds the member, product and payment clients, each behind
// its own retry and circuit breaker policy.
func newClients(cfg *config.Config, logger *slog.Logger) client.Set {
	var (
		member  client.MemberClient
		product client.ProductClient
		payment client.PaymentClient
	)

	switch cfg.ClientMode {
	case config.ClientModeStub:
		logger.Warn("using stub member, product and payment clients")
		member = stub.NewMemberClient()
		product = stub.NewProductClient()
		payment = stub.NewPaymentClient()
	default:
		httpCfg := httpclient.DefaultConfig()
		httpCfg.Timeout = cfg.ClientTimeout
		member = client.NewHTTPMemberClient(httpclient.New("member", httpCfg), cfg.MemberServiceURL)
		product = client.NewHTTPProductClient(httpclient.New("product", httpCfg), cfg.ProductServiceURL)
		payment = client.NewHTTPPaymentClient(httpclient.New("payment", httpCfg), cfg.PaymentServiceURL)
	}

	logger.Info("external clients initialized",
		slog.String("mode", cfg.ClientMode),
		slog.Int("max_attempts", cfg.ClientMaxAttempts),
		slog.Bool("fallback_enabled", cfg.ClientFallbackEnabled),
		slog.Duration("breaker_open_timeout", cfg.CBTimeout),
	)

	return client.Set{
		Member:  client.NewResilientMemberClient(member, cfg.Resilience("member"), cfg.ClientFallbackEnabled, logger),
		Product: client.NewResilientProductClient(product, cfg.Resilience("product"), cfg.ClientFallbackEnabled, logger),
		Payment: client.NewResilientPaymentClient(payment, cfg.Resilience("payment"), cfg.ClientFallbackEnabled, logger),
	}
}

// Handler returns the HTTP handler serving the order API.
func (a *App) Handler() http.Handler {
	return a.httpServer.Handler
}

// Run starts the HTTP server and blocks until the context is canceled.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)

	go func() {
		a.logger.Info("starting HTTP server",
			slog.String("addr", a.httpServer.Addr),
		)
		if err := a.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		a.logger.Info("shutdown signal received")
	case err := <-errCh:
		return errors.Join(err, a.Shutdown())
	}

	return a.Shutdown()
}

// Shutdown gracefully stops all components in order: the HTTP server drains
// first, then spans are flushed, then Kafka, Redis and PostgreSQL close.
func (a *App) Shutdown() error {
	a.logger.Info("shutting down application...")

	var errs []error

	httpCtx, httpCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer httpCancel()
	if err := a.httpServer.Shutdown(httpCtx); err != nil {
		a.logger.Error("http server shutdown error", slog.String("error", err.Error()))
		errs = append(errs, err)
	}

	if err := a.closeResources(); err != nil {
		errs = append(errs, err)
	}

	a.logger.Info("application shutdown complete")
	return errors.Join(errs...)
}

func (a *App) closeResources() error {
	var errs []error

	if a.tracerShutdown != nil {
		tracerCtx, tracerCancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer tracerCancel()
		if err := a.tracerShutdown(tracerCtx); err != nil {
			a.logger.Error("tracer shutdown error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
	}

	if a.producer != nil {
		if err := a.producer.Close(); err != nil {
			a.logger.Error("kafka producer close error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
	}

	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.logger.Error("redis close error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
	}

	if a.pool != nil {
		a.pool.Close()
	}

	return errors.Join(errs...)
}
