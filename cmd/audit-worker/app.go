package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"golang.org/x/sync/errgroup"

	"siteaudit/internal/audit"
	"siteaudit/internal/config"
	"siteaudit/internal/constants"
	"siteaudit/internal/dataaccess"
	"siteaudit/internal/dedup"
	"siteaudit/internal/dispatch"
	"siteaudit/internal/logger"
	"siteaudit/internal/runners"
	"siteaudit/pkg/bootstrap"
	"siteaudit/pkg/health"
	"siteaudit/pkg/logging"
	"siteaudit/pkg/metrics"
	"siteaudit/pkg/middleware"
	"siteaudit/pkg/migrations"
	"siteaudit/pkg/ratelimit"
	"siteaudit/pkg/tracing"
)

type App struct {
	*bootstrap.Base
	dbConnector    *bootstrap.DatabaseConnector
	redis          *redis.Client
	mongoClient    *mongo.Client
	postgresDB     *sqlx.DB
	dataAccess     dataaccess.DataAccess
	dispatcher     *dispatch.Dispatcher
	auditLimiter   *ratelimit.KeyedLimiter
	opsLimiter     *ratelimit.KeyedLimiter
	tracerProvider *tracing.TracerProvider
	server         *http.Server
}

func NewApp(cfg *config.Config, log logger.Logger) *App {
	if sugaredLogger, ok := log.(*logger.SugaredLogger); ok {
		sugaredLogger.SetServiceName(serviceName)
	}
	return &App{
		Base:        bootstrap.NewBase(cfg, log),
		dbConnector: bootstrap.NewDatabaseConnector(cfg, log),
	}
}

func (a *App) Initialize(ctx context.Context) error {
	initCtx := logging.WithServiceName(ctx, serviceName)

	tp, err := tracing.Init(a.Config.Tracing, serviceName)
	if err != nil {
		return fmt.Errorf("failed to initialize tracing: %w", err)
	}
	a.tracerProvider = tp

	metrics.RegisterAuditMetrics()
	metrics.RegisterBrokerMetrics()
	metrics.RegisterDataAccessMetrics()
	if a.Config.CircuitBreaker.Enabled {
		metrics.RegisterCircuitBreakerMetrics()
	}

	if err := a.initDatabases(initCtx); err != nil {
		return err
	}

	if err := a.InitBroker(serviceName); err != nil {
		return fmt.Errorf("failed to initialize broker: %w", err)
	}

	a.initDispatcher()
	a.initHTTPServer()

	a.Logger.InfowCtx(initCtx, "Audit worker initialized")
	return nil
}

func (a *App) initDatabases(ctx context.Context) error {
	mongoClient, err := a.dbConnector.InitMongoDB(ctx)
	if err != nil {
		return fmt.Errorf("failed to initialize MongoDB: %w", err)
	}
	a.mongoClient = mongoClient

	pg, err := a.dbConnector.InitPostgreSQL(ctx)
	if err != nil {
		return fmt.Errorf("failed to initialize PostgreSQL: %w", err)
	}
	a.postgresDB = pg

	rdb, err := a.dbConnector.InitRedis(ctx)
	if err != nil {
		a.Logger.WarnwCtx(ctx, "Redis unavailable, data access cache disabled", "error", err)
	}
	a.redis = rdb

	mongoDB := mongoClient.Database(a.Config.Database.MongoDB.Database)
	if a.Config.Database.RunMigrations {
		if err := migrations.RunPostgres(pg.DB, a.Config.Database.MigrationsPath); err != nil {
			return fmt.Errorf("failed to run postgres migrations: %w", err)
		}
		if err := migrations.EnsureMongoIndexes(ctx, mongoDB); err != nil {
			return fmt.Errorf("failed to ensure mongo indexes: %w", err)
		}
		a.Logger.InfowCtx(ctx, "Migrations applied")
	}

	var da dataaccess.DataAccess = dataaccess.NewStore(
		dataaccess.NewMongoRepository(mongoDB),
		dataaccess.NewConfigurationRepository(pg),
	)
	if a.redis != nil {
		ttl := time.Duration(a.Config.Audit.CacheTTLSeconds) * time.Second
		da = dataaccess.NewCachedDataAccess(da, a.redis, ttl, a.Logger)
	}
	a.dataAccess = dataaccess.NewCircuitBreakerDataAccess(da, a.Config.CircuitBreaker)
	return nil
}

func (a *App) initDispatcher() {
	registry := dispatch.NewRegistry()

	resolver := audit.NewRedirectResolver(audit.ResolverOptions{
		MaxHops:   a.Config.Audit.Redirect.MaxHops,
		Timeout:   a.Config.Audit.Redirect.Timeout,
		UserAgent: a.Config.Audit.Redirect.UserAgent,
	})

	reachability, err := audit.NewBuilder().
		WithURLResolver(resolver).
		WithRunner(runners.NewReachability(nil)).
		Build()
	if err != nil {
		a.Logger.Fatalf("failed to build %s audit: %v", runners.ReachabilityType, err)
	}
	registry.Register(runners.ReachabilityType, reachability)

	rt := &audit.Runtime{
		DataAccess: a.dataAccess,
		Queue:      a.Producer,
		Env:        audit.Env{AuditResultsQueueURL: a.Config.Audit.ResultsQueueURL},
		Logger:     a.Logger,
	}

	if rl := a.Config.Audit.RateLimit; rl.Enabled {
		a.auditLimiter = ratelimit.New(ratelimit.Config{RPS: rl.RPS, Burst: rl.Burst})
	}

	a.dispatcher = dispatch.NewDispatcher(registry, rt, a.auditLimiter, a.Logger)
	if dd := a.Config.Audit.Dedup; dd.Enabled {
		if a.redis != nil {
			a.dispatcher.WithDeduplicator(dedup.NewGuard(dedup.NewRepository(a.redis), dd, a.Logger))
		} else {
			a.Logger.Warnw("Audit dedup enabled but Redis is unavailable, duplicates will not be suppressed")
		}
	}
	a.Logger.Infow("Audit types registered", "types", registry.Types())
}

func (a *App) initHTTPServer() {
	gin.SetMode(gin.ReleaseMode)
	a.opsLimiter = ratelimit.New(ratelimit.DefaultConfig())

	router := gin.New()
	router.Use(
		middleware.Recovery(a.Logger),
		middleware.RequestID(),
		tracing.GinMiddleware(serviceName),
		middleware.Logger(a.Logger),
		ratelimit.Middleware(a.opsLimiter),
	)

	healthRegistry := health.NewCheckerRegistry()
	healthRegistry.Register(health.NewMongoDBChecker(a.mongoClient))
	healthRegistry.Register(health.NewPostgreSQLChecker(a.postgresDB.DB))
	healthRegistry.Register(health.NewKafkaChecker(a.Config.Broker.Kafka.Brokers))
	if a.redis != nil {
		healthRegistry.RegisterOptional(health.NewRedisChecker(a.redis))
	}

	router.GET("/health", healthRegistry.Handler())
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	a.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", a.Config.Server.Port),
		Handler:      router,
		ReadTimeout:  a.Config.Server.ReadTimeout,
		WriteTimeout: a.Config.Server.WriteTimeout,
	}
}

func (a *App) Run(ctx context.Context) error {
	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.Logger.InfowCtx(gCtx, "HTTP server starting", "port", a.Config.Server.Port)
		if err := a.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), constants.ShutdownTimeout)
		defer cancel()
		return a.server.Shutdown(shutdownCtx)
	})

	g.Go(func() error {
		a.opsLimiter.Run(gCtx)
		return nil
	})
	if a.auditLimiter != nil {
		g.Go(func() error {
			a.auditLimiter.Run(gCtx)
			return nil
		})
	}

	inputTopic := a.Config.Broker.Kafka.InputTopic
	if inputTopic == "" {
		inputTopic = constants.DefaultInputTopic
	}

	g.Go(func() error {
		consumeCtx := logging.WithServiceName(gCtx, serviceName)
		a.Logger.InfowCtx(consumeCtx, "Consuming audit jobs", "topic", inputTopic)
		return a.Consumer.Consume(gCtx, inputTopic, a.dispatcher.HandlerFunc())
	})

	return g.Wait()
}

func (a *App) Shutdown(ctx context.Context) error {
	shutdownCtx := logging.WithServiceName(ctx, serviceName)
	a.Logger.InfowCtx(shutdownCtx, "Shutting down audit worker")

	additionalShutdown := func(ctx context.Context) []error {
		var errs []error

		if a.tracerProvider != nil {
			tctx, cancel := context.WithTimeout(ctx, constants.ShutdownTimeout)
			defer cancel()
			if err := a.tracerProvider.Shutdown(tctx); err != nil {
				errs = append(errs, fmt.Errorf("tracer shutdown error: %w", err))
			}
		}

		errs = append(errs, a.dbConnector.ShutdownDatabases(ctx, a.redis, a.postgresDB, a.mongoClient)...)
		return errs
	}

	return a.Base.Shutdown(ctx, additionalShutdown)
}
