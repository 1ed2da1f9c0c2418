package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"beacon/internal/broker"
	"beacon/internal/campaign"
	"beacon/internal/config"
	"beacon/internal/constants"
	"beacon/internal/consumer"
	"beacon/internal/deadletter"
	"beacon/internal/events"
	"beacon/internal/idempotency"
	"beacon/internal/logger"
	"beacon/internal/processing"
	"beacon/pkg/bootstrap"
	"beacon/pkg/health"
	"beacon/pkg/metrics"
	"beacon/pkg/middleware"
	"beacon/pkg/retry"
	"beacon/pkg/tracing"
)

type App struct {
	cfg    *config.Config
	logger logger.Logger

	dbConnector    *bootstrap.DatabaseConnector
	conns          *bootstrap.Connections
	tracerProvider *tracing.Provider

	broker    broker.Broker
	dlqSink   deadletter.Sink
	campaigns *campaign.Service
	consumer  *consumer.Consumer
	health    *health.Registry
	server    *http.Server
}

func NewApp(cfg *config.Config, log logger.Logger) *App {
	return &App{
		cfg:         cfg,
		logger:      log,
		dbConnector: bootstrap.NewDatabaseConnector(cfg, log),
	}
}

func (a *App) Initialize(ctx context.Context) error {
	tp, err := tracing.Init(a.cfg.Tracing, constants.ServiceName)
	if err != nil {
		return fmt.Errorf("failed to initialize tracing: %w", err)
	}
	a.tracerProvider = tp

	metrics.RegisterWorkerMetrics()
	if a.cfg.CircuitBreaker.Enabled {
		metrics.RegisterCircuitBreakerMetrics()
	}

	conns, err := a.dbConnector.Open(ctx)
	if err != nil {
		return fmt.Errorf("failed to initialize databases: %w", err)
	}
	a.conns = conns
	if conns.Postgres == nil {
		return errors.New("postgresql connection is required")
	}

	b, err := broker.New(a.cfg.Broker, conns.Redis, a.logger)
	if err != nil {
		return fmt.Errorf("failed to initialize broker: %w", err)
	}
	a.broker = b

	if err := a.initCampaigns(); err != nil {
		return err
	}

	pipeline, err := a.initPipeline(ctx)
	if err != nil {
		return err
	}

	channel := broker.Channel(a.cfg.Broker)
	a.consumer = consumer.New(a.broker, channel, a.brokerName(), pipeline, a.cfg.Consumer, a.logger)

	a.initHealth()
	if a.cfg.Server.Enabled {
		a.initHTTPServer()
	}

	return nil
}

func (a *App) brokerName() string {
	if a.cfg.Broker.Type == "" {
		return constants.BrokerRedis
	}
	return a.cfg.Broker.Type
}

func (a *App) initCampaigns() error {
	repo := campaign.NewCircuitBreakerRepository(campaign.NewRepository(a.conns.Postgres), a.cfg.CircuitBreaker)

	svc, err := campaign.NewService(repo, a.cfg.Campaigns, a.logger)
	if err != nil {
		return fmt.Errorf("failed to create campaign service: %w", err)
	}
	a.campaigns = svc
	return nil
}

func (a *App) initPipeline(ctx context.Context) (*processing.Pipeline, error) {
	eventsRepo := events.NewCircuitBreakerRepository(events.NewRepository(a.conns.Postgres), a.cfg.CircuitBreaker)

	var marker idempotency.Marker
	if a.cfg.Idempotency.MarkerEnabled {
		if a.conns.Redis == nil {
			return nil, errors.New("idempotency marker requires a redis connection")
		}
		marker = idempotency.NewRedisMarker(a.conns.Redis, time.Duration(a.cfg.Idempotency.MarkerTTLSeconds)*time.Second)
	}

	sink, err := deadletter.NewSink(ctx, a.cfg.DeadLetter, deadletter.Connections{
		Redis:        a.conns.Redis,
		Mongo:        a.conns.MongoDB,
		KafkaBrokers: a.cfg.Broker.Kafka.Brokers,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize dead letter sink: %w", err)
	}
	a.dlqSink = sink

	channel := broker.Channel(a.cfg.Broker)
	dlq := deadletter.NewHandler(sink, channel, a.cfg.DeadLetter.WriteTimeout, a.logger)

	policy := retry.Policy{
		MaxAttempts: a.cfg.Retry.MaxAttempts,
		BaseDelay:   a.cfg.Retry.BaseDelay,
	}

	return processing.New(
		idempotency.NewGate(eventsRepo, marker, a.logger),
		a.campaigns,
		campaign.NewMatcher(a.logger),
		eventsRepo,
		policy,
		dlq,
		a.logger,
	), nil
}

func (a *App) initHealth() {
	a.health = health.NewRegistry()
	a.health.Register(health.NewPostgreSQLChecker(a.conns.Postgres))
	if a.conns.Redis != nil {
		a.health.Register(health.NewRedisChecker(a.conns.Redis))
	}
	if a.conns.Mongo != nil {
		if a.cfg.DeadLetter.Type == constants.DeadLetterSinkMongoDB {
			a.health.Register(health.NewMongoDBChecker(a.conns.Mongo))
		} else {
			a.health.RegisterOptional(health.NewMongoDBChecker(a.conns.Mongo))
		}
	}
	if a.cfg.Campaigns.ReloadIntervalSeconds > 0 {
		interval := time.Duration(a.cfg.Campaigns.ReloadIntervalSeconds) * time.Second
		a.health.RegisterOptional(campaignsCheck(a.campaigns, interval, time.Now))
	}
	a.health.Register(health.NewCheckFunc("consumer", func(context.Context) error {
		if state := a.consumer.State(); !state.Running() {
			return fmt.Errorf("consumer is %s", state)
		}
		return nil
	}))
}

func (a *App) initHTTPServer() {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	// recovery sits innermost so the request log sees the 500
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.LoggerMiddleware(a.logger))
	router.Use(middleware.RecoveryMiddleware(a.logger))

	router.GET("/health", func(c *gin.Context) {
		h := a.health.Check(c.Request.Context())
		status := http.StatusOK
		if h.Status == health.StatusUnhealthy {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, h)
	})
	metricsHandler := promhttp.Handler()
	router.GET("/metrics", func(c *gin.Context) {
		if a.conns != nil && a.conns.Postgres != nil {
			metrics.SetDatabaseConnectionsActive(a.conns.Postgres.Stats().InUse)
		}
		metricsHandler.ServeHTTP(c.Writer, c.Request)
	})

	a.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", a.cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  a.cfg.Server.ReadTimeout,
		WriteTimeout: a.cfg.Server.WriteTimeout,
	}
}

type snapshotClock interface {
	LoadedAt() time.Time
}

// campaignsCheck degrades health when the cached campaign snapshot has not
// been refreshed for three reload intervals.
func campaignsCheck(snapshot snapshotClock, interval time.Duration, now func() time.Time) health.CheckFunc {
	return health.NewCheckFunc("campaigns", func(context.Context) error {
		loadedAt := snapshot.LoadedAt()
		if loadedAt.IsZero() {
			return errors.New("campaigns not loaded yet")
		}
		if age := now().Sub(loadedAt); age > 3*interval {
			return fmt.Errorf("campaigns last loaded %s ago", age.Round(time.Second))
		}
		return nil
	})
}

// Run blocks until ctx is cancelled or the consumer fails. Side tasks stop
// with the consumer.
func (a *App) Run(ctx context.Context) error {
	g, gCtx := errgroup.WithContext(ctx)
	runCtx, stop := context.WithCancel(gCtx)
	defer stop()

	if a.server != nil {
		g.Go(func() error {
			a.logger.InfowCtx(ctx, "HTTP server starting", "port", a.cfg.Server.Port)
			if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("HTTP server error: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-runCtx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), constants.ShutdownTimeout)
			defer cancel()
			return a.server.Shutdown(shutdownCtx)
		})
	}

	if a.cfg.Campaigns.ReloadIntervalSeconds > 0 {
		g.Go(func() error {
			return ignoreCanceled(a.campaigns.StartReloader(runCtx))
		})

		if updates := a.cfg.Campaigns.UpdatesChannel; updates != "" {
			sub, err := a.broker.Subscribe(ctx, updates)
			if err != nil {
				a.logger.WarnwCtx(ctx, "Failed to subscribe to campaign updates, event-driven reload disabled",
					"channel", updates,
					"error", err,
				)
			} else {
				handler := campaign.NewHandler(a.campaigns, a.logger)
				g.Go(func() error {
					return ignoreCanceled(handler.Listen(runCtx, sub, a.cfg.Consumer.PollTimeout))
				})
			}
		}
	}

	g.Go(func() error {
		defer stop()
		return a.consumer.Run(gCtx)
	})

	return g.Wait()
}

func ignoreCanceled(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (a *App) Shutdown(ctx context.Context) error {
	a.logger.InfowCtx(ctx, "Shutting down campaign trigger worker")

	var errs []error

	if a.broker != nil {
		if err := a.broker.Close(); err != nil {
			errs = append(errs, fmt.Errorf("broker close error: %w", err))
		}
	}

	if closer, ok := a.dlqSink.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			errs = append(errs, fmt.Errorf("dead letter sink close error: %w", err))
		}
	}

	if a.tracerProvider != nil {
		if err := a.tracerProvider.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("tracer provider shutdown error: %w", err))
		}
	}

	errs = append(errs, a.dbConnector.Close(ctx, a.conns)...)

	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	a.logger.InfowCtx(ctx, "Application exited successfully")
	return nil
}
