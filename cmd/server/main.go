package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	affiliateapp "github.com/eksporyuk/backend/internal/application/affiliate"
	automationapp "github.com/eksporyuk/backend/internal/application/automation"
	eventapp "github.com/eksporyuk/backend/internal/application/event"
	"github.com/eksporyuk/backend/internal/domain/affiliate"
	"github.com/eksporyuk/backend/internal/domain/automation"
	"github.com/eksporyuk/backend/internal/domain/shared"
	"github.com/eksporyuk/backend/internal/infrastructure/auth"
	"github.com/eksporyuk/backend/internal/infrastructure/cache"
	"github.com/eksporyuk/backend/internal/infrastructure/config"
	"github.com/eksporyuk/backend/internal/infrastructure/event"
	"github.com/eksporyuk/backend/internal/infrastructure/logger"
	"github.com/eksporyuk/backend/internal/infrastructure/messaging"
	"github.com/eksporyuk/backend/internal/infrastructure/migration"
	"github.com/eksporyuk/backend/internal/infrastructure/persistence"
	"github.com/eksporyuk/backend/internal/infrastructure/scheduler"
	"github.com/eksporyuk/backend/internal/infrastructure/telemetry"
	"github.com/eksporyuk/backend/internal/interfaces/http/handler"
	"github.com/eksporyuk/backend/internal/interfaces/http/middleware"
	"github.com/eksporyuk/backend/internal/interfaces/http/router"
	"github.com/eksporyuk/backend/migrations"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// version is set at build time with -ldflags "-X main.version=..."
var version = "dev"

// stopper is a background component stopped on shutdown
type stopper struct {
	name string
	stop func(ctx context.Context) error
}

func main() {
	runMigrations := flag.Bool("migrate", false, "Apply pending SQL migrations before serving")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	// Initialize logger
	log, err := logger.New(&logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		TimeFormat: "2006-01-02T15:04:05.000Z07:00",
	})
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer func() {
		_ = logger.Sync(log)
	}()

	log.Info("Starting affiliate backend",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
		zap.String("version", version),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Stopped in reverse order of registration
	var stoppers []stopper

	// Telemetry
	provider, err := telemetry.NewProvider(ctx, telemetry.Config{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		SamplingRatio:     cfg.Telemetry.SamplingRatio,
		ServiceName:       cfg.Telemetry.ServiceName,
		ServiceVersion:    version,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize telemetry", zap.Error(err))
	}
	stoppers = append(stoppers, stopper{"telemetry", provider.Shutdown})

	// Database
	gormLog := logger.NewGormLogger(log, logger.MapGormLogLevel(cfg.Log.Level),
		logger.WithSlowThreshold(cfg.Telemetry.DBSlowQueryThresh),
		logger.WithFullSQL(cfg.Telemetry.DBLogFullSQL),
	)
	db, err := persistence.NewDatabaseWithCustomLogger(&cfg.Database, gormLog)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()
	log.Info("Database connected successfully")

	dbTracing := telemetry.DefaultDBTracingConfig()
	dbTracing.Enabled = cfg.Telemetry.Enabled && cfg.Telemetry.DBTraceEnabled
	dbTracing.LogFullSQL = cfg.Telemetry.DBLogFullSQL
	if cfg.Telemetry.DBSlowQueryThresh > 0 {
		dbTracing.SlowQueryThresh = cfg.Telemetry.DBSlowQueryThresh
	}
	if err := telemetry.RegisterDBTracing(db.DB, dbTracing, log); err != nil {
		log.Fatal("Failed to register database tracing", zap.Error(err))
	}

	if *runMigrations {
		if err := migrate(db, log); err != nil {
			log.Fatal("Failed to apply migrations", zap.Error(err))
		}
	}

	// Repositories
	walletRepo := persistence.NewGormWalletRepository(db.DB)
	entryRepo := persistence.NewGormLedgerEntryRepository(db.DB)
	revenueRepo := persistence.NewGormPendingRevenueRepository(db.DB)
	payoutRepo := persistence.NewGormPayoutRepository(db.DB)
	automationRepo := persistence.NewGormAutomationRepository(db.DB)
	executionLogRepo := persistence.NewGormExecutionLogRepository(db.DB)
	creditRepo := persistence.NewGormCreditRepository(db.DB)
	outboxRepo := event.NewGormOutboxRepository(db.DB)

	// Events are written to the outbox inside the ledger transaction
	eventSerializer := event.NewEventSerializer()
	event.RegisterAllEvents(eventSerializer)
	txScope := persistence.NewGormAffiliateTransactionScope(db.DB, event.NewOutboxPublisher(eventSerializer))

	// Application services
	minPayout, err := decimal.NewFromString(cfg.Payout.MinAmount)
	if err != nil {
		log.Fatal("Invalid payout minimum", zap.String("min_amount", cfg.Payout.MinAmount), zap.Error(err))
	}
	ledgerService := affiliateapp.NewLedgerService(txScope, walletRepo, entryRepo, log)
	admissionService := affiliateapp.NewRevenueAdmissionService(txScope, revenueRepo, log)
	approvalService := affiliateapp.NewCommissionApprovalService(txScope, log)
	payoutService := affiliateapp.NewPayoutService(txScope, payoutRepo, affiliateapp.PayoutConfig{MinAmount: minPayout}, log)
	definitionService := automationapp.NewDefinitionService(automationRepo, executionLogRepo, log)
	schedulerService := automationapp.NewSchedulerService(automationRepo, executionLogRepo, log)
	creditService := automationapp.NewCreditService(creditRepo, log)
	outboxService := eventapp.NewOutboxService(outboxRepo, log)

	// Event bus and business metrics
	eventBus := event.NewInMemoryEventBus(log)
	affiliateMetrics, err := telemetry.NewAffiliateMetrics(provider.Meter(cfg.App.Name), log)
	if err != nil {
		log.Fatal("Failed to create affiliate metrics", zap.Error(err))
	}
	eventBus.Subscribe(affiliateMetrics)
	if err := eventBus.Start(ctx); err != nil {
		log.Fatal("Failed to start event bus", zap.Error(err))
	}
	stoppers = append(stoppers, stopper{"event bus", eventBus.Stop})
	affiliateMetrics.StartOutboxCollection(ctx, outboxRepo, time.Minute)
	stoppers = append(stoppers, stopper{"affiliate metrics", func(context.Context) error {
		affiliateMetrics.Stop()
		return nil
	}})

	// Outbox relay
	if cfg.Event.ProcessorEnabled {
		sinks := []event.Sink{event.NewBusSink(eventBus, eventSerializer)}
		if cfg.Kafka.Enabled {
			kafkaSink := event.NewKafkaSink(event.KafkaSinkConfig{
				Brokers:      cfg.Kafka.Brokers,
				Topic:        cfg.Kafka.PayoutTopic,
				WriteTimeout: cfg.Kafka.WriteTimeout,
				EventTypes: []string{
					affiliate.EventTypePayoutApproved,
					affiliate.EventTypePayoutRejected,
					affiliate.EventTypePayoutCompleted,
				},
			})
			sinks = append(sinks, kafkaSink)
			stoppers = append(stoppers, stopper{"kafka sink", func(context.Context) error { return kafkaSink.Close() }})
		}
		outboxProcessor := event.NewOutboxProcessor(outboxRepo, event.OutboxProcessorConfig{
			BatchSize:        cfg.Event.BatchSize,
			PollInterval:     cfg.Event.PollInterval,
			CleanupEnabled:   cfg.Event.CleanupEnabled,
			CleanupRetention: cfg.Event.CleanupRetention,
			CleanupInterval:  time.Hour,
		}, log, sinks...)
		if err := outboxProcessor.Start(ctx); err != nil {
			log.Fatal("Failed to start outbox processor", zap.Error(err))
		}
		stoppers = append(stoppers, stopper{"outbox processor", outboxProcessor.Stop})
		log.Info("Outbox processor started",
			zap.Int("batch_size", cfg.Event.BatchSize),
			zap.Duration("poll_interval", cfg.Event.PollInterval),
			zap.Int("sinks", len(sinks)),
		)
	}

	// Conversions arriving from the storefront
	if cfg.Kafka.Enabled {
		store, err := cache.NewIdempotencyStoreFactory(cfg.Redis, cache.WithLogger(log)).CreateStore(ctx)
		if err != nil {
			log.Fatal("Failed to create idempotency store", zap.Error(err))
		}
		conversionHandler := event.NewIdempotentHandler(
			affiliateapp.NewConversionHandler(admissionService, log),
			store,
			log,
			event.WithIdempotencyConfig(shared.IdempotencyConfig{TTL: cfg.Event.IdempotencyTTL, Enabled: true}),
		)
		consumer := event.NewConversionConsumer(event.ConsumerConfig{
			Brokers:         cfg.Kafka.Brokers,
			Topic:           cfg.Kafka.ConversionTopic,
			GroupID:         cfg.Kafka.GroupID,
			RetryBackoff:    cfg.Kafka.RetryBackoff,
			DeadLetterTopic: cfg.Kafka.DeadLetterTopic,
			WriteTimeout:    cfg.Kafka.WriteTimeout,
		}, conversionHandler, eventSerializer, log)
		if err := consumer.Start(ctx); err != nil {
			log.Fatal("Failed to start conversion consumer", zap.Error(err))
		}
		stoppers = append(stoppers,
			stopper{"idempotency store", func(context.Context) error { return store.Close() }},
			stopper{"conversion consumer", consumer.Stop},
		)
	}

	// Automation executor and poller
	sender, closeSender := newSender(cfg.Messaging, log)
	stoppers = append(stoppers, stopper{"message sender", func(context.Context) error { return closeSender() }})
	executorService := automationapp.NewExecutorService(automationRepo, executionLogRepo, creditRepo, sender, automationapp.ExecutorConfig{
		SendTimeout:  cfg.Automation.SendTimeout,
		ClaimTimeout: cfg.Automation.ClaimTimeout,
		BatchSize:    cfg.Automation.BatchSize,
		CreditCost:   cfg.Automation.CreditCost,
	}, log)
	poller, err := scheduler.NewAutomationPoller(executorService, scheduler.AutomationPollerConfig{
		Enabled:      cfg.Automation.PollerEnabled,
		PollInterval: cfg.Automation.PollInterval,
	}, log, scheduler.WithPassRecorder(affiliateMetrics))
	if err != nil {
		log.Fatal("Failed to create automation poller", zap.Error(err))
	}
	if err := poller.Start(ctx); err != nil {
		log.Fatal("Failed to start automation poller", zap.Error(err))
	}
	stoppers = append(stoppers, stopper{"automation poller", poller.Stop})

	// Bearer tokens are issued by the identity service; revocations live in Redis
	verifier := auth.NewTokenVerifier(cfg.JWT, auth.WithRevocationList(newRevocationList(ctx, cfg.Redis, log)))

	// Setup Gin
	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	middleware.SetupValidator()

	engine := gin.New()
	if len(cfg.HTTP.TrustedProxies) > 0 {
		if err := engine.SetTrustedProxies(cfg.HTTP.TrustedProxies); err != nil {
			log.Fatal("Invalid trusted proxies", zap.Error(err))
		}
	} else {
		_ = engine.SetTrustedProxies(nil)
	}

	corsConfig := middleware.DefaultCORSConfig()
	corsConfig.AllowOrigins = cfg.HTTP.CORSAllowOrigins
	corsConfig.AllowMethods = cfg.HTTP.CORSAllowMethods
	corsConfig.AllowHeaders = cfg.HTTP.CORSAllowHeaders

	engine.Use(middleware.RequestID())
	engine.Use(logger.Recovery(log))
	engine.Use(logger.GinMiddleware(log))
	engine.Use(middleware.Secure())
	engine.Use(middleware.CORS(corsConfig))
	engine.Use(middleware.BodyLimit(cfg.HTTP.MaxBodySize))
	engine.Use(middleware.Tracing(middleware.TracingConfig{
		ServiceName: cfg.Telemetry.ServiceName,
		Enabled:     cfg.Telemetry.Enabled,
	}))
	engine.Use(middleware.HTTPMetrics(provider.Meter(cfg.App.Name), log))

	systemHandler := handler.NewSystemHandler(cfg.App.Name, version, db)
	engine.GET("/health", systemHandler.Health)

	payoutLimiter := middleware.NewRateLimiter(5, time.Minute)
	defer payoutLimiter.Stop()

	router.NewRouter(engine).
		Use(middleware.JWTAuth(middleware.JWTConfig{
			Verifier:  verifier,
			SkipPaths: router.PublicPaths,
			Logger:    log,
		}), middleware.SpanAttributes()).
		Register(router.APIRoutes(router.Handlers{
			Revenue:    handler.NewRevenueHandler(admissionService, approvalService),
			Wallet:     handler.NewWalletHandler(ledgerService),
			Payout:     handler.NewPayoutHandler(payoutService),
			Automation: handler.NewAutomationHandler(definitionService, schedulerService),
			Credit:     handler.NewCreditHandler(creditService),
			Outbox:     handler.NewOutboxHandler(outboxService),
			System:     systemHandler,
		}, router.Guards{
			Admin:       middleware.RequireRole(auth.RoleAdmin),
			PayoutLimit: middleware.RateLimitPerCaller(payoutLimiter),
		})...).
		Setup()

	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error("Server forced to shutdown", zap.Error(err))
		}
		for i := len(stoppers) - 1; i >= 0; i-- {
			if err := stoppers[i].stop(shutdownCtx); err != nil {
				log.Error("Error stopping component", zap.String("component", stoppers[i].name), zap.Error(err))
			}
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		log.Error("Server exited with error", zap.Error(err))
		os.Exit(1)
	}
	log.Info("Server exited gracefully")
}

func migrate(db *persistence.Database, log *zap.Logger) error {
	sqlDB, err := db.DB.DB()
	if err != nil {
		return err
	}
	m, err := migration.New(sqlDB, migrations.FS, migration.DefaultConfig(), log)
	if err != nil {
		return err
	}
	return m.Up()
}

// newSender picks the transport for automation messages
func newSender(cfg config.MessagingConfig, log *zap.Logger) (automation.MessageSender, func() error) {
	if cfg.Driver != "amqp" {
		log.Info("Automation messages are logged, not delivered", zap.String("driver", cfg.Driver))
		return messaging.NewLogSender(log), func() error { return nil }
	}
	sender, err := messaging.NewAMQPSender(messaging.AMQPConfig{
		URL:                cfg.AMQPURL,
		Exchange:           cfg.Exchange,
		EmailRoutingKey:    cfg.EmailRouting,
		WhatsAppRoutingKey: cfg.WARouting,
	}, log)
	if err != nil {
		log.Fatal("Failed to connect to RabbitMQ", zap.Error(err))
	}
	return sender, sender.Close
}

// newRevocationList uses Redis when reachable. Without Redis a revoked
// token stays valid on other instances until it expires.
func newRevocationList(ctx context.Context, cfg config.RedisConfig, log *zap.Logger) auth.RevocationList {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr(),
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		if cfg.RequireRedis {
			log.Fatal("Redis required for token revocation but unavailable", zap.Error(err))
		}
		log.Warn("Redis unavailable, token revocations are local to this instance", zap.Error(err))
		_ = client.Close()
		return auth.NewInMemoryRevocationList()
	}
	return auth.NewRedisRevocationList(client)
}
