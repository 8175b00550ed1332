package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	appledger "github.com/primebond/ledger/internal/application/ledger"
	"github.com/primebond/ledger/internal/domain/shared/valueobject"
	"github.com/primebond/ledger/internal/infrastructure/auth"
	"github.com/primebond/ledger/internal/infrastructure/cache"
	"github.com/primebond/ledger/internal/infrastructure/config"
	"github.com/primebond/ledger/internal/infrastructure/event"
	"github.com/primebond/ledger/internal/infrastructure/gateway"
	"github.com/primebond/ledger/internal/infrastructure/logger"
	"github.com/primebond/ledger/internal/infrastructure/messaging/kafka"
	"github.com/primebond/ledger/internal/infrastructure/metrics"
	"github.com/primebond/ledger/internal/infrastructure/notification"
	"github.com/primebond/ledger/internal/infrastructure/persistence"
	"github.com/primebond/ledger/internal/infrastructure/scheduler"
	"github.com/primebond/ledger/internal/infrastructure/telemetry"
	"github.com/primebond/ledger/internal/interfaces/http/handler"
	"github.com/primebond/ledger/internal/interfaces/http/middleware"
	"github.com/primebond/ledger/internal/interfaces/http/router"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

var version = "dev"

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	// Initialize logger
	log, err := logger.New(&logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	}, cfg.App.Name)
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer func() {
		_ = log.Sync()
	}()

	log.Info("Starting ledger API",
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
		zap.String("version", version),
	)

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Tracing is installed before the database so GORM spans have a provider
	tracerProvider, err := telemetry.NewTracerProvider(rootCtx, telemetry.Config{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		SamplingRatio:     cfg.Telemetry.SamplingRatio,
		ServiceName:       cfg.Telemetry.ServiceName,
		ServiceVersion:    version,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize tracer provider", zap.Error(err))
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tracerProvider.Shutdown(ctx); err != nil {
			log.Error("Error shutting down tracer provider", zap.Error(err))
		}
	}()

	logProvider, err := telemetry.NewLoggerProvider(rootCtx, telemetry.Config{
		Enabled:           cfg.Telemetry.Enabled && cfg.Telemetry.LogsEnabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		ServiceName:       cfg.Telemetry.ServiceName,
		ServiceVersion:    version,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize logger provider", zap.Error(err))
	}
	defer func() {
		if err := logProvider.Shutdown(context.Background()); err != nil {
			log.Error("Error shutting down logger provider", zap.Error(err))
		}
	}()
	log = logProvider.Bridge(log, cfg.Telemetry.ServiceName, logger.ParseLevel(cfg.Log.Level))

	profiler, err := telemetry.NewProfiler(telemetry.ProfilerConfig{
		Enabled:           cfg.Telemetry.ProfilingEnabled,
		ServerAddress:     cfg.Telemetry.ProfilingServer,
		ApplicationName:   cfg.Telemetry.ServiceName,
		BasicAuthUser:     cfg.Telemetry.ProfilingAuthUser,
		BasicAuthPassword: cfg.Telemetry.ProfilingAuthPassword,
	}, log)
	if err != nil {
		log.Fatal("Failed to start profiler", zap.Error(err))
	}
	defer func() {
		if err := profiler.Stop(); err != nil {
			log.Error("Error stopping profiler", zap.Error(err))
		}
	}()
	if profiler.IsEnabled() {
		tracerProvider.EnableSpanProfiles()
	}

	// Database
	gormLog := logger.NewGormLogger(log, logger.MapGormLogLevel(cfg.Log.Level))
	db, err := persistence.NewDatabaseWithCustomLogger(&cfg.Database, gormLog)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()
	if cfg.Telemetry.Enabled && cfg.Telemetry.DBTraceEnabled {
		plugin := telemetry.NewDBTracingPlugin(telemetry.DBTracingConfig{
			Enabled:    true,
			LogFullSQL: cfg.Telemetry.DBLogFullSQL,
			DBName:     cfg.Database.DBName,
		}, log)
		if err := plugin.Register(db.DB); err != nil {
			log.Fatal("Failed to register database tracing", zap.Error(err))
		}
	}
	meterProvider, err := telemetry.NewMeterProvider(rootCtx, telemetry.Config{
		Enabled:           cfg.Telemetry.Enabled && cfg.Telemetry.MetricsEnabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		ServiceName:       cfg.Telemetry.ServiceName,
		ServiceVersion:    version,
		Insecure:          cfg.Telemetry.Insecure,
	}, 0, log)
	if err != nil {
		log.Fatal("Failed to initialize meter provider", zap.Error(err))
	}
	defer func() {
		if err := meterProvider.Shutdown(context.Background()); err != nil {
			log.Error("Error shutting down meter provider", zap.Error(err))
		}
	}()
	if sqlDB, err := db.DB.DB(); err == nil {
		if _, err := telemetry.RegisterDBPoolMetrics(meterProvider.Meter("ledger/db"), sqlDB); err != nil {
			log.Warn("Failed to register database pool metrics", zap.Error(err))
		}
	}
	log.Info("Database connected successfully")

	// Redis-backed coordination, with in-process fallbacks outside production
	cacheFactory := cache.NewFactory(cfg.Redis,
		cache.WithLogger(log),
		cache.WithInMemoryFallback(cfg.App.Env != "production"),
	)
	defer func() {
		if err := cacheFactory.Close(); err != nil {
			log.Error("Error closing redis client", zap.Error(err))
		}
	}()
	idempotency, err := cacheFactory.CreateIdempotencyStore(rootCtx)
	if err != nil {
		log.Fatal("Failed to create callback idempotency store", zap.Error(err))
	}
	tickLock, err := cacheFactory.CreateTickLock(rootCtx)
	if err != nil {
		log.Fatal("Failed to create scheduler lock", zap.Error(err))
	}

	// Repositories
	scope := persistence.NewGormTransactionScope(db.DB)
	planRepo := persistence.NewGormPlanRepository(db.DB)
	investmentRepo := persistence.NewGormInvestmentRepository(db.DB)
	paymentRepo := persistence.NewGormPaymentRepository(db.DB)
	roiRepo := persistence.NewGormROIRepository(db.DB)
	returnRepo := persistence.NewGormReturnRepository(db.DB)
	memberRepo := persistence.NewGormMemberRepository(db.DB)
	profiles := persistence.NewGormProfileStore(db.DB)

	// Domain events: in-process bus, optionally forwarded to Kafka
	eventBus := event.NewInMemoryEventBus(log)
	if err := eventBus.Start(rootCtx); err != nil {
		log.Fatal("Failed to start event bus", zap.Error(err))
	}
	defer func() {
		if err := eventBus.Stop(context.Background()); err != nil {
			log.Error("Error stopping event bus", zap.Error(err))
		}
	}()
	if cfg.Kafka.Enabled {
		publisher, err := kafka.NewEventPublisher(kafka.Config{
			Brokers:      cfg.Kafka.Brokers,
			Topic:        cfg.Kafka.Topic,
			Acks:         cfg.Kafka.Acks,
			BatchTimeout: cfg.Kafka.BatchTimeout,
		}, log)
		if err != nil {
			log.Fatal("Failed to create kafka publisher", zap.Error(err))
		}
		defer func() {
			if err := publisher.Close(); err != nil {
				log.Error("Error closing kafka publisher", zap.Error(err))
			}
		}()
		eventBus.Subscribe(publisher)
		log.Info("Forwarding domain events to kafka",
			zap.Strings("brokers", cfg.Kafka.Brokers),
			zap.String("topic", cfg.Kafka.Topic),
		)
	}

	ledgerMetrics := metrics.New(true)

	var notifier appledger.Notifier
	if cfg.SMTP.Enabled {
		notifier = notification.NewEmailNotifier(notification.EmailConfig{
			Host:         cfg.SMTP.Host,
			Port:         cfg.SMTP.Port,
			User:         cfg.SMTP.User,
			Password:     cfg.SMTP.Password,
			From:         cfg.SMTP.From,
			AdminAddress: cfg.SMTP.AdminAddress,
		}, profiles, log)
	}

	var (
		checkout     appledger.Gateway
		stripeEvents *gateway.StripeWebhookParser
	)
	if cfg.Gateway.Enabled {
		switch cfg.Gateway.Provider {
		case "stripe":
			stripeConfig := &gateway.StripeConfig{
				SecretKey:     cfg.Gateway.StripeSecretKey,
				WebhookSecret: cfg.Gateway.StripeWebhookSecret,
				IsTestMode:    cfg.Gateway.StripeTestMode,
				SuccessURL:    cfg.Gateway.SuccessURL,
				CancelURL:     cfg.Gateway.CancelURL,
			}
			client, err := gateway.NewStripeCheckout(stripeConfig, log)
			if err != nil {
				log.Fatal("Failed to create Stripe checkout", zap.Error(err))
			}
			checkout = client
			if cfg.Gateway.StripeWebhookSecret != "" {
				stripeEvents, err = gateway.NewStripeWebhookParser(stripeConfig, log)
				if err != nil {
					log.Fatal("Failed to create Stripe webhook parser", zap.Error(err))
				}
			} else {
				log.Warn("No Stripe webhook secret configured, Stripe webhook endpoint disabled")
			}
		default:
			client, err := gateway.NewCheckoutClient(gateway.Config{
				Endpoint:   cfg.Gateway.Endpoint,
				APIKey:     cfg.Gateway.APIKey,
				SuccessURL: cfg.Gateway.SuccessURL,
				CancelURL:  cfg.Gateway.CancelURL,
				Timeout:    cfg.Gateway.Timeout,
			}, log)
			if err != nil {
				log.Fatal("Failed to create checkout client", zap.Error(err))
			}
			checkout = client
		}
		log.Info("Checkout gateway enabled", zap.String("provider", cfg.Gateway.Provider))
	}

	currency, err := valueobject.ParseCurrency(cfg.Ledger.Currency)
	if err != nil {
		log.Fatal("Invalid ledger currency", zap.Error(err))
	}
	settings := appledger.Settings{
		Currency:           currency,
		RegistrationFee:    cfg.Ledger.RegistrationFee,
		MemberNumberPrefix: cfg.Ledger.MemberNumberPrefix,
	}

	// Application services
	planCatalog := appledger.NewPlanCatalog(planRepo, log)
	manager := appledger.NewInvestmentManager(scope, planRepo, profiles, appledger.InvestmentManagerConfig{
		Events: eventBus,
		Logger: log,
	})
	paymentLedger := appledger.NewPaymentLedger(scope, paymentRepo, investmentRepo, profiles, manager, appledger.PaymentLedgerConfig{
		Settings:       settings,
		Gateway:        checkout,
		Notifier:       notifier,
		Idempotency:    idempotency,
		IdempotencyTTL: cfg.Gateway.IdempotencyTTL,
		Events:         eventBus,
		Metrics:        ledgerMetrics,
		Logger:         log,
	})
	settlement := appledger.NewSettlementService(scope, returnRepo, roiRepo, investmentRepo, profiles, manager, appledger.SettlementServiceConfig{
		Notifier: notifier,
		Events:   eventBus,
		Metrics:  ledgerMetrics,
		Logger:   log,
	})
	payouts := appledger.NewPayoutScheduler(scope, investmentRepo, returnRepo, appledger.PayoutSchedulerConfig{
		Locker:    tickLock,
		LockTTL:   cfg.Scheduler.LockTTL,
		BatchSize: cfg.Scheduler.BatchSize,
		Events:    eventBus,
		Metrics:   ledgerMetrics,
		Logger:    log,
	})
	queries := appledger.NewQueryService(investmentRepo, paymentRepo, roiRepo, returnRepo, settings, log)
	members := appledger.NewMemberService(memberRepo, log)

	// Daily payout trigger (if enabled)
	if cfg.Scheduler.Enabled {
		trigger, err := scheduler.NewPayoutTrigger(scheduler.PayoutTriggerConfig{
			RunHour:       cfg.Scheduler.RunHour,
			RunMinute:     cfg.Scheduler.RunMinute,
			CheckInterval: cfg.Scheduler.CheckInterval,
			TickTimeout:   cfg.Scheduler.TickTimeout,
		}, payouts, log)
		if err != nil {
			log.Fatal("Invalid payout scheduler configuration", zap.Error(err))
		}
		if err := trigger.Start(rootCtx); err != nil {
			log.Fatal("Failed to start payout scheduler", zap.Error(err))
		}
		defer func() {
			if err := trigger.Stop(context.Background()); err != nil {
				log.Error("Error stopping payout scheduler", zap.Error(err))
			}
		}()
		log.Info("Payout scheduler started",
			zap.Int("run_hour", cfg.Scheduler.RunHour),
			zap.Int("run_minute", cfg.Scheduler.RunMinute),
		)
	}

	// HTTP handlers
	jwtService := auth.NewJWTService(cfg.JWT)
	handlers := router.Handlers{
		Plans:       handler.NewPlanHandler(planCatalog),
		Investments: handler.NewInvestmentHandler(manager),
		Payments:    handler.NewPaymentHandler(paymentLedger),
		Listings:    handler.NewListingHandler(queries),
		Settlement:  handler.NewSettlementHandler(settlement, payouts),
		Members:     handler.NewMemberHandler(members),
	}
	if cfg.Gateway.CallbackSecret != "" {
		verifier := gateway.NewSignatureVerifier(cfg.Gateway.CallbackSecret, 0)
		handlers.Callback = handler.NewCallbackHandler(paymentLedger, verifier, gateway.SignatureHeader)
	} else {
		log.Warn("No gateway callback secret configured, callback endpoint disabled")
	}
	if stripeEvents != nil {
		handlers.Stripe = handler.NewStripeWebhookHandler(paymentLedger, stripeEvents)
	}

	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	if err := middleware.SetupValidator(); err != nil {
		log.Fatal("Failed to set up request validation", zap.Error(err))
	}

	engine := gin.New()
	if len(cfg.HTTP.TrustedProxies) > 0 {
		if err := engine.SetTrustedProxies(cfg.HTTP.TrustedProxies); err != nil {
			log.Warn("Failed to set trusted proxies", zap.Error(err))
		}
	}

	metricsPath := cfg.Metrics.Path
	if metricsPath == "" {
		metricsPath = "/metrics"
	}
	probePaths := []string{"/health", "/ready", metricsPath}

	// Middleware order:
	// 1. RequestID  2. Logger  3. Recovery  4. Tracing  5. Metrics
	// 6. Security headers  7. CORS  8. BodyLimit
	engine.Use(middleware.RequestID())
	engine.Use(logger.GinMiddleware(log))
	engine.Use(logger.Recovery(log))
	engine.Use(middleware.Tracing(cfg.Telemetry.ServiceName, probePaths...))
	engine.Use(middleware.SpanEnricher())
	if cfg.Metrics.Enabled {
		engine.Use(ledgerMetrics.GinMiddleware())
	}
	engine.Use(middleware.Secure(cfg.App.Env == "production"))

	corsConfig := middleware.DefaultCORSConfig()
	corsConfig.AllowOrigins = cfg.HTTP.CORSAllowOrigins
	if len(cfg.HTTP.CORSAllowMethods) > 0 {
		corsConfig.AllowMethods = cfg.HTTP.CORSAllowMethods
	}
	if len(cfg.HTTP.CORSAllowHeaders) > 0 {
		corsConfig.AllowHeaders = cfg.HTTP.CORSAllowHeaders
	}
	engine.Use(middleware.CORS(corsConfig))
	engine.Use(middleware.BodyLimit(cfg.HTTP.MaxBodySize))

	var extra []gin.HandlerFunc
	if cfg.HTTP.RateLimit > 0 {
		extra = append(extra, middleware.RateLimit(middleware.NewRateLimiter(cfg.HTTP.RateLimit, cfg.HTTP.RateLimitWindow)))
		log.Info("Rate limiting enabled",
			zap.Int("requests", cfg.HTTP.RateLimit),
			zap.Duration("window", cfg.HTTP.RateLimitWindow),
		)
	}

	// Probes and metrics (outside API versioning)
	health := handler.NewHealthHandler(version, healthChecks(db, cacheFactory, cfg))
	engine.GET("/health", health.Live)
	engine.GET("/ready", health.Ready)
	if cfg.Metrics.Enabled {
		engine.GET(metricsPath, gin.WrapH(ledgerMetrics.Handler()))
	}

	authn := middleware.JWTAuth(middleware.JWTConfig{Validator: jwtService, Logger: log})
	router.NewRouter(engine, router.WithAPIVersion("v1")).
		Register(router.LedgerGroups(handlers, authn, extra...)...).
		Setup()

	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	<-rootCtx.Done()
	log.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}

	log.Info("Server exited gracefully")
}

// healthChecks returns the readiness checks of the configured dependencies
func healthChecks(db *persistence.Database, factory *cache.Factory, cfg *config.Config) map[string]handler.Checker {
	checks := map[string]handler.Checker{
		"database": func(ctx context.Context) error {
			sqlDB, err := db.DB.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		},
	}
	if cfg.Redis.Enabled {
		checks["redis"] = func(ctx context.Context) error {
			client, err := factory.Client(ctx)
			if err != nil {
				return err
			}
			return client.Ping(ctx).Err()
		}
	}
	return checks
}
