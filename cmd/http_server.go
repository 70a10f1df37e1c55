package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/frahmantamala/paypal-activation/internal"
	"github.com/frahmantamala/paypal-activation/internal/account"
	accountPostgres "github.com/frahmantamala/paypal-activation/internal/account/postgres"
	"github.com/frahmantamala/paypal-activation/internal/auth"
	authPostgres "github.com/frahmantamala/paypal-activation/internal/auth/postgres"
	"github.com/frahmantamala/paypal-activation/internal/core/common/validation"
	"github.com/frahmantamala/paypal-activation/internal/core/events"
	"github.com/frahmantamala/paypal-activation/internal/metrics"
	"github.com/frahmantamala/paypal-activation/internal/notification"
	notificationPostgres "github.com/frahmantamala/paypal-activation/internal/notification/postgres"
	"github.com/frahmantamala/paypal-activation/internal/payment"
	"github.com/frahmantamala/paypal-activation/internal/paypal"
	"github.com/frahmantamala/paypal-activation/internal/reconciliation"
	"github.com/frahmantamala/paypal-activation/internal/session"
	sessionPostgres "github.com/frahmantamala/paypal-activation/internal/session/postgres"
	"github.com/frahmantamala/paypal-activation/internal/transport/rest"
	"github.com/frahmantamala/paypal-activation/pkg/logger"

	"github.com/go-chi/chi"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

const pendingPaymentSweepInterval = 10 * time.Minute

var httpServerCmd = &cobra.Command{
	Use:   "server",
	Short: "Start HTTP server",
	Long:  `Start the HTTP server to handle checkout, redirect and IPN requests`,
	Run: func(cmd *cobra.Command, args []string) {
		startHTTPServer()
	},
}

type Dependencies struct {
	Config         *internal.Config
	DB             *sqlx.DB
	GormDB         *gorm.DB
	Router         *chi.Mux
	EventBus       *events.EventBus
	Forwarder      *events.KafkaForwarder
	PendingPayment *sessionPostgres.PendingPaymentRepository
	Logger         *slog.Logger
}

func startHTTPServer() {
	deps, err := initializeDependencies()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize dependencies: %v\n", err)
		os.Exit(1)
	}

	if err := setupRoutes(deps); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to set up routes: %v\n", err)
		os.Exit(1)
	}

	sweepCtx, stopSweep := context.WithCancel(context.Background())
	go sweepExpiredPendingPayments(sweepCtx, deps.PendingPayment, deps.Logger)

	addr := fmt.Sprintf(":%d", deps.Config.Server.Port)
	deps.Logger.Info("Starting HTTP server", "address", addr)

	server := &http.Server{
		Addr:              addr,
		Handler:           deps.Router,
		ReadHeaderTimeout: deps.Config.Server.ReadHeaderTimeout,
		ReadTimeout:       deps.Config.Server.ReadTimeout,
		WriteTimeout:      deps.Config.Server.WriteTimeout,
		IdleTimeout:       deps.Config.Server.IdleTimeout,
	}

	// Signal handling for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	serverErrChan := make(chan error, 1)
	go func() {
		serverErrChan <- server.ListenAndServe()
	}()

	select {
	case sig := <-sigChan:
		deps.Logger.Info("Received signal, shutting down...", "signal", sig)
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			deps.Logger.Error("Server shutdown error", "error", err)
		}
		stopSweep()
		// activation events from the last requests still need to reach metrics and kafka
		if err := deps.EventBus.Wait(ctx); err != nil {
			deps.Logger.Warn("Event handlers did not finish before shutdown", "error", err)
		}
		closeDependencies(deps)
	case err := <-serverErrChan:
		stopSweep()
		if err != nil && err != http.ErrServerClosed {
			deps.Logger.Error("Server failed to start", "error", err)
			os.Exit(1)
		}
	}

	deps.Logger.Info("Server stopped")
}

func closeDependencies(deps *Dependencies) {
	if deps.Forwarder != nil {
		if err := deps.Forwarder.Close(); err != nil {
			deps.Logger.Error("Kafka writer close error", "error", err)
		}
	}
	if sqlDB, err := deps.GormDB.DB(); err == nil {
		if err := sqlDB.Close(); err != nil {
			deps.Logger.Error("Gorm database close error", "error", err)
		}
	}
	if err := deps.DB.Close(); err != nil {
		deps.Logger.Error("Database close error", "error", err)
	}
}

func setupRoutes(deps *Dependencies) error {
	cfg := deps.Config
	lg := deps.Logger

	if appErr := validation.ValidatePaymentOptions(cfg.PayPal.PaymentOptions); appErr != nil {
		return fmt.Errorf("paypal payment_options: %s", appErr.GetDetailedMessage())
	}

	// metrics and kafka subscribe before anything can publish
	var metricsHandler http.Handler
	if cfg.Observability.Metrics.Enabled {
		activationMetrics := metrics.NewActivationMetrics(nil)
		activationMetrics.Register(deps.EventBus)
		metricsHandler = activationMetrics.Handler()
	}
	if cfg.Kafka.Enabled {
		writer := events.NewKafkaWriter(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		deps.Forwarder = events.NewKafkaForwarder(writer, lg)
		deps.Forwarder.Register(deps.EventBus)
		lg.Info("forwarding account events to kafka", "brokers", cfg.Kafka.Brokers, "topic", cfg.Kafka.Topic)
	}

	accountRepo := accountPostgres.NewAccountRepository(deps.GormDB)
	authRepo := authPostgres.NewRepository(deps.GormDB)
	auditRepo := notificationPostgres.NewLogRepository(deps.DB)

	payment.NewEventHandler(deps.PendingPayment, lg).RegisterEventHandlers(deps.EventBus)

	tokenGen := auth.NewJWTTokenGenerator(
		cfg.Security.AccessTokenSecret,
		cfg.Security.RefreshTokenSecret,
		cfg.Security.AccessTokenDuration,
		cfg.Security.RefreshTokenDuration,
	)
	authService := auth.NewService(authRepo, tokenGen, cfg.Security.BCryptCost)
	accountService := account.NewService(accountRepo)

	sessions := session.NewManager(cfg.Security.SessionSecret, cfg.Security.SessionTTL, cfg.Security.CookieSecure)
	pending := session.NewPaymentHandle(deps.PendingPayment, cfg.Security.SessionTTL)

	paypalClient := paypal.NewClient(paypal.ClientConfig{
		BaseURL:      cfg.PayPal.APIBaseURL,
		ClientID:     cfg.PayPal.ClientID,
		ClientSecret: cfg.PayPal.ClientSecret,
		Timeout:      cfg.PayPal.RequestTimeout,
	}, lg)
	verifier := paypal.NewVerifier(cfg.PayPal.IPNVerifyURL, cfg.PayPal.RequestTimeout, lg)

	newToken, err := paypal.NewSKUTokenGenerator()
	if err != nil {
		return fmt.Errorf("sku token generator: %w", err)
	}
	builder := paypal.NewIntentBuilder(newToken)

	engine := reconciliation.NewEngine(
		paypalClient,
		verifier,
		accountRepo,
		pending,
		deps.EventBus,
		paypal.NewErrorCodes(cfg.PayPal.ErrorCodes...),
		lg,
	)
	auditLog := notification.NewAuditLog(auditRepo, lg)

	paymentService := payment.NewService(
		accountRepo,
		builder,
		paypalClient,
		pending,
		engine,
		auditLog,
		deps.EventBus,
		cfg.PayPal.PaymentOptions,
		cfg.Server.BaseURL,
		lg,
	)

	doc, err := rest.LoadOpenAPI(context.Background(), rest.DefaultOpenAPIPath)
	if err != nil {
		lg.Warn("openapi document not loaded; /openapi.json disabled", "error", err)
	}

	rest.RegisterAllRoutes(deps.Router, rest.Handlers{
		Auth:         auth.NewHandler(authService),
		Account:      account.NewHandler(accountService),
		Notification: notification.NewHandler(auditLog),
		Payment:      payment.NewHandler(paymentService, sessions, cfg.PayPal.SuccessPath, cfg.PayPal.ErrorPath),
		Webhook:      payment.NewWebhookHandler(paymentService),
		Metrics:      metricsHandler,
		MetricsPath:  cfg.Observability.Metrics.Path,
		OpenAPI:      doc,
		HealthChecks: healthChecks(deps),
	}, cfg.Server.AllowedOrigins, lg)

	return nil
}

func initializeDependencies() (*Dependencies, error) {
	config, err := loadConfig(".")
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	db, err := initDB(config.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	gormDB, err := initGormDB(config.Database)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize gorm: %w", err)
	}

	lg := logger.LoggerWrapper()

	return &Dependencies{
		Config:         config,
		Logger:         lg,
		DB:             db,
		GormDB:         gormDB,
		Router:         chi.NewRouter(),
		EventBus:       events.NewEventBus(lg),
		PendingPayment: sessionPostgres.NewPendingPaymentRepository(gormDB),
	}, nil
}

// initDB initializes the database connection
func initDB(cfg internal.DatabaseConfig) (*sqlx.DB, error) {
	const driver = "pgx"

	dbConn, err := sqlx.Connect(driver, cfg.Source)
	if err != nil {
		return nil, fmt.Errorf("failed to open db connection: %w", err)
	}

	dbConn.SetMaxIdleConns(cfg.MaxIdleConns)
	dbConn.SetMaxOpenConns(cfg.MaxOpenConns)
	dbConn.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	dbConn.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	// verify connection; close underlying *sql.DB on failure
	if err := dbConn.Ping(); err != nil {
		_ = dbConn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return dbConn, nil
}

// healthChecks covers both connection pools and the pending payment store the
// redirect path depends on.
func healthChecks(deps *Dependencies) map[string]rest.HealthCheck {
	return map[string]rest.HealthCheck{
		"postgres": rest.PingCheck(deps.DB),
		"gorm": func(ctx context.Context) (map[string]any, error) {
			sqlDB, err := deps.GormDB.DB()
			if err != nil {
				return nil, err
			}
			stats := sqlDB.Stats()
			details := map[string]any{"open_connections": stats.OpenConnections, "in_use": stats.InUse}
			return details, sqlDB.PingContext(ctx)
		},
		"pending_payments": func(ctx context.Context) (map[string]any, error) {
			n, err := deps.PendingPayment.CountExpired(ctx, time.Now())
			if err != nil {
				return nil, err
			}
			return map[string]any{"expired_unswept": n}, nil
		},
	}
}

// initGormDB opens the ORM connection the account and session repositories use.
func initGormDB(cfg internal.DatabaseConfig) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(cfg.Source), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to open gorm connection: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get gorm sql.DB: %w", err)
	}
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	return db, nil
}

func sweepExpiredPendingPayments(ctx context.Context, repo *sessionPostgres.PendingPaymentRepository, lg *slog.Logger) {
	ticker := time.NewTicker(pendingPaymentSweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			n, err := repo.DeleteExpired(ctx, time.Now())
			if err != nil {
				lg.Error("failed to sweep expired pending payments", "error", err)
				continue
			}
			if n > 0 {
				lg.Info("swept expired pending payments", "count", n)
			}
		case <-ctx.Done():
			return
		}
	}
}
