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

	"github.com/adityamishra28203/healthvault/internal"
	"github.com/adityamishra28203/healthvault/internal/auth"
	"github.com/adityamishra28203/healthvault/internal/authz"
	"github.com/adityamishra28203/healthvault/internal/consent"
	consentpg "github.com/adityamishra28203/healthvault/internal/consent/postgres"
	"github.com/adityamishra28203/healthvault/internal/core/events"
	"github.com/adityamishra28203/healthvault/internal/gate"
	gatepg "github.com/adityamishra28203/healthvault/internal/gate/postgres"
	staffpg "github.com/adityamishra28203/healthvault/internal/staff/postgres"
	"github.com/adityamishra28203/healthvault/internal/tenant"
	tenantpg "github.com/adityamishra28203/healthvault/internal/tenant/postgres"
	"github.com/adityamishra28203/healthvault/internal/transport/rest"
	"github.com/adityamishra28203/healthvault/pkg/logger"

	"github.com/go-chi/chi"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"
	gormpostgres "gorm.io/driver/postgres"
	"gorm.io/gorm"
)

var httpServerCmd = &cobra.Command{
	Use:   "server",
	Short: "Start HTTP server",
	Long:  `Start the HTTP server to handle API requests`,
	Run: func(cmd *cobra.Command, args []string) {
		startHTTPServer()
	},
}

type Dependencies struct {
	Config *internal.Config
	DB     *sqlx.DB
	GormDB *gorm.DB
	Router *chi.Mux
	Logger *slog.Logger

	AuthService    auth.ServiceAPI
	ConsentService *consent.Service
	Engine         *authz.Engine
	TenantService  *tenant.Service
	Gate           *gate.Gate
}

func startHTTPServer() {
	deps, err := initializeDependencies()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize dependencies: %v\n", err)
		os.Exit(1)
	}

	setupRoutes(deps)

	addr := fmt.Sprintf(":%d", deps.Config.Server.Port)
	deps.Logger.Info("starting HTTP server", "address", addr)

	server := &http.Server{
		Addr:         addr,
		Handler:      deps.Router,
		ReadTimeout:  deps.Config.Server.ReadTimeout,
		WriteTimeout: deps.Config.Server.WriteTimeout,
		IdleTimeout:  deps.Config.Server.IdleTimeout,
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
		deps.Logger.Info("received signal, shutting down", "signal", sig)
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			deps.Logger.Error("server shutdown error", "error", err)
		}
		if err := deps.DB.Close(); err != nil {
			deps.Logger.Error("database close error", "error", err)
		}
	case err := <-serverErrChan:
		if err != nil && err != http.ErrServerClosed {
			deps.Logger.Error("server failed to start", "error", err)
			os.Exit(1)
		}
	}

	deps.Logger.Info("server stopped")
}

func setupRoutes(deps *Dependencies) {
	handlers := rest.Handlers{
		Auth:    auth.NewHandler(deps.AuthService),
		Consent: consent.NewHandler(deps.ConsentService),
		Authz:   authz.NewHandler(deps.Engine),
		Tenant:  tenant.NewHandler(deps.TenantService),
		Gate:    gate.NewHandler(deps.Gate),
	}
	rest.RegisterAllRoutes(deps.Router, deps.DB.DB, deps.AuthService, deps.Engine, handlers, deps.Logger)
}

func initializeDependencies() (*Dependencies, error) {
	config, err := loadConfig(".")
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	logger.Init(os.Getenv("APP_ENV"))
	lg := logger.LoggerWrapper()
	if lg == nil {
		lg = slog.Default()
	}

	db, err := initDB(config.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	// GORM rides on the same pgx connection pool the health check uses.
	gormDB, err := gorm.Open(gormpostgres.New(gormpostgres.Config{Conn: db.DB}), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize gorm: %w", err)
	}

	eventBus := events.NewEventBus(lg)

	// Notification hook: mirrors the consent and access event stream into the
	// structured log until an outbound notifier (email, webhook) exists.
	eventBus.Subscribe(events.AllEvents, func(_ context.Context, event events.Event) error {
		lg.Info("domain event",
			"event_type", event.EventType(),
			"event_id", event.EventID(),
			"occurred_at", event.OccurredAt())
		return nil
	})

	staffRepo := staffpg.NewStaffRepository(gormDB)
	consentRepo := consentpg.NewConsentRepository(gormDB)
	tenantRepo := tenantpg.NewTenantRepository(gormDB)
	auditRepo := gatepg.NewAccessLogRepository(gormDB)

	tokenGen := auth.NewJWTTokenGenerator(config.Security.JWTAccessSecret, config.Security.JWTRefreshSecret)
	authService := auth.NewService(staffRepo, tokenGen)

	consentService := consent.NewService(consentRepo, eventBus, lg).
		WithDefaultExpiry(time.Duration(config.Consent.DefaultExpiryDays) * 24 * time.Hour).
		WithSweepBatch(config.Consent.SweepBatchSize)

	engine := authz.NewEngine(staffRepo, auditRepo, authz.NewCatalog(), lg)
	tenantService := tenant.NewService(tenantRepo, lg)
	accessGate := gate.NewGate(consentService, engine, tenantService, auditRepo, eventBus, lg)

	return &Dependencies{
		Config:         config,
		Logger:         lg,
		DB:             db,
		GormDB:         gormDB,
		Router:         chi.NewRouter(),
		AuthService:    authService,
		ConsentService: consentService,
		Engine:         engine,
		TenantService:  tenantService,
		Gate:           accessGate,
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

	if err := dbConn.Ping(); err != nil {
		_ = dbConn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return dbConn, nil
}
