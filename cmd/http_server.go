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

	"github.com/go-chi/chi"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	gormPostgres "gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/reimbursehq/reimbursement-service/internal"
	"github.com/reimbursehq/reimbursement-service/internal/auth"
	"github.com/reimbursehq/reimbursement-service/internal/core/events"
	"github.com/reimbursehq/reimbursement-service/internal/employee"
	employeePostgres "github.com/reimbursehq/reimbursement-service/internal/employee/postgres"
	"github.com/reimbursehq/reimbursement-service/internal/notification"
	"github.com/reimbursehq/reimbursement-service/internal/reimbursement"
	reimbursementPostgres "github.com/reimbursehq/reimbursement-service/internal/reimbursement/postgres"
	"github.com/reimbursehq/reimbursement-service/internal/transport/rest"
	"github.com/reimbursehq/reimbursement-service/pkg/logger"
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
	Config     *internal.Config
	DB         *sqlx.DB
	GormDB     *gorm.DB
	Redis      *redis.Client
	Router     *chi.Mux
	Logger     *slog.Logger
	Dispatcher *notification.Dispatcher
}

func startHTTPServer() {
	deps, err := initializeDependencies()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize dependencies: %v\n", err)
		os.Exit(1)
	}

	addr := fmt.Sprintf(":%d", deps.Config.Server.Port)
	deps.Logger.Info("starting HTTP server", "address", addr)

	server := &http.Server{
		Addr:              addr,
		Handler:           deps.Router,
		ReadHeaderTimeout: deps.Config.Server.ReadHeaderTimeout,
		ReadTimeout:       deps.Config.Server.ReadTimeout,
		WriteTimeout:      deps.Config.Server.WriteTimeout,
		IdleTimeout:       deps.Config.Server.IdleTimeout,
	}

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
		deps.Dispatcher.Shutdown()
		if err := deps.DB.Close(); err != nil {
			deps.Logger.Error("database close error", "error", err)
		}
		if deps.Redis != nil {
			if err := deps.Redis.Close(); err != nil {
				deps.Logger.Error("redis close error", "error", err)
			}
		}
	case err := <-serverErrChan:
		if err != nil && err != http.ErrServerClosed {
			deps.Logger.Error("server failed to start", "error", err)
			os.Exit(1)
		}
	}

	deps.Logger.Info("server stopped")
}

func initializeDependencies() (*Dependencies, error) {
	config, err := loadConfig(".")
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	logger.Init(config.Observability.Logging.Format, config.Observability.Logging.Level)
	appLogger := logger.LoggerWrapper()

	db, err := initDB(config.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	gormDB, err := gorm.Open(gormPostgres.New(gormPostgres.Config{Conn: db.DB}), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize gorm: %w", err)
	}

	var redisClient *redis.Client
	if config.Redis.Enabled() {
		redisClient, err = openRedis(config.Redis)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
	}

	eventBus := events.NewEventBus(appLogger)

	dispatcher := notification.NewDispatcher(notification.Config{
		MaxWorkers:   config.Notification.MaxWorkers,
		JobQueueSize: config.Notification.JobQueueSize,
	}, notification.NewLogSender(appLogger), appLogger)
	dispatcher.SubscribeToStatusChanges(eventBus)

	employeeRepo := employeePostgres.NewEmployeeRepository(gormDB)
	employeeService := employee.NewService(employeeRepo, appLogger, config.Security.BCryptCost)

	reimbursementRepo := reimbursementPostgres.NewRequestRepository(gormDB)
	reimbursementService := reimbursement.NewService(reimbursementRepo, employeeService, eventBus, appLogger)

	authService := auth.NewService(employeeService, config.Security.JWTSecret, config.Security.AccessTokenDuration, appLogger)

	router := chi.NewRouter()
	rest.RegisterAllRoutes(
		router,
		db.DB,
		redisClient,
		auth.NewHandler(authService),
		reimbursement.NewHandler(reimbursementService),
		employee.NewHandler(employeeService),
		appLogger,
	)

	return &Dependencies{
		Config:     config,
		DB:         db,
		GormDB:     gormDB,
		Redis:      redisClient,
		Router:     router,
		Logger:     appLogger,
		Dispatcher: dispatcher,
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

func openRedis(cfg internal.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}
	return client, nil
}
