/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the leave ledger server.
  Handles configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Parse command-line flags and load configuration
  2. Open the configured store (sqlite, postgres, mongo or memory)
  3. Load the leave policy (built-in default or POLICY_FILE)
  4. Connect the Kafka adjustment publisher when brokers are configured
  5. Build the leave service, API handler and router
  6. Start the optional accrual scheduler
  7. Start server with graceful shutdown

COMMAND-LINE FLAGS:
  -config  Explicit config file (default: ./configs/leave.env or ./leave.env)
  -port    HTTP server port, overrides SERVER_PORT
  -db      SQLite database path, overrides SQLITE_PATH
           Use ":memory:" for an in-memory database

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop the accrual scheduler
  2. Stop accepting new connections
  3. Wait for active requests to complete (SERVER_SHUTDOWN_TIMEOUT)
  4. Close the publisher and the store
  5. Exit

EXAMPLES:
  # Run with file database
  ./server -db="./data/leave.db"

  # Run against PostgreSQL
  STORE_DRIVER=postgres POSTGRES_URL=postgres://... ./server

SEE ALSO:
  - api/server.go: Router configuration
  - config/config.go: Settings and defaults
*/
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/warp/leave-ledger/api"
	"github.com/warp/leave-ledger/config"
	"github.com/warp/leave-ledger/events"
	"github.com/warp/leave-ledger/factory"
	"github.com/warp/leave-ledger/generic"
	"github.com/warp/leave-ledger/generic/store"
	"github.com/warp/leave-ledger/leave"
	"github.com/warp/leave-ledger/logger"
	"github.com/warp/leave-ledger/store/mongo"
	"github.com/warp/leave-ledger/store/postgres"
	"github.com/warp/leave-ledger/store/sqlite"
)

func main() {
	// Flags
	configFile := flag.String("config", "", "Config file path")
	port := flag.Int("port", 0, "HTTP server port (overrides SERVER_PORT)")
	dbPath := flag.String("db", "", "SQLite database path (overrides SQLITE_PATH)")
	flag.Parse()

	cfg, err := loadConfig(*configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	if *port > 0 {
		cfg.Server.Port = *port
	}
	if *dbPath != "" {
		cfg.Store.SQLitePath = *dbPath
	}

	log := logger.New(cfg.Logging.Level)
	slog.SetDefault(log)

	if err := run(cfg, log); err != nil {
		log.Error("server exited with error", "error", err)
		os.Exit(1)
	}
}

func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadFile(path)
	}
	return config.Load("leave")
}

func run(cfg *config.Config, log *slog.Logger) error {
	ctx := context.Background()

	// Initialize store
	st, closeStore, err := openStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeStore()

	// Load policy
	policy := leave.DefaultPolicy()
	if cfg.Policy.File != "" {
		policy, err = factory.NewPolicyFactory().LoadFile(cfg.Policy.File)
		if err != nil {
			return fmt.Errorf("failed to load policy: %w", err)
		}
		log.Info("policy loaded", "file", cfg.Policy.File, "leave_types", len(policy.LeaveTypes))
	}

	opts := []leave.Option{
		leave.WithLogger(log),
		leave.WithPoolSize(cfg.WorkerPool.Size),
	}
	if cfg.Kafka.Enabled() {
		publisher, err := events.NewAdjustmentPublisher(log, events.KafkaConfig{
			Brokers:      cfg.Kafka.Brokers,
			Topic:        cfg.Kafka.AdjustmentTopic,
			WriteTimeout: cfg.Kafka.WriteTimeout,
		})
		if err != nil {
			return fmt.Errorf("failed to create adjustment publisher: %w", err)
		}
		defer publisher.Close()
		opts = append(opts, leave.WithPublisher(publisher))
		log.Info("publishing adjustments to kafka", "topic", cfg.Kafka.AdjustmentTopic)
	}

	svc, err := leave.NewService(st, policy, opts...)
	if err != nil {
		return err
	}

	handler := api.NewHandler(svc, st, log)
	handler.Accrual = api.AccrualDefaults{Method: cfg.Accrual.DefaultMethod, Rounding: cfg.Accrual.DefaultRounding}
	handler.Patterns.SickLeaveTypes = policy.SickTypes()

	router := api.NewRouter(handler, cfg.Server.CORSAllowedOrigins)

	scheduler := api.NewAccrualScheduler(svc, log)
	scheduler.Enabled = cfg.Accrual.SchedulerEnabled
	scheduler.Interval = cfg.Accrual.SchedulerInterval
	scheduler.Method = cfg.Accrual.DefaultMethod
	scheduler.Rounding = cfg.Accrual.DefaultRounding
	scheduler.Start()
	defer scheduler.Stop()

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Info("server starting", "port", cfg.Server.Port, "store", cfg.Store.Driver)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-serverErr:
		return fmt.Errorf("server failed: %w", err)
	case sig := <-quit:
		log.Info("shutting down server", "signal", sig.String())
	}

	scheduler.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	log.Info("server stopped")
	return nil
}

// openStore returns the configured store and a function that releases it.
func openStore(ctx context.Context, cfg *config.Config, log *slog.Logger) (generic.Store, func(), error) {
	switch cfg.Store.Driver {
	case config.DriverMemory:
		log.Warn("using in-memory store, data is lost on restart")
		return store.NewMemory(), func() {}, nil

	case config.DriverPostgres:
		pool, err := postgres.Connect(ctx, log, postgres.Config{
			URL:             cfg.Postgres.URL,
			MaxConns:        cfg.Postgres.MaxConns,
			MinConns:        cfg.Postgres.MinConns,
			ConnMaxLifetime: cfg.Postgres.ConnMaxLifetime,
			ConnMaxIdleTime: cfg.Postgres.ConnMaxIdleTime,
		})
		if err != nil {
			return nil, nil, err
		}
		return postgres.New(pool, log), pool.Close, nil

	case config.DriverMongo:
		db, err := mongo.Connect(ctx, log, mongo.Config{
			URI:             cfg.MongoDB.URI,
			Database:        cfg.MongoDB.Database,
			Timeout:         cfg.MongoDB.Timeout,
			MaxPoolSize:     cfg.MongoDB.MaxPoolSize,
			MinPoolSize:     cfg.MongoDB.MinPoolSize,
			MaxConnIdleTime: cfg.MongoDB.MaxConnIdleTime,
		})
		if err != nil {
			return nil, nil, err
		}
		closeFn := func() {
			if err := db.Client().Disconnect(context.Background()); err != nil {
				log.Error("failed to disconnect from MongoDB", "error", err)
			}
		}
		st := mongo.New(db, log)
		if err := st.EnsureIndexes(ctx); err != nil {
			closeFn()
			return nil, nil, err
		}
		return st, closeFn, nil

	default:
		st, err := sqlite.New(cfg.Store.SQLitePath)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to initialize database: %w", err)
		}
		log.Info("using sqlite store", "path", cfg.Store.SQLitePath)
		return st, func() { st.Close() }, nil
	}
}
