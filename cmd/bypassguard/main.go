package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/sentryops/bypassguard/internal/adapters/factory"
	httpAdapter "github.com/sentryops/bypassguard/internal/adapters/http"
	"github.com/sentryops/bypassguard/internal/authz"
	"github.com/sentryops/bypassguard/internal/config"
	"github.com/sentryops/bypassguard/internal/domain/ports"
	"github.com/sentryops/bypassguard/internal/domain/service"
	"github.com/sentryops/bypassguard/internal/logger"
	"github.com/sentryops/bypassguard/internal/notify"
	"github.com/sentryops/bypassguard/internal/scheduler"
)

func main() {
	// Load .env file if present
	_ = godotenv.Load()

	log := logger.New("bypassguard-main")

	// Load configuration
	cfg, err := config.Load(os.Getenv("BYPASSGUARD_CONFIG"))
	if err != nil {
		log.Fatalw("Failed to load configuration", "error", err)
	}
	logger.SetLevel(cfg.Logging.Level)

	// Register Prometheus metrics
	logger.InitMetrics()

	// Connect the database backend
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	db, err := connectDatabase(ctx, cfg)
	cancel()
	if err != nil {
		log.Fatalw("Failed to connect database", "type", cfg.Database.Type, "error", err)
	}
	log.Infow("✓ Database connected", "type", db.GetType())

	// Notification pipeline: gateway behind an async dispatcher
	gateway := notify.NewGateway(notify.GatewayConfig{
		BaseURL: cfg.Notifier.BaseURL,
		Token:   cfg.Notifier.Token,
		Timeout: cfg.Notifier.Timeout,
	})
	dispatcher := notify.NewDispatcher(gateway, cfg.Notifier.QueueSize)
	dispatcher.Start()
	log.Info("✓ Notification dispatcher started")

	// Transition engine
	bypassService := service.NewBypassService(db, authz.NewMapping())
	log.Info("✓ Bypass service initialized")

	// Scheduled jobs: expiry sweeper and reactivation advisories
	sched := scheduler.New()
	sweeper := service.NewSweeper(db, dispatcher)
	sched.Add(scheduler.Job{
		Name:     "expiry-sweeper",
		Interval: cfg.Jobs.ExpirySweepInterval,
		Run:      sweeper.Run,
	})
	reactivation := service.NewReactivationNotifier(db, dispatcher)
	sched.Add(scheduler.Job{
		Name:     "reactivation-notifier",
		Interval: cfg.Jobs.ReactivationNoticeInterval,
		Run:      reactivation.Run,
	})
	sched.Start()

	// HTTP server
	httpServer := httpAdapter.NewServer(httpAdapter.ServerConfig{
		ListenAddr:   fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
		EnableH2C:    true,
	}, bypassService, db)

	if err := httpServer.Start(); err != nil {
		log.Fatalw("Failed to start HTTP server", "error", err)
	}
	log.Infow("✓ HTTP server listening", "address", httpServer.GetAddr())

	// Metrics endpoint on its own port
	var metricsServer *http.Server
	if cfg.Metrics.Enabled {
		mux := http.NewServeMux()
		mux.Handle(cfg.Metrics.Path, logger.MetricsHandler())
		metricsServer = &http.Server{
			Addr:    fmt.Sprintf(":%d", cfg.Metrics.Port),
			Handler: mux,
		}
		go func() {
			if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Errorw("Metrics server error", "error", err)
			}
		}()
		log.Infow("✓ Metrics server listening", "port", cfg.Metrics.Port, "path", cfg.Metrics.Path)
	}

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down...")

	sched.Stop()

	if err := httpServer.Stop(); err != nil {
		log.Errorw("HTTP server shutdown error", "error", err)
	}

	if metricsServer != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		_ = metricsServer.Shutdown(shutdownCtx)
		shutdownCancel()
	}

	// Drain pending notifications before dropping the DB connection
	dispatcher.Stop()

	disconnectCtx, disconnectCancel := context.WithTimeout(context.Background(), 10*time.Second)
	if err := db.Disconnect(disconnectCtx); err != nil {
		log.Errorw("Database disconnect error", "error", err)
	}
	disconnectCancel()

	log.Info("Shutdown complete")
}

// connectDatabase builds the adapter config from the application config and
// connects through the factory
func connectDatabase(ctx context.Context, cfg *config.Config) (ports.DatabaseAdapter, error) {
	dbConfig := &ports.DatabaseConfig{
		Type: ports.DatabaseType(cfg.Database.Type),
	}

	switch dbConfig.Type {
	case ports.DatabaseTypePostgreSQL:
		dbConfig.PostgresConfig = &ports.PostgresConfig{
			Host:            cfg.Database.Postgres.Host,
			Port:            cfg.Database.Postgres.Port,
			User:            cfg.Database.Postgres.User,
			Password:        cfg.Database.Postgres.Password,
			Database:        cfg.Database.Postgres.Database,
			SSLMode:         cfg.Database.Postgres.SSLMode,
			MaxOpenConns:    cfg.Database.Postgres.MaxOpenConns,
			MaxIdleConns:    cfg.Database.Postgres.MaxIdleConns,
			ConnMaxLifetime: int(cfg.Database.Postgres.ConnMaxLifetime.Seconds()),
			ConnMaxIdleTime: int(cfg.Database.Postgres.ConnMaxIdleTime.Seconds()),
		}
	case ports.DatabaseTypeMongoDB:
		dbConfig.MongoDBConfig = &ports.MongoDBConfig{
			URI:          cfg.Database.MongoDB.URI,
			Database:     cfg.Database.MongoDB.Database,
			MaxPoolSize:  cfg.Database.MongoDB.MaxPoolSize,
			MinPoolSize:  cfg.Database.MongoDB.MinPoolSize,
			WriteConcern: cfg.Database.MongoDB.WriteConcern,
		}
	}

	f := factory.NewDatabaseAdapterFactory()
	if err := f.ValidateConfig(dbConfig); err != nil {
		return nil, err
	}
	return f.CreateAndConnectAdapter(ctx, dbConfig)
}
