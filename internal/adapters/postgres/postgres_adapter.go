package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq" // PostgreSQL driver
	"github.com/sentryops/bypassguard/internal/domain/ports"
)

// PostgresAdapter implements the DatabaseAdapter interface for PostgreSQL
type PostgresAdapter struct {
	db          *sqlx.DB
	config      *ports.PostgresConfig
	requestRepo ports.RequestRepository
	sensorRepo  ports.SensorRepository
	userRepo    ports.UserRepository
}

// NewPostgresAdapter creates a new PostgreSQL database adapter
func NewPostgresAdapter(config *ports.PostgresConfig) *PostgresAdapter {
	return &PostgresAdapter{
		config: config,
	}
}

// Connect establishes a connection to the PostgreSQL database
func (a *PostgresAdapter) Connect(ctx context.Context) error {
	dsn := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		a.config.Host,
		a.config.Port,
		a.config.User,
		a.config.Password,
		a.config.Database,
		a.config.SSLMode,
	)

	db, err := sqlx.ConnectContext(ctx, "postgres", dsn)
	if err != nil {
		return fmt.Errorf("failed to connect to postgres: %w", err)
	}

	// Configure connection pool
	db.SetMaxOpenConns(a.config.MaxOpenConns)
	db.SetMaxIdleConns(a.config.MaxIdleConns)
	db.SetConnMaxLifetime(time.Duration(a.config.ConnMaxLifetime) * time.Second)
	db.SetConnMaxIdleTime(time.Duration(a.config.ConnMaxIdleTime) * time.Second)

	a.db = db

	// Initialize repositories
	a.requestRepo = NewRequestRepository(db)
	a.sensorRepo = NewSensorRepository(db)
	a.userRepo = NewUserRepository(db)

	return nil
}

// Disconnect closes the database connection
func (a *PostgresAdapter) Disconnect(ctx context.Context) error {
	if a.db != nil {
		return a.db.Close()
	}
	return nil
}

// Ping checks if the database connection is alive
func (a *PostgresAdapter) Ping(ctx context.Context) error {
	if a.db == nil {
		return fmt.Errorf("database not connected")
	}
	return a.db.PingContext(ctx)
}

// GetType returns the database type
func (a *PostgresAdapter) GetType() ports.DatabaseType {
	return ports.DatabaseTypePostgreSQL
}

// BeginTransaction starts a new database transaction
func (a *PostgresAdapter) BeginTransaction(ctx context.Context) (ports.Transaction, error) {
	tx, err := a.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}

	return &postgresTransaction{
		tx:          tx,
		requestRepo: NewRequestRepository(tx),
		sensorRepo:  NewSensorRepository(tx),
	}, nil
}

// GetRequestRepository returns the request repository
func (a *PostgresAdapter) GetRequestRepository() ports.RequestRepository {
	return a.requestRepo
}

// GetSensorRepository returns the sensor repository
func (a *PostgresAdapter) GetSensorRepository() ports.SensorRepository {
	return a.sensorRepo
}

// GetUserRepository returns the user repository
func (a *PostgresAdapter) GetUserRepository() ports.UserRepository {
	return a.userRepo
}

// HealthCheck performs a health check on the database
func (a *PostgresAdapter) HealthCheck(ctx context.Context) error {
	if err := a.Ping(ctx); err != nil {
		return fmt.Errorf("ping failed: %w", err)
	}

	// Test a simple query
	var result int
	err := a.db.GetContext(ctx, &result, "SELECT 1")
	if err != nil {
		return fmt.Errorf("health check query failed: %w", err)
	}

	return nil
}

// GetConnectionStats returns database connection statistics
func (a *PostgresAdapter) GetConnectionStats() ports.ConnectionStats {
	stats := a.db.Stats()

	return ports.ConnectionStats{
		OpenConnections:  stats.OpenConnections,
		IdleConnections:  stats.Idle,
		MaxConnections:   a.config.MaxOpenConns,
		DatabaseType:     string(ports.DatabaseTypePostgreSQL),
		ConnectionString: fmt.Sprintf("%s:%d/%s", a.config.Host, a.config.Port, a.config.Database),
		Healthy:          a.Ping(context.Background()) == nil,
	}
}

// postgresTransaction implements the Transaction interface
type postgresTransaction struct {
	tx          *sqlx.Tx
	requestRepo ports.RequestRepository
	sensorRepo  ports.SensorRepository
}

// Commit commits the transaction
func (t *postgresTransaction) Commit(ctx context.Context) error {
	return t.tx.Commit()
}

// Rollback rolls back the transaction
func (t *postgresTransaction) Rollback(ctx context.Context) error {
	return t.tx.Rollback()
}

// GetRequestRepository returns a transactional request repository
func (t *postgresTransaction) GetRequestRepository() ports.RequestRepository {
	return t.requestRepo
}

// GetSensorRepository returns a transactional sensor repository
func (t *postgresTransaction) GetSensorRepository() ports.SensorRepository {
	return t.sensorRepo
}
