package memory

import (
	"context"

	"github.com/sentryops/bypassguard/internal/domain/ports"
)

// MemoryAdapter implements the DatabaseAdapter interface with in-memory
// repositories. Used by service tests and local development; transactions
// are pseudo-transactions with no rollback of applied writes.
type MemoryAdapter struct {
	requestRepo *InMemoryRequestRepository
	sensorRepo  *InMemorySensorRepository
	userRepo    *InMemoryUserRepository
}

// NewMemoryAdapter creates a new in-memory database adapter
func NewMemoryAdapter() *MemoryAdapter {
	sensors := NewInMemorySensorRepository()
	users := NewInMemoryUserRepository()

	return &MemoryAdapter{
		requestRepo: NewInMemoryRequestRepository(sensors, users),
		sensorRepo:  sensors,
		userRepo:    users,
	}
}

// Connect is a no-op for the in-memory adapter
func (a *MemoryAdapter) Connect(ctx context.Context) error {
	return nil
}

// Disconnect is a no-op for the in-memory adapter
func (a *MemoryAdapter) Disconnect(ctx context.Context) error {
	return nil
}

// Ping always succeeds
func (a *MemoryAdapter) Ping(ctx context.Context) error {
	return nil
}

// GetType returns the database type
func (a *MemoryAdapter) GetType() ports.DatabaseType {
	return ports.DatabaseType("memory")
}

// BeginTransaction returns a pseudo-transaction over the shared stores
func (a *MemoryAdapter) BeginTransaction(ctx context.Context) (ports.Transaction, error) {
	return &memoryTransaction{adapter: a}, nil
}

// GetRequestRepository returns the request repository
func (a *MemoryAdapter) GetRequestRepository() ports.RequestRepository {
	return a.requestRepo
}

// GetSensorRepository returns the sensor repository
func (a *MemoryAdapter) GetSensorRepository() ports.SensorRepository {
	return a.sensorRepo
}

// GetUserRepository returns the user repository
func (a *MemoryAdapter) GetUserRepository() ports.UserRepository {
	return a.userRepo
}

// HealthCheck always succeeds
func (a *MemoryAdapter) HealthCheck(ctx context.Context) error {
	return nil
}

// GetConnectionStats returns placeholder statistics
func (a *MemoryAdapter) GetConnectionStats() ports.ConnectionStats {
	return ports.ConnectionStats{
		OpenConnections: 1,
		IdleConnections: 0,
		MaxConnections:  1,
		DatabaseType:    "memory",
		Healthy:         true,
	}
}

// Sensors exposes the typed sensor repository for test fixtures
func (a *MemoryAdapter) Sensors() *InMemorySensorRepository {
	return a.sensorRepo
}

// Users exposes the typed user repository for test fixtures
func (a *MemoryAdapter) Users() *InMemoryUserRepository {
	return a.userRepo
}

// memoryTransaction implements the Transaction interface. Writes apply
// immediately; Commit and Rollback are no-ops.
type memoryTransaction struct {
	adapter *MemoryAdapter
}

func (t *memoryTransaction) Commit(ctx context.Context) error {
	return nil
}

func (t *memoryTransaction) Rollback(ctx context.Context) error {
	return nil
}

func (t *memoryTransaction) GetRequestRepository() ports.RequestRepository {
	return t.adapter.requestRepo
}

func (t *memoryTransaction) GetSensorRepository() ports.SensorRepository {
	return t.adapter.sensorRepo
}
