package memory

import (
	"context"
	"sync"
	"time"

	"github.com/sentryops/bypassguard/internal/domain/models"
	"github.com/sentryops/bypassguard/internal/domain/ports"
)

// InMemorySensorRepository is an in-memory implementation for testing
type InMemorySensorRepository struct {
	mu        sync.RWMutex
	sensors   map[int64]*models.Sensor
	equipment map[int64]*models.Equipment
}

// NewInMemorySensorRepository creates a new in-memory sensor repository
func NewInMemorySensorRepository() *InMemorySensorRepository {
	return &InMemorySensorRepository{
		sensors:   make(map[int64]*models.Sensor),
		equipment: make(map[int64]*models.Equipment),
	}
}

// Seed installs a sensor fixture
func (r *InMemorySensorRepository) Seed(sensor models.Sensor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sensors[sensor.ID] = &sensor
}

// SeedEquipment installs an equipment fixture
func (r *InMemorySensorRepository) SeedEquipment(equipment models.Equipment) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.equipment[equipment.ID] = &equipment
}

func (r *InMemorySensorRepository) GetByID(ctx context.Context, id int64) (*models.Sensor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if sensor, ok := r.sensors[id]; ok {
		copied := *sensor
		return &copied, nil
	}
	return nil, ports.ErrNotFound
}

func (r *InMemorySensorRepository) UpdateStatus(ctx context.Context, id int64, status models.SensorStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	sensor, ok := r.sensors[id]
	if !ok {
		return ports.ErrNotFound
	}

	sensor.Status = status
	sensor.LastUpdated = time.Now()
	return nil
}

func (r *InMemorySensorRepository) equipmentFor(id int64) (models.Equipment, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if equipment, ok := r.equipment[id]; ok {
		return *equipment, true
	}
	return models.Equipment{}, false
}
