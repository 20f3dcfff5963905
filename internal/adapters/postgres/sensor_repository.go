package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/sentryops/bypassguard/internal/domain/models"
	"github.com/sentryops/bypassguard/internal/domain/ports"
)

// sensorRepository implements the SensorRepository interface using PostgreSQL
type sensorRepository struct {
	db sqlx.ExtContext
}

// NewSensorRepository creates a new PostgreSQL sensor repository
func NewSensorRepository(db sqlx.ExtContext) ports.SensorRepository {
	return &sensorRepository{db: db}
}

// GetByID retrieves a sensor by id
func (r *sensorRepository) GetByID(ctx context.Context, id int64) (*models.Sensor, error) {
	query := `SELECT id, equipment_id, name, tag, status, last_updated FROM sensors WHERE id = $1`

	var sensor models.Sensor
	err := sqlx.GetContext(ctx, r.db, &sensor, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ports.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get sensor: %w", err)
	}

	return &sensor, nil
}

// UpdateStatus sets the status of a sensor
func (r *sensorRepository) UpdateStatus(ctx context.Context, id int64, status models.SensorStatus) error {
	query := `UPDATE sensors SET status = $2, last_updated = $3 WHERE id = $1`

	result, err := r.db.ExecContext(ctx, query, id, status, time.Now())
	if err != nil {
		return fmt.Errorf("failed to update sensor status: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ports.ErrNotFound
	}

	return nil
}
