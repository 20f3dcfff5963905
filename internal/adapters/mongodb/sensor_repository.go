package mongodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sentryops/bypassguard/internal/domain/models"
	"github.com/sentryops/bypassguard/internal/domain/ports"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

// sensorRepository implements the SensorRepository interface using MongoDB
type sensorRepository struct {
	collection *mongo.Collection
}

// NewSensorRepository creates a new MongoDB sensor repository
func NewSensorRepository(db *mongo.Database) ports.SensorRepository {
	return &sensorRepository{
		collection: db.Collection("sensors"),
	}
}

// GetByID retrieves a sensor by id
func (r *sensorRepository) GetByID(ctx context.Context, id int64) (*models.Sensor, error) {
	var sensor models.Sensor

	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&sensor)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ports.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get sensor: %w", err)
	}

	return &sensor, nil
}

// UpdateStatus sets the status of a sensor
func (r *sensorRepository) UpdateStatus(ctx context.Context, id int64, status models.SensorStatus) error {
	update := bson.M{
		"$set": bson.M{
			"status":       status,
			"last_updated": time.Now(),
		},
	}

	result, err := r.collection.UpdateOne(ctx, bson.M{"_id": id}, update)
	if err != nil {
		return fmt.Errorf("failed to update sensor status: %w", err)
	}

	if result.MatchedCount == 0 {
		return ports.ErrNotFound
	}

	return nil
}
