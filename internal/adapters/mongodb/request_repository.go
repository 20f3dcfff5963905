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
	"go.mongodb.org/mongo-driver/mongo/options"
)

// requestRepository implements the RequestRepository interface using MongoDB
type requestRepository struct {
	db         *mongo.Database
	collection *mongo.Collection
}

// NewRequestRepository creates a new MongoDB request repository
func NewRequestRepository(db *mongo.Database) ports.RequestRepository {
	return &requestRepository{
		db:         db,
		collection: db.Collection("bypass_requests"),
	}
}

// GetByID retrieves a request by internal id
func (r *requestRepository) GetByID(ctx context.Context, id int64) (*models.BypassRequest, error) {
	var request models.BypassRequest

	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&request)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ports.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get request: %w", err)
	}

	return &request, nil
}

// GetByCode retrieves a request by its human-readable code
func (r *requestRepository) GetByCode(ctx context.Context, code string) (*models.BypassRequest, error) {
	var request models.BypassRequest

	err := r.collection.FindOne(ctx, bson.M{"request_code": code}).Decode(&request)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ports.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get request by code: %w", err)
	}

	return &request, nil
}

// Create adds a new request record. Documents use numeric ids allocated from
// the same counter collection that backs request codes.
func (r *requestRepository) Create(ctx context.Context, request *models.BypassRequest) error {
	if request.ID == 0 {
		id, err := r.nextCounter(ctx, "bypass_requests")
		if err != nil {
			return fmt.Errorf("failed to allocate request id: %w", err)
		}
		request.ID = id
	}

	_, err := r.collection.InsertOne(ctx, request)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ports.ErrConflict
		}
		return fmt.Errorf("failed to create request: %w", err)
	}

	return nil
}

// List retrieves requests with pagination, newest first
func (r *requestRepository) List(ctx context.Context, offset, limit int) ([]*models.BypassRequest, error) {
	return r.find(ctx, bson.M{}, offset, limit)
}

// ListByStatus retrieves requests by status with pagination
func (r *requestRepository) ListByStatus(ctx context.Context, status models.RequestStatus, offset, limit int) ([]*models.BypassRequest, error) {
	return r.find(ctx, bson.M{"status": status}, offset, limit)
}

func (r *requestRepository) find(ctx context.Context, filter bson.M, offset, limit int) ([]*models.BypassRequest, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetSkip(int64(offset)).
		SetLimit(int64(limit))

	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list requests: %w", err)
	}
	defer cursor.Close(ctx)

	var requests []*models.BypassRequest
	if err = cursor.All(ctx, &requests); err != nil {
		return nil, fmt.Errorf("failed to decode requests: %w", err)
	}

	return requests, nil
}

// ListPendingInWindow selects pending requests whose end time is still ahead
func (r *requestRepository) ListPendingInWindow(ctx context.Context, now time.Time) ([]*models.BypassRequest, error) {
	return r.findByDeadline(ctx, bson.M{
		"status":   models.RequestStatusPending,
		"end_time": bson.M{"$gt": now},
	})
}

// ListPendingExpired selects pending requests whose deadline has passed
func (r *requestRepository) ListPendingExpired(ctx context.Context, now time.Time) ([]*models.BypassRequest, error) {
	return r.findByDeadline(ctx, bson.M{
		"status":   models.RequestStatusPending,
		"end_time": bson.M{"$lt": now},
	})
}

func (r *requestRepository) findByDeadline(ctx context.Context, filter bson.M) ([]*models.BypassRequest, error) {
	opts := options.Find().SetSort(bson.D{{Key: "end_time", Value: 1}})

	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list requests by deadline: %w", err)
	}
	defer cursor.Close(ctx)

	var requests []*models.BypassRequest
	if err = cursor.All(ctx, &requests); err != nil {
		return nil, fmt.Errorf("failed to decode requests: %w", err)
	}

	return requests, nil
}

// ListOverdueApproved selects approved requests past their deadline whose
// sensor is still bypassed. Related documents are loaded per request; overdue
// batches are small by nature.
func (r *requestRepository) ListOverdueApproved(ctx context.Context, now time.Time) ([]*models.ReactivationCase, error) {
	requests, err := r.findByDeadline(ctx, bson.M{
		"status":   models.RequestStatusApproved,
		"end_time": bson.M{"$lt": now},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list overdue approved requests: %w", err)
	}

	cases := make([]*models.ReactivationCase, 0, len(requests))
	for _, request := range requests {
		var sensor models.Sensor
		err := r.db.Collection("sensors").FindOne(ctx, bson.M{"_id": request.SensorID}).Decode(&sensor)
		if err != nil {
			if errors.Is(err, mongo.ErrNoDocuments) {
				continue
			}
			return nil, fmt.Errorf("failed to load sensor %d: %w", request.SensorID, err)
		}
		if sensor.Status != models.SensorStatusBypassed {
			continue
		}

		var equipment models.Equipment
		if err := r.db.Collection("equipment").FindOne(ctx, bson.M{"_id": request.EquipmentID}).Decode(&equipment); err != nil {
			return nil, fmt.Errorf("failed to load equipment %d: %w", request.EquipmentID, err)
		}

		var requester models.User
		if err := r.db.Collection("users").FindOne(ctx, bson.M{"_id": request.RequesterID}).Decode(&requester); err != nil {
			return nil, fmt.Errorf("failed to load requester %d: %w", request.RequesterID, err)
		}

		cases = append(cases, &models.ReactivationCase{
			Request:   *request,
			Sensor:    sensor,
			Equipment: equipment,
			Requester: requester,
		})
	}

	return cases, nil
}

// MarkValidated records a validation outcome on a still-pending request
func (r *requestRepository) MarkValidated(ctx context.Context, id int64, status models.RequestStatus, validatorID int64, validatedAt time.Time, comment string, rejectionReason *string) error {
	update := bson.M{
		"$set": bson.M{
			"status":             status,
			"validator_id":       validatorID,
			"validated_at":       validatedAt,
			"validation_comment": comment,
			"rejection_reason":   rejectionReason,
		},
	}

	result, err := r.collection.UpdateOne(ctx,
		bson.M{"_id": id, "status": models.RequestStatusPending}, update)
	if err != nil {
		return fmt.Errorf("failed to mark request validated: %w", err)
	}

	if result.MatchedCount == 0 {
		return r.classifyMiss(ctx, id)
	}
	return nil
}

// MarkCancelled cancels a still-pending request
func (r *requestRepository) MarkCancelled(ctx context.Context, id int64) error {
	update := bson.M{"$set": bson.M{"status": models.RequestStatusCancelled}}

	result, err := r.collection.UpdateOne(ctx,
		bson.M{"_id": id, "status": models.RequestStatusPending}, update)
	if err != nil {
		return fmt.Errorf("failed to mark request cancelled: %w", err)
	}

	if result.MatchedCount == 0 {
		return r.classifyMiss(ctx, id)
	}
	return nil
}

// classifyMiss distinguishes a missing document from a lost race when a
// status-preconditioned update matched nothing
func (r *requestRepository) classifyMiss(ctx context.Context, id int64) error {
	count, err := r.collection.CountDocuments(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("failed to check request existence: %w", err)
	}
	if count == 0 {
		return ports.ErrNotFound
	}
	return ports.ErrConflict
}

// CountByStatus returns the number of requests per status
func (r *requestRepository) CountByStatus(ctx context.Context) (map[models.RequestStatus]int64, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$group", Value: bson.M{
			"_id":   "$status",
			"count": bson.M{"$sum": 1},
		}}},
	}

	cursor, err := r.collection.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("failed to count requests by status: %w", err)
	}
	defer cursor.Close(ctx)

	var rows []struct {
		Status models.RequestStatus `bson:"_id"`
		Count  int64                `bson:"count"`
	}
	if err = cursor.All(ctx, &rows); err != nil {
		return nil, fmt.Errorf("failed to decode status counts: %w", err)
	}

	counts := make(map[models.RequestStatus]int64, len(rows))
	for _, row := range rows {
		counts[row.Status] = row.Count
	}
	return counts, nil
}

// NextSequence reserves the next request-code sequence number for a year
func (r *requestRepository) NextSequence(ctx context.Context, year int) (int64, error) {
	return r.nextCounter(ctx, fmt.Sprintf("request_codes_%d", year))
}

// nextCounter atomically increments a named counter document
func (r *requestRepository) nextCounter(ctx context.Context, name string) (int64, error) {
	counters := r.db.Collection("counters")

	opts := options.FindOneAndUpdate().
		SetUpsert(true).
		SetReturnDocument(options.After)

	var doc struct {
		Value int64 `bson:"value"`
	}
	err := counters.FindOneAndUpdate(ctx,
		bson.M{"_id": name},
		bson.M{"$inc": bson.M{"value": 1}},
		opts,
	).Decode(&doc)
	if err != nil {
		return 0, fmt.Errorf("failed to increment counter %s: %w", name, err)
	}

	return doc.Value, nil
}
