package ports

import (
	"context"
	"errors"
	"time"

	"github.com/sentryops/bypassguard/internal/domain/models"
)

// Sentinel errors shared by all repository implementations
var (
	ErrNotFound = errors.New("record not found")
	// ErrConflict is returned when a status-preconditioned write matches no row,
	// i.e. a concurrent actor already transitioned the request.
	ErrConflict = errors.New("request status conflict")
)

// RequestRepository defines the interface for bypass request data access
// This is a port owned by the domain layer
type RequestRepository interface {
	// GetByID retrieves a request by internal id
	GetByID(ctx context.Context, id int64) (*models.BypassRequest, error)

	// GetByCode retrieves a request by its human-readable code
	GetByCode(ctx context.Context, code string) (*models.BypassRequest, error)

	// Create adds a new request record and fills in its id
	Create(ctx context.Context, request *models.BypassRequest) error

	// List retrieves requests with pagination, newest first
	List(ctx context.Context, offset, limit int) ([]*models.BypassRequest, error)

	// ListByStatus retrieves requests by status with pagination
	ListByStatus(ctx context.Context, status models.RequestStatus, offset, limit int) ([]*models.BypassRequest, error)

	// ListPendingInWindow selects pending requests whose end time is still ahead
	ListPendingInWindow(ctx context.Context, now time.Time) ([]*models.BypassRequest, error)

	// ListPendingExpired selects pending requests whose deadline has passed
	ListPendingExpired(ctx context.Context, now time.Time) ([]*models.BypassRequest, error)

	// ListOverdueApproved selects approved requests past their deadline whose
	// sensor is still bypassed, joined with sensor, equipment and requester
	ListOverdueApproved(ctx context.Context, now time.Time) ([]*models.ReactivationCase, error)

	// MarkValidated records a validation outcome on a still-pending request.
	// Returns ErrConflict when the request is no longer pending.
	MarkValidated(ctx context.Context, id int64, status models.RequestStatus, validatorID int64, validatedAt time.Time, comment string, rejectionReason *string) error

	// MarkCancelled cancels a still-pending request.
	// Returns ErrConflict when the request is no longer pending.
	MarkCancelled(ctx context.Context, id int64) error

	// NextSequence reserves the next request-code sequence number for a year
	NextSequence(ctx context.Context, year int) (int64, error)

	// CountByStatus returns the number of requests per status
	CountByStatus(ctx context.Context) (map[models.RequestStatus]int64, error)
}

// SensorRepository defines the interface for sensor data access
type SensorRepository interface {
	// GetByID retrieves a sensor by id
	GetByID(ctx context.Context, id int64) (*models.Sensor, error)

	// UpdateStatus sets the sensor status
	UpdateStatus(ctx context.Context, id int64, status models.SensorStatus) error
}

// UserRepository defines the interface for user lookups (read-only for the core)
type UserRepository interface {
	// GetByID retrieves a user by id
	GetByID(ctx context.Context, id int64) (*models.User, error)

	// ListApprovers retrieves every user whose role grants validation rights
	ListApprovers(ctx context.Context) ([]*models.User, error)
}
