package ports

import (
	"context"
	"time"

	"github.com/sentryops/bypassguard/internal/domain/models"
)

// SubmitInput carries everything a requester provides when filing a request
type SubmitInput struct {
	RequesterID int64
	EquipmentID int64
	SensorID    int64
	Reason      models.BypassReason
	Description *string
	Priority    models.Priority

	StartTime time.Time
	EndTime   time.Time

	SafetyImpact        models.ImpactLevel
	OperationalImpact   models.ImpactLevel
	EnvironmentalImpact models.ImpactLevel
	Mitigations         []string

	SafetyAcknowledged         bool
	ResponsibilityAcknowledged bool
}

// BypassService is the transition engine: it owns every legal status change
// of a bypass request and the side effects each change carries.
type BypassService interface {
	// Submit files a new request as pending
	Submit(ctx context.Context, input SubmitInput) (*models.BypassRequest, error)

	// Validate records an approve/reject decision on a pending request
	Validate(ctx context.Context, requestID, validatorID int64, decision models.ValidationDecision, comment string) (*models.BypassRequest, error)

	// Cancel withdraws a still-pending request
	Cancel(ctx context.Context, requestID int64) error

	// Get retrieves a request by id
	Get(ctx context.Context, requestID int64) (*models.BypassRequest, error)

	// List retrieves requests, optionally filtered by status
	List(ctx context.Context, status models.RequestStatus, offset, limit int) ([]*models.BypassRequest, error)
}

// Notifier accepts outbound notification intents. Delivery is asynchronous
// and best-effort; callers never observe delivery failures.
type Notifier interface {
	Notify(recipient, body string)
}
