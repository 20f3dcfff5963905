package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sentryops/bypassguard/internal/authz"
	"github.com/sentryops/bypassguard/internal/domain/models"
	"github.com/sentryops/bypassguard/internal/domain/ports"
	"github.com/sentryops/bypassguard/internal/logger"
)

var (
	ErrRequestNotFound = errors.New("request not found")
	ErrSensorNotFound  = errors.New("sensor not found")
	ErrUserNotFound    = errors.New("user not found")
	// ErrConflict surfaces a lost race: another validator already decided the request
	ErrConflict = errors.New("request was already decided by another validator")
)

// bypassService implements the BypassService interface. It is the only place
// request statuses change outside the expiry sweeper.
type bypassService struct {
	db     ports.DatabaseAdapter
	roles  *authz.Mapping
	logger logger.Logger // Optional custom logger
	now    func() time.Time
}

// NewBypassService creates a new bypass request service instance
func NewBypassService(db ports.DatabaseAdapter, roles *authz.Mapping) ports.BypassService {
	return &bypassService{
		db:    db,
		roles: roles,
		now:   time.Now,
	}
}

// SetLogger sets a custom logger for this service instance
func (s *bypassService) SetLogger(l logger.Logger) {
	s.logger = l
}

// getLogger returns the custom logger if set, otherwise returns the global logger
func (s *bypassService) getLogger() logger.Logger {
	if s.logger != nil {
		return s.logger
	}
	return logger.Log
}

// Submit files a new bypass request as pending. No sensor mutation and no
// notification fan-out happen here.
func (s *bypassService) Submit(ctx context.Context, input ports.SubmitInput) (*models.BypassRequest, error) {
	s.getLogger().Infow("Submit started",
		"requester_id", input.RequesterID,
		"sensor_id", input.SensorID,
		"reason", input.Reason,
		"priority", input.Priority,
	)

	if err := models.ValidateWindow(input.StartTime, input.EndTime); err != nil {
		s.getLogger().Errorw("Submit window validation failed", "requester_id", input.RequesterID, "error", err)
		return nil, err
	}
	if err := models.ValidateReason(input.Reason); err != nil {
		return nil, err
	}
	if err := models.ValidatePriority(input.Priority); err != nil {
		return nil, err
	}
	if len(input.Mitigations) == 0 {
		return nil, models.ErrNoMitigations
	}
	if !input.SafetyAcknowledged || !input.ResponsibilityAcknowledged {
		return nil, models.ErrAcknowledgements
	}

	// The sensor must exist; zone accessibility is checked by the CRUD layer
	if _, err := s.db.GetSensorRepository().GetByID(ctx, input.SensorID); err != nil {
		s.getLogger().Errorw("Submit sensor lookup failed", "sensor_id", input.SensorID, "error", err)
		return nil, ErrSensorNotFound
	}

	now := s.now()
	requestRepo := s.db.GetRequestRepository()

	seq, err := requestRepo.NextSequence(ctx, now.Year())
	if err != nil {
		return nil, fmt.Errorf("failed to reserve request code: %w", err)
	}

	request := &models.BypassRequest{
		RequestCode:         models.RequestCodeFor(now.Year(), seq),
		RequesterID:         input.RequesterID,
		EquipmentID:         input.EquipmentID,
		SensorID:            input.SensorID,
		Title:               input.Reason,
		Description:         input.Description,
		Priority:            input.Priority,
		SafetyImpact:        input.SafetyImpact,
		OperationalImpact:   input.OperationalImpact,
		EnvironmentalImpact: input.EnvironmentalImpact,
		Mitigations:         input.Mitigations,
		StartTime:           input.StartTime,
		EndTime:             input.EndTime,
		CreatedAt:           now,
		Status:              models.RequestStatusPending,
	}

	if err := requestRepo.Create(ctx, request); err != nil {
		s.getLogger().Errorw("Submit failed to persist request", "request_code", request.RequestCode, "error", err)
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	logger.RequestTransitionTotal.WithLabelValues(string(models.RequestStatusPending), "submit").Inc()
	s.getLogger().Infow("Submit completed", "request_code", request.RequestCode, "id", request.ID)

	return request, nil
}

// Validate records an approve/reject decision on a pending request. Approval
// flips the sensor to bypassed in the same transaction as the status write.
func (s *bypassService) Validate(ctx context.Context, requestID, validatorID int64, decision models.ValidationDecision, comment string) (*models.BypassRequest, error) {
	s.getLogger().Infow("Validate started", "request_id", requestID, "validator_id", validatorID, "decision", decision)

	if err := models.ValidateDecision(decision); err != nil {
		return nil, err
	}
	if comment == "" {
		return nil, models.ErrCommentRequired
	}

	request, err := s.db.GetRequestRepository().GetByID(ctx, requestID)
	if err != nil {
		return nil, ErrRequestNotFound
	}
	if request.Status != models.RequestStatusPending {
		s.getLogger().Warnw("Validate on non-pending request", "request_id", requestID, "status", request.Status)
		return nil, models.ErrRequestNotPending
	}

	validator, err := s.db.GetUserRepository().GetByID(ctx, validatorID)
	if err != nil {
		return nil, ErrUserNotFound
	}
	if !s.roles.CanValidate(validator.Role, request.Priority) {
		s.getLogger().Warnw("Validate forbidden",
			"request_id", requestID,
			"validator_id", validatorID,
			"role", validator.Role,
			"priority", request.Priority,
		)
		return nil, models.ErrValidatorForbidden
	}

	now := s.now()

	switch decision {
	case models.DecisionApproved:
		if err := s.approve(ctx, request, validatorID, comment, now); err != nil {
			return nil, err
		}
	case models.DecisionRejected:
		err := s.db.GetRequestRepository().MarkValidated(
			ctx, requestID, models.RequestStatusRejected, validatorID, now, comment, &comment,
		)
		if err != nil {
			return nil, s.mapWriteError(err, requestID)
		}
		logger.RequestTransitionTotal.WithLabelValues(string(models.RequestStatusRejected), string(models.TriggerValidate)).Inc()
	}

	updated, err := s.db.GetRequestRepository().GetByID(ctx, requestID)
	if err != nil {
		return nil, fmt.Errorf("failed to reload request: %w", err)
	}

	s.getLogger().Infow("Validate completed", "request_code", updated.RequestCode, "status", updated.Status)
	return updated, nil
}

// approve writes the status transition and the sensor flip as one atomic
// unit. A crash between the two writes must not leave an approved request
// with a non-bypassed sensor, or vice versa.
func (s *bypassService) approve(ctx context.Context, request *models.BypassRequest, validatorID int64, comment string, now time.Time) error {
	tx, err := s.db.BeginTransaction(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	err = tx.GetRequestRepository().MarkValidated(
		ctx, request.ID, models.RequestStatusApproved, validatorID, now, comment, nil,
	)
	if err != nil {
		_ = tx.Rollback(ctx)
		return s.mapWriteError(err, request.ID)
	}

	if err := tx.GetSensorRepository().UpdateStatus(ctx, request.SensorID, models.SensorStatusBypassed); err != nil {
		_ = tx.Rollback(ctx)
		return fmt.Errorf("failed to bypass sensor: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit approval: %w", err)
	}

	logger.RequestTransitionTotal.WithLabelValues(string(models.RequestStatusApproved), string(models.TriggerValidate)).Inc()
	s.getLogger().Infow("sensor bypassed", "sensor_id", request.SensorID, "request_code", request.RequestCode)
	return nil
}

// Cancel withdraws a still-pending request. The sensor was never bypassed
// while pending, so no sensor mutation happens.
func (s *bypassService) Cancel(ctx context.Context, requestID int64) error {
	s.getLogger().Infow("Cancel started", "request_id", requestID)

	if err := s.db.GetRequestRepository().MarkCancelled(ctx, requestID); err != nil {
		return s.mapWriteError(err, requestID)
	}

	logger.RequestTransitionTotal.WithLabelValues(string(models.RequestStatusCancelled), string(models.TriggerCancel)).Inc()
	s.getLogger().Infow("Cancel completed", "request_id", requestID)
	return nil
}

// Get retrieves a request by id
func (s *bypassService) Get(ctx context.Context, requestID int64) (*models.BypassRequest, error) {
	request, err := s.db.GetRequestRepository().GetByID(ctx, requestID)
	if err != nil {
		if errors.Is(err, ports.ErrNotFound) {
			return nil, ErrRequestNotFound
		}
		return nil, err
	}
	return request, nil
}

// List retrieves paginated requests, optionally filtered by status
func (s *bypassService) List(ctx context.Context, status models.RequestStatus, offset, limit int) ([]*models.BypassRequest, error) {
	if status == "" {
		return s.db.GetRequestRepository().List(ctx, offset, limit)
	}
	if err := models.ValidateRequestStatus(status); err != nil {
		return nil, err
	}
	return s.db.GetRequestRepository().ListByStatus(ctx, status, offset, limit)
}

// mapWriteError translates repository sentinels into service errors
func (s *bypassService) mapWriteError(err error, requestID int64) error {
	switch {
	case errors.Is(err, ports.ErrNotFound):
		return ErrRequestNotFound
	case errors.Is(err, ports.ErrConflict):
		logger.TransitionConflictTotal.Inc()
		s.getLogger().Warnw("transition lost to concurrent writer", "request_id", requestID)
		return ErrConflict
	default:
		return err
	}
}
