package http

import "github.com/sentryops/bypassguard/internal/domain/models"

// ProblemDetails represents an error response following RFC 7807
type ProblemDetails struct {
	Type     string `json:"type,omitempty"`
	Title    string `json:"title,omitempty"`
	Status   int    `json:"status"`
	Detail   string `json:"detail,omitempty"`
	Instance string `json:"instance,omitempty"`
}

// SubmitRequest represents a bypass request submission
type SubmitRequest struct {
	RequesterID int64               `json:"requester_id" binding:"required"`
	EquipmentID int64               `json:"equipment_id" binding:"required"`
	SensorID    int64               `json:"sensor_id" binding:"required"`
	Title       models.BypassReason `json:"title" binding:"required"`
	Description *string             `json:"description,omitempty"`
	Priority    models.Priority     `json:"priority" binding:"required"`

	SafetyImpact        models.ImpactLevel `json:"safety_impact"`
	OperationalImpact   models.ImpactLevel `json:"operational_impact"`
	EnvironmentalImpact models.ImpactLevel `json:"environmental_impact"`
	Mitigations         []string           `json:"mitigation_measures"`

	StartTime string `json:"start_time" binding:"required"`
	EndTime   string `json:"end_time" binding:"required"`

	SafetyAcknowledged         bool `json:"safety_acknowledged"`
	ResponsibilityAcknowledged bool `json:"responsibility_acknowledged"`
}

// ValidateRequest represents a validation decision on a pending request
type ValidateRequest struct {
	ValidatorID       int64                     `json:"validator_id" binding:"required"`
	ValidationStatus  models.ValidationDecision `json:"validation_status" binding:"required"`
	ValidationComment string                    `json:"validation_comment"`
	RejectionReason   *string                   `json:"rejection_reason,omitempty"`
}

// SensorStatusRequest represents an administrative sensor status change,
// typically the manual reactivation the advisory messages ask for
type SensorStatusRequest struct {
	Status models.SensorStatus `json:"status" binding:"required"`
}

// RequestResponse represents a bypass request in API responses
type RequestResponse struct {
	ID          int64               `json:"id"`
	RequestCode string              `json:"request_code"`
	RequesterID int64               `json:"requester_id"`
	EquipmentID int64               `json:"equipment_id"`
	SensorID    int64               `json:"sensor_id"`
	Title       models.BypassReason `json:"title"`
	TitleLabel  string              `json:"title_label"`
	Description *string             `json:"description,omitempty"`
	Priority    models.Priority     `json:"priority"`

	SafetyImpact        models.ImpactLevel `json:"safety_impact"`
	OperationalImpact   models.ImpactLevel `json:"operational_impact"`
	EnvironmentalImpact models.ImpactLevel `json:"environmental_impact"`
	Mitigations         []string           `json:"mitigation_measures"`

	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
	CreatedAt string `json:"created_at"`

	Status            models.RequestStatus `json:"status"`
	ValidatorID       *int64               `json:"validator_id,omitempty"`
	ValidatedAt       *string              `json:"validated_at,omitempty"`
	ValidationComment *string              `json:"validation_comment,omitempty"`
	RejectionReason   *string              `json:"rejection_reason,omitempty"`
}

// SensorResponse represents a sensor in API responses
type SensorResponse struct {
	ID          int64               `json:"id"`
	EquipmentID int64               `json:"equipment_id"`
	Name        string              `json:"name"`
	Tag         string              `json:"tag"`
	Status      models.SensorStatus `json:"status"`
	LastUpdated string              `json:"last_updated"`
}
