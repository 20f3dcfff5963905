package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// RequestStatus represents the lifecycle state of a bypass request
type RequestStatus string

const (
	RequestStatusPending   RequestStatus = "pending"   // Awaiting validation
	RequestStatusApproved  RequestStatus = "approved"  // Validated, sensor bypassed
	RequestStatusRejected  RequestStatus = "rejected"  // Validated negatively (terminal)
	RequestStatusCancelled RequestStatus = "cancelled" // Withdrawn or expired while pending (terminal)
)

// ValidationDecision is the outcome a validator can record on a pending request
type ValidationDecision string

const (
	DecisionApproved ValidationDecision = "approved"
	DecisionRejected ValidationDecision = "rejected"
)

// Priority represents the urgency tier of a bypass request
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// ImpactLevel qualifies the safety/operational/environmental risk of a bypass
type ImpactLevel string

const (
	ImpactLow    ImpactLevel = "low"
	ImpactMedium ImpactLevel = "medium"
	ImpactHigh   ImpactLevel = "high"
)

// BypassReason is the enumerated category a request is filed under
type BypassReason string

const (
	ReasonPreventiveMaintenance BypassReason = "preventive_maintenance"
	ReasonCorrectiveMaintenance BypassReason = "corrective_maintenance"
	ReasonCalibration           BypassReason = "calibration"
	ReasonTesting               BypassReason = "testing"
	ReasonEmergencyRepair       BypassReason = "emergency_repair"
	ReasonSystemUpgrade         BypassReason = "system_upgrade"
	ReasonInvestigation         BypassReason = "investigation"
	ReasonOther                 BypassReason = "other"
)

// reasonLabels maps reason keys to the labels rendered in outbound messages.
// Must stay in sync everywhere reasons are displayed.
var reasonLabels = map[BypassReason]string{
	ReasonPreventiveMaintenance: "Maintenance préventive",
	ReasonCorrectiveMaintenance: "Maintenance corrective",
	ReasonCalibration:           "Étalonnage",
	ReasonTesting:               "Essai",
	ReasonEmergencyRepair:       "Réparation d'urgence",
	ReasonSystemUpgrade:         "Mise à niveau du système",
	ReasonInvestigation:         "Investigation",
	ReasonOther:                 "Autre",
}

// Label returns the human-readable label for a reason key,
// falling back to the raw key when unmapped.
func (r BypassReason) Label() string {
	if label, ok := reasonLabels[r]; ok {
		return label
	}
	return string(r)
}

var (
	ErrInvalidStatus      = errors.New("invalid request status")
	ErrInvalidPriority    = errors.New("invalid priority")
	ErrInvalidReason      = errors.New("invalid bypass reason")
	ErrInvalidDecision    = errors.New("invalid validation decision")
	ErrInvalidWindow      = errors.New("end time must be after start time")
	ErrNoMitigations      = errors.New("at least one mitigation measure is required")
	ErrAcknowledgements   = errors.New("safety and responsibility acknowledgements are required")
	ErrCommentRequired    = errors.New("a validation comment is required")
	ErrRequestNotPending  = errors.New("request is not pending")
	ErrIllegalTransition  = errors.New("illegal status transition")
	ErrValidatorForbidden = errors.New("validator does not hold the required approval level")
)

// StringList stores a list of short text values in a single column as JSON
type StringList []string

// Value implements driver.Valuer
func (l StringList) Value() (driver.Value, error) {
	if l == nil {
		return "[]", nil
	}
	b, err := json.Marshal(l)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements sql.Scanner
func (l *StringList) Scan(src interface{}) error {
	if src == nil {
		*l = nil
		return nil
	}
	switch v := src.(type) {
	case []byte:
		return json.Unmarshal(v, l)
	case string:
		return json.Unmarshal([]byte(v), l)
	default:
		return fmt.Errorf("cannot scan %T into StringList", src)
	}
}

// BypassRequest represents a sensor-bypass request tracked through the approval chain
type BypassRequest struct {
	ID          int64        `json:"id" db:"id" bson:"_id,omitempty"`
	RequestCode string       `json:"request_code" db:"request_code" bson:"request_code"`
	RequesterID int64        `json:"requester_id" db:"requester_id" bson:"requester_id"`
	EquipmentID int64        `json:"equipment_id" db:"equipment_id" bson:"equipment_id"`
	SensorID    int64        `json:"sensor_id" db:"sensor_id" bson:"sensor_id"`
	Title       BypassReason `json:"title" db:"title" bson:"title"`
	Description *string      `json:"description,omitempty" db:"description" bson:"description,omitempty"`
	Priority    Priority     `json:"priority" db:"priority" bson:"priority"`

	SafetyImpact        ImpactLevel `json:"safety_impact" db:"safety_impact" bson:"safety_impact"`
	OperationalImpact   ImpactLevel `json:"operational_impact" db:"operational_impact" bson:"operational_impact"`
	EnvironmentalImpact ImpactLevel `json:"environmental_impact" db:"environmental_impact" bson:"environmental_impact"`
	Mitigations         StringList  `json:"mitigation_measures" db:"mitigation_measures" bson:"mitigation_measures"`

	StartTime time.Time `json:"start_time" db:"start_time" bson:"start_time"`
	EndTime   time.Time `json:"end_time" db:"end_time" bson:"end_time"`
	CreatedAt time.Time `json:"created_at" db:"created_at" bson:"created_at"`

	Status            RequestStatus `json:"status" db:"status" bson:"status"`
	ValidatorID       *int64        `json:"validator_id,omitempty" db:"validator_id" bson:"validator_id,omitempty"`
	ValidatedAt       *time.Time    `json:"validated_at,omitempty" db:"validated_at" bson:"validated_at,omitempty"`
	ValidationComment *string       `json:"validation_comment,omitempty" db:"validation_comment" bson:"validation_comment,omitempty"`
	RejectionReason   *string       `json:"rejection_reason,omitempty" db:"rejection_reason" bson:"rejection_reason,omitempty"`
}

// IsTerminal reports whether the request can never transition again
func (r *BypassRequest) IsTerminal() bool {
	return r.Status == RequestStatusRejected || r.Status == RequestStatusCancelled
}

// Expired reports whether the requested window has closed
func (r *BypassRequest) Expired(now time.Time) bool {
	return r.EndTime.Before(now)
}

// NeedsReactivation reports whether the request flags its sensor for manual
// reactivation: approved, window closed, sensor still bypassed. Note this is
// an "overdue" predicate; an approved request still inside its window is not
// selected.
func (r *BypassRequest) NeedsReactivation(sensor *Sensor, now time.Time) bool {
	return r.Status == RequestStatusApproved &&
		sensor != nil && sensor.Status == SensorStatusBypassed &&
		r.EndTime.Before(now)
}

// ValidateWindow checks the end > start invariant
func ValidateWindow(start, end time.Time) error {
	if !end.After(start) {
		return ErrInvalidWindow
	}
	return nil
}

// ValidateRequestStatus checks if the status is a known one
func ValidateRequestStatus(status RequestStatus) error {
	switch status {
	case RequestStatusPending, RequestStatusApproved, RequestStatusRejected, RequestStatusCancelled:
		return nil
	default:
		return ErrInvalidStatus
	}
}

// ValidatePriority checks if the priority is a known one
func ValidatePriority(priority Priority) error {
	switch priority {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return nil
	default:
		return ErrInvalidPriority
	}
}

// ValidateReason checks if the reason key is a known one
func ValidateReason(reason BypassReason) error {
	if _, ok := reasonLabels[reason]; !ok {
		return ErrInvalidReason
	}
	return nil
}

// ValidateDecision checks if the decision is a known one
func ValidateDecision(decision ValidationDecision) error {
	switch decision {
	case DecisionApproved, DecisionRejected:
		return nil
	default:
		return ErrInvalidDecision
	}
}

// RequestCodeFor builds the human-readable request code, e.g. BR-2024-001
func RequestCodeFor(year int, sequence int64) string {
	return fmt.Sprintf("BR-%d-%03d", year, sequence)
}
