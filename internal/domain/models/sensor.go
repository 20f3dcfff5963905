package models

import (
	"errors"
	"time"
)

// SensorStatus represents the operational state of a safety sensor
type SensorStatus string

const (
	SensorStatusActive      SensorStatus = "active"      // Protective function armed
	SensorStatusBypassed    SensorStatus = "bypassed"    // Protective function suspended by an approved request
	SensorStatusMaintenance SensorStatus = "maintenance" // Out of service for maintenance
	SensorStatusFaulty      SensorStatus = "faulty"      // Defective
	SensorStatusCalibration SensorStatus = "calibration" // Undergoing calibration
)

var ErrInvalidSensorStatus = errors.New("invalid sensor status")

// Sensor represents a safety sensor attached to a piece of equipment
type Sensor struct {
	ID          int64        `json:"id" db:"id" bson:"_id,omitempty"`
	EquipmentID int64        `json:"equipment_id" db:"equipment_id" bson:"equipment_id"`
	Name        string       `json:"name" db:"name" bson:"name"`
	Tag         string       `json:"tag" db:"tag" bson:"tag"`
	Status      SensorStatus `json:"status" db:"status" bson:"status"`
	LastUpdated time.Time    `json:"last_updated" db:"last_updated" bson:"last_updated"`
}

// Equipment represents a piece of plant equipment carrying sensors
type Equipment struct {
	ID       int64   `json:"id" db:"id" bson:"_id,omitempty"`
	Name     string  `json:"name" db:"name" bson:"name"`
	Code     string  `json:"code" db:"code" bson:"code"`
	ZoneID   int64   `json:"zone_id" db:"zone_id" bson:"zone_id"`
	Location *string `json:"location,omitempty" db:"location" bson:"location,omitempty"`
}

// ValidateSensorStatus checks if the status is a known one
func ValidateSensorStatus(status SensorStatus) error {
	switch status {
	case SensorStatusActive, SensorStatusBypassed, SensorStatusMaintenance,
		SensorStatusFaulty, SensorStatusCalibration:
		return nil
	default:
		return ErrInvalidSensorStatus
	}
}
