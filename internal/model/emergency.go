package model

import (
	"github.com/google/uuid"
	"github.com/lib/pq"
)

// Condition is the medical severity of an emergency, not its workflow state.
type Condition string

const (
	ConditionModerate Condition = "MODERATE"
	ConditionSevere   Condition = "SEVERE"
	ConditionCritical Condition = "CRITICAL"
)

func (c Condition) Valid() bool {
	switch c {
	case ConditionModerate, ConditionSevere, ConditionCritical:
		return true
	}
	return false
}

// EmergencyStatus tracks the incident workflow after assignment.
type EmergencyStatus string

const (
	EmergencyStatusPending   EmergencyStatus = "PENDING"
	EmergencyStatusAssigned  EmergencyStatus = "ASSIGNED"
	EmergencyStatusInTransit EmergencyStatus = "IN_TRANSIT"
	EmergencyStatusArrived   EmergencyStatus = "ARRIVED"
	EmergencyStatusCompleted EmergencyStatus = "COMPLETED"
	EmergencyStatusCancelled EmergencyStatus = "CANCELLED"
)

func (s EmergencyStatus) Valid() bool {
	switch s {
	case EmergencyStatusPending, EmergencyStatusAssigned, EmergencyStatusInTransit,
		EmergencyStatusArrived, EmergencyStatusCompleted, EmergencyStatusCancelled:
		return true
	}
	return false
}

// Emergency is a single incident. AssignedHospitalID is set at creation in the
// same transaction as the capacity decrement and is immutable afterwards.
type Emergency struct {
	Base
	Condition          Condition       `json:"condition" db:"condition"`
	Status             EmergencyStatus `json:"status" db:"status"`
	PrimaryComplaint   string          `json:"primary_complaint" db:"primary_complaint"`
	AdditionalDetails  *string         `json:"additional_details,omitempty" db:"additional_details"`
	Specialties        pq.StringArray  `json:"specialties" db:"specialties"`
	Latitude           float64         `json:"lat" db:"latitude"`
	Longitude          float64         `json:"lng" db:"longitude"`
	Address            string          `json:"address" db:"address"`
	RequiresICU        bool            `json:"requires_icu" db:"requires_icu"`
	RequiresOR         bool            `json:"requires_or" db:"requires_or"`
	AssignedHospitalID uuid.UUID       `json:"assigned_hospital_id" db:"assigned_hospital_id"`
	ETAMinutes         *int            `json:"eta,omitempty" db:"eta_minutes"`
	DistanceKm         *float64        `json:"distance_to_hospital,omitempty" db:"distance_km"`
	MatchScore         *float64        `json:"match_score,omitempty" db:"match_score"`

	// AssignedHospital is populated on reads, never stored inline.
	AssignedHospital *Hospital `json:"assigned_hospital,omitempty" db:"-"`
}

// Location returns the incident coordinates.
func (e *Emergency) Location() GeoPoint {
	return GeoPoint{Latitude: e.Latitude, Longitude: e.Longitude}
}

// CreateEmergencyRequest is the dispatch request payload.
type CreateEmergencyRequest struct {
	Condition         string         `json:"condition" binding:"required"`
	PrimaryComplaint  string         `json:"primary_complaint" binding:"required"`
	AdditionalDetails string         `json:"additional_details"`
	Specialties       []string       `json:"specialties"`
	Address           string         `json:"address" binding:"required"`
	RequiresICU       bool           `json:"requires_icu"`
	RequiresOR        bool           `json:"requires_or"`
	Location          *LocationInput `json:"location" binding:"required"`
}

// UpdateEmergencyStatusRequest advances the incident workflow.
type UpdateEmergencyStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

// DispatchResult is the create-emergency response: the committed emergency
// with its hospital populated, plus the distance data that was obtained.
type DispatchResult struct {
	Emergency *Emergency `json:"emergency"`
	Hospital  *Hospital  `json:"hospital"`
	ETA       *int       `json:"eta"`
	Distance  *float64   `json:"distance"`
}
