package model

import (
	"github.com/lib/pq"
)

// HospitalStatus is the administrator-set availability flag. It is advisory
// and deliberately independent of the numeric bed counts.
type HospitalStatus string

const (
	HospitalStatusAvailable HospitalStatus = "Available"
	HospitalStatusBusy      HospitalStatus = "Busy"
	HospitalStatusFull      HospitalStatus = "Full"
)

func (s HospitalStatus) Valid() bool {
	switch s {
	case HospitalStatusAvailable, HospitalStatusBusy, HospitalStatusFull:
		return true
	}
	return false
}

// Hospital is a capacity-bearing facility. The available counters are only
// mutated through the store's conditional updates.
type Hospital struct {
	Base
	Name           string         `json:"name" db:"name"`
	Address        string         `json:"address" db:"address"`
	Phone          string         `json:"phone" db:"phone"`
	OperatingHours string         `json:"operating_hours" db:"operating_hours"`
	TotalBeds      int            `json:"total_beds" db:"total_beds"`
	AvailableBeds  int            `json:"available_beds" db:"available_beds"`
	TotalICU       int            `json:"total_icu" db:"total_icu"`
	AvailableICU   int            `json:"available_icu" db:"available_icu"`
	TotalOR        int            `json:"total_or" db:"total_or"`
	AvailableOR    int            `json:"available_or" db:"available_or"`
	Specialties    pq.StringArray `json:"specialties" db:"specialties"`
	Status         HospitalStatus `json:"status" db:"status"`
	Latitude       float64        `json:"lat" db:"latitude"`
	Longitude      float64        `json:"lng" db:"longitude"`
}

// Location returns the hospital's coordinates.
func (h *Hospital) Location() GeoPoint {
	return GeoPoint{Latitude: h.Latitude, Longitude: h.Longitude}
}

// HasSpecialty reports whether the hospital offers the named specialty.
func (h *Hospital) HasSpecialty(name string) bool {
	for _, s := range h.Specialties {
		if s == name {
			return true
		}
	}
	return false
}

// CreateHospitalRequest is the administrative creation payload.
type CreateHospitalRequest struct {
	Name           string         `json:"name" binding:"required"`
	Address        string         `json:"address" binding:"required"`
	Phone          string         `json:"phone" binding:"required"`
	OperatingHours string         `json:"operating_hours" binding:"required"`
	TotalBeds      int            `json:"total_beds" binding:"min=0"`
	AvailableBeds  int            `json:"available_beds" binding:"min=0"`
	TotalICU       int            `json:"total_icu" binding:"min=0"`
	AvailableICU   int            `json:"available_icu" binding:"min=0"`
	TotalOR        int            `json:"total_or" binding:"min=0"`
	AvailableOR    int            `json:"available_or" binding:"min=0"`
	Specialties    []string       `json:"specialties"`
	Status         string         `json:"status"`
	Location       *LocationInput `json:"location" binding:"required"`
}

// UpdateHospitalRequest is a partial administrative update. Nil fields are
// left untouched; capacity fields go through the store's conditional update.
type UpdateHospitalRequest struct {
	Name           *string   `json:"name"`
	Address        *string   `json:"address"`
	Phone          *string   `json:"phone"`
	OperatingHours *string   `json:"operating_hours"`
	TotalBeds      *int      `json:"total_beds" validate:"omitempty,min=0"`
	AvailableBeds  *int      `json:"available_beds" validate:"omitempty,min=0"`
	TotalICU       *int      `json:"total_icu" validate:"omitempty,min=0"`
	AvailableICU   *int      `json:"available_icu" validate:"omitempty,min=0"`
	TotalOR        *int      `json:"total_or" validate:"omitempty,min=0"`
	AvailableOR    *int      `json:"available_or" validate:"omitempty,min=0"`
	Specialties    *[]string `json:"specialties"`
	Status         *string   `json:"status"`
}

// Empty reports whether the patch would change nothing.
func (r *UpdateHospitalRequest) Empty() bool {
	return r.Name == nil && r.Address == nil && r.Phone == nil &&
		r.OperatingHours == nil && r.TotalBeds == nil && r.AvailableBeds == nil &&
		r.TotalICU == nil && r.AvailableICU == nil && r.TotalOR == nil &&
		r.AvailableOR == nil && r.Specialties == nil && r.Status == nil
}
