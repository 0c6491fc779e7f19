package dispatch

import (
	"math"

	"github.com/medgrid/dispatch-api/internal/distance"
	"github.com/medgrid/dispatch-api/internal/model"
)

// MaxScore ranks a candidate with unknown distance behind every scored one.
const MaxScore = math.MaxFloat64

// Scoring weights. Lower total is better.
const (
	weightDistance     = 0.30
	weightOccupancy    = 0.25
	weightSpecialty    = 0.25
	weightCriticalCare = 0.20

	// Travel times are capped at a two-hour ceiling before normalization.
	travelCeilingHours = 2.0
)

// Score rates how well a hospital matches an emergency. It refines the
// reservation's distance-first ordering with occupancy pressure, specialty
// coverage and critical-care availability; the value is recorded on the
// emergency for observability.
func Score(hospital *model.Hospital, specialties []string, requiresICU, requiresOR bool, dist *distance.Result) float64 {
	if dist == nil {
		return MaxScore
	}

	travelHours := float64(dist.DurationMinutes) / 60
	distanceScore := math.Min(travelHours, travelCeilingHours) * 50

	occupancyScore := 0.0
	if hospital.TotalBeds > 0 {
		occupancyScore = float64(hospital.TotalBeds-hospital.AvailableBeds) / float64(hospital.TotalBeds) * 100
	}

	specialtyScore := 0.0
	if len(specialties) > 0 {
		matched := 0
		for _, s := range specialties {
			if hospital.HasSpecialty(s) {
				matched++
			}
		}
		specialtyScore = (1 - float64(matched)/float64(len(specialties))) * 100
	}

	criticalCareScore := 0.0
	if requiresICU && hospital.AvailableICU <= 0 {
		criticalCareScore = 100
	}
	if requiresOR && hospital.AvailableOR <= 0 {
		criticalCareScore = math.Max(criticalCareScore, 100)
	}

	return distanceScore*weightDistance +
		occupancyScore*weightOccupancy +
		specialtyScore*weightSpecialty +
		criticalCareScore*weightCriticalCare
}
