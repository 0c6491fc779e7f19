package dispatch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog"

	"github.com/medgrid/dispatch-api/internal/distance"
	"github.com/medgrid/dispatch-api/internal/model"
	"github.com/medgrid/dispatch-api/internal/repository"
	"github.com/medgrid/dispatch-api/internal/service/event"
	apperrors "github.com/medgrid/dispatch-api/pkg/errors"
	"github.com/medgrid/dispatch-api/pkg/metrics"
	"github.com/medgrid/dispatch-api/pkg/validator"
)

// Servicer is the dispatch contract the HTTP layer depends on.
type Servicer interface {
	CreateEmergency(ctx context.Context, req *model.CreateEmergencyRequest) (*model.DispatchResult, error)
	GetEmergency(ctx context.Context, id uuid.UUID) (*model.Emergency, error)
	ListEmergencies(ctx context.Context) ([]*model.Emergency, error)
	UpdateEmergencyStatus(ctx context.Context, id uuid.UUID, req *model.UpdateEmergencyStatusRequest) (*model.Emergency, error)
}

// Service is the reservation engine. The store's single-statement conditional
// update is the only mutual-exclusion mechanism; this service orchestrates the
// transaction around it and keeps the distance lookup and the broadcast off
// the correctness path.
type Service struct {
	tx           repository.TxRunner
	hospitals    repository.HospitalRepository
	emergencies  repository.EmergencyRepository
	distance     distance.Lookuper
	events       event.Broadcaster
	metrics      *metrics.Metrics
	logger       zerolog.Logger
	radiusMeters float64
}

func NewService(
	tx repository.TxRunner,
	hospitals repository.HospitalRepository,
	emergencies repository.EmergencyRepository,
	dist distance.Lookuper,
	events event.Broadcaster,
	m *metrics.Metrics,
	logger zerolog.Logger,
	searchRadiusKm float64,
) *Service {
	return &Service{
		tx:           tx,
		hospitals:    hospitals,
		emergencies:  emergencies,
		distance:     dist,
		events:       events,
		metrics:      m,
		logger:       logger,
		radiusMeters: searchRadiusKm * 1000,
	}
}

// CreateEmergency reserves capacity on the best eligible hospital and
// persists the emergency referencing it, all-or-nothing. A distance lookup
// failure degrades the result; it never aborts the reservation.
func (s *Service) CreateEmergency(ctx context.Context, req *model.CreateEmergencyRequest) (*model.DispatchResult, error) {
	emergency, err := s.buildEmergency(req)
	if err != nil {
		return nil, err
	}

	start := time.Now()

	var hospital *model.Hospital
	var distResult *distance.Result

	err = s.tx.WithTx(ctx, func(tx *sqlx.Tx) error {
		var err error
		hospital, err = s.hospitals.ReserveNearest(ctx, tx, repository.ReservationFilter{
			Latitude:     emergency.Latitude,
			Longitude:    emergency.Longitude,
			RadiusMeters: s.radiusMeters,
			RequiresICU:  emergency.RequiresICU,
			RequiresOR:   emergency.RequiresOR,
			Specialties:  emergency.Specialties,
		})
		if err != nil {
			return err
		}

		distResult = s.lookupDistance(ctx, emergency, hospital)
		if distResult != nil {
			eta := distResult.DurationMinutes
			km := distResult.DistanceKm
			emergency.ETAMinutes = &eta
			emergency.DistanceKm = &km
			score := Score(hospital, emergency.Specialties, emergency.RequiresICU, emergency.RequiresOR, distResult)
			emergency.MatchScore = &score
		}

		emergency.AssignedHospitalID = hospital.ID
		return s.emergencies.Create(ctx, tx, emergency)
	})

	s.metrics.ReservationLatency.Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, s.classify(err)
	}
	s.metrics.ReservationsTotal.WithLabelValues("assigned").Inc()

	s.logger.Info().
		Stringer("emergency_id", emergency.ID).
		Stringer("hospital_id", hospital.ID).
		Str("condition", string(emergency.Condition)).
		Bool("distance_known", distResult != nil).
		Msg("emergency assigned")

	// Post-commit, off the response path. Failure is the broadcaster's to log.
	go s.events.EmergencyCreated(ctx, emergency.ID)

	emergency.AssignedHospital = hospital
	return &model.DispatchResult{
		Emergency: emergency,
		Hospital:  hospital,
		ETA:       emergency.ETAMinutes,
		Distance:  emergency.DistanceKm,
	}, nil
}

func (s *Service) GetEmergency(ctx context.Context, id uuid.UUID) (*model.Emergency, error) {
	emergency, err := s.emergencies.Get(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperrors.NewNotFound("emergency request", err)
	}
	if err != nil {
		return nil, apperrors.NewInternal(fmt.Errorf("failed to get emergency: %w", err))
	}
	return emergency, nil
}

func (s *Service) ListEmergencies(ctx context.Context) ([]*model.Emergency, error) {
	emergencies, err := s.emergencies.List(ctx)
	if err != nil {
		return nil, apperrors.NewInternal(fmt.Errorf("failed to list emergencies: %w", err))
	}
	return emergencies, nil
}

func (s *Service) UpdateEmergencyStatus(ctx context.Context, id uuid.UUID, req *model.UpdateEmergencyStatusRequest) (*model.Emergency, error) {
	status := model.EmergencyStatus(req.Status)
	if !status.Valid() {
		return nil, apperrors.NewBadRequest(fmt.Sprintf("invalid status: %s", req.Status), nil)
	}

	emergency, err := s.emergencies.UpdateStatus(ctx, id, status)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperrors.NewNotFound("emergency request", err)
	}
	if err != nil {
		return nil, apperrors.NewInternal(fmt.Errorf("failed to update emergency: %w", err))
	}

	go s.events.EmergencyUpdated(ctx, id)
	return emergency, nil
}

// buildEmergency validates the request before any store interaction.
func (s *Service) buildEmergency(req *model.CreateEmergencyRequest) (*model.Emergency, error) {
	condition := model.Condition(req.Condition)
	if !condition.Valid() {
		return nil, apperrors.NewBadRequest(fmt.Sprintf("invalid condition: %s", req.Condition), nil)
	}
	if req.PrimaryComplaint == "" {
		return nil, apperrors.NewBadRequest("primary complaint is required", nil)
	}
	if req.Address == "" {
		return nil, apperrors.NewBadRequest("address is required", nil)
	}
	lat, lng, err := coordinates(req.Location)
	if err != nil {
		return nil, apperrors.NewBadRequest(err.Error(), err)
	}

	emergency := &model.Emergency{
		Condition:        condition,
		Status:           model.EmergencyStatusAssigned,
		PrimaryComplaint: req.PrimaryComplaint,
		Specialties:      req.Specialties,
		Latitude:         lat,
		Longitude:        lng,
		Address:          req.Address,
		RequiresICU:      req.RequiresICU,
		RequiresOR:       req.RequiresOR,
	}
	if req.AdditionalDetails != "" {
		details := req.AdditionalDetails
		emergency.AdditionalDetails = &details
	}
	if emergency.Specialties == nil {
		emergency.Specialties = []string{}
	}
	return emergency, nil
}

// lookupDistance absorbs every provider failure into "distance unknown".
func (s *Service) lookupDistance(ctx context.Context, emergency *model.Emergency, hospital *model.Hospital) *distance.Result {
	result, err := s.distance.Lookup(ctx, emergency.Location(), hospital.Location())
	if err != nil {
		s.metrics.DistanceLookups.WithLabelValues("failed").Inc()
		s.logger.Warn().Err(err).
			Stringer("hospital_id", hospital.ID).
			Msg("proceeding without distance data")
		return nil
	}
	s.metrics.DistanceLookups.WithLabelValues("ok").Inc()
	return result
}

func (s *Service) classify(err error) error {
	switch {
	case errors.Is(err, repository.ErrNoEligibleHospital):
		s.metrics.ReservationsTotal.WithLabelValues("no_hospital").Inc()
		return apperrors.NewNotFound("available hospitals", err)
	case errors.Is(err, repository.ErrConflict):
		s.metrics.ReservationsTotal.WithLabelValues("conflict").Inc()
		return apperrors.NewConflict("reservation conflicted, please retry", err)
	case errors.Is(err, repository.ErrInvalid):
		s.metrics.ReservationsTotal.WithLabelValues("invalid").Inc()
		return apperrors.NewBadRequest("reservation rejected by capacity constraints", err)
	default:
		s.metrics.ReservationsTotal.WithLabelValues("error").Inc()
		return apperrors.NewInternal(fmt.Errorf("failed to create emergency request: %w", err))
	}
}

func coordinates(loc *model.LocationInput) (float64, float64, error) {
	if loc == nil || loc.Lat == nil || loc.Lng == nil {
		return 0, 0, fmt.Errorf("location with lat and lng is required")
	}
	if err := validator.Coordinates(*loc.Lat, *loc.Lng); err != nil {
		return 0, 0, err
	}
	return *loc.Lat, *loc.Lng, nil
}
