package hospital

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/medgrid/dispatch-api/internal/model"
	"github.com/medgrid/dispatch-api/internal/repository"
	"github.com/medgrid/dispatch-api/internal/service/event"
	apperrors "github.com/medgrid/dispatch-api/pkg/errors"
	"github.com/medgrid/dispatch-api/pkg/validator"
)

// Servicer is the hospital administration contract the HTTP layer depends on.
type Servicer interface {
	CreateHospital(ctx context.Context, req *model.CreateHospitalRequest) (*model.Hospital, error)
	GetHospital(ctx context.Context, id uuid.UUID) (*model.Hospital, error)
	ListHospitals(ctx context.Context) ([]*model.Hospital, error)
	UpdateHospital(ctx context.Context, id uuid.UUID, req *model.UpdateHospitalRequest) (*model.Hospital, error)
}

type Service struct {
	hospitals repository.HospitalRepository
	events    event.Broadcaster
	logger    zerolog.Logger
}

func NewService(hospitals repository.HospitalRepository, events event.Broadcaster, logger zerolog.Logger) *Service {
	return &Service{
		hospitals: hospitals,
		events:    events,
		logger:    logger,
	}
}

func (s *Service) CreateHospital(ctx context.Context, req *model.CreateHospitalRequest) (*model.Hospital, error) {
	hospital, err := buildHospital(req)
	if err != nil {
		return nil, err
	}

	if err := s.hospitals.Create(ctx, hospital); err != nil {
		if errors.Is(err, repository.ErrInvalid) {
			return nil, apperrors.NewBadRequest("hospital rejected by capacity constraints", err)
		}
		return nil, apperrors.NewInternal(fmt.Errorf("failed to create hospital: %w", err))
	}

	s.logger.Info().
		Stringer("hospital_id", hospital.ID).
		Str("name", hospital.Name).
		Msg("hospital registered")

	go s.events.HospitalCreated(ctx, hospital.ID)
	return hospital, nil
}

func (s *Service) GetHospital(ctx context.Context, id uuid.UUID) (*model.Hospital, error) {
	hospital, err := s.hospitals.Get(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperrors.NewNotFound("hospital", err)
	}
	if err != nil {
		return nil, apperrors.NewInternal(fmt.Errorf("failed to get hospital: %w", err))
	}
	return hospital, nil
}

func (s *Service) ListHospitals(ctx context.Context) ([]*model.Hospital, error) {
	hospitals, err := s.hospitals.List(ctx)
	if err != nil {
		return nil, apperrors.NewInternal(fmt.Errorf("failed to list hospitals: %w", err))
	}
	return hospitals, nil
}

// UpdateHospital applies a partial update through the store's conditional
// statement. Every successful patch broadcasts the updated hospital; a patch
// that set status additionally broadcasts the status change.
func (s *Service) UpdateHospital(ctx context.Context, id uuid.UUID, req *model.UpdateHospitalRequest) (*model.Hospital, error) {
	if req.Empty() {
		return nil, apperrors.NewBadRequest("update contains no fields", nil)
	}
	if err := validator.Struct(req); err != nil {
		return nil, apperrors.NewBadRequest(err.Error(), err)
	}
	if req.Status != nil && !model.HospitalStatus(*req.Status).Valid() {
		return nil, apperrors.NewBadRequest(fmt.Sprintf("invalid status: %s", *req.Status), nil)
	}

	hospital, err := s.hospitals.Update(ctx, id, req)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrNotFound):
			return nil, apperrors.NewNotFound("hospital", err)
		case errors.Is(err, repository.ErrInvalid):
			return nil, apperrors.NewBadRequest("update rejected by capacity constraints", err)
		case errors.Is(err, repository.ErrConflict):
			return nil, apperrors.NewConflict("update conflicted, please retry", err)
		default:
			return nil, apperrors.NewInternal(fmt.Errorf("failed to update hospital: %w", err))
		}
	}

	// Every successful patch fans out the updated record, whatever fields it
	// touched: dashboards track names and specialty sets, not just counters.
	go s.events.HospitalCapacityChanged(ctx, id)
	if req.Status != nil {
		go s.events.HospitalStatusChanged(ctx, id, hospital.Status)
	}
	return hospital, nil
}

// buildHospital validates the creation payload before any store interaction.
func buildHospital(req *model.CreateHospitalRequest) (*model.Hospital, error) {
	if req.Location == nil || req.Location.Lat == nil || req.Location.Lng == nil {
		return nil, apperrors.NewBadRequest("location with lat and lng is required", nil)
	}
	if err := validator.Coordinates(*req.Location.Lat, *req.Location.Lng); err != nil {
		return nil, apperrors.NewBadRequest(err.Error(), err)
	}

	status := model.HospitalStatusAvailable
	if req.Status != "" {
		status = model.HospitalStatus(req.Status)
		if !status.Valid() {
			return nil, apperrors.NewBadRequest(fmt.Sprintf("invalid status: %s", req.Status), nil)
		}
	}
	if req.AvailableBeds > req.TotalBeds {
		return nil, apperrors.NewBadRequest("available beds cannot exceed total beds", nil)
	}
	if req.AvailableICU > req.TotalICU {
		return nil, apperrors.NewBadRequest("available ICU units cannot exceed total", nil)
	}
	if req.AvailableOR > req.TotalOR {
		return nil, apperrors.NewBadRequest("available operating rooms cannot exceed total", nil)
	}

	specialties := req.Specialties
	if specialties == nil {
		specialties = []string{}
	}
	return &model.Hospital{
		Name:           req.Name,
		Address:        req.Address,
		Phone:          req.Phone,
		OperatingHours: req.OperatingHours,
		TotalBeds:      req.TotalBeds,
		AvailableBeds:  req.AvailableBeds,
		TotalICU:       req.TotalICU,
		AvailableICU:   req.AvailableICU,
		TotalOR:        req.TotalOR,
		AvailableOR:    req.AvailableOR,
		Specialties:    specialties,
		Status:         status,
		Latitude:       *req.Location.Lat,
		Longitude:      *req.Location.Lng,
	}, nil
}
