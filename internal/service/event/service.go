package event

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/medgrid/dispatch-api/internal/model"
	"github.com/medgrid/dispatch-api/internal/repository"
	"github.com/medgrid/dispatch-api/pkg/messaging"
	"github.com/medgrid/dispatch-api/pkg/metrics"
)

// Broadcast topics. Subscribers receive the committed record, re-read from
// the store immediately before emission.
const (
	TopicEmergencyCreated       = "emergency.created"
	TopicEmergencyUpdated       = "emergency.updated"
	TopicHospitalCreated        = "hospital.created"
	TopicHospitalCapacityChange = "hospital.capacity-changed"
	TopicHospitalStatusChange   = "hospital.status-changed"
)

// Topics lists every broadcast channel, in the order the stream transport
// subscribes to them.
var Topics = []string{
	TopicEmergencyCreated,
	TopicEmergencyUpdated,
	TopicHospitalCreated,
	TopicHospitalCapacityChange,
	TopicHospitalStatusChange,
}

// Broadcaster is the post-commit notification dependency injected into the
// dispatch and hospital services. Implementations never propagate failure to
// the caller: a request that committed has succeeded regardless of whether
// anyone heard about it.
type Broadcaster interface {
	EmergencyCreated(ctx context.Context, id uuid.UUID)
	EmergencyUpdated(ctx context.Context, id uuid.UUID)
	HospitalCreated(ctx context.Context, id uuid.UUID)
	HospitalCapacityChanged(ctx context.Context, id uuid.UUID)
	HospitalStatusChanged(ctx context.Context, id uuid.UUID, status model.HospitalStatus)
}

// StatusChangePayload is the hospital.status-changed wire shape.
type StatusChangePayload struct {
	HospitalID uuid.UUID            `json:"hospitalId"`
	Status     model.HospitalStatus `json:"status"`
	Hospital   *model.Hospital      `json:"hospital"`
}

type Service struct {
	broker      messaging.Broker
	hospitals   repository.HospitalRepository
	emergencies repository.EmergencyRepository
	metrics     *metrics.Metrics
	logger      zerolog.Logger
	timeout     time.Duration
}

func NewService(
	broker messaging.Broker,
	hospitals repository.HospitalRepository,
	emergencies repository.EmergencyRepository,
	m *metrics.Metrics,
	logger zerolog.Logger,
) *Service {
	return &Service{
		broker:      broker,
		hospitals:   hospitals,
		emergencies: emergencies,
		metrics:     m,
		logger:      logger,
		timeout:     5 * time.Second,
	}
}

func (s *Service) EmergencyCreated(ctx context.Context, id uuid.UUID) {
	s.publishEmergency(ctx, TopicEmergencyCreated, id)
}

func (s *Service) EmergencyUpdated(ctx context.Context, id uuid.UUID) {
	s.publishEmergency(ctx, TopicEmergencyUpdated, id)
}

func (s *Service) HospitalCreated(ctx context.Context, id uuid.UUID) {
	s.publishHospital(ctx, TopicHospitalCreated, id)
}

func (s *Service) HospitalCapacityChanged(ctx context.Context, id uuid.UUID) {
	s.publishHospital(ctx, TopicHospitalCapacityChange, id)
}

func (s *Service) HospitalStatusChanged(ctx context.Context, id uuid.UUID, status model.HospitalStatus) {
	ctx, cancel := s.bound(ctx)
	defer cancel()

	hospital, err := s.hospitals.Get(ctx, id)
	if err != nil {
		s.dropped(TopicHospitalStatusChange, id, err)
		return
	}

	payload := StatusChangePayload{HospitalID: id, Status: status, Hospital: hospital}
	if err := s.broker.Publish(ctx, TopicHospitalStatusChange, payload); err != nil {
		s.dropped(TopicHospitalStatusChange, id, err)
		return
	}
	s.metrics.EventsPublished.WithLabelValues(TopicHospitalStatusChange).Inc()
}

// publishEmergency re-reads the canonical, hospital-populated record so
// subscribers see committed state rather than an in-memory snapshot.
func (s *Service) publishEmergency(ctx context.Context, topic string, id uuid.UUID) {
	ctx, cancel := s.bound(ctx)
	defer cancel()

	emergency, err := s.emergencies.Get(ctx, id)
	if err != nil {
		s.dropped(topic, id, err)
		return
	}

	if err := s.broker.Publish(ctx, topic, emergency); err != nil {
		s.dropped(topic, id, err)
		return
	}
	s.metrics.EventsPublished.WithLabelValues(topic).Inc()
}

func (s *Service) publishHospital(ctx context.Context, topic string, id uuid.UUID) {
	ctx, cancel := s.bound(ctx)
	defer cancel()

	hospital, err := s.hospitals.Get(ctx, id)
	if err != nil {
		s.dropped(topic, id, err)
		return
	}

	if err := s.broker.Publish(ctx, topic, hospital); err != nil {
		s.dropped(topic, id, err)
		return
	}
	s.metrics.EventsPublished.WithLabelValues(topic).Inc()
}

// bound detaches the publish from the request lifetime: the response may
// already be on the wire when this runs.
func (s *Service) bound(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), s.timeout)
}

func (s *Service) dropped(topic string, id uuid.UUID, err error) {
	s.metrics.EventsFailed.Inc()
	s.logger.Error().Err(err).Str("topic", topic).Stringer("id", id).Msg("dropping broadcast event")
}
