package hospital

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medgrid/dispatch-api/internal/model"
	"github.com/medgrid/dispatch-api/internal/repository"
	apperrors "github.com/medgrid/dispatch-api/pkg/errors"
)

type memoryHospitals struct {
	hospitals map[uuid.UUID]*model.Hospital
}

func newMemoryHospitals() *memoryHospitals {
	return &memoryHospitals{hospitals: make(map[uuid.UUID]*model.Hospital)}
}

func (r *memoryHospitals) Create(ctx context.Context, h *model.Hospital) error {
	h.ID = uuid.New()
	h.CreatedAt = time.Now()
	h.UpdatedAt = h.CreatedAt
	copied := *h
	r.hospitals[h.ID] = &copied
	return nil
}

func (r *memoryHospitals) Get(ctx context.Context, id uuid.UUID) (*model.Hospital, error) {
	h, ok := r.hospitals[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	copied := *h
	return &copied, nil
}

func (r *memoryHospitals) List(ctx context.Context) ([]*model.Hospital, error) {
	out := make([]*model.Hospital, 0, len(r.hospitals))
	for _, h := range r.hospitals {
		copied := *h
		out = append(out, &copied)
	}
	return out, nil
}

func (r *memoryHospitals) Update(ctx context.Context, id uuid.UUID, patch *model.UpdateHospitalRequest) (*model.Hospital, error) {
	h, ok := r.hospitals[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	if patch.Name != nil {
		h.Name = *patch.Name
	}
	if patch.AvailableBeds != nil {
		if *patch.AvailableBeds > h.TotalBeds {
			return nil, repository.ErrInvalid
		}
		h.AvailableBeds = *patch.AvailableBeds
	}
	if patch.Specialties != nil {
		h.Specialties = *patch.Specialties
	}
	if patch.Status != nil {
		h.Status = model.HospitalStatus(*patch.Status)
	}
	h.UpdatedAt = time.Now()
	copied := *h
	return &copied, nil
}

func (r *memoryHospitals) ReserveNearest(ctx context.Context, tx *sqlx.Tx, filter repository.ReservationFilter) (*model.Hospital, error) {
	return nil, repository.ErrNoEligibleHospital
}

// channelBroadcaster records broadcast calls; the service fires them on
// goroutines, so assertions read from the channel with a deadline.
type channelBroadcaster struct {
	calls chan string
}

func newChannelBroadcaster() *channelBroadcaster {
	return &channelBroadcaster{calls: make(chan string, 16)}
}

func (b *channelBroadcaster) EmergencyCreated(ctx context.Context, id uuid.UUID) {
	b.calls <- "emergency.created"
}
func (b *channelBroadcaster) EmergencyUpdated(ctx context.Context, id uuid.UUID) {
	b.calls <- "emergency.updated"
}
func (b *channelBroadcaster) HospitalCreated(ctx context.Context, id uuid.UUID) {
	b.calls <- "hospital.created"
}
func (b *channelBroadcaster) HospitalCapacityChanged(ctx context.Context, id uuid.UUID) {
	b.calls <- "hospital.capacity-changed"
}
func (b *channelBroadcaster) HospitalStatusChanged(ctx context.Context, id uuid.UUID, status model.HospitalStatus) {
	b.calls <- "hospital.status-changed"
}

func (b *channelBroadcaster) expect(t *testing.T, topic string) {
	t.Helper()
	select {
	case got := <-b.calls:
		assert.Equal(t, topic, got)
	case <-time.After(time.Second):
		t.Fatalf("expected %s broadcast", topic)
	}
}

// expectAll drains len(topics) broadcasts and compares them as a set; the
// service fires each on its own goroutine, so arrival order is unspecified.
func (b *channelBroadcaster) expectAll(t *testing.T, topics ...string) {
	t.Helper()
	var got []string
	for range topics {
		select {
		case topic := <-b.calls:
			got = append(got, topic)
		case <-time.After(time.Second):
			t.Fatalf("expected broadcasts %v, got %v", topics, got)
		}
	}
	assert.ElementsMatch(t, topics, got)
}

func (b *channelBroadcaster) expectNone(t *testing.T) {
	t.Helper()
	select {
	case got := <-b.calls:
		t.Fatalf("unexpected broadcast %s", got)
	case <-time.After(50 * time.Millisecond):
	}
}

func validCreate() *model.CreateHospitalRequest {
	lat, lng := 49.87, 40.41
	return &model.CreateHospitalRequest{
		Name:           "City General",
		Address:        "1 Hospital Way",
		Phone:          "+1-555-0100",
		OperatingHours: "24/7",
		TotalBeds:      20,
		AvailableBeds:  15,
		TotalICU:       4,
		AvailableICU:   2,
		TotalOR:        3,
		AvailableOR:    1,
		Specialties:    []string{"cardiology"},
		Location:       &model.LocationInput{Lat: &lat, Lng: &lng},
	}
}

func TestCreateHospital(t *testing.T) {
	repo := newMemoryHospitals()
	events := newChannelBroadcaster()
	svc := NewService(repo, events, zerolog.Nop())

	created, err := svc.CreateHospital(context.Background(), validCreate())
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, created.ID)
	assert.Equal(t, model.HospitalStatusAvailable, created.Status, "status defaults to Available")
	assert.Equal(t, 49.87, created.Latitude)
	events.expect(t, "hospital.created")
}

func TestCreateHospitalValidation(t *testing.T) {
	svc := NewService(newMemoryHospitals(), newChannelBroadcaster(), zerolog.Nop())

	cases := []struct {
		name   string
		mutate func(*model.CreateHospitalRequest)
	}{
		{"missing location", func(r *model.CreateHospitalRequest) { r.Location = nil }},
		{"latitude out of range", func(r *model.CreateHospitalRequest) { bad := 120.0; r.Location.Lat = &bad }},
		{"unknown status", func(r *model.CreateHospitalRequest) { r.Status = "Closed" }},
		{"available exceeds total", func(r *model.CreateHospitalRequest) { r.AvailableBeds = 25 }},
		{"icu exceeds total", func(r *model.CreateHospitalRequest) { r.AvailableICU = 10 }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := validCreate()
			tc.mutate(req)
			_, err := svc.CreateHospital(context.Background(), req)
			require.Error(t, err)
			assert.Equal(t, apperrors.CodeBadRequest, apperrors.Code(err))
		})
	}
}

func TestUpdateHospitalBroadcasts(t *testing.T) {
	repo := newMemoryHospitals()
	events := newChannelBroadcaster()
	svc := NewService(repo, events, zerolog.Nop())

	created, err := svc.CreateHospital(context.Background(), validCreate())
	require.NoError(t, err)
	events.expect(t, "hospital.created")

	beds := 10
	updated, err := svc.UpdateHospital(context.Background(), created.ID,
		&model.UpdateHospitalRequest{AvailableBeds: &beds})
	require.NoError(t, err)
	assert.Equal(t, 10, updated.AvailableBeds)
	events.expect(t, "hospital.capacity-changed")
	events.expectNone(t)

	status := string(model.HospitalStatusFull)
	updated, err = svc.UpdateHospital(context.Background(), created.ID,
		&model.UpdateHospitalRequest{Status: &status})
	require.NoError(t, err)
	assert.Equal(t, model.HospitalStatusFull, updated.Status)
	events.expectAll(t, "hospital.capacity-changed", "hospital.status-changed")
	events.expectNone(t)
}

func TestUpdateHospitalNonCapacityPatchStillBroadcasts(t *testing.T) {
	repo := newMemoryHospitals()
	events := newChannelBroadcaster()
	svc := NewService(repo, events, zerolog.Nop())

	created, err := svc.CreateHospital(context.Background(), validCreate())
	require.NoError(t, err)
	events.expect(t, "hospital.created")

	name := "Regional Trauma Center"
	specialties := []string{"trauma", "neurology"}
	updated, err := svc.UpdateHospital(context.Background(), created.ID,
		&model.UpdateHospitalRequest{Name: &name, Specialties: &specialties})
	require.NoError(t, err)
	assert.Equal(t, name, updated.Name)
	assert.Equal(t, specialties, []string(updated.Specialties))

	events.expect(t, "hospital.capacity-changed")
	events.expectNone(t)
}

func TestUpdateHospitalRejectsBadPatches(t *testing.T) {
	repo := newMemoryHospitals()
	events := newChannelBroadcaster()
	svc := NewService(repo, events, zerolog.Nop())

	created, err := svc.CreateHospital(context.Background(), validCreate())
	require.NoError(t, err)
	events.expect(t, "hospital.created")

	_, err = svc.UpdateHospital(context.Background(), created.ID, &model.UpdateHospitalRequest{})
	assert.Equal(t, apperrors.CodeBadRequest, apperrors.Code(err))

	negative := -1
	_, err = svc.UpdateHospital(context.Background(), created.ID,
		&model.UpdateHospitalRequest{AvailableBeds: &negative})
	assert.Equal(t, apperrors.CodeBadRequest, apperrors.Code(err))

	badStatus := "Overrun"
	_, err = svc.UpdateHospital(context.Background(), created.ID,
		&model.UpdateHospitalRequest{Status: &badStatus})
	assert.Equal(t, apperrors.CodeBadRequest, apperrors.Code(err))

	tooMany := 50
	_, err = svc.UpdateHospital(context.Background(), created.ID,
		&model.UpdateHospitalRequest{AvailableBeds: &tooMany})
	assert.Equal(t, apperrors.CodeBadRequest, apperrors.Code(err), "constraint violations map to bad request")

	name := "Renamed"
	_, err = svc.UpdateHospital(context.Background(), uuid.New(),
		&model.UpdateHospitalRequest{Name: &name})
	assert.Equal(t, apperrors.CodeNotFound, apperrors.Code(err))

	events.expectNone(t)
}
