package assignment

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/autodiag-garage/platform/services/booking-service/internal/model"
	"github.com/autodiag-garage/platform/services/booking-service/internal/policy"
)

type fakeStore struct {
	appointments map[string]model.Appointment
	committed    []string
	assigned     map[string]string
	assignErr    error

	gotFrom, gotTo time.Time
	gotExclude     string
}

func (s *fakeStore) GetAppointment(_ context.Context, id string) (model.Appointment, error) {
	appt, ok := s.appointments[id]
	if !ok {
		return model.Appointment{}, ErrNotFound
	}
	return appt, nil
}

func (s *fakeStore) CommittedTechnicians(_ context.Context, from, to time.Time, excludeID string) ([]string, error) {
	s.gotFrom, s.gotTo, s.gotExclude = from, to, excludeID
	return s.committed, nil
}

func (s *fakeStore) Assign(_ context.Context, appointmentID, technicianID string) error {
	if s.assignErr != nil {
		return s.assignErr
	}
	if s.assigned == nil {
		s.assigned = map[string]string{}
	}
	s.assigned[appointmentID] = technicianID
	return nil
}

type fakePool struct {
	technicians []model.Technician
}

func (p *fakePool) AvailableTechnicians(_ context.Context) ([]model.Technician, error) {
	return p.technicians, nil
}

func newTestResolver(store *fakeStore, pool *fakePool) *Resolver {
	return NewResolver(store, pool, policy.AssignmentWindow(0), FirstFit{}, nil)
}

func TestResolve_SkipsCommittedTechnician(t *testing.T) {
	start := time.Date(2026, 3, 12, 14, 0, 0, 0, time.UTC)
	store := &fakeStore{
		appointments: map[string]model.Appointment{
			"a1": {ID: "a1", StartTime: start, Status: model.StatusRequested},
		},
		committed: []string{"t1"}, // T1 has a booking inside the +/-2h window
	}
	pool := &fakePool{technicians: []model.Technician{
		{ID: "t1", Available: true},
		{ID: "t2", Available: true},
	}}

	got, err := newTestResolver(store, pool).Resolve(context.Background(), "a1")
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if got.Technician.ID != "t2" {
		t.Fatalf("expected t2, got %s", got.Technician.ID)
	}
	if got.Status != model.StatusConfirmed {
		t.Fatalf("expected confirmed status, got %s", got.Status)
	}
	if store.assigned["a1"] != "t2" {
		t.Fatalf("expected t2 persisted, got %q", store.assigned["a1"])
	}
}

func TestResolve_ConflictWindowIsPlusMinusTwoHours(t *testing.T) {
	start := time.Date(2026, 3, 12, 14, 0, 0, 0, time.UTC)
	store := &fakeStore{
		appointments: map[string]model.Appointment{
			"a1": {ID: "a1", StartTime: start},
		},
	}
	pool := &fakePool{technicians: []model.Technician{{ID: "t1", Available: true}}}

	if _, err := newTestResolver(store, pool).Resolve(context.Background(), "a1"); err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if !store.gotFrom.Equal(start.Add(-2*time.Hour)) || !store.gotTo.Equal(start.Add(2*time.Hour)) {
		t.Fatalf("expected +/-2h window, got %s..%s", store.gotFrom, store.gotTo)
	}
	if store.gotExclude != "a1" {
		t.Fatalf("expected target appointment excluded, got %q", store.gotExclude)
	}
}

func TestResolve_FirstFitTakesPoolOrder(t *testing.T) {
	store := &fakeStore{
		appointments: map[string]model.Appointment{
			"a1": {ID: "a1", StartTime: time.Now().Add(24 * time.Hour)},
		},
	}
	pool := &fakePool{technicians: []model.Technician{
		{ID: "t3", Available: true},
		{ID: "t1", Available: true},
		{ID: "t2", Available: true},
	}}

	got, err := newTestResolver(store, pool).Resolve(context.Background(), "a1")
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if got.Technician.ID != "t3" {
		t.Fatalf("first-fit should take pool order; expected t3, got %s", got.Technician.ID)
	}
}

func TestResolve_EmptyPool(t *testing.T) {
	store := &fakeStore{
		appointments: map[string]model.Appointment{
			"a1": {ID: "a1", StartTime: time.Now().Add(24 * time.Hour), Status: model.StatusRequested},
		},
	}
	pool := &fakePool{}

	_, err := newTestResolver(store, pool).Resolve(context.Background(), "a1")
	if !errors.Is(err, ErrNoTechnicianAvailable) {
		t.Fatalf("expected ErrNoTechnicianAvailable, got %v", err)
	}
	if len(store.assigned) != 0 {
		t.Fatal("no assignment must be persisted when the pool is empty")
	}
}

func TestResolve_AllTechniciansCommitted(t *testing.T) {
	store := &fakeStore{
		appointments: map[string]model.Appointment{
			"a1": {ID: "a1", StartTime: time.Now().Add(24 * time.Hour)},
		},
		committed: []string{"t1", "t2"},
	}
	pool := &fakePool{technicians: []model.Technician{
		{ID: "t1", Available: true},
		{ID: "t2", Available: true},
	}}

	_, err := newTestResolver(store, pool).Resolve(context.Background(), "a1")
	if !errors.Is(err, ErrNoTechnicianAvailable) {
		t.Fatalf("expected ErrNoTechnicianAvailable, got %v", err)
	}
}

func TestResolve_AlreadyAssigned(t *testing.T) {
	store := &fakeStore{
		appointments: map[string]model.Appointment{
			"a1": {ID: "a1", TechnicianID: "t9", StartTime: time.Now().Add(24 * time.Hour)},
		},
	}
	pool := &fakePool{technicians: []model.Technician{{ID: "t1", Available: true}}}

	_, err := newTestResolver(store, pool).Resolve(context.Background(), "a1")
	if !errors.Is(err, ErrAlreadyAssigned) {
		t.Fatalf("expected ErrAlreadyAssigned, got %v", err)
	}
	if len(store.assigned) != 0 {
		t.Fatal("existing technician must not be overwritten")
	}
}

func TestResolve_NotFound(t *testing.T) {
	store := &fakeStore{appointments: map[string]model.Appointment{}}
	pool := &fakePool{}

	_, err := newTestResolver(store, pool).Resolve(context.Background(), "missing")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestResolve_ConcurrentConflictSurfaces(t *testing.T) {
	store := &fakeStore{
		appointments: map[string]model.Appointment{
			"a1": {ID: "a1", StartTime: time.Now().Add(24 * time.Hour)},
		},
		assignErr: ErrTechnicianConflict,
	}
	pool := &fakePool{technicians: []model.Technician{{ID: "t1", Available: true}}}

	_, err := newTestResolver(store, pool).Resolve(context.Background(), "a1")
	if !errors.Is(err, ErrTechnicianConflict) {
		t.Fatalf("expected ErrTechnicianConflict, got %v", err)
	}
}
