package assignment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/autodiag-garage/platform/services/booking-service/internal/model"
	"github.com/autodiag-garage/platform/services/booking-service/internal/policy"
)

// Terminal, non-retryable outcomes reported to the caller.
var (
	ErrNotFound              = errors.New("appointment not found")
	ErrAlreadyAssigned       = errors.New("appointment already has a technician")
	ErrNoTechnicianAvailable = errors.New("no technician available for this slot")
	// ErrTechnicianConflict surfaces when a concurrent assignment won the
	// storage-level exclusion check between our read and our write.
	ErrTechnicianConflict = errors.New("technician was booked concurrently")
)

// Store is the appointment persistence surface the resolver needs.
type Store interface {
	GetAppointment(ctx context.Context, id string) (model.Appointment, error)
	// CommittedTechnicians returns the technician ids of active appointments
	// other than excludeID whose start time falls within [from, to].
	CommittedTechnicians(ctx context.Context, from, to time.Time, excludeID string) ([]string, error)
	// Assign persists the technician and transitions the appointment to
	// confirmed. It must fail if the appointment gained a technician in the
	// meantime, and report storage exclusion-constraint violations distinctly.
	Assign(ctx context.Context, appointmentID, technicianID string) error
}

// Pool lists technicians generally eligible for work (available flag set),
// in a stable order.
type Pool interface {
	AvailableTechnicians(ctx context.Context) ([]model.Technician, error)
}

// Selector picks one technician from the remaining candidates. Kept behind
// an interface so a ranking strategy (skill match, proximity, load) can be
// swapped in without touching the conflict logic.
type Selector interface {
	Select(candidates []model.Technician) (model.Technician, bool)
}

// FirstFit takes the first candidate in pool order, with no further
// optimization.
type FirstFit struct{}

func (FirstFit) Select(candidates []model.Technician) (model.Technician, bool) {
	if len(candidates) == 0 {
		return model.Technician{}, false
	}
	return candidates[0], true
}

type Resolver struct {
	store    Store
	pool     Pool
	window   policy.Window
	selector Selector
	logger   *slog.Logger
}

func NewResolver(store Store, pool Pool, window policy.Window, selector Selector, logger *slog.Logger) *Resolver {
	if selector == nil {
		selector = FirstFit{}
	}
	return &Resolver{
		store:    store,
		pool:     pool,
		window:   window,
		selector: selector,
		logger:   logger,
	}
}

// Assignment is the successful outcome of Resolve.
type Assignment struct {
	AppointmentID string
	Technician    model.Technician
	Status        string
}

// Resolve picks an available technician for the appointment and confirms it.
//
// The conflict window is a fixed buffer around the appointment's start time,
// matched against other appointments' start times only; this is coarser than
// the slot-search overlap test and intentionally so.
func (r *Resolver) Resolve(ctx context.Context, appointmentID string) (Assignment, error) {
	appt, err := r.store.GetAppointment(ctx, appointmentID)
	if err != nil {
		return Assignment{}, err
	}
	if appt.TechnicianID != "" {
		return Assignment{}, ErrAlreadyAssigned
	}

	pool, err := r.pool.AvailableTechnicians(ctx)
	if err != nil {
		return Assignment{}, fmt.Errorf("load technician pool: %w", err)
	}

	from, to := r.window.Around(appt.StartTime)
	committed, err := r.store.CommittedTechnicians(ctx, from, to, appt.ID)
	if err != nil {
		return Assignment{}, fmt.Errorf("load committed technicians: %w", err)
	}

	busy := make(map[string]struct{}, len(committed))
	for _, id := range committed {
		busy[id] = struct{}{}
	}

	candidates := make([]model.Technician, 0, len(pool))
	for _, tech := range pool {
		if _, taken := busy[tech.ID]; !taken {
			candidates = append(candidates, tech)
		}
	}

	selected, ok := r.selector.Select(candidates)
	if !ok {
		return Assignment{}, ErrNoTechnicianAvailable
	}

	if err := r.store.Assign(ctx, appt.ID, selected.ID); err != nil {
		return Assignment{}, err
	}

	if r.logger != nil {
		r.logger.Info("technician assigned",
			"appointment_id", appt.ID,
			"technician_id", selected.ID,
		)
	}
	return Assignment{
		AppointmentID: appt.ID,
		Technician:    selected,
		Status:        model.StatusConfirmed,
	}, nil
}
