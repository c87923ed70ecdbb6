package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/autodiag-garage/platform/services/booking-service/internal/assignment"
	"github.com/autodiag-garage/platform/services/booking-service/internal/availability"
	"github.com/autodiag-garage/platform/services/booking-service/internal/directory"
	"github.com/autodiag-garage/platform/services/booking-service/internal/model"
	"github.com/autodiag-garage/platform/services/booking-service/internal/outbox"
	"github.com/autodiag-garage/platform/services/booking-service/internal/policy"
	"github.com/autodiag-garage/platform/services/booking-service/internal/reference"
	"github.com/autodiag-garage/platform/services/booking-service/internal/storage"
)

// Config carries the per-deployment booking rules. Everything here used to
// be a hard-coded constant; it is injected so tests and deployments can tune
// the windows without touching the components.
type Config struct {
	CreationBuffer policy.Window
	WorkingWindow  availability.WorkingWindow
	Location       *time.Location
}

// AppointmentStore is the slice of the appointment storage layer the booking
// handlers use. *storage.AppointmentRepository satisfies it.
type AppointmentStore interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Create(ctx context.Context, tx pgx.Tx, appt *model.Appointment) (string, error)
	Get(ctx context.Context, id string) (model.Appointment, error)
	GetForUpdate(ctx context.Context, tx pgx.Tx, id string) (model.Appointment, error)
	Cancel(ctx context.Context, tx pgx.Tx, id, reason string) (time.Time, error)
	List(ctx context.Context, limit int) ([]model.Appointment, error)
	CountActiveStartingBetween(ctx context.Context, from, to time.Time) (int, error)
	ListActiveBetween(ctx context.Context, from, to time.Time) ([]model.Appointment, error)
}

type BookingHandler struct {
	repo     AppointmentStore
	cache    *storage.DirectoryCacheRepository
	dir      directory.Provider
	resolver *assignment.Resolver
	outbox   *outbox.Repository
	refs     *reference.Generator
	logger   *slog.Logger
	cfg      Config
}

func NewBookingHandler(
	repo AppointmentStore,
	cache *storage.DirectoryCacheRepository,
	dir directory.Provider,
	resolver *assignment.Resolver,
	outboxRepo *outbox.Repository,
	logger *slog.Logger,
	cfg Config,
) *BookingHandler {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	return &BookingHandler{
		repo:     repo,
		cache:    cache,
		dir:      dir,
		resolver: resolver,
		outbox:   outboxRepo,
		refs:     reference.NewGenerator(reference.AppointmentPrefix),
		logger:   logger,
		cfg:      cfg,
	}
}

type createAppointmentRequest struct {
	ServiceID           string `json:"service_id"`
	CustomerName        string `json:"customer_name"`
	CustomerEmail       string `json:"customer_email"`
	CustomerPhone       string `json:"customer_phone"`
	VehicleMake         string `json:"vehicle_make"`
	VehicleModel        string `json:"vehicle_model"`
	VehicleRegistration string `json:"vehicle_registration"`
	Address             string `json:"address"`
	City                string `json:"city"`
	PostalCode          string `json:"postal_code"`
	StartTime           string `json:"start_time"`
}

type createAppointmentResponse struct {
	AppointmentID string `json:"appointment_id"`
	Reference     string `json:"reference"`
	Status        string `json:"status"`
}

type appointmentItem struct {
	AppointmentID string `json:"appointment_id"`
	Reference     string `json:"reference"`
	ServiceID     string `json:"service_id,omitempty"`
	TechnicianID  string `json:"technician_id,omitempty"`
	CustomerName  string `json:"customer_name"`
	StartTime     string `json:"start_time"`
	EndTime       string `json:"end_time"`
	Status        string `json:"status"`
	CancelledAt   string `json:"cancelled_at,omitempty"`
	CreatedAt     string `json:"created_at"`
}

type slotItem struct {
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
}

// Create books a new appointment. The start time must be strictly in the
// future (any positive delta is valid), and no active appointment may start
// inside the creation conflict buffer.
func (h *BookingHandler) Create(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req createAppointmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}

	req.ServiceID = strings.TrimSpace(req.ServiceID)
	req.CustomerName = strings.TrimSpace(req.CustomerName)
	if req.CustomerName == "" {
		http.Error(w, "customer_name is required", http.StatusBadRequest)
		return
	}

	startTime, err := time.Parse(time.RFC3339, req.StartTime)
	if err != nil {
		http.Error(w, "invalid start_time", http.StatusBadRequest)
		return
	}
	if !startTime.After(time.Now()) {
		http.Error(w, "appointment start time must be in the future", http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	durationMins, err := h.resolveServiceDuration(ctx, req.ServiceID)
	if err != nil {
		http.Error(w, "failed to resolve service duration", http.StatusInternalServerError)
		return
	}

	// Creation-time conflict rule: any active appointment starting inside
	// the buffer blocks the slot. This is a distinct, coarser policy than
	// the slot-search overlap test.
	from, to := h.cfg.CreationBuffer.Around(startTime)
	conflicts, err := h.repo.CountActiveStartingBetween(ctx, from, to)
	if err != nil {
		http.Error(w, "failed to check slot availability", http.StatusInternalServerError)
		return
	}
	if conflicts > 0 {
		http.Error(w, "this slot is not available, please pick another time", http.StatusConflict)
		return
	}

	appt := &model.Appointment{
		Reference:           h.refs.New(),
		ServiceID:           req.ServiceID,
		CustomerName:        req.CustomerName,
		CustomerEmail:       strings.TrimSpace(req.CustomerEmail),
		CustomerPhone:       strings.TrimSpace(req.CustomerPhone),
		VehicleMake:         strings.TrimSpace(req.VehicleMake),
		VehicleModel:        strings.TrimSpace(req.VehicleModel),
		VehicleRegistration: strings.TrimSpace(req.VehicleRegistration),
		Address:             strings.TrimSpace(req.Address),
		City:                strings.TrimSpace(req.City),
		PostalCode:          strings.TrimSpace(req.PostalCode),
		StartTime:           startTime,
		DurationMinutes:     durationMins,
		Status:              model.StatusRequested,
	}

	tx, err := h.repo.Begin(ctx)
	if err != nil {
		http.Error(w, "db error", http.StatusInternalServerError)
		return
	}
	defer func() { _ = tx.Rollback(ctx) }()

	id, err := h.repo.Create(ctx, tx, appt)
	if err != nil {
		http.Error(w, "failed to create appointment", http.StatusInternalServerError)
		return
	}
	appt.ID = id

	if err := h.insertAppointmentEvent(ctx, tx, "booking.appointment.requested.v1", appt); err != nil {
		http.Error(w, "failed to write outbox event", http.StatusInternalServerError)
		return
	}

	if err := tx.Commit(ctx); err != nil {
		http.Error(w, "failed to commit", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusCreated, createAppointmentResponse{
		AppointmentID: id,
		Reference:     appt.Reference,
		Status:        appt.Status,
	})
}

// Slots returns the free slots of a calendar day for a service. Candidates
// step through the working window by the service duration; any candidate
// overlapping an active appointment's occupied interval is filtered out.
func (h *BookingHandler) Slots(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	dateStr := strings.TrimSpace(r.URL.Query().Get("date"))
	serviceID := strings.TrimSpace(r.URL.Query().Get("service_id"))
	if dateStr == "" {
		http.Error(w, "date is required", http.StatusBadRequest)
		return
	}
	day, err := time.ParseInLocation("2006-01-02", dateStr, h.cfg.Location)
	if err != nil {
		http.Error(w, "invalid date", http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	durationMins, err := h.resolveServiceDuration(ctx, serviceID)
	if err != nil {
		http.Error(w, "failed to resolve service duration", http.StatusInternalServerError)
		return
	}

	window := h.cfg.WorkingWindow.ForDay(day, h.cfg.Location)
	appts, err := h.repo.ListActiveBetween(ctx, window.Start, window.End)
	if err != nil {
		http.Error(w, "failed to load appointments", http.StatusInternalServerError)
		return
	}

	busy := make([]availability.Interval, 0, len(appts))
	for _, a := range appts {
		busy = append(busy, availability.Interval{Start: a.StartTime, End: a.EndTime()})
	}

	slots := availability.Slots(window, time.Duration(durationMins)*time.Minute, busy)
	resp := make([]slotItem, 0, len(slots))
	for _, s := range slots {
		resp = append(resp, slotItem{
			StartTime: s.Start.UTC().Format(time.RFC3339),
			EndTime:   s.End.UTC().Format(time.RFC3339),
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

type assignRequest struct {
	AppointmentID string `json:"appointment_id"`
}

type assignResponse struct {
	AppointmentID  string `json:"appointment_id"`
	TechnicianID   string `json:"technician_id"`
	TechnicianName string `json:"technician_name"`
	Status         string `json:"status"`
}

// Assign picks an available technician for the appointment and confirms it.
func (h *BookingHandler) Assign(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req assignRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	req.AppointmentID = strings.TrimSpace(req.AppointmentID)
	if req.AppointmentID == "" {
		http.Error(w, "appointment_id is required", http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	result, err := h.resolver.Resolve(ctx, req.AppointmentID)
	if err != nil {
		switch {
		case errors.Is(err, assignment.ErrNotFound):
			http.Error(w, "appointment not found", http.StatusNotFound)
		case errors.Is(err, assignment.ErrAlreadyAssigned):
			http.Error(w, "a technician is already assigned to this appointment", http.StatusConflict)
		case errors.Is(err, assignment.ErrNoTechnicianAvailable):
			http.Error(w, "no technician is available for this slot", http.StatusConflict)
		case errors.Is(err, assignment.ErrTechnicianConflict):
			http.Error(w, "technician was booked concurrently, retry assignment", http.StatusConflict)
		default:
			http.Error(w, "failed to assign technician", http.StatusInternalServerError)
		}
		return
	}

	if err := h.emitConfirmedEvent(ctx, result.AppointmentID); err != nil {
		h.logger.Error("failed to emit confirmation event", "err", err, "appointment_id", result.AppointmentID)
	}

	writeJSON(w, http.StatusOK, assignResponse{
		AppointmentID:  result.AppointmentID,
		TechnicianID:   result.Technician.ID,
		TechnicianName: strings.TrimSpace(result.Technician.FirstName + " " + result.Technician.LastName),
		Status:         result.Status,
	})
}

type cancelRequest struct {
	AppointmentID string `json:"appointment_id"`
	Reason        string `json:"reason"`
}

type cancelResponse struct {
	AppointmentID string `json:"appointment_id"`
	Status        string `json:"status"`
	CancelledAt   string `json:"cancelled_at"`
}

// Cancel transitions the appointment to cancelled. Appointments are never
// deleted; cancelling an already-cancelled appointment is idempotent.
func (h *BookingHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req cancelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	req.AppointmentID = strings.TrimSpace(req.AppointmentID)
	req.Reason = strings.TrimSpace(req.Reason)
	if req.AppointmentID == "" {
		http.Error(w, "appointment_id is required", http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	tx, err := h.repo.Begin(ctx)
	if err != nil {
		http.Error(w, "db error", http.StatusInternalServerError)
		return
	}
	defer func() { _ = tx.Rollback(ctx) }()

	appt, err := h.repo.GetForUpdate(ctx, tx, req.AppointmentID)
	if err != nil {
		if storage.IsNotFound(err) {
			http.Error(w, "appointment not found", http.StatusNotFound)
			return
		}
		http.Error(w, "failed to load appointment", http.StatusInternalServerError)
		return
	}

	if appt.Status == model.StatusCancelled && appt.CancelledAt != nil {
		writeJSON(w, http.StatusOK, cancelResponse{
			AppointmentID: appt.ID,
			Status:        model.StatusCancelled,
			CancelledAt:   appt.CancelledAt.UTC().Format(time.RFC3339),
		})
		return
	}
	if appt.Status == model.StatusCompleted {
		http.Error(w, "completed appointments cannot be cancelled", http.StatusConflict)
		return
	}

	cancelledAt, err := h.repo.Cancel(ctx, tx, appt.ID, req.Reason)
	if err != nil {
		http.Error(w, "failed to cancel appointment", http.StatusInternalServerError)
		return
	}

	appt.Status = model.StatusCancelled
	appt.CancelledAt = &cancelledAt
	appt.CancelReason = req.Reason
	if err := h.insertAppointmentEvent(ctx, tx, "booking.appointment.cancelled.v1", &appt); err != nil {
		http.Error(w, "failed to write outbox event", http.StatusInternalServerError)
		return
	}

	if err := tx.Commit(ctx); err != nil {
		http.Error(w, "failed to commit", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, cancelResponse{
		AppointmentID: appt.ID,
		Status:        model.StatusCancelled,
		CancelledAt:   cancelledAt.UTC().Format(time.RFC3339),
	})
}

func (h *BookingHandler) List(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	limit := 50
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 && n <= 200 {
			limit = n
		}
	}

	appts, err := h.repo.List(r.Context(), limit)
	if err != nil {
		http.Error(w, "failed to list appointments", http.StatusInternalServerError)
		return
	}

	items := make([]appointmentItem, 0, len(appts))
	for _, appt := range appts {
		items = append(items, toAppointmentItem(appt))
	}
	writeJSON(w, http.StatusOK, items)
}

func (h *BookingHandler) Detail(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	id := strings.TrimSpace(r.URL.Query().Get("appointment_id"))
	if id == "" {
		http.Error(w, "appointment_id is required", http.StatusBadRequest)
		return
	}

	appt, err := h.repo.Get(r.Context(), id)
	if err != nil {
		if storage.IsNotFound(err) {
			http.Error(w, "appointment not found", http.StatusNotFound)
			return
		}
		http.Error(w, "failed to load appointment", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, toAppointmentItem(appt))
}

// resolveServiceDuration prefers the synchronous directory provider when
// compiled in, and falls back to the local cache. Unknown services use the
// default duration rather than failing the request.
func (h *BookingHandler) resolveServiceDuration(ctx context.Context, serviceID string) (int, error) {
	if serviceID == "" {
		return model.DefaultDurationMinutes, nil
	}
	if h.dir != nil {
		reqCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		st, err := h.dir.GetServiceType(reqCtx, serviceID)
		cancel()
		if err == nil {
			if st.DurationMinutes > 0 {
				return st.DurationMinutes, nil
			}
			return model.DefaultDurationMinutes, nil
		}
		h.logger.Warn("directory lookup failed; using local cache", "err", err)
	}
	return h.cache.ServiceDuration(ctx, serviceID)
}

func (h *BookingHandler) insertAppointmentEvent(ctx context.Context, tx pgx.Tx, eventType string, appt *model.Appointment) error {
	payload, err := json.Marshal(map[string]any{
		"appointment_id": appt.ID,
		"reference":      appt.Reference,
		"service_id":     appt.ServiceID,
		"technician_id":  appt.TechnicianID,
		"customer_name":  appt.CustomerName,
		"customer_email": appt.CustomerEmail,
		"customer_phone": appt.CustomerPhone,
		"start_time":     appt.StartTime.UTC().Format(time.RFC3339),
		"end_time":       appt.EndTime().UTC().Format(time.RFC3339),
		"status":         appt.Status,
	})
	if err != nil {
		return err
	}
	return h.outbox.Insert(ctx, tx, outbox.Event{
		AggregateType: "appointment",
		AggregateID:   appt.ID,
		EventType:     eventType,
		Payload:       payload,
	})
}

func (h *BookingHandler) emitConfirmedEvent(ctx context.Context, appointmentID string) error {
	appt, err := h.repo.Get(ctx, appointmentID)
	if err != nil {
		return err
	}
	tx, err := h.repo.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()
	if err := h.insertAppointmentEvent(ctx, tx, "booking.appointment.confirmed.v1", &appt); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func toAppointmentItem(appt model.Appointment) appointmentItem {
	item := appointmentItem{
		AppointmentID: appt.ID,
		Reference:     appt.Reference,
		ServiceID:     appt.ServiceID,
		TechnicianID:  appt.TechnicianID,
		CustomerName:  appt.CustomerName,
		StartTime:     appt.StartTime.UTC().Format(time.RFC3339),
		EndTime:       appt.EndTime().UTC().Format(time.RFC3339),
		Status:        appt.Status,
		CreatedAt:     appt.CreatedAt.UTC().Format(time.RFC3339),
	}
	if appt.CancelledAt != nil {
		item.CancelledAt = appt.CancelledAt.UTC().Format(time.RFC3339)
	}
	return item
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		http.Error(w, "failed to build response", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}
