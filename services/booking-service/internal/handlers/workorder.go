package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/autodiag-garage/platform/services/booking-service/internal/model"
	"github.com/autodiag-garage/platform/services/booking-service/internal/outbox"
	"github.com/autodiag-garage/platform/services/booking-service/internal/reference"
	"github.com/autodiag-garage/platform/services/booking-service/internal/storage"
)

type WorkOrderHandler struct {
	repo   *storage.WorkOrderRepository
	appts  *storage.AppointmentRepository
	cache  *storage.DirectoryCacheRepository
	outbox *outbox.Repository
	refs   *reference.Generator
	logger *slog.Logger
}

func NewWorkOrderHandler(
	repo *storage.WorkOrderRepository,
	appts *storage.AppointmentRepository,
	cache *storage.DirectoryCacheRepository,
	outboxRepo *outbox.Repository,
	logger *slog.Logger,
) *WorkOrderHandler {
	return &WorkOrderHandler{
		repo:   repo,
		appts:  appts,
		cache:  cache,
		outbox: outboxRepo,
		refs:   reference.NewGenerator(reference.WorkOrderPrefix),
		logger: logger,
	}
}

type createWorkOrderRequest struct {
	AppointmentID string `json:"appointment_id"`
}

type workOrderItem struct {
	WorkOrderID     string   `json:"workorder_id"`
	Reference       string   `json:"reference"`
	AppointmentID   string   `json:"appointment_id"`
	ServiceID       string   `json:"service_id,omitempty"`
	TechnicianID    string   `json:"technician_id,omitempty"`
	StartedAt       string   `json:"started_at"`
	EndedAt         string   `json:"ended_at"`
	Status          string   `json:"status"`
	DiagnosticCodes []string `json:"diagnostic_codes,omitempty"`
	Findings        string   `json:"findings,omitempty"`
	Recommendations string   `json:"recommendations,omitempty"`
}

// Create opens a work order for an appointment. Start and end come from the
// appointment's slot, using its own service duration.
func (h *WorkOrderHandler) Create(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req createWorkOrderRequest
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
	appt, err := h.appts.Get(ctx, req.AppointmentID)
	if err != nil {
		if storage.IsNotFound(err) {
			http.Error(w, "appointment not found", http.StatusNotFound)
			return
		}
		http.Error(w, "failed to load appointment", http.StatusInternalServerError)
		return
	}
	if appt.Status != model.StatusConfirmed {
		http.Error(w, "work orders can only be opened for confirmed appointments", http.StatusConflict)
		return
	}

	wo := &model.WorkOrder{
		Reference:     h.refs.New(),
		AppointmentID: appt.ID,
		ServiceID:     appt.ServiceID,
		TechnicianID:  appt.TechnicianID,
		StartedAt:     appt.StartTime,
		EndedAt:       appt.EndTime(),
		Status:        model.WorkOrderInProgress,
	}

	tx, err := h.repo.Begin(ctx)
	if err != nil {
		http.Error(w, "db error", http.StatusInternalServerError)
		return
	}
	defer func() { _ = tx.Rollback(ctx) }()

	id, err := h.repo.Create(ctx, tx, wo)
	if err != nil {
		http.Error(w, "failed to create work order", http.StatusInternalServerError)
		return
	}
	wo.ID = id

	if err := tx.Commit(ctx); err != nil {
		http.Error(w, "failed to commit", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusCreated, toWorkOrderItem(*wo))
}

// List returns the work orders opened for an appointment, newest first.
func (h *WorkOrderHandler) List(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	appointmentID := strings.TrimSpace(r.URL.Query().Get("appointment_id"))
	if appointmentID == "" {
		http.Error(w, "appointment_id is required", http.StatusBadRequest)
		return
	}

	orders, err := h.repo.ListByAppointment(r.Context(), appointmentID)
	if err != nil {
		http.Error(w, "failed to list work orders", http.StatusInternalServerError)
		return
	}

	items := make([]workOrderItem, 0, len(orders))
	for _, wo := range orders {
		items = append(items, toWorkOrderItem(wo))
	}
	writeJSON(w, http.StatusOK, items)
}

type completeWorkOrderRequest struct {
	WorkOrderID     string   `json:"workorder_id"`
	DiagnosticCodes []string `json:"diagnostic_codes"`
	Findings        string   `json:"findings"`
	Recommendations string   `json:"recommendations"`
}

// Complete records the diagnostic outcome and emits the completion event.
func (h *WorkOrderHandler) Complete(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req completeWorkOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	req.WorkOrderID = strings.TrimSpace(req.WorkOrderID)
	if req.WorkOrderID == "" {
		http.Error(w, "workorder_id is required", http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	wo, err := h.repo.Get(ctx, req.WorkOrderID)
	if err != nil {
		if storage.IsNotFound(err) {
			http.Error(w, "work order not found", http.StatusNotFound)
			return
		}
		http.Error(w, "failed to load work order", http.StatusInternalServerError)
		return
	}

	tx, err := h.repo.Begin(ctx)
	if err != nil {
		http.Error(w, "db error", http.StatusInternalServerError)
		return
	}
	defer func() { _ = tx.Rollback(ctx) }()

	done, err := h.repo.Complete(ctx, tx, req.WorkOrderID, req.DiagnosticCodes, strings.TrimSpace(req.Findings), strings.TrimSpace(req.Recommendations))
	if err != nil {
		http.Error(w, "failed to complete work order", http.StatusInternalServerError)
		return
	}
	if !done {
		http.Error(w, "work order already completed", http.StatusConflict)
		return
	}

	payload, err := json.Marshal(map[string]any{
		"workorder_id":   wo.ID,
		"reference":      wo.Reference,
		"appointment_id": wo.AppointmentID,
		"technician_id":  wo.TechnicianID,
		"completed_at":   time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		http.Error(w, "failed to build event payload", http.StatusInternalServerError)
		return
	}
	if err := h.outbox.Insert(ctx, tx, outbox.Event{
		AggregateType: "workorder",
		AggregateID:   wo.ID,
		EventType:     "booking.workorder.completed.v1",
		Payload:       payload,
	}); err != nil {
		http.Error(w, "failed to write outbox event", http.StatusInternalServerError)
		return
	}

	if err := tx.Commit(ctx); err != nil {
		http.Error(w, "failed to commit", http.StatusInternalServerError)
		return
	}

	wo, err = h.repo.Get(ctx, req.WorkOrderID)
	if err != nil {
		http.Error(w, "failed to load work order", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, toWorkOrderItem(wo))
}

// Report assembles the full diagnostic report for a work order: the order
// itself plus the appointment, customer, vehicle, service, and technician
// details. Rendering (PDF or otherwise) is a downstream concern; this
// payload is the report's content.
func (h *WorkOrderHandler) Report(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	id := strings.TrimSpace(r.URL.Query().Get("workorder_id"))
	if id == "" {
		http.Error(w, "workorder_id is required", http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	wo, err := h.repo.Get(ctx, id)
	if err != nil {
		if storage.IsNotFound(err) {
			http.Error(w, "work order not found", http.StatusNotFound)
			return
		}
		http.Error(w, "failed to load work order", http.StatusInternalServerError)
		return
	}

	report := map[string]any{
		"workorder": map[string]any{
			"reference":        wo.Reference,
			"started_at":       wo.StartedAt.UTC().Format(time.RFC3339),
			"ended_at":         wo.EndedAt.UTC().Format(time.RFC3339),
			"status":           wo.Status,
			"diagnostic_codes": wo.DiagnosticCodes,
			"findings":         wo.Findings,
			"recommendations":  wo.Recommendations,
		},
	}

	if appt, err := h.appts.Get(ctx, wo.AppointmentID); err == nil {
		report["appointment"] = map[string]any{
			"reference":  appt.Reference,
			"start_time": appt.StartTime.UTC().Format(time.RFC3339),
			"end_time":   appt.EndTime().UTC().Format(time.RFC3339),
			"address":    appt.Address,
			"city":       appt.City,
		}
		report["customer"] = map[string]any{
			"name":  appt.CustomerName,
			"email": appt.CustomerEmail,
			"phone": appt.CustomerPhone,
		}
		report["vehicle"] = map[string]any{
			"make":         appt.VehicleMake,
			"model":        appt.VehicleModel,
			"registration": appt.VehicleRegistration,
		}
	}

	if wo.ServiceID != "" {
		if st, err := h.cache.GetServiceType(ctx, wo.ServiceID); err == nil {
			report["service"] = map[string]any{
				"name":        st.Name,
				"description": st.Description,
				"price":       st.Price,
			}
		}
	}
	if wo.TechnicianID != "" {
		if tech, err := h.cache.GetTechnician(ctx, wo.TechnicianID); err == nil {
			report["technician"] = map[string]any{
				"name":  strings.TrimSpace(tech.FirstName + " " + tech.LastName),
				"phone": tech.Phone,
			}
		}
	}

	writeJSON(w, http.StatusOK, report)
}

func toWorkOrderItem(wo model.WorkOrder) workOrderItem {
	return workOrderItem{
		WorkOrderID:     wo.ID,
		Reference:       wo.Reference,
		AppointmentID:   wo.AppointmentID,
		ServiceID:       wo.ServiceID,
		TechnicianID:    wo.TechnicianID,
		StartedAt:       wo.StartedAt.UTC().Format(time.RFC3339),
		EndedAt:         wo.EndedAt.UTC().Format(time.RFC3339),
		Status:          wo.Status,
		DiagnosticCodes: wo.DiagnosticCodes,
		Findings:        wo.Findings,
		Recommendations: wo.Recommendations,
	}
}
