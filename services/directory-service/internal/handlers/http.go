package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/autodiag-garage/platform/services/directory-service/internal/outbox"
	"github.com/autodiag-garage/platform/services/directory-service/internal/storage"
)

type Handler struct {
	repo   *storage.Repository
	outbox *outbox.Repository
	logger *slog.Logger
}

func New(repo *storage.Repository, outboxRepo *outbox.Repository, logger *slog.Logger) *Handler {
	return &Handler{repo: repo, outbox: outboxRepo, logger: logger}
}

type serviceTypeRequest struct {
	ID              string  `json:"id"`
	Name            string  `json:"name"`
	Description     string  `json:"description"`
	DurationMinutes int     `json:"duration_minutes"`
	Price           float64 `json:"price"`
}

func serviceTypeItem(st storage.ServiceType) map[string]any {
	return map[string]any{
		"id":               st.ID,
		"name":             st.Name,
		"description":      st.Description,
		"duration_minutes": st.DurationMinutes,
		"price":            st.Price,
	}
}

// CreateServiceType adds a catalog entry. The upsert event rides in the same
// transaction so downstream caches never see a service the event missed.
func (h *Handler) CreateServiceType(w http.ResponseWriter, r *http.Request) {
	var req serviceTypeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	req.Description = strings.TrimSpace(req.Description)
	if req.Name == "" || req.DurationMinutes <= 0 {
		http.Error(w, "name and duration_minutes required", http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	tx, err := h.repo.Begin(ctx)
	if err != nil {
		http.Error(w, "db error", http.StatusInternalServerError)
		return
	}
	defer func() { _ = tx.Rollback(ctx) }()

	id, err := h.repo.CreateServiceType(ctx, tx, req.Name, req.Description, req.DurationMinutes, req.Price)
	if err != nil {
		if storage.IsDuplicate(err) {
			http.Error(w, "service type already exists", http.StatusConflict)
			return
		}
		http.Error(w, "failed to create service type", http.StatusInternalServerError)
		return
	}

	if err := h.insertServiceEvent(r, tx, id, req); err != nil {
		http.Error(w, "failed to write outbox event", http.StatusInternalServerError)
		return
	}
	if err := tx.Commit(ctx); err != nil {
		http.Error(w, "failed to commit", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{"id": id})
}

func (h *Handler) UpdateServiceType(w http.ResponseWriter, r *http.Request) {
	var req serviceTypeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	req.ID = strings.TrimSpace(req.ID)
	req.Name = strings.TrimSpace(req.Name)
	req.Description = strings.TrimSpace(req.Description)
	if req.ID == "" || req.Name == "" || req.DurationMinutes <= 0 {
		http.Error(w, "id, name and duration_minutes required", http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	tx, err := h.repo.Begin(ctx)
	if err != nil {
		http.Error(w, "db error", http.StatusInternalServerError)
		return
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := h.repo.UpdateServiceType(ctx, tx, req.ID, req.Name, req.Description, req.DurationMinutes, req.Price); err != nil {
		if err == pgx.ErrNoRows {
			http.Error(w, "service type not found", http.StatusNotFound)
			return
		}
		http.Error(w, "failed to update service type", http.StatusInternalServerError)
		return
	}

	if err := h.insertServiceEvent(r, tx, req.ID, req); err != nil {
		http.Error(w, "failed to write outbox event", http.StatusInternalServerError)
		return
	}
	if err := tx.Commit(ctx); err != nil {
		http.Error(w, "failed to commit", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) insertServiceEvent(r *http.Request, tx pgx.Tx, id string, req serviceTypeRequest) error {
	payload, err := json.Marshal(map[string]any{
		"service_id":       id,
		"name":             req.Name,
		"description":      req.Description,
		"duration_minutes": req.DurationMinutes,
		"price":            req.Price,
	})
	if err != nil {
		return err
	}
	return h.outbox.Insert(r.Context(), tx, outbox.Event{
		AggregateType: "service_type",
		AggregateID:   id,
		EventType:     "directory.service.upserted.v1",
		Payload:       payload,
	})
}

func (h *Handler) GetServiceType(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	id := strings.TrimSpace(r.URL.Query().Get("id"))
	if id == "" {
		http.Error(w, "id is required", http.StatusBadRequest)
		return
	}
	st, err := h.repo.GetServiceType(r.Context(), id)
	if err != nil {
		if storage.IsNotFound(err) {
			http.Error(w, "service type not found", http.StatusNotFound)
			return
		}
		http.Error(w, "failed to load service type", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, serviceTypeItem(st))
}

func (h *Handler) ListServiceTypes(w http.ResponseWriter, r *http.Request) {
	services, err := h.repo.ListServiceTypes(r.Context(), 100)
	if err != nil {
		http.Error(w, "failed to list service types", http.StatusInternalServerError)
		return
	}
	items := make([]map[string]any, 0, len(services))
	for _, st := range services {
		items = append(items, serviceTypeItem(st))
	}
	writeJSON(w, http.StatusOK, items)
}

type technicianRequest struct {
	ID        string `json:"id"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
	Phone     string `json:"phone"`
	Specialty string `json:"specialty"`
	Available *bool  `json:"available"`
}

func technicianItem(t storage.Technician) map[string]any {
	return map[string]any{
		"id":         t.ID,
		"first_name": t.FirstName,
		"last_name":  t.LastName,
		"email":      t.Email,
		"phone":      t.Phone,
		"specialty":  t.Specialty,
		"available":  t.Available,
	}
}

func (h *Handler) CreateTechnician(w http.ResponseWriter, r *http.Request) {
	var req technicianRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	req.FirstName = strings.TrimSpace(req.FirstName)
	req.LastName = strings.TrimSpace(req.LastName)
	if req.FirstName == "" || req.LastName == "" {
		http.Error(w, "first_name and last_name required", http.StatusBadRequest)
		return
	}
	available := true
	if req.Available != nil {
		available = *req.Available
	}

	tech := storage.Technician{
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Email:     strings.TrimSpace(req.Email),
		Phone:     strings.TrimSpace(req.Phone),
		Specialty: strings.TrimSpace(req.Specialty),
		Available: available,
	}

	ctx := r.Context()
	tx, err := h.repo.Begin(ctx)
	if err != nil {
		http.Error(w, "db error", http.StatusInternalServerError)
		return
	}
	defer func() { _ = tx.Rollback(ctx) }()

	id, err := h.repo.CreateTechnician(ctx, tx, tech)
	if err != nil {
		if storage.IsDuplicate(err) {
			http.Error(w, "technician already exists", http.StatusConflict)
			return
		}
		http.Error(w, "failed to create technician", http.StatusInternalServerError)
		return
	}
	tech.ID = id

	if err := h.insertTechnicianEvent(r, tx, tech); err != nil {
		http.Error(w, "failed to write outbox event", http.StatusInternalServerError)
		return
	}
	if err := tx.Commit(ctx); err != nil {
		http.Error(w, "failed to commit", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{"id": id})
}

func (h *Handler) UpdateTechnician(w http.ResponseWriter, r *http.Request) {
	var req technicianRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	req.ID = strings.TrimSpace(req.ID)
	req.FirstName = strings.TrimSpace(req.FirstName)
	req.LastName = strings.TrimSpace(req.LastName)
	if req.ID == "" || req.FirstName == "" || req.LastName == "" {
		http.Error(w, "id, first_name and last_name required", http.StatusBadRequest)
		return
	}
	available := true
	if req.Available != nil {
		available = *req.Available
	}

	tech := storage.Technician{
		ID:        req.ID,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Email:     strings.TrimSpace(req.Email),
		Phone:     strings.TrimSpace(req.Phone),
		Specialty: strings.TrimSpace(req.Specialty),
		Available: available,
	}

	ctx := r.Context()
	tx, err := h.repo.Begin(ctx)
	if err != nil {
		http.Error(w, "db error", http.StatusInternalServerError)
		return
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := h.repo.UpdateTechnician(ctx, tx, tech); err != nil {
		if err == pgx.ErrNoRows {
			http.Error(w, "technician not found", http.StatusNotFound)
			return
		}
		http.Error(w, "failed to update technician", http.StatusInternalServerError)
		return
	}

	if err := h.insertTechnicianEvent(r, tx, tech); err != nil {
		http.Error(w, "failed to write outbox event", http.StatusInternalServerError)
		return
	}
	if err := tx.Commit(ctx); err != nil {
		http.Error(w, "failed to commit", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// SetAvailability flips the available flag without touching the rest of the
// profile. Emits the same upsert event as a full update.
func (h *Handler) SetAvailability(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req struct {
		ID        string `json:"id"`
		Available bool   `json:"available"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	req.ID = strings.TrimSpace(req.ID)
	if req.ID == "" {
		http.Error(w, "id is required", http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	tx, err := h.repo.Begin(ctx)
	if err != nil {
		http.Error(w, "db error", http.StatusInternalServerError)
		return
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := h.repo.SetTechnicianAvailability(ctx, tx, req.ID, req.Available); err != nil {
		if err == pgx.ErrNoRows {
			http.Error(w, "technician not found", http.StatusNotFound)
			return
		}
		http.Error(w, "failed to update availability", http.StatusInternalServerError)
		return
	}

	tech, err := h.repo.GetTechnician(ctx, req.ID)
	if err != nil {
		http.Error(w, "failed to load technician", http.StatusInternalServerError)
		return
	}
	tech.Available = req.Available
	if err := h.insertTechnicianEvent(r, tx, tech); err != nil {
		http.Error(w, "failed to write outbox event", http.StatusInternalServerError)
		return
	}
	if err := tx.Commit(ctx); err != nil {
		http.Error(w, "failed to commit", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) insertTechnicianEvent(r *http.Request, tx pgx.Tx, t storage.Technician) error {
	payload, err := json.Marshal(map[string]any{
		"technician_id": t.ID,
		"first_name":    t.FirstName,
		"last_name":     t.LastName,
		"email":         t.Email,
		"phone":         t.Phone,
		"specialty":     t.Specialty,
		"available":     t.Available,
	})
	if err != nil {
		return err
	}
	return h.outbox.Insert(r.Context(), tx, outbox.Event{
		AggregateType: "technician",
		AggregateID:   t.ID,
		EventType:     "directory.technician.upserted.v1",
		Payload:       payload,
	})
}

func (h *Handler) GetTechnician(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	id := strings.TrimSpace(r.URL.Query().Get("id"))
	if id == "" {
		http.Error(w, "id is required", http.StatusBadRequest)
		return
	}
	t, err := h.repo.GetTechnician(r.Context(), id)
	if err != nil {
		if storage.IsNotFound(err) {
			http.Error(w, "technician not found", http.StatusNotFound)
			return
		}
		http.Error(w, "failed to load technician", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, technicianItem(t))
}

func (h *Handler) ListTechnicians(w http.ResponseWriter, r *http.Request) {
	onlyAvailable := strings.EqualFold(strings.TrimSpace(r.URL.Query().Get("available")), "true")
	techs, err := h.repo.ListTechnicians(r.Context(), onlyAvailable, 100)
	if err != nil {
		http.Error(w, "failed to list technicians", http.StatusInternalServerError)
		return
	}
	items := make([]map[string]any, 0, len(techs))
	for _, t := range techs {
		items = append(items, technicianItem(t))
	}
	writeJSON(w, http.StatusOK, items)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
