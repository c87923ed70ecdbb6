package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/autodiag-garage/platform/services/booking-service/internal/availability"
	"github.com/autodiag-garage/platform/services/booking-service/internal/model"
	"github.com/autodiag-garage/platform/services/booking-service/internal/outbox"
	"github.com/autodiag-garage/platform/services/booking-service/internal/policy"
)

type fakeTx struct {
	pgx.Tx
	execs      []string
	committed  bool
	rolledBack bool
}

func (t *fakeTx) Exec(_ context.Context, sql string, _ ...any) (pgconn.CommandTag, error) {
	t.execs = append(t.execs, sql)
	return pgconn.NewCommandTag("INSERT 0 1"), nil
}

func (t *fakeTx) Commit(context.Context) error   { t.committed = true; return nil }
func (t *fakeTx) Rollback(context.Context) error { t.rolledBack = true; return nil }

type fakeAppointmentStore struct {
	conflicts int
	created   []model.Appointment
	tx        *fakeTx

	counted                bool
	countedFrom, countedTo time.Time
}

func (s *fakeAppointmentStore) Begin(context.Context) (pgx.Tx, error) {
	s.tx = &fakeTx{}
	return s.tx, nil
}

func (s *fakeAppointmentStore) Create(_ context.Context, _ pgx.Tx, appt *model.Appointment) (string, error) {
	s.created = append(s.created, *appt)
	return "apt-1", nil
}

func (s *fakeAppointmentStore) CountActiveStartingBetween(_ context.Context, from, to time.Time) (int, error) {
	s.counted = true
	s.countedFrom, s.countedTo = from, to
	return s.conflicts, nil
}

func (s *fakeAppointmentStore) Get(context.Context, string) (model.Appointment, error) {
	return model.Appointment{}, pgx.ErrNoRows
}

func (s *fakeAppointmentStore) GetForUpdate(context.Context, pgx.Tx, string) (model.Appointment, error) {
	return model.Appointment{}, pgx.ErrNoRows
}

func (s *fakeAppointmentStore) Cancel(context.Context, pgx.Tx, string, string) (time.Time, error) {
	return time.Time{}, nil
}

func (s *fakeAppointmentStore) List(context.Context, int) ([]model.Appointment, error) {
	return nil, nil
}

func (s *fakeAppointmentStore) ListActiveBetween(context.Context, time.Time, time.Time) ([]model.Appointment, error) {
	return nil, nil
}

func newTestBookingHandler(store *fakeAppointmentStore) *BookingHandler {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	cfg := Config{
		CreationBuffer: policy.CreationBuffer(0),
		WorkingWindow:  availability.DefaultWorkingWindow,
		Location:       time.UTC,
	}
	return NewBookingHandler(store, nil, nil, nil, outbox.NewRepository(nil), logger, cfg)
}

func postCreate(t *testing.T, h *BookingHandler, startTime string) *httptest.ResponseRecorder {
	t.Helper()
	body, err := json.Marshal(map[string]any{
		"customer_name": "Marie Lambert",
		"start_time":    startTime,
	})
	if err != nil {
		t.Fatalf("marshal request: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, "/api/v1/public/book", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	h.Create(rec, req)
	return rec
}

func TestCreate_RejectsPastStart(t *testing.T) {
	store := &fakeAppointmentStore{}
	rec := postCreate(t, newTestBookingHandler(store), time.Now().Add(-time.Hour).Format(time.RFC3339))

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if store.counted || len(store.created) != 0 {
		t.Fatal("a past start must be rejected before anything is persisted")
	}
}

func TestCreate_RejectsStartNotStrictlyInFuture(t *testing.T) {
	store := &fakeAppointmentStore{}
	rec := postCreate(t, newTestBookingHandler(store), time.Now().Format(time.RFC3339))

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if len(store.created) != 0 {
		t.Fatal("nothing must be persisted")
	}
}

func TestCreate_AcceptsNearFutureStart(t *testing.T) {
	store := &fakeAppointmentStore{}
	rec := postCreate(t, newTestBookingHandler(store), time.Now().Add(5*time.Minute).Format(time.RFC3339))

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp createAppointmentResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !strings.HasPrefix(resp.Reference, "RDV-") {
		t.Fatalf("expected RDV reference, got %q", resp.Reference)
	}
	if resp.Status != model.StatusRequested {
		t.Fatalf("expected requested status, got %q", resp.Status)
	}

	if len(store.created) != 1 {
		t.Fatalf("expected one persisted appointment, got %d", len(store.created))
	}
	if store.created[0].DurationMinutes != model.DefaultDurationMinutes {
		t.Fatalf("expected default duration without a service id, got %d", store.created[0].DurationMinutes)
	}
	if !store.tx.committed {
		t.Fatal("transaction must be committed")
	}
	var outboxWritten bool
	for _, sql := range store.tx.execs {
		if strings.Contains(sql, "outbox_events") {
			outboxWritten = true
		}
	}
	if !outboxWritten {
		t.Fatal("requested event must be written to the outbox in the same transaction")
	}
}

func TestCreate_BufferConflict(t *testing.T) {
	store := &fakeAppointmentStore{conflicts: 1}
	start := time.Now().Add(24 * time.Hour).Truncate(time.Second)
	rec := postCreate(t, newTestBookingHandler(store), start.Format(time.RFC3339))

	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rec.Code)
	}
	if len(store.created) != 0 {
		t.Fatal("a conflicting slot must not be persisted")
	}
	if !store.countedFrom.Equal(start.Add(-time.Hour)) || !store.countedTo.Equal(start.Add(time.Hour)) {
		t.Fatalf("expected +/-1h creation buffer, got %s..%s", store.countedFrom, store.countedTo)
	}
}

func TestCreate_RequiresCustomerName(t *testing.T) {
	store := &fakeAppointmentStore{}
	body := bytes.NewReader([]byte(`{"start_time":"2030-01-01T10:00:00Z"}`))
	req := httptest.NewRequest(http.MethodPost, "/api/v1/public/book", body)
	rec := httptest.NewRecorder()
	newTestBookingHandler(store).Create(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}
