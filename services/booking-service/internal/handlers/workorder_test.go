package handlers

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
)

func newTestWorkOrderHandler() *WorkOrderHandler {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewWorkOrderHandler(nil, nil, nil, nil, logger)
}

func TestWorkOrderList_RequiresAppointmentID(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/v1/workorders", nil)
	rec := httptest.NewRecorder()
	newTestWorkOrderHandler().List(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestWorkOrderList_RejectsNonGet(t *testing.T) {
	req := httptest.NewRequest(http.MethodPut, "/api/v1/workorders", nil)
	rec := httptest.NewRecorder()
	newTestWorkOrderHandler().List(rec, req)

	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rec.Code)
	}
}
