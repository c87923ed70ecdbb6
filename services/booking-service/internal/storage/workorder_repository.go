package storage

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/autodiag-garage/platform/libs/db"
	"github.com/autodiag-garage/platform/services/booking-service/internal/model"
)

type WorkOrderRepository struct {
	pool *db.Pool
}

func NewWorkOrderRepository(pool *db.Pool) *WorkOrderRepository {
	return &WorkOrderRepository{pool: pool}
}

func (r *WorkOrderRepository) Begin(ctx context.Context) (pgx.Tx, error) {
	return r.pool.Begin(ctx)
}

func (r *WorkOrderRepository) Create(ctx context.Context, tx pgx.Tx, wo *model.WorkOrder) (string, error) {
	id := uuid.NewString()
	_, err := tx.Exec(ctx, `
		INSERT INTO work_orders
			(id, reference, appointment_id, service_id, technician_id, started_at, ended_at, status)
		VALUES ($1, $2, $3, NULLIF($4, '')::uuid, NULLIF($5, '')::uuid, $6, $7, $8)
	`, id, wo.Reference, wo.AppointmentID, wo.ServiceID, wo.TechnicianID, wo.StartedAt, wo.EndedAt, wo.Status)
	if err != nil {
		return "", err
	}
	return id, nil
}

func (r *WorkOrderRepository) Get(ctx context.Context, id string) (model.WorkOrder, error) {
	var wo model.WorkOrder
	err := r.pool.QueryRow(ctx, `
		SELECT id::text, reference, appointment_id::text,
			COALESCE(service_id::text, ''), COALESCE(technician_id::text, ''),
			started_at, ended_at, status,
			COALESCE(diagnostic_codes, '{}'), COALESCE(findings, ''), COALESCE(recommendations, ''),
			created_at
		FROM work_orders
		WHERE id = $1
	`, id).Scan(
		&wo.ID,
		&wo.Reference,
		&wo.AppointmentID,
		&wo.ServiceID,
		&wo.TechnicianID,
		&wo.StartedAt,
		&wo.EndedAt,
		&wo.Status,
		&wo.DiagnosticCodes,
		&wo.Findings,
		&wo.Recommendations,
		&wo.CreatedAt,
	)
	if err != nil {
		return model.WorkOrder{}, err
	}
	return wo, nil
}

// Complete records the diagnostic outcome. Only in-progress work orders can
// be completed; a zero rows-affected result means the order was missing or
// already completed.
func (r *WorkOrderRepository) Complete(ctx context.Context, tx pgx.Tx, id string, codes []string, findings, recommendations string) (bool, error) {
	tag, err := tx.Exec(ctx, `
		UPDATE work_orders
		SET status = 'completed',
			diagnostic_codes = $2,
			findings = $3,
			recommendations = $4,
			ended_at = now()
		WHERE id = $1 AND status = 'in_progress'
	`, id, codes, findings, recommendations)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (r *WorkOrderRepository) ListByAppointment(ctx context.Context, appointmentID string) ([]model.WorkOrder, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id::text, reference, appointment_id::text,
			COALESCE(service_id::text, ''), COALESCE(technician_id::text, ''),
			started_at, ended_at, status,
			COALESCE(diagnostic_codes, '{}'), COALESCE(findings, ''), COALESCE(recommendations, ''),
			created_at
		FROM work_orders
		WHERE appointment_id = $1
		ORDER BY created_at DESC
	`, appointmentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var orders []model.WorkOrder
	for rows.Next() {
		var wo model.WorkOrder
		if err := rows.Scan(
			&wo.ID, &wo.Reference, &wo.AppointmentID, &wo.ServiceID, &wo.TechnicianID,
			&wo.StartedAt, &wo.EndedAt, &wo.Status,
			&wo.DiagnosticCodes, &wo.Findings, &wo.Recommendations, &wo.CreatedAt,
		); err != nil {
			return nil, err
		}
		orders = append(orders, wo)
	}
	return orders, rows.Err()
}
