package storage

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/autodiag-garage/platform/libs/db"
	"github.com/autodiag-garage/platform/services/booking-service/internal/assignment"
	"github.com/autodiag-garage/platform/services/booking-service/internal/model"
)

const appointmentColumns = `id::text, reference, COALESCE(service_id::text, ''), COALESCE(technician_id::text, ''),
	customer_name, customer_email, customer_phone,
	vehicle_make, vehicle_model, vehicle_registration,
	address, city, postal_code,
	start_time, duration_minutes, status, cancelled_at, COALESCE(cancel_reason, ''), created_at`

type AppointmentRepository struct {
	pool *db.Pool
}

func NewAppointmentRepository(pool *db.Pool) *AppointmentRepository {
	return &AppointmentRepository{pool: pool}
}

func (r *AppointmentRepository) Begin(ctx context.Context) (pgx.Tx, error) {
	return r.pool.Begin(ctx)
}

// Create inserts a new appointment in requested state. No technician is set
// yet, so the occupied-interval exclusion constraint does not apply here; it
// only rejects conflicting rows once a technician is assigned. The unique
// index on reference backstops the generator against collisions.
func (r *AppointmentRepository) Create(ctx context.Context, tx pgx.Tx, appt *model.Appointment) (string, error) {
	id := uuid.NewString()
	_, err := tx.Exec(ctx, `
		INSERT INTO appointments
			(id, reference, service_id, customer_name, customer_email, customer_phone,
			vehicle_make, vehicle_model, vehicle_registration,
			address, city, postal_code,
			start_time, duration_minutes, status)
		VALUES ($1, $2, NULLIF($3, '')::uuid, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`, id, appt.Reference, appt.ServiceID, appt.CustomerName, appt.CustomerEmail, appt.CustomerPhone,
		appt.VehicleMake, appt.VehicleModel, appt.VehicleRegistration,
		appt.Address, appt.City, appt.PostalCode,
		appt.StartTime, appt.DurationMinutes, appt.Status)
	if err != nil {
		return "", err
	}
	return id, nil
}

func (r *AppointmentRepository) Get(ctx context.Context, id string) (model.Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE id = $1
	`, id)
	return scanAppointment(row)
}

// CountActiveStartingBetween counts requested/confirmed appointments whose
// start time falls inside [from, to]. This backs the creation-time conflict
// buffer, which matches start times rather than occupied intervals.
func (r *AppointmentRepository) CountActiveStartingBetween(ctx context.Context, from, to time.Time) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx, `
		SELECT COUNT(*)
		FROM appointments
		WHERE status IN ('requested', 'confirmed')
			AND start_time >= $1
			AND start_time <= $2
	`, from, to).Scan(&count)
	return count, err
}

// ListActiveBetween returns requested/confirmed appointments whose occupied
// interval intersects [from, to), ordered by start time. Used by the slot
// search; cancelled and completed appointments never block.
func (r *AppointmentRepository) ListActiveBetween(ctx context.Context, from, to time.Time) ([]model.Appointment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE status IN ('requested', 'confirmed')
			AND start_time < $2
			AND start_time + make_interval(mins => duration_minutes) > $1
		ORDER BY start_time ASC
	`, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanAppointments(rows)
}

func (r *AppointmentRepository) List(ctx context.Context, limit int) ([]model.Appointment, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.pool.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		ORDER BY start_time DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanAppointments(rows)
}

func (r *AppointmentRepository) Cancel(ctx context.Context, tx pgx.Tx, id, reason string) (time.Time, error) {
	var cancelledAt time.Time
	err := tx.QueryRow(ctx, `
		UPDATE appointments
		SET status = 'cancelled',
			cancelled_at = now(),
			cancel_reason = $2
		WHERE id = $1
		RETURNING cancelled_at
	`, id, reason).Scan(&cancelledAt)
	return cancelledAt, err
}

func (r *AppointmentRepository) GetForUpdate(ctx context.Context, tx pgx.Tx, id string) (model.Appointment, error) {
	row := tx.QueryRow(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE id = $1
		FOR UPDATE
	`, id)
	return scanAppointment(row)
}

// GetAppointment implements assignment.Store.
func (r *AppointmentRepository) GetAppointment(ctx context.Context, id string) (model.Appointment, error) {
	appt, err := r.Get(ctx, id)
	if IsNotFound(err) {
		return model.Appointment{}, assignment.ErrNotFound
	}
	return appt, err
}

// CommittedTechnicians implements assignment.Store: technician ids on other
// active appointments starting inside the conflict window.
func (r *AppointmentRepository) CommittedTechnicians(ctx context.Context, from, to time.Time, excludeID string) ([]string, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT DISTINCT technician_id::text
		FROM appointments
		WHERE technician_id IS NOT NULL
			AND id <> $3
			AND status IN ('requested', 'confirmed')
			AND start_time >= $1
			AND start_time <= $2
	`, from, to, excludeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Assign implements assignment.Store. The guarded UPDATE refuses to
// overwrite an existing technician, and the exclusion constraint on
// (technician_id, occupied interval) rejects a technician booked
// concurrently for an overlapping appointment.
func (r *AppointmentRepository) Assign(ctx context.Context, appointmentID, technicianID string) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE appointments
		SET technician_id = $2,
			status = 'confirmed'
		WHERE id = $1
			AND technician_id IS NULL
	`, appointmentID, technicianID)
	if err != nil {
		if IsConflict(err) {
			return assignment.ErrTechnicianConflict
		}
		return err
	}
	if tag.RowsAffected() == 0 {
		// Either the appointment vanished or another request assigned it
		// between our read and this write.
		appt, getErr := r.Get(ctx, appointmentID)
		if IsNotFound(getErr) {
			return assignment.ErrNotFound
		}
		if getErr == nil && appt.TechnicianID != "" {
			return assignment.ErrAlreadyAssigned
		}
		return errors.New("assignment update affected no rows")
	}
	return nil
}

func IsConflict(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23P01"
}

func IsNotFound(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}

func scanAppointment(row pgx.Row) (model.Appointment, error) {
	var appt model.Appointment
	var cancelledAt *time.Time
	err := row.Scan(
		&appt.ID,
		&appt.Reference,
		&appt.ServiceID,
		&appt.TechnicianID,
		&appt.CustomerName,
		&appt.CustomerEmail,
		&appt.CustomerPhone,
		&appt.VehicleMake,
		&appt.VehicleModel,
		&appt.VehicleRegistration,
		&appt.Address,
		&appt.City,
		&appt.PostalCode,
		&appt.StartTime,
		&appt.DurationMinutes,
		&appt.Status,
		&cancelledAt,
		&appt.CancelReason,
		&appt.CreatedAt,
	)
	if err != nil {
		return model.Appointment{}, err
	}
	appt.CancelledAt = cancelledAt
	return appt, nil
}

func scanAppointments(rows pgx.Rows) ([]model.Appointment, error) {
	var appts []model.Appointment
	for rows.Next() {
		appt, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		appts = append(appts, appt)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return appts, nil
}
